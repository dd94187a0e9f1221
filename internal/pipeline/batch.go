package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/event-finder/internal/model"
)

// maxBatchWorkers bounds concurrent extraction calls.
const maxBatchWorkers = 3

// ExtractInBatches partitions the raw results into fixed-size batches, runs
// one extraction call per batch concurrently, and returns the deduplicated,
// date-sorted union of all batch outputs. A failing batch contributes zero
// events and never aborts its siblings.
func (f *Finder) ExtractInBatches(ctx context.Context, subject string, results []model.RawResult, eventType model.EventType, sortOrder model.SortOrder) []model.Event {
	if len(results) == 0 {
		return nil
	}

	batches := createBatches(results, f.cfg.Extract.BatchSize, f.cfg.Extract.MaxSourcesPerBatch)

	// Distribute the total content budget across batches.
	budget := f.cfg.Extract.MaxContentChars
	if len(batches) > 1 && budget > 0 {
		budget /= len(batches)
	}

	zap.L().Info("batch: processing sources",
		zap.Int("sources", len(results)),
		zap.Int("batches", len(batches)),
		zap.Int("budget_per_batch", budget),
	)

	workers := maxBatchWorkers
	if len(batches) < workers {
		workers = len(batches)
	}

	outs := make([][]model.Event, len(batches))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			content := CombineContent(batch, budget, subject, f.now())
			outs[i] = f.ExtractEvents(ctx, subject, content, eventType, sortOrder)
			zap.L().Debug("batch: extracted",
				zap.Int("batch", i+1),
				zap.Int("sources", len(batch)),
				zap.Int("events", len(outs[i])),
			)
			return nil
		})
	}
	_ = g.Wait()

	var all []model.Event
	for _, events := range outs {
		all = append(all, events...)
	}

	unique := DedupeEvents(all)
	sortEventsByDate(unique, sortOrder)

	zap.L().Info("batch: finished",
		zap.Int("events_total", len(all)),
		zap.Int("events_unique", len(unique)),
	)
	return unique
}

// createBatches splits results into consecutive groups of batchSize, each
// additionally capped at maxPerBatch. Excess sources in an oversized batch
// are dropped, not redistributed.
func createBatches(results []model.RawResult, batchSize, maxPerBatch int) [][]model.RawResult {
	if batchSize <= 0 {
		batchSize = 3
	}

	var batches [][]model.RawResult
	for i := 0; i < len(results); i += batchSize {
		end := i + batchSize
		if end > len(results) {
			end = len(results)
		}
		batch := results[i:end]
		if maxPerBatch > 0 && len(batch) > maxPerBatch {
			batch = batch[:maxPerBatch]
		}
		batches = append(batches, batch)
	}
	return batches
}
