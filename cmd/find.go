package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/event-finder/internal/model"
)

var (
	findEventType string
	findSort      string
)

var findCmd = &cobra.Command{
	Use:   "find <speaker name>",
	Short: "Find upcoming speaking engagements for one person",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		finder, err := initFinder()
		if err != nil {
			return err
		}

		events, err := finder.Find(cmd.Context(), model.FindRequest{
			Subject:   args[0],
			EventType: model.EventType(findEventType),
			Sort:      model.SortOrder(findSort),
		})
		if err != nil {
			return eris.Wrap(err, "find events")
		}

		zap.L().Info("find complete", zap.Int("events", len(events)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

func init() {
	findCmd.Flags().StringVar(&findEventType, "event-type", "", "filter by event type (online or in-person)")
	findCmd.Flags().StringVar(&findSort, "sort", "asc", "date sort order (asc or desc)")
	rootCmd.AddCommand(findCmd)
}
