package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tony robbins events", req.Query)
		assert.Equal(t, 6, req.Limit)
		require.NotNil(t, req.ScrapeOptions)
		assert.Equal(t, []string{"markdown"}, req.ScrapeOptions.Formats)

		_ = json.NewEncoder(w).Encode(SearchResponse{
			Success: true,
			Data: []PageData{
				{URL: "https://summit.com", Title: "Summit", Markdown: "# Summit\nTony Robbins keynote"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), SearchRequest{
		Query:         "tony robbins events",
		Limit:         6,
		ScrapeOptions: &ScrapeOptions{Formats: []string{"markdown"}},
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "https://summit.com", resp.Data[0].URL)
	assert.Contains(t, resp.Data[0].Markdown, "keynote")
}

func TestSearchAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error": "insufficient credits"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), SearchRequest{Query: "x"})

	require.Error(t, err)
	assert.False(t, IsNoResults(err))
	assert.Contains(t, err.Error(), "402")
}

func TestIsNoResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success": false, "error": "No search results found for the query"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), SearchRequest{Query: "gibberish"})

	require.Error(t, err)
	assert.True(t, IsNoResults(err))

	assert.False(t, IsNoResults(nil))
	assert.False(t, IsNoResults(context.Canceled))
}

func TestScrape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scrape", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ScrapeResponse{
			Success: true,
			Data:    PageData{URL: "https://summit.com", Markdown: "# Summit"},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.Scrape(context.Background(), ScrapeRequest{URL: "https://summit.com", Formats: []string{"markdown"}})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "# Summit", resp.Data.Markdown)
}
