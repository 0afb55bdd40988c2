// Package search scrapes web search results for the bing_search tool.
package search

import "context"

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Response is what the tool returns to the model.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Provider is a search backend.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Search runs query and returns at most count results.
	Search(ctx context.Context, query string, count int) ([]Result, error)
}
