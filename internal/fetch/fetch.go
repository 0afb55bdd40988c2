// Package fetch downloads a web page and reduces it to plain text for
// the model.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/easycall/internal/httpkit"
)

// DefaultTimeout bounds one page fetch.
const DefaultTimeout = 12 * time.Second

// DefaultMaxBytes caps how much of a response body is read (5 MB).
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// DefaultMaxLength is the default character limit for returned text.
const DefaultMaxLength = 1800

// Result is the fetched page text.
type Result struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Fetcher downloads pages and extracts their visible text.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// New creates a Fetcher that identifies as a desktop browser.
func New() *Fetcher {
	return &Fetcher{
		client: httpkit.NewClient(
			httpkit.WithTimeout(DefaultTimeout),
			httpkit.WithUserAgent(httpkit.BrowserUserAgent),
		),
		maxBytes: DefaultMaxBytes,
	}
}

// Fetch downloads rawURL and returns its body text with whitespace
// collapsed, truncated to maxLength characters plus "..." when longer.
// A non-positive maxLength uses DefaultMaxLength.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxLength int) (*Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("fetch: url is required")
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("Fetch url failed: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Fetch url failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 64*1024)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Fetch url failed with status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("Read body failed: %w", err)
	}

	text := collapseSpace(extractText(string(body)))
	return &Result{URL: rawURL, Content: truncateChars(text, maxLength)}, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateChars cuts s to n runes and marks the cut with "...".
func truncateChars(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
