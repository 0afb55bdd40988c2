package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nugget/easycall/internal/httpkit"
)

// DefaultBingBases are tried in order until one yields results.
var DefaultBingBases = []string{"https://cn.bing.com", "https://www.bing.com"}

// DefaultCount is the number of results when the caller gives none.
const DefaultCount = 5

// Bing scrapes Bing's HTML result page.
type Bing struct {
	bases      []string
	httpClient *http.Client
}

// NewBing creates a Bing provider. With no bases, DefaultBingBases is used.
func NewBing(bases ...string) *Bing {
	if len(bases) == 0 {
		bases = DefaultBingBases
	}
	return &Bing{
		bases: bases,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(12*time.Second),
			httpkit.WithUserAgent(httpkit.BrowserUserAgent),
		),
	}
}

// Name identifies the provider in logs and tool output.
func (b *Bing) Name() string { return "bing" }

// Search queries each base in turn. A base that fails or yields no
// parsable rows moves on to the next; the last failure is reported if
// none succeed.
func (b *Bing) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if count <= 0 {
		count = DefaultCount
	}

	lastErr := errors.New("unknown")
	for _, base := range b.bases {
		results, err := b.searchBase(ctx, base, query, count)
		if err != nil {
			lastErr = err
			continue
		}
		if len(results) > 0 {
			return results, nil
		}
		lastErr = errors.New("no results parsed")
	}
	return nil, fmt.Errorf("bing search failed: %w", lastErr)
}

func (b *Bing) searchBase(ctx context.Context, base, query string, count int) ([]Result, error) {
	reqURL := strings.TrimRight(base, "/") + "/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 64*1024)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read search body: %w", err)
	}
	return parseBing(string(body), count)
}

// parseBing extracts rows from the first count li.b_algo items. Items
// without a title or link are dropped after the cap is applied.
func parseBing(page string, count int) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var items []*html.Node
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom == atom.Li && hasClass(n, "b_algo") {
			items = append(items, n)
			return false
		}
		return true
	})
	if len(items) > count {
		items = items[:count]
	}

	var results []Result
	for _, item := range items {
		var r Result
		if h2 := first(item, atom.H2); h2 != nil {
			r.Title = collapse(textOf(h2))
			if a := first(h2, atom.A); a != nil {
				r.URL = attr(a, "href")
			}
		}
		if p := first(item, atom.P); p != nil {
			r.Snippet = collapse(textOf(p))
		}
		if r.Title != "" && r.URL != "" {
			results = append(results, r)
		}
	}
	return results, nil
}

// walk visits element nodes depth-first; fn returns false to skip a
// node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func first(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c != n && c.DataAtom == a {
			found = c
			return false
		}
		return true
	})
	return found
}

func hasClass(n *html.Node, class string) bool {
	return strings.Contains(" "+attr(n, "class")+" ", " "+class+" ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
		b.WriteByte(' ')
	}
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
