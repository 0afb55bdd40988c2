package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractText(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Ignored Title</title><style>.x{}</style></head>
<body>
<script>var x = 1;</script>
<h1>Hello   World</h1>
<p>This is a <strong>test</strong>.</p>
</body>
</html>`

	got := collapseSpace(extractText(page))
	if got != "Hello World This is a test ." {
		t.Errorf("extractText = %q", got)
	}
}

func TestTruncateChars(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hello..."},
		{"你好世界", 2, "你好..."},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateChars(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateChars(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "Mozilla/5.0") {
			t.Errorf("expected browser User-Agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><p>Hello from   test server</p></body></html>`))
	}))
	defer ts.Close()

	result, err := New().Fetch(context.Background(), ts.URL, 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.URL != ts.URL {
		t.Errorf("url = %q", result.URL)
	}
	if result.Content != "Hello from test server" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestFetchTruncates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<body>" + strings.Repeat("a", 50) + "</body>"))
	}))
	defer ts.Close()

	result, err := New().Fetch(context.Background(), ts.URL, 10)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Content != strings.Repeat("a", 10)+"..." {
		t.Errorf("content = %q", result.Content)
	}
}

func TestFetchStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := New().Fetch(context.Background(), ts.URL, 0)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "Fetch url failed with status 404") {
		t.Errorf("error = %q", err)
	}
}

func TestToolHandler(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<body>tool page</body>"))
	}))
	defer ts.Close()

	h := ToolHandler(New())
	out, err := h(context.Background(), map[string]any{"url": ts.URL, "max_length": float64(100)})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	var got Result
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Content != "tool page" {
		t.Errorf("content = %q", got.Content)
	}

	if _, err := h(context.Background(), map[string]any{}); err == nil {
		t.Error("missing url should fail")
	}
}
