package memory

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

var (
	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func TestImport_MergeAndCreate(t *testing.T) {
	entries := []Entry{{ID: "m1", Content: "Likes green tea", Keywords: []string{"tea"}, CreatedAt: t0, UpdatedAt: t0}}

	entries, res := Import(entries, []Draft{
		{Content: "  likes   GREEN tea ", Keywords: []string{"Green", "tea"}},
		{ID: "keep-me", Content: "Works on Go services", Keywords: []string{"go", "backend"}},
		{Content: "   ", Keywords: []string{"blank"}},
		{Content: "no keywords", Keywords: []string{"x"}},
	}, t1)

	want := ImportResult{Imported: 2, Created: 1, Merged: 1, Total: 2}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if got := entries[0].Keywords; !reflect.DeepEqual(got, []string{"tea", "green"}) {
		t.Errorf("merged keywords = %q", got)
	}
	if !entries[0].UpdatedAt.Equal(t1) || !entries[0].CreatedAt.Equal(t0) {
		t.Errorf("timestamps = created %v updated %v", entries[0].CreatedAt, entries[0].UpdatedAt)
	}
	if entries[1].ID != "keep-me" || entries[1].Content != "Works on Go services" {
		t.Errorf("created entry = %+v", entries[1])
	}
}

func TestImport_DuplicatesWithinBatch(t *testing.T) {
	entries, res := Import(nil, []Draft{
		{Content: "same", Keywords: []string{"aa"}},
		{Content: "SAME", Keywords: []string{"bb"}},
	}, t0)
	if res.Created != 1 || res.Merged != 1 || len(entries) != 1 {
		t.Fatalf("res = %+v entries = %+v", res, entries)
	}
	if !reflect.DeepEqual(entries[0].Keywords, []string{"aa", "bb"}) {
		t.Errorf("keywords = %q", entries[0].Keywords)
	}
	if entries[0].ID == "" {
		t.Error("generated id should not be empty")
	}
}

func TestMergeDrafts(t *testing.T) {
	entries := []Entry{{ID: "m1", Content: "Prefers dark mode", Keywords: []string{"theme"}}}
	entries, merged := MergeDrafts(entries, []Draft{
		{Content: "prefers  dark mode", Keywords: []string{"dark"}},
		{Content: "Lives in Hangzhou", Keywords: []string{"hangzhou", "city"}},
		{Content: "wifi password is abc", Keywords: []string{"wifi"}},
		{Content: "", Keywords: []string{"empty"}},
	}, t1)

	if merged != 2 {
		t.Errorf("merged = %d, want 2", merged)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if !reflect.DeepEqual(entries[0].Keywords, []string{"theme", "dark"}) {
		t.Errorf("keywords = %q", entries[0].Keywords)
	}
}

func TestUpsert(t *testing.T) {
	entries := []Entry{{ID: "m1", Content: " Drinks oolong ", Keywords: []string{"tea", "oolong"}, UpdatedAt: t0}}

	entries, res := Upsert(entries, Draft{Content: "Drinks oolong", Keywords: []string{"Drink"}}, t1)
	if !res.Saved || res.ID != "m1" {
		t.Fatalf("update result = %+v", res)
	}
	if !reflect.DeepEqual(entries[0].Keywords, []string{"drink"}) {
		t.Errorf("keywords should be replaced, got %q", entries[0].Keywords)
	}

	entries, res = Upsert(entries, Draft{Content: "Has a cat named Mochi", Keywords: []string{"cat", "mochi"}}, t1)
	if !res.Saved || res.ID == "" || len(entries) != 2 {
		t.Fatalf("create result = %+v, entries = %d", res, len(entries))
	}

	entries, res = Upsert(entries, Draft{Content: "bank token 9911", Keywords: []string{"bank"}}, t1)
	if res.Saved || res.Reason != RejectSensitive || len(entries) != 2 {
		t.Errorf("sensitive result = %+v, entries = %d", res, len(entries))
	}
}

func TestExport_SortedByUpdatedDesc(t *testing.T) {
	entries := []Entry{
		{ID: "old", UpdatedAt: t0},
		{ID: "new", UpdatedAt: t1},
	}
	p := Export(entries, t1)
	if p.Version != ExportVersion || p.Memories[0].ID != "new" {
		t.Errorf("payload = %+v", p)
	}
	if entries[0].ID != "old" {
		t.Error("Export must not reorder its input")
	}
	if d := p.Drafts(); len(d) != 2 || d[0].ID != "new" {
		t.Errorf("drafts = %+v", d)
	}
	if Export(nil, t0).Memories == nil {
		t.Error("empty export should carry an empty list")
	}
}

func TestImport_MergeStopsAtKeywordCap(t *testing.T) {
	full := make([]string, MaxKeywords)
	for i := range full {
		full[i] = fmt.Sprintf("kw%02d", i)
	}
	entries, _ := Import(nil, []Draft{{Content: "Likes tea", Keywords: full}}, t0)

	entries, res := Import(entries, []Draft{{Content: "Likes  tea", Keywords: []string{"zebra"}}}, t1)
	if res.Merged != 1 || len(entries) != 1 {
		t.Fatalf("res = %+v entries = %d", res, len(entries))
	}
	if got := entries[0].Keywords; !reflect.DeepEqual(got, full) {
		t.Errorf("keywords = %q, want the original %d", got, MaxKeywords)
	}

	entries, merged := MergeDrafts(entries, []Draft{{Content: "likes tea", Keywords: []string{"oolong"}}}, t1)
	if merged != 1 || len(entries[0].Keywords) != MaxKeywords {
		t.Errorf("merged = %d keywords = %q", merged, entries[0].Keywords)
	}

	// Every stored keyword still recalls the entry.
	cache := NewCache(nil)
	if cache.Board(entries, "", "tell me about kw11") == "" {
		t.Error("last stored keyword should match")
	}
	if got := cache.Board(entries, "", "tell me about zebra"); got != "" {
		t.Errorf("dropped keyword matched: %q", got)
	}
}
