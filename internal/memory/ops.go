package memory

import (
	"slices"
	"strings"
	"time"
)

// ImportResult counts what Import did.
type ImportResult struct {
	Imported int `json:"importedCount"`
	Created  int `json:"createdCount"`
	Merged   int `json:"mergedCount"`
	Total    int `json:"totalCount"`
}

// Import merges incoming drafts into entries. Content is
// whitespace-collapsed. Drafts with blank content or
// no valid keywords are skipped. A draft whose ContentKey matches an
// existing entry merges its keywords into that entry; anything else is
// appended, keeping the draft's ID when it has one that is not
// already taken.
func Import(entries []Entry, incoming []Draft, now time.Time) ([]Entry, ImportResult) {
	var res ImportResult
	for _, d := range incoming {
		content := CollapseSpace(d.Content)
		if content == "" {
			continue
		}
		keywords := NormalizeKeywords(d.Keywords)
		if len(keywords) == 0 {
			continue
		}
		res.Imported++

		if i := indexByKey(entries, ContentKey(content)); i >= 0 {
			entries[i].Keywords = mergeKeywords(entries[i].Keywords, keywords)
			entries[i].UpdatedAt = now
			res.Merged++
			continue
		}

		id := strings.TrimSpace(d.ID)
		if id == "" || hasID(entries, id) {
			id = newID()
		}
		entries = append(entries, Entry{
			ID:        id,
			Content:   content,
			Keywords:  keywords,
			CreatedAt: now,
			UpdatedAt: now,
		})
		res.Created++
	}
	res.Total = len(entries)
	return entries, res
}

// MergeDrafts folds summary-extracted drafts into entries. Content is
// whitespace-collapsed and sensitive drafts are dropped. It returns the
// number of drafts that created or updated an entry.
func MergeDrafts(entries []Entry, drafts []Draft, now time.Time) ([]Entry, int) {
	merged := 0
	for _, d := range drafts {
		content := CollapseSpace(d.Content)
		if content == "" {
			continue
		}
		keywords := NormalizeKeywords(d.Keywords)
		if len(keywords) == 0 || ContainsSensitive(content, keywords) {
			continue
		}

		if i := indexByKey(entries, ContentKey(content)); i >= 0 {
			entries[i].Keywords = mergeKeywords(entries[i].Keywords, keywords)
			entries[i].UpdatedAt = now
		} else {
			entries = append(entries, Entry{
				ID:        newID(),
				Content:   content,
				Keywords:  keywords,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		merged++
	}
	return entries, merged
}

// RejectSensitive is the UpsertResult reason for a refused draft.
const RejectSensitive = "sensitive_rejected"

// UpsertResult describes the outcome of a single Upsert.
type UpsertResult struct {
	Saved     bool      `json:"saved"`
	ID        string    `json:"id,omitempty"`
	Keywords  []string  `json:"keywords,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
	Reason    string    `json:"reason,omitempty"`
}

// Upsert saves one tool-provided draft. An entry with the same trimmed
// content has its keywords replaced; otherwise a new entry is appended.
// Callers are expected to have validated that content and keywords are
// non-empty after normalization.
func Upsert(entries []Entry, d Draft, now time.Time) ([]Entry, UpsertResult) {
	content := strings.TrimSpace(d.Content)
	keywords := NormalizeKeywords(d.Keywords)
	if ContainsSensitive(content, keywords) {
		return entries, UpsertResult{Reason: RejectSensitive}
	}

	for i := range entries {
		if strings.TrimSpace(entries[i].Content) == content {
			entries[i].Keywords = keywords
			entries[i].UpdatedAt = now
			return entries, UpsertResult{Saved: true, ID: entries[i].ID, Keywords: keywords, UpdatedAt: now}
		}
	}

	e := Entry{ID: newID(), Content: content, Keywords: keywords, CreatedAt: now, UpdatedAt: now}
	entries = append(entries, e)
	return entries, UpsertResult{Saved: true, ID: e.ID, Keywords: keywords, UpdatedAt: now}
}

func hasID(entries []Entry, id string) bool {
	for i := range entries {
		if entries[i].ID == id {
			return true
		}
	}
	return false
}

func indexByKey(entries []Entry, key string) int {
	for i := range entries {
		if ContentKey(entries[i].Content) == key {
			return i
		}
	}
	return -1
}

// ExportVersion is the schema version of ExportPayload.
const ExportVersion = 1

// ExportPayload is the portable memory file format.
type ExportPayload struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Memories   []Entry   `json:"memories"`
}

// Export returns a payload with entries sorted newest-updated first.
// The input slice is not modified.
func Export(entries []Entry, now time.Time) ExportPayload {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if sorted == nil {
		sorted = []Entry{}
	}
	return ExportPayload{Version: ExportVersion, ExportedAt: now, Memories: sorted}
}

// Drafts converts exported entries back into importable drafts.
func (p ExportPayload) Drafts() []Draft {
	out := make([]Draft, 0, len(p.Memories))
	for _, e := range p.Memories {
		out = append(out, Draft{ID: e.ID, Content: e.Content, Keywords: e.Keywords})
	}
	return out
}
