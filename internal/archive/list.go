package archive

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/nugget/easycall/internal/conversation"
	"github.com/nugget/easycall/internal/memory"
)

// ErrNotFound is returned for an unknown archive id.
var ErrNotFound = errors.New("archive not found")

// Summary is a list row describing one archive.
type Summary struct {
	ArchiveID        string    `json:"archiveId"`
	ArchivedAt       time.Time `json:"archivedAt"`
	Reason           string    `json:"reason"`
	Title            string    `json:"title"`
	MessageCount     int       `json:"messageCount"`
	FirstUserPreview string    `json:"firstUserPreview"`
	APIConfigID      string    `json:"apiConfigId"`
	AgentID          string    `json:"agentId"`
}

// previewRunes caps FirstUserPreview.
const previewRunes = 10

// List summarizes every archive in st, newest first.
func List(st *conversation.State) []Summary {
	out := make([]Summary, 0, len(st.Archives))
	for _, a := range st.Archives {
		preview := firstUserPreview(&a.Source)
		out = append(out, Summary{
			ArchiveID:        a.ArchiveID,
			ArchivedAt:       a.ArchivedAt,
			Reason:           a.Reason,
			Title:            a.ArchivedAt.UTC().Format("2006-01-02 15:04") + " - " + preview,
			MessageCount:     len(a.Source.Messages),
			FirstUserPreview: preview,
			APIConfigID:      a.Source.APIConfigID,
			AgentID:          a.Source.AgentID,
		})
	}
	slices.SortStableFunc(out, func(a, b Summary) int {
		return b.ArchivedAt.Compare(a.ArchivedAt)
	})
	return out
}

func firstUserPreview(c *conversation.Conversation) string {
	for _, m := range c.Messages {
		if m.Role != conversation.RoleUser {
			continue
		}
		compact := memory.CollapseSpace(m.Text(" "))
		if compact == "" {
			break
		}
		r := []rune(compact)
		if len(r) > previewRunes {
			r = r[:previewRunes]
		}
		return string(r)
	}
	return "(empty)"
}

// Find returns the archive with id.
func Find(st *conversation.State, id string) (*conversation.Archive, error) {
	id = strings.TrimSpace(id)
	for i := range st.Archives {
		if st.Archives[i].ArchiveID == id {
			return &st.Archives[i], nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes the archive with id.
func Delete(st *conversation.State, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("archive id is required")
	}
	before := len(st.Archives)
	st.Archives = slices.DeleteFunc(st.Archives, func(a conversation.Archive) bool {
		return a.ArchiveID == id
	})
	if len(st.Archives) == before {
		return ErrNotFound
	}
	return nil
}
