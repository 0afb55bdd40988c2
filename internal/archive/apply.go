package archive

import (
	"errors"
	"time"

	"github.com/nugget/easycall/internal/conversation"
	"github.com/nugget/easycall/internal/memory"
)

var (
	// ErrConversationChanged means the conversation being archived is no
	// longer active, usually because another command archived it while
	// the summary was being generated.
	ErrConversationChanged = errors.New("the active conversation changed, please retry the archive")

	// ErrContextReset means summarization failed and even the most recent
	// turns exceed the context window, so the conversation was emptied.
	ErrContextReset = errors.New("archiving failed and the context is still over the limit; a new conversation was started, please resend your message")

	// ErrNothingToArchive is returned for a manual archive of an empty
	// or missing conversation.
	ErrNothingToArchive = errors.New("the current conversation is empty, nothing to archive")
)

// Move removes the active conversation convID from st and records it as
// an archive. It returns the new archive id, or false if convID is no
// longer active.
func Move(st *conversation.State, convID, reason, summary string, now time.Time) (string, bool) {
	i := st.FindActive(convID)
	if i < 0 {
		return "", false
	}
	source := st.Conversations[i]
	st.Conversations = append(st.Conversations[:i], st.Conversations[i+1:]...)

	source.Status = conversation.StatusArchived
	source.UpdatedAt = now
	id := conversation.NewID()
	st.Archives = append(st.Archives, conversation.Archive{
		ArchiveID:  id,
		ArchivedAt: now,
		Reason:     reason,
		Summary:    summary,
		Source:     source,
	})
	return id, true
}

// Outcome reports what Apply did.
type Outcome struct {
	ArchiveID      string
	MergedMemories int
}

// Apply archives source with a successful summary: the conversation is
// moved to the archive list, a fresh active conversation takes its
// place, and the summary's memory drafts are merged into st.Memories.
// The caller must invalidate the matcher cache when MergedMemories > 0.
func Apply(st *conversation.State, source *conversation.Conversation, apiConfigID, reason string, res *Result, now time.Time) (Outcome, error) {
	id, ok := Move(st, source.ID, reason, res.Summary, now)
	if !ok {
		return Outcome{}, ErrConversationChanged
	}
	st.EnsureActive(apiConfigID, source.AgentID, now)

	var merged int
	st.Memories, merged = memory.MergeDrafts(st.Memories, res.Drafts, now)
	return Outcome{ArchiveID: id, MergedMemories: merged}, nil
}

// Fallback trims the still-active conversation sourceID to the last
// FallbackTurns turns of source. If that still reaches ForceUsageRatio
// the conversation is reset to empty under a new id and ErrContextReset
// is returned. A conversation that is no longer active is left alone.
func Fallback(st *conversation.State, source *conversation.Conversation, windowTokens int, now time.Time) error {
	i := st.FindActive(source.ID)
	if i < 0 {
		return nil
	}
	c := &st.Conversations[i]
	c.Messages = conversation.KeepRecentTurns(source.Messages, FallbackTurns)

	if conversation.UsageRatio(c.Messages, windowTokens) >= ForceUsageRatio {
		c.ID = conversation.NewID()
		c.Title = conversation.NewTitle(now)
		c.CreatedAt = now
		c.UpdatedAt = now
		c.Messages = []conversation.Message{}
		c.LastUserAt = nil
		c.LastAssistantAt = nil
		c.LastContextUsageRatio = 0
		return ErrContextReset
	}

	c.LastUserAt = conversation.LastAt(c.Messages, conversation.RoleUser)
	c.LastAssistantAt = conversation.LastAt(c.Messages, conversation.RoleAssistant)
	c.UpdatedAt = now
	c.LastContextUsageRatio = 0
	if len(c.Messages) > 0 {
		c.LastContextUsageRatio = conversation.UsageRatio(c.Messages, windowTokens)
	}
	return nil
}
