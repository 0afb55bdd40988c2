// Package archive decides when a conversation has grown or idled enough
// to be summarized, performs the archive, and manages archived
// conversations afterwards.
package archive

import (
	"time"

	"github.com/nugget/easycall/internal/conversation"
)

// Decision reasons. They are stable and appear in logs, metrics, and
// stored archives.
const (
	ReasonForceUsage   = "force_context_usage_82"
	ReasonIdleAndUsage = "idle_30m_and_usage_30pct"
	ReasonIdleNotMet   = "idle_not_reached_30m"
	ReasonUsageLow     = "usage_below_30pct"
	ReasonNoLastUser   = "no_last_user_timestamp"
	ReasonManual       = "manual_force_archive"
)

// Thresholds for Decide and Fallback.
const (
	ForceUsageRatio = 0.82
	IdleUsageRatio  = 0.30
	IdleAfter       = 30 * time.Minute
	FallbackTurns   = 3
)

// Decision is the outcome of Decide.
type Decision struct {
	ShouldArchive bool
	Forced        bool
	Reason        string
	UsageRatio    float64
}

// Decide reports whether c should be archived before the next user
// message. It has no side effects.
func Decide(c *conversation.Conversation, windowTokens int, now time.Time) Decision {
	ratio := conversation.UsageRatio(c.Messages, windowTokens)
	d := Decision{UsageRatio: ratio}

	switch {
	case ratio >= ForceUsageRatio:
		d.ShouldArchive, d.Forced, d.Reason = true, true, ReasonForceUsage
	case c.LastUserAt == nil:
		d.Reason = ReasonNoLastUser
	case now.Sub(*c.LastUserAt) < IdleAfter:
		d.Reason = ReasonIdleNotMet
	case ratio >= IdleUsageRatio:
		d.ShouldArchive, d.Reason = true, ReasonIdleAndUsage
	default:
		d.Reason = ReasonUsageLow
	}
	return d
}
