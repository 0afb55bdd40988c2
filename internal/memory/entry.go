// Package memory holds the user's long-term memory entries and the
// keyword matcher that decides which of them are injected into a prompt.
package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxKeywords caps the keywords kept per entry.
	MaxKeywords = 12

	// MinKeywordLen is the minimum keyword length in bytes.
	MinKeywordLen = 2
)

// Entry is one long-term memory.
type Entry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Keywords  []string  `json:"keywords"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Draft is a memory proposed by a tool call or an archive summary,
// before it is normalized and merged into the store.
type Draft struct {
	ID       string   `json:"id,omitempty"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
}

// sensitiveTerms is matched as a substring of the lower-cased content
// and keywords.
var sensitiveTerms = []string{
	"password",
	"passwd",
	"api key",
	"apikey",
	"token",
	"secret",
	"private key",
	"sk-",
	"ssh-rsa",
	"验证码",
	"密码",
	"密钥",
	"身份证",
	"银行卡",
	"cvv",
}

// NormalizeKeywords trims and lower-cases keywords, drops ones shorter
// than MinKeywordLen, removes duplicates keeping first occurrence, and
// caps the result at MaxKeywords.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if len(kw) < MinKeywordLen || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// ContainsSensitive reports whether content or keywords look like
// credentials or identity documents.
func ContainsSensitive(content string, keywords []string) bool {
	haystack := strings.ToLower(content) + "\n" + strings.ToLower(strings.Join(keywords, " "))
	for _, term := range sensitiveTerms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

// CollapseSpace joins the whitespace-separated fields of s with single spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ContentKey is the identity used to detect duplicate memories.
func ContentKey(content string) string {
	return strings.ToLower(CollapseSpace(content))
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// mergeKeywords appends the keywords of add missing from base, stopping
// once base holds MaxKeywords.
func mergeKeywords(base, add []string) []string {
	for _, kw := range add {
		if len(base) >= MaxKeywords {
			break
		}
		found := false
		for _, have := range base {
			if have == kw {
				found = true
				break
			}
		}
		if !found {
			base = append(base, kw)
		}
	}
	return base
}
