package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkExtractor pulls inline reasoning out of text deltas that may carry
// <think>…</think> markup split across arbitrary chunk boundaries. It
// only reports what lies between the tags; callers keep the original
// text untouched for display.
//
// Content after an unterminated <think> is emitted as it arrives, except
// for a trailing fragment that could still be the start of </think>.
type ThinkExtractor struct {
	inside bool
	carry  string
}

// Inside reports whether the extractor is currently within a <think> block.
func (e *ThinkExtractor) Inside() bool { return e.inside }

// Feed consumes the next text delta and returns the inline reasoning it
// completes. A partial tag at the end of chunk is held back until the
// next call resolves it.
func (e *ThinkExtractor) Feed(chunk string) string {
	src := e.carry + chunk
	e.carry = ""

	var inline strings.Builder
	offset := 0
	for offset < len(src) {
		rest := src[offset:]
		if e.inside {
			if pos := strings.Index(rest, thinkClose); pos >= 0 {
				inline.WriteString(rest[:pos])
				offset += pos + len(thinkClose)
				e.inside = false
				continue
			}
			keep := longestSuffixPrefix(rest, thinkClose)
			inline.WriteString(rest[:len(rest)-keep])
			e.carry = rest[len(rest)-keep:]
			break
		}
		if pos := strings.Index(rest, thinkOpen); pos >= 0 {
			offset += pos + len(thinkOpen)
			e.inside = true
			continue
		}
		keep := longestSuffixPrefix(rest, thinkOpen)
		e.carry = rest[len(rest)-keep:]
		break
	}
	return inline.String()
}

// longestSuffixPrefix returns the length of the longest suffix of text
// that is a proper prefix of tag.
func longestSuffixPrefix(text, tag string) int {
	n := min(len(text), len(tag)-1)
	for l := n; l > 0; l-- {
		if strings.HasSuffix(text, tag[:l]) {
			return l
		}
	}
	return 0
}
