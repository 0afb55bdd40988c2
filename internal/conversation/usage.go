package conversation

import (
	"math"
	"unicode"
)

// Token estimate weights. They are a heuristic, not a tokenizer.
const (
	cjkTokenCost    = 0.6
	otherTokenCost  = 0.3
	messageOverhead = 12
	imageTokenCost  = 280
	audioTokenCost  = 320
)

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0xF900 && r <= 0xFAFF)
}

// EstimateTextTokens estimates the token cost of text.
func EstimateTextTokens(text string) float64 {
	var cjk, other int
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
		case isCJK(r):
			cjk++
		default:
			other++
		}
	}
	return float64(cjk)*cjkTokenCost + float64(other)*otherTokenCost
}

// EstimateMessageTokens estimates one message including its fixed overhead.
func EstimateMessageTokens(m Message) float64 {
	tokens := float64(messageOverhead)
	for _, p := range m.Parts {
		switch p.Type {
		case PartText:
			tokens += EstimateTextTokens(p.Text)
		case PartImage:
			tokens += imageTokenCost
		case PartAudio:
			tokens += audioTokenCost
		}
	}
	return tokens
}

// EstimateTokens estimates all of messages, rounded up.
func EstimateTokens(messages []Message) int {
	var sum float64
	for _, m := range messages {
		sum += EstimateMessageTokens(m)
	}
	return int(math.Ceil(sum))
}

// UsageRatio is the estimated share of a window of windowTokens that
// messages occupy. The window is floored at 1.
func UsageRatio(messages []Message, windowTokens int) float64 {
	return float64(EstimateTokens(messages)) / float64(max(windowTokens, 1))
}
