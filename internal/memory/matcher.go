package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"

	ahocorasick "github.com/BobuSumisu/aho-corasick"
)

// MaxBoardItems caps the memories rendered into one board.
const MaxBoardItems = 7

// boardNote tells the model how to treat the board.
const boardNote = "This is a memory board. Use it only when relevant and never invent memories that are not listed here."

// Compiled is a keyword automaton built from one snapshot of entries.
// It is immutable once built and safe for concurrent use.
type Compiled struct {
	signature string

	trie *ahocorasick.Trie
	// patternMemories maps a pattern index to the entry indices that
	// declared that keyword.
	patternMemories [][]int
}

// Signature identifies the entry snapshot the automaton was built from.
func (c *Compiled) Signature() string { return c.signature }

// Signature hashes every entry's id, updatedAt, content, and keywords.
// Any change to the memory set changes the signature.
func Signature(entries []Entry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.ID))
		h.Write([]byte{0x1f})
		h.Write([]byte(e.UpdatedAt.UTC().Format(time.RFC3339Nano)))
		h.Write([]byte{0x1f})
		h.Write([]byte(e.Content))
		h.Write([]byte{0x1e})
		for _, kw := range e.Keywords {
			h.Write([]byte(kw))
			h.Write([]byte{0x1d})
		}
		h.Write([]byte{0x1c})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Compile builds the automaton over every distinct normalized keyword.
func Compile(entries []Entry) *Compiled {
	c := &Compiled{signature: Signature(entries)}

	var patterns []string
	index := make(map[string]int)
	for mi, e := range entries {
		local := make(map[string]bool, len(e.Keywords))
		for _, kw := range e.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if len(kw) < MinKeywordLen || local[kw] {
				continue
			}
			local[kw] = true
			pi, ok := index[kw]
			if !ok {
				pi = len(patterns)
				index[kw] = pi
				patterns = append(patterns, kw)
				c.patternMemories = append(c.patternMemories, nil)
			}
			if !slices.Contains(c.patternMemories[pi], mi) {
				c.patternMemories[pi] = append(c.patternMemories[pi], mi)
			}
		}
	}
	if len(patterns) > 0 {
		c.trie = ahocorasick.NewTrieBuilder().AddStrings(patterns).Build()
	}
	return c
}

// Hit is a matched entry and the number of distinct keywords it matched.
type Hit struct {
	Index int
	Entry Entry
	Score int
}

// Match scans corpus and returns at most MaxBoardItems entries ordered by
// score, highest first, ties broken by entry order. entries must be the
// snapshot c was compiled from.
func (c *Compiled) Match(entries []Entry, corpus string) []Hit {
	if c.trie == nil || strings.TrimSpace(corpus) == "" {
		return nil
	}

	type pair struct{ memory, pattern int }
	seen := make(map[pair]bool)
	scores := make([]int, len(entries))
	for _, m := range c.trie.MatchString(corpus) {
		pi := int(m.Pattern())
		if pi < 0 || pi >= len(c.patternMemories) {
			continue
		}
		for _, mi := range c.patternMemories[pi] {
			p := pair{mi, pi}
			if seen[p] {
				continue
			}
			seen[p] = true
			scores[mi]++
		}
	}

	var hits []Hit
	for i, s := range scores {
		if s > 0 {
			hits = append(hits, Hit{Index: i, Entry: entries[i], Score: s})
		}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return a.Index - b.Index
	})
	if len(hits) > MaxBoardItems {
		hits = hits[:MaxBoardItems]
	}
	return hits
}

// Cache holds the most recently compiled automaton. Callers that race
// to compile the same snapshot may both do the work; the last one wins.
type Cache struct {
	mu        sync.Mutex
	current   *Compiled
	onCompile func()
}

// NewCache creates an empty cache. onCompile, if non-nil, is called
// after every fresh compilation.
func NewCache(onCompile func()) *Cache {
	return &Cache{onCompile: onCompile}
}

// GetOrCompile returns the cached automaton when its signature matches
// entries, compiling and storing a new one otherwise.
func (c *Cache) GetOrCompile(entries []Entry) *Compiled {
	sig := Signature(entries)

	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur != nil && cur.signature == sig {
		return cur
	}

	compiled := Compile(entries)
	if c.onCompile != nil {
		c.onCompile()
	}

	c.mu.Lock()
	c.current = compiled
	c.mu.Unlock()
	return compiled
}

// Invalidate drops the cached automaton.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Board matches entries against the user's historical text and latest
// message and renders the hits as a memory board. It returns "" when
// nothing matched.
func (c *Cache) Board(entries []Entry, searchText, latestText string) string {
	if len(entries) == 0 {
		return ""
	}
	corpus := searchText
	if strings.TrimSpace(latestText) != "" {
		corpus += "\n" + strings.ToLower(latestText)
	}
	if strings.TrimSpace(corpus) == "" {
		return ""
	}
	hits := c.GetOrCompile(entries).Match(entries, corpus)
	if len(hits) == 0 {
		return ""
	}
	return RenderBoard(hits)
}

// RenderBoard renders hits as the <memory_board> XML block.
func RenderBoard(hits []Hit) string {
	var b strings.Builder
	b.WriteString("<memory_board>\n")
	b.WriteString("  <note>" + XMLEscape(boardNote) + "</note>\n")
	b.WriteString("  <memories>\n")
	for _, h := range hits {
		b.WriteString("    <memory>\n")
		b.WriteString("      <content>" + XMLEscape(h.Entry.Content) + "</content>\n")
		b.WriteString("    </memory>\n")
	}
	b.WriteString("  </memories>\n")
	b.WriteString("</memory_board>")
	return b.String()
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// XMLEscape escapes the five XML special characters.
func XMLEscape(s string) string {
	return xmlReplacer.Replace(s)
}
