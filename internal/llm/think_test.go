package llm

import "testing"

func feedAll(chunks ...string) (string, bool) {
	var e ThinkExtractor
	var out string
	for _, c := range chunks {
		out += e.Feed(c)
	}
	return out, e.Inside()
}

func TestThinkExtractor(t *testing.T) {
	tests := []struct {
		name       string
		chunks     []string
		want       string
		wantInside bool
	}{
		{"no tags", []string{"hello world"}, "", false},
		{"single pair", []string{"a<think>plan</think>b"}, "plan", false},
		{"two pairs in one delta", []string{"<think>x</think>mid<think>y</think>"}, "xy", false},
		{"open tag split", []string{"a<thi", "nk>plan</think>"}, "plan", false},
		{"close tag split", []string{"<think>pl", "an</th", "ink>done"}, "plan", false},
		{"lone less-than kept as text", []string{"1 < 2 <think>ok</think>"}, "ok", false},
		{"unterminated", []string{"<think>partial thought"}, "partial thought", true},
		{"unterminated with partial close", []string{"<think>abc</thi"}, "abc", true},
		{"byte-per-chunk", []string{"<", "t", "h", "i", "n", "k", ">", "h", "i", "<", "/", "t", "h", "i", "n", "k", ">"}, "hi", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, inside := feedAll(tt.chunks...)
			if got != tt.want {
				t.Errorf("inline = %q, want %q", got, tt.want)
			}
			if inside != tt.wantInside {
				t.Errorf("inside = %v, want %v", inside, tt.wantInside)
			}
		})
	}
}

func TestThinkExtractor_SplitAnywhere(t *testing.T) {
	input := "pre<think>first idea</think> visible <think>second 思考</think>tail"
	whole, _ := feedAll(input)
	if whole != "first ideasecond 思考" {
		t.Fatalf("unsplit extraction = %q", whole)
	}
	for i := 0; i <= len(input); i++ {
		for j := i; j <= len(input); j++ {
			got, _ := feedAll(input[:i], input[i:j], input[j:])
			if got != whole {
				t.Fatalf("split at %d,%d: got %q, want %q", i, j, got, whole)
			}
		}
	}
}

func TestLongestSuffixPrefix(t *testing.T) {
	tests := []struct {
		text, tag string
		want      int
	}{
		{"abc<thi", thinkOpen, 4},
		{"abc<", thinkOpen, 1},
		{"abc", thinkOpen, 0},
		{"<think>", thinkOpen, 0}, // full tag is not a proper prefix
		{"x</think", thinkClose, 7},
		{"", thinkClose, 0},
	}
	for _, tt := range tests {
		if got := longestSuffixPrefix(tt.text, tt.tag); got != tt.want {
			t.Errorf("longestSuffixPrefix(%q, %q) = %d, want %d", tt.text, tt.tag, got, tt.want)
		}
	}
}
