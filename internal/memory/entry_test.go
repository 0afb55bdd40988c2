package memory

import (
	"fmt"
	"reflect"
	"testing"
)

func TestNormalizeKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"trims and lowers", []string{"  Rust ", "GO"}, []string{"rust", "go"}},
		{"drops short", []string{"a", "", " b ", "ok"}, []string{"ok"}},
		{"dedups keeping first", []string{"Tea", "tea", "TEA ", "coffee"}, []string{"tea", "coffee"}},
		{"cjk counts bytes", []string{"猫"}, []string{"猫"}},
		{"nil", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKeywords(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeKeywords(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeKeywords_Cap(t *testing.T) {
	var in []string
	for i := range 20 {
		in = append(in, fmt.Sprintf("kw%02d", i))
	}
	got := NormalizeKeywords(in)
	if len(got) != MaxKeywords {
		t.Fatalf("len = %d, want %d", len(got), MaxKeywords)
	}
	if got[MaxKeywords-1] != "kw11" {
		t.Errorf("last kept = %q, want kw11", got[MaxKeywords-1])
	}
}

func TestContainsSensitive(t *testing.T) {
	tests := []struct {
		content  string
		keywords []string
		want     bool
	}{
		{"likes green tea", []string{"tea"}, false},
		{"My PASSWORD is hunter2", nil, true},
		{"openai key sk-abc123", nil, true},
		{"harmless", []string{"api key"}, true},
		{"家里的密码是1234", nil, true},
		{"card CVV 123", nil, true},
		{"uses a yubikey", []string{"security"}, false},
	}
	for _, tt := range tests {
		if got := ContainsSensitive(tt.content, tt.keywords); got != tt.want {
			t.Errorf("ContainsSensitive(%q, %q) = %v, want %v", tt.content, tt.keywords, got, tt.want)
		}
	}
}

func TestContentKey(t *testing.T) {
	if ContentKey("  Likes\tGreen \n tea ") != ContentKey("likes green tea") {
		t.Error("content keys should match after whitespace and case folding")
	}
	if ContentKey("likes tea") == ContentKey("likes coffee") {
		t.Error("different content should not share a key")
	}
}
