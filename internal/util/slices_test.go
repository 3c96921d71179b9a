package util

import (
	"strings"
	"testing"
)

func TestFindFirst(t *testing.T) {
	notBlank := func(s string) bool { return strings.TrimSpace(s) != "" }

	tests := []struct {
		name     string
		slice    []string
		expected string
		found    bool
	}{
		{
			name:     "first element",
			slice:    []string{"wss://a", "wss://b"},
			expected: "wss://a",
			found:    true,
		},
		{
			name:     "skips blanks",
			slice:    []string{"", "  ", "wss://c"},
			expected: "wss://c",
			found:    true,
		},
		{
			name:  "only blanks",
			slice: []string{"", " "},
		},
		{
			name: "nil slice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, found := FindFirst(tt.slice, notBlank)
			if result != tt.expected || found != tt.found {
				t.Errorf("FindFirst() = (%q, %v), want (%q, %v)", result, found, tt.expected, tt.found)
			}
		})
	}
}
