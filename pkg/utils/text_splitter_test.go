package utils

import (
	"strings"
	"testing"
)

func TestSplitTextShortInput(t *testing.T) {
	chunks := SplitText("short text", 100, 20)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Errorf("expected single chunk, got %v", chunks)
	}
}

func TestSplitTextOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30) // 300 chars
	chunks := SplitText(text, 100, 20)

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d exceeds size: %d", i, len(c))
		}
	}
	// Consecutive chunks share the overlap region.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Error("second chunk does not start with first chunk's overlap")
	}
}

func TestSplitTextDegenerateOverlap(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := SplitText(text, 100, 100)

	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(c)
	}
	if !strings.Contains(rebuilt.String(), strings.Repeat("x", 250)) {
		t.Error("content lost when overlap equals chunk size")
	}
}
