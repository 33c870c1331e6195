package telegram

import (
	"strings"
	"testing"
)

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("line one\n", 20)
	got := splitTelegramText(text, 50)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if len([]rune(chunk)) > 50 {
			t.Fatalf("chunk %d too long: %d runes", i, len([]rune(chunk)))
		}
		if strings.HasPrefix(chunk, "\n") || strings.HasSuffix(chunk, "\n") {
			t.Fatalf("chunk %d has dangling newline: %q", i, chunk)
		}
	}
	// Content survives the split.
	joined := strings.Join(got, "\n") + "\n"
	if strings.Count(joined, "line one") != 20 {
		t.Fatalf("content lost: %q", joined)
	}
}

func TestSplitTelegramTextNoNewlines(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 120)
	got := splitTelegramText(text, 50)
	total := 0
	for _, chunk := range got {
		if len(chunk) > 50 {
			t.Fatalf("chunk too long: %d", len(chunk))
		}
		total += len(chunk)
	}
	if total != 120 {
		t.Fatalf("content length = %d, want 120", total)
	}
}
