package openai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSummarizeNoteFallback(t *testing.T) {
	t.Parallel()
	client := New("")
	ctx := context.Background()
	note := strings.Repeat("bring the printed ticket and arrive early ", 4)

	summary, err := client.SummarizeNote(ctx, note)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(summary, "...") || len([]rune(summary)) != fallbackLength+3 {
		t.Fatalf("expected truncated summary, got %q", summary)
	}
}

func TestSummarizeNoteShortFallback(t *testing.T) {
	t.Parallel()
	summary, err := New("").SummarizeNote(context.Background(), "  door 3  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "door 3" {
		t.Fatalf("unexpected summary %q", summary)
	}
}

func TestSummarizeNoteEmpty(t *testing.T) {
	t.Parallel()
	if _, err := New("").SummarizeNote(context.Background(), " "); !errors.Is(err, ErrEmptyNote) {
		t.Fatalf("expected ErrEmptyNote, got %v", err)
	}
}
