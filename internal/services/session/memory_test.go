package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sergey214/socrates-bot2/internal/models"
)

func TestWindowNeverExceeded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, time.Hour)

	for i := 0; i < 25; i++ {
		turn := models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("turn %d", i)}
		if err := store.Append(ctx, 1, turn); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		history, err := store.History(ctx, 1)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(history) > 10 {
			t.Fatalf("window exceeded after %d appends: %d turns", i+1, len(history))
		}
	}
}

func TestWindowDropsOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3, time.Hour)

	for i := 0; i < 5; i++ {
		store.Append(ctx, 1, models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}

	history, err := store.History(ctx, 1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(history))
	}
	for i, want := range []string{"turn 2", "turn 3", "turn 4"} {
		if history[i].Content != want {
			t.Fatalf("turn %d: expected %q, got %q", i, want, history[i].Content)
		}
	}
}

func TestHistoryUnknownUserIsEmpty(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)

	history, err := store.History(context.Background(), 42)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(history))
	}
}

func TestClearAffectsOnlyOneUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, time.Hour)

	store.Append(ctx, 1, models.Turn{Role: models.RoleUser, Content: "a"})
	store.Append(ctx, 2, models.Turn{Role: models.RoleUser, Content: "b"})

	if err := store.Clear(ctx, 1); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if h, _ := store.History(ctx, 1); len(h) != 0 {
		t.Fatalf("user 1 history should be empty, got %d turns", len(h))
	}
	if h, _ := store.History(ctx, 2); len(h) != 1 {
		t.Fatalf("user 2 history should be untouched, got %d turns", len(h))
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, time.Hour)

	store.Append(ctx, 1, models.Turn{Role: models.RoleUser, Content: "original"})

	history, _ := store.History(ctx, 1)
	history[0].Content = "mutated"

	fresh, _ := store.History(ctx, 1)
	if fresh[0].Content != "original" {
		t.Fatalf("stored history was mutated through the returned slice")
	}
}
