package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sergey214/socrates-bot2/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveUserUpsertPreservesCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user := &models.User{ID: 1, Username: "sergey", FirstName: "Сергей"}
	if err := store.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	if err := store.IncrementQuestionCount(ctx, 1); err != nil {
		t.Fatalf("IncrementQuestionCount failed: %v", err)
	}

	// A second upsert must not reset the question count.
	user.FirstName = "Serge"
	if err := store.SaveUser(ctx, user); err != nil {
		t.Fatalf("second SaveUser failed: %v", err)
	}

	stats, err := store.UserStats(ctx, 1)
	if err != nil {
		t.Fatalf("UserStats failed: %v", err)
	}
	if stats.QuestionsCount != 1 {
		t.Fatalf("expected question count 1 after upsert, got %d", stats.QuestionsCount)
	}
}

func TestSaveQuestionReturnsUsableID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.SaveUser(ctx, &models.User{ID: 1, FirstName: "A"})

	id, err := store.SaveQuestion(ctx, 1, "Что будет за кражу?", "Статья 158 УК РФ...")
	if err != nil {
		t.Fatalf("SaveQuestion failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive question id, got %d", id)
	}

	if err := store.SaveRating(ctx, id, 5); err != nil {
		t.Fatalf("SaveRating failed: %v", err)
	}
}

func TestSaveRatingLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.SaveUser(ctx, &models.User{ID: 1, FirstName: "A"})
	id, _ := store.SaveQuestion(ctx, 1, "q", "a")

	if err := store.SaveRating(ctx, id, 1); err != nil {
		t.Fatalf("first SaveRating failed: %v", err)
	}
	if err := store.SaveRating(ctx, id, 5); err != nil {
		t.Fatalf("second SaveRating failed: %v", err)
	}

	stats, err := store.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("GlobalStats failed: %v", err)
	}
	if stats.AvgRating != 5 {
		t.Fatalf("expected avg rating 5 after overwrite, got %v", stats.AvgRating)
	}
}

func TestSaveRatingUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.SaveRating(ctx, 12345, 5)
	if !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestGlobalStatsIgnoresNullRatings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.SaveUser(ctx, &models.User{ID: 1, FirstName: "A"})
	rated, _ := store.SaveQuestion(ctx, 1, "q1", "a1")
	store.SaveQuestion(ctx, 1, "q2", "a2") // never rated
	store.SaveRating(ctx, rated, 5)

	stats, err := store.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("GlobalStats failed: %v", err)
	}
	if stats.TotalQuestions != 2 {
		t.Fatalf("expected 2 questions, got %d", stats.TotalQuestions)
	}
	if stats.AvgRating != 5 {
		t.Fatalf("avg rating should reflect only non-null ratings, got %v", stats.AvgRating)
	}
}

func TestAllUserIDsExcludesBlocked(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.SaveUser(ctx, &models.User{ID: 1, FirstName: "A"})
	store.SaveUser(ctx, &models.User{ID: 2, FirstName: "B"})
	store.SaveUser(ctx, &models.User{ID: 3, FirstName: "C"})
	if err := store.BlockUser(ctx, 2); err != nil {
		t.Fatalf("BlockUser failed: %v", err)
	}

	ids, err := store.AllUserIDs(ctx)
	if err != nil {
		t.Fatalf("AllUserIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 non-blocked users, got %d", len(ids))
	}
	for _, id := range ids {
		if id == 2 {
			t.Fatalf("blocked user present in broadcast list")
		}
	}
}

func TestGlobalStatsTopUsers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.SaveUser(ctx, &models.User{ID: 1, FirstName: "A"})
	store.SaveUser(ctx, &models.User{ID: 2, FirstName: "B"})
	for i := 0; i < 3; i++ {
		store.IncrementQuestionCount(ctx, 2)
	}
	store.IncrementQuestionCount(ctx, 1)

	stats, err := store.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("GlobalStats failed: %v", err)
	}
	if len(stats.TopUsers) != 2 {
		t.Fatalf("expected 2 top users, got %d", len(stats.TopUsers))
	}
	if stats.TopUsers[0].UserID != 2 || stats.TopUsers[0].QuestionsCount != 3 {
		t.Fatalf("unexpected leaderboard head: %+v", stats.TopUsers[0])
	}
}
