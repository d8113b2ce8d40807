package storage

import (
	"context"

	"github.com/sergey214/socrates-bot2/internal/models"
)

// NoopStore is installed when no durable store is configured. The bot stays
// fully functional; durability, statistics and ratings are simply lost.
type NoopStore struct{}

func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (n *NoopStore) SaveUser(ctx context.Context, user *models.User) error { return nil }

func (n *NoopStore) BlockUser(ctx context.Context, userID int64) error { return nil }

func (n *NoopStore) IncrementQuestionCount(ctx context.Context, userID int64) error { return nil }

func (n *NoopStore) SaveQuestion(ctx context.Context, userID int64, question, answer string) (int64, error) {
	return 0, nil
}

func (n *NoopStore) SaveRating(ctx context.Context, questionID int64, rating int) error {
	return ErrUnknownQuestion
}

func (n *NoopStore) UserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	return &models.UserStats{UserID: userID}, nil
}

func (n *NoopStore) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	return &models.GlobalStats{}, nil
}

func (n *NoopStore) AllUserIDs(ctx context.Context) ([]int64, error) { return nil, nil }

func (n *NoopStore) Close() error { return nil }
