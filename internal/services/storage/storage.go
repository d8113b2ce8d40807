package storage

import (
	"context"
	"fmt"

	"github.com/sergey214/socrates-bot2/internal/config"
	"github.com/sergey214/socrates-bot2/internal/models"
	"github.com/sirupsen/logrus"
)

// Store is the durable backend behind the Gateway.
type Store interface {
	SaveUser(ctx context.Context, user *models.User) error
	BlockUser(ctx context.Context, userID int64) error
	IncrementQuestionCount(ctx context.Context, userID int64) error
	SaveQuestion(ctx context.Context, userID int64, question, answer string) (int64, error)
	SaveRating(ctx context.Context, questionID int64, rating int) error
	UserStats(ctx context.Context, userID int64) (*models.UserStats, error)
	GlobalStats(ctx context.Context) (*models.GlobalStats, error)
	AllUserIDs(ctx context.Context) ([]int64, error)
	Close() error
}

// ErrUnknownQuestion rejects ratings for ids that were never answered.
var ErrUnknownQuestion = fmt.Errorf("unknown question id")

// Gateway fronts the durable store. Every failure is logged and swallowed
// here: callers get zero-valued defaults and the bot keeps running with
// in-memory behavior only. With storage.type "none" the noop backend is
// installed and the same contract holds trivially.
type Gateway struct {
	store  Store
	logger *logrus.Logger
}

// NewGateway builds the configured backend.
func NewGateway(cfg *config.StorageConfig, logger *logrus.Logger) (*Gateway, error) {
	var store Store
	switch cfg.Type {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		store = s
	case "none":
		store = NewNoopStore()
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	return &Gateway{store: store, logger: logger}, nil
}

// NewGatewayWith wraps an existing backend (used by tests).
func NewGatewayWith(store Store, logger *logrus.Logger) *Gateway {
	return &Gateway{store: store, logger: logger}
}

func (g *Gateway) SaveUser(ctx context.Context, user *models.User) {
	if err := g.store.SaveUser(ctx, user); err != nil {
		g.logger.WithError(err).WithField("user_id", user.ID).Error("Failed to save user")
	}
}

func (g *Gateway) BlockUser(ctx context.Context, userID int64) {
	if err := g.store.BlockUser(ctx, userID); err != nil {
		g.logger.WithError(err).WithField("user_id", userID).Error("Failed to block user")
	}
}

func (g *Gateway) IncrementQuestionCount(ctx context.Context, userID int64) {
	if err := g.store.IncrementQuestionCount(ctx, userID); err != nil {
		g.logger.WithError(err).WithField("user_id", userID).Error("Failed to increment question count")
	}
}

// SaveQuestion returns the new question id, or 0 when persistence is
// absent or failing. Callers use 0 to skip the rating affordance.
func (g *Gateway) SaveQuestion(ctx context.Context, userID int64, question, answer string) int64 {
	id, err := g.store.SaveQuestion(ctx, userID, question, answer)
	if err != nil {
		g.logger.WithError(err).WithField("user_id", userID).Error("Failed to save question")
		return 0
	}
	return id
}

// SaveRating writes the rating for an existing question, last write wins.
// Returns false for unknown ids so replayed callback data writes nothing.
func (g *Gateway) SaveRating(ctx context.Context, questionID int64, rating int) bool {
	if err := g.store.SaveRating(ctx, questionID, rating); err != nil {
		g.logger.WithError(err).WithField("question_id", questionID).Warn("Failed to save rating")
		return false
	}
	return true
}

func (g *Gateway) UserStats(ctx context.Context, userID int64) *models.UserStats {
	stats, err := g.store.UserStats(ctx, userID)
	if err != nil {
		g.logger.WithError(err).WithField("user_id", userID).Error("Failed to load user stats")
		return &models.UserStats{UserID: userID}
	}
	return stats
}

func (g *Gateway) GlobalStats(ctx context.Context) *models.GlobalStats {
	stats, err := g.store.GlobalStats(ctx)
	if err != nil {
		g.logger.WithError(err).Error("Failed to load global stats")
		return &models.GlobalStats{}
	}
	return stats
}

func (g *Gateway) AllUserIDs(ctx context.Context) []int64 {
	ids, err := g.store.AllUserIDs(ctx)
	if err != nil {
		g.logger.WithError(err).Error("Failed to list user ids")
		return nil
	}
	return ids
}

func (g *Gateway) Close() error {
	return g.store.Close()
}
