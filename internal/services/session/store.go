package session

import (
	"context"
	"fmt"

	"github.com/sergey214/socrates-bot2/internal/config"
	"github.com/sergey214/socrates-bot2/internal/models"
	"github.com/sirupsen/logrus"
)

// Store keeps the bounded per-user conversation window. After Append the
// window holds at most the configured number of turns, oldest dropped first.
// History for an unknown user is empty, not an error.
type Store interface {
	Append(ctx context.Context, userID int64, turn models.Turn) error
	History(ctx context.Context, userID int64) ([]models.Turn, error)
	Clear(ctx context.Context, userID int64) error
}

// NewStore builds the configured session backend.
func NewStore(cfg *config.SessionConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(cfg.Window, cfg.IdleTTL), nil
	case "redis":
		return NewRedisStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

func trimWindow(turns []models.Turn, window int) []models.Turn {
	if len(turns) > window {
		return turns[len(turns)-window:]
	}
	return turns
}
