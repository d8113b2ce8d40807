package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sergey214/socrates-bot2/internal/models"
)

// MemoryStore keeps histories in process memory. Idle users are evicted
// after the configured TTL; every Append refreshes the expiration.
type MemoryStore struct {
	histories *cache.Cache
	window    int
	mu        sync.Mutex
}

// NewMemoryStore creates the in-memory backend.
func NewMemoryStore(window int, idleTTL time.Duration) *MemoryStore {
	cleanup := idleTTL / 2
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MemoryStore{
		histories: cache.New(idleTTL, cleanup),
		window:    window,
	}
}

func historyKey(userID int64) string {
	return fmt.Sprintf("history:%d", userID)
}

func (s *MemoryStore) Append(ctx context.Context, userID int64, turn models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.load(userID)
	turns = append(turns, turn)
	s.histories.SetDefault(historyKey(userID), trimWindow(turns, s.window))
	return nil
}

func (s *MemoryStore) History(ctx context.Context, userID int64) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.load(userID)
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.histories.Delete(historyKey(userID))
	return nil
}

func (s *MemoryStore) load(userID int64) []models.Turn {
	if val, found := s.histories.Get(historyKey(userID)); found {
		return val.([]models.Turn)
	}
	return nil
}
