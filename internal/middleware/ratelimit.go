package middleware

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter is the per-user cooldown gate.
type RateLimiter interface {
	Allow(userID int64) bool
	Reset(userID int64)
}

// CooldownLimiter accepts at most one request per cooldown interval per
// user. A token bucket with burst 1 refilling every cooldown is exactly
// that: acceptance consumes the token and restamps the window atomically,
// denial leaves state untouched.
type CooldownLimiter struct {
	limiters map[int64]*rate.Limiter
	mu       sync.RWMutex
	cooldown time.Duration
	logger   *logrus.Logger
}

// NewCooldownLimiter creates the limiter.
func NewCooldownLimiter(cooldown time.Duration, logger *logrus.Logger) *CooldownLimiter {
	l := &CooldownLimiter{
		limiters: make(map[int64]*rate.Limiter),
		cooldown: cooldown,
		logger:   logger,
	}
	go l.cleanup()
	return l
}

// Allow reports whether the user may make a request now.
func (l *CooldownLimiter) Allow(userID int64) bool {
	allowed := l.getLimiter(userID).Allow()
	if !allowed {
		l.logger.WithField("user_id", userID).Debug("Request paced")
	}
	return allowed
}

// Reset forgets the user's pacing state.
func (l *CooldownLimiter) Reset(userID int64) {
	l.mu.Lock()
	delete(l.limiters, userID)
	l.mu.Unlock()
}

func (l *CooldownLimiter) getLimiter(userID int64) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[userID]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring the write lock.
	if limiter, exists := l.limiters[userID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Every(l.cooldown), 1)
	l.limiters[userID] = limiter
	return limiter
}

func (l *CooldownLimiter) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		if len(l.limiters) > 10000 {
			l.logger.Warn("Rate limiter map size exceeded threshold, clearing")
			l.limiters = make(map[int64]*rate.Limiter)
		}
		l.mu.Unlock()
	}
}
