package middleware

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestCooldownDeniesSecondRequest(t *testing.T) {
	limiter := NewCooldownLimiter(time.Minute, testLogger())

	if !limiter.Allow(1) {
		t.Fatalf("first request should be allowed")
	}
	if limiter.Allow(1) {
		t.Fatalf("second request within cooldown should be denied")
	}
	// Denial must not restamp the window.
	if limiter.Allow(1) {
		t.Fatalf("third request within cooldown should still be denied")
	}
}

func TestCooldownAllowsAfterInterval(t *testing.T) {
	limiter := NewCooldownLimiter(100*time.Millisecond, testLogger())

	if !limiter.Allow(1) {
		t.Fatalf("first request should be allowed")
	}
	if limiter.Allow(1) {
		t.Fatalf("immediate second request should be denied")
	}

	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow(1) {
		t.Fatalf("request after cooldown should be allowed")
	}
}

func TestCooldownIsPerUser(t *testing.T) {
	limiter := NewCooldownLimiter(time.Minute, testLogger())

	if !limiter.Allow(1) {
		t.Fatalf("first request for user 1 should be allowed")
	}
	if !limiter.Allow(2) {
		t.Fatalf("first request for user 2 should be allowed")
	}
	if limiter.Allow(1) || limiter.Allow(2) {
		t.Fatalf("repeat requests within cooldown should be denied for both users")
	}
}

func TestResetForgetsUser(t *testing.T) {
	limiter := NewCooldownLimiter(time.Minute, testLogger())

	limiter.Allow(1)
	limiter.Reset(1)

	if !limiter.Allow(1) {
		t.Fatalf("request after reset should be allowed")
	}
}
