package broadcast

import (
	"context"
	"time"

	"github.com/sergey214/socrates-bot2/internal/models"
	"github.com/sergey214/socrates-bot2/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// Sender delivers one message to one user over the messaging channel.
type Sender func(userID int64, text string) error

// Dispatcher fans an admin message out to every non-blocked user. Sends are
// sequential with a fixed pause between them to stay under channel-level
// throughput limits; per-recipient failures are tallied, never escalated.
// Authorization is the caller's responsibility.
type Dispatcher struct {
	store  *storage.Gateway
	send   Sender
	delay  time.Duration
	logger *logrus.Logger
}

// NewDispatcher creates the dispatcher.
func NewDispatcher(store *storage.Gateway, send Sender, delay time.Duration, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		send:   send,
		delay:  delay,
		logger: logger,
	}
}

// Broadcast sends text to all known non-blocked users and returns the
// sent/failed tallies. sent+failed always equals the recipient count.
func (d *Dispatcher) Broadcast(ctx context.Context, text string) models.BroadcastResult {
	var result models.BroadcastResult

	ids := d.store.AllUserIDs(ctx)
	for i, userID := range ids {
		if err := d.send(userID, text); err != nil {
			result.Failed++
			d.logger.WithError(err).WithField("user_id", userID).Warn("Broadcast delivery failed")
		} else {
			result.Sent++
		}

		if i < len(ids)-1 {
			select {
			case <-ctx.Done():
				// Remaining recipients count as failed so the tallies
				// still cover every recipient of this run.
				result.Failed += len(ids) - i - 1
				return result
			case <-time.After(d.delay):
			}
		}
	}

	d.logger.WithFields(logrus.Fields{
		"sent":   result.Sent,
		"failed": result.Failed,
	}).Info("Broadcast finished")
	return result
}
