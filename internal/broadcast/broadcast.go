// Package broadcast fans a message out to many users with bounded
// concurrency. Delivery is best-effort: each recipient gets a few attempts
// and failures only affect the final tally.
package broadcast

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Sender delivers one text to one user. The front end implements it over the
// bot platform.
type Sender interface {
	SendText(ctx context.Context, userID int64, text string) error
}

type Result struct {
	Sent   int
	Failed int
}

type Broadcaster struct {
	sender      Sender
	concurrency int
	maxRetries  int
	delay       time.Duration
}

func New(sender Sender, concurrency, maxRetries int, delay time.Duration) *Broadcaster {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Broadcaster{
		sender:      sender,
		concurrency: concurrency,
		maxRetries:  maxRetries,
		delay:       delay,
	}
}

// Send pushes text to every user id. A recipient is retried up to the
// attempt cap and then counted as failed; one bad recipient never aborts
// the run. Context cancellation stops scheduling new sends.
func (b *Broadcaster) Send(ctx context.Context, userIDs []int64, text string) Result {
	var sent, failed int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, userID := range userIDs {
		userID := userID
		if ctx.Err() != nil {
			atomic.AddInt64(&failed, 1)
			continue
		}
		g.Go(func() error {
			if b.sendWithRetry(ctx, userID, text) {
				atomic.AddInt64(&sent, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Sent: int(sent), Failed: int(failed)}
	log.WithFields(log.Fields{"sent": result.Sent, "failed": result.Failed}).Info("broadcast finished")
	return result
}

func (b *Broadcaster) sendWithRetry(ctx context.Context, userID int64, text string) bool {
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		err := b.sender.SendText(ctx, userID, text)
		if err == nil {
			return true
		}
		if attempt == b.maxRetries {
			log.WithError(err).WithField("user_id", userID).Warn("broadcast recipient gave up")
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(b.delay):
		}
	}
	return false
}
