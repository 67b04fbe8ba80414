// Package outcome carries resolution outcomes from the closer to side-effect consumers.
// Publish is called only after the terminal status is committed; consumers run
// independently and their failures never reach the publisher.
package outcome

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"auctioncore/internal/services/auction"
)

type Publisher interface {
	Publish(ctx context.Context, o auction.Outcome) error
}

// Handler reacts to one outcome. Delivery is at-least-once, so handlers must
// tolerate seeing the same outcome twice.
type Handler interface {
	Handle(ctx context.Context, o auction.Outcome) error
}

type HandlerFunc func(ctx context.Context, o auction.Outcome) error

func (f HandlerFunc) Handle(ctx context.Context, o auction.Outcome) error { return f(ctx, o) }

// Retry controls the best-effort redelivery of a failing handler.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

var DefaultRetry = Retry{Attempts: 3, Delay: 200 * time.Millisecond}

// deliver runs h until it succeeds or the attempts are spent, doubling the delay
// between tries.
func deliver(ctx context.Context, name string, h Handler, o auction.Outcome, r Retry) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.Delay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			return h.Handle(ctx, o)
		},
		policy,
		func(err error, wait time.Duration) {
			zap.L().Warn("outcome.handler_failed",
				zap.String("consumer", name),
				zap.Int64("item_id", o.ItemID),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		},
	)
}
