package outcome

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"auctioncore/internal/services/auction"
)

var ErrBusClosed = errors.New("outcome bus closed")

// Bus is the in-process transport: every subscriber owns a buffered channel and a
// goroutine, so a slow or failing consumer never blocks the others.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscriber
	buffer int
	retry  Retry
	closed bool
	wg     sync.WaitGroup
}

type subscriber struct {
	name string
	ch   chan auction.Outcome
}

var _ Publisher = (*Bus)(nil)

func NewBus(buffer int, retry Retry) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{buffer: buffer, retry: retry}
}

// Subscribe starts a consumer goroutine. It runs until Close drains its channel;
// handlers keep ctx's values but not its cancellation, so outcomes queued before
// shutdown are still delivered.
func (b *Bus) Subscribe(ctx context.Context, name string, h Handler) {
	hctx := context.WithoutCancel(ctx)
	sub := &subscriber{name: name, ch: make(chan auction.Outcome, b.buffer)}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for o := range sub.ch {
			if err := deliver(hctx, name, h, o, b.retry); err != nil {
				zap.L().Error("outcome.dropped",
					zap.String("consumer", name),
					zap.Int64("item_id", o.ItemID),
					zap.Error(err),
				)
			}
		}
	}()
}

func (b *Bus) Publish(ctx context.Context, o auction.Outcome) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- o:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops accepting outcomes and waits for subscribers to finish what is queued.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
