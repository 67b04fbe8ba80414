// Package closer resolves expired auctions and sends pre-expiry reminders.
package closer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/viney-shih/goroutines"
	"go.uber.org/zap"

	"auctioncore/internal/outcome"
	"auctioncore/internal/redis/locker"
	"auctioncore/internal/services/auction"
)

const (
	lockKeyPrefix = "auc_lock:"

	DefaultBatchSize   = 500
	DefaultParallelism = 8
	DefaultLockTTL     = 30 * time.Second
)

type SweepReport struct {
	Candidates int
	Resolved   int
	Skipped    int
	Failed     int
}

type Option func(*Closer)

func WithClock(now func() time.Time) Option {
	return func(c *Closer) { c.now = now }
}

func WithBatchSize(n int) Option {
	return func(c *Closer) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithParallelism(n int) Option {
	return func(c *Closer) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

func WithLockTTL(ttl time.Duration) Option {
	return func(c *Closer) {
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

type Closer struct {
	store  auction.Store
	pub    outcome.Publisher
	leases locker.Locker

	now         func() time.Time
	batchSize   int
	parallelism int
	lockTTL     time.Duration
}

func New(store auction.Store, pub outcome.Publisher, leases locker.Locker, opts ...Option) *Closer {
	c := &Closer{
		store:       store,
		pub:         pub,
		leases:      leases,
		now:         time.Now,
		batchSize:   DefaultBatchSize,
		parallelism: DefaultParallelism,
		lockTTL:     DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type resolveResult struct {
	id       int64
	resolved bool
}

// Sweep resolves every auction that has passed its end time. One failing auction
// never stops the others; it stays BIDDING and is picked up by the next sweep.
func (c *Closer) Sweep(ctx context.Context) SweepReport {
	now := c.now()
	ids, err := c.store.ListExpired(ctx, now, c.batchSize)
	if err != nil {
		zap.L().Error("closer.list_expired", zap.Error(err))
		return SweepReport{}
	}
	report := SweepReport{Candidates: len(ids)}
	if len(ids) == 0 {
		return report
	}

	b := goroutines.NewBatch(c.parallelism, goroutines.WithBatchSize(len(ids)))
	defer b.Close()
	for _, id := range ids {
		id := id
		b.Queue(func() (res interface{}, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("auction %d: panic: %v", id, r)
				}
			}()
			out, err := c.Resolve(ctx, id, now)
			if err != nil {
				return nil, fmt.Errorf("auction %d: %w", id, err)
			}
			return resolveResult{id: id, resolved: out != nil}, nil
		})
	}
	b.QueueComplete()

	for ret := range b.Results() {
		if err := ret.Error(); err != nil {
			report.Failed++
			zap.L().Error("closer.resolve_failed", zap.Error(err))
			continue
		}
		if r, ok := ret.Value().(resolveResult); ok && r.resolved {
			report.Resolved++
		} else {
			report.Skipped++
		}
	}

	zap.L().Info("closer.sweep",
		zap.Int("candidates", report.Candidates),
		zap.Int("resolved", report.Resolved),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report
}

// Resolve moves one expired auction to SUCCESS or FAIL and publishes the outcome.
// It returns nil, nil when there was nothing to do: another worker holds the
// auction, it is already terminal, or it has not ended yet.
func (c *Closer) Resolve(ctx context.Context, id int64, now time.Time) (*auction.Outcome, error) {
	lease, ok, err := c.leases.TryAcquire(ctx, lockKeyPrefix+strconv.FormatInt(id, 10), c.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		zap.L().Debug("closer.lease_busy", zap.Int64("auction_id", id))
		return nil, nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			zap.L().Warn("closer.lease_release", zap.Int64("auction_id", id), zap.Error(err))
		}
	}()

	var out *auction.Outcome
	err = c.store.WithAuctionLock(ctx, id, func(tx auction.Tx) error {
		a := tx.Auction()
		if a.Status.Terminal() || now.Before(a.EndTime) {
			return nil
		}

		bids, err := tx.Bids(ctx)
		if err != nil {
			return fmt.Errorf("read bids: %w", err)
		}

		status := auction.StatusFail
		finalPrice := a.StartPrice
		var winnerID *int64
		if top, ok := auction.SelectWinner(bids); ok {
			status = auction.StatusSuccess
			finalPrice = top.Price
			winnerID = &top.BidderID
		}
		// the ledger wins over the cached price and count
		if finalPrice != a.CurrentPrice || len(bids) != a.BidCount {
			zap.L().Warn("closer.ledger_divergence",
				zap.Int64("auction_id", id),
				zap.Int64("cached_price", a.CurrentPrice),
				zap.Int64("ledger_price", finalPrice),
				zap.Int("cached_bid_count", a.BidCount),
				zap.Int("ledger_bid_count", len(bids)),
			)
		}

		resolvedAt := now.UTC()
		if err := tx.Resolve(ctx, status, winnerID, finalPrice, len(bids), resolvedAt); err != nil {
			if errors.Is(err, auction.ErrAlreadyResolved) {
				return nil
			}
			return fmt.Errorf("resolve: %w", err)
		}
		out = &auction.Outcome{
			ItemID:     id,
			Status:     status,
			WinnerID:   winnerID,
			FinalPrice: finalPrice,
			SellerID:   a.SellerID,
			Title:      a.Title,
			ResolvedAt: resolvedAt,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, auction.ErrAuctionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if out == nil {
		return nil, nil
	}

	zap.L().Info("closer.resolved",
		zap.Int64("auction_id", id),
		zap.String("status", string(out.Status)),
		zap.Int64("final_price", out.FinalPrice),
	)

	// the transition is committed; a lost outcome is logged, not rolled back
	if err := c.pub.Publish(ctx, *out); err != nil {
		zap.L().Error("closer.publish_failed", zap.Int64("auction_id", id), zap.Error(err))
	}
	return out, nil
}
