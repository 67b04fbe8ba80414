package closer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"auctioncore/internal/notify"
	"auctioncore/internal/redis/locker"
	"auctioncore/internal/services/auction"
)

const (
	remindKeyPrefix = "auc_remind:"
	remindClaimTTL  = 2 * time.Minute

	DefaultReminderLead = 30 * time.Minute
	DefaultReminderBand = time.Minute
)

// Reminder warns the seller and bidders of auctions about to end. It never
// touches auction state.
type Reminder struct {
	store  auction.Store
	sink   notify.Sink
	claims locker.Locker

	lead time.Duration
	band time.Duration
	now  func() time.Time
}

func NewReminder(store auction.Store, sink notify.Sink, claims locker.Locker, lead, band time.Duration) *Reminder {
	if lead <= 0 {
		lead = DefaultReminderLead
	}
	if band <= 0 {
		band = DefaultReminderBand
	}
	return &Reminder{store: store, sink: sink, claims: claims, lead: lead, band: band, now: time.Now}
}

// Remind returns the number of auctions it sent reminders for.
func (r *Reminder) Remind(ctx context.Context) int {
	now := r.now()
	from := now.Add(r.lead)
	list, err := r.store.ListEndingBetween(ctx, from, from.Add(r.band))
	if err != nil {
		zap.L().Error("reminder.list", zap.Error(err))
		return 0
	}

	sent := 0
	for i := range list {
		a := &list[i]
		// a claim that outlives the band keeps the next pass from firing again
		_, ok, err := r.claims.TryAcquire(ctx, remindKeyPrefix+strconv.FormatInt(a.ID, 10), remindClaimTTL)
		if err != nil {
			zap.L().Warn("reminder.claim", zap.Int64("auction_id", a.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if r.remindOne(ctx, a) {
			sent++
		}
	}
	if sent > 0 {
		zap.L().Info("reminder.pass", zap.Int("auctions", sent))
	}
	return sent
}

func (r *Reminder) remindOne(ctx context.Context, a *auction.Auction) bool {
	bids, err := r.store.ListBids(ctx, a.ID)
	if err != nil {
		zap.L().Warn("reminder.bids", zap.Int64("auction_id", a.ID), zap.Error(err))
		return false
	}

	r.send(ctx, a.SellerID, notify.Message{
		Kind:   notify.KindEndingSoonSeller,
		ItemID: a.ID,
		Text:   fmt.Sprintf("Your auction %q ends in %s.", a.Title, r.lead),
	})

	leader, ok := auction.SelectWinner(bids)
	if !ok {
		return true
	}
	r.send(ctx, leader.BidderID, notify.Message{
		Kind:   notify.KindEndingSoonLeading,
		ItemID: a.ID,
		Text:   fmt.Sprintf("You are the highest bidder on %q at %d. It ends in %s.", a.Title, leader.Price, r.lead),
	})
	for _, bidder := range auction.DistinctBidders(bids) {
		if bidder == leader.BidderID {
			continue
		}
		r.send(ctx, bidder, notify.Message{
			Kind:   notify.KindEndingSoonBidder,
			ItemID: a.ID,
			Text:   fmt.Sprintf("%q ends in %s. The next bid must be at least %d.", a.Title, r.lead, a.MinNextBid()),
		})
	}
	return true
}

func (r *Reminder) send(ctx context.Context, recipientID int64, msg notify.Message) {
	if err := r.sink.Notify(ctx, recipientID, msg); err != nil {
		zap.L().Warn("reminder.notify",
			zap.Int64("auction_id", msg.ItemID),
			zap.Int64("recipient_id", recipientID),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
	}
}
