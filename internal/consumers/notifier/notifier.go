// Package notifier turns resolution outcomes into seller/winner notifications.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"auctioncore/internal/notify"
	"auctioncore/internal/outcome"
	"auctioncore/internal/services/auction"
)

type Notifier struct {
	sink notify.Sink
}

var _ outcome.Handler = (*Notifier)(nil)

func New(sink notify.Sink) *Notifier {
	return &Notifier{sink: sink}
}

func (n *Notifier) Handle(ctx context.Context, o auction.Outcome) error {
	switch o.Status {
	case auction.StatusSuccess:
		if o.WinnerID == nil {
			return fmt.Errorf("outcome %d: success without winner", o.ItemID)
		}
		// both messages are attempted even if the first fails
		errSeller := n.sink.Notify(ctx, o.SellerID, notify.Message{
			Kind:   notify.KindAuctionSold,
			ItemID: o.ItemID,
			Text:   fmt.Sprintf("Your auction %q sold for %d.", o.Title, o.FinalPrice),
		})
		errWinner := n.sink.Notify(ctx, *o.WinnerID, notify.Message{
			Kind:   notify.KindAuctionWon,
			ItemID: o.ItemID,
			Text:   fmt.Sprintf("You won %q for %d.", o.Title, o.FinalPrice),
		})
		return errors.Join(errSeller, errWinner)

	case auction.StatusFail:
		return n.sink.Notify(ctx, o.SellerID, notify.Message{
			Kind:   notify.KindAuctionUnsold,
			ItemID: o.ItemID,
			Text:   fmt.Sprintf("Your auction %q ended without any bids.", o.Title),
		})
	}
	return fmt.Errorf("outcome %d: unexpected status %q", o.ItemID, o.Status)
}
