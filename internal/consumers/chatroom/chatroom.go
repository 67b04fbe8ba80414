// Package chatroom opens the seller/winner chat after a successful auction.
package chatroom

import (
	"context"

	"go.uber.org/zap"

	"auctioncore/internal/chat"
	"auctioncore/internal/outcome"
	"auctioncore/internal/services/auction"
)

type Opener struct {
	rooms chat.Provisioner
}

var _ outcome.Handler = (*Opener)(nil)

func New(rooms chat.Provisioner) *Opener {
	return &Opener{rooms: rooms}
}

func (o *Opener) Handle(ctx context.Context, out auction.Outcome) error {
	if out.Status != auction.StatusSuccess || out.WinnerID == nil {
		return nil
	}
	chatID, err := o.rooms.Provision(ctx, out.ItemID, out.SellerID, *out.WinnerID)
	if err != nil {
		return err
	}
	zap.L().Info("chatroom.opened",
		zap.Int64("item_id", out.ItemID),
		zap.Int64("chat_id", chatID),
		zap.Int64("seller_id", out.SellerID),
		zap.Int64("buyer_id", *out.WinnerID),
	)
	return nil
}
