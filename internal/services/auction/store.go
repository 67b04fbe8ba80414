package auction

import (
	"context"
	"time"
)

// Store persists auctions and their bid ledger.
type Store interface {
	CreateAuction(ctx context.Context, a *Auction) error
	GetAuction(ctx context.Context, id int64) (*Auction, error)
	ListAuctions(ctx context.Context, status Status, limit, offset int) ([]Auction, error)
	// ListBids returns the ledger ordered by placement time.
	ListBids(ctx context.Context, auctionID int64) ([]Bid, error)
	// ListExpired returns ids of BIDDING auctions whose end time is not after now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]int64, error)
	// ListEndingBetween returns BIDDING auctions with from <= end time < to.
	ListEndingBetween(ctx context.Context, from, to time.Time) ([]Auction, error)

	// WithAuctionLock runs fn while holding the exclusive lock on one auction.
	// Writes made through tx are committed only if fn returns nil.
	WithAuctionLock(ctx context.Context, id int64, fn func(tx Tx) error) error
}

// Tx is the view of one locked auction handed to WithAuctionLock callbacks.
type Tx interface {
	Auction() Auction
	Bids(ctx context.Context) ([]Bid, error)
	InsertBid(ctx context.Context, b *Bid) error
	SetCurrentPrice(ctx context.Context, price int64, bidCount int) error
	// Resolve moves a BIDDING auction to a terminal status and rewrites the cached
	// price and bid count from the ledger.
	Resolve(ctx context.Context, status Status, winnerID *int64, finalPrice int64, bidCount int, at time.Time) error
}
