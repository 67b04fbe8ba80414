package auction

import (
	"math"
	"time"
)

type Status string

const (
	StatusBidding Status = "BIDDING"
	StatusSuccess Status = "SUCCESS"
	StatusFail    Status = "FAIL"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFail
}

type Auction struct {
	ID           int64      `json:"id"`
	SellerID     int64      `json:"seller_id"`
	WinnerID     *int64     `json:"winner_id,omitempty"`
	Title        string     `json:"title"`
	StartPrice   int64      `json:"start_price"`
	CurrentPrice int64      `json:"current_price"`
	BidIncrement int64      `json:"bid_increment"`
	BidCount     int        `json:"bid_count"`
	EndTime      time.Time  `json:"end_time"   example:"2025-07-27T16:05:05Z"`
	Status       Status     `json:"status"     example:"BIDDING"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// MinNextBid is the lowest price the next bid may carry. It saturates at
// math.MaxInt64 instead of wrapping.
func (a *Auction) MinNextBid() int64 {
	if a.CurrentPrice > math.MaxInt64-a.BidIncrement {
		return math.MaxInt64
	}
	return a.CurrentPrice + a.BidIncrement
}

// Accepts reports whether price clears the current price by at least one increment.
func (a *Auction) Accepts(price int64) bool {
	return price >= a.CurrentPrice && price-a.CurrentPrice >= a.BidIncrement
}

// Bid is a ledger entry. It is never updated or deleted once written.
type Bid struct {
	ID        int64     `json:"id"`
	TxID      string    `json:"transaction_id"`
	AuctionID int64     `json:"auction_id"`
	BidderID  int64     `json:"bidder_id"`
	Price     int64     `json:"bid_price"`
	PlacedAt  time.Time `json:"placed_at"`
}

type BidReceipt struct {
	TransactionID string        `json:"transaction_id"`
	PreviousPrice int64         `json:"previous_price"`
	NewPrice      int64         `json:"new_price"`
	BidCount      int           `json:"bid_count"`
	EndTime       time.Time     `json:"end_time"`
	Remaining     time.Duration `json:"remaining_ns"`
}

// Outcome is emitted once per terminal transition.
type Outcome struct {
	ItemID     int64     `json:"item_id"`
	Status     Status    `json:"status"`
	WinnerID   *int64    `json:"winner_id,omitempty"`
	FinalPrice int64     `json:"final_price"`
	SellerID   int64     `json:"seller_id"`
	Title      string    `json:"title"`
	ResolvedAt time.Time `json:"resolved_at"`
}
