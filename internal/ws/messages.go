package ws

import "encoding/json"

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "auctions/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// BidRequest is the body for "auctions/bid".
type BidRequest struct {
	AuctionID int64 `json:"auction_id"`
	BidPrice  int64 `json:"bid_price"`
}

// AuctionRequest is the body for "auctions/get".
type AuctionRequest struct {
	AuctionID int64 `json:"auction_id"`
}

// ErrorBody is returned for failures. Retryable bids may be resubmitted
// after refreshing the price.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

const (
	eventError        = "error"
	eventNotification = "notifications/new"
)
