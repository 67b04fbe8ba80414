package auctionhandler

import (
	"time"

	"auctioncore/internal/services/auction"
)

type CreateAuctionBody struct {
	Title      string    `json:"title"       binding:"required,max=200"  example:"Film camera"`
	StartPrice int64     `json:"start_price" binding:"required,gt=0,lte=1000000000000" example:"1000"`
	EndTime    time.Time `json:"end_time"    binding:"required"         example:"2025-07-27T16:05:05Z"`
} // @name CreateAuctionRequest

type PlaceBidBody struct {
	BidPrice int64 `json:"bid_price" binding:"required,gt=0,lte=1000000000000" example:"1100"`
} // @name PlaceBidRequest

type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
} // @name ErrorResponse

type ListAuctionsQuery struct {
	Status auction.Status `form:"status"  binding:"omitempty,oneof=BIDDING SUCCESS FAIL"`
	Limit  int            `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int            `form:"offset,default=0"  binding:"gte=0"`
} // @name ListAuctionsQuery
