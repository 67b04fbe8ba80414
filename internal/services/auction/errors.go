package auction

import "errors"

var (
	ErrAuctionNotFound    = errors.New("auction not found")
	ErrAuctionNotBiddable = errors.New("auction is not accepting bids")
	ErrAuctionExpired     = errors.New("auction has ended")
	ErrSelfBid            = errors.New("seller cannot bid on own auction")
	ErrBidBelowIncrement  = errors.New("bid below current price plus increment")
	ErrPriceOutOfRange    = errors.New("price exceeds the allowed maximum")
	// ErrBidConflict means a concurrent bid moved the price after it was read.
	ErrBidConflict = errors.New("bid lost a race with a concurrent bid")

	ErrAlreadyResolved = errors.New("auction already resolved")

	ErrInvalidStartPrice = errors.New("start price must be positive")
	ErrInvalidEndTime    = errors.New("end time must be in the future")
)

// IsRetryable reports whether the caller may resubmit after refreshing the price.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBidConflict)
}

// IsValidation reports whether err is a bid rejection the caller must correct.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrAuctionNotBiddable),
		errors.Is(err, ErrAuctionExpired),
		errors.Is(err, ErrSelfBid),
		errors.Is(err, ErrBidBelowIncrement),
		errors.Is(err, ErrPriceOutOfRange),
		errors.Is(err, ErrInvalidStartPrice),
		errors.Is(err, ErrInvalidEndTime):
		return true
	}
	return false
}
