package auction

import "github.com/shopspring/decimal"

const DefaultMinIncrement int64 = 100

// MaxPrice bounds start and bid prices.
const MaxPrice int64 = 1_000_000_000_000

var incrementRate = decimal.NewFromInt(5).Div(decimal.NewFromInt(100))

// BidIncrementFor returns max(floor, floor(5% of startPrice)).
func BidIncrementFor(startPrice, floor int64) int64 {
	pct := decimal.NewFromInt(startPrice).Mul(incrementRate).Floor().IntPart()
	if pct < floor {
		return floor
	}
	return pct
}
