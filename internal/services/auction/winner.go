package auction

// outranks orders bids by price desc, then PlacedAt asc, then ID asc.
func outranks(a, b *Bid) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.PlacedAt.Equal(b.PlacedAt) {
		return a.PlacedAt.Before(b.PlacedAt)
	}
	return a.ID < b.ID
}

// SelectWinner picks the top-ranked bid. ok is false when bids is empty.
func SelectWinner(bids []Bid) (winner Bid, ok bool) {
	if len(bids) == 0 {
		return Bid{}, false
	}
	best := &bids[0]
	for i := 1; i < len(bids); i++ {
		if outranks(&bids[i], best) {
			best = &bids[i]
		}
	}
	return *best, true
}

// DistinctBidders lists each bidder once, in order of first appearance.
func DistinctBidders(bids []Bid) []int64 {
	seen := make(map[int64]bool, len(bids))
	out := make([]int64, 0, len(bids))
	for _, b := range bids {
		if seen[b.BidderID] {
			continue
		}
		seen[b.BidderID] = true
		out = append(out, b.BidderID)
	}
	return out
}
