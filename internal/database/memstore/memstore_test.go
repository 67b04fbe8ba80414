package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctioncore/internal/services/auction"
)

var base = time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, end time.Time) *auction.Auction {
	t.Helper()
	a := &auction.Auction{
		SellerID:     1,
		StartPrice:   1000,
		CurrentPrice: 1000,
		BidIncrement: 100,
		EndTime:      end,
		Status:       auction.StatusBidding,
	}
	require.NoError(t, s.CreateAuction(context.Background(), a))
	return a
}

func TestCreateAndGet(t *testing.T) {
	s := New()
	a := seed(t, s, base)
	assert.Equal(t, int64(1), a.ID)

	got, err := s.GetAuction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.StartPrice, got.CurrentPrice)

	_, err = s.GetAuction(context.Background(), 42)
	assert.ErrorIs(t, err, auction.ErrAuctionNotFound)
}

func TestWithAuctionLockCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := seed(t, s, base)

	err := s.WithAuctionLock(ctx, a.ID, func(tx auction.Tx) error {
		b := &auction.Bid{AuctionID: a.ID, BidderID: 2, Price: 1100, PlacedAt: base}
		require.NoError(t, tx.InsertBid(ctx, b))
		assert.NotZero(t, b.ID)
		return tx.SetCurrentPrice(ctx, 1100, 1)
	})
	require.NoError(t, err)

	got, _ := s.GetAuction(ctx, a.ID)
	assert.Equal(t, int64(1100), got.CurrentPrice)
	assert.Equal(t, 1, got.BidCount)

	bids, err := s.ListBids(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, int64(2), bids[0].BidderID)
}

func TestWithAuctionLockDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := seed(t, s, base)
	boom := errors.New("boom")

	err := s.WithAuctionLock(ctx, a.ID, func(tx auction.Tx) error {
		_ = tx.InsertBid(ctx, &auction.Bid{AuctionID: a.ID, BidderID: 2, Price: 1100})
		_ = tx.SetCurrentPrice(ctx, 1100, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := s.GetAuction(ctx, a.ID)
	assert.Equal(t, int64(1000), got.CurrentPrice)
	bids, _ := s.ListBids(ctx, a.ID)
	assert.Empty(t, bids)
}

func TestResolveOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := seed(t, s, base)
	winner := int64(3)

	require.NoError(t, s.WithAuctionLock(ctx, a.ID, func(tx auction.Tx) error {
		return tx.Resolve(ctx, auction.StatusSuccess, &winner, 1200, 1, base)
	}))
	err := s.WithAuctionLock(ctx, a.ID, func(tx auction.Tx) error {
		return tx.Resolve(ctx, auction.StatusFail, nil, 1000, 0, base)
	})
	assert.ErrorIs(t, err, auction.ErrAlreadyResolved)

	got, _ := s.GetAuction(ctx, a.ID)
	assert.Equal(t, auction.StatusSuccess, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, winner, *got.WinnerID)
	assert.Equal(t, int64(1200), got.CurrentPrice)
}

func TestListExpiredAndEndingBetween(t *testing.T) {
	ctx := context.Background()
	s := New()
	past := seed(t, s, base.Add(-time.Minute))
	exact := seed(t, s, base)
	soon := seed(t, s, base.Add(30*time.Minute+10*time.Second))
	seed(t, s, base.Add(2*time.Hour))
	atLead := seed(t, s, base.Add(30*time.Minute))
	seed(t, s, base.Add(31*time.Minute))

	ids, err := s.ListExpired(ctx, base, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{past.ID, exact.ID}, ids)

	ids, err = s.ListExpired(ctx, base, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{past.ID}, ids)

	ending, err := s.ListEndingBetween(ctx, base.Add(30*time.Minute), base.Add(31*time.Minute))
	require.NoError(t, err)
	require.Len(t, ending, 2)
	assert.Equal(t, atLead.ID, ending[0].ID)
	assert.Equal(t, soon.ID, ending[1].ID)
}

func TestListAuctionsFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := New()
	first := seed(t, s, base)
	second := seed(t, s, base.Add(time.Hour))
	require.NoError(t, s.WithAuctionLock(ctx, first.ID, func(tx auction.Tx) error {
		return tx.Resolve(ctx, auction.StatusFail, nil, 1000, 0, base)
	}))

	all, err := s.ListAuctions(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	failed, err := s.ListAuctions(ctx, auction.StatusFail, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, first.ID, failed[0].ID)

	paged, err := s.ListAuctions(ctx, "", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, paged)
}
