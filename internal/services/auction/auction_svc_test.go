package auction_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"auctioncore/internal/database/memstore"
	"auctioncore/internal/services/auction"
)

var t0 = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

const seller = int64(1)

type AuctionServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *memstore.Store
	now   time.Time
	svc   auction.IAuctionService
}

func (s *AuctionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New()
	s.now = t0
	s.svc = auction.NewAuctionService(s.store, 100, auction.WithClock(func() time.Time { return s.now }))
}

func (s *AuctionServiceSuite) create(start int64) *auction.Auction {
	a, err := s.svc.CreateAuction(s.ctx, seller, "camera", start, t0.Add(time.Hour))
	s.Require().NoError(err)
	return a
}

func (s *AuctionServiceSuite) TestCreateAuction() {
	a := s.create(10000)
	s.Equal(int64(10000), a.CurrentPrice)
	s.Equal(int64(500), a.BidIncrement)
	s.Equal(auction.StatusBidding, a.Status)
	s.NotZero(a.ID)

	_, err := s.svc.CreateAuction(s.ctx, seller, "camera", 0, t0.Add(time.Hour))
	s.ErrorIs(err, auction.ErrInvalidStartPrice)
	_, err = s.svc.CreateAuction(s.ctx, seller, "camera", 1000, t0)
	s.ErrorIs(err, auction.ErrInvalidEndTime)
}

func (s *AuctionServiceSuite) TestIncrementLadder() {
	a := s.create(1000)

	r, err := s.svc.PlaceBid(s.ctx, a.ID, 2, 1100)
	s.Require().NoError(err)
	s.Equal(int64(1000), r.PreviousPrice)
	s.Equal(int64(1100), r.NewPrice)
	s.Equal(1, r.BidCount)
	s.Equal(time.Hour, r.Remaining)
	s.NotEmpty(r.TransactionID)

	_, err = s.svc.PlaceBid(s.ctx, a.ID, 3, 1150)
	s.ErrorIs(err, auction.ErrBidBelowIncrement)

	r, err = s.svc.PlaceBid(s.ctx, a.ID, 3, 1200)
	s.Require().NoError(err)
	s.Equal(2, r.BidCount)

	got, err := s.svc.GetAuction(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(1200), got.CurrentPrice)
	s.Equal(2, got.BidCount)

	bids, err := s.svc.ListBids(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Require().Len(bids, 2)
	s.Equal(int64(2), bids[0].BidderID)
	s.Equal(int64(3), bids[1].BidderID)
}

func (s *AuctionServiceSuite) TestRejections() {
	a := s.create(1000)

	_, err := s.svc.PlaceBid(s.ctx, a.ID, seller, 5000)
	s.ErrorIs(err, auction.ErrSelfBid)

	_, err = s.svc.PlaceBid(s.ctx, 999, 2, 5000)
	s.ErrorIs(err, auction.ErrAuctionNotFound)

	_, err = s.svc.ListBids(s.ctx, 999)
	s.ErrorIs(err, auction.ErrAuctionNotFound)

	s.now = a.EndTime
	_, err = s.svc.PlaceBid(s.ctx, a.ID, 2, 5000)
	s.ErrorIs(err, auction.ErrAuctionExpired)

	err = s.store.WithAuctionLock(s.ctx, a.ID, func(tx auction.Tx) error {
		return tx.Resolve(s.ctx, auction.StatusFail, nil, 1000, 0, a.EndTime)
	})
	s.Require().NoError(err)
	s.now = t0
	_, err = s.svc.PlaceBid(s.ctx, a.ID, 2, 5000)
	s.ErrorIs(err, auction.ErrAuctionNotBiddable)
}

func (s *AuctionServiceSuite) TestHugeBidIsRejectedAndPriceHolds() {
	a := s.create(1000)

	_, err := s.svc.PlaceBid(s.ctx, a.ID, 2, math.MaxInt64)
	s.ErrorIs(err, auction.ErrPriceOutOfRange)
	_, err = s.svc.PlaceBid(s.ctx, a.ID, 2, auction.MaxPrice+1)
	s.ErrorIs(err, auction.ErrPriceOutOfRange)

	got, err := s.svc.GetAuction(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(1000), got.CurrentPrice)
	s.Zero(got.BidCount)

	_, err = s.svc.PlaceBid(s.ctx, a.ID, 2, auction.MaxPrice)
	s.Require().NoError(err)
	_, err = s.svc.PlaceBid(s.ctx, a.ID, 3, 1200)
	s.ErrorIs(err, auction.ErrBidBelowIncrement)

	got, err = s.svc.GetAuction(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(auction.MaxPrice, got.CurrentPrice)
}

func (s *AuctionServiceSuite) TestHugeStartPriceIsRejected() {
	_, err := s.svc.CreateAuction(s.ctx, seller, "camera", math.MaxInt64, t0.Add(time.Hour))
	s.ErrorIs(err, auction.ErrPriceOutOfRange)

	a := s.create(auction.MaxPrice)
	_, err = s.svc.PlaceBid(s.ctx, a.ID, 2, 1)
	s.ErrorIs(err, auction.ErrBidBelowIncrement)
	_, err = s.svc.PlaceBid(s.ctx, a.ID, 2, a.MinNextBid())
	s.ErrorIs(err, auction.ErrPriceOutOfRange)
}

func (s *AuctionServiceSuite) TestListAuctions() {
	s.create(1000)
	s.create(2000)

	list, err := s.svc.ListAuctions(s.ctx, auction.StatusBidding, 0, 0)
	s.Require().NoError(err)
	s.Len(list, 2)

	list, err = s.svc.ListAuctions(s.ctx, auction.StatusSuccess, 10, 0)
	s.Require().NoError(err)
	s.Empty(list)
}

func TestAuctionServiceSuite(t *testing.T) {
	suite.Run(t, new(AuctionServiceSuite))
}

// staleStore serves a fixed snapshot to unlocked reads, as if a competing bid
// committed right after the caller looked at the auction.
type staleStore struct {
	*memstore.Store
	snapshot *auction.Auction
}

func (s *staleStore) GetAuction(ctx context.Context, id int64) (*auction.Auction, error) {
	if s.snapshot != nil && s.snapshot.ID == id {
		a := *s.snapshot
		return &a, nil
	}
	return s.Store.GetAuction(ctx, id)
}

func TestPlaceBidReportsConflictWhenPriceMoved(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	clock := func() time.Time { return t0 }
	direct := auction.NewAuctionService(mem, 100, auction.WithClock(clock))

	a, err := direct.CreateAuction(ctx, seller, "camera", 1000, t0.Add(time.Hour))
	require.NoError(t, err)
	snapshot, err := mem.GetAuction(ctx, a.ID)
	require.NoError(t, err)

	_, err = direct.PlaceBid(ctx, a.ID, 2, 1100)
	require.NoError(t, err)

	stale := auction.NewAuctionService(&staleStore{Store: mem, snapshot: snapshot}, 100, auction.WithClock(clock))
	_, err = stale.PlaceBid(ctx, a.ID, 3, 1100)
	assert.ErrorIs(t, err, auction.ErrBidConflict)
	assert.True(t, auction.IsRetryable(err))

	// still too low against the price that was read
	_, err = stale.PlaceBid(ctx, a.ID, 3, 1050)
	assert.ErrorIs(t, err, auction.ErrBidBelowIncrement)

	// high enough for both reads
	_, err = stale.PlaceBid(ctx, a.ID, 3, 1200)
	assert.NoError(t, err)
}

func TestPlaceBidRechecksEndTimeUnderLock(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	end := t0.Add(time.Hour)

	var calls atomic.Int32
	clock := func() time.Time {
		switch calls.Add(1) {
		case 1:
			return t0
		case 2:
			return end.Add(-time.Millisecond)
		}
		return end
	}
	svc := auction.NewAuctionService(mem, 100, auction.WithClock(clock))
	a, err := svc.CreateAuction(ctx, seller, "camera", 1000, end)
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, a.ID, 2, 1100)
	assert.ErrorIs(t, err, auction.ErrAuctionExpired)

	bids, err := mem.ListBids(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestConcurrentEqualBidsAcceptOne(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	svc := auction.NewAuctionService(mem, 100, auction.WithClock(func() time.Time { return t0 }))
	a, err := svc.CreateAuction(ctx, seller, "camera", 1000, t0.Add(time.Hour))
	require.NoError(t, err)

	const bidders = 32
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		mu       sync.Mutex
		failures []error
	)
	start := make(chan struct{})
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(bidder int64) {
			defer wg.Done()
			<-start
			_, err := svc.PlaceBid(ctx, a.ID, bidder, 1500)
			if err == nil {
				accepted.Add(1)
				return
			}
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		}(int64(100 + i))
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	for _, err := range failures {
		assert.True(t,
			errors.Is(err, auction.ErrBidConflict) || errors.Is(err, auction.ErrBidBelowIncrement),
			"unexpected error %v", err)
	}

	got, err := mem.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.CurrentPrice)
	assert.Equal(t, 1, got.BidCount)
}

func TestLedgerIsMonotonic(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	svc := auction.NewAuctionService(mem, 100, auction.WithClock(func() time.Time { return t0 }))
	a, err := svc.CreateAuction(ctx, seller, "camera", 1000, t0.Add(time.Hour))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(bidder int64) {
			defer wg.Done()
			for step := int64(1); step <= 10; step++ {
				_, _ = svc.PlaceBid(ctx, a.ID, bidder, 1000+step*100+bidder)
			}
		}(int64(2 + i))
	}
	wg.Wait()

	bids, err := mem.ListBids(ctx, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, bids)

	prev := a.StartPrice
	for _, b := range bids {
		assert.GreaterOrEqual(t, b.Price, prev+a.BidIncrement)
		prev = b.Price
	}
	got, err := mem.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, prev, got.CurrentPrice)
	assert.Equal(t, len(bids), got.BidCount)
}
