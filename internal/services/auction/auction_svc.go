package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IAuctionService interface {
	CreateAuction(ctx context.Context, sellerID int64, title string, startPrice int64, endTime time.Time) (*Auction, error)
	PlaceBid(ctx context.Context, auctionID, bidderID, bidPrice int64) (*BidReceipt, error)
	GetAuction(ctx context.Context, id int64) (*Auction, error)
	ListAuctions(ctx context.Context, status Status, limit, offset int) ([]Auction, error)
	ListBids(ctx context.Context, auctionID int64) ([]Bid, error)
}

type Option func(*auctionService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(svc *auctionService) { svc.now = now }
}

type auctionService struct {
	store        Store
	minIncrement int64
	now          func() time.Time
	newTxID      func() string
}

var _ IAuctionService = (*auctionService)(nil)

func NewAuctionService(store Store, minInc int64, opts ...Option) IAuctionService {
	if minInc <= 0 {
		minInc = DefaultMinIncrement
	}
	svc := &auctionService{
		store:        store,
		minIncrement: minInc,
		now:          time.Now,
		newTxID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (svc *auctionService) CreateAuction(ctx context.Context, sellerID int64, title string,
	startPrice int64, endTime time.Time) (*Auction, error) {

	now := svc.now()
	if startPrice <= 0 {
		return nil, ErrInvalidStartPrice
	}
	if startPrice > MaxPrice {
		return nil, ErrPriceOutOfRange
	}
	if !endTime.After(now) {
		return nil, ErrInvalidEndTime
	}

	a := &Auction{
		SellerID:     sellerID,
		Title:        title,
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		BidIncrement: BidIncrementFor(startPrice, svc.minIncrement),
		EndTime:      endTime.UTC(),
		Status:       StatusBidding,
		CreatedAt:    now.UTC(),
	}
	if err := svc.store.CreateAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}
	zap.L().Info("auction.created",
		zap.Int64("auction_id", a.ID),
		zap.Int64("seller_id", sellerID),
		zap.Int64("start_price", startPrice),
		zap.Int64("bid_increment", a.BidIncrement),
		zap.Time("end_time", a.EndTime),
	)
	return a, nil
}

// checkBid applies the placement rules in a fixed order so every rejection has one reason.
func checkBid(a *Auction, bidderID, bidPrice int64, now time.Time) error {
	if a.Status != StatusBidding {
		return ErrAuctionNotBiddable
	}
	if !now.Before(a.EndTime) {
		return ErrAuctionExpired
	}
	if bidderID == a.SellerID {
		return ErrSelfBid
	}
	if bidPrice > MaxPrice {
		return ErrPriceOutOfRange
	}
	if !a.Accepts(bidPrice) {
		return ErrBidBelowIncrement
	}
	return nil
}

// PlaceBid validates against an unlocked read, then re-validates and commits under the
// auction lock. A bid that passed the first check but fails the second only because the
// price moved is reported as ErrBidConflict.
func (svc *auctionService) PlaceBid(ctx context.Context, auctionID, bidderID, bidPrice int64) (*BidReceipt, error) {
	observed, err := svc.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := checkBid(observed, bidderID, bidPrice, svc.now()); err != nil {
		return nil, err
	}

	var receipt *BidReceipt
	err = svc.store.WithAuctionLock(ctx, auctionID, func(tx Tx) error {
		cur := tx.Auction()
		now := svc.now()
		if err := checkBid(&cur, bidderID, bidPrice, now); err != nil {
			if errors.Is(err, ErrBidBelowIncrement) && cur.CurrentPrice != observed.CurrentPrice {
				return ErrBidConflict
			}
			return err
		}

		bid := &Bid{
			TxID:      svc.newTxID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Price:     bidPrice,
			PlacedAt:  now.UTC(),
		}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
		if err := tx.SetCurrentPrice(ctx, bidPrice, cur.BidCount+1); err != nil {
			return fmt.Errorf("update current price: %w", err)
		}

		receipt = &BidReceipt{
			TransactionID: bid.TxID,
			PreviousPrice: cur.CurrentPrice,
			NewPrice:      bidPrice,
			BidCount:      cur.BidCount + 1,
			EndTime:       cur.EndTime,
			Remaining:     cur.EndTime.Sub(now),
		}
		return nil
	})
	if err != nil {
		if IsRetryable(err) {
			zap.L().Debug("auction.bid_conflict",
				zap.Int64("auction_id", auctionID),
				zap.Int64("bidder_id", bidderID),
				zap.Int64("bid_price", bidPrice),
			)
		}
		return nil, err
	}
	return receipt, nil
}

func (svc *auctionService) GetAuction(ctx context.Context, id int64) (*Auction, error) {
	return svc.store.GetAuction(ctx, id)
}

func (svc *auctionService) ListAuctions(ctx context.Context, st Status, limit, offset int) ([]Auction, error) {
	if limit == 0 {
		limit = 10
	}
	return svc.store.ListAuctions(ctx, st, limit, offset)
}

func (svc *auctionService) ListBids(ctx context.Context, auctionID int64) ([]Bid, error) {
	if _, err := svc.store.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return svc.store.ListBids(ctx, auctionID)
}
