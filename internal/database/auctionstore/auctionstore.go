// Package auctionstore is the Postgres implementation of auction.Store. Per-auction
// serialization comes from SELECT ... FOR UPDATE on the auctions row.
package auctionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"auctioncore/internal/services/auction"
)

const auctionCols = `id, seller_id, winner_id, title, start_price, current_price,
                     bid_increment, bid_count, end_time, status, created_at, resolved_at`

type Store struct {
	db *sql.DB
}

var _ auction.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var (
		a        auction.Auction
		winner   sql.NullInt64
		resolved sql.NullTime
		status   string
	)
	if err := row.Scan(&a.ID, &a.SellerID, &winner, &a.Title, &a.StartPrice,
		&a.CurrentPrice, &a.BidIncrement, &a.BidCount, &a.EndTime, &status,
		&a.CreatedAt, &resolved); err != nil {
		return nil, err
	}
	a.Status = auction.Status(status)
	if winner.Valid {
		w := winner.Int64
		a.WinnerID = &w
	}
	if resolved.Valid {
		r := resolved.Time
		a.ResolvedAt = &r
	}
	return &a, nil
}

func (s *Store) CreateAuction(ctx context.Context, a *auction.Auction) error {
	const q = `
	  INSERT INTO auctions (seller_id, title, start_price, current_price,
	                        bid_increment, end_time, status)
	       VALUES ($1, $2, $3, $4, $5, $6, $7)
	    RETURNING id, created_at`
	return s.db.QueryRowContext(ctx, q,
		a.SellerID, a.Title, a.StartPrice, a.CurrentPrice,
		a.BidIncrement, a.EndTime, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt)
}

func (s *Store) GetAuction(ctx context.Context, id int64) (*auction.Auction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+auctionCols+` FROM auctions WHERE id = $1`, id)
	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auction.ErrAuctionNotFound
	}
	return a, err
}

func (s *Store) ListAuctions(ctx context.Context, st auction.Status, limit, offset int) ([]auction.Auction, error) {
	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT ` + auctionCols + ` FROM auctions`
	if st != "" {
		rows, err = s.db.QueryContext(ctx, base+" WHERE status = $1 ORDER BY end_time DESC, id DESC LIMIT $2 OFFSET $3",
			string(st), limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, base+" ORDER BY end_time DESC, id DESC LIMIT $1 OFFSET $2",
			limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]auction.Auction, 0, limit)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

const bidCols = `id, tx_id::text, auction_id, bidder_id, bid_price, placed_at`

func queryBids(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, auctionID int64) ([]auction.Bid, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+bidCols+` FROM bids WHERE auction_id = $1 ORDER BY placed_at, id`, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := make([]auction.Bid, 0)
	for rows.Next() {
		var b auction.Bid
		if err := rows.Scan(&b.ID, &b.TxID, &b.AuctionID, &b.BidderID, &b.Price, &b.PlacedAt); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (s *Store) ListBids(ctx context.Context, auctionID int64) ([]auction.Bid, error) {
	return queryBids(ctx, s.db, auctionID)
}

func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	const q = `
	  SELECT id FROM auctions
	   WHERE status = 'BIDDING' AND end_time <= $1
	ORDER BY end_time, id
	   LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListEndingBetween(ctx context.Context, from, to time.Time) ([]auction.Auction, error) {
	q := `SELECT ` + auctionCols + ` FROM auctions
	       WHERE status = 'BIDDING' AND end_time >= $1 AND end_time < $2
	    ORDER BY end_time, id`
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]auction.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func (s *Store) WithAuctionLock(ctx context.Context, id int64, fn func(tx auction.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+auctionCols+` FROM auctions WHERE id = $1 FOR UPDATE`, id)
	locked, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auction.ErrAuctionNotFound
	}
	if err != nil {
		return fmt.Errorf("lock auction %d: %w", id, err)
	}

	ptx := &pgTx{tx: tx, auction: *locked}
	if err := fn(ptx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		zap.L().Error("auctionstore.commit", zap.Int64("auction_id", id), zap.Error(err))
		return err
	}
	return nil
}

type pgTx struct {
	tx      *sql.Tx
	auction auction.Auction
}

func (t *pgTx) Auction() auction.Auction {
	return t.auction
}

func (t *pgTx) Bids(ctx context.Context) ([]auction.Bid, error) {
	return queryBids(ctx, t.tx, t.auction.ID)
}

func (t *pgTx) InsertBid(ctx context.Context, b *auction.Bid) error {
	const q = `
	  INSERT INTO bids (tx_id, auction_id, bidder_id, bid_price, placed_at)
	       VALUES ($1, $2, $3, $4, $5)
	    RETURNING id`
	return t.tx.QueryRowContext(ctx, q, b.TxID, b.AuctionID, b.BidderID, b.Price, b.PlacedAt).Scan(&b.ID)
}

func (t *pgTx) SetCurrentPrice(ctx context.Context, price int64, bidCount int) error {
	const q = `
	  UPDATE auctions
	     SET current_price = $2, bid_count = $3
	   WHERE id = $1 AND status = 'BIDDING'`
	res, err := t.tx.ExecContext(ctx, q, t.auction.ID, price, bidCount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return auction.ErrAuctionNotBiddable
	}
	t.auction.CurrentPrice = price
	t.auction.BidCount = bidCount
	return nil
}

func (t *pgTx) Resolve(ctx context.Context, st auction.Status, winnerID *int64, finalPrice int64, bidCount int, at time.Time) error {
	const q = `
	  UPDATE auctions
	     SET status = $2, winner_id = $3, current_price = $4, resolved_at = $5, bid_count = $6
	   WHERE id = $1 AND status = 'BIDDING'`
	var winner sql.NullInt64
	if winnerID != nil {
		winner = sql.NullInt64{Int64: *winnerID, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx, q, t.auction.ID, string(st), winner, finalPrice, at, bidCount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return auction.ErrAlreadyResolved
	}
	t.auction.Status = st
	t.auction.WinnerID = winnerID
	t.auction.CurrentPrice = finalPrice
	t.auction.BidCount = bidCount
	t.auction.ResolvedAt = &at
	return nil
}
