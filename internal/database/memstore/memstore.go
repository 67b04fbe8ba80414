// Package memstore keeps auctions and bid ledgers in process memory. Each auction has its
// own mutex, which plays the role of the row lock taken by the Postgres store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"auctioncore/internal/services/auction"
)

type entry struct {
	mu      sync.Mutex
	auction auction.Auction
	bids    []auction.Bid
}

type Store struct {
	mu      sync.RWMutex
	entries map[int64]*entry
	nextID  int64
	nextBid int64
}

var _ auction.Store = (*Store)(nil)

func New() *Store {
	return &Store{entries: make(map[int64]*entry)}
}

func (s *Store) CreateAuction(_ context.Context, a *auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.entries[a.ID] = &entry{auction: cloneAuction(*a)}
	return nil
}

func (s *Store) lookup(id int64) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// snapshots copies every entry; callers filter without holding the map lock.
func (s *Store) snapshots() []auction.Auction {
	s.mu.RLock()
	list := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	s.mu.RUnlock()

	out := make([]auction.Auction, 0, len(list))
	for _, e := range list {
		e.mu.Lock()
		out = append(out, cloneAuction(e.auction))
		e.mu.Unlock()
	}
	return out
}

func (s *Store) GetAuction(_ context.Context, id int64) (*auction.Auction, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, auction.ErrAuctionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	a := cloneAuction(e.auction)
	return &a, nil
}

func (s *Store) ListAuctions(_ context.Context, st auction.Status, limit, offset int) ([]auction.Auction, error) {
	all := s.snapshots()
	filtered := all[:0]
	for _, a := range all {
		if st == "" || a.Status == st {
			filtered = append(filtered, a)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].EndTime.Equal(filtered[j].EndTime) {
			return filtered[i].EndTime.After(filtered[j].EndTime)
		}
		return filtered[i].ID > filtered[j].ID
	})
	if offset >= len(filtered) {
		return []auction.Auction{}, nil
	}
	filtered = filtered[offset:]
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (s *Store) ListBids(_ context.Context, auctionID int64) ([]auction.Bid, error) {
	e, ok := s.lookup(auctionID)
	if !ok {
		return nil, auction.ErrAuctionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]auction.Bid, len(e.bids))
	copy(out, e.bids)
	return out, nil
}

func (s *Store) ListExpired(_ context.Context, now time.Time, limit int) ([]int64, error) {
	all := s.snapshots()
	sort.Slice(all, func(i, j int) bool { return all[i].EndTime.Before(all[j].EndTime) })
	ids := make([]int64, 0)
	for _, a := range all {
		if a.Status != auction.StatusBidding || a.EndTime.After(now) {
			continue
		}
		ids = append(ids, a.ID)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (s *Store) ListEndingBetween(_ context.Context, from, to time.Time) ([]auction.Auction, error) {
	all := s.snapshots()
	out := make([]auction.Auction, 0)
	for _, a := range all {
		if a.Status != auction.StatusBidding {
			continue
		}
		if a.EndTime.Before(from) || !a.EndTime.Before(to) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (s *Store) WithAuctionLock(ctx context.Context, id int64, fn func(tx auction.Tx) error) error {
	e, ok := s.lookup(id)
	if !ok {
		return auction.ErrAuctionNotFound
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &memTx{store: s, locked: cloneAuction(e.auction), ledger: e.bids}
	if err := fn(tx); err != nil {
		return err
	}

	// commit
	e.auction = tx.staged()
	if len(tx.appended) > 0 {
		e.bids = append(e.bids, tx.appended...)
	}
	return nil
}

func (s *Store) nextBidID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBid++
	return s.nextBid
}

type memTx struct {
	store    *Store
	locked   auction.Auction
	ledger   []auction.Bid
	appended []auction.Bid
	pending  *auction.Auction
}

func (tx *memTx) staged() auction.Auction {
	if tx.pending != nil {
		return *tx.pending
	}
	return tx.locked
}

func (tx *memTx) Auction() auction.Auction {
	return cloneAuction(tx.staged())
}

func (tx *memTx) Bids(context.Context) ([]auction.Bid, error) {
	out := make([]auction.Bid, 0, len(tx.ledger)+len(tx.appended))
	out = append(out, tx.ledger...)
	out = append(out, tx.appended...)
	return out, nil
}

func (tx *memTx) InsertBid(_ context.Context, b *auction.Bid) error {
	b.ID = tx.store.nextBidID()
	tx.appended = append(tx.appended, *b)
	return nil
}

func (tx *memTx) SetCurrentPrice(_ context.Context, price int64, bidCount int) error {
	a := tx.staged()
	a.CurrentPrice = price
	a.BidCount = bidCount
	tx.pending = &a
	return nil
}

func (tx *memTx) Resolve(_ context.Context, st auction.Status, winnerID *int64, finalPrice int64, bidCount int, at time.Time) error {
	a := tx.staged()
	if a.Status != auction.StatusBidding {
		return auction.ErrAlreadyResolved
	}
	a.Status = st
	a.WinnerID = nil
	if winnerID != nil {
		w := *winnerID
		a.WinnerID = &w
	}
	a.CurrentPrice = finalPrice
	a.BidCount = bidCount
	resolved := at.UTC()
	a.ResolvedAt = &resolved
	tx.pending = &a
	return nil
}

func cloneAuction(a auction.Auction) auction.Auction {
	if a.WinnerID != nil {
		w := *a.WinnerID
		a.WinnerID = &w
	}
	if a.ResolvedAt != nil {
		r := *a.ResolvedAt
		a.ResolvedAt = &r
	}
	return a
}
