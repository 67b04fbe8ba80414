// Package chat provisions the buyer/seller chat room opened after a sale.
package chat

import (
	"context"
	"database/sql"
	"sync"
)

// Provisioner returns the room for (item, seller, buyer), creating it on first use.
type Provisioner interface {
	Provision(ctx context.Context, itemID, sellerID, buyerID int64) (chatID int64, err error)
}

type Store struct {
	db *sql.DB
}

var _ Provisioner = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Provision(ctx context.Context, itemID, sellerID, buyerID int64) (int64, error) {
	// DO UPDATE (not DO NOTHING) so RETURNING yields the existing row too
	const q = `
	  INSERT INTO chat_rooms (item_id, seller_id, buyer_id)
	       VALUES ($1, $2, $3)
	  ON CONFLICT (item_id, seller_id, buyer_id)
	    DO UPDATE SET item_id = EXCLUDED.item_id
	    RETURNING id`
	var id int64
	err := s.db.QueryRowContext(ctx, q, itemID, sellerID, buyerID).Scan(&id)
	return id, err
}

type roomKey struct {
	item, seller, buyer int64
}

type Memory struct {
	mu     sync.Mutex
	nextID int64
	rooms  map[roomKey]int64
}

var _ Provisioner = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{rooms: make(map[roomKey]int64)}
}

func (m *Memory) Provision(_ context.Context, itemID, sellerID, buyerID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := roomKey{itemID, sellerID, buyerID}
	if id, ok := m.rooms[k]; ok {
		return id, nil
	}
	m.nextID++
	m.rooms[k] = m.nextID
	return m.nextID, nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}
