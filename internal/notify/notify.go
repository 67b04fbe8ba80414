// Package notify stores user notifications and pushes them to live listeners.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Kind string

const (
	KindAuctionSold   Kind = "auction_sold"
	KindAuctionWon    Kind = "auction_won"
	KindAuctionUnsold Kind = "auction_unsold"

	KindEndingSoonSeller  Kind = "auction_ending_soon_seller"
	KindEndingSoonLeading Kind = "auction_ending_soon_leading"
	KindEndingSoonBidder  Kind = "auction_ending_soon_bidder"
)

type Message struct {
	Kind   Kind
	ItemID int64
	Text   string
}

// Sink accepts a message for one recipient. A (kind, item, recipient) triple is
// stored at most once, so repeated delivery of the same message is harmless.
type Sink interface {
	Notify(ctx context.Context, recipientID int64, msg Message) error
}

type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Kind        Kind      `json:"kind"`
	ItemID      int64     `json:"item_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserChannel is the pub/sub channel carrying live notifications for one user.
func UserChannel(userID int64) string {
	return fmt.Sprintf("user:%d:notifications", userID)
}

type Store struct {
	db  *sql.DB
	rdc *redis.Client
}

var _ Sink = (*Store)(nil)

// NewStore persists to Postgres. rdc may be nil, which disables live push.
func NewStore(db *sql.DB, rdc *redis.Client) *Store {
	return &Store{db: db, rdc: rdc}
}

func (s *Store) Notify(ctx context.Context, recipientID int64, msg Message) error {
	const q = `
	  INSERT INTO notifications (recipient_id, kind, item_id, message)
	       VALUES ($1, $2, $3, $4)
	  ON CONFLICT (kind, item_id, recipient_id) DO NOTHING
	    RETURNING id, created_at`

	n := Notification{RecipientID: recipientID, Kind: msg.Kind, ItemID: msg.ItemID, Message: msg.Text}
	err := s.db.QueryRowContext(ctx, q, recipientID, string(msg.Kind), msg.ItemID, msg.Text).
		Scan(&n.ID, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		zap.L().Debug("notify.duplicate",
			zap.Int64("recipient_id", recipientID),
			zap.String("kind", string(msg.Kind)),
			zap.Int64("item_id", msg.ItemID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	if s.rdc != nil {
		payload, _ := json.Marshal(n)
		if err := s.rdc.Publish(ctx, UserChannel(recipientID), payload).Err(); err != nil {
			zap.L().Warn("notify.publish", zap.Int64("recipient_id", recipientID), zap.Error(err))
		}
	}
	return nil
}

// Memory is a process-local Sink.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	seen   map[string]bool
	list   []Notification
}

var _ Sink = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]bool)}
}

func (m *Memory) Notify(_ context.Context, recipientID int64, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%d/%d", msg.Kind, msg.ItemID, recipientID)
	if m.seen[key] {
		return nil
	}
	m.seen[key] = true
	m.nextID++
	m.list = append(m.list, Notification{
		ID:          m.nextID,
		RecipientID: recipientID,
		Kind:        msg.Kind,
		ItemID:      msg.ItemID,
		Message:     msg.Text,
		CreatedAt:   time.Now().UTC(),
	})
	zap.L().Info("notify.delivered",
		zap.Int64("recipient_id", recipientID),
		zap.String("kind", string(msg.Kind)),
		zap.Int64("item_id", msg.ItemID),
	)
	return nil
}

// All returns every stored notification in delivery order.
func (m *Memory) All() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.list...)
}
