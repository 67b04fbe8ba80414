package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctioncore/internal/notify"
)

// subscriptionManager guarantees that we have exactly one Redis subscription
// per "user:<id>:notifications" channel no matter how many tabs the user opens.
type subscriptionManager struct {
	rdb  *redis.Client
	hub  *Hub
	mu   sync.Mutex
	subs map[int64]*subEntry // userID ➜ subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(rdb *redis.Client, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		rdb:  rdb,
		hub:  hub,
		subs: make(map[int64]*subEntry),
	}
}

// Subscribe ensures that the process is subscribed to the user's channel;
// subsequent calls for the same user only increment the ref‑counter.
func (sm *subscriptionManager) Subscribe(userID int64) {
	sm.mu.Lock()
	if e, ok := sm.subs[userID]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, notify.UserChannel(userID))

	sm.subs[userID] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	go func() {
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok { // Redis connection closed.
					return
				}
				wrapped, err := wrapNotification(m.Payload)
				if err != nil {
					zap.L().Warn("ws.wrap_notification_failed", zap.Int64("user_id", userID), zap.Error(err))
					continue
				}
				sm.hub.Broadcast(userID, wrapped)
			}
		}
	}()
}

// Unsubscribe decrements the ref‑counter and tears the Redis SUB down when the
// user's last connection goes away.
func (sm *subscriptionManager) Unsubscribe(userID int64) {
	sm.mu.Lock()
	e, ok := sm.subs[userID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, userID)
	sm.mu.Unlock()

	e.cancel()
}

// wrapNotification turns a stored notify.Notification into
//
//	{"event":"notifications/new","body":{"id":1,"kind":"auction_won",…}}
func wrapNotification(payload string) ([]byte, error) {
	var n notify.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"event": eventNotification,
		"body":  n,
	})
}
