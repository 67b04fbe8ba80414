package ws

import (
	"sync"
)

// Hub keeps the open connections of each user. A user may hold several tabs.
type Hub struct {
	rooms sync.Map // userID -> *room
}

func NewHub() *Hub { return &Hub{} }

// Broadcast is called by the Redis subscriber.
func (h *Hub) Broadcast(userID int64, msg []byte) {
	if v, ok := h.rooms.Load(userID); ok {
		v.(*room).broadcast(msg)
	}
}

func (h *Hub) Join(userID int64, c *clientConn) {
	r, _ := h.rooms.LoadOrStore(userID, newRoom())
	r.(*room).add(c)
}

func (h *Hub) Leave(userID int64, c *clientConn) {
	if v, ok := h.rooms.Load(userID); ok {
		v.(*room).remove(c)
	}
}

// Online reports how many connections userID currently has.
func (h *Hub) Online(userID int64) int {
	v, ok := h.rooms.Load(userID)
	if !ok {
		return 0
	}
	return v.(*room).size()
}
