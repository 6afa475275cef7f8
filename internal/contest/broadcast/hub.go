package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"eclipser/pkg/errors"
	"eclipser/pkg/utils/logger"
)

// Publisher is the narrow interface the judge pipeline uses to push
// events. Delivery is best-effort: callers log failures and move on.
type Publisher interface {
	Publish(ctx context.Context, room string, event Event) error
}

// Hub is the room-scoped connection registry. It is constructed and
// injected explicitly; nothing in the package holds global state.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Publish marshals the event and fans it out to every connection in the
// room. Returns RoomNotSubscribed when nobody is listening.
func (h *Hub) Publish(ctx context.Context, room string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, errors.BroadcastFailed, "marshal event")
	}

	h.mu.RLock()
	clients := h.rooms[room]
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return errors.Newf(errors.RoomNotSubscribed, "no subscribers in room %s", room)
	}
	for _, c := range targets {
		if !c.trySend(payload) {
			// Slow consumer: drop it rather than stall the pipeline.
			logger.Warn(ctx, "dropping slow websocket client", zap.String("room", room))
			c.close()
		}
	}
	return nil
}

// RoomSize reports the current subscriber count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, c)
}

func (h *Hub) leaveLocked(room string, c *Client) {
	if clients, ok := h.rooms[room]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.rooms {
		h.leaveLocked(room, c)
	}
}
