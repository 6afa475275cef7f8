package broadcast

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"eclipser/pkg/errors"
)

func newTestClient(h *Hub) *Client {
	return &Client{
		hub:   h,
		send:  make(chan []byte, sendBufferSize),
		rooms: make(map[string]struct{}),
	}
}

func TestPublishToEmptyRoom(t *testing.T) {
	t.Parallel()
	h := NewHub()

	err := h.Publish(context.Background(), ContestRoom("c1"), Event{Type: EventContestUpdate})
	if errors.GetCode(err) != errors.RoomNotSubscribed {
		t.Fatalf("got %v, want RoomNotSubscribed", err)
	}
}

func TestPublishDeliversToRoomMembers(t *testing.T) {
	t.Parallel()
	h := NewHub()
	member := newTestClient(h)
	outsider := newTestClient(h)
	h.join(ContestRoom("c1"), member)
	h.join(ContestRoom("c2"), outsider)

	err := h.Publish(context.Background(), ContestRoom("c1"), Event{
		Type: EventWinnerDeclared,
		Data: map[string]string{"winner_id": "u1"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case payload := <-member.send:
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type != EventWinnerDeclared {
			t.Fatalf("event type = %s", ev.Type)
		}
	default:
		t.Fatal("room member received nothing")
	}
	select {
	case <-outsider.send:
		t.Fatal("event leaked into another room")
	default:
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	t.Parallel()
	h := NewHub()
	c := newTestClient(h)
	h.join(ContestRoom("c1"), c)
	h.leave(ContestRoom("c1"), c)

	if h.RoomSize(ContestRoom("c1")) != 0 {
		t.Fatal("room still has members after leave")
	}
	err := h.Publish(context.Background(), ContestRoom("c1"), Event{Type: EventContestUpdate})
	if errors.GetCode(err) != errors.RoomNotSubscribed {
		t.Fatalf("got %v, want RoomNotSubscribed", err)
	}
}

func TestDropRemovesClientFromAllRooms(t *testing.T) {
	t.Parallel()
	h := NewHub()
	c := newTestClient(h)
	h.join(ContestRoom("c1"), c)
	h.join(UserRoom("u1"), c)

	h.drop(c)
	if h.RoomSize(ContestRoom("c1")) != 0 || h.RoomSize(UserRoom("u1")) != 0 {
		t.Fatal("dropped client still registered")
	}
	if len(c.rooms) != 0 {
		t.Fatalf("client room set not cleared: %v", c.rooms)
	}
}

func dialWS(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", ServeWS(h))
	srv := httptest.NewServer(router)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func waitForRoomSize(t *testing.T, h *Hub, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.RoomSize(room) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %s never reached size %d (now %d)", room, want, h.RoomSize(room))
}

func TestWebsocketJoinAndReceive(t *testing.T) {
	h := NewHub()
	conn, done := dialWS(t, h)
	defer done()

	join := map[string]string{"action": ActionJoinContest, "contest_id": "c9"}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatalf("write join: %v", err)
	}
	waitForRoomSize(t, h, ContestRoom("c9"), 1)

	err := h.Publish(context.Background(), ContestRoom("c9"), Event{
		Type: EventSubmissionUpdate,
		Data: map[string]string{"submission_id": "s1", "status": "accepted"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != EventSubmissionUpdate {
		t.Fatalf("event type = %s", ev.Type)
	}
	data, ok := ev.Data.(map[string]interface{})
	if !ok || data["submission_id"] != "s1" {
		t.Fatalf("unexpected payload: %+v", ev.Data)
	}
}

func TestWebsocketUserRoom(t *testing.T) {
	h := NewHub()
	conn, done := dialWS(t, h)
	defer done()

	if err := conn.WriteJSON(map[string]string{"action": ActionJoinUserRoom, "user_id": "u7"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	waitForRoomSize(t, h, UserRoom("u7"), 1)

	err := h.Publish(context.Background(), UserRoom("u7"), Event{Type: EventProcessingStarted})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != EventProcessingStarted {
		t.Fatalf("event type = %s", ev.Type)
	}
}

func TestWebsocketLeaveContest(t *testing.T) {
	h := NewHub()
	conn, done := dialWS(t, h)
	defer done()

	if err := conn.WriteJSON(map[string]string{"action": ActionJoinContest, "contest_id": "c3"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	waitForRoomSize(t, h, ContestRoom("c3"), 1)

	if err := conn.WriteJSON(map[string]string{"action": ActionLeaveContest, "contest_id": "c3"}); err != nil {
		t.Fatalf("write leave: %v", err)
	}
	waitForRoomSize(t, h, ContestRoom("c3"), 0)
}

func TestWebsocketDisconnectCleansRooms(t *testing.T) {
	h := NewHub()
	conn, done := dialWS(t, h)
	defer done()

	if err := conn.WriteJSON(map[string]string{"action": ActionJoinContest, "contest_id": "c4"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	waitForRoomSize(t, h, ContestRoom("c4"), 1)

	_ = conn.Close()
	waitForRoomSize(t, h, ContestRoom("c4"), 0)
}
