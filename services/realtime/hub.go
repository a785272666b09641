package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/djsoulspotti-ops/skajla/utils/logging"
	"github.com/djsoulspotti-ops/skajla/utils/metrics"
)

// sendTimeout bounds outbound fan-out per connection. A slow client gets its
// frame dropped, never a blocked hub.
const sendTimeout = 2 * time.Second

// Room name helpers. Rooms are plain strings so the hub stays oblivious to
// what they mean.
func UserRoom(userID uint) string      { return fmt.Sprintf("user:%d", userID) }
func SchoolRoom(schoolID uint) string  { return fmt.Sprintf("school:%d", schoolID) }
func ChatRoom(chatID uint) string      { return fmt.Sprintf("chat:%d", chatID) }
func ClassRoom(classID uint) string    { return fmt.Sprintf("class:%d", classID) }
func StudyGroupRoom(groupID uint) string { return fmt.Sprintf("study_group:%d", groupID) }
func SubjectRoom(subject string, schoolID uint) string {
	return fmt.Sprintf("subject:%s:%d", subject, schoolID)
}

// Event is the wire envelope for both directions.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// Conn is one websocket connection with its session identity. Outbound
// frames go through a buffered channel owned by a single writer goroutine;
// inbound events are read by a single reader, so events on one connection
// are serialized by arrival order.
type Conn struct {
	ws       *websocket.Conn
	send     chan []byte
	done     chan struct{}
	closeOne sync.Once

	UserID   uint
	SchoolID uint
	Role     string
	ClassID  *uint

	mu    sync.Mutex
	rooms map[string]struct{}
}

func newConn(ws *websocket.Conn, userID, schoolID uint, role string, classID *uint) *Conn {
	return &Conn{
		ws:       ws,
		send:     make(chan []byte, 64),
		done:     make(chan struct{}),
		UserID:   userID,
		SchoolID: schoolID,
		Role:     role,
		ClassID:  classID,
		rooms:    make(map[string]struct{}),
	}
}

// Send queues an event for this connection, dropping it when the buffer is
// full (fire-and-forget on timeout, no retry from the server).
func (c *Conn) Send(name string, data interface{}) {
	raw, err := json.Marshal(Event{Name: name, Data: data})
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	case <-c.done:
	case <-time.After(sendTimeout):
	}
}

// close signals the writer pump to drain and exit. The send channel itself is
// never closed: broadcasts racing a disconnect must not hit a closed channel.
func (c *Conn) close() {
	c.closeOne.Do(func() {
		close(c.done)
	})
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Hub multiplexes connections into rooms and fans events out to them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	log   *logging.Log
}

// NewHub creates a hub
func NewHub(log *logging.Log) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Conn]struct{}),
		log:   log,
	}
}

// Register starts the writer pump for a connection.
func (h *Hub) Register(c *Conn) {
	metrics.WSConnections.Inc()
	go h.writePump(c)
}

// Unregister removes the connection from every room and stops its writer.
func (h *Hub) Unregister(c *Conn) {
	c.mu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.mu.Unlock()

	h.mu.Lock()
	for _, r := range rooms {
		if members, ok := h.rooms[r]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, r)
			}
		}
	}
	h.mu.Unlock()

	c.close()
	metrics.WSConnections.Dec()
}

// Join subscribes a connection to a room.
func (h *Hub) Join(c *Conn, room string) {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()

	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

// Leave unsubscribes a connection from a room.
func (h *Hub) Leave(c *Conn, room string) {
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// InRoom reports whether the connection is subscribed to the room.
func (h *Hub) InRoom(c *Conn, room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

// Broadcast sends an event to every member of a room, optionally excluding
// one connection (typing indicators and receipts skip their originator).
func (h *Hub) Broadcast(room, name string, data interface{}, exclude *Conn) {
	raw, err := json.Marshal(Event{Name: name, Data: data})
	if err != nil {
		h.log.Base.Warn("broadcast marshal failed", zap.String("event", name), zap.Error(err))
		return
	}

	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != exclude {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		select {
		case c.send <- raw:
		case <-c.done:
		case <-time.After(sendTimeout):
		}
	}
}

// RoomMembers returns the distinct user ids currently joined to a room.
func (h *Hub) RoomMembers(room string) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uint]struct{})
	ids := make([]uint, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if _, dup := seen[c.UserID]; !dup {
			seen[c.UserID] = struct{}{}
			ids = append(ids, c.UserID)
		}
	}
	return ids
}

func (h *Hub) writePump(c *Conn) {
	for {
		select {
		case raw := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-c.done:
			_ = c.ws.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}
