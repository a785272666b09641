package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/djsoulspotti-ops/skajla/utils/logging"
)

func testConn(userID, schoolID uint) *Conn {
	return newConn(nil, userID, schoolID, "student", nil)
}

func recvEvent(t *testing.T, c *Conn) Event {
	t.Helper()
	select {
	case raw := <-c.send:
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return ev
	default:
		t.Fatal("no frame queued")
		return Event{}
	}
}

func TestRoomNames(t *testing.T) {
	if UserRoom(7) != "user:7" || SchoolRoom(3) != "school:3" || ChatRoom(9) != "chat:9" {
		t.Fatal("room name shape changed")
	}
	if SubjectRoom("matematica", 3) != "subject:matematica:3" {
		t.Fatalf("subject room = %q", SubjectRoom("matematica", 3))
	}
}

func TestJoinLeaveMembership(t *testing.T) {
	h := NewHub(logging.Nop())
	c := testConn(1, 1)

	room := ChatRoom(5)
	h.Join(c, room)
	if !h.InRoom(c, room) {
		t.Fatal("conn should be in the room after Join")
	}

	h.Leave(c, room)
	if h.InRoom(c, room) {
		t.Fatal("conn should be out after Leave")
	}
	if got := h.RoomMembers(room); len(got) != 0 {
		t.Fatalf("members after leave = %v", got)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := NewHub(logging.Nop())
	sender := testConn(1, 1)
	other := testConn(2, 1)

	room := ChatRoom(5)
	h.Join(sender, room)
	h.Join(other, room)

	h.Broadcast(room, "user_typing", map[string]uint{"user_id": 1}, sender)

	ev := recvEvent(t, other)
	if ev.Name != "user_typing" {
		t.Fatalf("event name = %q", ev.Name)
	}

	select {
	case <-sender.send:
		t.Fatal("sender must not receive its own broadcast")
	default:
	}
}

func TestRoomMembersDedupesUsers(t *testing.T) {
	h := NewHub(logging.Nop())
	room := SchoolRoom(1)

	// Two tabs of the same user plus one other user.
	h.Join(testConn(1, 1), room)
	h.Join(testConn(1, 1), room)
	h.Join(testConn(2, 1), room)

	got := h.RoomMembers(room)
	if len(got) != 2 {
		t.Fatalf("members = %v, want two distinct users", got)
	}
}

func TestUnregisterLeavesAllRooms(t *testing.T) {
	h := NewHub(logging.Nop())
	c := testConn(1, 1)
	h.Join(c, UserRoom(1))
	h.Join(c, SchoolRoom(1))

	h.Unregister(c)

	if len(h.RoomMembers(UserRoom(1))) != 0 || len(h.RoomMembers(SchoolRoom(1))) != 0 {
		t.Fatal("unregistered conn still appears in rooms")
	}

	if !c.closed() {
		t.Fatal("conn should be marked closed after Unregister")
	}
}

func TestBroadcastSurvivesConcurrentUnregister(t *testing.T) {
	h := NewHub(logging.Nop())
	slow := testConn(1, 1)
	room := ChatRoom(5)
	h.Join(slow, room)

	// Fill the outbound buffer so the next broadcast parks on the select.
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- []byte("{}")
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		h.Broadcast(room, "chat_message", map[string]string{"text": "ciao"}, nil)
	}()

	h.Unregister(slow)

	select {
	case <-finished:
	case <-time.After(sendTimeout + time.Second):
		t.Fatal("broadcast did not return after the target disconnected")
	}
}

func TestSendAfterCloseDoesNotBlock(t *testing.T) {
	c := testConn(1, 1)
	for i := 0; i < cap(c.send); i++ {
		c.send <- []byte("{}")
	}
	c.close()

	start := time.Now()
	c.Send("chat_message", map[string]string{"text": "ciao"})
	if time.Since(start) >= sendTimeout {
		t.Fatal("Send should return immediately once the conn is closed")
	}
}
