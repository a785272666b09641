package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/services/messaging"
	"github.com/djsoulspotti-ops/skajla/services/presence"
	"github.com/djsoulspotti-ops/skajla/services/tenantguard"
	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/cache"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
	"github.com/djsoulspotti-ops/skajla/utils/metrics"
)

const (
	// MessageRateLimit caps persisted messages per user per window.
	MessageRateLimit  = 30
	messageRateWindow = 60 * time.Second
)

// Dispatcher owns the inbound side of the event channel. One reader per
// connection keeps a connection's events strictly ordered; different
// connections are handled in parallel.
type Dispatcher struct {
	hub       *Hub
	presence  *presence.Service
	messaging *messaging.Service
	guard     *tenantguard.Guard
	engine    *gamification.Engine
	hot       *cache.RedisCache
	log       *logging.Log
}

// NewDispatcher creates a dispatcher
func NewDispatcher(hub *Hub, pres *presence.Service, msg *messaging.Service, guard *tenantguard.Guard, engine *gamification.Engine, hot *cache.RedisCache, log *logging.Log) *Dispatcher {
	return &Dispatcher{
		hub:       hub,
		presence:  pres,
		messaging: msg,
		guard:     guard,
		engine:    engine,
		hot:       hot,
		log:       log,
	}
}

// errorData is the payload of the "error" event, mirroring the HTTP envelope.
type errorData struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func (d *Dispatcher) sendError(c *Conn, err error) {
	e := apperr.As(err)
	if e == nil {
		c.Send("error", errorData{Error: "INTERNAL_ERROR", Message: "something went wrong"})
		return
	}
	c.Send("error", errorData{Error: e.Code, Message: e.Message, RetryAfter: e.RetryAfter})
}

// ServeConn runs the connection lifecycle: join identity rooms, mark
// presence, then read events until the peer goes away.
func (d *Dispatcher) ServeConn(ws *websocket.Conn, userID, schoolID uint, role string, classID *uint) {
	c := newConn(ws, userID, schoolID, role, classID)
	d.hub.Register(c)
	d.hub.Join(c, UserRoom(userID))
	d.hub.Join(c, SchoolRoom(schoolID))

	ctx := context.Background()
	if err := d.presence.SetOnline(ctx, userID, schoolID); err != nil {
		d.log.Base.Warn("presence online failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	d.hub.Broadcast(SchoolRoom(schoolID), "user_connected", map[string]interface{}{"user_id": userID}, c)

	defer func() {
		if err := d.presence.SetOffline(ctx, userID, schoolID); err != nil {
			d.log.Base.Warn("presence offline failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		d.hub.Unregister(c)
		d.hub.Broadcast(SchoolRoom(schoolID), "user_disconnected", map[string]interface{}{"user_id": userID}, nil)
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			d.sendError(c, apperr.InvalidInput("malformed event"))
			continue
		}

		d.dispatch(ctx, c, evt)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, c *Conn, evt Event) {
	data, _ := json.Marshal(evt.Data)

	var err error
	switch evt.Name {
	case "heartbeat":
		err = d.onHeartbeat(ctx, c)
	case "join_conversation":
		err = d.onJoinConversation(ctx, c, data)
	case "leave_conversation":
		err = d.onLeaveConversation(c, data)
	case "send_message":
		err = d.onSendMessage(ctx, c, data)
	case "typing_start":
		err = d.onTyping(c, data, true)
	case "typing_stop":
		err = d.onTyping(c, data, false)
	case "add_reaction":
		err = d.onReaction(ctx, c, data)
	case "mark_messages_read":
		err = d.onMarkRead(ctx, c, data)
	case "confirm_message_received":
		err = d.onConfirmReceived(ctx, c, data)
	case "send_notification":
		err = d.onSendNotification(ctx, c, data)
	case "get_room_presence":
		err = d.onGetRoomPresence(ctx, c, data)
	case "subscribe_class":
		err = d.onSubscribeClass(ctx, c, data)
	case "subscribe_subject":
		err = d.onSubscribeSubject(c, data)
	case "subscribe_study_group":
		err = d.onSubscribeStudyGroup(ctx, c, data)
	default:
		err = apperr.InvalidInput(fmt.Sprintf("unknown event %q", evt.Name))
	}

	if err != nil {
		d.sendError(c, err)
	}
}

func (d *Dispatcher) onHeartbeat(ctx context.Context, c *Conn) error {
	if err := d.presence.Heartbeat(ctx, c.UserID); err != nil {
		return apperr.TransientStore("heartbeat failed", err)
	}
	c.Send("heartbeat_ack", map[string]interface{}{"ts": time.Now().Unix()})
	return nil
}

type chatRef struct {
	ChatID uint `json:"chat_id"`
}

func (d *Dispatcher) onJoinConversation(ctx context.Context, c *Conn, data []byte) error {
	var req chatRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 {
		return apperr.InvalidInput("chat_id is required")
	}

	if err := d.guard.RequireChatInTenant(ctx, req.ChatID, c.SchoolID); err != nil {
		return err
	}
	if err := d.messaging.RequireMembership(ctx, req.ChatID, c.UserID); err != nil {
		return err
	}

	d.hub.Join(c, ChatRoom(req.ChatID))
	c.Send("joined_conversation", map[string]interface{}{"chat_id": req.ChatID})
	return nil
}

func (d *Dispatcher) onLeaveConversation(c *Conn, data []byte) error {
	var req chatRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 {
		return apperr.InvalidInput("chat_id is required")
	}
	d.hub.Leave(c, ChatRoom(req.ChatID))
	return nil
}

type sendMessageReq struct {
	ChatID        uint   `json:"chat_id"`
	Body          string `json:"body"`
	Kind          string `json:"kind,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	ClientEventID string `json:"client_event_id,omitempty"`
}

func (d *Dispatcher) onSendMessage(ctx context.Context, c *Conn, data []byte) error {
	var req sendMessageReq
	if err := json.Unmarshal(data, &req); err != nil {
		return apperr.InvalidInput("malformed send_message payload")
	}
	if req.ChatID == 0 || req.Body == "" {
		return apperr.InvalidInput("chat_id and body are required")
	}

	// Distributed rate window, 30 msg / 60 s per user.
	rateKey := fmt.Sprintf("rate:msg:%d", c.UserID)
	count, err := d.hot.IncrementWithTTL(ctx, rateKey, messageRateWindow)
	if err == nil && count > MessageRateLimit {
		metrics.RateLimitHits.Inc()
		ttl, _ := d.hot.TTL(ctx, rateKey)
		retry := int(ttl.Seconds())
		if retry <= 0 {
			retry = int(messageRateWindow.Seconds())
		}
		return apperr.RateLimited("message rate limit exceeded", retry)
	}

	if err := d.guard.RequireChatInTenant(ctx, req.ChatID, c.SchoolID); err != nil {
		return err
	}

	kind := model.MessageKind(req.Kind)
	if kind == "" {
		kind = model.MessageKindText
	}

	msg, err := d.messaging.Send(ctx, messaging.SendInput{
		ChatID:        req.ChatID,
		SenderID:      c.UserID,
		Body:          req.Body,
		Kind:          kind,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		// No fan-out for a message that was not committed.
		return err
	}

	d.hub.Broadcast(ChatRoom(req.ChatID), "new_message", msg, nil)

	// XP is best-effort and must never block or fail the send.
	go func() {
		dedup := req.ClientEventID
		var dedupPtr *string
		if dedup != "" {
			dedupPtr = &dedup
		}
		if _, err := d.engine.Award(context.Background(), c.UserID, gamification.ActionMessageSent, 1.0, "chat message", dedupPtr); err != nil {
			d.log.Base.Warn("message xp award failed", zap.Uint("user_id", c.UserID), zap.Error(err))
		}
	}()
	return nil
}

func (d *Dispatcher) onTyping(c *Conn, data []byte, typing bool) error {
	var req chatRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 {
		return apperr.InvalidInput("chat_id is required")
	}

	room := ChatRoom(req.ChatID)
	if !d.hub.InRoom(c, room) {
		return apperr.InvalidInput("join the conversation first")
	}

	d.hub.Broadcast(room, "user_typing", map[string]interface{}{
		"chat_id": req.ChatID,
		"user_id": c.UserID,
		"typing":  typing,
	}, c)
	return nil
}

type reactionReq struct {
	ChatID    uint   `json:"chat_id"`
	MessageID uint   `json:"message_id"`
	Reaction  string `json:"reaction"`
}

// reactionAction maps a reaction to the XP action credited to the message
// author. Marking a message as helpful is worth more than an emoji.
func reactionAction(reaction string) gamification.Action {
	if reaction == "helpful" {
		return gamification.ActionPeerHelped
	}
	return gamification.ActionReactionReceived
}

func (d *Dispatcher) onReaction(ctx context.Context, c *Conn, data []byte) error {
	var req reactionReq
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 || req.MessageID == 0 || req.Reaction == "" {
		return apperr.InvalidInput("chat_id, message_id and reaction are required")
	}

	if err := d.messaging.RequireMembership(ctx, req.ChatID, c.UserID); err != nil {
		return err
	}
	authorID, err := d.messaging.MessageAuthor(ctx, req.ChatID, req.MessageID)
	if err != nil {
		return err
	}

	d.hub.Broadcast(ChatRoom(req.ChatID), "message_reaction", map[string]interface{}{
		"chat_id":    req.ChatID,
		"message_id": req.MessageID,
		"user_id":    c.UserID,
		"reaction":   req.Reaction,
	}, c)

	// Self-reactions fan out but earn nothing.
	if authorID == c.UserID {
		return nil
	}

	action := reactionAction(req.Reaction)
	go func() {
		// One award per reactor per message, whatever the reaction.
		dedup := fmt.Sprintf("reaction:%d:%d", req.MessageID, c.UserID)
		if _, err := d.engine.Award(context.Background(), authorID, action, 1.0, "message reaction", &dedup); err != nil {
			d.log.Base.Warn("reaction xp award failed", zap.Uint("user_id", authorID), zap.Error(err))
		}
	}()
	return nil
}

type markReadReq struct {
	ChatID     uint   `json:"chat_id"`
	MessageIDs []uint `json:"message_ids,omitempty"`
}

func (d *Dispatcher) onMarkRead(ctx context.Context, c *Conn, data []byte) error {
	var req markReadReq
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 {
		return apperr.InvalidInput("chat_id is required")
	}

	if err := d.messaging.RequireMembership(ctx, req.ChatID, c.UserID); err != nil {
		return err
	}

	// Optimistic: fan out immediately, persist receipts in the background.
	d.hub.Broadcast(ChatRoom(req.ChatID), "messages_read", map[string]interface{}{
		"chat_id":     req.ChatID,
		"user_id":     c.UserID,
		"message_ids": req.MessageIDs,
	}, c)

	go func() {
		if err := d.messaging.MarkRead(context.Background(), req.ChatID, c.UserID, req.MessageIDs); err != nil {
			d.log.Base.Warn("mark read failed", zap.Uint("chat_id", req.ChatID), zap.Error(err))
		}
	}()
	return nil
}

type confirmReceivedReq struct {
	ChatID    uint `json:"chat_id"`
	MessageID uint `json:"message_id"`
}

func (d *Dispatcher) onConfirmReceived(ctx context.Context, c *Conn, data []byte) error {
	var req confirmReceivedReq
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 || req.MessageID == 0 {
		return apperr.InvalidInput("chat_id and message_id are required")
	}

	if err := d.messaging.RequireMembership(ctx, req.ChatID, c.UserID); err != nil {
		return err
	}

	// Delivery confirmations are ephemeral, no persistence.
	d.hub.Broadcast(ChatRoom(req.ChatID), "message_delivered", map[string]interface{}{
		"chat_id":    req.ChatID,
		"message_id": req.MessageID,
		"user_id":    c.UserID,
	}, c)
	return nil
}

type sendNotificationReq struct {
	TargetType string `json:"target_type"` // user, class, tenant
	TargetID   uint   `json:"target_id"`
	Title      string `json:"title"`
	Message    string `json:"message"`
}

func (d *Dispatcher) onSendNotification(ctx context.Context, c *Conn, data []byte) error {
	var req sendNotificationReq
	if err := json.Unmarshal(data, &req); err != nil || req.Title == "" {
		return apperr.InvalidInput("target and title are required")
	}

	staff := c.Role == model.RoleTeacher || c.Role == model.RoleDirector || c.Role == model.RoleAdmin

	var room string
	switch req.TargetType {
	case "user":
		if err := d.guard.RequireUserInTenant(ctx, req.TargetID, c.SchoolID); err != nil {
			return err
		}
		room = UserRoom(req.TargetID)
	case "class":
		if !staff {
			return apperr.New(apperr.KindTenantViolation, "FORBIDDEN", "not authorized for class notifications")
		}
		if err := d.guard.RequireClassInTenant(ctx, req.TargetID, c.SchoolID); err != nil {
			return err
		}
		room = ClassRoom(req.TargetID)
	case "tenant":
		if c.Role != model.RoleDirector && c.Role != model.RoleAdmin {
			return apperr.New(apperr.KindTenantViolation, "FORBIDDEN", "not authorized for school notifications")
		}
		room = SchoolRoom(c.SchoolID)
	default:
		return apperr.InvalidInput("target_type must be user, class or tenant")
	}

	d.hub.Broadcast(room, "notification", map[string]interface{}{
		"title":   req.Title,
		"message": req.Message,
		"from":    c.UserID,
	}, nil)
	return nil
}

type roomPresenceReq struct {
	RoomType string `json:"room_type"` // chat, class, school, study_group
	RoomID   uint   `json:"room_id"`
}

func (d *Dispatcher) onGetRoomPresence(ctx context.Context, c *Conn, data []byte) error {
	var req roomPresenceReq
	if err := json.Unmarshal(data, &req); err != nil {
		return apperr.InvalidInput("malformed get_room_presence payload")
	}

	var room string
	switch req.RoomType {
	case "chat":
		room = ChatRoom(req.RoomID)
	case "class":
		room = ClassRoom(req.RoomID)
	case "school":
		room = SchoolRoom(c.SchoolID)
	case "study_group":
		room = StudyGroupRoom(req.RoomID)
	default:
		return apperr.InvalidInput("unknown room_type")
	}

	if !d.hub.InRoom(c, room) {
		return apperr.InvalidInput("join the room first")
	}

	c.Send("room_presence", map[string]interface{}{
		"room_type": req.RoomType,
		"room_id":   req.RoomID,
		"members":   d.hub.RoomMembers(room),
	})
	return nil
}

type classRef struct {
	ClassID uint `json:"class_id"`
}

func (d *Dispatcher) onSubscribeClass(ctx context.Context, c *Conn, data []byte) error {
	var req classRef
	if err := json.Unmarshal(data, &req); err != nil || req.ClassID == 0 {
		return apperr.InvalidInput("class_id is required")
	}

	if err := d.guard.RequireClassInTenant(ctx, req.ClassID, c.SchoolID); err != nil {
		return err
	}

	// Students may only subscribe to their own class.
	staff := c.Role == model.RoleTeacher || c.Role == model.RoleDirector || c.Role == model.RoleAdmin
	if !staff && (c.ClassID == nil || *c.ClassID != req.ClassID) {
		return apperr.New(apperr.KindTenantViolation, "FORBIDDEN", "not a member of this class")
	}

	d.hub.Join(c, ClassRoom(req.ClassID))
	c.Send("subscribed", map[string]interface{}{"room": ClassRoom(req.ClassID)})
	return nil
}

type subjectRef struct {
	Subject string `json:"subject"`
}

func (d *Dispatcher) onSubscribeSubject(c *Conn, data []byte) error {
	var req subjectRef
	if err := json.Unmarshal(data, &req); err != nil || req.Subject == "" {
		return apperr.InvalidInput("subject is required")
	}

	// Subject rooms are tenant-wide broadcast channels; the room name pins
	// the tenant so no cross-school subscription is possible.
	room := SubjectRoom(req.Subject, c.SchoolID)
	d.hub.Join(c, room)
	c.Send("subscribed", map[string]interface{}{"room": room})
	return nil
}

func (d *Dispatcher) onSubscribeStudyGroup(ctx context.Context, c *Conn, data []byte) error {
	var req chatRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 {
		return apperr.InvalidInput("chat_id is required")
	}

	if err := d.guard.RequireChatInTenant(ctx, req.ChatID, c.SchoolID); err != nil {
		return err
	}
	if err := d.messaging.RequireMembership(ctx, req.ChatID, c.UserID); err != nil {
		return err
	}

	d.hub.Join(c, StudyGroupRoom(req.ChatID))
	c.Send("subscribed", map[string]interface{}{"room": StudyGroupRoom(req.ChatID)})
	return nil
}
