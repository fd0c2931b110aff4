package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	apperrors "lapakchat/pkg/errors"
	"lapakchat/pkg/logger"
)

// Event names exchanged over the realtime connection.
const (
	EventAuthenticate = "authenticate"
	EventJoinChat     = "join-chat"
	EventSendMessage  = "send-message"
	EventMarkRead     = "mark-read"
	EventTyping       = "typing"
	EventBlockUser    = "block-user"

	EventAuthenticated  = "authenticated"
	EventJoinedChat     = "joined-chat"
	EventReceiveMessage = "receive-message"
	EventUserTyping     = "user-typing"
	EventBlockedSuccess = "user-blocked-success"
	EventUserBlocked    = "user-blocked"
	EventError          = "error"
)

// WSMessage is the wire envelope for every event in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type authenticateData struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type authenticatedData struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type joinChatData struct {
	ChatID string `json:"chat_id"`
}

type sendMessageData struct {
	ChatID   string `json:"chat_id"`
	Message  string `json:"message"`
	ImageURL string `json:"image_url,omitempty"`
}

type typingData struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id,omitempty"`
	IsTyping bool   `json:"is_typing"`
}

type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChatService is the business surface the session delegates every mutating
// event to. Implementations re-check authorization against fresh state on
// each call.
type ChatService interface {
	JoinChat(ctx context.Context, chatID, userID string) error
	SendMessage(ctx context.Context, chatID, senderID, body, imageURL string) error
	MarkRead(ctx context.Context, chatID, userID string) error
	BlockUser(ctx context.Context, chatID, userID string) error
}

// TokenVerifier is the Identity collaborator: credential in, verified user
// id out. A bare client-supplied id is never trusted.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// Session drives the per-connection state machine:
// unauthenticated -> authenticated -> joined (per chat room).
type Session struct {
	manager  *Manager
	chats    ChatService
	verifier TokenVerifier
}

func NewSession(manager *Manager, chats ChatService, verifier TokenVerifier) *Session {
	return &Session{
		manager:  manager,
		chats:    chats,
		verifier: verifier,
	}
}

// ReadPump consumes frames from the connection until it drops, dispatching
// each event. Must run in its own goroutine, one per connection.
func (s *Session) ReadPump(client *Client) {
	defer func() {
		s.manager.Unregister(client)
		client.Close()
	}()

	for {
		_, payload, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error for user %q: %v", client.UserID(), err)
			}
			return
		}
		s.HandleMessage(client, payload)
	}
}

// WritePump flushes the client's send buffer to the connection.
func (s *Session) WritePump(client *Client) {
	defer client.Close()

	for {
		select {
		case payload := <-client.Send:
			if err := client.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Warn("WebSocket: write error for user %q: %v", client.UserID(), err)
				return
			}
		case <-client.done:
			return
		}
	}
}

// HandleMessage dispatches one inbound event. Business-rule failures are
// answered with an error event on the same connection and never close it.
func (s *Session) HandleMessage(client *Client, payload []byte) {
	var msg WSMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.sendError(client, apperrors.BadRequest("Invalid message format", err))
		return
	}

	if msg.Type == EventAuthenticate {
		s.handleAuthenticate(client, msg.Data)
		return
	}

	if client.UserID() == "" {
		s.sendError(client, apperrors.Unauthorized("Authenticate before sending events", nil))
		return
	}

	switch msg.Type {
	case EventJoinChat:
		s.handleJoinChat(client, msg.Data)
	case EventSendMessage:
		s.handleSendMessage(client, msg.Data)
	case EventMarkRead:
		s.handleMarkRead(client, msg.Data)
	case EventTyping:
		s.handleTyping(client, msg.Data)
	case EventBlockUser:
		s.handleBlockUser(client, msg.Data)
	default:
		s.sendError(client, apperrors.BadRequest("Unknown event type", nil))
	}
}

func (s *Session) handleAuthenticate(client *Client, data json.RawMessage) {
	var auth authenticateData
	if err := json.Unmarshal(data, &auth); err != nil || auth.Token == "" {
		s.sendEvent(client, EventAuthenticated, authenticatedData{Success: false, Error: "token is required"})
		return
	}

	userID, err := s.verifier.VerifyToken(context.Background(), auth.Token)
	if err != nil {
		logger.Warn("WebSocket: token verification failed: %v", err)
		s.sendEvent(client, EventAuthenticated, authenticatedData{Success: false, Error: "invalid or expired token"})
		return
	}

	// The claimed id, when present, must match the verified one.
	if auth.UserID != "" && auth.UserID != userID {
		s.sendEvent(client, EventAuthenticated, authenticatedData{Success: false, Error: "user id does not match token"})
		return
	}

	client.SetUserID(userID)
	s.manager.Register(client)
	s.sendEvent(client, EventAuthenticated, authenticatedData{Success: true})
	logger.Info("WebSocket: user %s authenticated", userID)
}

func (s *Session) handleJoinChat(client *Client, data json.RawMessage) {
	var join joinChatData
	if err := json.Unmarshal(data, &join); err != nil || join.ChatID == "" {
		s.sendError(client, apperrors.BadRequest("chat_id is required", err))
		return
	}

	ctx := context.Background()
	if err := s.chats.JoinChat(ctx, join.ChatID, client.UserID()); err != nil {
		s.sendError(client, err)
		return
	}

	s.manager.JoinRoom(join.ChatID, client)
	s.sendEvent(client, EventJoinedChat, joinChatData{ChatID: join.ChatID})

	// Joining implies reading.
	if err := s.chats.MarkRead(ctx, join.ChatID, client.UserID()); err != nil {
		logger.Warn("WebSocket: mark-read on join failed for chat %s user %s: %v", join.ChatID, client.UserID(), err)
	}
}

func (s *Session) handleSendMessage(client *Client, data json.RawMessage) {
	var send sendMessageData
	if err := json.Unmarshal(data, &send); err != nil || send.ChatID == "" || send.Message == "" {
		s.sendError(client, apperrors.BadRequest("chat_id and message are required", err))
		return
	}

	if err := s.chats.SendMessage(context.Background(), send.ChatID, client.UserID(), send.Message, send.ImageURL); err != nil {
		s.sendError(client, err)
		return
	}
	// Success is confirmed by the receive-message room broadcast.
}

func (s *Session) handleMarkRead(client *Client, data json.RawMessage) {
	var read joinChatData
	if err := json.Unmarshal(data, &read); err != nil || read.ChatID == "" {
		return
	}

	// No ack required; failures are logged only.
	if err := s.chats.MarkRead(context.Background(), read.ChatID, client.UserID()); err != nil {
		logger.Warn("WebSocket: mark-read failed for chat %s user %s: %v", read.ChatID, client.UserID(), err)
	}
}

func (s *Session) handleTyping(client *Client, data json.RawMessage) {
	var typing typingData
	if err := json.Unmarshal(data, &typing); err != nil || typing.ChatID == "" {
		return
	}

	// Ephemeral, best effort: room membership is the only gate, nothing is
	// persisted.
	if !s.manager.InRoom(typing.ChatID, client.UserID()) {
		return
	}

	typing.UserID = client.UserID()
	payload, err := Envelope(EventUserTyping, typing)
	if err != nil {
		return
	}
	s.manager.BroadcastToRoom(typing.ChatID, payload, client.UserID())
}

func (s *Session) handleBlockUser(client *Client, data json.RawMessage) {
	var block joinChatData
	if err := json.Unmarshal(data, &block); err != nil || block.ChatID == "" {
		s.sendError(client, apperrors.BadRequest("chat_id is required", err))
		return
	}

	if err := s.chats.BlockUser(context.Background(), block.ChatID, client.UserID()); err != nil {
		s.sendError(client, err)
		return
	}

	s.sendEvent(client, EventBlockedSuccess, joinChatData{ChatID: block.ChatID})
}

// Envelope wraps event data in the wire envelope.
func Envelope(eventType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{
		Type:      eventType,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Session) sendEvent(client *Client, eventType string, data interface{}) {
	payload, err := Envelope(eventType, data)
	if err != nil {
		logger.Error("WebSocket: failed to marshal %s event: %v", eventType, err)
		return
	}
	s.manager.send(client, payload)
}

// sendError answers the originating connection only; errors are never
// broadcast.
func (s *Session) sendError(client *Client, err error) {
	code := "INTERNAL_ERROR"
	message := "An unexpected error occurred"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	}

	s.sendEvent(client, EventError, errorData{Code: code, Message: message})
}
