package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lapakchat/pkg/errors"
)

type fakeChatService struct {
	joinErr  error
	sendErr  error
	blockErr error

	joined  []string
	sent    []string
	marked  []string
	blocked []string
}

func (f *fakeChatService) JoinChat(_ context.Context, chatID, userID string) error {
	f.joined = append(f.joined, chatID+":"+userID)
	return f.joinErr
}

func (f *fakeChatService) SendMessage(_ context.Context, chatID, senderID, body, _ string) error {
	f.sent = append(f.sent, chatID+":"+senderID+":"+body)
	return f.sendErr
}

func (f *fakeChatService) MarkRead(_ context.Context, chatID, userID string) error {
	f.marked = append(f.marked, chatID+":"+userID)
	return nil
}

func (f *fakeChatService) BlockUser(_ context.Context, chatID, userID string) error {
	f.blocked = append(f.blocked, chatID+":"+userID)
	return f.blockErr
}

type fakeVerifier struct {
	uid string
	err error
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.uid, nil
}

func event(t *testing.T, eventType string, data interface{}) []byte {
	payload, err := Envelope(eventType, data)
	require.NoError(t, err)
	return payload
}

func lastEvent(t *testing.T, c *Client) WSMessage {
	events := drain(c)
	require.NotEmpty(t, events, "expected at least one event for %q", c.UserID())
	var msg WSMessage
	require.NoError(t, json.Unmarshal(events[len(events)-1], &msg))
	return msg
}

func TestAuthenticateSuccess(t *testing.T) {
	m := NewManager()
	svc := &fakeChatService{}
	s := NewSession(m, svc, &fakeVerifier{uid: "buyer-1"})
	client := NewClient(nil)

	s.HandleMessage(client, event(t, EventAuthenticate, map[string]string{"token": "good"}))

	msg := lastEvent(t, client)
	assert.Equal(t, EventAuthenticated, msg.Type)
	assert.Contains(t, string(msg.Data), `"success":true`)
	assert.Equal(t, "buyer-1", client.UserID())
	assert.True(t, m.IsOnline("buyer-1"))
}

func TestAuthenticateRejectsMismatchedClaim(t *testing.T) {
	m := NewManager()
	s := NewSession(m, &fakeChatService{}, &fakeVerifier{uid: "buyer-1"})
	client := NewClient(nil)

	s.HandleMessage(client, event(t, EventAuthenticate, map[string]string{
		"token":   "good",
		"user_id": "someone-else",
	}))

	msg := lastEvent(t, client)
	assert.Equal(t, EventAuthenticated, msg.Type)
	assert.Contains(t, string(msg.Data), `"success":false`)
	assert.Empty(t, client.UserID())
	assert.False(t, m.IsOnline("someone-else"))
}

func TestAuthenticateFailureKeepsConnection(t *testing.T) {
	m := NewManager()
	s := NewSession(m, &fakeChatService{}, &fakeVerifier{err: fmt.Errorf("expired")})
	client := NewClient(nil)

	s.HandleMessage(client, event(t, EventAuthenticate, map[string]string{"token": "bad"}))

	msg := lastEvent(t, client)
	assert.Equal(t, EventAuthenticated, msg.Type)
	assert.Contains(t, string(msg.Data), `"success":false`)

	select {
	case <-client.done:
		t.Fatal("failed authentication must not close the connection")
	default:
	}
}

func TestEventsRequireAuthentication(t *testing.T) {
	s := NewSession(NewManager(), &fakeChatService{}, &fakeVerifier{uid: "x"})
	client := NewClient(nil)

	s.HandleMessage(client, event(t, EventSendMessage, map[string]string{
		"chat_id": "chat-1",
		"message": "hi",
	}))

	msg := lastEvent(t, client)
	assert.Equal(t, EventError, msg.Type)
	assert.Contains(t, string(msg.Data), "UNAUTHORIZED")
}

func TestJoinChatMarksRead(t *testing.T) {
	m := NewManager()
	svc := &fakeChatService{}
	s := NewSession(m, svc, &fakeVerifier{uid: "buyer-1"})
	client := NewClient(nil)
	client.SetUserID("buyer-1")
	m.Register(client)

	s.HandleMessage(client, event(t, EventJoinChat, map[string]string{"chat_id": "chat-1"}))

	msg := lastEvent(t, client)
	assert.Equal(t, EventJoinedChat, msg.Type)
	assert.True(t, m.InRoom("chat-1", "buyer-1"))
	assert.Equal(t, []string{"chat-1:buyer-1"}, svc.marked, "joining implies reading")
}

func TestJoinChatDeniedDoesNotJoinRoom(t *testing.T) {
	m := NewManager()
	svc := &fakeChatService{joinErr: apperrors.Forbidden("User is not a participant in this chat", nil)}
	s := NewSession(m, svc, &fakeVerifier{uid: "stranger"})
	client := NewClient(nil)
	client.SetUserID("stranger")
	m.Register(client)

	s.HandleMessage(client, event(t, EventJoinChat, map[string]string{"chat_id": "chat-1"}))

	msg := lastEvent(t, client)
	assert.Equal(t, EventError, msg.Type)
	assert.Contains(t, string(msg.Data), "FORBIDDEN")
	assert.False(t, m.InRoom("chat-1", "stranger"))
	assert.Empty(t, svc.marked)
}

func TestSendMessageErrorGoesToSenderOnly(t *testing.T) {
	m := NewManager()
	svc := &fakeChatService{sendErr: apperrors.Blocked("You have been blocked in this chat")}
	s := NewSession(m, svc, &fakeVerifier{uid: "seller-1"})

	sender := NewClient(nil)
	sender.SetUserID("seller-1")
	other := NewClient(nil)
	other.SetUserID("buyer-1")
	m.Register(sender)
	m.Register(other)
	m.JoinRoom("chat-1", sender)
	m.JoinRoom("chat-1", other)

	s.HandleMessage(sender, event(t, EventSendMessage, map[string]string{
		"chat_id": "chat-1",
		"message": "hello",
	}))

	msg := lastEvent(t, sender)
	assert.Equal(t, EventError, msg.Type)
	assert.Contains(t, string(msg.Data), "BLOCKED")
	assert.Empty(t, drain(other), "errors are never broadcast")
}

func TestTypingRelaysToRoomExcludingSender(t *testing.T) {
	m := NewManager()
	svc := &fakeChatService{}
	s := NewSession(m, svc, &fakeVerifier{uid: "buyer-1"})

	buyer := NewClient(nil)
	buyer.SetUserID("buyer-1")
	seller := NewClient(nil)
	seller.SetUserID("seller-1")
	m.Register(buyer)
	m.Register(seller)
	m.JoinRoom("chat-1", buyer)
	m.JoinRoom("chat-1", seller)

	s.HandleMessage(buyer, event(t, EventTyping, map[string]interface{}{
		"chat_id":   "chat-1",
		"is_typing": true,
	}))

	msg := lastEvent(t, seller)
	assert.Equal(t, EventUserTyping, msg.Type)
	assert.Contains(t, string(msg.Data), "buyer-1")
	assert.Empty(t, drain(buyer), "sender is excluded from typing broadcast")
}

func TestTypingRequiresRoomMembership(t *testing.T) {
	m := NewManager()
	s := NewSession(m, &fakeChatService{}, &fakeVerifier{uid: "buyer-1"})

	buyer := NewClient(nil)
	buyer.SetUserID("buyer-1")
	seller := NewClient(nil)
	seller.SetUserID("seller-1")
	m.Register(buyer)
	m.Register(seller)
	m.JoinRoom("chat-1", seller)

	s.HandleMessage(buyer, event(t, EventTyping, map[string]interface{}{
		"chat_id":   "chat-1",
		"is_typing": true,
	}))

	assert.Empty(t, drain(seller), "typing from a non-member is dropped")
}

func TestBlockUserAcknowledged(t *testing.T) {
	m := NewManager()
	svc := &fakeChatService{}
	s := NewSession(m, svc, &fakeVerifier{uid: "seller-1"})
	client := NewClient(nil)
	client.SetUserID("seller-1")
	m.Register(client)

	s.HandleMessage(client, event(t, EventBlockUser, map[string]string{"chat_id": "chat-1"}))

	msg := lastEvent(t, client)
	assert.Equal(t, EventBlockedSuccess, msg.Type)
	assert.Equal(t, []string{"chat-1:seller-1"}, svc.blocked)
}

func TestMalformedEnvelope(t *testing.T) {
	s := NewSession(NewManager(), &fakeChatService{}, &fakeVerifier{uid: "x"})
	client := NewClient(nil)

	s.HandleMessage(client, []byte("{not json"))

	msg := lastEvent(t, client)
	assert.Equal(t, EventError, msg.Type)
	assert.Contains(t, string(msg.Data), "BAD_REQUEST")
}
