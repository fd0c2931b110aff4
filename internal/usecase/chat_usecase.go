package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/repository"
	"lapakchat/internal/domain/service"
	"lapakchat/internal/infrastructure/crypto"
	"lapakchat/internal/infrastructure/ratelimit"
	ws "lapakchat/internal/infrastructure/websocket"
	"lapakchat/pkg/errors"
	"lapakchat/pkg/logger"
)

const previewLength = 100

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	codec       *crypto.Codec
	rateLimiter *ratelimit.RateLimiter
	wsManager   *ws.Manager
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	codec *crypto.Codec,
	rateLimiter *ratelimit.RateLimiter,
	wsManager *ws.Manager,
) *ChatUseCase {
	return &ChatUseCase{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		productRepo: productRepo,
		codec:       codec,
		rateLimiter: rateLimiter,
		wsManager:   wsManager,
	}
}

type CreateChatInput struct {
	ProductID      string
	InitialMessage string
}

type CreateChatResult struct {
	Chat          *entity.Chat
	AlreadyExists bool
}

// DecodedMessage is a log entry with its body decrypted for the caller.
// Unreadable indicates the stored ciphertext could not be opened; the body
// is empty and the message is otherwise intact.
type DecodedMessage struct {
	*entity.Message
	Unreadable bool `json:"unreadable,omitempty"`
}

type HistoryResult struct {
	Chat        *entity.Chat      `json:"chat"`
	Messages    []*DecodedMessage `json:"messages"`
	IsBlocked   bool              `json:"is_blocked"`
	BlockedByMe bool              `json:"blocked_by_me"`
}

// broadcastMessage is the receive-message payload: decoded body, never
// ciphertext.
type broadcastMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Message   string    `json:"message"`
	ImageURL  string    `json:"image_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
}

type blockedNotice struct {
	ChatID    string `json:"chat_id"`
	BlockedBy string `json:"blocked_by"`
}

// GetOrCreateChat returns the chat for (productID, caller), creating it on
// first contact. Idempotent: an existing chat is returned unchanged.
func (uc *ChatUseCase) GetOrCreateChat(ctx context.Context, userID string, input CreateChatInput) (*CreateChatResult, error) {
	product, err := uc.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		logger.Warn("GetOrCreateChat: product %s not found: %v", input.ProductID, err)
		return nil, errors.NotFound("Product", err)
	}

	if !product.IsActive() {
		return nil, errors.ProductUnavailable("This product is not available for chat")
	}

	if userID == product.SellerID {
		return nil, errors.BadRequest("You cannot open a chat about your own product", nil)
	}

	buyer, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}
	if !buyer.IsVerified() {
		return nil, errors.VerificationRequired("Complete identity verification before contacting sellers")
	}

	existing, err := uc.chatRepo.GetByProductAndBuyer(ctx, input.ProductID, userID)
	if err == nil && existing != nil {
		return &CreateChatResult{Chat: existing, AlreadyExists: true}, nil
	}
	if err != nil && !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	now := time.Now()
	chat := &entity.Chat{
		ProductID:    input.ProductID,
		BuyerID:      userID,
		SellerID:     product.SellerID,
		LastActivity: now,
	}

	if err := uc.chatRepo.Create(ctx, chat); err != nil {
		logger.Error("GetOrCreateChat: failed to create chat for product %s buyer %s: %v", input.ProductID, userID, err)
		return nil, err
	}

	if input.InitialMessage != "" {
		if _, err := uc.appendMessage(ctx, chat, userID, input.InitialMessage, ""); err != nil {
			logger.Error("GetOrCreateChat: failed to seed initial message for chat %s: %v", chat.ID, err)
			return nil, err
		}
	}

	return &CreateChatResult{Chat: chat}, nil
}

// GetHistory locates (or lazily creates, under the same rules as
// GetOrCreateChat) the caller's chat for the product and returns the
// decoded log. A message whose ciphertext cannot be opened degrades to an
// empty body instead of failing the fetch.
func (uc *ChatUseCase) GetHistory(ctx context.Context, userID, productID string) (*HistoryResult, error) {
	result, err := uc.GetOrCreateChat(ctx, userID, CreateChatInput{ProductID: productID})
	if err != nil {
		return nil, err
	}
	chat := result.Chat

	stored, err := uc.chatRepo.GetMessages(ctx, chat.ID)
	if err != nil {
		return nil, err
	}

	messages := make([]*DecodedMessage, 0, len(stored))
	for _, msg := range stored {
		copied := *msg
		decoded := &DecodedMessage{Message: &copied}

		plaintext, decodeErr := uc.codec.Decode(msg.Body)
		if decodeErr != nil {
			appErr := errors.DecodeFailed("Stored message body could not be decrypted", decodeErr)
			logger.Warn("GetHistory: message %s in chat %s: %v", msg.ID, chat.ID, appErr)
			copied.Body = ""
			decoded.Unreadable = true
		} else {
			copied.Body = plaintext
		}
		messages = append(messages, decoded)
	}

	return &HistoryResult{
		Chat:        chat,
		Messages:    messages,
		IsBlocked:   service.IsBlocked(chat, userID),
		BlockedByMe: service.IsBlocked(chat, chat.OtherParticipant(userID)),
	}, nil
}

// JoinChat authorizes a user to enter the chat's broadcast room. The room
// subscription itself is the transport layer's job.
func (uc *ChatUseCase) JoinChat(ctx context.Context, chatID, userID string) error {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}

	if !service.IsParticipant(chat, userID) {
		return errors.Forbidden("User is not a participant in this chat", nil)
	}
	if service.IsBlocked(chat, userID) {
		return errors.Blocked("You have been blocked in this chat")
	}

	return nil
}

// SendMessage runs the full pipeline: rate limit, fresh authorization,
// product-active check, encrypt, atomic append with unread bookkeeping,
// then a plaintext broadcast to the chat room. No broadcast happens for a
// write that is not confirmed persisted.
func (uc *ChatUseCase) SendMessage(ctx context.Context, chatID, senderID, body, imageURL string) error {
	allowed, waitTime := uc.rateLimiter.Allow(senderID)
	if !allowed {
		logger.Warn("SendMessage: rate limited user %s, wait %v", senderID, waitTime)
		return errors.TooManyRequests("You are sending messages too quickly", waitTime)
	}

	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}

	if !service.IsParticipant(chat, senderID) {
		logger.Warn("SendMessage: user %s is not a participant in chat %s", senderID, chatID)
		return errors.Forbidden("User is not a participant in this chat", nil)
	}
	if service.IsBlocked(chat, senderID) {
		return errors.Blocked("You have been blocked in this chat")
	}

	product, err := uc.productRepo.GetByID(ctx, chat.ProductID)
	if err != nil {
		return errors.NotFound("Product", err)
	}
	if !product.IsActive() {
		return errors.ProductUnavailable("This product is no longer available")
	}

	_, err = uc.appendMessage(ctx, chat, senderID, body, imageURL)
	return err
}

// appendMessage encrypts, persists atomically and broadcasts. The caller
// has already authorized the sender.
func (uc *ChatUseCase) appendMessage(ctx context.Context, chat *entity.Chat, senderID, body, imageURL string) (*entity.Message, error) {
	ciphertext, err := uc.codec.Encode(body)
	if err != nil {
		return nil, errors.Internal("Failed to encrypt message", err)
	}

	msg := &entity.Message{
		ID:        newMessageID(),
		ChatID:    chat.ID,
		SenderID:  senderID,
		Body:      ciphertext,
		ImageURL:  imageURL,
		Timestamp: time.Now(),
		IsRead:    false,
	}

	if err := uc.chatRepo.AppendMessage(ctx, chat.ID, msg, truncate(body, previewLength)); err != nil {
		logger.Error("appendMessage: failed to persist message in chat %s: %v", chat.ID, err)
		return nil, err
	}

	payload, err := ws.Envelope(ws.EventReceiveMessage, broadcastMessage{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Message:   body,
		ImageURL:  msg.ImageURL,
		Timestamp: msg.Timestamp,
		IsRead:    msg.IsRead,
	})
	if err != nil {
		logger.Error("appendMessage: failed to marshal broadcast for chat %s: %v", chat.ID, err)
		return msg, nil
	}

	// Everyone joined to the room receives the broadcast, sender included:
	// it doubles as the delivery confirmation. An offline recipient is
	// fine, the message is already in the durable log.
	uc.wsManager.BroadcastToRoom(chat.ID, payload, "")
	return msg, nil
}

// MarkRead flips every message sent to userID to read and resets the
// caller's unread counter. Idempotent.
func (uc *ChatUseCase) MarkRead(ctx context.Context, chatID, userID string) error {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}

	if !service.CanRead(chat, userID) {
		return errors.Forbidden("User is not a participant in this chat", nil)
	}

	return uc.chatRepo.MarkRead(ctx, chatID, userID)
}

// BlockUser blocks the caller's counterpart: a buyer blocks the seller, a
// seller blocks the buyer. The blocked party is notified directly if
// online, since they may remain subscribed to the room.
func (uc *ChatUseCase) BlockUser(ctx context.Context, chatID, userID string) error {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}

	if !service.IsParticipant(chat, userID) {
		return errors.Forbidden("User is not a participant in this chat", nil)
	}

	// buyerBlocked marks the buyer as the blocked party, so the seller is
	// the one who sets it.
	blockBuyer := userID == chat.SellerID
	if err := uc.chatRepo.SetBlocked(ctx, chatID, blockBuyer); err != nil {
		logger.Error("BlockUser: failed to persist block on chat %s: %v", chatID, err)
		return err
	}

	blockedParty := chat.OtherParticipant(userID)
	payload, err := ws.Envelope(ws.EventUserBlocked, blockedNotice{ChatID: chatID, BlockedBy: userID})
	if err == nil {
		if !uc.wsManager.SendToUser(blockedParty, payload) {
			logger.Debug("BlockUser: blocked party %s offline, no notification", blockedParty)
		}
	}

	logger.Info("BlockUser: user %s blocked %s in chat %s", userID, blockedParty, chatID)
	return nil
}

// ListChats returns the caller's chats ordered by recent activity, using
// the denormalized preview fields.
func (uc *ChatUseCase) ListChats(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	return uc.chatRepo.ListByUserID(ctx, userID, limit, offset)
}

// newMessageID is unique within a chat: creation time plus a random
// suffix.
func newMessageID() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
