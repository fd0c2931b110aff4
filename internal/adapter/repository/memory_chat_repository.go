package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/repository"
	"lapakchat/pkg/errors"
)

// MemoryChatRepository keeps chats and their message logs in process
// memory. Used in local development and in tests; the mutex gives the
// same atomicity the Firestore implementation gets from transactions.
type MemoryChatRepository struct {
	mu       sync.RWMutex
	chats    map[string]*entity.Chat
	messages map[string][]*entity.Message
	// byProductBuyer enforces one chat per (product, buyer) pair.
	byProductBuyer map[string]string
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		chats:          make(map[string]*entity.Chat),
		messages:       make(map[string][]*entity.Message),
		byProductBuyer: make(map[string]string),
	}
}

var _ repository.ChatRepository = (*MemoryChatRepository)(nil)

func pairKey(productID, buyerID string) string {
	return productID + "|" + buyerID
}

func (r *MemoryChatRepository) Create(ctx context.Context, chat *entity.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(chat.ProductID, chat.BuyerID)
	if _, exists := r.byProductBuyer[key]; exists {
		return errors.BadRequest("Chat already exists for this product and buyer", nil)
	}

	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	if chat.LastActivity.IsZero() {
		chat.LastActivity = now
	}

	stored := *chat
	r.chats[chat.ID] = &stored
	r.byProductBuyer[key] = chat.ID
	return nil
}

func (r *MemoryChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chat, ok := r.chats[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	copied := *chat
	return &copied, nil
}

func (r *MemoryChatRepository) GetByProductAndBuyer(ctx context.Context, productID, buyerID string) (*entity.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byProductBuyer[pairKey(productID, buyerID)]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	copied := *r.chats[id]
	return &copied, nil
}

func (r *MemoryChatRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*entity.Chat
	for _, chat := range r.chats {
		if chat.BuyerID == userID || chat.SellerID == userID {
			copied := *chat
			matched = append(matched, &copied)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LastActivity.After(matched[j].LastActivity)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []*entity.Chat{}, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// AppendMessage stores the message, bumps the recipient's unread counter
// and refreshes the chat preview in one critical section.
func (r *MemoryChatRepository) AppendMessage(ctx context.Context, chatID string, msg *entity.Message, preview string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[chatID]
	if !ok {
		return errors.NotFound("Chat", nil)
	}

	stored := *msg
	r.messages[chatID] = append(r.messages[chatID], &stored)

	if msg.SenderID == chat.BuyerID {
		chat.SellerUnread++
	} else {
		chat.BuyerUnread++
	}
	chat.LastMessage = preview
	chat.LastActivity = msg.Timestamp
	chat.UpdatedAt = msg.Timestamp
	return nil
}

// MarkRead flips every message addressed to readerID to read and resets
// the reader's unread counter, atomically.
func (r *MemoryChatRepository) MarkRead(ctx context.Context, chatID, readerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[chatID]
	if !ok {
		return errors.NotFound("Chat", nil)
	}

	for _, msg := range r.messages[chatID] {
		if msg.SenderID != readerID {
			msg.IsRead = true
		}
	}

	if readerID == chat.BuyerID {
		chat.BuyerUnread = 0
	} else {
		chat.SellerUnread = 0
	}
	chat.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryChatRepository) GetMessages(ctx context.Context, chatID string) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.chats[chatID]; !ok {
		return nil, errors.NotFound("Chat", nil)
	}

	log := r.messages[chatID]
	out := make([]*entity.Message, 0, len(log))
	for _, msg := range log {
		copied := *msg
		out = append(out, &copied)
	}
	return out, nil
}

func (r *MemoryChatRepository) SetBlocked(ctx context.Context, chatID string, blockBuyer bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[chatID]
	if !ok {
		return errors.NotFound("Chat", nil)
	}

	if blockBuyer {
		chat.BuyerBlocked = true
	} else {
		chat.SellerBlocked = true
	}
	chat.UpdatedAt = time.Now()
	return nil
}
