package repository

import (
	"context"

	"lapakchat/internal/domain/entity"
)

// ChatRepository is the durable store for chats and their message logs.
//
// AppendMessage and MarkRead are the correctness-critical operations: each
// must apply the message-log mutation and the paired unread-counter change
// as one atomic unit, so concurrent sends into the same chat never lose an
// increment and mark-read never races a concurrent append.
type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	GetByProductAndBuyer(ctx context.Context, productID, buyerID string) (*entity.Chat, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error)

	// AppendMessage persists msg and, in the same atomic unit, increments
	// the recipient's unread counter and refreshes the chat's lastMessage
	// preview and lastActivity.
	AppendMessage(ctx context.Context, chatID string, msg *entity.Message, preview string) error

	// MarkRead flips isRead on every message sent to readerID and resets
	// readerID's unread counter to zero. Idempotent.
	MarkRead(ctx context.Context, chatID, readerID string) error

	// GetMessages returns the chat's log in append (chronological) order.
	GetMessages(ctx context.Context, chatID string) ([]*entity.Message, error)

	// SetBlocked persists a block flag. blockBuyer selects which side is
	// being blocked: true sets buyerBlocked, false sets sellerBlocked.
	SetBlocked(ctx context.Context, chatID string, blockBuyer bool) error
}
