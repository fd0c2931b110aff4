package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/repository"
	"lapakchat/pkg/errors"
	"lapakchat/pkg/logger"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) Create(ctx context.Context, chat *entity.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}

	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	if chat.LastActivity.IsZero() {
		chat.LastActivity = now
	}

	// The (productId, buyerId) uniqueness check and the write happen in one
	// transaction so two concurrent first contacts cannot both create.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := r.client.Collection("chats").
			Where("productId", "==", chat.ProductID).
			Where("buyerId", "==", chat.BuyerID).
			Limit(1)
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			return errors.BadRequest("Chat already exists for this product and buyer", nil)
		}
		return tx.Set(r.client.Collection("chats").Doc(chat.ID), chat)
	})
	if err != nil {
		if errors.Is(err, "BAD_REQUEST") {
			return err
		}
		return errors.Internal("Failed to create chat", err)
	}

	return nil
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	doc, err := r.client.Collection("chats").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat", nil)
		}
		return nil, errors.Internal("Failed to get chat", err)
	}

	var chat entity.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}

	return &chat, nil
}

func (r *firestoreChatRepository) GetByProductAndBuyer(ctx context.Context, productID, buyerID string) (*entity.Chat, error) {
	query := r.client.Collection("chats").
		Where("productId", "==", productID).
		Where("buyerId", "==", buyerID).
		Limit(1)

	doc, err := query.Documents(ctx).Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Chat", nil)
		}
		return nil, errors.Internal("Failed to query chat by product and buyer", err)
	}

	var chat entity.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}

	return &chat, nil
}

func (r *firestoreChatRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	// A user appears as buyer in some chats and seller in others, two
	// queries merged in memory and ordered by recent activity.
	var chats []*entity.Chat
	for _, field := range []string{"buyerId", "sellerId"} {
		docs, err := r.client.Collection("chats").Where(field, "==", userID).Documents(ctx).GetAll()
		if err != nil {
			logger.Error("Firestore error while fetching chats for user %s: %v", userID, err)
			return nil, 0, errors.Internal("Failed to fetch chats", err)
		}
		for _, doc := range docs {
			var chat entity.Chat
			if err := doc.DataTo(&chat); err != nil {
				logger.Warn("Skipping malformed chat document %s: %v", doc.Ref.ID, err)
				continue
			}
			chats = append(chats, &chat)
		}
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastActivity.After(chats[j].LastActivity)
	})

	total := int64(len(chats))
	if offset >= len(chats) {
		return []*entity.Chat{}, total, nil
	}
	chats = chats[offset:]
	if limit > 0 && limit < len(chats) {
		chats = chats[:limit]
	}

	return chats, total, nil
}

// AppendMessage writes the message, bumps the recipient's unread counter
// and refreshes the chat preview in a single transaction.
func (r *firestoreChatRepository) AppendMessage(ctx context.Context, chatID string, msg *entity.Message, preview string) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	chatRef := r.client.Collection("chats").Doc(chatID)
	msgRef := chatRef.Collection("messages").Doc(msg.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(chatRef)
		if err != nil {
			return err
		}

		var chat entity.Chat
		if err := doc.DataTo(&chat); err != nil {
			return err
		}

		unreadField := "buyerUnread"
		if msg.SenderID == chat.BuyerID {
			unreadField = "sellerUnread"
		}

		if err := tx.Set(msgRef, msg); err != nil {
			return err
		}
		return tx.Update(chatRef, []firestore.Update{
			{Path: unreadField, Value: firestore.Increment(1)},
			{Path: "lastMessage", Value: preview},
			{Path: "lastActivity", Value: msg.Timestamp},
			{Path: "updatedAt", Value: msg.Timestamp},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Chat", err)
		}
		return errors.Internal("Failed to append message", err)
	}

	return nil
}

// MarkRead flips every message sent to readerID to read and resets the
// reader's unread counter in a single transaction.
func (r *firestoreChatRepository) MarkRead(ctx context.Context, chatID, readerID string) error {
	chatRef := r.client.Collection("chats").Doc(chatID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(chatRef)
		if err != nil {
			return err
		}

		var chat entity.Chat
		if err := doc.DataTo(&chat); err != nil {
			return err
		}

		unread := chatRef.Collection("messages").
			Where("senderId", "!=", readerID).
			Where("isRead", "==", false)
		docs, err := tx.Documents(unread).GetAll()
		if err != nil {
			return err
		}

		for _, msgDoc := range docs {
			if err := tx.Update(msgDoc.Ref, []firestore.Update{
				{Path: "isRead", Value: true},
			}); err != nil {
				return err
			}
		}

		counterField := "sellerUnread"
		if readerID == chat.BuyerID {
			counterField = "buyerUnread"
		}
		return tx.Update(chatRef, []firestore.Update{
			{Path: counterField, Value: 0},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Chat", err)
		}
		return errors.Internal("Failed to mark chat as read", err)
	}

	return nil
}

func (r *firestoreChatRepository) GetMessages(ctx context.Context, chatID string) ([]*entity.Message, error) {
	iter := r.client.Collection("chats").Doc(chatID).Collection("messages").
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx)

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for chat %s: %v", chatID, err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Warn("Skipping malformed message document %s in chat %s: %v", doc.Ref.ID, chatID, err)
			continue
		}
		messages = append(messages, &message)
	}

	return messages, nil
}

func (r *firestoreChatRepository) SetBlocked(ctx context.Context, chatID string, blockBuyer bool) error {
	field := "sellerBlocked"
	if blockBuyer {
		field = "buyerBlocked"
	}

	_, err := r.client.Collection("chats").Doc(chatID).Update(ctx, []firestore.Update{
		{Path: field, Value: true},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Chat", err)
		}
		return errors.Internal("Failed to block user", err)
	}

	return nil
}
