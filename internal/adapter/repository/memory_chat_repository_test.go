package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lapakchat/internal/domain/entity"
	"lapakchat/pkg/errors"
)

func seedChat(t *testing.T, r *MemoryChatRepository) *entity.Chat {
	t.Helper()
	chat := &entity.Chat{ProductID: "prod-1", BuyerID: "buyer-1", SellerID: "seller-1"}
	require.NoError(t, r.Create(context.Background(), chat))
	return chat
}

func TestCreateEnforcesProductBuyerUniqueness(t *testing.T) {
	r := NewMemoryChatRepository()
	ctx := context.Background()

	seedChat(t, r)

	dup := &entity.Chat{ProductID: "prod-1", BuyerID: "buyer-1", SellerID: "seller-1"}
	err := r.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	otherBuyer := &entity.Chat{ProductID: "prod-1", BuyerID: "buyer-2", SellerID: "seller-1"}
	assert.NoError(t, r.Create(ctx, otherBuyer))
}

func TestGetByProductAndBuyer(t *testing.T) {
	r := NewMemoryChatRepository()
	ctx := context.Background()
	chat := seedChat(t, r)

	found, err := r.GetByProductAndBuyer(ctx, "prod-1", "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, found.ID)

	_, err = r.GetByProductAndBuyer(ctx, "prod-1", "buyer-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestAppendMessageBumpsRecipientCounter(t *testing.T) {
	r := NewMemoryChatRepository()
	ctx := context.Background()
	chat := seedChat(t, r)

	msg := &entity.Message{ID: "m1", ChatID: chat.ID, SenderID: "buyer-1", Body: "ct", Timestamp: time.Now()}
	require.NoError(t, r.AppendMessage(ctx, chat.ID, msg, "preview"))

	reloaded, err := r.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.SellerUnread)
	assert.Equal(t, 0, reloaded.BuyerUnread)
	assert.Equal(t, "preview", reloaded.LastMessage)
	assert.Equal(t, msg.Timestamp, reloaded.LastActivity)
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	r := NewMemoryChatRepository()
	ctx := context.Background()
	chat := seedChat(t, r)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			msg := &entity.Message{
				ID:        time.Now().Format(time.RFC3339Nano) + "_" + string(rune('a'+i%26)),
				ChatID:    chat.ID,
				SenderID:  "buyer-1",
				Body:      "ct",
				Timestamp: time.Now(),
			}
			assert.NoError(t, r.AppendMessage(ctx, chat.ID, msg, "p"))
		}(i)
	}
	wg.Wait()

	reloaded, err := r.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, n, reloaded.SellerUnread)

	messages, err := r.GetMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, messages, n)
}

func TestMarkReadIsScopedToReader(t *testing.T) {
	r := NewMemoryChatRepository()
	ctx := context.Background()
	chat := seedChat(t, r)

	require.NoError(t, r.AppendMessage(ctx, chat.ID, &entity.Message{ID: "m1", ChatID: chat.ID, SenderID: "buyer-1", Body: "ct", Timestamp: time.Now()}, "p"))
	require.NoError(t, r.AppendMessage(ctx, chat.ID, &entity.Message{ID: "m2", ChatID: chat.ID, SenderID: "seller-1", Body: "ct", Timestamp: time.Now()}, "p"))

	require.NoError(t, r.MarkRead(ctx, chat.ID, "seller-1"))

	reloaded, err := r.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.SellerUnread)
	assert.Equal(t, 1, reloaded.BuyerUnread)

	messages, err := r.GetMessages(ctx, chat.ID)
	require.NoError(t, err)
	for _, msg := range messages {
		if msg.SenderID == "buyer-1" {
			assert.True(t, msg.IsRead)
		} else {
			assert.False(t, msg.IsRead)
		}
	}
}

func TestSetBlockedTargetsOneSide(t *testing.T) {
	r := NewMemoryChatRepository()
	ctx := context.Background()
	chat := seedChat(t, r)

	require.NoError(t, r.SetBlocked(ctx, chat.ID, true))

	reloaded, err := r.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.BuyerBlocked)
	assert.False(t, reloaded.SellerBlocked)
}

func TestListByUserIDCoversBothRoles(t *testing.T) {
	r := NewMemoryChatRepository()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &entity.Chat{ProductID: "prod-1", BuyerID: "buyer-1", SellerID: "seller-1"}))
	require.NoError(t, r.Create(ctx, &entity.Chat{ProductID: "prod-2", BuyerID: "seller-1", SellerID: "seller-2"}))

	chats, total, err := r.ListByUserID(ctx, "seller-1", 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, chats, 2, "seller-1 appears once as seller and once as buyer")
}
