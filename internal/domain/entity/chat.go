package entity

import "time"

// Chat is the durable conversation record between one buyer and one seller
// about one product. Exactly two participants, immutable after creation.
// At most one chat exists per (productId, buyerId) pair.
type Chat struct {
	ID        string `json:"id" firestore:"id"`
	ProductID string `json:"product_id" firestore:"productId"`
	BuyerID   string `json:"buyer_id" firestore:"buyerId"`
	SellerID  string `json:"seller_id" firestore:"sellerId"`

	// Denormalized counts of messages sent by the other party and not yet
	// marked read by this party. Must stay consistent with the message log
	// on every mutation.
	BuyerUnread  int `json:"buyer_unread" firestore:"buyerUnread"`
	SellerUnread int `json:"seller_unread" firestore:"sellerUnread"`

	// BuyerBlocked means the seller blocked the buyer: the buyer cannot
	// send. SellerBlocked is the mirror. Flags never revert.
	BuyerBlocked  bool `json:"buyer_blocked" firestore:"buyerBlocked"`
	SellerBlocked bool `json:"seller_blocked" firestore:"sellerBlocked"`

	LastMessage  string    `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastActivity time.Time `json:"last_activity" firestore:"lastActivity"`
	CreatedAt    time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updatedAt"`
}

// OtherParticipant returns the counterpart of userID in this chat, or ""
// when userID is not a participant.
func (c *Chat) OtherParticipant(userID string) string {
	switch userID {
	case c.BuyerID:
		return c.SellerID
	case c.SellerID:
		return c.BuyerID
	}
	return ""
}
