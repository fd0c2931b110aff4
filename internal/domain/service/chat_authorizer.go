package service

import "lapakchat/internal/domain/entity"

// ChatAuthorizer holds the pure access-control decisions for a chat. It has
// no state; every mutating event re-runs these checks against freshly
// fetched chat state, because block flags can change between events.
//
// Block-direction convention: buyerBlocked=true means the seller blocked
// the buyer, so the buyer cannot send (and symmetrically for sellerBlocked).

func IsParticipant(chat *entity.Chat, userID string) bool {
	return userID == chat.BuyerID || userID == chat.SellerID
}

// IsBlocked reports whether the counterpart has blocked userID.
func IsBlocked(chat *entity.Chat, userID string) bool {
	switch userID {
	case chat.BuyerID:
		return chat.BuyerBlocked
	case chat.SellerID:
		return chat.SellerBlocked
	}
	return false
}

// CanSend does not include the product-active check; the caller fetches
// product status and verifies it alongside.
func CanSend(chat *entity.Chat, userID string) bool {
	return IsParticipant(chat, userID) && !IsBlocked(chat, userID)
}

func CanRead(chat *entity.Chat, userID string) bool {
	return IsParticipant(chat, userID)
}
