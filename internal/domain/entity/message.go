package entity

import "time"

// Message lives in a chat's append-only log. Body holds ciphertext at rest;
// plaintext exists only transiently in memory and on the wire. ImageURL is
// never encrypted. IsRead is flipped false->true by the recipient only.
type Message struct {
	ID        string    `json:"id" firestore:"id"`
	ChatID    string    `json:"chat_id" firestore:"chatId"`
	SenderID  string    `json:"sender_id" firestore:"senderId"`
	Body      string    `json:"message" firestore:"body"`
	ImageURL  string    `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
	IsRead    bool      `json:"is_read" firestore:"isRead"`
}
