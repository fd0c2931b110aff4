package entity

import "time"

const ProductStatusActive = "active"

// Product is the listing a chat concerns. The messaging core only reads it:
// listing CRUD lives outside this service.
type Product struct {
	ID        string    `json:"id" firestore:"id"`
	SellerID  string    `json:"seller_id" firestore:"sellerId"`
	Title     string    `json:"title" firestore:"title"`
	Status    string    `json:"status" firestore:"status"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}
