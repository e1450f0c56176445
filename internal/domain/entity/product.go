package entity

import "time"

type Product struct {
	ID        string    `json:"id" firestore:"id"`
	SellerID  string    `json:"seller_id" firestore:"sellerId"`
	Title     string    `json:"title" firestore:"title"`
	Price     float64   `json:"price" firestore:"price"`
	Currency  string    `json:"currency" firestore:"currency"`
	Status    string    `json:"status" firestore:"status"` // "active", "sold", "inactive"
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}
