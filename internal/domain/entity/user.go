package entity

import "time"

type User struct {
	ID                 string    `json:"id" firestore:"id"`
	Username           string    `json:"username" firestore:"username"`
	Email              string    `json:"email" firestore:"email"`
	Role               string    `json:"role" firestore:"role"` // "user", "mediator", "admin"
	VerificationStatus string    `json:"verification_status" firestore:"verificationStatus"`
	CreatedAt          time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt          time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

func (u *User) IsMediator() bool {
	return u.Role == "mediator"
}
