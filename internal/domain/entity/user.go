package entity

import "time"

const VerificationStatusVerified = "verified"

// User as the messaging core sees it. Account management and the
// verification workflow are external.
type User struct {
	ID                 string    `json:"id" firestore:"id"`
	Username           string    `json:"username" firestore:"username"`
	VerificationStatus string    `json:"verification_status" firestore:"verificationStatus"`
	CreatedAt          time.Time `json:"created_at" firestore:"createdAt"`
}

func (u *User) IsVerified() bool {
	return u.VerificationStatus == VerificationStatusVerified
}
