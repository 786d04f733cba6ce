package model

import "time"

// User is a registered account. Each user owns their items, day contexts,
// and a personal prediction model scope.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
