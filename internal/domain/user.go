package domain

import "time"

// User is the domain entity for a user account.
// PasswordHash holds the bcrypt hash, never the plaintext.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Claims is what a verified access token says about its bearer.
type Claims struct {
	SubjectID int64
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
