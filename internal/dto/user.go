package dto

import (
	"time"

	dom "userauth/internal/domain"
)

// RegisterRequest is the JSON body for POST /register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the JSON body for POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the only shape in which a user leaves the service.
// It has no field for the password hash.
type UserResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserEnvelope wraps a user with a human readable message (register, profile).
type UserEnvelope struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// TokenEnvelope is returned by POST /login.
type TokenEnvelope struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// NewUserResponse projects a domain user to its public representation.
func NewUserResponse(u dom.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
