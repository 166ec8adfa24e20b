package user

import (
	"time"
)

type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	OAuthProvider *string   `json:"oauthProvider,omitempty"` // Nullable for password users
	OAuthID       *string   `json:"-"`                       // Don't expose OAuth ID in JSON
	PasswordHash  *string   `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type CreateUserParams struct {
	Email         string
	Name          string
	OAuthProvider *string
	OAuthID       *string
	PasswordHash  *string
}

type UpdateUserParams struct {
	Name *string
}
