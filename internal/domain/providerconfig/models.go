package providerconfig

import (
	"time"
)

const (
	ValidationPending  = "pending"
	ValidationActive   = "active"
	ValidationInactive = "inactive"
)

// ProviderConfig is one saved credential profile for the external provider.
// Passwords are encrypted at rest, never hashed: they must be replayed to the
// provider on login.
type ProviderConfig struct {
	Username          string     `json:"username"`
	EncryptedPassword string     `json:"-"`
	AccessToken       string     `json:"-"`
	RefreshToken      string     `json:"-"`
	IsConfigured      bool       `json:"isConfigured"`
	IsDefault         bool       `json:"isDefault"`
	IsActive          bool       `json:"isActive"`
	LastValidated     *time.Time `json:"lastValidated,omitempty"`
	ValidationStatus  string     `json:"validationStatus"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
}

// SafeView is the API-facing projection of a profile. It never carries the
// password or tokens.
type SafeView struct {
	Username         string     `json:"username"`
	IsConfigured     bool       `json:"isConfigured"`
	IsDefault        bool       `json:"isDefault"`
	IsActive         bool       `json:"isActive"`
	LastValidated    *time.Time `json:"lastValidated,omitempty"`
	ValidationStatus string     `json:"validationStatus"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
}

func (c *ProviderConfig) Safe() SafeView {
	return SafeView{
		Username:         c.Username,
		IsConfigured:     c.IsConfigured,
		IsDefault:        c.IsDefault,
		IsActive:         c.IsActive,
		LastValidated:    c.LastValidated,
		ValidationStatus: c.ValidationStatus,
		ErrorMessage:     c.ErrorMessage,
	}
}

// UpsertParams carries the plaintext credentials supplied by the user. The
// store encrypts the password before it ever reaches the repository.
type UpsertParams struct {
	Username     string
	Password     string
	AccessToken  string
	RefreshToken string
}
