package providerconfig

import (
	"context"
)

// Repository persists a user's ordered list of provider profiles. Order is
// stable: profile indexes exposed by the store are positions in this list.
type Repository interface {
	GetProfiles(ctx context.Context, userID int64) ([]ProviderConfig, error)
	SaveProfiles(ctx context.Context, userID int64, profiles []ProviderConfig) error
}
