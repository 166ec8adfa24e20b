package postgres

import (
	"context"
	"fmt"

	"fintrack/internal/domain/providerconfig"
)

type ProviderConfigRepository struct {
	db *DB
}

func NewProviderConfigRepository(db *DB) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

func (r *ProviderConfigRepository) GetProfiles(ctx context.Context, userID int64) ([]providerconfig.ProviderConfig, error) {
	query := `
		SELECT username, encrypted_password, access_token, refresh_token,
		       is_configured, is_default, is_active, last_validated, validation_status, error_message
		FROM provider_configs
		WHERE user_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider profiles: %w", err)
	}
	defer rows.Close()

	var profiles []providerconfig.ProviderConfig
	for rows.Next() {
		var p providerconfig.ProviderConfig
		if err := rows.Scan(
			&p.Username, &p.EncryptedPassword, &p.AccessToken, &p.RefreshToken,
			&p.IsConfigured, &p.IsDefault, &p.IsActive, &p.LastValidated,
			&p.ValidationStatus, &p.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan provider profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider profiles: %w", err)
	}
	return profiles, nil
}

// ListConfiguredUserIDs returns the ids of users with at least one configured
// profile, for the scheduler to build its sync batch from.
func (r *ProviderConfigRepository) ListConfiguredUserIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM provider_configs WHERE is_configured`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list configured users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate configured users: %w", err)
	}
	return ids, nil
}

// SaveProfiles replaces the user's profile list wholesale. The list is small
// (a handful of provider accounts at most) and position is the list index, so
// a delete-and-reinsert inside one transaction keeps ordering trivially
// consistent with what the store computed.
func (r *ProviderConfigRepository) SaveProfiles(ctx context.Context, userID int64, profiles []providerconfig.ProviderConfig) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM provider_configs WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear provider profiles: %w", err)
	}

	for i, p := range profiles {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO provider_configs
				(user_id, position, username, encrypted_password, access_token, refresh_token,
				 is_configured, is_default, is_active, last_validated, validation_status, error_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, userID, i, p.Username, p.EncryptedPassword, p.AccessToken, p.RefreshToken,
			p.IsConfigured, p.IsDefault, p.IsActive, p.LastValidated, p.ValidationStatus, p.ErrorMessage)
		if err != nil {
			return fmt.Errorf("failed to save provider profile %q: %w", p.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit provider profiles: %w", err)
	}
	return nil
}
