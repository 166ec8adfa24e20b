package providerconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/infrastructure/crypto"
)

var (
	ErrProfileIndexOutOfRange = errors.New("profile index out of range")
	ErrNoActiveProfile        = errors.New("no active provider profile")
)

// Store manages a user's provider profiles on top of the repository,
// enforcing the single-active/single-default invariants and handling
// credential encryption.
type Store struct {
	repo      Repository
	encryptor *crypto.Encryptor
}

func NewStore(repo Repository, encryptor *crypto.Encryptor) *Store {
	return &Store{repo: repo, encryptor: encryptor}
}

// Upsert matches by username: updates the existing profile in place
// (preserving its default flag), or appends a new one. The first profile a
// user saves becomes the default; a profile carrying live tokens becomes the
// active one.
func (s *Store) Upsert(ctx context.Context, userID int64, params UpsertParams) error {
	if params.Username == "" {
		return errors.New("username is required")
	}

	profiles, err := s.repo.GetProfiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load provider profiles: %w", err)
	}

	encrypted := ""
	if params.Password != "" {
		encrypted, err = s.encryptor.Encrypt(params.Password)
		if err != nil {
			return fmt.Errorf("failed to encrypt provider password: %w", err)
		}
	}

	hasTokens := params.AccessToken != "" || params.RefreshToken != ""

	idx := -1
	for i := range profiles {
		if profiles[i].Username == params.Username {
			idx = i
			break
		}
	}

	if idx >= 0 {
		p := &profiles[idx]
		if encrypted != "" {
			p.EncryptedPassword = encrypted
		}
		if params.AccessToken != "" {
			p.AccessToken = params.AccessToken
		}
		if params.RefreshToken != "" {
			p.RefreshToken = params.RefreshToken
		}
		p.IsConfigured = true
		if p.ValidationStatus == "" {
			p.ValidationStatus = ValidationPending
		}
	} else {
		profiles = append(profiles, ProviderConfig{
			Username:          params.Username,
			EncryptedPassword: encrypted,
			AccessToken:       params.AccessToken,
			RefreshToken:      params.RefreshToken,
			IsConfigured:      true,
			IsDefault:         len(profiles) == 0,
			ValidationStatus:  ValidationPending,
		})
		idx = len(profiles) - 1
	}

	if hasTokens {
		for i := range profiles {
			profiles[i].IsActive = i == idx
		}
		profiles[idx].ValidationStatus = ValidationActive
	}

	normalize(profiles)
	return s.save(ctx, userID, profiles)
}

// SetActive switches which profile is current. All others are deactivated.
func (s *Store) SetActive(ctx context.Context, userID int64, index int) error {
	profiles, err := s.repo.GetProfiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load provider profiles: %w", err)
	}
	if index < 0 || index >= len(profiles) {
		return ErrProfileIndexOutOfRange
	}

	for i := range profiles {
		profiles[i].IsActive = i == index
	}

	normalize(profiles)
	return s.save(ctx, userID, profiles)
}

// Validate records the outcome of a login attempt against a profile.
func (s *Store) Validate(ctx context.Context, userID int64, index int, isValid bool, errorMessage string) error {
	profiles, err := s.repo.GetProfiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load provider profiles: %w", err)
	}
	if index < 0 || index >= len(profiles) {
		return ErrProfileIndexOutOfRange
	}

	now := time.Now().UTC()
	p := &profiles[index]
	p.LastValidated = &now
	p.IsConfigured = isValid
	p.ErrorMessage = errorMessage
	if isValid {
		p.ValidationStatus = ValidationActive
		p.ErrorMessage = ""
	} else {
		p.ValidationStatus = ValidationInactive
	}

	normalize(profiles)
	return s.save(ctx, userID, profiles)
}

// ClearCredentials soft-deletes a profile: credential fields are wiped but
// the row stays, keeping indexes stable.
func (s *Store) ClearCredentials(ctx context.Context, userID int64, index int) error {
	profiles, err := s.repo.GetProfiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load provider profiles: %w", err)
	}
	if index < 0 || index >= len(profiles) {
		return ErrProfileIndexOutOfRange
	}

	p := &profiles[index]
	p.EncryptedPassword = ""
	p.AccessToken = ""
	p.RefreshToken = ""
	p.IsConfigured = false
	p.IsActive = false
	p.ValidationStatus = ValidationInactive

	normalize(profiles)
	return s.save(ctx, userID, profiles)
}

// Profiles returns the user's profiles without credential material.
func (s *Store) Profiles(ctx context.Context, userID int64) ([]SafeView, error) {
	profiles, err := s.repo.GetProfiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider profiles: %w", err)
	}

	views := make([]SafeView, len(profiles))
	for i := range profiles {
		views[i] = profiles[i].Safe()
	}
	return views, nil
}

// ActiveCredentials returns the index, username and decrypted password of the
// profile to use for a provider login: the active profile if one is set,
// otherwise the default.
func (s *Store) ActiveCredentials(ctx context.Context, userID int64) (int, string, string, error) {
	profiles, err := s.repo.GetProfiles(ctx, userID)
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to load provider profiles: %w", err)
	}

	idx := -1
	for i := range profiles {
		if profiles[i].IsActive {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i := range profiles {
			if profiles[i].IsDefault && profiles[i].IsConfigured {
				idx = i
				break
			}
		}
	}
	if idx < 0 || profiles[idx].EncryptedPassword == "" {
		return 0, "", "", ErrNoActiveProfile
	}

	password, err := s.encryptor.Decrypt(profiles[idx].EncryptedPassword)
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to decrypt provider password: %w", err)
	}
	return idx, profiles[idx].Username, password, nil
}

// CredentialsAt returns the username and decrypted password of one profile.
func (s *Store) CredentialsAt(ctx context.Context, userID int64, index int) (string, string, error) {
	profiles, err := s.repo.GetProfiles(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load provider profiles: %w", err)
	}
	if index < 0 || index >= len(profiles) {
		return "", "", ErrProfileIndexOutOfRange
	}
	if profiles[index].EncryptedPassword == "" {
		return "", "", ErrNoActiveProfile
	}

	password, err := s.encryptor.Decrypt(profiles[index].EncryptedPassword)
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt provider password: %w", err)
	}
	return profiles[index].Username, password, nil
}

func (s *Store) save(ctx context.Context, userID int64, profiles []ProviderConfig) error {
	if err := s.repo.SaveProfiles(ctx, userID, profiles); err != nil {
		return fmt.Errorf("failed to save provider profiles: %w", err)
	}
	return nil
}

// normalize enforces the list invariants before every save: at most one
// active and one default profile. When duplicates slip in, the first wins.
func normalize(profiles []ProviderConfig) {
	seenActive := false
	seenDefault := false
	for i := range profiles {
		if profiles[i].IsActive {
			if seenActive {
				profiles[i].IsActive = false
			}
			seenActive = true
		}
		if profiles[i].IsDefault {
			if seenDefault {
				profiles[i].IsDefault = false
			}
			seenDefault = true
		}
	}
}
