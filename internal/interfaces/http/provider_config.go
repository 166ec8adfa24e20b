package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"fintrack/internal/domain/providerconfig"
	"fintrack/internal/infrastructure/misa"
	"fintrack/internal/shared/middleware"
)

// ProviderConfigHandler manages the user's saved MISA credential profiles.
// Responses only ever carry the safe projection, never passwords or tokens.
type ProviderConfigHandler struct {
	store     *providerconfig.Store
	newClient func() misa.ClientInterface
}

func NewProviderConfigHandler(store *providerconfig.Store, newClient func() misa.ClientInterface) *ProviderConfigHandler {
	return &ProviderConfigHandler{store: store, newClient: newClient}
}

type UpsertConfigRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type ProfileIndexRequest struct {
	Index int `json:"index"`
}

type ValidateResponse struct {
	Valid    bool                      `json:"valid"`
	Error    string                    `json:"error,omitempty"`
	Profiles []providerconfig.SafeView `json:"profiles"`
}

// HandleConfig handles GET (list profiles), PUT (upsert) and DELETE (clear
// credentials of one profile).
func (h *ProviderConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.writeProfiles(w, r, userID)
	case http.MethodPut:
		h.handleUpsert(w, r, userID)
	case http.MethodDelete:
		h.handleClear(w, r, userID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ProviderConfigHandler) handleUpsert(w http.ResponseWriter, r *http.Request, userID int64) {
	var req UpsertConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		http.Error(w, "Username is required", http.StatusBadRequest)
		return
	}

	err := h.store.Upsert(r.Context(), userID, providerconfig.UpsertParams{
		Username:     req.Username,
		Password:     req.Password,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		log.Printf("Error saving provider profile for user %d: %v", userID, err)
		http.Error(w, "Failed to save provider profile", http.StatusInternalServerError)
		return
	}

	h.writeProfiles(w, r, userID)
}

func (h *ProviderConfigHandler) handleClear(w http.ResponseWriter, r *http.Request, userID int64) {
	var req ProfileIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.ClearCredentials(r.Context(), userID, req.Index); err != nil {
		if errors.Is(err, providerconfig.ErrProfileIndexOutOfRange) {
			http.Error(w, "Profile index out of range", http.StatusBadRequest)
			return
		}
		log.Printf("Error clearing provider profile for user %d: %v", userID, err)
		http.Error(w, "Failed to clear provider profile", http.StatusInternalServerError)
		return
	}

	h.writeProfiles(w, r, userID)
}

// HandleActivate switches the active profile.
func (h *ProviderConfigHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ProfileIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.SetActive(r.Context(), userID, req.Index); err != nil {
		if errors.Is(err, providerconfig.ErrProfileIndexOutOfRange) {
			http.Error(w, "Profile index out of range", http.StatusBadRequest)
			return
		}
		log.Printf("Error activating provider profile for user %d: %v", userID, err)
		http.Error(w, "Failed to activate provider profile", http.StatusInternalServerError)
		return
	}

	h.writeProfiles(w, r, userID)
}

// HandleValidate attempts a live login against the provider with the chosen
// profile's stored credentials and records the outcome.
func (h *ProviderConfigHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ProfileIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	username, password, err := h.store.CredentialsAt(r.Context(), userID, req.Index)
	if err != nil {
		if errors.Is(err, providerconfig.ErrProfileIndexOutOfRange) {
			http.Error(w, "Profile index out of range", http.StatusBadRequest)
			return
		}
		if errors.Is(err, providerconfig.ErrNoActiveProfile) {
			http.Error(w, "Profile has no stored credentials", http.StatusBadRequest)
			return
		}
		log.Printf("Error loading credentials for user %d: %v", userID, err)
		http.Error(w, "Failed to load provider profile", http.StatusInternalServerError)
		return
	}

	// A fresh client per validation keeps the token scoped to this attempt.
	loginErr := func() error {
		_, err := h.newClient().Login(r.Context(), username, password)
		return err
	}()

	valid := loginErr == nil
	message := ""
	if loginErr != nil {
		message = loginErr.Error()
	}
	if err := h.store.Validate(r.Context(), userID, req.Index, valid, message); err != nil {
		log.Printf("Error recording validation for user %d: %v", userID, err)
		http.Error(w, "Failed to record validation", http.StatusInternalServerError)
		return
	}

	profiles, err := h.store.Profiles(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing provider profiles for user %d: %v", userID, err)
		http.Error(w, "Failed to list provider profiles", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ValidateResponse{Valid: valid, Error: message, Profiles: profiles})
}

func (h *ProviderConfigHandler) writeProfiles(w http.ResponseWriter, r *http.Request, userID int64) {
	profiles, err := h.store.Profiles(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing provider profiles for user %d: %v", userID, err)
		http.Error(w, "Failed to list provider profiles", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profiles)
}
