package http

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/domain/user"
	"fintrack/internal/shared/auth"
)

type AuthHandler struct {
	userRepo      user.Repository
	oauthProvider auth.OAuthProvider
	jwt           *auth.JWT
	secureCookies bool
}

func NewAuthHandler(userRepo user.Repository, oauthProvider auth.OAuthProvider, jwt *auth.JWT, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		userRepo:      userRepo,
		oauthProvider: oauthProvider,
		jwt:           jwt,
		secureCookies: secureCookies,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthURLResponse struct {
	URL string `json:"url"`
}

type AuthCallbackRequest struct {
	Code string `json:"code"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// HandleRegister creates a password-based account.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		http.Error(w, "Email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	existing, err := h.userRepo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("Error looking up user by email: %v", err)
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	u, err := h.userRepo.Create(r.Context(), user.CreateUserParams{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: &hash,
	})
	if err != nil {
		log.Printf("Error creating user: %v", err)
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	h.respondWithToken(w, u)
}

// HandleLogin authenticates a password-based account.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	u, err := h.userRepo.GetByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		log.Printf("Error looking up user by email: %v", err)
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}
	if u == nil || u.PasswordHash == nil || auth.VerifyPassword(*u.PasswordHash, req.Password) != nil {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	h.respondWithToken(w, u)
}

// HandleOAuthURL generates the Google authorization URL.
func (h *AuthHandler) HandleOAuthURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := generateState()
	if err != nil {
		log.Printf("Error generating OAuth state: %v", err)
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthURLResponse{URL: h.oauthProvider.AuthURL(state)})
}

// HandleOAuthCallback exchanges the authorization code, provisioning the user
// on first login.
func (h *AuthHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AuthCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, "Authorization code is required", http.StatusBadRequest)
		return
	}

	token, err := h.oauthProvider.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		log.Printf("Error exchanging OAuth code: %v", err)
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	info, err := h.oauthProvider.UserInfo(r.Context(), token)
	if err != nil {
		log.Printf("Error fetching OAuth user info: %v", err)
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	provider := "google"
	u, err := h.userRepo.GetByOAuth(r.Context(), provider, info.ID)
	if err != nil {
		log.Printf("Error looking up OAuth user: %v", err)
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}
	if u == nil {
		u, err = h.userRepo.Create(r.Context(), user.CreateUserParams{
			Email:         info.Email,
			Name:          info.Name,
			OAuthProvider: &provider,
			OAuthID:       &info.ID,
		})
		if err != nil {
			log.Printf("Error creating OAuth user: %v", err)
			http.Error(w, "Authentication failed", http.StatusInternalServerError)
			return
		}
	}

	h.respondWithToken(w, u)
}

// HandleLogout clears the session cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, u *user.User) {
	token, err := h.jwt.Generate(u.ID, u.Email)
	if err != nil {
		log.Printf("Error generating JWT for user %d: %v", u.ID, err)
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: u})
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
