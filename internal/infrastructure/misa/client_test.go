package misa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(authURL, businessURL string) *Client {
	return NewClient(Config{AuthURL: authURL, BusinessURL: businessURL})
}

func authServer(t *testing.T, password string, loginCount *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(loginCount, 1)

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode login request: %v", err)
		}

		if req.Password != password {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
			return
		}

		json.NewEncoder(w).Encode(Session{
			AccessToken:  "token-" + req.UserName,
			RefreshToken: "refresh-" + req.UserName,
			UserID:       "u-1",
		})
	}))
}

func TestLogin_Success(t *testing.T) {
	var logins int32
	auth := authServer(t, "secret", &logins)
	defer auth.Close()

	c := newTestClient(auth.URL, "")
	session, err := c.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if session.AccessToken != "token-alice" {
		t.Errorf("AccessToken = %q, want %q", session.AccessToken, "token-alice")
	}

	// Token should come from cache without a second login.
	token, err := c.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if token != "token-alice" {
		t.Errorf("Token() = %q, want %q", token, "token-alice")
	}
	if got := atomic.LoadInt32(&logins); got != 1 {
		t.Errorf("login count = %d, want 1", got)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	var logins int32
	auth := authServer(t, "secret", &logins)
	defer auth.Close()

	c := newTestClient(auth.URL, "")
	_, err := c.Login(context.Background(), "alice", "wrong")
	if err == nil {
		t.Fatal("Login() accepted bad credentials")
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Login() error = %T, want *AuthError", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Errorf("AuthError.Status = %d, want 401", authErr.Status)
	}
	if authErr.Message != "Invalid credentials" {
		t.Errorf("AuthError.Message = %q, want provider message", authErr.Message)
	}
}

func TestToken_NoCredentials(t *testing.T) {
	// No auth server: any network call would fail loudly.
	c := newTestClient("http://127.0.0.1:1", "http://127.0.0.1:1")

	_, err := c.Token(context.Background())
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Token() error = %v, want ErrNoCredentials", err)
	}
}

func TestCallWithAuth_RetriesOnceOn401(t *testing.T) {
	var logins int32
	auth := authServer(t, "secret", &logins)
	defer auth.Close()

	var calls int32
	business := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			// Simulate an expired token on the first attempt.
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-alice" {
			t.Errorf("Authorization = %q, want refreshed bearer token", got)
		}
		json.NewEncoder(w).Encode(WalletSummary{TotalBalance: 1_250_000, CurrencyCode: "VND"})
	}))
	defer business.Close()

	c := newTestClient(auth.URL, business.URL)
	if _, err := c.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	summary, err := c.GetWalletSummary(context.Background())
	if err != nil {
		t.Fatalf("GetWalletSummary() failed: %v", err)
	}
	if summary.TotalBalance != 1_250_000 {
		t.Errorf("TotalBalance = %v, want 1250000", summary.TotalBalance)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("business calls = %d, want 2 (one retry)", got)
	}
	if got := atomic.LoadInt32(&logins); got != 2 {
		t.Errorf("login count = %d, want 2 (initial + re-login)", got)
	}
}

func TestCallWithAuth_SecondUnauthorizedIsAuthError(t *testing.T) {
	var logins int32
	auth := authServer(t, "secret", &logins)
	defer auth.Close()

	business := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer business.Close()

	c := newTestClient(auth.URL, business.URL)
	if _, err := c.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	_, err := c.GetWalletSummary(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %T (%v), want *AuthError after single retry", err, err)
	}
	// Exactly one retry: initial login + one re-login.
	if got := atomic.LoadInt32(&logins); got != 2 {
		t.Errorf("login count = %d, want 2", got)
	}
}

func TestSearchTransactions(t *testing.T) {
	var logins int32
	auth := authServer(t, "secret", &logins)
	defer auth.Close()

	business := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != transactionsPath {
			t.Errorf("path = %q, want %q", r.URL.Path, transactionsPath)
		}

		var params SearchParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Fatalf("failed to decode search params: %v", err)
		}
		if params.TransactionType == nil || *params.TransactionType != TransactionTypeIncome {
			t.Errorf("TransactionType = %v, want income (1)", params.TransactionType)
		}

		json.NewEncoder(w).Encode(TransactionPage{
			Total: 1,
			Data: []Transaction{
				{ID: "t1", DateString: "2024-01-15T00:00:00", Amount: 5_000_000, Note: "salary"},
			},
		})
	}))
	defer business.Close()

	c := newTestClient(auth.URL, business.URL)
	if _, err := c.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	incomeType := TransactionTypeIncome
	page, err := c.SearchTransactions(context.Background(), SearchParams{
		FromDate:        "2024-01-01",
		ToDate:          "2024-01-31",
		TransactionType: &incomeType,
		Take:            100,
	})
	if err != nil {
		t.Fatalf("SearchTransactions() failed: %v", err)
	}
	if len(page.Data) != 1 {
		t.Fatalf("len(Data) = %d, want 1", len(page.Data))
	}

	date, err := page.Data[0].GetDate()
	if err != nil {
		t.Fatalf("GetDate() failed: %v", err)
	}
	if date.Month() != 1 || date.Day() != 15 {
		t.Errorf("GetDate() = %v, want Jan 15", date)
	}
}

func TestCallWithAuth_NonOKIsAPIError(t *testing.T) {
	var logins int32
	auth := authServer(t, "secret", &logins)
	defer auth.Close()

	business := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer business.Close()

	c := newTestClient(auth.URL, business.URL)
	if _, err := c.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	_, err := c.GetWalletSummary(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("APIError.Status = %d, want 502", apiErr.Status)
	}
}
