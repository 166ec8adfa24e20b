package misa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	defaultTimeout = 60 * time.Second

	userInfoPath      = "/users/true"
	walletsPath       = "/wallets/accounts"
	walletSummaryPath = "/wallets/account/summary"
	addressesPath     = "/transactions/addresses"
	transactionsPath  = "/transactions"
)

// Transaction types accepted by the provider's search endpoint.
// A nil TransactionType searches both directions.
const (
	TransactionTypeExpense = 0
	TransactionTypeIncome  = 1
)

// ErrNoCredentials is returned by Token when the client holds neither a
// cached token nor cached credentials. No network call is made in that case.
var ErrNoCredentials = errors.New("no cached token or credentials")

// AuthError is a login failure or a 401 that one re-login could not resolve.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider authentication failed (status %d): %s", e.Status, e.Message)
}

// APIError is a non-2xx provider response on a business endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error (status %d): %s", e.Status, e.Body)
}

// Envelope is the normalized shape every provider call reduces to.
type Envelope struct {
	Status int
	OK     bool
	Data   json.RawMessage
}

type Config struct {
	AuthURL     string
	BusinessURL string
	Timeout     time.Duration
}

// Client talks to the MISA Money Keeper API. It caches the bearer token and
// the credentials that produced it, and transparently re-logs-in exactly once
// when a call comes back 401. Instances are safe for concurrent use, but a
// client is scoped to one provider account; create one per logical session.
type Client struct {
	httpClient  *http.Client
	authURL     string
	businessURL string

	mu       sync.Mutex
	token    string
	username string
	password string
}

var _ ClientInterface = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		authURL:     cfg.AuthURL,
		businessURL: cfg.BusinessURL,
	}
}

// Session is the provider's answer to a successful login.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type loginResponse struct {
	Session
	Message string `json:"message"`
}

// Login authenticates against the provider and caches both the token and the
// credentials, so a later 401 can be resolved without caller involvement.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	session, err := c.doLogin(ctx, username, password)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = session.AccessToken
	c.username = username
	c.password = password
	c.mu.Unlock()

	return session, nil
}

func (c *Client) doLogin(ctx context.Context, username, password string) (*Session, error) {
	body, err := json.Marshal(loginRequest{UserName: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute login request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read login response: %w", err)
	}

	var loginResp loginResponse
	if err := json.Unmarshal(respBody, &loginResp); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("failed to unmarshal login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || loginResp.AccessToken == "" {
		msg := loginResp.Message
		if msg == "" {
			msg = string(respBody)
		}
		return nil, &AuthError{Status: resp.StatusCode, Message: msg}
	}

	return &loginResp.Session, nil
}

// Token returns the cached bearer token, logging in from cached credentials
// if needed. With neither cached it fails immediately with ErrNoCredentials.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, username, password := c.token, c.username, c.password
	c.mu.Unlock()

	if token != "" {
		return token, nil
	}
	if username == "" || password == "" {
		return "", ErrNoCredentials
	}

	session, err := c.doLogin(ctx, username, password)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = session.AccessToken
	c.mu.Unlock()

	return session.AccessToken, nil
}

// relogin refreshes the token from cached credentials after a 401.
func (c *Client) relogin(ctx context.Context) (string, error) {
	c.mu.Lock()
	username, password := c.username, c.password
	c.token = ""
	c.mu.Unlock()

	if username == "" || password == "" {
		return "", ErrNoCredentials
	}

	session, err := c.doLogin(ctx, username, password)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = session.AccessToken
	c.mu.Unlock()

	return session.AccessToken, nil
}

// callWithAuth performs an authenticated call and normalizes the response.
// On a 401 it re-logs-in with cached credentials and retries exactly once;
// a second 401 is surfaced as an AuthError. Other non-2xx statuses are not
// errors here; the envelope carries OK=false and the raw body.
func (c *Client) callWithAuth(ctx context.Context, method, url string, payload any) (*Envelope, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	env, err := c.doCall(ctx, method, url, payload, token)
	if err != nil {
		return nil, err
	}

	if env.Status == http.StatusUnauthorized {
		token, err = c.relogin(ctx)
		if err != nil {
			return nil, err
		}
		env, err = c.doCall(ctx, method, url, payload, token)
		if err != nil {
			return nil, err
		}
		if env.Status == http.StatusUnauthorized {
			return nil, &AuthError{Status: env.Status, Message: "token rejected after re-login"}
		}
	}

	return env, nil
}

func (c *Client) doCall(ctx context.Context, method, url string, payload any, token string) (*Envelope, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Envelope{
		Status: resp.StatusCode,
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Data:   respBody,
	}, nil
}

// decode unmarshals an OK envelope into out, or converts a non-OK envelope
// into an APIError.
func decode(env *Envelope, out any) error {
	if !env.OK {
		return &APIError{Status: env.Status, Body: string(env.Data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// UserInfo is the provider's profile record for the logged-in account.
type UserInfo struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (c *Client) GetUserInfo(ctx context.Context) (*UserInfo, error) {
	env, err := c.callWithAuth(ctx, http.MethodGet, c.businessURL+userInfoPath, nil)
	if err != nil {
		return nil, err
	}

	var info UserInfo
	if err := decode(env, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// WalletAccountParams filters the paged wallet listing.
type WalletAccountParams struct {
	SearchText    string `json:"searchText"`
	WalletType    *int   `json:"walletType"`
	InActive      bool   `json:"inActive"`
	ExcludeReport bool   `json:"excludeReport"`
	Skip          int    `json:"skip"`
	Take          int    `json:"take"`
}

// WalletAccount is one wallet (cash, bank account, e-wallet) at the provider.
type WalletAccount struct {
	ID           string  `json:"id"`
	WalletName   string  `json:"walletName"`
	WalletType   int     `json:"walletType"`
	CurrencyCode string  `json:"currencyCode"`
	Balance      float64 `json:"balance"`
	InActive     bool    `json:"inActive"`
}

type WalletAccountPage struct {
	Total int             `json:"total"`
	Data  []WalletAccount `json:"data"`
}

func (c *Client) GetWalletAccounts(ctx context.Context, params WalletAccountParams) (*WalletAccountPage, error) {
	env, err := c.callWithAuth(ctx, http.MethodPost, c.businessURL+walletsPath, params)
	if err != nil {
		return nil, err
	}

	var page WalletAccountPage
	if err := decode(env, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// WalletSummary aggregates balances across all wallets.
type WalletSummary struct {
	TotalBalance   float64 `json:"totalBalance"`
	TotalAsset     float64 `json:"totalAsset"`
	TotalLiability float64 `json:"totalLiability"`
	CurrencyCode   string  `json:"currencyCode"`
}

func (c *Client) GetWalletSummary(ctx context.Context) (*WalletSummary, error) {
	env, err := c.callWithAuth(ctx, http.MethodPost, c.businessURL+walletSummaryPath, struct{}{})
	if err != nil {
		return nil, err
	}

	var summary WalletSummary
	if err := decode(env, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// TransactionAddress is a saved place a transaction happened at.
type TransactionAddress struct {
	Address string `json:"address"`
}

func (c *Client) GetTransactionAddresses(ctx context.Context) ([]TransactionAddress, error) {
	env, err := c.callWithAuth(ctx, http.MethodGet, c.businessURL+addressesPath, nil)
	if err != nil {
		return nil, err
	}

	var addresses []TransactionAddress
	if err := decode(env, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// SearchParams filters the paged transaction search. TransactionType follows
// the provider's convention: 0 expense, 1 income, nil both.
type SearchParams struct {
	FromDate         string   `json:"fromDate"`
	ToDate           string   `json:"toDate"`
	TransactionType  *int     `json:"transactionType"`
	SearchText       string   `json:"searchText"`
	WalletAccountIDs []string `json:"walletAccountIds"`
	CategoryIDs      []string `json:"categoryIds"`
	Skip             int      `json:"skip"`
	Take             int      `json:"take"`
}

// Transaction is a read-only record fetched from the provider.
type Transaction struct {
	ID           string  `json:"transactionId"`
	DateString   string  `json:"transactionDate"` // "2024-01-15T00:00:00" or RFC3339
	Amount       float64 `json:"amount"`
	CategoryName string  `json:"categoryName"`
	Note         string  `json:"note"`
}

// GetDate parses and returns the transaction date.
func (t *Transaction) GetDate() (time.Time, error) {
	if t.DateString == "" {
		return time.Time{}, fmt.Errorf("transaction has no date")
	}
	parsed, err := time.Parse(time.RFC3339, t.DateString)
	if err != nil {
		parsed, err = time.Parse("2006-01-02T15:04:05", t.DateString)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", t.DateString)
			if err != nil {
				return time.Time{}, fmt.Errorf("failed to parse transactionDate %q: %w", t.DateString, err)
			}
		}
	}
	return parsed, nil
}

type TransactionPage struct {
	Total int           `json:"total"`
	Data  []Transaction `json:"data"`
}

func (c *Client) SearchTransactions(ctx context.Context, params SearchParams) (*TransactionPage, error) {
	env, err := c.callWithAuth(ctx, http.MethodPost, c.businessURL+transactionsPath, params)
	if err != nil {
		return nil, err
	}

	var page TransactionPage
	if err := decode(env, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
