package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"fintrack/internal/domain/misasync"
	"fintrack/internal/domain/providerconfig"
	"fintrack/internal/infrastructure/misa"
	"fintrack/internal/shared/middleware"
)

const summaryCacheTTL = 5 * time.Minute

// MisaHandler exposes the MISA Money Keeper integration: wallet browsing and
// the transaction import endpoint. Every request logs in with the user's
// active profile; clients are request-scoped so tokens never cross users.
type MisaHandler struct {
	store        *providerconfig.Store
	newClient    func() misa.ClientInterface
	incomeSync   *misasync.IncomeSyncService
	expenseSync  *misasync.ExpenseSyncService
	summaryCache *gocache.Cache
}

func NewMisaHandler(
	store *providerconfig.Store,
	newClient func() misa.ClientInterface,
	incomeSync *misasync.IncomeSyncService,
	expenseSync *misasync.ExpenseSyncService,
) *MisaHandler {
	return &MisaHandler{
		store:        store,
		newClient:    newClient,
		incomeSync:   incomeSync,
		expenseSync:  expenseSync,
		summaryCache: gocache.New(summaryCacheTTL, 10*time.Minute),
	}
}

type ImportRequest struct {
	FromDate string `json:"fromDate"` // YYYY-MM-DD
	ToDate   string `json:"toDate"`
}

type ImportResponse struct {
	Income   *misasync.ImportResult `json:"income"`
	Expenses *misasync.ImportResult `json:"expenses"`
}

// HandleWallets lists the user's MISA wallet accounts.
func (h *MisaHandler) HandleWallets(w http.ResponseWriter, r *http.Request) {
	userID, client, ok := h.authedClient(w, r)
	if !ok {
		return
	}

	page, err := client.GetWalletAccounts(r.Context(), misa.WalletAccountParams{})
	if err != nil {
		h.writeProviderError(w, userID, "list wallet accounts", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// HandleWalletSummary returns the aggregate wallet balance, cached briefly to
// spare the provider on dashboard refreshes.
func (h *MisaHandler) HandleWalletSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cacheKey := fmt.Sprintf("summary:%d", userID)
	if cached, found := h.summaryCache.Get(cacheKey); found {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cached)
		return
	}

	client, err := h.clientFor(r, userID)
	if err != nil {
		h.writeCredentialError(w, userID, err)
		return
	}

	summary, err := client.GetWalletSummary(r.Context())
	if err != nil {
		h.writeProviderError(w, userID, "fetch wallet summary", err)
		return
	}
	h.summaryCache.Set(cacheKey, summary, summaryCacheTTL)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// HandleAddresses lists the transaction address book.
func (h *MisaHandler) HandleAddresses(w http.ResponseWriter, r *http.Request) {
	userID, client, ok := h.authedClient(w, r)
	if !ok {
		return
	}

	addresses, err := client.GetTransactionAddresses(r.Context())
	if err != nil {
		h.writeProviderError(w, userID, "list transaction addresses", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(addresses)
}

// HandleImport fetches the requested window of transactions and runs both
// reconciliation steps, returning their results side by side.
func (h *MisaHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", req.FromDate); err != nil {
		http.Error(w, "fromDate must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", req.ToDate); err != nil {
		http.Error(w, "toDate must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	profileIdx, username, password, err := h.store.ActiveCredentials(r.Context(), userID)
	if err != nil {
		h.writeCredentialError(w, userID, err)
		return
	}

	client := h.newClient()
	if _, err := client.Login(r.Context(), username, password); err != nil {
		if verr := h.store.Validate(r.Context(), userID, profileIdx, false, err.Error()); verr != nil {
			log.Printf("Error recording validation failure for user %d: %v", userID, verr)
		}
		h.writeProviderError(w, userID, "log in to provider", err)
		return
	}

	incomeTxs, err := h.search(r, client, req, misa.TransactionTypeIncome)
	if err != nil {
		h.writeProviderError(w, userID, "fetch income transactions", err)
		return
	}
	expenseTxs, err := h.search(r, client, req, misa.TransactionTypeExpense)
	if err != nil {
		h.writeProviderError(w, userID, "fetch expense transactions", err)
		return
	}

	incomeResult, err := h.incomeSync.Import(r.Context(), userID, incomeTxs)
	if err != nil {
		log.Printf("Error importing income for user %d: %v", userID, err)
		http.Error(w, "Import failed", http.StatusInternalServerError)
		return
	}
	expenseResult, err := h.expenseSync.Import(r.Context(), userID, expenseTxs)
	if err != nil {
		log.Printf("Error importing expenses for user %d: %v", userID, err)
		http.Error(w, "Import failed", http.StatusInternalServerError)
		return
	}

	if err := h.store.Validate(r.Context(), userID, profileIdx, true, ""); err != nil {
		log.Printf("Error recording validation success for user %d: %v", userID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ImportResponse{Income: incomeResult, Expenses: expenseResult})
}

func (h *MisaHandler) search(r *http.Request, client misa.ClientInterface, req ImportRequest, txType int) ([]misa.Transaction, error) {
	var all []misa.Transaction
	const pageSize = 500
	skip := 0
	for {
		page, err := client.SearchTransactions(r.Context(), misa.SearchParams{
			FromDate:        req.FromDate,
			ToDate:          req.ToDate,
			TransactionType: &txType,
			Skip:            skip,
			Take:            pageSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if len(page.Data) < pageSize {
			return all, nil
		}
		skip += pageSize
	}
}

// authedClient resolves the user and a logged-in client for simple GET
// endpoints, writing the error response itself on failure.
func (h *MisaHandler) authedClient(w http.ResponseWriter, r *http.Request) (int64, misa.ClientInterface, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, nil, false
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return 0, nil, false
	}

	client, err := h.clientFor(r, userID)
	if err != nil {
		h.writeCredentialError(w, userID, err)
		return 0, nil, false
	}
	return userID, client, true
}

func (h *MisaHandler) clientFor(r *http.Request, userID int64) (misa.ClientInterface, error) {
	_, username, password, err := h.store.ActiveCredentials(r.Context(), userID)
	if err != nil {
		return nil, err
	}

	client := h.newClient()
	if _, err := client.Login(r.Context(), username, password); err != nil {
		return nil, err
	}
	return client, nil
}

func (h *MisaHandler) writeCredentialError(w http.ResponseWriter, userID int64, err error) {
	if errors.Is(err, providerconfig.ErrNoActiveProfile) {
		http.Error(w, "No provider profile configured", http.StatusPreconditionFailed)
		return
	}
	var authErr *misa.AuthError
	if errors.As(err, &authErr) {
		http.Error(w, "Provider rejected the stored credentials", http.StatusBadGateway)
		return
	}
	log.Printf("Error preparing provider client for user %d: %v", userID, err)
	http.Error(w, "Failed to reach provider", http.StatusBadGateway)
}

func (h *MisaHandler) writeProviderError(w http.ResponseWriter, userID int64, op string, err error) {
	log.Printf("Error trying to %s for user %d: %v", op, userID, err)

	var authErr *misa.AuthError
	if errors.As(err, &authErr) {
		http.Error(w, "Provider authentication failed", http.StatusBadGateway)
		return
	}
	var apiErr *misa.APIError
	if errors.As(err, &apiErr) {
		http.Error(w, "Provider request failed", http.StatusBadGateway)
		return
	}
	http.Error(w, "Failed to reach provider", http.StatusBadGateway)
}
