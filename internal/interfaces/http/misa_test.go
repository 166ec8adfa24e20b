package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/internal/domain/expense"
	"fintrack/internal/domain/income"
	"fintrack/internal/domain/misasync"
	"fintrack/internal/domain/providerconfig"
	"fintrack/internal/infrastructure/crypto"
	"fintrack/internal/infrastructure/misa"
	"fintrack/internal/shared/middleware"
)

// MockMisaClient implements misa.ClientInterface for testing
type MockMisaClient struct {
	LoginFunc              func(ctx context.Context, username, password string) (*misa.Session, error)
	SearchTransactionsFunc func(ctx context.Context, params misa.SearchParams) (*misa.TransactionPage, error)
	GetWalletSummaryFunc   func(ctx context.Context) (*misa.WalletSummary, error)

	summaryCalls int
}

func (m *MockMisaClient) Login(ctx context.Context, username, password string) (*misa.Session, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password)
	}
	return &misa.Session{AccessToken: "token"}, nil
}

func (m *MockMisaClient) Token(ctx context.Context) (string, error) {
	return "token", nil
}

func (m *MockMisaClient) GetUserInfo(ctx context.Context) (*misa.UserInfo, error) {
	return &misa.UserInfo{}, nil
}

func (m *MockMisaClient) GetWalletAccounts(ctx context.Context, params misa.WalletAccountParams) (*misa.WalletAccountPage, error) {
	return &misa.WalletAccountPage{}, nil
}

func (m *MockMisaClient) GetWalletSummary(ctx context.Context) (*misa.WalletSummary, error) {
	m.summaryCalls++
	if m.GetWalletSummaryFunc != nil {
		return m.GetWalletSummaryFunc(ctx)
	}
	return &misa.WalletSummary{TotalBalance: 1_000_000}, nil
}

func (m *MockMisaClient) GetTransactionAddresses(ctx context.Context) ([]misa.TransactionAddress, error) {
	return nil, nil
}

func (m *MockMisaClient) SearchTransactions(ctx context.Context, params misa.SearchParams) (*misa.TransactionPage, error) {
	if m.SearchTransactionsFunc != nil {
		return m.SearchTransactionsFunc(ctx, params)
	}
	return &misa.TransactionPage{}, nil
}

// memProfileRepo is an in-memory providerconfig.Repository
type memProfileRepo struct {
	profiles map[int64][]providerconfig.ProviderConfig
}

func (m *memProfileRepo) GetProfiles(_ context.Context, userID int64) ([]providerconfig.ProviderConfig, error) {
	out := make([]providerconfig.ProviderConfig, len(m.profiles[userID]))
	copy(out, m.profiles[userID])
	return out, nil
}

func (m *memProfileRepo) SaveProfiles(_ context.Context, userID int64, profiles []providerconfig.ProviderConfig) error {
	stored := make([]providerconfig.ProviderConfig, len(profiles))
	copy(stored, profiles)
	m.profiles[userID] = stored
	return nil
}

// memIncomeRepo is a minimal income.Repository
type memIncomeRepo struct {
	external map[string]float64
	entries  map[string]bool
}

func (m *memIncomeRepo) FindByMonth(_ context.Context, _ int64, month time.Time) (*income.MonthlyIncomeRecord, error) {
	amount, ok := m.external[month.Format("2006-01")]
	if !ok {
		return nil, nil
	}
	return &income.MonthlyIncomeRecord{Month: month, ExternalAmount: amount, TotalIncome: amount}, nil
}

func (m *memIncomeRepo) HasImportEntry(_ context.Context, _ int64, externalID string) (bool, error) {
	return m.entries[externalID], nil
}

func (m *memIncomeRepo) ApplyImport(_ context.Context, _ int64, month time.Time, amount float64, _, externalID string) (string, error) {
	if externalID != "" {
		if m.entries[externalID] {
			return "", income.ErrDuplicateImport
		}
		m.entries[externalID] = true
	}
	m.external[month.Format("2006-01")] += amount
	return "rec-1", nil
}

// memExpenseRepo is a minimal expense.Repository
type memExpenseRepo struct {
	records []expense.ExpenseRecord
}

func (m *memExpenseRepo) Create(_ context.Context, params expense.CreateExpenseParams) (*expense.ExpenseRecord, error) {
	rec := expense.ExpenseRecord{ID: "exp-1", UserID: params.UserID, Category: params.Category, Amount: params.Amount}
	m.records = append(m.records, rec)
	return &rec, nil
}

func (m *memExpenseRepo) ExistsByExternalID(_ context.Context, _ int64, _ string) (bool, error) {
	return false, nil
}

func (m *memExpenseRepo) ListByMonth(_ context.Context, _ int64, _ time.Time) ([]expense.ExpenseRecord, error) {
	return m.records, nil
}

func newTestMisaHandler(t *testing.T, client *MockMisaClient) (*MisaHandler, *providerconfig.Store, *memIncomeRepo) {
	t.Helper()

	encryptor, err := crypto.NewEncryptor("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	store := providerconfig.NewStore(&memProfileRepo{profiles: map[int64][]providerconfig.ProviderConfig{}}, encryptor)

	incomeRepo := &memIncomeRepo{external: map[string]float64{}, entries: map[string]bool{}}
	handler := NewMisaHandler(
		store,
		func() misa.ClientInterface { return client },
		misasync.NewIncomeSyncService(incomeRepo),
		misasync.NewExpenseSyncService(&memExpenseRepo{}),
	)
	return handler, store, incomeRepo
}

func authedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, int64(1))
	return req.WithContext(ctx)
}

func saveProfile(t *testing.T, store *providerconfig.Store) {
	t.Helper()
	err := store.Upsert(context.Background(), 1, providerconfig.UpsertParams{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("failed to save profile: %v", err)
	}
}

func TestHandleImport_Success(t *testing.T) {
	client := &MockMisaClient{
		SearchTransactionsFunc: func(_ context.Context, params misa.SearchParams) (*misa.TransactionPage, error) {
			if params.TransactionType != nil && *params.TransactionType == misa.TransactionTypeIncome {
				return &misa.TransactionPage{Total: 1, Data: []misa.Transaction{
					{ID: "t1", DateString: "2024-01-15T00:00:00", Amount: 5_000_000, Note: "Salary"},
				}}, nil
			}
			return &misa.TransactionPage{Total: 1, Data: []misa.Transaction{
				{ID: "e1", DateString: "2024-01-16T00:00:00", Amount: 120_000, CategoryName: "Food"},
			}}, nil
		},
	}
	handler, store, incomeRepo := newTestMisaHandler(t, client)
	saveProfile(t, store)

	body, _ := json.Marshal(ImportRequest{FromDate: "2024-01-01", ToDate: "2024-01-31"})
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, authedRequest(http.MethodPost, "/api/misa/import", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp ImportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Income.Imported) != 1 || len(resp.Expenses.Imported) != 1 {
		t.Errorf("imported counts = %d income, %d expenses, want 1 and 1",
			len(resp.Income.Imported), len(resp.Expenses.Imported))
	}
	if got := incomeRepo.external["2024-01"]; got != 5_000_000 {
		t.Errorf("external amount = %v, want 5000000", got)
	}

	// A successful run marks the profile validated.
	profiles, err := store.Profiles(context.Background(), 1)
	if err != nil {
		t.Fatalf("failed to list profiles: %v", err)
	}
	if profiles[0].ValidationStatus != providerconfig.ValidationActive {
		t.Errorf("ValidationStatus = %q, want active", profiles[0].ValidationStatus)
	}
	if profiles[0].LastValidated == nil {
		t.Error("LastValidated should be set after an import")
	}
}

func TestHandleImport_NoProfileConfigured(t *testing.T) {
	handler, _, _ := newTestMisaHandler(t, &MockMisaClient{})

	body, _ := json.Marshal(ImportRequest{FromDate: "2024-01-01", ToDate: "2024-01-31"})
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, authedRequest(http.MethodPost, "/api/misa/import", body))

	if rec.Code != http.StatusPreconditionFailed {
		t.Errorf("status = %d, want 412", rec.Code)
	}
}

func TestHandleImport_BadCredentialsRecordsValidationFailure(t *testing.T) {
	client := &MockMisaClient{
		LoginFunc: func(_ context.Context, _, _ string) (*misa.Session, error) {
			return nil, &misa.AuthError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
		},
	}
	handler, store, _ := newTestMisaHandler(t, client)
	saveProfile(t, store)

	body, _ := json.Marshal(ImportRequest{FromDate: "2024-01-01", ToDate: "2024-01-31"})
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, authedRequest(http.MethodPost, "/api/misa/import", body))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	profiles, err := store.Profiles(context.Background(), 1)
	if err != nil {
		t.Fatalf("failed to list profiles: %v", err)
	}
	if profiles[0].ValidationStatus != providerconfig.ValidationInactive {
		t.Errorf("ValidationStatus = %q, want inactive", profiles[0].ValidationStatus)
	}
}

func TestHandleImport_InvalidDates(t *testing.T) {
	handler, store, _ := newTestMisaHandler(t, &MockMisaClient{})
	saveProfile(t, store)

	body, _ := json.Marshal(ImportRequest{FromDate: "January 1st", ToDate: "2024-01-31"})
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, authedRequest(http.MethodPost, "/api/misa/import", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleImport_Unauthenticated(t *testing.T) {
	handler, _, _ := newTestMisaHandler(t, &MockMisaClient{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/misa/import", nil)
	handler.HandleImport(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleWalletSummary_CachesResult(t *testing.T) {
	client := &MockMisaClient{}
	handler, store, _ := newTestMisaHandler(t, client)
	saveProfile(t, store)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.HandleWalletSummary(rec, authedRequest(http.MethodGet, "/api/misa/wallets/summary", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	if client.summaryCalls != 1 {
		t.Errorf("provider summary calls = %d, want 1 (second request cached)", client.summaryCalls)
	}
}
