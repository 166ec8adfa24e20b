package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"fintrack/internal/domain/misasync"
	"fintrack/internal/domain/providerconfig"
	"fintrack/internal/infrastructure/misa"
)

// ClientFactory builds a fresh MISA client per job run. A new client per user
// keeps cached tokens instance-scoped, so credentials never leak across users.
type ClientFactory func() misa.ClientInterface

const searchPageSize = 500

// MisaSyncJob imports the trailing window of MISA transactions for one user:
// it logs in with the user's active profile, fetches income and expense
// transactions, runs both reconciliation steps, and records the validation
// outcome on the profile.
type MisaSyncJob struct {
	userID     int64
	windowDays int

	store       *providerconfig.Store
	newClient   ClientFactory
	incomeSync  *misasync.IncomeSyncService
	expenseSync *misasync.ExpenseSyncService
}

func NewMisaSyncJob(
	userID int64,
	windowDays int,
	store *providerconfig.Store,
	newClient ClientFactory,
	incomeSync *misasync.IncomeSyncService,
	expenseSync *misasync.ExpenseSyncService,
) *MisaSyncJob {
	return &MisaSyncJob{
		userID:      userID,
		windowDays:  windowDays,
		store:       store,
		newClient:   newClient,
		incomeSync:  incomeSync,
		expenseSync: expenseSync,
	}
}

func (j *MisaSyncJob) UserID() string {
	return fmt.Sprintf("%d", j.userID)
}

func (j *MisaSyncJob) Description() string {
	return "MISA transaction sync"
}

func (j *MisaSyncJob) Execute(ctx context.Context) error {
	profileIdx, username, password, err := j.store.ActiveCredentials(ctx, j.userID)
	if err != nil {
		return fmt.Errorf("no usable provider profile: %w", err)
	}

	client := j.newClient()
	if _, err := client.Login(ctx, username, password); err != nil {
		if verr := j.store.Validate(ctx, j.userID, profileIdx, false, err.Error()); verr != nil {
			log.Printf("Failed to record validation failure for user %d: %v", j.userID, verr)
		}
		return fmt.Errorf("provider login failed: %w", err)
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -j.windowDays)

	incomeTxs, err := j.fetchTransactions(ctx, client, from, to, misa.TransactionTypeIncome)
	if err != nil {
		return fmt.Errorf("failed to fetch income transactions: %w", err)
	}
	expenseTxs, err := j.fetchTransactions(ctx, client, from, to, misa.TransactionTypeExpense)
	if err != nil {
		return fmt.Errorf("failed to fetch expense transactions: %w", err)
	}

	incomeResult, err := j.incomeSync.Import(ctx, j.userID, incomeTxs)
	if err != nil {
		return fmt.Errorf("income import failed: %w", err)
	}
	expenseResult, err := j.expenseSync.Import(ctx, j.userID, expenseTxs)
	if err != nil {
		return fmt.Errorf("expense import failed: %w", err)
	}

	if err := j.store.Validate(ctx, j.userID, profileIdx, true, ""); err != nil {
		log.Printf("Failed to record validation success for user %d: %v", j.userID, err)
	}

	log.Printf("MISA sync for user %d: income imported=%d skipped=%d errors=%d, expenses imported=%d skipped=%d errors=%d",
		j.userID,
		len(incomeResult.Imported), len(incomeResult.Skipped), len(incomeResult.Errors),
		len(expenseResult.Imported), len(expenseResult.Skipped), len(expenseResult.Errors))
	return nil
}

// fetchTransactions pages through the provider's search endpoint until a
// short page signals the end of the window.
func (j *MisaSyncJob) fetchTransactions(ctx context.Context, client misa.ClientInterface, from, to time.Time, txType int) ([]misa.Transaction, error) {
	var all []misa.Transaction
	skip := 0
	for {
		page, err := client.SearchTransactions(ctx, misa.SearchParams{
			FromDate:        from.Format("2006-01-02"),
			ToDate:          to.Format("2006-01-02"),
			TransactionType: &txType,
			Skip:            skip,
			Take:            searchPageSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if len(page.Data) < searchPageSize {
			return all, nil
		}
		skip += searchPageSize
	}
}
