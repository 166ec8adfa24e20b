package misasync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"fintrack/internal/domain/expense"
	"fintrack/internal/domain/income"
	"fintrack/internal/infrastructure/misa"
	"fintrack/internal/shared/validation"
)

// ExpenseSyncService turns expense-direction MISA transactions into expense
// rows, one row per transaction. Unlike income, nothing is ever merged.
type ExpenseSyncService struct {
	repo expense.Repository
}

func NewExpenseSyncService(repo expense.Repository) *ExpenseSyncService {
	return &ExpenseSyncService{repo: repo}
}

// Import processes the batch in caller order. Duplicate suppression is keyed
// on the provider's transaction id through a database uniqueness constraint;
// transactions without an id are not deduplicable and every one of them is
// imported.
func (s *ExpenseSyncService) Import(ctx context.Context, userID int64, transactions []misa.Transaction) (*ImportResult, error) {
	result := newImportResult()

	for i := range transactions {
		tx := &transactions[i]
		if err := s.importOne(ctx, userID, tx, result); err != nil {
			msg := fmt.Sprintf("failed to import expense transaction %q: %v", tx.ID, err)
			result.addError(tx.ID, msg)
			log.Printf("Error: %s", msg)
		}
	}

	recordImportMetrics(ctx, "expense", result)
	log.Printf("Expense import completed for user %d: imported=%d, skipped=%d, errors=%d",
		userID, len(result.Imported), len(result.Skipped), len(result.Errors))
	return result, nil
}

func (s *ExpenseSyncService) importOne(ctx context.Context, userID int64, tx *misa.Transaction, result *ImportResult) error {
	occurredAt, err := tx.GetDate()
	if err != nil {
		return fmt.Errorf("invalid transaction date %q: %w", tx.DateString, err)
	}
	if tx.Amount < 0 {
		return fmt.Errorf("negative expense amount %v", tx.Amount)
	}

	var externalID *string
	importNote := "Imported from MISA"
	if tx.ID != "" {
		exists, err := s.repo.ExistsByExternalID(ctx, userID, tx.ID)
		if err != nil {
			return fmt.Errorf("failed to check for existing expense: %w", err)
		}
		if exists {
			result.addSkipped(tx.ID, SkipReasonDuplicate)
			return nil
		}
		id := tx.ID
		externalID = &id
		importNote = fmt.Sprintf("Imported from MISA (Transaction ID: %s)", id)
	}

	category := validation.SanitizeProviderText(tx.CategoryName)
	if category == "" {
		category = expense.CategoryFallback
	}
	itemName := validation.SanitizeProviderText(tx.Note)
	if itemName == "" {
		itemName = expense.DefaultItemName
	}

	rec, err := s.repo.Create(ctx, expense.CreateExpenseParams{
		UserID:     userID,
		Month:      income.MonthOf(occurredAt),
		Category:   category,
		ItemName:   itemName,
		Amount:     tx.Amount,
		Source:     expense.SourceMisa,
		Bucket:     expense.BucketEssentialNeeds,
		ExternalID: externalID,
		ImportNote: importNote,
	})
	if err != nil {
		if errors.Is(err, expense.ErrDuplicateExternalID) {
			result.addSkipped(tx.ID, SkipReasonDuplicate)
			return nil
		}
		return fmt.Errorf("failed to create expense record: %w", err)
	}

	result.addImported(tx.ID, tx.Amount, rec.ID)
	return nil
}
