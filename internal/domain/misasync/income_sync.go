package misasync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"fintrack/internal/domain/income"
	"fintrack/internal/infrastructure/misa"
	"fintrack/internal/shared/validation"
)

// IncomeSyncService folds income-direction MISA transactions into monthly
// income aggregates, one record per (user, month).
type IncomeSyncService struct {
	repo income.Repository
}

func NewIncomeSyncService(repo income.Repository) *IncomeSyncService {
	return &IncomeSyncService{repo: repo}
}

// Import processes the batch strictly in caller order. Duplicate detection is
// structural: each imported transaction id is recorded alongside the monthly
// record in the same database transaction, so a re-import of the same id is
// skipped no matter how the note log reads. Transactions without an id cannot
// be deduplicated and are always imported.
func (s *IncomeSyncService) Import(ctx context.Context, userID int64, transactions []misa.Transaction) (*ImportResult, error) {
	result := newImportResult()

	for i := range transactions {
		tx := &transactions[i]
		if err := s.importOne(ctx, userID, tx, result); err != nil {
			msg := fmt.Sprintf("failed to import income transaction %q: %v", tx.ID, err)
			result.addError(tx.ID, msg)
			log.Printf("Error: %s", msg)
		}
	}

	recordImportMetrics(ctx, "income", result)
	log.Printf("Income import completed for user %d: imported=%d, skipped=%d, errors=%d",
		userID, len(result.Imported), len(result.Skipped), len(result.Errors))
	return result, nil
}

func (s *IncomeSyncService) importOne(ctx context.Context, userID int64, tx *misa.Transaction, result *ImportResult) error {
	occurredAt, err := tx.GetDate()
	if err != nil {
		return fmt.Errorf("invalid transaction date %q: %w", tx.DateString, err)
	}
	if tx.Amount < 0 {
		return fmt.Errorf("negative income amount %v", tx.Amount)
	}

	if tx.ID != "" {
		imported, err := s.repo.HasImportEntry(ctx, userID, tx.ID)
		if err != nil {
			return fmt.Errorf("failed to check import entry: %w", err)
		}
		if imported {
			result.addSkipped(tx.ID, SkipReasonDuplicate)
			return nil
		}
	}

	annotation := income.ImportAnnotation(tx.ID, tx.Amount, occurredAt)
	if note := validation.SanitizeProviderText(tx.Note); note != "" {
		annotation += " - " + note
	}

	recordID, err := s.repo.ApplyImport(ctx, userID, income.MonthOf(occurredAt), tx.Amount, annotation, tx.ID)
	if err != nil {
		if errors.Is(err, income.ErrDuplicateImport) {
			result.addSkipped(tx.ID, SkipReasonDuplicate)
			return nil
		}
		return fmt.Errorf("failed to apply income import: %w", err)
	}

	result.addImported(tx.ID, tx.Amount, recordID)
	return nil
}
