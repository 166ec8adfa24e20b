package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fintrack/internal/domain/income"
)

type IncomeRepository struct {
	db *DB
}

func NewIncomeRepository(db *DB) *IncomeRepository {
	return &IncomeRepository{db: db}
}

func (r *IncomeRepository) FindByMonth(ctx context.Context, userID int64, month time.Time) (*income.MonthlyIncomeRecord, error) {
	query := `
		SELECT id, user_id, month, base_amount, external_amount, total_income, import_notes, created_at, updated_at
		FROM monthly_incomes
		WHERE user_id = $1 AND month = $2
	`

	var rec income.MonthlyIncomeRecord
	err := r.db.QueryRowContext(ctx, query, userID, month).Scan(
		&rec.ID, &rec.UserID, &rec.Month, &rec.BaseAmount, &rec.ExternalAmount,
		&rec.TotalIncome, pq.Array(&rec.ImportNotes), &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monthly income record: %w", err)
	}
	return &rec, nil
}

func (r *IncomeRepository) HasImportEntry(ctx context.Context, userID int64, externalID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM income_import_entries WHERE user_id = $1 AND external_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check import entry: %w", err)
	}
	return exists, nil
}

// ApplyImport runs the import-entry insert and the aggregate increment in one
// database transaction. The increment is expressed as arithmetic on the stored
// row, so two concurrent imports for the same month both land; the unique
// import entry guarantees a given external id lands at most once.
func (r *IncomeRepository) ApplyImport(ctx context.Context, userID int64, month time.Time, amount float64, note, externalID string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if externalID != "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO income_import_entries (user_id, external_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, externalID)
		if err != nil {
			return "", fmt.Errorf("failed to record import entry: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("failed to record import entry: %w", err)
		}
		if affected == 0 {
			return "", income.ErrDuplicateImport
		}
	}

	var recordID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO monthly_incomes (user_id, month, external_amount, total_income, import_notes)
		VALUES ($1, $2, $3, $3, ARRAY[$4::text])
		ON CONFLICT (user_id, month) DO UPDATE SET
			external_amount = monthly_incomes.external_amount + EXCLUDED.external_amount,
			total_income = monthly_incomes.base_amount + monthly_incomes.external_amount + EXCLUDED.external_amount,
			import_notes = array_append(monthly_incomes.import_notes, $4),
			updated_at = now()
		RETURNING id
	`, userID, month, amount, note).Scan(&recordID)
	if err != nil {
		return "", fmt.Errorf("failed to apply income import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit income import: %w", err)
	}
	return recordID, nil
}
