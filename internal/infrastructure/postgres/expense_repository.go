package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fintrack/internal/domain/expense"
)

const uniqueViolation = "23505"

type ExpenseRepository struct {
	db *DB
}

func NewExpenseRepository(db *DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, params expense.CreateExpenseParams) (*expense.ExpenseRecord, error) {
	query := `
		INSERT INTO expenses (id, user_id, month, category, item_name, amount, source, bucket, external_id, import_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, user_id, month, category, item_name, amount, source, bucket, external_id, import_note, created_at
	`

	var rec expense.ExpenseRecord
	err := r.db.QueryRowContext(
		ctx, query,
		uuid.New().String(), params.UserID, params.Month, params.Category, params.ItemName, params.Amount,
		params.Source, params.Bucket, params.ExternalID, params.ImportNote,
	).Scan(
		&rec.ID, &rec.UserID, &rec.Month, &rec.Category, &rec.ItemName, &rec.Amount,
		&rec.Source, &rec.Bucket, &rec.ExternalID, &rec.ImportNote, &rec.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, expense.ErrDuplicateExternalID
		}
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	return &rec, nil
}

func (r *ExpenseRepository) ExistsByExternalID(ctx context.Context, userID int64, externalID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM expenses
			WHERE user_id = $1 AND source = $2 AND external_id = $3
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, expense.SourceMisa, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check for existing expense: %w", err)
	}
	return exists, nil
}

func (r *ExpenseRepository) ListByMonth(ctx context.Context, userID int64, month time.Time) ([]expense.ExpenseRecord, error) {
	query := `
		SELECT id, user_id, month, category, item_name, amount, source, bucket, external_id, import_note, created_at
		FROM expenses
		WHERE user_id = $1 AND month = $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var records []expense.ExpenseRecord
	for rows.Next() {
		var rec expense.ExpenseRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Month, &rec.Category, &rec.ItemName, &rec.Amount,
			&rec.Source, &rec.Bucket, &rec.ExternalID, &rec.ImportNote, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return records, nil
}
