package expense

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateExternalID is returned by Create when another row for the same
// user already carries this external id. The uniqueness is enforced by the
// database, so concurrent imports of the same transaction cannot both land.
var ErrDuplicateExternalID = errors.New("expense with this external id already exists")

// Repository defines the interface for expense data access.
type Repository interface {
	// Create inserts one expense row. Returns ErrDuplicateExternalID when the
	// (user, external id) pair is already present among imported rows.
	Create(ctx context.Context, params CreateExpenseParams) (*ExpenseRecord, error)

	// ExistsByExternalID reports whether an imported row with this external id
	// already exists for the user.
	ExistsByExternalID(ctx context.Context, userID int64, externalID string) (bool, error)

	// ListByMonth returns the user's expenses for the given month, newest first.
	ListByMonth(ctx context.Context, userID int64, month time.Time) ([]ExpenseRecord, error)
}
