package income

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateImport is returned by ApplyImport when the external id was
// already recorded for this user, including by a concurrent import.
var ErrDuplicateImport = errors.New("external transaction already imported")

// Repository defines the interface for monthly income data access.
type Repository interface {
	// FindByMonth returns the user's record for the given month, or nil.
	FindByMonth(ctx context.Context, userID int64, month time.Time) (*MonthlyIncomeRecord, error)

	// HasImportEntry reports whether the external id was already imported
	// for this user.
	HasImportEntry(ctx context.Context, userID int64, externalID string) (bool, error)

	// ApplyImport atomically adds amount to the month's external income,
	// rederives the total, appends the note, and records the external id,
	// creating the record if the month has none yet. The increment and the
	// id entry commit together, so concurrent imports can neither lose an
	// increment nor count a transaction twice. An empty externalID records
	// no entry. Returns the record id, or ErrDuplicateImport if the id was
	// recorded concurrently.
	ApplyImport(ctx context.Context, userID int64, month time.Time, amount float64, note, externalID string) (string, error)
}
