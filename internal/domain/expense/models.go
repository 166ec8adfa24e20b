package expense

import (
	"time"
)

const (
	SourceManual = "manual"
	SourceMisa   = "misa"

	// CategoryFallback is used when the provider supplied no category.
	CategoryFallback = "Other"

	// DefaultItemName labels imported expenses that carry no note.
	DefaultItemName = "MISA expense"

	// BucketEssentialNeeds is the default budget bucket imported expenses
	// are attributed to in full.
	BucketEssentialNeeds = "essential_needs"
)

// ExpenseRecord is one expense row, manually entered or imported. Imported
// rows are never merged or updated after creation.
type ExpenseRecord struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"userId"`
	Month      time.Time `json:"month"` // first day of the month, UTC
	Category   string    `json:"category"`
	ItemName   string    `json:"itemName"`
	Amount     float64   `json:"amount"`
	Source     string    `json:"source"` // manual | misa
	Bucket     string    `json:"bucket"`
	ExternalID *string   `json:"externalId,omitempty"` // nil when not deduplicable
	ImportNote string    `json:"importNote,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CreateExpenseParams struct {
	UserID     int64
	Month      time.Time
	Category   string
	ItemName   string
	Amount     float64
	Source     string
	Bucket     string
	ExternalID *string
	ImportNote string
}
