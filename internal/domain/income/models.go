package income

import (
	"fmt"
	"time"
)

// MonthlyIncomeRecord aggregates a user's income for one calendar month.
// BaseAmount is owned by the manual-entry flows; ExternalAmount is the running
// sum of imported MISA income. At most one record exists per (user, month).
type MonthlyIncomeRecord struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"userId"`
	Month          time.Time `json:"month"` // first day of the month, UTC
	BaseAmount     float64   `json:"baseAmount"`
	ExternalAmount float64   `json:"externalAmount"`
	TotalIncome    float64   `json:"totalIncome"`
	ImportNotes    []string  `json:"importNotes"` // append-only
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RecalculateTotal rederives TotalIncome from its components. Must be called
// after any amount mutation; the stored total is never trusted as input.
func (r *MonthlyIncomeRecord) RecalculateTotal() {
	r.TotalIncome = r.BaseAmount + r.ExternalAmount
}

// AppendImportNote adds one annotation line to the note log. The log is never
// truncated or deduplicated.
func (r *MonthlyIncomeRecord) AppendImportNote(note string) {
	r.ImportNotes = append(r.ImportNotes, note)
}

// MonthOf truncates a time to the first day of its month in UTC.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ImportAnnotation builds the human-readable note line recorded for one
// imported transaction. The MISA-<id> marker is an annotation for the user;
// duplicate detection is structural and never parses it.
func ImportAnnotation(externalID string, amount float64, occurredAt time.Time) string {
	if externalID == "" {
		return fmt.Sprintf("MISA import: +%.0f on %s (no transaction id)", amount, occurredAt.Format("2006-01-02"))
	}
	return fmt.Sprintf("MISA-%s: +%.0f on %s", externalID, amount, occurredAt.Format("2006-01-02"))
}
