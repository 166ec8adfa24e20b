package misasync

// SkipReasonDuplicate is recorded when a transaction was already imported.
// A skip is an outcome, not an error.
const SkipReasonDuplicate = "Duplicate"

type ImportedItem struct {
	ExternalID string  `json:"externalId"`
	Amount     float64 `json:"amount"`
	RecordID   string  `json:"recordId"`
}

type SkippedItem struct {
	ExternalID string `json:"externalId"`
	Reason     string `json:"reason"`
}

type ErrorItem struct {
	ExternalID string `json:"externalId"`
	Message    string `json:"message"`
}

// ImportResult summarizes one reconciliation run. Per-transaction failures
// land in Errors and never abort the batch; the lists preserve the caller's
// transaction order.
type ImportResult struct {
	Imported []ImportedItem `json:"imported"`
	Skipped  []SkippedItem  `json:"skipped"`
	Errors   []ErrorItem    `json:"errors"`
}

func newImportResult() *ImportResult {
	return &ImportResult{
		Imported: []ImportedItem{},
		Skipped:  []SkippedItem{},
		Errors:   []ErrorItem{},
	}
}

func (r *ImportResult) addImported(externalID string, amount float64, recordID string) {
	r.Imported = append(r.Imported, ImportedItem{ExternalID: externalID, Amount: amount, RecordID: recordID})
}

func (r *ImportResult) addSkipped(externalID, reason string) {
	r.Skipped = append(r.Skipped, SkippedItem{ExternalID: externalID, Reason: reason})
}

func (r *ImportResult) addError(externalID, message string) {
	r.Errors = append(r.Errors, ErrorItem{ExternalID: externalID, Message: message})
}
