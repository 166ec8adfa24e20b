package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"fintrack/internal/domain/expense"
	"fintrack/internal/domain/income"
	"fintrack/internal/shared/middleware"
)

// FinanceHandler serves the persisted side of the ledger: monthly income
// aggregates and expense rows.
type FinanceHandler struct {
	incomeRepo  income.Repository
	expenseRepo expense.Repository
}

func NewFinanceHandler(incomeRepo income.Repository, expenseRepo expense.Repository) *FinanceHandler {
	return &FinanceHandler{incomeRepo: incomeRepo, expenseRepo: expenseRepo}
}

// HandleMonthlyIncome returns the income record for ?month=YYYY-MM.
func (h *FinanceHandler) HandleMonthlyIncome(w http.ResponseWriter, r *http.Request) {
	userID, month, ok := h.userAndMonth(w, r)
	if !ok {
		return
	}

	rec, err := h.incomeRepo.FindByMonth(r.Context(), userID, month)
	if err != nil {
		log.Printf("Error loading monthly income for user %d: %v", userID, err)
		http.Error(w, "Failed to load monthly income", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "No income record for this month", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// HandleExpenses lists the expense rows for ?month=YYYY-MM.
func (h *FinanceHandler) HandleExpenses(w http.ResponseWriter, r *http.Request) {
	userID, month, ok := h.userAndMonth(w, r)
	if !ok {
		return
	}

	records, err := h.expenseRepo.ListByMonth(r.Context(), userID, month)
	if err != nil {
		log.Printf("Error listing expenses for user %d: %v", userID, err)
		http.Error(w, "Failed to list expenses", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []expense.ExpenseRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (h *FinanceHandler) userAndMonth(w http.ResponseWriter, r *http.Request) (int64, time.Time, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, time.Time{}, false
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return 0, time.Time{}, false
	}

	month, err := time.ParseInLocation("2006-01", r.URL.Query().Get("month"), time.UTC)
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return 0, time.Time{}, false
	}
	return userID, month, true
}
