package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"kakeibo/internal/core"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

// entryJSON is the wire form of a ledger entry.
type entryJSON struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Subject  string `json:"subject"`
	Amount   string `json:"amount"`
}

// entryRequest is the create/update payload. Date and amount are strings
// in any accepted user form.
type entryRequest struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Subject  string `json:"subject"`
	Amount   string `json:"amount"`
}

func toEntryJSON(e core.Entry) entryJSON {
	return entryJSON{
		ID:       e.ID,
		Date:     e.Date.ISO(),
		Category: string(e.Category),
		Subject:  e.Subject,
		Amount:   e.Amount.String(),
	}
}

func toEntryInput(req entryRequest) services.EntryInput {
	return services.EntryInput{
		Date:     strings.TrimSpace(req.Date),
		Category: strings.TrimSpace(req.Category),
		Subject:  sanitizeInput(req.Subject),
		Amount:   strings.TrimSpace(req.Amount),
	}
}

type summaryJSON struct {
	Month   string `json:"month"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
	Count   int    `json:"count"`
}

type subjectAmountJSON struct {
	Category string `json:"category"`
	Subject  string `json:"subject"`
	Amount   string `json:"amount"`
}

type statsJSON struct {
	Month            string              `json:"month"`
	TotalRecords     int                 `json:"total_records"`
	IncomeCount      int                 `json:"income_count"`
	ExpenseCount     int                 `json:"expense_count"`
	IncomeTotal      string              `json:"income_total"`
	ExpenseTotal     string              `json:"expense_total"`
	Balance          string              `json:"balance"`
	AvgIncome        string              `json:"avg_income"`
	AvgExpense       string              `json:"avg_expense"`
	MaxIncome        string              `json:"max_income"`
	MaxExpense       string              `json:"max_expense"`
	MinIncome        string              `json:"min_income"`
	MinExpense       string              `json:"min_expense"`
	SubjectBreakdown []subjectAmountJSON `json:"subject_breakdown"`
}

func toSummaryJSON(s core.MonthlySummary) summaryJSON {
	return summaryJSON{
		Month:   s.Month,
		Income:  s.Income.String(),
		Expense: s.Expense.String(),
		Balance: s.Balance.String(),
		Count:   s.Count,
	}
}

func toStatsJSON(st core.MonthlyStatistics) statsJSON {
	out := statsJSON{
		Month:        st.Month,
		TotalRecords: st.TotalRecords,
		IncomeCount:  st.IncomeCount,
		ExpenseCount: st.ExpenseCount,
		IncomeTotal:  st.IncomeTotal.String(),
		ExpenseTotal: st.ExpenseTotal.String(),
		Balance:      st.Balance.String(),
		AvgIncome:    st.AvgIncome.String(),
		AvgExpense:   st.AvgExpense.String(),
		MaxIncome:    st.MaxIncome.String(),
		MaxExpense:   st.MaxExpense.String(),
		MinIncome:    st.MinIncome.String(),
		MinExpense:   st.MinExpense.String(),
	}
	for _, sa := range st.SubjectBreakdown {
		out.SubjectBreakdown = append(out.SubjectBreakdown, subjectAmountJSON{
			Category: string(sa.Category),
			Subject:  sa.Subject,
			Amount:   sa.Amount.String(),
		})
	}
	return out
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		month := strings.TrimSpace(r.URL.Query().Get("month"))
		entries, err := s.ledger.ListEntries(r.Context(), month)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]entryJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, toEntryJSON(e))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req entryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		e, err := s.ledger.AddEntry(r.Context(), toEntryInput(req))
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.invalidateAggregates()
		writeJSON(w, http.StatusCreated, toEntryJSON(e))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleEntryByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/entries/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "invalid entry id"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		e, err := s.ledger.GetEntry(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryJSON(e))

	case http.MethodPut:
		var req entryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		e, err := s.ledger.UpdateEntry(r.Context(), id, toEntryInput(req))
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.invalidateAggregates()
		writeJSON(w, http.StatusOK, toEntryJSON(e))

	case http.MethodDelete:
		if err := s.ledger.DeleteEntry(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		s.invalidateAggregates()
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if cached, ok := s.summaryCache.Get(month); ok {
		writeJSON(w, http.StatusOK, toSummaryJSON(cached))
		return
	}

	sum, err := s.ledger.Summary(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.summaryCache.Set(month, sum)
	writeJSON(w, http.StatusOK, toSummaryJSON(sum))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if cached, ok := s.statsCache.Get(month); ok {
		writeJSON(w, http.StatusOK, toStatsJSON(cached))
		return
	}

	st, err := s.ledger.Statistics(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.statsCache.Set(month, st)
	writeJSON(w, http.StatusOK, toStatsJSON(st))
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	months, err := s.ledger.Months(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if months == nil {
		months = []string{}
	}
	writeJSON(w, http.StatusOK, months)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	month := strings.TrimSpace(r.URL.Query().Get("month"))

	name := "kakeibo.csv"
	if month != "" {
		normalized, err := core.ParseYearMonth(month)
		if err != nil {
			writeError(w, r, err)
			return
		}
		month = normalized
		name = fmt.Sprintf("kakeibo_%s.csv", month)
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if err := s.export.WriteCSV(r.Context(), w, month); err != nil {
		// Headers may already be out; log instead of rewriting the status.
		slog.ErrorContext(r.Context(), "CSV export failed", "month", month, "error", err)
	}
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	month := strings.TrimSpace(r.URL.Query().Get("month"))

	name := "kakeibo.xlsx"
	if month != "" {
		normalized, err := core.ParseYearMonth(month)
		if err != nil {
			writeError(w, r, err)
			return
		}
		month = normalized
		name = fmt.Sprintf("kakeibo_%s.xlsx", month)
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if err := s.export.WriteXLSX(r.Context(), w, month); err != nil {
		slog.ErrorContext(r.Context(), "XLSX export failed", "month", month, "error", err)
	}
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		fmt.Sprintf("kakeibo_report_%s.csv", month)))

	if err := s.export.WriteMonthlyReportCSV(r.Context(), w, month); err != nil {
		slog.ErrorContext(r.Context(), "Report export failed", "month", month, "error", err)
	}
}

func (s *Server) handleExportCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("months"))
	if raw == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "months parameter required (comma-separated YYYY-MM)"})
		return
	}
	var months []string
	for _, m := range strings.Split(raw, ",") {
		month, err := core.ParseYearMonth(m)
		if err != nil {
			writeError(w, r, err)
			return
		}
		months = append(months, month)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="kakeibo_comparison.csv"`)

	if err := s.export.WriteComparisonCSV(r.Context(), w, months); err != nil {
		slog.ErrorContext(r.Context(), "Comparison export failed", "months", months, "error", err)
	}
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	defer r.Body.Close()

	report, err := s.importer.ImportCSV(r.Context(), r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if report.Imported > 0 {
		s.invalidateAggregates()
	}
	writeJSON(w, http.StatusOK, report)
}

type backupJSON struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Created string `json:"created"`
}

func (s *Server) handleBackups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		backups, err := storage.ListBackups(s.backupDir)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]backupJSON, 0, len(backups))
		for _, b := range backups {
			out = append(out, backupJSON{
				Name:    b.Name,
				Path:    b.Path,
				Size:    b.Size,
				Created: b.Created.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		path, err := s.repo.BackupFile(r.Context(), s.backupDir)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"path": path})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}
