package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"
)

// utf8BOM makes exported CSVs open correctly in Excel with non-ASCII
// subjects.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{"id", "date", "category", "subject", "amount"}

// ExportService renders ledger data as CSV and XLSX files.
type ExportService struct {
	storage *storage.SQLiteRepository
}

func NewExportService(storage *storage.SQLiteRepository) *ExportService {
	return &ExportService{storage: storage}
}

// WriteCSV writes entries as CSV with a UTF-8 BOM and header row. An empty
// month exports the whole ledger.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, month string) error {
	entries, err := s.listForExport(ctx, month)
	if err != nil {
		return err
	}

	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(entryRecord(e)); err != nil {
			return fmt.Errorf("write entry %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes entries as an XLSX workbook with one sheet.
func (s *ExportService) WriteXLSX(ctx context.Context, w io.Writer, month string) error {
	entries, err := s.listForExport(ctx, month)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Entries"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range csvHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("write header cell: %w", err)
		}
	}
	for row, e := range entries {
		values := []any{e.ID, e.Date.ISO(), string(e.Category), e.Subject, e.Amount.Units()}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteMonthlyReportCSV writes the detailed report for one month: summary
// figures, the per-subject breakdown, then the raw entries.
func (s *ExportService) WriteMonthlyReportCSV(ctx context.Context, w io.Writer, month string) error {
	if _, err := core.ParseYearMonth(month); err != nil {
		return err
	}
	entries, err := s.storage.ListEntriesByMonth(ctx, month)
	if err != nil {
		return fmt.Errorf("list month entries: %w", err)
	}
	if len(entries) == 0 {
		return core.ErrNotFound
	}
	st := core.ComputeStatistics(month, entries)

	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"month", st.Month},
		{"records", strconv.Itoa(st.TotalRecords)},
		{"income_total", st.IncomeTotal.String()},
		{"expense_total", st.ExpenseTotal.String()},
		{"balance", st.Balance.String()},
		{"avg_income", st.AvgIncome.String()},
		{"avg_expense", st.AvgExpense.String()},
		{"max_income", st.MaxIncome.String()},
		{"max_expense", st.MaxExpense.String()},
		{"min_income", st.MinIncome.String()},
		{"min_expense", st.MinExpense.String()},
		{},
		{"category", "subject", "total"},
	}
	for _, sa := range st.SubjectBreakdown {
		rows = append(rows, []string{string(sa.Category), sa.Subject, sa.Amount.String()})
	}
	rows = append(rows, nil, csvHeader)
	for _, e := range entries {
		rows = append(rows, entryRecord(e))
	}

	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteComparisonCSV writes one summary row per month so several months can
// be compared side by side.
func (s *ExportService) WriteComparisonCSV(ctx context.Context, w io.Writer, months []string) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"month", "income", "expense", "balance", "records"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, month := range months {
		if _, err := core.ParseYearMonth(month); err != nil {
			return err
		}
		sum, err := s.storage.MonthTotals(ctx, month)
		if errors.Is(err, core.ErrNotFound) {
			sum = core.MonthlySummary{Month: month}
		} else if err != nil {
			return fmt.Errorf("totals for %s: %w", month, err)
		}
		row := []string{
			month,
			sum.Income.String(),
			sum.Expense.String(),
			sum.Balance.String(),
			strconv.Itoa(sum.Count),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write month row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportMonthToFile writes one month's entries as a CSV file in dir and
// returns the file path. Used as the pre-archive safety copy.
func (s *ExportService) ExportMonthToFile(ctx context.Context, dir, month string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	name := fmt.Sprintf("kakeibo_%s_%s.csv", month, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := s.WriteCSV(ctx, f, month); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

func (s *ExportService) listForExport(ctx context.Context, month string) ([]core.Entry, error) {
	if month == "" {
		entries, err := s.storage.ListEntries(ctx)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		return entries, nil
	}
	if _, err := core.ParseYearMonth(month); err != nil {
		return nil, err
	}
	entries, err := s.storage.ListEntriesByMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("list month entries: %w", err)
	}
	return entries, nil
}

func entryRecord(e core.Entry) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.Date.ISO(),
		string(e.Category),
		e.Subject,
		e.Amount.String(),
	}
}
