package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
)

func seedMonth(t *testing.T, svc *LedgerService) {
	t.Helper()
	seed := []EntryInput{
		{Date: "2024-03-01", Category: "income", Subject: "salary", Amount: "3000"},
		{Date: "2024-03-02", Category: "expense", Subject: "rent", Amount: "900"},
		{Date: "2024-03-05", Category: "expense", Subject: "groceries", Amount: "42.50"},
	}
	for _, in := range seed {
		if _, err := svc.AddEntry(context.Background(), in); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	svc := newTestLedger(t)
	seedMonth(t, svc)
	export := NewExportService(svc.storage)

	var buf bytes.Buffer
	if err := export.WriteCSV(context.Background(), &buf, "2024-03"); err != nil {
		t.Fatalf("export: %v", err)
	}

	out := buf.Bytes()
	if !bytes.HasPrefix(out, utf8BOM) {
		t.Fatal("missing UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(out[len(utf8BOM):])).ReadAll()
	if err != nil {
		t.Fatalf("parse exported csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(records))
	}
	if strings.Join(records[0], ",") != "id,date,category,subject,amount" {
		t.Fatalf("header = %v", records[0])
	}
	if records[3][3] != "groceries" || records[3][4] != "42.50" {
		t.Fatalf("last row = %v", records[3])
	}
}

func TestWriteXLSX(t *testing.T) {
	svc := newTestLedger(t)
	seedMonth(t, svc)
	export := NewExportService(svc.storage)

	var buf bytes.Buffer
	if err := export.WriteXLSX(context.Background(), &buf, "2024-03"); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Entries")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if rows[1][2] != "income" || rows[1][3] != "salary" {
		t.Fatalf("first data row = %v", rows[1])
	}
}

func TestWriteMonthlyReportCSV(t *testing.T) {
	svc := newTestLedger(t)
	seedMonth(t, svc)
	export := NewExportService(svc.storage)

	var buf bytes.Buffer
	if err := export.WriteMonthlyReportCSV(context.Background(), &buf, "2024-03"); err != nil {
		t.Fatalf("report: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"month,2024-03",
		"income_total,3000.00",
		"expense_total,942.50",
		"balance,2057.50",
		"expense,groceries,42.50",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteComparisonCSV(t *testing.T) {
	svc := newTestLedger(t)
	seedMonth(t, svc)
	export := NewExportService(svc.storage)

	var buf bytes.Buffer
	err := export.WriteComparisonCSV(context.Background(), &buf, []string{"2024-03", "2024-04"})
	if err != nil {
		t.Fatalf("comparison: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2024-03,3000.00,942.50,2057.50,3") {
		t.Fatalf("missing 2024-03 row in:\n%s", out)
	}
	// A month with no data still gets a zero row.
	if !strings.Contains(out, "2024-04,0.00,0.00,0.00,0") {
		t.Fatalf("missing empty 2024-04 row in:\n%s", out)
	}
}

func TestImportCSVRoundtrip(t *testing.T) {
	src := newTestLedger(t)
	seedMonth(t, src)
	export := NewExportService(src.storage)

	var buf bytes.Buffer
	if err := export.WriteCSV(context.Background(), &buf, ""); err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newTestLedger(t)
	report, err := NewImportService(dst).ImportCSV(context.Background(), &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 3 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}

	sum, err := dst.Summary(context.Background(), "2024-03")
	if err != nil {
		t.Fatalf("summary after import: %v", err)
	}
	if sum.Income.Cents != 300000 || sum.Expense.Cents != 94250 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestImportCSVShiftJIS(t *testing.T) {
	svc := newTestLedger(t)
	imp := NewImportService(svc)

	input := strings.Join([]string{
		"date,category,subject,amount",
		"2024-03-01,income,給料,3000",
		"2024-03-02,expense,食費,42.50",
		"",
	}, "\r\n")
	encoded, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(input))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	report, err := imp.ImportCSV(context.Background(), bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 2 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}

	entries, err := svc.ListEntries(context.Background(), "2024-03")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Subject != "給料" || entries[1].Subject != "食費" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestImportCSVWithoutHeader(t *testing.T) {
	svc := newTestLedger(t)
	imp := NewImportService(svc)

	input := "2024-03-01,income,salary,3000\n2024-03-02,expense,rent,900\n"
	report, err := imp.ImportCSV(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 2 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestImportCSVReportsBadRows(t *testing.T) {
	svc := newTestLedger(t)
	imp := NewImportService(svc)

	input := strings.Join([]string{
		"date,category,subject,amount",
		"2024-03-01,income,salary,3000",
		"not-a-date,expense,junk,10",
		"2024-03-02,savings,piggy bank,50",
		"2024-03-03,expense,coffee,4.20",
		"",
	}, "\n")

	report, err := imp.ImportCSV(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 2 {
		t.Fatalf("imported = %d, want 2", report.Imported)
	}
	if report.Failed != 2 {
		t.Fatalf("failed = %d, want 2", report.Failed)
	}
	if len(report.Errors) != 2 || report.Errors[0].Line != 3 || report.Errors[1].Line != 4 {
		t.Fatalf("errors = %+v", report.Errors)
	}
}
