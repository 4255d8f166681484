package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"
)

func newTestLedger(t *testing.T) *LedgerService {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kakeibo.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	// nil AMQP client: publishing is skipped, operations still succeed.
	return NewLedgerService(repo, nil)
}

func TestAddEntryNormalizesInput(t *testing.T) {
	svc := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		in       EntryInput
		wantDate string
		wantCent int64
	}{
		{
			name:     "iso date",
			in:       EntryInput{Date: "2024-03-05", Category: "expense", Subject: "groceries", Amount: "42.50"},
			wantDate: "2024-03-05",
			wantCent: 4250,
		},
		{
			name:     "slash date and comma amount",
			in:       EntryInput{Date: "2024/3/5", Category: "income", Subject: "refund", Amount: "12,30"},
			wantDate: "2024-03-05",
			wantCent: 1230,
		},
		{
			name:     "era date",
			in:       EntryInput{Date: "令和6年3月5日", Category: "expense", Subject: "transit", Amount: "210"},
			wantDate: "2024-03-05",
			wantCent: 21000,
		},
		{
			name:     "category case folded",
			in:       EntryInput{Date: "2024-03-05", Category: " Expense ", Subject: "books", Amount: "8.00"},
			wantDate: "2024-03-05",
			wantCent: 800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := svc.AddEntry(ctx, tt.in)
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if e.ID == 0 {
				t.Fatal("entry id not assigned")
			}
			if e.Date.ISO() != tt.wantDate || e.Amount.Cents != tt.wantCent {
				t.Fatalf("entry = %+v", e)
			}
		})
	}
}

func TestAddEntryRejectsInvalid(t *testing.T) {
	svc := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   EntryInput
		want error
	}{
		{"bad date", EntryInput{Date: "not a date", Category: "expense", Subject: "x", Amount: "1"}, core.ErrInvalidDate},
		{"bad category", EntryInput{Date: "2024-03-05", Category: "savings", Subject: "x", Amount: "1"}, core.ErrInvalidCategory},
		{"bad amount", EntryInput{Date: "2024-03-05", Category: "expense", Subject: "x", Amount: "-5"}, core.ErrInvalidAmount},
		{"empty subject", EntryInput{Date: "2024-03-05", Category: "expense", Subject: "  ", Amount: "1"}, core.ErrEmptySubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddEntry(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	entries, err := svc.ListEntries(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected input reached storage: %+v", entries)
	}
}

func TestUpdateAndDeleteEntry(t *testing.T) {
	svc := newTestLedger(t)
	ctx := context.Background()

	e, err := svc.AddEntry(ctx, EntryInput{Date: "2024-03-05", Category: "expense", Subject: "lunch", Amount: "9.80"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	updated, err := svc.UpdateEntry(ctx, e.ID, EntryInput{Date: "2024-03-06", Category: "expense", Subject: "dinner", Amount: "15.00"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Subject != "dinner" || updated.Date.ISO() != "2024-03-06" || updated.Amount.Cents != 1500 {
		t.Fatalf("updated = %+v", updated)
	}

	if err := svc.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetEntry(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get after delete = %v, want ErrNotFound", err)
	}
}

func TestSummaryAndStatistics(t *testing.T) {
	svc := newTestLedger(t)
	ctx := context.Background()

	seed := []EntryInput{
		{Date: "2024-03-01", Category: "income", Subject: "salary", Amount: "3000"},
		{Date: "2024-03-02", Category: "expense", Subject: "rent", Amount: "900"},
		{Date: "2024-03-05", Category: "expense", Subject: "groceries", Amount: "42"},
		{Date: "2024-03-12", Category: "expense", Subject: "groceries", Amount: "58"},
	}
	for _, in := range seed {
		if _, err := svc.AddEntry(ctx, in); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	sum, err := svc.Summary(ctx, "2024-03")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Income.Cents != 300000 || sum.Expense.Cents != 100000 || sum.Balance.Cents != 200000 {
		t.Fatalf("summary = %+v", sum)
	}

	st, err := svc.Statistics(ctx, "2024-03")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if st.ExpenseCount != 3 || st.MaxExpense.Cents != 90000 || st.MinExpense.Cents != 4200 {
		t.Fatalf("statistics = %+v", st)
	}
	// Two groceries rows collapse into one breakdown line.
	var groceries core.SubjectAmount
	for _, sa := range st.SubjectBreakdown {
		if sa.Subject == "groceries" {
			groceries = sa
		}
	}
	if groceries.Amount.Cents != 10000 {
		t.Fatalf("groceries breakdown = %+v", groceries)
	}

	if _, err := svc.Summary(ctx, "2024-3"); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("bad month = %v, want ErrInvalidMonth", err)
	}
	if _, err := svc.Statistics(ctx, "2030-01"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("empty month = %v, want ErrNotFound", err)
	}
}
