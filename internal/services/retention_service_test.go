package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kakeibo/internal/core"
)

func newTestRetention(t *testing.T) (*LedgerService, *RetentionService, string) {
	t.Helper()
	svc := newTestLedger(t)
	dir := t.TempDir()
	ret := NewRetentionService(svc.storage, NewExportService(svc.storage), dir)
	return svc, ret, dir
}

func seedMonths(t *testing.T, svc *LedgerService, months ...string) {
	t.Helper()
	for _, m := range months {
		_, err := svc.AddEntry(context.Background(), EntryInput{
			Date: m + "-15", Category: "expense", Subject: "rent", Amount: "900",
		})
		if err != nil {
			t.Fatalf("seed %s: %v", m, err)
		}
	}
}

func TestArchiveMonthWritesSafetyCopy(t *testing.T) {
	svc, ret, dir := newTestRetention(t)
	seedMonths(t, svc, "2024-03")
	ctx := context.Background()

	moved, err := ret.ArchiveMonth(ctx, "2024-03")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if moved != 1 {
		t.Fatalf("moved = %d, want 1", moved)
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(dirents) != 1 || !strings.HasPrefix(dirents[0].Name(), "kakeibo_2024-03_") {
		t.Fatalf("safety copy missing: %v", dirents)
	}
	data, err := os.ReadFile(filepath.Join(dir, dirents[0].Name()))
	if err != nil {
		t.Fatalf("read safety copy: %v", err)
	}
	if !strings.Contains(string(data), "rent") {
		t.Fatal("safety copy missing entry data")
	}

	// The month is gone from the live table.
	if _, err := svc.Summary(ctx, "2024-03"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("summary after archive = %v, want ErrNotFound", err)
	}

	// Archiving again finds nothing and writes no extra file.
	if _, err := ret.ArchiveMonth(ctx, "2024-03"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second archive = %v, want ErrNotFound", err)
	}
	dirents, _ = os.ReadDir(dir)
	if len(dirents) != 1 {
		t.Fatalf("extra safety copies: %v", dirents)
	}
}

func TestRestoreMonth(t *testing.T) {
	svc, ret, _ := newTestRetention(t)
	seedMonths(t, svc, "2024-03")
	ctx := context.Background()

	if _, err := ret.ArchiveMonth(ctx, "2024-03"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	restored, err := ret.RestoreMonth(ctx, "2024-03")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != 1 {
		t.Fatalf("restored = %d, want 1", restored)
	}
	sum, err := svc.Summary(ctx, "2024-03")
	if err != nil {
		t.Fatalf("summary after restore: %v", err)
	}
	if sum.Expense.Cents != 90000 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestCleanupKeepsNewestMonths(t *testing.T) {
	svc, ret, _ := newTestRetention(t)
	seedMonths(t, svc, "2023-11", "2023-12", "2024-01", "2024-02", "2024-03")
	ctx := context.Background()

	archived, err := ret.Cleanup(ctx, 3)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(archived) != 2 || archived[0] != "2023-11" || archived[1] != "2023-12" {
		t.Fatalf("archived = %v", archived)
	}

	// The newest three months stay live.
	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		if _, err := svc.Summary(ctx, m); err != nil {
			t.Fatalf("summary %s after cleanup: %v", m, err)
		}
	}
	for _, m := range []string{"2023-11", "2023-12"} {
		if _, err := svc.Summary(ctx, m); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("summary %s = %v, want ErrNotFound", m, err)
		}
	}

	// Running again with nothing to do is a no-op.
	archived, err = ret.Cleanup(ctx, 3)
	if err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if archived != nil {
		t.Fatalf("second cleanup archived %v", archived)
	}

	if _, err := ret.Cleanup(ctx, 0); err == nil {
		t.Fatal("cleanup with keep=0 should fail")
	}
}
