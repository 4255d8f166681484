package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"
)

// RetentionService moves old months between the live table and the archive
// and enforces the keep-N retention policy. Every archive writes a CSV
// safety copy first.
type RetentionService struct {
	storage   *storage.SQLiteRepository
	export    *ExportService
	backupDir string
}

func NewRetentionService(storage *storage.SQLiteRepository, export *ExportService, backupDir string) *RetentionService {
	return &RetentionService{
		storage:   storage,
		export:    export,
		backupDir: backupDir,
	}
}

// ArchiveMonth exports the month to CSV and then moves its entries to the
// archive table. Returns the number of entries moved.
func (s *RetentionService) ArchiveMonth(ctx context.Context, month string) (int64, error) {
	if _, err := core.ParseYearMonth(month); err != nil {
		return 0, err
	}

	// Empty months have nothing to export or move.
	if _, err := s.storage.MonthTotals(ctx, month); err != nil {
		return 0, err
	}

	path, err := s.export.ExportMonthToFile(ctx, s.backupDir, month)
	if err != nil {
		return 0, fmt.Errorf("pre-archive export: %w", err)
	}

	moved, err := s.storage.ArchiveMonth(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("archive month: %w", err)
	}

	slog.InfoContext(ctx, "Month archived",
		"month", month,
		"entries", moved,
		"csv_copy", path)
	return moved, nil
}

// RestoreMonth moves an archived month back into the live table.
func (s *RetentionService) RestoreMonth(ctx context.Context, month string) (int64, error) {
	if _, err := core.ParseYearMonth(month); err != nil {
		return 0, err
	}
	restored, err := s.storage.RestoreMonth(ctx, month)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Month restored", "month", month, "entries", restored)
	return restored, nil
}

// Cleanup archives every live month older than the newest keep months.
// Returns the months that were archived, oldest first.
func (s *RetentionService) Cleanup(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("months to keep must be positive, got %d", keep)
	}

	live, err := s.liveMonths(ctx)
	if err != nil {
		return nil, err
	}
	if len(live) <= keep {
		return nil, nil
	}

	// liveMonths is newest first; everything past keep goes.
	var archived []string
	for i := len(live) - 1; i >= keep; i-- {
		month := live[i]
		if _, err := s.ArchiveMonth(ctx, month); err != nil {
			return archived, fmt.Errorf("cleanup %s: %w", month, err)
		}
		archived = append(archived, month)
	}
	return archived, nil
}

// liveMonths returns months that still have entries in the live table,
// newest first.
func (s *RetentionService) liveMonths(ctx context.Context) ([]string, error) {
	months, err := s.storage.Months(ctx)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	var live []string
	for _, m := range months {
		_, err := s.storage.MonthTotals(ctx, m)
		if errors.Is(err, core.ErrNotFound) {
			continue // archived only
		}
		if err != nil {
			return nil, fmt.Errorf("totals for %s: %w", m, err)
		}
		live = append(live, m)
	}
	return live, nil
}
