package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/storage"
)

// EntryInput carries the raw user-supplied fields of one entry. Date and
// amount arrive as strings so every caller (CLI, HTTP, CSV import) goes
// through the same parsing.
type EntryInput struct {
	Date     string
	Category string
	Subject  string
	Amount   string
}

// LedgerService orchestrates entry operations across SQLite and AMQP.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// ParseEntry validates and normalizes raw input into an Entry.
func ParseEntry(in EntryInput) (core.Entry, error) {
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Entry{}, err
	}
	cents, err := core.ParseAmountToCents(in.Amount)
	if err != nil {
		return core.Entry{}, err
	}
	e := core.Entry{
		Date:     date,
		Category: core.Category(strings.ToLower(strings.TrimSpace(in.Category))),
		Subject:  strings.TrimSpace(in.Subject),
		Amount:   core.Money{Cents: cents},
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	return e, nil
}

// AddEntry saves an entry locally and publishes a sync message.
func (s *LedgerService) AddEntry(ctx context.Context, in EntryInput) (core.Entry, error) {
	e, err := ParseEntry(in)
	if err != nil {
		return core.Entry{}, err
	}

	id, err := s.storage.CreateEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}
	e.ID = id

	// Publish async sync message (non-blocking, version 1 for new entry)
	if err := s.publishSyncMessage(ctx, id, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "error", err)
		// Don't fail the request - entry is saved locally
	}

	return e, nil
}

// UpdateEntry applies raw input to an existing entry and republishes it.
func (s *LedgerService) UpdateEntry(ctx context.Context, id int64, in EntryInput) (core.Entry, error) {
	e, err := ParseEntry(in)
	if err != nil {
		return core.Entry{}, err
	}
	e.ID = id

	if err := s.storage.UpdateEntry(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}

	updated, err := s.storage.GetEntry(ctx, id)
	if err != nil {
		return core.Entry{}, fmt.Errorf("reload entry: %w", err)
	}

	version, err := s.storage.EntryVersion(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read entry version", "id", id, "error", err)
		version = 1
	}
	if err := s.publishSyncMessage(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "error", err)
	}

	return updated, nil
}

// DeleteEntry removes an entry locally and publishes a delete message.
func (s *LedgerService) DeleteEntry(ctx context.Context, id int64) error {
	if err := s.storage.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	if err := s.publishDeleteMessage(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", id, "error", err)
		// Don't fail the request - entry is deleted locally
	}

	return nil
}

// GetEntry returns one entry by id.
func (s *LedgerService) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	return s.storage.GetEntry(ctx, id)
}

// ListEntries returns all live entries, or one month's when month != "".
func (s *LedgerService) ListEntries(ctx context.Context, month string) ([]core.Entry, error) {
	if month == "" {
		return s.storage.ListEntries(ctx)
	}
	if _, err := core.ParseYearMonth(month); err != nil {
		return nil, err
	}
	return s.storage.ListEntriesByMonth(ctx, month)
}

// Months returns the months with any recorded data, newest first.
func (s *LedgerService) Months(ctx context.Context) ([]string, error) {
	return s.storage.Months(ctx)
}

// Summary returns the income/expense/balance totals for a month.
func (s *LedgerService) Summary(ctx context.Context, month string) (core.MonthlySummary, error) {
	if _, err := core.ParseYearMonth(month); err != nil {
		return core.MonthlySummary{}, err
	}
	return s.storage.MonthTotals(ctx, month)
}

// Statistics returns the detailed report for a month.
func (s *LedgerService) Statistics(ctx context.Context, month string) (core.MonthlyStatistics, error) {
	if _, err := core.ParseYearMonth(month); err != nil {
		return core.MonthlyStatistics{}, err
	}
	entries, err := s.storage.ListEntriesByMonth(ctx, month)
	if err != nil {
		return core.MonthlyStatistics{}, fmt.Errorf("list month entries: %w", err)
	}
	if len(entries) == 0 {
		return core.MonthlyStatistics{}, core.ErrNotFound
	}
	return core.ComputeStatistics(month, entries), nil
}

func (s *LedgerService) publishSyncMessage(ctx context.Context, id, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.amqpClient.PublishEntrySync(ctx, id, version)
}

func (s *LedgerService) publishDeleteMessage(ctx context.Context, id int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message")
		return nil
	}
	return s.amqpClient.PublishEntryDelete(ctx, id)
}

// Close closes both storage and AMQP connections.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
