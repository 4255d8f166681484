package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kakeibo/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states for the remote mirror.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
}

// PendingSyncEntry is the minimal data carried in sync queue messages.
type PendingSyncEntry struct {
	ID      int64
	Version int64
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, dbPath: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Path returns the database file location, used by the backup routine.
func (r *SQLiteRepository) Path() string {
	return r.dbPath
}

// CreateEntry inserts a validated entry and returns its id.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.Entry) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (date, category, subject, amount_cents) VALUES (?, ?, ?, ?)`,
		e.Date.ISO(), string(e.Category), e.Subject, e.Amount.Cents)
	if err != nil {
		return 0, fmt.Errorf("create entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"id", id,
		"date", e.Date.ISO(),
		"category", e.Category,
		"subject", e.Subject,
		"amount_cents", e.Amount.Cents)

	return id, nil
}

// GetEntry retrieves a single entry by id.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, category, subject, amount_cents FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("entry %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns all live entries ordered by date then id.
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, category, subject, amount_cents FROM entries ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListEntriesByMonth returns the live entries whose date falls in the given
// YYYY-MM month, ordered by date then id.
func (r *SQLiteRepository) ListEntriesByMonth(ctx context.Context, month string) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, category, subject, amount_cents FROM entries
		 WHERE substr(date, 1, 7) = ? ORDER BY date, id`, month)
	if err != nil {
		return nil, fmt.Errorf("list entries by month: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// UpdateEntry replaces the mutable fields of an entry, bumps its sync
// version and marks it pending again.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.Entry) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE entries
		 SET date = ?, category = ?, subject = ?, amount_cents = ?,
		     sync_status = ?, version = version + 1
		 WHERE id = ?`,
		e.Date.ISO(), string(e.Category), e.Subject, e.Amount.Cents, SyncPending, e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entry %d: %w", e.ID, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Entry updated", "id", e.ID, "date", e.Date.ISO())
	return nil
}

// DeleteEntry removes an entry by id.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entry %d: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Entry deleted", "id", id)
	return nil
}

// Months returns the distinct YYYY-MM keys present in either the live or
// the archive table, newest first.
func (r *SQLiteRepository) Months(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT substr(date, 1, 7) AS month FROM entries
		 UNION
		 SELECT DISTINCT substr(date, 1, 7) AS month FROM entries_archive
		 ORDER BY month DESC`)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// MonthTotals returns the income and expense totals and the row count for a
// month directly from SQL.
func (r *SQLiteRepository) MonthTotals(ctx context.Context, month string) (core.MonthlySummary, error) {
	s := core.MonthlySummary{Month: month}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN category = 'income' THEN amount_cents ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN category = 'expense' THEN amount_cents ELSE 0 END), 0),
		   COUNT(*)
		 FROM entries WHERE substr(date, 1, 7) = ?`, month).
		Scan(&s.Income.Cents, &s.Expense.Cents, &s.Count)
	if err != nil {
		return s, fmt.Errorf("month totals: %w", err)
	}
	if s.Count == 0 {
		return s, fmt.Errorf("month %s: %w", month, core.ErrNotFound)
	}
	s.Balance.Cents = s.Income.Cents - s.Expense.Cents
	return s, nil
}

// SubjectSums returns per-(category, subject) totals for a month.
func (r *SQLiteRepository) SubjectSums(ctx context.Context, month string) ([]core.SubjectAmount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, subject, SUM(amount_cents)
		 FROM entries WHERE substr(date, 1, 7) = ?
		 GROUP BY category, subject ORDER BY category, subject`, month)
	if err != nil {
		return nil, fmt.Errorf("subject sums: %w", err)
	}
	defer rows.Close()

	var sums []core.SubjectAmount
	for rows.Next() {
		var sa core.SubjectAmount
		var cat string
		if err := rows.Scan(&cat, &sa.Subject, &sa.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan subject sum: %w", err)
		}
		sa.Category = core.Category(cat)
		sums = append(sums, sa)
	}
	return sums, rows.Err()
}

// ArchiveMonth moves every live entry of the month into the archive table.
// Returns the number of rows moved.
func (r *SQLiteRepository) ArchiveMonth(ctx context.Context, month string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries_archive (original_id, date, category, subject, amount_cents, archived_at)
		 SELECT id, date, category, subject, amount_cents, ?
		 FROM entries WHERE substr(date, 1, 7) = ?`,
		time.Now().Format("2006-01-02"), month)
	if err != nil {
		return 0, fmt.Errorf("copy to archive: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if moved == 0 {
		return 0, fmt.Errorf("month %s: %w", month, core.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE substr(date, 1, 7) = ?`, month); err != nil {
		return 0, fmt.Errorf("delete archived entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive tx: %w", err)
	}

	slog.InfoContext(ctx, "Month archived", "month", month, "entries", moved)
	return moved, nil
}

// RestoreMonth moves archived entries of the month back into the live table.
// Returns the number of rows moved.
func (r *SQLiteRepository) RestoreMonth(ctx context.Context, month string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin restore tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (date, category, subject, amount_cents)
		 SELECT date, category, subject, amount_cents
		 FROM entries_archive WHERE substr(date, 1, 7) = ?`, month)
	if err != nil {
		return 0, fmt.Errorf("copy from archive: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if moved == 0 {
		return 0, fmt.Errorf("month %s: %w", month, core.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entries_archive WHERE substr(date, 1, 7) = ?`, month); err != nil {
		return 0, fmt.Errorf("delete from archive: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit restore tx: %w", err)
	}

	slog.InfoContext(ctx, "Month restored", "month", month, "entries", moved)
	return moved, nil
}

// GetPendingSyncEntries returns entries waiting to be pushed to the remote
// mirror, oldest first.
func (r *SQLiteRepository) GetPendingSyncEntries(ctx context.Context, limit int) ([]PendingSyncEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version FROM entries WHERE sync_status = ? ORDER BY id LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncEntry
	for rows.Next() {
		var p PendingSyncEntry
		if err := rows.Scan(&p.ID, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// EntryVersion returns the current sync version of an entry.
func (r *SQLiteRepository) EntryVersion(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT version FROM entries WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get entry version: %w", err)
	}
	return version, nil
}

// MarkSynced records a successful mirror push.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncSynced); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Entry marked as synced", "id", id)
	return nil
}

// MarkSyncError records a failed mirror push.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Entry marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE entries SET sync_status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("set sync status %s: %w", status, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.Entry, error) {
	var e core.Entry
	var dateStr, cat string
	if err := row.Scan(&e.ID, &dateStr, &cat, &e.Subject, &e.Amount.Cents); err != nil {
		return core.Entry{}, err
	}
	d, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Entry{}, fmt.Errorf("stored date %q: %w", dateStr, err)
	}
	e.Date = d
	e.Category = core.Category(cat)
	return e, nil
}

func collectEntries(rows *sql.Rows) ([]core.Entry, error) {
	var entries []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
