package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/sheets/memory"
	"kakeibo/internal/storage"
)

type failingWriter struct{}

func (failingWriter) Upsert(context.Context, core.Entry) (string, error) {
	return "", errors.New("mirror unavailable")
}

func newTestWorker(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kakeibo.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	mirror := memory.New()
	return NewSyncWorker(repo, mirror, mirror, 10), repo, mirror
}

func seedEntry(t *testing.T, repo *storage.SQLiteRepository) int64 {
	t.Helper()
	id, err := repo.CreateEntry(context.Background(), core.Entry{
		Date:     core.NewDate(2024, 3, 5),
		Category: core.Expense,
		Subject:  "groceries",
		Amount:   core.Money{Cents: 4250},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func TestHandleSyncMessageUpsert(t *testing.T) {
	w, repo, mirror := newTestWorker(t)
	ctx := context.Background()
	id := seedEntry(t, repo)

	if err := w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage(id, 1)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if mirror.Len() != 1 {
		t.Fatalf("mirror len = %d, want 1", mirror.Len())
	}

	pending, err := repo.GetPendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("still pending after sync: %+v", pending)
	}
}

func TestHandleSyncMessageVanishedEntry(t *testing.T) {
	w, _, mirror := newTestWorker(t)

	// An id that never existed should be skipped, not retried forever.
	if err := w.HandleSyncMessage(context.Background(), amqp.NewEntrySyncMessage(999, 1)); err != nil {
		t.Fatalf("handle vanished entry: %v", err)
	}
	if mirror.Len() != 0 {
		t.Fatalf("mirror len = %d, want 0", mirror.Len())
	}
}

func TestHandleSyncMessageDelete(t *testing.T) {
	w, repo, mirror := newTestWorker(t)
	ctx := context.Background()
	id := seedEntry(t, repo)

	if err := w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage(id, 1)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := w.HandleSyncMessage(ctx, amqp.NewEntryDeleteMessage(id)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mirror.Len() != 0 {
		t.Fatalf("mirror len = %d, want 0", mirror.Len())
	}
}

func TestHandleSyncMessageUnknownOp(t *testing.T) {
	w, repo, _ := newTestWorker(t)
	id := seedEntry(t, repo)

	msg := &amqp.EntrySyncMessage{ID: id, Op: "compact"}
	if err := w.HandleSyncMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown op")
	}
}

func TestProcessPendingMarksErrors(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kakeibo.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	id := seedEntry(t, repo)

	w := NewSyncWorker(repo, failingWriter{}, nil, 10)
	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	// Failed pushes drop out of the pending queue as errors.
	pending, err := repo.GetPendingSyncEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	for _, p := range pending {
		if p.ID == id {
			t.Fatal("failed entry still pending")
		}
	}
}

func TestStartupSyncCheckDrainsBacklog(t *testing.T) {
	w, repo, mirror := newTestWorker(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedEntry(t, repo)
	}

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	if mirror.Len() != 3 {
		t.Fatalf("mirror len = %d, want 3", mirror.Len())
	}
	pending, err := repo.GetPendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after startup check = %d, want 0", len(pending))
	}
}
