package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
	"kakeibo/internal/storage"
)

// SyncWorker pushes ledger entries from SQLite to the remote mirror.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.EntryWriter
	remover   sheets.EntryRemover
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, writer sheets.EntryWriter, remover sheets.EntryRemover, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		writer:    writer,
		remover:   remover,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes one message from the sync queue.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version,
		"op", msg.Op)

	switch msg.Op {
	case amqp.OpDelete:
		return w.removeFromMirror(ctx, msg.ID)
	case amqp.OpUpsert, "":
		// Empty op tolerated for messages from older publishers.
	default:
		return fmt.Errorf("unknown sync op %q", msg.Op)
	}

	entry, err := w.storage.GetEntry(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted between publish and consume. Nothing to mirror.
		slog.WarnContext(ctx, "Entry vanished before sync", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	return w.pushToMirror(ctx, entry)
}

// ProcessPending pushes entries still marked pending. This is the backup
// path for lost queue messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, p := range pending {
		entry, err := w.storage.GetEntry(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get pending entry", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			continue
		}
		if err := w.pushToMirror(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending entry", "id", p.ID, "error", err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck drains a larger pending batch once at worker startup to
// recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncEntries(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending entries for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending entries on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, p := range pending {
		entry, err := w.storage.GetEntry(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get entry for startup sync",
				"id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			failed++
			continue
		}
		if err := w.pushToMirror(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry during startup",
				"id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) pushToMirror(ctx context.Context, entry core.Entry) error {
	ref, err := w.writer.Upsert(ctx, entry)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, entry.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", entry.ID, "error", markErr)
		}
		return fmt.Errorf("upsert to mirror: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, entry.ID); err != nil {
		// The push itself worked; don't fail the message.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", entry.ID, "error", err)
	}

	slog.InfoContext(ctx, "Entry mirrored",
		"id", entry.ID,
		"row_ref", ref,
		"subject", entry.Subject,
		"amount_cents", entry.Amount.Cents)
	return nil
}

func (w *SyncWorker) removeFromMirror(ctx context.Context, id int64) error {
	if w.remover == nil {
		slog.WarnContext(ctx, "No mirror remover configured, skipping deletion", "id", id)
		return nil
	}
	if err := w.remover.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove from mirror: %w", err)
	}
	slog.InfoContext(ctx, "Entry removed from mirror", "id", id)
	return nil
}
