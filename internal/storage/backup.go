package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackupInfo describes one backup artifact on disk.
type BackupInfo struct {
	Name    string
	Path    string
	Size    int64
	Created time.Time
}

// BackupFile copies the database file byte-for-byte into dir and returns
// the artifact path. The copy is taken inside a read transaction so a
// concurrent writer can't tear the file mid-copy.
func (r *SQLiteRepository) BackupFile(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin backup tx: %w", err)
	}
	defer tx.Rollback()
	// Force the read snapshot before touching the file.
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return "", fmt.Errorf("pin backup snapshot: %w", err)
	}

	name := fmt.Sprintf("kakeibo_backup_%s_%s.db",
		time.Now().Format("20060102_150405"), uuid.New().String())
	dst := filepath.Join(dir, name)

	if err := copyFile(r.dbPath, dst); err != nil {
		return "", fmt.Errorf("copy database file: %w", err)
	}

	slog.InfoContext(ctx, "Backup created", "path", dst, "entries", n)
	return dst, nil
}

// ListBackups returns the backup artifacts present in dir, newest first.
func ListBackups(dir string) ([]BackupInfo, error) {
	dirents, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, de := range dirents {
		if de.IsDir() || !strings.HasPrefix(de.Name(), "kakeibo_backup_") || !strings.HasSuffix(de.Name(), ".db") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat backup %s: %w", de.Name(), err)
		}
		backups = append(backups, BackupInfo{
			Name:    de.Name(),
			Path:    filepath.Join(dir, de.Name()),
			Size:    info.Size(),
			Created: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Created.After(backups[j].Created) })
	return backups, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
