package sheets

import (
	"context"

	"kakeibo/internal/core"
)

// Ports for the remote mirror adapters.
type (
	// EntryWriter upserts one ledger entry keyed by its id and returns a
	// reference to the written row.
	EntryWriter interface {
		Upsert(ctx context.Context, e core.Entry) (rowRef string, err error)
	}

	// EntryRemover removes an entry from the mirror by id.
	EntryRemover interface {
		Remove(ctx context.Context, id int64) error
	}

	// EntryLister returns the mirrored entries for a month (YYYY-MM).
	EntryLister interface {
		ListMirrored(ctx context.Context, month string) ([]core.Entry, error)
	}
)
