package memory

import (
	"context"
	"fmt"
	"sync"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

// Store is an in-memory mirror used in tests and when no spreadsheet is
// configured.
type Store struct {
	mu    sync.Mutex
	items map[int64]core.Entry
	order []int64
}

var (
	_ ports.EntryWriter  = (*Store)(nil)
	_ ports.EntryRemover = (*Store)(nil)
	_ ports.EntryLister  = (*Store)(nil)
)

func New() *Store {
	return &Store{items: make(map[int64]core.Entry)}
}

// Upsert stores the entry and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, e core.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.items[e.ID] = e
	return fmt.Sprintf("mem:%d", e.ID), nil
}

// Remove drops the entry. Removing a missing id is a no-op.
func (s *Store) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return nil
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListMirrored returns stored entries for the month in insertion order.
func (s *Store) ListMirrored(_ context.Context, month string) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Entry
	for _, id := range s.order {
		e := s.items[id]
		if e.Date.YearMonth() == month {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len reports how many entries the mirror holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
