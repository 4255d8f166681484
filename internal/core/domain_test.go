package core

import (
	"errors"
	"strings"
	"testing"
)

func validEntry() Entry {
	return Entry{
		Date:     NewDate(2024, 3, 15),
		Category: Expense,
		Subject:  "groceries",
		Amount:   Money{Cents: 1250},
	}
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Entry)
		wantErr error
	}{
		{"valid", func(e *Entry) {}, nil},
		{"zero date", func(e *Entry) { e.Date = Date{} }, ErrInvalidDate},
		{"bad category", func(e *Entry) { e.Category = "savings" }, ErrInvalidCategory},
		{"empty subject", func(e *Entry) { e.Subject = "   " }, ErrEmptySubject},
		{"zero amount", func(e *Entry) { e.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(e *Entry) { e.Amount = Money{Cents: -100} }, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEntryValidateSubjectTooLong(t *testing.T) {
	e := validEntry()
	e.Subject = strings.Repeat("x", 201)
	if err := e.Validate(); err == nil {
		t.Fatal("expected error for 201-char subject")
	}
	e.Subject = strings.Repeat("x", 200)
	if err := e.Validate(); err != nil {
		t.Fatalf("200-char subject should be valid, got %v", err)
	}
}

func TestDateAccessors(t *testing.T) {
	d := NewDate(2024, 3, 5)
	if d.ISO() != "2024-03-05" {
		t.Errorf("ISO() = %q", d.ISO())
	}
	if d.YearMonth() != "2024-03" {
		t.Errorf("YearMonth() = %q", d.YearMonth())
	}
}
