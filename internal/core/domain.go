package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Category = "income"
	Expense Category = "expense"
)

type (
	// Category is the entry kind: money coming in or going out.
	Category string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Entry is one recorded income or expense transaction.
	Entry struct {
		ID       int64
		Date     Date
		Category Category
		Subject  string
		Amount   Money
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptySubject    = errors.New("empty subject")
	ErrNotFound        = errors.New("not found")
)

func (c Category) Validate() error {
	switch c {
	case Income, Expense:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCategory, string(c))
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ISO returns the canonical YYYY-MM-DD form.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// YearMonth returns the YYYY-MM key used for monthly grouping.
func (d Date) YearMonth() string {
	return d.Format("2006-01")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Category.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Subject)) == 0 {
		return ErrEmptySubject
	}
	if len(e.Subject) > 200 {
		return errors.New("subject too long (max 200 characters)")
	}
	return e.Amount.Validate()
}
