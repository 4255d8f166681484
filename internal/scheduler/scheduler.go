package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Daily fires a callback once per day at a fixed local wall-clock time.
type Daily struct {
	hour   int
	minute int
	fire   func(ctx context.Context) error
}

// NewDaily parses fireTime as HH:MM local time.
func NewDaily(fireTime string, fire func(ctx context.Context) error) (*Daily, error) {
	hour, minute, err := parseFireTime(fireTime)
	if err != nil {
		return nil, err
	}
	return &Daily{hour: hour, minute: minute, fire: fire}, nil
}

// Run blocks until ctx is cancelled, firing at each scheduled time. A
// failed fire is logged and the schedule continues.
func (d *Daily) Run(ctx context.Context) error {
	for {
		next := d.NextFireTime(time.Now())
		slog.InfoContext(ctx, "Next reminder scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := d.fire(ctx); err != nil {
			slog.ErrorContext(ctx, "Reminder fire failed", "error", err)
		}
	}
}

// NextFireTime returns the first scheduled instant strictly after now.
func (d *Daily) NextFireTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), d.hour, d.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func parseFireTime(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid fire time %q (want HH:MM)", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid fire hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid fire minute in %q", s)
	}
	return hour, minute, nil
}
