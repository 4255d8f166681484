package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Entry dates arrive in whatever form the user typed. The accepted forms
// are the ones household-ledger users actually write: ISO, slash dates,
// kanji dates, and Reiwa era dates (令和元年 = 2019).
var (
	isoRe       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reiwaKanji  = regexp.MustCompile(`^令和(\d{1,2})年(\d{1,2})月(\d{1,2})日$`)
	reiwaShort  = regexp.MustCompile(`^R(\d{1,2})/(\d{1,2})/(\d{1,2})$`)
	kanjiDate   = regexp.MustCompile(`^(\d{4})年(\d{1,2})月(\d{1,2})日$`)
	slashDate   = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	yearMonthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

const reiwaOffset = 2018 // Reiwa year 1 is 2019

// ParseDate normalizes a user-entered date string to a Date.
//
// Accepted forms: YYYY-MM-DD, yyyy/mm/dd, yyyy年mm月dd日, 令和yy年mm月dd日
// and Ryy/mm/dd. A few common fallback layouts are tried last. Impossible
// calendar dates (2024-02-31) are rejected.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}

	if isoRe.MatchString(s) {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return Date{Time: t}, nil
	}

	if m := reiwaKanji.FindStringSubmatch(s); m != nil {
		return dateFromParts(atoi(m[1])+reiwaOffset, atoi(m[2]), atoi(m[3]), s)
	}
	if m := reiwaShort.FindStringSubmatch(s); m != nil {
		return dateFromParts(atoi(m[1])+reiwaOffset, atoi(m[2]), atoi(m[3]), s)
	}
	if m := kanjiDate.FindStringSubmatch(s); m != nil {
		return dateFromParts(atoi(m[1]), atoi(m[2]), atoi(m[3]), s)
	}
	if m := slashDate.FindStringSubmatch(s); m != nil {
		return dateFromParts(atoi(m[1]), atoi(m[2]), atoi(m[3]), s)
	}

	// Last-resort layouts for lenient input.
	for _, layout := range []string{"2006-1-2", "2006.01.02", "20060102", "Jan 2, 2006", "2 Jan 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}

	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseYearMonth validates a YYYY-MM month key and returns it unchanged.
func ParseYearMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !yearMonthRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q (want YYYY-MM)", ErrInvalidMonth, s)
	}
	month := atoi(s[5:])
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return s, nil
}

func dateFromParts(year, month, day int, raw string) (Date, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	d := NewDate(year, month, day)
	// time.Date normalizes overflow (Feb 30 -> Mar 1); reject that.
	if d.Year() != year || int(d.Time.Month()) != month || d.Day() != day {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return d, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
