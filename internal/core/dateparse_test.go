package core

import (
	"errors"
	"testing"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in  string
		out string // ISO form, "" means error expected
	}{
		{"2024-03-15", "2024-03-15"},
		{"2024/3/5", "2024-03-05"},
		{"2024年3月5日", "2024-03-05"},
		{"令和6年3月5日", "2024-03-05"},
		{"令和1年5月1日", "2019-05-01"}, // Reiwa year 1 is 2019
		{"R6/3/5", "2024-03-05"},
		{" 2024-03-15 ", "2024-03-15"},
		{"20240305", "2024-03-05"},
		{"2024-3-5", "2024-03-05"},
		{"2024-02-31", ""}, // impossible calendar date
		{"2024/13/1", ""},
		{"令和6年13月1日", ""},
		{"yesterday", ""},
		{"", ""},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.out == "" {
			if err == nil {
				t.Errorf("ParseDate(%q) expected error, got %s", tc.in, d.ISO())
			} else if !errors.Is(err, ErrInvalidDate) {
				t.Errorf("ParseDate(%q) error = %v, want ErrInvalidDate", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDate(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got := d.ISO(); got != tc.out {
			t.Errorf("ParseDate(%q) = %s, want %s", tc.in, got, tc.out)
		}
	}
}

func TestParseYearMonth(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03", true},
		{"2024-12", true},
		{"2024-13", false},
		{"2024-00", false},
		{"2024-3", false},
		{"2024/03", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseYearMonth(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseYearMonth(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseYearMonth(%q) expected error", tc.in)
		}
	}
}
