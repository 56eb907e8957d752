package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date format used across all stage artifacts.
const DateLayout = "01/02/2006"

var longFormLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"2 January 2006",
	"02 Jan 2006",
}

var numericDateRe = regexp.MustCompile(`^(\d{1,4})[/\-.](\d{1,2})[/\-.](\d{1,4})$`)

// ParseFlexibleDate parses a date in MM/DD/YYYY, DD/MM/YYYY, ISO, or long
// form. Two-digit years below 50 map to 20xx, the rest to 19xx. Ambiguous
// numeric dates are read month-first; the components are swapped only when
// the first exceeds 12 and the second does not.
func ParseFlexibleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		c, _ := strconv.Atoi(m[3])

		// ISO: YYYY-MM-DD.
		if a > 31 {
			return makeDate(c, b, a)
		}

		month, day, year := a, b, c
		if month > 12 && day <= 12 {
			month, day = day, month
		}
		return makeDate(day, month, year)
	}

	for _, layout := range longFormLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func makeDate(day, month, year int) (time.Time, bool) {
	if year < 100 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 || year > 2100 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject rollovers like 02/31.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeDate reformats any parseable date to MM/DD/YYYY. Unparseable
// input normalizes to the empty string.
func NormalizeDate(s string) string {
	t, ok := ParseFlexibleDate(s)
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}

// FormatDate renders a time in the canonical layout.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
