package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parsed timestamps must land in this year range; syntactically valid results
// outside it are rejected so a misread format cannot smuggle in a bogus date.
const (
	minYear = 2015
	maxYear = 2030
)

// Spreadsheet serial dates count days from this epoch; the fractional part is
// the time of day.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Day-first is the priority interpretation for slash/dash dates.
var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006",
}

// Month-first is only consulted after day-first fails, and only when the
// first component is <= 12 — an unambiguous DD/MM value must never be misread
// as MM/DD.
var monthFirstLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1-2-2006 15:04:05",
	"1-2-2006 15:04",
	"1-2-2006",
}

var isoLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var fallbackLayouts = []string{
	"02-Jan-2006 15:04:05",
	"02-Jan-2006 15:04",
	"2-Jan-2006 15:04:05",
	"2 Jan 2006 15:04:05",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"20060102150405",
}

var leadingNumberRE = regexp.MustCompile(`^(\d{1,2})[/-]`)

// ParseTimestamp resolves an ambiguously formatted timestamp string. The
// returned hasTZ reports whether the source value carried an explicit offset;
// naive values are parsed in UTC and reinterpreted into the reference civil
// timezone by the canonicalizer.
func ParseTimestamp(s string) (t time.Time, hasTZ bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}

	// Spreadsheet serial date number. Numbers outside the plausible serial
	// range fall through to the string layouts (compact formats like
	// 20240325143000 also parse as floats).
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 10000 && f < 80000 {
		days := int(f)
		frac := f - float64(days)
		t := serialEpoch.AddDate(0, 0, days).
			Add(time.Duration(frac*86400+0.5) * time.Second)
		return t, false, inRange(t)
	}

	// Explicit offset formats are respected as given.
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05 -0700", "02/01/2006 15:04:05 -0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, inRange(t)
		}
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, inRange(t)
		}
	}

	if m := leadingNumberRE.FindStringSubmatch(s); m != nil {
		if first, _ := strconv.Atoi(m[1]); first <= 12 {
			for _, layout := range monthFirstLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, false, inRange(t)
				}
			}
		}
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, inRange(t)
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, inRange(t)
		}
	}

	return time.Time{}, false, false
}

func inRange(t time.Time) bool {
	y := t.Year()
	return y >= minYear && y <= maxYear
}
