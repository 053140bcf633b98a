package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var datePrefix = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)

// NormalizeDate validates and canonicalizes a date string to YYYY-MM-DD,
// stripping surrounding whitespace and any time-of-day suffix. It returns
// ok=false for empty input,
// anything not starting with a YYYY-MM-DD pattern, or month/day components
// outside 1-12 / 1-31. It is deliberately not calendar-aware beyond the
// range check: "2026-02-30" passes. Every date in the pipeline goes through
// here before being trusted.
func NormalizeDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	m := datePrefix.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}

	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	day, err := strconv.Atoi(m[3])
	if err != nil || day < 1 || day > 31 {
		return "", false
	}

	return m[0], true
}

// NormalizeDay is NormalizeDate returning the day as a civil.Date value.
// The components are taken as-is, so the normalizer's calendar looseness is
// preserved in the value.
func NormalizeDay(raw string) (civil.Date, bool) {
	canonical, ok := NormalizeDate(raw)
	if !ok {
		return civil.Date{}, false
	}
	m := datePrefix.FindStringSubmatch(canonical)
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return civil.Date{Year: year, Month: time.Month(month), Day: day}, true
}
