package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return d, nil
}

// parseDay parses a stored YYYY-MM-DD value by components rather than via
// civil.ParseDate: the date normalizer deliberately admits calendar-invalid
// days (e.g. day 30 in February), and those must round-trip through storage
// unchanged.
func parseDay(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, nil
	}
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return civil.Date{}, fmt.Errorf("invalid stored date %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return civil.Date{Year: year, Month: time.Month(month), Day: day}, nil
}

func dayString(d civil.Date) string {
	if d.Year == 0 {
		return ""
	}
	return d.String()
}
