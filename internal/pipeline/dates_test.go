package pipeline

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain iso date", "2024-03-15", "2024-03-15", true},
		{"time suffix stripped", "2024-03-15T00:00:00Z", "2024-03-15", true},
		{"space time suffix stripped", "2024-03-15 13:45:00", "2024-03-15", true},
		{"surrounding whitespace", "  2024-03-15  ", "2024-03-15", true},
		{"tab and newline padding", "\t2024-03-15\n", "2024-03-15", true},
		{"non calendar day kept", "2026-02-30", "2026-02-30", true},
		{"day thirty one kept", "2024-04-31", "2024-04-31", true},
		{"month zero rejected", "2024-00-10", "", false},
		{"month thirteen rejected", "2024-13-10", "", false},
		{"day zero rejected", "2024-03-00", "", false},
		{"day thirty two rejected", "2024-03-32", "", false},
		{"us format rejected", "03/15/2024", "", false},
		{"missing day rejected", "2024-03", "", false},
		{"empty rejected", "", "", false},
		{"garbage rejected", "not a date", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDay(t *testing.T) {
	day, ok := NormalizeDay("2024-03-15T00:00:00")
	require.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 15}, day)

	_, ok = NormalizeDay("15 March 2024")
	assert.False(t, ok)
}

func TestNormalizeDayPreservesNonCalendarDates(t *testing.T) {
	// Some banks print impossible dates; they must survive normalization
	// and round-trip as written.
	day, ok := NormalizeDay("2026-02-30")
	require.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2026, Month: time.February, Day: 30}, day)
	assert.Equal(t, "2026-02-30", day.String())
}
