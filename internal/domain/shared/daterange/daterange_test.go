package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(day int) time.Time {
	return time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC)
}

func mustRange(t *testing.T, in, out int) DateRange {
	t.Helper()
	dr, err := New(d(in), d(out))
	require.NoError(t, err)
	return dr
}

func TestNew_RejectsEmptyAndInverted(t *testing.T) {
	_, err := New(d(5), d(5))
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(d(6), d(5))
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(time.Time{}, d(5))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDateRange_Overlaps(t *testing.T) {
	base := mustRange(t, 10, 15)

	cases := []struct {
		name     string
		in, out  int
		overlaps bool
	}{
		{"inside", 11, 12, true},
		{"covering", 9, 16, true},
		{"straddling start", 8, 11, true},
		{"straddling end", 14, 20, true},
		{"ends at check-in", 5, 10, false},
		{"starts at check-out", 15, 18, false},
		{"disjoint", 20, 22, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			other := mustRange(t, tc.in, tc.out)
			assert.Equal(t, tc.overlaps, base.Overlaps(other))
			assert.Equal(t, tc.overlaps, other.Overlaps(base))
		})
	}
}

func TestDateRange_Adjacent(t *testing.T) {
	assert.True(t, mustRange(t, 10, 15).Adjacent(mustRange(t, 15, 18)))
	assert.False(t, mustRange(t, 10, 15).Adjacent(mustRange(t, 16, 18)))
}

func TestNightsBetween(t *testing.T) {
	assert.Equal(t, 3, NightsBetween(d(1), d(4)))
	assert.Equal(t, 1, NightsBetween(d(1), d(1).Add(time.Hour)))
	assert.Equal(t, 0, NightsBetween(d(1), d(1)))
	assert.Equal(t, -1, NightsBetween(d(2), d(1)))
}

func TestDays_TruncatesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("plus3", 3*3600)
	dr, err := Days(time.Date(2025, 3, 1, 1, 0, 0, 0, loc), time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28/2025-03-03", dr.Key())
}
