package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
)

type staticLister []*Booking

func (s staticLister) ListBlocking(_ context.Context, _ listings.ListingID, _ daterange.DateRange) ([]*Booking, error) {
	return s, nil
}

func TestAvailabilityChecker_HalfOpenRanges(t *testing.T) {
	l := testListing(t)
	existing := newTestBooking(t, l, stay(t, 10, 15))
	require.NoError(t, existing.Confirm(host, now))
	checker := AvailabilityChecker{Bookings: staticLister{existing}}
	ctx := context.Background()
	at := func(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }

	ok, err := checker.IsAvailable(ctx, l.ID, at(15), at(18))
	require.NoError(t, err)
	assert.True(t, ok, "check-in on the existing check-out day is free")

	ok, err = checker.IsAvailable(ctx, l.ID, at(5), at(10))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.IsAvailable(ctx, l.ID, at(14), at(16))
	require.NoError(t, err)
	assert.False(t, ok)

	err = checker.Ensure(ctx, l.ID, stay(t, 12, 13))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = checker.IsAvailable(ctx, l.ID, at(16), at(16))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestOverlapping_IgnoresClosedBookings(t *testing.T) {
	l := testListing(t)
	b := newTestBooking(t, l, stay(t, 10, 15))
	require.NoError(t, b.Cancel(guest, "", now))

	assert.Empty(t, Overlapping(stay(t, 11, 12), []*Booking{b, nil}))
}
