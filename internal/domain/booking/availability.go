package booking

import (
	"context"
	"fmt"
	"time"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
)

// BlockingLister is the slice of the booking store the availability checker reads.
type BlockingLister interface {
	ListBlocking(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*Booking, error)
}

// AvailabilityChecker answers whether a stay fits a listing's calendar. On its own it
// is only a read; callers that insert must hold the listing lock across check and write.
type AvailabilityChecker struct {
	Bookings BlockingLister
}

func (c AvailabilityChecker) IsAvailable(ctx context.Context, listingID listings.ListingID, checkIn, checkOut time.Time) (bool, error) {
	dr, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return false, err
	}
	conflicts, err := c.Conflicts(ctx, listingID, dr)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Ensure returns ErrConflict naming the first booking in the way.
func (c AvailabilityChecker) Ensure(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) error {
	conflicts, err := c.Conflicts(ctx, listingID, dr)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("%w: %s is held by booking %s", ErrConflict, dr.Key(), conflicts[0].ID)
	}
	return nil
}

func (c AvailabilityChecker) Conflicts(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*Booking, error) {
	if c.Bookings == nil {
		return nil, fmt.Errorf("booking: availability checker has no store")
	}
	candidates, err := c.Bookings.ListBlocking(ctx, listingID, dr)
	if err != nil {
		return nil, err
	}
	return Overlapping(dr, candidates), nil
}

// Overlapping filters existing bookings down to the ones that block dr under the
// half-open rule. Stores may over-fetch; this is the authoritative test.
func Overlapping(dr daterange.DateRange, existing []*Booking) []*Booking {
	var out []*Booking
	for _, b := range existing {
		if b == nil || !b.Status.Blocks() {
			continue
		}
		if b.Range.Overlaps(dr) {
			out = append(out, b)
		}
	}
	return out
}
