package booking

import (
	"context"
	"sort"
	"time"

	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
)

const GetCalendarKey = "listing.calendar"

// GetCalendarQuery lists the nights held on a listing inside [From, To).
type GetCalendarQuery struct {
	ListingID string    `validate:"required"`
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required"`
}

func (q GetCalendarQuery) Key() string { return GetCalendarKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	window, err := daterange.Days(q.From, q.To)
	if err != nil {
		return dto.Calendar{}, err
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Calendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.Calendar{}, err
	}
	checker := domainbooking.AvailabilityChecker{Bookings: unit.Bookings()}
	held, err := checker.Conflicts(ctx, listing.ID, window)
	if err != nil {
		return dto.Calendar{}, err
	}
	sort.Slice(held, func(i, j int) bool { return held[i].Range.CheckIn.Before(held[j].Range.CheckIn) })

	out := dto.Calendar{ListingID: string(listing.ID), From: window.CheckIn, To: window.CheckOut, Blocks: make([]dto.CalendarBlock, 0, len(held))}
	for _, b := range held {
		out.Blocks = append(out.Blocks, dto.CalendarBlock{
			BookingID: string(b.ID),
			CheckIn:   b.Range.CheckIn,
			CheckOut:  b.Range.CheckOut,
			Status:    string(b.Status),
		})
	}
	return out, nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
