package booking

import (
	"context"
	"errors"
	"time"

	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/user"
)

const (
	GetBookingKey        = "booking.get"
	ListGuestBookingsKey = "booking.list_guest"
	ListHostBookingsKey  = "booking.list_host"
	CheckAvailabilityKey = "listing.availability"
	QuotePriceKey        = "listing.quote"
)

type GetBookingQuery struct {
	Actor     user.Principal
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string               { return GetBookingKey }
func (q GetBookingQuery) Principal() user.Principal { return q.Actor }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.Booking{}, err
	}
	if err := domainbooking.CheckAction(domainbooking.RelationOf(b, q.Actor), domainbooking.ActionView); err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

type ListGuestBookingsQuery struct {
	Actor user.Principal
}

func (q ListGuestBookingsQuery) Key() string               { return ListGuestBookingsKey }
func (q ListGuestBookingsQuery) Principal() user.Principal { return q.Actor }

type ListHostBookingsQuery struct {
	Actor user.Principal
}

func (q ListHostBookingsQuery) Key() string               { return ListHostBookingsKey }
func (q ListHostBookingsQuery) Principal() user.Principal { return q.Actor }

// ListBookingsHandler serves both the guest and the host views. Legacy bookings whose
// listing no longer exists are skipped rather than repaired.
type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBookingsHandler) HandleGuest(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	return h.list(ctx, func(ctx context.Context, repo domainbooking.Repository) ([]*domainbooking.Booking, error) {
		return repo.ListByGuest(ctx, q.Actor.ID)
	})
}

func (h *ListBookingsHandler) HandleHost(ctx context.Context, q ListHostBookingsQuery) (dto.BookingCollection, error) {
	return h.list(ctx, func(ctx context.Context, repo domainbooking.Repository) ([]*domainbooking.Booking, error) {
		return repo.ListByHost(ctx, domainlistings.HostID(q.Actor.ID))
	})
}

func (h *ListBookingsHandler) list(ctx context.Context, fetch func(context.Context, domainbooking.Repository) ([]*domainbooking.Booking, error)) (dto.BookingCollection, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := fetch(ctx, unit.Bookings())
	if err != nil {
		return dto.BookingCollection{}, err
	}
	exists := make(map[domainlistings.ListingID]bool)
	out := dto.BookingCollection{Items: make([]dto.Booking, 0, len(items))}
	for _, b := range items {
		ok, seen := exists[b.ListingID]
		if !seen {
			_, err := unit.Listings().ByID(ctx, b.ListingID)
			switch {
			case err == nil:
				ok = true
			case errors.Is(err, domainlistings.ErrNotFound):
				ok = false
			default:
				return dto.BookingCollection{}, err
			}
			exists[b.ListingID] = ok
		}
		if ok {
			out.Items = append(out.Items, dto.MapBooking(b))
		}
	}
	return out, nil
}

type CheckAvailabilityQuery struct {
	ListingID string    `validate:"required"`
	CheckIn   time.Time `validate:"required"`
	CheckOut  time.Time `validate:"required"`
}

func (q CheckAvailabilityQuery) Key() string { return CheckAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	dr, err := daterange.Days(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, err
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.Availability{}, err
	}
	checker := domainbooking.AvailabilityChecker{Bookings: unit.Bookings()}
	available, err := checker.IsAvailable(ctx, listing.ID, dr.CheckIn, dr.CheckOut)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.Availability{
		ListingID: string(listing.ID),
		CheckIn:   dr.CheckIn,
		CheckOut:  dr.CheckOut,
		Available: available && listing.Active,
	}, nil
}

type QuotePriceQuery struct {
	ListingID string    `validate:"required"`
	CheckIn   time.Time `validate:"required"`
	CheckOut  time.Time `validate:"required"`
}

func (q QuotePriceQuery) Key() string { return QuotePriceKey }

type QuotePriceHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *QuotePriceHandler) Handle(ctx context.Context, q QuotePriceQuery) (dto.Quote, error) {
	dr, err := daterange.Days(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Quote{}, err
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Quote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.Quote{}, err
	}
	price, err := pricing.ComputePrice(listing.NightlyRate, dr.CheckIn, dr.CheckOut)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.Quote{ListingID: string(listing.ID), CheckIn: dr.CheckIn, CheckOut: dr.CheckOut, Price: dto.MapPrice(price)}, nil
}

var (
	_ queries.Handler[GetBookingQuery, dto.Booking]             = (*GetBookingHandler)(nil)
	_ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
	_ queries.Handler[QuotePriceQuery, dto.Quote]               = (*QuotePriceHandler)(nil)
)
