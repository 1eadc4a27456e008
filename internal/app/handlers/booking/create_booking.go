package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/middleware"
	"rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/user"
)

const CreateBookingKey = "booking.create"

type CreateBookingCommand struct {
	BookingID       string
	Actor           user.Principal
	ListingID       string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Guests          domainbooking.Guests
	GuestInfo       domainbooking.GuestInfo
	SpecialRequests string `validate:"max=2000"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string               { return CreateBookingKey }
func (c CreateBookingCommand) LockKey() string           { return ListingLockKey(c.ListingID) }
func (c CreateBookingCommand) Principal() user.Principal { return c.Actor }
func (c CreateBookingCommand) ResultPrototype() any      { return &dto.Booking{} }

// IdempotencyKey is scoped to the caller so two guests cannot collide on a key.
func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return CreateBookingKey + ":" + string(c.Actor.ID) + ":" + c.IdempotencyKeyV
}

// ListingLockKey names the advisory lock that serializes writes to a listing calendar.
func ListingLockKey(listingID string) string {
	return "listing:" + listingID
}

// BookingLockKey serializes transitions and payment changes on one booking.
func BookingLockKey(bookingID string) string {
	return "booking:" + bookingID
}

type CreateBookingHandler struct {
	Deps
}

// Handle runs the create guards, then the availability check and insert. The caller
// holds the listing lock (Locking middleware) until the unit commits, so no other
// booking can slip into the same dates between check and write. The listing is saved
// with the booking, so a unit that raced past the lock fails its version check.
func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (dto.Booking, error) {
	now := support.Clock(h.Now)
	dr, err := daterange.Days(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return dto.Booking{}, err
	}
	id := cmd.BookingID
	if id == "" {
		id = uuid.NewString()
	}

	var out dto.Booking
	err = support.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
		if err != nil {
			return err
		}
		price, err := pricing.ComputePrice(listing.NightlyRate, dr.CheckIn, dr.CheckOut)
		if err != nil {
			return err
		}
		b, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID:              domainbooking.BookingID(id),
			Listing:         listing,
			Guest:           cmd.Actor,
			Range:           dr,
			Guests:          cmd.Guests,
			GuestInfo:       cmd.GuestInfo,
			SpecialRequests: cmd.SpecialRequests,
			Price:           price,
			Now:             now,
		})
		if err != nil {
			return err
		}
		checker := domainbooking.AvailabilityChecker{Bookings: unit.Bookings()}
		if err := checker.Ensure(ctx, listing.ID, dr); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		listing.TouchCalendar(now)
		if err := unit.Listings().Save(ctx, listing); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, support.Encoder(h.Encoder), b); err != nil {
			return err
		}
		out = dto.MapBooking(b)
		return nil
	})
	if err != nil {
		return dto.Booking{}, err
	}
	h.log("booking created", "booking_id", out.ID, "listing_id", out.ListingID, "status", out.Status, "range", dr.Key())
	return out, nil
}

var (
	_ commands.Handler[CreateBookingCommand, dto.Booking] = (*CreateBookingHandler)(nil)
	_ middleware.IdempotentCommand                        = CreateBookingCommand{}
	_ middleware.LockScoped                               = CreateBookingCommand{}
)
