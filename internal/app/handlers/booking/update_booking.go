package booking

import (
	"context"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/user"
)

const UpdateBookingKey = "booking.update"

// UpdateBookingCommand patches booking fields. Nil pointers are left untouched.
type UpdateBookingCommand struct {
	Actor           user.Principal
	BookingID       string `validate:"required"`
	Status          *string
	Guests          *domainbooking.Guests
	GuestInfo       *domainbooking.GuestInfo
	SpecialRequests *string `validate:"omitempty,max=2000"`
	Reason          string  `validate:"max=1000"`
}

func (c UpdateBookingCommand) Key() string               { return UpdateBookingKey }
func (c UpdateBookingCommand) Principal() user.Principal { return c.Actor }
func (c UpdateBookingCommand) LockKey() string           { return BookingLockKey(c.BookingID) }

type UpdateBookingHandler struct {
	Deps
}

func (h *UpdateBookingHandler) Handle(ctx context.Context, cmd UpdateBookingCommand) (dto.Booking, error) {
	patch := domainbooking.Patch{
		Guests:             cmd.Guests,
		GuestInfo:          cmd.GuestInfo,
		SpecialRequests:    cmd.SpecialRequests,
		CancellationReason: cmd.Reason,
	}
	if cmd.Status != nil {
		status, err := domainbooking.ParseStatus(*cmd.Status)
		if err != nil {
			return dto.Booking{}, err
		}
		patch.Status = &status
	}
	out, err := h.mutate(ctx, cmd.BookingID, func(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, now time.Time) error {
		maxGuests := 0
		if patch.Guests != nil {
			listing, err := unit.Listings().ByID(ctx, b.ListingID)
			if err != nil {
				return err
			}
			maxGuests = listing.MaxGuests
		}
		return b.ApplyPatch(cmd.Actor, patch, maxGuests, now)
	})
	if err != nil {
		return dto.Booking{}, err
	}
	h.log("booking updated", "booking_id", out.ID, "actor", cmd.Actor.ID, "status", out.Status)
	return out, nil
}

var _ commands.Handler[UpdateBookingCommand, dto.Booking] = (*UpdateBookingHandler)(nil)
