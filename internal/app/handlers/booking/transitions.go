package booking

import (
	"context"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/middleware"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/user"
)

const (
	ConfirmBookingKey  = "booking.confirm"
	CancelBookingKey   = "booking.cancel"
	CompleteBookingKey = "booking.complete"
)

type ConfirmBookingCommand struct {
	Actor     user.Principal
	BookingID string `validate:"required"`
}

func (c ConfirmBookingCommand) Key() string               { return ConfirmBookingKey }
func (c ConfirmBookingCommand) Principal() user.Principal { return c.Actor }
func (c ConfirmBookingCommand) LockKey() string           { return BookingLockKey(c.BookingID) }

type ConfirmBookingHandler struct {
	Deps
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (dto.Booking, error) {
	out, err := h.mutate(ctx, cmd.BookingID, func(_ context.Context, _ uow.UnitOfWork, b *domainbooking.Booking, now time.Time) error {
		return b.Confirm(cmd.Actor, now)
	})
	if err != nil {
		return dto.Booking{}, err
	}
	h.log("booking confirmed", "booking_id", out.ID, "actor", cmd.Actor.ID)
	return out, nil
}

type CancelBookingCommand struct {
	Actor     user.Principal
	BookingID string `validate:"required"`
	Reason    string `validate:"max=1000"`
}

func (c CancelBookingCommand) Key() string               { return CancelBookingKey }
func (c CancelBookingCommand) Principal() user.Principal { return c.Actor }
func (c CancelBookingCommand) LockKey() string           { return BookingLockKey(c.BookingID) }

type CancelBookingHandler struct {
	Deps
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (dto.Booking, error) {
	out, err := h.mutate(ctx, cmd.BookingID, func(_ context.Context, _ uow.UnitOfWork, b *domainbooking.Booking, now time.Time) error {
		return b.Cancel(cmd.Actor, cmd.Reason, now)
	})
	if err != nil {
		return dto.Booking{}, err
	}
	h.log("booking cancelled", "booking_id", out.ID, "actor", cmd.Actor.ID)
	return out, nil
}

type CompleteBookingCommand struct {
	Actor     user.Principal
	BookingID string `validate:"required"`
}

func (c CompleteBookingCommand) Key() string               { return CompleteBookingKey }
func (c CompleteBookingCommand) Principal() user.Principal { return c.Actor }
func (c CompleteBookingCommand) LockKey() string           { return BookingLockKey(c.BookingID) }

type CompleteBookingHandler struct {
	Deps
}

func (h *CompleteBookingHandler) Handle(ctx context.Context, cmd CompleteBookingCommand) (dto.Booking, error) {
	out, err := h.mutate(ctx, cmd.BookingID, func(_ context.Context, _ uow.UnitOfWork, b *domainbooking.Booking, now time.Time) error {
		return b.Complete(cmd.Actor, now)
	})
	if err != nil {
		return dto.Booking{}, err
	}
	h.log("booking completed", "booking_id", out.ID)
	return out, nil
}

var (
	_ commands.Handler[ConfirmBookingCommand, dto.Booking]  = (*ConfirmBookingHandler)(nil)
	_ commands.Handler[CancelBookingCommand, dto.Booking]   = (*CancelBookingHandler)(nil)
	_ commands.Handler[CompleteBookingCommand, dto.Booking] = (*CompleteBookingHandler)(nil)
	_ middleware.LockScoped                                 = CancelBookingCommand{}
)
