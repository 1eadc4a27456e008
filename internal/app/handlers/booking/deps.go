package booking

import (
	"context"
	"log/slog"
	"time"

	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
)

// Deps are shared by every booking handler.
type Deps struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

type mutation func(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, now time.Time) error

// mutate loads a booking, applies fn and persists the result with its events. fn
// must run every guard before changing the aggregate.
func (d Deps) mutate(ctx context.Context, id string, fn mutation) (dto.Booking, error) {
	now := support.Clock(d.Now)
	var out dto.Booking
	err := support.WithinUnit(ctx, d.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(id))
		if err != nil {
			return err
		}
		if err := fn(ctx, unit, b, now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, d.Outbox, support.Encoder(d.Encoder), b); err != nil {
			return err
		}
		out = dto.MapBooking(b)
		return nil
	})
	return out, err
}

func (d Deps) log(msg string, args ...any) {
	if d.Logger != nil {
		d.Logger.Info(msg, args...)
	}
}
