package payments

import (
	"context"
	"log/slog"
	"time"

	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/outbox"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
)

// Deps are shared by the payment reconciliation handlers.
type Deps struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Gateway    policies.PaymentGateway
	Logger     *slog.Logger
	Now        func() time.Time
	// Timeout bounds every gateway call. Zero leaves the caller's deadline alone.
	Timeout time.Duration
}

func (d Deps) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.Timeout)
}

// persist saves b and its pending events in unit.
func (d Deps) persist(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking) error {
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return err
	}
	return outbox.RecordDomainEvents(ctx, d.Outbox, support.Encoder(d.Encoder), b)
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func mapBooking(b *domainbooking.Booking) dto.Booking {
	return dto.MapBooking(b)
}
