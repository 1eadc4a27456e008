package payments

import (
	"context"
	"fmt"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/user"
)

const SyncStatusKey = "payments.sync"

type SyncStatusCommand struct {
	Actor           user.Principal
	BookingID       string `validate:"required"`
	PaymentIntentID string
}

func (c SyncStatusCommand) Key() string               { return SyncStatusKey }
func (c SyncStatusCommand) Principal() user.Principal { return c.Actor }
func (c SyncStatusCommand) LockKey() string           { return bookingapp.BookingLockKey(c.BookingID) }

// SyncStatusHandler pulls the intent from the gateway for clients that return from
// checkout before the webhook lands.
type SyncStatusHandler struct {
	Deps
}

func (h *SyncStatusHandler) Handle(ctx context.Context, cmd SyncStatusCommand) (dto.Booking, error) {
	if h.Gateway == nil {
		return dto.Booking{}, fmt.Errorf("%w: gateway not configured", domainbooking.ErrPaymentGateway)
	}
	now := support.Clock(h.Now)
	var out dto.Booking
	err := support.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		if err := domainbooking.CheckAction(domainbooking.RelationOf(b, cmd.Actor), domainbooking.ActionSyncPayment); err != nil {
			return err
		}
		if b.PaymentStatus == domainbooking.PaymentPaid {
			out = mapBooking(b)
			return nil
		}
		intentID := cmd.PaymentIntentID
		if intentID == "" {
			intentID = b.PaymentIntentID
		}
		if intentID == "" {
			return domainbooking.ErrNoPaymentIntent
		}
		gctx, cancel := h.gatewayContext(ctx)
		intent, err := h.Gateway.RetrieveIntent(gctx, intentID)
		cancel()
		if err != nil {
			return err
		}
		if intent.Status != policies.IntentSucceeded {
			return fmt.Errorf("%w: intent %s is %s", domainbooking.ErrPaymentGateway, intent.ID, intent.Status)
		}
		if intent.Metadata[policies.MetadataBookingID] != string(b.ID) {
			return fmt.Errorf("%w: intent %s belongs to another booking", domainbooking.ErrPaymentGateway, intent.ID)
		}
		if b.MarkPaid(intent.ID, now) {
			if err := h.persist(ctx, unit, b); err != nil {
				return err
			}
		}
		out = mapBooking(b)
		return nil
	})
	if err != nil {
		return dto.Booking{}, err
	}
	return out, nil
}

var _ commands.Handler[SyncStatusCommand, dto.Booking] = (*SyncStatusHandler)(nil)
