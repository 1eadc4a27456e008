package payments

import (
	"context"
	"fmt"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/middleware"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/shared/money"
	"rentals/internal/domain/user"
)

const RefundKey = "payments.refund"

type RefundCommand struct {
	Actor     user.Principal
	BookingID string `validate:"required"`
	// Amount is in major units of the booking currency; nil refunds the total.
	Amount          *int64
	Reason          string `validate:"max=1000"`
	IdempotencyKeyV string
}

func (c RefundCommand) Key() string               { return RefundKey }
func (c RefundCommand) Principal() user.Principal { return c.Actor }
func (c RefundCommand) LockKey() string           { return bookingapp.BookingLockKey(c.BookingID) }
func (c RefundCommand) ResultPrototype() any      { return &dto.Refund{} }

func (c RefundCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return RefundKey + ":" + string(c.Actor.ID) + ":" + c.IdempotencyKeyV
}

// gatewayRefundKey is stable for a captured payment, so a retried call cannot move
// money twice even if the local commit was lost.
func gatewayRefundKey(b *domainbooking.Booking) string {
	return "refund:" + string(b.ID) + ":" + b.PaymentIntentID
}

type RefundHandler struct {
	Deps
}

// Handle asks the gateway first and records the refund only after it succeeded. A
// gateway failure leaves the booking exactly as it was. The booking lock is held
// from the status check to the commit.
func (h *RefundHandler) Handle(ctx context.Context, cmd RefundCommand) (dto.Refund, error) {
	if h.Gateway == nil {
		return dto.Refund{}, fmt.Errorf("%w: gateway not configured", domainbooking.ErrPaymentGateway)
	}
	now := support.Clock(h.Now)
	var out dto.Refund
	err := support.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		var requested *money.Money
		if cmd.Amount != nil {
			requested = &money.Money{Amount: *cmd.Amount, Currency: b.Price.ChargeAmount().Currency}
		}
		amount, err := b.PrepareRefund(cmd.Actor, requested)
		if err != nil {
			return err
		}
		gctx, cancel := h.gatewayContext(ctx)
		refund, err := h.Gateway.Refund(gctx, b.PaymentIntentID, amount.MinorUnits(), gatewayRefundKey(b))
		cancel()
		if err != nil {
			return err
		}
		b.RecordRefund(cmd.Actor, amount, cmd.Reason, refund.ID, now)
		if err := h.persist(ctx, unit, b); err != nil {
			return err
		}
		out = dto.Refund{
			BookingID:     string(b.ID),
			RefundID:      refund.ID,
			Amount:        dto.MapMoney(amount),
			PaymentStatus: string(b.PaymentStatus),
		}
		return nil
	})
	if err != nil {
		return dto.Refund{}, err
	}
	h.logger().Info("booking refunded", "booking_id", out.BookingID, "refund_id", out.RefundID, "amount", out.Amount.Amount)
	return out, nil
}

var (
	_ commands.Handler[RefundCommand, dto.Refund] = (*RefundHandler)(nil)
	_ middleware.IdempotentCommand                = RefundCommand{}
	_ middleware.LockScoped                       = RefundCommand{}
)
