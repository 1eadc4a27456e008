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
	"rentals/internal/domain/shared/money"
	"rentals/internal/domain/user"
)

const CreateIntentKey = "payments.create_intent"

type CreateIntentCommand struct {
	Actor     user.Principal
	BookingID string `validate:"required"`
}

func (c CreateIntentCommand) Key() string               { return CreateIntentKey }
func (c CreateIntentCommand) Principal() user.Principal { return c.Actor }
func (c CreateIntentCommand) LockKey() string           { return bookingapp.BookingLockKey(c.BookingID) }

type CreateIntentHandler struct {
	Deps
}

// Handle opens a gateway intent for the booking total. The booking is only written
// once the gateway has answered.
func (h *CreateIntentHandler) Handle(ctx context.Context, cmd CreateIntentCommand) (dto.PaymentIntent, error) {
	if h.Gateway == nil {
		return dto.PaymentIntent{}, fmt.Errorf("%w: gateway not configured", domainbooking.ErrPaymentGateway)
	}
	now := support.Clock(h.Now)
	var out dto.PaymentIntent
	err := support.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		if err := b.CanCollectPayment(cmd.Actor); err != nil {
			return err
		}
		amount, err := h.chargeAmount(ctx, unit, b)
		if err != nil {
			return err
		}
		metadata := map[string]string{
			policies.MetadataBookingID: string(b.ID),
			policies.MetadataGuestID:   string(b.GuestID),
		}
		gctx, cancel := h.gatewayContext(ctx)
		intent, err := h.Gateway.CreateIntent(gctx, amount.MinorUnits(), amount.Currency, metadata)
		cancel()
		if err != nil {
			return err
		}
		b.AttachPaymentIntent(intent.ID, now)
		if err := h.persist(ctx, unit, b); err != nil {
			return err
		}
		out = dto.PaymentIntent{
			BookingID:       string(b.ID),
			PaymentIntentID: intent.ID,
			ClientSecret:    intent.ClientSecret,
			Amount:          dto.MapMoney(amount),
		}
		return nil
	})
	if err != nil {
		return dto.PaymentIntent{}, err
	}
	h.logger().Info("payment intent created", "booking_id", out.BookingID, "intent_id", out.PaymentIntentID)
	return out, nil
}

// chargeAmount is the booking total, then the base price, then one night at the
// listing rate for bookings stored without a breakdown.
func (h *CreateIntentHandler) chargeAmount(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking) (money.Money, error) {
	if amount := b.Price.ChargeAmount(); amount.IsPositive() {
		return amount, nil
	}
	listing, err := unit.Listings().ByID(ctx, b.ListingID)
	if err != nil {
		return money.Money{}, err
	}
	if !listing.NightlyRate.IsPositive() {
		return money.Money{}, fmt.Errorf("%w: booking %s has no chargeable amount", domainbooking.ErrPaymentGateway, b.ID)
	}
	return listing.NightlyRate, nil
}

var _ commands.Handler[CreateIntentCommand, dto.PaymentIntent] = (*CreateIntentHandler)(nil)
