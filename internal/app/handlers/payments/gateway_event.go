package payments

import (
	"context"
	"errors"
	"fmt"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
)

const (
	GatewayEventKey = "payments.gateway_event"
	// InboxConsumer names the webhook consumer in the inbox store.
	InboxConsumer = "payments.webhook"

	applyAttempts = 3
)

// GatewayEventCommand carries a raw webhook delivery.
type GatewayEventCommand struct {
	Payload   []byte
	Signature string
}

func (c GatewayEventCommand) Key() string { return GatewayEventKey }

// SkipTransaction lets the handler own its unit: the gateway is acknowledged even
// when applying the event fails.
func (c GatewayEventCommand) SkipTransaction() bool { return true }

type GatewayEventHandler struct {
	Deps
	Inbox policies.InboxStore
}

// Handle never returns an error. Every problem is logged and the delivery is
// acknowledged so the gateway stops retrying.
func (h *GatewayEventHandler) Handle(ctx context.Context, cmd GatewayEventCommand) (dto.WebhookAck, error) {
	ack := dto.WebhookAck{Received: true}
	log := h.logger()
	if h.Gateway == nil {
		log.Error("webhook received without a payment gateway")
		return ack, nil
	}
	ev, err := h.Gateway.ParseEvent(cmd.Payload, cmd.Signature)
	if err != nil {
		log.Warn("webhook rejected", "error", err)
		return ack, nil
	}
	if h.Inbox != nil && ev.ID != "" {
		claimed, err := h.Inbox.Claim(ctx, InboxConsumer, ev.ID)
		if err != nil {
			log.Error("webhook inbox claim failed", "event_id", ev.ID, "error", err)
			return ack, nil
		}
		if !claimed {
			log.Info("webhook duplicate skipped", "event_id", ev.ID)
			return ack, nil
		}
	}
	if err := h.apply(ctx, ev); err != nil {
		if errors.Is(err, domainbooking.ErrUpstreamEventUnrecognized) {
			log.Info("webhook ignored", "event_id", ev.ID, "type", ev.Type)
			return ack, nil
		}
		log.Error("webhook processing failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		if h.Inbox != nil && ev.ID != "" {
			if rerr := h.Inbox.Release(ctx, InboxConsumer, ev.ID); rerr != nil {
				log.Error("webhook inbox release failed", "event_id", ev.ID, "error", rerr)
			}
		}
	}
	return ack, nil
}

// apply reloads and reapplies the event when a concurrent write to the booking wins
// the commit. The gateway is acknowledged regardless, so giving up loses the event.
func (h *GatewayEventHandler) apply(ctx context.Context, ev policies.GatewayEvent) error {
	var err error
	for attempt := 1; attempt <= applyAttempts; attempt++ {
		err = h.applyOnce(ctx, ev)
		if !errors.Is(err, domainbooking.ErrConcurrentUpdate) {
			return err
		}
		h.logger().Debug("webhook apply retry", "event_id", ev.ID, "attempt", attempt)
	}
	return err
}

func (h *GatewayEventHandler) applyOnce(ctx context.Context, ev policies.GatewayEvent) error {
	switch ev.Type {
	case policies.EventPaymentSucceeded, policies.EventPaymentFailed:
	default:
		return fmt.Errorf("%w: %s", domainbooking.ErrUpstreamEventUnrecognized, ev.Type)
	}
	bookingID := ev.Metadata[policies.MetadataBookingID]
	if bookingID == "" {
		return fmt.Errorf("%w: event %s carries no booking id", domainbooking.ErrNotFound, ev.ID)
	}
	now := support.Clock(h.Now)
	return uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(bookingID))
		if err != nil {
			return err
		}
		var changed bool
		if ev.Type == policies.EventPaymentSucceeded {
			changed = b.MarkPaid(ev.IntentID, now)
		} else {
			changed = b.MarkPaymentFailed(now)
		}
		if !changed {
			return nil
		}
		if err := h.persist(ctx, unit, b); err != nil {
			return err
		}
		h.logger().Info("payment reconciled", "booking_id", b.ID, "event", ev.Type, "status", b.Status, "payment_status", b.PaymentStatus)
		return nil
	})
}

var _ commands.Handler[GatewayEventCommand, dto.WebhookAck] = (*GatewayEventHandler)(nil)
