package policies

import (
	"context"
	"errors"
)

// Gateway event types the engine reacts to.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// Metadata keys attached to every payment intent.
const (
	MetadataBookingID = "bookingId"
	MetadataGuestID   = "guestId"
)

var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentCanceled              IntentStatus = "canceled"
)

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
}

// GatewayEvent is a verified webhook delivery reduced to what reconciliation needs.
type GatewayEvent struct {
	ID       string
	Type     string
	IntentID string
	Metadata map[string]string
}

type Refund struct {
	ID     string
	Status string
}

// PaymentGateway is the external processor. Implementations wrap every upstream
// failure so callers can match it with errors.Is(err, booking.ErrPaymentGateway).
// Refund calls sharing an idempotency key move money at most once.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (PaymentIntent, error)
	RetrieveIntent(ctx context.Context, intentID string) (PaymentIntent, error)
	Refund(ctx context.Context, intentID string, amountMinor int64, idempotencyKey string) (Refund, error)
	ParseEvent(payload []byte, signature string) (GatewayEvent, error)
}
