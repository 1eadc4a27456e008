package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"rentals/internal/app/policies"
	domainbooking "rentals/internal/domain/booking"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Logger        *slog.Logger
}

// Gateway adapts the Stripe API to policies.PaymentGateway.
type Gateway struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

func New(cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}
	return &Gateway{
		api:           client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		logger:        cfg.Logger,
	}, nil
}

func (g *Gateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (policies.PaymentIntent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(amountMinor),
		Currency: stripego.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return policies.PaymentIntent{}, g.wrap("create intent", err)
	}
	return toIntent(pi), nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, intentID string) (policies.PaymentIntent, error) {
	params := &stripego.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return policies.PaymentIntent{}, g.wrap("retrieve intent", err)
	}
	return toIntent(pi), nil
}

func (g *Gateway) Refund(ctx context.Context, intentID string, amountMinor int64, idempotencyKey string) (policies.Refund, error) {
	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(intentID),
		Amount:        stripego.Int64(amountMinor),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	r, err := g.api.Refunds.New(params)
	if err != nil {
		return policies.Refund{}, g.wrap("refund", err)
	}
	switch r.Status {
	case stripego.RefundStatusFailed, stripego.RefundStatusCanceled:
		return policies.Refund{}, fmt.Errorf("%w: refund %s is %s", domainbooking.ErrPaymentGateway, r.ID, r.Status)
	}
	return policies.Refund{ID: r.ID, Status: string(r.Status)}, nil
}

// ParseEvent verifies the Stripe-Signature header and extracts the payment intent.
func (g *Gateway) ParseEvent(payload []byte, signature string) (policies.GatewayEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return policies.GatewayEvent{}, fmt.Errorf("%w: %v", policies.ErrInvalidSignature, err)
	}
	out := policies.GatewayEvent{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "payment_intent.") || event.Data == nil {
		return out, nil
	}
	var pi stripego.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return policies.GatewayEvent{}, fmt.Errorf("stripe: decode payment intent: %w", err)
	}
	out.IntentID = pi.ID
	out.Metadata = pi.Metadata
	return out, nil
}

func (g *Gateway) wrap(op string, err error) error {
	var serr *stripego.Error
	if errors.As(err, &serr) {
		if g.logger != nil {
			g.logger.Warn("stripe request failed", "op", op, "code", serr.Code, "status", serr.HTTPStatusCode, "request_id", serr.RequestID)
		}
		return fmt.Errorf("%w: %s: %s", domainbooking.ErrPaymentGateway, op, serr.Msg)
	}
	return fmt.Errorf("%w: %s: %v", domainbooking.ErrPaymentGateway, op, err)
}

func toIntent(pi *stripego.PaymentIntent) policies.PaymentIntent {
	return policies.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       policies.IntentStatus(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

var _ policies.PaymentGateway = (*Gateway)(nil)
