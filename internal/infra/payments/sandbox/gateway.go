// Package sandbox is an in-process payment processor for local runs and tests. It
// speaks the same webhook shape as the real gateway but does not verify signatures.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"rentals/internal/app/policies"
	domainbooking "rentals/internal/domain/booking"
)

type Gateway struct {
	// Injected failures, returned (wrapped) by the next matching call while set.
	FailCreate   error
	FailRetrieve error
	FailRefund   error
	// Delay stalls every call, so callers can exercise their timeouts.
	Delay time.Duration

	mu      sync.Mutex
	seq     int
	intents map[string]policies.PaymentIntent
	refunds []RefundCall
	byKey   map[string]policies.Refund
}

type RefundCall struct {
	IntentID    string
	AmountMinor int64
}

func New() *Gateway {
	return &Gateway{intents: make(map[string]policies.PaymentIntent), byKey: make(map[string]policies.Refund)}
}

func (g *Gateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (policies.PaymentIntent, error) {
	if err := g.wait(ctx); err != nil {
		return policies.PaymentIntent{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailCreate != nil {
		return policies.PaymentIntent{}, fmt.Errorf("%w: %v", domainbooking.ErrPaymentGateway, g.FailCreate)
	}
	if amountMinor <= 0 {
		return policies.PaymentIntent{}, fmt.Errorf("%w: amount must be positive", domainbooking.ErrPaymentGateway)
	}
	g.seq++
	id := fmt.Sprintf("pi_sandbox_%d", g.seq)
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	intent := policies.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       policies.IntentRequiresPaymentMethod,
		AmountMinor:  amountMinor,
		Currency:     strings.ToLower(currency),
		Metadata:     meta,
	}
	g.intents[id] = intent
	return intent, nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, intentID string) (policies.PaymentIntent, error) {
	if err := g.wait(ctx); err != nil {
		return policies.PaymentIntent{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailRetrieve != nil {
		return policies.PaymentIntent{}, fmt.Errorf("%w: %v", domainbooking.ErrPaymentGateway, g.FailRetrieve)
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return policies.PaymentIntent{}, fmt.Errorf("%w: intent %s not found", domainbooking.ErrPaymentGateway, intentID)
	}
	return intent, nil
}

// Refund replays the first result for a repeated idempotency key, like the real
// processor does.
func (g *Gateway) Refund(ctx context.Context, intentID string, amountMinor int64, idempotencyKey string) (policies.Refund, error) {
	if err := g.wait(ctx); err != nil {
		return policies.Refund{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.byKey[idempotencyKey]; ok && idempotencyKey != "" {
		return r, nil
	}
	if g.FailRefund != nil {
		return policies.Refund{}, fmt.Errorf("%w: %v", domainbooking.ErrPaymentGateway, g.FailRefund)
	}
	intent, ok := g.intents[intentID]
	if !ok || intent.Status != policies.IntentSucceeded {
		return policies.Refund{}, fmt.Errorf("%w: intent %s has no captured charge", domainbooking.ErrPaymentGateway, intentID)
	}
	if amountMinor <= 0 || amountMinor > intent.AmountMinor {
		return policies.Refund{}, fmt.Errorf("%w: refund amount out of range", domainbooking.ErrPaymentGateway)
	}
	g.refunds = append(g.refunds, RefundCall{IntentID: intentID, AmountMinor: amountMinor})
	r := policies.Refund{ID: fmt.Sprintf("re_sandbox_%d", len(g.refunds)), Status: "succeeded"}
	if idempotencyKey != "" {
		g.byKey[idempotencyKey] = r
	}
	return r, nil
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.Delay <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", domainbooking.ErrPaymentGateway, err)
		}
		return nil
	}
	timer := time.NewTimer(g.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domainbooking.ErrPaymentGateway, ctx.Err())
	}
}

// SetStatus simulates the customer completing (or abandoning) checkout.
func (g *Gateway) SetStatus(intentID string, status policies.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if intent, ok := g.intents[intentID]; ok {
		intent.Status = status
		g.intents[intentID] = intent
	}
}

func (g *Gateway) Refunds() []RefundCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RefundCall(nil), g.refunds...)
}

type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (g *Gateway) ParseEvent(payload []byte, _ string) (policies.GatewayEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return policies.GatewayEvent{}, fmt.Errorf("%w: %v", policies.ErrInvalidSignature, err)
	}
	return policies.GatewayEvent{
		ID:       env.ID,
		Type:     env.Type,
		IntentID: env.Data.Object.ID,
		Metadata: env.Data.Object.Metadata,
	}, nil
}

// EventPayload renders a webhook body in the shape ParseEvent accepts.
func EventPayload(eventID, eventType, intentID string, metadata map[string]string) []byte {
	var env webhookEnvelope
	env.ID = eventID
	env.Type = eventType
	env.Data.Object.ID = intentID
	env.Data.Object.Metadata = metadata
	raw, _ := json.Marshal(env)
	return raw
}

var _ policies.PaymentGateway = (*Gateway)(nil)
