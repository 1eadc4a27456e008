package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	paymentsapp "rentals/internal/app/handlers/payments"
)

// SignatureHeader carries the gateway's webhook signature.
const SignatureHeader = "Stripe-Signature"

type PaymentHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type createIntentRequest struct {
	BookingID string `json:"bookingId"`
}

func (h PaymentHandler) CreateIntent(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := paymentsapp.CreateIntentCommand{Actor: actor, BookingID: req.BookingID}
	result, err := commands.Dispatch[paymentsapp.CreateIntentCommand, dto.PaymentIntent](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Webhook always answers 200 once the body is read: signature and processing
// failures are logged by the handler and never bounce back to the gateway.
func (h PaymentHandler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("webhook body unreadable", "error", err)
		}
		c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
		return
	}
	cmd := paymentsapp.GatewayEventCommand{Payload: payload, Signature: c.GetHeader(SignatureHeader)}
	ack, err := commands.Dispatch[paymentsapp.GatewayEventCommand, dto.WebhookAck](c.Request.Context(), h.Commands, cmd)
	if err != nil && h.Logger != nil {
		h.Logger.Error("webhook dispatch failed", "error", err)
	}
	ack.Received = true
	c.JSON(http.StatusOK, ack)
}

type syncPaymentRequest struct {
	BookingID       string `json:"bookingId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

func (h PaymentHandler) Sync(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req syncPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := paymentsapp.SyncStatusCommand{Actor: actor, BookingID: req.BookingID, PaymentIntentID: req.PaymentIntentID}
	result, err := commands.Dispatch[paymentsapp.SyncStatusCommand, dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type refundRequest struct {
	BookingID string `json:"bookingId"`
	Amount    *int64 `json:"amount"`
	Reason    string `json:"reason"`
}

func (h PaymentHandler) Refund(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := paymentsapp.RefundCommand{
		Actor:           actor,
		BookingID:       req.BookingID,
		Amount:          req.Amount,
		Reason:          req.Reason,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[paymentsapp.RefundCommand, dto.Refund](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
