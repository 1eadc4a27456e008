package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/events"
	"rentals/internal/domain/shared/money"
	"rentals/internal/domain/user"
)

type BookingID string

// Status tracks host approval and stay progress.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Blocks reports whether a booking in this status holds its dates.
func (s Status) Blocks() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidState, raw)
}

// PaymentStatus tracks capture of the charge, independently of Status.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Guests struct {
	Adults   int `json:"adults" validate:"min=1"`
	Children int `json:"children" validate:"min=0"`
	Infants  int `json:"infants" validate:"min=0"`
}

func (g Guests) Total() int {
	return g.Adults + g.Children + g.Infants
}

func (g Guests) Validate() error {
	if g.Adults < 1 || g.Children < 0 || g.Infants < 0 {
		return ErrInvalidGuests
	}
	return nil
}

// GuestInfo is contact data passed through from the request.
type GuestInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Cancellation struct {
	CancelledBy  user.ID
	CancelledAt  time.Time
	Reason       string
	RefundAmount money.Money
}

// RefundRecord is the refund the gateway accepted. It says nothing about the stay,
// which may still be live.
type RefundRecord struct {
	ID     string
	Amount money.Money
	By     user.ID
	At     time.Time
	Reason string
}

type Booking struct {
	ID              BookingID
	ListingID       listings.ListingID
	GuestID         user.ID
	HostID          listings.HostID
	Range           daterange.DateRange
	Guests          Guests
	GuestInfo       GuestInfo
	SpecialRequests string
	Price           pricing.PriceBreakdown
	Status          Status
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	Cancellation    *Cancellation
	Refund          *RefundRecord
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	// ListBlocking returns pending or confirmed bookings of the listing whose range
	// overlaps dr.
	ListBlocking(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*Booking, error)
	ListByListing(ctx context.Context, listingID listings.ListingID) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID user.ID) ([]*Booking, error)
	ListByHost(ctx context.Context, hostID listings.HostID) ([]*Booking, error)
}

type CreateParams struct {
	ID              BookingID
	Listing         *listings.Listing
	Guest           user.Principal
	Range           daterange.DateRange
	Guests          Guests
	GuestInfo       GuestInfo
	SpecialRequests string
	Price           pricing.PriceBreakdown
	Now             time.Time
}

// NewBooking applies every create guard except availability, which needs the store
// and is checked by the caller under the listing lock.
func NewBooking(params CreateParams) (*Booking, error) {
	l := params.Listing
	if l == nil {
		return nil, ErrNotFound
	}
	if !l.Active {
		return nil, ErrListingUnavailable
	}
	if params.Guest.IsZero() {
		return nil, ErrUnauthorized
	}
	if l.IsHostedBy(listings.HostID(params.Guest.ID)) {
		return nil, ErrOwnListing
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	if params.Range.CheckIn.Before(daterange.StartOfDay(now)) {
		return nil, ErrCheckInInPast
	}
	if err := params.Guests.Validate(); err != nil {
		return nil, err
	}
	if params.Guests.Total() > l.MaxGuests {
		return nil, ErrCapacityExceeded
	}
	if err := params.Price.Verify(); err != nil {
		return nil, err
	}

	status := StatusPending
	if l.InstantBook {
		status = StatusConfirmed
	}
	b := &Booking{
		ID:              params.ID,
		ListingID:       l.ID,
		GuestID:         params.Guest.ID,
		HostID:          l.Host,
		Range:           params.Range,
		Guests:          params.Guests,
		GuestInfo:       params.GuestInfo,
		SpecialRequests: strings.TrimSpace(params.SpecialRequests),
		Price:           params.Price,
		Status:          status,
		PaymentStatus:   PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	b.Record(BookingCreated{
		BookingID: b.ID,
		ListingID: b.ListingID,
		GuestID:   b.GuestID,
		HostID:    b.HostID,
		Range:     b.Range,
		Status:    b.Status,
		Total:     b.Price.Total,
		At:        now,
	})
	return b, nil
}

func (b *Booking) Confirm(actor user.Principal, now time.Time) error {
	return b.transition(actor, StatusConfirmed, "", now)
}

// Cancel stamps who cancelled and why.
func (b *Booking) Cancel(actor user.Principal, reason string, now time.Time) error {
	return b.transition(actor, StatusCancelled, reason, now)
}

// ForceCancel cancels on behalf of the system, skipping the actor checks that apply
// to people but not the state checks.
func (b *Booking) ForceCancel(reason string, now time.Time) error {
	return b.transition(user.System, StatusCancelled, reason, now)
}

func (b *Booking) Complete(actor user.Principal, now time.Time) error {
	return b.transition(actor, StatusCompleted, "", now)
}

// CompleteIfDue completes a confirmed booking whose check-out has passed.
func (b *Booking) CompleteIfDue(now time.Time) bool {
	if b.Status != StatusConfirmed || now.Before(b.Range.CheckOut) {
		return false
	}
	return b.transition(user.System, StatusCompleted, "", now) == nil
}

func (b *Booking) transition(actor user.Principal, to Status, reason string, now time.Time) error {
	if err := b.checkTransition(actor, to, now); err != nil {
		return err
	}
	b.apply(actor, to, reason, now)
	return nil
}

func (b *Booking) checkTransition(actor user.Principal, to Status, now time.Time) error {
	if err := CheckTransition(RelationOf(b, actor), b.Status, to); err != nil {
		return err
	}
	if to == StatusCompleted && now.Before(b.Range.CheckOut) {
		return ErrNotCheckedOut
	}
	return nil
}

func (b *Booking) apply(actor user.Principal, to Status, reason string, now time.Time) {
	now = now.UTC()
	b.Status = to
	b.UpdatedAt = now
	switch to {
	case StatusConfirmed:
		b.Record(BookingConfirmed{BookingID: b.ID, ListingID: b.ListingID, GuestID: b.GuestID, By: actor.ID, At: now})
	case StatusCancelled:
		reason = strings.TrimSpace(reason)
		c := Cancellation{CancelledBy: actor.ID, CancelledAt: now, Reason: reason}
		if b.Refund != nil {
			c.RefundAmount = b.Refund.Amount
		}
		b.Cancellation = &c
		b.Record(BookingCancelled{BookingID: b.ID, ListingID: b.ListingID, GuestID: b.GuestID, By: actor.ID, Reason: reason, At: now})
	case StatusCompleted:
		b.Record(BookingCompleted{BookingID: b.ID, ListingID: b.ListingID, At: now})
	}
}

// Patch is a generic field update. Nil fields are left alone.
type Patch struct {
	Status             *Status
	Guests             *Guests
	GuestInfo          *GuestInfo
	SpecialRequests    *string
	CancellationReason string
}

func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.Guests == nil && p.GuestInfo == nil && p.SpecialRequests == nil
}

// ApplyPatch validates the whole patch before touching any field. An embedded status
// goes through the same policy as the dedicated transition.
func (b *Booking) ApplyPatch(actor user.Principal, patch Patch, maxGuests int, now time.Time) error {
	rel := RelationOf(b, actor)
	if err := CheckAction(rel, ActionUpdate); err != nil {
		return err
	}
	statusChange := patch.Status != nil && *patch.Status != b.Status
	if b.Status.IsTerminal() && (statusChange || patch.Guests != nil || patch.GuestInfo != nil || patch.SpecialRequests != nil) {
		return ErrReadOnly
	}
	if patch.Guests != nil {
		if err := patch.Guests.Validate(); err != nil {
			return err
		}
		if patch.Guests.Total() > maxGuests {
			return ErrCapacityExceeded
		}
	}
	if statusChange {
		if err := b.checkTransition(actor, *patch.Status, now); err != nil {
			return err
		}
	}

	changed := false
	if patch.Guests != nil && *patch.Guests != b.Guests {
		b.Guests = *patch.Guests
		changed = true
	}
	if patch.GuestInfo != nil && *patch.GuestInfo != b.GuestInfo {
		b.GuestInfo = *patch.GuestInfo
		changed = true
	}
	if patch.SpecialRequests != nil {
		if v := strings.TrimSpace(*patch.SpecialRequests); v != b.SpecialRequests {
			b.SpecialRequests = v
			changed = true
		}
	}
	if changed {
		b.UpdatedAt = now.UTC()
		b.Record(BookingUpdated{BookingID: b.ID, By: actor.ID, At: b.UpdatedAt})
	}
	if statusChange {
		b.apply(actor, *patch.Status, patch.CancellationReason, now)
	}
	return nil
}

// CanCollectPayment checks that a new payment intent may be opened for the booking.
func (b *Booking) CanCollectPayment(actor user.Principal) error {
	if err := CheckAction(RelationOf(b, actor), ActionPay); err != nil {
		return err
	}
	if b.Status.IsTerminal() {
		return ErrReadOnly
	}
	switch b.PaymentStatus {
	case PaymentPaid, PaymentRefunded:
		return ErrAlreadyPaid
	}
	return nil
}

// AttachPaymentIntent remembers the gateway intent so later syncs and refunds can
// find it. A failed capture goes back to pending for the new attempt.
func (b *Booking) AttachPaymentIntent(intentID string, now time.Time) {
	b.PaymentIntentID = intentID
	if b.PaymentStatus == PaymentFailed {
		b.PaymentStatus = PaymentPending
	}
	b.UpdatedAt = now.UTC()
}

// MarkPaid applies a successful capture: payment becomes paid and a pending booking
// is confirmed by the system. It reports false when there was nothing to change,
// which makes repeated gateway deliveries harmless. Closed bookings keep their status.
func (b *Booking) MarkPaid(intentID string, now time.Time) bool {
	changed := false
	if b.PaymentStatus == PaymentPending || b.PaymentStatus == PaymentFailed {
		b.PaymentStatus = PaymentPaid
		if intentID != "" {
			b.PaymentIntentID = intentID
		}
		b.UpdatedAt = now.UTC()
		b.Record(BookingPaymentSucceeded{BookingID: b.ID, IntentID: b.PaymentIntentID, Amount: b.Price.ChargeAmount(), At: b.UpdatedAt})
		changed = true
	}
	if b.Status == StatusPending && b.PaymentStatus == PaymentPaid {
		if b.transition(user.System, StatusConfirmed, "", now) == nil {
			changed = true
		}
	}
	return changed
}

// MarkPaymentFailed never downgrades a captured or refunded payment.
func (b *Booking) MarkPaymentFailed(now time.Time) bool {
	if b.PaymentStatus != PaymentPending {
		return false
	}
	b.PaymentStatus = PaymentFailed
	b.UpdatedAt = now.UTC()
	b.Record(BookingPaymentFailed{BookingID: b.ID, IntentID: b.PaymentIntentID, At: b.UpdatedAt})
	return true
}

// PrepareRefund validates a refund request and resolves the amount, defaulting to
// the booking total. Nothing is mutated: the gateway has to succeed first.
func (b *Booking) PrepareRefund(actor user.Principal, amount *money.Money) (money.Money, error) {
	if err := CheckAction(RelationOf(b, actor), ActionRefund); err != nil {
		return money.Money{}, err
	}
	if b.PaymentStatus != PaymentPaid {
		return money.Money{}, ErrNotPaid
	}
	if b.PaymentIntentID == "" {
		return money.Money{}, ErrNoPaymentIntent
	}
	total := b.Price.ChargeAmount()
	if amount == nil {
		return total, nil
	}
	requested := *amount
	if requested.Currency == "" {
		requested.Currency = total.Currency
	}
	if requested.Currency != total.Currency || !requested.IsPositive() || requested.Amount > total.Amount {
		return money.Money{}, ErrInvalidRefund
	}
	return requested, nil
}

// RecordRefund persists a refund the gateway has already accepted.
func (b *Booking) RecordRefund(actor user.Principal, amount money.Money, reason, refundID string, now time.Time) {
	now = now.UTC()
	reason = strings.TrimSpace(reason)
	b.PaymentStatus = PaymentRefunded
	b.Refund = &RefundRecord{ID: refundID, Amount: amount, By: actor.ID, At: now, Reason: reason}
	if b.Cancellation != nil {
		b.Cancellation.RefundAmount = amount
	}
	b.UpdatedAt = now
	b.Record(BookingRefunded{BookingID: b.ID, RefundID: refundID, Amount: amount, Reason: reason, At: now})
}
