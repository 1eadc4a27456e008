package booking

import (
	"errors"
	"fmt"

	"rentals/internal/domain/shared/daterange"
)

// Rejection reasons surfaced to callers. Specific failures wrap one of these so
// callers can match with errors.Is.
var (
	ErrNotFound         = errors.New("booking: not found")
	ErrUnauthorized     = errors.New("booking: not authorized")
	ErrInvalidState     = errors.New("booking: invalid state transition")
	ErrInvalidDateRange = daterange.ErrInvalidRange
	ErrCapacityExceeded = errors.New("booking: guests exceed listing capacity")
	ErrConflict         = errors.New("booking: dates overlap an existing booking")
	ErrPaymentGateway   = errors.New("booking: payment gateway error")
	ErrConcurrentUpdate = errors.New("booking: concurrent update")
	ErrInvalidGuests    = errors.New("booking: guest counts are invalid")
	ErrInvalidRefund    = errors.New("booking: refund amount must be positive and not exceed the total")

	// ErrUpstreamEventUnrecognized is logged by the webhook path and never returned to the gateway.
	ErrUpstreamEventUnrecognized = errors.New("booking: unrecognized gateway event")
)

var (
	ErrCheckInInPast      = fmt.Errorf("%w: check-in date is in the past", ErrInvalidDateRange)
	ErrListingUnavailable = fmt.Errorf("%w: listing is not accepting bookings", ErrNotFound)
	ErrOwnListing         = fmt.Errorf("%w: hosts cannot book their own listing", ErrUnauthorized)
	ErrNotCheckedOut      = fmt.Errorf("%w: check-out has not passed yet", ErrInvalidState)
	ErrReadOnly           = fmt.Errorf("%w: booking is closed", ErrInvalidState)
	ErrNotPaid            = fmt.Errorf("%w: booking has no captured payment", ErrInvalidState)
	ErrAlreadyPaid        = fmt.Errorf("%w: booking payment already captured", ErrInvalidState)
	ErrNoPaymentIntent    = fmt.Errorf("%w: no payment intent to reconcile", ErrPaymentGateway)
)
