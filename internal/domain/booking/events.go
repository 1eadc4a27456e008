package booking

import (
	"time"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
	"rentals/internal/domain/user"
)

type BookingCreated struct {
	BookingID BookingID
	ListingID listings.ListingID
	GuestID   user.ID
	HostID    listings.HostID
	Range     daterange.DateRange
	Status    Status
	Total     money.Money
	At        time.Time
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID BookingID
	ListingID listings.ListingID
	GuestID   user.ID
	By        user.ID
	At        time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID BookingID
	ListingID listings.ListingID
	GuestID   user.ID
	By        user.ID
	Reason    string
	At        time.Time
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID BookingID
	ListingID listings.ListingID
	At        time.Time
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type BookingUpdated struct {
	BookingID BookingID
	By        user.ID
	At        time.Time
}

func (e BookingUpdated) EventName() string     { return "booking.updated" }
func (e BookingUpdated) AggregateID() string   { return string(e.BookingID) }
func (e BookingUpdated) OccurredAt() time.Time { return e.At }

type BookingPaymentSucceeded struct {
	BookingID BookingID
	IntentID  string
	Amount    money.Money
	At        time.Time
}

func (e BookingPaymentSucceeded) EventName() string     { return "booking.payment_succeeded" }
func (e BookingPaymentSucceeded) AggregateID() string   { return string(e.BookingID) }
func (e BookingPaymentSucceeded) OccurredAt() time.Time { return e.At }

type BookingPaymentFailed struct {
	BookingID BookingID
	IntentID  string
	At        time.Time
}

func (e BookingPaymentFailed) EventName() string     { return "booking.payment_failed" }
func (e BookingPaymentFailed) AggregateID() string   { return string(e.BookingID) }
func (e BookingPaymentFailed) OccurredAt() time.Time { return e.At }

type BookingRefunded struct {
	BookingID BookingID
	RefundID  string
	Amount    money.Money
	Reason    string
	At        time.Time
}

func (e BookingRefunded) EventName() string     { return "booking.refunded" }
func (e BookingRefunded) AggregateID() string   { return string(e.BookingID) }
func (e BookingRefunded) OccurredAt() time.Time { return e.At }
