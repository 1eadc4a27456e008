package dto

import (
	"time"

	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/money"
)

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) Money {
	return Money{Amount: value.Amount, Currency: value.Currency}
}

type PriceBreakdown struct {
	NightlyRate Money `json:"nightlyRate"`
	Nights      int   `json:"nights"`
	BasePrice   Money `json:"basePrice"`
	ServiceFee  Money `json:"serviceFee"`
	CleaningFee Money `json:"cleaningFee"`
	Taxes       Money `json:"taxes"`
	TotalPrice  Money `json:"totalPrice"`
}

func MapPrice(p pricing.PriceBreakdown) PriceBreakdown {
	return PriceBreakdown{
		NightlyRate: MapMoney(p.NightlyRate),
		Nights:      p.Nights,
		BasePrice:   MapMoney(p.BasePrice),
		ServiceFee:  MapMoney(p.ServiceFee),
		CleaningFee: MapMoney(p.CleaningFee),
		Taxes:       MapMoney(p.Taxes),
		TotalPrice:  MapMoney(p.Total),
	}
}

type Cancellation struct {
	CancelledBy  string    `json:"cancelledBy"`
	CancelledAt  time.Time `json:"cancelledAt"`
	Reason       string    `json:"reason,omitempty"`
	RefundAmount *Money    `json:"refundAmount,omitempty"`
}

type RefundRecord struct {
	RefundID   string    `json:"refundId"`
	Amount     Money     `json:"amount"`
	RefundedBy string    `json:"refundedBy"`
	RefundedAt time.Time `json:"refundedAt"`
	Reason     string    `json:"reason,omitempty"`
}

type Booking struct {
	ID              string                  `json:"id"`
	ListingID       string                  `json:"listingId"`
	GuestID         string                  `json:"guestId"`
	HostID          string                  `json:"hostId"`
	CheckIn         time.Time               `json:"checkIn"`
	CheckOut        time.Time               `json:"checkOut"`
	Guests          domainbooking.Guests    `json:"guests"`
	GuestInfo       domainbooking.GuestInfo `json:"guestInfo"`
	SpecialRequests string                  `json:"specialRequests,omitempty"`
	Price           PriceBreakdown          `json:"price"`
	TotalPrice      Money                   `json:"totalPrice"`
	Status          string                  `json:"status"`
	PaymentStatus   string                  `json:"paymentStatus"`
	Cancellation    *Cancellation           `json:"cancellation,omitempty"`
	Refund          *RefundRecord           `json:"refund,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	out := Booking{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		GuestID:         string(b.GuestID),
		HostID:          string(b.HostID),
		CheckIn:         b.Range.CheckIn,
		CheckOut:        b.Range.CheckOut,
		Guests:          b.Guests,
		GuestInfo:       b.GuestInfo,
		SpecialRequests: b.SpecialRequests,
		Price:           MapPrice(b.Price),
		TotalPrice:      MapMoney(b.Price.Total),
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if c := b.Cancellation; c != nil {
		out.Cancellation = &Cancellation{
			CancelledBy: string(c.CancelledBy),
			CancelledAt: c.CancelledAt,
			Reason:      c.Reason,
		}
		if !c.RefundAmount.IsZero() {
			refund := MapMoney(c.RefundAmount)
			out.Cancellation.RefundAmount = &refund
		}
	}
	if r := b.Refund; r != nil {
		out.Refund = &RefundRecord{
			RefundID:   r.ID,
			Amount:     MapMoney(r.Amount),
			RefundedBy: string(r.By),
			RefundedAt: r.At,
			Reason:     r.Reason,
		}
	}
	return out
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

type Availability struct {
	ListingID string    `json:"listingId"`
	CheckIn   time.Time `json:"checkIn"`
	CheckOut  time.Time `json:"checkOut"`
	Available bool      `json:"available"`
}

// Calendar lists the stays holding nights on a listing. Guest details are left out
// so any signed-in user may read it.
type Calendar struct {
	ListingID string          `json:"listingId"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Blocks    []CalendarBlock `json:"blocks"`
}

type CalendarBlock struct {
	BookingID string    `json:"bookingId"`
	CheckIn   time.Time `json:"checkIn"`
	CheckOut  time.Time `json:"checkOut"`
	Status    string    `json:"status"`
}

type Quote struct {
	ListingID string         `json:"listingId"`
	CheckIn   time.Time      `json:"checkIn"`
	CheckOut  time.Time      `json:"checkOut"`
	Price     PriceBreakdown `json:"price"`
}

type ListingDeletion struct {
	ListingID         string   `json:"listingId"`
	CancelledBookings []string `json:"cancelledBookings"`
}
