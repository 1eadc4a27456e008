package mongo

import (
	"time"

	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
	"rentals/internal/domain/user"
)

type listingDocument struct {
	ID          string         `bson:"_id"`
	HostID      string         `bson:"host_id"`
	Title       string         `bson:"title"`
	NightlyRate money.Money    `bson:"nightly_rate"`
	MaxGuests   int            `bson:"max_guests"`
	Active      bool           `bson:"active"`
	InstantBook bool           `bson:"instant_book"`
	Rating      ratingDocument `bson:"rating"`
	CreatedAt   time.Time      `bson:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at"`
	Version     int64          `bson:"version"`
}

type ratingDocument struct {
	Average       float64 `bson:"average"`
	Count         int     `bson:"count"`
	Cleanliness   float64 `bson:"cleanliness"`
	Accuracy      float64 `bson:"accuracy"`
	CheckIn       float64 `bson:"check_in"`
	Communication float64 `bson:"communication"`
	Location      float64 `bson:"location"`
	Value         float64 `bson:"value"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	c := l.Rating.Categories
	return listingDocument{
		ID:          string(l.ID),
		HostID:      string(l.Host),
		Title:       l.Title,
		NightlyRate: l.NightlyRate,
		MaxGuests:   l.MaxGuests,
		Active:      l.Active,
		InstantBook: l.InstantBook,
		Rating: ratingDocument{
			Average:       l.Rating.Average,
			Count:         l.Rating.Count,
			Cleanliness:   c.Cleanliness,
			Accuracy:      c.Accuracy,
			CheckIn:       c.CheckIn,
			Communication: c.Communication,
			Location:      c.Location,
			Value:         c.Value,
		},
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
		Version:   l.Version,
	}
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	r := d.Rating
	return &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Host:        domainlistings.HostID(d.HostID),
		Title:       d.Title,
		NightlyRate: d.NightlyRate,
		MaxGuests:   d.MaxGuests,
		Active:      d.Active,
		InstantBook: d.InstantBook,
		Rating: domainlistings.RatingSummary{
			Average: r.Average,
			Count:   r.Count,
			Categories: domainlistings.CategoryRatings{
				Cleanliness:   r.Cleanliness,
				Accuracy:      r.Accuracy,
				CheckIn:       r.CheckIn,
				Communication: r.Communication,
				Location:      r.Location,
				Value:         r.Value,
			},
		},
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
		Version:   d.Version,
	}
}

type bookingDocument struct {
	ID              string                `bson:"_id"`
	ListingID       string                `bson:"listing_id"`
	GuestID         string                `bson:"guest_id"`
	HostID          string                `bson:"host_id"`
	Range           daterange.DateRange   `bson:"range"`
	Guests          guestsDocument        `bson:"guests"`
	GuestInfo       guestInfoDocument     `bson:"guest_info"`
	SpecialRequests string                `bson:"special_requests,omitempty"`
	Price           priceDocument         `bson:"price"`
	Status          string                `bson:"status"`
	PaymentStatus   string                `bson:"payment_status"`
	PaymentIntentID string                `bson:"payment_intent_id,omitempty"`
	Cancellation    *cancellationDocument `bson:"cancellation,omitempty"`
	Refund          *refundDocument       `bson:"refund,omitempty"`
	CreatedAt       time.Time             `bson:"created_at"`
	UpdatedAt       time.Time             `bson:"updated_at"`
	Version         int64                 `bson:"version"`
}

type guestsDocument struct {
	Adults   int `bson:"adults"`
	Children int `bson:"children"`
	Infants  int `bson:"infants"`
}

type guestInfoDocument struct {
	Name  string `bson:"name,omitempty"`
	Email string `bson:"email,omitempty"`
	Phone string `bson:"phone,omitempty"`
}

type priceDocument struct {
	NightlyRate money.Money `bson:"nightly_rate"`
	Nights      int         `bson:"nights"`
	BasePrice   money.Money `bson:"base_price"`
	ServiceFee  money.Money `bson:"service_fee"`
	CleaningFee money.Money `bson:"cleaning_fee"`
	Taxes       money.Money `bson:"taxes"`
	Total       money.Money `bson:"total"`
}

type cancellationDocument struct {
	CancelledBy  string      `bson:"cancelled_by"`
	CancelledAt  time.Time   `bson:"cancelled_at"`
	Reason       string      `bson:"reason,omitempty"`
	RefundAmount money.Money `bson:"refund_amount"`
}

type refundDocument struct {
	ID     string      `bson:"id"`
	Amount money.Money `bson:"amount"`
	By     string      `bson:"by"`
	At     time.Time   `bson:"at"`
	Reason string      `bson:"reason,omitempty"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	p := b.Price
	doc := bookingDocument{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		GuestID:         string(b.GuestID),
		HostID:          string(b.HostID),
		Range:           b.Range,
		Guests:          guestsDocument(b.Guests),
		GuestInfo:       guestInfoDocument(b.GuestInfo),
		SpecialRequests: b.SpecialRequests,
		Price: priceDocument{
			NightlyRate: p.NightlyRate,
			Nights:      p.Nights,
			BasePrice:   p.BasePrice,
			ServiceFee:  p.ServiceFee,
			CleaningFee: p.CleaningFee,
			Taxes:       p.Taxes,
			Total:       p.Total,
		},
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		PaymentIntentID: b.PaymentIntentID,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
		Version:         b.Version,
	}
	if c := b.Cancellation; c != nil {
		doc.Cancellation = &cancellationDocument{
			CancelledBy:  string(c.CancelledBy),
			CancelledAt:  c.CancelledAt,
			Reason:       c.Reason,
			RefundAmount: c.RefundAmount,
		}
	}
	if r := b.Refund; r != nil {
		doc.Refund = &refundDocument{ID: r.ID, Amount: r.Amount, By: string(r.By), At: r.At, Reason: r.Reason}
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	p := d.Price
	b := &domainbooking.Booking{
		ID:              domainbooking.BookingID(d.ID),
		ListingID:       domainlistings.ListingID(d.ListingID),
		GuestID:         user.ID(d.GuestID),
		HostID:          domainlistings.HostID(d.HostID),
		Range:           daterange.DateRange{CheckIn: d.Range.CheckIn.UTC(), CheckOut: d.Range.CheckOut.UTC()},
		Guests:          domainbooking.Guests(d.Guests),
		GuestInfo:       domainbooking.GuestInfo(d.GuestInfo),
		SpecialRequests: d.SpecialRequests,
		Price: pricing.PriceBreakdown{
			NightlyRate: p.NightlyRate,
			Nights:      p.Nights,
			BasePrice:   p.BasePrice,
			ServiceFee:  p.ServiceFee,
			CleaningFee: p.CleaningFee,
			Taxes:       p.Taxes,
			Total:       p.Total,
		},
		Status:          domainbooking.Status(d.Status),
		PaymentStatus:   domainbooking.PaymentStatus(d.PaymentStatus),
		PaymentIntentID: d.PaymentIntentID,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
		Version:         d.Version,
	}
	if c := d.Cancellation; c != nil {
		b.Cancellation = &domainbooking.Cancellation{
			CancelledBy:  user.ID(c.CancelledBy),
			CancelledAt:  c.CancelledAt.UTC(),
			Reason:       c.Reason,
			RefundAmount: c.RefundAmount,
		}
	}
	if r := d.Refund; r != nil {
		b.Refund = &domainbooking.RefundRecord{ID: r.ID, Amount: r.Amount, By: user.ID(r.By), At: r.At.UTC(), Reason: r.Reason}
	}
	return b
}

type reviewDocument struct {
	ID         string         `bson:"_id"`
	BookingID  string         `bson:"booking_id"`
	AuthorID   string         `bson:"author_id"`
	ListingID  string         `bson:"listing_id"`
	Rating     int            `bson:"rating"`
	Categories scoresDocument `bson:"categories"`
	Text       string         `bson:"text,omitempty"`
	CreatedAt  time.Time      `bson:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at"`
}

type scoresDocument struct {
	Cleanliness   int `bson:"cleanliness"`
	Accuracy      int `bson:"accuracy"`
	CheckIn       int `bson:"check_in"`
	Communication int `bson:"communication"`
	Location      int `bson:"location"`
	Value         int `bson:"value"`
}

func newReviewDocument(r *domainreviews.Review) reviewDocument {
	return reviewDocument{
		ID:         string(r.ID),
		BookingID:  string(r.BookingID),
		AuthorID:   string(r.AuthorID),
		ListingID:  string(r.ListingID),
		Rating:     r.Rating,
		Categories: scoresDocument(r.Categories),
		Text:       r.Text,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (d reviewDocument) toAggregate() *domainreviews.Review {
	return &domainreviews.Review{
		ID:         domainreviews.ReviewID(d.ID),
		BookingID:  domainbooking.BookingID(d.BookingID),
		AuthorID:   user.ID(d.AuthorID),
		ListingID:  domainlistings.ListingID(d.ListingID),
		Rating:     d.Rating,
		Categories: domainreviews.CategoryScores(d.Categories),
		Text:       d.Text,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}
