package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentals/internal/domain/shared/events"
	"rentals/internal/domain/shared/money"
)

var (
	ErrNotFound        = errors.New("listings: not found")
	ErrGuestsLimit     = errors.New("listings: guests limit must be at least 1")
	ErrTitleRequired   = errors.New("listings: title is required")
	ErrHostRequired    = errors.New("listings: host is required")
	ErrNightlyRate     = errors.New("listings: nightly rate must be positive")
	ErrConcurrentWrite = errors.New("listings: concurrent update")
)

type ListingID string
type HostID string

// CategoryRatings holds the per-category averages shown next to the overall score.
type CategoryRatings struct {
	Cleanliness   float64 `json:"cleanliness"`
	Accuracy      float64 `json:"accuracy"`
	CheckIn       float64 `json:"checkIn"`
	Communication float64 `json:"communication"`
	Location      float64 `json:"location"`
	Value         float64 `json:"value"`
}

// RatingSummary is the aggregate written back by the rating rollup.
type RatingSummary struct {
	Average    float64         `json:"average"`
	Count      int             `json:"count"`
	Categories CategoryRatings `json:"categories"`
}

type Listing struct {
	ID          ListingID
	Host        HostID
	Title       string
	NightlyRate money.Money
	MaxGuests   int
	Active      bool
	// InstantBook listings skip host approval: new bookings start confirmed.
	InstantBook bool
	Rating      RatingSummary
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
	events.EventRecorder
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	ListByHost(ctx context.Context, host HostID) ([]*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id ListingID) error
}

type CreateListingParams struct {
	ID          ListingID
	Host        HostID
	Title       string
	NightlyRate money.Money
	MaxGuests   int
	Active      bool
	InstantBook bool
	Now         time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, ErrHostRequired
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.MaxGuests < 1 {
		return nil, ErrGuestsLimit
	}
	if !params.NightlyRate.IsPositive() {
		return nil, ErrNightlyRate
	}
	now := params.Now.UTC()
	return &Listing{
		ID:          params.ID,
		Host:        params.Host,
		Title:       strings.TrimSpace(params.Title),
		NightlyRate: params.NightlyRate,
		MaxGuests:   params.MaxGuests,
		Active:      params.Active,
		InstantBook: params.InstantBook,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (l *Listing) IsHostedBy(host HostID) bool {
	return l != nil && l.Host == host
}

// MarkInactive hides the listing from new reservations without touching existing bookings.
func (l *Listing) MarkInactive(now time.Time) {
	if !l.Active {
		return
	}
	l.Active = false
	l.UpdatedAt = now.UTC()
}

// TouchCalendar marks a change to the listing's bookings. Saving the listing in the
// same unit makes concurrent bookings on it conflict at commit.
func (l *Listing) TouchCalendar(now time.Time) {
	l.UpdatedAt = now.UTC()
}

// ApplyRating replaces only the rating fields.
func (l *Listing) ApplyRating(summary RatingSummary, now time.Time) {
	l.Rating = summary
	l.UpdatedAt = now.UTC()
	l.Record(ListingRatingUpdated{ListingID: l.ID, Average: summary.Average, Count: summary.Count, At: l.UpdatedAt})
}

// MarkDeleted records the removal event; the repository performs the delete.
func (l *Listing) MarkDeleted(cancelled int, now time.Time) {
	l.Active = false
	l.UpdatedAt = now.UTC()
	l.Record(ListingDeleted{ListingID: l.ID, HostID: l.Host, CancelledBookings: cancelled, At: l.UpdatedAt})
}

type ListingRatingUpdated struct {
	ListingID ListingID
	Average   float64
	Count     int
	At        time.Time
}

func (e ListingRatingUpdated) EventName() string     { return "listing.rating_updated" }
func (e ListingRatingUpdated) AggregateID() string   { return string(e.ListingID) }
func (e ListingRatingUpdated) OccurredAt() time.Time { return e.At }

type ListingDeleted struct {
	ListingID         ListingID
	HostID            HostID
	CancelledBookings int
	At                time.Time
}

func (e ListingDeleted) EventName() string     { return "listing.deleted" }
func (e ListingDeleted) AggregateID() string   { return string(e.ListingID) }
func (e ListingDeleted) OccurredAt() time.Time { return e.At }
