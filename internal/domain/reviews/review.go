package reviews

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentals/internal/domain/booking"
	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/events"
	"rentals/internal/domain/user"
)

var (
	ErrInvalidRating = errors.New("reviews: ratings must be between 1 and 5")
	ErrNotFound      = errors.New("reviews: not found")
	ErrAlreadyExists = errors.New("reviews: booking already reviewed")
	ErrNotAuthor     = errors.New("reviews: only the author may change a review")
)

const (
	MinScore = 1
	MaxScore = 5
)

type ReviewID string

// CategoryScores are the six sub-ratings a guest gives next to the overall score.
type CategoryScores struct {
	Cleanliness   int `json:"cleanliness" validate:"min=1,max=5"`
	Accuracy      int `json:"accuracy" validate:"min=1,max=5"`
	CheckIn       int `json:"checkIn" validate:"min=1,max=5"`
	Communication int `json:"communication" validate:"min=1,max=5"`
	Location      int `json:"location" validate:"min=1,max=5"`
	Value         int `json:"value" validate:"min=1,max=5"`
}

func (c CategoryScores) valid() bool {
	for _, s := range []int{c.Cleanliness, c.Accuracy, c.CheckIn, c.Communication, c.Location, c.Value} {
		if s < MinScore || s > MaxScore {
			return false
		}
	}
	return true
}

type Review struct {
	ID         ReviewID
	BookingID  booking.BookingID
	AuthorID   user.ID
	ListingID  listings.ListingID
	Rating     int
	Categories CategoryScores
	Text       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ReviewID) (*Review, error)
	ByBooking(ctx context.Context, bookingID booking.BookingID) (*Review, error)
	ListByListing(ctx context.Context, listingID listings.ListingID) ([]*Review, error)
	Save(ctx context.Context, review *Review) error
	Delete(ctx context.Context, id ReviewID) error
}

type SubmitParams struct {
	ID         ReviewID
	Booking    *booking.Booking
	AuthorID   user.ID
	Rating     int
	Categories CategoryScores
	Text       string
	Now        time.Time
}

// Submit requires a completed stay by the author.
func Submit(params SubmitParams) (*Review, error) {
	b := params.Booking
	if b == nil {
		return nil, booking.ErrNotFound
	}
	if b.GuestID != params.AuthorID {
		return nil, booking.ErrUnauthorized
	}
	if b.Status != booking.StatusCompleted {
		return nil, booking.ErrNotCheckedOut
	}
	if params.Rating < MinScore || params.Rating > MaxScore || !params.Categories.valid() {
		return nil, ErrInvalidRating
	}
	now := params.Now.UTC()
	review := &Review{
		ID:         params.ID,
		BookingID:  b.ID,
		AuthorID:   params.AuthorID,
		ListingID:  b.ListingID,
		Rating:     params.Rating,
		Categories: params.Categories,
		Text:       strings.TrimSpace(params.Text),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	review.Record(ReviewSubmitted{ReviewID: review.ID, BookingID: review.BookingID, ListingID: review.ListingID, Rating: review.Rating, At: now})
	return review, nil
}

func (r *Review) Update(author user.ID, rating int, categories CategoryScores, text string, now time.Time) error {
	if r.AuthorID != author {
		return ErrNotAuthor
	}
	if rating < MinScore || rating > MaxScore || !categories.valid() {
		return ErrInvalidRating
	}
	r.Rating = rating
	r.Categories = categories
	r.Text = strings.TrimSpace(text)
	r.UpdatedAt = now.UTC()
	r.Record(ReviewUpdated{ReviewID: r.ID, ListingID: r.ListingID, At: r.UpdatedAt})
	return nil
}

// MarkDeleted allows the author or an admin to remove the review.
func (r *Review) MarkDeleted(actor user.Principal, now time.Time) error {
	if r.AuthorID != actor.ID && !actor.IsAdmin() {
		return ErrNotAuthor
	}
	r.Record(ReviewDeleted{ReviewID: r.ID, ListingID: r.ListingID, At: now.UTC()})
	return nil
}
