package dto

import (
	"time"

	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

type Review struct {
	ID         string                       `json:"id"`
	BookingID  string                       `json:"bookingId"`
	ListingID  string                       `json:"listingId"`
	AuthorID   string                       `json:"authorId"`
	Rating     int                          `json:"rating"`
	Categories domainreviews.CategoryScores `json:"categories"`
	Text       string                       `json:"text,omitempty"`
	CreatedAt  time.Time                    `json:"createdAt"`
	UpdatedAt  time.Time                    `json:"updatedAt"`
}

func MapReview(r *domainreviews.Review) Review {
	return Review{
		ID:         string(r.ID),
		BookingID:  string(r.BookingID),
		ListingID:  string(r.ListingID),
		AuthorID:   string(r.AuthorID),
		Rating:     r.Rating,
		Categories: r.Categories,
		Text:       r.Text,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type ListingRating struct {
	ListingID string                       `json:"listingId"`
	Rating    domainlistings.RatingSummary `json:"rating"`
}
