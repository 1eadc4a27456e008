package policies

import (
	"context"

	"rentals/internal/domain/listings"
)

// RatingRecomputer rebuilds a listing's aggregate rating from its reviews.
type RatingRecomputer interface {
	Recompute(ctx context.Context, listingID listings.ListingID) error
}
