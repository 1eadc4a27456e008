package reviews

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rentals/internal/app/handlers/support"
	"rentals/internal/app/outbox"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

const rollupAttempts = 3

// Rollup rebuilds a listing's rating from every review it has. Each call runs in a
// unit of its own so it can follow a committed review write.
type Rollup struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (r *Rollup) Recompute(ctx context.Context, listingID domainlistings.ListingID) error {
	var err error
	for attempt := 1; attempt <= rollupAttempts; attempt++ {
		err = r.recompute(ctx, listingID)
		if !errors.Is(err, domainlistings.ErrConcurrentWrite) {
			return err
		}
		if r.Logger != nil {
			r.Logger.Debug("rating rollup retry", "listing_id", listingID, "attempt", attempt)
		}
	}
	return err
}

func (r *Rollup) recompute(ctx context.Context, listingID domainlistings.ListingID) error {
	now := support.Clock(r.Now)
	return uow.Run(ctx, r.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		listing, err := unit.Listings().ByID(ctx, listingID)
		if err != nil {
			return err
		}
		items, err := unit.Reviews().ListByListing(ctx, listingID)
		if err != nil {
			return err
		}
		summary := domainreviews.Summarize(items)
		listing.ApplyRating(summary, now)
		if err := unit.Listings().Save(ctx, listing); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, r.Outbox, support.Encoder(r.Encoder), listing); err != nil {
			return err
		}
		if r.Logger != nil {
			r.Logger.Info("listing rating recomputed", "listing_id", listingID, "average", summary.Average, "count", summary.Count)
		}
		return nil
	})
}

var _ policies.RatingRecomputer = (*Rollup)(nil)
