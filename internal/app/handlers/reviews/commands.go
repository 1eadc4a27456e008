package reviews

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/outbox"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/user"
)

const (
	SubmitReviewKey = "review.submit"
	UpdateReviewKey = "review.update"
	DeleteReviewKey = "review.delete"
)

// Deps are shared by the review handlers. Review commands own their unit so the
// rating rollup can run after the commit.
type Deps struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Ratings    policies.RatingRecomputer
	Logger     *slog.Logger
	Now        func() time.Time
}

// recompute refreshes the listing rating. Failures are logged only: the review is
// already stored and the next rollup repairs the aggregate.
func (d Deps) recompute(ctx context.Context, listingID domainlistings.ListingID) {
	if d.Ratings == nil {
		return
	}
	if err := d.Ratings.Recompute(ctx, listingID); err != nil && d.Logger != nil {
		d.Logger.Warn("rating rollup failed", "listing_id", listingID, "error", err)
	}
}

type SubmitReviewCommand struct {
	ReviewID   string
	Actor      user.Principal
	BookingID  string `validate:"required"`
	Rating     int    `validate:"min=1,max=5"`
	Categories domainreviews.CategoryScores
	Text       string `validate:"max=4000"`
}

func (c SubmitReviewCommand) Key() string               { return SubmitReviewKey }
func (c SubmitReviewCommand) Principal() user.Principal { return c.Actor }
func (c SubmitReviewCommand) SkipTransaction() bool     { return true }

type SubmitReviewHandler struct {
	Deps
}

// Handle completes a confirmed stay whose check-out has passed before accepting the
// review, so guests do not wait on a scheduler.
func (h *SubmitReviewHandler) Handle(ctx context.Context, cmd SubmitReviewCommand) (dto.Review, error) {
	now := support.Clock(h.Now)
	id := cmd.ReviewID
	if id == "" {
		id = uuid.NewString()
	}
	var out dto.Review
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		if b.GuestID != cmd.Actor.ID {
			return domainbooking.ErrUnauthorized
		}
		existing, err := unit.Reviews().ByBooking(ctx, b.ID)
		switch {
		case err == nil && existing != nil:
			return domainreviews.ErrAlreadyExists
		case err != nil && !errors.Is(err, domainreviews.ErrNotFound):
			return err
		}
		recorders := []outbox.Recorder{}
		if b.CompleteIfDue(now) {
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			recorders = append(recorders, b)
		}
		review, err := domainreviews.Submit(domainreviews.SubmitParams{
			ID:         domainreviews.ReviewID(id),
			Booking:    b,
			AuthorID:   cmd.Actor.ID,
			Rating:     cmd.Rating,
			Categories: cmd.Categories,
			Text:       cmd.Text,
			Now:        now,
		})
		if err != nil {
			return err
		}
		if err := unit.Reviews().Save(ctx, review); err != nil {
			return err
		}
		recorders = append(recorders, review)
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, support.Encoder(h.Encoder), recorders...); err != nil {
			return err
		}
		out = dto.MapReview(review)
		return nil
	})
	if err != nil {
		return dto.Review{}, err
	}
	h.recompute(ctx, domainlistings.ListingID(out.ListingID))
	return out, nil
}

type UpdateReviewCommand struct {
	Actor      user.Principal
	ReviewID   string `validate:"required"`
	Rating     int    `validate:"min=1,max=5"`
	Categories domainreviews.CategoryScores
	Text       string `validate:"max=4000"`
}

func (c UpdateReviewCommand) Key() string               { return UpdateReviewKey }
func (c UpdateReviewCommand) Principal() user.Principal { return c.Actor }
func (c UpdateReviewCommand) SkipTransaction() bool     { return true }

type UpdateReviewHandler struct {
	Deps
}

func (h *UpdateReviewHandler) Handle(ctx context.Context, cmd UpdateReviewCommand) (dto.Review, error) {
	now := support.Clock(h.Now)
	var out dto.Review
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		review, err := unit.Reviews().ByID(ctx, domainreviews.ReviewID(cmd.ReviewID))
		if err != nil {
			return err
		}
		if err := review.Update(cmd.Actor.ID, cmd.Rating, cmd.Categories, cmd.Text, now); err != nil {
			return err
		}
		if err := unit.Reviews().Save(ctx, review); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, support.Encoder(h.Encoder), review); err != nil {
			return err
		}
		out = dto.MapReview(review)
		return nil
	})
	if err != nil {
		return dto.Review{}, err
	}
	h.recompute(ctx, domainlistings.ListingID(out.ListingID))
	return out, nil
}

type DeleteReviewCommand struct {
	Actor    user.Principal
	ReviewID string `validate:"required"`
}

func (c DeleteReviewCommand) Key() string               { return DeleteReviewKey }
func (c DeleteReviewCommand) Principal() user.Principal { return c.Actor }
func (c DeleteReviewCommand) SkipTransaction() bool     { return true }

type DeleteReviewHandler struct {
	Deps
}

func (h *DeleteReviewHandler) Handle(ctx context.Context, cmd DeleteReviewCommand) (dto.ListingRating, error) {
	now := support.Clock(h.Now)
	var listingID domainlistings.ListingID
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		review, err := unit.Reviews().ByID(ctx, domainreviews.ReviewID(cmd.ReviewID))
		if err != nil {
			return err
		}
		if err := review.MarkDeleted(cmd.Actor, now); err != nil {
			return err
		}
		if err := unit.Reviews().Delete(ctx, review.ID); err != nil {
			return err
		}
		listingID = review.ListingID
		return outbox.RecordDomainEvents(ctx, h.Outbox, support.Encoder(h.Encoder), review)
	})
	if err != nil {
		return dto.ListingRating{}, err
	}
	h.recompute(ctx, listingID)
	out := dto.ListingRating{ListingID: string(listingID)}
	if unit, cctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory); err == nil {
		if cleanup != nil {
			defer cleanup()
		}
		if listing, err := unit.Listings().ByID(cctx, listingID); err == nil {
			out.Rating = listing.Rating
		}
	}
	return out, nil
}

var (
	_ commands.Handler[SubmitReviewCommand, dto.Review]        = (*SubmitReviewHandler)(nil)
	_ commands.Handler[UpdateReviewCommand, dto.Review]        = (*UpdateReviewHandler)(nil)
	_ commands.Handler[DeleteReviewCommand, dto.ListingRating] = (*DeleteReviewHandler)(nil)
)
