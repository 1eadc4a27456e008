package listings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/booking"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/user"
)

const (
	DeleteListingKey = "listing.delete"

	// RemovalReason is stamped on bookings cancelled because their listing went away.
	RemovalReason = "listing removed"
)

type DeleteListingCommand struct {
	Actor     user.Principal
	ListingID string `validate:"required"`
}

func (c DeleteListingCommand) Key() string               { return DeleteListingKey }
func (c DeleteListingCommand) LockKey() string           { return booking.ListingLockKey(c.ListingID) }
func (c DeleteListingCommand) Principal() user.Principal { return c.Actor }

type DeleteListingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

// Handle cancels every open booking of the listing and deletes it in one unit. Any
// failure leaves both the bookings and the listing as they were.
func (h *DeleteListingHandler) Handle(ctx context.Context, cmd DeleteListingCommand) (dto.ListingDeletion, error) {
	now := support.Clock(h.Now)
	out := dto.ListingDeletion{ListingID: cmd.ListingID, CancelledBookings: []string{}}
	err := support.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
		if err != nil {
			return err
		}
		if !cmd.Actor.IsAdmin() && !listing.IsHostedBy(domainlistings.HostID(cmd.Actor.ID)) {
			return fmt.Errorf("%w: listing %s belongs to another host", domainbooking.ErrUnauthorized, listing.ID)
		}
		bookings, err := unit.Bookings().ListByListing(ctx, listing.ID)
		if err != nil {
			return err
		}
		recorders := make([]outbox.Recorder, 0, len(bookings)+1)
		for _, b := range bookings {
			if !b.Status.Blocks() {
				continue
			}
			if err := b.ForceCancel(RemovalReason, now); err != nil {
				return err
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			out.CancelledBookings = append(out.CancelledBookings, string(b.ID))
			recorders = append(recorders, b)
		}
		listing.MarkDeleted(len(out.CancelledBookings), now)
		if err := unit.Listings().Delete(ctx, listing.ID); err != nil {
			return err
		}
		recorders = append(recorders, listing)
		return outbox.RecordDomainEvents(ctx, h.Outbox, support.Encoder(h.Encoder), recorders...)
	})
	if err != nil {
		return dto.ListingDeletion{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("listing deleted", "listing_id", cmd.ListingID, "cancelled_bookings", len(out.CancelledBookings))
	}
	return out, nil
}

var _ commands.Handler[DeleteListingCommand, dto.ListingDeletion] = (*DeleteListingHandler)(nil)
