package listings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/apptest"
	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	listingapp "rentals/internal/app/handlers/listings"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
)

func book(t *testing.T, h *apptest.Harness, guest string, in, out int) dto.Booking {
	t.Helper()
	b, err := commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CreateBookingCommand{
		Actor: apptest.Guest(guest), ListingID: "lst-1", CheckIn: apptest.Date(in), CheckOut: apptest.Date(out),
		Guests: domainbooking.Guests{Adults: 1},
	})
	require.NoError(t, err)
	return b
}

func confirm(t *testing.T, h *apptest.Harness, id string) {
	t.Helper()
	_, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.ConfirmBookingCommand{
		Actor: apptest.Host("host-1"), BookingID: id,
	})
	require.NoError(t, err)
}

func status(t *testing.T, h *apptest.Harness, id string) string {
	t.Helper()
	b, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](context.Background(), h.Queries, bookingapp.GetBookingQuery{Actor: apptest.Admin(), BookingID: id})
	require.NoError(t, err)
	return b.Status
}

func TestDeleteListing_CancelsOpenBookingsOnly(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)

	done := book(t, h, "guest-1", 2, 4)
	pending := book(t, h, "guest-2", 10, 12)
	confirmed := book(t, h, "guest-3", 20, 22)
	confirm(t, h, done.ID)
	confirm(t, h, confirmed.ID)
	h.Clock.Set(apptest.Date(4))
	_, err := commands.Dispatch[bookingapp.CompleteBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CompleteBookingCommand{
		Actor: apptest.Host("host-1"), BookingID: done.ID,
	})
	require.NoError(t, err)

	res, err := commands.Dispatch[listingapp.DeleteListingCommand, dto.ListingDeletion](context.Background(), h.Commands, listingapp.DeleteListingCommand{
		Actor: apptest.Host("host-1"), ListingID: "lst-1",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{pending.ID, confirmed.ID}, res.CancelledBookings)

	assert.Equal(t, string(domainbooking.StatusCancelled), status(t, h, pending.ID))
	assert.Equal(t, string(domainbooking.StatusCancelled), status(t, h, confirmed.ID))
	assert.Equal(t, string(domainbooking.StatusCompleted), status(t, h, done.ID))

	err = uow.Run(context.Background(), h.Factory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		_, err := unit.Listings().ByID(ctx, "lst-1")
		return err
	})
	assert.ErrorIs(t, err, domainlistings.ErrNotFound)
	assert.Contains(t, h.EventNames(), "listing.deleted")
}

func TestDeleteListing_OtherHostRejectedNothingChanges(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	b := book(t, h, "guest-1", 10, 12)

	_, err := commands.Dispatch[listingapp.DeleteListingCommand, dto.ListingDeletion](context.Background(), h.Commands, listingapp.DeleteListingCommand{
		Actor: apptest.Host("host-2"), ListingID: "lst-1",
	})
	assert.ErrorIs(t, err, domainbooking.ErrUnauthorized)
	assert.Equal(t, string(domainbooking.StatusPending), status(t, h, b.ID))
	assert.NotNil(t, h.Listing(t, "lst-1"))
}

func TestDeleteListing_AdminAndMissing(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)

	res, err := commands.Dispatch[listingapp.DeleteListingCommand, dto.ListingDeletion](context.Background(), h.Commands, listingapp.DeleteListingCommand{
		Actor: apptest.Admin(), ListingID: "lst-1",
	})
	require.NoError(t, err)
	assert.Empty(t, res.CancelledBookings)

	_, err = commands.Dispatch[listingapp.DeleteListingCommand, dto.ListingDeletion](context.Background(), h.Commands, listingapp.DeleteListingCommand{
		Actor: apptest.Admin(), ListingID: "lst-1",
	})
	assert.ErrorIs(t, err, domainlistings.ErrNotFound)
}
