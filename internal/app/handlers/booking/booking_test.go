package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/apptest"
	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/infra/validation"
)

func create(t *testing.T, h *apptest.Harness, guest string, in, out int) (dto.Booking, error) {
	t.Helper()
	return commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CreateBookingCommand{
		Actor:     apptest.Guest(guest),
		ListingID: "lst-1",
		CheckIn:   apptest.Date(in),
		CheckOut:  apptest.Date(out),
		Guests:    domainbooking.Guests{Adults: 2},
	})
}

func TestCreateBooking_PricesAndStoresPending(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)

	b, err := create(t, h, "guest-1", 10, 13)
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusPending), b.Status)
	assert.Equal(t, string(domainbooking.PaymentPending), b.PaymentStatus)
	assert.Equal(t, "host-1", b.HostID)
	assert.Equal(t, int64(410), b.TotalPrice.Amount)
	assert.Equal(t, []string{"booking.created"}, h.EventNames())
}

func TestCreateBooking_BackToBackAllowedOverlapRejected(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)

	x, err := create(t, h, "guest-1", 1, 5)
	require.NoError(t, err)
	_, err = commands.Dispatch[bookingapp.ConfirmBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.ConfirmBookingCommand{
		Actor: apptest.Host("host-1"), BookingID: x.ID,
	})
	require.NoError(t, err)

	_, err = create(t, h, "guest-2", 4, 7)
	assert.ErrorIs(t, err, domainbooking.ErrConflict)

	_, err = create(t, h, "guest-2", 5, 8)
	assert.NoError(t, err)
}

func TestCreateBooking_ConcurrentOverlapsAdmitOne(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)

	const attempts = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := create(t, h, "guest-"+string(rune('a'+i)), 10, 12+i%3)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, domainbooking.ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
}

// Two units that both skipped the listing lock each see free dates; the second
// commit must still fail because both rewrote the listing.
func TestCreateBooking_UnlockedUnitsConflictAtCommit(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	handler := &bookingapp.CreateBookingHandler{Deps: bookingapp.Deps{UoWFactory: h.Factory, Now: h.Clock.Now}}
	ctx := context.Background()

	begin := func() (uow.UnitOfWork, context.Context) {
		unit, err := h.Factory.Begin(ctx, uow.TxOptions{})
		require.NoError(t, err)
		return unit, uow.Bind(ctx, unit)
	}
	unitA, ctxA := begin()
	unitB, ctxB := begin()

	_, err := handler.Handle(ctxA, bookingapp.CreateBookingCommand{
		Actor: apptest.Guest("guest-a"), ListingID: "lst-1", CheckIn: apptest.Date(10), CheckOut: apptest.Date(13),
		Guests: domainbooking.Guests{Adults: 1},
	})
	require.NoError(t, err)
	_, err = handler.Handle(ctxB, bookingapp.CreateBookingCommand{
		Actor: apptest.Guest("guest-b"), ListingID: "lst-1", CheckIn: apptest.Date(11), CheckOut: apptest.Date(14),
		Guests: domainbooking.Guests{Adults: 1},
	})
	require.NoError(t, err)

	require.NoError(t, unitA.Commit(ctxA))
	assert.ErrorIs(t, unitB.Commit(ctxB), domainlistings.ErrConcurrentWrite)

	mine, err := queries.Ask[bookingapp.ListHostBookingsQuery, dto.BookingCollection](ctx, h.Queries, bookingapp.ListHostBookingsQuery{Actor: apptest.Host("host-1")})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)
}

func TestCreateBooking_Guards(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 2)
	ctx := context.Background()

	_, err := commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](ctx, h.Commands, bookingapp.CreateBookingCommand{
		Actor: apptest.Guest("g"), ListingID: "lst-1", CheckIn: apptest.Date(10), CheckOut: apptest.Date(12),
		Guests: domainbooking.Guests{Adults: 2, Children: 1},
	})
	assert.ErrorIs(t, err, domainbooking.ErrCapacityExceeded)

	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](ctx, h.Commands, bookingapp.CreateBookingCommand{
		Actor: apptest.Guest("g"), ListingID: "lst-1", CheckIn: apptest.Date(12), CheckOut: apptest.Date(10),
		Guests: domainbooking.Guests{Adults: 1},
	})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidDateRange)
	assert.NotErrorIs(t, err, validation.ErrInvalidRequest)

	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](ctx, h.Commands, bookingapp.CreateBookingCommand{
		Actor: apptest.Guest("g"), ListingID: "lst-1", CheckIn: apptest.Date(12), CheckOut: apptest.Date(12),
		Guests: domainbooking.Guests{Adults: 1},
	})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidDateRange)

	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](ctx, h.Commands, bookingapp.CreateBookingCommand{
		Actor: apptest.Host("host-1"), ListingID: "lst-1", CheckIn: apptest.Date(10), CheckOut: apptest.Date(12),
		Guests: domainbooking.Guests{Adults: 1},
	})
	assert.ErrorIs(t, err, domainbooking.ErrUnauthorized)

	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](ctx, h.Commands, bookingapp.CreateBookingCommand{
		ListingID: "lst-1", CheckIn: apptest.Date(10), CheckOut: apptest.Date(12),
		Guests: domainbooking.Guests{Adults: 1},
	})
	assert.ErrorIs(t, err, domainbooking.ErrUnauthorized)
	assert.Empty(t, h.EventNames())
}

func TestCreateBooking_IdempotentReplay(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	cmd := bookingapp.CreateBookingCommand{
		Actor: apptest.Guest("guest-1"), ListingID: "lst-1", CheckIn: apptest.Date(10), CheckOut: apptest.Date(12),
		Guests: domainbooking.Guests{Adults: 1}, IdempotencyKeyV: "req-1",
	}
	first, err := commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](context.Background(), h.Commands, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](context.Background(), h.Commands, cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{"booking.created"}, h.EventNames())
}

func TestConfirmBooking_GuestRejectedHostAccepted(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	b, err := create(t, h, "guest-1", 10, 12)
	require.NoError(t, err)

	_, err = commands.Dispatch[bookingapp.ConfirmBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.ConfirmBookingCommand{
		Actor: apptest.Guest("guest-1"), BookingID: b.ID,
	})
	assert.ErrorIs(t, err, domainbooking.ErrUnauthorized)

	confirmed, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.ConfirmBookingCommand{
		Actor: apptest.Host("host-1"), BookingID: b.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusConfirmed), confirmed.Status)
}

func TestCancelBooking_FreesDates(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	b, err := create(t, h, "guest-1", 10, 12)
	require.NoError(t, err)

	cancelled, err := commands.Dispatch[bookingapp.CancelBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CancelBookingCommand{
		Actor: apptest.Guest("guest-1"), BookingID: b.ID, Reason: "plans changed",
	})
	require.NoError(t, err)
	require.NotNil(t, cancelled.Cancellation)
	assert.Equal(t, "guest-1", cancelled.Cancellation.CancelledBy)

	_, err = create(t, h, "guest-2", 10, 12)
	assert.NoError(t, err)
}

func TestTransitions_ConfirmRacingCancelEndsCancelled(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := apptest.New(t)
		h.SeedListing(t, "lst-1", "host-1", 100, 4)
		b, err := create(t, h, "guest-1", 10, 12)
		require.NoError(t, err)

		var confirmErr, cancelErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, confirmErr = commands.Dispatch[bookingapp.ConfirmBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.ConfirmBookingCommand{
				Actor: apptest.Host("host-1"), BookingID: b.ID,
			})
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = commands.Dispatch[bookingapp.CancelBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CancelBookingCommand{
				Actor: apptest.Guest("guest-1"), BookingID: b.ID,
			})
		}()
		wg.Wait()

		require.NoError(t, cancelErr, "a pending or confirmed stay can always be cancelled")
		if confirmErr != nil {
			assert.True(t, errors.Is(confirmErr, domainbooking.ErrInvalidState) || errors.Is(confirmErr, domainbooking.ErrConcurrentUpdate), confirmErr)
		}
		got, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](context.Background(), h.Queries, bookingapp.GetBookingQuery{
			Actor: apptest.Guest("guest-1"), BookingID: b.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, string(domainbooking.StatusCancelled), got.Status)
		require.NotNil(t, got.Cancellation)
		assert.Equal(t, "guest-1", got.Cancellation.CancelledBy)
	}
}

func TestTransitions_ConcurrentCancelsAdmitOne(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	b, err := create(t, h, "guest-1", 10, 12)
	require.NoError(t, err)

	actors := []string{"guest-1", "host-1"}
	errs := make([]error, len(actors))
	var wg sync.WaitGroup
	for i, id := range actors {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			actor := apptest.Guest(id)
			if id == "host-1" {
				actor = apptest.Host(id)
			}
			_, errs[i] = commands.Dispatch[bookingapp.CancelBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CancelBookingCommand{
				Actor: actor, BookingID: b.ID,
			})
		}(i, id)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domainbooking.ErrInvalidState)
	}
	assert.Equal(t, 1, ok)

	var cancelled int
	for _, name := range h.EventNames() {
		if name == "booking.cancelled" {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled)
}

func TestCompleteBooking_RequiresCheckOut(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	b, err := create(t, h, "guest-1", 10, 12)
	require.NoError(t, err)
	host := apptest.Host("host-1")
	_, err = commands.Dispatch[bookingapp.ConfirmBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.ConfirmBookingCommand{Actor: host, BookingID: b.ID})
	require.NoError(t, err)

	_, err = commands.Dispatch[bookingapp.CompleteBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CompleteBookingCommand{Actor: host, BookingID: b.ID})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)

	h.Clock.Set(apptest.Date(12))
	done, err := commands.Dispatch[bookingapp.CompleteBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CompleteBookingCommand{Actor: host, BookingID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCompleted), done.Status)
}

func TestUpdateBooking_StatusGoesThroughPolicy(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	b, err := create(t, h, "guest-1", 10, 12)
	require.NoError(t, err)
	confirmed := "confirmed"
	notes := "crib please"

	_, err = commands.Dispatch[bookingapp.UpdateBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.UpdateBookingCommand{
		Actor: apptest.Guest("guest-1"), BookingID: b.ID, Status: &confirmed, SpecialRequests: &notes,
	})
	assert.ErrorIs(t, err, domainbooking.ErrUnauthorized)

	got, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](context.Background(), h.Queries, bookingapp.GetBookingQuery{Actor: apptest.Guest("guest-1"), BookingID: b.ID})
	require.NoError(t, err)
	assert.Empty(t, got.SpecialRequests)
	assert.Equal(t, string(domainbooking.StatusPending), got.Status)

	updated, err := commands.Dispatch[bookingapp.UpdateBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.UpdateBookingCommand{
		Actor: apptest.Host("host-1"), BookingID: b.ID, Status: &confirmed, SpecialRequests: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusConfirmed), updated.Status)
	assert.Equal(t, notes, updated.SpecialRequests)
}

func TestQueries_VisibilityAndAvailability(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	b, err := create(t, h, "guest-1", 10, 12)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = queries.Ask[bookingapp.GetBookingQuery, dto.Booking](ctx, h.Queries, bookingapp.GetBookingQuery{Actor: apptest.Guest("guest-2"), BookingID: b.ID})
	assert.ErrorIs(t, err, domainbooking.ErrUnauthorized)

	mine, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](ctx, h.Queries, bookingapp.ListGuestBookingsQuery{Actor: apptest.Guest("guest-1")})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)

	hosted, err := queries.Ask[bookingapp.ListHostBookingsQuery, dto.BookingCollection](ctx, h.Queries, bookingapp.ListHostBookingsQuery{Actor: apptest.Host("host-1")})
	require.NoError(t, err)
	assert.Len(t, hosted.Items, 1)

	avail, err := queries.Ask[bookingapp.CheckAvailabilityQuery, dto.Availability](ctx, h.Queries, bookingapp.CheckAvailabilityQuery{ListingID: "lst-1", CheckIn: apptest.Date(11), CheckOut: apptest.Date(14)})
	require.NoError(t, err)
	assert.False(t, avail.Available)

	avail, err = queries.Ask[bookingapp.CheckAvailabilityQuery, dto.Availability](ctx, h.Queries, bookingapp.CheckAvailabilityQuery{ListingID: "lst-1", CheckIn: apptest.Date(12), CheckOut: apptest.Date(14)})
	require.NoError(t, err)
	assert.True(t, avail.Available)

	quote, err := queries.Ask[bookingapp.QuotePriceQuery, dto.Quote](ctx, h.Queries, bookingapp.QuotePriceQuery{ListingID: "lst-1", CheckIn: apptest.Date(1), CheckOut: apptest.Date(4)})
	require.NoError(t, err)
	assert.Equal(t, int64(410), quote.Price.TotalPrice.Amount)
}

func TestGetCalendar_ListsHeldNightsInOrder(t *testing.T) {
	h := apptest.New(t)
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	late, err := create(t, h, "guest-1", 20, 23)
	require.NoError(t, err)
	early, err := create(t, h, "guest-2", 10, 12)
	require.NoError(t, err)
	gone, err := create(t, h, "guest-3", 14, 16)
	require.NoError(t, err)
	_, err = commands.Dispatch[bookingapp.CancelBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CancelBookingCommand{
		Actor: apptest.Guest("guest-3"), BookingID: gone.ID,
	})
	require.NoError(t, err)

	cal, err := queries.Ask[bookingapp.GetCalendarQuery, dto.Calendar](context.Background(), h.Queries, bookingapp.GetCalendarQuery{
		ListingID: "lst-1", From: apptest.Date(1), To: apptest.Date(21),
	})
	require.NoError(t, err)
	require.Len(t, cal.Blocks, 2)
	assert.Equal(t, early.ID, cal.Blocks[0].BookingID)
	assert.Equal(t, late.ID, cal.Blocks[1].BookingID)

	cal, err = queries.Ask[bookingapp.GetCalendarQuery, dto.Calendar](context.Background(), h.Queries, bookingapp.GetCalendarQuery{
		ListingID: "lst-1", From: apptest.Date(12), To: apptest.Date(20),
	})
	require.NoError(t, err)
	assert.Empty(t, cal.Blocks, "checkout and checkin days are free")
}
