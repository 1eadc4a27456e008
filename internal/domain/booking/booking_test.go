package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
	"rentals/internal/domain/user"
)

var (
	now   = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	guest = user.Principal{ID: "guest-1", Role: user.RoleGuest}
	host  = user.Principal{ID: "host-1", Role: user.RoleHost}
	admin = user.Principal{ID: "admin-1", Role: user.RoleAdmin}
	other = user.Principal{ID: "guest-2", Role: user.RoleGuest}
)

func testListing(t *testing.T) *listings.Listing {
	t.Helper()
	l, err := listings.NewListing(listings.CreateListingParams{
		ID:          "lst-1",
		Host:        "host-1",
		Title:       "Loft",
		NightlyRate: money.Must(100, "USD"),
		MaxGuests:   4,
		Active:      true,
		Now:         now,
	})
	require.NoError(t, err)
	return l
}

func stay(t *testing.T, fromDay, toDay int) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(time.Date(2025, 6, fromDay, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, toDay, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return dr
}

func newTestBooking(t *testing.T, l *listings.Listing, dr daterange.DateRange) *Booking {
	t.Helper()
	price, err := pricing.ComputePrice(l.NightlyRate, dr.CheckIn, dr.CheckOut)
	require.NoError(t, err)
	b, err := NewBooking(CreateParams{
		ID:      "bk-1",
		Listing: l,
		Guest:   guest,
		Range:   dr,
		Guests:  Guests{Adults: 2},
		Price:   price,
		Now:     now,
	})
	require.NoError(t, err)
	b.Drain()
	return b
}

func TestNewBooking_Guards(t *testing.T) {
	l := testListing(t)
	price, err := pricing.ComputePrice(l.NightlyRate, stay(t, 10, 13).CheckIn, stay(t, 10, 13).CheckOut)
	require.NoError(t, err)
	base := CreateParams{ID: "b", Listing: l, Guest: guest, Range: stay(t, 10, 13), Guests: Guests{Adults: 1}, Price: price, Now: now}

	cases := []struct {
		name   string
		mutate func(p *CreateParams)
		want   error
	}{
		{"own listing", func(p *CreateParams) { p.Guest = host }, ErrUnauthorized},
		{"anonymous", func(p *CreateParams) { p.Guest = user.Principal{} }, ErrUnauthorized},
		{"past check-in", func(p *CreateParams) { p.Range = stay(t, 1, 3); p.Now = now.AddDate(0, 0, 5) }, ErrInvalidDateRange},
		{"too many guests", func(p *CreateParams) { p.Guests = Guests{Adults: 3, Children: 1, Infants: 1} }, ErrCapacityExceeded},
		{"no adults", func(p *CreateParams) { p.Guests = Guests{Children: 1} }, ErrInvalidGuests},
		{"inactive listing", func(p *CreateParams) { l2 := *p.Listing; l2.Active = false; p.Listing = &l2 }, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			_, err := NewBooking(p)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewBooking_InstantBookConfirms(t *testing.T) {
	l := testListing(t)
	l.InstantBook = true
	b := newTestBooking(t, l, stay(t, 10, 13))
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, PaymentPending, b.PaymentStatus)
}

func TestBooking_TransitionTable(t *testing.T) {
	statuses := []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}
	legal := map[[2]Status]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusConfirmed, StatusCompleted}: true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, legal[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	for _, terminal := range []Status{StatusCancelled, StatusCompleted} {
		assert.True(t, terminal.IsTerminal())
		assert.False(t, terminal.Blocks())
	}
}

func TestBooking_Confirm_OnlyHostSide(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))

	assert.ErrorIs(t, b.Confirm(guest, now), ErrUnauthorized)
	assert.ErrorIs(t, b.Confirm(other, now), ErrUnauthorized)
	assert.Equal(t, StatusPending, b.Status)

	require.NoError(t, b.Confirm(host, now))
	assert.Equal(t, StatusConfirmed, b.Status)
	evs := b.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, "booking.confirmed", evs[0].EventName())

	assert.ErrorIs(t, b.Confirm(host, now), ErrInvalidState)
}

func TestBooking_Cancel_RecordsWhoAndWhy(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	require.NoError(t, b.Cancel(guest, "  plans changed ", now))

	require.NotNil(t, b.Cancellation)
	assert.Equal(t, guest.ID, b.Cancellation.CancelledBy)
	assert.Equal(t, "plans changed", b.Cancellation.Reason)
	assert.ErrorIs(t, b.Cancel(host, "", now), ErrInvalidState)
}

func TestBooking_Complete_RequiresCheckOut(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	require.NoError(t, b.Confirm(host, now))

	assert.ErrorIs(t, b.Complete(host, now), ErrNotCheckedOut)
	assert.ErrorIs(t, b.Complete(guest, b.Range.CheckOut), ErrUnauthorized)
	require.NoError(t, b.Complete(host, b.Range.CheckOut))
	assert.Equal(t, StatusCompleted, b.Status)
}

func TestBooking_CompleteIfDue(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	assert.False(t, b.CompleteIfDue(b.Range.CheckOut.Add(time.Hour)), "pending stays are not completed")

	require.NoError(t, b.Confirm(host, now))
	assert.False(t, b.CompleteIfDue(b.Range.CheckIn))
	assert.True(t, b.CompleteIfDue(b.Range.CheckOut))
	assert.Equal(t, StatusCompleted, b.Status)
}

func TestBooking_ApplyPatch_ValidatesBeforeWriting(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	notes := "late arrival"
	confirmed := StatusConfirmed

	err := b.ApplyPatch(guest, Patch{Status: &confirmed, SpecialRequests: &notes}, 4, now)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, b.SpecialRequests, "rejected patch must not touch other fields")

	err = b.ApplyPatch(guest, Patch{Guests: &Guests{Adults: 5}}, 4, now)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	require.NoError(t, b.ApplyPatch(host, Patch{Status: &confirmed, SpecialRequests: &notes}, 4, now))
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, notes, b.SpecialRequests)

	assert.ErrorIs(t, b.ApplyPatch(other, Patch{SpecialRequests: &notes}, 4, now), ErrUnauthorized)
}

func TestBooking_ApplyPatch_ClosedIsReadOnly(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	require.NoError(t, b.Cancel(guest, "", now))
	notes := "x"
	assert.ErrorIs(t, b.ApplyPatch(guest, Patch{SpecialRequests: &notes}, 4, now), ErrInvalidState)
}

func TestBooking_MarkPaid_IsIdempotentAndConfirms(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	b.AttachPaymentIntent("pi_1", now)

	assert.True(t, b.MarkPaid("pi_1", now))
	assert.Equal(t, PaymentPaid, b.PaymentStatus)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Len(t, b.Drain(), 2)

	assert.False(t, b.MarkPaid("pi_1", now))
	assert.Empty(t, b.Drain())
	assert.False(t, b.MarkPaymentFailed(now), "a captured payment never goes back to failed")
}

func TestBooking_MarkPaid_KeepsCancelledStatus(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	require.NoError(t, b.Cancel(guest, "", now))
	assert.True(t, b.MarkPaid("pi_1", now))
	assert.Equal(t, StatusCancelled, b.Status)
}

func TestBooking_CanCollectPayment(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	assert.NoError(t, b.CanCollectPayment(guest))
	assert.ErrorIs(t, b.CanCollectPayment(host), ErrUnauthorized)

	b.MarkPaid("pi", now)
	assert.ErrorIs(t, b.CanCollectPayment(guest), ErrInvalidState)
}

func TestBooking_PrepareRefund(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	_, err := b.PrepareRefund(host, nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	b.MarkPaid("pi_1", now)
	_, err = b.PrepareRefund(guest, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	full, err := b.PrepareRefund(host, nil)
	require.NoError(t, err)
	assert.Equal(t, b.Price.Total, full)

	tooMuch := money.Must(b.Price.Total.Amount+1, "USD")
	_, err = b.PrepareRefund(admin, &tooMuch)
	assert.ErrorIs(t, err, ErrInvalidRefund)

	partial := money.Money{Amount: 100}
	got, err := b.PrepareRefund(admin, &partial)
	require.NoError(t, err)
	assert.Equal(t, money.Must(100, "USD"), got)
	assert.Equal(t, PaymentPaid, b.PaymentStatus, "prepare never mutates")

	b.RecordRefund(admin, got, "goodwill", "re_1", now)
	assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	require.NotNil(t, b.Refund)
	assert.Equal(t, got, b.Refund.Amount)
	assert.Equal(t, "re_1", b.Refund.ID)
}

func TestBooking_RecordRefund_LeavesLiveStayUncancelled(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	b.MarkPaid("pi_1", now)
	b.RecordRefund(host, b.Price.Total, "", "re_1", now)

	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Nil(t, b.Cancellation)
	require.NotNil(t, b.Refund)
	assert.Equal(t, host.ID, b.Refund.By)

	require.NoError(t, b.Cancel(guest, "", now))
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, guest.ID, b.Cancellation.CancelledBy)
	assert.Equal(t, b.Price.Total, b.Cancellation.RefundAmount)
}

func TestBooking_RecordRefund_AfterCancelKeepsCancellation(t *testing.T) {
	b := newTestBooking(t, testListing(t), stay(t, 10, 13))
	b.MarkPaid("pi_1", now)
	require.NoError(t, b.Cancel(guest, "plans changed", now))

	partial := money.Must(100, "USD")
	b.RecordRefund(admin, partial, "", "re_1", now)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, guest.ID, b.Cancellation.CancelledBy)
	assert.Equal(t, partial, b.Cancellation.RefundAmount)
}
