package payments_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/apptest"
	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	paymentapp "rentals/internal/app/handlers/payments"
	"rentals/internal/app/policies"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/user"
	"rentals/internal/infra/payments/sandbox"
)

func bookWithIntent(t *testing.T, h *apptest.Harness) (dto.Booking, dto.PaymentIntent) {
	t.Helper()
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	ctx := context.Background()
	b, err := commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](ctx, h.Commands, bookingapp.CreateBookingCommand{
		Actor: apptest.Guest("guest-1"), ListingID: "lst-1", CheckIn: apptest.Date(10), CheckOut: apptest.Date(13),
		Guests: domainbooking.Guests{Adults: 2},
	})
	require.NoError(t, err)
	intent, err := commands.Dispatch[paymentapp.CreateIntentCommand, dto.PaymentIntent](ctx, h.Commands, paymentapp.CreateIntentCommand{
		Actor: apptest.Guest("guest-1"), BookingID: b.ID,
	})
	require.NoError(t, err)
	return b, intent
}

func webhook(t *testing.T, h *apptest.Harness, eventID, eventType, intentID, bookingID string) {
	t.Helper()
	payload := sandbox.EventPayload(eventID, eventType, intentID, map[string]string{policies.MetadataBookingID: bookingID})
	ack, err := commands.Dispatch[paymentapp.GatewayEventCommand, dto.WebhookAck](context.Background(), h.Commands, paymentapp.GatewayEventCommand{Payload: payload})
	require.NoError(t, err)
	assert.True(t, ack.Received)
}

func current(t *testing.T, h *apptest.Harness, id string) dto.Booking {
	t.Helper()
	b, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](context.Background(), h.Queries, bookingapp.GetBookingQuery{Actor: apptest.Admin(), BookingID: id})
	require.NoError(t, err)
	return b
}

func TestCreateIntent_ChargesTotalInMinorUnits(t *testing.T) {
	h := apptest.New(t)
	b, intent := bookWithIntent(t, h)

	assert.Equal(t, b.ID, intent.BookingID)
	assert.Equal(t, int64(410), intent.Amount.Amount)
	stored, err := h.Gateway.RetrieveIntent(context.Background(), intent.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, int64(41000), stored.AmountMinor)
	assert.Equal(t, b.ID, stored.Metadata[policies.MetadataBookingID])

	_, err = commands.Dispatch[paymentapp.CreateIntentCommand, dto.PaymentIntent](context.Background(), h.Commands, paymentapp.CreateIntentCommand{
		Actor: apptest.Host("host-1"), BookingID: b.ID,
	})
	assert.ErrorIs(t, err, domainbooking.ErrUnauthorized)
}

func TestGatewayEvent_SucceededIsIdempotent(t *testing.T) {
	h := apptest.New(t)
	b, intent := bookWithIntent(t, h)

	webhook(t, h, "evt_1", policies.EventPaymentSucceeded, intent.PaymentIntentID, b.ID)
	got := current(t, h, b.ID)
	assert.Equal(t, string(domainbooking.PaymentPaid), got.PaymentStatus)
	assert.Equal(t, string(domainbooking.StatusConfirmed), got.Status)
	events := len(h.EventNames())

	webhook(t, h, "evt_1", policies.EventPaymentSucceeded, intent.PaymentIntentID, b.ID)
	webhook(t, h, "evt_2", policies.EventPaymentSucceeded, intent.PaymentIntentID, b.ID)
	assert.Equal(t, got, current(t, h, b.ID))
	assert.Len(t, h.EventNames(), events, "replays must not emit events")
}

func TestGatewayEvent_FailedNeverDowngradesPaid(t *testing.T) {
	h := apptest.New(t)
	b, intent := bookWithIntent(t, h)

	webhook(t, h, "evt_f", policies.EventPaymentFailed, intent.PaymentIntentID, b.ID)
	assert.Equal(t, string(domainbooking.PaymentFailed), current(t, h, b.ID).PaymentStatus)

	webhook(t, h, "evt_s", policies.EventPaymentSucceeded, intent.PaymentIntentID, b.ID)
	webhook(t, h, "evt_f2", policies.EventPaymentFailed, intent.PaymentIntentID, b.ID)
	assert.Equal(t, string(domainbooking.PaymentPaid), current(t, h, b.ID).PaymentStatus)
}

func TestGatewayEvent_AcknowledgesUnknownAndBrokenDeliveries(t *testing.T) {
	h := apptest.New(t)
	b, intent := bookWithIntent(t, h)

	webhook(t, h, "evt_x", "charge.dispute.created", intent.PaymentIntentID, b.ID)
	webhook(t, h, "evt_y", policies.EventPaymentSucceeded, intent.PaymentIntentID, "missing-booking")

	ack, err := commands.Dispatch[paymentapp.GatewayEventCommand, dto.WebhookAck](context.Background(), h.Commands, paymentapp.GatewayEventCommand{Payload: []byte("{not json")})
	require.NoError(t, err)
	assert.True(t, ack.Received)

	assert.Equal(t, string(domainbooking.PaymentPending), current(t, h, b.ID).PaymentStatus)
}

func TestGatewayEvent_FailedApplyReleasesInboxClaim(t *testing.T) {
	h := apptest.New(t)
	b, intent := bookWithIntent(t, h)

	webhook(t, h, "evt_retry", policies.EventPaymentSucceeded, intent.PaymentIntentID, "not-yet-there")
	claimed, err := h.Inbox.Claim(context.Background(), paymentapp.InboxConsumer, "evt_retry")
	require.NoError(t, err)
	assert.True(t, claimed, "a failed delivery must be claimable again")

	webhook(t, h, "evt_ok", policies.EventPaymentSucceeded, intent.PaymentIntentID, b.ID)
	claimed, err = h.Inbox.Claim(context.Background(), paymentapp.InboxConsumer, "evt_ok")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestSyncStatus_FailsClosed(t *testing.T) {
	h := apptest.New(t)
	b, intent := bookWithIntent(t, h)
	ctx := context.Background()
	guest := apptest.Guest("guest-1")

	_, err := commands.Dispatch[paymentapp.SyncStatusCommand, dto.Booking](ctx, h.Commands, paymentapp.SyncStatusCommand{Actor: guest, BookingID: b.ID})
	assert.ErrorIs(t, err, domainbooking.ErrPaymentGateway)
	assert.Equal(t, string(domainbooking.PaymentPending), current(t, h, b.ID).PaymentStatus)

	h.Gateway.FailRetrieve = errors.New("upstream 500")
	h.Gateway.SetStatus(intent.PaymentIntentID, policies.IntentSucceeded)
	_, err = commands.Dispatch[paymentapp.SyncStatusCommand, dto.Booking](ctx, h.Commands, paymentapp.SyncStatusCommand{Actor: guest, BookingID: b.ID})
	assert.ErrorIs(t, err, domainbooking.ErrPaymentGateway)
	assert.Equal(t, string(domainbooking.PaymentPending), current(t, h, b.ID).PaymentStatus)

	h.Gateway.FailRetrieve = nil
	synced, err := commands.Dispatch[paymentapp.SyncStatusCommand, dto.Booking](ctx, h.Commands, paymentapp.SyncStatusCommand{Actor: guest, BookingID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.PaymentPaid), synced.PaymentStatus)
	assert.Equal(t, string(domainbooking.StatusConfirmed), synced.Status)
}

func TestSyncStatus_RejectsIntentOfAnotherBooking(t *testing.T) {
	h := apptest.New(t)
	b, _ := bookWithIntent(t, h)
	foreign, err := h.Gateway.CreateIntent(context.Background(), 100, "usd", map[string]string{policies.MetadataBookingID: "other"})
	require.NoError(t, err)
	h.Gateway.SetStatus(foreign.ID, policies.IntentSucceeded)

	_, err = commands.Dispatch[paymentapp.SyncStatusCommand, dto.Booking](context.Background(), h.Commands, paymentapp.SyncStatusCommand{
		Actor: apptest.Guest("guest-1"), BookingID: b.ID, PaymentIntentID: foreign.ID,
	})
	assert.ErrorIs(t, err, domainbooking.ErrPaymentGateway)
}

func TestRefund_GatewayFailureLeavesBookingUntouched(t *testing.T) {
	h := apptest.New(t)
	b, intent := bookWithIntent(t, h)
	h.Gateway.SetStatus(intent.PaymentIntentID, policies.IntentSucceeded)
	webhook(t, h, "evt_paid", policies.EventPaymentSucceeded, intent.PaymentIntentID, b.ID)
	before := current(t, h, b.ID)

	h.Gateway.FailRefund = errors.New("card network down")
	_, err := commands.Dispatch[paymentapp.RefundCommand, dto.Refund](context.Background(), h.Commands, paymentapp.RefundCommand{
		Actor: apptest.Host("host-1"), BookingID: b.ID,
	})
	assert.ErrorIs(t, err, domainbooking.ErrPaymentGateway)
	assert.Equal(t, before, current(t, h, b.ID))
	assert.Empty(t, h.Gateway.Refunds())
}

func TestRefund_PartialAndFull(t *testing.T) {
	h := apptest.New(t)
	b, intent := bookWithIntent(t, h)
	h.Gateway.SetStatus(intent.PaymentIntentID, policies.IntentSucceeded)
	webhook(t, h, "evt_paid", policies.EventPaymentSucceeded, intent.PaymentIntentID, b.ID)

	tooMuch := int64(411)
	_, err := commands.Dispatch[paymentapp.RefundCommand, dto.Refund](context.Background(), h.Commands, paymentapp.RefundCommand{
		Actor: apptest.Admin(), BookingID: b.ID, Amount: &tooMuch,
	})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidRefund)

	part := int64(100)
	refund, err := commands.Dispatch[paymentapp.RefundCommand, dto.Refund](context.Background(), h.Commands, paymentapp.RefundCommand{
		Actor: apptest.Admin(), BookingID: b.ID, Amount: &part, Reason: "late check-in",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.PaymentRefunded), refund.PaymentStatus)
	require.Len(t, h.Gateway.Refunds(), 1)
	assert.Equal(t, int64(10000), h.Gateway.Refunds()[0].AmountMinor)

	got := current(t, h, b.ID)
	assert.Equal(t, string(domainbooking.StatusConfirmed), got.Status)
	assert.Nil(t, got.Cancellation, "a refund alone does not cancel the stay")
	require.NotNil(t, got.Refund)
	assert.Equal(t, int64(100), got.Refund.Amount.Amount)
	assert.Equal(t, "admin-1", got.Refund.RefundedBy)
	assert.Equal(t, refund.RefundID, got.Refund.RefundID)
}

func TestGatewayTimeout_SurfacesAsGatewayError(t *testing.T) {
	h := apptest.NewWithOptions(t, apptest.Options{GatewayTimeout: 20 * time.Millisecond})
	h.SeedListing(t, "lst-1", "host-1", 100, 4)
	b, err := commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](context.Background(), h.Commands, bookingapp.CreateBookingCommand{
		Actor: apptest.Guest("guest-1"), ListingID: "lst-1", CheckIn: apptest.Date(10), CheckOut: apptest.Date(12),
		Guests: domainbooking.Guests{Adults: 1},
	})
	require.NoError(t, err)
	h.Gateway.Delay = time.Second

	_, err = commands.Dispatch[paymentapp.CreateIntentCommand, dto.PaymentIntent](context.Background(), h.Commands, paymentapp.CreateIntentCommand{
		Actor: apptest.Guest("guest-1"), BookingID: b.ID,
	})
	assert.ErrorIs(t, err, domainbooking.ErrPaymentGateway)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func paidBooking(t *testing.T, h *apptest.Harness) dto.Booking {
	t.Helper()
	b, intent := bookWithIntent(t, h)
	h.Gateway.SetStatus(intent.PaymentIntentID, policies.IntentSucceeded)
	webhook(t, h, "evt_paid", policies.EventPaymentSucceeded, intent.PaymentIntentID, b.ID)
	return b
}

func TestRefund_ConcurrentRequestsMoveMoneyOnce(t *testing.T) {
	h := apptest.New(t)
	b := paidBooking(t, h)
	h.Gateway.Delay = 50 * time.Millisecond

	actors := []user.Principal{apptest.Host("host-1"), apptest.Admin()}
	errs := make([]error, len(actors))
	var wg sync.WaitGroup
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor user.Principal) {
			defer wg.Done()
			_, errs[i] = commands.Dispatch[paymentapp.RefundCommand, dto.Refund](context.Background(), h.Commands, paymentapp.RefundCommand{
				Actor: actor, BookingID: b.ID,
			})
		}(i, actor)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domainbooking.ErrNotPaid)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, h.Gateway.Refunds(), 1)
	assert.Equal(t, string(domainbooking.PaymentRefunded), current(t, h, b.ID).PaymentStatus)
}

func TestRefund_SameIdempotencyKeyReplays(t *testing.T) {
	h := apptest.New(t)
	b := paidBooking(t, h)
	cmd := paymentapp.RefundCommand{Actor: apptest.Admin(), BookingID: b.ID, IdempotencyKeyV: "refund-once"}

	first, err := commands.Dispatch[paymentapp.RefundCommand, dto.Refund](context.Background(), h.Commands, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[paymentapp.RefundCommand, dto.Refund](context.Background(), h.Commands, cmd)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, h.Gateway.Refunds(), 1)
}

// conflictingFactory lets a competing writer bump the booking right before the
// first few commits, the way a concurrent request would.
type conflictingFactory struct {
	uow.UoWFactory
	compete   func(ctx context.Context) error
	conflicts atomic.Int32
}

func (f *conflictingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.UoWFactory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &conflictingUnit{UnitOfWork: unit, factory: f}, nil
}

type conflictingUnit struct {
	uow.UnitOfWork
	factory *conflictingFactory
}

func (u *conflictingUnit) Commit(ctx context.Context) error {
	if u.factory.conflicts.Add(-1) >= 0 {
		if err := u.factory.compete(context.Background()); err != nil {
			return err
		}
	}
	return u.UnitOfWork.Commit(ctx)
}

func TestGatewayEvent_RetriesAfterConcurrentUpdate(t *testing.T) {
	h := apptest.New(t)
	b, intent := bookWithIntent(t, h)

	notes := "arriving late"
	factory := &conflictingFactory{UoWFactory: h.Factory}
	factory.conflicts.Store(1)
	factory.compete = func(ctx context.Context) error {
		return uow.Run(ctx, h.Factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			booking, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(b.ID))
			if err != nil {
				return err
			}
			booking.SpecialRequests = notes
			return unit.Bookings().Save(ctx, booking)
		})
	}
	handler := &paymentapp.GatewayEventHandler{
		Deps:  paymentapp.Deps{UoWFactory: factory, Gateway: h.Gateway, Now: h.Clock.Now},
		Inbox: h.Inbox,
	}

	payload := sandbox.EventPayload("evt_conflict", policies.EventPaymentSucceeded, intent.PaymentIntentID, map[string]string{policies.MetadataBookingID: b.ID})
	ack, err := handler.Handle(context.Background(), paymentapp.GatewayEventCommand{Payload: payload})
	require.NoError(t, err)
	assert.True(t, ack.Received)

	got := current(t, h, b.ID)
	assert.Equal(t, string(domainbooking.PaymentPaid), got.PaymentStatus)
	assert.Equal(t, string(domainbooking.StatusConfirmed), got.Status)
	assert.Equal(t, notes, got.SpecialRequests, "the competing write survives")

	claimed, err := h.Inbox.Claim(context.Background(), paymentapp.InboxConsumer, "evt_conflict")
	require.NoError(t, err)
	assert.False(t, claimed, "an applied event keeps its inbox claim")
}
