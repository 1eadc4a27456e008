// Package apptest assembles the command and query pipelines over in-memory storage
// and the sandbox payment gateway, for handler and HTTP tests.
package apptest

import (
	"context"
	"sync"
	"testing"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	listingapp "rentals/internal/app/handlers/listings"
	paymentapp "rentals/internal/app/handlers/payments"
	reviewapp "rentals/internal/app/handlers/reviews"
	"rentals/internal/app/middleware"
	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/money"
	"rentals/internal/domain/user"
	"rentals/internal/infra/obs"
	"rentals/internal/infra/payments/sandbox"
	"rentals/internal/infra/storage/memory"
	"rentals/internal/infra/validation"
)

// Clock is a settable time source shared by every handler of a Harness.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type Harness struct {
	Store    *memory.Store
	Factory  memory.Factory
	Outbox   *memory.Outbox
	Gateway  *sandbox.Gateway
	Inbox    *memory.InboxStore
	Rollup   *reviewapp.Rollup
	Clock    *Clock
	Commands commands.Bus
	Queries  queries.Bus
}

// Options tweak a Harness before its pipelines are built.
type Options struct {
	Now            time.Time
	GatewayTimeout time.Duration
	LockWait       time.Duration
}

func New(t testing.TB) *Harness {
	return NewWithOptions(t, Options{})
}

func NewWithOptions(t testing.TB, opts Options) *Harness {
	t.Helper()
	if opts.Now.IsZero() {
		opts.Now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	}
	if opts.LockWait == 0 {
		opts.LockWait = 2 * time.Second
	}
	logger := obs.Discard()
	store := memory.NewStore()
	h := &Harness{
		Store:   store,
		Factory: memory.Factory{Store: store},
		Outbox:  memory.NewOutbox(store, nil, logger),
		Gateway: sandbox.New(),
		Inbox:   memory.NewInboxStore(),
		Clock:   &Clock{now: opts.Now},
	}
	encoder := appoutbox.JSONEventEncoder{}
	h.Rollup = &reviewapp.Rollup{UoWFactory: h.Factory, Outbox: h.Outbox, Encoder: encoder, Logger: logger, Now: h.Clock.Now}

	bus := commands.NewInMemoryBus()
	bd := bookingapp.Deps{UoWFactory: h.Factory, Outbox: h.Outbox, Encoder: encoder, Logger: logger, Now: h.Clock.Now}
	commands.Register(bus, bookingapp.CreateBookingKey, commands.Handler[bookingapp.CreateBookingCommand, dto.Booking](&bookingapp.CreateBookingHandler{Deps: bd}))
	commands.Register(bus, bookingapp.UpdateBookingKey, commands.Handler[bookingapp.UpdateBookingCommand, dto.Booking](&bookingapp.UpdateBookingHandler{Deps: bd}))
	commands.Register(bus, bookingapp.ConfirmBookingKey, commands.Handler[bookingapp.ConfirmBookingCommand, dto.Booking](&bookingapp.ConfirmBookingHandler{Deps: bd}))
	commands.Register(bus, bookingapp.CancelBookingKey, commands.Handler[bookingapp.CancelBookingCommand, dto.Booking](&bookingapp.CancelBookingHandler{Deps: bd}))
	commands.Register(bus, bookingapp.CompleteBookingKey, commands.Handler[bookingapp.CompleteBookingCommand, dto.Booking](&bookingapp.CompleteBookingHandler{Deps: bd}))
	commands.Register(bus, listingapp.DeleteListingKey, commands.Handler[listingapp.DeleteListingCommand, dto.ListingDeletion](&listingapp.DeleteListingHandler{
		UoWFactory: h.Factory, Outbox: h.Outbox, Encoder: encoder, Logger: logger, Now: h.Clock.Now,
	}))

	pd := paymentapp.Deps{UoWFactory: h.Factory, Outbox: h.Outbox, Encoder: encoder, Gateway: h.Gateway, Logger: logger, Now: h.Clock.Now, Timeout: opts.GatewayTimeout}
	commands.Register(bus, paymentapp.CreateIntentKey, commands.Handler[paymentapp.CreateIntentCommand, dto.PaymentIntent](&paymentapp.CreateIntentHandler{Deps: pd}))
	commands.Register(bus, paymentapp.SyncStatusKey, commands.Handler[paymentapp.SyncStatusCommand, dto.Booking](&paymentapp.SyncStatusHandler{Deps: pd}))
	commands.Register(bus, paymentapp.RefundKey, commands.Handler[paymentapp.RefundCommand, dto.Refund](&paymentapp.RefundHandler{Deps: pd}))
	commands.Register(bus, paymentapp.GatewayEventKey, commands.Handler[paymentapp.GatewayEventCommand, dto.WebhookAck](&paymentapp.GatewayEventHandler{Deps: pd, Inbox: h.Inbox}))

	rd := reviewapp.Deps{UoWFactory: h.Factory, Outbox: h.Outbox, Encoder: encoder, Ratings: h.Rollup, Logger: logger, Now: h.Clock.Now}
	commands.Register(bus, reviewapp.SubmitReviewKey, commands.Handler[reviewapp.SubmitReviewCommand, dto.Review](&reviewapp.SubmitReviewHandler{Deps: rd}))
	commands.Register(bus, reviewapp.UpdateReviewKey, commands.Handler[reviewapp.UpdateReviewCommand, dto.Review](&reviewapp.UpdateReviewHandler{Deps: rd}))
	commands.Register(bus, reviewapp.DeleteReviewKey, commands.Handler[reviewapp.DeleteReviewCommand, dto.ListingRating](&reviewapp.DeleteReviewHandler{Deps: rd}))

	qbus := queries.NewInMemoryBus()
	lists := &bookingapp.ListBookingsHandler{UoWFactory: h.Factory}
	queries.Register(qbus, bookingapp.GetBookingKey, queries.Handler[bookingapp.GetBookingQuery, dto.Booking](&bookingapp.GetBookingHandler{UoWFactory: h.Factory}))
	queries.Register(qbus, bookingapp.ListGuestBookingsKey, queries.HandlerFunc[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](lists.HandleGuest))
	queries.Register(qbus, bookingapp.ListHostBookingsKey, queries.HandlerFunc[bookingapp.ListHostBookingsQuery, dto.BookingCollection](lists.HandleHost))
	queries.Register(qbus, bookingapp.CheckAvailabilityKey, queries.Handler[bookingapp.CheckAvailabilityQuery, dto.Availability](&bookingapp.CheckAvailabilityHandler{UoWFactory: h.Factory}))
	queries.Register(qbus, bookingapp.QuotePriceKey, queries.Handler[bookingapp.QuotePriceQuery, dto.Quote](&bookingapp.QuotePriceHandler{UoWFactory: h.Factory}))
	queries.Register(qbus, bookingapp.GetCalendarKey, queries.Handler[bookingapp.GetCalendarQuery, dto.Calendar](&bookingapp.GetCalendarHandler{UoWFactory: h.Factory}))

	v := validation.New()
	h.Commands = middleware.ChainCommands(
		bus,
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil),
		middleware.Validation(v),
		middleware.Authorization(),
		middleware.Locking(memory.NewLocker(opts.LockWait), logger),
		middleware.Transaction(h.Factory),
		middleware.OutboxFlush(h.Outbox),
	)
	h.Queries = middleware.ChainQueries(qbus, middleware.QueryValidation(v), middleware.QueryAuthorization())
	return h
}

func Guest(id string) user.Principal { return user.Principal{ID: user.ID(id), Role: user.RoleGuest} }
func Host(id string) user.Principal  { return user.Principal{ID: user.ID(id), Role: user.RoleHost} }
func Admin() user.Principal          { return user.Principal{ID: "admin-1", Role: user.RoleAdmin} }

// SeedListing stores an active listing charging rate whole USD per night.
func (h *Harness) SeedListing(t testing.TB, id, host string, rate int64, maxGuests int) {
	t.Helper()
	l, err := listings.NewListing(listings.CreateListingParams{
		ID:          listings.ListingID(id),
		Host:        listings.HostID(host),
		Title:       "Listing " + id,
		NightlyRate: money.Must(rate, "USD"),
		MaxGuests:   maxGuests,
		Active:      true,
		Now:         h.Clock.Now(),
	})
	if err != nil {
		t.Fatalf("seed listing %s: %v", id, err)
	}
	err = uow.Run(context.Background(), h.Factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Listings().Save(ctx, l)
	})
	if err != nil {
		t.Fatalf("seed listing %s: %v", id, err)
	}
}

// Listing reads the committed listing.
func (h *Harness) Listing(t testing.TB, id string) *listings.Listing {
	t.Helper()
	var out *listings.Listing
	err := uow.Run(context.Background(), h.Factory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		out, err = unit.Listings().ByID(ctx, listings.ListingID(id))
		return err
	})
	if err != nil {
		t.Fatalf("load listing %s: %v", id, err)
	}
	return out
}

// Date returns midnight UTC of the given day in June 2025, the harness's default month.
func Date(day int) time.Time {
	return time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC)
}

// EventNames lists every flushed event name, oldest first.
func (h *Harness) EventNames() []string {
	var out []string
	for _, rec := range h.Outbox.Delivered() {
		out = append(out, rec.Name)
	}
	return out
}
