package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

var (
	ErrUnitClosed = errors.New("memory: unit of work already closed")
	ErrReadOnly   = errors.New("memory: write in read-only unit")
)

// Factory starts units against a shared Store.
type Factory struct {
	Store *Store
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, errors.New("memory: unit of work factory misconfigured")
	}
	return &Unit{
		store:    f.Store,
		readOnly: opts.ReadOnly,
		listings: make(map[domainlistings.ListingID]*stagedListing),
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		reviews:  make(map[domainreviews.ReviewID]*stagedReview),
	}, nil
}

type stagedListing struct {
	listing *domainlistings.Listing
	deleted bool
}

type stagedReview struct {
	review  *domainreviews.Review
	deleted bool
}

// Unit buffers writes and applies them atomically on Commit, rejecting the whole
// batch if any aggregate changed underneath it.
type Unit struct {
	store    *Store
	readOnly bool

	mu       sync.Mutex
	closed   bool
	listings map[domainlistings.ListingID]*stagedListing
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	reviews  map[domainreviews.ReviewID]*stagedReview
	events   []appoutbox.EventRecord
}

func (u *Unit) Listings() domainlistings.ListingRepository { return listingRepo{u} }
func (u *Unit) Bookings() domainbooking.Repository         { return bookingRepo{u} }
func (u *Unit) Reviews() domainreviews.Repository          { return reviewRepo{u} }

func (u *Unit) stage(fn func()) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	fn()
	return nil
}

func (u *Unit) addEvent(rec appoutbox.EventRecord) error {
	return u.stage(func() { u.events = append(u.events, rec) })
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrUnitClosed
	}
	u.closed = true

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := u.checkVersions(); err != nil {
		return err
	}
	for id, st := range u.listings {
		if st.deleted {
			delete(s.listings, id)
			continue
		}
		l := cloneListing(st.listing)
		l.Version++
		s.listings[id] = l
	}
	for id, b := range u.bookings {
		c := cloneBooking(b)
		c.Version++
		s.bookings[id] = c
	}
	for id, st := range u.reviews {
		if st.deleted {
			delete(s.reviews, id)
			continue
		}
		s.reviews[id] = cloneReview(st.review)
	}
	s.events = append(s.events, u.events...)
	return nil
}

// checkVersions runs under the store write lock.
func (u *Unit) checkVersions() error {
	s := u.store
	for id, st := range u.listings {
		current, ok := s.listings[id]
		switch {
		case st.deleted:
			if !ok {
				return fmt.Errorf("%w: %s", domainlistings.ErrNotFound, id)
			}
		case ok && current.Version != st.listing.Version:
			return fmt.Errorf("%w: listing %s", domainlistings.ErrConcurrentWrite, id)
		case !ok && st.listing.Version != 0:
			return fmt.Errorf("%w: %s", domainlistings.ErrNotFound, id)
		}
	}
	for id, b := range u.bookings {
		current, ok := s.bookings[id]
		switch {
		case ok && current.Version != b.Version:
			return fmt.Errorf("%w: booking %s", domainbooking.ErrConcurrentUpdate, id)
		case !ok && b.Version != 0:
			return fmt.Errorf("%w: %s", domainbooking.ErrNotFound, id)
		}
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.listings = nil
	u.bookings = nil
	u.reviews = nil
	u.events = nil
	return nil
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
