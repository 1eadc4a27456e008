package memory

import (
	"context"
	"sort"

	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/user"
)

// Reads see the unit's own staged aggregates first, then committed state. Writes
// are staged until Commit.

type listingRepo struct{ u *Unit }

func (r listingRepo) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.u.mu.Lock()
	st, staged := r.u.listings[id]
	r.u.mu.Unlock()
	if staged {
		if st.deleted {
			return nil, domainlistings.ErrNotFound
		}
		return cloneListing(st.listing), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	return cloneListing(l), nil
}

func (r listingRepo) ListByHost(ctx context.Context, host domainlistings.HostID) ([]*domainlistings.Listing, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainlistings.Listing
	for _, l := range s.listings {
		if l.Host == host {
			out = append(out, cloneListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r listingRepo) Save(ctx context.Context, listing *domainlistings.Listing) error {
	c := cloneListing(listing)
	return r.u.stage(func() { r.u.listings[c.ID] = &stagedListing{listing: c} })
}

func (r listingRepo) Delete(ctx context.Context, id domainlistings.ListingID) error {
	return r.u.stage(func() { r.u.listings[id] = &stagedListing{deleted: true} })
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.u.mu.Lock()
	b, staged := r.u.bookings[id]
	r.u.mu.Unlock()
	if staged {
		return cloneBooking(b), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domainbooking.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r bookingRepo) Save(ctx context.Context, b *domainbooking.Booking) error {
	c := cloneBooking(b)
	return r.u.stage(func() { r.u.bookings[c.ID] = c })
}

func (r bookingRepo) ListBlocking(ctx context.Context, listingID domainlistings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool {
		return b.ListingID == listingID && b.Status.Blocks() && b.Range.Overlaps(dr)
	}), nil
}

func (r bookingRepo) ListByListing(ctx context.Context, listingID domainlistings.ListingID) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool { return b.ListingID == listingID }), nil
}

func (r bookingRepo) ListByGuest(ctx context.Context, guestID user.ID) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool { return b.GuestID == guestID }), nil
}

func (r bookingRepo) ListByHost(ctx context.Context, hostID domainlistings.HostID) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool { return b.HostID == hostID }), nil
}

func (r bookingRepo) filter(keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sortBookings(out)
	return out
}

type reviewRepo struct{ u *Unit }

func (r reviewRepo) ByID(ctx context.Context, id domainreviews.ReviewID) (*domainreviews.Review, error) {
	r.u.mu.Lock()
	st, staged := r.u.reviews[id]
	r.u.mu.Unlock()
	if staged {
		if st.deleted {
			return nil, domainreviews.ErrNotFound
		}
		return cloneReview(st.review), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	rv, ok := s.reviews[id]
	if !ok {
		return nil, domainreviews.ErrNotFound
	}
	return cloneReview(rv), nil
}

func (r reviewRepo) ByBooking(ctx context.Context, bookingID domainbooking.BookingID) (*domainreviews.Review, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rv := range s.reviews {
		if rv.BookingID == bookingID {
			return cloneReview(rv), nil
		}
	}
	return nil, domainreviews.ErrNotFound
}

func (r reviewRepo) ListByListing(ctx context.Context, listingID domainlistings.ListingID) ([]*domainreviews.Review, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainreviews.Review
	for _, rv := range s.reviews {
		if rv.ListingID == listingID {
			out = append(out, cloneReview(rv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r reviewRepo) Save(ctx context.Context, review *domainreviews.Review) error {
	c := cloneReview(review)
	return r.u.stage(func() { r.u.reviews[c.ID] = &stagedReview{review: c} })
}

func (r reviewRepo) Delete(ctx context.Context, id domainreviews.ReviewID) error {
	return r.u.stage(func() { r.u.reviews[id] = &stagedReview{deleted: true} })
}

var (
	_ domainlistings.ListingRepository = listingRepo{}
	_ domainbooking.Repository         = bookingRepo{}
	_ domainreviews.Repository         = reviewRepo{}
)
