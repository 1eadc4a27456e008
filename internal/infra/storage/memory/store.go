package memory

import (
	"sort"
	"sync"

	appoutbox "rentals/internal/app/outbox"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

// Store is the shared in-process state behind every memory unit of work. Units read
// it under a read lock and apply their staged writes under the write lock.
type Store struct {
	mu       sync.RWMutex
	listings map[domainlistings.ListingID]*domainlistings.Listing
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	reviews  map[domainreviews.ReviewID]*domainreviews.Review
	events   []appoutbox.EventRecord
}

func NewStore() *Store {
	return &Store{
		listings: make(map[domainlistings.ListingID]*domainlistings.Listing),
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		reviews:  make(map[domainreviews.ReviewID]*domainreviews.Review),
	}
}

// takeEvents hands committed events to the outbox flusher.
func (s *Store) takeEvents() []appoutbox.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	if l == nil {
		return nil
	}
	c := *l
	c.ClearEvents()
	return &c
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.Cancellation != nil {
		cancel := *b.Cancellation
		c.Cancellation = &cancel
	}
	if b.Refund != nil {
		refund := *b.Refund
		c.Refund = &refund
	}
	c.ClearEvents()
	return &c
}

func cloneReview(r *domainreviews.Review) *domainreviews.Review {
	if r == nil {
		return nil
	}
	c := *r
	c.ClearEvents()
	return &c
}

func sortBookings(items []*domainbooking.Booking) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Range.CheckIn.Equal(items[j].Range.CheckIn) {
			return items[i].ID < items[j].ID
		}
		return items[i].Range.CheckIn.Before(items[j].Range.CheckIn)
	})
}
