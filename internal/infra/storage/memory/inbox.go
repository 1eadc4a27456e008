package memory

import (
	"context"
	"sync"

	"rentals/internal/app/policies"
)

type InboxStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewInboxStore() *InboxStore {
	return &InboxStore{seen: make(map[string]struct{})}
}

func (s *InboxStore) Claim(ctx context.Context, consumer, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := consumer + "/" + eventID
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

func (s *InboxStore) Release(ctx context.Context, consumer, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, consumer+"/"+eventID)
	return nil
}

var _ policies.InboxStore = (*InboxStore)(nil)
