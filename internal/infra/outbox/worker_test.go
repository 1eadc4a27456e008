package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appoutbox "rentals/internal/app/outbox"
)

type fakeQueue struct {
	mu      sync.Mutex
	pending []*EventDocument
	sent    []string
	failed  map[string]int
}

func (q *fakeQueue) Claim(context.Context, string) (*EventDocument, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	doc := q.pending[0]
	q.pending = q.pending[1:]
	return doc, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id string, _ time.Time, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failed == nil {
		q.failed = map[string]int{}
	}
	q.failed[id]++
	return nil
}

type recordingPublisher struct {
	failOn string
	got    []appoutbox.EventRecord
}

func (p *recordingPublisher) Publish(_ context.Context, rec appoutbox.EventRecord) error {
	if rec.ID == p.failOn {
		return errors.New("broker down")
	}
	p.got = append(p.got, rec)
	return nil
}

func TestWorkerDrainPublishesAndMarks(t *testing.T) {
	q := &fakeQueue{pending: []*EventDocument{
		{ID: "e1", Name: "booking.created", Aggregate: "b1", Payload: []byte(`{}`)},
		{ID: "e2", Name: "booking.confirmed", Aggregate: "b1", Payload: []byte(`{}`)},
		{ID: "e3", Name: "booking.cancelled", Aggregate: "b2", Payload: []byte(`{}`)},
	}}
	pub := &recordingPublisher{failOn: "e2"}
	w := &Worker{Queue: q, Publisher: pub, ID: "w1", Backoff: []time.Duration{time.Second}}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sent)
	require.Equal(t, []string{"e1", "e3"}, q.sent)
	require.Equal(t, 1, q.failed["e2"])
	require.Len(t, pub.got, 2)
	require.Equal(t, "booking.created", pub.got[0].Name)
}

func TestWorkerRequiresDependencies(t *testing.T) {
	w := &Worker{}
	require.ErrorIs(t, w.Run(context.Background()), ErrWorkerNotConfigured)
}

func TestNextRetryUsesLastBackoffStep(t *testing.T) {
	w := &Worker{Backoff: []time.Duration{time.Second, time.Minute}}
	at := w.nextRetry(5)
	require.WithinDuration(t, time.Now().Add(time.Minute), at, 5*time.Second)
}
