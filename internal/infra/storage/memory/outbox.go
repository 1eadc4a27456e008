package memory

import (
	"context"
	"log/slog"
	"sync"

	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/uow"
)

// Outbox keeps events with the unit that produced them and hands committed events to
// an optional publisher on Flush. Publish failures are logged, never returned: the
// booking change they describe is already committed.
type Outbox struct {
	Store     *Store
	Publisher appoutbox.Publisher
	Logger    *slog.Logger

	mu        sync.Mutex
	delivered []appoutbox.EventRecord
}

func NewOutbox(store *Store, publisher appoutbox.Publisher, logger *slog.Logger) *Outbox {
	return &Outbox{Store: store, Publisher: publisher, Logger: logger}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok {
			return mu.addEvent(record)
		}
	}
	o.Store.mu.Lock()
	o.Store.events = append(o.Store.events, record)
	o.Store.mu.Unlock()
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	records := o.Store.takeEvents()
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if o.Publisher == nil {
			continue
		}
		if err := o.Publisher.Publish(ctx, rec); err != nil && o.Logger != nil {
			o.Logger.Warn("event publish failed", "event", rec.Name, "aggregate", rec.Aggregate, "error", err)
		}
	}
	o.mu.Lock()
	o.delivered = append(o.delivered, records...)
	o.mu.Unlock()
	return nil
}

// Delivered returns every flushed record, oldest first.
func (o *Outbox) Delivered() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, len(o.delivered))
	copy(out, o.delivered)
	return out
}

var _ appoutbox.Outbox = (*Outbox)(nil)
