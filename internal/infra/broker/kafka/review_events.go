package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"rentals/internal/app/policies"
	domainlistings "rentals/internal/domain/listings"
)

// ReviewEventsTopic carries review.submitted, review.updated and review.deleted.
const ReviewEventsTopic = "review.events.v1"

var errNoListing = errors.New("kafka: review event carries no listing id")

// ReviewEventsHandler recomputes the listing rating for every review event. It
// repairs aggregates whose synchronous rollup failed after the review committed.
type ReviewEventsHandler struct {
	Ratings policies.RatingRecomputer
	Logger  *slog.Logger
}

type reviewEventData struct {
	ListingID string `json:"ListingID"`
}

func (h ReviewEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return fmt.Errorf("kafka: decode envelope: %w", err)
	}
	if !strings.HasPrefix(env.Type, "review.") {
		return nil
	}
	var data reviewEventData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("kafka: decode %s: %w", env.Type, err)
	}
	if data.ListingID == "" {
		return errNoListing
	}
	err := h.Ratings.Recompute(ctx, domainlistings.ListingID(data.ListingID))
	if errors.Is(err, domainlistings.ErrNotFound) {
		if h.Logger != nil {
			h.Logger.Info("rating rollup skipped for deleted listing", "listing_id", data.ListingID)
		}
		return nil
	}
	return err
}

var _ MessageHandler = ReviewEventsHandler{}
