package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stayRequest struct {
	ListingID string    `json:"listingId" validate:"required"`
	CheckIn   time.Time `validate:"required"`
	CheckOut  time.Time `validate:"required,gtfield=CheckIn"`
	Adults    int       `json:"adults" validate:"min=1"`
}

func TestValidateReportsFieldsByJSONName(t *testing.T) {
	v := New()
	now := time.Now()
	err := v.Validate(context.Background(), stayRequest{CheckIn: now, CheckOut: now.Add(-time.Hour)})
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.ErrorContains(t, err, "listingId is required")
	require.ErrorContains(t, err, "checkOut must be after checkIn")
	require.ErrorContains(t, err, "adults must be at least 1")
}

func TestValidateAcceptsValidAndNonStruct(t *testing.T) {
	v := New()
	now := time.Now()
	require.NoError(t, v.Validate(context.Background(), stayRequest{ListingID: "l1", CheckIn: now, CheckOut: now.Add(time.Hour), Adults: 2}))
	require.NoError(t, v.Validate(context.Background(), "plain"))
	require.NoError(t, v.Validate(context.Background(), nil))
}
