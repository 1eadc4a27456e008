package ginserver

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"rentals/internal/app/middleware"
	"rentals/internal/app/policies"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/infra/validation"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: checkOut", validation.ErrInvalidRequest), http.StatusBadRequest},
		{domainreviews.ErrInvalidRating, http.StatusBadRequest},
		{domainlistings.ErrNotFound, http.StatusNotFound},
		{domainbooking.ErrUnauthorized, http.StatusForbidden},
		{domainreviews.ErrNotAuthor, http.StatusForbidden},
		{domainbooking.ErrCapacityExceeded, http.StatusUnprocessableEntity},
		{domainbooking.ErrNotCheckedOut, http.StatusConflict},
		{fmt.Errorf("%w: held", domainbooking.ErrConflict), http.StatusConflict},
		{middleware.ErrKeyReused, http.StatusConflict},
		{domainbooking.ErrPaymentGateway, http.StatusBadGateway},
		{policies.ErrLockTimeout, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer  abc "))
	assert.Empty(t, extractBearerToken("Basic abc"))
	assert.Empty(t, extractBearerToken(""))
}
