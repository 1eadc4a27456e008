package pricing

import (
	"errors"
	"fmt"
	"time"

	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
)

// Fee rules. Percentages are whole percent values applied with half-up rounding.
const (
	ServiceFeePercent int64 = 10
	TaxPercent        int64 = 8
	CleaningFeeAmount int64 = 50
)

var (
	ErrInvalidRate   = errors.New("pricing: nightly rate must be positive")
	ErrCurrencyUnset = errors.New("pricing: currency must be defined")
	ErrTotalMismatch = errors.New("pricing: total does not equal the sum of its components")
)

type PriceBreakdown struct {
	NightlyRate money.Money `json:"nightlyRate"`
	Nights      int         `json:"nights"`
	BasePrice   money.Money `json:"basePrice"`
	ServiceFee  money.Money `json:"serviceFee"`
	CleaningFee money.Money `json:"cleaningFee"`
	Taxes       money.Money `json:"taxes"`
	Total       money.Money `json:"totalPrice"`
}

// ComputePrice derives the breakdown for a stay. It depends on nothing but its inputs,
// so recomputing an old booking always reproduces the stored total.
func ComputePrice(nightlyRate money.Money, checkIn, checkOut time.Time) (PriceBreakdown, error) {
	if nightlyRate.Currency == "" {
		return PriceBreakdown{}, ErrCurrencyUnset
	}
	if !nightlyRate.IsPositive() {
		return PriceBreakdown{}, ErrInvalidRate
	}
	nights := daterange.NightsBetween(checkIn, checkOut)
	if nights <= 0 {
		return PriceBreakdown{}, fmt.Errorf("%w: stay must last at least one night", daterange.ErrInvalidRange)
	}

	base := nightlyRate.Multiply(int64(nights))
	service := base.Percent(ServiceFeePercent)
	cleaning := money.Money{Amount: CleaningFeeAmount, Currency: nightlyRate.Currency}
	taxable := sum(base, service, cleaning)
	taxes := taxable.Percent(TaxPercent)

	return PriceBreakdown{
		NightlyRate: nightlyRate,
		Nights:      nights,
		BasePrice:   base,
		ServiceFee:  service,
		CleaningFee: cleaning,
		Taxes:       taxes,
		Total:       sum(base, service, cleaning, taxes),
	}, nil
}

// Sum adds the four charged components.
func (p PriceBreakdown) Sum() money.Money {
	return sum(p.BasePrice, p.ServiceFee, p.CleaningFee, p.Taxes)
}

func (p PriceBreakdown) Verify() error {
	if p.Total != p.Sum() {
		return ErrTotalMismatch
	}
	return nil
}

// ChargeAmount is what a payment intent should collect. Legacy records without a
// total fall back to the base price.
func (p PriceBreakdown) ChargeAmount() money.Money {
	if p.Total.IsPositive() {
		return p.Total
	}
	return p.BasePrice
}

// all components share the nightly rate's currency, so Add cannot fail here
func sum(parts ...money.Money) money.Money {
	out := money.Money{Currency: parts[0].Currency}
	for _, p := range parts {
		out.Amount += p.Amount
	}
	return out
}
