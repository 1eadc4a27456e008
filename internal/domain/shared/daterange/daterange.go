package daterange

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("daterange: checkout must be after checkin")

const day = 24 * time.Hour

// DateRange represents a half-open interval [checkIn, checkOut)
type DateRange struct {
	CheckIn  time.Time `json:"checkIn" bson:"check_in"`
	CheckOut time.Time `json:"checkOut" bson:"check_out"`
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: checkIn.UTC(), CheckOut: checkOut.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Days builds a range on UTC calendar-day boundaries, dropping any time-of-day component.
func Days(checkIn, checkOut time.Time) (DateRange, error) {
	return New(StartOfDay(checkIn), StartOfDay(checkOut))
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts started days in the range, so a partial trailing day is a full night.
func (dr DateRange) Nights() int {
	return NightsBetween(dr.CheckIn, dr.CheckOut)
}

// NightsBetween returns ceil((checkOut-checkIn)/24h). It is zero or negative for
// an empty or inverted interval.
func NightsBetween(checkIn, checkOut time.Time) int {
	d := checkOut.Sub(checkIn)
	if d <= 0 {
		return int(d / day)
	}
	nights := d / day
	if d%day != 0 {
		nights++
	}
	return int(nights)
}

// Overlaps reports whether the half-open intervals intersect; touching ends do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.CheckOut.Equal(other.CheckIn) || dr.CheckIn.Equal(other.CheckOut)
}

// Key renders the normalized range as "2006-01-02/2006-01-02".
func (dr DateRange) Key() string {
	return dr.CheckIn.UTC().Format(time.DateOnly) + "/" + dr.CheckOut.UTC().Format(time.DateOnly)
}
