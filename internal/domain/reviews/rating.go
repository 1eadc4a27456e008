package reviews

import (
	"math"

	"rentals/internal/domain/listings"
)

// Summarize averages the overall score and each category across reviews, rounding
// to one decimal. No reviews yields the zero summary.
func Summarize(items []*Review) listings.RatingSummary {
	n, overall := 0, 0
	var clean, acc, checkIn, comm, loc, val int
	for _, r := range items {
		if r == nil {
			continue
		}
		n++
		overall += r.Rating
		clean += r.Categories.Cleanliness
		acc += r.Categories.Accuracy
		checkIn += r.Categories.CheckIn
		comm += r.Categories.Communication
		loc += r.Categories.Location
		val += r.Categories.Value
	}
	if n == 0 {
		return listings.RatingSummary{}
	}
	return listings.RatingSummary{
		Average: average(overall, n),
		Count:   n,
		Categories: listings.CategoryRatings{
			Cleanliness:   average(clean, n),
			Accuracy:      average(acc, n),
			CheckIn:       average(checkIn, n),
			Communication: average(comm, n),
			Location:      average(loc, n),
			Value:         average(val, n),
		},
	}
}

func average(total, n int) float64 {
	return math.Round(float64(total)/float64(n)*10) / 10
}
