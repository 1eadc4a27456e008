package reviews

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rentals/internal/domain/listings"
)

func scores(v int) CategoryScores {
	return CategoryScores{Cleanliness: v, Accuracy: v, CheckIn: v, Communication: v, Location: v, Value: v}
}

func TestSummarize_Averages(t *testing.T) {
	summary := Summarize([]*Review{
		{Rating: 5, Categories: scores(5)},
		{Rating: 4, Categories: scores(4)},
		{Rating: 4, Categories: scores(3)},
	})
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, 4.3, summary.Average)
	assert.Equal(t, 4.0, summary.Categories.Cleanliness)
	assert.Equal(t, 4.0, summary.Categories.Value)
}

func TestSummarize_EmptyResets(t *testing.T) {
	assert.Equal(t, listings.RatingSummary{}, Summarize(nil))
	assert.Equal(t, listings.RatingSummary{}, Summarize([]*Review{nil}))
}
