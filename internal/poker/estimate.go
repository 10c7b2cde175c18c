package poker

import (
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Card markers that never count towards the average.
const (
	markerUnknown = "?"
	markerCoffee  = "COFFEE"
)

// maxCardValue bounds what counts as a numeric card; anything larger is a
// marker and stays out of the mean.
const maxCardValue = 1e6

// numericVote parses a vote as a card value in [0, maxCardValue]. Markers
// such as "?", "COFFEE" or "unknown" are not numeric.
func numericVote(vote string) (float64, bool) {
	trimmed := strings.TrimSpace(vote)
	if trimmed == markerUnknown || strings.EqualFold(trimmed, markerCoffee) {
		return 0, false
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) || value < 0 || value > maxCardValue {
		return 0, false
	}
	return value, true
}

// Average is the mean of the numeric votes rounded up to the next integer.
// Non-numeric votes are left out of both the sum and the count; the result is
// 0 when nothing numeric was cast.
func Average(votes []string) int {
	numbers := lo.FilterMap(votes, func(v string, _ int) (float64, bool) {
		return numericVote(v)
	})
	if len(numbers) == 0 {
		return 0
	}
	return int(math.Ceil(lo.Sum(numbers) / float64(len(numbers))))
}
