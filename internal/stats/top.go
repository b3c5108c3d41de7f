package stats

import (
	"math"
	"sort"

	"github.com/verte-zerg/pronyfit/internal/model"
)

// BestFits returns the top n fits by R². Undefined R² sorts last.
func BestFits(fits []model.FitSummary, n int) []model.FitSummary {
	if n <= 0 || len(fits) == 0 {
		return nil
	}
	items := append([]model.FitSummary(nil), fits...)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].RSquared, items[j].RSquared
		switch {
		case math.IsNaN(a) && math.IsNaN(b):
			return items[i].ID < items[j].ID
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		case a == b:
			return items[i].ID < items[j].ID
		}
		return a > b
	})
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}
