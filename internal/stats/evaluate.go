// Package stats contains goodness-of-fit calculations and reporting.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/pronyfit/internal/curve"
	"github.com/verte-zerg/pronyfit/internal/model"
)

// Grid is a log-spaced reduced-time axis 10^MinExp..10^MaxExp.
type Grid struct {
	MinExp float64
	MaxExp float64
	Points int
}

// DefaultGrid spans 10^-8..10^8 with 50 points.
func DefaultGrid() Grid {
	return Grid{MinExp: -8, MaxExp: 8, Points: 50}
}

// Times returns the grid points.
func (g Grid) Times() []float64 {
	return LogSpace(g.MinExp, g.MaxExp, g.Points)
}

// LogSpace returns n points spaced evenly in log10 between 10^minExp and 10^maxExp.
func LogSpace(minExp, maxExp float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{math.Pow(10, minExp)}
	}
	out := make([]float64, n)
	floats.Span(out, minExp, maxExp)
	for i, e := range out {
		out[i] = math.Pow(10, e)
	}
	return out
}

// Evaluation is the goodness-of-fit data plus the synthetic curve.
type Evaluation struct {
	model.Goodness
	GridTimes  []float64
	GridValues []float64
}

// RSquared returns 1 - SSres/SStot. When all observations are identical
// the coefficient is undefined and NaN is returned.
func RSquared(observed, predicted []float64) float64 {
	ssRes, ssTot := sumsOfSquares(observed, predicted)
	return coefficient(ssRes, ssTot)
}

func coefficient(ssRes, ssTot float64) float64 {
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}

func sumsOfSquares(observed, predicted []float64) (float64, float64) {
	if len(observed) == 0 {
		return 0, 0
	}
	// A constant response can leave rounding noise in SStot around the mean.
	constant := floats.Max(observed) == floats.Min(observed)
	mean := stat.Mean(observed, nil)
	var ssRes, ssTot float64
	for i, y := range observed {
		d := y - predicted[i]
		ssRes += d * d
		ssTot += (y - mean) * (y - mean)
	}
	if constant {
		ssTot = 0
	}
	return ssRes, ssTot
}

// Evaluate computes predictions, residuals (observed - predicted) and R² at
// the observed reduced times, and the model over grid.
func Evaluate(m curve.Model, params, tr, response []float64, grid Grid) (Evaluation, error) {
	if len(tr) != len(response) {
		return Evaluation{}, fmt.Errorf("%w: %d reduced times, %d responses", model.ErrLengthMismatch, len(tr), len(response))
	}
	if len(tr) == 0 {
		return Evaluation{}, model.ErrEmptyInput
	}
	if len(params) != m.Arity() {
		return Evaluation{}, fmt.Errorf("%s takes %d parameters, got %d", m.Spec(), m.Arity(), len(params))
	}

	predicted := m.Predict(tr, params)
	residuals := make([]float64, len(tr))
	floats.SubTo(residuals, response, predicted)
	ssRes, ssTot := sumsOfSquares(response, predicted)
	r2 := coefficient(ssRes, ssTot)

	times := grid.Times()
	return Evaluation{
		Goodness: model.Goodness{
			RSquared:  r2,
			Residuals: residuals,
			Predicted: predicted,
			SSRes:     ssRes,
			SSTot:     ssTot,
		},
		GridTimes:  times,
		GridValues: m.Predict(times, params),
	}, nil
}
