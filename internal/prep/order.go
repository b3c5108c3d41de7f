// Package prep orders raw measurements for regression.
package prep

import (
	"fmt"
	"sort"

	"github.com/verte-zerg/pronyfit/internal/model"
)

// Columns is a numeric table that can look up a column by name or index.
type Columns interface {
	Column(ref string) ([]float64, error)
}

// Order returns copies of tr and response sorted by ascending reduced time.
// Ties keep their input order. The inputs are not modified.
func Order(tr, response []float64) ([]float64, []float64, error) {
	if len(tr) != len(response) {
		return nil, nil, fmt.Errorf("%w: %d reduced times, %d responses", model.ErrLengthMismatch, len(tr), len(response))
	}
	idx := make([]int, len(tr))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return tr[idx[a]] < tr[idx[b]]
	})
	outT := make([]float64, len(tr))
	outR := make([]float64, len(response))
	for i, j := range idx {
		outT[i] = tr[j]
		outR[i] = response[j]
	}
	return outT, outR, nil
}

// OrderTable takes the response column from tbl and orders it against tr.
func OrderTable(tr []float64, tbl Columns, column string) ([]float64, []float64, error) {
	response, err := tbl.Column(column)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response column: %w", err)
	}
	return Order(tr, response)
}

// Pairs zips aligned arrays into samples.
func Pairs(tr, response []float64) ([]model.Sample, error) {
	if len(tr) != len(response) {
		return nil, fmt.Errorf("%w: %d reduced times, %d responses", model.ErrLengthMismatch, len(tr), len(response))
	}
	out := make([]model.Sample, len(tr))
	for i := range tr {
		out[i] = model.Sample{ReducedTime: tr[i], Response: response[i]}
	}
	return out, nil
}

// Split unzips samples into aligned arrays.
func Split(samples []model.Sample) ([]float64, []float64) {
	tr := make([]float64, len(samples))
	response := make([]float64, len(samples))
	for i, s := range samples {
		tr[i] = s.ReducedTime
		response[i] = s.Response
	}
	return tr, response
}
