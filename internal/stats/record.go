package stats

import (
	"fmt"
	"math"

	"github.com/verte-zerg/pronyfit/internal/curve"
	"github.com/verte-zerg/pronyfit/internal/model"
)

// ParamValues returns the values of params in order.
func ParamValues(params []model.Param) []float64 {
	out := make([]float64, len(params))
	for i, p := range params {
		out[i] = p.Value
	}
	return out
}

// ResponseCurve evaluates spec over grid in response units. Kinds fitted
// against log10 of the response are transformed back.
func ResponseCurve(spec model.Spec, params []float64, grid Grid) ([]float64, []float64, error) {
	m, err := curve.New(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build model: %w", err)
	}
	if len(params) != m.Arity() {
		return nil, nil, fmt.Errorf("%s takes %d parameters, got %d", spec, m.Arity(), len(params))
	}
	times := grid.Times()
	values := m.Predict(times, params)
	if spec.Kind.LogResponse() {
		for i, v := range values {
			values[i] = math.Pow(10, v)
		}
	}
	return times, values, nil
}

// RecordSeries returns the observed samples and the fitted curve of rec.
func RecordSeries(rec model.FitRecord, grid Grid) ([]XYSeries, error) {
	times, values, err := ResponseCurve(rec.Spec, ParamValues(rec.Params), grid)
	if err != nil {
		return nil, err
	}
	tr := make([]float64, len(rec.Samples))
	resp := make([]float64, len(rec.Samples))
	for i, s := range rec.Samples {
		tr[i] = s.ReducedTime
		resp[i] = s.Response
	}
	return []XYSeries{
		{Name: "observed", X: tr, Y: resp, Scatter: true},
		{Name: "fitted", X: times, Y: values},
	}, nil
}
