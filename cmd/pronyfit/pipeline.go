package main

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/pronyfit/internal/curve"
	"github.com/verte-zerg/pronyfit/internal/dataset"
	"github.com/verte-zerg/pronyfit/internal/fit"
	"github.com/verte-zerg/pronyfit/internal/logger"
	"github.com/verte-zerg/pronyfit/internal/model"
	"github.com/verte-zerg/pronyfit/internal/prep"
	"github.com/verte-zerg/pronyfit/internal/stats"
)

// fitRequest is everything needed to fit one column of a data file.
type fitRequest struct {
	Input       string
	TimeCol     string
	ResponseCol string
	Spec        model.Spec
	Policy      fit.Policy
	Options     fit.Options
	Grid        stats.Grid
}

// fitOutcome holds a finished fit. Record carries the samples in response
// units, ready to be stored or exported.
type fitOutcome struct {
	Result     model.FitResult
	Evaluation stats.Evaluation
	Names      []string
	Record     model.FitRecord
}

func runFitPipeline(req fitRequest) (fitOutcome, error) {
	tbl, err := dataset.Load(req.Input)
	if err != nil {
		return fitOutcome{}, err
	}
	tr, err := tbl.Column(req.TimeCol)
	if err != nil {
		return fitOutcome{}, fmt.Errorf("failed to read time column: %w", err)
	}
	tr, response, err := prep.OrderTable(tr, tbl, req.ResponseCol)
	if err != nil {
		return fitOutcome{}, err
	}
	logger.Debug("loaded samples", "input", req.Input, "rows", len(tr))

	target := response
	if req.Spec.Kind.LogResponse() {
		target, err = log10All(response)
		if err != nil {
			return fitOutcome{}, fmt.Errorf("%s is fitted in log10 space: %w", req.Spec.Kind, err)
		}
	}

	res, err := fit.OptimizeWithPolicy(tr, target, req.Spec, req.Policy, req.Options)
	if err != nil {
		return fitOutcome{}, err
	}
	m, err := curve.New(req.Spec)
	if err != nil {
		return fitOutcome{}, err
	}
	ev, err := stats.Evaluate(m, res.Params, tr, target, req.Grid)
	if err != nil {
		return fitOutcome{}, fmt.Errorf("failed to evaluate fit: %w", err)
	}

	samples, err := prep.Pairs(tr, response)
	if err != nil {
		return fitOutcome{}, err
	}
	names := m.ParamNames()
	rec := model.FitRecord{
		FitSummary: model.FitSummary{
			RunID:      uuid.NewString(),
			CreatedAt:  time.Now().UTC(),
			Spec:       req.Spec,
			Algorithm:  res.Algorithm,
			Source:     req.Input,
			DataHash:   dataset.Fingerprint(tr, response),
			NSamples:   len(samples),
			RSquared:   ev.RSquared,
			Cost:       res.Cost,
			Iterations: res.Iterations,
		},
		Params:  stats.Params(res, names),
		Samples: samples,
	}
	return fitOutcome{Result: res, Evaluation: ev, Names: names, Record: rec}, nil
}

func log10All(values []float64) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		if !(v > 0) {
			return nil, fmt.Errorf("%w: response %g at row %d is not positive", model.ErrNonFinite, v, i)
		}
		out[i] = math.Log10(v)
	}
	return out, nil
}
