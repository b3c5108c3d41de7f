// Package fit estimates model parameters from (reduced time, response) data.
//
// The driver is stateless: each call builds the model, the starting point
// and the solver from its arguments and returns an immutable result.
package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/verte-zerg/pronyfit/internal/curve"
	"github.com/verte-zerg/pronyfit/internal/logger"
	"github.com/verte-zerg/pronyfit/internal/model"
)

// Optimize fits kind (with nn terms where the kind uses them) using the
// default policy and options.
func Optimize(tr, response []float64, kind model.Kind, nn int) (model.FitResult, error) {
	spec := model.Spec{Kind: kind, Terms: nn}
	return OptimizeWithPolicy(tr, response, spec, DefaultPolicy(kind), DefaultOptions())
}

// OptimizeWithPolicy fits spec under an explicit policy.
func OptimizeWithPolicy(tr, response []float64, spec model.Spec, policy Policy, opts Options) (model.FitResult, error) {
	if err := checkInput(tr, response); err != nil {
		return model.FitResult{}, err
	}
	m, err := curve.New(spec)
	if err != nil {
		return model.FitResult{}, fmt.Errorf("failed to build model: %w", err)
	}
	if err := policy.Validate(spec); err != nil {
		return model.FitResult{}, err
	}
	x0, err := policy.Guess.Vector(spec, tr)
	if err != nil {
		return model.FitResult{}, err
	}

	p := newProblem(m, tr, response, policy.Bounds, opts.Jacobian)
	logger.Debug("fit started",
		"spec", spec.String(),
		"algorithm", policy.Algorithm.String(),
		"guess", policy.Guess.String(),
		"bounds", policy.Bounds.String(),
		"samples", len(tr),
	)

	var sol solution
	switch policy.Algorithm {
	case TrustRegionReflective, LevenbergMarquardt:
		sol, err = levenbergMarquardt(p, x0, opts)
	case Dogbox:
		sol, err = dogbox(p, x0, opts)
	case NelderMead:
		sol, err = nelderMead(p, x0, opts)
	default:
		err = fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidPolicy, policy.Algorithm)
	}
	if err != nil {
		return model.FitResult{}, fmt.Errorf("failed to fit %s with %s: %w", spec, policy.Algorithm, err)
	}

	jac := mat.NewDense(len(tr), m.Arity(), nil)
	p.jacobianAt(jac, sol.x)
	cov := covariance(jac, sol.cost)

	logger.Debug("fit finished", "spec", spec.String(), "cost", sol.cost, "iterations", sol.iterations)
	return model.FitResult{
		Spec:       spec,
		Params:     sol.x,
		StdErrors:  stdErrors(cov),
		Covariance: cov,
		Algorithm:  policy.Algorithm.String(),
		Iterations: sol.iterations,
		Cost:       sol.cost,
	}, nil
}

func checkInput(tr, response []float64) error {
	if len(tr) != len(response) {
		return fmt.Errorf("%w: %d reduced times, %d responses", model.ErrLengthMismatch, len(tr), len(response))
	}
	if len(tr) == 0 {
		return model.ErrEmptyInput
	}
	for i := range tr {
		if !isFinite(tr[i]) || !isFinite(response[i]) {
			return fmt.Errorf("%w: sample %d is (%g, %g)", model.ErrNonFinite, i, tr[i], response[i])
		}
		if tr[i] <= 0 {
			return fmt.Errorf("%w: sample %d has reduced time %g", model.ErrNonPositiveTime, i, tr[i])
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
