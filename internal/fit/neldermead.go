package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/verte-zerg/pronyfit/internal/curve"
	"github.com/verte-zerg/pronyfit/internal/logger"
)

// nelderMead minimizes the mean squared error of the model with gonum's
// simplex method. Candidates are clipped into the bounds before evaluation.
func nelderMead(p *problem, x0 []float64, opts Options) (solution, error) {
	_, n := p.dims()
	mse := curve.MSE(p.model, p.t, p.y)
	buf := make([]float64, n)
	objective := func(x []float64) float64 {
		copy(buf, x)
		p.clip(buf)
		v := mse(buf)
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}

	start := append([]float64(nil), x0...)
	p.clip(start)
	settings := &optimize.Settings{
		MajorIterations: simplexIterations(opts, n),
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.FTol,
			Relative:   opts.FTol,
			Iterations: 50 * n,
		},
	}
	res, err := optimize.Minimize(optimize.Problem{Func: objective}, start, settings, &optimize.NelderMead{})
	if err != nil {
		return solution{}, fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}
	switch res.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.Failure:
		return solution{}, fmt.Errorf("%w: nelder-mead stopped with status %v", ErrNoConvergence, res.Status)
	}

	x := append([]float64(nil), res.X...)
	p.clip(x)
	r := make([]float64, len(p.t))
	p.residuals(r, x)
	logger.Debug("nelder-mead finished", "status", res.Status, "iterations", res.MajorIterations, "evaluations", res.FuncEvaluations)
	return solution{x: x, residuals: r, cost: cost(r), iterations: res.MajorIterations}, nil
}

// simplexIterations gives the simplex a larger default budget than the
// derivative-based solvers since it only compares function values.
func simplexIterations(opts Options, n int) int {
	if opts.MaxIterations > 0 {
		return opts.MaxIterations
	}
	return 2 * opts.maxIterations(n)
}
