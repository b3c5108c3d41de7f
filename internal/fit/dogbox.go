package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/verte-zerg/pronyfit/internal/logger"
)

// dogbox is a dogleg trust-region method where the trust region is an
// infinity-norm box intersected with the parameter bounds.
func dogbox(p *problem, x0 []float64, opts Options) (solution, error) {
	m, n := p.dims()
	maxEval := opts.maxIterations(n)

	x := append([]float64(nil), x0...)
	p.clip(x)
	r := make([]float64, m)
	p.residuals(r, x)
	if !allFinite(r) {
		return solution{}, fmt.Errorf("%w: residuals are not finite at the initial guess", ErrNoConvergence)
	}
	c := cost(r)
	floor := tinyCost * floats.Dot(p.y, p.y)

	jac := mat.NewDense(m, n, nil)
	p.jacobianAt(jac, x)

	radius := floats.Norm(x, math.Inf(1))
	if radius == 0 {
		radius = 1
	}

	var (
		g     = make([]float64, n)
		pin   = make([]bool, n)
		xNew  = make([]float64, n)
		rNew  = make([]float64, m)
		jStep = make([]float64, m)
		evals = 0
		iter  = 0
	)

	for {
		gv := mat.NewVecDense(n, g)
		gv.MulVec(jac.T(), mat.NewVecDense(m, r))
		p.pinned(pin, x, g)
		if c <= floor || gradientConverged(jac, g, r, pin, opts.GTol) {
			return solution{x: x, residuals: r, cost: c, iterations: iter}, nil
		}
		iter++

		free := freeIndices(pin)
		jf := columns(jac, free)
		gf := pick(g, free)
		gn := gaussNewtonStep(jf, r)
		cauchy := cauchyStep(jf, gf)
		if floats.Norm(gn, 2) == 0 {
			gn = cauchy
		}

		lb := make([]float64, len(free))
		ub := make([]float64, len(free))
		for {
			if evals >= maxEval {
				return solution{}, fmt.Errorf("%w: %d evaluations exhausted", ErrNoConvergence, maxEval)
			}
			for i, j := range free {
				lb[i] = math.Max(p.lower-x[j], -radius)
				ub[i] = math.Min(p.upper-x[j], radius)
			}
			sf, hits := dogleg(gn, cauchy, lb, ub)
			step := make([]float64, n)
			for i, j := range free {
				step[j] = sf[i]
			}
			for j := range xNew {
				xNew[j] = x[j] + step[j]
			}
			p.clip(xNew)
			floats.SubTo(step, xNew, x)

			p.residuals(rNew, xNew)
			evals++
			cNew := cost(rNew)
			actual := c - cNew

			jv := mat.NewVecDense(m, jStep)
			jv.MulVec(jac, mat.NewVecDense(n, step))
			predicted := -(floats.Dot(g, step) + 0.5*floats.Dot(jStep, jStep))

			stepNorm := floats.Norm(step, math.Inf(1))
			ratio := -1.0
			if allFinite(rNew) && predicted > 0 {
				ratio = actual / predicted
			}
			switch {
			case ratio < 0.25:
				radius = 0.25 * stepNorm
			case ratio > 0.75 && hits:
				radius *= 2
			}

			small := floats.Norm(step, 2) <= opts.XTol*(opts.XTol+floats.Norm(x, 2))
			if allFinite(rNew) && actual > 0 {
				old := c
				copy(x, xNew)
				copy(r, rNew)
				c = cNew
				p.jacobianAt(jac, x)
				logger.Debug("dogbox step accepted", "iter", iter, "cost", c, "ratio", ratio, "radius", radius)
				if small || (actual <= opts.FTol*old && ratio > 0.25) {
					return solution{x: x, residuals: r, cost: c, iterations: iter}, nil
				}
				break
			}
			if small || radius == 0 {
				return solution{x: x, residuals: r, cost: c, iterations: iter}, nil
			}
		}
	}
}

// dogleg picks the step inside [lb, ub]. hits reports whether the step
// ends on the trust-region boundary.
func dogleg(gn, cauchy, lb, ub []float64) ([]float64, bool) {
	if inBox(gn, lb, ub) {
		return append([]float64(nil), gn...), false
	}
	zero := make([]float64, len(gn))
	if !inBox(cauchy, lb, ub) {
		alpha := maxStep(zero, cauchy, lb, ub)
		out := make([]float64, len(cauchy))
		floats.ScaleTo(out, alpha, cauchy)
		return out, true
	}
	dir := make([]float64, len(gn))
	floats.SubTo(dir, gn, cauchy)
	alpha := math.Min(maxStep(cauchy, dir, lb, ub), 1)
	out := make([]float64, len(gn))
	floats.AddScaledTo(out, cauchy, alpha, dir)
	return out, true
}

// maxStep is the largest alpha >= 0 with lb <= x + alpha*s <= ub.
func maxStep(x, s, lb, ub []float64) float64 {
	alpha := math.Inf(1)
	for i, si := range s {
		switch {
		case si > 0:
			alpha = math.Min(alpha, (ub[i]-x[i])/si)
		case si < 0:
			alpha = math.Min(alpha, (lb[i]-x[i])/si)
		}
	}
	if math.IsInf(alpha, 1) {
		return 0
	}
	return math.Max(alpha, 0)
}

func inBox(x, lb, ub []float64) bool {
	for i, v := range x {
		if v < lb[i] || v > ub[i] {
			return false
		}
	}
	return true
}

// gaussNewtonStep is the minimum-norm solution of J s = -r.
func gaussNewtonStep(jac *mat.Dense, r []float64) []float64 {
	_, n := jac.Dims()
	out := make([]float64, n)
	pinv, ok := pseudoInverse(jac)
	if !ok {
		return out
	}
	v := mat.NewVecDense(n, out)
	v.MulVec(pinv, mat.NewVecDense(len(r), r))
	v.ScaleVec(-1, v)
	if !allFinite(out) {
		return make([]float64, n)
	}
	return out
}

// cauchyStep minimizes the quadratic model along the steepest descent direction.
func cauchyStep(jac *mat.Dense, g []float64) []float64 {
	m, _ := jac.Dims()
	out := make([]float64, len(g))
	jg := mat.NewVecDense(m, nil)
	jg.MulVec(jac, mat.NewVecDense(len(g), g))
	denom := mat.Dot(jg, jg)
	if denom == 0 {
		return out
	}
	floats.ScaleTo(out, -floats.Dot(g, g)/denom, g)
	return out
}

func freeIndices(pin []bool) []int {
	out := make([]int, 0, len(pin))
	for j, pinned := range pin {
		if !pinned {
			out = append(out, j)
		}
	}
	return out
}

func columns(a *mat.Dense, idx []int) *mat.Dense {
	m, _ := a.Dims()
	if len(idx) == 0 {
		return mat.NewDense(m, 1, nil)
	}
	out := mat.NewDense(m, len(idx), nil)
	for k, j := range idx {
		for i := 0; i < m; i++ {
			out.Set(i, k, a.At(i, j))
		}
	}
	return out
}

func pick(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, j := range idx {
		out[k] = v[j]
	}
	return out
}
