package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/verte-zerg/pronyfit/internal/logger"
)

const (
	lmInitialDamping = 1e-3
	lmMaxDamping     = 1e300
	// Residual costs below tinyCost times the response energy count as exact.
	tinyCost = 1e-28
)

// levenbergMarquardt minimizes 0.5*|r(x)|^2 with a damped Gauss-Newton
// iteration. Damping is scaled by the running column norms of J (Moré).
// With finite bounds, parameters pinned at a bound are frozen and every
// trial point is projected into the box.
func levenbergMarquardt(p *problem, x0 []float64, opts Options) (solution, error) {
	m, n := p.dims()
	maxIter := opts.maxIterations(n)

	x := append([]float64(nil), x0...)
	p.clip(x)
	r := make([]float64, m)
	p.residuals(r, x)
	c := cost(r)
	if !allFinite(r) {
		return solution{}, fmt.Errorf("%w: residuals are not finite at the initial guess", ErrNoConvergence)
	}
	floor := tinyCost * floats.Dot(p.y, p.y)

	jac := mat.NewDense(m, n, nil)
	p.jacobianAt(jac, x)

	scale := make([]float64, n)
	updateScale(scale, jac)

	var (
		g      = make([]float64, n)
		pin    = make([]bool, n)
		step   = make([]float64, n)
		xNew   = make([]float64, n)
		rNew   = make([]float64, m)
		jStep  = make([]float64, m)
		mu     = lmInitialDamping
		nu     = 2.0
		normal mat.SymDense
	)

	for iter := 1; iter <= maxIter; iter++ {
		gv := mat.NewVecDense(n, g)
		gv.MulVec(jac.T(), mat.NewVecDense(m, r))
		p.pinned(pin, x, g)

		if c <= floor || gradientConverged(jac, g, r, pin, opts.GTol) {
			return solution{x: x, residuals: r, cost: c, iterations: iter - 1}, nil
		}

		normal.SymOuterK(1, jac.T())
		if !dampedStep(step, &normal, g, scale, pin, mu) {
			mu, nu = mu*nu, nu*2
			if mu > lmMaxDamping {
				return solution{}, fmt.Errorf("%w: damping overflow after %d iterations", ErrNoConvergence, iter)
			}
			continue
		}

		for j := range xNew {
			xNew[j] = x[j] + step[j]
		}
		p.clip(xNew)
		floats.SubTo(step, xNew, x)

		if floats.Norm(step, 2) <= opts.XTol*(opts.XTol+floats.Norm(x, 2)) {
			return solution{x: x, residuals: r, cost: c, iterations: iter}, nil
		}

		p.residuals(rNew, xNew)
		cNew := cost(rNew)
		actual := c - cNew

		jv := mat.NewVecDense(m, jStep)
		jv.MulVec(jac, mat.NewVecDense(n, step))
		predicted := -(floats.Dot(g, step) + 0.5*floats.Dot(jStep, jStep))

		if allFinite(rNew) && actual > 0 && predicted > 0 {
			rho := actual / predicted
			old := c
			copy(x, xNew)
			copy(r, rNew)
			c = cNew
			p.jacobianAt(jac, x)
			updateScale(scale, jac)
			mu *= math.Max(1.0/3, 1-math.Pow(2*rho-1, 3))
			nu = 2
			logger.Debug("lm step accepted", "iter", iter, "cost", c, "ratio", rho, "damping", mu)
			if actual <= opts.FTol*old && rho > 0.25 {
				return solution{x: x, residuals: r, cost: c, iterations: iter}, nil
			}
			continue
		}

		mu, nu = mu*nu, nu*2
		if mu > lmMaxDamping || math.IsInf(nu, 1) {
			return solution{}, fmt.Errorf("%w: damping overflow after %d iterations", ErrNoConvergence, iter)
		}
	}
	return solution{}, fmt.Errorf("%w: %d iterations exhausted", ErrNoConvergence, maxIter)
}

// updateScale keeps the running maximum of the Jacobian column norms.
// Columns that have only ever been zero keep a scale of one.
func updateScale(scale []float64, jac *mat.Dense) {
	for j := range scale {
		norm := mat.Norm(jac.ColView(j), 2)
		if norm > scale[j] {
			scale[j] = norm
		}
	}
}

// dampedStep solves (A_ff + mu*D_ff^2) s_f = -g_f over the free parameters
// and leaves pinned entries of step at zero.
func dampedStep(step []float64, a *mat.SymDense, g, scale []float64, pin []bool, mu float64) bool {
	for j := range step {
		step[j] = 0
	}
	free := make([]int, 0, len(step))
	for j, pinned := range pin {
		if !pinned {
			free = append(free, j)
		}
	}
	if len(free) == 0 {
		return true
	}

	k := len(free)
	sys := mat.NewSymDense(k, nil)
	rhs := mat.NewVecDense(k, nil)
	for i, fi := range free {
		for j := i; j < k; j++ {
			sys.SetSym(i, j, a.At(fi, free[j]))
		}
		d := scale[fi]
		if d == 0 {
			d = 1
		}
		sys.SetSym(i, i, sys.At(i, i)+mu*d*d)
		rhs.SetVec(i, -g[fi])
	}

	var chol mat.Cholesky
	if !chol.Factorize(sys) {
		return false
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, rhs); err != nil {
		return false
	}
	for i, fi := range free {
		step[fi] = sol.AtVec(i)
	}
	return allFinite(step)
}
