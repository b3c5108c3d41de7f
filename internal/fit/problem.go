package fit

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/verte-zerg/pronyfit/internal/curve"
)

// problem is a least-squares problem r(x) = f(t, x) - y under scalar bounds.
type problem struct {
	model    curve.Model
	t        []float64
	y        []float64
	lower    float64
	upper    float64
	jacobian JacobianMode
	grad     []float64
}

func newProblem(m curve.Model, t, y []float64, b Bounds, mode JacobianMode) *problem {
	return &problem{
		model:    m,
		t:        t,
		y:        y,
		lower:    b.Lower,
		upper:    b.Upper,
		jacobian: mode,
		grad:     make([]float64, m.Arity()),
	}
}

func (p *problem) dims() (int, int) { return len(p.t), p.model.Arity() }

// residuals writes f(t_i, x) - y_i into dst.
func (p *problem) residuals(dst, x []float64) {
	for i, t := range p.t {
		dst[i] = p.model.Eval(t, x) - p.y[i]
	}
}

// cost is half the residual sum of squares.
func cost(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}

// jacobianAt fills dst (m x n) with dr/dx at x.
func (p *problem) jacobianAt(dst *mat.Dense, x []float64) {
	if p.jacobian == JacobianNumeric {
		fd.Jacobian(dst, p.residuals, x, &fd.JacobianSettings{Formula: fd.Central})
		return
	}
	for i, t := range p.t {
		p.model.Gradient(p.grad, t, x)
		dst.SetRow(i, p.grad)
	}
}

func (p *problem) clip(x []float64) {
	for i, v := range x {
		x[i] = math.Min(math.Max(v, p.lower), p.upper)
	}
}

// pinned marks parameters sitting on a bound whose gradient pushes them
// further out. Those are frozen for the current step.
func (p *problem) pinned(dst []bool, x, g []float64) {
	for j := range x {
		dst[j] = (x[j] <= p.lower && g[j] > 0) || (x[j] >= p.upper && g[j] < 0)
	}
}

// gradientConverged applies the MINPACK cosine test: the largest cosine
// between a free Jacobian column and the residual vector is at most gtol.
func gradientConverged(jac *mat.Dense, g, r []float64, pinned []bool, gtol float64) bool {
	rnorm := floats.Norm(r, 2)
	if rnorm == 0 {
		return true
	}
	_, n := jac.Dims()
	worst := 0.0
	for j := 0; j < n; j++ {
		if pinned[j] {
			continue
		}
		cnorm := mat.Norm(jac.ColView(j), 2)
		if cnorm == 0 {
			continue
		}
		worst = math.Max(worst, math.Abs(g[j])/(cnorm*rnorm))
	}
	return worst <= gtol
}

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// solution is the terminal state of a solver run.
type solution struct {
	x          []float64
	residuals  []float64
	cost       float64
	iterations int
}
