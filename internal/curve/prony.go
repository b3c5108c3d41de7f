package curve

import (
	"fmt"
	"math"

	"github.com/verte-zerg/pronyfit/internal/model"
)

// PronyCompliance builds the creep compliance series for nn terms:
//
//	D(t) = p0 + sum_i p[2i-1]*(1 - exp(-t/10^p[2i])) + t*p[2nn+1]
//
// p0 is the instantaneous compliance, each pair holds a magnitude and a
// log10 retardation time, and the trailing coefficient is the viscous flow.
func PronyCompliance(nn int) Model {
	mustTerms(model.KindPronyCompliance, nn)
	names := make([]string, 0, 2*nn+2)
	names = append(names, "D0")
	for i := 1; i <= nn; i++ {
		names = append(names, fmt.Sprintf("D%d", i), fmt.Sprintf("rho%d", i))
	}
	names = append(names, "flow")

	eval := func(t float64, p []float64) float64 {
		d := p[0]
		for i := 1; i < 2*nn; i += 2 {
			e, _ := decay(t, p[i+1])
			d += p[i] * (1 - e)
		}
		return d + t*p[2*nn+1]
	}
	grad := func(dst []float64, t float64, p []float64) {
		dst[0] = 1
		for i := 1; i < 2*nn; i += 2 {
			e, de := decay(t, p[i+1])
			dst[i] = 1 - e
			dst[i+1] = -p[i] * de
		}
		dst[2*nn+1] = t
	}
	return Model{
		spec:  model.Spec{Kind: model.KindPronyCompliance, Terms: nn},
		arity: 2*nn + 2,
		eval:  eval,
		grad:  grad,
		names: names,
	}
}

// PronyModulus builds the relaxation modulus series for nn terms:
//
//	E(t) = p0 + sum_i p[2i-1]*(exp(-t/10^p[2i]) - 1)
//
// E(0) = p0 and E(inf) = p0 - sum_i p[2i-1].
func PronyModulus(nn int) Model {
	mustTerms(model.KindPronyModulus, nn)
	names := make([]string, 0, 2*nn+1)
	names = append(names, "E0")
	for i := 1; i <= nn; i++ {
		names = append(names, fmt.Sprintf("E%d", i), fmt.Sprintf("rho%d", i))
	}

	eval := func(t float64, p []float64) float64 {
		e0 := p[0]
		for i := 1; i < 2*nn; i += 2 {
			e, _ := decay(t, p[i+1])
			e0 += p[i] * (e - 1)
		}
		return e0
	}
	grad := func(dst []float64, t float64, p []float64) {
		dst[0] = 1
		for i := 1; i < 2*nn; i += 2 {
			e, de := decay(t, p[i+1])
			dst[i] = e - 1
			dst[i+1] = p[i] * de
		}
	}
	return Model{
		spec:  model.Spec{Kind: model.KindPronyModulus, Terms: nn},
		arity: 2*nn + 1,
		eval:  eval,
		grad:  grad,
		names: names,
	}
}

// decay returns exp(-t/10^rho) and its derivative with respect to rho.
// Degenerate time constants (0 or +Inf) and t == 0 never produce NaN.
func decay(t, rho float64) (float64, float64) {
	if t == 0 {
		return 1, 0
	}
	tau := math.Pow(10, rho)
	x := t / tau
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return 0, 0
	}
	e := math.Exp(-x)
	if e == 0 {
		return 0, 0
	}
	return e, e * x * math.Ln10
}
