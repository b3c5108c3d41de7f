package curve

import (
	"math"

	"github.com/verte-zerg/pronyfit/internal/model"
)

// Sigmoid builds the log-domain master curve
//
//	log10(E) = p0 + p1/(1 + exp(p2 + p3*log10(1/t)))
//
// Responses must be supplied as log10 values.
func Sigmoid() Model {
	eval := func(t float64, p []float64) float64 {
		return p[0] + p[1]*logistic(p[2]+p[3]*math.Log10(1/t))
	}
	grad := func(dst []float64, t float64, p []float64) {
		l := math.Log10(1 / t)
		s := logistic(p[2] + p[3]*l)
		dst[0] = 1
		dst[1] = s
		dst[2] = -p[1] * s * (1 - s)
		dst[3] = dst[2] * l
	}
	return Model{
		spec:  model.Spec{Kind: model.KindSigmoid},
		arity: 4,
		eval:  eval,
		grad:  grad,
		names: []string{"delta", "alpha", "beta", "gamma"},
	}
}

// SigmoidMSE is the mean squared error of the sigmoid against log10 responses.
func SigmoidMSE(p, ts, logE []float64) float64 {
	return MSE(Sigmoid(), ts, logE)(p)
}

// logistic returns 1/(1+exp(u)).
func logistic(u float64) float64 {
	return 1 / (1 + math.Exp(u))
}
