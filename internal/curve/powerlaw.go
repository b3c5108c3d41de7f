package curve

import (
	"fmt"
	"math"

	"github.com/verte-zerg/pronyfit/internal/model"
)

// PowerLaw builds D(t) = p0 + p1*t^p2.
func PowerLaw() Model {
	eval := func(t float64, p []float64) float64 {
		return p[0] + p[1]*math.Pow(t, p[2])
	}
	grad := func(dst []float64, t float64, p []float64) {
		pw := math.Pow(t, p[2])
		dst[0] = 1
		dst[1] = pw
		dst[2] = 0
		if pw != 0 {
			dst[2] = p[1] * pw * math.Log(t)
		}
	}
	return Model{
		spec:  model.Spec{Kind: model.KindPowerLaw},
		arity: 3,
		eval:  eval,
		grad:  grad,
		names: []string{"D0", "D1", "n"},
	}
}

// ModifiedPowerLaw builds D(t) = p0 + (p2-p0)/(1+p3/t)^p1.
//
// p0 is the short-time limit, p2 the long-time limit, p1 the exponent and p3
// the characteristic time.
func ModifiedPowerLaw() Model {
	eval := func(t float64, p []float64) float64 {
		return p[0] + (p[2]-p[0])/math.Pow(1+p[3]/t, p[1])
	}
	grad := func(dst []float64, t float64, p []float64) {
		b := 1 + p[3]/t
		pw := math.Pow(b, -p[1])
		span := p[2] - p[0]
		dst[0] = 1 - pw
		dst[1] = 0
		dst[3] = 0
		if pw != 0 {
			dst[1] = -span * pw * math.Log(b)
			dst[3] = -span * p[1] * pw / (b * t)
		}
		dst[2] = pw
	}
	return Model{
		spec:  model.Spec{Kind: model.KindModifiedPowerLaw},
		arity: 4,
		eval:  eval,
		grad:  grad,
		names: []string{"D0", "n", "Dinf", "tau"},
	}
}

// GeneralizedPowerLaw builds the nn-term power law with one shared exponent
// k = p1:
//
//	D(t) = p0 + sum_i p[2i]/(1+p[2i+1]/t)^k
func GeneralizedPowerLaw(nn int) Model {
	mustTerms(model.KindGeneralizedPowerLaw, nn)
	names := make([]string, 0, 2*nn+2)
	names = append(names, "D0", "k")
	for i := 1; i <= nn; i++ {
		names = append(names, fmt.Sprintf("D%d", i), fmt.Sprintf("tau%d", i))
	}

	eval := func(t float64, p []float64) float64 {
		d := p[0]
		k := p[1]
		for i := 2; i < 2*nn+1; i += 2 {
			d += p[i] / math.Pow(1+p[i+1]/t, k)
		}
		return d
	}
	grad := func(dst []float64, t float64, p []float64) {
		k := p[1]
		dst[0] = 1
		dst[1] = 0
		for i := 2; i < 2*nn+1; i += 2 {
			b := 1 + p[i+1]/t
			pw := math.Pow(b, -k)
			dst[i] = pw
			dst[i+1] = 0
			if pw != 0 {
				dst[1] -= p[i] * pw * math.Log(b)
				dst[i+1] = -k * p[i] * pw / (b * t)
			}
		}
	}
	return Model{
		spec:  model.Spec{Kind: model.KindGeneralizedPowerLaw, Terms: nn},
		arity: 2*nn + 2,
		eval:  eval,
		grad:  grad,
		names: names,
	}
}
