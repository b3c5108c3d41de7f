// Package generator builds synthetic (reduced time, response) data sets.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/verte-zerg/pronyfit/internal/curve"
	"github.com/verte-zerg/pronyfit/internal/model"
)

// Request describes a synthetic data set.
type Request struct {
	Spec   model.Spec
	Params []float64
	// Reduced times are log-spaced between 10^MinExp and 10^MaxExp.
	MinExp float64
	MaxExp float64
	Points int
	// Noise is the relative standard deviation of multiplicative Gaussian noise.
	Noise   float64
	Shuffle bool
}

// Generator produces randomized synthetic samples.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a Generator with a fixed seed for reproducible output.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate evaluates the model on a log-spaced grid and applies noise and
// shuffling. Sigmoid responses are returned as moduli (10^log10E).
func (g *Generator) Generate(req Request) ([]model.Sample, error) {
	m, err := curve.New(req.Spec)
	if err != nil {
		return nil, err
	}
	if len(req.Params) != m.Arity() {
		return nil, fmt.Errorf("%s takes %d parameters, got %d", req.Spec, m.Arity(), len(req.Params))
	}
	if req.Points < 2 {
		return nil, fmt.Errorf("need at least 2 points, got %d", req.Points)
	}
	if !(req.MinExp < req.MaxExp) {
		return nil, fmt.Errorf("time range 10^%g..10^%g is empty", req.MinExp, req.MaxExp)
	}

	samples := make([]model.Sample, req.Points)
	step := (req.MaxExp - req.MinExp) / float64(req.Points-1)
	for i := range samples {
		t := math.Pow(10, req.MinExp+float64(i)*step)
		y := m.Eval(t, req.Params)
		if req.Spec.Kind.LogResponse() {
			y = math.Pow(10, y)
		}
		samples[i] = model.Sample{ReducedTime: t, Response: applyNoise(g.rnd, y, req.Noise)}
	}
	if req.Shuffle {
		g.rnd.Shuffle(len(samples), func(i, j int) {
			samples[i], samples[j] = samples[j], samples[i]
		})
	}
	return samples, nil
}

func applyNoise(rnd *rand.Rand, y, noise float64) float64 {
	if noise <= 0 {
		return y
	}
	return y * (1 + noise*rnd.NormFloat64())
}
