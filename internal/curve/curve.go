// Package curve provides the closed-form viscoelastic model families.
//
// Each family generator returns an immutable Model for a fixed parameter
// arity. Models hold no mutable state and are safe to share between fits.
package curve

import (
	"fmt"

	"github.com/verte-zerg/pronyfit/internal/model"
)

// Func evaluates a model at reduced time t for the parameter vector p.
type Func func(t float64, p []float64) float64

// GradFunc writes the partial derivatives of a model with respect to p into dst.
type GradFunc func(dst []float64, t float64, p []float64)

// Model is a fixed-arity model instance.
type Model struct {
	spec  model.Spec
	arity int
	eval  Func
	grad  GradFunc
	names []string
}

// New builds the model for spec.
func New(spec model.Spec) (Model, error) {
	if err := spec.Validate(); err != nil {
		return Model{}, err
	}
	switch spec.Kind {
	case model.KindPronyCompliance:
		return PronyCompliance(spec.Terms), nil
	case model.KindPronyModulus:
		return PronyModulus(spec.Terms), nil
	case model.KindSigmoid:
		return Sigmoid(), nil
	case model.KindPowerLaw:
		return PowerLaw(), nil
	case model.KindModifiedPowerLaw:
		return ModifiedPowerLaw(), nil
	case model.KindGeneralizedPowerLaw:
		return GeneralizedPowerLaw(spec.Terms), nil
	}
	return Model{}, fmt.Errorf("unsupported model kind %s", spec.Kind)
}

// Spec returns the kind and term count the model was built for.
func (m Model) Spec() model.Spec { return m.spec }

// Arity returns the required parameter vector length.
func (m Model) Arity() int { return m.arity }

// ParamNames returns display names in parameter order.
func (m Model) ParamNames() []string {
	return append([]string(nil), m.names...)
}

// Eval evaluates the model at t. It panics when len(p) does not match the arity.
func (m Model) Eval(t float64, p []float64) float64 {
	m.mustArity(p)
	return m.eval(t, p)
}

// Predict evaluates the model at every t in ts.
func (m Model) Predict(ts []float64, p []float64) []float64 {
	m.mustArity(p)
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = m.eval(t, p)
	}
	return out
}

// Gradient writes df/dp at t into dst, which must have the model arity.
func (m Model) Gradient(dst []float64, t float64, p []float64) {
	m.mustArity(p)
	if len(dst) != m.arity {
		panic(fmt.Sprintf("curve: gradient buffer has length %d, %s needs %d", len(dst), m.spec, m.arity))
	}
	m.grad(dst, t, p)
}

func (m Model) mustArity(p []float64) {
	if m.eval == nil {
		panic("curve: use of zero Model")
	}
	if len(p) != m.arity {
		panic(fmt.Sprintf("curve: %s takes %d parameters, got %d", m.spec, m.arity, len(p)))
	}
}

// MSE returns the mean squared error objective of m against (ts, ys).
func MSE(m Model, ts, ys []float64) func(p []float64) float64 {
	return func(p []float64) float64 {
		m.mustArity(p)
		if len(ts) == 0 {
			return 0
		}
		var sum float64
		for i, t := range ts {
			d := m.eval(t, p) - ys[i]
			sum += d * d
		}
		return sum / float64(len(ts))
	}
}

func mustTerms(kind model.Kind, nn int) {
	if nn < 1 {
		panic(fmt.Sprintf("curve: %s needs at least one term, got %d", kind, nn))
	}
}
