package fit

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/pronyfit/internal/model"
)

// Algorithm selects the optimizer used for a fit.
type Algorithm int

const (
	// TrustRegionReflective is the bounded damped Gauss-Newton solver.
	TrustRegionReflective Algorithm = iota + 1
	// Dogbox is a dogleg trust-region solver in a rectangular box.
	Dogbox
	// LevenbergMarquardt is the unbounded damped Gauss-Newton solver.
	LevenbergMarquardt
	// NelderMead minimizes the mean squared error without derivatives.
	NelderMead
)

var algorithmNames = map[Algorithm]string{
	TrustRegionReflective: "trf",
	Dogbox:                "dogbox",
	LevenbergMarquardt:    "lm",
	NelderMead:            "nelder-mead",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// ParseAlgorithm resolves an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trf", "trust-region-reflective":
		return TrustRegionReflective, nil
	case "dogbox":
		return Dogbox, nil
	case "lm", "levenberg-marquardt":
		return LevenbergMarquardt, nil
	case "nelder-mead", "neldermead", "simplex":
		return NelderMead, nil
	}
	return 0, fmt.Errorf("%w: unknown algorithm %q (use trf, dogbox, lm or nelder-mead)", ErrInvalidPolicy, s)
}

// GuessStrategy selects how the initial parameter vector is built.
type GuessStrategy int

const (
	GuessZeros GuessStrategy = iota + 1
	GuessOnes
	GuessConstant
	GuessLogSpaced
	GuessExplicit
)

// InitialGuess describes the starting point of a fit.
type InitialGuess struct {
	Strategy GuessStrategy
	// Value is used by GuessConstant.
	Value float64
	// Values is used by GuessExplicit and must match the model arity.
	Values []float64
}

func (g InitialGuess) String() string {
	switch g.Strategy {
	case GuessZeros:
		return "zeros"
	case GuessOnes:
		return "ones"
	case GuessConstant:
		return fmt.Sprintf("constant(%g)", g.Value)
	case GuessLogSpaced:
		return "log-spaced"
	case GuessExplicit:
		parts := make([]string, len(g.Values))
		for i, v := range g.Values {
			parts[i] = fmt.Sprintf("%g", v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "unset"
}

// ParseGuess resolves "zeros", "ones", "log-spaced" or a number (constant guess).
func ParseGuess(s string) (InitialGuess, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "zeros", "zero":
		return InitialGuess{Strategy: GuessZeros}, nil
	case "ones", "one":
		return InitialGuess{Strategy: GuessOnes}, nil
	case "log-spaced", "logspaced":
		return InitialGuess{Strategy: GuessLogSpaced}, nil
	}
	var v float64
	if _, err := fmt.Sscanf(name, "%g", &v); err == nil {
		return InitialGuess{Strategy: GuessConstant, Value: v}, nil
	}
	return InitialGuess{}, fmt.Errorf("%w: unknown initial guess %q (use zeros, ones, log-spaced or a number)", ErrInvalidPolicy, s)
}

// Vector builds the starting parameters for spec. tr is only consulted by
// GuessLogSpaced.
func (g InitialGuess) Vector(spec model.Spec, tr []float64) ([]float64, error) {
	n := spec.Arity()
	p := make([]float64, n)
	switch g.Strategy {
	case GuessZeros:
	case GuessOnes:
		fill(p, 1)
	case GuessConstant:
		fill(p, g.Value)
	case GuessLogSpaced:
		logSpacedGuess(p, spec, tr)
	case GuessExplicit:
		if len(g.Values) != n {
			return nil, fmt.Errorf("%w: explicit guess has %d values, %s needs %d", ErrInvalidPolicy, len(g.Values), spec, n)
		}
		copy(p, g.Values)
	default:
		return nil, fmt.Errorf("%w: initial guess strategy is not set", ErrInvalidPolicy)
	}
	return p, nil
}

// logSpacedGuess spreads the time constants over the decades covered by tr
// and leaves every magnitude at zero. Kinds without time constants get zeros.
func logSpacedGuess(p []float64, spec model.Spec, tr []float64) {
	lo, hi := decadeRange(tr)
	nn := spec.Terms
	at := func(i int) float64 {
		return lo + (float64(i)+0.5)*(hi-lo)/float64(nn)
	}
	switch spec.Kind {
	case model.KindPronyCompliance, model.KindPronyModulus:
		for i := 0; i < nn; i++ {
			p[2*i+2] = at(i)
		}
	case model.KindGeneralizedPowerLaw:
		p[1] = 1
		for i := 0; i < nn; i++ {
			p[2*i+3] = math.Pow(10, at(i))
		}
	}
}

func decadeRange(tr []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range tr {
		if t <= 0 || math.IsInf(t, 0) || math.IsNaN(t) {
			continue
		}
		d := math.Log10(t)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

func fill(p []float64, v float64) {
	for i := range p {
		p[i] = v
	}
}

// Bounds are scalar box constraints applied to every parameter.
type Bounds struct {
	Lower float64
	Upper float64
}

// Unbounded returns (-inf, +inf).
func Unbounded() Bounds { return Bounds{Lower: math.Inf(-1), Upper: math.Inf(1)} }

// NonNegative returns [0, +inf).
func NonNegative() Bounds { return Bounds{Lower: 0, Upper: math.Inf(1)} }

// Finite reports whether either side constrains the parameters.
func (b Bounds) Finite() bool {
	return !math.IsInf(b.Lower, -1) || !math.IsInf(b.Upper, 1)
}

func (b Bounds) String() string {
	if !b.Finite() {
		return "none"
	}
	return fmt.Sprintf("[%g, %g]", b.Lower, b.Upper)
}

// Policy is the per-kind fitting configuration.
type Policy struct {
	Guess     InitialGuess
	Bounds    Bounds
	Algorithm Algorithm
}

// Validate checks the policy against spec.
func (p Policy) Validate(spec model.Spec) error {
	if _, ok := algorithmNames[p.Algorithm]; !ok {
		return fmt.Errorf("%w: algorithm is not set", ErrInvalidPolicy)
	}
	if !(p.Bounds.Lower < p.Bounds.Upper) {
		return fmt.Errorf("%w: lower bound %g must be below upper bound %g", ErrInvalidPolicy, p.Bounds.Lower, p.Bounds.Upper)
	}
	if p.Algorithm == LevenbergMarquardt && p.Bounds.Finite() {
		return fmt.Errorf("%w: lm does not support bounds, use trf or dogbox", ErrInvalidPolicy)
	}
	if p.Guess.Strategy == GuessExplicit && len(p.Guess.Values) != spec.Arity() {
		return fmt.Errorf("%w: explicit guess has %d values, %s needs %d", ErrInvalidPolicy, len(p.Guess.Values), spec, spec.Arity())
	}
	return nil
}

var defaultPolicies = map[model.Kind]Policy{
	model.KindPronyCompliance: {
		Guess:     InitialGuess{Strategy: GuessZeros},
		Bounds:    NonNegative(),
		Algorithm: TrustRegionReflective,
	},
	// Relaxation modulus fits run without bounds (Hu & Zhou 2014) while still
	// requesting the trust-region solver, which then behaves as plain LM.
	model.KindPronyModulus: {
		Guess:     InitialGuess{Strategy: GuessZeros},
		Bounds:    Unbounded(),
		Algorithm: TrustRegionReflective,
	},
	model.KindSigmoid: {
		Guess:     InitialGuess{Strategy: GuessZeros},
		Bounds:    Unbounded(),
		Algorithm: NelderMead,
	},
	model.KindPowerLaw: {
		Guess:     InitialGuess{Strategy: GuessZeros},
		Bounds:    Unbounded(),
		Algorithm: LevenbergMarquardt,
	},
	model.KindModifiedPowerLaw: {
		Guess:     InitialGuess{Strategy: GuessOnes},
		Bounds:    NonNegative(),
		Algorithm: Dogbox,
	},
	model.KindGeneralizedPowerLaw: {
		Guess:     InitialGuess{Strategy: GuessOnes},
		Bounds:    NonNegative(),
		Algorithm: TrustRegionReflective,
	},
}

// DefaultPolicy returns the built-in policy for kind.
func DefaultPolicy(kind model.Kind) Policy {
	p, ok := defaultPolicies[kind]
	if !ok {
		return Policy{Guess: InitialGuess{Strategy: GuessZeros}, Bounds: Unbounded(), Algorithm: TrustRegionReflective}
	}
	if p.Guess.Values != nil {
		p.Guess.Values = append([]float64(nil), p.Guess.Values...)
	}
	return p
}

// PolicyTable returns the default policies ordered by kind.
func PolicyTable() []KindPolicy {
	out := make([]KindPolicy, 0, len(defaultPolicies))
	for kind := range defaultPolicies {
		out = append(out, KindPolicy{Kind: kind, Policy: DefaultPolicy(kind)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// KindPolicy pairs a kind with its policy.
type KindPolicy struct {
	Kind   model.Kind
	Policy Policy
}

// JacobianMode selects how solver Jacobians are computed.
type JacobianMode int

const (
	JacobianAnalytic JacobianMode = iota
	JacobianNumeric
)

// ParseJacobian resolves "analytic" or "numeric".
func ParseJacobian(s string) (JacobianMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "analytic":
		return JacobianAnalytic, nil
	case "numeric", "fd", "finite-difference":
		return JacobianNumeric, nil
	}
	return 0, fmt.Errorf("unknown jacobian mode %q (use analytic or numeric)", s)
}

// Options are solver tolerances and budgets.
type Options struct {
	// MaxIterations caps solver iterations; zero selects 500*(n+1).
	MaxIterations int
	FTol          float64
	XTol          float64
	GTol          float64
	Jacobian      JacobianMode
}

// DefaultOptions returns the standard tolerances.
func DefaultOptions() Options {
	return Options{
		FTol:     1e-10,
		XTol:     1e-10,
		GTol:     1e-10,
		Jacobian: JacobianAnalytic,
	}
}

func (o Options) maxIterations(n int) int {
	if o.MaxIterations > 0 {
		return o.MaxIterations
	}
	return 500 * (n + 1)
}
