// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies a model family.
type Kind int

const (
	KindPronyCompliance Kind = iota + 1
	KindPronyModulus
	KindSigmoid
	KindPowerLaw
	KindModifiedPowerLaw
	KindGeneralizedPowerLaw
)

var kindNames = map[Kind]string{
	KindPronyCompliance:     "prony-compliance",
	KindPronyModulus:        "prony-modulus",
	KindSigmoid:             "sigmoid",
	KindPowerLaw:            "power-law",
	KindModifiedPowerLaw:    "modified-power-law",
	KindGeneralizedPowerLaw: "generalized-power-law",
}

var kindAliases = map[string]Kind{
	"compliance": KindPronyCompliance,
	"j":          KindPronyCompliance,
	"modulus":    KindPronyModulus,
	"e":          KindPronyModulus,
}

// AllKinds lists every model family in display order.
func AllKinds() []Kind {
	return []Kind{
		KindPronyCompliance,
		KindPronyModulus,
		KindSigmoid,
		KindPowerLaw,
		KindModifiedPowerLaw,
		KindGeneralizedPowerLaw,
	}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is a known model family.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// UsesTerms reports whether the parameter count depends on a term count.
func (k Kind) UsesTerms() bool {
	switch k {
	case KindPronyCompliance, KindPronyModulus, KindGeneralizedPowerLaw:
		return true
	default:
		return false
	}
}

// LogResponse reports whether the model is fitted against log10 of the response.
func (k Kind) LogResponse() bool {
	return k == KindSigmoid
}

// ParseKind resolves a kind name or alias.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	names := make([]string, 0, len(kindNames))
	for _, k := range AllKinds() {
		names = append(names, k.String())
	}
	return 0, fmt.Errorf("unknown model kind %q (available: %s)", s, strings.Join(names, ", "))
}

// Spec selects a model family and, where it applies, its term count.
type Spec struct {
	Kind  Kind
	Terms int
}

// Validate checks that the spec describes a buildable model.
func (s Spec) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown model kind %d", int(s.Kind))
	}
	if s.Kind.UsesTerms() && s.Terms < 1 {
		return fmt.Errorf("%s needs at least one term, got %d", s.Kind, s.Terms)
	}
	return nil
}

// Arity returns the parameter vector length for the spec.
func (s Spec) Arity() int {
	switch s.Kind {
	case KindPronyCompliance, KindGeneralizedPowerLaw:
		return 2*s.Terms + 2
	case KindPronyModulus:
		return 2*s.Terms + 1
	case KindSigmoid, KindModifiedPowerLaw:
		return 4
	case KindPowerLaw:
		return 3
	default:
		return 0
	}
}

func (s Spec) String() string {
	if s.Kind.UsesTerms() {
		return fmt.Sprintf("%s/%d", s.Kind, s.Terms)
	}
	return s.Kind.String()
}

// Sample is one (reduced time, response) measurement.
type Sample struct {
	ReducedTime float64
	Response    float64
}

// FitResult is the output of a single fit.
type FitResult struct {
	Spec       Spec
	Params     []float64
	StdErrors  []float64
	Covariance [][]float64
	Algorithm  string
	Iterations int
	Cost       float64
}

// Goodness holds goodness-of-fit data aligned with the sorted samples.
type Goodness struct {
	RSquared  float64
	Residuals []float64
	Predicted []float64
	SSRes     float64
	SSTot     float64
}

// Param is a named fitted parameter.
type Param struct {
	Name     string
	Value    float64
	StdError float64
}

// FitSummary describes a stored fit without its vectors.
type FitSummary struct {
	ID         int64
	RunID      string
	CreatedAt  time.Time
	Spec       Spec
	Algorithm  string
	Source     string
	DataHash   string
	NSamples   int
	RSquared   float64
	Cost       float64
	Iterations int
}

// FitRecord is a stored fit with its parameters and samples.
type FitRecord struct {
	FitSummary
	Params  []Param
	Samples []Sample
}

// HistoryConfig defines filters for stored fits.
type HistoryConfig struct {
	Kind  string
	Since *time.Time
	Last  int
}
