// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/pronyfit/internal/fit"
	"github.com/verte-zerg/pronyfit/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Fit    FitConfig               `toml:"fit"`
	Solver SolverConfig            `toml:"solver"`
	Log    LogConfig               `toml:"log"`
	Policy map[string]PolicyConfig `toml:"policy"`
}

// FitConfig maps defaults for the fit command.
type FitConfig struct {
	Kind           *string  `toml:"kind"`
	Terms          *int     `toml:"terms"`
	TimeColumn     *string  `toml:"time-column"`
	ResponseColumn *string  `toml:"response-column"`
	GridMin        *float64 `toml:"grid-min"`
	GridMax        *float64 `toml:"grid-max"`
	GridPoints     *int     `toml:"grid-points"`
	Plot           *bool    `toml:"plot"`
	Save           *bool    `toml:"save"`
}

// SolverConfig maps solver tolerances.
type SolverConfig struct {
	MaxIterations *int     `toml:"max-iterations"`
	FTol          *float64 `toml:"ftol"`
	XTol          *float64 `toml:"xtol"`
	GTol          *float64 `toml:"gtol"`
	Jacobian      *string  `toml:"jacobian"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// PolicyConfig overrides the default policy of one model kind.
type PolicyConfig struct {
	InitialGuess *string   `toml:"initial-guess"`
	Guess        []float64 `toml:"guess"`
	Lower        *float64  `toml:"lower"`
	Upper        *float64  `toml:"upper"`
	Algorithm    *string   `toml:"algorithm"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	for name := range cfg.Policy {
		if _, err := model.ParseKind(name); err != nil {
			return FileConfig{}, fmt.Errorf("invalid [policy.%s] section: %w", name, err)
		}
	}
	return cfg, nil
}

// PolicyFor returns the default policy for kind with any [policy.<kind>]
// overrides applied. Section names may use kind aliases.
func (c FileConfig) PolicyFor(kind model.Kind) (fit.Policy, error) {
	p := fit.DefaultPolicy(kind)
	for name, pc := range c.Policy {
		k, err := model.ParseKind(name)
		if err != nil || k != kind {
			continue
		}
		if p, err = ApplyPolicy(p, pc); err != nil {
			return fit.Policy{}, fmt.Errorf("invalid [policy.%s] section: %w", name, err)
		}
	}
	return p, nil
}

// ApplyPolicy overrides the fields of base that pc sets.
func ApplyPolicy(base fit.Policy, pc PolicyConfig) (fit.Policy, error) {
	if pc.InitialGuess != nil {
		g, err := fit.ParseGuess(*pc.InitialGuess)
		if err != nil {
			return fit.Policy{}, err
		}
		base.Guess = g
	}
	if pc.Guess != nil {
		base.Guess = fit.InitialGuess{Strategy: fit.GuessExplicit, Values: append([]float64(nil), pc.Guess...)}
	}
	if pc.Lower != nil {
		base.Bounds.Lower = *pc.Lower
	}
	if pc.Upper != nil {
		base.Bounds.Upper = *pc.Upper
	}
	if pc.Algorithm != nil {
		a, err := fit.ParseAlgorithm(*pc.Algorithm)
		if err != nil {
			return fit.Policy{}, err
		}
		base.Algorithm = a
	}
	return base, nil
}

// Options merges [solver] into the default solver options.
func (c FileConfig) Options() (fit.Options, error) {
	opts := fit.DefaultOptions()
	s := c.Solver
	if s.MaxIterations != nil {
		opts.MaxIterations = *s.MaxIterations
	}
	if s.FTol != nil {
		opts.FTol = *s.FTol
	}
	if s.XTol != nil {
		opts.XTol = *s.XTol
	}
	if s.GTol != nil {
		opts.GTol = *s.GTol
	}
	if s.Jacobian != nil {
		mode, err := fit.ParseJacobian(*s.Jacobian)
		if err != nil {
			return fit.Options{}, err
		}
		opts.Jacobian = mode
	}
	return opts, nil
}
