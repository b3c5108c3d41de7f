package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/pronyfit/internal/fit"
	"github.com/verte-zerg/pronyfit/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Fit.Kind != nil || cfg.Policy != nil {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := writeConfig(t, `
[fit]
kind = "modulus"
terms = 3
time-column = "tr"
grid-points = 80
plot = false

[solver]
max-iterations = 200
ftol = 1e-8
jacobian = "numeric"

[log]
level = "debug"

[policy.prony-modulus]
initial-guess = "log-spaced"
lower = 0.0
upper = inf
algorithm = "dogbox"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Fit.Kind == nil || *cfg.Fit.Kind != "modulus" {
		t.Fatalf("unexpected kind: %v", cfg.Fit.Kind)
	}
	if cfg.Fit.Terms == nil || *cfg.Fit.Terms != 3 {
		t.Fatalf("unexpected terms: %v", cfg.Fit.Terms)
	}
	if cfg.Fit.Plot == nil || *cfg.Fit.Plot {
		t.Fatalf("expected plot=false")
	}
	if cfg.Fit.Save != nil {
		t.Fatalf("expected save unset")
	}
	if cfg.Log.Level == nil || *cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %v", cfg.Log.Level)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.MaxIterations != 200 || opts.FTol != 1e-8 || opts.XTol != 1e-10 || opts.Jacobian != fit.JacobianNumeric {
		t.Fatalf("unexpected options: %+v", opts)
	}

	p, err := cfg.PolicyFor(model.KindPronyModulus)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if p.Guess.Strategy != fit.GuessLogSpaced || p.Algorithm != fit.Dogbox {
		t.Fatalf("unexpected policy: %+v", p)
	}
	if p.Bounds.Lower != 0 || !math.IsInf(p.Bounds.Upper, 1) {
		t.Fatalf("unexpected bounds: %v", p.Bounds)
	}

	other, err := cfg.PolicyFor(model.KindPowerLaw)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if other.Algorithm != fit.DefaultPolicy(model.KindPowerLaw).Algorithm {
		t.Fatalf("override leaked into power-law: %+v", other)
	}
}

func TestLoadConfigRejectsUnknownPolicyKind(t *testing.T) {
	path := writeConfig(t, "[policy.maxwell]\nalgorithm = \"lm\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for unknown kind section")
	}
}

func TestApplyPolicy(t *testing.T) {
	base := fit.DefaultPolicy(model.KindSigmoid)

	p, err := ApplyPolicy(base, PolicyConfig{Guess: []float64{1, 3, -0.5, 0.5}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.Guess.Strategy != fit.GuessExplicit || len(p.Guess.Values) != 4 {
		t.Fatalf("unexpected guess: %+v", p.Guess)
	}
	if p.Algorithm != base.Algorithm {
		t.Fatalf("algorithm changed without override")
	}

	bad := "simulated-annealing"
	if _, err := ApplyPolicy(base, PolicyConfig{Algorithm: &bad}); err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
	if _, err := ApplyPolicy(base, PolicyConfig{InitialGuess: &bad}); err == nil {
		t.Fatalf("expected error for unknown guess")
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_CONFIG_HOME", "/conf")
	if got := DefaultDBPath(); got != filepath.Join("/data", "pronyfit", "fits.db") {
		t.Fatalf("unexpected db path %q", got)
	}
	if got := DefaultConfigPath(); got != filepath.Join("/conf", "pronyfit", "config.toml") {
		t.Fatalf("unexpected config path %q", got)
	}
}
