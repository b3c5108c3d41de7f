package fit

import "errors"

var (
	// ErrNoConvergence is returned when a solver exhausts its budget or breaks down.
	ErrNoConvergence = errors.New("solver did not converge")
	// ErrInvalidPolicy is returned for inconsistent fitting configuration.
	ErrInvalidPolicy = errors.New("invalid fit policy")
)
