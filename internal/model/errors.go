package model

import "errors"

// Input-shape errors shared by data preparation and fitting.
var (
	ErrEmptyInput      = errors.New("input is empty")
	ErrLengthMismatch  = errors.New("reduced time and response lengths differ")
	ErrNonFinite       = errors.New("input contains non-finite values")
	ErrNonPositiveTime = errors.New("reduced time must be positive")
)
