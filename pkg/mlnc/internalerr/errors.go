package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrUnknownDomain    = errors.New("unknown domain")
	ErrUnknownPredicate = errors.New("unknown predicate")
	ErrUnknownFunction  = errors.New("unknown function")
	ErrMalformedFormula = errors.New("malformed formula")
	ErrCannotDecompose  = errors.New("theory cannot be decomposed")
	ErrHeadsMismatch    = errors.New("definite clause heads cannot be merged")
	ErrDiverged         = errors.New("distribution did not reach a fixed point")
)
