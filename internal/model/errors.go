package model

import "errors"

// Sentinel errors shared across the engine. Callers are expected to test with
// errors.Is rather than matching message text.
var (
	// ErrValidation marks malformed or out-of-range inputs. Rejected before
	// any learning state is mutated.
	ErrValidation = errors.New("validation error")

	// ErrUnknownDecision marks a trade that references a decision id the
	// engine has never issued.
	ErrUnknownDecision = errors.New("unknown decision id")

	// ErrDuplicateTrade marks a trade id that has already been learned from.
	ErrDuplicateTrade = errors.New("duplicate trade")
)
