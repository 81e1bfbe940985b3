package model

import (
	"errors"
	"fmt"
)

// Sentinel kinds for domain validation errors. Every specific kind wraps
// ErrValidation so callers can branch on errors.Is(err, ErrValidation).
var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidClock     = fmt.Errorf("%w: invalid match clock", ErrValidation)
	ErrInvalidScore     = fmt.Errorf("%w: invalid score", ErrValidation)
	ErrInvalidWindow    = fmt.Errorf("%w: invalid rolling window", ErrValidation)
	ErrInvalidSide      = fmt.Errorf("%w: invalid team side", ErrValidation)
	ErrInvalidEventType = fmt.Errorf("%w: invalid event type", ErrValidation)
	ErrInvalidStatus    = fmt.Errorf("%w: invalid match status", ErrValidation)
)
