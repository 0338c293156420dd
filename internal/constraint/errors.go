package constraint

import "errors"

var (
	ErrDivisionMismatch = errors.New("committee type does not belong to the candidate division")
	ErrInvalidCadence   = errors.New("committee type has an unknown cadence")
	ErrInvalidWeekday   = errors.New("committee type weekday out of range")
)
