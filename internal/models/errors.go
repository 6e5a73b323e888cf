package models

import (
	"errors"
	"fmt"
)

// InsufficientDataError reports that a stage received fewer observations than it needs.
type InsufficientDataError struct {
	Stage string
	Need  int
	Got   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need at least %d observations, got %d", e.Stage, e.Need, e.Got)
}

// DegenerateInputError reports mathematically undefined input such as a zero-variance series.
type DegenerateInputError struct {
	Stage  string
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("%s: degenerate input: %s", e.Stage, e.Reason)
}

// SingularDesignError reports a rank-deficient regression design matrix.
type SingularDesignError struct {
	Stage  string
	Reason string
}

func (e *SingularDesignError) Error() string {
	return fmt.Sprintf("%s: singular design: %s", e.Stage, e.Reason)
}

// IsPrecondition reports whether err is an insufficient-data or degenerate-input
// failure, i.e. the test could not be applied to this data.
func IsPrecondition(err error) bool {
	var insufficient *InsufficientDataError
	var degenerate *DegenerateInputError
	return errors.As(err, &insufficient) || errors.As(err, &degenerate)
}

// IsInputError reports whether err belongs to the analysis error taxonomy.
func IsInputError(err error) bool {
	var singular *SingularDesignError
	return IsPrecondition(err) || errors.As(err, &singular)
}
