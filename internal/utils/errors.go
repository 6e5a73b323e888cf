package utils

import (
	"errors"
	"fmt"
)

// AppError wraps an operation, the pipeline stage it failed in, a human-facing message,
// and the underlying error.
type AppError struct {
	Op    string
	Stage string
	Msg   string
	Err   error
}

func (e *AppError) Error() string {
	prefix := e.Op
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Op, e.Stage)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// NewStageError records which stage of a run failed.
func NewStageError(op, stage string, err error) error {
	return &AppError{Op: op, Stage: stage, Msg: "stage failed", Err: err}
}

// StageOf returns the stage recorded on the outermost AppError in err's chain.
func StageOf(err error) string {
	var app *AppError
	for err != nil {
		if !errors.As(err, &app) {
			return ""
		}
		if app.Stage != "" {
			return app.Stage
		}
		err = app.Err
	}
	return ""
}
