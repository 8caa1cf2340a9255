package core

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind tells the lifecycle driver whether a failed step may be retried.
type ErrorKind int

const (
	Retryable ErrorKind = iota + 1
	Fatal
)

func (k ErrorKind) String() string {
	switch k {
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Lifecycle stages reported in StepError.
const (
	StageLookup  = "lookup"
	StageStart   = "start"
	StageFetch   = "fetch"
	StageDecode  = "decode"
	StageExtract = "extract"
	StagePersist = "persist"
)

// StepError is the outcome of a failed lifecycle step.
type StepError struct {
	Kind  ErrorKind
	Stage string
	Err   error
	// Detail is the full diagnostic rendering stored as error_detail.
	Detail string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func retryable(stage string, err error) *StepError {
	return &StepError{Kind: Retryable, Stage: stage, Err: err, Detail: stackDetail(err)}
}

func fatal(stage string, err error) *StepError {
	return &StepError{Kind: Fatal, Stage: stage, Err: err, Detail: stackDetail(err)}
}

// stackDetail renders err with the stack of the current call site.
func stackDetail(err error) string {
	return fmt.Sprintf("%+v", pkgerrors.WithStack(err))
}

// IsRetryable reports whether err is a StepError that may be retried.
func IsRetryable(err error) bool {
	var se *StepError
	return errors.As(err, &se) && se.Kind == Retryable
}
