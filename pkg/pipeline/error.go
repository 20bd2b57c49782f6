package pipeline

import (
	"errors"
	"fmt"

	"github.com/David-Botos/country-ingress/pkg/connector"
)

var (
	// ErrNoData is returned by the fetch stage when the source yields no records
	ErrNoData = errors.New("source returned no country records")

	// ErrVerificationFailed is returned when committed rows are missing on read-back
	ErrVerificationFailed = errors.New("loaded rows missing from the store")
)

// ErrorCategory names the pipeline stage an error came from
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryFetch
	ErrorCategoryTransform
	ErrorCategoryConnect
	ErrorCategorySchema
	ErrorCategoryLoad
	ErrorCategoryVerify
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryFetch:
		return "Fetch"
	case ErrorCategoryTransform:
		return "Transform"
	case ErrorCategoryConnect:
		return "Connect"
	case ErrorCategorySchema:
		return "Schema"
	case ErrorCategoryLoad:
		return "Load"
	case ErrorCategoryVerify:
		return "Verify"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// StageError is the failure of one pipeline stage. The run stops at the first one.
type StageError struct {
	Stage ErrorCategory
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Retryable reports whether rerunning the job could succeed without intervention
func (e *StageError) Retryable() bool {
	switch e.Stage {
	case ErrorCategoryConnect, ErrorCategoryLoad, ErrorCategoryVerify:
		return connector.IsTransient(e.Err)
	default:
		return false
	}
}

// StageOf returns the stage of a wrapped StageError, or ErrorCategoryNone
func StageOf(err error) ErrorCategory {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ErrorCategoryNone
}

func stageError(stage ErrorCategory, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
