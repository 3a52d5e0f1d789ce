package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error taxonomy for the model-check pipeline
var (
	ErrInvalidSpecification = errors.New("invalid model specification")
	ErrFitFailure           = errors.New("model fit failed")
	ErrSamplingFailure      = errors.New("predictive sampling failed")
	ErrNumericInstability   = errors.New("numeric instability")
	ErrInvalidInput         = errors.New("invalid input")
)

// Stage names a step of the model-check pipeline
type Stage string

const (
	StagePrepare   Stage = "prepare"
	StageFit       Stage = "fit"
	StagePropagate Stage = "propagate"
	StageSample    Stage = "sample"
	StageSupport   Stage = "causal_support"
)

// StageError attaches pipeline context to a domain error.
// It unwraps to the underlying error so errors.Is matches the sentinel.
type StageError struct {
	Stage  Stage
	Spec   string
	Family string
	Err    error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s stage", e.Stage)
	if e.Family != "" {
		msg += fmt.Sprintf(" (family=%s", e.Family)
		if e.Spec != "" {
			msg += fmt.Sprintf(", spec=%q", e.Spec)
		}
		msg += ")"
	} else if e.Spec != "" {
		msg += fmt.Sprintf(" (spec=%q)", e.Spec)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WrapStage returns err wrapped in a StageError, or nil if err is nil
func WrapStage(stage Stage, spec, family string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Spec: spec, Family: family, Err: err}
}

// Error constructors with context
func NewSpecError(spec string, reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %q: %s", ErrInvalidSpecification, spec, fmt.Sprintf(reason, args...))
}

func NewFitError(reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFitFailure, fmt.Sprintf(reason, args...))
}

func NewSamplingError(obs, draw int, reason string, args ...interface{}) error {
	return fmt.Errorf("%w: observation %d draw %d: %s", ErrSamplingFailure, obs, draw, fmt.Sprintf(reason, args...))
}

func NewNumericError(reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNumericInstability, fmt.Sprintf(reason, args...))
}

func NewInputError(reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(reason, args...))
}

// Error checking helpers
func IsSpecificationError(err error) bool {
	return errors.Is(err, ErrInvalidSpecification)
}

func IsFitError(err error) bool {
	return errors.Is(err, ErrFitFailure)
}

func IsSamplingError(err error) bool {
	return errors.Is(err, ErrSamplingFailure)
}

func IsNumericError(err error) bool {
	return errors.Is(err, ErrNumericInstability)
}

// StageOf reports the pipeline stage recorded on err, if any
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
