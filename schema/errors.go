package schema

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Normalization and classification failures are recovered
// inside their components; retrieval and synthesis failures reach the orchestrator.
var (
	ErrNormalizationDegraded = errors.New("normalization degraded")
	ErrClassificationFailure = errors.New("classification failed")
	ErrRetrievalFailure      = errors.New("retrieval failed")
	ErrSynthesisFailure      = errors.New("synthesis failed")
	ErrQualityAmbiguous      = errors.New("quality verdict ambiguous")
)

// StageError ties a failure to the pipeline stage that produced it.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Is matches against the taxonomy sentinel.
func (e *StageError) Is(target error) bool {
	return e.Kind == target
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError builds a StageError.
func NewStageError(stage string, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
