package entities

import "fmt"

// Stage identifies a pipeline stage for state tracking and errors
type Stage string

const (
	StageInspecting        Stage = "INSPECTING"
	StageExtracting        Stage = "EXTRACTING"
	StageResolvingManifest Stage = "RESOLVING_MANIFEST"
	StageOverlaying        Stage = "OVERLAYING"
	StageAuditing          Stage = "AUDITING"
	StageAssembling        Stage = "ASSEMBLING"
	StageSigning           Stage = "SIGNING"
	StageDone              Stage = "DONE"
	StageFailed            Stage = "FAILED"
)

// PipelineError is the typed fatal failure propagated to the caller.
// Recoverable conditions never become a PipelineError; they are recorded
// as report warnings and the pipeline continues.
type PipelineError struct {
	Stage Stage
	Msg   string
	Err   error
}

// NewPipelineError creates a fatal pipeline error for the given stage
func NewPipelineError(stage Stage, msg string) *PipelineError {
	return &PipelineError{Stage: stage, Msg: msg}
}

// WrapPipelineError wraps an underlying cause
func WrapPipelineError(stage Stage, msg string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Msg: msg, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
}

// Unwrap exposes the underlying cause for errors.Is/As
func (e *PipelineError) Unwrap() error {
	return e.Err
}
