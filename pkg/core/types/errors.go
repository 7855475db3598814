package types

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline stage an error originated from.
type Stage string

const (
	StageASR      Stage = "asr"
	StageLLM      Stage = "llm"
	StageTTS      Stage = "tts"
	StagePipeline Stage = "pipeline"
)

// Error codes for PipelineError. These are stable identifiers the caller
// can branch on; Message is for display.
const (
	CodeConnectionTimeout = "connection_timeout"
	CodeMicDenied         = "mic_denied"
	CodeAuthFailed        = "auth_failed"
	CodeQuotaExceeded     = "quota_exceeded"
	CodeProviderError     = "provider_error"
	CodeBadConfig         = "bad_config"
	CodeInternal          = "internal"
)

// PipelineError tags a failure with its originating stage and a stable code.
// Every failure surfaced by the orchestrator is wrapped in one of these.
type PipelineError struct {
	Stage   Stage
	Code    string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError wraps err with a stage tag and code.
func NewPipelineError(stage Stage, code, message string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Code: code, Message: message, Err: err}
}

// StageOf returns the stage tag of err, or StagePipeline if err carries none.
func StageOf(err error) Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return StagePipeline
}

// CodeOf returns the error code of err, or CodeInternal if err carries none.
func CodeOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeInternal
}
