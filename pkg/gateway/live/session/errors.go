package session

import (
	"errors"

	"github.com/codeshark2/freesoft/pkg/core/types"
)

// userMessage rewrites a pipeline failure into text the client can show
// directly. Provider quota and credential errors get actionable guidance
// instead of the raw vendor response.
func userMessage(err error) string {
	switch types.CodeOf(err) {
	case types.CodeAuthFailed:
		return "Authentication failed. Please check your API keys."
	case types.CodeQuotaExceeded:
		return "API quota exceeded. Please check your plan limits or try again later."
	case types.CodeConnectionTimeout:
		return "Could not connect to the speech provider. Please try again."
	case types.CodeMicDenied:
		return "Microphone access was denied."
	case types.CodeBadConfig:
		return "Invalid session configuration: " + rootMessage(err)
	default:
		return rootMessage(err)
	}
}

func rootMessage(err error) string {
	var pe *types.PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	if err != nil {
		return err.Error()
	}
	return "unknown error"
}
