package session

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/codeshark2/freesoft/pkg/core/types"
)

func TestUserMessageRewritesKnownCodes(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{types.CodeAuthFailed, "Authentication failed. Please check your API keys."},
		{types.CodeQuotaExceeded, "API quota exceeded. Please check your plan limits or try again later."},
		{types.CodeConnectionTimeout, "Could not connect to the speech provider. Please try again."},
		{types.CodeMicDenied, "Microphone access was denied."},
	}

	for _, tc := range cases {
		err := types.NewPipelineError(types.StageASR, tc.code, "raw vendor response body", nil)
		if got := userMessage(err); got != tc.want {
			t.Errorf("code %s: message = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestUserMessageBadConfigIncludesDetail(t *testing.T) {
	err := types.NewPipelineError(types.StagePipeline, types.CodeBadConfig, "tts: voice id is required", nil)
	got := userMessage(err)
	if !strings.Contains(got, "voice id is required") {
		t.Errorf("message = %q, want the config detail included", got)
	}
	if !strings.HasPrefix(got, "Invalid session configuration") {
		t.Errorf("message = %q, want config prefix", got)
	}
}

func TestUserMessagePassthrough(t *testing.T) {
	err := types.NewPipelineError(types.StageLLM, types.CodeProviderError, "model overloaded", nil)
	if got := userMessage(err); got != "model overloaded" {
		t.Errorf("message = %q, want passthrough of the stage message", got)
	}

	wrapped := fmt.Errorf("request failed: %w", errors.New("connection reset"))
	if got := userMessage(wrapped); got != "request failed: connection reset" {
		t.Errorf("message = %q", got)
	}

	if got := userMessage(nil); got != "unknown error" {
		t.Errorf("nil error message = %q", got)
	}
}
