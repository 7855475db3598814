package live

import (
	"time"

	"github.com/codeshark2/freesoft/pkg/core/types"
)

// StageMetrics is the timing pair recorded for one pipeline stage of one
// turn. All values are milliseconds and non-negative; zero means the value
// was not measured.
type StageMetrics struct {
	TTFBMs  float64 `json:"ttfb_ms"`
	TotalMs float64 `json:"total_ms"`
}

// TurnMetrics holds per-stage timings plus the round trip from turn start
// to the start of audio playback.
type TurnMetrics struct {
	ASR         StageMetrics `json:"asr"`
	LLM         StageMetrics `json:"llm"`
	TTS         StageMetrics `json:"tts"`
	RoundTripMs float64      `json:"round_trip_ms"`
}

// Turn is one user-utterance, assistant-reply, synthesized-audio cycle.
// Turns are immutable once appended to the session's turn list.
type Turn struct {
	// ID starts at 1 and increases by one per completed turn.
	ID            int         `json:"id"`
	UserText      string      `json:"user_text"`
	AssistantText string      `json:"assistant_text"`
	Metrics       TurnMetrics `json:"metrics"`
	CreatedAt     time.Time   `json:"created_at"`
}

// EndReason records why a session ended.
type EndReason string

const (
	EndReasonUserRequested EndReason = "user_requested"
	EndReasonTimeout       EndReason = "timeout"
	EndReasonError         EndReason = "error"
)

// SessionSummary is the final report produced when a session ends.
type SessionSummary struct {
	SessionID string        `json:"session_id"`
	Reason    EndReason     `json:"reason"`
	Turns     []Turn        `json:"turns"`
	Average   TurnMetrics   `json:"average_metrics"`
	Usage     types.Usage   `json:"usage"`
	Duration  time.Duration `json:"duration"`
}

// SummarizeTurns computes arithmetic-mean stage metrics across turns.
// An empty turn list yields all-zero averages, never NaN.
func SummarizeTurns(turns []Turn) TurnMetrics {
	if len(turns) == 0 {
		return TurnMetrics{}
	}

	var sum TurnMetrics
	for _, t := range turns {
		sum.ASR.TTFBMs += t.Metrics.ASR.TTFBMs
		sum.ASR.TotalMs += t.Metrics.ASR.TotalMs
		sum.LLM.TTFBMs += t.Metrics.LLM.TTFBMs
		sum.LLM.TotalMs += t.Metrics.LLM.TotalMs
		sum.TTS.TTFBMs += t.Metrics.TTS.TTFBMs
		sum.TTS.TotalMs += t.Metrics.TTS.TotalMs
		sum.RoundTripMs += t.Metrics.RoundTripMs
	}

	n := float64(len(turns))
	return TurnMetrics{
		ASR:         StageMetrics{TTFBMs: sum.ASR.TTFBMs / n, TotalMs: sum.ASR.TotalMs / n},
		LLM:         StageMetrics{TTFBMs: sum.LLM.TTFBMs / n, TotalMs: sum.LLM.TotalMs / n},
		TTS:         StageMetrics{TTFBMs: sum.TTS.TTFBMs / n, TotalMs: sum.TTS.TotalMs / n},
		RoundTripMs: sum.RoundTripMs / n,
	}
}
