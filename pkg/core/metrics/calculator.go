// Package metrics derives session-level latency, usage, and cost summaries
// from the raw event log. Every metric defaults to 0 when no applicable
// events exist; a zero reading means "not measured", never an error.
package metrics

import (
	"time"

	"github.com/codeshark2/freesoft/pkg/core/events"
)

// ASRLatency summarizes per-utterance transcription latency.
type ASRLatency struct {
	AverageMs float64 `json:"average_ms"`
	MinMs     float64 `json:"min_ms"`
	MaxMs     float64 `json:"max_ms"`
}

// LLMLatency summarizes response generation latency.
type LLMLatency struct {
	TimeToFirstTokenMs float64 `json:"time_to_first_token_ms"`
	TimeToCompleteMs   float64 `json:"time_to_complete_ms"`
}

// TTSLatency summarizes synthesis latency.
type TTSLatency struct {
	TimeToFirstChunkMs float64 `json:"time_to_first_chunk_ms"`
}

// Latencies is the latency section of a session report.
type Latencies struct {
	// TimeToFirstResponseMs runs from the moment the user stopped
	// speaking to the first synthesized audio chunk.
	TimeToFirstResponseMs float64    `json:"time_to_first_response_ms"`
	ASR                   ASRLatency `json:"asr"`
	LLM                   LLMLatency `json:"llm"`
	TTS                   TTSLatency `json:"tts"`
}

// SessionMetrics is the full derived report for one session.
type SessionMetrics struct {
	Latencies Latencies   `json:"latencies"`
	Usage     UsageTotals `json:"usage"`
	Costs     CostTotals  `json:"costs"`
}

// Calculate reduces an event log into the session report.
func Calculate(log *events.Log) SessionMetrics {
	evs := log.Events()
	usage := calculateUsage(evs)
	return SessionMetrics{
		Latencies: calculateLatencies(evs),
		Usage:     usage,
		Costs:     CalculateCosts(usage),
	}
}

func calculateLatencies(evs []events.Event) Latencies {
	var out Latencies

	var asrFinals, audioChunks, ttsFirstChunks []events.Event
	var llmStarts, llmTokens, llmCompletes, ttsStarts []events.Event
	for _, e := range evs {
		switch e.Type {
		case events.TypeASRFinal:
			asrFinals = append(asrFinals, e)
		case events.TypeAudioChunkReceived:
			audioChunks = append(audioChunks, e)
		case events.TypeTTSAudioChunk:
			if e.Payload.IsFirst {
				ttsFirstChunks = append(ttsFirstChunks, e)
			}
		case events.TypeLLMStart:
			llmStarts = append(llmStarts, e)
		case events.TypeLLMToken:
			llmTokens = append(llmTokens, e)
		case events.TypeLLMComplete:
			llmCompletes = append(llmCompletes, e)
		case events.TypeTTSStart:
			ttsStarts = append(ttsStarts, e)
		}
	}

	// Speech end to first synthesized audio, for the most recent turn.
	if len(asrFinals) > 0 && len(ttsFirstChunks) > 0 {
		last := asrFinals[len(asrFinals)-1]
		for _, chunk := range ttsFirstChunks {
			if chunk.Timestamp.After(last.Timestamp) {
				if !last.Payload.SpeechEnd.IsZero() {
					out.TimeToFirstResponseMs = ms(chunk.Timestamp.Sub(last.Payload.SpeechEnd))
				}
				break
			}
		}
	}

	// Per-utterance ASR latency: finalize time minus the closest prior
	// received audio chunk, matched per event rather than averaged
	// session-wide.
	var asrLatencies []float64
	for _, fin := range asrFinals {
		var prior *events.Event
		for i := range audioChunks {
			if audioChunks[i].Timestamp.Before(fin.Timestamp) {
				prior = &audioChunks[i]
			} else {
				break
			}
		}
		if prior != nil {
			asrLatencies = append(asrLatencies, ms(fin.Timestamp.Sub(prior.Timestamp)))
		}
	}
	if len(asrLatencies) > 0 {
		sum, minV, maxV := 0.0, asrLatencies[0], asrLatencies[0]
		for _, v := range asrLatencies {
			sum += v
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		out.ASR = ASRLatency{
			AverageMs: sum / float64(len(asrLatencies)),
			MinMs:     minV,
			MaxMs:     maxV,
		}
	}

	// LLM latency for the most recent generation.
	if len(llmStarts) > 0 {
		start := llmStarts[len(llmStarts)-1]
		for _, tok := range llmTokens {
			if tok.Timestamp.After(start.Timestamp) && tok.Payload.IsFirst {
				out.LLM.TimeToFirstTokenMs = ms(tok.Timestamp.Sub(start.Timestamp))
				break
			}
		}
		for _, comp := range llmCompletes {
			if comp.Timestamp.After(start.Timestamp) {
				out.LLM.TimeToCompleteMs = ms(comp.Timestamp.Sub(start.Timestamp))
				break
			}
		}
	}

	// TTS latency for the most recent synthesis.
	if len(ttsStarts) > 0 {
		start := ttsStarts[len(ttsStarts)-1]
		for _, chunk := range ttsFirstChunks {
			if chunk.Timestamp.After(start.Timestamp) {
				out.TTS.TimeToFirstChunkMs = ms(chunk.Timestamp.Sub(start.Timestamp))
				break
			}
		}
	}

	return out
}

func calculateUsage(evs []events.Event) UsageTotals {
	var out UsageTotals

	for _, e := range evs {
		switch e.Type {
		case events.TypeSessionEnd:
			out.AudioMinutes = e.Payload.Duration.Minutes()
		case events.TypeLLMComplete:
			out.TokensInput += e.Payload.Usage.InputTokens
			out.TokensOutput += e.Payload.Usage.OutputTokens
		case events.TypeTTSStart:
			out.Characters += e.Payload.Characters
		}
	}

	return out
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
