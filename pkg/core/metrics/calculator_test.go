package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/codeshark2/freesoft/pkg/core/events"
	"github.com/codeshark2/freesoft/pkg/core/types"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateEmptyLogIsAllZeros(t *testing.T) {
	log := events.NewLog("s1")
	got := Calculate(log)

	if got.Latencies != (Latencies{}) {
		t.Errorf("latencies = %+v, want zeros", got.Latencies)
	}
	if got.Usage != (UsageTotals{}) {
		t.Errorf("usage = %+v, want zeros", got.Usage)
	}
	if got.Costs != (CostTotals{}) {
		t.Errorf("costs = %+v, want zeros", got.Costs)
	}
}

func TestCalculateTimeToFirstResponse(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	log := events.NewLog("s1")

	speechEnd := base.Add(900 * time.Millisecond)
	log.AppendAt(events.TypeASRFinal, base.Add(time.Second), events.Payload{
		Text: "hello", SpeechEnd: speechEnd,
	})
	log.AppendAt(events.TypeTTSAudioChunk, base.Add(1700*time.Millisecond), events.Payload{
		Bytes: 512, IsFirst: true,
	})

	got := Calculate(log).Latencies.TimeToFirstResponseMs
	if !almostEqual(got, 800) {
		t.Errorf("time to first response = %v, want 800", got)
	}
}

func TestCalculateTimeToFirstResponseUsesLastFinal(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	log := events.NewLog("s1")

	// First turn, complete.
	log.AppendAt(events.TypeASRFinal, base, events.Payload{
		Text: "one", SpeechEnd: base.Add(-100 * time.Millisecond),
	})
	log.AppendAt(events.TypeTTSAudioChunk, base.Add(400*time.Millisecond), events.Payload{IsFirst: true})

	// Second turn; only its own chunk counts.
	log.AppendAt(events.TypeASRFinal, base.Add(5*time.Second), events.Payload{
		Text: "two", SpeechEnd: base.Add(4900 * time.Millisecond),
	})
	log.AppendAt(events.TypeTTSAudioChunk, base.Add(5500*time.Millisecond), events.Payload{IsFirst: true})

	got := Calculate(log).Latencies.TimeToFirstResponseMs
	if !almostEqual(got, 600) {
		t.Errorf("time to first response = %v, want 600 (second turn)", got)
	}
}

func TestCalculateASRLatencyClosestPriorChunk(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	log := events.NewLog("s1")

	// Several chunks before the final; only the closest one counts.
	log.AppendAt(events.TypeAudioChunkReceived, base, events.Payload{Bytes: 4096})
	log.AppendAt(events.TypeAudioChunkReceived, base.Add(500*time.Millisecond), events.Payload{Bytes: 4096})
	log.AppendAt(events.TypeAudioChunkReceived, base.Add(800*time.Millisecond), events.Payload{Bytes: 4096})
	log.AppendAt(events.TypeASRFinal, base.Add(time.Second), events.Payload{Text: "one"})

	// A later chunk must not affect the earlier final.
	log.AppendAt(events.TypeAudioChunkReceived, base.Add(2*time.Second), events.Payload{Bytes: 4096})
	log.AppendAt(events.TypeASRFinal, base.Add(2300*time.Millisecond), events.Payload{Text: "two"})

	asr := Calculate(log).Latencies.ASR
	if !almostEqual(asr.MinMs, 200) {
		t.Errorf("min = %v, want 200", asr.MinMs)
	}
	if !almostEqual(asr.MaxMs, 300) {
		t.Errorf("max = %v, want 300", asr.MaxMs)
	}
	if !almostEqual(asr.AverageMs, 250) {
		t.Errorf("average = %v, want 250", asr.AverageMs)
	}
}

func TestCalculateASRLatencyNoChunksStaysZero(t *testing.T) {
	log := events.NewLog("s1")
	log.Append(events.TypeASRFinal, events.Payload{Text: "orphan"})

	asr := Calculate(log).Latencies.ASR
	if asr != (ASRLatency{}) {
		t.Errorf("asr latency = %+v, want zeros without audio chunks", asr)
	}
}

func TestCalculateLLMLatencyFromLastStart(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	log := events.NewLog("s1")

	// An earlier generation that must be ignored.
	log.AppendAt(events.TypeLLMStart, base, events.Payload{})
	log.AppendAt(events.TypeLLMToken, base.Add(100*time.Millisecond), events.Payload{Text: "a", IsFirst: true})
	log.AppendAt(events.TypeLLMComplete, base.Add(300*time.Millisecond), events.Payload{})

	log.AppendAt(events.TypeLLMStart, base.Add(time.Second), events.Payload{})
	log.AppendAt(events.TypeLLMToken, base.Add(1250*time.Millisecond), events.Payload{Text: "b", IsFirst: true})
	log.AppendAt(events.TypeLLMToken, base.Add(1300*time.Millisecond), events.Payload{Text: "c"})
	log.AppendAt(events.TypeLLMComplete, base.Add(1600*time.Millisecond), events.Payload{})

	llm := Calculate(log).Latencies.LLM
	if !almostEqual(llm.TimeToFirstTokenMs, 250) {
		t.Errorf("ttft = %v, want 250", llm.TimeToFirstTokenMs)
	}
	if !almostEqual(llm.TimeToCompleteMs, 600) {
		t.Errorf("complete = %v, want 600", llm.TimeToCompleteMs)
	}
}

func TestCalculateTTSLatencyFromLastStart(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	log := events.NewLog("s1")

	log.AppendAt(events.TypeTTSStart, base, events.Payload{Characters: 10})
	log.AppendAt(events.TypeTTSAudioChunk, base.Add(150*time.Millisecond), events.Payload{IsFirst: true})
	log.AppendAt(events.TypeTTSStart, base.Add(time.Second), events.Payload{Characters: 20})
	log.AppendAt(events.TypeTTSAudioChunk, base.Add(1400*time.Millisecond), events.Payload{IsFirst: true})

	tts := Calculate(log).Latencies.TTS
	if !almostEqual(tts.TimeToFirstChunkMs, 400) {
		t.Errorf("time to first chunk = %v, want 400", tts.TimeToFirstChunkMs)
	}
}

func TestCalculateUsageAndCosts(t *testing.T) {
	log := events.NewLog("s1")
	log.Append(events.TypeLLMComplete, events.Payload{Usage: types.Usage{InputTokens: 1000, OutputTokens: 500}})
	log.Append(events.TypeLLMComplete, events.Payload{Usage: types.Usage{InputTokens: 2000, OutputTokens: 1500}})
	log.Append(events.TypeTTSStart, events.Payload{Characters: 100})
	log.Append(events.TypeTTSStart, events.Payload{Characters: 900})
	log.Append(events.TypeSessionEnd, events.Payload{Reason: "user_requested", Duration: 2 * time.Minute})

	got := Calculate(log)
	if got.Usage.TokensInput != 3000 || got.Usage.TokensOutput != 2000 {
		t.Errorf("tokens = %d/%d, want 3000/2000", got.Usage.TokensInput, got.Usage.TokensOutput)
	}
	if got.Usage.Characters != 1000 {
		t.Errorf("characters = %d, want 1000", got.Usage.Characters)
	}
	if !almostEqual(got.Usage.AudioMinutes, 2) {
		t.Errorf("audio minutes = %v, want 2", got.Usage.AudioMinutes)
	}

	if !almostEqual(got.Costs.ASR, 2*ASRPricePerMinute) {
		t.Errorf("asr cost = %v", got.Costs.ASR)
	}
	if !almostEqual(got.Costs.LLM, 3*LLMPricePerKInputTokens+2*LLMPricePerKOutputTokens) {
		t.Errorf("llm cost = %v", got.Costs.LLM)
	}
	if !almostEqual(got.Costs.TTS, 1000*TTSPricePerCharacter) {
		t.Errorf("tts cost = %v", got.Costs.TTS)
	}
	wantTotal := got.Costs.ASR + got.Costs.LLM + got.Costs.TTS
	if !almostEqual(got.Costs.Total, wantTotal) {
		t.Errorf("total = %v, want %v", got.Costs.Total, wantTotal)
	}
}

func TestCalculateCostsZeroUsage(t *testing.T) {
	if got := CalculateCosts(UsageTotals{}); got != (CostTotals{}) {
		t.Errorf("zero usage cost = %+v, want zeros", got)
	}
}
