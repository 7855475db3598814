// Package voice wires vendor adapters into the client set a live session
// consumes.
package voice

import (
	"fmt"
	"strings"

	"github.com/codeshark2/freesoft/pkg/core/live"
	"github.com/codeshark2/freesoft/pkg/core/voice/asr"
	"github.com/codeshark2/freesoft/pkg/core/voice/llm"
	"github.com/codeshark2/freesoft/pkg/core/voice/tts"
)

// BuildClients maps the validated vendor selections in config to concrete
// adapters. This is the only place vendor ids are branched on.
func BuildClients(config live.SessionConfig) (live.Clients, error) {
	var clients live.Clients

	switch config.ASR.Vendor {
	case live.ASRVendorDeepgram:
		clients.StreamASR = asr.NewDeepgram(config.ASR.APIKey, config.ASR.Model, config.ASR.Language, config.Audio)
	case live.ASRVendorWhisper:
		clients.BatchASR = asr.NewWhisper(config.ASR.APIKey, config.ASR.Model, config.ASR.Language)
	default:
		return clients, fmt.Errorf("asr vendor %q is not wired in this build", config.ASR.Vendor)
	}

	switch config.LLM.Vendor {
	case live.LLMVendorOpenAI:
		clients.LLM = llm.NewOpenAI(config.LLM.APIKey, config.LLM.Model)
	case live.LLMVendorGroq:
		clients.LLM = llm.NewGroq(config.LLM.APIKey, config.LLM.Model)
	default:
		return clients, fmt.Errorf("llm vendor %q is not wired in this build", config.LLM.Vendor)
	}

	// The neural VAD strategy only applies on the batched path; streaming
	// vendors do their own endpoint detection.
	if clients.BatchASR != nil && config.VAD.Strategy == live.VADStrategyNeural {
		if strings.TrimSpace(config.VAD.ModelPath) == "" {
			return clients, fmt.Errorf("vad: model path is required for the neural strategy")
		}
		classifier, err := live.NewSileroClassifier(config.VAD.ModelPath, config.Audio.SampleRate, config.VAD.EnterThreshold)
		if err != nil {
			return clients, fmt.Errorf("vad: %w", err)
		}
		clients.Classifier = classifier
	}

	switch config.TTS.Vendor {
	case live.TTSVendorElevenLabs:
		clients.TTS = tts.NewElevenLabs(config.TTS.APIKey, config.TTS.Model, config.TTS.VoiceID)
	case live.TTSVendorOpenAI:
		clients.TTS = tts.NewOpenAI(config.TTS.APIKey, config.TTS.Model, config.TTS.VoiceID)
	default:
		return clients, fmt.Errorf("tts vendor %q is not wired in this build", config.TTS.Vendor)
	}

	return clients, nil
}
