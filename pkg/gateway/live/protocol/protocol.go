// Package protocol defines the wire messages exchanged between a client
// and the live voice endpoint. Every message carries an epoch-millisecond
// timestamp.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Client to server message types.
const (
	TypeStartSession = "start_session"
	TypeAudioChunk   = "audio_chunk"
	TypeEndSession   = "end_session"
)

// Server to client message types.
const (
	TypeSessionStarted    = "session_started"
	TypeTranscriptPartial = "transcript_partial"
	TypeTranscriptFinal   = "transcript_final"
	TypeLLMToken          = "llm_token"
	TypeTTSAudio          = "tts_audio"
	TypeSessionEnded      = "session_ended"
	TypeError             = "error"
)

// DecodeError describes a client message the server could not accept.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// VendorConfig is the wire shape of one vendor selection. Which fields
// are required depends on the vendor; validation happens when the session
// config is constructed.
type VendorConfig struct {
	Vendor   string `json:"vendor"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
	Region   string `json:"region,omitempty"`
	VoiceID  string `json:"voice_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// StartSession opens a session with the given vendor selections.
type StartSession struct {
	Type          string       `json:"type"`
	Timestamp     int64        `json:"timestamp"`
	SystemPrompt  string       `json:"system_prompt,omitempty"`
	ASR           VendorConfig `json:"asr"`
	LLM           VendorConfig `json:"llm"`
	TTS           VendorConfig `json:"tts"`
	MaxDurationMs int          `json:"max_duration_ms,omitempty"`
}

// AudioChunk carries one base64-encoded PCM frame.
type AudioChunk struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Audio     string `json:"audio"`
}

// EndSession asks the server to stop the session.
type EndSession struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// DecodeClientMessage parses one inbound message by its type tag.
func DecodeClientMessage(data []byte) (any, *DecodeError) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("message is not valid JSON", "")
	}

	switch envelope.Type {
	case TypeStartSession:
		var msg StartSession
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("malformed start_session", "")
		}
		if strings.TrimSpace(msg.ASR.Vendor) == "" {
			return nil, badRequest("asr vendor is required", "asr.vendor")
		}
		if strings.TrimSpace(msg.LLM.Vendor) == "" {
			return nil, badRequest("llm vendor is required", "llm.vendor")
		}
		if strings.TrimSpace(msg.TTS.Vendor) == "" {
			return nil, badRequest("tts vendor is required", "tts.vendor")
		}
		if msg.MaxDurationMs < 0 {
			return nil, badRequest("max_duration_ms must be non-negative", "max_duration_ms")
		}
		return &msg, nil
	case TypeAudioChunk:
		var msg AudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("malformed audio_chunk", "")
		}
		if msg.Audio == "" {
			return nil, badRequest("audio payload is required", "audio")
		}
		return &msg, nil
	case TypeEndSession:
		var msg EndSession
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("malformed end_session", "")
		}
		return &msg, nil
	case "":
		return nil, badRequest("message type is required", "type")
	default:
		return nil, badRequest(fmt.Sprintf("unknown message type %q", envelope.Type), "type")
	}
}

// SessionStarted acknowledges a started session.
type SessionStarted struct {
	Type          string `json:"type"`
	Timestamp     int64  `json:"timestamp"`
	SessionID     string `json:"session_id"`
	MaxDurationMs int    `json:"max_duration_ms"`
}

// TranscriptPartial carries a live interim transcript.
type TranscriptPartial struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// TranscriptFinal carries one finalized user utterance.
type TranscriptFinal struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// LLMToken streams one response token. IsComplete marks the end of a
// response; the final message carries an empty token.
type LLMToken struct {
	Type       string `json:"type"`
	Timestamp  int64  `json:"timestamp"`
	Token      string `json:"token"`
	IsComplete bool   `json:"is_complete"`
}

// TTSAudio carries one base64-encoded synthesized audio chunk.
type TTSAudio struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Audio     string `json:"audio"`
	IsFirst   bool   `json:"is_first,omitempty"`
}

// SessionEnded is sent exactly once per session, whatever ended it.
type SessionEnded struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Reason    string          `json:"reason"`
	Metrics   json.RawMessage `json:"metrics,omitempty"`
}

// ErrorMessage reports a failure to the client.
type ErrorMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Stage     string `json:"stage,omitempty"`
}

// NowMs returns the current time as epoch milliseconds.
func NowMs() int64 {
	return time.Now().UnixMilli()
}
