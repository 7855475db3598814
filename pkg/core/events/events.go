// Package events provides the append-only event log recorded during a
// session. The ordered log is the input to the metrics calculator.
package events

import (
	"sync"
	"time"

	"github.com/codeshark2/freesoft/pkg/core/types"
)

// Type is the closed set of event type tags.
type Type string

const (
	TypeSessionStart       Type = "session_start"
	TypeSessionEnd         Type = "session_end"
	TypeAudioChunkReceived Type = "audio_chunk_received"
	TypeASRPartial         Type = "asr_partial"
	TypeASRFinal           Type = "asr_final"
	TypeLLMStart           Type = "llm_start"
	TypeLLMToken           Type = "llm_token"
	TypeLLMComplete        Type = "llm_complete"
	TypeTTSStart           Type = "tts_start"
	TypeTTSAudioChunk      Type = "tts_audio_chunk"
	TypeTTSComplete        Type = "tts_complete"
	TypeError              Type = "error"
)

// Payload carries the type-specific fields of an event. Only the fields
// relevant to the event's type are set.
type Payload struct {
	// Text is the transcript, token, or synthesized text.
	Text string `json:"text,omitempty"`

	// SpeechEnd is the moment the user stopped speaking (asr_final).
	SpeechEnd time.Time `json:"speech_end,omitempty"`

	// Bytes is the audio payload size (audio_chunk_received,
	// tts_audio_chunk).
	Bytes int `json:"bytes,omitempty"`

	// IsFirst marks the first token or audio chunk of a response.
	IsFirst bool `json:"is_first,omitempty"`

	// Characters is the synthesized character count (tts_start).
	Characters int `json:"characters,omitempty"`

	// Usage carries token counts (llm_complete).
	Usage types.Usage `json:"usage,omitempty"`

	// Stage and Message describe a failure (error).
	Stage   types.Stage `json:"stage,omitempty"`
	Message string      `json:"message,omitempty"`

	// Reason and Duration close out a session (session_end).
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Event is one immutable record in a session's log.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Payload   Payload   `json:"payload"`
}

// Log is an append-only, in-memory event log for one session. Records are
// never mutated or removed.
type Log struct {
	mu        sync.Mutex
	sessionID string
	events    []Event
}

// NewLog creates an empty log for the session.
func NewLog(sessionID string) *Log {
	return &Log{sessionID: sessionID}
}

// Append records an event stamped with the current time.
func (l *Log) Append(t Type, p Payload) {
	l.AppendAt(t, time.Now(), p)
}

// AppendAt records an event with an explicit timestamp.
func (l *Log) AppendAt(t Type, ts time.Time, p Payload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, Event{
		Type:      t,
		Timestamp: ts,
		SessionID: l.sessionID,
		Payload:   p,
	})
}

// Events returns a snapshot of the log in append order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// SessionID returns the session this log belongs to.
func (l *Log) SessionID() string { return l.sessionID }

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
