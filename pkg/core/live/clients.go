package live

import (
	"context"

	"github.com/codeshark2/freesoft/pkg/core/types"
)

// LLMResult is the normalized outcome of one chat-completion call.
type LLMResult struct {
	Text    string
	Usage   types.Usage
	Metrics StageMetrics
}

// LLMClient generates an assistant reply from the conversation history.
// Implementations measure their own time-to-first-token and total latency.
type LLMClient interface {
	// Generate runs one completion. onToken, if non-nil, receives each
	// streamed token as it arrives.
	Generate(ctx context.Context, messages []types.Message, onToken func(token string)) (*LLMResult, error)
}

// TTSResult is the normalized outcome of one synthesis call.
type TTSResult struct {
	Characters int
	Metrics    StageMetrics
}

// TTSClient synthesizes speech from text. Audio arrives through onChunk in
// playback order; isFirst marks the first chunk of the utterance.
type TTSClient interface {
	Synthesize(ctx context.Context, text string, onChunk func(audio []byte, isFirst bool)) (*TTSResult, error)
}

// BatchResult is the outcome of one non-streaming transcription request.
type BatchResult struct {
	Text    string
	Metrics StageMetrics
}

// BatchASRClient transcribes a complete utterance in one request. The
// audio is a WAV blob in the session's capture format.
type BatchASRClient interface {
	Transcribe(ctx context.Context, wavData []byte) (*BatchResult, error)
}

// StreamEventType enumerates the events a duplex ASR stream can surface.
type StreamEventType int

const (
	// StreamEventPartial carries an interim transcript for the current
	// segment. Not final; the text may still change.
	StreamEventPartial StreamEventType = iota
	// StreamEventFinal carries the settled transcript for one segment.
	// Final segments accumulate until an utterance end.
	StreamEventFinal
	// StreamEventUtteranceEnd signals the vendor detected end of speech.
	// This is the only event that finalizes an utterance.
	StreamEventUtteranceEnd
	// StreamEventError carries a stream failure. The stream is dead after
	// emitting one.
	StreamEventError
)

// StreamEvent is one event from a duplex ASR stream.
type StreamEvent struct {
	Type StreamEventType
	Text string
	Err  error
}

// ASRStream is an open duplex transcription channel.
type ASRStream interface {
	// SendAudio forwards one captured PCM frame. Frames must be sent in
	// capture order.
	SendAudio(pcm []byte) error

	// Events returns the stream's event channel. It is closed when the
	// stream ends, after any StreamEventError.
	Events() <-chan StreamEvent

	// Close signals end of audio to the vendor, waits briefly for
	// in-flight finalization, and tears down the transport. Idempotent.
	Close() error
}

// StreamingASRClient opens duplex transcription streams for vendors with
// built-in endpoint detection.
type StreamingASRClient interface {
	// Connect opens a stream. The context bounds the handshake; the
	// stream itself lives until Close.
	Connect(ctx context.Context) (ASRStream, error)
}

// Clients bundles the vendor adapters a session needs. Exactly one of
// StreamASR or BatchASR is used, chosen by the ASR vendor's capability.
type Clients struct {
	StreamASR StreamingASRClient
	BatchASR  BatchASRClient
	LLM       LLMClient
	TTS       TTSClient

	// Classifier backs the neural VAD strategy on the batched path.
	// Optional; the energy strategy is used when nil.
	Classifier SpeechClassifier
}
