package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/codeshark2/freesoft/pkg/core/audioio"
	"github.com/codeshark2/freesoft/pkg/core/types"
)

// CaptureStrategy owns the microphone and turns raw audio into finalized
// utterances. Exactly one strategy is active per session; ownership moves
// only through Stop of the old one before Start of a new one.
type CaptureStrategy interface {
	Start(ctx context.Context) error
	Pause()
	Resume()
	Stop() error
}

// UtteranceSink receives capture strategy output. Callbacks fire on the
// strategy's internal goroutines and must not block for long.
type UtteranceSink struct {
	// OnInterim delivers live interim transcripts (streaming path only).
	OnInterim func(text string)

	// OnUtterance delivers one finalized, non-empty user utterance with
	// its ASR timing.
	OnUtterance func(text string, metrics StageMetrics)

	// OnError reports a capture or transcription failure.
	OnError func(err error)
}

// streamingCapture forwards microphone frames straight into a duplex ASR
// stream and reassembles the vendor's interim/final/utterance-end events.
type streamingCapture struct {
	client StreamingASRClient
	source audioio.Source
	sink   UtteranceSink
	audio  AudioConfig

	mu       sync.Mutex
	stream   ASRStream
	started  bool
	stopped  bool
	openedAt time.Time
	ttfbMs   float64
	segments []string
}

// NewStreamingCapture builds the capture strategy for vendors with native
// endpoint detection.
func NewStreamingCapture(client StreamingASRClient, source audioio.Source, audio AudioConfig, sink UtteranceSink) CaptureStrategy {
	return &streamingCapture{
		client: client,
		source: source,
		sink:   sink,
		audio:  audio,
	}
}

func (c *streamingCapture) Start(ctx context.Context) error {
	stream, err := c.client.Connect(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.stream = stream
	c.started = true
	c.mu.Unlock()

	go c.eventLoop(stream)

	if err := c.source.Start(c.onFrame); err != nil {
		stream.Close()
		return err
	}
	return nil
}

func (c *streamingCapture) onFrame(pcm []byte) {
	c.mu.Lock()
	stream := c.stream
	if stream == nil {
		c.mu.Unlock()
		return
	}
	if c.openedAt.IsZero() {
		c.openedAt = time.Now()
	}
	c.mu.Unlock()

	// Frame order is the capture order; errors here mean the stream is
	// dead and the event loop will surface the failure.
	_ = stream.SendAudio(pcm)
}

func (c *streamingCapture) eventLoop(stream ASRStream) {
	for ev := range stream.Events() {
		switch ev.Type {
		case StreamEventPartial:
			c.markFirstByte()
			if c.sink.OnInterim != nil {
				c.sink.OnInterim(ev.Text)
			}
		case StreamEventFinal:
			c.markFirstByte()
			if text := strings.TrimSpace(ev.Text); text != "" {
				c.mu.Lock()
				c.segments = append(c.segments, text)
				c.mu.Unlock()
			}
		case StreamEventUtteranceEnd:
			c.finalize()
		case StreamEventError:
			c.mu.Lock()
			stopped := c.stopped
			c.mu.Unlock()
			if !stopped && c.sink.OnError != nil {
				c.sink.OnError(types.NewPipelineError(types.StageASR, types.CodeProviderError, "transcription stream failed", ev.Err))
			}
		}
	}
}

func (c *streamingCapture) markFirstByte() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttfbMs == 0 && !c.openedAt.IsZero() {
		c.ttfbMs = float64(time.Since(c.openedAt).Milliseconds())
	}
}

// finalize closes out the accumulated segments as one utterance. Only an
// utterance-end event gets here; a final transcript alone never finalizes.
func (c *streamingCapture) finalize() {
	c.mu.Lock()
	text := strings.TrimSpace(strings.Join(c.segments, " "))
	var metrics StageMetrics
	if !c.openedAt.IsZero() {
		metrics = StageMetrics{
			TTFBMs:  c.ttfbMs,
			TotalMs: float64(time.Since(c.openedAt).Milliseconds()),
		}
	}
	c.segments = nil
	c.openedAt = time.Time{}
	c.ttfbMs = 0
	c.mu.Unlock()

	if text == "" {
		return
	}
	if c.sink.OnUtterance != nil {
		c.sink.OnUtterance(text, metrics)
	}
}

// Pause is a no-op on the streaming path: audio keeps flowing so vendor
// endpointing stays warm, and utterances finalized mid-turn are dropped by
// the orchestrator's single-flight guard.
func (c *streamingCapture) Pause() {}

// Resume is a no-op on the streaming path.
func (c *streamingCapture) Resume() {}

func (c *streamingCapture) Stop() error {
	c.mu.Lock()
	if c.stopped || !c.started {
		c.stopped = true
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	// Release the microphone before signalling end of audio so no frames
	// race the close handshake.
	err := c.source.Stop()
	if stream != nil {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// batchedCapture runs local VAD over microphone frames and sends each
// detected utterance, packaged as WAV, through a one-shot transcription
// request.
type batchedCapture struct {
	vad    VAD
	source audioio.Source
	client BatchASRClient
	sink   UtteranceSink
	audio  AudioConfig

	mu      sync.Mutex
	ctx     context.Context
	started bool
	stopped bool
}

// NewBatchedCapture builds the capture strategy for request/response
// transcription vendors.
func NewBatchedCapture(vad VAD, client BatchASRClient, source audioio.Source, audio AudioConfig, sink UtteranceSink) CaptureStrategy {
	return &batchedCapture{
		vad:    vad,
		source: source,
		client: client,
		sink:   sink,
		audio:  audio,
	}
}

func (c *batchedCapture) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.started = true
	c.mu.Unlock()

	c.vad.Start(VADCallbacks{
		OnSpeechEnd: c.onSpeechEnd,
		// Misfires are swallowed: too-short segments never reach the
		// transcription client.
		OnMisfire: func(durationMs int) {},
	})
	return c.source.Start(c.vad.Process)
}

func (c *batchedCapture) onSpeechEnd(pcm []byte) {
	// Transcription is a network call; keep it off the capture path.
	go c.transcribe(pcm)
}

func (c *batchedCapture) transcribe(pcm []byte) {
	c.mu.Lock()
	ctx := c.ctx
	stopped := c.stopped
	c.mu.Unlock()
	if stopped || ctx == nil {
		return
	}

	wavData, err := EncodeWAV(pcm, c.audio)
	if err != nil {
		c.fail(types.NewPipelineError(types.StageASR, types.CodeInternal, "package utterance audio", err))
		return
	}

	result, err := c.client.Transcribe(ctx, wavData)
	if err != nil {
		c.fail(types.NewPipelineError(types.StageASR, types.CodeProviderError, "batch transcription failed", err))
		return
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return
	}
	if c.sink.OnUtterance != nil {
		c.sink.OnUtterance(text, result.Metrics)
	}
}

func (c *batchedCapture) fail(err error) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if !stopped && c.sink.OnError != nil {
		c.sink.OnError(err)
	}
}

// Pause stops the VAD from accumulating so audio captured during LLM/TTS
// processing is discarded.
func (c *batchedCapture) Pause() { c.vad.Pause() }

// Resume re-arms the VAD after a turn completes.
func (c *batchedCapture) Resume() { c.vad.Resume() }

func (c *batchedCapture) Stop() error {
	c.mu.Lock()
	if c.stopped || !c.started {
		c.stopped = true
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	err := c.source.Stop()
	c.vad.Stop()
	return err
}
