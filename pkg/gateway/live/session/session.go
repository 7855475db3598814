// Package session runs one client's voice conversation over a websocket:
// it decodes inbound wire messages, drives the orchestration core, records
// the event log, and streams results back out.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeshark2/freesoft/pkg/core/audioio"
	"github.com/codeshark2/freesoft/pkg/core/events"
	"github.com/codeshark2/freesoft/pkg/core/live"
	coremetrics "github.com/codeshark2/freesoft/pkg/core/metrics"
	"github.com/codeshark2/freesoft/pkg/core/types"
	"github.com/codeshark2/freesoft/pkg/core/voice"
	"github.com/codeshark2/freesoft/pkg/gateway/live/protocol"
	gwmetrics "github.com/codeshark2/freesoft/pkg/gateway/metrics"
)

// Config tunes transport behavior for one gateway session.
type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	// MaxSessionDuration caps the deadline a client may request.
	MaxSessionDuration time.Duration
}

// DefaultConfig returns the standard transport settings.
func DefaultConfig() Config {
	return Config{
		PingInterval:       20 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        5 * time.Minute,
		MaxSessionDuration: 5 * time.Minute,
	}
}

// Session is one websocket connection's lifecycle.
type Session struct {
	cfg    Config
	logger *slog.Logger
	ws     *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	priority chan []byte
	normal   chan []byte

	// build maps vendor selections to concrete clients. Tests swap it
	// for fakes.
	build func(live.SessionConfig) (live.Clients, error)

	mu         sync.Mutex
	core       *live.Session
	source     *audioio.PushSource
	log        *events.Log
	started    bool
	firstToken bool

	endedOnce  sync.Once
	writerDone chan struct{}
}

// New wraps an upgraded websocket connection.
func New(ws *websocket.Conn, cfg Config, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:        cfg,
		logger:     logger,
		ws:         ws,
		ctx:        ctx,
		cancel:     cancel,
		build:      voice.BuildClients,
		priority:   make(chan []byte, 16),
		normal:     make(chan []byte, 256),
		writerDone: make(chan struct{}),
	}
}

// Run processes the connection until the client disconnects or the
// session ends. It always leaves the socket closed.
func (s *Session) Run() {
	writer := &outboundWriter{
		ws:           s.ws,
		ctx:          s.ctx,
		pingInterval: s.cfg.PingInterval,
		writeTimeout: s.cfg.WriteTimeout,
		priority:     s.priority,
		normal:       s.normal,
	}
	go func() {
		defer close(s.writerDone)
		if err := writer.Run(); err != nil {
			s.logger.Debug("writer stopped", "error", err)
			s.cancel()
		}
	}()

	s.readLoop()

	// The client is gone or the session ended; make sure the core stops
	// and session_ended went out before the writer shuts down.
	s.stopCore()
	s.cancel()
	<-s.writerDone
}

func (s *Session) readLoop() {
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = s.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			s.logger.Debug("read ended", "error", err)
			return
		}

		msg, derr := protocol.DecodeClientMessage(data)
		if derr != nil {
			// Malformed input does not terminate the session.
			s.sendError(derr.Message, derr.Code, "")
			continue
		}

		switch m := msg.(type) {
		case *protocol.StartSession:
			s.handleStart(m)
		case *protocol.AudioChunk:
			s.handleAudio(m)
		case *protocol.EndSession:
			s.stopCore()
		}

		select {
		case <-s.ctx.Done():
			return
		default:
		}
	}
}

func (s *Session) handleStart(msg *protocol.StartSession) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.sendError("session already started", "bad_request", "")
		return
	}
	s.started = true
	s.mu.Unlock()

	config := sessionConfigFrom(msg, s.cfg.MaxSessionDuration)
	clients, err := s.build(config)
	if err != nil {
		s.resetStart()
		s.sendError(err.Error(), types.CodeBadConfig, string(types.StagePipeline))
		return
	}

	source := audioio.NewPushSource()
	core, err := live.NewSession(config, clients, source)
	if err != nil {
		s.resetStart()
		s.sendError(userMessage(err), types.CodeOf(err), string(types.StageOf(err)))
		return
	}

	s.mu.Lock()
	s.core = core
	s.source = source
	s.log = events.NewLog(core.ID())
	s.mu.Unlock()

	s.log.Append(events.TypeSessionStart, events.Payload{Text: msg.SystemPrompt})

	logger := s.logger.With("session_id", core.ID())
	logger.Info("session starting",
		"asr", config.ASR.Vendor,
		"llm", config.LLM.Vendor,
		"tts", config.TTS.Vendor,
		"max_duration", config.MaxDuration,
	)

	if err := core.Start(s.coreCallbacks(logger)); err != nil {
		// The error callback already reported the failure to the client.
		// Nothing in the dead core is running, so it is discarded without
		// a session_ended and the client may retry start_session, just
		// like a rejected config.
		s.mu.Lock()
		s.core = nil
		s.source = nil
		s.log = nil
		s.started = false
		s.mu.Unlock()
		return
	}

	gwmetrics.SessionsActive.Inc()
	s.sendPriority(&protocol.SessionStarted{
		Type:          protocol.TypeSessionStarted,
		Timestamp:     protocol.NowMs(),
		SessionID:     core.ID(),
		MaxDurationMs: int(config.MaxDuration.Milliseconds()),
	})
}

// resetStart lets the client retry start_session after a rejected config.
func (s *Session) resetStart() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// coreCallbacks bridges orchestrator notifications onto the wire and into
// the event log.
func (s *Session) coreCallbacks(logger *slog.Logger) live.Callbacks {
	return live.Callbacks{
		OnStateChange: func(state live.SessionState) {
			logger.Debug("state changed", "state", state.String())
		},
		OnTurnStart: func() {
			s.mu.Lock()
			s.firstToken = true
			s.mu.Unlock()
		},
		OnInterimTranscript: func(text string) {
			s.log.Append(events.TypeASRPartial, events.Payload{Text: text})
			s.sendNormal(&protocol.TranscriptPartial{
				Type:      protocol.TypeTranscriptPartial,
				Timestamp: protocol.NowMs(),
				Text:      text,
			})
		},
		OnTranscript: func(text string, metrics live.StageMetrics) {
			now := time.Now()
			s.log.AppendAt(events.TypeASRFinal, now, events.Payload{Text: text, SpeechEnd: now})
			s.log.Append(events.TypeLLMStart, events.Payload{Text: text})
			s.sendNormal(&protocol.TranscriptFinal{
				Type:      protocol.TypeTranscriptFinal,
				Timestamp: now.UnixMilli(),
				Text:      text,
			})
		},
		OnLLMToken: func(token string, isComplete bool) {
			if !isComplete {
				s.mu.Lock()
				first := s.firstToken
				s.firstToken = false
				s.mu.Unlock()
				s.log.Append(events.TypeLLMToken, events.Payload{Text: token, IsFirst: first})
			}
			s.sendNormal(&protocol.LLMToken{
				Type:       protocol.TypeLLMToken,
				Timestamp:  protocol.NowMs(),
				Token:      token,
				IsComplete: isComplete,
			})
		},
		OnResponse: func(text string, usage types.Usage, metrics live.StageMetrics) {
			s.log.Append(events.TypeLLMComplete, events.Payload{Text: text, Usage: usage})
			s.log.Append(events.TypeTTSStart, events.Payload{Text: text, Characters: len(text)})
		},
		OnAudioChunk: func(audio []byte, isFirst bool) {
			s.log.Append(events.TypeTTSAudioChunk, events.Payload{Bytes: len(audio), IsFirst: isFirst})
			s.sendNormal(&protocol.TTSAudio{
				Type:      protocol.TypeTTSAudio,
				Timestamp: protocol.NowMs(),
				Audio:     base64.StdEncoding.EncodeToString(audio),
				IsFirst:   isFirst,
			})
		},
		OnAudioStart: func(metrics live.StageMetrics) {
			s.log.Append(events.TypeTTSComplete, events.Payload{})
		},
		OnTurnComplete: func(turn live.Turn) {
			gwmetrics.TurnsTotal.Inc()
			gwmetrics.StageDuration.WithLabelValues("asr").Observe(turn.Metrics.ASR.TotalMs / 1000)
			gwmetrics.StageDuration.WithLabelValues("llm").Observe(turn.Metrics.LLM.TotalMs / 1000)
			gwmetrics.StageDuration.WithLabelValues("tts").Observe(turn.Metrics.TTS.TotalMs / 1000)
			gwmetrics.RoundTripDuration.Observe(turn.Metrics.RoundTripMs / 1000)
			logger.Info("turn complete",
				"turn_id", turn.ID,
				"round_trip_ms", turn.Metrics.RoundTripMs,
			)
		},
		OnError: func(err error, stage types.Stage) {
			code := types.CodeOf(err)
			gwmetrics.Errors.WithLabelValues(string(stage), code).Inc()
			s.log.Append(events.TypeError, events.Payload{Stage: stage, Message: err.Error()})
			logger.Warn("pipeline error", "stage", string(stage), "error", err)
			s.sendError(userMessage(err), code, string(stage))
		},
		OnSessionEnd: func(summary live.SessionSummary) {
			s.finish(summary, logger)
		},
	}
}

func (s *Session) handleAudio(msg *protocol.AudioChunk) {
	s.mu.Lock()
	source := s.source
	log := s.log
	s.mu.Unlock()
	if source == nil {
		return
	}

	pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil {
		s.sendError("audio payload is not valid base64", "bad_request", "")
		return
	}

	gwmetrics.AudioChunks.Inc()
	if log != nil {
		log.Append(events.TypeAudioChunkReceived, events.Payload{Bytes: len(pcm)})
	}
	source.Push(pcm)
}

// finish sends the final session_ended message, exactly once per session.
func (s *Session) finish(summary live.SessionSummary, logger *slog.Logger) {
	s.endedOnce.Do(func() {
		s.log.Append(events.TypeSessionEnd, events.Payload{
			Reason:   string(summary.Reason),
			Duration: summary.Duration,
		})

		report := coremetrics.Calculate(s.log)
		payload, err := json.Marshal(struct {
			coremetrics.SessionMetrics
			Summary live.SessionSummary `json:"summary"`
		}{report, summary})
		if err != nil {
			payload = nil
		}

		gwmetrics.SessionsActive.Dec()
		gwmetrics.SessionsTotal.WithLabelValues(string(summary.Reason)).Inc()
		logger.Info("session ended",
			"reason", string(summary.Reason),
			"turns", len(summary.Turns),
			"duration", summary.Duration,
		)

		s.sendPriority(&protocol.SessionEnded{
			Type:      protocol.TypeSessionEnded,
			Timestamp: protocol.NowMs(),
			Reason:    string(summary.Reason),
			Metrics:   payload,
		})
		s.cancel()
	})
}

func (s *Session) stopCore() {
	s.mu.Lock()
	core := s.core
	s.mu.Unlock()
	if core != nil {
		core.Stop()
	} else {
		s.cancel()
	}
}

func (s *Session) sendError(message, code, stage string) {
	s.sendPriority(&protocol.ErrorMessage{
		Type:      protocol.TypeError,
		Timestamp: protocol.NowMs(),
		Message:   message,
		Code:      code,
		Stage:     stage,
	})
}

func (s *Session) sendPriority(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case s.priority <- payload:
	case <-s.ctx.Done():
	}
}

func (s *Session) sendNormal(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case s.normal <- payload:
	default:
		// A slow client sheds stream frames rather than stalling the
		// pipeline.
		s.logger.Debug("dropped outbound frame")
	}
}

// sessionConfigFrom maps the wire config onto the core session config,
// capping the requested deadline.
func sessionConfigFrom(msg *protocol.StartSession, maxCap time.Duration) live.SessionConfig {
	config := live.DefaultSessionConfig()
	config.SystemPrompt = msg.SystemPrompt
	config.ASR = live.ASRConfig{
		Vendor:   msg.ASR.Vendor,
		APIKey:   msg.ASR.APIKey,
		Model:    msg.ASR.Model,
		Language: msg.ASR.Language,
		Region:   msg.ASR.Region,
	}
	config.LLM = live.LLMConfig{
		Vendor: msg.LLM.Vendor,
		APIKey: msg.LLM.APIKey,
		Model:  msg.LLM.Model,
	}
	config.TTS = live.TTSConfig{
		Vendor:  msg.TTS.Vendor,
		APIKey:  msg.TTS.APIKey,
		Model:   msg.TTS.Model,
		VoiceID: msg.TTS.VoiceID,
		UserID:  msg.TTS.UserID,
	}
	if msg.MaxDurationMs > 0 {
		config.MaxDuration = time.Duration(msg.MaxDurationMs) * time.Millisecond
	}
	if maxCap > 0 && config.MaxDuration > maxCap {
		config.MaxDuration = maxCap
	}
	return config
}
