package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeshark2/freesoft/pkg/core/audioio"
	"github.com/codeshark2/freesoft/pkg/core/types"
)

// deadlineTick is the granularity of the session deadline check. The
// remaining time is reported on every tick whether or not it changed.
const deadlineTick = 100 * time.Millisecond

// Callbacks is the notification surface exposed to the caller. All
// callbacks are fire-and-forget; nil entries are skipped.
type Callbacks struct {
	OnStateChange       func(state SessionState)
	OnTurnStart         func()
	OnInterimTranscript func(text string)
	OnTranscript        func(text string, metrics StageMetrics)
	OnLLMToken          func(token string, isComplete bool)
	OnResponse          func(text string, usage types.Usage, metrics StageMetrics)
	OnAudioChunk        func(audio []byte, isFirst bool)
	OnAudioStart        func(metrics StageMetrics)
	OnTurnComplete      func(turn Turn)
	OnTimeUpdate        func(remaining time.Duration)
	OnSessionEnd        func(summary SessionSummary)
	OnError             func(err error, stage types.Stage)
}

// Session owns one voice conversation: the state machine, the conversation
// history, the turn list, and the session deadline. A Session is single
// use; once stopped it cannot be restarted.
type Session struct {
	id      string
	config  SessionConfig
	clients Clients
	source  audioio.Source

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	callbacks  Callbacks
	state      SessionState
	capture    CaptureStrategy
	history    []types.Message
	turns      []Turn
	usage      types.Usage
	processing bool
	startedAt  time.Time
	stopped    bool

	stopOnce sync.Once
}

// NewSession validates the configuration and creates an idle session.
// Vendor config problems are caught here, before any connection attempt.
func NewSession(config SessionConfig, clients Clients, source audioio.Source) (*Session, error) {
	if config.MaxDuration == 0 {
		config.MaxDuration = 60 * time.Second
	}
	if config.Audio == (AudioConfig{}) {
		config.Audio = DefaultAudioConfig()
	}
	if config.VAD == (VADConfig{}) {
		config.VAD = DefaultVADConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, types.NewPipelineError(types.StagePipeline, types.CodeBadConfig, "invalid session config", err)
	}
	if clients.LLM == nil || clients.TTS == nil {
		return nil, types.NewPipelineError(types.StagePipeline, types.CodeBadConfig, "llm and tts clients are required", nil)
	}
	if clients.StreamASR == nil && clients.BatchASR == nil {
		return nil, types.NewPipelineError(types.StagePipeline, types.CodeBadConfig, "an asr client is required", nil)
	}
	if source == nil {
		return nil, types.NewPipelineError(types.StagePipeline, types.CodeBadConfig, "an audio source is required", nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:      uuid.NewString(),
		config:  config,
		clients: clients,
		source:  source,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a snapshot of the conversation history.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Turns returns a snapshot of the completed turn list.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Start begins the session: seeds the history, picks and starts the
// capture strategy, transitions to listening, and arms the deadline timer.
// On failure the state moves to error and the error is both returned and
// reported through OnError.
func (s *Session) Start(callbacks Callbacks) error {
	s.mu.Lock()
	if s.stopped || s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.callbacks = callbacks
	s.startedAt = time.Now()
	s.history = nil
	if s.config.SystemPrompt != "" {
		s.history = append(s.history, types.Message{Role: types.RoleSystem, Content: s.config.SystemPrompt})
	}
	s.turns = nil
	capture := s.newCaptureLocked()
	s.capture = capture
	s.mu.Unlock()

	if err := capture.Start(s.ctx); err != nil {
		perr := types.NewPipelineError(types.StageASR, types.CodeConnectionTimeout, "capture start failed", err)
		s.setState(StateError)
		s.notifyError(perr)
		return perr
	}

	s.setState(StateListening)
	go s.deadlineLoop()
	return nil
}

// newCaptureLocked is the single point where the capture strategy is
// chosen by vendor capability. Callers hold the mutex.
func (s *Session) newCaptureLocked() CaptureStrategy {
	sink := UtteranceSink{
		OnInterim:   s.onInterim,
		OnUtterance: s.onUtterance,
		OnError:     s.onCaptureError,
	}
	if s.clients.StreamASR != nil {
		return NewStreamingCapture(s.clients.StreamASR, s.source, s.config.Audio, sink)
	}

	var vad VAD
	if s.config.VAD.Strategy == VADStrategyNeural && s.clients.Classifier != nil {
		vad = NewNeuralVAD(s.config.VAD, s.config.Audio, s.clients.Classifier)
	} else {
		vad = NewEnergyVAD(s.config.VAD, s.config.Audio)
	}
	return NewBatchedCapture(vad, s.clients.BatchASR, s.source, s.config.Audio, sink)
}

// Stop ends the session at the user's request. Idempotent and safe to call
// from any state, including mid-turn; an in-flight turn's results are
// discarded.
func (s *Session) Stop() {
	s.stopWithReason(EndReasonUserRequested)
}

func (s *Session) stopWithReason(reason EndReason) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		if s.state == StateError {
			reason = EndReasonError
		}
		capture := s.capture
		s.capture = nil
		turns := make([]Turn, len(s.turns))
		copy(turns, s.turns)
		usage := s.usage
		var duration time.Duration
		if !s.startedAt.IsZero() {
			duration = time.Since(s.startedAt)
		}
		s.mu.Unlock()

		s.cancel()
		if capture != nil {
			_ = capture.Stop()
		}

		if s.State() != StateError {
			s.setState(StateIdle)
		}

		summary := SessionSummary{
			SessionID: s.id,
			Reason:    reason,
			Turns:     turns,
			Average:   SummarizeTurns(turns),
			Usage:     usage,
			Duration:  duration,
		}
		if s.callbacks.OnSessionEnd != nil {
			s.callbacks.OnSessionEnd(summary)
		}
	})
}

// deadlineLoop enforces the maximum session duration at a fixed 100 ms
// granularity, reporting the remaining time on every tick.
func (s *Session) deadlineLoop() {
	ticker := time.NewTicker(deadlineTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			remaining := s.config.MaxDuration - time.Since(s.startedAt)
			if remaining < 0 {
				remaining = 0
			}
			if s.callbacks.OnTimeUpdate != nil {
				s.callbacks.OnTimeUpdate(remaining)
			}
			if remaining <= 0 {
				s.stopWithReason(EndReasonTimeout)
				return
			}
		}
	}
}

func (s *Session) onInterim(text string) {
	if s.isLive() && s.callbacks.OnInterimTranscript != nil {
		s.callbacks.OnInterimTranscript(text)
	}
}

// onUtterance receives each finalized utterance from the capture strategy.
// The single-flight guard drops utterances that arrive while a turn is in
// flight; they are never queued.
func (s *Session) onUtterance(text string, metrics StageMetrics) {
	s.mu.Lock()
	if s.stopped || s.state == StateError || s.processing {
		s.mu.Unlock()
		return
	}
	s.processing = true
	s.mu.Unlock()

	go s.processTurn(text, metrics)
}

// onCaptureError handles ASR-stage failures from the capture strategy.
// An ASR disconnect is unrecoverable: the turn loop halts.
func (s *Session) onCaptureError(err error) {
	if !s.isLive() {
		return
	}
	s.setState(StateError)
	s.notifyError(err)
}

// processTurn sequences one turn: history append, LLM, history append,
// TTS, playback, turn record. Exactly one runs at a time.
func (s *Session) processTurn(userText string, asrMetrics StageMetrics) {
	defer s.finishTurn()

	turnStart := time.Now()
	s.mu.Lock()
	capture := s.capture
	s.mu.Unlock()
	if capture != nil {
		capture.Pause()
	}

	s.setState(StateProcessing)
	if s.callbacks.OnTurnStart != nil {
		s.callbacks.OnTurnStart()
	}
	if s.callbacks.OnTranscript != nil {
		s.callbacks.OnTranscript(userText, asrMetrics)
	}

	s.mu.Lock()
	s.history = append(s.history, types.Message{Role: types.RoleUser, Content: userText})
	messages := make([]types.Message, len(s.history))
	copy(messages, s.history)
	s.mu.Unlock()

	llmResult, err := s.clients.LLM.Generate(s.ctx, messages, func(token string) {
		if s.callbacks.OnLLMToken != nil {
			s.callbacks.OnLLMToken(token, false)
		}
	})
	if err != nil {
		s.failTurn(types.StageLLM, err)
		return
	}
	if !s.isLive() {
		return
	}
	if s.callbacks.OnLLMToken != nil {
		s.callbacks.OnLLMToken("", true)
	}

	s.mu.Lock()
	s.history = append(s.history, types.Message{Role: types.RoleAssistant, Content: llmResult.Text})
	s.usage.Add(llmResult.Usage)
	s.mu.Unlock()

	if s.callbacks.OnResponse != nil {
		s.callbacks.OnResponse(llmResult.Text, llmResult.Usage, llmResult.Metrics)
	}

	s.setState(StateSpeaking)

	var playbackStart time.Time
	ttsResult, err := s.clients.TTS.Synthesize(s.ctx, llmResult.Text, func(audio []byte, isFirst bool) {
		if isFirst {
			playbackStart = time.Now()
		}
		if s.callbacks.OnAudioChunk != nil {
			s.callbacks.OnAudioChunk(audio, isFirst)
		}
	})
	if err != nil {
		// The assistant's reply is already in the history at this point
		// and stays there even though no Turn is appended. Follow-up
		// turns still see the failed reply as context.
		s.failTurn(types.StageTTS, err)
		return
	}
	if !s.isLive() {
		return
	}

	if s.callbacks.OnAudioStart != nil {
		s.callbacks.OnAudioStart(ttsResult.Metrics)
	}

	if playbackStart.IsZero() {
		playbackStart = time.Now()
	}
	roundTrip := playbackStart.Sub(turnStart)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	turn := Turn{
		ID:            len(s.turns) + 1,
		UserText:      userText,
		AssistantText: llmResult.Text,
		Metrics: TurnMetrics{
			ASR:         asrMetrics,
			LLM:         llmResult.Metrics,
			TTS:         ttsResult.Metrics,
			RoundTripMs: float64(roundTrip.Milliseconds()),
		},
		CreatedAt: time.Now(),
	}
	s.turns = append(s.turns, turn)
	s.mu.Unlock()

	if s.callbacks.OnTurnComplete != nil {
		s.callbacks.OnTurnComplete(turn)
	}
}

// finishTurn clears the single-flight guard and resumes listening unless
// the session has since ended or errored.
func (s *Session) finishTurn() {
	s.mu.Lock()
	s.processing = false
	resume := !s.stopped && s.state != StateError
	capture := s.capture
	s.mu.Unlock()

	if !resume {
		return
	}
	s.setState(StateListening)
	if capture != nil {
		capture.Resume()
	}
}

// failTurn converts a stage failure into the error state. No retry; the
// turn loop halts until Stop.
func (s *Session) failTurn(stage types.Stage, err error) {
	if !s.isLive() {
		return
	}
	perr := err
	if types.StageOf(err) == types.StagePipeline {
		perr = types.NewPipelineError(stage, types.CodeProviderError, "stage failed", err)
	}
	s.setState(StateError)
	s.notifyError(perr)
}

func (s *Session) isLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && s.state != StateError
}

func (s *Session) setState(to SessionState) {
	s.mu.Lock()
	if s.state == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	if s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(to)
	}
}

func (s *Session) notifyError(err error) {
	if s.callbacks.OnError != nil {
		s.callbacks.OnError(err, types.StageOf(err))
	}
}
