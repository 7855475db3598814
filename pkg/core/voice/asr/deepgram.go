package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeshark2/freesoft/pkg/core/live"
)

const (
	deepgramDefaultWSBase = "wss://api.deepgram.com/v1/listen"

	// keepAliveInterval keeps the socket open when no audio is flowing.
	keepAliveInterval = 5 * time.Second

	// endpointingMs is the vendor's endpoint-detection silence threshold.
	endpointingMs = 300

	// utteranceEndMs is the silence after which the vendor signals
	// utterance end.
	utteranceEndMs = 1000
)

// DeepgramClient opens duplex transcription streams against Deepgram's
// live API.
type DeepgramClient struct {
	apiKey   string
	model    string
	language string
	audio    live.AudioConfig
	wsBase   string
}

// NewDeepgram creates a streaming client for the given model and capture
// format.
func NewDeepgram(apiKey, model, language string, audio live.AudioConfig) *DeepgramClient {
	if language == "" {
		language = "en-US"
	}
	return &DeepgramClient{
		apiKey:   apiKey,
		model:    model,
		language: language,
		audio:    audio,
		wsBase:   deepgramDefaultWSBase,
	}
}

// WithWSBase overrides the websocket endpoint, for tests.
func (c *DeepgramClient) WithWSBase(base string) *DeepgramClient {
	if base != "" {
		c.wsBase = base
	}
	return c
}

// Connect dials the live endpoint and starts the read and keep-alive
// loops. The handshake is bounded at 10 seconds.
func (c *DeepgramClient) Connect(ctx context.Context) (live.ASRStream, error) {
	u, err := url.Parse(c.wsBase)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram ws url: %w", err)
	}
	q := u.Query()
	q.Set("model", c.model)
	q.Set("language", c.language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(c.audio.SampleRate))
	q.Set("channels", strconv.Itoa(c.audio.Channels))
	q.Set("endpointing", strconv.Itoa(endpointingMs))
	q.Set("utterance_end_ms", strconv.Itoa(utteranceEndMs))
	q.Set("interim_results", "true")
	q.Set("vad_events", "true")
	q.Set("punctuate", "true")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+c.apiKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("connect deepgram: %w", err)
	}

	s := &deepgramStream{
		conn:   conn,
		events: make(chan live.StreamEvent, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	go s.keepAliveLoop()
	return s, nil
}

// deepgramStream is one open live-transcription socket.
type deepgramStream struct {
	conn    *websocket.Conn
	events  chan live.StreamEvent
	done    chan struct{}
	writeMu sync.Mutex

	mu          sync.Mutex
	lastAudioAt time.Time
	closed      bool
}

// deepgramMessage covers the message shapes the live endpoint sends.
type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramStream) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.emit(live.StreamEvent{Type: live.StreamEventError, Err: fmt.Errorf("deepgram read: %w", err)})
			}
			return
		}

		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "Results":
			if len(msg.Channel.Alternatives) == 0 {
				continue
			}
			text := msg.Channel.Alternatives[0].Transcript
			if text == "" {
				continue
			}
			if msg.IsFinal {
				s.emit(live.StreamEvent{Type: live.StreamEventFinal, Text: text})
			} else {
				s.emit(live.StreamEvent{Type: live.StreamEventPartial, Text: text})
			}
		case "UtteranceEnd":
			s.emit(live.StreamEvent{Type: live.StreamEventUtteranceEnd})
		}
	}
}

func (s *deepgramStream) emit(ev live.StreamEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// keepAliveLoop sends a KeepAlive message whenever the socket would
// otherwise idle out.
func (s *deepgramStream) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastAudioAt) >= keepAliveInterval
			s.mu.Unlock()
			if !idle {
				continue
			}
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			_ = s.conn.WriteJSON(map[string]string{"type": "KeepAlive"})
			s.writeMu.Unlock()
		}
	}
}

// SendAudio forwards one PCM frame in capture order.
func (s *deepgramStream) SendAudio(pcm []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("stream closed")
	}
	s.lastAudioAt = time.Now()
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("deepgram send audio: %w", err)
	}
	return nil
}

func (s *deepgramStream) Events() <-chan live.StreamEvent {
	return s.events
}

// Close signals end of audio with CloseStream, gives the server a moment
// to flush in-flight finalization, then closes the transport.
func (s *deepgramStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_ = s.conn.WriteJSON(map[string]string{"type": "CloseStream"})
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	close(s.done)
	return s.conn.Close()
}
