package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeshark2/freesoft/pkg/core/live"
	"github.com/codeshark2/freesoft/pkg/core/types"
)

func dialTestSession(t *testing.T, cfg Config) *websocket.Conn {
	return dialTestSessionBuild(t, cfg, nil)
}

// dialTestSessionBuild lets a test swap the client builder for fakes.
func dialTestSessionBuild(t *testing.T, cfg Config, build func(live.SessionConfig) (live.Clients, error)) *websocket.Conn {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := New(ws, cfg, logger)
		if build != nil {
			s.build = build
		}
		s.Run()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// The whisper path does not dial anything at start, so a full session
// lifecycle runs without network access.
func startMessage() map[string]any {
	return map[string]any{
		"type":          "start_session",
		"timestamp":     time.Now().UnixMilli(),
		"system_prompt": "short answers",
		"asr":           map[string]any{"vendor": "whisper", "api_key": "k1", "model": "whisper-1"},
		"llm":           map[string]any{"vendor": "openai", "api_key": "k2", "model": "gpt-4o-mini"},
		"tts":           map[string]any{"vendor": "elevenlabs", "api_key": "k3", "voice_id": "rachel"},
	}
}

func readTyped(t *testing.T, conn *websocket.Conn, timeout time.Duration) (string, map[string]any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	typ, _ := msg["type"].(string)
	return typ, msg
}

func TestGatewaySessionLifecycle(t *testing.T) {
	conn := dialTestSession(t, DefaultConfig())

	if err := conn.WriteJSON(startMessage()); err != nil {
		t.Fatalf("write start: %v", err)
	}
	typ, started := readTyped(t, conn, 2*time.Second)
	if typ != "session_started" {
		t.Fatalf("first message = %q, want session_started", typ)
	}
	if started["session_id"] == "" {
		t.Error("session_started missing session id")
	}

	// Audio flows in without any response expected.
	chunk := map[string]any{
		"type":  "audio_chunk",
		"audio": base64.StdEncoding.EncodeToString(make([]byte, 3200)),
	}
	if err := conn.WriteJSON(chunk); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	// End twice; session_ended must arrive exactly once.
	end := map[string]any{"type": "end_session", "timestamp": time.Now().UnixMilli()}
	if err := conn.WriteJSON(end); err != nil {
		t.Fatalf("write end: %v", err)
	}
	_ = conn.WriteJSON(end)

	endedCount := 0
	var endedMsg map[string]any
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		if msg["type"] == "session_ended" {
			endedCount++
			endedMsg = msg
		}
	}

	if endedCount != 1 {
		t.Fatalf("session_ended frames = %d, want exactly 1", endedCount)
	}
	if endedMsg["reason"] != "user_requested" {
		t.Errorf("reason = %v, want user_requested", endedMsg["reason"])
	}
	metrics, ok := endedMsg["metrics"].(map[string]any)
	if !ok {
		t.Fatalf("metrics missing from session_ended: %v", endedMsg)
	}
	if _, ok := metrics["latencies"]; !ok {
		t.Errorf("metrics payload missing latencies: %v", metrics)
	}
}

func TestGatewaySessionTimesOut(t *testing.T) {
	conn := dialTestSession(t, DefaultConfig())

	start := startMessage()
	start["max_duration_ms"] = 300
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}
	typ, _ := readTyped(t, conn, 2*time.Second)
	if typ != "session_started" {
		t.Fatalf("first message = %q, want session_started", typ)
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal("connection closed without session_ended")
		}
		var msg map[string]any
		_ = json.Unmarshal(data, &msg)
		if msg["type"] == "session_ended" {
			if msg["reason"] != "timeout" {
				t.Errorf("reason = %v, want timeout", msg["reason"])
			}
			return
		}
	}
}

func TestGatewayRejectsMalformedWithoutClosing(t *testing.T) {
	conn := dialTestSession(t, DefaultConfig())

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	typ, msg := readTyped(t, conn, 2*time.Second)
	if typ != "error" {
		t.Fatalf("response = %q, want error", typ)
	}
	if msg["code"] != "bad_request" {
		t.Errorf("code = %v, want bad_request", msg["code"])
	}

	// Connection survives; a valid start still works.
	if err := conn.WriteJSON(startMessage()); err != nil {
		t.Fatalf("write start: %v", err)
	}
	typ, _ = readTyped(t, conn, 2*time.Second)
	if typ != "session_started" {
		t.Fatalf("after bad frame, start = %q, want session_started", typ)
	}
}

func TestGatewayRejectsUnknownVendorThenAcceptsRetry(t *testing.T) {
	conn := dialTestSession(t, DefaultConfig())

	bad := startMessage()
	bad["llm"] = map[string]any{"vendor": "parrot", "api_key": "k", "model": "m"}
	if err := conn.WriteJSON(bad); err != nil {
		t.Fatalf("write start: %v", err)
	}
	typ, msg := readTyped(t, conn, 2*time.Second)
	if typ != "error" {
		t.Fatalf("response = %q, want error", typ)
	}
	if msg["code"] != "bad_config" {
		t.Errorf("code = %v, want bad_config", msg["code"])
	}

	if err := conn.WriteJSON(startMessage()); err != nil {
		t.Fatalf("write retry: %v", err)
	}
	typ, _ = readTyped(t, conn, 2*time.Second)
	if typ != "session_started" {
		t.Fatalf("retry = %q, want session_started", typ)
	}
}

type failingStreamASR struct{}

func (failingStreamASR) Connect(ctx context.Context) (live.ASRStream, error) {
	return nil, types.NewPipelineError(types.StageASR, types.CodeConnectionTimeout, "connect refused", errors.New("dial tcp: refused"))
}

type stubBatchASR struct{}

func (stubBatchASR) Transcribe(ctx context.Context, wavData []byte) (*live.BatchResult, error) {
	return &live.BatchResult{}, nil
}

type stubLLM struct{}

func (stubLLM) Generate(ctx context.Context, messages []types.Message, onToken func(token string)) (*live.LLMResult, error) {
	return &live.LLMResult{}, nil
}

type stubTTS struct{}

func (stubTTS) Synthesize(ctx context.Context, text string, onChunk func(audio []byte, isFirst bool)) (*live.TTSResult, error) {
	return &live.TTSResult{}, nil
}

func TestGatewayStartFailureAllowsRetry(t *testing.T) {
	// A streaming vendor whose connect fails breaks core startup after the
	// config was accepted. That failure is still pre-session: the client
	// gets an error frame, no session_ended, and may start again.
	build := func(config live.SessionConfig) (live.Clients, error) {
		if config.ASR.Streaming() {
			return live.Clients{StreamASR: failingStreamASR{}, LLM: stubLLM{}, TTS: stubTTS{}}, nil
		}
		return live.Clients{BatchASR: stubBatchASR{}, LLM: stubLLM{}, TTS: stubTTS{}}, nil
	}
	conn := dialTestSessionBuild(t, DefaultConfig(), build)

	bad := startMessage()
	bad["asr"] = map[string]any{"vendor": "deepgram", "api_key": "k1", "model": "nova-2"}
	if err := conn.WriteJSON(bad); err != nil {
		t.Fatalf("write start: %v", err)
	}
	typ, msg := readTyped(t, conn, 2*time.Second)
	if typ != "error" {
		t.Fatalf("response = %q, want error", typ)
	}
	if msg["code"] != "connection_timeout" {
		t.Errorf("code = %v, want connection_timeout", msg["code"])
	}

	if err := conn.WriteJSON(startMessage()); err != nil {
		t.Fatalf("write retry: %v", err)
	}
	typ, _ = readTyped(t, conn, 2*time.Second)
	if typ != "session_started" {
		t.Fatalf("retry = %q, want session_started", typ)
	}

	// The retried session still ends exactly once.
	if err := conn.WriteJSON(map[string]any{"type": "end_session"}); err != nil {
		t.Fatalf("write end: %v", err)
	}
	endedCount := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var frame map[string]any
		_ = json.Unmarshal(data, &frame)
		if frame["type"] == "session_ended" {
			endedCount++
		}
	}
	if endedCount != 1 {
		t.Fatalf("session_ended frames = %d, want exactly 1", endedCount)
	}
}

func TestGatewayRejectsDoubleStart(t *testing.T) {
	conn := dialTestSession(t, DefaultConfig())

	if err := conn.WriteJSON(startMessage()); err != nil {
		t.Fatalf("write start: %v", err)
	}
	typ, _ := readTyped(t, conn, 2*time.Second)
	if typ != "session_started" {
		t.Fatalf("first start = %q", typ)
	}

	if err := conn.WriteJSON(startMessage()); err != nil {
		t.Fatalf("write second start: %v", err)
	}
	typ, msg := readTyped(t, conn, 2*time.Second)
	if typ != "error" {
		t.Fatalf("second start response = %q, want error", typ)
	}
	if got, _ := msg["message"].(string); !strings.Contains(got, "already started") {
		t.Errorf("message = %q", got)
	}
}

func TestGatewayCapsRequestedDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessionDuration = time.Second

	conn := dialTestSession(t, cfg)
	start := startMessage()
	start["max_duration_ms"] = 3600000
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}

	typ, msg := readTyped(t, conn, 2*time.Second)
	if typ != "session_started" {
		t.Fatalf("start = %q", typ)
	}
	if got, _ := msg["max_duration_ms"].(float64); got != 1000 {
		t.Errorf("max_duration_ms = %v, want capped to 1000", got)
	}
}
