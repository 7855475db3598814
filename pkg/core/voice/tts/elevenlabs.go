package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeshark2/freesoft/pkg/core/live"
	"github.com/codeshark2/freesoft/pkg/core/types"
)

const elevenLabsDefaultBase = "https://api.elevenlabs.io/v1"

// ElevenLabsClient synthesizes speech through ElevenLabs' streaming
// endpoint. Audio chunks are forwarded as they arrive.
type ElevenLabsClient struct {
	apiKey     string
	model      string
	voiceID    string
	baseURL    string
	httpClient *http.Client
}

// NewElevenLabs creates a streaming synthesis client.
func NewElevenLabs(apiKey, model, voiceID string) *ElevenLabsClient {
	if model == "" {
		model = "eleven_turbo_v2"
	}
	return &ElevenLabsClient{
		apiKey:     apiKey,
		model:      model,
		voiceID:    voiceID,
		baseURL:    elevenLabsDefaultBase,
		httpClient: &http.Client{},
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *ElevenLabsClient) WithBaseURL(base string) *ElevenLabsClient {
	if base != "" {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
	return c
}

// Synthesize streams synthesis for text, invoking onChunk per audio chunk
// in playback order.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string, onChunk func(audio []byte, isFirst bool)) (*live.TTSResult, error) {
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	endpoint := c.baseURL + "/text-to-speech/" + url.PathEscape(c.voiceID) + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.NewPipelineError(types.StageTTS, types.CodeProviderError, "synthesis request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, synthesisStatusError(resp.StatusCode, errBody)
	}

	var (
		ttfb  time.Time
		first = true
		buf   = make([]byte, 8192)
	)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if ttfb.IsZero() {
				ttfb = time.Now()
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if onChunk != nil {
				onChunk(chunk, first)
			}
			first = false
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.NewPipelineError(types.StageTTS, types.CodeProviderError, "synthesis stream failed", err)
		}
	}

	total := time.Since(start)
	ttfbMs := float64(0)
	if !ttfb.IsZero() {
		ttfbMs = float64(ttfb.Sub(start).Milliseconds())
	}

	return &live.TTSResult{
		Characters: len(text),
		Metrics: live.StageMetrics{
			TTFBMs:  ttfbMs,
			TotalMs: float64(total.Milliseconds()),
		},
	}, nil
}

func synthesisStatusError(status int, body []byte) error {
	raw := fmt.Errorf("synthesis status %d: %s", status, body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewPipelineError(types.StageTTS, types.CodeAuthFailed, "authentication failed", raw)
	case http.StatusTooManyRequests:
		return types.NewPipelineError(types.StageTTS, types.CodeQuotaExceeded, "quota exceeded", raw)
	default:
		return types.NewPipelineError(types.StageTTS, types.CodeProviderError, "synthesis failed", raw)
	}
}
