package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeshark2/freesoft/pkg/core/live"
	"github.com/codeshark2/freesoft/pkg/core/types"
)

const openAIDefaultBase = "https://api.openai.com/v1"

// OpenAIClient synthesizes speech through OpenAI's speech endpoint.
type OpenAIClient struct {
	apiKey     string
	model      string
	voice      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates a synthesis client for api.openai.com.
func NewOpenAI(apiKey, model, voice string) *OpenAIClient {
	if model == "" {
		model = "tts-1"
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		model:      model,
		voice:      voice,
		baseURL:    openAIDefaultBase,
		httpClient: &http.Client{},
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *OpenAIClient) WithBaseURL(base string) *OpenAIClient {
	if base != "" {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
	return c
}

// Synthesize streams synthesis for text, invoking onChunk per audio chunk.
func (c *OpenAIClient) Synthesize(ctx context.Context, text string, onChunk func(audio []byte, isFirst bool)) (*live.TTSResult, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"voice": c.voice,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
