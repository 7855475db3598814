package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/codeshark2/freesoft/pkg/core/live"
)

const whisperDefaultBase = "https://api.openai.com/v1"

// WhisperClient transcribes complete utterances through OpenAI's
// request/response transcription endpoint.
type WhisperClient struct {
	apiKey     string
	model      string
	language   string
	baseURL    string
	httpClient *http.Client
}

// NewWhisper creates a batch transcription client.
func NewWhisper(apiKey, model, language string) *WhisperClient {
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperClient{
		apiKey:     apiKey,
		model:      model,
		language:   language,
		baseURL:    whisperDefaultBase,
		httpClient: &http.Client{},
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *WhisperClient) WithBaseURL(base string) *WhisperClient {
	if base != "" {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
	return c
}

// Transcribe sends one WAV utterance and returns the transcript with
// measured time-to-first-byte and total latency.
func (c *WhisperClient) Transcribe(ctx context.Context, wavData []byte) (*live.BatchResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, fmt.Errorf("build transcription request: %w", err)
	}
	if _, err := fw.Write(wavData); err != nil {
		return nil, fmt.Errorf("build transcription request: %w", err)
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("build transcription request: %w", err)
	}
	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return nil, fmt.Errorf("build transcription request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()
	ttfb := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transcription status %d: %s", resp.StatusCode, errBody)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	total := time.Since(start)

	return &live.BatchResult{
		Text: out.Text,
		Metrics: live.StageMetrics{
			TTFBMs:  float64(ttfb.Milliseconds()),
			TotalMs: float64(total.Milliseconds()),
		},
	}, nil
}
