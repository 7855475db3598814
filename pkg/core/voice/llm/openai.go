package llm

import (
	"bufio"
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

const (
	openAIDefaultBase = "https://api.openai.com/v1"
	groqDefaultBase   = "https://api.groq.com/openai/v1"
)

// OpenAIClient streams chat completions from an OpenAI-compatible
// endpoint. Groq serves the same wire format on a different base URL.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates a chat-completion client for api.openai.com.
func NewOpenAI(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    openAIDefaultBase,
		httpClient: &http.Client{},
	}
}

// NewGroq creates a chat-completion client for Groq's OpenAI-compatible
// endpoint.
func NewGroq(apiKey, model string) *OpenAIClient {
	c := NewOpenAI(apiKey, model)
	c.baseURL = groqDefaultBase
	return c
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *OpenAIClient) WithBaseURL(base string) *OpenAIClient {
	if base != "" {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate runs one streamed completion over the full history. Tokens are
// forwarded to onToken as they arrive; usage comes from the final stream
// chunk.
func (c *OpenAIClient) Generate(ctx context.Context, messages []types.Message, onToken func(token string)) (*live.LLMResult, error) {
	chatMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(map[string]any{
		"model":    c.model,
		"messages": chatMessages,
		"stream":   true,
		"stream_options": map[string]any{
			"include_usage": true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, statusError(resp.StatusCode, errBody)
	}

	var (
		text  strings.Builder
		usage types.Usage
		ttfb  time.Time
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
			Usage *struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
			} `json:"usage"`
		}
		if json.Unmarshal([]byte(data), &chunk) != nil {
			continue
		}
		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		if ttfb.IsZero() {
			ttfb = time.Now()
		}
		if onToken != nil {
			onToken(token)
		}
		text.WriteString(token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chat stream: %w", err)
	}

	total := time.Since(start)
	ttfbMs := float64(0)
	if !ttfb.IsZero() {
		ttfbMs = float64(ttfb.Sub(start).Milliseconds())
	}

	return &live.LLMResult{
		Text:  text.String(),
		Usage: usage,
		Metrics: live.StageMetrics{
			TTFBMs:  ttfbMs,
			TotalMs: float64(total.Milliseconds()),
		},
	}, nil
}

// statusError maps provider HTTP failures onto the stage-tagged taxonomy
// so auth and quota problems surface with stable codes.
func statusError(status int, body []byte) error {
	raw := fmt.Errorf("chat status %d: %s", status, body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewPipelineError(types.StageLLM, types.CodeAuthFailed, "authentication failed", raw)
	case http.StatusTooManyRequests:
		return types.NewPipelineError(types.StageLLM, types.CodeQuotaExceeded, "quota exceeded", raw)
	default:
		return types.NewPipelineError(types.StageLLM, types.CodeProviderError, "chat completion failed", raw)
	}
}
