// Package llm provides a client for the Gemini generateContent API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
)

// ErrEmptyResponse 表示模型没有返回任何文本。
var ErrEmptyResponse = errors.New("llm returned no text")

// Client defines the interface for an LLM client.
// The API key is supplied per call because every school brings its own key.
type Client interface {
	// Chat 以 history 作为先前的对话轮次，再发送 message，返回模型的完整文本回复。
	Chat(ctx context.Context, apiKey string, history []Message, message string, gen *GenerationParams) (string, error)
}

// Message 表示一条角色消息，Role 取值 user 或 model。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature     *float64
	MaxOutputTokens *int
}

type geminiClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a Gemini client. Requests are bounded by cfg.TimeoutSeconds.
func NewClient(cfg config.LLMConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &geminiClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

func (c *geminiClient) Chat(ctx context.Context, apiKey string, history []Message, message string, gen *GenerationParams) (string, error) {
	if apiKey == "" {
		return "", errors.New("api key is empty")
	}

	contents := make([]content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, content{Role: m.Role, Parts: []part{{Text: m.Content}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: message}}})

	reqBody := generateRequest{Contents: contents}
	// 传参优先，其次使用配置中的 max_output_tokens
	if gen != nil {
		reqBody.GenerationConfig = &generationConfig{Temperature: gen.Temperature, MaxOutputTokens: gen.MaxOutputTokens}
	} else if c.cfg.MaxOutputTokens > 0 {
		m := c.cfg.MaxOutputTokens
		reqBody.GenerationConfig = &generationConfig{MaxOutputTokens: &m}
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call gemini api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini api returned non-200 status: %s, body: %s", resp.Status, string(body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
