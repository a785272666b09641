package aichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultResponderTimeout is generous because LLM backends are slow.
	DefaultResponderTimeout = 120 * time.Second
	// DefaultResponderModel is used when the deployment does not pin one.
	DefaultResponderModel = "openai-gpt-oss-120b"

	maxResponderTokens = 1024
)

// HTTPResponder talks to an OpenAI-compatible chat completions endpoint.
type HTTPResponder struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// HTTPResponderConfig holds configuration for the HTTP responder.
type HTTPResponderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewHTTPResponder creates a responder backed by an OpenAI-compatible API.
func NewHTTPResponder(config HTTPResponderConfig) *HTTPResponder {
	if config.Timeout == 0 {
		config.Timeout = DefaultResponderTimeout
	}
	if config.Model == "" {
		config.Model = DefaultResponderModel
	}

	return &HTTPResponder{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type completionChoice struct {
	Index        int               `json:"index"`
	Message      completionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Choices []completionChoice `json:"choices"`
}

// Respond sends the question with a study-assistant system prompt built from
// the asker's context.
func (r *HTTPResponder) Respond(ctx context.Context, userCtx UserContext, question string) (string, error) {
	system := fmt.Sprintf(
		"Sei un assistente di studio per studenti italiani. Stai parlando con %s (%s, livello %d). "+
			"Rispondi in italiano, in modo chiaro e incoraggiante.",
		userCtx.FirstName, userCtx.Role, userCtx.Level)

	payload := completionRequest{
		Model: r.model,
		Messages: []completionMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: question},
		},
		Temperature: 0.7,
		MaxTokens:   maxResponderTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
