package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	apphttp "Agentomics/pkg/http"
)

// Chat API types (OpenAI-compatible).

type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Tools       []Tool        `json:"tools,omitempty"`
	ToolChoice  any           `json:"tool_choice,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type Choice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      ChatMessage `json:"message"`
}

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Usage is not returned by every provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ForceTool builds a tool_choice that requires the named function.
func ForceTool(name string) map[string]any {
	return map[string]any{
		"type":     "function",
		"function": map[string]any{"name": name},
	}
}

// Client talks to any OpenAI-compatible chat completions endpoint
// (Groq, OpenRouter, Ollama, vLLM...).
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *apphttp.Client
	limiter Limiter
}

// Limiter throttles requests per model.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

type Option func(*Client)

// WithLimiter blocks each request until the limiter admits its model.
func WithLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = apphttp.NewClient(apphttp.WithTimeout(c.timeout), apphttp.WithRetry(2, 2*time.Second))
	return c
}

// CreateChatCompletion sends one non-streaming completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.Model); err != nil {
			return nil, fmt.Errorf("chat completion: rate limit: %w", err)
		}
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	var resp ChatCompletionResponse
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:  apphttp.MethodPost,
		URL:     c.baseURL + "/chat/completions",
		Headers: headers,
		Body:    req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return &resp, nil
}
