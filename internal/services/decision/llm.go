package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"Agentomics/internal/domain/models"
	"Agentomics/internal/service/llm"
	applogger "Agentomics/pkg/logger"
)

// ErrNoToolCall is returned when the model answered without calling the result tool.
var ErrNoToolCall = errors.New("model did not report a result")

// ChatClient is the subset of llm.Client the decider needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
}

type LLMOption func(*LLMDecider)

func WithTemperature(t float64) LLMOption {
	return func(d *LLMDecider) { d.temperature = t }
}

func WithMaxTokens(n int) LLMOption {
	return func(d *LLMDecider) { d.maxTokens = n }
}

func WithLogger(l *applogger.Logger) LLMOption {
	return func(d *LLMDecider) {
		if l != nil {
			d.log = l
		}
	}
}

// LLMDecider plays a role by asking a chat model to call the role's result tool.
type LLMDecider struct {
	client      ChatClient
	model       string
	temperature float64
	maxTokens   int
	log         *applogger.Logger
}

func NewLLMDecider(client ChatClient, model string, opts ...LLMOption) *LLMDecider {
	d := &LLMDecider{client: client, model: model, log: applogger.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *LLMDecider) Decide(ctx context.Context, req models.DecisionRequest) (models.Decision, error) {
	p, ok := personas[req.Role]
	if !ok {
		return nil, fmt.Errorf("no persona for role %s", req.Role)
	}

	resp, err := d.client.CreateChatCompletion(ctx, llm.ChatCompletionRequest{
		Model: d.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: p.systemPrompt(req.Role)},
			{Role: "user", Content: req.Instruction},
		},
		Tools:       []llm.Tool{p.toolDef(req.Role)},
		ToolChoice:  llm.ForceTool(p.tool),
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty completion", req.Role)
	}
	if resp.Usage != nil {
		d.log.Debug("completion usage",
			applogger.String("role", req.Role.String()),
			applogger.Int("attempt", req.Attempt),
			applogger.Int("prompt_tokens", resp.Usage.PromptTokens),
			applogger.Int("completion_tokens", resp.Usage.CompletionTokens),
		)
	}

	msg := resp.Choices[0].Message
	args, err := toolArguments(msg, p.tool)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Role, err)
	}
	return ParseResult(req.Role, args)
}

// toolArguments finds the arguments of the named tool call. Models that ignore
// tool calling sometimes print "TOOL: name" followed by the JSON object in the
// content; that form is accepted too.
func toolArguments(msg llm.ChatMessage, tool string) (string, error) {
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == tool {
			return tc.Function.Arguments, nil
		}
	}
	if len(msg.ToolCalls) > 0 {
		return "", fmt.Errorf("%w: unexpected tool %q", ErrNoToolCall, msg.ToolCalls[0].Function.Name)
	}
	content := msg.Content
	if i := strings.Index(content, tool); i >= 0 {
		content = content[i+len(tool):]
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", ErrNoToolCall
	}
	return content[start : end+1], nil
}

// ParseResult decodes tool arguments into the role's result schema. A single
// wrapping object (e.g. {"result_econ_vars": {...}}) is unwrapped.
func ParseResult(role models.Role, args string) (models.Decision, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(args), &raw); err != nil {
		return nil, &models.StructuralDecisionError{Role: role, Err: fmt.Errorf("decode arguments: %w", err)}
	}
	if len(raw) == 1 {
		for k, v := range raw {
			if _, known := models.LookupField(k); !known && len(v) > 0 && v[0] == '{' {
				args = string(v)
				raw = nil
				if err := json.Unmarshal(v, &raw); err != nil {
					return nil, &models.StructuralDecisionError{Role: role, Err: fmt.Errorf("decode arguments: %w", err)}
				}
			}
		}
	}

	owned := make(map[string]bool, 3)
	for _, f := range models.FieldsOf(role) {
		owned[f.ID] = true
	}
	var foreign []string
	for k := range raw {
		if !owned[k] {
			foreign = append(foreign, k)
		}
	}
	if len(foreign) > 0 {
		sort.Strings(foreign)
		return nil, &models.StructuralDecisionError{Role: role, Fields: foreign, Err: errors.New("fields not owned by role")}
	}

	d, err := models.NewDecision(role)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(args), d); err != nil {
		return nil, &models.StructuralDecisionError{Role: role, Err: fmt.Errorf("decode arguments: %w", err)}
	}
	return d, nil
}
