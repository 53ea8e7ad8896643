package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChatCompletionRequest is an OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	// Model is the model id the client wants (e.g. "auto").
	Model string `json:"model"`

	// Messages is the conversation history.
	Messages []ChatMessage `json:"messages"`

	// Stream enables server-sent events streaming.
	Stream bool `json:"stream,omitempty"`

	// Tools is the list of functions the model may call.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice is accepted for compatibility; the upstream agent
	// decides tool use on its own.
	ToolChoice any `json:"tool_choice,omitempty"`

	// Temperature, MaxTokens and friends are accepted for
	// compatibility but the upstream protocol has no equivalents.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	User        string   `json:"user,omitempty"`
}

// ChatMessage is one message in the conversation.
type ChatMessage struct {
	// Role is "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is a string or an array of content parts.
	Content any `json:"content"`

	// ToolCalls holds assistant-issued calls.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Tool declares one callable function.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function. Parameters is a
// JSON Schema document.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall is a function call issued by the assistant.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Validate checks required fields.
func (r *ChatCompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "messages must not be empty"}
	}
	for i, m := range r.Messages {
		switch m.Role {
		case "system", "user", "assistant", "tool":
		default:
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: fmt.Sprintf("unknown role %q", m.Role),
			}
		}
	}
	return nil
}

// ValidationError reports an invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ContentText flattens message content to plain text. String content is
// returned as-is; content-part arrays contribute their text parts joined
// by newlines. Image and other media parts are dropped.
func (m *ChatMessage) ContentText() string {
	switch c := m.Content.(type) {
	case nil:
		return ""
	case string:
		return c
	case []any:
		var parts []string
		for _, p := range c {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if pm["type"] != "text" {
				continue
			}
			if text, ok := pm["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprintf("%v", c)
	}
}
