package events

import "heliox-hq/charon/pkg/wire"

// extractor pulls displayable text out of one message shape. Extractors
// are tried in declared order and the first non-empty result wins; adding
// support for a new upstream message shape means appending a function
// here, not threading conditionals through callers.
type extractor func(m *wire.TaskMessage) string

var textExtractors = []extractor{
	agentOutputText,
	toolResultText,
	userQueryText,
}

// Text returns the displayable text of a message, or "" when the message
// carries none (tool calls, markers).
func Text(m *wire.TaskMessage) string {
	if m == nil {
		return ""
	}
	for _, ex := range textExtractors {
		if s := ex(m); s != "" {
			return s
		}
	}
	return ""
}

func agentOutputText(m *wire.TaskMessage) string {
	if m.AgentOutput != nil {
		return m.AgentOutput.Text
	}
	return ""
}

func toolResultText(m *wire.TaskMessage) string {
	if m.ToolCallResult == nil {
		return ""
	}
	var out string
	for _, r := range m.ToolCallResult.Results {
		out += r.Text
	}
	return out
}

func userQueryText(m *wire.TaskMessage) string {
	if m.UserQuery != nil {
		return m.UserQuery.Query
	}
	return ""
}

// DeltaText returns the text carried by a content-delta or whole-message
// action. Transaction markers and tool calls yield "".
func DeltaText(a *wire.Action) string {
	switch {
	case a == nil:
		return ""
	case a.AppendContent != nil:
		return Text(&a.AppendContent.Message)
	case a.UpdateMessage != nil:
		return Text(&a.UpdateMessage.Message)
	case a.AddMessages != nil:
		var out string
		for i := range a.AddMessages.Messages {
			m := &a.AddMessages.Messages[i]
			if m.ToolCall != nil {
				continue
			}
			out += Text(m)
		}
		return out
	default:
		return ""
	}
}
