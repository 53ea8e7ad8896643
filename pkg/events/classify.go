// Package events classifies decoded wire frames and extracts their
// user-visible content. It sits between the raw codec and the OpenAI
// translation layer: the codec says what a frame is structurally, this
// package says what it means for a conversation.
package events

import "heliox-hq/charon/pkg/wire"

// Kind is the semantic category of a decoded frame.
type Kind int

// Frame kinds, in rough order of appearance within a healthy stream.
const (
	KindUnknown Kind = iota
	KindInit
	KindActions
	KindFinished
	KindFinishedError
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindActions:
		return "client_actions"
	case KindFinished:
		return "finished"
	case KindFinishedError:
		return "finished_error"
	default:
		return "unknown"
	}
}

// ActionKind is the semantic category of one action within a batch.
type ActionKind int

// Action kinds.
const (
	ActionUnknown ActionKind = iota
	ActionContentDelta
	ActionMessageUpdate
	ActionToolCall
	ActionToolResult
	ActionAgentMessage
	ActionCreateTask
	ActionTransaction
)

// String returns the action kind name for logging.
func (k ActionKind) String() string {
	switch k {
	case ActionContentDelta:
		return "content_delta"
	case ActionMessageUpdate:
		return "message_update"
	case ActionToolCall:
		return "tool_call"
	case ActionToolResult:
		return "tool_result"
	case ActionAgentMessage:
		return "agent_message"
	case ActionCreateTask:
		return "create_task"
	case ActionTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// Classify reports the semantic kind of a decoded frame.
func Classify(ev *wire.Event) Kind {
	switch {
	case ev == nil || ev.Unknown:
		return KindUnknown
	case ev.Init != nil:
		return KindInit
	case ev.ClientActions != nil:
		return KindActions
	case ev.Finished != nil:
		if ev.Finished.InternalError != nil {
			return KindFinishedError
		}
		return KindFinished
	default:
		return KindUnknown
	}
}

// ClassifyAction reports the semantic kind of one action. Messages added
// whole are distinguished by payload: a tool call, a tool result, or
// plain agent output.
func ClassifyAction(a *wire.Action) ActionKind {
	switch {
	case a == nil:
		return ActionUnknown
	case a.AppendContent != nil:
		return ActionContentDelta
	case a.UpdateMessage != nil:
		return ActionMessageUpdate
	case a.AddMessages != nil:
		for i := range a.AddMessages.Messages {
			m := &a.AddMessages.Messages[i]
			if m.ToolCall != nil {
				return ActionToolCall
			}
			if m.ToolCallResult != nil {
				return ActionToolResult
			}
		}
		return ActionAgentMessage
	case a.CreateTask != nil:
		return ActionCreateTask
	case a.BeginTransaction != nil, a.RollbackTransaction != nil:
		return ActionTransaction
	default:
		return ActionUnknown
	}
}

// FirstToolCall returns the first tool call carried by an action batch,
// or nil if none is present.
func FirstToolCall(ca *wire.ClientActions) *wire.ToolCall {
	if ca == nil {
		return nil
	}
	for i := range ca.Actions {
		add := ca.Actions[i].AddMessages
		if add == nil {
			continue
		}
		for j := range add.Messages {
			if tc := add.Messages[j].ToolCall; tc != nil {
				return tc
			}
		}
	}
	return nil
}
