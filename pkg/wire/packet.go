package wire

import "encoding/json"

// ConversationPacket is the request frame sent to the upstream agent
// service. It carries the task graph, the new user input, model settings,
// request metadata, and the declared tool surface.
type ConversationPacket struct {
	TaskContext TaskContext
	Input       Input
	Settings    Settings
	Metadata    Metadata
	ToolContext *ToolContext
}

// TaskContext is the server-side task graph replayed on every turn.
type TaskContext struct {
	Tasks        []Task
	ActiveTaskID string
}

// TaskStatus enumerates the lifecycle states a task can report.
type TaskStatus int

// Task lifecycle states.
const (
	TaskStatusUnspecified TaskStatus = iota
	TaskStatusInProgress
	TaskStatusDone
)

// Task is one unit of work in the conversation's task graph.
type Task struct {
	ID          string
	Description string
	Status      TaskStatus
	Messages    []TaskMessage
}

// TaskMessage is a single message attached to a task. Exactly one of the
// payload pointers is set.
type TaskMessage struct {
	ID     string
	TaskID string

	UserQuery      *UserQuery
	AgentOutput    *AgentOutput
	ToolCall       *ToolCall
	ToolCallResult *ToolCallResult
}

// UserQuery carries end-user input, optionally with inline attachments
// keyed by reference name.
type UserQuery struct {
	Query       string
	Attachments map[string]Attachment
}

// Attachment is referenced content inlined into a user query.
type Attachment struct {
	PlainText string
}

// AgentOutput is assistant-visible text produced by the upstream model.
type AgentOutput struct {
	Text string
}

// ToolCall is a model-initiated tool invocation.
type ToolCall struct {
	CallID string
	Invoke *InvokeTool

	// ServerPayload is opaque bytes the upstream expects echoed back
	// verbatim on the next turn. Never inspected locally.
	ServerPayload []byte
}

// InvokeTool names the tool and carries its JSON arguments.
type InvokeTool struct {
	Name string
	Args json.RawMessage
}

// ToolCallResult returns the output of a locally executed tool.
type ToolCallResult struct {
	CallID  string
	Results []ResultText
}

// ResultText is one text segment of a tool result.
type ResultText struct {
	Text string
}

// Input is the new turn's input block.
type Input struct {
	UserInputs []UserInput
}

// UserInput is one element of the turn input. Exactly one pointer is set.
type UserInput struct {
	UserQuery      *UserQuery
	ToolCallResult *ToolCallResult
}

// Settings selects models and feature toggles for the exchange.
type Settings struct {
	Models                    ModelSelection
	RulesEnabled              bool
	PlanningEnabled           bool
	SupportsParallelToolCalls bool
	SupportedTools            []int32
}

// ModelSelection names the model used for each upstream role.
type ModelSelection struct {
	Base     string
	Planning string
	Coding   string
}

// Metadata identifies the conversation and request provenance.
type Metadata struct {
	ConversationID string
	Logging        LoggingMetadata
}

// LoggingMetadata is provenance the upstream records about the request.
type LoggingMetadata struct {
	Entrypoint        string
	AutodetectedQuery bool
}

// ToolContext declares externally provided tools the model may call.
type ToolContext struct {
	Tools []ToolSchema
}

// ToolSchema is one declared tool. InputSchema is a JSON Schema document;
// callers should sanitize it with SanitizeSchema before encoding.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}
