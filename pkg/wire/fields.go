package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for the hand-mapped upstream schema. Encode and decode
// must agree on these; keep every number here rather than inline.
const (
	// ConversationPacket
	fPacketTaskContext protowire.Number = 1
	fPacketInput       protowire.Number = 2
	fPacketSettings    protowire.Number = 3
	fPacketMetadata    protowire.Number = 4
	fPacketToolContext protowire.Number = 5

	// TaskContext
	fTaskContextTasks    protowire.Number = 1
	fTaskContextActiveID protowire.Number = 2

	// Task
	fTaskID          protowire.Number = 1
	fTaskDescription protowire.Number = 2
	fTaskStatus      protowire.Number = 3
	fTaskMessages    protowire.Number = 4

	// Task status (oneof of empty messages)
	fStatusInProgress protowire.Number = 1
	fStatusDone       protowire.Number = 2

	// TaskMessage
	fMessageID             protowire.Number = 1
	fMessageTaskID         protowire.Number = 2
	fMessageUserQuery      protowire.Number = 3
	fMessageAgentOutput    protowire.Number = 4
	fMessageToolCall       protowire.Number = 5
	fMessageToolCallResult protowire.Number = 6

	// UserQuery
	fUserQueryText        protowire.Number = 1
	fUserQueryAttachments protowire.Number = 2

	// Attachment map entry uses protobuf map framing (1=key, 2=value)
	fMapKey   protowire.Number = 1
	fMapValue protowire.Number = 2

	// Attachment
	fAttachmentPlainText protowire.Number = 1

	// AgentOutput
	fAgentOutputText protowire.Number = 1

	// ToolCall
	fToolCallID            protowire.Number = 1
	fToolCallInvoke        protowire.Number = 2
	fToolCallServerPayload protowire.Number = 3

	// InvokeTool
	fInvokeName protowire.Number = 1
	fInvokeArgs protowire.Number = 2

	// ToolCallResult
	fResultCallID  protowire.Number = 1
	fResultEntries protowire.Number = 2

	// ResultText
	fResultText protowire.Number = 1

	// Input
	fInputUserInputs protowire.Number = 1

	// UserInput (oneof)
	fUserInputQuery      protowire.Number = 1
	fUserInputToolResult protowire.Number = 2

	// Settings
	fSettingsModels            protowire.Number = 1
	fSettingsRulesEnabled      protowire.Number = 2
	fSettingsPlanningEnabled   protowire.Number = 3
	fSettingsParallelToolCalls protowire.Number = 4
	fSettingsSupportedTools    protowire.Number = 5

	// ModelSelection
	fModelsBase     protowire.Number = 1
	fModelsPlanning protowire.Number = 2
	fModelsCoding   protowire.Number = 3

	// Metadata
	fMetadataConversationID protowire.Number = 1
	fMetadataLogging        protowire.Number = 2

	// LoggingMetadata
	fLoggingAutodetected protowire.Number = 1
	fLoggingEntrypoint   protowire.Number = 2

	// ToolContext
	fToolContextTools protowire.Number = 1

	// ToolSchema
	fToolSchemaName        protowire.Number = 1
	fToolSchemaDescription protowire.Number = 2
	fToolSchemaInput       protowire.Number = 3

	// Event (top-level oneof)
	fEventInit          protowire.Number = 1
	fEventClientActions protowire.Number = 2
	fEventFinished      protowire.Number = 3

	// InitEvent
	fInitConversationID protowire.Number = 1
	fInitTaskID         protowire.Number = 2

	// ClientActions
	fActionsList protowire.Number = 1

	// Action (oneof)
	fActionAppendContent  protowire.Number = 1
	fActionUpdateMessage  protowire.Number = 2
	fActionAddMessages    protowire.Number = 3
	fActionCreateTask     protowire.Number = 4
	fActionBeginTxn       protowire.Number = 5
	fActionRollbackTxn    protowire.Number = 6

	// MessageUpdate
	fUpdateTaskID  protowire.Number = 1
	fUpdateMessage protowire.Number = 2

	// AddMessages
	fAddTaskID   protowire.Number = 1
	fAddMessages protowire.Number = 2

	// CreateTask
	fCreateTask protowire.Number = 1

	// FinishedEvent
	fFinishedInternalError protowire.Number = 1

	// InternalError
	fInternalErrorMessage protowire.Number = 1

	// Server message data envelope
	fEnvelopeID        protowire.Number = 1
	fEnvelopeTimestamp protowire.Number = 3
	fTimestampSeconds  protowire.Number = 1
	fTimestampNanos    protowire.Number = 2
)
