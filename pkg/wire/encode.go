package wire

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// EncodePacket serializes a ConversationPacket into the upstream binary
// frame. The packet must carry at least one user input or tool result;
// an empty Input block is rejected so a malformed turn fails locally
// instead of producing an upstream protocol error.
func EncodePacket(p *ConversationPacket) ([]byte, error) {
	if p == nil {
		return nil, &EncodeError{Message: "nil packet"}
	}
	if len(p.Input.UserInputs) == 0 {
		return nil, &EncodeError{Field: "input.user_inputs", Message: "packet carries no turn input"}
	}
	for i, ui := range p.Input.UserInputs {
		if ui.UserQuery == nil && ui.ToolCallResult == nil {
			return nil, &EncodeError{
				Field:   "input.user_inputs",
				Message: fmt.Sprintf("user input %d has no variant set", i),
			}
		}
	}

	var b []byte
	b = appendMessage(b, fPacketTaskContext, encodeTaskContext(&p.TaskContext))
	b = appendMessage(b, fPacketInput, encodeInput(&p.Input))
	b = appendMessage(b, fPacketSettings, encodeSettings(&p.Settings))
	b = appendMessage(b, fPacketMetadata, encodeMetadata(&p.Metadata))
	if p.ToolContext != nil && len(p.ToolContext.Tools) > 0 {
		b = appendMessage(b, fPacketToolContext, encodeToolContext(p.ToolContext))
	}
	return b, nil
}

func encodeTaskContext(tc *TaskContext) []byte {
	var b []byte
	for i := range tc.Tasks {
		b = appendMessage(b, fTaskContextTasks, encodeTask(&tc.Tasks[i]))
	}
	b = appendString(b, fTaskContextActiveID, tc.ActiveTaskID)
	return b
}

func encodeTask(t *Task) []byte {
	var b []byte
	b = appendString(b, fTaskID, t.ID)
	b = appendString(b, fTaskDescription, t.Description)
	switch t.Status {
	case TaskStatusInProgress:
		b = appendMessage(b, fTaskStatus, appendMessage(nil, fStatusInProgress, nil))
	case TaskStatusDone:
		b = appendMessage(b, fTaskStatus, appendMessage(nil, fStatusDone, nil))
	}
	for i := range t.Messages {
		b = appendMessage(b, fTaskMessages, encodeTaskMessage(&t.Messages[i]))
	}
	return b
}

func encodeTaskMessage(m *TaskMessage) []byte {
	var b []byte
	b = appendString(b, fMessageID, m.ID)
	b = appendString(b, fMessageTaskID, m.TaskID)
	switch {
	case m.UserQuery != nil:
		b = appendMessage(b, fMessageUserQuery, encodeUserQuery(m.UserQuery))
	case m.AgentOutput != nil:
		b = appendMessage(b, fMessageAgentOutput, encodeAgentOutput(m.AgentOutput))
	case m.ToolCall != nil:
		b = appendMessage(b, fMessageToolCall, encodeToolCall(m.ToolCall))
	case m.ToolCallResult != nil:
		b = appendMessage(b, fMessageToolCallResult, encodeToolCallResult(m.ToolCallResult))
	}
	return b
}

func encodeUserQuery(q *UserQuery) []byte {
	var b []byte
	b = appendString(b, fUserQueryText, q.Query)
	for _, key := range sortedKeys(q.Attachments) {
		att := q.Attachments[key]
		var entry []byte
		entry = appendString(entry, fMapKey, key)
		entry = appendMessage(entry, fMapValue, appendString(nil, fAttachmentPlainText, att.PlainText))
		b = appendMessage(b, fUserQueryAttachments, entry)
	}
	return b
}

func encodeAgentOutput(o *AgentOutput) []byte {
	return appendString(nil, fAgentOutputText, o.Text)
}

func encodeToolCall(c *ToolCall) []byte {
	var b []byte
	b = appendString(b, fToolCallID, c.CallID)
	if c.Invoke != nil {
		var inv []byte
		inv = appendString(inv, fInvokeName, c.Invoke.Name)
		if len(c.Invoke.Args) > 0 {
			inv = appendBytes(inv, fInvokeArgs, c.Invoke.Args)
		}
		b = appendMessage(b, fToolCallInvoke, inv)
	}
	if len(c.ServerPayload) > 0 {
		b = appendBytes(b, fToolCallServerPayload, c.ServerPayload)
	}
	return b
}

func encodeToolCallResult(r *ToolCallResult) []byte {
	var b []byte
	b = appendString(b, fResultCallID, r.CallID)
	for _, res := range r.Results {
		b = appendMessage(b, fResultEntries, appendString(nil, fResultText, res.Text))
	}
	return b
}

func encodeInput(in *Input) []byte {
	var b []byte
	for i := range in.UserInputs {
		ui := &in.UserInputs[i]
		var entry []byte
		switch {
		case ui.UserQuery != nil:
			entry = appendMessage(entry, fUserInputQuery, encodeUserQuery(ui.UserQuery))
		case ui.ToolCallResult != nil:
			entry = appendMessage(entry, fUserInputToolResult, encodeToolCallResult(ui.ToolCallResult))
		}
		b = appendMessage(b, fInputUserInputs, entry)
	}
	return b
}

func encodeSettings(s *Settings) []byte {
	var b []byte
	var models []byte
	models = appendString(models, fModelsBase, s.Models.Base)
	models = appendString(models, fModelsPlanning, s.Models.Planning)
	models = appendString(models, fModelsCoding, s.Models.Coding)
	b = appendMessage(b, fSettingsModels, models)
	b = appendBool(b, fSettingsRulesEnabled, s.RulesEnabled)
	b = appendBool(b, fSettingsPlanningEnabled, s.PlanningEnabled)
	b = appendBool(b, fSettingsParallelToolCalls, s.SupportsParallelToolCalls)
	if len(s.SupportedTools) > 0 {
		var packed []byte
		for _, v := range s.SupportedTools {
			packed = protowire.AppendVarint(packed, uint64(uint32(v)))
		}
		b = appendBytes(b, fSettingsSupportedTools, packed)
	}
	return b
}

func encodeMetadata(m *Metadata) []byte {
	var b []byte
	b = appendString(b, fMetadataConversationID, m.ConversationID)
	var logging []byte
	logging = appendBool(logging, fLoggingAutodetected, m.Logging.AutodetectedQuery)
	logging = appendString(logging, fLoggingEntrypoint, m.Logging.Entrypoint)
	if len(logging) > 0 {
		b = appendMessage(b, fMetadataLogging, logging)
	}
	return b
}

func encodeToolContext(tc *ToolContext) []byte {
	var b []byte
	for i := range tc.Tools {
		tool := &tc.Tools[i]
		var entry []byte
		entry = appendString(entry, fToolSchemaName, tool.Name)
		entry = appendString(entry, fToolSchemaDescription, tool.Description)
		if len(tool.InputSchema) > 0 {
			entry = appendBytes(entry, fToolSchemaInput, tool.InputSchema)
		}
		b = appendMessage(b, fToolContextTools, entry)
	}
	return b
}

// EncodeEvent serializes an Event. The gateway only decodes events in
// production; encoding exists for the local mock upstream and tests.
func EncodeEvent(ev *Event) ([]byte, error) {
	if ev == nil {
		return nil, &EncodeError{Message: "nil event"}
	}
	var b []byte
	switch {
	case ev.Init != nil:
		var init []byte
		init = appendString(init, fInitConversationID, ev.Init.ConversationID)
		init = appendString(init, fInitTaskID, ev.Init.TaskID)
		b = appendMessage(b, fEventInit, init)
	case ev.ClientActions != nil:
		var actions []byte
		for i := range ev.ClientActions.Actions {
			actions = appendMessage(actions, fActionsList, encodeAction(&ev.ClientActions.Actions[i]))
		}
		b = appendMessage(b, fEventClientActions, actions)
	case ev.Finished != nil:
		var fin []byte
		if ev.Finished.InternalError != nil {
			fin = appendMessage(fin, fFinishedInternalError,
				appendString(nil, fInternalErrorMessage, ev.Finished.InternalError.Message))
		}
		b = appendMessage(b, fEventFinished, fin)
	default:
		return nil, &EncodeError{Message: "event has no variant set"}
	}
	return b, nil
}

func encodeAction(a *Action) []byte {
	var b []byte
	switch {
	case a.AppendContent != nil:
		b = appendMessage(b, fActionAppendContent, encodeMessageUpdate(a.AppendContent))
	case a.UpdateMessage != nil:
		b = appendMessage(b, fActionUpdateMessage, encodeMessageUpdate(a.UpdateMessage))
	case a.AddMessages != nil:
		var add []byte
		add = appendString(add, fAddTaskID, a.AddMessages.TaskID)
		for i := range a.AddMessages.Messages {
			add = appendMessage(add, fAddMessages, encodeTaskMessage(&a.AddMessages.Messages[i]))
		}
		b = appendMessage(b, fActionAddMessages, add)
	case a.CreateTask != nil:
		b = appendMessage(b, fActionCreateTask, appendMessage(nil, fCreateTask, encodeTask(&a.CreateTask.Task)))
	case a.BeginTransaction != nil:
		b = appendMessage(b, fActionBeginTxn, nil)
	case a.RollbackTransaction != nil:
		b = appendMessage(b, fActionRollbackTxn, nil)
	}
	return b
}

func encodeMessageUpdate(u *MessageUpdate) []byte {
	var b []byte
	b = appendString(b, fUpdateTaskID, u.TaskID)
	b = appendMessage(b, fUpdateMessage, encodeTaskMessage(&u.Message))
	return b
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

// sortedKeys gives attachments a deterministic encode order.
func sortedKeys(m map[string]Attachment) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
