package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heliox-hq/charon/pkg/server/api"
	"heliox-hq/charon/pkg/wire"
)

func chatRequest(messages ...api.ChatMessage) *api.ChatCompletionRequest {
	return &api.ChatCompletionRequest{Model: "agent-large", Messages: messages}
}

func TestBuildPacketHandshakeFirst(t *testing.T) {
	pkt := buildPacket(chatRequest(msg("user", "hi")), "agent-large", "", "")

	require.Len(t, pkt.TaskContext.Tasks, 1)
	task := pkt.TaskContext.Tasks[0]
	assert.Equal(t, task.ID, pkt.TaskContext.ActiveTaskID)
	assert.Equal(t, wire.TaskStatusInProgress, task.Status)

	require.NotEmpty(t, task.Messages)
	first := task.Messages[0]
	require.NotNil(t, first.ToolCall)
	assert.Nil(t, first.ToolCall.Invoke)
	assert.Equal(t, []byte{0x22, 0x02, 0x10, 0x01}, first.ToolCall.ServerPayload)
}

func TestBuildPacketSettingsAndMetadata(t *testing.T) {
	pkt := buildPacket(chatRequest(msg("user", "hi")), "agent-large", "conv-7", "task-7")

	assert.Equal(t, "agent-large", pkt.Settings.Models.Base)
	assert.Equal(t, "agent-large", pkt.Settings.Models.Planning)
	assert.Equal(t, "agent-large", pkt.Settings.Models.Coding)
	assert.Equal(t, []int32{9}, pkt.Settings.SupportedTools)

	assert.Equal(t, "conv-7", pkt.Metadata.ConversationID)
	assert.Equal(t, "USER_INITIATED", pkt.Metadata.Logging.Entrypoint)
	assert.True(t, pkt.Metadata.Logging.AutodetectedQuery)
	assert.Equal(t, "task-7", pkt.TaskContext.ActiveTaskID)
}

func TestBuildPacketHistoryMapping(t *testing.T) {
	call := api.ChatMessage{
		Role:    "assistant",
		Content: "let me check",
		ToolCalls: []api.ToolCall{{
			ID:       "call-1",
			Type:     "function",
			Function: api.FunctionCall{Name: "lookup", Arguments: `{"q":"x"}`},
		}},
	}

	pkt := buildPacket(chatRequest(
		msg("user", "question"),
		call,
		api.ChatMessage{Role: "tool", Content: "42", ToolCallID: "call-1"},
		msg("user", "so?"),
	), "agent-large", "", "")

	msgs := pkt.TaskContext.Tasks[0].Messages
	// handshake, user, assistant text, tool call, tool result; the final
	// user message rides in the input section instead.
	require.Len(t, msgs, 5)

	require.NotNil(t, msgs[1].UserQuery)
	assert.Equal(t, "question", msgs[1].UserQuery.Query)

	require.NotNil(t, msgs[2].AgentOutput)
	assert.Equal(t, "let me check", msgs[2].AgentOutput.Text)

	require.NotNil(t, msgs[3].ToolCall)
	require.NotNil(t, msgs[3].ToolCall.Invoke)
	assert.Equal(t, "call-1", msgs[3].ToolCall.CallID)
	assert.Equal(t, "lookup", msgs[3].ToolCall.Invoke.Name)

	require.NotNil(t, msgs[4].ToolCallResult)
	assert.Equal(t, "call-1", msgs[4].ToolCallResult.CallID)

	require.Len(t, pkt.Input.UserInputs, 1)
	require.NotNil(t, pkt.Input.UserInputs[0].UserQuery)
	assert.Equal(t, "so?", pkt.Input.UserInputs[0].UserQuery.Query)
}

func TestBuildPacketSystemPromptAttachment(t *testing.T) {
	pkt := buildPacket(chatRequest(
		msg("system", "be brief"),
		msg("user", "hi"),
	), "agent-large", "", "")

	// System messages never appear as task messages.
	for _, m := range pkt.TaskContext.Tasks[0].Messages {
		if m.UserQuery != nil {
			assert.NotEqual(t, "be brief", m.UserQuery.Query)
		}
	}

	q := pkt.Input.UserInputs[0].UserQuery
	require.NotNil(t, q)
	assert.Equal(t, "hi", q.Query)
	require.Contains(t, q.Attachments, "SYSTEM_PROMPT")
	assert.Equal(t, "be brief", q.Attachments["SYSTEM_PROMPT"].PlainText)
}

func TestBuildPacketToolResultTurn(t *testing.T) {
	call := api.ChatMessage{
		Role: "assistant",
		ToolCalls: []api.ToolCall{{
			ID:       "call-2",
			Type:     "function",
			Function: api.FunctionCall{Name: "lookup", Arguments: "{}"},
		}},
	}

	pkt := buildPacket(chatRequest(
		msg("user", "question"),
		call,
		api.ChatMessage{Role: "tool", Content: "done", ToolCallID: "call-2"},
	), "agent-large", "", "")

	in := pkt.Input.UserInputs[0]
	require.NotNil(t, in.ToolCallResult)
	assert.Equal(t, "call-2", in.ToolCallResult.CallID)
	require.Len(t, in.ToolCallResult.Results, 1)
	assert.Equal(t, "done", in.ToolCallResult.Results[0].Text)
}

func TestToolContextSanitizesSchemas(t *testing.T) {
	tools := []api.Tool{
		{Type: "function", Function: api.FunctionDefinition{
			Name:       "bare",
			Parameters: nil,
		}},
		{Type: "function", Function: api.FunctionDefinition{
			Name:       "strict",
			Parameters: []byte(`{"type":"object","properties":{"q":{"type":"string","format":"email"}}}`),
		}},
		{Type: "retrieval", Function: api.FunctionDefinition{Name: "skipped"}},
		{Type: "function", Function: api.FunctionDefinition{
			Name:       "broken",
			Parameters: []byte(`{not json`),
		}},
	}

	tc := toolContext(tools)
	require.NotNil(t, tc)
	require.Len(t, tc.Tools, 2)

	assert.Equal(t, "bare", tc.Tools[0].Name)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(tc.Tools[0].InputSchema))

	// Unsupported keywords are stripped by the sanitizer.
	assert.Equal(t, "strict", tc.Tools[1].Name)
	assert.NotContains(t, string(tc.Tools[1].InputSchema), "format")
}

func TestToolContextEmpty(t *testing.T) {
	assert.Nil(t, toolContext(nil))
	assert.Nil(t, toolContext([]api.Tool{{Type: "retrieval"}}))
}

func TestNormalizeArgs(t *testing.T) {
	assert.Equal(t, []byte("{}"), normalizeArgs(""))
	assert.Equal(t, []byte(`{"a":1}`), normalizeArgs(`{"a":1}`))
}
