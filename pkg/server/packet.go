package server

import (
	"log/slog"

	"heliox-hq/charon/pkg/server/api"
	"heliox-hq/charon/pkg/wire"

	"github.com/google/uuid"
)

// systemPromptAttachment is the attachment key the upstream resolves
// into the user query.
const systemPromptAttachment = "SYSTEM_PROMPT"

// serverHandshakePayload is the opaque server tool-call payload the
// upstream expects as the first task message (base64 "IgIQAQ==").
var serverHandshakePayload = []byte{0x22, 0x02, 0x10, 0x01}

// supportedToolIDs declares which upstream tool families the gateway
// accepts. Only externally provided tools (id 9) are allowed; the
// built-in terminal tools never reach OpenAI clients.
var supportedToolIDs = []int32{9}

// buildPacket assembles the upstream conversation packet for one turn.
// The last message becomes the turn input; everything before it is
// replayed as task history. System prompts fold into a referenced
// attachment on the active user input.
func buildPacket(req *api.ChatCompletionRequest, model, conversationID, taskID string) *wire.ConversationPacket {
	history := normalizeMessages(req.Messages)
	systemPrompt := systemPromptText(history)

	if taskID == "" {
		taskID = uuid.NewString()
	}

	pkt := &wire.ConversationPacket{
		TaskContext: wire.TaskContext{
			Tasks: []wire.Task{{
				ID:       taskID,
				Status:   wire.TaskStatusInProgress,
				Messages: historyMessages(history, taskID),
			}},
			ActiveTaskID: taskID,
		},
		Input: wire.Input{
			UserInputs: []wire.UserInput{turnInput(history, systemPrompt)},
		},
		Settings: wire.Settings{
			Models: wire.ModelSelection{
				Base:     model,
				Planning: model,
				Coding:   model,
			},
			SupportedTools: supportedToolIDs,
		},
		Metadata: wire.Metadata{
			ConversationID: conversationID,
			Logging: wire.LoggingMetadata{
				Entrypoint:        "USER_INITIATED",
				AutodetectedQuery: true,
			},
		},
	}

	if tc := toolContext(req.Tools); tc != nil {
		pkt.ToolContext = tc
	}

	return pkt
}

// historyMessages maps all but the last conversation message onto task
// messages. The first message is always the server handshake tool call.
func historyMessages(history []api.ChatMessage, taskID string) []wire.TaskMessage {
	msgs := []wire.TaskMessage{{
		ID:     uuid.NewString(),
		TaskID: taskID,
		ToolCall: &wire.ToolCall{
			CallID:        uuid.NewString(),
			ServerPayload: serverHandshakePayload,
		},
	}}

	if len(history) == 0 {
		return msgs
	}

	for _, m := range history[:len(history)-1] {
		switch m.Role {
		case "user":
			msgs = append(msgs, wire.TaskMessage{
				ID:        uuid.NewString(),
				TaskID:    taskID,
				UserQuery: &wire.UserQuery{Query: m.ContentText()},
			})
		case "assistant":
			if text := m.ContentText(); text != "" {
				msgs = append(msgs, wire.TaskMessage{
					ID:          uuid.NewString(),
					TaskID:      taskID,
					AgentOutput: &wire.AgentOutput{Text: text},
				})
			}
			for _, tc := range m.ToolCalls {
				callID := tc.ID
				if callID == "" {
					callID = uuid.NewString()
				}
				msgs = append(msgs, wire.TaskMessage{
					ID:     uuid.NewString(),
					TaskID: taskID,
					ToolCall: &wire.ToolCall{
						CallID: callID,
						Invoke: &wire.InvokeTool{
							Name: tc.Function.Name,
							Args: normalizeArgs(tc.Function.Arguments),
						},
					},
				})
			}
		case "tool":
			if m.ToolCallID == "" {
				continue
			}
			msgs = append(msgs, wire.TaskMessage{
				ID:     uuid.NewString(),
				TaskID: taskID,
				ToolCallResult: &wire.ToolCallResult{
					CallID:  m.ToolCallID,
					Results: []wire.ResultText{{Text: m.ContentText()}},
				},
			})
		}
		// System messages fold into the turn input attachment.
	}

	return msgs
}

// turnInput derives the new turn's input from the last message. A tool
// result continues the pending call; anything else resolves to the most
// recent user query.
func turnInput(history []api.ChatMessage, systemPrompt string) wire.UserInput {
	if len(history) == 0 {
		return wire.UserInput{UserQuery: userQuery("", systemPrompt)}
	}

	last := history[len(history)-1]
	if last.Role == "tool" && last.ToolCallID != "" {
		return wire.UserInput{ToolCallResult: &wire.ToolCallResult{
			CallID:  last.ToolCallID,
			Results: []wire.ResultText{{Text: last.ContentText()}},
		}}
	}
	if last.Role == "user" {
		return wire.UserInput{UserQuery: userQuery(last.ContentText(), systemPrompt)}
	}

	// Fallback: replay the most recent user query.
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return wire.UserInput{UserQuery: userQuery(history[i].ContentText(), systemPrompt)}
		}
	}
	return wire.UserInput{UserQuery: userQuery("", systemPrompt)}
}

func userQuery(query, systemPrompt string) *wire.UserQuery {
	q := &wire.UserQuery{Query: query}
	if systemPrompt != "" {
		q.Attachments = map[string]wire.Attachment{
			systemPromptAttachment: {PlainText: systemPrompt},
		}
	}
	return q
}

// toolContext converts declared functions into upstream tool schemas,
// sanitizing each input schema first.
func toolContext(tools []api.Tool) *wire.ToolContext {
	var schemas []wire.ToolSchema
	for _, t := range tools {
		if t.Type != "function" || t.Function.Name == "" {
			continue
		}

		params := t.Function.Parameters
		if len(params) == 0 {
			params = []byte(`{"type":"object","properties":{}}`)
		}
		clean, changed, err := wire.SanitizeSchema(params)
		if err != nil {
			slog.Warn("dropping tool with unparseable schema", "tool", t.Function.Name, "error", err)
			continue
		}
		if changed {
			slog.Debug("tool schema sanitized", "tool", t.Function.Name)
		}

		schemas = append(schemas, wire.ToolSchema{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: clean,
		})
	}

	if len(schemas) == 0 {
		return nil
	}
	return &wire.ToolContext{Tools: schemas}
}

// normalizeArgs coerces tool-call arguments to a JSON object.
func normalizeArgs(args string) []byte {
	if args == "" {
		return []byte("{}")
	}
	return []byte(args)
}
