package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestEventRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		event *Event
	}{
		{
			name: "init",
			event: &Event{Init: &InitEvent{
				ConversationID: "conv-123",
				TaskID:         "task-456",
			}},
		},
		{
			name: "append content",
			event: &Event{ClientActions: &ClientActions{Actions: []Action{
				{AppendContent: &MessageUpdate{
					TaskID:  "task-1",
					Message: TaskMessage{ID: "m1", AgentOutput: &AgentOutput{Text: "hello"}},
				}},
			}}},
		},
		{
			name: "tool call",
			event: &Event{ClientActions: &ClientActions{Actions: []Action{
				{AddMessages: &AddMessages{
					TaskID: "task-1",
					Messages: []TaskMessage{{
						ID: "m2",
						ToolCall: &ToolCall{
							CallID:        "call-9",
							Invoke:        &InvokeTool{Name: "read_file", Args: json.RawMessage(`{"path":"/tmp/x"}`)},
							ServerPayload: []byte{0x01, 0x02},
						},
					}},
				}},
			}}},
		},
		{
			name: "transaction markers",
			event: &Event{ClientActions: &ClientActions{Actions: []Action{
				{BeginTransaction: &Transaction{}},
				{RollbackTransaction: &Transaction{}},
			}}},
		},
		{
			name:  "finished clean",
			event: &Event{Finished: &FinishedEvent{}},
		},
		{
			name: "finished with error",
			event: &Event{Finished: &FinishedEvent{
				InternalError: &InternalError{Message: "model overloaded"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent() error = %v", err)
			}

			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}
			if got.Unknown {
				t.Fatal("DecodeEvent() marked a known event as unknown")
			}

			switch {
			case tt.event.Init != nil:
				if got.Init == nil || *got.Init != *tt.event.Init {
					t.Errorf("init = %+v, want %+v", got.Init, tt.event.Init)
				}
			case tt.event.ClientActions != nil:
				if got.ClientActions == nil {
					t.Fatal("client actions missing after round trip")
				}
				if len(got.ClientActions.Actions) != len(tt.event.ClientActions.Actions) {
					t.Fatalf("actions = %d, want %d",
						len(got.ClientActions.Actions), len(tt.event.ClientActions.Actions))
				}
			case tt.event.Finished != nil:
				if got.Finished == nil {
					t.Fatal("finished event missing after round trip")
				}
				wantErr := tt.event.Finished.InternalError
				gotErr := got.Finished.InternalError
				if (wantErr == nil) != (gotErr == nil) {
					t.Fatalf("internal error presence = %v, want %v", gotErr != nil, wantErr != nil)
				}
				if wantErr != nil && gotErr.Message != wantErr.Message {
					t.Errorf("internal error = %q, want %q", gotErr.Message, wantErr.Message)
				}
			}
		})
	}
}

func TestEventRoundTripToolCallDetails(t *testing.T) {
	ev := &Event{ClientActions: &ClientActions{Actions: []Action{
		{AddMessages: &AddMessages{
			TaskID: "t",
			Messages: []TaskMessage{{
				ID:       "m",
				ToolCall: &ToolCall{CallID: "c1", Invoke: &InvokeTool{Name: "grep", Args: json.RawMessage(`{"q":"x"}`)}},
			}},
		}},
	}}}

	data, err := EncodeEvent(ev)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	tc := got.ClientActions.Actions[0].AddMessages.Messages[0].ToolCall
	if tc == nil {
		t.Fatal("tool call missing")
	}
	if tc.CallID != "c1" || tc.Invoke == nil || tc.Invoke.Name != "grep" {
		t.Errorf("tool call = %+v", tc)
	}
	if string(tc.Invoke.Args) != `{"q":"x"}` {
		t.Errorf("args = %s", tc.Invoke.Args)
	}
}

func TestDecodeEventUnknownField(t *testing.T) {
	// A frame carrying only an unrecognized top-level field must decode as
	// Unknown, not fail.
	var frame []byte
	frame = protowire.AppendTag(frame, 99, protowire.BytesType)
	frame = protowire.AppendBytes(frame, []byte("future frame kind"))

	ev, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if !ev.Unknown {
		t.Error("expected unknown event")
	}
}

func TestDecodeEventTruncated(t *testing.T) {
	data, err := EncodeEvent(&Event{Init: &InitEvent{ConversationID: "conv"}})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	_, err = DecodeEvent(data[:len(data)-2])
	if err == nil {
		t.Fatal("expected error for truncated frame")
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
}

func TestEncodePacketRejectsEmptyInput(t *testing.T) {
	_, err := EncodePacket(&ConversationPacket{})
	if err == nil {
		t.Fatal("expected error for packet without input")
	}
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error type = %T, want *EncodeError", err)
	}
}

func TestEncodePacketWithTaskGraph(t *testing.T) {
	pkt := &ConversationPacket{
		TaskContext: TaskContext{
			Tasks: []Task{{
				ID:     "task-1",
				Status: TaskStatusInProgress,
				Messages: []TaskMessage{
					{ID: "m1", UserQuery: &UserQuery{Query: "first question"}},
					{ID: "m2", AgentOutput: &AgentOutput{Text: "first answer"}},
				},
			}},
			ActiveTaskID: "task-1",
		},
		Input: Input{UserInputs: []UserInput{
			{UserQuery: &UserQuery{
				Query:       "follow up",
				Attachments: map[string]Attachment{"notes.txt": {PlainText: "attached"}},
			}},
		}},
		Settings: Settings{
			Models:          ModelSelection{Base: "auto"},
			RulesEnabled:    true,
			PlanningEnabled: true,
			SupportedTools:  []int32{1, 4, 9},
		},
		Metadata: Metadata{ConversationID: "conv-1"},
		ToolContext: &ToolContext{Tools: []ToolSchema{
			{Name: "search", Description: "search things", InputSchema: json.RawMessage(`{"type":"object"}`)},
		}},
	}

	data, err := EncodePacket(pkt)
	if err != nil {
		t.Fatalf("EncodePacket() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty frame")
	}

	// The frame must parse as well-formed wire data.
	if err := walkFields(data, func(protowire.Number, []byte) error { return nil }); err != nil {
		t.Fatalf("frame not well-formed: %v", err)
	}
}
