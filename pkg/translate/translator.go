// Package translate maps classified upstream events onto the OpenAI
// chat-completions surface: a role preamble, incremental content and
// tool-call deltas, and a finish chunk. One Translator serves exactly one
// exchange; its completion id is stable across every chunk it emits.
package translate

import (
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"heliox-hq/charon/pkg/events"
	"heliox-hq/charon/pkg/wire"
)

// Translator converts one exchange's event sequence into chunks. Deltas
// are emitted immediately, never buffered across events; initialization
// frames produce no output.
type Translator struct {
	id      string
	created int64
	model   string

	toolEmitted bool
	finished    bool
	logger      *slog.Logger
}

// New creates a translator for one exchange against the given model id.
func New(model string) *Translator {
	return &Translator{
		id:      "chatcmpl-" + uuid.NewString(),
		created: time.Now().Unix(),
		model:   model,
		logger:  slog.Default().With("component", "translate"),
	}
}

// ID returns the completion id shared by every chunk of this exchange.
func (t *Translator) ID() string {
	return t.id
}

// Preamble returns the role chunk that opens every stream.
func (t *Translator) Preamble() Chunk {
	return t.chunk(Delta{Role: "assistant"}, nil)
}

// Feed converts one decoded event into zero or more chunks. Events after
// the terminator are dropped.
func (t *Translator) Feed(ev *wire.Event) []Chunk {
	if t.finished {
		return nil
	}
	switch events.Classify(ev) {
	case events.KindInit, events.KindUnknown:
		return nil

	case events.KindActions:
		var out []Chunk
		for i := range ev.ClientActions.Actions {
			out = append(out, t.translateAction(&ev.ClientActions.Actions[i])...)
		}
		return out

	case events.KindFinished:
		return []Chunk{t.terminal()}

	case events.KindFinishedError:
		// The caller must always see a terminator; the upstream error is
		// recorded but never replaces it.
		t.logger.Warn("upstream reported internal error",
			"completion_id", t.id,
			"error", ev.Finished.InternalError.Message,
		)
		return []Chunk{t.terminal()}
	}
	return nil
}

// Fail emits the in-band ending for a mid-stream failure: a content
// delta naming the failure, then the terminator. Output already streamed
// stays; nothing is retracted.
func (t *Translator) Fail(err error) []Chunk {
	t.logger.Error("exchange failed mid-stream", "completion_id", t.id, "error", err)
	note := t.chunk(Delta{Content: "\n\n[gateway] stream interrupted: " + err.Error()}, nil)
	return []Chunk{note, t.terminal()}
}

// ToolCallsEmitted reports whether any tool-call chunk left this
// translator, which decides the finish reason.
func (t *Translator) ToolCallsEmitted() bool {
	return t.toolEmitted
}

func (t *Translator) translateAction(a *wire.Action) []Chunk {
	switch events.ClassifyAction(a) {
	case events.ActionContentDelta, events.ActionMessageUpdate:
		if text := events.DeltaText(a); text != "" {
			return []Chunk{t.chunk(Delta{Content: text}, nil)}
		}

	case events.ActionToolCall, events.ActionAgentMessage:
		return t.translateMessages(a.AddMessages)
	}
	return nil
}

func (t *Translator) translateMessages(am *wire.AddMessages) []Chunk {
	if am == nil {
		return nil
	}
	var out []Chunk
	for i := range am.Messages {
		m := &am.Messages[i]
		if m.ToolCall != nil && m.ToolCall.Invoke != nil {
			out = append(out, t.toolChunk(m.ToolCall))
			continue
		}
		if text := events.Text(m); text != "" {
			out = append(out, t.chunk(Delta{Content: text}, nil))
		}
	}
	return out
}

func (t *Translator) toolChunk(tc *wire.ToolCall) Chunk {
	id := tc.CallID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	args := string(tc.Invoke.Args)
	if args == "" || !json.Valid([]byte(args)) {
		args = "{}"
	}

	t.toolEmitted = true
	return t.chunk(Delta{ToolCalls: []ToolCallUnit{{
		Index:    0,
		ID:       id,
		Type:     "function",
		Function: FunctionCall{Name: tc.Invoke.Name, Arguments: args},
	}}}, nil)
}

func (t *Translator) terminal() Chunk {
	t.finished = true
	reason := FinishStop
	if t.toolEmitted {
		reason = FinishToolCalls
	}
	return t.chunk(Delta{}, &reason)
}

func (t *Translator) chunk(delta Delta, finish *string) Chunk {
	return Chunk{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []ChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
	}
}
