package translate

import "heliox-hq/charon/pkg/wire"

// Aggregate folds a complete event sequence into one unary completion:
// all content deltas concatenated in order, all tool calls collected,
// finish reason derived the same way the streaming path derives it.
func Aggregate(evs []*wire.Event, model string) *Completion {
	t := New(model)

	var content string
	var tools []ToolCallUnit
	for _, ev := range evs {
		for _, c := range t.Feed(ev) {
			for _, choice := range c.Choices {
				content += choice.Delta.Content
				for _, tc := range choice.Delta.ToolCalls {
					tc.Index = len(tools)
					tools = append(tools, tc)
				}
			}
		}
	}

	reason := FinishStop
	if t.ToolCallsEmitted() {
		reason = FinishToolCalls
	}
	return &Completion{
		ID:      t.ID(),
		Object:  "chat.completion",
		Created: t.created,
		Model:   model,
		Choices: []Choice{{
			Index: 0,
			Message: Message{
				Role:      "assistant",
				Content:   content,
				ToolCalls: tools,
			},
			FinishReason: reason,
		}},
		Usage: &Usage{},
	}
}
