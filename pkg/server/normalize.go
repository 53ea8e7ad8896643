package server

import (
	"strings"

	"heliox-hq/charon/pkg/server/api"
)

// normalizeMessages prepares the conversation for packet assembly:
// consecutive same-role messages are merged (the upstream protocol
// rejects adjacent messages with the same role) and tool results are
// reordered to directly follow the calls that produced them.
func normalizeMessages(messages []api.ChatMessage) []api.ChatMessage {
	return reorderToolResults(mergeConsecutive(messages))
}

// mergeConsecutive joins adjacent messages with the same role into one.
// Messages carrying tool calls or tool results never merge; their
// identity matters to the upstream task graph.
func mergeConsecutive(messages []api.ChatMessage) []api.ChatMessage {
	if len(messages) == 0 {
		return nil
	}

	merged := make([]api.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if len(merged) == 0 {
			merged = append(merged, m)
			continue
		}

		last := &merged[len(merged)-1]
		mergeable := m.Role == last.Role &&
			(m.Role == "user" || m.Role == "assistant" || m.Role == "system") &&
			len(m.ToolCalls) == 0 && len(last.ToolCalls) == 0

		if !mergeable {
			merged = append(merged, m)
			continue
		}

		joined := strings.TrimSpace(last.ContentText() + "\n" + m.ContentText())
		last.Content = joined
	}

	return merged
}

// reorderToolResults moves each tool-role message so it immediately
// follows the assistant message carrying the matching tool call.
// Results with no matching call keep their relative position.
func reorderToolResults(messages []api.ChatMessage) []api.ChatMessage {
	// Index tool results by the call they answer.
	results := make(map[string]api.ChatMessage)
	for _, m := range messages {
		if m.Role == "tool" && m.ToolCallID != "" {
			results[m.ToolCallID] = m
		}
	}
	if len(results) == 0 {
		return messages
	}

	placed := make(map[string]bool, len(results))
	out := make([]api.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "tool" && m.ToolCallID != "" {
			if placed[m.ToolCallID] {
				continue
			}
			// Keep orphan results in place.
			out = append(out, m)
			placed[m.ToolCallID] = true
			continue
		}

		out = append(out, m)
		if m.Role != "assistant" {
			continue
		}
		for _, tc := range m.ToolCalls {
			if res, ok := results[tc.ID]; ok && !placed[tc.ID] {
				out = append(out, res)
				placed[tc.ID] = true
			}
		}
	}

	return out
}

// systemPromptText joins all system message content, in order. The
// upstream protocol has no system role; the caller folds this into a
// referenced attachment on the active user input.
func systemPromptText(messages []api.ChatMessage) string {
	var chunks []string
	for _, m := range messages {
		if m.Role != "system" {
			continue
		}
		if text := strings.TrimSpace(m.ContentText()); text != "" {
			chunks = append(chunks, text)
		}
	}
	return strings.Join(chunks, "\n\n")
}
