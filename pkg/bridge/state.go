package bridge

import "heliox-hq/charon/pkg/wire"

// State carries the server-assigned identifiers that must be echoed on
// the next turn of a conversation. It is an explicit value owned by one
// exchange; nothing here is process-global, so concurrent exchanges can
// never observe each other's identifiers.
type State struct {
	// ConversationID is assigned by the first init frame
	ConversationID string

	// TaskID is the active task, from init or the latest create-task
	TaskID string
}

// Observe updates the state from one decoded event.
func (s *State) Observe(ev *wire.Event) {
	if ev == nil {
		return
	}
	if ev.Init != nil {
		if ev.Init.ConversationID != "" {
			s.ConversationID = ev.Init.ConversationID
		}
		if ev.Init.TaskID != "" {
			s.TaskID = ev.Init.TaskID
		}
	}
	if ev.ClientActions == nil {
		return
	}
	for _, a := range ev.ClientActions.Actions {
		if a.CreateTask != nil && a.CreateTask.Task.ID != "" {
			s.TaskID = a.CreateTask.Task.ID
		}
	}
}
