package wire

// Event is one decoded frame of the upstream response stream. Exactly one
// of the variant pointers is set; frames with an unknown top-level field
// decode to an Event with Unknown set so callers can skip them without
// aborting the stream.
type Event struct {
	Init          *InitEvent
	ClientActions *ClientActions
	Finished      *FinishedEvent

	// Unknown is true when the frame carried only unrecognized fields.
	Unknown bool
}

// InitEvent opens an exchange and assigns server-side identifiers that
// must be echoed on subsequent turns.
type InitEvent struct {
	ConversationID string
	TaskID         string
}

// ClientActions is a batch of incremental mutations to apply to the
// conversation state, in order.
type ClientActions struct {
	Actions []Action
}

// Action is one mutation within a ClientActions batch. Exactly one of the
// variant pointers is set; unrecognized actions leave all nil.
type Action struct {
	AppendContent       *MessageUpdate
	UpdateMessage       *MessageUpdate
	AddMessages         *AddMessages
	CreateTask          *CreateTask
	BeginTransaction    *Transaction
	RollbackTransaction *Transaction
}

// MessageUpdate carries a message delta or replacement for a task.
type MessageUpdate struct {
	TaskID  string
	Message TaskMessage
}

// AddMessages appends whole messages (tool calls, tool results, agent
// output) to a task.
type AddMessages struct {
	TaskID   string
	Messages []TaskMessage
}

// CreateTask introduces a new task into the graph.
type CreateTask struct {
	Task Task
}

// Transaction marks a transactional boundary. It carries no payload; a
// rollback means previously streamed content for the turn is void.
type Transaction struct{}

// FinishedEvent terminates the stream. A nil InternalError means the
// exchange completed normally.
type FinishedEvent struct {
	InternalError *InternalError
}

// InternalError is an upstream-reported failure inside a finished frame.
type InternalError struct {
	Message string
}
