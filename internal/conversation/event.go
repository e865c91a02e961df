package conversation

import "github.com/longkey1/gchat/internal/gchat"

// EventType identifies the kind of store mutation.
type EventType string

const (
	EventAppended EventType = "message.appended"
	EventUpdated  EventType = "message.updated"
	EventFinished EventType = "message.finished"
)

// Event describes one store mutation. Message is a copy of the affected
// entry taken right after the mutation; Delta carries the applied chunk for
// EventUpdated.
type Event struct {
	Type    EventType
	Handle  Handle
	Message gchat.Message
	Delta   string
}

// Handler receives store events. Handlers run synchronously on the mutating
// goroutine, in mutation order, and must not call Store mutators.
type Handler func(Event)
