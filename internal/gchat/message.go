package gchat

import "time"

// Role identifies who authored a message.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// State tracks the lifecycle of a message. Only assistant placeholders ever
// leave StateDone.
type State int

const (
	StateDone State = iota
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further text may be applied.
func (s State) Terminal() bool {
	return s != StateStreaming
}

// Message is a single entry of a conversation.
type Message struct {
	Role      Role
	Text      string
	State     State
	Err       string // set when State is StateFailed
	CreatedAt time.Time
}

// NewUserMessage returns a finished user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text, State: StateDone, CreatedAt: time.Now()}
}

// NewPlaceholder returns an empty assistant message that is still streaming.
func NewPlaceholder() Message {
	return Message{Role: RoleAssistant, State: StateStreaming, CreatedAt: time.Now()}
}
