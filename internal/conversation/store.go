// Package conversation holds the in-memory conversation and the streaming
// updater that fills assistant replies chunk by chunk.
//
// A Store is an ordered, append-only sequence of messages. The only in-place
// mutation allowed is appending text to an assistant placeholder that is
// still streaming, addressed by the Handle captured when it was appended.
// Observers subscribe to the store and receive an Event for every append,
// text update and termination, in the order the mutations happened.
//
// Example usage:
//
//	store := conversation.NewStore()
//	unsubscribe := store.Subscribe(func(ev conversation.Event) {
//		fmt.Print(ev.Delta)
//	})
//	defer unsubscribe()
//
//	updater := conversation.NewUpdater(store, streamer)
//	task, err := updater.Send(ctx, "Hi")
package conversation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/longkey1/gchat/internal/gchat"
)

// Handle is the stable position of a message in its store.
type Handle int

// Store is a thread-safe, observable conversation.
type Store struct {
	id string

	// writeMu serializes mutation together with notification so that
	// subscribers observe events in mutation order.
	writeMu sync.Mutex

	mu       sync.RWMutex
	messages []gchat.Message

	subMu   sync.RWMutex
	subs    map[int]Handler
	nextSub int
}

// NewStore creates an empty conversation.
func NewStore() *Store {
	return &Store{
		id:       uuid.New().String(),
		messages: make([]gchat.Message, 0),
		subs:     make(map[int]Handler),
	}
}

// ID returns the conversation ID.
func (s *Store) ID() string {
	return s.id
}

// GetShortID returns the shortened conversation ID (first 8 characters).
func (s *Store) GetShortID() string {
	if len(s.id) >= 8 {
		return s.id[:8]
	}
	return s.id
}

// Subscribe registers fn for all future events and returns a function that
// removes it. Existing messages are not replayed; use Snapshot for that.
func (s *Store) Subscribe(fn Handler) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Append adds messages to the end of the conversation and returns the
// handle of the first one. The messages are contiguous.
func (s *Store) Append(msgs ...gchat.Message) Handle {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.appendLocked(msgs)
}

// AppendIfIdle behaves like Append but appends nothing and returns false
// while any placeholder is still streaming.
func (s *Store) AppendIfIdle(msgs ...gchat.Message) (Handle, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.Pending() > 0 {
		return 0, false
	}
	return s.appendLocked(msgs), true
}

func (s *Store) appendLocked(msgs []gchat.Message) Handle {
	s.mu.Lock()
	first := Handle(len(s.messages))
	s.messages = append(s.messages, msgs...)
	s.mu.Unlock()

	for i, msg := range msgs {
		s.publish(Event{Type: EventAppended, Handle: first + Handle(i), Message: msg})
	}
	return first
}

// AppendChunk appends chunk to the text of the streaming placeholder h.
func (s *Store) AppendChunk(h Handle, chunk string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	msg, err := s.streamingLocked(h)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	msg.Text += chunk
	s.messages[h] = msg
	s.mu.Unlock()

	s.publish(Event{Type: EventUpdated, Handle: h, Message: msg, Delta: chunk})
	return nil
}

// Finish moves the streaming placeholder h into a terminal state. cause is
// recorded for StateFailed and StateCancelled. The text is left untouched.
func (s *Store) Finish(h Handle, state gchat.State, cause error) error {
	if !state.Terminal() || state == gchat.StateDone {
		return fmt.Errorf("cannot finish message with state %s", state)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	msg, err := s.streamingLocked(h)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	msg.State = state
	if cause != nil && state != gchat.StateCompleted {
		msg.Err = cause.Error()
	}
	s.messages[h] = msg
	s.mu.Unlock()

	s.publish(Event{Type: EventFinished, Handle: h, Message: msg})
	return nil
}

// streamingLocked must be called with mu held.
func (s *Store) streamingLocked(h Handle) (gchat.Message, error) {
	if h < 0 || int(h) >= len(s.messages) {
		return gchat.Message{}, fmt.Errorf("%w: %d", gchat.ErrInvalidHandle, h)
	}
	msg := s.messages[h]
	if msg.Role != gchat.RoleAssistant || msg.State != gchat.StateStreaming {
		return gchat.Message{}, fmt.Errorf("%w: %d (%s)", gchat.ErrFinished, h, msg.State)
	}
	return msg, nil
}

func (s *Store) publish(ev Event) {
	s.subMu.RLock()
	handlers := make([]Handler, 0, len(s.subs))
	for _, fn := range s.subs {
		handlers = append(handlers, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Get returns a copy of the message at h.
func (s *Store) Get(h Handle) (gchat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h < 0 || int(h) >= len(s.messages) {
		return gchat.Message{}, false
	}
	return s.messages[h], true
}

// Last returns a copy of the last message and whether the store is not empty.
func (s *Store) Last() (gchat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return gchat.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot returns a copy of the whole conversation.
func (s *Store) Snapshot() []gchat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gchat.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Pending returns the number of placeholders that are still streaming.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, msg := range s.messages {
		if msg.State == gchat.StateStreaming {
			n++
		}
	}
	return n
}
