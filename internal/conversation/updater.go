package conversation

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/longkey1/gchat/internal/gchat"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/longkey1/gchat/internal/conversation"

// Updater sends prompts to a Streamer and streams the replies into a Store.
type Updater struct {
	store        *Store
	streamer     gchat.Streamer
	logger       *log.Logger
	tracer       trace.Tracer
	singleFlight bool

	wg sync.WaitGroup
}

// Option configures an Updater.
type Option func(*Updater)

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(u *Updater) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithSingleFlight makes Send fail with gchat.ErrBusy while another reply
// is still streaming.
func WithSingleFlight(enabled bool) Option {
	return func(u *Updater) {
		u.singleFlight = enabled
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(u *Updater) {
		if tp != nil {
			u.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewUpdater creates an updater writing into store.
func NewUpdater(store *Store, streamer gchat.Streamer, opts ...Option) *Updater {
	u := &Updater{
		store:    store,
		streamer: streamer,
		logger:   log.New(io.Discard, "", 0),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Store returns the conversation the updater writes to.
func (u *Updater) Store() *Store {
	return u.store
}

// Send appends the user message and an empty assistant placeholder, then
// streams the reply into the placeholder in the background.
//
// A blank prompt appends nothing and returns gchat.ErrEmptyPrompt. Stream
// failures are never returned here; they are recorded on the placeholder
// and exposed through the returned Task. Cancelling ctx or the Task stops
// the stream.
func (u *Updater) Send(ctx context.Context, prompt string) (*Task, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, gchat.ErrEmptyPrompt
	}

	msgs := []gchat.Message{gchat.NewUserMessage(prompt), gchat.NewPlaceholder()}
	var first Handle
	if u.singleFlight {
		var ok bool
		first, ok = u.store.AppendIfIdle(msgs...)
		if !ok {
			return nil, gchat.ErrBusy
		}
	} else {
		first = u.store.Append(msgs...)
	}
	placeholder := first + 1

	streamCtx, cancel := context.WithCancel(ctx)
	task := newTask(uuid.New().String(), placeholder, cancel)

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.run(streamCtx, task, prompt)
	}()

	return task, nil
}

// Wait blocks until every reply started by this updater has finished.
func (u *Updater) Wait() {
	u.wg.Wait()
}

func (u *Updater) run(ctx context.Context, task *Task, prompt string) {
	ctx, span := u.tracer.Start(ctx, "conversation.stream", trace.WithAttributes(
		attribute.String("conversation.id", u.store.ID()),
		attribute.String("task.id", task.ID()),
		attribute.Int("message.handle", int(task.Handle())),
		attribute.Int("prompt.length", len(prompt)),
	))
	defer span.End()

	u.logger.Printf("stream %s: started for message %d", task.ID(), task.Handle())

	chunks := 0
	err := u.stream(ctx, prompt, func(chunk string) {
		if chunk == "" {
			return
		}
		if err := u.store.AppendChunk(task.Handle(), chunk); err != nil {
			u.logger.Printf("stream %s: dropping chunk: %v", task.ID(), err)
			return
		}
		chunks++
	})
	span.SetAttributes(attribute.Int("stream.chunks", chunks))

	state := gchat.StateCompleted
	switch {
	case err == nil:
	case ctx.Err() != nil:
		state = gchat.StateCancelled
		err = ctx.Err()
	default:
		state = gchat.StateFailed
	}

	if state != gchat.StateCompleted {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if ferr := u.store.Finish(task.Handle(), state, err); ferr != nil {
		u.logger.Printf("stream %s: finishing message: %v", task.ID(), ferr)
	}
	u.logger.Printf("stream %s: %s after %d chunks", task.ID(), state, chunks)
	task.finish(state, err)
}

// stream shields the store from a panicking Streamer.
func (u *Updater) stream(ctx context.Context, prompt string, onChunk func(string)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("streamer panicked: %v", r)
		}
	}()
	return u.streamer.Stream(ctx, prompt, onChunk)
}
