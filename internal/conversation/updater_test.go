package conversation

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/longkey1/gchat/internal/gchat"
	"github.com/longkey1/gchat/internal/gchat/gchattest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitTask(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-task.Done():
		return task.Err()
	case <-ctx.Done():
		t.Fatal("task did not finish in time")
		return nil
	}
}

func TestUpdater_SendAppendsUserAndPlaceholder(t *testing.T) {
	streamer := &gchattest.Streamer{Chunks: []string{"x"}, Gate: make(chan struct{})}
	store := NewStore()
	u := NewUpdater(store, streamer)

	task, err := u.Send(context.Background(), "Hi")
	require.NoError(t, err)

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, gchat.RoleUser, snap[0].Role)
	assert.Equal(t, "Hi", snap[0].Text)
	assert.Equal(t, gchat.StateDone, snap[0].State)
	assert.Equal(t, gchat.RoleAssistant, snap[1].Role)
	assert.Equal(t, "", snap[1].Text)
	assert.Equal(t, gchat.StateStreaming, snap[1].State)
	assert.Equal(t, Handle(1), task.Handle())
	assert.Equal(t, gchat.StateStreaming, task.State())
	assert.NotEmpty(t, task.ID())

	task.Cancel()
	assert.ErrorIs(t, waitTask(t, task), context.Canceled)
}

func TestUpdater_StreamsChunksIntoPlaceholder(t *testing.T) {
	streamer := &gchattest.Streamer{Chunks: []string{"He", "llo!"}}
	store := NewStore()
	u := NewUpdater(store, streamer)

	task, err := u.Send(context.Background(), "Hi")
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "Hi", snap[0].Text)
	assert.Equal(t, gchat.RoleAssistant, snap[1].Role)
	assert.Equal(t, "Hello!", snap[1].Text)
	assert.Equal(t, gchat.StateCompleted, snap[1].State)
	assert.Equal(t, gchat.StateCompleted, task.State())
	assert.Equal(t, []string{"Hi"}, streamer.Prompts())
}

func TestUpdater_ChunkingDoesNotChangeResult(t *testing.T) {
	for _, chunks := range [][]string{{"Hel", "lo"}, {"Hello"}, {"H", "e", "l", "l", "o"}} {
		store := NewStore()
		u := NewUpdater(store, &gchattest.Streamer{Chunks: chunks})

		task, err := u.Send(context.Background(), "greet")
		require.NoError(t, err)
		require.NoError(t, waitTask(t, task))

		msg, _ := store.Get(task.Handle())
		assert.Equal(t, "Hello", msg.Text, "chunks %q", chunks)
	}
}

func TestUpdater_BlankPromptIsNoop(t *testing.T) {
	streamer := &gchattest.Streamer{Chunks: []string{"never"}}
	store := NewStore()
	u := NewUpdater(store, streamer)

	for _, prompt := range []string{"", "   ", "\n\t"} {
		task, err := u.Send(context.Background(), prompt)
		assert.ErrorIs(t, err, gchat.ErrEmptyPrompt)
		assert.Nil(t, task)
	}
	u.Wait()
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, streamer.Prompts())
}

func TestUpdater_FailureKeepsReceivedText(t *testing.T) {
	boom := errors.New("connection reset")
	store := NewStore()
	u := NewUpdater(store, &gchattest.Streamer{Chunks: []string{"Par"}, Err: boom})

	task, err := u.Send(context.Background(), "Hi")
	require.NoError(t, err, "stream failures are not returned by Send")

	assert.ErrorIs(t, waitTask(t, task), boom)
	msg, _ := store.Get(task.Handle())
	assert.Equal(t, "Par", msg.Text)
	assert.Equal(t, gchat.StateFailed, msg.State)
	assert.Equal(t, "connection reset", msg.Err)
	assert.Equal(t, gchat.StateFailed, task.State())
}

func TestUpdater_StreamerPanicBecomesFailure(t *testing.T) {
	store := NewStore()
	u := NewUpdater(store, gchat.StreamerFunc(func(ctx context.Context, prompt string, onChunk func(string)) error {
		onChunk("Par")
		panic("bad decoder")
	}))

	task, err := u.Send(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Error(t, waitTask(t, task))

	msg, _ := store.Get(task.Handle())
	assert.Equal(t, "Par", msg.Text)
	assert.Equal(t, gchat.StateFailed, msg.State)
	assert.Contains(t, msg.Err, "bad decoder")
}

func TestUpdater_Cancel(t *testing.T) {
	store := NewStore()
	u := NewUpdater(store, &gchattest.Streamer{Chunks: []string{"partial"}, Hold: true})

	updated := make(chan struct{})
	var once sync.Once
	unsubscribe := store.Subscribe(func(ev Event) {
		if ev.Type == EventUpdated {
			once.Do(func() { close(updated) })
		}
	})
	defer unsubscribe()

	task, err := u.Send(context.Background(), "Hi")
	require.NoError(t, err)
	<-updated
	task.Cancel()

	assert.ErrorIs(t, waitTask(t, task), context.Canceled)
	msg, _ := store.Get(task.Handle())
	assert.Equal(t, "partial", msg.Text)
	assert.Equal(t, gchat.StateCancelled, msg.State)

	task.Cancel()
	assert.Equal(t, gchat.StateCancelled, task.State())
}

func TestUpdater_ParentContextCancels(t *testing.T) {
	store := NewStore()
	u := NewUpdater(store, &gchattest.Streamer{Hold: true})

	ctx, cancel := context.WithCancel(context.Background())
	task, err := u.Send(ctx, "Hi")
	require.NoError(t, err)
	cancel()

	assert.ErrorIs(t, waitTask(t, task), context.Canceled)
	assert.Equal(t, gchat.StateCancelled, task.State())
}

func TestUpdater_ConcurrentStreamsWriteOwnPlaceholders(t *testing.T) {
	gate := make(chan struct{})
	streamer := gchat.StreamerFunc(func(ctx context.Context, prompt string, onChunk func(string)) error {
		for _, suffix := range []string{"1", "2", "3"} {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
			onChunk(prompt + suffix)
		}
		return nil
	})
	store := NewStore()
	u := NewUpdater(store, streamer)

	a, err := u.Send(context.Background(), "a")
	require.NoError(t, err)
	b, err := u.Send(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Pending())

	for i := 0; i < 6; i++ {
		gate <- struct{}{}
	}
	require.NoError(t, waitTask(t, a))
	require.NoError(t, waitTask(t, b))
	u.Wait()

	msgA, _ := store.Get(a.Handle())
	msgB, _ := store.Get(b.Handle())
	assert.Equal(t, "a1a2a3", msgA.Text)
	assert.Equal(t, "b1b2b3", msgB.Text)

	snap := store.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, "a", snap[0].Text)
	assert.Equal(t, "b", snap[2].Text)
	assert.Equal(t, 0, store.Pending())
}

func TestUpdater_SingleFlight(t *testing.T) {
	store := NewStore()
	u := NewUpdater(store, &gchattest.Streamer{Hold: true}, WithSingleFlight(true))

	first, err := u.Send(context.Background(), "one")
	require.NoError(t, err)

	_, err = u.Send(context.Background(), "two")
	assert.ErrorIs(t, err, gchat.ErrBusy)
	assert.Equal(t, 2, store.Len())

	first.Cancel()
	waitTask(t, first)

	second, err := u.Send(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, Handle(3), second.Handle())
	second.Cancel()
	waitTask(t, second)
}

func TestUpdater_ObserversSeeEveryChunk(t *testing.T) {
	store := NewStore()
	u := NewUpdater(store, &gchattest.Streamer{Chunks: []string{"He", "llo!"}})

	var mu sync.Mutex
	var types []EventType
	var texts []string
	unsubscribe := store.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, ev.Type)
		if ev.Type == EventUpdated {
			texts = append(texts, ev.Message.Text)
		}
	})
	defer unsubscribe()

	task, err := u.Send(context.Background(), "Hi")
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventAppended, EventAppended, EventUpdated, EventUpdated, EventFinished}, types)
	assert.Equal(t, []string{"He", "Hello!"}, texts)
}

func TestUpdater_LogsStreamLifecycle(t *testing.T) {
	var buf bytes.Buffer
	store := NewStore()
	u := NewUpdater(store, &gchattest.Streamer{Chunks: []string{"ok"}}, WithLogger(log.New(&buf, "", 0)))

	task, err := u.Send(context.Background(), "Hi")
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))
	u.Wait()

	assert.Contains(t, buf.String(), "started for message 1")
	assert.Contains(t, buf.String(), "completed after 1 chunks")
	assert.Same(t, store, u.Store())
}
