// Package gchattest provides scripted Streamer implementations for tests.
package gchattest

import (
	"context"
	"sync"
)

// Streamer replays Chunks and then returns Err.
//
// When Gate is non-nil every chunk waits for a value on Gate, which lets a
// test step through a stream one chunk at a time. When Hold is true the
// stream blocks after the last chunk until its context is cancelled.
type Streamer struct {
	Chunks []string
	Err    error
	Gate   chan struct{}
	Hold   bool

	mu      sync.Mutex
	prompts []string
}

// Stream implements gchat.Streamer.
func (s *Streamer) Stream(ctx context.Context, prompt string, onChunk func(chunk string)) error {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	for _, chunk := range s.Chunks {
		if s.Gate != nil {
			select {
			case <-s.Gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		onChunk(chunk)
	}

	if s.Err != nil {
		return s.Err
	}
	if s.Hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

// Prompts returns the prompts received so far.
func (s *Streamer) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}
