// Package gchat provides the core abstractions shared by the chat front end
// and the generation backends.
// This package defines the Streamer interface that every backend
// (gemini, openai, anthropic) implements, plus the message model used by
// the conversation store.
package gchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPrompt is returned when a send is attempted with a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrBusy is returned in single-flight mode while another reply is still streaming.
	ErrBusy = errors.New("another reply is still streaming")
	// ErrFinished is returned when a finished placeholder is written to.
	ErrFinished = errors.New("message is no longer streaming")
	// ErrInvalidHandle is returned for a handle that does not address a message.
	ErrInvalidHandle = errors.New("invalid message handle")
)

// ModelInfo represents information about an available model from a provider.
type ModelInfo struct {
	ID          string // Model identifier (e.g., "gemini-2.0-flash")
	Description string // Human-readable description of the model
	IsDefault   bool   // Whether this is the default model for the provider
}

// Streamer is the boundary to the external text-generation service.
//
// Stream sends prompt as the sole input context and calls onChunk once per
// received text fragment, in arrival order, from the calling goroutine.
// It returns when the stream ends (nil), fails, or ctx is cancelled.
//
// Example usage:
//
//	streamer := gemini.NewProvider(cfg)
//	err := streamer.Stream(ctx, "Hello", func(chunk string) {
//		fmt.Print(chunk)
//	})
type Streamer interface {
	Stream(ctx context.Context, prompt string, onChunk func(chunk string)) error
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// APIError is returned when a provider answers with a non-2xx status.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error (HTTP %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (HTTP %d): %s", e.Provider, e.StatusCode, e.Body)
}

// ParseModelString parses a model string in "provider:model" format.
// Returns (provider, model, error).
//
// Example:
//
//	provider, model, err := ParseModelString("gemini:gemini-2.0-flash")
//	// provider = "gemini", model = "gemini-2.0-flash"
func ParseModelString(modelStr string) (string, string, error) {
	parts := strings.SplitN(modelStr, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid model format: %s (expected format: provider:model, e.g., gemini:gemini-2.0-flash)", modelStr)
	}

	provider := strings.TrimSpace(parts[0])
	model := strings.TrimSpace(parts[1])

	if provider == "" || model == "" {
		return "", "", fmt.Errorf("provider and model cannot be empty")
	}

	return provider, model, nil
}

// FormatModelString formats provider and model into "provider:model" format.
func FormatModelString(provider, model string) string {
	return fmt.Sprintf("%s:%s", provider, model)
}

// StreamerFunc adapts an ordinary function to the Streamer interface.
type StreamerFunc func(ctx context.Context, prompt string, onChunk func(chunk string)) error

// Stream calls f(ctx, prompt, onChunk).
func (f StreamerFunc) Stream(ctx context.Context, prompt string, onChunk func(chunk string)) error {
	return f(ctx, prompt, onChunk)
}
