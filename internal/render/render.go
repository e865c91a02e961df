// Package render prints conversation events to a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/longkey1/gchat/internal/conversation"
	"github.com/longkey1/gchat/internal/gchat"
)

var (
	userLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)

// Renderer writes store events to out. Streaming replies are printed chunk
// by chunk; with markdown enabled the reply is buffered and rendered once it
// finishes.
type Renderer struct {
	out       io.Writer
	labels    bool
	markdown  bool
	wordWrap  int
	assistant string

	mu sync.Mutex
}

// Option configures a Renderer
type Option func(*Renderer)

// WithLabels prefixes each reply with the assistant name. User messages are
// not echoed since the user has just typed them.
func WithLabels(assistant string) Option {
	return func(r *Renderer) {
		r.labels = true
		r.assistant = assistant
	}
}

// WithMarkdown renders completed replies as markdown wrapped at width
func WithMarkdown(width int) Option {
	return func(r *Renderer) {
		r.markdown = true
		r.wordWrap = width
	}
}

// New creates a Renderer writing to out
func New(out io.Writer, opts ...Option) *Renderer {
	r := &Renderer{out: out, assistant: "Gemini", wordWrap: 80}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes the renderer to store and returns the unsubscribe func
func (r *Renderer) Attach(store *conversation.Store) func() {
	return store.Subscribe(r.Handle)
}

// Handle renders a single store event
func (r *Renderer) Handle(ev conversation.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case conversation.EventAppended:
		r.appended(ev.Message)
	case conversation.EventUpdated:
		if !r.markdown {
			fmt.Fprint(r.out, ev.Delta)
		}
	case conversation.EventFinished:
		r.finished(ev.Message)
	}
}

func (r *Renderer) appended(msg gchat.Message) {
	if r.labels && msg.Role == gchat.RoleAssistant {
		fmt.Fprintf(r.out, "%s ", assistantLabel.Render(r.assistant+":"))
	}
}

func (r *Renderer) finished(msg gchat.Message) {
	if r.markdown && msg.Text != "" {
		fmt.Fprint(r.out, Markdown(msg.Text, r.wordWrap))
	}

	switch msg.State {
	case gchat.StateFailed:
		if msg.Text != "" {
			fmt.Fprintln(r.out)
		}
		fmt.Fprint(r.out, errorStyle.Render(ErrorMarker(msg.Err)))
	case gchat.StateCancelled:
		if msg.Text != "" {
			fmt.Fprintln(r.out)
		}
		fmt.Fprint(r.out, dimStyle.Render("[cancelled]"))
	}
	fmt.Fprintln(r.out)
}

// ErrorMarker is the inline marker shown for a failed reply
func ErrorMarker(reason string) string {
	if reason == "" {
		reason = "unknown error"
	}
	return fmt.Sprintf("[error: %s]", reason)
}

// Markdown renders text as terminal markdown. Text is returned unchanged
// when rendering fails.
func Markdown(text string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSuffix(rendered, "\n")
}

// Transcript formats messages the way /history shows them
func Transcript(msgs []gchat.Message, assistant string) string {
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case gchat.RoleUser:
			fmt.Fprintf(&b, "%s %s\n", userLabel.Render("You:"), msg.Text)
		case gchat.RoleAssistant:
			fmt.Fprintf(&b, "%s %s", assistantLabel.Render(assistant+":"), msg.Text)
			switch msg.State {
			case gchat.StateStreaming:
				b.WriteString(dimStyle.Render(" ..."))
			case gchat.StateFailed:
				b.WriteString(" " + errorStyle.Render(ErrorMarker(msg.Err)))
			case gchat.StateCancelled:
				b.WriteString(" " + dimStyle.Render("[cancelled]"))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
