/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/longkey1/gchat/internal/conversation"
	"github.com/longkey1/gchat/internal/gchat"
	"github.com/longkey1/gchat/internal/gchat/config"
	"github.com/longkey1/gchat/internal/render"
	"github.com/spf13/cobra"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start an interactive chat",
	Long: `Start an interactive multi-turn chat in the terminal.

Each line you enter is sent to the model and the reply is streamed below it.
Press Ctrl+C to stop a reply that is still streaming; the text received so far is kept.
Type '/help' for commands, '/exit' or 'Ctrl+D' to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if _, err := applyChatOptions(cmd, cfg, ""); err != nil {
			return err
		}

		logger := newLogger()
		updater, shutdown, err := newUpdater(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
		defer shutdown()

		opts := []render.Option{render.WithLabels(assistantName(cfg))}
		if cfg.Markdown {
			opts = append(opts, render.WithMarkdown(80))
		}
		unsubscribe := render.New(os.Stdout, opts...).Attach(updater.Store())
		defer unsubscribe()

		r := &repl{cfg: cfg, updater: updater, in: os.Stdin, errOut: os.Stderr}
		stop := r.handleInterrupts()
		defer stop()

		return r.run()
	},
}

// repl reads lines from in and sends each one to the updater
type repl struct {
	cfg     *config.Config
	updater *conversation.Updater
	in      io.Reader
	errOut  io.Writer

	mu     sync.Mutex
	active *conversation.Task
}

// handleInterrupts cancels the streaming reply on Ctrl+C instead of exiting
func (r *repl) handleInterrupts() (stop func()) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-interrupt:
				if !r.cancelActive() {
					fmt.Fprintln(r.errOut, "\n(type /exit or press Ctrl+D to quit)")
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(interrupt)
		close(done)
	}
}

func (r *repl) cancelActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return false
	}
	r.active.Cancel()
	return true
}

func (r *repl) setActive(task *conversation.Task) {
	r.mu.Lock()
	r.active = task
	r.mu.Unlock()
}

func (r *repl) run() error {
	store := r.updater.Store()
	fmt.Fprintf(r.errOut, "\n=== Interactive Chat [%s] ===\n", store.GetShortID())
	fmt.Fprintf(r.errOut, "Model: %s\n", r.cfg.Model)
	if r.cfg.SystemPrompt != "" {
		fmt.Fprintf(r.errOut, "System Prompt: %s\n", r.cfg.SystemPrompt)
	}
	fmt.Fprintf(r.errOut, "Type '/help' for commands, '/exit' or 'Ctrl+D' to quit\n")
	fmt.Fprintf(r.errOut, "================================\n\n")

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(r.errOut, "You> ")

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			fmt.Fprintln(r.errOut, "\nGoodbye!")
			return nil
		}

		input := strings.TrimSpace(scanner.Text())

		// Blank input never reaches the conversation
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if r.handleSpecialCommand(input) {
				continue
			}
			return nil
		}

		r.send(input)
	}
}

// send streams one reply and blocks until it is finished
func (r *repl) send(input string) {
	task, err := r.updater.Send(context.Background(), input)
	switch {
	case errors.Is(err, gchat.ErrBusy):
		fmt.Fprintln(r.errOut, "A reply is still streaming; wait for it or press Ctrl+C.")
		return
	case err != nil:
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}

	r.setActive(task)
	defer r.setActive(nil)

	// The renderer already marks failed and cancelled replies inline
	_ = task.Wait(context.Background())
	fmt.Println()
}

// handleSpecialCommand processes special commands in interactive mode
// Returns true to continue the loop, false to exit
func (r *repl) handleSpecialCommand(command string) bool {
	command = strings.ToLower(strings.TrimSpace(command))
	store := r.updater.Store()

	switch command {
	case "/help", "/h":
		fmt.Fprintln(r.errOut, "\nAvailable commands:")
		fmt.Fprintln(r.errOut, "  /help, /h     - Show this help message")
		fmt.Fprintln(r.errOut, "  /info, /i     - Show conversation information")
		fmt.Fprintln(r.errOut, "  /history      - Show the conversation so far")
		fmt.Fprintln(r.errOut, "  /clear, /c    - Clear screen (Unix/Linux only)")
		fmt.Fprintln(r.errOut, "  /exit, /quit  - Exit interactive mode")
		fmt.Fprintln(r.errOut, "  Ctrl+C        - Stop the reply that is streaming")
		fmt.Fprintln(r.errOut, "  Ctrl+D        - Exit interactive mode")
		fmt.Fprintln(r.errOut, "")
		return true

	case "/info", "/i":
		fmt.Fprintln(r.errOut, "\nConversation Information:")
		fmt.Fprintf(r.errOut, "  ID: %s\n", store.GetShortID())
		fmt.Fprintf(r.errOut, "  Full ID: %s\n", store.ID())
		fmt.Fprintf(r.errOut, "  Model: %s\n", r.cfg.Model)
		fmt.Fprintf(r.errOut, "  Messages: %d\n", store.Len())
		fmt.Fprintf(r.errOut, "  Streaming: %d\n", store.Pending())
		fmt.Fprintf(r.errOut, "  Web search: %v\n", r.cfg.EnableWebSearch)
		fmt.Fprintln(r.errOut, "")
		return true

	case "/history":
		fmt.Fprintln(r.errOut, "")
		fmt.Fprint(r.errOut, render.Transcript(store.Snapshot(), assistantName(r.cfg)))
		fmt.Fprintln(r.errOut, "")
		return true

	case "/clear", "/c":
		fmt.Print("\033[H\033[2J")
		return true

	case "/exit", "/quit", "/q":
		fmt.Fprintln(r.errOut, "Goodbye!")
		return false

	default:
		fmt.Fprintf(r.errOut, "Unknown command: %s (type '/help' for available commands)\n", command)
		return true
	}
}

func init() {
	rootCmd.AddCommand(startCmd)

	addChatFlags(startCmd)
}
