/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/longkey1/gchat/internal/gchat"
	"github.com/longkey1/gchat/internal/gchat/config"
	promptpkg "github.com/longkey1/gchat/internal/gchat/prompt"
	"github.com/longkey1/gchat/internal/render"
	"github.com/spf13/cobra"
)

var (
	model     string
	prompt    string
	argFlags  []string
	useEditor bool
	webSearch bool
	markdown  bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message and stream the reply",
	Long: `Send a message to the model and print the reply while it streams in.

For interactive multi-turn conversations, use 'gchat start' instead.

If no message is provided as an argument, it reads from stdin.
If --editor flag is set, it opens the default editor (from EDITOR environment variable) to compose the message.
Press Ctrl+C to stop the reply; the text received so far is kept.

The prompt file should be in TOML format with the following structure:
system = "System prompt with optional {{input}} placeholder"
user = "User prompt with optional {{input}} placeholder"
model = "optional-model-name"  # Optional: overrides the default model for this prompt
web_search = true  # Optional: enables web search for this prompt"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// Get message from arguments, editor, or stdin
		var message string
		if useEditor {
			message, err = getMessageFromEditor()
			if err != nil {
				return fmt.Errorf("getting message from editor: %w", err)
			}
		} else if len(args) > 0 {
			message = strings.Join(args, " ")
		} else {
			input, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading from stdin: %w", err)
			}
			message = strings.TrimSpace(string(input))
		}

		message, err = applyChatOptions(cmd, cfg, message)
		if err != nil {
			return err
		}

		ctx, cancel := setupContext()
		defer cancel()

		logger := newLogger()
		updater, shutdown, err := newUpdater(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer shutdown()

		var opts []render.Option
		if cfg.Markdown {
			opts = append(opts, render.WithMarkdown(80))
		}
		unsubscribe := render.New(os.Stdout, opts...).Attach(updater.Store())
		defer unsubscribe()

		task, err := updater.Send(ctx, message)
		if errors.Is(err, gchat.ErrEmptyPrompt) {
			return fmt.Errorf("message is empty")
		}
		if err != nil {
			return err
		}

		if err := task.Wait(context.Background()); err != nil {
			if task.State() == gchat.StateCancelled {
				return fmt.Errorf("chat request cancelled")
			}
			return fmt.Errorf("chat request failed: %w", err)
		}
		return nil
	},
}

// applyChatOptions formats message with the selected prompt template and
// applies model and web search overrides with priority:
// flag > env > prompt template > config file
func applyChatOptions(cmd *cobra.Command, cfg *config.Config, message string) (string, error) {
	if prompt != "" {
		tmpl, err := promptpkg.Find(prompt, cfg.PromptDirs)
		if err != nil {
			return "", fmt.Errorf("loading prompt: %w", err)
		}
		args, err := promptpkg.ParseArgs(argFlags)
		if err != nil {
			return "", fmt.Errorf("parsing prompt arguments: %w", err)
		}
		message = tmpl.Render(message, args)

		if tmpl.Model != nil && os.Getenv("GCHAT_MODEL") == "" {
			cfg.Model = *tmpl.Model
			if verbose {
				fmt.Fprintf(os.Stderr, "Using model from prompt file: %s\n", cfg.Model)
			}
		}
		if tmpl.WebSearch != nil && os.Getenv("GCHAT_ENABLE_WEB_SEARCH") == "" {
			cfg.EnableWebSearch = *tmpl.WebSearch
		}
	}

	if cmd.Flags().Changed("model") {
		if _, _, err := gchat.ParseModelString(model); err != nil {
			return "", fmt.Errorf("invalid model from flag: %w", err)
		}
		cfg.Model = model
	}
	if cmd.Flags().Changed("web-search") {
		cfg.EnableWebSearch = webSearch
	}
	if cmd.Flags().Changed("markdown") {
		cfg.Markdown = markdown
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Model: %s\n", cfg.Model)
	}
	return message, nil
}

// getMessageFromEditor opens the default editor and returns the edited message
func getMessageFromEditor() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	// Create a temporary file
	tmpFile, err := os.CreateTemp("", "gchat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %w", err)
	}

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

// addChatFlags registers the flags shared by chat and start
func addChatFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (format: provider:model, e.g., gemini:gemini-2.0-flash)")
	cmd.Flags().BoolVar(&webSearch, "web-search", false, "Enable Google Search grounding for real-time information")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render finished replies as markdown")
}

func init() {
	rootCmd.AddCommand(chatCmd)

	addChatFlags(chatCmd)
	chatCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Name of the prompt template (without .toml extension)")
	chatCmd.Flags().StringArrayVar(&argFlags, "arg", []string{}, "Key-value pairs for prompt template (format: key:value)")
	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")
}
