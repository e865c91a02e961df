/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/longkey1/gchat/internal/anthropic"
	"github.com/longkey1/gchat/internal/gchat"
	"github.com/longkey1/gchat/internal/gchat/config"
	"github.com/longkey1/gchat/internal/gemini"
	"github.com/longkey1/gchat/internal/openai"
	"github.com/spf13/cobra"
)

var supportedProviders = []string{gemini.ProviderName, openai.ProviderName, anthropic.ProviderName}

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List available models for the specified provider(s)",
	Long: `List all available models for the specified provider.
Fetches the latest model information directly from the provider's API.

Supported providers: gemini, openai, anthropic

If no provider is specified, lists models from all providers.

Example:
  gchat models           # List models from all providers
  gchat models gemini    # List Gemini models`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		providers := supportedProviders
		if len(args) > 0 {
			if !slices.Contains(supportedProviders, args[0]) {
				return fmt.Errorf("unsupported provider '%s'\nSupported providers: %s", args[0], strings.Join(supportedProviders, ", "))
			}
			providers = []string{args[0]}
		}

		ctx, cancel := setupContext()
		defer cancel()

		successCount := 0
		var failures []string
		for _, name := range providers {
			if verbose {
				fmt.Fprintf(os.Stderr, "Listing models for provider: %s\n", name)
			}

			models, err := listModels(ctx, *cfg, name)
			if err != nil {
				failures = append(failures, fmt.Sprintf("Warning: Skipping %s - %v", name, err))
				continue
			}

			if successCount > 0 {
				fmt.Println()
			}
			successCount++
			printModels(os.Stdout, name, models)
		}

		if len(failures) > 0 && successCount > 0 {
			fmt.Println()
		}
		for _, f := range failures {
			fmt.Fprintln(os.Stderr, f)
		}
		return nil
	},
}

// listModels queries one provider. cfg is a copy so the model can be
// pointed at the provider being listed.
func listModels(ctx context.Context, cfg config.Config, name string) ([]gchat.ModelInfo, error) {
	cfg.Model = gchat.FormatModelString(name, "list")
	p, err := newProvider(&cfg, newLogger())
	if err != nil {
		return nil, err
	}

	models, err := p.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no models returned from API")
	}
	return models, nil
}

// printModels writes the model table for one provider
func printModels(w io.Writer, provider string, models []gchat.ModelInfo) {
	fmt.Fprintf(w, "Available models for %s:\n\n", provider)

	// Calculate column widths
	maxModelWidth := 15
	maxModelIDWidth := 15
	for _, model := range models {
		modelName := gchat.FormatModelString(provider, model.ID)
		maxModelWidth = max(maxModelWidth, len(modelName))
		maxModelIDWidth = max(maxModelIDWidth, len(model.ID))
	}

	fmt.Fprintf(w, "%-*s  %-*s  %-10s  %s\n", maxModelWidth, "MODEL", maxModelIDWidth, "MODEL ID", "DEFAULT", "DESCRIPTION")
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		strings.Repeat("-", maxModelWidth),
		strings.Repeat("-", maxModelIDWidth),
		strings.Repeat("-", 10),
		strings.Repeat("-", 50))

	for _, model := range models {
		defaultMark := ""
		if model.IsDefault {
			defaultMark = "Yes"
		}
		fmt.Fprintf(w, "%-*s  %-*s  %-10s  %s\n",
			maxModelWidth,
			gchat.FormatModelString(provider, model.ID),
			maxModelIDWidth,
			model.ID,
			defaultMark,
			model.Description)
	}

	fmt.Fprintf(w, "\nUse a model with: gchat chat --model <model> [message]\n")
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
