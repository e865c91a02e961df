/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/longkey1/gchat/internal/gchat/config"
	promptpkg "github.com/longkey1/gchat/internal/gchat/prompt"
	"github.com/spf13/cobra"
)

var withDir bool

// promptCmd represents the prompt command
var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "List available prompt templates",
	Long: `List all available prompt templates from the configured prompt directories.
This command recursively scans all prompt directories specified in the configuration and displays
the names of available .toml prompt files, including those in subdirectories.

The prompt files should be in TOML format with the following structure:
system = "System prompt with optional {{input}} placeholder"
user = "User prompt with optional {{input}} placeholder"

Prompt names are displayed as relative paths from the prompt directory root.
For example, a file at ${prompt_dir}/foo/bar.toml will be displayed as "foo/bar".

If you want to see which directory each prompt comes from, use the --with-dir option.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if verbose {
			fmt.Fprintf(os.Stderr, "Prompt directories: %v\n", cfg.PromptDirs)
		}

		entries, err := promptpkg.List(cfg.PromptDirs)
		if err != nil {
			return fmt.Errorf("listing prompts: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No prompt templates found.")
			fmt.Println("Create .toml files in the following directories:")
			for _, promptDir := range cfg.PromptDirs {
				fmt.Printf("  - %s\n", promptDir)
			}
			return nil
		}

		fmt.Printf("Available prompt templates (%d found):\n\n", len(entries))
		for _, entry := range entries {
			if withDir {
				fmt.Printf("  %s (from %s)\n", entry.Name, entry.Dir)
			} else {
				fmt.Printf("  %s\n", entry.Name)
			}
		}

		fmt.Printf("\nUse a prompt template with: gchat chat --prompt <name> [message]\n")
		fmt.Printf("Example: gchat chat --prompt foo/bar [message]\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().BoolVar(&withDir, "with-dir", false, "Show the directory each prompt was found in")
}
