/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/longkey1/gchat/internal/gchat/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gchat",
	Short: "A streaming chat front end for Gemini",
	Long: `gchat is a command-line chat front end for Google's Gemini API.
Replies are streamed into the conversation as they arrive.
OpenAI and Anthropic models can be selected with the provider:model format.
You can configure the tool using a TOML configuration file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/gchat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// newLogger returns the diagnostics logger, silent unless --verbose is set
func newLogger() *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "gchat: ", log.LstdFlags|log.Lmsgprefix)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A .env file in the working directory may provide API keys
	if err := godotenv.Load(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Loaded .env file")
	}

	// Set environment variable prefix and automatic env
	viper.SetEnvPrefix("GCHAT")
	viper.AutomaticEnv()

	// Determine config directory for user config
	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	userConfigDir := filepath.Join(home, ".config", "gchat")

	// Later directories in the array take precedence over earlier ones
	defaultPromptDirs := []string{
		"/usr/share/gchat/prompts",
		"/usr/local/share/gchat/prompts",
		filepath.Join(userConfigDir, "prompts"),
	}
	defaultConfig := config.NewDefaultConfig(filepath.Join(userConfigDir, "prompts"))

	viper.SetDefault("model", defaultConfig.Model)
	viper.SetDefault("gemini_base_url", defaultConfig.GeminiBaseURL)
	viper.SetDefault("gemini_token", defaultConfig.GeminiToken)
	viper.SetDefault("openai_base_url", defaultConfig.OpenAIBaseURL)
	viper.SetDefault("openai_token", defaultConfig.OpenAIToken)
	viper.SetDefault("anthropic_base_url", defaultConfig.AnthropicBaseURL)
	viper.SetDefault("anthropic_token", defaultConfig.AnthropicToken)
	viper.SetDefault("prompt_dirs", defaultPromptDirs)
	viper.SetDefault("system_prompt", defaultConfig.SystemPrompt)
	viper.SetDefault("enable_web_search", defaultConfig.EnableWebSearch)
	viper.SetDefault("single_flight", defaultConfig.SingleFlight)
	viper.SetDefault("markdown", defaultConfig.Markdown)
	viper.SetDefault("max_retries", defaultConfig.MaxRetries)
	viper.SetDefault("otlp_endpoint", defaultConfig.OTLPEndpoint)

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		// Load system-wide config first (lower priority)
		for _, path := range []string{"/etc/gchat", "/usr/local/etc/gchat"} {
			viper.AddConfigPath(path)
		}
		viper.SetConfigType("toml")
		viper.SetConfigName("config")

		systemConfigLoaded := false
		if err := viper.ReadInConfig(); err == nil {
			systemConfigLoaded = true
			if verbose {
				fmt.Fprintln(os.Stderr, "Loaded system-wide config:", viper.ConfigFileUsed())
			}
		}

		// Load user config (higher priority) - merge with system config
		viper.AddConfigPath(userConfigDir)
		if systemConfigLoaded {
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error merging user config file: %v\n", err)
				}
			} else if verbose {
				fmt.Fprintln(os.Stderr, "Merged user config:", viper.ConfigFileUsed())
			}
		} else if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			}
		}
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		fmt.Fprintln(os.Stderr, "Environment variables:")
		fmt.Fprintln(os.Stderr, "  GCHAT_MODEL:", viper.GetString("model"))
		fmt.Fprintln(os.Stderr, "  GCHAT_GEMINI_BASE_URL:", viper.GetString("gemini_base_url"))
		fmt.Fprintln(os.Stderr, "  GCHAT_PROMPT_DIRS:", viper.GetStringSlice("prompt_dirs"))
		fmt.Fprintln(os.Stderr, "  GCHAT_ENABLE_WEB_SEARCH:", viper.GetBool("enable_web_search"))
		fmt.Fprintln(os.Stderr, "  GCHAT_SINGLE_FLIGHT:", viper.GetBool("single_flight"))
	}
}
