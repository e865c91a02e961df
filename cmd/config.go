package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/longkey1/gchat/internal/gchat/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFields = "configfile, model, gemini_base_url, gemini_token, openai_base_url, openai_token, anthropic_base_url, anthropic_token, promptdirs, systemprompt, websearch, singleflight, markdown, maxretries, otlpendpoint"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  gchat config                   # Show all configuration
  gchat config model             # Show only model
  gchat config gemini_token      # Show only Gemini token (masked)
  gchat config singleflight      # Show only single-flight setting`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if len(args) > 0 {
			value, ok := configField(cfg, args[0])
			if !ok {
				return fmt.Errorf("unknown field: %s\nAvailable fields: %s", args[0], configFields)
			}
			fmt.Println(value)
			return nil
		}

		printConfig(os.Stdout, cfg)
		return nil
	},
}

// configField returns the display value of a single field
func configField(cfg *config.Config, field string) (string, bool) {
	switch strings.ToLower(field) {
	case "configfile":
		return viper.ConfigFileUsed(), true
	case "model":
		return cfg.Model, true
	case "gemini_base_url", "geminibaseurl":
		return cfg.GeminiBaseURL, true
	case "gemini_token", "geminitoken":
		return maskToken(cfg.GeminiToken), true
	case "openai_base_url", "openaibaseurl":
		return cfg.OpenAIBaseURL, true
	case "openai_token", "openaitoken":
		return maskToken(cfg.OpenAIToken), true
	case "anthropic_base_url", "anthropicbaseurl":
		return cfg.AnthropicBaseURL, true
	case "anthropic_token", "anthropictoken":
		return maskToken(cfg.AnthropicToken), true
	case "promptdirs":
		// PromptDirs are already absolute paths
		return strings.Join(cfg.PromptDirs, ","), true
	case "systemprompt":
		return cfg.SystemPrompt, true
	case "websearch":
		return fmt.Sprint(cfg.EnableWebSearch), true
	case "singleflight":
		return fmt.Sprint(cfg.SingleFlight), true
	case "markdown":
		return fmt.Sprint(cfg.Markdown), true
	case "maxretries":
		return fmt.Sprint(cfg.MaxRetries), true
	case "otlpendpoint":
		return cfg.OTLPEndpoint, true
	default:
		return "", false
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "ConfigFile: %s\n", viper.ConfigFileUsed())
	fmt.Fprintf(w, "Model: %s\n", cfg.Model)
	fmt.Fprintf(w, "GeminiBaseURL: %s\n", cfg.GeminiBaseURL)
	fmt.Fprintf(w, "GeminiToken: %s\n", maskToken(cfg.GeminiToken))
	fmt.Fprintf(w, "OpenAIBaseURL: %s\n", cfg.OpenAIBaseURL)
	fmt.Fprintf(w, "OpenAIToken: %s\n", maskToken(cfg.OpenAIToken))
	fmt.Fprintf(w, "AnthropicBaseURL: %s\n", cfg.AnthropicBaseURL)
	fmt.Fprintf(w, "AnthropicToken: %s\n", maskToken(cfg.AnthropicToken))
	fmt.Fprintf(w, "PromptDirectories: %s\n", strings.Join(cfg.PromptDirs, ","))
	fmt.Fprintf(w, "SystemPrompt: %s\n", cfg.SystemPrompt)
	fmt.Fprintf(w, "WebSearch: %v\n", cfg.EnableWebSearch)
	fmt.Fprintf(w, "SingleFlight: %v\n", cfg.SingleFlight)
	fmt.Fprintf(w, "Markdown: %v\n", cfg.Markdown)
	fmt.Fprintf(w, "MaxRetries: %d\n", cfg.MaxRetries)
	fmt.Fprintf(w, "OTLPEndpoint: %s\n", cfg.OTLPEndpoint)
}

// maskToken returns a masked version of the token for security
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func init() {
	rootCmd.AddCommand(configCmd)
}
