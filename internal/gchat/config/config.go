package config

import (
	"fmt"

	"github.com/longkey1/gchat/internal/gchat"
	"github.com/spf13/viper"
)

// Config holds the configuration for the chat front end and its providers
type Config struct {
	Model            string   `toml:"model" mapstructure:"model"` // Format: "provider:model" (e.g., "gemini:gemini-2.0-flash")
	GeminiBaseURL    string   `toml:"gemini_base_url" mapstructure:"gemini_base_url"`
	GeminiToken      string   `toml:"gemini_token" mapstructure:"gemini_token"`
	OpenAIBaseURL    string   `toml:"openai_base_url" mapstructure:"openai_base_url"`
	OpenAIToken      string   `toml:"openai_token" mapstructure:"openai_token"`
	AnthropicBaseURL string   `toml:"anthropic_base_url" mapstructure:"anthropic_base_url"`
	AnthropicToken   string   `toml:"anthropic_token" mapstructure:"anthropic_token"`
	PromptDirs       []string `toml:"prompt_dirs" mapstructure:"prompt_dirs"`
	SystemPrompt     string   `toml:"system_prompt" mapstructure:"system_prompt"`
	EnableWebSearch  bool     `toml:"enable_web_search" mapstructure:"enable_web_search"`
	SingleFlight     bool     `toml:"single_flight" mapstructure:"single_flight"` // Reject a new message while a reply is streaming
	Markdown         bool     `toml:"markdown" mapstructure:"markdown"`           // Render finished replies as markdown
	MaxRetries       int      `toml:"max_retries" mapstructure:"max_retries"`     // Retries on HTTP 429 (0 = disabled)
	OTLPEndpoint     string   `toml:"otlp_endpoint" mapstructure:"otlp_endpoint"` // Trace export endpoint (empty = disabled)
}

// GetModel returns the model string
func (c *Config) GetModel() string {
	return c.Model
}

// GetProvider extracts provider name from the model string
func (c *Config) GetProvider() (string, error) {
	provider, _, err := gchat.ParseModelString(c.Model)
	return provider, err
}

// GetModelName extracts model name from the model string
func (c *Config) GetModelName() (string, error) {
	_, model, err := gchat.ParseModelString(c.Model)
	return model, err
}

// GetSystemPrompt returns the configured system instruction
func (c *Config) GetSystemPrompt() string {
	return c.SystemPrompt
}

// WebSearchEnabled reports whether search grounding is requested
func (c *Config) WebSearchEnabled() bool {
	return c.EnableWebSearch
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig(promptDir string) *Config {
	return &Config{
		Model:            "gemini:gemini-2.0-flash",
		GeminiBaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		GeminiToken:      "$GEMINI_API_KEY", // Default to env var
		OpenAIBaseURL:    "https://api.openai.com/v1",
		OpenAIToken:      "$OPENAI_API_KEY",
		AnthropicBaseURL: "https://api.anthropic.com",
		AnthropicToken:   "$ANTHROPIC_API_KEY",
		PromptDirs:       []string{promptDir},
		EnableWebSearch:  false,
		SingleFlight:     false,
		Markdown:         false,
		MaxRetries:       3,
	}
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Tokens may reference environment variables ($VAR or ${VAR})
	config.GeminiToken = expandEnvVar(config.GeminiToken)
	config.OpenAIToken = expandEnvVar(config.OpenAIToken)
	config.AnthropicToken = expandEnvVar(config.AnthropicToken)

	// Convert prompt directories to absolute paths
	for i, promptDir := range config.PromptDirs {
		absPath, err := ResolvePath(promptDir)
		if err != nil {
			return nil, fmt.Errorf("error resolving prompt directory path '%s': %w", promptDir, err)
		}
		config.PromptDirs[i] = absPath
	}

	if _, _, err := gchat.ParseModelString(config.Model); err != nil {
		return nil, err
	}

	return config, nil
}
