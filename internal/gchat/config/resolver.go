package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// expandEnvVar expands an environment variable reference ($VAR or ${VAR}).
// Values that are not a reference are returned as-is; an unset variable
// expands to the empty string.
func expandEnvVar(value string) string {
	if !strings.HasPrefix(value, "$") {
		return value
	}

	var envVarName string
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVarName = value[2 : len(value)-1]
	} else {
		envVarName = strings.TrimPrefix(value, "$")
	}

	return os.Getenv(envVarName)
}

// GetBaseURL returns the base URL for the specified provider
func (c *Config) GetBaseURL(provider string) (string, error) {
	var baseURLValue string
	switch provider {
	case "gemini":
		baseURLValue = c.GeminiBaseURL
	case "openai":
		baseURLValue = c.OpenAIBaseURL
	case "anthropic":
		baseURLValue = c.AnthropicBaseURL
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	if baseURLValue == "" {
		return "", fmt.Errorf("%s base URL is not configured. Set it in config file (%s_base_url) or environment variable (GCHAT_%s_BASE_URL)", provider, provider, strings.ToUpper(provider))
	}

	return baseURLValue, nil
}

// GetToken returns the token for the specified provider
// Environment variables are already expanded during LoadConfig()
func (c *Config) GetToken(provider string) (string, error) {
	var tokenValue string
	switch provider {
	case "gemini":
		tokenValue = c.GeminiToken
	case "openai":
		tokenValue = c.OpenAIToken
	case "anthropic":
		tokenValue = c.AnthropicToken
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	if tokenValue == "" {
		return "", fmt.Errorf("%s token is not configured. Set it in config file (%s_token) or environment variable (GCHAT_%s_TOKEN)", provider, provider, strings.ToUpper(provider))
	}

	return tokenValue, nil
}

// ResolvePath converts a relative path to absolute path if needed.
// Relative paths are resolved against the directory of the config file in
// use, or the working directory when no config file was loaded.
func ResolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %w", err)
		}
		return filepath.Join(cwd, path), nil
	}

	configDir := filepath.Dir(configFile)
	if !filepath.IsAbs(configDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %w", err)
		}
		configDir = filepath.Join(cwd, configDir)
	}

	return filepath.Join(configDir, path), nil
}
