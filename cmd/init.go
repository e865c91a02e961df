package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/gchat/internal/gchat/config"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration file",
	Long: `Initialize the configuration file with default settings.
The config file will be created at $HOME/.config/gchat/config.toml by default.
You can specify a different location using the --config option.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := cfgFile
		if configFile == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			configFile = filepath.Join(home, ".config", "gchat", "config.toml")
		}

		promptsDir, err := writeDefaultConfig(configFile)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration file created at: %s\n", configFile)
		fmt.Printf("Prompts directory created at: %s\n", promptsDir)
		return nil
	},
}

// writeDefaultConfig creates configFile with default settings next to a
// prompts directory and returns the prompts directory path
func writeDefaultConfig(configFile string) (string, error) {
	configDir := filepath.Dir(configFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return "", fmt.Errorf("config file already exists at: %s", configFile)
	}

	promptsDir := filepath.Join(configDir, "prompts")
	cfg := config.NewDefaultConfig(promptsDir)

	f, err := os.Create(configFile)
	if err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(promptsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create prompts directory: %w", err)
	}
	return promptsDir, nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
