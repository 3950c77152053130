package commands

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"profrag/internal/config"
)

var (
	cfgPath  string
	logLevel string

	// Loaded in PersistentPreRunE before any subcommand runs.
	appConfig *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "profrag",
	Short: "Professor review assistant backed by retrieval-augmented generation",
	Long: `profrag answers questions about professors using reviews stored in a
vector index and a streamed chat completion.

Configuration is read from --config, ./config.yaml, or
~/.config/profrag/config.yaml (created with defaults on first run).
Variables from a .env file in the working directory are loaded first.

Examples:
  profrag serve
  profrag --config prod.yaml serve
  profrag chat --url http://localhost:8080/api/chat`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func loadConfig(path string) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
