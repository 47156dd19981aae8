// Command webresearcher answers questions from live web sources: it searches,
// reads the top results and streams a cited answer to the terminal.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"WebResearcher/internal/app"
	"WebResearcher/internal/config"
	"WebResearcher/internal/logging"
)

var (
	configPath string
	logLevel   string
	provider   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "webresearcher",
	Short:         "Research a question on the web and stream a cited answer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: $WEB_RESEARCHER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Primary search provider")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show per-source progress")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig applies the persistent flags over the loaded configuration.
func loadConfig() config.Config {
	var cfg config.Config
	if configPath != "" {
		cfg = config.LoadFrom(configPath)
	} else {
		cfg = config.Load()
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if provider != "" {
		cfg.Search.Provider = provider
	}
	return cfg
}

func newApplication() (*app.Application, config.Config, *slog.Logger) {
	cfg := loadConfig()
	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	return app.New(cfg, logger), cfg, logger
}
