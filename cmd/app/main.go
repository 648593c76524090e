package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/di"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/config"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/server"
)

var configPath string

// rootCmd is the base command for the pulse CLI
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "SAPTA pre-markup detection for Taiwan equities",
	Long: `pulse scores daily price history with six pattern modules, ranks tickers by
their pre-markup status and trains the optional boosted-tree model.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path (empty for defaults)")
}

// loadApp reads configuration and wires every dependency.
func loadApp() (*server.App, func(), error) {
	path := configPath
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
			path = ""
		}
	}
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return app, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
