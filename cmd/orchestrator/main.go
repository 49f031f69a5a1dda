package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/app"
	"github.com/AaronLay10/DiagramEngine/internal/config"
	"github.com/AaronLay10/DiagramEngine/internal/version"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:     "diagram",
	Short:   "Turn text and images into diagram code",
	Version: version.Version,
	Long: `diagram runs the perception, augmentation, routing and code generation
pipeline from the command line and inspects recorded runs.

Configuration is read from --config, or from DRAW_CONFIG when the flag is
not given. Environment overrides apply in both cases.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to engine.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and pipeline events on stderr")
	rootCmd.AddCommand(runCmd, showCmd, serveCmd)
}

// loadApp resolves the configuration and wires the engine. Logs are
// discarded unless --verbose is set or logging is forced.
func loadApp(cmd *cobra.Command, forceLog bool) (*app.App, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("DRAW_CONFIG")
	}
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	if verbose || forceLog {
		if logger, err = app.NewLogger(verbose || cfg.Service.Debug); err != nil {
			return nil, err
		}
	}
	return app.New(cmd.Context(), cfg, logger)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
