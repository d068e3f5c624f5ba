// Command geodb-places serves place groups built from geoDB collections.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geodb-places/internal/core/config"
	"github.com/mohammed-shakir/geodb-places/internal/logger"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	placesConfig string
	stopOnError  bool
}

func rootCmd() *cobra.Command {
	var gf globalFlags
	cmd := &cobra.Command{
		Use:           "geodb-places",
		Short:         "Publish geoDB collections as place groups",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	cmd.PersistentFlags().StringVar(&gf.placesConfig, "config", "", "places configuration file (overrides PLACES_CONFIG)")
	cmd.PersistentFlags().BoolVar(&gf.stopOnError, "stop-on-error", false, "abort a cycle at the first failing place group")

	cmd.AddCommand(serveCmd(&gf), syncCmd(&gf), queryCmd(&gf))
	return cmd
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig(cmd *cobra.Command, gf *globalFlags) config.Config {
	cfg := config.FromEnv()
	if gf.placesConfig != "" {
		cfg.PlacesConfig = gf.placesConfig
	}
	if cmd.Flags().Changed("stop-on-error") {
		cfg.StopOnError = gf.stopOnError
	}
	return cfg
}

func newLogger(cfg config.Config, component string, out io.Writer) *slog.Logger {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: component,
	}, out)
	return logger.NewSlog(&zl)
}
