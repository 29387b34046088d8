// Command fgen runs files through a configuration-driven processing
// pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gobeaver/fgen"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	envPrefix string
	sourceDir string
	verbose   bool
)

// newDispatcher builds the dispatcher used by every command. Tests swap it.
var newDispatcher = loadDispatcher

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fgen",
	Short: "fgen - dispatch files to processing handlers",
	Long: `fgen detects the type of each file, maps it to a driver and runs the
handlers configured for that driver. Configuration comes from FGEN_*
environment variables and the built-in preset.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envPrefix, "env-prefix", "", "Prefix for FGEN_* environment variables (default BEAVER_)")
	rootCmd.PersistentFlags().StringVarP(&sourceDir, "source", "s", "", "Source directory (overrides FGEN_SOURCE_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline stages")
}

// loadDispatcher reads the environment configuration, applies flag
// overrides and registers the preset.
func loadDispatcher() (*fgen.Dispatcher, *fgen.Config, error) {
	var (
		cfg *fgen.Config
		err error
	)
	if envPrefix != "" {
		cfg, err = fgen.WithPrefix(envPrefix).Config()
	} else {
		cfg, err = fgen.GetConfig()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if sourceDir != "" {
		cfg.SourceDir = sourceDir
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	d, err := fgen.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := applyPreset(d); err != nil {
		return nil, nil, fmt.Errorf("failed to apply preset: %w", err)
	}
	return d, cfg, nil
}
