package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gobeaver/fgen"
	"github.com/gobeaver/fgen/watch"
)

var (
	watchPattern   string
	watchDebounce  time.Duration
	watchRecursive bool
	watchOutput    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process files as they appear in the source directory",
	Long: `Watch monitors the source directory and processes every file that is
created or written once it has been quiet for the debounce interval.
Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchPattern, "pattern", "p", "", "Glob selecting files (overrides FGEN_WATCH_PATTERN)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before a file is processed (overrides FGEN_WATCH_DEBOUNCE_MS)")
	watchCmd.Flags().BoolVarP(&watchRecursive, "recursive", "r", true, "Watch sub-directories")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", formatTree, "Output format: json, yaml, toml or tree")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := validFormat(watchOutput); err != nil {
		return err
	}

	d, cfg, err := newDispatcher()
	if err != nil {
		return err
	}
	defer d.Close()

	logger, err := fgen.NewLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	pattern := cfg.WatchPattern
	if watchPattern != "" {
		pattern = watchPattern
	}
	debounce := time.Duration(cfg.WatchDebounceMS) * time.Millisecond
	if watchDebounce > 0 {
		debounce = watchDebounce
	}

	w, err := watch.New(watch.Config{
		Root:      cfg.SourceDir,
		Pattern:   pattern,
		Debounce:  debounce,
		Recursive: watchRecursive,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching", "root", cfg.SourceDir, "pattern", pattern, "debounce", debounce)
	err = w.Run(ctx, func(ctx context.Context, path string) error {
		res, err := d.Process(ctx, path)
		return render(cmd.OutOrStdout(), watchOutput, []report{{Path: path, Result: res, Err: err}})
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
