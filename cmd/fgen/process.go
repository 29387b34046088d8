package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gobeaver/fgen"
	"github.com/gobeaver/fgen/storage"
)

var (
	processAll        bool
	processPattern    string
	processScript     []string
	processScriptName string
	processDest       string
	processOutput     string
	processProgress   bool
	processWorkers    int
)

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Run files through their configured handlers",
	Long: `Process detects the type of each file, resolves its driver and runs every
handler variant configured for it. Paths are relative to the source
directory. With --all every file under the source directory is processed.

Examples:
  fgen process photos/cat.png
  fgen process --all --pattern '*.{png,jpg}' --output tree
  fgen process report.pdf --script 'signature:algorithms=md5|sha256'
  fgen process --all --script-name fingerprint --progress`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVarP(&processAll, "all", "a", false, "Process every file in the source directory")
	processCmd.Flags().StringVarP(&processPattern, "pattern", "p", "", "Glob selecting files when --all is set")
	processCmd.Flags().StringArrayVar(&processScript, "script", nil, "Script step [handler.]variant[:key=value,...] (repeatable)")
	processCmd.Flags().StringVar(&processScriptName, "script-name", "", "Run a registered script")
	processCmd.Flags().StringVarP(&processDest, "dest", "d", "", "Output directory for handler files")
	processCmd.Flags().StringVarP(&processOutput, "output", "o", formatJSON, "Output format: json, yaml, toml or tree")
	processCmd.Flags().BoolVar(&processProgress, "progress", false, "Show a progress bar")
	processCmd.Flags().IntVarP(&processWorkers, "workers", "w", 1, "Files processed concurrently")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if err := validFormat(processOutput); err != nil {
		return err
	}
	if len(processScript) > 0 && processScriptName != "" {
		return errors.New("--script and --script-name are mutually exclusive")
	}
	if len(args) == 0 && !processAll {
		return errors.New("no files given (use --all to process the source directory)")
	}

	d, _, err := newDispatcher()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	files := args
	if processAll {
		listed, err := listSource(ctx, d.Source(), processPattern)
		if err != nil {
			return err
		}
		files = append(files, listed...)
	}

	opts, err := processOptions()
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if processProgress {
		bar = newProgress(cmd, int64(len(files)), "Processing")
	}

	reports := processFiles(ctx, d, files, processWorkers, bar, opts...)
	if bar != nil {
		_ = bar.Finish()
	}

	if err := render(cmd.OutOrStdout(), processOutput, reports); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(reports))
	}
	return nil
}

func processOptions() ([]fgen.ProcessOption, error) {
	var opts []fgen.ProcessOption
	if len(processScript) > 0 {
		script, err := fgen.ParseScript(processScript...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fgen.WithScript(script))
	}
	if processScriptName != "" {
		opts = append(opts, fgen.WithScriptName(processScriptName))
	}
	if processDest != "" {
		opts = append(opts, fgen.WithDestinationDir(processDest))
	}
	return opts, nil
}

// listSource returns the files under the source root matching pattern.
func listSource(ctx context.Context, src storage.FileReader, pattern string) ([]string, error) {
	selector := storage.All()
	if pattern != "" {
		selector = storage.Glob(pattern)
	}
	infos, err := storage.ListWithSelector(ctx, src, "", selector, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list source: %w", err)
	}
	files := make([]string, 0, len(infos))
	for _, info := range infos {
		files = append(files, info.Path)
	}
	return files, nil
}

// processFiles runs every file through d with at most workers in flight.
// Reports are returned in the order of files.
func processFiles(ctx context.Context, d *fgen.Dispatcher, files []string, workers int, bar *progressbar.ProgressBar, opts ...fgen.ProcessOption) []report {
	reports := make([]report, len(files))
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		g.Go(func() error {
			res, err := d.Process(gctx, file, opts...)
			reports[i] = report{Path: file, Result: res, Err: err}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func newProgress(cmd *cobra.Command, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
