package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gobeaver/fgen"
)

var detectCmd = &cobra.Command{
	Use:   "detect <files...>",
	Short: "Show the detected type and driver of files",
	Long: `Detect runs the first pipeline stages without dispatching: it prints
the detected file type, the driver it maps to and the inspector configured
for that driver.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

// detection is what the pipeline resolves for a file before dispatch.
type detection struct {
	Path      string
	FileType  fgen.FileType
	Driver    string
	Inspector string
}

func detect(ctx context.Context, d *fgen.Dispatcher, path string) detection {
	det := detection{Path: path}
	det.FileType = d.Determiner().Determine(ctx, d.Source(), path)
	if det.FileType.IsZero() {
		return det
	}
	det.Driver, _ = d.Relations().DriverNameFor(det.FileType.Type)
	if det.Driver != "" {
		det.Inspector, _ = d.Inspectors().InspectorFor(det.Driver)
	}
	return det
}

func runDetect(cmd *cobra.Command, args []string) error {
	d, _, err := newDispatcher()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tTYPE\tEXT\tDRIVER\tINSPECTOR")
	for _, path := range args {
		det := detect(ctx, d, path)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			det.Path, orDash(det.FileType.Type), orDash(det.FileType.Extension),
			orDash(det.Driver), orDash(det.Inspector))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
