package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theaxonlab/physioevents/internal/cli"
	"github.com/theaxonlab/physioevents/internal/pipeline"
	"github.com/theaxonlab/physioevents/internal/store"
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write BIDS events files for every session in the folder",
	RunE:  runWrite,
}

var (
	flagNoSidecars bool
	flagNoPlots    bool
)

func init() {
	for _, c := range []*cobra.Command{rootCmd, writeCmd} {
		c.Flags().BoolVar(&flagNoSidecars, "no-sidecars", false, "Do not write JSON sidecars")
		c.Flags().BoolVar(&flagNoPlots, "no-plots", false, "Do not write physio trace plots")
	}
	rootCmd.AddCommand(writeCmd)
}

func runWrite(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	dir := dataDir(cfg)
	ctx := cmd.Context()

	var cache *store.Cache
	var runID string
	if !flagNoCache {
		c, err := store.Open(pipeline.CachePath())
		if err != nil {
			if !flagQuiet {
				fmt.Fprintf(os.Stderr, "  Cache unavailable, doing full conversion\n")
			}
		} else {
			defer func() { _ = c.Close() }()
			cache = c
			if runID, err = c.StartRun(dir); err != nil && !flagQuiet {
				fmt.Fprintf(os.Stderr, "  Could not record run: %v\n", err)
			}
		}
	}

	result, err := loadDataWith(ctx, cfg, dir, cache)
	if err != nil {
		return err
	}
	if len(result.Sessions) == 0 {
		fmt.Printf("\n  No session files found in %s.\n", dir)
		return nil
	}

	opts := pipeline.WriteOptionsFrom(cfg)
	opts.Workers = workers(cfg)
	if flagNoSidecars {
		opts.Sidecars = false
	}
	if flagNoPlots {
		opts.Plots = false
	}

	progressFn, done := progressReporter("  Writing")
	wr, err := pipeline.WriteAll(ctx, result.Sessions, opts, progressFn)
	done()
	if err != nil {
		return err
	}

	if cache != nil && runID != "" {
		if err := cache.FinishRun(runID, len(result.Sessions), result.Failed, wr.Sessions); err != nil && !flagQuiet {
			fmt.Fprintf(os.Stderr, "  Could not record run: %v\n", err)
		}
	}

	fmt.Println()
	fmt.Printf("  Wrote %s events files (%s files in total) in %s\n",
		cli.FormatNumber(int64(wr.Sessions)), cli.FormatNumber(int64(len(wr.Files))), dir)

	if wr.Skipped > 0 {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d sessions could not be converted:", wr.Skipped)))
		for _, s := range result.Sessions {
			if !s.OK() {
				fmt.Println(cli.RenderMuted("      " + s.Err.Error()))
			}
		}
	}
	for _, e := range wr.Errors {
		fmt.Println(cli.RenderError(e.Error()))
	}
	fmt.Println()

	if err := wr.Err(); err != nil {
		return fmt.Errorf("%d sessions could not be written", len(wr.Errors))
	}
	return nil
}
