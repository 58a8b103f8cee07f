// Package cmd implements the physioevents CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/theaxonlab/physioevents/internal/cli"
	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/pipeline"
	"github.com/theaxonlab/physioevents/internal/store"
)

var (
	flagPath       string
	flagConfigFile string
	flagNoCache    bool
	flagQuiet      bool
	flagWorkers    int
	flagFormat     string
	flagTask       string
)

var rootCmd = &cobra.Command{
	Use:   "physioevents",
	Short: "BIDS events from PsychoPy logs and physio recordings",
	Long: "Convert PsychoPy session logs and AcqKnowledge physio recordings into\n" +
		"BIDS events files, check them against the task protocols, and browse them.",
	RunE: runWrite,
}

// Execute is the main entry point called from main.go.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagPath, "path", "p", "", "Folder holding the session files (default: config data_dir, then .)")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Config file (default: "+config.Path()+")")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Skip SQLite cache, reconvert everything")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().IntVarP(&flagWorkers, "workers", "w", 0, "Parallel conversions (default: config workers, then all CPUs)")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "table", "Report format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&flagTask, "task", "", "Only process files of this task (bht, qct, rest)")
}

// loadConfig reads the configuration, falling back to defaults with a warning.
func loadConfig() config.Config {
	var cfg config.Config
	var err error
	if flagConfigFile != "" {
		cfg, err = config.LoadFile(flagConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "  Warning: %v, using defaults\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

// dataDir resolves the session folder from --path and the config. Cached
// sessions are keyed by path, so the folder is made absolute.
func dataDir(cfg config.Config) string {
	dir := "."
	switch {
	case flagPath != "":
		dir = flagPath
	case cfg.General.DataDir != "":
		dir = cfg.General.DataDir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func workers(cfg config.Config) int {
	if flagWorkers > 0 {
		return flagWorkers
	}
	return cfg.General.Workers
}

func loadOptions(cfg config.Config) (pipeline.Options, error) {
	opts := pipeline.Options{Workers: workers(cfg)}
	if flagTask != "" {
		opts.Task = model.ParseTask(flagTask)
		if opts.Task == model.TaskUnknown {
			return opts, fmt.Errorf("unknown task %q (want bht, qct or rest)", flagTask)
		}
	}
	return opts, nil
}

func outputFormat() (cli.Format, error) {
	return cli.ParseFormat(flagFormat)
}

// progressReporter returns a progress callback drawing a bar on stderr and a
// func that clears it. Both are no-ops with --quiet.
func progressReporter(description string) (pipeline.ProgressFunc, func()) {
	if flagQuiet {
		return nil, func() {}
	}

	var mu sync.Mutex
	var bar *progressbar.ProgressBar

	progressFn := func(current, total int) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = cli.NewProgressBar(os.Stderr, int64(total), description)
		}
		_ = bar.Set(current)
	}
	done := func() {
		mu.Lock()
		defer mu.Unlock()
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return progressFn, done
}

// loadData is the shared data loading path used by all commands.
// It opens the SQLite cache unless --no-cache is given.
func loadData(ctx context.Context, cfg config.Config, dir string) (*pipeline.LoadResult, error) {
	if flagNoCache {
		return loadDataWith(ctx, cfg, dir, nil)
	}

	cache, err := store.Open(pipeline.CachePath())
	if err != nil {
		if !flagQuiet {
			fmt.Fprintf(os.Stderr, "  Cache unavailable, doing full conversion\n")
		}
		return loadDataWith(ctx, cfg, dir, nil)
	}
	defer func() { _ = cache.Close() }()

	return loadDataWith(ctx, cfg, dir, cache)
}

// loadDataWith loads through cache when it is not nil, falling back to a
// full conversion if the cache fails.
func loadDataWith(ctx context.Context, cfg config.Config, dir string, cache *store.Cache) (*pipeline.LoadResult, error) {
	opts, err := loadOptions(cfg)
	if err != nil {
		return nil, err
	}

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning %s...\n", dir)
	}

	if cache != nil {
		progressFn, done := progressReporter("  Converting")
		cr, err := pipeline.LoadWithCache(ctx, dir, cfg, opts, cache, progressFn)
		done()
		if err == nil {
			if !flagQuiet && cr.TotalFiles > 0 {
				if cr.Reparsed == 0 {
					fmt.Fprintf(os.Stderr, "  Loaded %s sessions from cache\n",
						cli.FormatNumber(int64(len(cr.Sessions))))
				} else {
					fmt.Fprintf(os.Stderr, "  %s cached + %d converted\n",
						cli.FormatNumber(int64(cr.CacheHits)), cr.Reparsed)
				}
			}
			return &cr.LoadResult, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !flagQuiet {
			fmt.Fprintf(os.Stderr, "  Cache error (%v), falling back to full conversion\n", err)
		}
	}

	progressFn, done := progressReporter("  Converting")
	result, err := pipeline.Load(ctx, dir, cfg, opts, progressFn)
	done()
	if err != nil {
		return nil, err
	}

	if !flagQuiet && result.TotalFiles > 0 {
		fmt.Fprintf(os.Stderr, "  Converted %s sessions (%d logs, %d physio)\n",
			cli.FormatNumber(int64(result.Converted)), result.Logs, result.Channels)
	}
	return result, nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
