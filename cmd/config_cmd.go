package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/theaxonlab/physioevents/internal/cli"
	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/pipeline"
	"github.com/theaxonlab/physioevents/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

var flagConfigDump bool

func init() {
	configCmd.Flags().BoolVar(&flagConfigDump, "dump", false, "Print the effective configuration as TOML")
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()

	if flagConfigDump {
		return toml.NewEncoder(os.Stdout).Encode(cfg)
	}

	path := config.Path()
	if flagConfigFile != "" {
		path = flagConfigFile
	}
	fmt.Printf("  Config file: %s\n", path)
	if _, err := os.Stat(path); err == nil {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	if cfg.General.DataDir != "" {
		fmt.Printf("    Data directory:  %s\n", cfg.General.DataDir)
	} else {
		fmt.Println("    Data directory:  current directory")
	}
	if cfg.General.Workers > 0 {
		fmt.Printf("    Workers:         %d\n", cfg.General.Workers)
	} else {
		fmt.Println("    Workers:         all CPUs")
	}
	fmt.Printf("    Write sidecars:  %v\n", cfg.General.WriteSidecars)
	fmt.Printf("    Write plots:     %v\n", cfg.General.WritePlots)
	fmt.Println()

	fmt.Println("  [Channels]")
	for _, task := range sortedKeys(cfg.Channels) {
		ct := cfg.Channels[task]
		rules := make([]string, 0, len(ct.Rules))
		for _, r := range ct.Rules {
			rules = append(rules, fmt.Sprintf("%s@%d", r.TrialType, r.Column))
		}
		fmt.Printf("    %-5s %s\n", task, strings.Join(rules, ", "))
	}
	fmt.Println()

	fmt.Println("  [Checks]")
	fmt.Printf("    Tolerance:    %.2f s\n", cfg.Checks.Tolerance)
	fmt.Printf("    Durations:    %d trial types\n", len(cfg.Checks.Durations))
	for _, task := range sortedKeys(cfg.Checks.FirstOnset) {
		fmt.Printf("    First onset:  %s at %.1f s\n", task, cfg.Checks.FirstOnset[task])
	}
	fmt.Println()

	fmt.Println("  [Ratings]")
	fmt.Printf("    Exclude below: %.2f\n", cfg.Ratings.ExcludeBelow)
	fmt.Println()

	fmt.Println("  [BIDS]")
	fmt.Printf("    Software: %s %s (%s)\n", cfg.BIDS.SoftwareName, cfg.BIDS.SoftwareVersion, cfg.BIDS.SoftwareRRID)
	fmt.Printf("    OS:       %s\n", cfg.BIDS.OperatingSystem)
	fmt.Println()

	fmt.Println("  [Watch]")
	fmt.Printf("    Address:       %s\n", cfg.Watch.Addr)
	fmt.Printf("    Interval:      %ds\n", cfg.Watch.IntervalSec)
	fmt.Printf("    Events buffer: %d\n", cfg.Watch.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Cache]")
	fmt.Printf("    Database: %s\n", pipeline.CachePath())
	if cache, err := store.Open(pipeline.CachePath()); err == nil {
		if n, err := cache.SessionCount(); err == nil {
			fmt.Printf("    Sessions: %s\n", cli.FormatNumber(int64(n)))
		}
		_ = cache.Close()
	}
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `physioevents setup` to reconfigure.")
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
