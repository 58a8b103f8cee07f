package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/theaxonlab/physioevents/internal/bids"
	"github.com/theaxonlab/physioevents/internal/cli"
	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/pipeline"
	"github.com/theaxonlab/physioevents/internal/source"
	"github.com/theaxonlab/physioevents/internal/store"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Print the events table of one log or physio recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var flagParseTSV bool

func init() {
	parseCmd.Flags().BoolVar(&flagParseTSV, "tsv", false, "Print the BIDS events file instead of a table")
	rootCmd.AddCommand(parseCmd)
}

type eventRow struct {
	Onset     float64         `json:"onset" yaml:"onset"`
	Duration  float64         `json:"duration" yaml:"duration"`
	TrialType model.TrialType `json:"trial_type" yaml:"trial_type"`
	Value     string          `json:"value,omitempty" yaml:"value,omitempty"`
}

type parseOutput struct {
	Session       string     `json:"session" yaml:"session"`
	Kind          model.Kind `json:"kind" yaml:"kind"`
	Task          string     `json:"task" yaml:"task"`
	Trigger       float64    `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	TriggerSource string     `json:"trigger_source,omitempty" yaml:"trigger_source,omitempty"`
	Dropped       int        `json:"dropped" yaml:"dropped"`
	Events        []eventRow `json:"events" yaml:"events"`
}

// convertFile converts a single file given on the command line. Files that
// do not carry a known suffix are read as PsychoPy logs. An up-to-date cached
// session is reused unless --no-cache or --task is given.
func convertFile(path string, cfg config.Config) model.Session {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	df, ok := source.Classify(path)
	if !ok {
		name := filepath.Base(path)
		df = source.DiscoveredFile{
			Path: path,
			Name: name,
			Kind: model.KindLog,
			Task: source.TaskFromName(name),
		}
	}
	if flagTask != "" {
		df.Task = model.ParseTask(flagTask)
	} else if s, ok := cachedSession(path); ok {
		return s
	}
	return pipeline.Convert(df, cfg)
}

// cachedSession returns the cached session of path if the file is unchanged.
func cachedSession(path string) (model.Session, bool) {
	if flagNoCache {
		return model.Session{}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return model.Session{}, false
	}
	cache, err := store.Open(pipeline.CachePath())
	if err != nil {
		return model.Session{}, false
	}
	defer func() { _ = cache.Close() }()

	s, ok, err := cache.LoadSession(path)
	if err != nil || !ok {
		return model.Session{}, false
	}
	if s.ModTimeNs != info.ModTime().UnixNano() || s.SizeBytes != info.Size() {
		return model.Session{}, false
	}
	return s, true
}

func runParse(_ *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	s := convertFile(args[0], loadConfig())
	if s.Err != nil {
		return s.Err
	}

	if flagParseTSV {
		return bids.WriteEvents(os.Stdout, s.Table)
	}

	if format != cli.FormatTable {
		out := parseOutput{
			Session:       s.Name,
			Kind:          s.Kind,
			Task:          s.Task.String(),
			Trigger:       s.Trigger,
			TriggerSource: s.TriggerSource,
			Dropped:       s.Dropped,
			Events:        make([]eventRow, 0, s.Table.Len()),
		}
		for _, r := range s.Table.Records {
			out.Events = append(out.Events, eventRow(r))
		}
		return cli.Encode(os.Stdout, format, out)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("%s  (%s, %d events)", truncate(s.Name, 32), s.Task, s.Table.Len())))
	fmt.Println()
	if s.Kind == model.KindLog {
		fmt.Printf("  Trigger: %.4f (%s)\n", s.Trigger, s.TriggerSource)
	}
	if s.Dropped > 0 {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d unpaired toggles dropped", s.Dropped)))
	}
	if s.ParseErrors > 0 {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d unreadable rows skipped", s.ParseErrors)))
	}
	fmt.Println()

	if s.Table.Len() == 0 {
		fmt.Println("  No events.")
		return nil
	}

	textCols := []int{2}
	if s.Table.HasValue {
		textCols = append(textCols, 3)
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers:  s.Table.Header(),
		Rows:     s.Table.Rows(),
		TextCols: textCols,
	}))
	return nil
}
