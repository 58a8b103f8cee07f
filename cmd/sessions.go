package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/theaxonlab/physioevents/internal/cli"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/pipeline"
	"github.com/theaxonlab/physioevents/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session list with per-task totals",
	RunE:  runSessions,
}

var (
	flagSessionsFailed bool
	flagSessionsName   string
	flagSessionsRuns   int
)

func init() {
	sessionsCmd.Flags().BoolVar(&flagSessionsFailed, "failed", false, "Only show sessions that failed to convert")
	sessionsCmd.Flags().StringVar(&flagSessionsName, "name", "", "Filter to sessions whose name contains this text")
	sessionsCmd.Flags().IntVar(&flagSessionsRuns, "runs", 0, "Also list the last N recorded write runs")
	rootCmd.AddCommand(sessionsCmd)
}

type sessionsOutput struct {
	Sessions []model.SessionSummary `json:"sessions" yaml:"sessions"`
	Tasks    []model.TaskStats      `json:"tasks" yaml:"tasks"`
	Runs     []store.Run            `json:"runs,omitempty" yaml:"runs,omitempty"`
}

func runSessions(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	cfg := loadConfig()

	result, err := loadData(cmd.Context(), cfg, dataDir(cfg))
	if err != nil {
		return err
	}

	sessions := result.Sessions
	if flagSessionsName != "" {
		sessions = pipeline.FilterByName(sessions, flagSessionsName)
	}
	if flagSessionsFailed {
		sessions = pipeline.FilterFailed(sessions)
	}

	out := sessionsOutput{
		Sessions: pipeline.SummarizeAll(sessions),
		Tasks:    pipeline.AggregateTasks(sessions),
	}
	if flagSessionsRuns > 0 {
		out.Runs, err = recentRuns(flagSessionsRuns)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  Could not read runs: %v\n", err)
		}
	}

	if format != cli.FormatTable {
		return cli.Encode(os.Stdout, format, out)
	}

	if len(out.Sessions) == 0 {
		fmt.Println("\n  No sessions found.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("SESSIONS  %d in %s", len(out.Sessions), truncate(dataDir(cfg), 30))))
	fmt.Println()

	rows := make([][]string, 0, len(out.Sessions))
	for _, s := range out.Sessions {
		status := "ok"
		span := fmt.Sprintf("%s-%s", cli.FormatSeconds(s.FirstOnset), cli.FormatSeconds(s.LastOffset))
		if s.Error != "" {
			status = "failed"
			span = "-"
		}
		rows = append(rows, []string{
			truncate(s.Name, 40),
			string(s.Kind),
			s.Task.String(),
			cli.FormatNumber(int64(s.Events)),
			strconv.Itoa(s.TrialTypes),
			span,
			status,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers:  []string{"Session", "Kind", "Task", "Events", "Types", "Span (s)", "Status"},
		Rows:     rows,
		TextCols: []int{1, 2, 6},
	}))

	for _, s := range out.Sessions {
		if s.Error != "" {
			fmt.Println(cli.RenderError(s.Error))
		}
	}

	fmt.Println()
	renderTaskStats(out.Tasks)

	if len(out.Runs) > 0 {
		fmt.Println()
		renderRuns(out.Runs)
	}
	fmt.Println()
	return nil
}

func renderTaskStats(tasks []model.TaskStats) {
	rows := make([][]string, 0, len(tasks))
	for _, ts := range tasks {
		rows = append(rows, []string{
			ts.Task.String(),
			strconv.Itoa(ts.Sessions),
			strconv.Itoa(ts.Failed),
			cli.FormatNumber(int64(ts.Events)),
			formatCounts(ts.Counts),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:    "By task",
		Headers:  []string{"Task", "Sessions", "Failed", "Events", "Trial types"},
		Rows:     rows,
		TextCols: []int{4},
	}))
	renderTrialTypeBars(tasks)
}

// renderTrialTypeBars draws the total count of every trial type across tasks.
func renderTrialTypeBars(tasks []model.TaskStats) {
	totals := make(map[model.TrialType]int)
	for _, ts := range tasks {
		for tt, n := range ts.Counts {
			totals[tt] += n
		}
	}
	types := byCount(totals)
	if len(types) == 0 {
		return
	}

	fmt.Println()
	maxN := float64(totals[types[0]])
	for _, tt := range types {
		fmt.Println(cli.RenderHorizontalBar(string(tt), float64(totals[tt]), maxN, 30))
	}
}

// byCount returns the trial types of counts, most frequent first.
func byCount(counts map[model.TrialType]int) []model.TrialType {
	types := make([]model.TrialType, 0, len(counts))
	for tt := range counts {
		types = append(types, tt)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})
	return types
}

// formatCounts renders trial type counts as "breath-in 48, hold 12",
// most frequent first.
func formatCounts(counts map[model.TrialType]int) string {
	types := byCount(counts)
	parts := make([]string, 0, len(types))
	for _, tt := range types {
		parts = append(parts, fmt.Sprintf("%s %d", tt, counts[tt]))
	}
	return truncate(strings.Join(parts, ", "), 60)
}

func recentRuns(limit int) ([]store.Run, error) {
	cache, err := store.Open(pipeline.CachePath())
	if err != nil {
		return nil, err
	}
	defer func() { _ = cache.Close() }()
	return cache.RecentRuns(limit)
}

func renderRuns(runs []store.Run) {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		took := "running"
		if !r.FinishedAt.IsZero() {
			took = cli.FormatDuration(r.FinishedAt.Sub(r.StartedAt).Seconds())
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			truncate(r.Dir, 30),
			strconv.Itoa(r.Sessions),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Written),
			took,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:    "Recent runs",
		Headers:  []string{"Started", "Folder", "Sessions", "Failed", "Written", "Took"},
		Rows:     rows,
		TextCols: []int{1, 5},
	}))
}
