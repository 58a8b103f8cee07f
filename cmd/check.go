package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/theaxonlab/physioevents/internal/cli"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/pipeline"
)

var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Check events tables against the task protocols",
	Long: "Check durations, first onsets, trial order and repetitions of the events\n" +
		"tables of the given files, or of every session in --path when none is given.\n" +
		"Exits non-zero when a check fails.",
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	cfg := loadConfig()

	var sessions []model.Session
	if len(args) == 0 {
		result, err := loadData(cmd.Context(), cfg, dataDir(cfg))
		if err != nil {
			return err
		}
		sessions = result.Sessions
	} else {
		for _, path := range args {
			sessions = append(sessions, convertFile(path, cfg))
		}
	}
	if len(sessions) == 0 {
		fmt.Println("\n  No sessions to check.")
		return nil
	}

	reports := make([]model.CheckReport, 0, len(sessions))
	var failed, broken int
	for _, s := range sessions {
		if !s.OK() {
			broken++
			fmt.Fprintln(os.Stderr, cli.RenderError(s.Err.Error()))
			continue
		}
		r := pipeline.Check(s.Name, s.Table, s.Task, cfg.Checks)
		if !r.Passed() {
			failed++
		}
		reports = append(reports, r)
	}

	if format != cli.FormatTable {
		if err := cli.Encode(os.Stdout, format, reports); err != nil {
			return err
		}
	} else {
		renderCheckReports(reports)
	}

	cmd.SilenceUsage = true
	switch {
	case failed > 0 && broken > 0:
		return fmt.Errorf("%d sessions failed checks, %d could not be converted", failed, broken)
	case failed > 0:
		return fmt.Errorf("%d of %d sessions failed checks", failed, len(reports))
	case broken > 0:
		return fmt.Errorf("%d sessions could not be converted", broken)
	}
	return nil
}

func renderCheckReports(reports []model.CheckReport) {
	fmt.Println()
	fmt.Println(cli.RenderTitle("CHECKS"))
	fmt.Println()

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		status := "ok"
		if !r.Passed() {
			status = "FAIL"
		}
		rows = append(rows, []string{
			truncate(r.Session, 40),
			r.Task.String(),
			strconv.Itoa(r.Rows),
			strconv.Itoa(len(r.Violations)),
			status,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers:  []string{"Session", "Task", "Rows", "Violations", "Status"},
		Rows:     rows,
		TextCols: []int{1, 4},
	}))

	for _, r := range reports {
		if r.Passed() {
			continue
		}
		vrows := make([][]string, 0, len(r.Violations))
		for _, v := range r.Violations {
			vrows = append(vrows, []string{v.Rule, strconv.Itoa(v.Row), string(v.TrialType), v.Detail})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    r.Session,
			Headers:  []string{"Rule", "Row", "Trial type", "Detail"},
			Rows:     vrows,
			TextCols: []int{2, 3},
		}))
	}
	fmt.Println()
}
