package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theaxonlab/physioevents/internal/cli"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/pipeline"
)

var ratingsCmd = &cobra.Command{
	Use:   "ratings <file>...",
	Short: "Summarize quality-control rating tables",
	Long: "Summarize rating effort and outcome of desc-ratings_<modality> tables\n" +
		"(.tsv or .xlsx). Duplicate subjects keep their last rating.",
	Args: cobra.MinimumNArgs(1),
	RunE: runRatings,
}

var flagExcludeBelow float64

func init() {
	ratingsCmd.Flags().Float64Var(&flagExcludeBelow, "exclude-below", 0, "Exclusion threshold (default: config ratings.exclude_below)")
	rootCmd.AddCommand(ratingsCmd)
}

func runRatings(_ *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	cfg := loadConfig()

	threshold := cfg.Ratings.ExcludeBelow
	if flagExcludeBelow > 0 {
		threshold = flagExcludeBelow
	}

	summaries := make([]model.RatingSummary, 0, len(args))
	for _, path := range args {
		ratings, err := pipeline.ReadRatings(path)
		if err != nil {
			return err
		}
		summaries = append(summaries, pipeline.SummarizeRatings(pipeline.ModalityFromPath(path), ratings, threshold))
	}

	if format != cli.FormatTable {
		return cli.Encode(os.Stdout, format, summaries)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("RATINGS"))
	for _, s := range summaries {
		renderRatingSummary(s)
	}
	fmt.Println()
	return nil
}

func renderRatingSummary(s model.RatingSummary) {
	fmt.Println()
	fmt.Printf("  %s  (%d subjects", s.Modality, s.Count)
	if s.Rater != "" {
		fmt.Printf(", rater %s", s.Rater)
	}
	fmt.Println(")")
	if s.Count == 0 {
		fmt.Println(cli.RenderMuted("    no ratings"))
		return
	}

	fmt.Printf("    Total rating time:  %s\n", cli.FormatHoursMinutes(s.TotalSec))
	fmt.Printf("    Time per subject:   %s\n", cli.FormatMinutesSeconds(s.AverageSec))
	fmt.Printf("    Rating:             %s\n", cli.FormatMeanStd(s.Mean, s.Std))

	if len(s.Excluded) == 0 {
		fmt.Printf("    Excluded (< %.2f):  none\n", s.Threshold)
		return
	}
	fmt.Printf("    Excluded (< %.2f):  %d\n", s.Threshold, len(s.Excluded))

	rows := make([][]string, 0, len(s.Excluded))
	for _, r := range s.Excluded {
		rows = append(rows, []string{
			r.Subject,
			fmt.Sprintf("%.2f", r.Rating),
			truncate(r.Artifacts, 30),
			truncate(r.Comments, 40),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers:  []string{"Subject", "Rating", "Artifacts", "Comments"},
		Rows:     rows,
		TextCols: []int{2, 3},
	}))
}
