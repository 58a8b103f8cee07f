package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/theaxonlab/physioevents/internal/model"
)

// Ratings table columns.
var ratingColumns = []string{"subject", "rater_id", "time_sec", "rating", "artifacts", "comments"}

// ReadRatings reads a ratings table from a tab-separated file or an .xlsx
// workbook (first sheet).
func ReadRatings(path string) ([]model.Rating, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		rows, err = readTSV(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	ratings, err := parseRatings(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ratings, nil
}

func readTSV(path string) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec // ratings path is given by the user
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheet")
	}
	return f.GetRows(sheets[0])
}

// parseRatings maps rows to ratings by header name.
func parseRatings(rows [][]string) ([]model.Rating, error) {
	if len(rows) == 0 {
		return nil, errors.New("empty ratings table")
	}

	idx := make(map[string]int)
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range ratingColumns[:4] {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var ratings []model.Rating
	for n, row := range rows[1:] {
		if len(row) == 0 || cell(row, "subject") == "" {
			continue
		}
		timeSec, err := strconv.ParseFloat(cell(row, "time_sec"), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: time_sec: %w", n+2, err)
		}
		rating, err := strconv.ParseFloat(cell(row, "rating"), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: rating: %w", n+2, err)
		}
		ratings = append(ratings, model.Rating{
			Subject:   cell(row, "subject"),
			RaterID:   cell(row, "rater_id"),
			TimeSec:   timeSec,
			Rating:    rating,
			Artifacts: cell(row, "artifacts"),
			Comments:  cell(row, "comments"),
		})
	}
	return ratings, nil
}

// LatestPerSubject keeps the last rating of every subject, in the order of
// those last occurrences.
func LatestPerSubject(ratings []model.Rating) []model.Rating {
	last := make(map[string]int, len(ratings))
	for i, r := range ratings {
		last[r.Subject] = i
	}
	out := make([]model.Rating, 0, len(last))
	for i, r := range ratings {
		if last[r.Subject] == i {
			out = append(out, r)
		}
	}
	return out
}

// SummarizeRatings reports rating effort and outcome for one modality.
// Duplicate subjects are reduced to their last rating first.
func SummarizeRatings(modality string, ratings []model.Rating, excludeBelow float64) model.RatingSummary {
	kept := LatestPerSubject(ratings)
	sum := model.RatingSummary{
		Modality:  modality,
		Count:     len(kept),
		Threshold: excludeBelow,
	}
	if len(kept) == 0 {
		return sum
	}

	sum.Rater = kept[0].RaterID
	var total float64
	for _, r := range kept {
		sum.TotalSec += r.TimeSec
		total += r.Rating
		if r.Rating < excludeBelow {
			sum.Excluded = append(sum.Excluded, r)
		}
	}
	sum.AverageSec = sum.TotalSec / float64(len(kept))
	sum.Mean = total / float64(len(kept))

	if len(kept) > 1 {
		var sq float64
		for _, r := range kept {
			d := r.Rating - sum.Mean
			sq += d * d
		}
		sum.Std = math.Sqrt(sq / float64(len(kept)-1))
	}
	return sum
}

// ModalityFromPath extracts "T1w" from ".../desc-ratings_T1w.tsv".
func ModalityFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.LastIndex(name, "desc-ratings_"); i >= 0 {
		return name[i+len("desc-ratings_"):]
	}
	return name
}
