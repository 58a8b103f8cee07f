package source

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
)

// Analog columns of the physio TSV, after the time column.
const (
	colTime = 0
	colRB   = 1
	colECG  = 2
	colGA   = 3
)

// ChannelResult holds the output of decoding one physio file.
type ChannelResult struct {
	Table       model.EventTable
	Trace       model.Trace
	ParseErrors int
}

// ParseChannelsFile decodes a gzipped physio TSV with the given channel layout.
func ParseChannelsFile(path string, layout config.ChannelTask) (*ChannelResult, error) {
	f, err := os.Open(path) //nolint:gosec // physio paths come from the scanned session folder
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
	}
	defer func() { _ = gz.Close() }()

	res, err := ParseChannels(gz, layout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// ParseChannels decodes headerless tab-separated physio rows.
//
// Each rule fires on the rising edge of its column, that is on the first
// sample at or above Level after a sample below it. Rows recorded before
// layout.MinTime are ignored. Events keep the order they fired in.
func ParseChannels(r io.Reader, layout config.ChannelTask) (*ChannelResult, error) {
	if len(layout.Rules) == 0 {
		return nil, ErrUnknownTask
	}

	maxCol := colGA
	for _, rule := range layout.Rules {
		if rule.Column > maxCol {
			maxCol = rule.Column
		}
	}

	res := &ChannelResult{
		Table: model.EventTable{Precision: -1},
	}
	high := make([]bool, len(layout.Rules))

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) <= maxCol {
			res.ParseErrors++
			continue
		}

		row, ok := parseRow(fields, maxCol)
		if !ok {
			res.ParseErrors++
			continue
		}

		t := row[colTime]
		res.Trace.Time = append(res.Trace.Time, t)
		res.Trace.RB = append(res.Trace.RB, row[colRB])
		res.Trace.ECG = append(res.Trace.ECG, row[colECG])
		res.Trace.GA = append(res.Trace.GA, row[colGA])

		if t < layout.MinTime {
			continue
		}

		for i, rule := range layout.Rules {
			on := row[rule.Column] >= rule.Level
			if on && !high[i] {
				res.Table.Records = append(res.Table.Records, model.EventRecord{
					Onset:     model.RoundTo(t+rule.OnsetOffset, 6),
					Duration:  rule.Duration,
					TrialType: model.TrialType(rule.TrialType),
				})
			}
			high[i] = on
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

func parseRow(fields []string, maxCol int) ([]float64, bool) {
	row := make([]float64, maxCol+1)
	for i := 0; i <= maxCol; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, false
		}
		row[i] = v
	}
	return row, true
}
