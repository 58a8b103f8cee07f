package bids

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/theaxonlab/physioevents/internal/model"
)

// WriteEvents writes t as a tab-separated table with a header row.
func WriteEvents(w io.Writer, t model.EventTable) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	for _, r := range t.Records {
		if err := cw.Write(t.Fields(r)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteEventsFile writes t to path, replacing any previous table.
func WriteEventsFile(path string, t model.EventTable) error {
	f, err := os.Create(path) //nolint:gosec // output path derives from the input path
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := WriteEvents(f, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
