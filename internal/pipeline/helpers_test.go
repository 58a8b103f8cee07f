package pipeline

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// qctLog is a minimal quality-control log with a blank and a motor trial.
var qctLog = []string{
	"90.0000 \tDATA \tKeypress: s",
	"100.0000 \tEXP \tfixation: autoDraw = True",
	"103.0000 \tEXP \tfixation: autoDraw = False",
	"103.0000 \tEXP \tft_hand: text = 'LEFT'",
	"103.0000 \tEXP \tft_hand: autoDraw = True",
	"108.0000 \tEXP \tft_hand: autoDraw = False",
}

func writeLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writePhysio(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(strings.Join(rows, "\n") + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// restRows is a short resting-state recording with one movie onset.
var restRows = []string{
	"0.0\t0.1\t0.2\t0.3\t0",
	"1.0\t0.2\t0.3\t0.4\t5",
	"2.0\t0.3\t0.4\t0.5\t5",
}

// sessionDir creates a folder with a good log, an aborted log and a physio file.
func sessionDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeLog(t, dir, "control_task_2023-07-14.log", qctLog...)
	writeLog(t, dir, "aborted_2023-07-14.log", "1.0000 \tEXP \tnothing here")
	writePhysio(t, dir, "sub-001_task-rest_physio.tsv.gz", restRows...)
	return dir
}
