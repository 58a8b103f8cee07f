package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/theaxonlab/physioevents/internal/model"
)

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"sub-001_ses-001_task-bht_physio.tsv.gz",
		"breath_holding_2023-10-12.log",
		"qct_2023-10-12_14h02.log",
		"notes.txt",
		"nested/inner.log",
	} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}

	want := []struct {
		name string
		kind model.Kind
		task model.Task
	}{
		{"breath_holding_2023-10-12.log", model.KindLog, model.TaskBreathHolding},
		{"qct_2023-10-12_14h02.log", model.KindLog, model.TaskQualityControl},
		{"sub-001_ses-001_task-bht_physio.tsv.gz", model.KindChannels, model.TaskBreathHolding},
	}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d: %+v", len(files), len(want), files)
	}
	for i, w := range want {
		f := files[i]
		if f.Name != w.name || f.Kind != w.kind || f.Task != w.task {
			t.Errorf("files[%d] = %+v, want %+v", i, f, w)
		}
	}

	logs, channels := CountByKind(files)
	if logs != 2 || channels != 1 {
		t.Errorf("CountByKind = %d, %d, want 2, 1", logs, channels)
	}
}

func TestScanDir_Missing(t *testing.T) {
	files, err := ScanDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil || files != nil {
		t.Errorf("ScanDir(missing) = %v, %v, want nil, nil", files, err)
	}
}

func TestTaskFromName(t *testing.T) {
	tests := []struct {
		name string
		want model.Task
	}{
		{"sub-001_task-rest_physio.tsv.gz", model.TaskRest},
		{"sub-001_ses-004_task-qct_bold.log", model.TaskQualityControl},
		{"Breath_Holding.log", model.TaskBreathHolding},
		{"resting_state_2023.log", model.TaskRest},
		{"restless.log", model.TaskUnknown},
		{"session.log", model.TaskUnknown},
	}
	for _, tt := range tests {
		if got := TaskFromName(tt.name); got != tt.want {
			t.Errorf("TaskFromName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
