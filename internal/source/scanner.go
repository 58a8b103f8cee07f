package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/theaxonlab/physioevents/internal/model"
)

// ScanDir lists the PsychoPy logs and physio recordings directly inside dir.
// Subdirectories are not descended into. A missing dir yields no files.
func ScanDir(dir string) ([]DiscoveredFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []DiscoveredFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if df, ok := Classify(filepath.Join(dir, e.Name())); ok {
			files = append(files, df)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Classify reports whether path names a session file, and which kind.
func Classify(path string) (DiscoveredFile, bool) {
	name := filepath.Base(path)

	var kind model.Kind
	switch {
	case strings.HasSuffix(name, PhysioSuffix):
		kind = model.KindChannels
	case strings.HasSuffix(name, LogSuffix):
		kind = model.KindLog
	default:
		return DiscoveredFile{}, false
	}

	return DiscoveredFile{
		Path: path,
		Name: name,
		Kind: kind,
		Task: TaskFromName(name),
	}, true
}

// TaskFromName guesses the task from a file name. BIDS names carry it as
// "task-<label>"; PsychoPy logs use the experiment name instead.
func TaskFromName(name string) model.Task {
	lower := strings.ToLower(name)
	for _, part := range strings.FieldsFunc(lower, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	}) {
		switch part {
		case "bht", "breath", "breathholding":
			return model.TaskBreathHolding
		case "qct", "control", "qualitycontrol":
			return model.TaskQualityControl
		case "rest", "resting", "rs":
			return model.TaskRest
		}
	}
	return model.TaskUnknown
}

// CountByKind returns how many discovered files are logs and physio files.
func CountByKind(files []DiscoveredFile) (logs, channels int) {
	for _, f := range files {
		if f.Kind == model.KindChannels {
			channels++
			continue
		}
		logs++
	}
	return logs, channels
}
