package source

import "github.com/theaxonlab/physioevents/internal/model"

// Suffixes of the files picked up by ScanDir.
const (
	LogSuffix    = ".log"
	PhysioSuffix = "_physio.tsv.gz"
)

// DiscoveredFile represents a session file found during directory scanning.
type DiscoveredFile struct {
	Path string
	Name string // file name without directory
	Kind model.Kind
	Task model.Task
}
