// Package bids writes events tables and their JSON sidecars next to the
// files they were extracted from.
package bids

import (
	"path/filepath"
	"strings"

	"github.com/theaxonlab/physioevents/internal/model"
)

// Output name suffixes.
const (
	logEventsSuffix     = "_from_log_events.tsv"
	channelEventsSuffix = "_from_channels_events.tsv"
	plotSuffix          = "_plot.png"
	physioSuffix        = "_physio.tsv.gz"
	logSuffix           = ".log"
)

// EventsPath returns where the events table of the input at path is written.
// "X.log" becomes "X_from_log_events.tsv" and "Y_physio.tsv.gz" becomes
// "Y_from_channels_events.tsv", in the same directory.
func EventsPath(path string, kind model.Kind) string {
	dir, name := filepath.Split(path)
	if kind == model.KindChannels {
		return filepath.Join(dir, strings.TrimSuffix(name, physioSuffix)+channelEventsSuffix)
	}
	return filepath.Join(dir, strings.TrimSuffix(name, logSuffix)+logEventsSuffix)
}

// SidecarPath returns the JSON sidecar path of an events table.
func SidecarPath(eventsPath string) string {
	return strings.TrimSuffix(eventsPath, filepath.Ext(eventsPath)) + ".json"
}

// PlotPath returns where the trace plot of a physio file is written.
func PlotPath(physioPath string) string {
	dir, name := filepath.Split(physioPath)
	return filepath.Join(dir, strings.TrimSuffix(name, physioSuffix)+plotSuffix)
}

// IsOutput reports whether name is a file this package writes, so scanners
// can skip their own outputs.
func IsOutput(name string) bool {
	for _, suffix := range []string{logEventsSuffix, channelEventsSuffix, plotSuffix} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.HasSuffix(name, "_events.json")
}
