package pipeline

import (
	"fmt"
	"os"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/source"
)

// Convert turns one discovered file into a session. Failures are recorded on
// Session.Err and never carry a partial table.
func Convert(df source.DiscoveredFile, cfg config.Config) model.Session {
	s := model.Session{
		Path: df.Path,
		Name: df.Name,
		Kind: df.Kind,
		Task: df.Task,
	}

	if info, err := os.Stat(df.Path); err == nil {
		s.ModTimeNs = info.ModTime().UnixNano()
		s.SizeBytes = info.Size()
	}

	switch df.Kind {
	case model.KindLog:
		res, err := source.ParseLogFile(df.Path)
		if err != nil {
			s.Err = err
			return s
		}
		s.Trigger = res.Trigger
		s.TriggerSource = res.TriggerSource
		s.Table = res.Table
		s.Dropped = res.Dropped
		if t := model.InferTask(res.Table); t != model.TaskUnknown {
			s.Task = t
		}

	case model.KindChannels:
		layout, ok := cfg.ChannelTaskFor(string(df.Task))
		if !ok {
			s.Err = fmt.Errorf("%s: %w %q", df.Name, source.ErrUnknownTask, df.Task.String())
			return s
		}
		res, err := source.ParseChannelsFile(df.Path, layout)
		if err != nil {
			s.Err = err
			return s
		}
		s.Table = res.Table
		s.ParseErrors = res.ParseErrors
		s.Trace = &res.Trace

	default:
		s.Err = fmt.Errorf("%s: unsupported file kind %q", df.Name, df.Kind)
	}

	return s
}
