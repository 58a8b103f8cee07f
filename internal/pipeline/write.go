package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/theaxonlab/physioevents/internal/bids"
	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/plot"
	"github.com/theaxonlab/physioevents/internal/source"
)

// WriteOptions selects the outputs written for each session.
type WriteOptions struct {
	Sidecars bool
	Plots    bool
	BIDS     config.BIDSConfig
	Channels map[string]config.ChannelTask
	Workers  int
}

// WriteOptionsFrom builds WriteOptions from the configuration.
func WriteOptionsFrom(cfg config.Config) WriteOptions {
	return WriteOptions{
		Sidecars: cfg.General.WriteSidecars,
		Plots:    cfg.General.WritePlots,
		BIDS:     cfg.BIDS,
		Channels: cfg.Channels,
		Workers:  cfg.General.Workers,
	}
}

// WriteResult lists what a batch write produced.
type WriteResult struct {
	Files    []string
	Sessions int
	Skipped  int
	Errors   []error
	// Failed lists the paths of the sessions whose write failed.
	Failed []string
}

// WriteSession writes the events table of s and its companions. Failed
// sessions are never written. It returns the paths written.
func WriteSession(s model.Session, opts WriteOptions) ([]string, error) {
	if !s.OK() {
		return nil, fmt.Errorf("%s: not converted: %w", s.Name, s.Err)
	}

	var written []string

	eventsPath := bids.EventsPath(s.Path, s.Kind)
	if err := bids.WriteEventsFile(eventsPath, s.Table); err != nil {
		return written, err
	}
	written = append(written, eventsPath)

	if opts.Sidecars {
		sidecarPath := bids.SidecarPath(eventsPath)
		sc := bids.NewSidecar(s.Task, s.Table, opts.BIDS)
		if err := bids.WriteSidecarFile(sidecarPath, sc); err != nil {
			return written, err
		}
		written = append(written, sidecarPath)
	}

	if opts.Plots && s.Kind == model.KindChannels {
		trace, err := traceOf(s, opts)
		if err != nil {
			return written, err
		}
		plotPath := bids.PlotPath(s.Path)
		if err := plot.RenderFile(plotPath, *trace, s.Table); err != nil {
			return written, err
		}
		written = append(written, plotPath)
	}

	return written, nil
}

// traceOf returns the traces of a channel session, decoding the file again
// when the session came from the cache.
func traceOf(s model.Session, opts WriteOptions) (*model.Trace, error) {
	if s.Trace != nil {
		return s.Trace, nil
	}
	layout, ok := opts.Channels[string(s.Task)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.Name, source.ErrUnknownTask)
	}
	res, err := source.ParseChannelsFile(s.Path, layout)
	if err != nil {
		return nil, err
	}
	return &res.Trace, nil
}

// WriteAll writes every converted session on a bounded pool. A session that
// fails to write is reported in the result and does not stop the others.
func WriteAll(ctx context.Context, sessions []model.Session, opts WriteOptions, progressFn ProgressFunc) (*WriteResult, error) {
	result := &WriteResult{}
	var todo []model.Session
	for _, s := range sessions {
		if s.OK() {
			todo = append(todo, s)
		} else {
			result.Skipped++
		}
	}
	if len(todo) == 0 {
		return result, nil
	}

	numWorkers := opts.Workers
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	files := make([][]string, len(todo))
	errs := make([]error, len(todo))
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)

	for i := range todo {
		i := i // per-iteration copy for the goroutine below (go < 1.22 loop semantics)
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			files[i], errs[i] = WriteSession(todo[i], opts)

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progressFn != nil {
				progressFn(n, len(todo))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range todo {
		result.Files = append(result.Files, files[i]...)
		if errs[i] != nil {
			result.Errors = append(result.Errors, errs[i])
			result.Failed = append(result.Failed, todo[i].Path)
			continue
		}
		result.Sessions++
	}
	return result, nil
}

// Err joins the write errors, or returns nil.
func (r *WriteResult) Err() error {
	return errors.Join(r.Errors...)
}
