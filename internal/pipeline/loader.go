package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/source"
)

// LoadResult holds the output of the full conversion pipeline.
type LoadResult struct {
	Sessions    []model.Session
	TotalFiles  int
	Converted   int
	Failed      int
	ParseErrors int
	Logs        int
	Channels    int
}

// ProgressFunc is called during loading to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// Options tunes a load.
type Options struct {
	// Workers bounds parallel conversions. Zero means GOMAXPROCS.
	Workers int
	// Task keeps only files of this task when set.
	Task model.Task
}

// Load discovers and converts every session file in dir.
// It uses a bounded worker pool; sessions keep discovery order.
func Load(ctx context.Context, dir string, cfg config.Config, opts Options, progressFn ProgressFunc) (*LoadResult, error) {
	files, err := discover(dir, opts)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{TotalFiles: len(files)}
	result.Logs, result.Channels = source.CountByKind(files)
	if len(files) == 0 {
		return result, nil
	}

	sessions, err := convertAll(ctx, files, cfg, opts.Workers, func(n int) {
		if progressFn != nil {
			progressFn(n, len(files))
		}
	})
	if err != nil {
		return nil, err
	}

	// Logs kept during discovery only learn their task once converted.
	for _, s := range FilterByTask(sessions, opts.Task) {
		result.add(s)
	}
	return result, nil
}

func (r *LoadResult) add(s model.Session) {
	r.Sessions = append(r.Sessions, s)
	r.ParseErrors += s.ParseErrors
	if s.OK() {
		r.Converted++
	} else {
		r.Failed++
	}
}

// discover scans dir and applies the task filter.
func discover(dir string, opts Options) ([]source.DiscoveredFile, error) {
	files, err := source.ScanDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if opts.Task == model.TaskUnknown {
		return files, nil
	}

	var kept []source.DiscoveredFile
	for _, f := range files {
		// Logs are classified by content later; keep unlabeled ones.
		if f.Task == opts.Task || (f.Kind == model.KindLog && f.Task == model.TaskUnknown) {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

// convertAll converts files on a bounded pool. Results are indexed like files.
// done is called with the running count after each file.
func convertAll(ctx context.Context, files []source.DiscoveredFile, cfg config.Config, workers int, done func(n int)) ([]model.Session, error) {
	numWorkers := workers
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	results := make([]model.Session, len(files))
	var processed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)

	for i := range files {
		i := i // per-iteration copy for the goroutine below (go < 1.22 loop semantics)
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = Convert(files[i], cfg)
			n := processed.Add(1)
			if done != nil {
				done(int(n))
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
	return results, nil
}
