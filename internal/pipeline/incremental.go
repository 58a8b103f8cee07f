package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/source"
	"github.com/theaxonlab/physioevents/internal/store"
)

// CachedLoadResult extends LoadResult with cache metadata.
type CachedLoadResult struct {
	LoadResult
	CacheHits int
	Reparsed  int
	Pruned    int
}

// LoadWithCache discovers, diffs against cache, converts only changed files,
// and returns the combined result set in discovery order. Failed sessions are
// not cached, so they are retried on every load.
func LoadWithCache(ctx context.Context, dir string, cfg config.Config, opts Options, cache *store.Cache, progressFn ProgressFunc) (*CachedLoadResult, error) {
	files, err := discover(dir, opts)
	if err != nil {
		return nil, err
	}

	result := &CachedLoadResult{
		LoadResult: LoadResult{TotalFiles: len(files)},
	}
	result.Logs, result.Channels = source.CountByKind(files)

	tracked, err := cache.GetTrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	result.Pruned = prune(cache, dir, files, tracked)
	if len(files) == 0 {
		return result, nil
	}

	// Diff: partition into changed and unchanged
	var toReparse []int
	unchanged := make(map[string]int)

	for i, f := range files {
		info, err := os.Stat(f.Path)
		if err != nil {
			toReparse = append(toReparse, i)
			continue
		}

		cached, ok := tracked[f.Path]
		if ok && cached.MtimeNs == info.ModTime().UnixNano() && cached.SizeBytes == info.Size() {
			unchanged[f.Path] = i
		} else {
			toReparse = append(toReparse, i)
		}
	}

	sessions := make([]model.Session, len(files))
	filled := make([]bool, len(files))

	if len(unchanged) > 0 {
		cached, err := cache.LoadAllSessions()
		if err != nil {
			return nil, fmt.Errorf("loading cached sessions: %w", err)
		}
		for _, s := range cached {
			if i, ok := unchanged[s.Path]; ok {
				sessions[i] = s
				filled[i] = true
				result.CacheHits++
			}
		}
	}

	// A tracked file whose session row is gone is converted again.
	for i := range files {
		if _, ok := unchanged[files[i].Path]; ok && !filled[i] {
			toReparse = append(toReparse, i)
		}
	}

	if len(toReparse) > 0 {
		pending := make([]source.DiscoveredFile, len(toReparse))
		for j, i := range toReparse {
			pending[j] = files[i]
		}

		fresh, err := convertAll(ctx, pending, cfg, opts.Workers, func(n int) {
			if progressFn != nil {
				progressFn(n+result.CacheHits, result.TotalFiles)
			}
		})
		if err != nil {
			return nil, err
		}

		for j, s := range fresh {
			sessions[toReparse[j]] = s
			if s.OK() {
				if err := cache.SaveSession(s); err != nil {
					return nil, fmt.Errorf("caching %s: %w", s.Name, err)
				}
			}
		}
		result.Reparsed = len(toReparse)
	}

	// Logs kept during discovery only learn their task once converted.
	for _, s := range FilterByTask(sessions, opts.Task) {
		result.add(s)
	}
	return result, nil
}

// prune forgets cached sessions of dir whose file disappeared.
func prune(cache *store.Cache, dir string, files []source.DiscoveredFile, tracked map[string]store.FileInfo) int {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.Path] = struct{}{}
	}

	n := 0
	for path := range tracked {
		if filepath.Dir(path) != filepath.Clean(dir) {
			continue
		}
		if _, ok := present[path]; ok {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			// Still on disk, only filtered out of this load.
			continue
		}
		if err := cache.DeleteSession(path); err == nil {
			n++
		}
	}
	return n
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "physioevents")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "physioevents")
}

// CachePath returns the full path to the cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "events.db")
}
