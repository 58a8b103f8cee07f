// Package daemon provides the long-running folder watch service.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theaxonlab/physioevents/internal/bids"
	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/pipeline"
	"github.com/theaxonlab/physioevents/internal/source"
	"github.com/theaxonlab/physioevents/internal/store"
)

// Config controls the watch service runtime behavior.
type Config struct {
	Dir          string
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	Workers      int
	UseCache     bool
	// Write converts changed sessions into event files on every poll.
	Write bool
	App   config.Config
}

// Snapshot is a compact folder state for status/event payloads.
type Snapshot struct {
	At        time.Time `json:"at"`
	Sessions  int       `json:"sessions"`
	Logs      int       `json:"logs"`
	Channels  int       `json:"channels"`
	Converted int       `json:"converted"`
	Failed    int       `json:"failed"`
	Events    int       `json:"events"`
	Written   int       `json:"written"`
}

// Delta captures snapshot deltas between polls.
type Delta struct {
	Sessions  int `json:"sessions"`
	Converted int `json:"converted"`
	Failed    int `json:"failed"`
	Events    int `json:"events"`
	Written   int `json:"written"`
}

func (d Delta) isZero() bool {
	return d.Sessions == 0 &&
		d.Converted == 0 &&
		d.Failed == 0 &&
		d.Events == 0 &&
		d.Written == 0
}

// Event is emitted whenever the folder snapshot updates.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
	// Files lists the sessions converted by the poll that produced this event.
	Files []string `json:"files,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	Dir             string    `json:"dir"`
	Writing         bool      `json:"writing"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

type fileStamp struct {
	modNs int64
	size  int64
}

// Service provides the watch runtime and HTTP API.
type Service struct {
	cfg     Config
	metrics *metrics

	// pollMu serializes polls triggered by the ticker and by fsnotify.
	pollMu  sync.Mutex
	written map[string]fileStamp

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new watch service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8788"
	}

	return &Service{
		cfg:       cfg,
		metrics:   newMetrics(),
		written:   make(map[string]fileStamp),
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	return mux
}

// Run starts HTTP endpoints, the folder watcher and polling until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(s.cfg.Dir); err != nil {
		log.Printf("physioevents watch: not watching %s, polling only: %v", s.cfg.Dir, err)
	}

	// Seed initial snapshot so status is useful immediately.
	s.pollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Coalesce bursts of file events into one poll.
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce(ctx)
		case ev, ok := <-watcher.Events:
			if !ok {
				continue
			}
			if !relevant(ev) {
				continue
			}
			debounce.Reset(500 * time.Millisecond)
		case <-debounce.C:
			s.pollOnce(ctx)
		case werr, ok := <-watcher.Errors:
			if ok {
				log.Printf("physioevents watch: watcher error: %v", werr)
			}
		case err := <-errCh:
			return fmt.Errorf("watch http server: %w", err)
		}
	}
}

// relevant reports whether a file event can change the conversion results.
func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(ev.Name)
	if bids.IsOutput(name) {
		return false
	}
	_, ok := source.Classify(ev.Name)
	return ok
}

func (s *Service) pollOnce(ctx context.Context) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	start := time.Now()
	defer func() { s.metrics.pollDuration.Observe(time.Since(start).Seconds()) }()

	result, err := s.loadSessions(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = time.Now()
		s.pollCount++
		s.mu.Unlock()
		s.metrics.polls.WithLabelValues("error").Inc()
		log.Printf("physioevents watch poll error: %v", err)
		return
	}
	s.metrics.polls.WithLabelValues("ok").Inc()

	var files []string
	if s.cfg.Write {
		files, err = s.writeChanged(ctx, result.Sessions)
		if err != nil {
			log.Printf("physioevents watch write error: %v", err)
		}
	}

	now := time.Now()
	snap := snapshotFromResult(result, now)
	s.metrics.observe(result.Sessions)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot
	snap.Written = prev.Written + len(files)

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}

	if !prevExists {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      "snapshot",
			Timestamp: now,
			Snapshot:  snap,
			Files:     files,
		}
		publish = true
	} else {
		delta := diffSnapshots(prev, snap)
		if !delta.isZero() || len(files) > 0 {
			s.nextEventID++
			ev = Event{
				ID:        s.nextEventID,
				Type:      "folder_delta",
				Timestamp: now,
				Snapshot:  snap,
				Delta:     delta,
				Files:     files,
			}
			publish = true
		}
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func (s *Service) loadSessions(ctx context.Context) (*pipeline.LoadResult, error) {
	opts := pipeline.Options{Workers: s.cfg.Workers}
	if s.cfg.UseCache {
		cache, err := store.Open(pipeline.CachePath())
		if err == nil {
			defer func() { _ = cache.Close() }()
			cr, loadErr := pipeline.LoadWithCache(ctx, s.cfg.Dir, s.cfg.App, opts, cache, nil)
			if loadErr == nil {
				return &cr.LoadResult, nil
			}
			log.Printf("physioevents watch: cache load failed, reparsing: %v", loadErr)
		}
	}
	return pipeline.Load(ctx, s.cfg.Dir, s.cfg.App, opts, nil)
}

// writeChanged writes event files for sessions not written since their last change.
func (s *Service) writeChanged(ctx context.Context, sessions []model.Session) ([]string, error) {
	var changed []model.Session
	for _, sess := range sessions {
		if !sess.OK() {
			continue
		}
		stamp := fileStamp{modNs: sess.ModTimeNs, size: sess.SizeBytes}
		if prev, ok := s.written[sess.Path]; ok && prev == stamp {
			continue
		}
		changed = append(changed, sess)
	}
	if len(changed) == 0 {
		return nil, nil
	}

	opts := pipeline.WriteOptionsFrom(s.cfg.App)
	if s.cfg.Workers > 0 {
		opts.Workers = s.cfg.Workers
	}
	wr, err := pipeline.WriteAll(ctx, changed, opts, nil)
	if err != nil {
		return nil, err
	}

	failed := make(map[string]bool, len(wr.Failed))
	for _, path := range wr.Failed {
		failed[path] = true
	}

	var names []string
	for _, sess := range changed {
		if failed[sess.Path] {
			continue
		}
		s.written[sess.Path] = fileStamp{modNs: sess.ModTimeNs, size: sess.SizeBytes}
		names = append(names, sess.Name)
		log.Printf("physioevents watch: wrote %s (%d events)", sess.Name, sess.Table.Len())
	}
	s.metrics.written.Add(float64(len(names)))
	return names, wr.Err()
}

func snapshotFromResult(r *pipeline.LoadResult, at time.Time) Snapshot {
	snap := Snapshot{
		At:        at,
		Sessions:  len(r.Sessions),
		Logs:      r.Logs,
		Channels:  r.Channels,
		Converted: r.Converted,
		Failed:    r.Failed,
	}
	for _, sess := range r.Sessions {
		snap.Events += sess.Table.Len()
	}
	return snap
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Sessions:  curr.Sessions - prev.Sessions,
		Converted: curr.Converted - prev.Converted,
		Failed:    curr.Failed - prev.Failed,
		Events:    curr.Events - prev.Events,
		Written:   curr.Written - prev.Written,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Dir:             s.cfg.Dir,
		Writing:         s.cfg.Write,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
