package daemon

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/theaxonlab/physioevents/internal/config"
)

var controlLog = []string{
	"90.0000 \tDATA \tKeypress: s",
	"100.0000 \tEXP \tfixation: autoDraw = True",
	"103.0000 \tEXP \tfixation: autoDraw = False",
}

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeGzip(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := io.WriteString(gz, strings.Join(lines, "\n")+"\n"); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func newTestService(t *testing.T, dir string) *Service {
	t.Helper()
	app := config.DefaultConfig()
	app.General.WritePlots = false
	return New(Config{
		Dir:          dir,
		Interval:     10 * time.Second,
		EventsBuffer: 10,
		Workers:      2,
		Write:        true,
		App:          app,
	})
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{
		Sessions:  3,
		Converted: 2,
		Failed:    1,
		Events:    40,
		Written:   2,
	}
	curr := Snapshot{
		Sessions:  5,
		Converted: 4,
		Failed:    1,
		Events:    71,
		Written:   4,
	}

	delta := diffSnapshots(prev, curr)
	if delta.Sessions != 2 {
		t.Fatalf("Sessions delta = %d, want 2", delta.Sessions)
	}
	if delta.Converted != 2 {
		t.Fatalf("Converted delta = %d, want 2", delta.Converted)
	}
	if delta.Failed != 0 {
		t.Fatalf("Failed delta = %d, want 0", delta.Failed)
	}
	if delta.Events != 31 {
		t.Fatalf("Events delta = %d, want 31", delta.Events)
	}
	if delta.Written != 2 {
		t.Fatalf("Written delta = %d, want 2", delta.Written)
	}
	if delta.isZero() {
		t.Fatal("delta unexpectedly reported as zero")
	}
	if !diffSnapshots(curr, curr).isZero() {
		t.Fatal("identical snapshots should produce a zero delta")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := New(Config{
		Dir:          ".",
		Interval:     10 * time.Second,
		EventsBuffer: 2,
	})

	s.publishEvent(Event{ID: 1})
	s.publishEvent(Event{ID: 2})
	s.publishEvent(Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func TestPollOnceWritesChangedSessions(t *testing.T) {
	dir := t.TempDir()
	logPath := writeFile(t, dir, "control_task.log", controlLog...)
	writeFile(t, dir, "aborted.log", "1.0000 \tEXP \tnothing here")
	writeGzip(t, dir, "sub-001_task-rest_physio.tsv.gz",
		"0.0\t0.1\t0.2\t0.3\t0",
		"1.0\t0.2\t0.3\t0.4\t5",
	)

	s := newTestService(t, dir)
	ctx := context.Background()
	s.pollOnce(ctx)

	st := s.snapshotStatus()
	if st.Summary.Sessions != 3 {
		t.Fatalf("Sessions = %d, want 3", st.Summary.Sessions)
	}
	if st.Summary.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", st.Summary.Failed)
	}
	if st.Summary.Written != 2 {
		t.Fatalf("Written = %d, want 2", st.Summary.Written)
	}
	if st.EventCount != 1 {
		t.Fatalf("EventCount = %d, want 1", st.EventCount)
	}
	if _, err := os.Stat(filepath.Join(dir, "control_task_from_log_events.tsv")); err != nil {
		t.Fatalf("events file not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sub-001_task-rest_from_channels_events.tsv")); err != nil {
		t.Fatalf("channel events file not written: %v", err)
	}

	// Nothing changed: no event, nothing rewritten.
	s.pollOnce(ctx)
	st = s.snapshotStatus()
	if st.Summary.Written != 2 || st.EventCount != 1 {
		t.Fatalf("idle poll: written=%d events=%d, want 2 and 1", st.Summary.Written, st.EventCount)
	}
	if st.PollCount != 2 {
		t.Fatalf("PollCount = %d, want 2", st.PollCount)
	}

	// Appending a trial rewrites only that session.
	more := append(append([]string{}, controlLog...),
		"110.0000 \tEXP \tfixation: autoDraw = True",
		"113.0000 \tEXP \tfixation: autoDraw = False",
	)
	writeFile(t, dir, "control_task.log", more...)
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(logPath, future, future); err != nil {
		t.Fatal(err)
	}
	s.pollOnce(ctx)

	st = s.snapshotStatus()
	if st.Summary.Written != 3 {
		t.Fatalf("Written = %d, want 3", st.Summary.Written)
	}
	s.mu.RLock()
	last := s.events[len(s.events)-1]
	s.mu.RUnlock()
	if last.Type != "folder_delta" {
		t.Fatalf("last event type = %q, want folder_delta", last.Type)
	}
	if len(last.Files) != 1 || last.Files[0] != "control_task.log" {
		t.Fatalf("last event files = %v, want [control_task.log]", last.Files)
	}
	if last.Delta.Events != 1 {
		t.Fatalf("Events delta = %d, want 1", last.Delta.Events)
	}
}

func TestHandlers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "control_task.log", controlLog...)

	s := newTestService(t, dir)
	s.pollOnce(context.Background())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	get := func(path string) string {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return string(body)
	}

	if got := get("/healthz"); got != "ok\n" {
		t.Fatalf("healthz = %q", got)
	}

	var st Status
	if err := json.Unmarshal([]byte(get("/v1/status")), &st); err != nil {
		t.Fatal(err)
	}
	if st.Dir != dir || st.Summary.Sessions != 1 || st.Summary.Events != 1 {
		t.Fatalf("status = %+v", st)
	}

	var events []Event
	if err := json.Unmarshal([]byte(get("/v1/events")), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != "snapshot" {
		t.Fatalf("events = %+v, want one snapshot", events)
	}

	metrics := get("/metrics")
	for _, want := range []string{
		`physioevents_sessions{kind="log",task="qct"} 1`,
		`physioevents_events{trial_type="blank"} 1`,
		`physioevents_polls_total{status="ok"} 1`,
		`physioevents_sessions_written_total 1`,
	} {
		if !strings.Contains(metrics, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestStreamSendsSnapshot(t *testing.T) {
	s := New(Config{Dir: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.handleStream(rec, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.snapshotStatus().SubscriberCount == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if !strings.HasPrefix(rec.Body.String(), "event: snapshot\ndata: ") {
		t.Fatalf("stream body = %q", rec.Body.String())
	}
	if s.snapshotStatus().SubscriberCount != 0 {
		t.Fatal("subscriber not removed")
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"new log", fsnotify.Event{Name: "/d/run.log", Op: fsnotify.Create}, true},
		{"physio write", fsnotify.Event{Name: "/d/x_physio.tsv.gz", Op: fsnotify.Write}, true},
		{"removed log", fsnotify.Event{Name: "/d/run.log", Op: fsnotify.Remove}, true},
		{"chmod", fsnotify.Event{Name: "/d/run.log", Op: fsnotify.Chmod}, false},
		{"own output", fsnotify.Event{Name: "/d/run_from_log_events.tsv", Op: fsnotify.Create}, false},
		{"unrelated", fsnotify.Event{Name: "/d/notes.txt", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevant(tt.ev); got != tt.want {
				t.Fatalf("relevant(%v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}
