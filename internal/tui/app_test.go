package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/tui/components"
)

func testSessions() []model.Session {
	return []model.Session{
		{
			Name: "sub-001_task-rest_physio.tsv.gz",
			Kind: model.KindChannels,
			Task: model.TaskRest,
			Table: model.EventTable{
				Precision: -1,
				Records:   []model.EventRecord{{Onset: 0, Duration: 1200, TrialType: model.TrialMovie}},
			},
		},
		{
			Name: "control_task.log",
			Kind: model.KindLog,
			Task: model.TaskQualityControl,
			Table: model.EventTable{
				Precision: 1,
				HasValue:  true,
				Records: []model.EventRecord{
					{Onset: 10, Duration: 4, TrialType: model.TrialBlank},
					{Onset: 14, Duration: 5, TrialType: model.TrialMotor, Value: "left"},
				},
			},
		},
		{
			Name: "aborted.log",
			Kind: model.KindLog,
			Err:  errors.New("aborted.log: pattern not found"),
		},
	}
}

// loadedApp returns an app that has received its window size and sessions.
func loadedApp(t *testing.T) App {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	a := NewApp(Options{Dir: "/data/sessions"})
	a.needSetup = false

	m, _ := a.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	m, _ = m.Update(DataLoadedMsg{Sessions: testSessions()})
	return m.(App)
}

func press(t *testing.T, a App, keys ...string) App {
	t.Helper()
	var m tea.Model = a
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ = m.Update(msg)
	}
	return m.(App)
}

func TestTabAtXMatchesTabWidths(t *testing.T) {
	for active := range components.Tabs {
		a := App{activeTab: active}
		pos := 0
		for i, tab := range components.Tabs {
			w := components.TabVisualWidth(tab, i == active)
			if got := a.tabAtX(pos + w/2); got != i {
				t.Fatalf("active=%d x=%d -> tab=%d, want %d", active, pos+w/2, got, i)
			}
			pos += w + 1
		}
		if got := a.tabAtX(pos + 50); got != -1 {
			t.Fatalf("x past the last tab -> %d, want -1", got)
		}
	}
}

func TestDataLoadedBuildsViews(t *testing.T) {
	a := loadedApp(t)

	if !a.loaded {
		t.Fatal("app not marked loaded")
	}
	if len(a.sessState.visible) != 3 {
		t.Fatalf("visible = %d, want 3", len(a.sessState.visible))
	}
	if len(a.reports) != 2 {
		t.Fatalf("reports = %d, want 2 (failed sessions are not checked)", len(a.reports))
	}
	if len(a.tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(a.tasks))
	}
	if got := len(a.sessState.events.Rows()); got != 1 {
		t.Fatalf("events rows of first session = %d, want 1", got)
	}

	view := a.View()
	for _, want := range []string{"sub-001_task-rest_physio.tsv.gz", "control_task.log", "movie"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestSessionNavigationLoadsEvents(t *testing.T) {
	a := press(t, loadedApp(t), "j")

	idx, ok := a.sessState.selected()
	if !ok || a.sessions[idx].Name != "control_task.log" {
		t.Fatalf("selected = %d %v, want control_task.log", idx, ok)
	}
	rows := a.sessState.events.Rows()
	if len(rows) != 2 {
		t.Fatalf("events rows = %d, want 2", len(rows))
	}
	if rows[1][2] != "mot" || rows[1][3] != "left" {
		t.Fatalf("second row = %v", rows[1])
	}

	a = press(t, a, "enter")
	if a.sessState.focus != focusEvents {
		t.Fatal("enter should focus the events table")
	}
	a = press(t, a, "esc")
	if a.sessState.focus != focusList {
		t.Fatal("esc should return to the session list")
	}
}

func TestSearchFiltersSessions(t *testing.T) {
	a := press(t, loadedApp(t), "/", "c", "o", "n", "t", "enter")

	if a.sessState.searching {
		t.Fatal("search mode still active after enter")
	}
	if a.sessState.searchQuery != "cont" {
		t.Fatalf("searchQuery = %q, want cont", a.sessState.searchQuery)
	}
	if len(a.sessState.visible) != 1 {
		t.Fatalf("visible = %d, want 1", len(a.sessState.visible))
	}

	a = press(t, a, "esc")
	if a.sessState.searchQuery != "" || len(a.sessState.visible) != 3 {
		t.Fatalf("esc should clear the search, got %q with %d rows", a.sessState.searchQuery, len(a.sessState.visible))
	}
}

func TestTabKeysSwitchTabs(t *testing.T) {
	a := press(t, loadedApp(t), "c")
	if a.activeTab != tabChecks {
		t.Fatalf("activeTab = %d, want checks", a.activeTab)
	}
	a = press(t, a, "t")
	if a.activeTab != tabTasks {
		t.Fatalf("activeTab = %d, want tasks", a.activeTab)
	}
	if !strings.Contains(a.View(), "Task qct") {
		t.Error("tasks view missing the qct card")
	}
}

func TestChecksJumpToFailure(t *testing.T) {
	a := press(t, loadedApp(t), "c")
	if !a.reports[0].Passed() {
		t.Fatalf("rest session should pass, got %+v", a.reports[0].Violations)
	}

	a = press(t, a, "n")
	if a.checkState.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", a.checkState.cursor)
	}
	if !strings.Contains(a.View(), "duration 4.0, expected 3.0") {
		t.Error("checks view missing the duration violation")
	}
}

func TestRefreshErrorKeepsSessions(t *testing.T) {
	a := loadedApp(t)
	m, _ := a.Update(RefreshDataMsg{Err: errors.New("boom")})
	a = m.(App)
	if len(a.sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(a.sessions))
	}
	if a.loadErr == nil {
		t.Fatal("refresh error not recorded")
	}
}
