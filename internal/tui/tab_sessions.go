package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theaxonlab/physioevents/internal/cli"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/tui/components"
	"github.com/theaxonlab/physioevents/internal/tui/theme"
)

// Tab indices, in components.Tabs order.
const (
	tabSessions = iota
	tabTasks
	tabChecks
)

// Focus targets of the sessions tab.
const (
	focusList = iota
	focusEvents
)

// metaLines is the height of the session header above the timeline.
const metaLines = 4

// sessionsState holds the sessions tab state.
type sessionsState struct {
	list   table.Model
	events table.Model
	focus  int

	// visible maps list rows to indices in App.sessions.
	visible []int

	searching   bool
	searchInput textinput.Model
	searchQuery string
}

func newSessionsState() sessionsState {
	list := table.New(
		table.WithColumns(listColumns(40)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	list.SetStyles(tableStyles())

	events := table.New(
		table.WithColumns(eventColumns(60, true)),
		table.WithHeight(10),
	)
	events.SetStyles(tableStyles())

	return sessionsState{list: list, events: events}
}

func listColumns(inner int) []table.Column {
	const taskW, eventsW, statusW = 5, 6, 6
	nameW := max(inner-taskW-eventsW-statusW-8, 10) // 2 padding per column
	return []table.Column{
		{Title: "Session", Width: nameW},
		{Title: "Task", Width: taskW},
		{Title: "Events", Width: eventsW},
		{Title: "Status", Width: statusW},
	}
}

func eventColumns(inner int, hasValue bool) []table.Column {
	cols := []table.Column{
		{Title: "onset", Width: 10},
		{Title: "duration", Width: 10},
		{Title: "trial-type", Width: 16},
	}
	if hasValue {
		cols = append(cols, table.Column{Title: "value", Width: max(inner-36-8, 8)})
	}
	return cols
}

// moveCursor moves the session list cursor by delta rows.
func (s *sessionsState) moveCursor(delta int) {
	if delta < 0 {
		s.list.MoveUp(-delta)
	} else {
		s.list.MoveDown(delta)
	}
}

// selected returns the index in App.sessions of the highlighted row.
func (s sessionsState) selected() (int, bool) {
	c := s.list.Cursor()
	if c < 0 || c >= len(s.visible) {
		return 0, false
	}
	return s.visible[c], true
}

func (s *sessionsState) setFocus(f int) {
	s.focus = f
	if f == focusEvents {
		s.list.Blur()
		s.events.Focus()
		return
	}
	s.events.Blur()
	s.list.Focus()
}

// applySearch rebuilds the session list from the current search query.
func (a *App) applySearch() {
	ss := &a.sessState
	query := strings.ToLower(ss.searchQuery)

	ss.visible = make([]int, 0, len(a.summaries))
	rows := make([]table.Row, 0, len(a.sessions))
	for i, sum := range a.summaries {
		if query != "" && !strings.Contains(strings.ToLower(sum.Name), query) {
			continue
		}
		status := "ok"
		if sum.Error != "" {
			status = "failed"
		}
		ss.visible = append(ss.visible, i)
		rows = append(rows, table.Row{
			sum.Name,
			sum.Task.String(),
			cli.FormatNumber(int64(sum.Events)),
			status,
		})
	}

	ss.list.SetRows(rows)
	if ss.list.Cursor() >= len(rows) {
		ss.list.SetCursor(max(len(rows)-1, 0))
	}
	a.syncEvents()
}

// syncEvents loads the events table of the highlighted session.
func (a *App) syncEvents() {
	ss := &a.sessState
	idx, ok := ss.selected()
	if !ok {
		ss.events.SetRows(nil)
		return
	}
	tbl := a.sessions[idx].Table

	rows := make([]table.Row, 0, tbl.Len())
	for _, r := range tbl.Rows() {
		rows = append(rows, table.Row(r))
	}
	// Columns first so rows never carry more cells than there are columns.
	ss.events.SetRows(nil)
	ss.events.SetColumns(eventColumns(a.detailInnerWidth(), tbl.HasValue))
	ss.events.SetRows(rows)
	ss.events.SetCursor(0)
	a.resizeTables()
}

// splitWidths returns the outer widths of the list and detail cards.
func (a App) splitWidths() (int, int) {
	cw := a.contentWidth()
	if a.isCompactLayout() {
		return cw, cw
	}
	left := max(cw/3, 44)
	return left, cw - left
}

func (a App) detailInnerWidth() int {
	_, right := a.splitWidths()
	return components.CardInnerWidth(right)
}

// resizeTables fits both tables to the window.
func (a *App) resizeTables() {
	if a.width == 0 {
		return
	}
	ss := &a.sessState
	h := a.contentHeight()

	left, _ := a.splitWidths()
	ss.list.SetColumns(listColumns(components.CardInnerWidth(left)))
	ss.list.SetHeight(max(h-4, 3)) // border + title + header rule

	timelineH := 0
	if idx, ok := ss.selected(); ok {
		if n := len(a.sessions[idx].Table.TrialTypes()); n > 0 {
			timelineH = n + 2 // axis + blank line
		}
	}
	ss.events.SetHeight(max(h-4-metaLines-timelineH, 3))
}

func (a App) updateSessions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ss := &a.sessState

	switch msg.String() {
	case "/":
		ss.searching = true
		ss.searchInput = newSearchInput()
		ss.searchInput.SetValue(ss.searchQuery)
		return a, ss.searchInput.Focus()
	case "esc":
		if ss.focus == focusEvents {
			ss.setFocus(focusList)
			return a, nil
		}
		if ss.searchQuery != "" {
			ss.searchQuery = ""
			a.applySearch()
		}
		return a, nil
	case "tab":
		if ss.focus == focusList {
			ss.setFocus(focusEvents)
		} else {
			ss.setFocus(focusList)
		}
		return a, nil
	case "enter":
		ss.setFocus(focusEvents)
		return a, nil
	}

	var cmd tea.Cmd
	if ss.focus == focusEvents {
		ss.events, cmd = ss.events.Update(msg)
		return a, cmd
	}

	before := ss.list.Cursor()
	ss.list, cmd = ss.list.Update(msg)
	if ss.list.Cursor() != before {
		a.syncEvents()
	}
	return a, cmd
}

// updateSessionsSearch handles key events while in search mode.
func (a App) updateSessionsSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ss := &a.sessState

	switch msg.String() {
	case "enter":
		ss.searchQuery = strings.TrimSpace(ss.searchInput.Value())
		ss.searching = false
		ss.list.SetCursor(0)
		a.applySearch()
		return a, nil
	case "esc":
		ss.searching = false
		return a, nil
	}

	var cmd tea.Cmd
	ss.searchInput, cmd = ss.searchInput.Update(msg)
	return a, cmd
}

func (a App) renderSessionsTab(cw int) string {
	t := theme.Active
	ss := a.sessState
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	if len(a.sessions) == 0 {
		return components.ContentCard("Sessions", mutedStyle.Render("No session files found"), cw, false)
	}

	title := fmt.Sprintf("Sessions (%d)", len(ss.visible))
	if ss.searchQuery != "" {
		title = fmt.Sprintf("Sessions (%d of %d) /%s", len(ss.visible), len(a.sessions), ss.searchQuery)
	}
	listBody := ss.list.View()
	if ss.searching {
		listBody = ss.searchInput.View() + "\n" + listBody
	}

	left, right := a.splitWidths()
	listCard := components.ContentCard(title, listBody, left, ss.focus == focusList)

	idx, ok := ss.selected()
	if !ok {
		detail := components.ContentCard("", mutedStyle.Render("No session matches the search"), right, false)
		return a.joinSplit(listCard, detail)
	}

	sel := a.sessions[idx]
	detail := components.ContentCard(sel.Name, a.renderDetailBody(sel, right), right, ss.focus == focusEvents)
	return a.joinSplit(listCard, detail)
}

// joinSplit places the list and the detail side by side, or shows only the
// focused one on narrow terminals.
func (a App) joinSplit(list, detail string) string {
	if !a.isCompactLayout() {
		return lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
	}
	if a.sessState.focus == focusEvents {
		return detail
	}
	return list
}

// renderDetailBody renders the header, timeline and events of one session.
func (a App) renderDetailBody(sel model.Session, w int) string {
	t := theme.Active
	innerW := components.CardInnerWidth(w)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	failStyle := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface)
	warnStyle := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)

	var b strings.Builder
	b.WriteString(labelStyle.Render(truncStr(sel.Path, innerW)))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s %s   %s %s",
		labelStyle.Render("Kind:"), valueStyle.Render(string(sel.Kind)),
		labelStyle.Render("Task:"), valueStyle.Render(sel.Task.String()))
	if sel.Kind == model.KindLog && sel.TriggerSource != "" {
		fmt.Fprintf(&b, "   %s %s",
			labelStyle.Render("Trigger:"),
			valueStyle.Render(fmt.Sprintf("%.4f (%s)", sel.Trigger, sel.TriggerSource)))
	}
	b.WriteString("\n")

	if sel.Err != nil {
		b.WriteString(failStyle.Render(truncStr(sel.Err.Error(), innerW)))
		b.WriteString("\n\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s %s   %s %s",
		labelStyle.Render("Events:"), valueStyle.Render(cli.FormatNumber(int64(sel.Table.Len()))),
		labelStyle.Render("Trial types:"), valueStyle.Render(fmt.Sprintf("%d", len(sel.Table.TrialTypes()))))
	if sel.Dropped > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("   %d unpaired toggles dropped", sel.Dropped)))
	}
	if sel.ParseErrors > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("   %d unreadable rows", sel.ParseErrors)))
	}
	b.WriteString("\n\n")

	if timeline := components.Timeline(sel.Table, innerW); timeline != "" {
		b.WriteString(timeline)
		b.WriteString("\n\n")
	}

	b.WriteString(a.sessState.events.View())
	return b.String()
}
