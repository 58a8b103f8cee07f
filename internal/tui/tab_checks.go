package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theaxonlab/physioevents/internal/tui/components"
	"github.com/theaxonlab/physioevents/internal/tui/theme"
)

// checksState holds the checks tab state.
type checksState struct {
	cursor int
	offset int // scroll offset for the list
}

func (a App) updateChecks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cs := &a.checkState
	switch msg.String() {
	case "j", "down":
		if cs.cursor < len(a.reports)-1 {
			cs.cursor++
		}
	case "k", "up":
		if cs.cursor > 0 {
			cs.cursor--
		}
	case "g":
		cs.cursor = 0
	case "G":
		cs.cursor = max(len(a.reports)-1, 0)
	case "n":
		// Jump to the next failing session.
		for i := cs.cursor + 1; i < len(a.reports); i++ {
			if !a.reports[i].Passed() {
				cs.cursor = i
				break
			}
		}
	}
	return a, nil
}

func (a App) renderChecksTab(cw, h int) string {
	t := theme.Active
	cs := a.checkState

	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	if len(a.reports) == 0 {
		return components.ContentCard("Checks", mutedStyle.Render("No converted sessions to check"), cw, false)
	}

	passed := 0
	for _, r := range a.reports {
		if r.Passed() {
			passed++
		}
	}

	left, right := cw/3, cw-cw/3
	if a.isCompactLayout() {
		left, right = cw, cw
	}
	leftInner := components.CardInnerWidth(left)

	okStyle := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)
	failStyle := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selectedStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceHover).Bold(true)

	var list strings.Builder
	list.WriteString(components.PassRate(passed, len(a.reports), max(leftInner-8, 10)))
	list.WriteString("\n\n")

	visible := max(h-7, 3) // card border, title, pass rate, hint
	offset := cs.offset
	if cs.cursor < offset {
		offset = cs.cursor
	}
	if cs.cursor >= offset+visible {
		offset = cs.cursor - visible + 1
	}
	end := min(offset+visible, len(a.reports))

	for i := offset; i < end; i++ {
		r := a.reports[i]
		mark := okStyle.Render("✓ ")
		if !r.Passed() {
			mark = failStyle.Render("✗ ")
		}
		name := truncStr(r.Session, leftInner-2)
		if i == cs.cursor {
			list.WriteString(mark + selectedStyle.Render(name))
		} else {
			list.WriteString(mark + rowStyle.Render(name))
		}
		list.WriteString("\n")
	}
	list.WriteString(mutedStyle.Render("[j/k] move  [n] next failure"))

	listCard := components.ContentCard("Checks", list.String(), left, true)
	detail := components.ContentCard(a.reports[cs.cursor].Session, a.renderViolations(right), right, false)

	if a.isCompactLayout() {
		return lipgloss.JoinVertical(lipgloss.Left, listCard, detail)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, listCard, detail)
}

func (a App) renderViolations(w int) string {
	t := theme.Active
	r := a.reports[a.checkState.cursor]
	innerW := components.CardInnerWidth(w)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	okStyle := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)
	ruleStyle := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s   %s %d\n\n",
		labelStyle.Render("Task:"), valueStyle.Render(r.Task.String()),
		labelStyle.Render("Rows:"), r.Rows)

	if r.Passed() {
		b.WriteString(okStyle.Render("All expectations met"))
		return b.String()
	}

	for _, v := range r.Violations {
		head := fmt.Sprintf("row %-4d %-10s %s", v.Row, v.Rule, v.TrialType)
		b.WriteString(ruleStyle.Render(truncStr(head, innerW)))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("  " + truncStr(v.Detail, innerW-2)))
		b.WriteString("\n")
	}
	return b.String()
}
