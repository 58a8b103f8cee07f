package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theaxonlab/physioevents/internal/cli"
	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/tui/components"
	"github.com/theaxonlab/physioevents/internal/tui/theme"
)

func (a App) renderTasksTab(cw int) string {
	t := theme.Active
	var b strings.Builder

	var converted, failed, events, logs int
	for _, s := range a.sessions {
		if s.Kind == model.KindLog {
			logs++
		}
		if !s.OK() {
			failed++
			continue
		}
		converted++
		events += s.Table.Len()
	}

	b.WriteString(components.MetricRow([]components.Metric{
		{Label: "Sessions", Value: cli.FormatNumber(int64(len(a.sessions))),
			Note: fmt.Sprintf("%d logs, %d physio", logs, len(a.sessions)-logs)},
		{Label: "Converted", Value: cli.FormatNumber(int64(converted)),
			Note: cli.FormatPercent(ratio(converted, len(a.sessions)))},
		{Label: "Failed", Value: cli.FormatNumber(int64(failed))},
		{Label: "Events", Value: cli.FormatNumber(int64(events)),
			Note: fmt.Sprintf("%.1f per session", ratio(events, converted))},
	}, cw))
	b.WriteString("\n")

	if len(a.tasks) == 0 {
		return b.String()
	}

	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	perRow := 2
	if a.isCompactLayout() {
		perRow = 1
	}
	for start := 0; start < len(a.tasks); start += perRow {
		end := min(start+perRow, len(a.tasks))
		widths := components.LayoutRow(cw, end-start)

		cards := make([]string, 0, end-start)
		for i, ts := range a.tasks[start:end] {
			inner := components.CardInnerWidth(widths[i])
			body := mutedStyle.Render(fmt.Sprintf("%d sessions, %d failed, %d events",
				ts.Sessions, ts.Failed, ts.Events))
			if bars := components.CountBars(ts.Counts, inner); bars != "" {
				body += "\n\n" + bars
			}
			cards = append(cards, components.ContentCard("Task "+ts.Task.String(), body, widths[i], false))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
		b.WriteString("\n")
	}
	return b.String()
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
