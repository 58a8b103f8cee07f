package components

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/tui/theme"
)

// CountBars renders one horizontal bar per trial type, longest first.
func CountBars(counts map[model.TrialType]int, width int) string {
	if len(counts) == 0 {
		return ""
	}
	t := theme.Active

	types := make([]model.TrialType, 0, len(counts))
	labelW, peak := 0, 0
	for tt, n := range counts {
		types = append(types, tt)
		labelW = max(labelW, len(tt))
		peak = max(peak, n)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})

	barW := width - labelW - 8
	if barW < 5 {
		barW = 5
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	countStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	var b strings.Builder
	for i, tt := range types {
		n := counts[tt]
		filled := int(math.Round(float64(n) / float64(peak) * float64(barW)))
		if filled < 1 {
			filled = 1
		}
		barStyle := lipgloss.NewStyle().Foreground(t.TrialColor(tt)).Background(t.Surface)
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s ", labelW, tt)))
		b.WriteString(barStyle.Render(strings.Repeat("█", filled)))
		b.WriteString(countStyle.Render(fmt.Sprintf(" %d", n)))
		if i < len(types)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Timeline draws the events of a table on a shared time axis, one lane per
// trial type in order of first appearance. Each column covers the same span
// of seconds; a cell is filled when any event of that type overlaps it.
func Timeline(table model.EventTable, width int) string {
	if table.Len() == 0 || width < 10 {
		return ""
	}
	t := theme.Active

	types := table.TrialTypes()
	labelW := 0
	for _, tt := range types {
		labelW = max(labelW, len(tt))
	}
	laneW := width - labelW - 1
	if laneW < 5 {
		return ""
	}

	start, end := math.Inf(1), math.Inf(-1)
	for _, r := range table.Records {
		start = math.Min(start, r.Onset)
		end = math.Max(end, r.Onset+r.Duration)
	}
	span := end - start
	if span <= 0 {
		span = 1
	}
	step := span / float64(laneW)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	emptyStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	for i, tt := range types {
		lane := make([]bool, laneW)
		for _, r := range table.Records {
			if r.TrialType != tt {
				continue
			}
			from := int((r.Onset - start) / step)
			to := int((r.Onset + r.Duration - start) / step)
			for c := max(from, 0); c <= min(to, laneW-1); c++ {
				lane[c] = true
			}
		}

		fillStyle := lipgloss.NewStyle().Foreground(t.TrialColor(tt)).Background(t.Surface)
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s ", labelW, tt)))
		for _, on := range lane {
			if on {
				b.WriteString(fillStyle.Render("█"))
			} else {
				b.WriteString(emptyStyle.Render("·"))
			}
		}
		if i < len(types)-1 {
			b.WriteString("\n")
		}
	}

	axis := fmt.Sprintf("%.1fs", start)
	endLabel := fmt.Sprintf("%.1fs", end)
	gap := laneW - len(axis) - len(endLabel)
	if gap > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(strings.Repeat(" ", labelW+1) + axis + strings.Repeat(" ", gap) + endLabel))
	}
	return b.String()
}
