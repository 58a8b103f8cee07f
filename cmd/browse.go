package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theaxonlab/physioevents/internal/model"
	"github.com/theaxonlab/physioevents/internal/tui"
	"github.com/theaxonlab/physioevents/internal/tui/theme"
)

var browseCmd = &cobra.Command{
	Use:     "browse",
	Aliases: []string{"tui"},
	Short:   "Browse sessions, events and checks interactively",
	RunE:    runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()
	theme.SetActive(cfg.Appearance.Theme)

	// Force TrueColor so every background style renders.
	lipgloss.SetColorProfile(termenv.TrueColor)

	opts := tui.Options{
		Dir:      dataDir(cfg),
		Workers:  workers(cfg),
		UseCache: !flagNoCache,
	}
	if flagTask != "" {
		opts.Task = model.ParseTask(flagTask)
	}

	p := tea.NewProgram(tui.NewApp(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
