package tui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/tui/theme"
)

// setupValues holds the answers of the setup form.
type setupValues struct {
	Dir      string
	Workers  string
	Sidecars bool
	Plots    bool
	Theme    string
}

func setupValuesFrom(cfg config.Config, dir string) setupValues {
	if cfg.General.DataDir != "" {
		dir = cfg.General.DataDir
	}
	return setupValues{
		Dir:      dir,
		Workers:  strconv.Itoa(cfg.General.Workers),
		Sidecars: cfg.General.WriteSidecars,
		Plots:    cfg.General.WritePlots,
		Theme:    cfg.Appearance.Theme,
	}
}

// apply copies the answers into cfg.
func (v setupValues) apply(cfg *config.Config) {
	cfg.General.DataDir = strings.TrimSpace(v.Dir)
	if n, err := strconv.Atoi(v.Workers); err == nil {
		cfg.General.Workers = n
	}
	cfg.General.WriteSidecars = v.Sidecars
	cfg.General.WritePlots = v.Plots
	cfg.Appearance.Theme = v.Theme
}

func validateDir(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot open %s", s)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s)
	}
	return nil
}

// newSetupForm builds the setup form. found is the number of session files
// discovered in dir.
func newSetupForm(found int, dir string, vals *setupValues) *huh.Form {
	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themes = append(themes, huh.NewOption(t.Name, t.Name))
	}

	intro := "No session files found yet."
	if found > 0 {
		intro = fmt.Sprintf("Found %d session files in %s.", found, dir)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to physioevents").
				Description(intro),
			huh.NewInput().
				Title("Session folder").
				Description("Used when --path is not given. Leave empty for the current directory.").
				Value(&vals.Dir).
				Validate(validateDir),
			huh.NewSelect[string]().
				Title("Parallel workers").
				Options(
					huh.NewOption("All CPUs", "0"),
					huh.NewOption("1", "1"),
					huh.NewOption("2", "2"),
					huh.NewOption("4", "4"),
					huh.NewOption("8", "8"),
				).
				Value(&vals.Workers),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write JSON sidecars next to event files?").
				Value(&vals.Sidecars),
			huh.NewConfirm().
				Title("Write trace plots for physio recordings?").
				Value(&vals.Plots),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&vals.Theme),
		),
	).WithTheme(huh.ThemeCharm())
}

// saveSetupConfig persists the answers of the in-app setup form.
func (a *App) saveSetupConfig() error {
	cfg := loadConfigOrDefault()
	a.setupVals.apply(&cfg)
	theme.SetActive(cfg.Appearance.Theme)
	a.cfg = cfg
	return config.Save(cfg)
}

// RunSetup runs the setup form in the terminal and saves the answers.
// It returns the saved configuration.
func RunSetup(dir string, found int) (config.Config, error) {
	cfg := loadConfigOrDefault()
	vals := setupValuesFrom(cfg, dir)

	if err := newSetupForm(found, dir, &vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return cfg, err
		}
		return cfg, fmt.Errorf("setup form: %w", err)
	}

	vals.apply(&cfg)
	if err := config.Save(cfg); err != nil {
		return cfg, fmt.Errorf("saving config: %w", err)
	}
	return cfg, nil
}
