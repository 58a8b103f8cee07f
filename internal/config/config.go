// Package config loads and saves the physioevents TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all physioevents configuration.
type Config struct {
	General    GeneralConfig          `toml:"general"`
	Channels   map[string]ChannelTask `toml:"channels"`
	Checks     ChecksConfig           `toml:"checks"`
	Ratings    RatingsConfig          `toml:"ratings"`
	BIDS       BIDSConfig             `toml:"bids"`
	Watch      WatchConfig            `toml:"watch"`
	Appearance AppearanceConfig       `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DataDir       string `toml:"data_dir,omitempty"`
	Workers       int    `toml:"workers"`
	WritePlots    bool   `toml:"write_plots"`
	WriteSidecars bool   `toml:"write_sidecars"`
}

// ChannelTask describes how the digital channels of one task are decoded.
type ChannelTask struct {
	// MinTime skips samples recorded before this many seconds.
	MinTime float64       `toml:"min_time"`
	Rules   []ChannelRule `toml:"rules"`
}

// ChannelRule emits one event each time Column rises to Level.
type ChannelRule struct {
	Column      int     `toml:"column"`
	Level       float64 `toml:"level"`
	TrialType   string  `toml:"trial_type"`
	Duration    float64 `toml:"duration"`
	OnsetOffset float64 `toml:"onset_offset,omitempty"`
}

// ChecksConfig holds the expectations verified by `physioevents check`.
type ChecksConfig struct {
	Tolerance  float64            `toml:"tolerance"`
	Durations  map[string]float64 `toml:"durations"`
	FirstOnset map[string]float64 `toml:"first_onset"`
	Precede    map[string]string  `toml:"precede"`
	Repetition map[string]int     `toml:"repetition"`
}

// RatingsConfig holds rating summary settings.
type RatingsConfig struct {
	ExcludeBelow float64 `toml:"exclude_below"`
}

// BIDSConfig holds the StimulusPresentation metadata written to sidecars.
type BIDSConfig struct {
	OperatingSystem string            `toml:"operating_system"`
	SoftwareName    string            `toml:"software_name"`
	SoftwareRRID    string            `toml:"software_rrid"`
	SoftwareVersion string            `toml:"software_version"`
	Code            map[string]string `toml:"code"`
}

// WatchConfig holds watch service settings.
type WatchConfig struct {
	Addr         string `toml:"addr"`
	IntervalSec  int    `toml:"interval_sec"`
	EventsBuffer int    `toml:"events_buffer"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

const codeBase = "https://github.com/TheAxonLab/HCPh-fMRI-tasks/blob/97cc7879622f45129eefb9968890b41631f40851/"

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			WritePlots:    true,
			WriteSidecars: true,
		},
		Channels: DefaultChannels(),
		Checks: ChecksConfig{
			Tolerance: 0.1,
			Durations: map[string]float64{
				"blank":           3,
				"breath-in":       2.7,
				"breath-in-last":  2.7,
				"breath-out":      2.3,
				"breath-out-last": 2.3,
				"cog":             0.5,
				"hold":            13,
				"hold-end":        2,
				"hold-test":       13,
				"hold-end-test":   2,
				"mot":             5,
				"movie":           1200,
				"vis":             3,
			},
			FirstOnset: map[string]float64{
				"bht":  153.0,
				"qct":  295.5,
				"rest": 0.0,
			},
			Precede: map[string]string{
				"breath-freely": "hold-end",
				"breath-out":    "breath-in",
				"hold":          "breath-out-last",
				"hold-end":      "hold",
				"hold-test":     "breath-out-last",
			},
			Repetition: map[string]int{
				"mot": 2,
				"cog": 7,
			},
		},
		Ratings: RatingsConfig{
			ExcludeBelow: 1.45,
		},
		BIDS: BIDSConfig{
			OperatingSystem: "Linux Ubuntu 20.04.5",
			SoftwareName:    "PsychoPy",
			SoftwareRRID:    "SCR_006571",
			SoftwareVersion: "2022.3.0.dev6",
			Code: map[string]string{
				"bht":  codeBase + "task-bht_bold.psyexp",
				"qct":  codeBase + "task-qct_bold.psyexp",
				"rest": codeBase + "task-rest_bold.psyexp",
			},
		},
		Watch: WatchConfig{
			Addr:         "127.0.0.1:8788",
			IntervalSec:  30,
			EventsBuffer: 200,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// DefaultChannels returns the channel layout of the AcqKnowledge recordings.
// Columns are 0-based: 0 is time, 1-3 are RB, ECG and GA.
func DefaultChannels() map[string]ChannelTask {
	return map[string]ChannelTask{
		"bht": {
			Rules: []ChannelRule{
				{Column: 6, Level: 5, TrialType: "breath-in", Duration: 2.7},
				{Column: 6, Level: 5, TrialType: "breath-out", Duration: 2.3, OnsetOffset: 2.7},
				{Column: 7, Level: 5, TrialType: "hold", Duration: 15},
			},
		},
		"qct": {
			MinTime: 1,
			Rules: []ChannelRule{
				{Column: 6, Level: 5, TrialType: "vis", Duration: 3},
				{Column: 7, Level: 5, TrialType: "cog", Duration: 0.5},
				{Column: 8, Level: 5, TrialType: "motor", Duration: 5},
			},
		},
		"rest": {
			Rules: []ChannelRule{
				{Column: 4, Level: 5, TrialType: "movie", Duration: 1200},
			},
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "physioevents")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "physioevents")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config at path over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // config path is chosen by the local user
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// ChannelTaskFor returns the channel layout for task, and whether one is configured.
func (c Config) ChannelTaskFor(task string) (ChannelTask, bool) {
	ct, ok := c.Channels[task]
	if !ok || len(ct.Rules) == 0 {
		return ChannelTask{}, false
	}
	return ct, true
}
