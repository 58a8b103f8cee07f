package model

// SessionSummary holds per-session aggregates for listings.
type SessionSummary struct {
	Name       string
	Path       string
	Kind       Kind
	Task       Task
	Events     int
	TrialTypes int
	FirstOnset float64
	LastOffset float64
	Counts     map[TrialType]int
	Error      string
}

// TaskStats holds aggregates across all sessions of one task.
type TaskStats struct {
	Task     Task
	Sessions int
	Failed   int
	Events   int
	Counts   map[TrialType]int
}

// Violation is one failed expectation on an events table.
type Violation struct {
	Rule      string    `json:"rule" yaml:"rule"`
	Row       int       `json:"row" yaml:"row"`
	TrialType TrialType `json:"trial_type" yaml:"trial_type"`
	Detail    string    `json:"detail" yaml:"detail"`
}

// CheckReport lists the violations found in one session.
type CheckReport struct {
	Session    string      `json:"session" yaml:"session"`
	Task       Task        `json:"task" yaml:"task"`
	Rows       int         `json:"rows" yaml:"rows"`
	Violations []Violation `json:"violations" yaml:"violations"`
}

// Passed reports whether no violation was found.
func (r CheckReport) Passed() bool {
	return len(r.Violations) == 0
}
