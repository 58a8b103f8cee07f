package source

import (
	"errors"
	"fmt"
)

var (
	// ErrPatternNotFound is matched by every PatternNotFoundError.
	ErrPatternNotFound = errors.New("source: pattern not found")

	// ErrAmbiguousContext is matched by every AmbiguousContextError.
	ErrAmbiguousContext = errors.New("source: ambiguous context window")

	// ErrUnknownTask is returned when a physio file cannot be tied to a task.
	ErrUnknownTask = errors.New("source: unknown task")
)

// PatternNotFoundError reports a required log structure that is absent.
// Fallback is set when a trigger fallback search was attempted and failed too.
type PatternNotFoundError struct {
	Pattern  string
	Source   string
	Fallback string
}

func (e *PatternNotFoundError) Error() string {
	msg := fmt.Sprintf("the pattern %s was not found in the log", e.Pattern)
	if e.Fallback != "" {
		msg += fmt.Sprintf(" (nor the fallback %s)", e.Fallback)
	}
	return msg + fmt.Sprintf(". Please check that the input %s is a log output by Psychopy "+
		"and that it does not correspond to a task that was aborted", e.Source)
}

// Is makes errors.Is(err, ErrPatternNotFound) true.
func (e *PatternNotFoundError) Is(target error) bool {
	return target == ErrPatternNotFound
}

// AmbiguousContextError reports a cognitive trial whose context window does not
// hold exactly one coordinate declaration.
type AmbiguousContextError struct {
	Source  string
	Onset   float64
	Line    int
	Matches int
}

func (e *AmbiguousContextError) Error() string {
	return fmt.Sprintf("%s: line %d (onset %.4f): expected exactly one trial declaration in the %d lines ending at the onset, found %d",
		e.Source, e.Line, e.Onset, contextWindow, e.Matches)
}

// Is makes errors.Is(err, ErrAmbiguousContext) true.
func (e *AmbiguousContextError) Is(target error) bool {
	return target == ErrAmbiguousContext
}
