// Package pipeline orchestrates session conversion, caching, output writing
// and the reports built on top of converted sessions.
package pipeline

import (
	"sort"
	"strings"

	"github.com/theaxonlab/physioevents/internal/model"
)

// Summarize computes the listing row of one session.
func Summarize(s model.Session) model.SessionSummary {
	sum := model.SessionSummary{
		Name:   s.Name,
		Path:   s.Path,
		Kind:   s.Kind,
		Task:   s.Task,
		Events: s.Table.Len(),
	}
	if s.Err != nil {
		sum.Error = s.Err.Error()
		return sum
	}

	sum.Counts = s.Table.CountByType()
	sum.TrialTypes = len(sum.Counts)

	for i, r := range s.Table.Records {
		if i == 0 || r.Onset < sum.FirstOnset {
			sum.FirstOnset = r.Onset
		}
		if end := r.Onset + r.Duration; i == 0 || end > sum.LastOffset {
			sum.LastOffset = end
		}
	}
	return sum
}

// SummarizeAll summarizes sessions, keeping their order.
func SummarizeAll(sessions []model.Session) []model.SessionSummary {
	out := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, Summarize(s))
	}
	return out
}

// AggregateTasks computes per-task statistics, sorted by task name.
func AggregateTasks(sessions []model.Session) []model.TaskStats {
	taskMap := make(map[model.Task]*model.TaskStats)

	for _, s := range sessions {
		ts, ok := taskMap[s.Task]
		if !ok {
			ts = &model.TaskStats{Task: s.Task, Counts: make(map[model.TrialType]int)}
			taskMap[s.Task] = ts
		}
		ts.Sessions++
		if !s.OK() {
			ts.Failed++
			continue
		}
		ts.Events += s.Table.Len()
		for tt, n := range s.Table.CountByType() {
			ts.Counts[tt] += n
		}
	}

	tasks := make([]model.TaskStats, 0, len(taskMap))
	for _, ts := range taskMap {
		tasks = append(tasks, *ts)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Task.String() < tasks[j].Task.String()
	})

	return tasks
}

// FilterByTask returns sessions of the given task. TaskUnknown keeps all.
func FilterByTask(sessions []model.Session, task model.Task) []model.Session {
	if task == model.TaskUnknown {
		return sessions
	}
	var result []model.Session
	for _, s := range sessions {
		if s.Task == task {
			result = append(result, s)
		}
	}
	return result
}

// FilterByName returns sessions whose file name contains the substring.
func FilterByName(sessions []model.Session, name string) []model.Session {
	if name == "" {
		return sessions
	}
	var result []model.Session
	for _, s := range sessions {
		if containsIgnoreCase(s.Name, name) {
			result = append(result, s)
		}
	}
	return result
}

// FilterFailed returns the sessions that could not be converted.
func FilterFailed(sessions []model.Session) []model.Session {
	var result []model.Session
	for _, s := range sessions {
		if !s.OK() {
			result = append(result, s)
		}
	}
	return result
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
