package pipeline

import (
	"errors"
	"testing"

	"github.com/theaxonlab/physioevents/internal/model"
)

func TestSummarize(t *testing.T) {
	s := model.Session{
		Name: "qct.log",
		Task: model.TaskQualityControl,
		Table: model.EventTable{Records: []model.EventRecord{
			rec(10, 3, model.TrialBlank),
			rec(4, 5, model.TrialMotor),
			rec(20, 3, model.TrialBlank),
		}},
	}

	sum := Summarize(s)
	if sum.Events != 3 || sum.TrialTypes != 2 {
		t.Errorf("Events/TrialTypes = %d/%d", sum.Events, sum.TrialTypes)
	}
	if sum.FirstOnset != 4 || sum.LastOffset != 23 {
		t.Errorf("FirstOnset/LastOffset = %v/%v, want 4/23", sum.FirstOnset, sum.LastOffset)
	}
	if sum.Counts[model.TrialBlank] != 2 {
		t.Errorf("Counts = %v", sum.Counts)
	}

	failed := Summarize(model.Session{Name: "bad.log", Err: errors.New("boom")})
	if failed.Error != "boom" || failed.Events != 0 {
		t.Errorf("failed summary = %+v", failed)
	}
}

func TestAggregateTasksAndFilters(t *testing.T) {
	sessions := []model.Session{
		{Name: "rest.log", Task: model.TaskRest, Table: model.EventTable{Records: []model.EventRecord{rec(0, 1200, model.TrialMovie)}}},
		{Name: "Control.log", Task: model.TaskQualityControl, Table: model.EventTable{Records: []model.EventRecord{rec(0, 3, model.TrialBlank), rec(3, 3, model.TrialVisual)}}},
		{Name: "aborted.log", Err: errors.New("aborted")},
	}

	tasks := AggregateTasks(sessions)
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	if tasks[0].Task != model.TaskQualityControl || tasks[0].Events != 2 {
		t.Errorf("tasks[0] = %+v", tasks[0])
	}
	if tasks[2].Task != model.TaskUnknown || tasks[2].Failed != 1 {
		t.Errorf("tasks[2] = %+v", tasks[2])
	}

	if got := FilterByTask(sessions, model.TaskRest); len(got) != 1 || got[0].Name != "rest.log" {
		t.Errorf("FilterByTask = %+v", got)
	}
	if got := FilterByName(sessions, "control"); len(got) != 1 {
		t.Errorf("FilterByName = %+v", got)
	}
	if got := FilterFailed(sessions); len(got) != 1 || got[0].Name != "aborted.log" {
		t.Errorf("FilterFailed = %+v", got)
	}
}
