package plot

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/theaxonlab/physioevents/internal/model"
)

func sampleTrace(n int) model.Trace {
	var tr model.Trace
	for i := 0; i < n; i++ {
		x := float64(i) / 10
		tr.Time = append(tr.Time, x)
		tr.RB = append(tr.RB, float64(i%20))
		tr.ECG = append(tr.ECG, float64(i%7))
		tr.GA = append(tr.GA, 1)
	}
	return tr
}

func TestRender(t *testing.T) {
	table := model.EventTable{Records: []model.EventRecord{
		{Onset: 1, Duration: 2.7, TrialType: model.TrialBreathIn},
		{Onset: 3.7, Duration: 2.3, TrialType: model.TrialBreathOut},
		{Onset: 6, Duration: 15, TrialType: model.TrialHold},
	}}

	var buf bytes.Buffer
	if err := Render(&buf, sampleTrace(200), table); err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() <= b.Dy() {
		t.Errorf("image %dx%d, want landscape", b.Dx(), b.Dy())
	}
}

func TestRender_EmptyTrace(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, model.Trace{}, model.EventTable{}); err == nil {
		t.Error("expected error for empty trace")
	}
}

func TestDecimate(t *testing.T) {
	tr := sampleTrace(maxPoints*3 + 5)
	pts := decimate(tr.Time, tr.RB)
	if len(pts) > maxPoints+1 {
		t.Errorf("got %d points, want at most %d", len(pts), maxPoints+1)
	}
	if pts[0].X != 0 {
		t.Errorf("first point X = %v, want 0", pts[0].X)
	}

	lo, hi := bounds(decimate(tr.Time, tr.GA))
	if lo != 1 || hi != 2 {
		t.Errorf("flat bounds = %v, %v, want 1, 2", lo, hi)
	}
}
