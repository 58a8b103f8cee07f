package source

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/theaxonlab/physioevents/internal/config"
	"github.com/theaxonlab/physioevents/internal/model"
)

// physioRows builds headerless TSV rows: time, RB, ECG, GA, then digital channels.
func physioRows(rows ...string) string {
	return strings.Join(rows, "\n") + "\n"
}

func TestParseChannels_BreathHolding(t *testing.T) {
	layout := config.DefaultChannels()["bht"]
	data := physioRows(
		"0.0\t0.1\t0.2\t0.3\t0\t0\t0\t0",
		"1.0\t0.1\t0.2\t0.3\t0\t0\t5\t0",
		"1.5\t0.1\t0.2\t0.3\t0\t0\t5\t0",
		"2.0\t0.1\t0.2\t0.3\t0\t0\t0\t0",
		"3.0\t0.1\t0.2\t0.3\t0\t0\t5\t5",
	)

	res, err := ParseChannels(strings.NewReader(data), layout)
	if err != nil {
		t.Fatalf("ParseChannels: %v", err)
	}

	want := []model.EventRecord{
		{Onset: 1.0, Duration: 2.7, TrialType: "breath-in"},
		{Onset: 3.7, Duration: 2.3, TrialType: "breath-out"},
		{Onset: 3.0, Duration: 2.7, TrialType: "breath-in"},
		{Onset: 5.7, Duration: 2.3, TrialType: "breath-out"},
		{Onset: 3.0, Duration: 15, TrialType: "hold"},
	}
	if !reflect.DeepEqual(res.Table.Records, want) {
		t.Errorf("Records = %+v\nwant %+v", res.Table.Records, want)
	}
	if res.Table.HasValue {
		t.Error("channel tables carry no value column")
	}
	if res.Trace.Len() != 5 {
		t.Errorf("Trace.Len = %d, want 5", res.Trace.Len())
	}
	if got := res.Table.Fields(res.Table.Records[1])[0]; got != "3.7" {
		t.Errorf("onset written as %q, want 3.7", got)
	}
}

func TestParseChannels_MinTimeAndBadRows(t *testing.T) {
	layout := config.DefaultChannels()["qct"]
	data := physioRows(
		"0.5\t0\t0\t0\t0\t0\t5\t0\t0",
		"not\ta\tnumber\t0\t0\t0\t0\t0\t0",
		"0.8\t0\t0",
		"",
		"1.0\t0\t0\t0\t0\t0\t5\t0\t5",
		"1.1\t0\t0\t0\t0\t0\t5\t0\t5",
	)

	res, err := ParseChannels(strings.NewReader(data), layout)
	if err != nil {
		t.Fatalf("ParseChannels: %v", err)
	}
	if res.ParseErrors != 2 {
		t.Errorf("ParseErrors = %d, want 2", res.ParseErrors)
	}

	want := []model.EventRecord{
		{Onset: 1.0, Duration: 3, TrialType: "vis"},
		{Onset: 1.0, Duration: 5, TrialType: "motor"},
	}
	if !reflect.DeepEqual(res.Table.Records, want) {
		t.Errorf("Records = %+v, want %+v", res.Table.Records, want)
	}
	if res.Trace.Len() != 3 {
		t.Errorf("Trace.Len = %d, want 3 (samples before min time are kept)", res.Trace.Len())
	}
}

func TestParseChannels_NoRules(t *testing.T) {
	_, err := ParseChannels(strings.NewReader("0\t0\t0\t0\n"), config.ChannelTask{})
	if !errors.Is(err, ErrUnknownTask) {
		t.Errorf("err = %v, want ErrUnknownTask", err)
	}
}

func TestParseChannelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub-001_task-rest_physio.tsv.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(physioRows(
		"0.0\t0\t0\t0\t0",
		"12.0\t0\t0\t0\t5",
		"13.0\t0\t0\t0\t5",
	))); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	res, err := ParseChannelsFile(path, config.DefaultChannels()["rest"])
	if err != nil {
		t.Fatalf("ParseChannelsFile: %v", err)
	}
	want := []model.EventRecord{{Onset: 12.0, Duration: 1200, TrialType: model.TrialMovie}}
	if !reflect.DeepEqual(res.Table.Records, want) {
		t.Errorf("Records = %+v, want %+v", res.Table.Records, want)
	}

	plain := filepath.Join(t.TempDir(), "plain_physio.tsv.gz")
	if err := os.WriteFile(plain, []byte("0.0\t0\t0\t0\t0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseChannelsFile(plain, config.DefaultChannels()["rest"]); err == nil {
		t.Error("expected error for a file that is not gzipped")
	}
}
