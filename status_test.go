package netsuke

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestAccessibleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewAccessibleReporter(&buf)
	r.Report(StageYAML, StageRunning, "")
	r.Report(StageYAML, StageDone, "")
	r.Report(StageIR, StageRunning, "")
	r.Report(StageIR, StageFailed, "boom")

	out := buf.String()
	for _, want := range []string{"yaml parsing: running", "yaml parsing: done", "ir generation: failed: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q, got:\n%s", want, out)
		}
	}
}

func TestSilentReporterDiscardsEverything(t *testing.T) {
	var r SilentReporter
	r.Report(StageIngest, StageRunning, "")
	r.Report(StageIngest, StageDone, "")
}

func TestTimedReporterPrintsSummaryOnSynthesisDone(t *testing.T) {
	var buf bytes.Buffer
	var inner bytes.Buffer
	r := NewTimedReporter(NewAccessibleReporter(&inner), &buf)

	r.Report(StageIngest, StageRunning, "")
	time.Sleep(time.Millisecond)
	r.Report(StageIngest, StageDone, "")
	r.Report(StageSynthesis, StageRunning, "")
	r.Report(StageSynthesis, StageDone, "")

	if !r.done {
		t.Fatal("expected TimedReporter to mark itself done after the synthesis stage completes")
	}
	if !strings.Contains(buf.String(), "stage timings:") {
		t.Errorf("expected a summary, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "total") {
		t.Errorf("expected a total line, got:\n%s", buf.String())
	}
}

func TestAccessibleReporterCloseMarksRunningStageFailed(t *testing.T) {
	var buf bytes.Buffer
	r := NewAccessibleReporter(&buf)
	r.Report(StageIR, StageRunning, "")
	r.Close()

	if !strings.Contains(buf.String(), "ir generation: failed: interrupted") {
		t.Errorf("expected Close to fail the in-progress stage, got:\n%s", buf.String())
	}
}

func TestAccessibleReporterCloseIsNoopWhenNothingRunning(t *testing.T) {
	var buf bytes.Buffer
	r := NewAccessibleReporter(&buf)
	r.Report(StageIR, StageRunning, "")
	r.Report(StageIR, StageDone, "")
	r.Close()

	if strings.Contains(buf.String(), "failed") {
		t.Errorf("Close should be a no-op once the stage completed, got:\n%s", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "500ns"},
		{5 * time.Microsecond, "5.0µs"},
		{5 * time.Millisecond, "5.0ms"},
		{2 * time.Second, "2s"},
		{2500 * time.Millisecond, "2.50s"},
	}
	for _, c := range cases {
		if got := formatDuration(c.d); got != c.want {
			t.Errorf("formatDuration(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}
