// Copyright 2016 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package netsuke

import (
	"fmt"
	"io"
	"os"
	"time"
)

// StageState is where one stage of the pipeline currently stands, reported
// to a Reporter before and after each stage runs (spec.md §4.8).
type StageState int

const (
	StagePending StageState = iota
	StageRunning
	StageDone
	StageFailed
)

// Reporter is notified as the six-stage pipeline progresses. Exactly one
// StageRunning report precedes a StageDone/StageFailed report for each
// stage; the pipeline orchestrator (pipeline.go) is the sole caller.
type Reporter interface {
	Report(stage Stage, state StageState, detail string)
}

// AccessibleReporter prints one labelled line per stage transition to w,
// with no cursor movement or overwriting — the right default when output
// isn't an interactive terminal, or for screen readers (spec.md §4.8).
type AccessibleReporter struct {
	w          io.Writer
	running    Stage
	hasRunning bool
}

func NewAccessibleReporter(w io.Writer) *AccessibleReporter { return &AccessibleReporter{w: w} }

func (r *AccessibleReporter) Report(stage Stage, state StageState, detail string) {
	switch state {
	case StageRunning:
		r.running, r.hasRunning = stage, true
		fmt.Fprintf(r.w, "%s: running\n", stage)
	case StageDone:
		r.hasRunning = false
		fmt.Fprintf(r.w, "%s: done\n", stage)
	case StageFailed:
		r.hasRunning = false
		fmt.Fprintf(r.w, "%s: failed: %s\n", stage, detail)
	}
}

// Close marks a still-running stage as failed, the Go-idiomatic stand-in
// for "on drop" cleanup (spec.md §4.8): call it in a defer around Run so a
// panic or other early exit doesn't leave a stage looking perpetually
// in-progress.
func (r *AccessibleReporter) Close() {
	if r.hasRunning {
		r.Report(r.running, StageFailed, "interrupted")
	}
}

// SilentReporter discards every report, for embedding Netsuke as a library
// where the caller owns its own progress UI.
type SilentReporter struct{}

func (SilentReporter) Report(Stage, StageState, string) {}

// TerminalReporter overprints a single status line per stage using a
// carriage return, the same technique the teacher's line printer uses to
// avoid scrolling the terminal for every update (maruel-nin's
// line_printer.go); it falls back to AccessibleReporter behaviour whenever
// w isn't a smart terminal.
type TerminalReporter struct {
	w          io.Writer
	smartTerm  bool
	haveBlank  bool
	fallback   *AccessibleReporter
	running    Stage
	hasRunning bool
}

// NewTerminalReporter detects whether w is an interactive terminal by
// checking its file mode, the same signal `isatty` provides, without
// pulling in a platform-specific terminal package the example pack never
// exercises (see DESIGN.md).
func NewTerminalReporter(w io.Writer) *TerminalReporter {
	smart := false
	if f, ok := w.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			smart = info.Mode()&os.ModeCharDevice != 0
		}
	}
	return &TerminalReporter{w: w, smartTerm: smart, haveBlank: true, fallback: NewAccessibleReporter(w)}
}

func (r *TerminalReporter) Report(stage Stage, state StageState, detail string) {
	switch state {
	case StageRunning:
		r.running, r.hasRunning = stage, true
	case StageDone, StageFailed:
		r.hasRunning = false
	}
	if !r.smartTerm {
		r.fallback.Report(stage, state, detail)
		return
	}
	switch state {
	case StageRunning:
		fmt.Fprintf(r.w, "\r[%s] running...\x1b[K", stage)
		r.haveBlank = false
	case StageDone:
		fmt.Fprintf(r.w, "\r[%s] done\x1b[K\n", stage)
		r.haveBlank = true
	case StageFailed:
		fmt.Fprintf(r.w, "\r[%s] FAILED: %s\x1b[K\n", stage, detail)
		r.haveBlank = true
	}
}

// Close marks a still-running stage as failed; see AccessibleReporter.Close.
func (r *TerminalReporter) Close() {
	if r.hasRunning {
		r.Report(r.running, StageFailed, "interrupted")
	}
}

// TimedReporter wraps another Reporter, recording each stage's wall-clock
// duration and printing a summary once the final stage completes. Reports
// received after the summary has been printed are still forwarded to the
// wrapped Reporter (a caller that keeps reporting post-completion, e.g. in
// a test, shouldn't be silently dropped) but no further timing output is
// produced.
type TimedReporter struct {
	inner   Reporter
	w       io.Writer
	order   []Stage
	start   map[Stage]time.Time
	elapsed map[Stage]time.Duration
	done    bool
}

func NewTimedReporter(inner Reporter, w io.Writer) *TimedReporter {
	return &TimedReporter{
		inner:   inner,
		w:       w,
		start:   map[Stage]time.Time{},
		elapsed: map[Stage]time.Duration{},
	}
}

func (r *TimedReporter) Report(stage Stage, state StageState, detail string) {
	r.inner.Report(stage, state, detail)
	if r.done {
		return
	}

	switch state {
	case StageRunning:
		r.start[stage] = time.Now()
		r.order = append(r.order, stage)
	case StageDone, StageFailed:
		if start, ok := r.start[stage]; ok {
			r.elapsed[stage] = time.Since(start)
		}
		if state == StageFailed {
			r.done = true
			return
		}
		if stage == StageSynthesis {
			r.printSummary()
			r.done = true
		}
	}
}

// Close forwards to the wrapped Reporter if it too supports Close,
// completing the "on drop" chain through a TimedReporter wrapper.
func (r *TimedReporter) Close() {
	if c, ok := r.inner.(interface{ Close() }); ok {
		c.Close()
	}
}

func (r *TimedReporter) printSummary() {
	fmt.Fprintln(r.w, "stage timings:")
	var total time.Duration
	for _, stage := range r.order {
		d := r.elapsed[stage]
		total += d
		fmt.Fprintf(r.w, "  %-24s %s\n", stage, formatDuration(d))
	}
	fmt.Fprintf(r.w, "  %-24s %s\n", "total", formatDuration(total))
}

// formatDuration renders d at the coarsest unit that keeps at least one
// significant digit: nanoseconds below a microsecond, microseconds below a
// millisecond, milliseconds below a second, and fractional/whole seconds
// beyond that (spec.md §4.8).
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1e6)
	default:
		secs := d.Seconds()
		if secs == float64(int64(secs)) {
			return fmt.Sprintf("%ds", int64(secs))
		}
		return fmt.Sprintf("%.2fs", secs)
	}
}
