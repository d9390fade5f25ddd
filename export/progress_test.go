// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import "testing"

func TestReporterThrottlesWithinPhase(t *testing.T) {
	var got []Progress
	rep := newReporter(func(p Progress) { got = append(got, p) })

	rep.report(Progress{Phase: PhaseRendering, Percent: 10.2})
	rep.report(Progress{Phase: PhaseRendering, Percent: 10.4})
	rep.report(Progress{Phase: PhaseRendering, Percent: 10.9})
	rep.report(Progress{Phase: PhaseRendering, Percent: 11.1})

	if len(got) != 2 {
		t.Fatalf("got %d reports, want 2: %+v", len(got), got)
	}
	if got[0].Percent != 10.2 || got[1].Percent != 11.1 {
		t.Errorf("percents = %v, %v, want 10.2, 11.1", got[0].Percent, got[1].Percent)
	}
}

func TestReporterPhaseChangeAlwaysEmits(t *testing.T) {
	var got []Progress
	rep := newReporter(func(p Progress) { got = append(got, p) })

	rep.report(Progress{Phase: PhaseRendering, Percent: 85})
	rep.report(Progress{Phase: PhaseEncoding, Percent: 85})
	rep.report(Progress{Phase: PhaseFinalizing, Percent: 97})
	rep.report(Progress{Phase: PhaseComplete, Percent: 100})

	if len(got) != 4 {
		t.Fatalf("got %d reports, want 4", len(got))
	}
	phases := []Phase{PhaseRendering, PhaseEncoding, PhaseFinalizing, PhaseComplete}
	for i, want := range phases {
		if got[i].Phase != want {
			t.Errorf("report %d phase = %v, want %v", i, got[i].Phase, want)
		}
	}
}

func TestReporterMonotonicPercent(t *testing.T) {
	var got []Progress
	rep := newReporter(func(p Progress) { got = append(got, p) })

	rep.report(Progress{Phase: PhaseRendering, Percent: 42})
	rep.report(Progress{Phase: PhaseRendering, Percent: 17})
	rep.report(Progress{Phase: PhaseError, Percent: 0, Err: "boom"})

	for i, p := range got {
		if i > 0 && p.Percent < got[i-1].Percent {
			t.Errorf("report %d percent %v went backwards from %v", i, p.Percent, got[i-1].Percent)
		}
	}
	last := got[len(got)-1]
	if last.Phase != PhaseError || last.Err != "boom" {
		t.Errorf("last report = %+v, want error phase with message", last)
	}
	if last.Percent != 42 {
		t.Errorf("error report percent = %v, want carried 42", last.Percent)
	}
}

func TestReporterClampsRange(t *testing.T) {
	var got []Progress
	rep := newReporter(func(p Progress) { got = append(got, p) })

	rep.report(Progress{Phase: PhasePreparing, Percent: -5})
	rep.report(Progress{Phase: PhaseComplete, Percent: 150})

	if got[0].Percent != 0 {
		t.Errorf("first percent = %v, want 0", got[0].Percent)
	}
	if got[1].Percent != 100 {
		t.Errorf("second percent = %v, want 100", got[1].Percent)
	}
}

func TestReporterNilCallback(t *testing.T) {
	rep := newReporter(nil)
	rep.report(Progress{Phase: PhaseRendering, Percent: 50})
	if rep.percent() != 50 {
		t.Errorf("percent() = %v, want 50", rep.percent())
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{PhasePreparing, "preparing"},
		{PhaseRendering, "rendering"},
		{PhaseEncoding, "encoding"},
		{PhaseFinalizing, "finalizing"},
		{PhaseComplete, "complete"},
		{PhaseError, "error"},
		{PhaseCancelled, "cancelled"},
		{Phase(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(tt.p), got, tt.want)
		}
	}
}
