// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

// Phase is where an export run currently is. Phases advance in order;
// Complete, Error and Cancelled are terminal.
type Phase int

const (
	PhasePreparing Phase = iota
	PhaseRendering
	PhaseEncoding
	PhaseFinalizing
	PhaseComplete
	PhaseError
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhasePreparing:
		return "preparing"
	case PhaseRendering:
		return "rendering"
	case PhaseEncoding:
		return "encoding"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Progress is one report from a running job. Percent covers the whole
// job, 0 to 100, and never moves backwards. Err is set when Phase is
// PhaseError.
type Progress struct {
	Phase        Phase
	Percent      float64
	CurrentFrame int
	TotalFrames  int
	Err          string
}

// ProgressFunc receives progress reports. It is called on the Run
// goroutine, so it must not block; a slow consumer should hand the
// value off to its own channel.
type ProgressFunc func(Progress)

// reporter throttles and orders progress reports. Phase changes always
// go out; within a phase a report goes out when the integer percent
// advances, which caps a run at a few hundred callbacks regardless of
// frame count and keeps the stream deterministic. Confined to the Run
// goroutine.
type reporter struct {
	fn    ProgressFunc
	phase Phase
	pct   float64
	sent  bool
}

func newReporter(fn ProgressFunc) *reporter {
	return &reporter{fn: fn}
}

func (r *reporter) report(p Progress) {
	if p.Percent < 0 {
		p.Percent = 0
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	if r.sent {
		// Percent never regresses, even across a phase change.
		if p.Percent < r.pct {
			p.Percent = r.pct
		}
		if p.Phase == r.phase && int(p.Percent) == int(r.pct) {
			return
		}
	}
	r.phase = p.Phase
	r.pct = p.Percent
	r.sent = true
	if r.fn != nil {
		r.fn(p)
	}
}

// percent returns the last reported percent, the floor for terminal
// reports so an error at frame 40 does not show 0%.
func (r *reporter) percent() float64 { return r.pct }
