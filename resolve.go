package reel

// LayerRole distinguishes the two sides of an active transition.
type LayerRole int

const (
	// RoleMain is the layer that owns the instant: the steady clip, or
	// the incoming side of a transition.
	RoleMain LayerRole = iota
	// RoleOutgoing is the clip being replaced. It renders directly below
	// its incoming counterpart.
	RoleOutgoing
)

func (r LayerRole) String() string {
	if r == RoleOutgoing {
		return "outgoing"
	}
	return "main"
}

// Layer is one resolved entry of the draw list at a given instant.
// Transition and Progress are set only while a transition window is
// active; steady layers carry a nil Transition and zero Progress.
type Layer struct {
	Clip  *Clip
	Track *Track
	Role  LayerRole
	Z     int

	Transition *Transition
	Progress   float64
}

// earlyEmitWindow is the lookahead for the boundary fallback: when no
// clip contains the instant but one starts within this many seconds, it
// is emitted early. Guards against a blank frame when floating-point
// arithmetic opens a hairline gap between adjacent clips.
const earlyEmitWindow = 0.05

// ResolveLayers computes the ordered draw list for an instant: which
// clips are visible or audible at time t and in what stacking order.
//
// Video tracks come first (in slice order), then overlay tracks, so
// overlays always stack above base video. Each visual track contributes
// at most two layers: its current clip, plus the outgoing clip while a
// transition between adjacent clips is in progress, emitted directly
// below the incoming one. Audio tracks contribute every clip covering
// the instant.
//
// The resolver never fails: malformed input degrades. Zero-duration
// clips are invisible, overlapping clips on a visual track resolve
// first-match-wins, and transitions with non-positive durations never
// activate.
func ResolveLayers(tracks []*Track, t float64) []Layer {
	var layers []Layer
	z := 0

	appendTrack := func(tr *Track) {
		layers = resolveVisualTrack(layers, tr, t, &z)
	}
	for _, tr := range tracks {
		if tr.Kind == TrackVideo && !tr.Hidden {
			appendTrack(tr)
		}
	}
	for _, tr := range tracks {
		if tr.Kind == TrackOverlay && !tr.Hidden {
			appendTrack(tr)
		}
	}

	for _, tr := range tracks {
		if tr.Kind != TrackAudio || tr.Hidden {
			continue
		}
		for _, c := range tr.Clips {
			if c.Duration <= 0 || !c.Contains(t) {
				continue
			}
			layers = append(layers, Layer{Clip: c, Track: tr, Role: RoleMain, Z: z})
			z++
		}
	}
	return layers
}

// resolveVisualTrack appends the track's layers for time t.
func resolveVisualTrack(layers []Layer, tr *Track, t float64, z *int) []Layer {
	clips := tr.Clips

	// Main item: first usable clip containing the instant.
	mainIdx := -1
	for i, c := range clips {
		if c.Duration > 0 && c.Contains(t) {
			mainIdx = i
			break
		}
	}

	// Next item: the main item's immediate successor, or with no main
	// item the first clip starting after the instant.
	nextIdx := -1
	if mainIdx >= 0 {
		nextIdx = nextUsable(clips, mainIdx)
	} else {
		for i, c := range clips {
			if c.Duration > 0 && c.Start > t {
				nextIdx = i
				break
			}
		}
	}

	emit := func(c *Clip, role LayerRole, trans *Transition, prog float64) {
		layers = append(layers, Layer{
			Clip: c, Track: tr, Role: role, Z: *z,
			Transition: trans, Progress: prog,
		})
		*z++
	}

	// The main item's own transition window. Postfix and overlap timings
	// keep it active after the clip starts; the previous clip re-enters
	// as the outgoing side.
	if mainIdx >= 0 {
		main := clips[mainIdx]
		if main.Transition.Active(main.Start, t) {
			prog := main.Transition.ProgressAt(main.Start, t)
			if prevIdx := prevUsable(clips, mainIdx); prevIdx >= 0 {
				emit(clips[prevIdx], RoleOutgoing, main.Transition, prog)
			}
			emit(main, RoleMain, main.Transition, prog)
			return layers
		}
	}

	// The next item's transition window. Prefix and overlap timings open
	// before the clip starts, so the successor becomes the incoming
	// layer while the current clip is still playing.
	if nextIdx >= 0 {
		next := clips[nextIdx]
		if t < next.Start && next.Transition.Active(next.Start, t) {
			prog := next.Transition.ProgressAt(next.Start, t)
			if mainIdx >= 0 {
				emit(clips[mainIdx], RoleOutgoing, next.Transition, prog)
			}
			emit(next, RoleMain, next.Transition, prog)
			return layers
		}
	}

	if mainIdx >= 0 {
		emit(clips[mainIdx], RoleMain, nil, 0)
		return layers
	}

	// Boundary fallback: render an imminent clip early instead of
	// flashing an empty frame.
	if nextIdx >= 0 {
		next := clips[nextIdx]
		if next.Start-t <= earlyEmitWindow {
			emit(next, RoleMain, nil, 0)
		}
	}
	return layers
}

// prevUsable returns the index of the nearest usable clip before i,
// or -1.
func prevUsable(clips []*Clip, i int) int {
	for j := i - 1; j >= 0; j-- {
		if clips[j].Duration > 0 {
			return j
		}
	}
	return -1
}

// nextUsable returns the index of the nearest usable clip after i,
// or -1.
func nextUsable(clips []*Clip, i int) int {
	for j := i + 1; j < len(clips); j++ {
		if clips[j].Duration > 0 {
			return j
		}
	}
	return -1
}
