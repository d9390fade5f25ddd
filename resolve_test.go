package reel

import (
	"math"
	"testing"
)

// twoClipTrack builds a video track with clip A on [0,5) and clip B on
// [5,10). Most transition scenarios start here.
func twoClipTrack() (*Track, *Clip, *Clip) {
	a := NewClip(MediaVideo, "a.mp4", 0, 5)
	a.ID = "A"
	b := NewClip(MediaVideo, "b.mp4", 5, 5)
	b.ID = "B"
	tr := &Track{ID: "v1", Kind: TrackVideo, Clips: []*Clip{a, b}}
	return tr, a, b
}

func TestResolveSteadySingleClip(t *testing.T) {
	tr, a, _ := twoClipTrack()
	layers := ResolveLayers([]*Track{tr}, 2.0)
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}
	l := layers[0]
	if l.Clip != a || l.Role != RoleMain || l.Transition != nil || l.Progress != 0 {
		t.Errorf("layer = {clip %s role %v trans %v prog %v}, want steady A",
			l.Clip.ID, l.Role, l.Transition, l.Progress)
	}
}

func TestResolvePostfixTransitionMidWindow(t *testing.T) {
	// Dissolve on B, postfix, 1s: window [5, 6). At t=5.5 both clips are
	// emitted, outgoing below incoming, progress 0.5.
	tr, a, b := twoClipTrack()
	b.Transition = &Transition{Kind: TransDissolve, Duration: 1}

	layers := ResolveLayers([]*Track{tr}, 5.5)
	if len(layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(layers))
	}
	out, in := layers[0], layers[1]
	if out.Clip != a || out.Role != RoleOutgoing {
		t.Errorf("bottom layer = %s/%v, want A/outgoing", out.Clip.ID, out.Role)
	}
	if in.Clip != b || in.Role != RoleMain {
		t.Errorf("top layer = %s/%v, want B/main", in.Clip.ID, in.Role)
	}
	if out.Z >= in.Z {
		t.Errorf("outgoing z=%d not below incoming z=%d", out.Z, in.Z)
	}
	for _, l := range layers {
		if math.Abs(l.Progress-0.5) > 1e-9 {
			t.Errorf("%s progress = %v, want 0.5", l.Clip.ID, l.Progress)
		}
		if l.Transition == nil || l.Transition.Kind != TransDissolve {
			t.Errorf("%s transition = %+v, want dissolve", l.Clip.ID, l.Transition)
		}
	}
}

func TestResolvePrefixTransitionBeforeSuccessorStarts(t *testing.T) {
	// Prefix 1s on B: window [4, 5). At t=4.5, B has not started, but the
	// resolver finds it through A's successor and emits the same pair.
	tr, a, b := twoClipTrack()
	b.Transition = &Transition{Kind: TransDissolve, Duration: 1, Timing: TimingPrefix}

	layers := ResolveLayers([]*Track{tr}, 4.5)
	if len(layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(layers))
	}
	if layers[0].Clip != a || layers[0].Role != RoleOutgoing {
		t.Errorf("bottom layer = %s/%v, want A/outgoing", layers[0].Clip.ID, layers[0].Role)
	}
	if layers[1].Clip != b || layers[1].Role != RoleMain {
		t.Errorf("top layer = %s/%v, want B/main", layers[1].Clip.ID, layers[1].Role)
	}
	if math.Abs(layers[1].Progress-0.5) > 1e-9 {
		t.Errorf("progress = %v, want 0.5", layers[1].Progress)
	}
}

func TestResolveOverlapTransitionStraddlesBoundary(t *testing.T) {
	tr, a, b := twoClipTrack()
	b.Transition = &Transition{Kind: TransWipe, Duration: 2, Timing: TimingOverlap}

	// Window [4, 6). Before the boundary the pair comes from the
	// next-item path, after it from the main-item path.
	for _, tt := range []struct {
		t        float64
		wantProg float64
	}{
		{4.0, 0.0},
		{4.5, 0.25},
		{5.5, 0.75},
	} {
		layers := ResolveLayers([]*Track{tr}, tt.t)
		if len(layers) != 2 {
			t.Fatalf("t=%v: got %d layers, want 2", tt.t, len(layers))
		}
		if layers[0].Clip != a || layers[1].Clip != b {
			t.Errorf("t=%v: pair = %s,%s, want A,B", tt.t, layers[0].Clip.ID, layers[1].Clip.ID)
		}
		if math.Abs(layers[1].Progress-tt.wantProg) > 1e-9 {
			t.Errorf("t=%v: progress = %v, want %v", tt.t, layers[1].Progress, tt.wantProg)
		}
	}

	// At window end the transition is over: B alone, steady.
	layers := ResolveLayers([]*Track{tr}, 6.0)
	if len(layers) != 1 || layers[0].Clip != b || layers[0].Transition != nil {
		t.Errorf("t=6: got %+v, want steady B", layers)
	}
}

func TestResolveTransitionEndsCleanly(t *testing.T) {
	tr, _, b := twoClipTrack()
	b.Transition = &Transition{Kind: TransDissolve, Duration: 1}

	layers := ResolveLayers([]*Track{tr}, 6.0)
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1 after window closes", len(layers))
	}
	if layers[0].Clip != b || layers[0].Transition != nil {
		t.Errorf("layer = %s trans %v, want steady B", layers[0].Clip.ID, layers[0].Transition)
	}
}

func TestResolveNoGapAtExactBoundary(t *testing.T) {
	// Adjacent clips, no transition: every instant resolves to exactly
	// one clip, including the shared boundary.
	tr, a, b := twoClipTrack()
	for _, tt := range []struct {
		t    float64
		want *Clip
	}{
		{0, a}, {4.999999, a}, {5, b}, {9.999, b},
	} {
		layers := ResolveLayers([]*Track{tr}, tt.t)
		if len(layers) != 1 || layers[0].Clip != tt.want {
			t.Errorf("t=%v: got %d layers (first %v), want only %s",
				tt.t, len(layers), firstID(layers), tt.want.ID)
		}
	}
}

func firstID(layers []Layer) string {
	if len(layers) == 0 {
		return "<none>"
	}
	return layers[0].Clip.ID
}

func TestResolveEarlyEmitWithinWindow(t *testing.T) {
	// A gap of 30ms before the clip: the resolver emits it early rather
	// than flashing an empty frame.
	c := NewClip(MediaVideo, "a.mp4", 1.0, 2)
	tr := &Track{ID: "v1", Kind: TrackVideo, Clips: []*Clip{c}}

	layers := ResolveLayers([]*Track{tr}, 0.97)
	if len(layers) != 1 || layers[0].Clip != c {
		t.Fatalf("t=0.97: got %d layers, want early-emitted clip", len(layers))
	}

	// 200ms out is a real gap, not a boundary artifact.
	layers = ResolveLayers([]*Track{tr}, 0.8)
	if len(layers) != 0 {
		t.Errorf("t=0.8: got %d layers, want none", len(layers))
	}
}

func TestResolveZeroDurationClipSkipped(t *testing.T) {
	ghost := NewClip(MediaVideo, "ghost.mp4", 1, 0)
	real := NewClip(MediaVideo, "real.mp4", 0, 5)
	tr := &Track{ID: "v1", Kind: TrackVideo, Clips: []*Clip{real, ghost}}

	layers := ResolveLayers([]*Track{tr}, 1.0)
	if len(layers) != 1 || layers[0].Clip != real {
		t.Errorf("zero-duration clip leaked into layers: %+v", layers)
	}
}

func TestResolveOverlapFirstMatchWins(t *testing.T) {
	// Overlapping clips on a video track are malformed; the earlier one
	// wins for the overlapping span.
	first := NewClip(MediaVideo, "first.mp4", 0, 5)
	first.ID = "first"
	second := NewClip(MediaVideo, "second.mp4", 3, 5)
	second.ID = "second"
	tr := &Track{ID: "v1", Kind: TrackVideo, Clips: []*Clip{first, second}}

	layers := ResolveLayers([]*Track{tr}, 4.0)
	if len(layers) != 1 || layers[0].Clip != first {
		t.Errorf("t=4: got %v, want first-match clip", firstID(layers))
	}
	layers = ResolveLayers([]*Track{tr}, 6.0)
	if len(layers) != 1 || layers[0].Clip != second {
		t.Errorf("t=6: got %v, want second clip", firstID(layers))
	}
}

func TestResolveHiddenTrackSkipped(t *testing.T) {
	tr, _, _ := twoClipTrack()
	tr.Hidden = true
	if layers := ResolveLayers([]*Track{tr}, 2.0); len(layers) != 0 {
		t.Errorf("hidden track emitted %d layers", len(layers))
	}
}

func TestResolveOverlayAboveVideo(t *testing.T) {
	video := NewClip(MediaVideo, "base.mp4", 0, 10)
	sticker := NewClip(MediaImage, "sticker.png", 0, 10)
	tracks := []*Track{
		{ID: "ov", Kind: TrackOverlay, Clips: []*Clip{sticker}},
		{ID: "v1", Kind: TrackVideo, Clips: []*Clip{video}},
	}

	// Overlay listed first in the slice still stacks above the video.
	layers := ResolveLayers(tracks, 1.0)
	if len(layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(layers))
	}
	if layers[0].Clip != video || layers[1].Clip != sticker {
		t.Errorf("order = %s,%s, want video below overlay", layers[0].Clip.ID, layers[1].Clip.ID)
	}
	if layers[0].Z >= layers[1].Z {
		t.Errorf("video z=%d not below overlay z=%d", layers[0].Z, layers[1].Z)
	}
}

func TestResolveAudioEmitsAllCoveringClips(t *testing.T) {
	music := NewClip(MediaAudio, "music.mp3", 0, 60)
	voice := NewClip(MediaAudio, "voice.wav", 2, 10)
	late := NewClip(MediaAudio, "late.wav", 30, 5)
	tr := &Track{ID: "a1", Kind: TrackAudio, Clips: []*Clip{music, voice, late}}

	layers := ResolveLayers([]*Track{tr}, 5.0)
	if len(layers) != 2 {
		t.Fatalf("t=5: got %d audio layers, want 2 (music+voice)", len(layers))
	}
	for _, l := range layers {
		if l.Role != RoleMain || l.Transition != nil {
			t.Errorf("audio layer %s: role %v trans %v, want plain main", l.Clip.Source, l.Role, l.Transition)
		}
	}
}

func TestResolveNonPositiveTransitionDurationIgnored(t *testing.T) {
	tr, _, b := twoClipTrack()
	b.Transition = &Transition{Kind: TransDissolve, Duration: 0}

	layers := ResolveLayers([]*Track{tr}, 5.0)
	if len(layers) != 1 || layers[0].Transition != nil {
		t.Errorf("zero-duration transition activated: %+v", layers)
	}
}

func TestResolveTransitionWithoutPredecessor(t *testing.T) {
	// First clip of a track with a postfix transition: no outgoing side
	// exists, the incoming clip still gets its progress.
	a := NewClip(MediaVideo, "a.mp4", 0, 5)
	a.Transition = &Transition{Kind: TransIrisCircle, Duration: 1}
	tr := &Track{ID: "v1", Kind: TrackVideo, Clips: []*Clip{a}}

	layers := ResolveLayers([]*Track{tr}, 0.5)
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}
	l := layers[0]
	if l.Role != RoleMain || l.Transition == nil || math.Abs(l.Progress-0.5) > 1e-9 {
		t.Errorf("layer = role %v prog %v, want main at progress 0.5", l.Role, l.Progress)
	}
}

func TestTransitionWindows(t *testing.T) {
	tests := []struct {
		name      string
		timing    TransitionTiming
		wantStart float64
		wantEnd   float64
	}{
		{"postfix", TimingPostfix, 10, 12},
		{"default is postfix", "", 10, 12},
		{"prefix", TimingPrefix, 8, 10},
		{"overlap", TimingOverlap, 9, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Transition{Kind: TransDissolve, Duration: 2, Timing: tt.timing}
			start, end := tr.Window(10)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Window(10) = [%v, %v), want [%v, %v)", start, end, tt.wantStart, tt.wantEnd)
			}
			// Half-open: active at start, inactive at end.
			if !tr.Active(10, tt.wantStart) {
				t.Errorf("Active at window start = false, want true")
			}
			if tr.Active(10, tt.wantEnd) {
				t.Errorf("Active at window end = true, want false")
			}
		})
	}
}

func TestTransitionProgressClamped(t *testing.T) {
	tr := &Transition{Kind: TransDissolve, Duration: 2}
	if got := tr.ProgressAt(10, 5); got != 0 {
		t.Errorf("progress before window = %v, want 0", got)
	}
	if got := tr.ProgressAt(10, 50); got != 1 {
		t.Errorf("progress after window = %v, want 1", got)
	}
	if got := tr.ProgressAt(10, 11); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("mid-window progress = %v, want 0.5", got)
	}
}
