package reel

import "fmt"

// Problem describes one defect found in a timeline. The engine renders
// malformed timelines anyway, degrading per the documented rules; hosts
// use Validate to surface the defects to the user instead of silently
// shipping them.
type Problem struct {
	TrackID string
	ClipID  string
	Msg     string
}

func (p Problem) String() string {
	switch {
	case p.ClipID != "":
		return fmt.Sprintf("track %s, clip %s: %s", p.TrackID, p.ClipID, p.Msg)
	case p.TrackID != "":
		return fmt.Sprintf("track %s: %s", p.TrackID, p.Msg)
	default:
		return p.Msg
	}
}

// Validate inspects the timeline and reports everything the renderer
// will have to degrade around. It never mutates the timeline and an
// empty result means the timeline is clean.
func (tl *Timeline) Validate() []Problem {
	var probs []Problem
	add := func(trackID, clipID, msg string) {
		probs = append(probs, Problem{TrackID: trackID, ClipID: clipID, Msg: msg})
	}

	for _, tr := range tl.Tracks {
		switch tr.Kind {
		case TrackVideo, TrackOverlay, TrackAudio:
		default:
			add(tr.ID, "", fmt.Sprintf("unknown track kind %q; treated as video", tr.Kind))
		}

		var prev *Clip
		for _, c := range tr.Clips {
			if c.Duration <= 0 {
				add(tr.ID, c.ID, "non-positive duration; clip is invisible")
			}
			if c.Start < 0 {
				add(tr.ID, c.ID, "negative start time")
			}
			if c.Speed < 0 {
				add(tr.ID, c.ID, "negative speed; treated as 1")
			}
			switch c.Blend {
			case "", "normal", "multiply", "screen", "overlay":
			default:
				add(tr.ID, c.ID, fmt.Sprintf("unknown blend mode %q; treated as normal", c.Blend))
			}

			if tr.Kind != TrackAudio && prev != nil && c.Start < prev.End() && c.Duration > 0 && prev.Duration > 0 {
				add(tr.ID, c.ID, fmt.Sprintf("overlaps clip %s; first match wins during overlap", prev.ID))
			}

			if c.Transition != nil {
				if c.Transition.Duration <= 0 {
					add(tr.ID, c.ID, "non-positive transition duration; transition ignored")
				}
				if _, ok := transitionTable[c.Transition.Kind]; !ok {
					add(tr.ID, c.ID, fmt.Sprintf("unknown transition kind %q; renders as dissolve", c.Transition.Kind))
				}
			}
			if c.Animation != nil && c.Animation.Duration > 0 {
				if _, ok := trackFor(c.Animation); !ok {
					add(tr.ID, c.ID, fmt.Sprintf("unknown animation kind %q; ignored", c.Animation.Kind))
				}
			}

			if c.Kind == MediaText && (c.Text == nil || c.Text.Content == "") {
				add(tr.ID, c.ID, "text clip without content")
			}
			if tr.Kind == TrackAudio && c.Kind != MediaAudio && c.Kind != MediaVideo {
				add(tr.ID, c.ID, fmt.Sprintf("media kind %q on an audio track contributes nothing", c.Kind))
			}

			if c.Duration > 0 {
				prev = c
			}
		}
	}
	return probs
}
