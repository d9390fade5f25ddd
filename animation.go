package reel

// Animation attaches an entrance and/or exit curve to a clip. The curve
// occupies a window of Duration seconds at the clip edge selected by
// Timing; between the windows the clip sits in its steady state.
type Animation struct {
	Kind      AnimationKind   `json:"kind"`
	Duration  float64         `json:"duration"`
	Timing    AnimationTiming `json:"timing,omitempty"`
	Direction Direction       `json:"direction,omitempty"`
	// Overlap selects how enter and exit combine when Timing is both
	// and 2*Duration exceeds the clip length, making the windows
	// overlap mid-clip.
	Overlap OverlapPolicy `json:"overlap,omitempty"`
}

// AnimationTiming selects which clip edge the curve animates.
type AnimationTiming string

const (
	// AnimEnter plays the curve over the first Duration seconds.
	// This is the default.
	AnimEnter AnimationTiming = "enter"
	// AnimExit plays the curve in reverse over the last Duration seconds.
	AnimExit AnimationTiming = "exit"
	// AnimBoth plays enter and exit.
	AnimBoth AnimationTiming = "both"
)

// OverlapPolicy resolves enter and exit contributions when both windows
// cover the same instant.
type OverlapPolicy string

const (
	// OverlapLastWins lets the exit window overwrite the enter window,
	// matching the long-standing editor behavior.
	OverlapLastWins OverlapPolicy = "last_wins"
	// OverlapBlend composes both contributions instead.
	OverlapBlend OverlapPolicy = "blend"
)

// AnimationKind names one member of the closed animation curve set.
type AnimationKind string

const (
	AnimFade       AnimationKind = "fade"
	AnimZoom       AnimationKind = "zoom"
	AnimZoomBounce AnimationKind = "zoom_bounce"
	AnimSlide      AnimationKind = "slide"
	AnimDrop       AnimationKind = "drop"
	AnimRise       AnimationKind = "rise"
	AnimPop        AnimationKind = "pop"
	AnimBounce     AnimationKind = "bounce"
	AnimFlipX      AnimationKind = "flip_x"
	AnimFlipY      AnimationKind = "flip_y"
	AnimStretchH   AnimationKind = "stretch_h"
	AnimStretchV   AnimationKind = "stretch_v"
	AnimShake      AnimationKind = "shake"
	AnimWobble     AnimationKind = "wobble"
	AnimPulse      AnimationKind = "pulse"
	AnimSpin       AnimationKind = "spin"
	AnimBlur       AnimationKind = "blur"
)

// AnimationKinds returns every supported kind in stable order.
func AnimationKinds() []AnimationKind {
	return []AnimationKind{
		AnimFade, AnimZoom, AnimZoomBounce, AnimSlide, AnimDrop, AnimRise,
		AnimPop, AnimBounce, AnimFlipX, AnimFlipY, AnimStretchH,
		AnimStretchV, AnimShake, AnimWobble, AnimPulse, AnimSpin, AnimBlur,
	}
}

// animKey is one breakpoint of a curve: the style contribution at
// normalized position at in [0, 1]. Position 1 is always the steady
// state, so a finished entrance contributes nothing.
type animKey struct {
	at float64
	s  Style
}

// animTrack is a curve: an easing applied to window progress, then
// piecewise-linear interpolation through the breakpoints.
type animTrack struct {
	ease Easing
	keys []animKey
}

// evalAt interpolates the track at eased position k in [0, 1].
func (tr animTrack) evalAt(k float64) Style {
	keys := tr.keys
	if len(keys) == 0 {
		return NeutralStyle()
	}
	if k <= keys[0].at {
		return keys[0].s
	}
	for i := 1; i < len(keys); i++ {
		if k <= keys[i].at {
			a, b := keys[i-1], keys[i]
			span := b.at - a.at
			if span <= 0 {
				return b.s
			}
			return styleLerp(a.s, b.s, (k-a.at)/span)
		}
	}
	return keys[len(keys)-1].s
}

// styleLerp interpolates every numeric style field. Curves do not use
// masks or visibility, so those carry over from a.
func styleLerp(a, b Style, t float64) Style {
	a.Opacity = lerp(a.Opacity, b.Opacity, t)
	a.TX = lerp(a.TX, b.TX, t)
	a.TY = lerp(a.TY, b.TY, t)
	a.ScaleX = lerp(a.ScaleX, b.ScaleX, t)
	a.ScaleY = lerp(a.ScaleY, b.ScaleY, t)
	a.Rotation = lerp(a.Rotation, b.Rotation, t)
	a.Brightness = lerp(a.Brightness, b.Brightness, t)
	a.Contrast = lerp(a.Contrast, b.Contrast, t)
	a.Saturation = lerp(a.Saturation, b.Saturation, t)
	a.Hue = lerp(a.Hue, b.Hue, t)
	a.Sepia = lerp(a.Sepia, b.Sepia, t)
	a.Grayscale = lerp(a.Grayscale, b.Grayscale, t)
	a.Invert = lerp(a.Invert, b.Invert, t)
	a.Blur = lerp(a.Blur, b.Blur, t)
	a.Tint = lerp(a.Tint, b.Tint, t)
	a.TintColor = a.TintColor.Lerp(b.TintColor, t)
	return a
}

// key builds a breakpoint from a neutral style modified by fn.
func key(at float64, fn func(*Style)) animKey {
	s := NeutralStyle()
	fn(&s)
	return animKey{at: at, s: s}
}

// neutralKey is the mandatory settling breakpoint at position 1.
var neutralKey = animKey{at: 1, s: NeutralStyle()}

var animTracks = map[AnimationKind]animTrack{
	AnimFade: {ease: EaseInOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0 }),
		neutralKey,
	}},
	AnimZoom: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.ScaleX = 0.5; s.ScaleY = 0.5 }),
		neutralKey,
	}},
	AnimZoomBounce: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.ScaleX = 0.3; s.ScaleY = 0.3 }),
		key(0.6, func(s *Style) { s.ScaleX = 1.12; s.ScaleY = 1.12 }),
		key(0.85, func(s *Style) { s.ScaleX = 0.95; s.ScaleY = 0.95 }),
		neutralKey,
	}},
	AnimDrop: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.TY = -0.4 }),
		key(0.7, func(s *Style) { s.TY = 0.04 }),
		neutralKey,
	}},
	AnimRise: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.TY = 0.4 }),
		key(0.7, func(s *Style) { s.TY = -0.04 }),
		neutralKey,
	}},
	AnimPop: {ease: EaseOutBack, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.ScaleX = 0.01; s.ScaleY = 0.01 }),
		key(0.7, func(s *Style) { s.ScaleX = 1.15; s.ScaleY = 1.15 }),
		neutralKey,
	}},
	AnimBounce: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.TY = -0.25 }),
		key(0.4, func(s *Style) { s.TY = 0.06 }),
		key(0.65, func(s *Style) { s.TY = -0.03 }),
		key(0.85, func(s *Style) { s.TY = 0.012 }),
		neutralKey,
	}},
	AnimFlipX: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.ScaleX = 0.01 }),
		neutralKey,
	}},
	AnimFlipY: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.ScaleY = 0.01 }),
		neutralKey,
	}},
	AnimStretchH: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.ScaleX = 1.8 }),
		neutralKey,
	}},
	AnimStretchV: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.ScaleY = 1.8 }),
		neutralKey,
	}},
	AnimShake: {ease: EaseLinear, keys: []animKey{
		key(0, func(s *Style) { s.TX = -0.03 }),
		key(0.25, func(s *Style) { s.TX = 0.025 }),
		key(0.5, func(s *Style) { s.TX = -0.015 }),
		key(0.75, func(s *Style) { s.TX = 0.008 }),
		neutralKey,
	}},
	AnimWobble: {ease: EaseLinear, keys: []animKey{
		key(0, func(s *Style) { s.Rotation = -8 }),
		key(0.33, func(s *Style) { s.Rotation = 6 }),
		key(0.66, func(s *Style) { s.Rotation = -3 }),
		neutralKey,
	}},
	AnimPulse: {ease: EaseInOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0.6; s.ScaleX = 0.92; s.ScaleY = 0.92 }),
		key(0.5, func(s *Style) { s.ScaleX = 1.06; s.ScaleY = 1.06 }),
		neutralKey,
	}},
	AnimSpin: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.Rotation = -180 }),
		neutralKey,
	}},
	AnimBlur: {ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.Blur = 6 }),
		neutralKey,
	}},
}

// slideTrack builds the direction-dependent slide entrance.
func slideTrack(dir Direction) animTrack {
	mx, my := dirMotion(dir)
	return animTrack{ease: EaseOutCubic, keys: []animKey{
		key(0, func(s *Style) { s.Opacity = 0; s.TX = -mx * 0.3; s.TY = -my * 0.3 }),
		neutralKey,
	}}
}

// trackFor resolves the curve for an animation. Unknown kinds resolve to
// no curve, so a timeline from a newer serializer degrades to a plain
// clip instead of failing.
func trackFor(a *Animation) (animTrack, bool) {
	if a.Kind == AnimSlide {
		return slideTrack(a.Direction), true
	}
	tr, ok := animTracks[a.Kind]
	return tr, ok
}

// AnimationStyle computes the clip's animation contribution at timeline
// time t. The curve position runs 0 -> 1 over the enter window and
// 1 -> 0 over the exit window; position 1 is the steady state, so a clip
// between windows, or with no animation at all, gets a neutral result.
func AnimationStyle(c *Clip, t float64) Style {
	a := c.Animation
	if a == nil || a.Duration <= 0 || c.Duration <= 0 {
		return NeutralStyle()
	}
	track, ok := trackFor(a)
	if !ok {
		return NeutralStyle()
	}

	d := a.Duration
	if d > c.Duration {
		d = c.Duration
	}
	local := c.LocalTime(t)

	timing := a.Timing
	if timing == "" {
		timing = AnimEnter
	}

	out := NeutralStyle()
	entered := false
	if (timing == AnimEnter || timing == AnimBoth) && local < d {
		out = track.evalAt(track.ease(local / d))
		entered = true
	}
	if (timing == AnimExit || timing == AnimBoth) && local > c.Duration-d {
		exit := track.evalAt(track.ease((c.Duration - local) / d))
		if entered && a.Overlap == OverlapBlend {
			return out.Apply(exit)
		}
		// Overlapping windows: the exit contribution wins.
		return exit
	}
	return out
}
