package reel

import "math"

// Transition describes how a clip replaces its predecessor on the same
// track. The transition is anchored at the start of the clip that owns
// it (the incoming clip); Timing decides where the active window sits
// relative to that anchor.
type Transition struct {
	Kind      TransitionKind   `json:"kind"`
	Duration  float64          `json:"duration"`
	Direction Direction        `json:"direction,omitempty"`
	Timing    TransitionTiming `json:"timing,omitempty"`
}

// TransitionTiming positions the active window around the incoming
// clip's start time.
type TransitionTiming string

const (
	// TimingPostfix runs inside the incoming clip: [start, start+d).
	// This is the default.
	TimingPostfix TransitionTiming = "postfix"
	// TimingPrefix runs entirely before the incoming clip: [start-d, start).
	TimingPrefix TransitionTiming = "prefix"
	// TimingOverlap straddles the boundary: [start-d/2, start+d/2).
	TimingOverlap TransitionTiming = "overlap"
)

// Window returns the half-open active window [start, end) for a
// transition anchored at clipStart.
func (tr *Transition) Window(clipStart float64) (start, end float64) {
	d := tr.Duration
	switch tr.Timing {
	case TimingPrefix:
		return clipStart - d, clipStart
	case TimingOverlap:
		return clipStart - d/2, clipStart + d/2
	default:
		return clipStart, clipStart + d
	}
}

// Active reports whether t falls inside the transition window anchored
// at clipStart. Non-positive durations never activate.
func (tr *Transition) Active(clipStart, t float64) bool {
	if tr == nil || tr.Duration <= 0 {
		return false
	}
	start, end := tr.Window(clipStart)
	return t >= start && t < end
}

// ProgressAt returns the transition progress at time t, clamped to
// [0, 1]. Progress 1 is valid input to the style table: every kind
// resolves to the incoming clip's steady state there, so there is no
// visual gap in the first frame after a transition ends.
func (tr *Transition) ProgressAt(clipStart, t float64) float64 {
	start, end := tr.Window(clipStart)
	if end <= start {
		return 1
	}
	return clamp01((t - start) / (end - start))
}

// TransitionKind names one member of the closed transition set.
// Directional kinds (slide, push, wipe, ...) consume the transition's
// Direction; the rest ignore it.
type TransitionKind string

const (
	TransDissolve   TransitionKind = "dissolve"
	TransFade       TransitionKind = "fade"
	TransDipToBlack TransitionKind = "dip_to_black"
	TransDipToWhite TransitionKind = "dip_to_white"
	TransFlash      TransitionKind = "flash"
	TransBurn       TransitionKind = "burn"

	TransSlide   TransitionKind = "slide"
	TransPush    TransitionKind = "push"
	TransWhip    TransitionKind = "whip"
	TransSqueeze TransitionKind = "squeeze"
	TransStretch TransitionKind = "stretch"

	TransWipe     TransitionKind = "wipe"
	TransBarnDoor TransitionKind = "barn_door"
	TransSplit    TransitionKind = "split"
	TransBlinds   TransitionKind = "blinds"
	TransChecker  TransitionKind = "checker"
	TransClock    TransitionKind = "clock"

	TransIrisCircle  TransitionKind = "iris_circle"
	TransIrisDiamond TransitionKind = "iris_diamond"
	TransIrisBox     TransitionKind = "iris_box"
	TransIrisStar    TransitionKind = "iris_star"
	TransIrisHeart   TransitionKind = "iris_heart"

	TransZoomIn    TransitionKind = "zoom_in"
	TransZoomOut   TransitionKind = "zoom_out"
	TransCrossZoom TransitionKind = "cross_zoom"
	TransSpin      TransitionKind = "spin"
	TransSpinZoom  TransitionKind = "spin_zoom"
	TransFlipX     TransitionKind = "flip_x"
	TransFlipY     TransitionKind = "flip_y"

	TransGlitch   TransitionKind = "glitch"
	TransStatic   TransitionKind = "static"
	TransPixelate TransitionKind = "pixelate"
	TransShake    TransitionKind = "shake"
	TransSwirl    TransitionKind = "swirl"
)

// dipEpsilon keeps a dipped layer's opacity just above zero so the
// compositor never tears down and re-acquires the source mid-dip, which
// would flash the background for a frame.
const dipEpsilon = 0.02

// whipBlur and crossZoomBlur are peak blur radii in percent of canvas
// height; the instantaneous radius scales with sin(p*pi).
const (
	whipBlur      = 4.0
	crossZoomBlur = 5.0
)

type transitionFunc func(dir Direction, p float64, role LayerRole) Style

// transitionTable is the closed dispatch table. Adding a kind means
// adding exactly one entry; the continuity tests pick it up from
// TransitionKinds automatically.
var transitionTable = map[TransitionKind]transitionFunc{
	TransDissolve:    transDissolve,
	TransFade:        transFade,
	TransDipToBlack:  transDipToBlack,
	TransDipToWhite:  transDipToWhite,
	TransFlash:       transFlash,
	TransBurn:        transBurn,
	TransSlide:       transSlide,
	TransPush:        transPush,
	TransWhip:        transWhip,
	TransSqueeze:     transSqueeze,
	TransStretch:     transStretch,
	TransWipe:        transWipe,
	TransBarnDoor:    maskedReveal(MaskBarnDoor, 0.015, 0),
	TransSplit:       transSplit,
	TransBlinds:      maskedReveal(MaskBlinds, 0.004, 8),
	TransChecker:     maskedReveal(MaskChecker, 0.004, 8),
	TransClock:       maskedReveal(MaskClock, 0.01, 0),
	TransIrisCircle:  irisReveal(MaskCircle),
	TransIrisDiamond: irisReveal(MaskDiamond),
	TransIrisBox:     irisReveal(MaskBox),
	TransIrisStar:    irisReveal(MaskStar),
	TransIrisHeart:   irisReveal(MaskHeart),
	TransZoomIn:      transZoomIn,
	TransZoomOut:     transZoomOut,
	TransCrossZoom:   transCrossZoom,
	TransSpin:        transSpin,
	TransSpinZoom:    transSpinZoom,
	TransFlipX:       transFlipX,
	TransFlipY:       transFlipY,
	TransGlitch:      transGlitch,
	TransStatic:      transStatic,
	TransPixelate:    transPixelate,
	TransShake:       transShake,
	TransSwirl:       transSwirl,
}

// TransitionKinds returns every supported kind in stable order.
func TransitionKinds() []TransitionKind {
	return []TransitionKind{
		TransDissolve, TransFade, TransDipToBlack, TransDipToWhite,
		TransFlash, TransBurn,
		TransSlide, TransPush, TransWhip, TransSqueeze, TransStretch,
		TransWipe, TransBarnDoor, TransSplit, TransBlinds, TransChecker,
		TransClock,
		TransIrisCircle, TransIrisDiamond, TransIrisBox, TransIrisStar,
		TransIrisHeart,
		TransZoomIn, TransZoomOut, TransCrossZoom, TransSpin,
		TransSpinZoom, TransFlipX, TransFlipY,
		TransGlitch, TransStatic, TransPixelate, TransShake, TransSwirl,
	}
}

// TransitionStyle computes the style contribution for one side of a
// transition at progress p. Every kind holds the same contract: at p=0
// the outgoing side is untouched and the incoming side contributes
// nothing; at p=1 the roles are exactly swapped. Unknown kinds behave as
// dissolve so a timeline from a newer serializer still renders.
func TransitionStyle(kind TransitionKind, dir Direction, p float64, role LayerRole) Style {
	p = clamp01(p)
	fn, ok := transitionTable[kind]
	if !ok {
		fn = transDissolve
	}
	return fn(dir, p, role)
}

// dirMotion returns the unit motion vector for a direction. The empty
// direction moves left.
func dirMotion(dir Direction) (mx, my float64) {
	switch dir {
	case DirRight:
		return 1, 0
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	default:
		return -1, 0
	}
}

// spinSign maps a direction to a rotation sign.
func spinSign(dir Direction) float64 {
	if dir == DirLeft || dir == DirUp {
		return -1
	}
	return 1
}

// halves splits progress into two sequential phases, each eased over
// its own half of the window.
func halves(p float64) (first, second float64) {
	return EaseInOutCubic(clamp01(2 * p)), EaseInOutCubic(clamp01(2*p - 1))
}

func transDissolve(_ Direction, p float64, role LayerRole) Style {
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - e
	} else {
		s.Opacity = e
	}
	return s
}

func transFade(_ Direction, p float64, role LayerRole) Style {
	out, in := halves(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - out
	} else {
		s.Opacity = in
	}
	return s
}

func dipOpacity(p float64, role LayerRole) float64 {
	out, in := halves(p)
	if role == RoleOutgoing {
		op := 1 - out
		if p < 1 && op < dipEpsilon {
			op = dipEpsilon
		}
		return op
	}
	op := in
	if p > 0 && op < dipEpsilon {
		op = dipEpsilon
	}
	return op
}

func transDipToBlack(_ Direction, p float64, role LayerRole) Style {
	s := NeutralStyle()
	s.Opacity = dipOpacity(p, role)
	return s
}

func transDipToWhite(_ Direction, p float64, role LayerRole) Style {
	out, in := halves(p)
	s := NeutralStyle()
	s.Opacity = dipOpacity(p, role)
	s.TintColor = White
	if role == RoleOutgoing {
		s.Tint = out
	} else {
		s.Tint = 1 - in
	}
	return s
}

func transFlash(_ Direction, p float64, role LayerRole) Style {
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - e
	} else {
		s.Opacity = e
	}
	s.Tint = 0.9 * math.Sin(p*math.Pi)
	s.TintColor = White
	return s
}

func transBurn(_ Direction, p float64, role LayerRole) Style {
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - e
	} else {
		s.Opacity = e
	}
	s.Brightness = 1 + 1.8*math.Sin(p*math.Pi)
	return s
}

func transSlide(dir Direction, p float64, role LayerRole) Style {
	mx, my := dirMotion(dir)
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		// Stays put under the incoming layer; drops out late so the
		// handoff is invisible.
		s.Opacity = 1 - EaseInCubic(p)
		return s
	}
	s.TX = (1 - e) * -mx
	s.TY = (1 - e) * -my
	return s
}

func transPush(dir Direction, p float64, role LayerRole) Style {
	mx, my := dirMotion(dir)
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.TX = e * mx
		s.TY = e * my
		return s
	}
	s.TX = (1 - e) * -mx
	s.TY = (1 - e) * -my
	return s
}

func transWhip(dir Direction, p float64, role LayerRole) Style {
	s := transPush(dir, p, role)
	s.Blur = whipBlur * math.Sin(p*math.Pi)
	return s
}

func transSqueeze(dir Direction, p float64, role LayerRole) Style {
	mx, my := dirMotion(dir)
	e := EaseInOutCubic(p)
	horizontal := my == 0
	s := NeutralStyle()
	if role == RoleOutgoing {
		if horizontal {
			s.ScaleX = 1 - e
			s.TX = e * mx * 0.5
		} else {
			s.ScaleY = 1 - e
			s.TY = e * my * 0.5
		}
		return s
	}
	if horizontal {
		s.ScaleX = e
		s.TX = (1 - e) * -mx * 0.5
	} else {
		s.ScaleY = e
		s.TY = (1 - e) * -my * 0.5
	}
	return s
}

func transStretch(dir Direction, p float64, role LayerRole) Style {
	_, my := dirMotion(dir)
	e := EaseInOutCubic(p)
	horizontal := my == 0
	s := NeutralStyle()
	s.Blur = 1.5 * math.Sin(p*math.Pi)
	if role == RoleOutgoing {
		s.Opacity = 1 - e
		if horizontal {
			s.ScaleX = lerp(1, 0.65, e)
		} else {
			s.ScaleY = lerp(1, 0.65, e)
		}
		return s
	}
	s.Opacity = e
	if horizontal {
		s.ScaleX = lerp(1.7, 1, e)
	} else {
		s.ScaleY = lerp(1.7, 1, e)
	}
	return s
}

// revealMask builds the incoming side's growing mask, dropping it once
// fully revealed so progress 1 is exactly the steady state.
func revealMask(shape MaskShape, dir Direction, cov, feather, param float64) *MaskSpec {
	if cov >= 1 {
		return nil
	}
	return &MaskSpec{Shape: shape, Dir: dir, Coverage: cov, Feather: feather, Param: param}
}

// lateFade keeps the covered outgoing layer opaque through most of the
// window, then removes it by the end.
func lateFade(p float64) float64 {
	return 1 - EaseInCubic(p)
}

// maskedReveal builds a transition that reveals the incoming layer
// through a growing mask while the outgoing layer holds underneath.
func maskedReveal(shape MaskShape, feather, param float64) transitionFunc {
	return func(dir Direction, p float64, role LayerRole) Style {
		e := EaseInOutCubic(p)
		s := NeutralStyle()
		if role == RoleOutgoing {
			s.Opacity = lateFade(p)
			return s
		}
		if p <= 0 {
			s.Opacity = 0
			return s
		}
		s.Mask = revealMask(shape, dir, e, feather, param)
		return s
	}
}

func transWipe(dir Direction, p float64, role LayerRole) Style {
	return maskedReveal(MaskLinear, 0.02, 0)(dir, p, role)
}

// irisReveal is a masked reveal with a soft edge and a mild brightness
// swell at the midpoint.
func irisReveal(shape MaskShape) transitionFunc {
	base := maskedReveal(shape, 0.03, 0)
	return func(dir Direction, p float64, role LayerRole) Style {
		s := base(dir, p, role)
		if role == RoleMain {
			s.Brightness = 1 + 0.08*math.Sin(p*math.Pi)
		}
		return s
	}
}

func transSplit(dir Direction, p float64, role LayerRole) Style {
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = lateFade(p)
		s.ScaleX = lerp(1, 0.92, e)
		s.ScaleY = lerp(1, 0.92, e)
		return s
	}
	if p <= 0 {
		s.Opacity = 0
		return s
	}
	s.Mask = revealMask(MaskBarnDoor, dir, e, 0, 0)
	return s
}

func transZoomIn(_ Direction, p float64, role LayerRole) Style {
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - e
		s.ScaleX = lerp(1, 1.45, e)
		s.ScaleY = lerp(1, 1.45, e)
		return s
	}
	s.Opacity = EaseOutCubic(p)
	s.ScaleX = lerp(0.6, 1, e)
	s.ScaleY = lerp(0.6, 1, e)
	return s
}

func transZoomOut(_ Direction, p float64, role LayerRole) Style {
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - e
		s.ScaleX = lerp(1, 0.55, e)
		s.ScaleY = lerp(1, 0.55, e)
		return s
	}
	s.Opacity = EaseOutCubic(p)
	s.ScaleX = lerp(1.5, 1, e)
	s.ScaleY = lerp(1.5, 1, e)
	return s
}

func transCrossZoom(_ Direction, p float64, role LayerRole) Style {
	out, in := halves(p)
	s := NeutralStyle()
	s.Blur = crossZoomBlur * math.Sin(p*math.Pi)
	if role == RoleOutgoing {
		s.Opacity = 1 - in
		s.ScaleX = lerp(1, 2.2, out)
		s.ScaleY = s.ScaleX
		return s
	}
	s.Opacity = in
	s.ScaleX = lerp(2.2, 1, in)
	s.ScaleY = s.ScaleX
	return s
}

func transSpin(dir Direction, p float64, role LayerRole) Style {
	sign := spinSign(dir)
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - e
		s.Rotation = sign * 90 * e
		return s
	}
	s.Opacity = e
	s.Rotation = -sign * 90 * (1 - e)
	return s
}

func transSpinZoom(dir Direction, p float64, role LayerRole) Style {
	sign := spinSign(dir)
	out, in := halves(p)
	s := NeutralStyle()
	s.Blur = 3 * math.Sin(p*math.Pi)
	if role == RoleOutgoing {
		s.Opacity = 1 - in
		s.Rotation = sign * 180 * out
		s.ScaleX = lerp(1, 1.8, out)
		s.ScaleY = s.ScaleX
		return s
	}
	s.Opacity = in
	s.Rotation = -sign * 180 * (1 - in)
	s.ScaleX = lerp(1.8, 1, in)
	s.ScaleY = s.ScaleX
	return s
}

// flipCollapse runs an axis flip as two quarter turns: the outgoing
// layer collapses to an edge-on sliver in the first half, the incoming
// layer unfolds in the second. An affine stand-in for a 3D card flip.
func flipCollapse(p float64, role LayerRole, vertical bool) Style {
	s := NeutralStyle()
	if role == RoleOutgoing {
		if p >= 0.5 {
			s.Hidden = true
			return s
		}
		k := math.Cos(EaseInOutCubic(clamp01(2*p)) * math.Pi / 2)
		if vertical {
			s.ScaleY = k
		} else {
			s.ScaleX = k
		}
		return s
	}
	if p < 0.5 {
		s.Hidden = true
		return s
	}
	k := math.Sin(EaseInOutCubic(clamp01(2*p-1)) * math.Pi / 2)
	if vertical {
		s.ScaleY = k
	} else {
		s.ScaleX = k
	}
	return s
}

func transFlipX(_ Direction, p float64, role LayerRole) Style {
	return flipCollapse(p, role, false)
}

func transFlipY(_ Direction, p float64, role LayerRole) Style {
	return flipCollapse(p, role, true)
}

func transGlitch(_ Direction, p float64, role LayerRole) Style {
	env := math.Sin(p * math.Pi)
	s := NeutralStyle()
	// Hard cut: exactly one side is visible at any progress value.
	if role == RoleOutgoing {
		if p >= 0.5 {
			s.Hidden = true
			return s
		}
	} else {
		if p < 0.5 {
			s.Hidden = true
			return s
		}
	}
	s.TX = 0.03 * math.Sin(p*43) * env
	s.TY = 0.012 * math.Sin(p*71+1.3) * env
	s.Hue = 30 * math.Sin(p*57) * env
	return s
}

func transStatic(_ Direction, p float64, role LayerRole) Style {
	env := math.Sin(p * math.Pi)
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - e
	} else {
		s.Opacity = e
	}
	s.TX = 0.02 * math.Sin(p*97) * env
	s.TY = 0.02 * math.Sin(p*113+0.7) * env
	s.Grayscale = 0.6 * env
	return s
}

func transPixelate(_ Direction, p float64, role LayerRole) Style {
	out, in := halves(p)
	s := NeutralStyle()
	s.Blur = 3.5 * math.Sin(p*math.Pi)
	if role == RoleOutgoing {
		s.Opacity = 1 - out
	} else {
		s.Opacity = in
	}
	return s
}

func transShake(_ Direction, p float64, role LayerRole) Style {
	env := math.Sin(p * math.Pi)
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - e
	} else {
		s.Opacity = e
	}
	s.TX = 0.04 * math.Sin(p*31) * env
	s.TY = 0.015 * math.Sin(p*53+2.1) * env
	return s
}

func transSwirl(dir Direction, p float64, role LayerRole) Style {
	sign := spinSign(dir)
	e := EaseInOutCubic(p)
	s := NeutralStyle()
	if role == RoleOutgoing {
		s.Opacity = 1 - e
	} else {
		s.Opacity = e
	}
	s.Rotation = sign * 25 * math.Sin(p*math.Pi)
	return s
}
