package reel

import "math"

// Style is the dynamic portion of a layer's appearance at one instant:
// everything transitions and animation curves can change. It composes on
// top of the clip's static Placement, which the compositor reads
// directly.
//
// Transform fields are deltas in resolution-independent units: TX and TY
// are fractions of canvas width and height, ScaleX and ScaleY multiply
// the placed size, Rotation adds degrees. Color fields follow the usual
// filter conventions: Brightness, Contrast, and Saturation are
// multipliers with 1 neutral; Hue adds degrees; Sepia, Grayscale, and
// Invert blend in [0, 1]; Blur is a radius in percent of canvas height.
// Tint mixes the layer toward TintColor by Tint in [0, 1].
type Style struct {
	Opacity float64
	Hidden  bool

	TX, TY         float64
	ScaleX, ScaleY float64
	Rotation       float64

	Brightness float64
	Contrast   float64
	Saturation float64
	Hue        float64
	Sepia      float64
	Grayscale  float64
	Invert     float64
	Blur       float64

	Tint      float64
	TintColor RGBA

	Mask *MaskSpec
}

// NeutralStyle returns the identity style: fully opaque, untransformed,
// unfiltered. Composing any number of neutral styles changes nothing.
func NeutralStyle() Style {
	return Style{
		Opacity:    1,
		ScaleX:     1,
		ScaleY:     1,
		Brightness: 1,
		Contrast:   1,
		Saturation: 1,
	}
}

// Apply composes a contribution onto s and returns the result.
// Multiplicative fields multiply, additive fields add, and the
// contribution wins for mask and visibility. Both orders of a
// commutative pair compose to the same style; mask and tint are
// last-write-wins.
func (s Style) Apply(o Style) Style {
	s.Opacity *= o.Opacity
	s.Hidden = s.Hidden || o.Hidden

	s.TX += o.TX
	s.TY += o.TY
	s.ScaleX *= o.ScaleX
	s.ScaleY *= o.ScaleY
	s.Rotation += o.Rotation

	s.Brightness *= o.Brightness
	s.Contrast *= o.Contrast
	s.Saturation *= o.Saturation
	s.Hue += o.Hue
	s.Sepia = clamp01(s.Sepia + o.Sepia)
	s.Grayscale = clamp01(s.Grayscale + o.Grayscale)
	s.Invert = clamp01(s.Invert + o.Invert)
	s.Blur += o.Blur

	if o.Tint > 0 {
		s.Tint = o.Tint
		s.TintColor = o.TintColor
	}
	if o.Mask != nil {
		s.Mask = o.Mask
	}
	return s
}

// IsNeutral reports whether the style changes nothing, letting the
// compositor skip filter passes entirely.
func (s Style) IsNeutral() bool {
	return !s.Hidden && s.Opacity == 1 &&
		s.TX == 0 && s.TY == 0 && s.ScaleX == 1 && s.ScaleY == 1 && s.Rotation == 0 &&
		s.Brightness == 1 && s.Contrast == 1 && s.Saturation == 1 &&
		s.Hue == 0 && s.Sepia == 0 && s.Grayscale == 0 && s.Invert == 0 &&
		s.Blur == 0 && s.Tint == 0 && s.Mask == nil
}

// NeedsColorPass reports whether any color adjustment is active.
func (s Style) NeedsColorPass() bool {
	return s.Brightness != 1 || s.Contrast != 1 || s.Saturation != 1 ||
		s.Hue != 0 || s.Sepia != 0 || s.Grayscale != 0 || s.Invert != 0 ||
		s.Tint != 0
}

// MaskShape selects the geometry of a layer mask.
type MaskShape int

const (
	// MaskLinear reveals along a directional edge (wipes).
	MaskLinear MaskShape = iota
	// MaskCircle grows a circular iris from the center.
	MaskCircle
	// MaskDiamond grows a diamond iris.
	MaskDiamond
	// MaskBox grows a rectangular iris.
	MaskBox
	// MaskStar grows a five-pointed star iris.
	MaskStar
	// MaskHeart grows a heart-shaped iris.
	MaskHeart
	// MaskClock sweeps an angular sector from twelve o'clock.
	MaskClock
	// MaskBlinds reveals in parallel stripes; Param is the stripe count.
	MaskBlinds
	// MaskChecker reveals in an alternating grid; Param is cells per row.
	MaskChecker
	// MaskBarnDoor opens from the middle outward; direction picks the axis.
	MaskBarnDoor
)

// MaskSpec is a geometric reveal applied when drawing a layer. Coverage
// runs from 0 (nothing visible) to 1 (fully revealed). Feather softens
// the mask edge, as a fraction of the reveal's full span. Invert swaps
// revealed and concealed regions.
type MaskSpec struct {
	Shape    MaskShape
	Dir      Direction
	Coverage float64
	Feather  float64
	Invert   bool
	Param    float64
}

// Adjustments are the clip's user-set color controls. All fields are
// deltas with 0 neutral: Brightness, Contrast, Saturate in [-1, 1],
// Hue in degrees, Sepia and Grayscale in [0, 1], Blur in percent of
// canvas height.
type Adjustments struct {
	Brightness float64 `json:"brightness,omitempty"`
	Contrast   float64 `json:"contrast,omitempty"`
	Saturate   float64 `json:"saturate,omitempty"`
	Hue        float64 `json:"hue,omitempty"`
	Sepia      float64 `json:"sepia,omitempty"`
	Grayscale  float64 `json:"grayscale,omitempty"`
	Blur       float64 `json:"blur,omitempty"`
}

// style converts slider deltas to a composable style contribution.
func (a Adjustments) style() Style {
	s := NeutralStyle()
	s.Brightness = 1 + a.Brightness
	s.Contrast = 1 + a.Contrast
	s.Saturation = 1 + a.Saturate
	s.Hue = a.Hue
	s.Sepia = clamp01(a.Sepia)
	s.Grayscale = clamp01(a.Grayscale)
	s.Blur = math.Max(0, a.Blur)
	return s
}

// FilterPreset names a canned look applied before the clip's own
// adjustments.
type FilterPreset string

const (
	FilterNone   FilterPreset = ""
	FilterMono   FilterPreset = "mono"
	FilterSepia  FilterPreset = "sepia"
	FilterVivid  FilterPreset = "vivid"
	FilterCool   FilterPreset = "cool"
	FilterWarm   FilterPreset = "warm"
	FilterNoir   FilterPreset = "noir"
	FilterFade   FilterPreset = "fade"
	FilterChrome FilterPreset = "chrome"
)

// presetAdjust maps each preset to the adjustment deltas it stands for.
// Unknown presets fall back to no adjustment.
var presetAdjust = map[FilterPreset]Adjustments{
	FilterMono:   {Grayscale: 1},
	FilterSepia:  {Sepia: 0.85, Brightness: 0.05},
	FilterVivid:  {Saturate: 0.4, Contrast: 0.1},
	FilterCool:   {Hue: -12, Saturate: 0.08},
	FilterWarm:   {Hue: 12, Brightness: 0.05, Saturate: 0.1},
	FilterNoir:   {Grayscale: 1, Contrast: 0.35, Brightness: -0.08},
	FilterFade:   {Saturate: -0.35, Brightness: 0.12, Contrast: -0.18},
	FilterChrome: {Saturate: 0.25, Brightness: 0.08, Contrast: 0.12},
}

// ClipStyle computes the clip's own style at timeline time t: opacity,
// preset, adjustments, and the animation contribution. Transition terms
// need the resolved layer pair and are added by LayerStyle.
func ClipStyle(c *Clip, t float64) Style {
	s := NeutralStyle()
	s.Opacity = clamp01(c.Opacity)

	if adj, ok := presetAdjust[c.Filter]; ok {
		s = s.Apply(adj.style())
	}
	if c.Adjust != (Adjustments{}) {
		s = s.Apply(c.Adjust.style())
	}
	if c.Animation != nil {
		s = s.Apply(AnimationStyle(c, t))
	}
	return s
}

// LayerStyle computes the full style for a resolved layer at time t:
// the clip's own style plus the transition contribution for the layer's
// role and progress. This is the compositor's single entry point.
func LayerStyle(l Layer, t float64) Style {
	s := ClipStyle(l.Clip, t)
	if l.Transition != nil {
		s = s.Apply(TransitionStyle(l.Transition.Kind, l.Transition.Direction, l.Progress, l.Role))
	}
	s.Opacity = clamp01(s.Opacity)
	return s
}
