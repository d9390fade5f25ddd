package reel

import "math"

// Easing maps a linear progress value in [0, 1] to an eased value.
// Transition progress and animation keyframe interpolation both run
// through an Easing before any style math.
type Easing func(t float64) float64

// CubicBezier returns an easing for the cubic Bezier curve through
// (0,0), (x1,y1), (x2,y2), (1,1), matching the CSS timing-function
// semantics. x1 and x2 are clamped to [0, 1] so the curve stays a
// function of time.
//
// Solving x(s)=t uses Newton-Raphson with a bisection fallback when the
// derivative flattens out.
func CubicBezier(x1, y1, x2, y2 float64) Easing {
	x1 = clamp01(x1)
	x2 = clamp01(x2)

	// Polynomial coefficients for B(s) = ((a*s + b)*s + c)*s.
	cx := 3 * x1
	bx := 3*(x2-x1) - cx
	ax := 1 - cx - bx

	cy := 3 * y1
	by := 3*(y2-y1) - cy
	ay := 1 - cy - by

	sampleX := func(s float64) float64 { return ((ax*s+bx)*s + cx) * s }
	sampleY := func(s float64) float64 { return ((ay*s+by)*s + cy) * s }
	derivX := func(s float64) float64 { return (3*ax*s+2*bx)*s + cx }

	solve := func(t float64) float64 {
		// Newton-Raphson, usually converges in a few steps.
		s := t
		for range 8 {
			x := sampleX(s) - t
			if math.Abs(x) < 1e-7 {
				return s
			}
			d := derivX(s)
			if math.Abs(d) < 1e-6 {
				break
			}
			s -= x / d
		}

		// Bisection fallback for flat regions.
		lo, hi := 0.0, 1.0
		s = t
		for hi-lo > 1e-7 {
			if sampleX(s) < t {
				lo = s
			} else {
				hi = s
			}
			s = (lo + hi) / 2
		}
		return s
	}

	return func(t float64) float64 {
		if t <= 0 {
			return 0
		}
		if t >= 1 {
			return 1
		}
		return sampleY(solve(t))
	}
}

// EaseLinear returns progress unchanged.
func EaseLinear(t float64) float64 { return clamp01(t) }

// EaseInOutCubic is the default easing for transitions and animation
// keyframes: slow start, fast middle, slow end.
var EaseInOutCubic = CubicBezier(0.65, 0, 0.35, 1)

// EaseOutCubic decelerates into the target value. Used by entrance
// curves that should land softly (drops, pops).
var EaseOutCubic = CubicBezier(0.33, 1, 0.68, 1)

// EaseInCubic accelerates away from the start value.
var EaseInCubic = CubicBezier(0.32, 0, 0.67, 0)

// EaseOutBack overshoots slightly before settling, for bounce-style
// entrances.
var EaseOutBack = CubicBezier(0.34, 1.56, 0.64, 1)

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// lerp linearly interpolates between a and b.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
