// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/reel"
)

// Geometric masks. Every shape is expressed as a reveal field
// d(u, v) in [0, 1] over normalized layer coordinates: d is 0 where the
// reveal begins and 1 where it ends, so a pixel is visible once the
// mask coverage c reaches its field value. Radial shapes are normalized
// against the layer boundary, so c = 1 always covers the full layer.

// maskEval is a mask spec resolved for one layer draw. Constructing it
// precomputes the shape's field function and normalization so the
// per-pixel call stays cheap.
type maskEval struct {
	coverage float64
	feather  float64
	invert   bool
	field    func(u, v float64) float64
}

// newMaskEval resolves a mask spec into an evaluator.
func newMaskEval(spec *reel.MaskSpec) *maskEval {
	e := &maskEval{
		coverage: spec.Coverage,
		feather:  spec.Feather,
		invert:   spec.Invert,
	}

	switch spec.Shape {
	case reel.MaskCircle:
		e.field = radialField(circleRadius, normFor("circle", circleRadius))
	case reel.MaskDiamond:
		e.field = radialField(diamondRadius, normFor("diamond", diamondRadius))
	case reel.MaskBox:
		e.field = radialField(boxRadius, normFor("box", boxRadius))
	case reel.MaskStar:
		spikes := spec.Param
		if spikes < 3 {
			spikes = 5
		}
		rf := starRadius(spikes)
		e.field = radialField(rf, normFor(fmt.Sprintf("star%d", int(spikes)), rf))
	case reel.MaskHeart:
		e.field = radialField(heartRadius, normFor("heart", heartRadius))
	case reel.MaskClock:
		e.field = clockField
	case reel.MaskBlinds:
		e.field = blindsField(spec.Dir, stripeCount(spec.Param))
	case reel.MaskChecker:
		e.field = checkerField(stripeCount(spec.Param))
	case reel.MaskBarnDoor:
		e.field = barnDoorField(spec.Dir)
	default:
		e.field = linearField(spec.Dir)
	}
	return e
}

// eval returns the visible fraction of the pixel at normalized layer
// position (u, v).
func (e *maskEval) eval(u, v float64) float64 {
	var cov float64
	switch {
	case e.coverage >= 1:
		cov = 1
	case e.coverage <= 0:
		cov = 0
	default:
		d := e.field(u, v)
		if e.feather > 0 {
			cov = clamp01((e.coverage - d) / e.feather)
		} else if d <= e.coverage {
			cov = 1
		}
	}
	if e.invert {
		cov = 1 - cov
	}
	return cov
}

// linearField sweeps an edge across the layer. The direction names
// where the edge travels: a left wipe starts at the right edge.
func linearField(dir reel.Direction) func(u, v float64) float64 {
	switch dir {
	case reel.DirLeft:
		return func(u, _ float64) float64 { return 1 - u }
	case reel.DirUp:
		return func(_, v float64) float64 { return 1 - v }
	case reel.DirDown:
		return func(_, v float64) float64 { return v }
	default:
		return func(u, _ float64) float64 { return u }
	}
}

// clockField sweeps clockwise from twelve o'clock.
func clockField(u, v float64) float64 {
	dx := u - 0.5
	dy := v - 0.5
	if dx == 0 && dy == 0 {
		return 0
	}
	a := math.Atan2(dx, -dy)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a / (2 * math.Pi)
}

// blindsField reveals parallel stripes, each opening in the sweep
// direction.
func blindsField(dir reel.Direction, n float64) func(u, v float64) float64 {
	switch dir {
	case reel.DirLeft:
		return func(u, _ float64) float64 { return 1 - frac(u*n) }
	case reel.DirRight:
		return func(u, _ float64) float64 { return frac(u * n) }
	case reel.DirUp:
		return func(_, v float64) float64 { return 1 - frac(v*n) }
	default:
		return func(_, v float64) float64 { return frac(v * n) }
	}
}

// checkerField reveals an alternating grid, adjacent cells sweeping in
// opposite directions.
func checkerField(n float64) func(u, v float64) float64 {
	return func(u, v float64) float64 {
		i := int(math.Floor(u * n))
		j := int(math.Floor(v * n))
		pos := frac(u * n)
		if (i+j)&1 == 1 {
			pos = 1 - pos
		}
		return pos
	}
}

// barnDoorField opens from the center line outward.
func barnDoorField(dir reel.Direction) func(u, v float64) float64 {
	if dir == reel.DirUp || dir == reel.DirDown {
		return func(_, v float64) float64 { return 2 * math.Abs(v-0.5) }
	}
	return func(u, _ float64) float64 { return 2 * math.Abs(u-0.5) }
}

// radiusFunc gives a shape's outline radius at angle theta, in
// arbitrary units. Theta follows screen coordinates (y down).
type radiusFunc func(theta float64) float64

// radialField builds a field from a shape outline: distance from the
// layer center divided by the outline radius at that angle, scaled by
// norm so the farthest layer point sits exactly at 1.
func radialField(rf radiusFunc, norm float64) func(u, v float64) float64 {
	if norm <= 0 {
		norm = 1
	}
	return func(u, v float64) float64 {
		dx := u - 0.5
		dy := v - 0.5
		dist := math.Hypot(dx, dy)
		if dist == 0 {
			return 0
		}
		r := rf(math.Atan2(dy, dx))
		if r <= 0 {
			return 1
		}
		return dist / r / norm
	}
}

func circleRadius(float64) float64 { return 1 }

func diamondRadius(theta float64) float64 {
	s, c := math.Sincos(theta)
	return 1 / (math.Abs(s) + math.Abs(c))
}

func boxRadius(theta float64) float64 {
	s, c := math.Sincos(theta)
	return 1 / math.Max(math.Abs(s), math.Abs(c))
}

// starRadius alternates between outer spike tips and an inner ring,
// with one spike pointing up.
func starRadius(spikes float64) radiusFunc {
	const inner = 0.45
	sector := 2 * math.Pi / spikes
	return func(theta float64) float64 {
		a := math.Mod(theta+math.Pi/2, sector)
		if a < 0 {
			a += sector
		}
		pos := a / sector
		return inner + (1-inner)*math.Abs(pos*2-1)
	}
}

// heartRadius is a polar heart with the lobes up and the tip down.
func heartRadius(theta float64) float64 {
	// Flip to math orientation (y up) for the curve.
	s, c := math.Sincos(-theta)
	return 2 - 2*s + s*math.Sqrt(math.Abs(c))/(s+1.4)
}

// normCache memoizes boundary normalization per shape.
var normCache sync.Map // string -> float64

func normFor(key string, rf radiusFunc) float64 {
	if v, ok := normCache.Load(key); ok {
		return v.(float64)
	}
	n := boundaryNorm(rf)
	normCache.Store(key, n)
	return n
}

// boundaryNorm finds the largest field value on the layer boundary, so
// radial shapes can be scaled to cover the whole layer at coverage 1.
func boundaryNorm(rf radiusFunc) float64 {
	maxD := 0.0
	const steps = 720
	for i := 0; i <= steps; i++ {
		t := float64(i) / steps
		for _, p := range [4][2]float64{{t, 0}, {t, 1}, {0, t}, {1, t}} {
			dx := p[0] - 0.5
			dy := p[1] - 0.5
			dist := math.Hypot(dx, dy)
			if dist == 0 {
				continue
			}
			if r := rf(math.Atan2(dy, dx)); r > 0 {
				if d := dist / r; d > maxD {
					maxD = d
				}
			}
		}
	}
	return maxD
}

func stripeCount(param float64) float64 {
	if param < 1 {
		return 8
	}
	return math.Floor(param)
}

func frac(v float64) float64 {
	f := v - math.Floor(v)
	return f
}
