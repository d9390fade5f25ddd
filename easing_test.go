package reel

import (
	"math"
	"testing"
)

func TestCubicBezierEndpoints(t *testing.T) {
	curves := map[string]Easing{
		"linear":     EaseLinear,
		"inOutCubic": EaseInOutCubic,
		"outCubic":   EaseOutCubic,
		"inCubic":    EaseInCubic,
		"outBack":    EaseOutBack,
		"custom":     CubicBezier(0.1, 0.7, 0.9, 0.2),
	}
	for name, ease := range curves {
		t.Run(name, func(t *testing.T) {
			if got := ease(0); got != 0 {
				t.Errorf("ease(0) = %v, want 0", got)
			}
			if got := ease(1); got != 1 {
				t.Errorf("ease(1) = %v, want 1", got)
			}
			if got := ease(-0.5); got != 0 {
				t.Errorf("ease(-0.5) = %v, want 0 (clamped)", got)
			}
			if got := ease(1.5); got != 1 {
				t.Errorf("ease(1.5) = %v, want 1 (clamped)", got)
			}
		})
	}
}

func TestCubicBezierLinearIsIdentity(t *testing.T) {
	// cubic-bezier(t/3 control points on the diagonal) is the identity.
	ease := CubicBezier(1.0/3, 1.0/3, 2.0/3, 2.0/3)
	for i := 0; i <= 20; i++ {
		in := float64(i) / 20
		got := ease(in)
		if math.Abs(got-in) > 1e-5 {
			t.Errorf("linear bezier(%v) = %v, want %v", in, got, in)
		}
	}
}

func TestEaseInOutCubicShape(t *testing.T) {
	// Symmetric ease: midpoint maps to midpoint, slow at the edges.
	mid := EaseInOutCubic(0.5)
	if math.Abs(mid-0.5) > 1e-4 {
		t.Errorf("EaseInOutCubic(0.5) = %v, want 0.5", mid)
	}
	if v := EaseInOutCubic(0.1); v >= 0.1 {
		t.Errorf("EaseInOutCubic(0.1) = %v, want < 0.1 (slow start)", v)
	}
	if v := EaseInOutCubic(0.9); v <= 0.9 {
		t.Errorf("EaseInOutCubic(0.9) = %v, want > 0.9 (slow end)", v)
	}
}

func TestCubicBezierMonotonic(t *testing.T) {
	// Standard curves must be non-decreasing over [0, 1].
	curves := map[string]Easing{
		"inOutCubic": EaseInOutCubic,
		"outCubic":   EaseOutCubic,
		"inCubic":    EaseInCubic,
	}
	for name, ease := range curves {
		t.Run(name, func(t *testing.T) {
			prev := ease(0)
			for i := 1; i <= 100; i++ {
				v := ease(float64(i) / 100)
				if v < prev-1e-9 {
					t.Fatalf("%s not monotonic at t=%v: %v < %v", name, float64(i)/100, v, prev)
				}
				prev = v
			}
		})
	}
}

func TestEaseOutBackOvershoots(t *testing.T) {
	overshot := false
	for i := 1; i < 100; i++ {
		if EaseOutBack(float64(i)/100) > 1 {
			overshot = true
			break
		}
	}
	if !overshot {
		t.Error("EaseOutBack never exceeded 1.0, want overshoot before settling")
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0}, {0, 0}, {0.25, 0.25}, {1, 1}, {2, 1},
	}
	for _, tt := range tests {
		if got := clamp01(tt.in); got != tt.want {
			t.Errorf("clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
