package reel

import (
	"encoding/json"
	"image/color"
	"math"
	"testing"
)

// Verify at compile time that RGBA implements color.Color.
var _ color.Color = RGBA{}

func absDiff(a, b float64) float64 { return math.Abs(a - b) }

func TestRGBA_ColorInterface(t *testing.T) {
	tests := []struct {
		name                       string
		c                          RGBA
		wantR, wantG, wantB, wantA uint32
	}{
		{
			name: "opaque black",
			c:    Black,
			wantR: 0, wantG: 0, wantB: 0, wantA: 65535,
		},
		{
			name: "opaque white",
			c:    White,
			wantR: 65535, wantG: 65535, wantB: 65535, wantA: 65535,
		},
		{
			name: "transparent",
			c:    RGBA{0, 0, 0, 0},
			wantR: 0, wantG: 0, wantB: 0, wantA: 0,
		},
		{
			name: "50% alpha red premultiplies",
			c:    RGBA{1, 0, 0, 0.5},
			wantR: 32767, wantG: 0, wantB: 0, wantA: 32767,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b, a := tt.c.RGBA()
			// Allow ±1 tolerance for floating point.
			if diff32(r, tt.wantR) > 1 || diff32(g, tt.wantG) > 1 || diff32(b, tt.wantB) > 1 || diff32(a, tt.wantA) > 1 {
				t.Errorf("RGBA() = (%d, %d, %d, %d), want (%d, %d, %d, %d)",
					r, g, b, a, tt.wantR, tt.wantG, tt.wantB, tt.wantA)
			}
		})
	}
}

func diff32(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestHex(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want RGBA
	}{
		{"short rgb", "#f00", RGBA{1, 0, 0, 1}},
		{"long rgb", "#00ff00", RGBA{0, 1, 0, 1}},
		{"long rgba", "#0000ff80", RGBA{0, 0, 1, 128.0 / 255}},
		{"no hash", "ffffff", RGBA{1, 1, 1, 1}},
		{"garbage", "zzz-not-hex!", RGBA{0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hex(tt.in)
			const tol = 0.005
			if absDiff(got.R, tt.want.R) > tol || absDiff(got.G, tt.want.G) > tol ||
				absDiff(got.B, tt.want.B) > tol || absDiff(got.A, tt.want.A) > tol {
				t.Errorf("Hex(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHexStringRoundtrip(t *testing.T) {
	colors := []RGBA{
		Black,
		White,
		Hex("#3498db"),
		{1, 0, 0, 0.5},
	}
	for _, c := range colors {
		got := Hex(c.HexString())
		const tol = 0.005
		if absDiff(got.R, c.R) > tol || absDiff(got.G, c.G) > tol ||
			absDiff(got.B, c.B) > tol || absDiff(got.A, c.A) > tol {
			t.Errorf("Hex(HexString(%+v)) = %+v", c, got)
		}
	}
}

func TestRGBAJSON(t *testing.T) {
	in := Hex("#3498db")
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"#3498db"` {
		t.Errorf("Marshal = %s, want \"#3498db\"", data)
	}

	var out RGBA
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("roundtrip = %+v, want %+v", out, in)
	}

	// Empty string stays zero value.
	var zero RGBA
	if err := json.Unmarshal([]byte(`""`), &zero); err != nil {
		t.Fatalf("Unmarshal empty: %v", err)
	}
	if zero != (RGBA{}) {
		t.Errorf("empty string decoded to %+v, want zero", zero)
	}
}

func TestLerp(t *testing.T) {
	got := Black.Lerp(White, 0.5)
	want := RGBA{0.5, 0.5, 0.5, 1}
	const tol = 1e-9
	if absDiff(got.R, want.R) > tol || absDiff(got.G, want.G) > tol ||
		absDiff(got.B, want.B) > tol || absDiff(got.A, want.A) > tol {
		t.Errorf("Black.Lerp(White, 0.5) = %+v, want %+v", got, want)
	}

	if got := Black.Lerp(White, 0); got != Black {
		t.Errorf("Lerp(0) = %+v, want start color", got)
	}
	if got := Black.Lerp(White, 1); got != White {
		t.Errorf("Lerp(1) = %+v, want end color", got)
	}
}

func TestPremultiply(t *testing.T) {
	c := RGBA{1, 0.5, 0, 0.5}
	got := c.Premultiply()
	want := RGBA{0.5, 0.25, 0, 0.5}
	const tol = 1e-9
	if absDiff(got.R, want.R) > tol || absDiff(got.G, want.G) > tol ||
		absDiff(got.B, want.B) > tol || absDiff(got.A, want.A) > tol {
		t.Errorf("Premultiply() = %+v, want %+v", got, want)
	}
}

func TestHSL(t *testing.T) {
	tests := []struct {
		name    string
		h, s, l float64
		want    RGBA
	}{
		{"red", 0, 1, 0.5, RGBA{1, 0, 0, 1}},
		{"green", 120, 1, 0.5, RGBA{0, 1, 0, 1}},
		{"blue", 240, 1, 0.5, RGBA{0, 0, 1, 1}},
		{"white", 0, 0, 1, RGBA{1, 1, 1, 1}},
		{"negative hue wraps", -120, 1, 0.5, RGBA{0, 0, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HSL(tt.h, tt.s, tt.l)
			const tol = 1e-9
			if absDiff(got.R, tt.want.R) > tol || absDiff(got.G, tt.want.G) > tol ||
				absDiff(got.B, tt.want.B) > tol {
				t.Errorf("HSL(%v,%v,%v) = %+v, want %+v", tt.h, tt.s, tt.l, got, tt.want)
			}
		})
	}
}
