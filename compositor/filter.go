// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"image"
	"math"
	"sync"

	"github.com/gogpu/reel"
)

// Color pass. All adjustments collapse into a single 4x5 matrix in
// row-major order:
//
//	[R']   [m0  m1  m2  m3  m4 ]   [R]
//	[G'] = [m5  m6  m7  m8  m9 ] * [G]
//	[B']   [m10 m11 m12 m13 m14]   [B]
//	[A']   [m15 m16 m17 m18 m19]   [A]
//	                               [1]
//
// The fifth column is a bias. Channel values are in [0, 255] during the
// transform and clamped back afterwards.

// identityColorMatrix passes pixels through unchanged.
var identityColorMatrix = [20]float32{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// colorMatrixFor collapses a style's color adjustments into one matrix.
// Returns nil when the style has no active color pass.
func colorMatrixFor(st reel.Style) *[20]float32 {
	if !st.NeedsColorPass() {
		return nil
	}

	m := identityColorMatrix
	stage := func(s [20]float32) { m = mulColorMatrix(s, m) }

	if st.Brightness != 1 {
		f := float32(math.Max(st.Brightness, 0))
		stage(brightnessMatrix(f))
	}
	if st.Contrast != 1 {
		f := float32(math.Max(st.Contrast, 0))
		stage(contrastMatrix(f))
	}
	if st.Saturation != 1 {
		f := float32(math.Max(st.Saturation, 0))
		stage(saturationMatrix(f))
	}
	if st.Grayscale > 0 {
		stage(saturationMatrix(float32(1 - clamp01(st.Grayscale))))
	}
	if st.Hue != 0 {
		stage(hueRotateMatrix(float32(st.Hue)))
	}
	if st.Sepia > 0 {
		stage(lerpColorMatrix(identityColorMatrix, sepiaMatrix, float32(clamp01(st.Sepia))))
	}
	if st.Invert > 0 {
		stage(lerpColorMatrix(identityColorMatrix, invertMatrix, float32(clamp01(st.Invert))))
	}
	if st.Tint > 0 {
		stage(tintMatrix(st.TintColor, float32(clamp01(st.Tint))))
	}

	return &m
}

// mulColorMatrix composes two color matrices: the result applies b
// first, then a.
func mulColorMatrix(a, b [20]float32) [20]float32 {
	var out [20]float32
	for row := 0; row < 4; row++ {
		for col := 0; col < 5; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[row*5+k] * b[k*5+col]
			}
			if col == 4 {
				sum += a[row*5+4]
			}
			out[row*5+col] = sum
		}
	}
	return out
}

// lerpColorMatrix blends two matrices entry-wise.
func lerpColorMatrix(a, b [20]float32, t float32) [20]float32 {
	var out [20]float32
	for i := range out {
		out[i] = a[i] + (b[i]-a[i])*t
	}
	return out
}

// brightnessMatrix scales channels: 0 = black, 1 = unchanged.
func brightnessMatrix(f float32) [20]float32 {
	return [20]float32{
		f, 0, 0, 0, 0,
		0, f, 0, 0, 0,
		0, 0, f, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// contrastMatrix scales channel distance from mid-gray:
// (c - 128)*f + 128.
func contrastMatrix(f float32) [20]float32 {
	offset := 128 * (1 - f)
	return [20]float32{
		f, 0, 0, 0, offset,
		0, f, 0, 0, offset,
		0, 0, f, 0, offset,
		0, 0, 0, 1, 0,
	}
}

// saturationMatrix blends between luminance (0) and identity (1) using
// Rec. 709 luminance weights.
func saturationMatrix(f float32) [20]float32 {
	const (
		lumR = 0.2126
		lumG = 0.7152
		lumB = 0.0722
	)
	inv := 1 - f
	return [20]float32{
		lumR*inv + f, lumG * inv, lumB * inv, 0, 0,
		lumR * inv, lumG*inv + f, lumB * inv, 0, 0,
		lumR * inv, lumG * inv, lumB*inv + f, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// hueRotateMatrix rotates hue by the given angle in degrees, using the
// YIQ-space approximation.
func hueRotateMatrix(degrees float32) [20]float32 {
	rad := float64(degrees) * math.Pi / 180
	cos := float32(math.Cos(rad))
	sin := float32(math.Sin(rad))

	const (
		lumR = 0.213
		lumG = 0.715
		lumB = 0.072
	)
	return [20]float32{
		lumR + cos*(1-lumR) + sin*(-lumR), lumG + cos*(-lumG) + sin*(-lumG), lumB + cos*(-lumB) + sin*(1-lumB), 0, 0,
		lumR + cos*(-lumR) + sin*(0.143), lumG + cos*(1-lumG) + sin*(0.140), lumB + cos*(-lumB) + sin*(-0.283), 0, 0,
		lumR + cos*(-lumR) + sin*(-(1 - lumR)), lumG + cos*(-lumG) + sin*(lumG), lumB + cos*(1-lumB) + sin*(lumB), 0, 0,
		0, 0, 0, 1, 0,
	}
}

// sepiaMatrix is the classic sepia tone transform.
var sepiaMatrix = [20]float32{
	0.393, 0.769, 0.189, 0, 0,
	0.349, 0.686, 0.168, 0, 0,
	0.272, 0.534, 0.131, 0, 0,
	0, 0, 0, 1, 0,
}

// invertMatrix flips every color channel.
var invertMatrix = [20]float32{
	-1, 0, 0, 0, 255,
	0, -1, 0, 0, 255,
	0, 0, -1, 0, 255,
	0, 0, 0, 1, 0,
}

// tintMatrix blends channels toward a flat color by factor f.
func tintMatrix(tint reel.RGBA, f float32) [20]float32 {
	inv := 1 - f
	tR := float32(tint.R * 255)
	tG := float32(tint.G * 255)
	tB := float32(tint.B * 255)
	return [20]float32{
		inv, 0, 0, 0, tR * f,
		0, inv, 0, 0, tG * f,
		0, 0, inv, 0, tB * f,
		0, 0, 0, 1, 0,
	}
}

// applyColorMatrix transforms one straight-alpha pixel.
func applyColorMatrix(m *[20]float32, r, g, b, a uint8) (uint8, uint8, uint8, uint8) {
	fr, fg, fb, fa := float32(r), float32(g), float32(b), float32(a)
	nr := m[0]*fr + m[1]*fg + m[2]*fb + m[3]*fa + m[4]
	ng := m[5]*fr + m[6]*fg + m[7]*fb + m[8]*fa + m[9]
	nb := m[10]*fr + m[11]*fg + m[12]*fb + m[13]*fa + m[14]
	na := m[15]*fr + m[16]*fg + m[17]*fb + m[18]*fa + m[19]
	return clamp255f(nr), clamp255f(ng), clamp255f(nb), clamp255f(na)
}

func clamp255f(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Gaussian blur. Two-pass separable convolution: O(w*h*(rx+ry))
// instead of O(w*h*rx*ry). Color channels are premultiplied during the
// passes so transparent regions do not darken edges.

// gaussianBlur blurs img in place with the given radii in pixels.
func gaussianBlur(img *image.NRGBA, rx, ry float64) {
	if rx <= 0 && ry <= 0 {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}

	// Premultiply into a float scratch buffer.
	buf := make([]float32, w*h*4)
	for y := 0; y < h; y++ {
		o := img.PixOffset(b.Min.X, b.Min.Y+y)
		i := y * w * 4
		for x := 0; x < w; x++ {
			a := float32(img.Pix[o+3])
			buf[i] = float32(img.Pix[o]) * a / 255
			buf[i+1] = float32(img.Pix[o+1]) * a / 255
			buf[i+2] = float32(img.Pix[o+2]) * a / 255
			buf[i+3] = a
			o += 4
			i += 4
		}
	}

	tmp := make([]float32, w*h*4)
	if rx > 0 {
		blurPass(buf, tmp, w, h, cachedGaussianKernel(rx), true)
	} else {
		copy(tmp, buf)
	}
	if ry > 0 {
		blurPass(tmp, buf, w, h, cachedGaussianKernel(ry), false)
	} else {
		copy(buf, tmp)
	}

	// Unpremultiply back into the image.
	for y := 0; y < h; y++ {
		o := img.PixOffset(b.Min.X, b.Min.Y+y)
		i := y * w * 4
		for x := 0; x < w; x++ {
			a := buf[i+3]
			if a > 0.5 {
				img.Pix[o] = clamp255f(buf[i] * 255 / a)
				img.Pix[o+1] = clamp255f(buf[i+1] * 255 / a)
				img.Pix[o+2] = clamp255f(buf[i+2] * 255 / a)
				img.Pix[o+3] = clamp255f(a)
			} else {
				img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = 0, 0, 0, 0
			}
			o += 4
			i += 4
		}
	}
}

// blurPass convolves one axis with edge-clamped sampling.
func blurPass(src, dst []float32, w, h int, kernel []float32, horizontal bool) {
	half := len(kernel) / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b, a float32
			for k, kv := range kernel {
				sx, sy := x, y
				if horizontal {
					sx = clampInt(x+k-half, 0, w-1)
				} else {
					sy = clampInt(y+k-half, 0, h-1)
				}
				i := (sy*w + sx) * 4
				r += src[i] * kv
				g += src[i+1] * kv
				b += src[i+2] * kv
				a += src[i+3] * kv
			}
			i := (y*w + x) * 4
			dst[i], dst[i+1], dst[i+2], dst[i+3] = r, g, b, a
		}
	}
}

// gaussianKernel generates a normalized 1D kernel covering three
// standard deviations. Radius <= 0 yields the identity kernel.
func gaussianKernel(radius float64) []float32 {
	if radius <= 0 {
		return []float32{1}
	}

	sigma := radius
	half := int(math.Ceil(sigma * 3))
	size := half*2 + 1
	kernel := make([]float32, size)

	twoSigmaSq := 2 * sigma * sigma
	sum := float64(0)
	for i := 0; i < size; i++ {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(v)
		sum += v
	}
	if sum > 0 {
		inv := float32(1 / sum)
		for i := range kernel {
			kernel[i] *= inv
		}
	}
	return kernel
}

// kernelCache memoizes kernels by radius. Keys are radius*100 so close
// float radii share an entry.
type kernelCache struct {
	mu    sync.RWMutex
	cache map[int][]float32
}

var gaussKernels = kernelCache{cache: make(map[int][]float32)}

func cachedGaussianKernel(radius float64) []float32 {
	key := int(radius * 100)

	gaussKernels.mu.RLock()
	k, ok := gaussKernels.cache[key]
	gaussKernels.mu.RUnlock()
	if ok {
		return k
	}

	k = gaussianKernel(radius)

	gaussKernels.mu.Lock()
	if len(gaussKernels.cache) > 64 {
		gaussKernels.cache = make(map[int][]float32)
	}
	gaussKernels.cache[key] = k
	gaussKernels.mu.Unlock()
	return k
}
