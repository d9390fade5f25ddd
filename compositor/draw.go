// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"image"
	"math"

	"github.com/gogpu/reel"
)

// drawLayer rasterizes one layer into dst. Layers with blur render into
// a canvas-sized scratch first, so the blur radius stays in canvas
// pixels regardless of the layer transform, then composite as a whole.
func drawLayer(dst *image.NRGBA, l *RenderLayer) {
	if l.Image == nil || l.Opacity <= 0 {
		return
	}

	if l.BlurX > 0 || l.BlurY > 0 {
		tmp := image.NewNRGBA(dst.Bounds())
		flat := *l
		flat.Opacity = 1
		flat.Blend = BlendNormal
		drawTransformed(tmp, &flat)
		gaussianBlur(tmp, l.BlurX, l.BlurY)
		compositeFull(dst, tmp, l.Opacity, l.Blend)
		return
	}

	drawTransformed(dst, l)
}

// drawTransformed runs the inverse-transform loop: for every canvas
// pixel inside the layer's transformed bounds, map back to source
// space, sample, filter, and blend.
func drawTransformed(dst *image.NRGBA, l *RenderLayer) {
	// Degenerate transforms (zero-scale layers) draw nothing.
	det := l.Transform.A*l.Transform.E - l.Transform.B*l.Transform.D
	if math.Abs(det) < 1e-9 {
		return
	}

	src := l.srcBounds()
	sw := float64(src.Dx())
	sh := float64(src.Dy())
	if sw <= 0 || sh <= 0 {
		return
	}

	lo, hi := transformedBounds(l.Transform, sw, sh)
	clip := dst.Bounds()
	x0 := max(int(math.Floor(lo.X)), clip.Min.X)
	y0 := max(int(math.Floor(lo.Y)), clip.Min.Y)
	x1 := min(int(math.Ceil(hi.X)), clip.Max.X)
	y1 := min(int(math.Ceil(hi.Y)), clip.Max.Y)
	if x0 >= x1 || y0 >= y1 {
		return
	}

	inv := l.Transform.Invert()

	var mask *maskEval
	if l.Mask != nil {
		mask = newMaskEval(l.Mask)
	}

	for dy := y0; dy < y1; dy++ {
		row := dst.PixOffset(x0, dy)
		for dx := x0; dx < x1; dx, row = dx+1, row+4 {
			// Sample at the pixel center.
			p := inv.TransformPoint(reel.Pt(float64(dx)+0.5, float64(dy)+0.5))
			if p.X < 0 || p.X > sw || p.Y < 0 || p.Y > sh {
				continue
			}

			cov := 1.0
			if mask != nil {
				cov = mask.eval(p.X/sw, p.Y/sh)
				if cov <= 0 {
					continue
				}
			}

			var sr, sg, sb, sa uint8
			if l.Interp == InterpNearest {
				sx := clampInt(src.Min.X+int(p.X), src.Min.X, src.Max.X-1)
				sy := clampInt(src.Min.Y+int(p.Y), src.Min.Y, src.Max.Y-1)
				o := l.Image.PixOffset(sx, sy)
				sr, sg, sb, sa = l.Image.Pix[o], l.Image.Pix[o+1], l.Image.Pix[o+2], l.Image.Pix[o+3]
			} else {
				sr, sg, sb, sa = sampleBilinear(l.Image, src, p.X, p.Y)
			}

			if l.Color != nil {
				sr, sg, sb, sa = applyColorMatrix(l.Color, sr, sg, sb, sa)
			}

			af := float64(sa) * l.Opacity * cov
			if af < 0.5 {
				continue
			}
			sa = uint8(math.Min(af, 255) + 0.5)

			pix := dst.Pix[row : row+4 : row+4]
			r, g, b, a := blendPixel(sr, sg, sb, sa, pix[0], pix[1], pix[2], pix[3], l.Blend)
			pix[0], pix[1], pix[2], pix[3] = r, g, b, a
		}
	}
}

// transformedBounds returns the axis-aligned bounds of the w x h source
// rectangle mapped through m.
func transformedBounds(m reel.Matrix, w, h float64) (lo, hi reel.Point) {
	corners := [4]reel.Point{
		m.TransformPoint(reel.Pt(0, 0)),
		m.TransformPoint(reel.Pt(w, 0)),
		m.TransformPoint(reel.Pt(0, h)),
		m.TransformPoint(reel.Pt(w, h)),
	}
	lo, hi = corners[0], corners[0]
	for _, c := range corners[1:] {
		lo.X = math.Min(lo.X, c.X)
		lo.Y = math.Min(lo.Y, c.Y)
		hi.X = math.Max(hi.X, c.X)
		hi.Y = math.Max(hi.Y, c.Y)
	}
	return lo, hi
}

// sampleBilinear samples img at rect-local position (x, y) with texel
// centers at half-pixel offsets. Color channels are alpha-weighted so
// transparent texels do not bleed dark edges into the result.
func sampleBilinear(img *image.NRGBA, rect image.Rectangle, x, y float64) (r, g, b, a uint8) {
	fx := float64(rect.Min.X) + x - 0.5
	fy := float64(rect.Min.Y) + y - 0.5
	ix := int(math.Floor(fx))
	iy := int(math.Floor(fy))
	tx := fx - float64(ix)
	ty := fy - float64(iy)

	var pr, pg, pb, pa float64
	for j := 0; j < 2; j++ {
		wy := ty
		if j == 0 {
			wy = 1 - ty
		}
		if wy <= 0 {
			continue
		}
		sy := clampInt(iy+j, rect.Min.Y, rect.Max.Y-1)
		for i := 0; i < 2; i++ {
			wx := tx
			if i == 0 {
				wx = 1 - tx
			}
			if wx <= 0 {
				continue
			}
			sx := clampInt(ix+i, rect.Min.X, rect.Max.X-1)
			o := img.PixOffset(sx, sy)
			w := wx * wy
			wa := float64(img.Pix[o+3]) * w
			pr += float64(img.Pix[o]) * wa
			pg += float64(img.Pix[o+1]) * wa
			pb += float64(img.Pix[o+2]) * wa
			pa += wa
		}
	}
	if pa <= 0 {
		return 0, 0, 0, 0
	}
	return uint8(pr/pa + 0.5), uint8(pg/pa + 0.5), uint8(pb/pa + 0.5), uint8(math.Min(pa, 255) + 0.5)
}

// compositeFull blends src over dst at identical bounds, scaling source
// alpha by opacity. Used for pre-rendered scratch layers.
func compositeFull(dst, src *image.NRGBA, opacity float64, mode BlendMode) {
	if dst.Bounds() != src.Bounds() {
		return
	}
	n := len(dst.Pix)
	for o := 0; o+3 < n; o += 4 {
		sa := float64(src.Pix[o+3]) * opacity
		if sa < 0.5 {
			continue
		}
		r, g, b, a := blendPixel(
			src.Pix[o], src.Pix[o+1], src.Pix[o+2], uint8(math.Min(sa, 255)+0.5),
			dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2], dst.Pix[o+3], mode)
		dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2], dst.Pix[o+3] = r, g, b, a
	}
}

// blendPixel blends source and destination colors using the given mode.
// All channels are straight (non-premultiplied) alpha.
func blendPixel(sr, sg, sb, sa, dr, dg, db, da uint8, mode BlendMode) (r, g, b, a uint8) {
	if sa == 0 {
		return dr, dg, db, da
	}

	if mode == BlendNormal {
		return blendNormal(sr, sg, sb, sa, dr, dg, db, da)
	}

	// For the remaining modes, blend the colors first, then composite
	// the blended result source-over.
	var br, bg, bb uint8
	switch mode {
	case BlendMultiply:
		br, bg, bb = blendMultiply(sr, sg, sb, dr, dg, db)
	case BlendScreen:
		br, bg, bb = blendScreen(sr, sg, sb, dr, dg, db)
	case BlendOverlay:
		br, bg, bb = blendOverlay(sr, sg, sb, dr, dg, db)
	default:
		br, bg, bb = sr, sg, sb
	}

	return blendNormal(br, bg, bb, sa, dr, dg, db, da)
}

// blendNormal performs standard source-over alpha compositing.
func blendNormal(sr, sg, sb, sa, dr, dg, db, da uint8) (r, g, b, a uint8) {
	if sa == 255 {
		return sr, sg, sb, 255
	}
	if da == 0 {
		return sr, sg, sb, sa
	}

	// Porter-Duff source over:
	// out_a = src_a + dst_a*(1-src_a)
	// out_c = (src_c*src_a + dst_c*dst_a*(1-src_a)) / out_a
	srcA := float64(sa) / 255.0
	dstA := float64(da) / 255.0
	outA := srcA + dstA*(1-srcA)
	if outA == 0 {
		return 0, 0, 0, 0
	}

	r = uint8((float64(sr)*srcA + float64(dr)*dstA*(1-srcA)) / outA)
	g = uint8((float64(sg)*srcA + float64(dg)*dstA*(1-srcA)) / outA)
	b = uint8((float64(sb)*srcA + float64(db)*dstA*(1-srcA)) / outA)
	a = uint8(outA*255.0 + 0.5)
	return r, g, b, a
}

// blendMultiply multiplies source and destination colors.
func blendMultiply(sr, sg, sb, dr, dg, db uint8) (r, g, b uint8) {
	r = uint8((int(sr) * int(dr)) / 255)
	g = uint8((int(sg) * int(dg)) / 255)
	b = uint8((int(sb) * int(db)) / 255)
	return r, g, b
}

// blendScreen lightens: 1 - (1-src)*(1-dst).
func blendScreen(sr, sg, sb, dr, dg, db uint8) (r, g, b uint8) {
	r = uint8(255 - (255-int(sr))*(255-int(dr))/255)
	g = uint8(255 - (255-int(sg))*(255-int(dg))/255)
	b = uint8(255 - (255-int(sb))*(255-int(db))/255)
	return r, g, b
}

// blendOverlay combines multiply and screen based on destination
// brightness.
func blendOverlay(sr, sg, sb, dr, dg, db uint8) (r, g, b uint8) {
	return overlayChannel(sr, dr), overlayChannel(sg, dg), overlayChannel(sb, db)
}

func overlayChannel(src, dst uint8) uint8 {
	if dst < 128 {
		return uint8((2 * int(src) * int(dst)) / 255)
	}
	return uint8(255 - (2*(255-int(src))*(255-int(dst)))/255)
}

// clearFrame fills the frame with a solid background color.
func clearFrame(img *image.NRGBA, c reel.RGBA) {
	r, g, b, a := nrgba8(c)
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return
	}

	// Fill the first row, then copy it down.
	row0 := img.PixOffset(img.Bounds().Min.X, img.Bounds().Min.Y)
	for x := 0; x < w; x++ {
		o := row0 + x*4
		img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = r, g, b, a
	}
	first := img.Pix[row0 : row0+w*4]
	for y := 1; y < h; y++ {
		o := row0 + y*img.Stride
		copy(img.Pix[o:o+w*4], first)
	}
}

// nrgba8 converts a float color to 8-bit straight-alpha channels.
func nrgba8(c reel.RGBA) (r, g, b, a uint8) {
	conv := func(v float64) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint8(v*255 + 0.5)
	}
	return conv(c.R), conv(c.G), conv(c.B), conv(c.A)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
