// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/cache"
)

// TextSource rasters text clips into transparent frames. Line widths
// come from HarfBuzz shaping (kerning and ligatures included) so
// alignment holds up for non-trivial text; glyph rasterization uses
// opentype faces.
//
// Rendered rasters are cached: a title on screen for three seconds
// renders once, not ninety times.
type TextSource struct {
	mu    sync.Mutex
	fonts map[string]*fontEntry

	// shaperPool pools HarfbuzzShaper instances. HarfbuzzShaper has
	// internal mutable state and is NOT safe for concurrent use, but
	// reusing across sequential calls is efficient.
	shaperPool sync.Pool

	rasters *cache.ShardedCache[string, *image.NRGBA]
}

// fontEntry holds one font parsed for both shaping and rasterization.
type fontEntry struct {
	ot *opentype.Font
	gt *gtfont.Font
}

// NewTextSource returns a text source using the bundled Go fonts.
// Register custom fonts with RegisterFont and reference them from
// TextAttrs.FontRef.
func NewTextSource() *TextSource {
	return &TextSource{
		fonts: make(map[string]*fontEntry),
		shaperPool: sync.Pool{
			New: func() any {
				return &shaping.HarfbuzzShaper{}
			},
		},
		rasters: cache.NewSharded[string, *image.NRGBA](32<<20, cache.StringHasher,
			func(img *image.NRGBA) int64 { return int64(len(img.Pix)) + 64 }),
	}
}

// RegisterFont parses TTF or OTF data and makes it available under ref.
func (t *TextSource) RegisterFont(ref string, data []byte) error {
	if ref == "" {
		return fmt.Errorf("compositor: empty font ref")
	}
	entry, err := parseFontEntry(data)
	if err != nil {
		return fmt.Errorf("compositor: font %q: %w", ref, err)
	}

	t.mu.Lock()
	t.fonts[ref] = entry
	t.mu.Unlock()
	return nil
}

// Frame implements FrameSource.
func (t *TextSource) Frame(_ context.Context, req Request) (*image.NRGBA, error) {
	attrs := req.Clip.Text
	if attrs == nil || attrs.Content == "" {
		return nil, fmt.Errorf("%w: text clip %q has no content", ErrSourceNotReady, req.Clip.ID)
	}

	key := rasterKey(attrs, req.CanvasH)
	if img, ok := t.rasters.Get(key); ok {
		return img, nil
	}

	img, err := t.render(attrs, req.CanvasH)
	if err != nil {
		return nil, err
	}
	t.rasters.Set(key, img)
	return img, nil
}

// render rasters the text block at the size implied by the canvas
// height. The raster is tightly sized to its content; placement and
// scaling happen in the layer transform.
func (t *TextSource) render(attrs *reel.TextAttrs, canvasH int) (*image.NRGBA, error) {
	entry, err := t.entryFor(attrs.FontRef, attrs.Bold, attrs.Italic)
	if err != nil {
		return nil, err
	}

	sizePct := attrs.Size
	if sizePct <= 0 {
		sizePct = 5
	}
	px := sizePct / 100 * float64(canvasH)
	if px < 4 {
		px = 4
	}

	face, err := opentype.NewFace(entry.ot, &opentype.FaceOptions{
		Size:    px,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("compositor: face: %w", err)
	}
	defer face.Close()

	lines := strings.Split(attrs.Content, "\n")
	runs := make([][]textRun, len(lines))
	widths := make([]float64, len(lines))
	maxW := 0.0
	for i, line := range lines {
		runs[i] = visualRuns(line)
		widths[i] = t.shapedWidth(entry.gt, runs[i], px)
		maxW = math.Max(maxW, widths[i])
	}

	metrics := face.Metrics()
	lineH := metrics.Height.Ceil()
	if lineH <= 0 {
		lineH = int(math.Ceil(px * 1.2))
	}
	ascent := metrics.Ascent.Ceil()

	pad := int(math.Ceil(px * 0.25))
	outline := 0
	if attrs.Outline.A > 0 {
		outline = max(1, int(px/16))
	}

	w := int(math.Ceil(maxW)) + 2*(pad+outline)
	h := lineH*len(lines) + 2*(pad+outline)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	if attrs.Background.A > 0 {
		clearFrame(img, attrs.Background)
	}

	fill := attrs.Color
	if fill == (reel.RGBA{}) {
		fill = reel.White
	}

	// The text raster must stay single-threaded: font.Face is not safe
	// for concurrent use.
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range lines {
		if len(runs[i]) == 0 {
			continue
		}
		var x int
		switch attrs.Align {
		case reel.AlignLeft:
			x = pad + outline
		case reel.AlignRight:
			x = w - pad - outline - int(math.Ceil(widths[i]))
		default:
			x = (w - int(math.Ceil(widths[i]))) / 2
		}
		y := pad + outline + ascent + i*lineH

		if outline > 0 {
			src := image.NewUniform(nrgbaColor(attrs.Outline))
			for dy := -outline; dy <= outline; dy++ {
				for dx := -outline; dx <= outline; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					drawRuns(img, src, face, runs[i], x+dx, y+dy)
				}
			}
		}

		drawRuns(img, image.NewUniform(nrgbaColor(fill)), face, runs[i], x, y)
	}

	return img, nil
}

// drawRuns rasters one line's runs left to right from (x, y). The
// drawer's dot carries across runs so spacing follows the face metrics.
func drawRuns(img *image.NRGBA, src image.Image, face font.Face, runs []textRun, x, y int) {
	d := font.Drawer{Dst: img, Src: src, Face: face, Dot: fixed.P(x, y)}
	for _, run := range runs {
		d.DrawString(run.drawText())
	}
}

// shapedWidth measures one line through HarfBuzz shaping, one call per
// run so direction and script are right for each.
func (t *TextSource) shapedWidth(f *gtfont.Font, runs []textRun, sizePx float64) float64 {
	shaper := t.shaperPool.Get().(*shaping.HarfbuzzShaper)
	defer t.shaperPool.Put(shaper)

	var w float64
	for _, run := range runs {
		runes := []rune(run.text)
		if len(runes) == 0 {
			continue
		}
		dir := di.DirectionLTR
		if run.rtl {
			dir = di.DirectionRTL
		}
		out := shaper.Shape(shaping.Input{
			Text:      runes,
			RunStart:  0,
			RunEnd:    len(runes),
			Direction: dir,
			Face:      gtfont.NewFace(f),
			Size:      fixed.Int26_6(sizePx * 64),
			Script:    run.script,
			Language:  language.NewLanguage("en"),
		})
		for _, g := range out.Glyphs {
			w += float64(g.XAdvance) / 64
		}
	}
	return w
}

// entryFor resolves a font reference, falling back to the bundled Go
// fonts when the ref is empty or unknown.
func (t *TextSource) entryFor(ref string, bold, italic bool) (*fontEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ref != "" {
		if e, ok := t.fonts[ref]; ok {
			return e, nil
		}
	}

	key := builtinKey(bold, italic)
	if e, ok := t.fonts[key]; ok {
		return e, nil
	}
	e, err := parseFontEntry(builtinTTF(bold, italic))
	if err != nil {
		return nil, fmt.Errorf("compositor: builtin font: %w", err)
	}
	t.fonts[key] = e
	return e, nil
}

func builtinKey(bold, italic bool) string {
	switch {
	case bold && italic:
		return "\x00go-bold-italic"
	case bold:
		return "\x00go-bold"
	case italic:
		return "\x00go-italic"
	default:
		return "\x00go-regular"
	}
}

func builtinTTF(bold, italic bool) []byte {
	switch {
	case bold && italic:
		return gobolditalic.TTF
	case bold:
		return gobold.TTF
	case italic:
		return goitalic.TTF
	default:
		return goregular.TTF
	}
}

// parseFontEntry parses font data for both shaping and rasterization.
func parseFontEntry(data []byte) (*fontEntry, error) {
	ot, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	gt, err := gtfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &fontEntry{ot: ot, gt: gt.Font}, nil
}

// detectScript returns the script of the first non-space character.
// Fallback for lines the bidi pass could not order; visualRuns handles
// mixed-script text properly.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

// rasterKey identifies one rendered text raster.
func rasterKey(attrs *reel.TextAttrs, canvasH int) string {
	return fmt.Sprintf("%q|%s|%g|%s|%t|%t|%s|%s|%s|%d",
		attrs.Content, attrs.FontRef, attrs.Size, attrs.Color.HexString(),
		attrs.Bold, attrs.Italic, attrs.Align,
		attrs.Background.HexString(), attrs.Outline.HexString(), canvasH)
}

// nrgbaColor converts a float color to the stdlib straight-alpha type.
func nrgbaColor(c reel.RGBA) color.NRGBA {
	r, g, b, a := nrgba8(c)
	return color.NRGBA{R: r, G: g, B: b, A: a}
}
