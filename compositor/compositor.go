// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/reel"
)

// Option configures a Compositor during creation.
//
// Example:
//
//	// Default: probe hardware, fall back to software
//	comp, err := compositor.New(1920, 1080)
//
//	// Force the software path
//	comp, err := compositor.New(1920, 1080, compositor.WithBackendName(compositor.BackendSoftware))
type Option func(*options)

// options holds optional configuration for Compositor creation.
type options struct {
	backendName string
	sources     *SourceSet
	background  reel.RGBA
}

func defaultOptions() options {
	return options{
		background: reel.Black,
	}
}

// WithBackendName pins the session to a specific registered backend
// instead of probing in priority order.
func WithBackendName(name string) Option {
	return func(o *options) {
		o.backendName = name
	}
}

// WithSources sets the frame source set. Use this to install video and
// image sources from the media package, or replace the built-ins.
func WithSources(s *SourceSet) Option {
	return func(o *options) {
		o.sources = s
	}
}

// WithBackground sets the canvas clear color. Defaults to opaque black.
func WithBackground(c reel.RGBA) Option {
	return func(o *options) {
		o.background = c
	}
}

// Compositor is a rendering session for one canvas size. It owns the
// backend choice: hardware is probed once at creation, a hardware
// failure mid-session latches the software fallback permanently, and
// only Resize (a new surface identity) probes again.
//
// Methods are safe for concurrent use, serialized internally; render
// from one goroutine at a time for throughput.
type Compositor struct {
	mu      sync.Mutex
	width   int
	height  int
	bg      reel.RGBA
	sources *SourceSet

	hw       Backend // nil when running software-only
	sw       *Software
	hwBroken bool
	pinned   string // requested backend name, empty means probe

	// warned tracks clips whose source already failed once, so a
	// missing file logs a warning once instead of once per frame.
	warned map[string]bool
}

// New creates a rendering session for width x height frames.
func New(width, height int, opts ...Option) (*Compositor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("compositor: bad canvas size %dx%d", width, height)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.sources == nil {
		o.sources = NewSourceSet()
	}

	c := &Compositor{
		width:   width,
		height:  height,
		bg:      o.background,
		sources: o.sources,
		sw:      NewSoftware(),
		pinned:  o.backendName,
		warned:  make(map[string]bool),
	}
	if err := c.sw.Init(width, height); err != nil {
		return nil, err
	}
	c.probe()
	return c, nil
}

// probe selects the hardware backend once. Callers hold no lock during
// New; Resize holds c.mu.
func (c *Compositor) probe() {
	log := reel.Logger()
	c.hw = nil
	c.hwBroken = false

	name := c.pinned
	if name == BackendSoftware {
		log.Debug("compositor: software backend pinned")
		return
	}

	var b Backend
	if name != "" {
		b = Get(name)
		if b == nil {
			log.Warn("compositor: backend not registered, using software", "backend", name)
			return
		}
	} else {
		b = Default()
		if b == nil || b.Name() == BackendSoftware {
			return
		}
	}

	if err := b.Init(c.width, c.height); err != nil {
		log.Warn("compositor: backend init failed, using software",
			"backend", b.Name(), "error", err)
		return
	}

	caps := b.Caps()
	if caps.MaxDim > 0 && (c.width > caps.MaxDim || c.height > caps.MaxDim) {
		log.Warn("compositor: canvas exceeds backend limit, using software",
			"backend", b.Name(), "max_dim", caps.MaxDim)
		_ = b.Close()
		return
	}

	log.Info("compositor: hardware backend ready",
		"backend", b.Name(), "device", caps.Device)
	c.hw = b
}

// Size returns the session canvas size.
func (c *Compositor) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// BackendName returns the name of the backend the next frame will use.
func (c *Compositor) BackendName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hw != nil && !c.hwBroken {
		return c.hw.Name()
	}
	return c.sw.Name()
}

// Sources returns the session's frame source set.
func (c *Compositor) Sources() *SourceSet {
	return c.sources
}

// NewFrame allocates a frame matching the session canvas.
func (c *Compositor) NewFrame() *image.NRGBA {
	w, h := c.Size()
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

// Resize changes the canvas size. The surface identity changes, so the
// hardware backend is probed again even after an earlier fallback.
func (c *Compositor) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("compositor: bad canvas size %dx%d", width, height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if width == c.width && height == c.height {
		return nil
	}
	c.width = width
	c.height = height

	if c.hw != nil {
		_ = c.hw.Close()
	}
	if err := c.sw.Init(width, height); err != nil {
		return err
	}
	c.probe()
	return nil
}

// Close releases backend resources. The session is unusable afterwards.
func (c *Compositor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.hw != nil {
		err = c.hw.Close()
		c.hw = nil
	}
	_ = c.sw.Close()
	return err
}

// RenderFrame resolves the timeline at time t and composites the
// result into dst, which must match the session canvas size.
func (c *Compositor) RenderFrame(ctx context.Context, tl *reel.Timeline, t float64, dst *image.NRGBA) error {
	layers := reel.ResolveLayers(tl.Tracks, t)
	return c.Compose(ctx, layers, t, dst)
}

// Compose composites already-resolved layers into dst. Audio layers
// are ignored; visual layers draw bottom to top. A layer whose source
// is not ready is skipped without failing the frame.
func (c *Compositor) Compose(ctx context.Context, layers []reel.Layer, t float64, dst *image.NRGBA) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dst.Bounds().Dx() != c.width || dst.Bounds().Dy() != c.height {
		return fmt.Errorf("compositor: frame is %dx%d, session is %dx%d",
			dst.Bounds().Dx(), dst.Bounds().Dy(), c.width, c.height)
	}

	clearFrame(dst, c.bg)

	render := make([]RenderLayer, 0, len(layers))
	for _, l := range layers {
		if l.Track != nil && l.Track.Kind == reel.TrackAudio {
			continue
		}
		if l.Clip.Kind == reel.MediaAudio {
			continue
		}
		rl, ok := c.buildLayer(ctx, l, t)
		if !ok {
			continue
		}
		render = append(render, rl)
	}

	if c.hw != nil && !c.hwBroken && c.hw.Caps().supports(render) {
		err := c.hw.Draw(dst, render)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrFallbackToCPU) {
			reel.Logger().Debug("compositor: frame fell back to software",
				"backend", c.hw.Name())
		} else {
			// A hardware failure mid-session is permanent: the device
			// is assumed gone until the surface changes.
			reel.Logger().Warn("compositor: hardware draw failed, falling back to software",
				"backend", c.hw.Name(), "error", err)
			c.hwBroken = true
		}
		clearFrame(dst, c.bg)
	}

	if err := c.sw.Draw(dst, render); err != nil {
		return fmt.Errorf("compositor: software draw: %w", err)
	}
	return nil
}

// buildLayer resolves one timeline layer into a draw operation:
// fetches source pixels, folds placement and style into an affine
// transform, and collapses color adjustments into a matrix.
func (c *Compositor) buildLayer(ctx context.Context, l reel.Layer, t float64) (RenderLayer, bool) {
	st := reel.LayerStyle(l, t)
	if st.Hidden || st.Opacity <= 0 {
		return RenderLayer{}, false
	}
	if st.ScaleX == 0 || st.ScaleY == 0 {
		return RenderLayer{}, false
	}

	img, err := c.sources.Frame(ctx, Request{
		Clip:      l.Clip,
		MediaTime: l.Clip.MediaTime(t),
		CanvasW:   c.width,
		CanvasH:   c.height,
	})
	if err != nil {
		log := reel.Logger()
		switch {
		case errors.Is(err, ErrSourceNotReady):
			log.Debug("compositor: source not ready, skipping layer",
				"clip", l.Clip.ID, "time", t)
		case c.warned[l.Clip.ID]:
			log.Debug("compositor: source failed, skipping layer",
				"clip", l.Clip.ID, "error", err)
		default:
			c.warned[l.Clip.ID] = true
			log.Warn("compositor: source failed, skipping layer",
				"clip", l.Clip.ID, "error", err)
		}
		return RenderLayer{}, false
	}
	if img == nil {
		return RenderLayer{}, false
	}

	srcRect := cropRect(img.Bounds(), l.Clip.Crop)
	if srcRect.Empty() {
		return RenderLayer{}, false
	}

	rl := RenderLayer{
		Image:   img,
		SrcRect: srcRect,
		Opacity: st.Opacity,
		Blend:   blendModeFor(l.Clip.Blend),
		Color:   colorMatrixFor(st),
		Mask:    st.Mask,
	}
	if st.Blur > 0 {
		px := st.Blur / 100 * float64(c.height)
		rl.BlurX = px
		rl.BlurY = px
	}
	rl.SrcRect, rl.Transform = c.placeLayer(l.Clip.Place, st, rl.SrcRect)
	return rl, true
}

// placeLayer maps the clip's percent placement plus the style's motion
// deltas onto a pixel affine transform. Cover fit crops the source to
// the placed aspect before stretching, so the transform itself never
// needs a clip rectangle.
func (c *Compositor) placeLayer(pl reel.Placement, st reel.Style, src image.Rectangle) (image.Rectangle, reel.Matrix) {
	fw := float64(c.width)
	fh := float64(c.height)

	pw := fw
	if pl.W != 0 {
		pw = pl.W / 100 * fw
	}
	ph := fh
	if pl.H != 0 {
		ph = pl.H / 100 * fh
	}

	srw := float64(src.Dx())
	srh := float64(src.Dy())

	var sx, sy float64
	switch pl.Fit {
	case reel.FitContain:
		s := min(pw/srw, ph/srh)
		sx, sy = s, s
	case reel.FitCover:
		src = coverCrop(src, pw/ph)
		srw, srh = float64(src.Dx()), float64(src.Dy())
		sx = pw / srw
		sy = ph / srh
	default: // FitFill
		sx = pw / srw
		sy = ph / srh
	}

	sx *= st.ScaleX
	sy *= st.ScaleY
	if pl.FlipH {
		sx = -sx
	}
	if pl.FlipV {
		sy = -sy
	}

	cx := fw/2 + pl.X/100*fw + st.TX*fw
	cy := fh/2 + pl.Y/100*fh + st.TY*fh
	rot := pl.Rotation + st.Rotation

	m := reel.Translate(cx, cy).
		Multiply(reel.RotateDegrees(rot)).
		Multiply(reel.Scale(sx, sy)).
		Multiply(reel.Translate(-srw/2, -srh/2))
	return src, m
}

// cropRect applies the clip's pan/zoom crop to the source bounds.
// Zoom z keeps 1/z of each axis; pan in [-1, 1] slides the window
// across the leftover space.
func cropRect(b image.Rectangle, crop *reel.Crop) image.Rectangle {
	// Pan has no effect without zoom: the window already fills the
	// source.
	if crop == nil || crop.Zoom <= 1 {
		return b
	}

	z := crop.Zoom
	w := float64(b.Dx()) / z
	h := float64(b.Dy()) / z

	spareX := float64(b.Dx()) - w
	spareY := float64(b.Dy()) - h
	x0 := float64(b.Min.X) + spareX/2 + clampRange(crop.PanX, -1, 1)*spareX/2
	y0 := float64(b.Min.Y) + spareY/2 + clampRange(crop.PanY, -1, 1)*spareY/2

	r := image.Rect(int(x0), int(y0), int(x0+w+0.5), int(y0+h+0.5))
	r = r.Intersect(b)
	if r.Empty() {
		return b
	}
	return r
}

// coverCrop trims rect to the target aspect ratio, keeping the center.
func coverCrop(b image.Rectangle, aspect float64) image.Rectangle {
	w := float64(b.Dx())
	h := float64(b.Dy())
	if w <= 0 || h <= 0 || aspect <= 0 {
		return b
	}

	if w/h > aspect {
		// Too wide: trim width.
		nw := h * aspect
		x0 := float64(b.Min.X) + (w-nw)/2
		return image.Rect(int(x0), b.Min.Y, int(x0+nw+0.5), b.Max.Y)
	}
	// Too tall: trim height.
	nh := w / aspect
	y0 := float64(b.Min.Y) + (h-nh)/2
	return image.Rect(b.Min.X, int(y0), b.Max.X, int(y0+nh+0.5))
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
