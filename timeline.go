package reel

// TrackKind identifies what a track holds and how the resolver treats it.
type TrackKind string

const (
	// TrackVideo is a base video lane: one visible clip at a time,
	// transitions between adjacent clips.
	TrackVideo TrackKind = "video"
	// TrackOverlay stacks above all video lanes (picture-in-picture,
	// stickers, titles). Same one-at-a-time resolution as video.
	TrackOverlay TrackKind = "overlay"
	// TrackAudio contributes sound only. Overlapping clips are legal and
	// all clips covering an instant are active simultaneously.
	TrackAudio TrackKind = "audio"
)

// MediaKind identifies the media a clip references.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
	MediaColor MediaKind = "color"
	MediaText  MediaKind = "text"
	MediaAudio MediaKind = "audio"
)

// Direction is a compass direction shared by directional transitions
// (slide, push, wipe) and slide-style animations.
type Direction string

const (
	DirLeft  Direction = "left"
	DirRight Direction = "right"
	DirUp    Direction = "up"
	DirDown  Direction = "down"
)

// FitMode controls how source media maps into its placement box when the
// aspect ratios differ.
type FitMode string

const (
	// FitContain letterboxes: the whole source stays visible.
	FitContain FitMode = "contain"
	// FitCover fills the box and crops the overflow.
	FitCover FitMode = "cover"
	// FitFill stretches to the box, ignoring aspect ratio.
	FitFill FitMode = "fill"
)

// Timeline is the root of the model: an ordered stack of tracks sharing
// one time axis. Earlier tracks render below later ones; overlay tracks
// render above every video track regardless of slice position.
type Timeline struct {
	Tracks []*Track `json:"tracks"`
}

// Duration returns the end time of the last clip across all tracks.
func (tl *Timeline) Duration() float64 {
	var d float64
	for _, tr := range tl.Tracks {
		for _, c := range tr.Clips {
			if end := c.End(); end > d {
				d = end
			}
		}
	}
	return d
}

// Normalize sorts every track's clips and repairs fields whose zero value
// is meaningless (a clip cannot play at speed zero). Called by
// DecodeTimeline; explicit construction may call it once after building.
func (tl *Timeline) Normalize() {
	for _, tr := range tl.Tracks {
		tr.SortClips()
		for _, c := range tr.Clips {
			if c.Speed <= 0 {
				c.Speed = 1
			}
		}
	}
}

// Track is one lane of clips. Clips must be kept sorted by Start; use
// SortClips after mutating.
type Track struct {
	ID     string    `json:"id"`
	Kind   TrackKind `json:"kind"`
	Name   string    `json:"name,omitempty"`
	Hidden bool      `json:"hidden,omitempty"`
	Muted  bool      `json:"muted,omitempty"`
	Clips  []*Clip   `json:"clips"`
}

// SortClips orders the track's clips by start time, preserving the
// relative order of equal starts so first-match resolution stays stable.
func (tr *Track) SortClips() {
	clips := tr.Clips
	for i := 1; i < len(clips); i++ {
		for j := i; j > 0 && clips[j].Start < clips[j-1].Start; j-- {
			clips[j], clips[j-1] = clips[j-1], clips[j]
		}
	}
}

// Clip is one piece of media on a track.
//
// Start and Duration are timeline seconds. Offset trims into the source
// media, and Speed scales media consumption, so the media instant shown
// at timeline time t is Offset + (t-Start)*Speed. Blend names the
// compositing operator against the layers beneath ("normal", "multiply",
// "screen", "overlay"); empty or unknown values composite normally.
//
// The zero value is not usable directly: Opacity, Speed, and Volume
// default to zero. Use NewClip, or DecodeTimeline which applies the same
// defaults to absent JSON fields.
type Clip struct {
	ID       string    `json:"id"`
	Kind     MediaKind `json:"kind"`
	Source   string    `json:"source,omitempty"`
	Start    float64   `json:"start"`
	Duration float64   `json:"duration"`
	Offset   float64   `json:"offset,omitempty"`
	Speed    float64   `json:"speed"`

	Place   Placement    `json:"place,omitzero"`
	Opacity float64      `json:"opacity"`
	Blend   string       `json:"blend,omitempty"`
	Crop    *Crop        `json:"crop,omitempty"`
	Border  *Border      `json:"border,omitempty"`
	Filter  FilterPreset `json:"filter,omitempty"`
	Adjust  Adjustments  `json:"adjust,omitzero"`

	Transition *Transition `json:"transition,omitempty"`
	Animation  *Animation  `json:"animation,omitempty"`

	Fill RGBA       `json:"fill,omitzero"`
	Text *TextAttrs `json:"text,omitempty"`

	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted,omitempty"`
}

// NewClip creates a clip with usable defaults: full opacity, unit speed,
// unit volume.
func NewClip(kind MediaKind, source string, start, duration float64) *Clip {
	return &Clip{
		Kind:     kind,
		Source:   source,
		Start:    start,
		Duration: duration,
		Speed:    1,
		Opacity:  1,
		Volume:   1,
	}
}

// End returns the clip's end time on the timeline.
func (c *Clip) End() float64 { return c.Start + c.Duration }

// Contains reports whether timeline time t falls inside the clip.
// The start is inclusive, the end exclusive.
func (c *Clip) Contains(t float64) bool {
	return t >= c.Start && t < c.End()
}

// LocalTime returns t relative to the clip start, clamped to the clip's
// duration. Animation curves run on local time.
func (c *Clip) LocalTime(t float64) float64 {
	lt := t - c.Start
	if lt < 0 {
		return 0
	}
	if lt > c.Duration {
		return c.Duration
	}
	return lt
}

// MediaTime maps timeline time t to a media timestamp, honoring the trim
// offset and playback speed. The result is not clamped to the media
// duration; decoders clamp against the real asset length.
func (c *Clip) MediaTime(t float64) float64 {
	speed := c.Speed
	if speed <= 0 {
		speed = 1
	}
	return c.Offset + (t-c.Start)*speed
}

// Placement positions a clip on the canvas in resolution-independent
// units. X and Y offset the clip center from the canvas center, as
// percentages of canvas width and height (0,0 is centered). W and H size
// the clip as canvas percentages; zero means full canvas. Rotation is in
// degrees, clockwise.
type Placement struct {
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	W        float64 `json:"w,omitempty"`
	H        float64 `json:"h,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
	FlipH    bool    `json:"flip_h,omitempty"`
	FlipV    bool    `json:"flip_v,omitempty"`
	Fit      FitMode `json:"fit,omitempty"`
}

// Crop selects a sub-window of the source before placement. Zoom >= 1
// magnifies around the window center; PanX and PanY shift the window by
// percentages of the overflow created by the zoom.
type Crop struct {
	PanX float64 `json:"pan_x,omitempty"`
	PanY float64 `json:"pan_y,omitempty"`
	Zoom float64 `json:"zoom,omitempty"`
}

// Border draws a frame around the clip's placement box. Width and Radius
// are percentages of canvas height so borders scale with the output.
type Border struct {
	Width  float64 `json:"width"`
	Radius float64 `json:"radius,omitempty"`
	Color  RGBA    `json:"color,omitzero"`
}

// TextAttrs carries the content and styling of a text clip. Size is a
// percentage of canvas height. FontRef names a font asset resolvable by
// the compositor's font source; empty selects the built-in face.
type TextAttrs struct {
	Content    string  `json:"content"`
	FontRef    string  `json:"font_ref,omitempty"`
	Size       float64 `json:"size,omitempty"`
	Color      RGBA    `json:"color,omitzero"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Align      Align   `json:"align,omitempty"`
	Background RGBA    `json:"background,omitzero"`
	Outline    RGBA    `json:"outline,omitzero"`
}

// Align positions text lines within the text box.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)
