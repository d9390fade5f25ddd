// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/icza/mjpeg"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/media"
)

// MJPEGEncoder writes a motion JPEG AVI with no external tools. Every
// frame is independently coded, so every frame is a keyframe and the
// file is big, but it plays everywhere and it works on hosts with no
// ffmpeg at all. Audio is not muxed.
type MJPEGEncoder struct {
	aw      mjpeg.AviWriter
	path    string
	quality int
	frames  int
	audio   *media.PCM
	buf     bytes.Buffer
}

func NewMJPEGEncoder() *MJPEGEncoder { return &MJPEGEncoder{} }

func (e *MJPEGEncoder) Name() string { return "mjpeg" }

func (e *MJPEGEncoder) Begin(ctx context.Context, info StreamInfo) error {
	path := aviPath(info.Path)
	if path != info.Path {
		reel.Logger().Warn("export: motion JPEG writes an AVI container",
			"requested", string(info.Config.Format), "path", path)
	}

	fps := int32(info.FPS + 0.5)
	if fps < 1 {
		fps = 1
	}
	aw, err := mjpeg.New(path, int32(info.Width), int32(info.Height), fps)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	e.aw = aw
	e.path = path
	e.quality = info.Config.Quality.jpegQuality()
	e.audio = info.Audio
	return nil
}

// WriteFrame JPEG-encodes the frame and appends it. The keyframe flag
// is meaningless here, every MJPEG frame already is one.
func (e *MJPEGEncoder) WriteFrame(ctx context.Context, frame *image.NRGBA, pts int64, keyframe bool) error {
	if e.aw == nil {
		return fmt.Errorf("%w: encoder not started", ErrEncoder)
	}
	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, frame, &jpeg.Options{Quality: e.quality}); err != nil {
		return fmt.Errorf("%w: frame %d: %v", ErrEncoder, e.frames, err)
	}
	if err := e.aw.AddFrame(e.buf.Bytes()); err != nil {
		return fmt.Errorf("%w: frame %d: %v", ErrEncoder, e.frames, err)
	}
	e.frames++
	return nil
}

func (e *MJPEGEncoder) Finish(ctx context.Context) (string, error) {
	if e.aw == nil {
		return "", fmt.Errorf("%w: encoder not started", ErrEncoder)
	}
	if e.audio != nil && len(e.audio.Data) > 0 {
		reel.Logger().Warn("export: motion JPEG cannot mux audio, track dropped",
			"path", e.path)
	}
	if err := e.aw.Close(); err != nil {
		e.aw = nil
		return "", fmt.Errorf("%w: %v", ErrEncoder, err)
	}
	e.aw = nil
	return e.path, nil
}

func (e *MJPEGEncoder) Abort() {
	if e.aw != nil {
		_ = e.aw.Close()
		e.aw = nil
	}
	if e.path != "" {
		_ = os.Remove(e.path)
	}
}

// aviPath swaps the extension for .avi, the only container this
// encoder produces.
func aviPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".avi") {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".avi"
}
