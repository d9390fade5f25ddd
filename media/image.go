// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"fmt"
	"image"
	"image/draw"
	"io"

	// Register still-image decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes a still image into straight-alpha NRGBA.
func DecodeImage(r io.Reader) (*image.NRGBA, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return ToNRGBA(src), nil
}

// LoadImage opens ref through the store and decodes it.
func LoadImage(store Store, ref string) (*image.NRGBA, error) {
	rc, err := store.Open(ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, err := DecodeImage(rc)
	if err != nil {
		return nil, fmt.Errorf("media: image %q: %w", ref, err)
	}
	return img, nil
}

// ToNRGBA converts any image to NRGBA, sharing pixels when it already
// is one.
func ToNRGBA(src image.Image) *image.NRGBA {
	if img, ok := src.(*image.NRGBA); ok {
		return img
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
