// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package wgpu registers the GPU compute backend for frame
// compositing.
//
// Import this package to composite frames with wgpu/hal compute
// shaders via the gogpu/wgpu Pure Go WebGPU implementation (zero CGO).
// The backend handles layer transforms, resampling, opacity, and color
// matrices on the GPU; frames needing blur, masks, or non-normal blend
// modes fall back to the software path per frame.
//
// If GPU initialization fails (no Vulkan available), the session
// silently keeps the software backend. Builds with the nogpu tag drop
// this package entirely.
//
// Usage:
//
//	import _ "github.com/gogpu/reel/compositor/wgpu" // enable GPU compositing
package wgpu
