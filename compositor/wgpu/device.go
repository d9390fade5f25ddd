// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DeviceHandle provides GPU device access from a host application.
//
// Hosts that already own a GPU device (a player window, an editor
// preview surface) implement DeviceHandle and pass it to UseDevice so
// the compositor shares the device instead of opening its own. It is
// an alias for gpucontext.DeviceProvider, keeping full compatibility
// with the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle with nil implementations. Useful
// for exercising provider plumbing without a GPU.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo returns unknown adapter metadata for the null device.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown}
}

var _ DeviceHandle = NullDeviceHandle{}

// sharedMu guards the process-wide shared device installed by
// UseDevice. Backends created after installation adopt it in Init.
var (
	sharedMu     sync.Mutex
	sharedDevice hal.Device
	sharedQueue  hal.Queue
)

// UseDevice installs a shared GPU device for all backends created
// afterwards. The provider must also expose HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue for direct HAL
// access; gogpu's context provider does.
//
// Call before the first Compositor is created. Sessions already
// holding their own device keep it until they are resized or closed.
func UseDevice(provider DeviceHandle) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedDevice = device
	sharedQueue = queue
	return nil
}

// ClearDevice removes the shared device. Backends created afterwards
// open their own.
func ClearDevice() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedDevice = nil
	sharedQueue = nil
}

// currentShared returns the installed shared device, or nil.
func currentShared() (hal.Device, hal.Queue) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return sharedDevice, sharedQueue
}
