// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"fmt"
	"image"
	"math"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/compositor"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

func init() {
	compositor.Register(compositor.BackendWGPU, func() compositor.Backend {
		return New()
	})
}

// maxDim is the largest canvas edge the backend accepts. Conservative
// bound that stays under default storage buffer limits on every
// adapter the HAL exposes.
const maxDim = 8192

// Backend composites prepared layers with wgpu/hal compute shaders.
//
// Each Draw uploads the frame and the layer sources as storage
// buffers, then dispatches one compute pass per layer in a single
// command encoder. The implicit storage buffer barrier between passes
// keeps bottom-to-top compositing order without fence waits per layer.
//
// The backend handles transforms, resampling, opacity, and color
// matrices. Frames that need blur, masks, or blend modes beyond
// source-over return ErrFallbackToCPU so the session redraws them in
// software.
type Backend struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	// Frame-sized buffers, recreated on Init.
	frameBuf   hal.Buffer // composited pixels, storage
	stagingBuf hal.Buffer // map-read copy for readback
	frameSize  uint64

	width, height  int
	adapterName    string
	externalDevice bool // shared device, not destroyed on Close
	ready          bool
}

var _ compositor.Backend = (*Backend)(nil)

// New returns an uninitialized GPU backend. Init creates the device
// and pipeline; construction never touches the GPU.
func New() *Backend {
	return &Backend{}
}

// Name returns the registry name of the backend.
func (b *Backend) Name() string { return compositor.BackendWGPU }

// Caps reports the backend's drawing capabilities.
func (b *Backend) Caps() compositor.Caps {
	b.mu.Lock()
	defer b.mu.Unlock()
	return compositor.Caps{
		Device:      b.adapterName,
		MaxDim:      maxDim,
		ColorMatrix: true,
	}
}

// Init opens the GPU device on first use and sizes the frame buffers.
// Wraps ErrBackendNotAvailable when no usable adapter exists, which
// makes the session fall through to the software backend.
func (b *Backend) Init(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width <= 0 || height <= 0 {
		return fmt.Errorf("wgpu: invalid canvas size %dx%d", width, height)
	}
	if width > maxDim || height > maxDim {
		return fmt.Errorf("wgpu: canvas %dx%d exceeds %d px limit", width, height, maxDim)
	}

	if b.device == nil {
		if err := b.initGPU(); err != nil {
			return fmt.Errorf("%w: %v", compositor.ErrBackendNotAvailable, err)
		}
	}
	if err := b.createFrameBuffers(width, height); err != nil {
		return err
	}

	b.width, b.height = width, height
	b.frameSize = uint64(width) * uint64(height) * 4
	b.ready = true
	return nil
}

// Draw composites layers bottom to top into dst.
func (b *Backend) Draw(dst *image.NRGBA, layers []compositor.RenderLayer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ready {
		return compositor.ErrNotInitialized
	}
	db := dst.Bounds()
	if db.Dx() != b.width || db.Dy() != b.height {
		return fmt.Errorf("wgpu: frame is %dx%d, backend sized for %dx%d",
			db.Dx(), db.Dy(), b.width, b.height)
	}
	for i := range layers {
		l := &layers[i]
		if l.BlurX > 0 || l.BlurY > 0 || l.Mask != nil || l.Blend != compositor.BlendNormal {
			return compositor.ErrFallbackToCPU
		}
	}

	bindings, err := b.createLayerBindings(layers)
	if err != nil {
		b.destroyBindings(bindings)
		return err
	}
	defer b.destroyBindings(bindings)
	if len(bindings.bindGroups) == 0 {
		// Every layer was empty or degenerate. dst already holds the
		// cleared background.
		return nil
	}

	b.queue.WriteBuffer(b.frameBuf, 0, packRegion(dst, db))
	return b.encodePasses(bindings.bindGroups, dst)
}

// Close releases GPU resources. Shared devices are detached, not
// destroyed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.destroyFrameBuffers()
	b.destroyPipeline()
	if !b.externalDevice {
		if b.device != nil {
			b.device.Destroy()
		}
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	b.device = nil
	b.instance = nil
	b.queue = nil
	b.externalDevice = false
	b.ready = false
	return nil
}

// layerBindings holds the per-layer GPU objects for one frame.
type layerBindings struct {
	srcBufs     []hal.Buffer
	uniformBufs []hal.Buffer
	bindGroups  []hal.BindGroup
}

// createLayerBindings uploads each drawable layer's source pixels and
// uniform parameters, and builds a bind group per compute pass. Empty
// and degenerate layers are skipped.
func (b *Backend) createLayerBindings(layers []compositor.RenderLayer) (*layerBindings, error) {
	lb := &layerBindings{}
	for i := range layers {
		l := &layers[i]
		if l.Image == nil || l.Opacity <= 0 {
			continue
		}
		det := l.Transform.A*l.Transform.E - l.Transform.B*l.Transform.D
		if math.Abs(det) < 1e-9 {
			continue
		}
		srcRect := l.SrcRect
		if srcRect.Empty() {
			srcRect = l.Image.Bounds()
		}
		if srcRect.Dx() <= 0 || srcRect.Dy() <= 0 {
			continue
		}

		srcBytes := packRegion(l.Image, srcRect)
		srcBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "layer_src", Size: uint64(len(srcBytes)),
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return lb, fmt.Errorf("create source buffer %d: %w", i, err)
		}
		lb.srcBufs = append(lb.srcBufs, srcBuf)
		b.queue.WriteBuffer(srcBuf, 0, srcBytes)

		params := makeLayerParams(l, l.Transform.Invert(), b.width, b.height, srcRect.Dx(), srcRect.Dy())
		ub, err := b.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "layer_params", Size: layerParamsSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return lb, fmt.Errorf("create uniform buffer %d: %w", i, err)
		}
		lb.uniformBufs = append(lb.uniformBufs, ub)
		b.queue.WriteBuffer(ub, 0, params.bytes())

		bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label: "layer_bind", Layout: b.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: layerParamsSize}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: srcBuf.NativeHandle(), Offset: 0, Size: uint64(len(srcBytes))}},
				{Binding: 2, Resource: gputypes.BufferBinding{Buffer: b.frameBuf.NativeHandle(), Offset: 0, Size: b.frameSize}},
			},
		})
		if err != nil {
			return lb, fmt.Errorf("create bind group %d: %w", i, err)
		}
		lb.bindGroups = append(lb.bindGroups, bg)
	}
	return lb, nil
}

// destroyBindings releases per-layer GPU objects.
func (b *Backend) destroyBindings(lb *layerBindings) {
	if lb == nil {
		return
	}
	for _, bg := range lb.bindGroups {
		if bg != nil {
			b.device.DestroyBindGroup(bg)
		}
	}
	for _, ub := range lb.uniformBufs {
		if ub != nil {
			b.device.DestroyBuffer(ub)
		}
	}
	for _, sb := range lb.srcBufs {
		if sb != nil {
			b.device.DestroyBuffer(sb)
		}
	}
}

// encodePasses records one compute pass per layer, copies the frame to
// the staging buffer, submits, waits for the GPU to drain, and maps
// the staging buffer to read the result back into dst.
func (b *Backend) encodePasses(bindGroups []hal.BindGroup, dst *image.NRGBA) error {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "composite_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("composite"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	w, h := uint32(b.width), uint32(b.height) //nolint:gosec // bounded by maxDim
	for _, bg := range bindGroups {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "composite_pass"})
		pass.SetPipeline(b.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch((w+7)/8, (h+7)/8, 1)
		pass.End()
	}

	encoder.CopyBufferToBuffer(b.frameBuf, b.stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: b.frameSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	if _, err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	// The HAL owns submission synchronization; WaitIdle blocks until
	// the copy into the staging buffer has landed.
	if err := b.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}

	mapping, err := b.device.MapBuffer(b.stagingBuf, 0, b.frameSize)
	if err != nil {
		return fmt.Errorf("map staging buffer: %w", err)
	}
	unpackFrame(unsafe.Slice((*byte)(mapping.Ptr), b.frameSize), dst)
	if err := b.device.UnmapBuffer(b.stagingBuf); err != nil {
		return fmt.Errorf("unmap staging buffer: %w", err)
	}
	return nil
}

// initGPU opens a device. A shared device installed via UseDevice is
// adopted as-is; otherwise the Vulkan backend is probed for an
// adapter, preferring discrete then integrated GPUs.
func (b *Backend) initGPU() error {
	if dev, q := currentShared(); dev != nil {
		b.device = dev
		b.queue = q
		b.externalDevice = true
		b.adapterName = "shared device"
		if err := b.createPipeline(); err != nil {
			b.device = nil
			b.queue = nil
			b.externalDevice = false
			return fmt.Errorf("create pipeline with shared device: %w", err)
		}
		reel.Logger().Info("wgpu: using shared GPU device")
		return nil
	}

	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	b.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	b.device = openDev.Device
	b.queue = openDev.Queue
	if err := b.createPipeline(); err != nil {
		b.device.Destroy()
		b.device = nil
		b.queue = nil
		return fmt.Errorf("create pipeline: %w", err)
	}
	b.adapterName = selected.Info.Name
	reel.Logger().Info("wgpu: compositor backend initialized", "adapter", b.adapterName)
	return nil
}

// createPipeline compiles the composite shader and builds the compute
// pipeline.
func (b *Backend) createPipeline() error {
	spirv, err := compileShader(compositeShaderSource)
	if err != nil {
		return fmt.Errorf("compile composite shader: %w", err)
	}
	shader, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "composite",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	b.shader = shader

	bindLayout, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "composite_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	b.bindLayout = bindLayout

	pipeLayout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "composite_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{b.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	b.pipeLayout = pipeLayout

	pipeline, err := b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "composite_pipeline", Layout: b.pipeLayout,
		Compute: hal.ComputeState{Module: b.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	b.pipeline = pipeline
	return nil
}

// destroyPipeline releases pipeline objects in reverse creation order.
func (b *Backend) destroyPipeline() {
	if b.device == nil {
		return
	}
	if b.pipeline != nil {
		b.device.DestroyComputePipeline(b.pipeline)
		b.pipeline = nil
	}
	if b.pipeLayout != nil {
		b.device.DestroyPipelineLayout(b.pipeLayout)
		b.pipeLayout = nil
	}
	if b.bindLayout != nil {
		b.device.DestroyBindGroupLayout(b.bindLayout)
		b.bindLayout = nil
	}
	if b.shader != nil {
		b.device.DestroyShaderModule(b.shader)
		b.shader = nil
	}
}

// createFrameBuffers allocates the frame storage and staging buffers
// for the given canvas size, replacing any existing pair.
func (b *Backend) createFrameBuffers(width, height int) error {
	b.destroyFrameBuffers()
	size := uint64(width) * uint64(height) * 4

	frameBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "frame_pixels", Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create frame buffer: %w", err)
	}
	stagingBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "frame_staging", Size: size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		b.device.DestroyBuffer(frameBuf)
		return fmt.Errorf("create staging buffer: %w", err)
	}
	b.frameBuf = frameBuf
	b.stagingBuf = stagingBuf
	return nil
}

// destroyFrameBuffers releases the frame-sized buffers.
func (b *Backend) destroyFrameBuffers() {
	if b.device == nil {
		return
	}
	if b.frameBuf != nil {
		b.device.DestroyBuffer(b.frameBuf)
		b.frameBuf = nil
	}
	if b.stagingBuf != nil {
		b.device.DestroyBuffer(b.stagingBuf)
		b.stagingBuf = nil
	}
}
