package gpu

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	marlin "github.com/marlinedit/marlin"
)

// blitUniformSize is the byte size of the blit uniform block: one mat4x4
// plus one vec4 (opacity in .x, rest padding).
const blitUniformSize = 80

// gpuWaitTimeout bounds fence waits so a hung driver fails the frame
// instead of wedging the render worker.
const gpuWaitTimeout = 5 * time.Second

// copyPitchAlignment is the BytesPerRow alignment required for
// texture-to-buffer copies.
const copyPitchAlignment = 256

// HALAdapter implements Adapter over a wgpu HAL device.
type HALAdapter struct {
	device hal.Device
	queue  hal.Queue

	// ownsDevice is set when the adapter created the device itself and is
	// responsible for destroying it on Close. Shared devices belong to the
	// host application.
	ownsDevice bool
	name       string

	sampler hal.Sampler

	mu        sync.Mutex
	nextID    uint64
	textures  map[TextureID]*halTexture
	pipelines map[PipelineID]*halPipeline
}

type halTexture struct {
	tex  hal.Texture
	view hal.TextureView
	desc TextureDesc
}

type halPipeline struct {
	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	layout     hal.PipelineLayout
	pipeline   hal.RenderPipeline
}

// NewHALAdapter opens a GPU device and returns an adapter owning it.
// Discrete GPUs are preferred, then integrated.
func NewHALAdapter() (*HALAdapter, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("gpu: no adapters found")
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
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	a, err := newHALAdapter(openDev.Device, openDev.Queue, true, selected.Info.Name)
	if err != nil {
		openDev.Device.Destroy()
		return nil, err
	}
	marlin.Logger().Info("gpu: device opened", slog.String("adapter", a.name))
	return a, nil
}

// NewHALAdapterFromProvider wraps a device owned by the host application,
// letting the render core share the device the host draws with. The
// provider must also expose HAL types via HalDevice() any and HalQueue()
// any. Close releases the adapter's resources but leaves the device itself
// alive.
func NewHALAdapterFromProvider(provider gpucontext.DeviceProvider) (*HALAdapter, error) {
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}
	return newHALAdapter(device, queue, false, "shared")
}

func newHALAdapter(device hal.Device, queue hal.Queue, owns bool, name string) (*HALAdapter, error) {
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "blit_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create sampler: %w", err)
	}
	return &HALAdapter{
		device:     device,
		queue:      queue,
		ownsDevice: owns,
		name:       name,
		sampler:    sampler,
		textures:   make(map[TextureID]*halTexture),
		pipelines:  make(map[PipelineID]*halPipeline),
	}, nil
}

// Name returns the underlying adapter name.
func (a *HALAdapter) Name() string { return a.name }

func (a *HALAdapter) newID() uint64 {
	a.nextID++
	return a.nextID
}

// CreateTexture allocates a texture usable as blit source, blit target, and
// readback source.
func (a *HALAdapter) CreateTexture(desc TextureDesc) (TextureID, error) {
	format := desc.Format.ToGPUFormat()
	if format == gputypes.TextureFormatUndefined {
		return InvalidID, fmt.Errorf("gpu: no GPU format for %s", desc.Format)
	}
	label := desc.Label
	if label == "" {
		label = "render_texture"
	}

	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %dx%d %s: %v", ErrOutOfMemory, desc.Width, desc.Height, desc.Format, err)
	}

	view, err := a.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		a.device.DestroyTexture(tex)
		return InvalidID, fmt.Errorf("gpu: create texture view: %w", err)
	}

	a.mu.Lock()
	id := TextureID(a.newID())
	a.textures[id] = &halTexture{tex: tex, view: view, desc: desc}
	a.mu.Unlock()
	return id, nil
}

// DestroyTexture releases a texture and its view.
func (a *HALAdapter) DestroyTexture(id TextureID) {
	a.mu.Lock()
	t, ok := a.textures[id]
	if ok {
		delete(a.textures, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyTextureView(t.view)
		a.device.DestroyTexture(t.tex)
	}
}

func (a *HALAdapter) texture(id TextureID) (*halTexture, error) {
	a.mu.Lock()
	t, ok := a.textures[id]
	a.mu.Unlock()
	if !ok {
		return nil, ErrUnknownTexture
	}
	return t, nil
}

// UploadTexture writes tightly-packed pixel data to the texture.
func (a *HALAdapter) UploadTexture(id TextureID, data []byte) error {
	t, err := a.texture(id)
	if err != nil {
		return err
	}
	if len(data) != t.desc.ByteSize() {
		return fmt.Errorf("%w: have %d bytes, texture needs %d", ErrSizeMismatch, len(data), t.desc.ByteSize())
	}

	bpp := t.desc.Format.BytesPerPixel()
	a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(t.desc.Width * bpp),
			RowsPerImage: uint32(t.desc.Height),
		},
		&hal.Extent3D{
			Width:              uint32(t.desc.Width),
			Height:             uint32(t.desc.Height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// ReadTexture copies the texture to a staging buffer, waits for the GPU,
// and returns tightly-packed pixels. BytesPerRow is padded to the 256-byte
// copy alignment and stripped before returning.
func (a *HALAdapter) ReadTexture(id TextureID) ([]byte, error) {
	t, err := a.texture(id)
	if err != nil {
		return nil, err
	}

	w := uint32(t.desc.Width)
	h := uint32(t.desc.Height)
	bytesPerRow := w * uint32(t.desc.Format.BytesPerPixel())
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ uint32(copyPitchAlignment-1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	stagingBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(stagingBuf)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback_encoder"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}

	// CopyTextureToBuffer requires the source in copy layout; transition in
	// and back out so the texture can be sampled or rendered to afterwards.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(t.tex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	if err := a.submitAndWait(cmdBuf); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := a.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("gpu: readback: %w", err)
	}

	if alignedBytesPerRow == bytesPerRow {
		return readback[:uint64(bytesPerRow)*uint64(h)], nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(h))
	for row := uint32(0); row < h; row++ {
		srcOff := int(row) * int(alignedBytesPerRow)
		dstOff := int(row) * int(bytesPerRow)
		copy(tight[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
	}
	return tight, nil
}

// CreatePipeline compiles the blit shader with the pipeline's color
// transform folded in and builds the render pipeline for the destination
// format.
func (a *HALAdapter) CreatePipeline(desc PipelineDesc) (PipelineID, error) {
	format := desc.Format.ToGPUFormat()
	if format == gputypes.TextureFormatUndefined {
		return InvalidID, fmt.Errorf("gpu: no GPU format for %s", desc.Format)
	}
	label := desc.Label
	if label == "" {
		label = "blit"
	}

	colorFn := desc.ColorTransform
	if colorFn == "" {
		colorFn = identityColorTransform
	}
	source := fmt.Sprintf(blitShaderTemplate, colorFn)

	spirv, err := compileShaderToSPIRV(source)
	if err != nil {
		return InvalidID, fmt.Errorf("gpu: compile blit shader: %w", err)
	}
	module, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return InvalidID, fmt.Errorf("gpu: create shader module: %w", err)
	}

	bindLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		a.device.DestroyShaderModule(module)
		return InvalidID, fmt.Errorf("gpu: create bind group layout: %w", err)
	}

	layout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		a.device.DestroyBindGroupLayout(bindLayout)
		a.device.DestroyShaderModule(module)
		return InvalidID, fmt.Errorf("gpu: create pipeline layout: %w", err)
	}

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := a.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				Blend:     &premulBlend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		a.device.DestroyPipelineLayout(layout)
		a.device.DestroyBindGroupLayout(bindLayout)
		a.device.DestroyShaderModule(module)
		return InvalidID, fmt.Errorf("gpu: create render pipeline: %w", err)
	}

	a.mu.Lock()
	id := PipelineID(a.newID())
	a.pipelines[id] = &halPipeline{
		module:     module,
		bindLayout: bindLayout,
		layout:     layout,
		pipeline:   pipeline,
	}
	a.mu.Unlock()
	return id, nil
}

// DestroyPipeline releases a pipeline and its layouts.
func (a *HALAdapter) DestroyPipeline(id PipelineID) {
	a.mu.Lock()
	p, ok := a.pipelines[id]
	if ok {
		delete(a.pipelines, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyRenderPipeline(p.pipeline)
		a.device.DestroyPipelineLayout(p.layout)
		a.device.DestroyBindGroupLayout(p.bindLayout)
		a.device.DestroyShaderModule(p.module)
	}
}

// Blit draws the source texture into the destination through the pipeline.
// Per-draw resources (uniform buffer, bind group) are destroyed before
// returning, including on the error paths.
func (a *HALAdapter) Blit(params BlitParams) error {
	a.mu.Lock()
	p, pipeOK := a.pipelines[params.Pipeline]
	src, srcOK := a.textures[params.Source]
	dst, dstOK := a.textures[params.Dest]
	a.mu.Unlock()
	if !pipeOK {
		return ErrUnknownPipeline
	}
	if !srcOK || !dstOK {
		return ErrUnknownTexture
	}

	uniformBuf, err := a.createAndUploadBuffer("blit_uniform", blitUniformBytes(params.Transform, params.Opacity),
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("gpu: create uniform buffer: %w", err)
	}
	defer a.device.DestroyBuffer(uniformBuf)

	bindGroup, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "blit_bind",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: blitUniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{
				TextureView: src.view.NativeHandle(),
			}},
			{Binding: 2, Resource: gputypes.SamplerBinding{
				Sampler: a.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group: %w", err)
	}
	defer a.device.DestroyBindGroup(bindGroup)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "blit_encoder"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("blit"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "blit_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       dst.view,
			LoadOp:     gputypes.LoadOpLoad,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{},
		}},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(6, 1, 0, 0)
	rp.End()

	// Leave the destination sampleable so a later blit can read it.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: dst.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	return a.submitAndWait(cmdBuf)
}

// Clear fills the destination texture with transparent black via a bare
// clear pass.
func (a *HALAdapter) Clear(id TextureID) error {
	t, err := a.texture(id)
	if err != nil {
		return err
	}

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "clear_encoder"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("clear"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "clear_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       t.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{},
		}},
	})
	rp.End()
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)
	return a.submitAndWait(cmdBuf)
}

// Close destroys every live resource. The device itself is destroyed only
// when this adapter opened it.
func (a *HALAdapter) Close() {
	a.mu.Lock()
	textures := a.textures
	pipelines := a.pipelines
	a.textures = make(map[TextureID]*halTexture)
	a.pipelines = make(map[PipelineID]*halPipeline)
	a.mu.Unlock()

	for _, t := range textures {
		a.device.DestroyTextureView(t.view)
		a.device.DestroyTexture(t.tex)
	}
	for _, p := range pipelines {
		a.device.DestroyRenderPipeline(p.pipeline)
		a.device.DestroyPipelineLayout(p.layout)
		a.device.DestroyBindGroupLayout(p.bindLayout)
		a.device.DestroyShaderModule(p.module)
	}
	if a.sampler != nil {
		a.device.DestroySampler(a.sampler)
		a.sampler = nil
	}
	if a.ownsDevice {
		a.device.Destroy()
	}
}

// submitAndWait submits one command buffer and blocks on its fence.
func (a *HALAdapter) submitAndWait(cmdBuf hal.CommandBuffer) error {
	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	fenceOK, err := a.device.Wait(fence, 1, gpuWaitTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("gpu: wait: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// createAndUploadBuffer creates a buffer and writes data into it.
func (a *HALAdapter) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, err
	}
	a.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// compileShaderToSPIRV compiles WGSL to little-endian SPIR-V words.
func compileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, err
	}
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// blitUniformBytes serializes the uniform block: column-major matrix then
// the opacity vec4.
func blitUniformBytes(m Matrix4, opacity float32) []byte {
	out := make([]byte, blitUniformSize)
	putFloat32 := func(off int, v float32) {
		bits := math.Float32bits(v)
		out[off+0] = byte(bits)
		out[off+1] = byte(bits >> 8)
		out[off+2] = byte(bits >> 16)
		out[off+3] = byte(bits >> 24)
	}
	for i, v := range m {
		putFloat32(i*4, v)
	}
	putFloat32(64, opacity)
	return out
}
