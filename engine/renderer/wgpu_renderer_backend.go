package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/cogentcore/webgpu/wgpu"
)

var errNoFrame = errors.New("renderer: draw outside BeginFrame/EndFrame")

// vertexLayout is the interleaved layout produced by interleave: position, normal, uv, uv2.
var vertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: vertexStride * 4,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 32, ShaderLocation: 3},
	},
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	logger *slog.Logger

	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	maxDimension int

	surfaceFormat        *wgpu.TextureFormat
	msaaTexture          *wgpu.Texture
	msaaTextureView      *wgpu.TextureView
	depthTexture         *wgpu.Texture
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount MSAASampleCount  // MSAA sample count for the main render pass

	// Frame state for batched rendering across multiple draw calls
	frameEncoder    *wgpu.CommandEncoder
	framePass       *wgpu.RenderPassEncoder
	frameSurface    *wgpu.Texture
	frameView       *wgpu.TextureView
	frameBindGroups []*wgpu.BindGroup
	drawUniforms    *uniformPool

	// Compute frame state for batching all kernel passes into a single GPU submission
	computeFrameEncoder *wgpu.CommandEncoder
	computeBindGroups   []*wgpu.BindGroup
	computeUniforms     *uniformPool

	meshes map[*bulk_mesh.CombinedMesh]*gpuMesh
}

type wgpuRendererBackend interface {
	RendererBackend

	Device() *wgpu.Device
	Queue() *wgpu.Queue
}

var _ wgpuRendererBackend = &wgpuRendererBackendImpl{}

// gpuMesh holds the uploaded buffers of one combined mesh.
type gpuMesh struct {
	vertex *wgpu.Buffer
	index  *wgpu.Buffer
	ranges []indexRange
}

func (m *gpuMesh) release() {
	m.vertex.Release()
	m.index.Release()
}

// textureBuffer is a simulation buffer stored as an rgba32float texture usable both as a storage target
// and as a sampled input.
type textureBuffer struct {
	desc     sim_buffer.Descriptor
	texture  *wgpu.Texture
	view     *wgpu.TextureView
	released bool
}

var _ sim_buffer.Buffer = &textureBuffer{}

func (t *textureBuffer) Descriptor() sim_buffer.Descriptor {
	return t.desc
}

func (t *textureBuffer) Release() {
	if t.released {
		return
	}
	t.released = true
	t.view.Release()
	t.texture.Release()
}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount, logger *slog.Logger) (wgpuRendererBackend, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		logger:      logger,
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: sampleCount,
		meshes:      make(map[*bulk_mesh.CombinedMesh]*gpuMesh),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	w.adapter = a

	// The default limits guarantee 8192 texels per dimension and 4 storage textures per stage, which
	// every simulation program stays within.
	limits := wgpu.DefaultLimits()
	w.maxDimension = int(limits.MaxTextureDimension2D)

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()
	w.drawUniforms = newUniformPool(d, "Draw")
	w.computeUniforms = newUniformPool(d, "Kernel")

	logger.Info("wgpu backend ready", "max_dimension", w.maxDimension, "msaa", uint32(sampleCount))
	return w, nil
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) MaxTextureDimension() int {
	return b.maxDimension
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseAttachments()

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1

	if msaaEnabled {
		// The render pass draws into the MSAA texture and resolves into the swapchain view.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			panic(err)
		}
		b.msaaTexture = msaaTexture
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			panic(err)
		}
	}

	// Depth texture sample count must match the color attachment.
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	b.depthTexture = depthTexture
	b.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}

	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard // Don't store MSAA data, just resolve
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:          b.msaaTextureView, // nil when MSAA is off; set in BeginFrame
				ResolveTarget: nil,               // set per-frame when MSAA is on
				LoadOp:        wgpu.LoadOpClear,
				StoreOp:       storeOp,
				ClearValue: wgpu.Color{
					R: 0.05, G: 0.05, B: 0.07, A: 1.0,
				},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
}

func (b *wgpuRendererBackendImpl) releaseAttachments() {
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTexture.Release()
		b.msaaTextureView, b.msaaTexture = nil, nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTexture.Release()
		b.depthTextureView, b.depthTexture = nil, nil
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.Source() == "" {
		return errors.New("compute pipeline has no source")
	}

	s, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: p.PipelineKey(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: p.Source(),
		},
	})
	if err != nil {
		return err
	}
	defer s.Release()

	// The layout is derived from the shader, so every declared binding must be used by the entry point.
	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: p.PipelineKey() + " Compute Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: p.ComputeEntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetComputePipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if p.Source() == "" {
		return errors.New("render pipeline has no source")
	}
	if b.surfaceFormat == nil {
		return errors.New("render pipeline registered before the surface was configured")
	}

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: p.PipelineKey(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: p.Source(),
		},
	})
	if err != nil {
		return err
	}
	defer module.Release()

	target := wgpu.ColorTargetState{
		Format:    *b.surfaceFormat,
		WriteMask: p.WriteMask(),
	}
	if p.BlendEnabled() {
		target.Blend = p.BlendState()
	}

	depthCompare := wgpu.CompareFunctionLess
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: p.PipelineKey() + " Render Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: p.VertexEntryPoint(),
			Buffers:    []wgpu.VertexBufferLayout{vertexLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: p.FragmentEntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return err
	}

	p.SetRenderPipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(desc sim_buffer.Descriptor) (sim_buffer.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Format != sim_buffer.FormatRGBA32Float {
		return nil, fmt.Errorf("unsupported buffer format %d", desc.Format)
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Usage: wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding |
			wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA32Float,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &textureBuffer{desc: desc, texture: tex, view: view}, nil
}

func textureViews(buffers []sim_buffer.Buffer) ([]*wgpu.TextureView, error) {
	views := make([]*wgpu.TextureView, len(buffers))
	for i, buf := range buffers {
		tb, ok := buf.(*textureBuffer)
		if !ok || tb.released {
			return nil, fmt.Errorf("buffer %d is not a live GPU texture", i)
		}
		views[i] = tb.view
	}
	return views, nil
}

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	b.computeUniforms.reset()
	return nil
}

func (b *wgpuRendererBackendImpl) EndComputeFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return
	}
	b.submit(b.computeFrameEncoder)
	b.computeFrameEncoder = nil
	releaseBindGroups(b.computeBindGroups)
	b.computeBindGroups = b.computeBindGroups[:0]
}

// submit finishes an encoder, submits it and releases it.
func (b *wgpuRendererBackendImpl) submit(encoder *wgpu.CommandEncoder) {
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		b.logger.Error("command encoder finish failed", "error", err)
		encoder.Release()
		return
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()
}

func releaseBindGroups(groups []*wgpu.BindGroup) {
	for _, g := range groups {
		g.Release()
	}
}

func (b *wgpuRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, inputs []sim_buffer.Buffer, output sim_buffer.Buffer, uniform []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	computePipeline, ok := p.Pipeline().(*wgpu.ComputePipeline)
	if !ok || computePipeline == nil {
		return fmt.Errorf("%s: compute pipeline not compiled", p.PipelineKey())
	}
	views, err := textureViews(append(append([]sim_buffer.Buffer(nil), inputs...), output))
	if err != nil {
		return fmt.Errorf("%s: %w", p.PipelineKey(), err)
	}

	uniformBuffer, err := b.computeUniforms.acquire(uniform)
	if err != nil {
		return err
	}
	if err := b.queue.WriteBuffer(uniformBuffer, 0, common.SliceToBytes(uniform)); err != nil {
		return err
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(views)+1)
	entries = append(entries, wgpu.BindGroupEntry{Binding: 0, Buffer: uniformBuffer, Size: wgpu.WholeSize})
	for i, view := range views {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i + 1), TextureView: view})
	}

	layout := computePipeline.GetBindGroupLayout(0)
	defer layout.Release()
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.PipelineKey() + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return err
	}

	encoder := b.computeFrameEncoder
	oneShot := encoder == nil
	if oneShot {
		// Passes issued during a reset outside a frame are submitted immediately.
		if encoder, err = b.device.CreateCommandEncoder(nil); err != nil {
			bindGroup.Release()
			return err
		}
	}

	desc := output.Descriptor()
	count := workgroups(desc.Width, desc.Height)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(computePipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(count[0], count[1], count[2])
	endErr := pass.End()

	if oneShot {
		b.submit(encoder)
		bindGroup.Release()
	} else {
		b.computeBindGroups = append(b.computeBindGroups, bindGroup)
	}
	return endErr
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Avoids "Surface image is already acquired" when frames overlap.
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.drawUniforms.reset()

	return nil
}

// upload creates the GPU buffers of a mesh on first use.
func (b *wgpuRendererBackendImpl) upload(mesh *bulk_mesh.CombinedMesh) (*gpuMesh, error) {
	if gm, ok := b.meshes[mesh]; ok {
		return gm, nil
	}

	vertices := interleave(mesh)
	indices, ranges := concatIndices(mesh)

	vertex, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: mesh.Label + " Vertex Buffer",
		Size:  uint64(len(vertices) * 4),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, &common.ResourceError{Resource: mesh.Label + " vertices", Err: err}
	}
	index, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: mesh.Label + " Index Buffer",
		Size:  uint64(len(indices) * 4),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vertex.Release()
		return nil, &common.ResourceError{Resource: mesh.Label + " indices", Err: err}
	}

	gm := &gpuMesh{vertex: vertex, index: index, ranges: ranges}
	if err := b.queue.WriteBuffer(vertex, 0, common.SliceToBytes(vertices)); err != nil {
		gm.release()
		return nil, err
	}
	if err := b.queue.WriteBuffer(index, 0, common.SliceToBytes(indices)); err != nil {
		gm.release()
		return nil, err
	}
	b.meshes[mesh] = gm
	b.logger.Debug("mesh uploaded", "mesh", mesh.Label, "vertices", len(mesh.Vertices), "indices", len(indices))
	return gm, nil
}

func (b *wgpuRendererBackendImpl) DrawMesh(p pipeline.Pipeline, mesh *bulk_mesh.CombinedMesh, submesh int, textures []sim_buffer.Buffer, uniform []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return errNoFrame
	}
	if mesh.Released() || submesh < 0 || submesh >= len(mesh.Submeshes) || len(mesh.Submeshes[submesh].Indices) == 0 {
		return nil
	}
	renderPipeline, ok := p.Pipeline().(*wgpu.RenderPipeline)
	if !ok || renderPipeline == nil {
		return fmt.Errorf("%s: render pipeline not compiled", p.PipelineKey())
	}
	views, err := textureViews(textures)
	if err != nil {
		return fmt.Errorf("%s: %w", p.PipelineKey(), err)
	}

	gm, err := b.upload(mesh)
	if err != nil {
		return err
	}

	uniformBuffer, err := b.drawUniforms.acquire(uniform)
	if err != nil {
		return err
	}
	if err := b.queue.WriteBuffer(uniformBuffer, 0, common.SliceToBytes(uniform)); err != nil {
		return err
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(views)+1)
	entries = append(entries, wgpu.BindGroupEntry{Binding: 0, Buffer: uniformBuffer, Size: wgpu.WholeSize})
	for i, view := range views {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i + 1), TextureView: view})
	}
	layout := renderPipeline.GetBindGroupLayout(0)
	defer layout.Release()
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.PipelineKey() + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	b.frameBindGroups = append(b.frameBindGroups, bindGroup)

	rng := gm.ranges[submesh]
	b.framePass.SetPipeline(renderPipeline)
	b.framePass.SetBindGroup(0, bindGroup, nil)
	b.framePass.SetVertexBuffer(0, gm.vertex, 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(gm.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.framePass.DrawIndexed(rng.Count, 1, rng.First, 0, 0)
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	if err := b.framePass.End(); err != nil {
		b.logger.Error("render pass end failed", "error", err)
	}
	b.framePass = nil

	b.submit(b.frameEncoder)
	b.frameEncoder = nil
	releaseBindGroups(b.frameBindGroups)
	b.frameBindGroups = b.frameBindGroups[:0]
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuRendererBackendImpl) ReleaseMesh(mesh *bulk_mesh.CombinedMesh) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gm, ok := b.meshes[mesh]; ok {
		gm.release()
		delete(b.meshes, mesh)
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for mesh, gm := range b.meshes {
		gm.release()
		delete(b.meshes, mesh)
	}
	releaseBindGroups(b.frameBindGroups)
	releaseBindGroups(b.computeBindGroups)
	b.frameBindGroups, b.computeBindGroups = nil, nil
	b.drawUniforms.release()
	b.computeUniforms.release()
	b.releaseAttachments()

	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}

// uniformPool hands out uniform buffers for per-invocation parameter blocks. Every acquire within a
// frame returns a distinct buffer so queued writes never overwrite a block an earlier pass still reads.
type uniformPool struct {
	device  *wgpu.Device
	label   string
	buffers []*wgpu.Buffer
	sizes   []uint64
	next    int
}

func newUniformPool(device *wgpu.Device, label string) *uniformPool {
	return &uniformPool{device: device, label: label}
}

func (p *uniformPool) acquire(data []float32) (*wgpu.Buffer, error) {
	size := uint64(len(data)*4+15) &^ 15
	if p.next < len(p.buffers) && p.sizes[p.next] >= size {
		buf := p.buffers[p.next]
		p.next++
		return buf, nil
	}

	buf, err := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("%s Uniform %d", p.label, p.next),
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, &common.ResourceError{Resource: p.label + " uniform", Err: err}
	}
	if p.next < len(p.buffers) {
		p.buffers[p.next].Release()
		p.buffers[p.next], p.sizes[p.next] = buf, size
	} else {
		p.buffers = append(p.buffers, buf)
		p.sizes = append(p.sizes, size)
	}
	p.next++
	return buf, nil
}

func (p *uniformPool) reset() {
	p.next = 0
}

func (p *uniformPool) release() {
	for _, buf := range p.buffers {
		buf.Release()
	}
	p.buffers, p.sizes, p.next = nil, nil, 0
}
