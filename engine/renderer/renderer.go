// Package renderer executes simulation kernel passes and draws on the GPU. A Renderer is at once the
// simulation buffer host, the kernel pass executor and the draw target of every simulation driver.
package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/Carmen-Shannon/kvant-go/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrUnknownProgram is returned when a kernel pass or draw names a program that was never registered.
var ErrUnknownProgram = errors.New("renderer: program not registered")

// FrameStats counts the work submitted since the last BeginFrame.
type FrameStats struct {
	Draws      int
	Culled     int
	Dispatches int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend
	logger      *slog.Logger

	viewProjection mgl32.Mat4
	frustum        common.Frustum
	cull           bool
	stats          FrameStats

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	pendingPrograms      []pipeline.Pipeline
}

// Renderer defines the interface for the rendering system.
//
// The Renderer caches compiled programs by key: draw materials by material name and kernel passes by
// pipeline.KernelKey. It allocates simulation buffers as GPU textures and resolves the parameters and
// texture bindings of every kernel pass and draw against the program's declared layout.
type Renderer interface {
	sim_buffer.Host
	simulation.Kernel
	simulation.Renderer
	simulation.MeshReleaser

	// Program retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Program(key string) pipeline.Pipeline

	// RegisterPrograms compiles one or more pipelines via the backend and caches them by PipelineKey.
	// Pipelines whose keys are already registered are skipped to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPrograms(pipelines ...pipeline.Pipeline) error

	// Resize configures the underlying backend to handle a new surface size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. A call to Resize is required for it to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// SetViewProjection sets the camera matrix used by every following draw and by frustum culling.
	//
	// Parameters:
	//   - viewProjection: the combined view and projection matrix
	SetViewProjection(viewProjection mgl32.Mat4)

	// BeginComputeFrame opens a single command encoder batching all kernel passes of a frame.
	// Must be paired with EndComputeFrame.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// EndComputeFrame submits the batched kernel passes. It must be called before EndFrame so the
	// frame's draws read this frame's simulation output.
	EndComputeFrame()

	// BeginFrame acquires the swapchain texture and begins the main render pass.
	// Must be paired with EndFrame after all draws within a single frame.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	Present()

	// FrameStats returns the counters of the current frame.
	//
	// Returns:
	//   - FrameStats: draws issued, draws culled, and kernel passes dispatched
	FrameStats() FrameStats

	// Release frees every program and GPU object.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type, drawing into the window's
// surface. A backend supplied with WithBackend is used as is and the window may be nil.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - win: the window providing the surface and its initial size
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error if the backend could not be created or a program failed to compile
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:             &sync.Mutex{},
		pipelineCache:  make(map[string]pipeline.Pipeline),
		backendType:    backendType,
		logger:         slog.Default(),
		viewProjection: mgl32.Ident4(),
		cull:           true,
	}
	r.frustum = common.ExtractFrustumFromMatrix(r.viewProjection)

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		if win == nil {
			return nil, errors.New("renderer: a window is required without an explicit backend")
		}
		msaa := MSAA4x
		if r.pendingMSAA != nil {
			msaa = *r.pendingMSAA
		}
		switch backendType {
		case BackendTypeWGPU:
			fallthrough
		default:
			b, err := newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter, msaa, r.logger)
			if err != nil {
				return nil, err
			}
			r.backend = b
		}
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if win != nil {
		r.backend.ConfigureSurface(win.Width(), win.Height())
	}

	if err := r.RegisterPrograms(r.pendingPrograms...); err != nil {
		r.Release()
		return nil, err
	}
	r.pendingPrograms = nil
	return r, nil
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) SetViewProjection(viewProjection mgl32.Mat4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewProjection = viewProjection
	r.frustum = common.ExtractFrustumFromMatrix(viewProjection)
}

func (r *renderer) Program(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPrograms(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			if err := r.backend.RegisterComputePipeline(p); err != nil {
				return fmt.Errorf("register %s: %w", key, err)
			}
		case pipeline.PipelineTypeRender:
			if err := r.backend.RegisterRenderPipeline(p); err != nil {
				return fmt.Errorf("register %s: %w", key, err)
			}
		}
		r.pipelineCache[key] = p
		r.logger.Debug("program registered", "key", key)
	}
	return nil
}

func (r *renderer) CreateBuffer(desc sim_buffer.Descriptor) (sim_buffer.Buffer, error) {
	return r.backend.CreateTexture(desc)
}

func (r *renderer) MaxDimension() int {
	return r.backend.MaxTextureDimension()
}

func (r *renderer) lookup(key string, want pipeline.PipelineType) (pipeline.Pipeline, error) {
	r.mu.Lock()
	p, exists := r.pipelineCache[key]
	r.mu.Unlock()
	if !exists || p.Type() != want {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, key)
	}
	return p, nil
}

func (r *renderer) Invoke(inv simulation.Invocation) error {
	p, err := r.lookup(pipeline.KernelKey(inv.Program, inv.Pass), pipeline.PipelineTypeCompute)
	if err != nil {
		return err
	}
	uniform, err := packParameters(p.Parameters(), inv.Parameters)
	if err != nil {
		return fmt.Errorf("%s: %w", p.PipelineKey(), err)
	}
	if err := r.backend.DispatchCompute(p, inv.Inputs, inv.Output, uniform); err != nil {
		return err
	}

	r.mu.Lock()
	r.stats.Dispatches++
	r.mu.Unlock()
	return nil
}

func (r *renderer) Draw(call simulation.DrawCall) error {
	p, err := r.lookup(call.Material, pipeline.PipelineTypeRender)
	if err != nil {
		return err
	}

	r.mu.Lock()
	viewProjection, frustum, cull := r.viewProjection, r.frustum, r.cull
	r.mu.Unlock()

	if cull && !frustum.IntersectsBounds(call.Mesh.Bounds.Transform(call.Transform)) {
		r.mu.Lock()
		r.stats.Culled++
		r.mu.Unlock()
		return nil
	}

	textures := make([]sim_buffer.Buffer, len(p.Textures()))
	for i, name := range p.Textures() {
		buf, ok := call.Overrides[name].(sim_buffer.Buffer)
		if !ok || buf == nil {
			return fmt.Errorf("%s: texture %q is not bound", call.Material, name)
		}
		textures[i] = buf
	}

	uniform, err := drawUniform(viewProjection, call.Transform, p.Parameters(), call.Overrides)
	if err != nil {
		return fmt.Errorf("%s: %w", call.Material, err)
	}
	if err := r.backend.DrawMesh(p, call.Mesh, call.Submesh, textures, uniform); err != nil {
		return err
	}

	r.mu.Lock()
	r.stats.Draws++
	r.mu.Unlock()
	return nil
}

func (r *renderer) ReleaseMesh(mesh *bulk_mesh.CombinedMesh) {
	r.backend.ReleaseMesh(mesh)
}

func (r *renderer) BeginComputeFrame() error {
	r.mu.Lock()
	r.stats.Dispatches = 0
	r.mu.Unlock()
	return r.backend.BeginComputeFrame()
}

func (r *renderer) EndComputeFrame() {
	r.backend.EndComputeFrame()
}

func (r *renderer) BeginFrame() error {
	r.mu.Lock()
	r.stats.Draws = 0
	r.stats.Culled = 0
	r.mu.Unlock()
	return r.backend.BeginFrame()
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) FrameStats() FrameStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *renderer) Release() {
	r.mu.Lock()
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.mu.Unlock()
	r.backend.Release()
}
