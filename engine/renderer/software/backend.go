// Package software is a headless renderer backend. Simulation buffers live in main memory, kernel passes
// run as Go functions, and draws are recorded instead of rasterized. It serves headless runs and tests,
// and doubles as a deterministic reference for the GPU programs.
package software

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
)

// ErrNoKernel is returned when a compute program has no registered KernelFunc.
var ErrNoKernel = errors.New("software: no kernel registered")

// DrawRecord is one recorded draw.
type DrawRecord struct {
	Material string
	Mesh     *bulk_mesh.CombinedMesh
	Submesh  int
	Textures []sim_buffer.Buffer
	// Params are the material parameter slots, without the leading matrices.
	Params Slots
}

// Backend is the software implementation of renderer.RendererBackend.
type Backend struct {
	mu     *sync.Mutex
	logger *slog.Logger

	host    *sim_buffer.MemoryHost
	kernels map[string]KernelFunc

	width, height int
	inFrame       bool
	frames        int
	dispatches    int
	draws         []DrawRecord
	uploaded      map[*bulk_mesh.CombinedMesh]bool
}

var _ renderer.RendererBackend = &Backend{}

// NewBackend creates a software backend backed by a default MemoryHost.
//
// Parameters:
//   - options: functional options to configure the backend
//
// Returns:
//   - *Backend: the configured backend
func NewBackend(options ...BackendBuilderOption) *Backend {
	b := &Backend{
		mu:       &sync.Mutex{},
		logger:   slog.Default(),
		kernels:  make(map[string]KernelFunc),
		uploaded: make(map[*bulk_mesh.CombinedMesh]bool),
	}
	for _, opt := range options {
		opt(b)
	}
	if b.host == nil {
		b.host = sim_buffer.NewMemoryHost()
	}
	return b
}

// RegisterKernel adds or replaces the KernelFunc run for a compute pipeline key.
//
// Parameters:
//   - key: the pipeline key, usually pipeline.KernelKey(program, pass)
//   - fn: the kernel function
func (b *Backend) RegisterKernel(key string, fn KernelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kernels[key] = fn
}

// Host returns the memory host that allocates the backend's buffers.
func (b *Backend) Host() *sim_buffer.MemoryHost {
	return b.host
}

func (b *Backend) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
}

func (b *Backend) SetPresentMode(renderer.PresentMode) {}

func (b *Backend) RegisterComputePipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.kernels[p.PipelineKey()]; !ok {
		return fmt.Errorf("%w: %s", ErrNoKernel, p.PipelineKey())
	}
	return nil
}

func (b *Backend) RegisterRenderPipeline(pipeline.Pipeline) error {
	return nil
}

func (b *Backend) CreateTexture(desc sim_buffer.Descriptor) (sim_buffer.Buffer, error) {
	return b.host.CreateBuffer(desc)
}

func (b *Backend) MaxTextureDimension() int {
	return b.host.MaxDimension()
}

// Kernel passes run synchronously, so compute frames need no batching.
func (b *Backend) BeginComputeFrame() error {
	return nil
}

func (b *Backend) EndComputeFrame() {}

func memoryBuffers(buffers []sim_buffer.Buffer) ([]*sim_buffer.MemoryBuffer, error) {
	out := make([]*sim_buffer.MemoryBuffer, len(buffers))
	for i, buf := range buffers {
		mb, ok := buf.(*sim_buffer.MemoryBuffer)
		if !ok || mb.Released() {
			return nil, fmt.Errorf("buffer %d is not a live memory buffer", i)
		}
		out[i] = mb
	}
	return out, nil
}

func (b *Backend) DispatchCompute(p pipeline.Pipeline, inputs []sim_buffer.Buffer, output sim_buffer.Buffer, uniform []float32) error {
	b.mu.Lock()
	fn, ok := b.kernels[p.PipelineKey()]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoKernel, p.PipelineKey())
	}

	ins, err := memoryBuffers(inputs)
	if err != nil {
		return fmt.Errorf("%s: %w", p.PipelineKey(), err)
	}
	outs, err := memoryBuffers([]sim_buffer.Buffer{output})
	if err != nil {
		return fmt.Errorf("%s: output: %w", p.PipelineKey(), err)
	}

	if err := fn(Invocation{
		Key:    p.PipelineKey(),
		Inputs: ins,
		Output: outs[0],
		Params: unpack(p.Parameters(), uniform),
	}); err != nil {
		return fmt.Errorf("%s: %w", p.PipelineKey(), err)
	}

	b.mu.Lock()
	b.dispatches++
	b.mu.Unlock()
	return nil
}

func (b *Backend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return errors.New("software: previous frame not ended")
	}
	b.inFrame = true
	b.draws = b.draws[:0]
	return nil
}

func (b *Backend) DrawMesh(p pipeline.Pipeline, mesh *bulk_mesh.CombinedMesh, submesh int, textures []sim_buffer.Buffer, uniform []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.inFrame {
		return errors.New("software: draw outside BeginFrame/EndFrame")
	}
	if mesh.Released() || submesh < 0 || submesh >= len(mesh.Submeshes) {
		return nil
	}
	if !b.uploaded[mesh] {
		b.uploaded[mesh] = true
		b.logger.Debug("mesh uploaded", "mesh", mesh.Label, "vertices", mesh.VertexCount())
	}

	// The first eight slots carry the view-projection and model matrices.
	var params Slots
	if len(uniform) >= 32 {
		params = unpack(p.Parameters(), uniform[32:])
	}
	b.draws = append(b.draws, DrawRecord{
		Material: p.PipelineKey(),
		Mesh:     mesh,
		Submesh:  submesh,
		Textures: append([]sim_buffer.Buffer(nil), textures...),
		Params:   params,
	})
	return nil
}

func (b *Backend) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFrame = false
	b.frames++
}

func (b *Backend) Present() {}

func (b *Backend) ReleaseMesh(mesh *bulk_mesh.CombinedMesh) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.uploaded, mesh)
}

func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.uploaded)
	b.draws = nil
}

// Draws returns the draws recorded since the last BeginFrame.
func (b *Backend) Draws() []DrawRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DrawRecord(nil), b.draws...)
}

// Dispatches returns the total number of kernel passes run.
func (b *Backend) Dispatches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dispatches
}

// SurfaceSize returns the size of the last ConfigureSurface call.
func (b *Backend) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// Frames returns the number of completed frames.
func (b *Backend) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// UploadedMeshes returns the number of meshes currently uploaded.
func (b *Backend) UploadedMeshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploaded)
}
