package renderer

import (
	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)

// RendererBackend is the GPU API behind a Renderer. Calls arrive already resolved: pipelines are looked
// up, parameters packed, and draws culled by the Renderer.
type RendererBackend interface {
	// ConfigureSurface (re)creates the swapchain and attachments for the given surface size.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode; takes effect on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// RegisterComputePipeline compiles a kernel program and stores the result on the pipeline.
	//
	// Parameters:
	//   - p: the compute pipeline to compile
	//
	// Returns:
	//   - error: an error if the shader module or pipeline could not be created
	RegisterComputePipeline(p pipeline.Pipeline) error

	// RegisterRenderPipeline compiles a draw program and stores the result on the pipeline.
	//
	// Parameters:
	//   - p: the render pipeline to compile
	//
	// Returns:
	//   - error: an error if the shader module or pipeline could not be created
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// CreateTexture allocates one simulation buffer.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - sim_buffer.Buffer: the new buffer
	//   - error: any allocation failure
	CreateTexture(desc sim_buffer.Descriptor) (sim_buffer.Buffer, error)

	// MaxTextureDimension returns the largest width or height CreateTexture accepts.
	MaxTextureDimension() int

	// BeginComputeFrame opens the command encoder that batches the frame's kernel passes.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// EndComputeFrame submits the batched kernel passes.
	EndComputeFrame()

	// DispatchCompute encodes one kernel pass. Outside a compute frame the pass is submitted at once.
	//
	// Parameters:
	//   - p: the compiled compute pipeline
	//   - inputs: buffers bound from binding 1
	//   - output: the buffer bound as the storage target
	//   - uniform: the packed parameter block bound at binding 0
	//
	// Returns:
	//   - error: any failure binding or submitting the pass
	DispatchCompute(p pipeline.Pipeline, inputs []sim_buffer.Buffer, output sim_buffer.Buffer, uniform []float32) error

	// BeginFrame acquires the swapchain texture and begins the main render pass.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// DrawMesh encodes one indexed draw of a submesh, uploading the mesh on first use.
	//
	// Parameters:
	//   - p: the compiled render pipeline
	//   - mesh: the combined mesh
	//   - submesh: the submesh index
	//   - textures: buffers bound from binding 1
	//   - uniform: the packed uniform block bound at binding 0
	//
	// Returns:
	//   - error: an error if no frame is open or the mesh could not be uploaded
	DrawMesh(p pipeline.Pipeline, mesh *bulk_mesh.CombinedMesh, submesh int, textures []sim_buffer.Buffer, uniform []float32) error

	// EndFrame ends the render pass and submits the frame's command buffer.
	EndFrame()

	// Present presents the surface and releases the swapchain texture.
	Present()

	// ReleaseMesh frees the GPU buffers uploaded for a mesh, if any.
	//
	// Parameters:
	//   - mesh: the mesh whose uploads should be dropped
	ReleaseMesh(mesh *bulk_mesh.CombinedMesh)

	// Release frees every GPU object the backend owns.
	Release()
}
