package pipeline

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a kernel program with a single compute entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a draw program with vertex and fragment entry points.
	PipelineTypeRender
)

const (
	defaultVertexEntryPoint   = "vs_main"
	defaultFragmentEntryPoint = "fs_main"
	defaultComputeEntryPoint  = "cs_main"
)

// KernelKey returns the pipeline key of a kernel pass of the given program.
//
// Parameters:
//   - program: the effect program name
//   - pass: the kernel pass number
//
// Returns:
//   - string: the key under which the pass's compute pipeline is registered
func KernelKey(program string, pass int) string {
	return fmt.Sprintf("%s/kernel/%d", program, pass)
}

// pipeline is the implementation of the Pipeline interface.
// It holds the WGSL program, its binding declarations and the compiled WebGPU pipeline object.
type pipeline struct {
	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	source        string
	vertexEntry   string
	fragmentEntry string
	csEntry       string

	// parameters lists the uniform parameter names in the order the program declares its vec4 slots
	parameters []string
	// textures lists the buffer parameter names bound from binding 1 onward
	textures []string

	renderPipeline  *wgpu.RenderPipeline
	computePipeline *wgpu.ComputePipeline

	// The following properties only apply to render pipelines.

	depthTestEnabled  bool
	depthWriteEnabled bool
	blendEnabled      bool
	cullMode          wgpu.CullMode
	topology          wgpu.PrimitiveTopology
	frontFace         wgpu.FrontFace
	writeMask         wgpu.ColorWriteMask
	blendState        *wgpu.BlendState
}

// Pipeline defines a GPU program: either a kernel pass (compute) or a draw material (vertex + fragment).
// Both kinds share one uniform block made of vec4 slots, one per declared parameter, and bind simulation
// buffers as textures in declaration order.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	// Render pipelines are keyed by material name, compute pipelines by KernelKey.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Source returns the WGSL source of the program.
	//
	// Returns:
	//   - string: the WGSL module source
	Source() string

	// VertexEntryPoint returns the vertex stage entry point of a render pipeline.
	VertexEntryPoint() string

	// FragmentEntryPoint returns the fragment stage entry point of a render pipeline.
	FragmentEntryPoint() string

	// ComputeEntryPoint returns the entry point of a compute pipeline.
	ComputeEntryPoint() string

	// Parameters returns the uniform parameter names in slot order.
	//
	// Returns:
	//   - []string: one name per vec4 slot of the program's parameter block
	Parameters() []string

	// Textures returns the names of the buffer parameters bound as textures.
	//
	// Returns:
	//   - []string: texture parameter names in binding order
	Textures() []string

	// Pipeline returns the underlying pipeline object, either *wgpu.RenderPipeline or *wgpu.ComputePipeline
	// Note: The caller is responsible for type asserting the returned value as either pipeline type.
	//
	// Returns:
	//   - any: the underlying pipeline object.
	Pipeline() any

	DepthTestEnabled() bool
	DepthWriteEnabled() bool
	BlendEnabled() bool
	CullMode() wgpu.CullMode
	Topology() wgpu.PrimitiveTopology
	FrontFace() wgpu.FrontFace
	WriteMask() wgpu.ColorWriteMask
	BlendState() *wgpu.BlendState

	// SetRenderPipeline sets the render pipeline
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// SetComputePipeline sets the compute pipeline
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline to set
	SetComputePipeline(p *wgpu.ComputePipeline)

	// Release frees the compiled pipeline object.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType must be specified and provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		vertexEntry:       defaultVertexEntryPoint,
		fragmentEntry:     defaultFragmentEntryPoint,
		csEntry:           defaultComputeEntryPoint,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		blendEnabled:      false,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewKernel creates the compute pipeline of one kernel pass.
//
// Parameters:
//   - program: the effect program name
//   - pass: the kernel pass number
//   - opts: options configuring the source, entry point and parameters
//
// Returns:
//   - Pipeline: a compute pipeline keyed by KernelKey(program, pass)
func NewKernel(program string, pass int, opts ...PipelineBuilderOption) Pipeline {
	return NewPipeline(KernelKey(program, pass), PipelineTypeCompute, opts...)
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Source() string {
	return p.source
}

func (p *pipeline) VertexEntryPoint() string {
	return p.vertexEntry
}

func (p *pipeline) FragmentEntryPoint() string {
	return p.fragmentEntry
}

func (p *pipeline) ComputeEntryPoint() string {
	return p.csEntry
}

func (p *pipeline) Parameters() []string {
	return p.parameters
}

func (p *pipeline) Textures() []string {
	return p.textures
}

func (p *pipeline) Pipeline() any {
	switch p.pipelineType {
	case PipelineTypeRender:
		return p.renderPipeline
	case PipelineTypeCompute:
		return p.computePipeline
	default:
		return nil
	}
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
}
