package simulation

import (
	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/go-gl/mathgl/mgl32"
)

// Parameter names the driver always supplies.
const (
	// ParamDeltaTime is the tick's time step, passed to every kernel invocation.
	ParamDeltaTime = "delta_time"
	// ParamTime is the simulated time accumulated since the last reset.
	ParamTime = "time"
	// ParamBufferOffset is the per-draw texel-center offset selecting a buffer row.
	ParamBufferOffset = "buffer_offset"
	// ParamSegmentBase is the V coordinate of the first buffer row a mesh segment addresses.
	ParamSegmentBase = "segment_base"
)

// State is the driver's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateNeedsReset
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateNeedsReset:
		return "needs-reset"
	default:
		return "unknown"
	}
}

// Parameters is a named parameter block. Values are float32, mgl32 vectors, or sim_buffer.Buffer for
// texture bindings.
type Parameters map[string]any

// Role selects the current or previous buffer of a channel.
type Role int

const (
	RoleCurrent Role = iota
	RolePrevious
)

// BufferRef names one buffer of the driver's set.
type BufferRef struct {
	Channel int
	Role    Role
}

// Current refers to the current buffer of a channel.
func Current(channel int) BufferRef {
	return BufferRef{Channel: channel, Role: RoleCurrent}
}

// Previous refers to the previous buffer of a channel.
func Previous(channel int) BufferRef {
	return BufferRef{Channel: channel, Role: RolePrevious}
}

// KernelPass is one numbered kernel invocation reading zero or more buffers and writing one.
type KernelPass struct {
	ID     int
	Inputs []BufferRef
	Output BufferRef
}

// DrawPass is one material applied to every mesh segment and buffer row.
type DrawPass struct {
	// Material identifies the draw program.
	Material string
	// Submeshes lists the submesh indices drawn; nil draws submesh 0.
	Submeshes []int
	// Textures binds buffers by parameter name.
	Textures map[string]BufferRef
	// Parameters override the effect's material parameters for this pass only.
	Parameters Parameters
}

func (p DrawPass) submeshes() []int {
	if len(p.Submeshes) == 0 {
		return []int{0}
	}
	return p.Submeshes
}

// Invocation is a single kernel pass as handed to the Kernel collaborator. Every input has the same
// dimensions as Output.
type Invocation struct {
	// Program identifies the effect whose kernel is invoked.
	Program    string
	Pass       int
	Inputs     []sim_buffer.Buffer
	Output     sim_buffer.Buffer
	Parameters Parameters
}

// DrawCall is one draw of a mesh submesh with per-draw overrides.
type DrawCall struct {
	Mesh      *bulk_mesh.CombinedMesh
	Transform mgl32.Mat4
	Material  string
	Submesh   int
	// Overrides always carries ParamBufferOffset and ParamSegmentBase plus the pass textures and the
	// effect's material parameters.
	Overrides Parameters
	Segment   int
	Row       int
	// EffectiveV is the row offset plus the segment base, the V origin this draw reads from.
	EffectiveV float32
}

// Kernel executes kernel passes.
type Kernel interface {
	// Invoke runs one kernel pass.
	//
	// Parameters:
	//   - inv: the pass, its buffers, and its parameters
	//
	// Returns:
	//   - error: any failure issuing the pass
	Invoke(inv Invocation) error
}

// Renderer issues draws.
type Renderer interface {
	// Draw issues one draw call.
	//
	// Parameters:
	//   - call: the mesh, material, submesh and overrides to draw
	//
	// Returns:
	//   - error: any failure issuing the draw
	Draw(call DrawCall) error
}

// MeshReleaser is implemented by renderers that upload meshes and must drop them when the driver
// releases its resources.
type MeshReleaser interface {
	ReleaseMesh(mesh *bulk_mesh.CombinedMesh)
}

// Effect is the configuration front end a driver simulates and draws.
type Effect interface {
	// Name identifies the effect's kernel program.
	Name() string
	// Geometry returns the mesh geometry for the current configuration.
	Geometry() bulk_mesh.Geometry
	// Channels lists the buffer channels to allocate.
	Channels() []sim_buffer.ChannelSpec
	// InitPasses run once after every reset.
	InitPasses() []KernelPass
	// UpdatePasses run every tick after the swap.
	UpdatePasses() []KernelPass
	// KernelParameters returns the parameters passed to every kernel pass.
	KernelParameters() Parameters
	// DrawPasses returns the draws issued for every mesh segment and row.
	DrawPasses() []DrawPass
	// MaterialParameters returns the parameters passed to every draw.
	MaterialParameters() Parameters
	// Transform returns the effect's object-to-world matrix.
	Transform() mgl32.Mat4
}

// Resources is everything a successful reset allocates. The driver owns it exclusively and releases it as
// a unit.
type Resources struct {
	Layout  bulk_mesh.Layout
	Meshes  []*bulk_mesh.CombinedMesh
	Buffers *sim_buffer.Set
}

// IsEmpty reports whether there is nothing to simulate or draw.
func (r *Resources) IsEmpty() bool {
	return r == nil || len(r.Meshes) == 0 || r.Buffers.IsEmpty()
}

// Buffer resolves a reference against the buffer set, returning nil if the channel or role is absent.
func (r *Resources) Buffer(ref BufferRef) sim_buffer.Buffer {
	if r == nil {
		return nil
	}
	pair := r.Buffers.Channel(ref.Channel)
	if pair == nil {
		return nil
	}
	if ref.Role == RolePrevious {
		return pair.Previous
	}
	return pair.Current
}

// Stats are driver counters for profiling.
type Stats struct {
	// Resets counts successful resets.
	Resets int
	// FailedResets counts resets that returned an error.
	FailedResets int
	// Ticks counts calls to Tick.
	Ticks int
	// Draws is the number of draw calls issued by the last tick.
	Draws int
	// Invocations is the number of kernel passes issued by the last tick.
	Invocations int
}
