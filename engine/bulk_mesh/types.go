package bulk_mesh

import (
	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultVertexLimit is the per-mesh vertex ceiling, kept under the 16-bit index range.
	DefaultVertexLimit = 65000

	// DefaultCopyLimit is the per-mesh replica ceiling applied by StrategySegmented.
	DefaultCopyLimit = 4096

	// DefaultBoundsExtent is the half-size of the bounding box given to every combined mesh.
	DefaultBoundsExtent = 100
)

// Strategy selects how replicas are distributed over combined meshes.
type Strategy int

const (
	// StrategySegmented caps each mesh by both the vertex limit and the copy limit and splits the
	// population over as many meshes as needed.
	StrategySegmented Strategy = iota

	// StrategySingleMesh emits exactly one combined mesh with no copy cap. A population that does
	// not fit under the vertex limit is a configuration error.
	StrategySingleMesh
)

func (s Strategy) String() string {
	switch s {
	case StrategySegmented:
		return "segmented"
	case StrategySingleMesh:
		return "single-mesh"
	default:
		return "unknown"
	}
}

// Mode selects how a replica population maps onto simulation buffer rows.
type Mode int

const (
	// ModeFullCoverage gives every replica its own texel. The mesh set covers the whole buffer and is
	// drawn once.
	ModeFullCoverage Mode = iota

	// ModeRowInstanced builds a mesh set covering a single buffer row and draws it once per row, each
	// draw offset to the next row of texels.
	ModeRowInstanced
)

// Topology identifies the primitive type of a submesh.
type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyLines
)

// RowCapacity is the buffer grid that replica lookup coordinates are normalized against.
type RowCapacity struct {
	Width  int
	Height int
}

// Slots returns the number of addressable texels in the grid.
func (c RowCapacity) Slots() int {
	return c.Width * c.Height
}

// Submesh is an index list drawn with a single topology.
type Submesh struct {
	Topology Topology
	Indices  []uint32
}

// CombinedMesh is one batched geometry buffer holding many replicas. Every vertex carries a lookup
// coordinate into the simulation buffer; real positions are supplied by the simulation.
type CombinedMesh struct {
	// Label identifies the mesh in logs and GPU resource names.
	Label string

	// Vertices are placeholder positions copied from the source shapes.
	Vertices []mgl32.Vec3
	// Normals are copied from the source shapes and used for shading only.
	Normals []mgl32.Vec3
	// UVs are the per-vertex lookup coordinates, relative to SegmentBase on the V axis.
	UVs []mgl32.Vec2
	// UV2s are optional secondary lookup coordinates, nil when unused.
	UV2s []mgl32.Vec2

	Submeshes []Submesh

	// Bounds is deliberately oversized; true bounds are only known after the simulation moves vertices.
	Bounds common.Bounds

	// Transient marks the mesh as runtime-only; it must never be persisted.
	Transient bool

	// Segment is the zero-based index of this mesh within its set.
	Segment int
	// FirstReplica is the global index of the first replica stored in this mesh.
	FirstReplica int
	// ReplicaCount is the number of replicas stored in this mesh, including zero-vertex ones.
	ReplicaCount int
	// SegmentBase is the V coordinate of the first buffer row this mesh addresses.
	SegmentBase float32

	released bool
}

// VertexCount returns the number of vertices in the mesh.
func (m *CombinedMesh) VertexCount() int {
	return len(m.Vertices)
}

// IndexCount returns the total number of indices across all submeshes.
func (m *CombinedMesh) IndexCount() int {
	n := 0
	for _, s := range m.Submeshes {
		n += len(s.Indices)
	}
	return n
}

// Released reports whether the mesh has been released and must no longer be drawn.
func (m *CombinedMesh) Released() bool {
	return m.released
}

// release drops the mesh's arrays. Safe to call more than once.
func (m *CombinedMesh) release() {
	m.released = true
	m.Vertices = nil
	m.Normals = nil
	m.UVs = nil
	m.UV2s = nil
	m.Submeshes = nil
}

// Plan is the up-front segmentation of a replica population, computed before any array is allocated.
type Plan struct {
	// ShapeCount is the number of input shapes, including empty ones.
	ShapeCount int
	// ShapeVertices is the vertex count of one pass over every shape.
	ShapeVertices int
	// ShapeIndices is the index count of one pass over every shape.
	ShapeIndices int
	// Replication is the number of passes over the shape set.
	Replication int
	// PassesPerSegment is the number of shape-set passes that fit in one combined mesh.
	PassesPerSegment int
	// Segments is the number of combined meshes.
	Segments int
}

// IsEmpty reports whether the plan produces no geometry.
func (p Plan) IsEmpty() bool {
	return p.ShapeVertices == 0
}

// TotalReplicas is the number of replicas across all segments.
func (p Plan) TotalReplicas() int {
	return p.Replication * p.ShapeCount
}

// ReplicasPerMesh is the replica count of every full segment.
func (p Plan) ReplicasPerMesh() int {
	return p.PassesPerSegment * p.ShapeCount
}

// SegmentPasses returns the number of shape-set passes stored in the given segment. Every segment is
// full except possibly the last, which is sized to the remainder.
func (p Plan) SegmentPasses(segment int) int {
	if segment < p.Segments-1 {
		return p.PassesPerSegment
	}
	return p.Replication - (p.Segments-1)*p.PassesPerSegment
}

// Layout describes how a mesh set addresses the simulation buffer and how many draws it takes.
type Layout struct {
	// Width and Height are the simulation buffer dimensions in texels.
	Width  int
	Height int
	// Rows is the number of draws issued per mesh, each offset by RowStride buffer rows.
	Rows int
	// RowStride is the number of buffer rows a single draw of the mesh set covers.
	RowStride int
	// Segments is the number of combined meshes.
	Segments int
	// TotalReplicas is the number of replicas one draw of the full mesh set covers.
	TotalReplicas int
	// ReplicasPerMesh is the replica count of every full segment.
	ReplicasPerMesh int
}

// IsEmpty reports whether the layout allocates and draws nothing.
func (l Layout) IsEmpty() bool {
	return l.Width == 0 || l.Height == 0 || l.Segments == 0
}

// Capacity returns the buffer grid as a RowCapacity.
func (l Layout) Capacity() RowCapacity {
	return RowCapacity{Width: l.Width, Height: l.Height}
}

// Draws returns the number of draw invocations per tick, segments times rows.
func (l Layout) Draws() int {
	return l.Segments * l.Rows
}

// SlotCoordinate returns the normalized buffer coordinate of the given global replica index.
//
// Parameters:
//   - globalIndex: the replica's zero-based ordinal across the population
//
// Returns:
//   - mgl32.Vec2: the coordinate (u, v) of the replica's texel corner
func (l Layout) SlotCoordinate(globalIndex int) mgl32.Vec2 {
	return slotCoordinate(globalIndex, l.Width, l.Height)
}

// RowOffset returns the per-draw texel-center offset for the given row, which selects the buffer
// band a draw reads from.
func (l Layout) RowOffset(row int) mgl32.Vec2 {
	return mgl32.Vec2{
		0.5 / float32(l.Width),
		(0.5 + float32(row*l.RowStride)) / float32(l.Height),
	}
}

func slotCoordinate(globalIndex, width, height int) mgl32.Vec2 {
	return mgl32.Vec2{
		float32(globalIndex%width) / float32(width),
		float32(globalIndex/width) / float32(height),
	}
}

// Result is the output of a build: the combined meshes and their shared replica count.
type Result struct {
	Meshes          []*CombinedMesh
	ReplicasPerMesh int
	Plan            Plan
}

// TotalReplicas sums the replica counts of every mesh.
func (r Result) TotalReplicas() int {
	n := 0
	for _, m := range r.Meshes {
		n += m.ReplicaCount
	}
	return n
}
