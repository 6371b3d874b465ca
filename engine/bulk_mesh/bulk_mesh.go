// Package bulk_mesh replicates a small set of source shapes into the minimum number of combined meshes
// that cover a requested population while staying under hard per-mesh vertex and replica ceilings.
// Every replica is tagged with a lookup coordinate into the simulation buffer so the vertex stage can
// fetch its own simulated state.
package bulk_mesh

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/Carmen-Shannon/kvant-go/engine/shape"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrShapeTooLarge is wrapped by the configuration error returned when one pass over the shape set
// cannot fit in a single combined mesh.
var ErrShapeTooLarge = errors.New("bulk_mesh: shape set exceeds per-mesh limit")

// Builder turns shape records into combined meshes.
//
// Build and Plan are pure with respect to the builder: the meshes returned by Build belong to the caller.
// Rebuild additionally tracks its output so the next Rebuild or Release can free it.
type Builder interface {
	// VertexLimit returns the per-mesh vertex ceiling.
	//
	// Returns:
	//   - int: the maximum vertex count of any combined mesh
	VertexLimit() int

	// CopyLimit returns the per-mesh replica ceiling used by StrategySegmented.
	//
	// Returns:
	//   - int: the maximum replica count of any combined mesh
	CopyLimit() int

	// Strategy returns the segmentation strategy.
	//
	// Returns:
	//   - Strategy: the active strategy
	Strategy() Strategy

	// BoundsExtent returns the half-size of the oversized bounding box given to every mesh.
	//
	// Returns:
	//   - float32: the half-extent along each axis
	BoundsExtent() float32

	// Plan computes replication and segmentation for a population without allocating any arrays.
	// An empty shape set or a set whose vertex total is zero yields an empty plan and no error.
	//
	// Parameters:
	//   - records: the shape records to replicate; empty records take part in round-robin assignment
	//   - population: the number of replicas required, at least one pass is always planned
	//
	// Returns:
	//   - Plan: the computed plan
	//   - error: a ConfigurationError wrapping ErrShapeTooLarge if no segment can hold a single pass
	Plan(records []shape.Record, population int) (Plan, error)

	// Build replicates the records to cover the population and stamps every replica with its lookup
	// coordinate in a buffer of the given capacity.
	//
	// Parameters:
	//   - records: the shape records to replicate
	//   - population: the number of replicas required
	//   - capacity: the buffer grid used to normalize lookup coordinates
	//
	// Returns:
	//   - Result: the meshes, empty when the shape set has no vertices
	//   - error: a ConfigurationError if the plan is invalid or the capacity cannot hold every replica
	Build(records []shape.Record, population int, capacity RowCapacity) (Result, error)

	// Rebuild releases the meshes of the previous Rebuild, then builds and tracks a new set.
	//
	// Parameters:
	//   - records: the shape records to replicate
	//   - population: the number of replicas required
	//   - capacity: the buffer grid used to normalize lookup coordinates
	//
	// Returns:
	//   - Result: the new meshes
	//   - error: the build error; the previous meshes are released regardless
	Rebuild(records []shape.Record, population int, capacity RowCapacity) (Result, error)

	// Meshes returns the meshes tracked by the last Rebuild.
	//
	// Returns:
	//   - []*CombinedMesh: the tracked meshes, nil after Release
	Meshes() []*CombinedMesh

	// ReleaseMeshes frees the given meshes, invoking the configured release hook for each.
	//
	// Parameters:
	//   - meshes: the meshes to free, already released meshes are skipped
	ReleaseMeshes(meshes ...*CombinedMesh)

	// Release frees the meshes tracked by the last Rebuild.
	Release()
}

// builder is the implementation of the Builder interface.
type builder struct {
	mu *sync.Mutex

	vertexLimit  int
	copyLimit    int
	strategy     Strategy
	boundsExtent float32
	logger       *slog.Logger

	// onRelease is invoked for every mesh freed through ReleaseMeshes, letting GPU backends drop
	// buffers uploaded for that mesh.
	onRelease func(*CombinedMesh)

	// fillPool fans segment fills out across workers. Created lazily on the first multi-segment build.
	fillPool    worker.DynamicWorkerPool
	fillWorkers int

	tracked []*CombinedMesh
}

var _ Builder = &builder{}

// NewBuilder creates a Builder with the default limits and StrategySegmented, then applies options.
//
// Parameters:
//   - options: functional options to configure the builder
//
// Returns:
//   - Builder: the configured builder
func NewBuilder(options ...BuilderOption) Builder {
	b := &builder{
		mu:           &sync.Mutex{},
		vertexLimit:  DefaultVertexLimit,
		copyLimit:    DefaultCopyLimit,
		strategy:     StrategySegmented,
		boundsExtent: DefaultBoundsExtent,
		logger:       slog.Default(),
		fillWorkers:  max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *builder) VertexLimit() int {
	return b.vertexLimit
}

func (b *builder) CopyLimit() int {
	return b.copyLimit
}

func (b *builder) Strategy() Strategy {
	return b.strategy
}

func (b *builder) BoundsExtent() float32 {
	return b.boundsExtent
}

func (b *builder) Plan(records []shape.Record, population int) (Plan, error) {
	p := Plan{
		ShapeCount:    len(records),
		ShapeVertices: shape.TotalVertices(records),
		ShapeIndices:  shape.TotalIndices(records),
	}
	if p.ShapeCount == 0 || p.ShapeVertices == 0 {
		return Plan{ShapeCount: p.ShapeCount}, nil
	}

	p.Replication = max(1, common.CeilDiv(population, p.ShapeCount))

	switch b.strategy {
	case StrategySingleMesh:
		if p.Replication*p.ShapeVertices > b.vertexLimit {
			return Plan{}, &common.ConfigurationError{
				Component: "bulk_mesh",
				Reason: fmt.Sprintf("%d replicas over a %d-vertex shape set need %d vertices, single-mesh limit is %d",
					p.Replication*p.ShapeCount, p.ShapeVertices, p.Replication*p.ShapeVertices, b.vertexLimit),
				Err: ErrShapeTooLarge,
			}
		}
		p.PassesPerSegment = p.Replication
	default:
		perSegment := b.vertexLimit / p.ShapeVertices
		if copyCap := b.copyLimit / p.ShapeCount; copyCap < perSegment {
			perSegment = copyCap
		}
		if perSegment < 1 {
			return Plan{}, &common.ConfigurationError{
				Component: "bulk_mesh",
				Reason: fmt.Sprintf("%d shapes with %d vertices, limits are %d vertices and %d copies per mesh",
					p.ShapeCount, p.ShapeVertices, b.vertexLimit, b.copyLimit),
				Err: ErrShapeTooLarge,
			}
		}
		p.PassesPerSegment = min(perSegment, p.Replication)
	}

	p.Segments = common.CeilDiv(p.Replication, p.PassesPerSegment)
	return p, nil
}

func (b *builder) Build(records []shape.Record, population int, capacity RowCapacity) (Result, error) {
	plan, err := b.Plan(records, population)
	if err != nil {
		return Result{}, err
	}
	if plan.IsEmpty() {
		b.logger.Debug("bulk mesh has no geometry", "shapes", plan.ShapeCount)
		return Result{Plan: plan}, nil
	}

	if capacity.Width < 1 || capacity.Height < 1 || capacity.Slots() < plan.TotalReplicas() {
		return Result{}, common.NewConfigurationError("bulk_mesh",
			"buffer %dx%d cannot address %d replicas", capacity.Width, capacity.Height, plan.TotalReplicas())
	}

	meshes := make([]*CombinedMesh, plan.Segments)
	b.forEachSegment(plan.Segments, func(segment int) {
		meshes[segment] = b.fillSegment(records, plan, segment, capacity)
	})

	b.logger.Debug("bulk mesh built",
		"shapes", plan.ShapeCount,
		"replicas", plan.TotalReplicas(),
		"segments", plan.Segments,
		"strategy", b.strategy.String(),
	)

	return Result{Meshes: meshes, ReplicasPerMesh: plan.ReplicasPerMesh(), Plan: plan}, nil
}

func (b *builder) Rebuild(records []shape.Record, population int, capacity RowCapacity) (Result, error) {
	b.Release()

	res, err := b.Build(records, population, capacity)
	if err != nil {
		return Result{}, err
	}

	b.mu.Lock()
	b.tracked = res.Meshes
	b.mu.Unlock()
	return res, nil
}

func (b *builder) Meshes() []*CombinedMesh {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracked
}

func (b *builder) ReleaseMeshes(meshes ...*CombinedMesh) {
	for _, m := range meshes {
		if m == nil || m.released {
			continue
		}
		if b.onRelease != nil {
			b.onRelease(m)
		}
		m.release()
	}
}

func (b *builder) Release() {
	b.mu.Lock()
	tracked := b.tracked
	b.tracked = nil
	b.mu.Unlock()

	b.ReleaseMeshes(tracked...)
}

// fillSegment allocates and fills the arrays of one segment. Replicas are walked in round-robin shape
// order; a replica's shape is its global index modulo the shape count.
func (b *builder) fillSegment(records []shape.Record, plan Plan, segment int, capacity RowCapacity) *CombinedMesh {
	passes := plan.SegmentPasses(segment)
	first := segment * plan.ReplicasPerMesh()
	replicas := passes * plan.ShapeCount
	baseRow := first / capacity.Width

	vc := passes * plan.ShapeVertices
	mesh := b.newMesh(fmt.Sprintf("bulk mesh %d", segment), vc)
	mesh.Segment = segment
	mesh.FirstReplica = first
	mesh.ReplicaCount = replicas
	mesh.SegmentBase = float32(baseRow) / float32(capacity.Height)

	indices := make([]uint32, 0, passes*plan.ShapeIndices)
	for local := 0; local < replicas; local++ {
		global := first + local
		s := records[global%plan.ShapeCount]
		if s.IsEmpty() {
			continue
		}

		uv := mgl32.Vec2{
			float32(global%capacity.Width) / float32(capacity.Width),
			float32(global/capacity.Width-baseRow) / float32(capacity.Height),
		}

		offset := uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, s.Vertices()...)
		mesh.Normals = append(mesh.Normals, s.Normals()...)
		for range s.VertexCount() {
			mesh.UVs = append(mesh.UVs, uv)
		}
		for _, idx := range s.Indices() {
			indices = append(indices, offset+idx)
		}
	}
	mesh.Submeshes = []Submesh{{Topology: TopologyTriangles, Indices: indices}}
	return mesh
}

// newMesh allocates an empty transient mesh with room for vc vertices.
func (b *builder) newMesh(label string, vc int) *CombinedMesh {
	return newCombinedMesh(label, vc, b.boundsExtent)
}

func newCombinedMesh(label string, vc int, extent float32) *CombinedMesh {
	return &CombinedMesh{
		Label:     label,
		Vertices:  make([]mgl32.Vec3, 0, vc),
		Normals:   make([]mgl32.Vec3, 0, vc),
		UVs:       make([]mgl32.Vec2, 0, vc),
		Bounds:    common.Bounds{Extents: mgl32.Vec3{extent, extent, extent}},
		Transient: true,
	}
}

// fillSegments runs fn for every segment, in parallel when b is this package's builder.
func fillSegments(b Builder, segments int, fn func(segment int)) {
	if impl, ok := b.(*builder); ok {
		impl.forEachSegment(segments, fn)
		return
	}
	for i := range segments {
		fn(i)
	}
}

// forEachSegment runs fn for every segment index. A single segment runs inline; more are fanned out
// across the fill pool with a WaitGroup barrier, since segments write disjoint meshes.
func (b *builder) forEachSegment(segments int, fn func(segment int)) {
	if segments <= 1 {
		for i := range segments {
			fn(i)
		}
		return
	}

	b.mu.Lock()
	if b.fillPool == nil {
		b.fillPool = worker.NewDynamicWorkerPool(b.fillWorkers, 256, 1*time.Second)
	}
	pool := b.fillPool
	b.mu.Unlock()

	var wg sync.WaitGroup
	for i := range segments {
		wg.Add(1)
		segment := i
		pool.SubmitTask(worker.Task{
			ID: segment,
			Do: func() (any, error) {
				defer wg.Done()
				fn(segment)
				return nil, nil
			},
		})
	}
	wg.Wait()
}
