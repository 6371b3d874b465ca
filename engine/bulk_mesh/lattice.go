package bulk_mesh

import (
	"fmt"

	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Lattice is a triangular lattice for geometry constructed entirely on the GPU. Odd rows are shifted
// by half a cell so every cell splits into two triangles:
//
//	B   C
//	.---.---.
//	 \ / \ /
//	  .---.--
//	  A   D
//
// Each mesh has three submeshes: A-B-C triangles, A-C-D triangles, and the A-B, A-C, A-D edges as
// lines. UVs address the position buffer, UV2s address the normal buffer of the owning triangle.
// The position buffer is 2*Columns wide and Rows+1 high so half-cell offsets land on texel centers.
type Lattice struct {
	Columns int
	Rows    int
}

var _ Geometry = Lattice{}

const latticeVerticesPerCell = 6

func (l Lattice) Layout(b Builder) (Layout, error) {
	if l.Columns <= 0 || l.Rows <= 0 {
		return Layout{}, nil
	}
	perRow := l.Columns * latticeVerticesPerCell
	rowsPerSegment := b.VertexLimit() / perRow
	if rowsPerSegment < 1 {
		return Layout{}, &common.ConfigurationError{
			Component: "bulk_mesh",
			Reason:    fmt.Sprintf("lattice row of %d columns needs %d vertices, limit is %d", l.Columns, perRow, b.VertexLimit()),
			Err:       ErrShapeTooLarge,
		}
	}
	rowsPerSegment = min(rowsPerSegment, l.Rows)

	return Layout{
		Width:           l.Columns * 2,
		Height:          l.Rows + 1,
		Rows:            1,
		RowStride:       l.Rows + 1,
		Segments:        common.CeilDiv(l.Rows, rowsPerSegment),
		TotalReplicas:   l.Columns * l.Rows,
		ReplicasPerMesh: rowsPerSegment * l.Columns,
	}, nil
}

func (l Lattice) Build(b Builder, layout Layout) (Result, error) {
	if layout.IsEmpty() {
		return Result{}, nil
	}

	rowsPerSegment := layout.ReplicasPerMesh / l.Columns
	meshes := make([]*CombinedMesh, layout.Segments)
	fillSegments(b, layout.Segments, func(segment int) {
		r0 := segment * rowsPerSegment
		r1 := min(r0+rowsPerSegment, l.Rows)
		meshes[segment] = l.band(segment, r0, r1, b.BoundsExtent())
	})

	return Result{Meshes: meshes, ReplicasPerMesh: layout.ReplicasPerMesh}, nil
}

// band builds the lattice rows [r0, r1) as one mesh.
func (l Lattice) band(segment, r0, r1 int, extent float32) *CombinedMesh {
	nx := l.Columns
	sx := 1.0 / float32(nx)
	sy := 1.0 / float32(l.Rows+1)
	cells := (r1 - r0) * nx
	half := uint32(cells * 3)

	m := newCombinedMesh(fmt.Sprintf("lattice %d", segment), cells*latticeVerticesPerCell, extent)
	m.UV2s = make([]mgl32.Vec2, 0, cells*latticeVerticesPerCell)
	m.Segment = segment
	m.FirstReplica = r0 * nx
	m.ReplicaCount = cells

	emit := func(second bool) {
		for iy := r0; iy < r1; iy++ {
			y0 := sy * float32(iy)
			y1 := sy * float32(iy+1)
			for ix := 0; ix < nx; ix++ {
				x := float32(ix) + 0.5*float32(iy&1)
				a := mgl32.Vec2{sx * x, y0}
				var p1, p2 mgl32.Vec2
				if !second {
					p1 = mgl32.Vec2{sx * (x - 0.5), y1}
					p2 = mgl32.Vec2{sx * (x + 0.5), y1}
				} else {
					p1 = mgl32.Vec2{sx * (x + 0.5), y1}
					p2 = mgl32.Vec2{sx * (x + 1.0), y0}
				}
				m.UVs = append(m.UVs, a, p1, p2)
				m.UV2s = append(m.UV2s, a, a, a)
			}
		}
	}
	emit(false)
	emit(true)

	n := len(m.UVs)
	m.Vertices = append(m.Vertices, make([]mgl32.Vec3, n)...)
	m.Normals = append(m.Normals, make([]mgl32.Vec3, n)...)

	abc := make([]uint32, half)
	acd := make([]uint32, half)
	for i := range half {
		abc[i] = i
		acd[i] = i + half
	}

	lines := make([]uint32, 0, cells*6)
	for c := uint32(0); c < uint32(cells); c++ {
		base := c * 3
		lines = append(lines,
			base, base+1,
			base, base+2,
			base, base+half+2,
		)
	}

	m.Submeshes = []Submesh{
		{Topology: TopologyTriangles, Indices: abc},
		{Topology: TopologyTriangles, Indices: acd},
		{Topology: TopologyLines, Indices: lines},
	}
	return m
}
