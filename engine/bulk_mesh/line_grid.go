package bulk_mesh

import (
	"fmt"

	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/go-gl/mathgl/mgl32"
)

// LineGrid is a fixed-size grid of two-vertex lines, one per buffer texel. The first vertex of each
// line has X = 0 and the second X = 1, letting the vertex stage pick between the previous and current
// simulation buffer.
type LineGrid struct {
	Width  int
	Height int
}

var _ Geometry = LineGrid{}

func (g LineGrid) Layout(b Builder) (Layout, error) {
	if g.Width <= 0 || g.Height <= 0 {
		return Layout{}, nil
	}
	perSegment := b.VertexLimit() / 2
	if perSegment < 1 {
		return Layout{}, &common.ConfigurationError{
			Component: "bulk_mesh",
			Reason:    fmt.Sprintf("vertex limit %d cannot hold a single line", b.VertexLimit()),
			Err:       ErrShapeTooLarge,
		}
	}

	total := g.Width * g.Height
	return Layout{
		Width:           g.Width,
		Height:          g.Height,
		Rows:            1,
		RowStride:       g.Height,
		Segments:        common.CeilDiv(total, perSegment),
		TotalReplicas:   total,
		ReplicasPerMesh: min(perSegment, total),
	}, nil
}

func (g LineGrid) Build(b Builder, layout Layout) (Result, error) {
	if layout.IsEmpty() {
		return Result{}, nil
	}

	meshes := make([]*CombinedMesh, layout.Segments)
	fillSegments(b, layout.Segments, func(segment int) {
		first := segment * layout.ReplicasPerMesh
		count := min(layout.ReplicasPerMesh, layout.TotalReplicas-first)
		baseRow := first / g.Width

		m := newCombinedMesh(fmt.Sprintf("line grid %d", segment), count*2, b.BoundsExtent())
		m.Segment = segment
		m.FirstReplica = first
		m.ReplicaCount = count
		m.SegmentBase = float32(baseRow) / float32(g.Height)

		indices := make([]uint32, 0, count*2)
		for local := range count {
			global := first + local
			uv := mgl32.Vec2{
				float32(global%g.Width) / float32(g.Width),
				float32(global/g.Width-baseRow) / float32(g.Height),
			}
			base := uint32(len(m.Vertices))
			m.Vertices = append(m.Vertices, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})
			m.Normals = append(m.Normals, mgl32.Vec3{}, mgl32.Vec3{})
			m.UVs = append(m.UVs, uv, uv)
			indices = append(indices, base, base+1)
		}
		m.Submeshes = []Submesh{{Topology: TopologyLines, Indices: indices}}
		meshes[segment] = m
	})

	return Result{Meshes: meshes, ReplicasPerMesh: layout.ReplicasPerMesh}, nil
}
