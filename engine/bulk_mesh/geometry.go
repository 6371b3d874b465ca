package bulk_mesh

import (
	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/Carmen-Shannon/kvant-go/engine/shape"
)

// Geometry describes how an effect's combined meshes and buffer layout are derived. Layout must not
// allocate, so that a configuration can be validated against host limits before anything is built.
type Geometry interface {
	// Layout computes the buffer dimensions, segment count, and draw rows for this geometry.
	//
	// Parameters:
	//   - b: the builder whose limits apply
	//
	// Returns:
	//   - Layout: the computed layout, empty when there is nothing to draw
	//   - error: a ConfigurationError if the geometry cannot satisfy the builder's limits
	Layout(b Builder) (Layout, error)

	// Build creates the combined meshes for a layout previously returned by Layout.
	//
	// Parameters:
	//   - b: the builder whose limits apply
	//   - layout: the layout returned by Layout
	//
	// Returns:
	//   - Result: the combined meshes, owned by the caller
	//   - error: any build failure
	Build(b Builder, layout Layout) (Result, error)
}

// Replicas is the shape-replication geometry: every replica is one copy of a source shape, assigned
// round-robin, with its own buffer texel.
type Replicas struct {
	// Shapes are the source shape records.
	Shapes []shape.Record
	// Population is the number of replicas required.
	Population int
	// RowWidth caps the buffer width. Zero leaves the width unbounded.
	RowWidth int
	// Mode selects full coverage or row-instanced drawing.
	Mode Mode
}

var _ Geometry = Replicas{}

// meshPopulation is the population a single draw of the mesh set must cover.
func (r Replicas) meshPopulation() int {
	if r.Mode == ModeRowInstanced && r.RowWidth > 0 {
		return min(r.Population, r.RowWidth)
	}
	return r.Population
}

func (r Replicas) Layout(b Builder) (Layout, error) {
	if r.Population <= 0 || shape.TotalVertices(r.Shapes) == 0 {
		return Layout{}, nil
	}

	plan, err := b.Plan(r.Shapes, r.meshPopulation())
	if err != nil {
		return Layout{}, err
	}
	total := plan.TotalReplicas()

	l := Layout{
		Segments:        plan.Segments,
		TotalReplicas:   total,
		ReplicasPerMesh: plan.ReplicasPerMesh(),
	}
	switch r.Mode {
	case ModeRowInstanced:
		// One row holds one full draw of the mesh set; rows stack until the population is covered.
		l.Width = total
		l.Height = max(1, common.CeilDiv(r.Population, total))
		l.Rows = l.Height
		l.RowStride = 1
	default:
		l.Width = total
		if r.RowWidth > 0 && l.Width > r.RowWidth {
			l.Width = r.RowWidth
		}
		l.Height = common.CeilDiv(total, l.Width)
		l.Rows = 1
		l.RowStride = l.Height
	}
	return l, nil
}

func (r Replicas) Build(b Builder, layout Layout) (Result, error) {
	if layout.IsEmpty() {
		return Result{}, nil
	}
	return b.Build(r.Shapes, r.meshPopulation(), layout.Capacity())
}
