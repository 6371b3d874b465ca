// Package shape normalizes arbitrary source meshes into flat, length-known records that the bulk mesh
// builder can replicate without touching the source again.
package shape

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrIndexOutOfRange is returned when a source references a vertex outside its own vertex range.
	ErrIndexOutOfRange = errors.New("shape: index out of range")

	// ErrNotTriangleList is returned when a source index count is not a multiple of three.
	ErrNotTriangleList = errors.New("shape: index count is not a triangle list")

	// ErrNormalCount is returned when a source supplies normals but not one per vertex.
	ErrNormalCount = errors.New("shape: normal count does not match vertex count")
)

// Source is any mesh that can expose its vertex positions, normals, and triangle-list indices.
// Indices are local to the source's own vertex range.
type Source interface {
	// Positions returns the object-space vertex positions.
	Positions() []mgl32.Vec3

	// VertexNormals returns one normal per vertex, or nil if the source has none.
	VertexNormals() []mgl32.Vec3

	// Triangles returns the triangle-list indices.
	Triangles() []uint32
}

// Record is the immutable, flattened form of a single Source.
// The zero Record is the Empty record and is valid input everywhere a Record is accepted.
type Record struct {
	name     string
	vertices []mgl32.Vec3
	normals  []mgl32.Vec3
	indices  []uint32
}

// Empty is the zero-length record produced for an absent shape.
var Empty = Record{}

// Name returns the optional label carried over from a named source.
func (r Record) Name() string { return r.name }

// VertexCount returns the number of vertices in the record.
func (r Record) VertexCount() int { return len(r.vertices) }

// IndexCount returns the number of triangle-list indices in the record.
func (r Record) IndexCount() int { return len(r.indices) }

// IsEmpty reports whether the record contributes no geometry.
func (r Record) IsEmpty() bool { return len(r.vertices) == 0 }

// Vertices returns the record's vertex positions. The slice must not be modified.
func (r Record) Vertices() []mgl32.Vec3 { return r.vertices }

// Normals returns the record's per-vertex normals. The slice must not be modified.
func (r Record) Normals() []mgl32.Vec3 { return r.normals }

// Indices returns the record's triangle-list indices. The slice must not be modified.
func (r Record) Indices() []uint32 { return r.indices }

// Build flattens a Source into a Record, copying its arrays so later edits to the source
// cannot leak into batched geometry. A nil source yields the Empty record.
//
// Missing normals are zero-filled so the normal array always matches the vertex array.
//
// Parameters:
//   - src: the mesh to flatten, may be nil
//
// Returns:
//   - Record: the flattened record
//   - error: ErrIndexOutOfRange, ErrNotTriangleList, or ErrNormalCount if the source is malformed
func Build(src Source) (Record, error) {
	if src == nil {
		return Empty, nil
	}

	positions := src.Positions()
	normals := src.VertexNormals()
	indices := src.Triangles()

	if len(indices)%3 != 0 {
		return Empty, fmt.Errorf("%w: %d indices", ErrNotTriangleList, len(indices))
	}
	if len(normals) != 0 && len(normals) != len(positions) {
		return Empty, fmt.Errorf("%w: %d normals for %d vertices", ErrNormalCount, len(normals), len(positions))
	}
	for i, idx := range indices {
		if int(idx) >= len(positions) {
			return Empty, fmt.Errorf("%w: index %d at position %d, vertex count %d", ErrIndexOutOfRange, idx, i, len(positions))
		}
	}

	r := Record{
		vertices: append([]mgl32.Vec3(nil), positions...),
		normals:  make([]mgl32.Vec3, len(positions)),
		indices:  append([]uint32(nil), indices...),
	}
	copy(r.normals, normals)
	if named, ok := src.(interface{ Name() string }); ok {
		r.name = named.Name()
	}
	return r, nil
}

// BuildAll flattens every source in order. Nil entries produce Empty records so that sparse shape
// lists keep their positions in round-robin assignment.
//
// Parameters:
//   - srcs: the sources to flatten
//
// Returns:
//   - []Record: one record per source
//   - error: the first malformed source, wrapped with its position
func BuildAll(srcs []Source) ([]Record, error) {
	records := make([]Record, len(srcs))
	for i, src := range srcs {
		r, err := Build(src)
		if err != nil {
			return nil, fmt.Errorf("shape %d: %w", i, err)
		}
		records[i] = r
	}
	return records, nil
}

// TotalVertices sums the vertex counts of all records.
func TotalVertices(records []Record) int {
	total := 0
	for _, r := range records {
		total += r.VertexCount()
	}
	return total
}

// TotalIndices sums the index counts of all records.
func TotalIndices(records []Record) int {
	total := 0
	for _, r := range records {
		total += r.IndexCount()
	}
	return total
}
