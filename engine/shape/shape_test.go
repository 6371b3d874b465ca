package shape

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNilSourceIsEmpty(t *testing.T) {
	r, err := Build(nil)
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
	assert.Zero(t, r.VertexCount())
	assert.Zero(t, r.IndexCount())

	var m *Mesh
	r, err = Build(m)
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
}

func TestBuildCopiesAndZeroFillsNormals(t *testing.T) {
	m := &Mesh{
		Label:    "tri",
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:  []uint32{0, 1, 2},
	}
	r, err := Build(m)
	require.NoError(t, err)

	assert.Equal(t, "tri", r.Name())
	assert.Equal(t, 3, r.VertexCount())
	assert.Equal(t, 3, r.IndexCount())
	require.Len(t, r.Normals(), 3)
	assert.Equal(t, mgl32.Vec3{}, r.Normals()[2])

	m.Vertices[1] = mgl32.Vec3{9, 9, 9}
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, r.Vertices()[1])
}

func TestBuildRejectsMalformedSources(t *testing.T) {
	_, err := Build(&Mesh{Vertices: make([]mgl32.Vec3, 3), Indices: []uint32{0, 1, 3}})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = Build(&Mesh{Vertices: make([]mgl32.Vec3, 3), Indices: []uint32{0, 1}})
	assert.ErrorIs(t, err, ErrNotTriangleList)

	_, err = Build(&Mesh{Vertices: make([]mgl32.Vec3, 3), Normals: make([]mgl32.Vec3, 2), Indices: []uint32{0, 1, 2}})
	assert.ErrorIs(t, err, ErrNormalCount)
}

func TestBuildAllKeepsSparsePositions(t *testing.T) {
	records, err := BuildAll([]Source{Cube(1), nil, Tetrahedron(1)})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 24, records[0].VertexCount())
	assert.True(t, records[1].IsEmpty())
	assert.Equal(t, 12, records[2].VertexCount())
	assert.Equal(t, 36, TotalVertices(records))
	assert.Equal(t, 36+12, TotalIndices(records))
}

func TestBuildAllReportsFailingShape(t *testing.T) {
	_, err := BuildAll([]Source{Cube(1), &Mesh{Vertices: make([]mgl32.Vec3, 1), Indices: []uint32{0, 0, 5}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Contains(t, err.Error(), "shape 1")
}

func TestPrimitivesAreWellFormed(t *testing.T) {
	cases := []struct {
		mesh     *Mesh
		vertices int
		indices  int
	}{
		{Tetrahedron(1), 12, 12},
		{Cube(1), 24, 36},
		{Octahedron(1), 24, 24},
		{Quad(1), 4, 6},
	}
	for _, c := range cases {
		t.Run(c.mesh.Name(), func(t *testing.T) {
			r, err := Build(c.mesh)
			require.NoError(t, err)
			assert.Equal(t, c.vertices, r.VertexCount())
			assert.Equal(t, c.indices, r.IndexCount())
			for _, n := range r.Normals() {
				assert.InDelta(t, 1, n.Len(), 1e-5)
			}
		})
	}
}

func TestCubeNormalsPointOutward(t *testing.T) {
	c := Cube(2)
	for i, v := range c.Vertices {
		assert.Greater(t, v.Dot(c.Normals[i]), float32(0))
	}
}
