package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackParametersUsesOneSlotPerName(t *testing.T) {
	packed, err := packParameters(
		[]string{"life", "direction", "missing", "color", "enabled"},
		simulation.Parameters{
			"life":      float32(0.5),
			"direction": mgl32.Vec3{0, 0, 1},
			"color":     mgl32.Vec4{1, 0.5, 0.25, 1},
			"enabled":   true,
			"unused":    float32(9),
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []float32{
		0.5, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 0,
		1, 0.5, 0.25, 1,
		1, 0, 0, 0,
	}, packed)
}

func TestPackParametersRejectsUnknownTypes(t *testing.T) {
	_, err := packParameters([]string{"bad"}, simulation.Parameters{"bad": "string"})
	assert.ErrorContains(t, err, `"bad"`)
}

func TestPackParametersNeverEmpty(t *testing.T) {
	packed, err := packParameters(nil, nil)
	require.NoError(t, err)
	assert.Len(t, packed, 4)
}

func TestDrawUniformLeadsWithMatrices(t *testing.T) {
	vp := mgl32.Scale3D(2, 2, 2)
	model := mgl32.Translate3D(1, 2, 3)
	out, err := drawUniform(vp, model, []string{"tail"}, simulation.Parameters{"tail": float32(1)})
	require.NoError(t, err)

	require.Len(t, out, matrixSlots*4+4)
	assert.Equal(t, vp[:], out[:16])
	assert.Equal(t, model[:], out[16:32])
	assert.Equal(t, float32(1), out[32])
}

func TestInterleaveAndIndexRanges(t *testing.T) {
	mesh := &bulk_mesh.CombinedMesh{
		Vertices: []mgl32.Vec3{{1, 2, 3}, {4, 5, 6}},
		Normals:  []mgl32.Vec3{{0, 1, 0}, {0, 0, 1}},
		UVs:      []mgl32.Vec2{{0.25, 0.5}, {0.75, 0.5}},
		Submeshes: []bulk_mesh.Submesh{
			{Topology: bulk_mesh.TopologyTriangles, Indices: []uint32{0, 1, 0}},
			{Topology: bulk_mesh.TopologyLines, Indices: []uint32{0, 1}},
		},
	}

	verts := interleave(mesh)
	require.Len(t, verts, 2*vertexStride)
	assert.Equal(t, []float32{1, 2, 3, 0, 1, 0, 0.25, 0.5, 0, 0}, verts[:vertexStride])
	assert.Equal(t, []float32{4, 5, 6, 0, 0, 1, 0.75, 0.5, 0, 0}, verts[vertexStride:])

	indices, ranges := concatIndices(mesh)
	assert.Equal(t, []uint32{0, 1, 0, 0, 1}, indices)
	assert.Equal(t, []indexRange{{First: 0, Count: 3}, {First: 3, Count: 2}}, ranges)
}

func TestWorkgroupsCoverBuffer(t *testing.T) {
	assert.Equal(t, [3]uint32{64, 6, 1}, workgroups(512, 48))
	assert.Equal(t, [3]uint32{1, 1, 1}, workgroups(1, 1))
	assert.Equal(t, [3]uint32{2, 1, 1}, workgroups(9, 8))
}
