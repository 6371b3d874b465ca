package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/go-gl/mathgl/mgl32"
)

// vertexStride is the number of float32 values per interleaved vertex: position, normal, uv, uv2.
const vertexStride = 3 + 3 + 2 + 2

// matrixSlots is the number of vec4 slots the view-projection and model matrices occupy at the head of
// a draw uniform.
const matrixSlots = 8

// packSlot writes one parameter value into a vec4 slot.
func packSlot(dst []float32, value any) error {
	switch v := value.(type) {
	case nil:
	case float32:
		dst[0] = v
	case float64:
		dst[0] = float32(v)
	case int:
		dst[0] = float32(v)
	case bool:
		if v {
			dst[0] = 1
		}
	case mgl32.Vec2:
		copy(dst, v[:])
	case mgl32.Vec3:
		copy(dst, v[:])
	case mgl32.Vec4:
		copy(dst, v[:])
	default:
		return fmt.Errorf("unsupported parameter type %T", value)
	}
	return nil
}

// packParameters lays out the named parameters as consecutive vec4 slots. Missing parameters are zero.
//
// Parameters:
//   - names: the parameter names in slot order
//   - params: the parameter values
//
// Returns:
//   - []float32: four values per name
//   - error: an error naming the first parameter whose type cannot be packed
func packParameters(names []string, params simulation.Parameters) ([]float32, error) {
	out := make([]float32, 4*max(1, len(names)))
	for i, name := range names {
		if err := packSlot(out[i*4:i*4+4], params[name]); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return out, nil
}

// drawUniform builds the uniform block of a draw: view-projection, model, then the material parameters.
func drawUniform(viewProjection, model mgl32.Mat4, names []string, params simulation.Parameters) ([]float32, error) {
	packed, err := packParameters(names, params)
	if err != nil {
		return nil, err
	}
	out := make([]float32, 0, matrixSlots*4+len(packed))
	out = append(out, viewProjection[:]...)
	out = append(out, model[:]...)
	return append(out, packed...), nil
}

// interleave flattens a combined mesh into the vertex layout every draw program expects.
func interleave(mesh *bulk_mesh.CombinedMesh) []float32 {
	out := make([]float32, 0, len(mesh.Vertices)*vertexStride)
	for i, p := range mesh.Vertices {
		var n mgl32.Vec3
		if i < len(mesh.Normals) {
			n = mesh.Normals[i]
		}
		var uv, uv2 mgl32.Vec2
		if i < len(mesh.UVs) {
			uv = mesh.UVs[i]
		}
		if i < len(mesh.UV2s) {
			uv2 = mesh.UV2s[i]
		}
		out = append(out, p[0], p[1], p[2], n[0], n[1], n[2], uv[0], uv[1], uv2[0], uv2[1])
	}
	return out
}

// indexRange is the location of one submesh in a mesh's shared index buffer.
type indexRange struct {
	First uint32
	Count uint32
}

// concatIndices joins every submesh's indices into one buffer and records where each submesh starts.
func concatIndices(mesh *bulk_mesh.CombinedMesh) ([]uint32, []indexRange) {
	indices := make([]uint32, 0, mesh.IndexCount())
	ranges := make([]indexRange, len(mesh.Submeshes))
	for i, sub := range mesh.Submeshes {
		ranges[i] = indexRange{First: uint32(len(indices)), Count: uint32(len(sub.Indices))}
		indices = append(indices, sub.Indices...)
	}
	return indices, ranges
}

// workgroups returns the dispatch size covering a buffer with 8x8 workgroups.
func workgroups(width, height int) [3]uint32 {
	return [3]uint32{uint32((width + 7) / 8), uint32((height + 7) / 8), 1}
}
