package shape

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is a plain triangle mesh implementing Source.
// All methods are safe to call on a nil *Mesh, which behaves as an empty mesh.
type Mesh struct {
	Label    string
	Vertices []mgl32.Vec3
	Normals  []mgl32.Vec3
	Indices  []uint32
}

var _ Source = &Mesh{}

func (m *Mesh) Name() string {
	if m == nil {
		return ""
	}
	return m.Label
}

func (m *Mesh) Positions() []mgl32.Vec3 {
	if m == nil {
		return nil
	}
	return m.Vertices
}

func (m *Mesh) VertexNormals() []mgl32.Vec3 {
	if m == nil {
		return nil
	}
	return m.Normals
}

func (m *Mesh) Triangles() []uint32 {
	if m == nil {
		return nil
	}
	return m.Indices
}

// addFace appends a flat-shaded polygon as a triangle fan. Each face gets its own vertices so the
// face normal is exact.
func (m *Mesh) addFace(corners ...mgl32.Vec3) {
	normal := corners[1].Sub(corners[0]).Cross(corners[2].Sub(corners[0])).Normalize()
	base := uint32(len(m.Vertices))
	for _, c := range corners {
		m.Vertices = append(m.Vertices, c)
		m.Normals = append(m.Normals, normal)
	}
	for i := 1; i+1 < len(corners); i++ {
		m.Indices = append(m.Indices, base, base+uint32(i), base+uint32(i+1))
	}
}

// Tetrahedron returns a flat-shaded regular tetrahedron inscribed in a sphere of the given radius.
// It has 12 vertices and 12 indices.
func Tetrahedron(radius float32) *Mesh {
	s := radius / mgl32.Vec3{1, 1, 1}.Len()
	a := mgl32.Vec3{s, s, s}
	b := mgl32.Vec3{s, -s, -s}
	c := mgl32.Vec3{-s, s, -s}
	d := mgl32.Vec3{-s, -s, s}

	m := &Mesh{Label: "tetrahedron"}
	m.addFace(a, c, b)
	m.addFace(a, b, d)
	m.addFace(a, d, c)
	m.addFace(b, c, d)
	return m
}

// Cube returns a flat-shaded axis-aligned cube with the given edge length.
// It has 24 vertices and 36 indices.
func Cube(size float32) *Mesh {
	h := size / 2
	p := func(x, y, z float32) mgl32.Vec3 { return mgl32.Vec3{x * h, y * h, z * h} }

	m := &Mesh{Label: "cube"}
	m.addFace(p(1, -1, -1), p(1, 1, -1), p(1, 1, 1), p(1, -1, 1))
	m.addFace(p(-1, -1, 1), p(-1, 1, 1), p(-1, 1, -1), p(-1, -1, -1))
	m.addFace(p(-1, 1, -1), p(-1, 1, 1), p(1, 1, 1), p(1, 1, -1))
	m.addFace(p(-1, -1, 1), p(-1, -1, -1), p(1, -1, -1), p(1, -1, 1))
	m.addFace(p(-1, -1, 1), p(1, -1, 1), p(1, 1, 1), p(-1, 1, 1))
	m.addFace(p(1, -1, -1), p(-1, -1, -1), p(-1, 1, -1), p(1, 1, -1))
	return m
}

// Octahedron returns a flat-shaded octahedron with vertices on the axes at the given radius.
// It has 24 vertices and 24 indices.
func Octahedron(radius float32) *Mesh {
	px, nx := mgl32.Vec3{radius, 0, 0}, mgl32.Vec3{-radius, 0, 0}
	py, ny := mgl32.Vec3{0, radius, 0}, mgl32.Vec3{0, -radius, 0}
	pz, nz := mgl32.Vec3{0, 0, radius}, mgl32.Vec3{0, 0, -radius}

	m := &Mesh{Label: "octahedron"}
	m.addFace(px, py, pz)
	m.addFace(pz, py, nx)
	m.addFace(nx, py, nz)
	m.addFace(nz, py, px)
	m.addFace(px, pz, ny)
	m.addFace(pz, nx, ny)
	m.addFace(nx, nz, ny)
	m.addFace(nz, px, ny)
	return m
}

// Quad returns a single double-sided square in the XY plane facing +Z.
// It has 4 vertices and 6 indices.
func Quad(size float32) *Mesh {
	h := size / 2
	m := &Mesh{Label: "quad"}
	m.addFace(mgl32.Vec3{-h, -h, 0}, mgl32.Vec3{h, -h, 0}, mgl32.Vec3{h, h, 0}, mgl32.Vec3{-h, h, 0})
	return m
}
