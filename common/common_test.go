package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, 4, CeilDiv(10, 3))
	assert.Equal(t, 3, CeilDiv(9, 3))
	assert.Equal(t, 0, CeilDiv(0, 3))
	assert.Equal(t, 0, CeilDiv(5, 0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 8, Clamp(2, 8, 255))
	assert.Equal(t, 255, Clamp(900, 8, 255))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}

func TestConfigurationErrorMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("reset: %w", NewConfigurationError("bulk_mesh", "shape has %d vertices", 70000))
	require.True(t, IsConfigurationError(err))
	assert.False(t, IsResourceError(err))
	assert.Contains(t, err.Error(), "70000")
}

func TestResourceErrorUnwraps(t *testing.T) {
	base := errors.New("out of memory")
	err := fmt.Errorf("allocate: %w", &ResourceError{Resource: "position buffer", Err: base})
	assert.True(t, IsResourceError(err))
	assert.ErrorIs(t, err, base)
}

func TestBoundsTransform(t *testing.T) {
	b := NewBoundsFromSize(mgl32.Vec3{}, mgl32.Vec3{2, 2, 2})
	moved := b.Transform(mgl32.Translate3D(5, 0, 0).Mul4(mgl32.Scale3D(2, 1, 1)))
	assert.InDelta(t, 5, moved.Center[0], 1e-5)
	assert.InDelta(t, 2, moved.Extents[0], 1e-5)
	assert.InDelta(t, 1, moved.Extents[1], 1e-5)
}

func TestFrustumIntersectsBounds(t *testing.T) {
	proj := Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	f := ExtractFrustumFromMatrix(proj.Mul4(view))

	assert.True(t, f.IntersectsBounds(NewBoundsFromSize(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})))
	assert.False(t, f.IntersectsBounds(NewBoundsFromSize(mgl32.Vec3{0, 0, 50}, mgl32.Vec3{1, 1, 1})))
	assert.False(t, f.IntersectsBounds(NewBoundsFromSize(mgl32.Vec3{500, 0, 0}, mgl32.Vec3{1, 1, 1})))
	// oversized boxes are never culled
	assert.True(t, f.IntersectsBounds(NewBoundsFromSize(mgl32.Vec3{0, 0, 50}, mgl32.Vec3{200, 200, 200})))
}
