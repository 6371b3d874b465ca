package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestControllerOrbitsTarget(t *testing.T) {
	cc := NewCameraController(WithRadius(10), WithElevation(0), WithTarget(mgl32.Vec3{1, 2, 3}))
	assert.True(t, cc.Position().ApproxEqualThreshold(mgl32.Vec3{1, 2, 13}, 1e-5))

	cc.Drag(-math32.Pi/2/0.005, 0)
	assert.InDelta(t, math32.Pi/2, cc.Azimuth(), 1e-5)
	assert.True(t, cc.Position().ApproxEqualThreshold(mgl32.Vec3{11, 2, 3}, 1e-4))
	assert.InDelta(t, 10, cc.Position().Sub(cc.Target()).Len(), 1e-4)
}

func TestControllerClampsRadiusAndElevation(t *testing.T) {
	cc := NewCameraController(WithRadius(10), WithRadiusBounds(5, 20), WithElevationBounds(-0.5, 0.5))

	cc.Zoom(100)
	assert.Equal(t, float32(5), cc.Radius())
	cc.SetRadius(1000)
	assert.Equal(t, float32(20), cc.Radius())

	for range 100 {
		cc.OrbitUp()
	}
	assert.Equal(t, float32(0.5), cc.Elevation())
}

func TestCameraViewProjection(t *testing.T) {
	cc := NewCameraController(WithRadius(10), WithElevation(0))
	cam := NewCamera(WithController(cc), WithAspect(2), WithDepthRange(1, 100))

	clip := cam.ViewProjection().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	ndc := clip.Vec3().Mul(1 / clip[3])
	assert.InDelta(t, 0, ndc[0], 1e-5)
	assert.InDelta(t, 0, ndc[1], 1e-5)
	assert.Greater(t, ndc[2], float32(0))
	assert.Less(t, ndc[2], float32(1))

	behind := cam.ViewProjection().Mul4x1(mgl32.Vec4{0, 0, 20, 1})
	assert.Less(t, behind[3], float32(0), "points behind the camera have negative w")

	cam.SetAspect(0)
	assert.Equal(t, float32(2), cam.Aspect())
}

func TestCameraWithoutControllerLooksDownMinusZ(t *testing.T) {
	cam := NewCamera()
	assert.Equal(t, mgl32.Ident4(), cam.View())
	assert.Nil(t, cam.Controller())
}
