package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController owns the camera's positional state. It orbits a target on a sphere described by
// radius, azimuth and elevation; the Camera reads Position and Target from it every Update.
type CameraController interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: world-space camera position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: world-space target position
	Target() mgl32.Vec3

	// SetTarget sets the pivot point and recomputes the position from the spherical coordinates.
	//
	// Parameters:
	//   - target: world-space coordinates
	SetTarget(target mgl32.Vec3)

	// Zoom adjusts the orbit radius. Positive delta moves closer to the target.
	//
	// Parameters:
	//   - delta: zoom amount scaled by the zoom speed
	Zoom(delta float32)

	// Drag orbits the camera by a mouse movement.
	//
	// Parameters:
	//   - dx, dy: cursor movement in pixels, scaled by the mouse sensitivity
	Drag(dx, dy float32)

	// OrbitLeft rotates the camera left around the target by one orbit speed step.
	OrbitLeft()
	OrbitRight()
	OrbitUp()
	OrbitDown()

	Radius() float32

	// SetRadius sets the orbit radius, clamped to the configured bounds.
	//
	// Parameters:
	//   - radius: distance from the target
	SetRadius(radius float32)

	Azimuth() float32
	Elevation() float32
}
