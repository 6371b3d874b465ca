package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// Perspective creates a perspective projection matrix for the WebGPU clip space, where depth
// maps to [0, 1] rather than the [-1, 1] range produced by mgl32.Perspective.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(fovY/2.0)
	var m mgl32.Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1.0
	m[14] = (near * far) / (near - far)
	return m
}

// EulerDegrees builds a rotation matrix from Euler angles in degrees using Y * X * Z order,
// the same yaw-pitch-roll convention as the effect transforms.
//
// Parameters:
//   - angles: rotation around X, Y and Z in degrees
//
// Returns:
//   - mgl32.Mat4: the rotation matrix
func EulerDegrees(angles mgl32.Vec3) mgl32.Mat4 {
	return mgl32.HomogRotate3DY(mgl32.DegToRad(angles[1])).
		Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(angles[0]))).
		Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(angles[2])))
}

// TRS composes a model matrix from a translation, Euler rotation in degrees and scale.
func TRS(position, eulerDegrees, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(position[0], position[1], position[2]).
		Mul4(EulerDegrees(eulerDegrees)).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}
