// package common contains common types that are used throughout this module. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Bounds is an axis-aligned bounding box expressed as a center and half-extents.
type Bounds struct {
	// Center is the midpoint of the box in object space.
	Center mgl32.Vec3
	// Extents is the half-size of the box along each axis.
	Extents mgl32.Vec3
}

// NewBoundsFromSize builds a Bounds centered at the given point with the full size along each axis.
//
// Parameters:
//   - center: the midpoint of the box
//   - size: the full width, height and depth of the box
//
// Returns:
//   - Bounds: the resulting bounding box
func NewBoundsFromSize(center, size mgl32.Vec3) Bounds {
	return Bounds{Center: center, Extents: size.Mul(0.5)}
}

// Min returns the minimum corner of the box.
func (b Bounds) Min() mgl32.Vec3 {
	return b.Center.Sub(b.Extents)
}

// Max returns the maximum corner of the box.
func (b Bounds) Max() mgl32.Vec3 {
	return b.Center.Add(b.Extents)
}

// Transform returns the bounds of this box after applying the matrix m to all eight corners.
//
// Parameters:
//   - m: the transform to apply
//
// Returns:
//   - Bounds: the axis-aligned box enclosing the transformed corners
func (b Bounds) Transform(m mgl32.Mat4) Bounds {
	lo, hi := b.Min(), b.Max()
	var outMin, outMax mgl32.Vec3
	for i := 0; i < 8; i++ {
		corner := mgl32.Vec3{lo[0], lo[1], lo[2]}
		if i&1 != 0 {
			corner[0] = hi[0]
		}
		if i&2 != 0 {
			corner[1] = hi[1]
		}
		if i&4 != 0 {
			corner[2] = hi[2]
		}
		p := mgl32.TransformCoordinate(corner, m)
		if i == 0 {
			outMin, outMax = p, p
			continue
		}
		for a := 0; a < 3; a++ {
			outMin[a] = min(outMin[a], p[a])
			outMax[a] = max(outMax[a], p[a])
		}
	}
	return Bounds{Center: outMin.Add(outMax).Mul(0.5), Extents: outMax.Sub(outMin).Mul(0.5)}
}

// ConfigurationError reports a configuration that can never be satisfied, such as a single shape
// too large to batch or a buffer larger than the host allows. Retrying the same configuration fails
// identically, so callers must change the configuration before trying again.
type ConfigurationError struct {
	// Component names the part of the system that rejected the configuration.
	Component string
	// Reason is a human readable description of the violated limit.
	Reason string
	// Err is an optional sentinel identifying the kind of violation.
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid configuration: %v: %s", e.Component, e.Err, e.Reason)
	}
	return fmt.Sprintf("%s: invalid configuration: %s", e.Component, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError formats a ConfigurationError for the given component.
//
// Parameters:
//   - component: the component reporting the error
//   - format: fmt style format string for the reason
//   - args: format arguments
//
// Returns:
//   - error: the configuration error
func NewConfigurationError(component, format string, args ...any) error {
	return &ConfigurationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether any error in err's chain is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ResourceError reports a failed host allocation of a buffer or mesh.
type ResourceError struct {
	// Resource is a label describing what was being allocated.
	Resource string
	// Err is the underlying host failure.
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("failed to allocate %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// IsResourceError reports whether any error in err's chain is a ResourceError.
func IsResourceError(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}
