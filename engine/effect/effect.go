// Package effect holds the configuration front ends simulated by the engine: Spray (shape particles),
// Streamline (line particles), Tunnel (a GPU-constructed lattice) and Scroller (three tunnels scrolling
// endlessly). Each front end implements simulation.Effect and ships its WGSL programs and CPU kernels.
package effect

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/Carmen-Shannon/kvant-go/engine/shape"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/go-gl/mathgl/mgl32"
)

// Notifier is told about configuration changes that require new buffers or meshes. A
// simulation.Driver satisfies it.
type Notifier interface {
	NotifyConfigurationChanged()
}

// Configurable is an effect that reports structural changes to a Notifier.
type Configurable interface {
	simulation.Effect

	// SetNotifier sets the receiver of structural configuration changes.
	//
	// Parameters:
	//   - n: the notifier, usually the effect's driver
	SetNotifier(n Notifier)
}

// Attach creates a driver for the effect and binds the effect's setters to it.
//
// Parameters:
//   - e: the effect to simulate
//   - options: driver options, typically the host, kernel and renderer
//
// Returns:
//   - simulation.Driver: the driver, in StateUninitialized
func Attach(e Configurable, options ...simulation.DriverBuilderOption) simulation.Driver {
	d := simulation.NewDriver(e, options...)
	e.SetNotifier(d)
	return d
}

// EffectBuilderOption is a functional option shared by every effect constructor.
type EffectBuilderOption func(*base)

// WithPosition sets the effect's world position.
//
// Parameters:
//   - position: the translation applied to every draw
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithPosition(position mgl32.Vec3) EffectBuilderOption {
	return func(b *base) {
		b.position = position
	}
}

// WithRotation sets the effect's rotation as Euler angles in degrees.
//
// Parameters:
//   - degrees: rotation around X, Y and Z
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithRotation(degrees mgl32.Vec3) EffectBuilderOption {
	return func(b *base) {
		b.rotation = degrees
	}
}

// WithScale sets the effect's scale.
func WithScale(scale mgl32.Vec3) EffectBuilderOption {
	return func(b *base) {
		b.scale = scale
	}
}

// WithNotifier sets the receiver of structural configuration changes.
//
// Parameters:
//   - n: the notifier
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithNotifier(n Notifier) EffectBuilderOption {
	return func(b *base) {
		b.notifier = n
	}
}

// WithLogger sets the structured logger.
//
// Parameters:
//   - logger: the logger, nil keeps slog.Default()
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) EffectBuilderOption {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// base is the state every effect shares: a lock, its placement, and its notifier.
type base struct {
	mu       *sync.Mutex
	logger   *slog.Logger
	notifier Notifier
	position mgl32.Vec3
	rotation mgl32.Vec3
	scale    mgl32.Vec3
}

func newBase(options []EffectBuilderOption) base {
	b := base{
		mu:     &sync.Mutex{},
		logger: slog.Default(),
		scale:  mgl32.Vec3{1, 1, 1},
	}
	for _, opt := range options {
		opt(&b)
	}
	return b
}

func (b *base) SetNotifier(n Notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifier = n
}

// notify must be called without b.mu held; the driver may call back into the effect.
func (b *base) notify() {
	b.mu.Lock()
	n := b.notifier
	b.mu.Unlock()
	if n != nil {
		n.NotifyConfigurationChanged()
	}
}

func (b *base) Position() mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

func (b *base) SetPosition(position mgl32.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.position = position
}

func (b *base) Rotation() mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rotation
}

func (b *base) SetRotation(degrees mgl32.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotation = degrees
}

func (b *base) Scale() mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scale
}

func (b *base) SetScale(scale mgl32.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scale = scale
}

func (b *base) Transform() mgl32.Mat4 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return common.TRS(b.position, b.rotation, b.scale)
}

var shapeFactories = map[string]func(size float32) *shape.Mesh{
	"tetrahedron": shape.Tetrahedron,
	"cube":        shape.Cube,
	"octahedron":  shape.Octahedron,
	"quad":        shape.Quad,
}

// ShapeNames lists the shape names a SprayConfig accepts.
func ShapeNames() []string {
	names := make([]string, 0, len(shapeFactories))
	for name := range shapeFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildShapes(names []string, size float32) ([]shape.Record, error) {
	srcs := make([]shape.Source, 0, len(names))
	for _, name := range names {
		factory, ok := shapeFactories[name]
		if !ok {
			return nil, fmt.Errorf("unknown shape %q", name)
		}
		srcs = append(srcs, factory(size))
	}
	return shape.BuildAll(srcs)
}
