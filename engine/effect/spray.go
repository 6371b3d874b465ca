package effect

import (
	"slices"

	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/shape"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Spray is a particle system of small shapes. Every particle owns one texel in a position buffer
// (xyz, remaining life) and one in a rotation buffer (a quaternion). The shape mesh covers one buffer
// row and is drawn once per row.
type Spray interface {
	Configurable

	// Config returns a copy of the current configuration.
	//
	// Returns:
	//   - SprayConfig: the sanitized configuration
	Config() SprayConfig

	// SetConfig replaces the configuration. Changes to the shapes, population, batch size or seed mark
	// the driver for reset; the rest takes effect on the next tick.
	//
	// Parameters:
	//   - cfg: the new configuration
	//
	// Returns:
	//   - error: a ConfigurationError for unknown shapes, leaving the configuration unchanged
	SetConfig(cfg SprayConfig) error

	// SetMaxParticles changes the population and marks the driver for reset.
	//
	// Parameters:
	//   - n: the particle count
	SetMaxParticles(n int)

	// SetShapes changes the source shapes and marks the driver for reset.
	//
	// Parameters:
	//   - names: shape names from ShapeNames
	//
	// Returns:
	//   - error: a ConfigurationError for unknown shapes
	SetShapes(names ...string) error

	SetEmitterPosition(position mgl32.Vec3)
	SetColor(color mgl32.Vec4)
	Position() mgl32.Vec3
	SetPosition(position mgl32.Vec3)
	Rotation() mgl32.Vec3
	SetRotation(degrees mgl32.Vec3)
	Scale() mgl32.Vec3
	SetScale(scale mgl32.Vec3)
}

type spray struct {
	base
	cfg     SprayConfig
	records []shape.Record
}

var _ Spray = &spray{}

// NewSpray creates a spray from a configuration.
//
// Parameters:
//   - cfg: the spray configuration
//   - options: functional options for placement, notifier and logger
//
// Returns:
//   - Spray: the spray effect
//   - error: a ConfigurationError for unknown shapes
func NewSpray(cfg SprayConfig, options ...EffectBuilderOption) (Spray, error) {
	s := &spray{base: newBase(options)}
	cfg = cfg.Sanitize()
	records, err := sprayShapes(cfg)
	if err != nil {
		return nil, err
	}
	s.cfg, s.records = cfg, records
	return s, nil
}

func sprayShapes(cfg SprayConfig) ([]shape.Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return buildShapes(cfg.Shapes, cfg.ShapeSize)
}

func (s *spray) Config() SprayConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg
	cfg.Shapes = slices.Clone(cfg.Shapes)
	return cfg
}

func (s *spray) SetConfig(cfg SprayConfig) error {
	cfg = cfg.Sanitize()

	s.mu.Lock()
	old := s.cfg
	rebuildShapes := !slices.Equal(old.Shapes, cfg.Shapes) || old.ShapeSize != cfg.ShapeSize
	s.mu.Unlock()

	var records []shape.Record
	if rebuildShapes {
		var err error
		if records, err = sprayShapes(cfg); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cfg = cfg
	if rebuildShapes {
		s.records = records
	}
	s.mu.Unlock()

	if rebuildShapes || old.MaxParticles != cfg.MaxParticles || old.BatchSize != cfg.BatchSize ||
		old.RandomSeed != cfg.RandomSeed {
		s.notify()
	}
	return nil
}

func (s *spray) SetMaxParticles(n int) {
	cfg := s.Config()
	cfg.MaxParticles = n
	_ = s.SetConfig(cfg)
}

func (s *spray) SetShapes(names ...string) error {
	cfg := s.Config()
	cfg.Shapes = names
	return s.SetConfig(cfg)
}

func (s *spray) SetEmitterPosition(position mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.EmitterPosition = position
}

func (s *spray) SetColor(color mgl32.Vec4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Color = color
}

func (s *spray) Name() string {
	return SprayProgram
}

func (s *spray) Geometry() bulk_mesh.Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bulk_mesh.Replicas{
		Shapes:     s.records,
		Population: s.cfg.MaxParticles,
		RowWidth:   s.cfg.BatchSize,
		Mode:       bulk_mesh.ModeRowInstanced,
	}
}

func (s *spray) Channels() []sim_buffer.ChannelSpec {
	return []sim_buffer.ChannelSpec{{Name: "position"}, {Name: "rotation"}}
}

func (s *spray) InitPasses() []simulation.KernelPass {
	return []simulation.KernelPass{
		{ID: 0, Output: simulation.Current(0)},
		{ID: 1, Output: simulation.Current(1)},
	}
}

func (s *spray) UpdatePasses() []simulation.KernelPass {
	return []simulation.KernelPass{
		{ID: 2, Inputs: []simulation.BufferRef{simulation.Previous(0)}, Output: simulation.Current(0)},
		{ID: 3, Inputs: []simulation.BufferRef{simulation.Previous(1)}, Output: simulation.Current(1)},
	}
}

func (s *spray) KernelParameters() simulation.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cfg
	// Rotation speeds are passed as half angles in radians.
	rs := float32(math32.Pi / 360)
	return simulation.Parameters{
		paramEmitterPos:  c.EmitterPosition,
		paramEmitterSize: c.EmitterSize,
		paramLifeParams:  mgl32.Vec2{1 / c.MinLife, 1 / c.MaxLife},
		paramDirection:   c.Direction.Vec4(c.Spread),
		paramSpeedParams: mgl32.Vec4{c.MinSpeed, c.MaxSpeed, c.MinRotation * rs, c.MaxRotation * rs},
		paramNoiseParams: mgl32.Vec2{c.NoiseDensity, c.NoiseVelocity},
		paramSeed:        float32(c.RandomSeed),
	}
}

func (s *spray) DrawPasses() []simulation.DrawPass {
	return []simulation.DrawPass{{
		Material: SprayMaterial,
		Textures: map[string]simulation.BufferRef{
			texPosition: simulation.Current(0),
			texRotation: simulation.Current(1),
		},
	}}
}

func (s *spray) MaterialParameters() simulation.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return simulation.Parameters{
		paramScaleParams: mgl32.Vec2{s.cfg.MinScale, s.cfg.MaxScale},
		paramColor:       s.cfg.Color,
	}
}
