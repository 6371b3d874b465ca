package effect

import (
	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/go-gl/mathgl/mgl32"
)

// Streamline buffer dimensions. Every texel is one line particle.
const (
	StreamlineWidth  = 512
	StreamlineHeight = 48
)

// Streamline is a line particle system. Each particle is drawn as a line from its previous to its
// current position, so a single double-buffered position channel is enough.
type Streamline interface {
	Configurable

	// Config returns a copy of the current configuration.
	//
	// Returns:
	//   - StreamlineConfig: the sanitized configuration
	Config() StreamlineConfig

	// SetConfig replaces the configuration. A seed change marks the driver for reset.
	//
	// Parameters:
	//   - cfg: the new configuration
	SetConfig(cfg StreamlineConfig)

	SetEmitterPosition(position mgl32.Vec3)
	SetThrottle(throttle float32)
	SetColor(color mgl32.Vec4)
	Position() mgl32.Vec3
	SetPosition(position mgl32.Vec3)
	Rotation() mgl32.Vec3
	SetRotation(degrees mgl32.Vec3)
	Scale() mgl32.Vec3
	SetScale(scale mgl32.Vec3)
}

type streamline struct {
	base
	cfg StreamlineConfig
}

var _ Streamline = &streamline{}

// NewStreamline creates a streamline from a configuration.
//
// Parameters:
//   - cfg: the streamline configuration
//   - options: functional options for placement, notifier and logger
//
// Returns:
//   - Streamline: the streamline effect
func NewStreamline(cfg StreamlineConfig, options ...EffectBuilderOption) Streamline {
	return &streamline{
		base: newBase(options),
		cfg:  cfg.Sanitize(),
	}
}

func (s *streamline) Config() StreamlineConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *streamline) SetConfig(cfg StreamlineConfig) {
	cfg = cfg.Sanitize()
	s.mu.Lock()
	reseeded := s.cfg.RandomSeed != cfg.RandomSeed
	s.cfg = cfg
	s.mu.Unlock()

	if reseeded {
		s.notify()
	}
}

func (s *streamline) SetEmitterPosition(position mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.EmitterPosition = position
}

func (s *streamline) SetThrottle(throttle float32) {
	cfg := s.Config()
	cfg.Throttle = throttle
	s.SetConfig(cfg)
}

func (s *streamline) SetColor(color mgl32.Vec4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Color = color
}

func (s *streamline) Name() string {
	return StreamlineProgram
}

func (s *streamline) Geometry() bulk_mesh.Geometry {
	return bulk_mesh.LineGrid{Width: StreamlineWidth, Height: StreamlineHeight}
}

func (s *streamline) Channels() []sim_buffer.ChannelSpec {
	return []sim_buffer.ChannelSpec{{Name: "position"}}
}

// InitPasses seeds both roles so the first drawn lines have a valid previous position.
func (s *streamline) InitPasses() []simulation.KernelPass {
	return []simulation.KernelPass{
		{ID: 0, Output: simulation.Current(0)},
		{ID: 0, Output: simulation.Previous(0)},
	}
}

func (s *streamline) UpdatePasses() []simulation.KernelPass {
	return []simulation.KernelPass{
		{ID: 1, Inputs: []simulation.BufferRef{simulation.Previous(0)}, Output: simulation.Current(0)},
	}
}

func (s *streamline) KernelParameters() simulation.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cfg
	var noise float32
	if c.NoiseEnabled() {
		noise = 1
	}
	return simulation.Parameters{
		paramEmitterPos:  c.EmitterPosition,
		paramEmitterSize: c.EmitterSize,
		paramDirection:   c.Direction.Vec4(c.Spread),
		paramSpeedParams: mgl32.Vec2{c.MinSpeed, c.MaxSpeed},
		paramNoiseParams: mgl32.Vec4{c.NoiseFrequency, c.NoiseSpeed, c.NoiseAnimation, noise},
		paramConfig:      mgl32.Vec4{c.Throttle, c.Life, float32(c.RandomSeed), 0},
	}
}

func (s *streamline) DrawPasses() []simulation.DrawPass {
	return []simulation.DrawPass{{
		Material: StreamlineMaterial,
		Textures: map[string]simulation.BufferRef{
			texPreviousLine: simulation.Previous(0),
			texCurrentLine:  simulation.Current(0),
		},
	}}
}

func (s *streamline) MaterialParameters() simulation.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return simulation.Parameters{
		paramColor: s.cfg.Color,
		paramTail:  s.cfg.Tail,
	}
}
