package effect

import (
	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Tunnel is a noise-displaced cylinder constructed on the GPU every tick. A triangular lattice reads
// its vertices from a position buffer and the flat normals of its two triangle sets from two normal
// buffers. Nothing is integrated over time, so every channel is single-buffered.
type Tunnel interface {
	Configurable

	// Config returns a copy of the current configuration.
	//
	// Returns:
	//   - TunnelConfig: the sanitized configuration
	Config() TunnelConfig

	// SetConfig replaces the configuration. A slice or stack change marks the driver for reset.
	//
	// Parameters:
	//   - cfg: the new configuration
	SetConfig(cfg TunnelConfig)

	// SetResolution changes the lattice size, clamped to 8..255 slices and 8..1023 stacks.
	//
	// Parameters:
	//   - slices: columns around the tunnel
	//   - stacks: rows along the tunnel
	SetResolution(slices, stacks int)

	SetOffset(offset float32)
	SetTwist(twist float32)
	SetBump(bump float32)
	SetWarp(warp float32)
	SetSurfaceColor(color mgl32.Vec4)
	SetLineColor(color mgl32.Vec4)
	Position() mgl32.Vec3
	SetPosition(position mgl32.Vec3)
	Rotation() mgl32.Vec3
	SetRotation(degrees mgl32.Vec3)
	Scale() mgl32.Vec3
	SetScale(scale mgl32.Vec3)
}

type tunnel struct {
	base
	cfg TunnelConfig
}

var _ Tunnel = &tunnel{}

// NewTunnel creates a tunnel from a configuration.
//
// Parameters:
//   - cfg: the tunnel configuration
//   - options: functional options for placement, notifier and logger
//
// Returns:
//   - Tunnel: the tunnel effect
func NewTunnel(cfg TunnelConfig, options ...EffectBuilderOption) Tunnel {
	return &tunnel{
		base: newBase(options),
		cfg:  cfg.Sanitize(),
	}
}

func (t *tunnel) Config() TunnelConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

func (t *tunnel) SetConfig(cfg TunnelConfig) {
	cfg = cfg.Sanitize()
	t.mu.Lock()
	resized := t.cfg.Slices != cfg.Slices || t.cfg.Stacks != cfg.Stacks
	t.cfg = cfg
	t.mu.Unlock()

	if resized {
		t.notify()
	}
}

func (t *tunnel) SetResolution(slices, stacks int) {
	cfg := t.Config()
	cfg.Slices, cfg.Stacks = slices, stacks
	t.SetConfig(cfg)
}

func (t *tunnel) update(fn func(c *TunnelConfig)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.cfg)
}

func (t *tunnel) SetOffset(offset float32) { t.update(func(c *TunnelConfig) { c.Offset = offset }) }

func (t *tunnel) SetTwist(twist float32) { t.update(func(c *TunnelConfig) { c.Twist = twist }) }

func (t *tunnel) SetBump(bump float32) { t.update(func(c *TunnelConfig) { c.Bump = bump }) }

func (t *tunnel) SetWarp(warp float32) { t.update(func(c *TunnelConfig) { c.Warp = warp }) }

func (t *tunnel) SetSurfaceColor(color mgl32.Vec4) {
	t.update(func(c *TunnelConfig) { c.SurfaceColor = color })
}

func (t *tunnel) SetLineColor(color mgl32.Vec4) {
	t.update(func(c *TunnelConfig) { c.LineColor = color })
}

func (t *tunnel) Name() string {
	return TunnelProgram
}

func (t *tunnel) Geometry() bulk_mesh.Geometry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bulk_mesh.Lattice{Columns: t.cfg.Slices, Rows: t.cfg.Stacks}
}

func (t *tunnel) Channels() []sim_buffer.ChannelSpec {
	return []sim_buffer.ChannelSpec{
		{Name: "position", Single: true},
		{Name: "normal1", Single: true},
		{Name: "normal2", Single: true},
	}
}

func (t *tunnel) InitPasses() []simulation.KernelPass {
	return nil
}

func (t *tunnel) UpdatePasses() []simulation.KernelPass {
	position := []simulation.BufferRef{simulation.Current(0)}
	return []simulation.KernelPass{
		{ID: 0, Output: simulation.Current(0)},
		{ID: 1, Inputs: position, Output: simulation.Current(1)},
		{ID: 2, Inputs: position, Output: simulation.Current(2)},
	}
}

func (t *tunnel) KernelParameters() simulation.Parameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.cfg

	// The position buffer has one more row than there are stacks.
	height := c.Height * float32(c.Stacks+1) / float32(c.Stacks)
	density := float32(c.Density)
	vdensity := density / (2 * math32.Pi * c.Radius)
	return simulation.Parameters{
		paramSize:     mgl32.Vec2{c.Radius, height},
		paramOffset:   mgl32.Vec2{c.Twist * density, c.Offset * vdensity},
		paramPeriod:   mgl32.Vec2{1, 10000},
		paramDensity:  mgl32.Vec2{density, vdensity * height},
		paramDisplace: mgl32.Vec3{c.Bump, c.Warp, c.Warp},
	}
}

func (t *tunnel) DrawPasses() []simulation.DrawPass {
	t.mu.Lock()
	lines := t.cfg.LineColor
	t.mu.Unlock()

	passes := []simulation.DrawPass{
		{
			Material:  TunnelMaterial,
			Submeshes: []int{0},
			Textures: map[string]simulation.BufferRef{
				texPosition: simulation.Current(0),
				texNormal:   simulation.Current(1),
			},
		},
		{
			Material:  TunnelMaterial,
			Submeshes: []int{1},
			Textures: map[string]simulation.BufferRef{
				texPosition: simulation.Current(0),
				texNormal:   simulation.Current(2),
			},
		},
	}
	if lines[3] > 0 {
		passes = append(passes, simulation.DrawPass{
			Material:   TunnelLineMaterial,
			Submeshes:  []int{2},
			Textures:   map[string]simulation.BufferRef{texPosition: simulation.Current(0)},
			Parameters: simulation.Parameters{paramColor: lines},
		})
	}
	return passes
}

func (t *tunnel) MaterialParameters() simulation.Parameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return simulation.Parameters{paramColor: t.cfg.SurfaceColor}
}
