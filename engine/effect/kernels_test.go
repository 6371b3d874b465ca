package effect

import (
	"testing"

	"github.com/Carmen-Shannon/kvant-go/engine/renderer"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer/software"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type softwareRig struct {
	backend  *software.Backend
	renderer renderer.Renderer
}

func newSoftwareRig(t *testing.T) *softwareRig {
	t.Helper()
	backend := software.NewBackend(software.WithKernels(SoftwareKernels()))
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, nil,
		renderer.WithBackend(backend),
		renderer.WithPrograms(Programs()...),
		renderer.WithFrustumCulling(false),
	)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return &softwareRig{backend: backend, renderer: r}
}

func (rig *softwareRig) attach(e Configurable) simulation.Driver {
	return Attach(e,
		simulation.WithHost(rig.renderer),
		simulation.WithKernel(rig.renderer),
		simulation.WithRenderer(rig.renderer),
	)
}

func (rig *softwareRig) frame(t *testing.T, d simulation.Driver, dt float32) {
	t.Helper()
	r := rig.renderer
	require.NoError(t, r.BeginComputeFrame())
	require.NoError(t, r.BeginFrame())
	require.NoError(t, d.Tick(dt))
	r.EndComputeFrame()
	r.EndFrame()
	r.Present()
}

func memory(t *testing.T, d simulation.Driver, ref simulation.BufferRef) *sim_buffer.MemoryBuffer {
	t.Helper()
	buf, ok := d.Resources().Buffer(ref).(*sim_buffer.MemoryBuffer)
	require.True(t, ok, "buffer %+v is not in host memory", ref)
	return buf
}

func TestSpraySimulatesInSoftware(t *testing.T) {
	rig := newSoftwareRig(t)
	cfg := DefaultConfig().Spray
	cfg.MaxParticles = 10
	cfg.BatchSize = 4
	cfg.Shapes = []string{"cube"}
	s, err := NewSpray(cfg)
	require.NoError(t, err)
	d := rig.attach(s)

	rig.frame(t, d, 0.1)
	require.Equal(t, simulation.StateReady, d.State())
	assert.Equal(t, 4, rig.backend.Dispatches())
	assert.Len(t, rig.backend.Draws(), 3, "one draw per buffer row")

	position := memory(t, d, simulation.Current(0))
	rotation := memory(t, d, simulation.Current(1))
	for y := range 3 {
		for x := range 4 {
			life := position.At(x, y)[3]
			assert.Greater(t, life, float32(0))
			assert.LessOrEqual(t, life, float32(1))
			assert.InDelta(t, 1, rotation.At(x, y).Len(), 1e-4)
		}
	}

	rows := make(map[float32]bool)
	for _, draw := range rig.backend.Draws() {
		assert.Equal(t, SprayMaterial, draw.Material)
		rows[draw.Params.Vec2(simulation.ParamBufferOffset)[1]] = true
	}
	assert.Len(t, rows, 3)
}

func TestSprayResetsOnPopulationChange(t *testing.T) {
	rig := newSoftwareRig(t)
	s, err := NewSpray(DefaultConfig().Spray)
	require.NoError(t, err)
	d := rig.attach(s)

	rig.frame(t, d, 0.1)
	before := d.Resources().Buffers.Width() * d.Resources().Buffers.Height()
	assert.GreaterOrEqual(t, before, 1000)

	s.SetMaxParticles(3000)
	assert.Equal(t, simulation.StateNeedsReset, d.State())
	rig.frame(t, d, 0.1)
	assert.Equal(t, simulation.StateReady, d.State())
	assert.GreaterOrEqual(t, d.Resources().Buffers.Width()*d.Resources().Buffers.Height(), 3000)
}

func TestStreamlineSimulatesInSoftware(t *testing.T) {
	rig := newSoftwareRig(t)
	cfg := DefaultConfig().Streamline
	cfg.Throttle = 0.5
	cfg.NoiseSpeed = 0
	d := rig.attach(NewStreamline(cfg))

	const dt = float32(0.1)
	rig.frame(t, d, dt)
	require.Equal(t, simulation.StateReady, d.State())
	assert.Len(t, rig.backend.Draws(), 1)

	prev := memory(t, d, simulation.Previous(0))
	cur := memory(t, d, simulation.Current(0))
	for y := 0; y < StreamlineHeight; y += 7 {
		for x := 0; x < StreamlineWidth; x += 13 {
			p, c := prev.At(x, y), cur.At(x, y)
			if x >= StreamlineWidth/2 {
				assert.Equal(t, float32(-1), c[3], "texel %d,%d is throttled", x, y)
				continue
			}
			if p[3] <= 0 {
				continue
			}
			assert.InDelta(t, p[3]-dt/cfg.Life, c[3], 1e-5)
			step := c.Vec3().Sub(p.Vec3()).Len()
			assert.GreaterOrEqual(t, step, cfg.MinSpeed*dt-1e-3)
			assert.LessOrEqual(t, step, cfg.MaxSpeed*dt+1e-3)
		}
	}
}

func TestTunnelConstructsInSoftware(t *testing.T) {
	rig := newSoftwareRig(t)
	tn := NewTunnel(DefaultConfig().Tunnel)
	d := rig.attach(tn)

	rig.frame(t, d, 0.1)
	require.Equal(t, simulation.StateReady, d.State())
	assert.Equal(t, 3, rig.backend.Dispatches())
	assert.Len(t, rig.backend.Draws(), 2)

	position := memory(t, d, simulation.Current(0))
	w, h := 16, 11
	for y := range h {
		for x := range w {
			p := position.At(x, y)
			assert.InDelta(t, 5, p.Vec2().Len(), 1e-4)
			assert.InDelta(t, float32(y-5)*2, p[2], 1e-4)
		}
	}

	for _, ch := range []int{1, 2} {
		normals := memory(t, d, simulation.Current(ch))
		for y := range h - 1 {
			for x := range w {
				n := normals.At(x, y)
				assert.InDelta(t, 1, n.Vec3().Len(), 1e-4)
				assert.Less(t, n.Vec2().Dot(position.At(x, y).Vec2()), float32(0), "normal %d at %d,%d faces inward", ch, x, y)
			}
		}
	}

	tn.SetLineColor(mgl32.Vec4{1, 1, 1, 1})
	rig.frame(t, d, 0.1)
	draws := rig.backend.Draws()
	require.Len(t, draws, 3)
	assert.Equal(t, TunnelLineMaterial, draws[2].Material)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, draws[2].Params.Vec4(paramColor))
	assert.Equal(t, DefaultConfig().Tunnel.SurfaceColor, draws[0].Params.Vec4(paramColor))
}
