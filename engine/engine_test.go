package engine_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Carmen-Shannon/kvant-go/engine"
	"github.com/Carmen-Shannon/kvant-go/engine/camera"
	"github.com/Carmen-Shannon/kvant-go/engine/effect"
	"github.com/Carmen-Shannon/kvant-go/engine/profiler"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer/software"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type headless struct {
	backend  *software.Backend
	renderer renderer.Renderer
}

func newHeadless(t *testing.T) *headless {
	t.Helper()
	backend := software.NewBackend(software.WithKernels(effect.SoftwareKernels()))
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, nil,
		renderer.WithBackend(backend),
		renderer.WithPrograms(effect.Programs()...),
		renderer.WithLogger(quiet),
	)
	require.NoError(t, err)
	return &headless{backend: backend, renderer: r}
}

func (h *headless) attach(e effect.Configurable) simulation.Driver {
	return effect.Attach(e,
		simulation.WithHost(h.renderer),
		simulation.WithKernel(h.renderer),
		simulation.WithRenderer(h.renderer),
		simulation.WithLogger(quiet),
	)
}

type failingDriver struct {
	simulation.Driver
	err error
}

func (f *failingDriver) Tick(float32) error { return f.err }

func TestNewEngineRequiresWindowOrRenderer(t *testing.T) {
	_, err := engine.NewEngine(engine.WithLogger(quiet))
	assert.Error(t, err)
}

func TestRunFramesTicksEveryDriver(t *testing.T) {
	h := newHeadless(t)
	tunnel := effect.NewTunnel(effect.DefaultConfig().Tunnel)
	lines := effect.NewStreamline(effect.DefaultConfig().Streamline)
	cam := camera.NewCamera(camera.WithController(camera.NewCameraController()))

	e, err := engine.NewEngine(
		engine.WithRenderer(h.renderer),
		engine.WithCamera(cam),
		engine.WithDrivers(h.attach(tunnel), h.attach(lines)),
		engine.WithLogger(quiet),
	)
	require.NoError(t, err)
	defer e.Release()

	var ticks int
	var elapsed float32
	e.SetTickCallback(func(dt float32) {
		ticks++
		elapsed += dt
		tunnel.SetOffset(elapsed)
	})

	require.NoError(t, e.RunFrames(3, 0.25))
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 3, h.backend.Frames())
	assert.Len(t, h.backend.Draws(), 3, "two tunnel surface draws and one streamline draw")
	for _, d := range e.Drivers() {
		assert.Equal(t, simulation.StateReady, d.State())
	}
}

func TestFrameJoinsDriverErrors(t *testing.T) {
	h := newHeadless(t)
	errA, errB := errors.New("a failed"), errors.New("b failed")
	e, err := engine.NewEngine(
		engine.WithRenderer(h.renderer),
		engine.WithDrivers(&failingDriver{err: errA}, &failingDriver{err: errB}),
		engine.WithLogger(quiet),
	)
	require.NoError(t, err)

	err = e.Frame(0.1)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 1, h.backend.Frames(), "the frame is still presented")

	err = e.RunFrames(2, 0.1)
	assert.ErrorContains(t, err, "frame 0")
}

func TestRemoveDriver(t *testing.T) {
	h := newHeadless(t)
	a := h.attach(effect.NewTunnel(effect.DefaultConfig().Tunnel))
	b := h.attach(effect.NewStreamline(effect.DefaultConfig().Streamline))
	e, err := engine.NewEngine(engine.WithRenderer(h.renderer), engine.WithLogger(quiet))
	require.NoError(t, err)

	e.AddDriver(a)
	e.AddDriver(b)
	e.RemoveDriver(a)
	assert.Equal(t, []simulation.Driver{b}, e.Drivers())

	require.NoError(t, e.Frame(0.1))
	assert.Equal(t, simulation.StateUninitialized, a.State())
	assert.Equal(t, simulation.StateReady, b.State())
}

func TestProfilerIsFedWhenEnabled(t *testing.T) {
	h := newHeadless(t)
	clock := time.Unix(0, 0)
	p := profiler.NewProfiler(profiler.WithLogger(quiet), profiler.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	e, err := engine.NewEngine(
		engine.WithRenderer(h.renderer),
		engine.WithDrivers(h.attach(effect.NewTunnel(effect.DefaultConfig().Tunnel))),
		engine.WithProfiler(p),
		engine.WithLogger(quiet),
	)
	require.NoError(t, err)

	require.NoError(t, e.RunFrames(1, 0.1))
	assert.Empty(t, p.Samples())

	e.EnableProfiler()
	require.NoError(t, e.RunFrames(2, 0.1))
	samples := p.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, 2, samples[1].Draws)
	assert.Equal(t, 3, samples[1].Dispatches)
}
