package simulation

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/shape"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEffect struct {
	geometry bulk_mesh.Geometry
	channels []sim_buffer.ChannelSpec
	init     []KernelPass
	update   []KernelPass
	draws    []DrawPass
	color    mgl32.Vec4
}

func (e *fakeEffect) Name() string { return "fake" }
func (e *fakeEffect) Geometry() bulk_mesh.Geometry { return e.geometry }
func (e *fakeEffect) Channels() []sim_buffer.ChannelSpec { return e.channels }
func (e *fakeEffect) InitPasses() []KernelPass { return e.init }
func (e *fakeEffect) UpdatePasses() []KernelPass { return e.update }
func (e *fakeEffect) DrawPasses() []DrawPass { return e.draws }
func (e *fakeEffect) Transform() mgl32.Mat4 { return mgl32.Ident4() }

func (e *fakeEffect) KernelParameters() Parameters {
	return Parameters{"speed": float32(2)}
}

func (e *fakeEffect) MaterialParameters() Parameters {
	return Parameters{"color": e.color}
}

type recordingKernel struct {
	mu    sync.Mutex
	calls []Invocation
	fail  map[int]error
}

func (k *recordingKernel) Invoke(inv Invocation) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = append(k.calls, inv)
	return k.fail[inv.Pass]
}

func (k *recordingKernel) reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = nil
}

type recordingRenderer struct {
	calls    []DrawCall
	released []*bulk_mesh.CombinedMesh
}

func (r *recordingRenderer) Draw(call DrawCall) error {
	r.calls = append(r.calls, call)
	return nil
}

func (r *recordingRenderer) ReleaseMesh(m *bulk_mesh.CombinedMesh) {
	r.released = append(r.released, m)
}

func records(t *testing.T, sources ...shape.Source) []shape.Record {
	t.Helper()
	out, err := shape.BuildAll(sources)
	require.NoError(t, err)
	return out
}

func sprayLikeEffect(t *testing.T, population int) *fakeEffect {
	return &fakeEffect{
		geometry: bulk_mesh.Replicas{
			Shapes:     records(t, shape.Tetrahedron(1), shape.Cube(1)),
			Population: population,
		},
		channels: []sim_buffer.ChannelSpec{{Name: "position"}, {Name: "rotation"}},
		init: []KernelPass{
			{ID: 0, Output: Current(0)},
			{ID: 1, Output: Current(1)},
		},
		update: []KernelPass{
			{ID: 2, Inputs: []BufferRef{Previous(0)}, Output: Current(0)},
			{ID: 3, Inputs: []BufferRef{Previous(1)}, Output: Current(1)},
		},
		draws: []DrawPass{{
			Material: "surface",
			Textures: map[string]BufferRef{"position_tex": Current(0)},
		}},
	}
}

type harness struct {
	host     *sim_buffer.MemoryHost
	kernel   *recordingKernel
	renderer *recordingRenderer
	driver   Driver
}

func newHarness(effect Effect, options ...DriverBuilderOption) *harness {
	h := &harness{
		host:     sim_buffer.NewMemoryHost(),
		kernel:   &recordingKernel{},
		renderer: &recordingRenderer{},
	}
	opts := append([]DriverBuilderOption{
		WithHost(h.host),
		WithKernel(h.kernel),
		WithRenderer(h.renderer),
	}, options...)
	h.driver = NewDriver(effect, opts...)
	return h
}

func TestFirstTickResetsThenSimulatesAndDraws(t *testing.T) {
	h := newHarness(sprayLikeEffect(t, 10))
	assert.Equal(t, StateUninitialized, h.driver.State())

	require.NoError(t, h.driver.Tick(0.016))
	assert.Equal(t, StateReady, h.driver.State())

	res := h.driver.Resources()
	require.NotNil(t, res)
	assert.Equal(t, 10, res.Layout.TotalReplicas)
	assert.Equal(t, 4, h.host.Live())

	require.Len(t, h.kernel.calls, 4)
	assert.Equal(t, []int{0, 1, 2, 3}, []int{
		h.kernel.calls[0].Pass, h.kernel.calls[1].Pass, h.kernel.calls[2].Pass, h.kernel.calls[3].Pass,
	})
	for _, inv := range h.kernel.calls {
		assert.Equal(t, "fake", inv.Program)
		assert.Contains(t, inv.Parameters, ParamDeltaTime)
		assert.Contains(t, inv.Parameters, ParamTime)
		assert.Equal(t, float32(2), inv.Parameters["speed"])
	}
	assert.Equal(t, float32(0), h.kernel.calls[0].Parameters[ParamDeltaTime])
	assert.Equal(t, float32(0.016), h.kernel.calls[2].Parameters[ParamDeltaTime])

	// The init pass wrote the buffer that the first tick's swap turned into Previous.
	assert.Same(t, h.kernel.calls[0].Output, h.kernel.calls[2].Inputs[0])
	assert.NotSame(t, h.kernel.calls[2].Output, h.kernel.calls[2].Inputs[0])

	require.Len(t, h.renderer.calls, 1)
	call := h.renderer.calls[0]
	assert.Equal(t, "surface", call.Material)
	assert.Contains(t, call.Overrides, ParamBufferOffset)
	assert.Contains(t, call.Overrides, ParamSegmentBase)
	assert.Contains(t, call.Overrides, "color")
	assert.Same(t, h.kernel.calls[2].Output, call.Overrides["position_tex"])

	stats := h.driver.Stats()
	assert.Equal(t, 1, stats.Resets)
	assert.Equal(t, 1, stats.Ticks)
	assert.Equal(t, 1, stats.Draws)
	assert.Equal(t, 2, stats.Invocations)
}

func TestBufferRolesAlternateEveryTick(t *testing.T) {
	h := newHarness(sprayLikeEffect(t, 4))
	require.NoError(t, h.driver.Tick(0.1))
	h.kernel.reset()

	var outputs []sim_buffer.Buffer
	for range 4 {
		require.NoError(t, h.driver.Tick(0.1))
		outputs = append(outputs, h.kernel.calls[len(h.kernel.calls)-2].Output)
	}
	assert.Same(t, outputs[0], outputs[2])
	assert.Same(t, outputs[1], outputs[3])
	assert.NotSame(t, outputs[0], outputs[1])

	last := h.kernel.calls[len(h.kernel.calls)-2]
	assert.InDelta(t, 0.5, last.Parameters[ParamTime], 1e-5)
	assert.Equal(t, 4, h.host.Live(), "steady-state ticks reuse allocations")
}

func TestNotificationsCoalesceIntoOneReset(t *testing.T) {
	h := newHarness(sprayLikeEffect(t, 10))
	require.NoError(t, h.driver.Tick(0.016))

	for range 5 {
		h.driver.NotifyConfigurationChanged()
	}
	assert.Equal(t, StateNeedsReset, h.driver.State())

	require.NoError(t, h.driver.Tick(0.016))
	assert.Equal(t, 2, h.driver.Stats().Resets)
	assert.Equal(t, StateReady, h.driver.State())

	require.NoError(t, h.driver.Tick(0.016))
	assert.Equal(t, 2, h.driver.Stats().Resets)
}

func TestResetReleasesPreviousResources(t *testing.T) {
	effect := sprayLikeEffect(t, 10)
	h := newHarness(effect)
	require.NoError(t, h.driver.Tick(0.016))
	old := h.driver.Resources()
	oldMeshes := append([]*bulk_mesh.CombinedMesh(nil), old.Meshes...)

	h.driver.NotifyConfigurationChanged()
	require.NoError(t, h.driver.Tick(0.016))

	assert.Equal(t, 4, h.host.Live())
	for _, m := range oldMeshes {
		assert.True(t, m.Released())
	}
	assert.ElementsMatch(t, oldMeshes, h.renderer.released)
	assert.NotSame(t, old, h.driver.Resources())
}

func TestEmptyShapeSetDrawsNothing(t *testing.T) {
	effect := sprayLikeEffect(t, 10)
	h := newHarness(effect)
	require.NoError(t, h.driver.Tick(0.016))
	require.NotEmpty(t, h.renderer.calls)

	effect.geometry = bulk_mesh.Replicas{Shapes: nil, Population: 10}
	h.driver.NotifyConfigurationChanged()
	h.renderer.calls = nil
	h.kernel.reset()

	require.NoError(t, h.driver.Tick(0.016))
	assert.Equal(t, StateReady, h.driver.State())
	assert.Empty(t, h.renderer.calls)
	assert.Empty(t, h.kernel.calls)
	assert.Zero(t, h.host.Live())
	assert.True(t, h.driver.Resources().IsEmpty())
	assert.Zero(t, h.driver.Stats().Draws)
}

func TestOversizedBufferLeavesStaleOutputFrozen(t *testing.T) {
	effect := sprayLikeEffect(t, 10)
	h := newHarness(effect)
	h.host = sim_buffer.NewMemoryHost(sim_buffer.WithMaxDimension(64))
	h.driver = NewDriver(effect, WithHost(h.host), WithKernel(h.kernel), WithRenderer(h.renderer))
	host := h.host

	require.NoError(t, h.driver.Tick(0.016))
	stale := h.driver.Resources()

	effect.geometry = bulk_mesh.Replicas{Shapes: records(t, shape.Quad(1)), Population: 1000}
	h.driver.NotifyConfigurationChanged()
	h.kernel.reset()
	h.renderer.calls = nil
	allocations := host.Allocations()

	err := h.driver.Tick(0.016)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResetFailed)
	assert.True(t, common.IsConfigurationError(err))
	assert.ErrorIs(t, err, sim_buffer.ErrDimensionLimit)
	assert.Equal(t, allocations, host.Allocations(), "limits are checked before allocating")

	assert.Equal(t, StateNeedsReset, h.driver.State())
	assert.Same(t, stale, h.driver.Resources())
	assert.Empty(t, h.kernel.calls, "stale resources are not simulated")
	assert.NotEmpty(t, h.renderer.calls, "stale resources are still drawn")

	// No automatic retry.
	require.NoError(t, h.driver.Tick(0.016))
	assert.Equal(t, 1, h.driver.Stats().FailedResets)

	effect.geometry = bulk_mesh.Replicas{Shapes: records(t, shape.Quad(1)), Population: 20}
	h.driver.NotifyConfigurationChanged()
	require.NoError(t, h.driver.Tick(0.016))
	assert.Equal(t, StateReady, h.driver.State())
	assert.Equal(t, 4, host.Live())
}

func TestAllocationFailureReleasesPartialResources(t *testing.T) {
	effect := sprayLikeEffect(t, 10)
	host := sim_buffer.NewMemoryHost(sim_buffer.WithBudget(3))
	kernel := &recordingKernel{}
	renderer := &recordingRenderer{}
	d := NewDriver(effect, WithHost(host), WithKernel(kernel), WithRenderer(renderer))

	err := d.Tick(0.016)
	require.Error(t, err)
	assert.True(t, common.IsResourceError(err))
	assert.ErrorIs(t, err, sim_buffer.ErrBudgetExhausted)
	assert.Zero(t, host.Live())
	assert.Nil(t, d.Resources())
	assert.Equal(t, StateNeedsReset, d.State())
	assert.NotEmpty(t, renderer.released, "built meshes are released")
	for _, m := range renderer.released {
		assert.True(t, m.Released())
	}
}

func TestInitPassFailureReleasesEverything(t *testing.T) {
	effect := sprayLikeEffect(t, 10)
	h := newHarness(effect)
	h.kernel.fail = map[int]error{1: errors.New("device lost")}

	err := h.driver.Tick(0.016)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResetFailed)
	assert.Zero(t, h.host.Live())
	assert.Nil(t, h.driver.Resources())
}

func TestShapeTooLargeFailsReset(t *testing.T) {
	effect := sprayLikeEffect(t, 10)
	h := newHarness(effect, WithBuilder(bulk_mesh.NewBuilder(bulk_mesh.WithVertexLimit(8))))

	err := h.driver.ResetResources()
	require.Error(t, err)
	assert.ErrorIs(t, err, bulk_mesh.ErrShapeTooLarge)
	assert.Zero(t, h.host.Allocations())
}

func TestDrawsNestSegmentsOverRows(t *testing.T) {
	effect := sprayLikeEffect(t, 0)
	effect.geometry = bulk_mesh.Replicas{
		Shapes:     records(t, shape.Cube(1)),
		Population: 30,
		RowWidth:   10,
		Mode:       bulk_mesh.ModeRowInstanced,
	}
	h := newHarness(effect, WithBuilder(bulk_mesh.NewBuilder(bulk_mesh.WithVertexLimit(24*4))))
	require.NoError(t, h.driver.Tick(0.016))

	res := h.driver.Resources()
	require.Equal(t, 3, res.Layout.Segments)
	require.Equal(t, 3, res.Layout.Rows)
	require.Len(t, h.renderer.calls, 9)

	i := 0
	for seg := range 3 {
		for row := range 3 {
			call := h.renderer.calls[i]
			assert.Equal(t, seg, call.Segment)
			assert.Equal(t, row, call.Row)
			off := call.Overrides[ParamBufferOffset].(mgl32.Vec2)
			base := call.Overrides[ParamSegmentBase].(float32)
			assert.InDelta(t, off[1]+base, call.EffectiveV, 1e-6)
			assert.Equal(t, res.Layout.RowOffset(row), off)
			i++
		}
	}
}

func TestResetIsIdempotent(t *testing.T) {
	effect := sprayLikeEffect(t, 50)
	h := newHarness(effect)
	require.NoError(t, h.driver.ResetResources())
	first := h.driver.Resources()
	layout := first.Layout
	uvs := make([][]mgl32.Vec2, len(first.Meshes))
	for i, m := range first.Meshes {
		uvs[i] = append([]mgl32.Vec2(nil), m.UVs...)
	}

	require.NoError(t, h.driver.ResetResources())
	second := h.driver.Resources()
	assert.Equal(t, layout, second.Layout)
	require.Len(t, second.Meshes, len(uvs))
	for i, m := range second.Meshes {
		assert.Equal(t, uvs[i], m.UVs)
	}
	assert.Equal(t, 4, h.host.Live())
}

func TestSingleChannelIsRewrittenInPlace(t *testing.T) {
	effect := &fakeEffect{
		geometry: bulk_mesh.Lattice{Columns: 4, Rows: 4},
		channels: []sim_buffer.ChannelSpec{{Name: "position", Single: true}, {Name: "normal", Single: true}},
		update: []KernelPass{
			{ID: 0, Output: Current(0)},
			{ID: 1, Inputs: []BufferRef{Current(0)}, Output: Current(1)},
		},
		draws: []DrawPass{
			{Material: "surface", Submeshes: []int{0, 1}},
			{Material: "line", Submeshes: []int{2, 7}},
		},
	}
	h := newHarness(effect)
	require.NoError(t, h.driver.Tick(0.016))
	require.NoError(t, h.driver.Tick(0.016))

	require.Len(t, h.kernel.calls, 4)
	assert.Same(t, h.kernel.calls[0].Output, h.kernel.calls[2].Output)
	assert.Same(t, h.kernel.calls[0].Output, h.kernel.calls[1].Inputs[0])
	assert.Equal(t, 2, h.host.Live())
	// Two surface submeshes plus one line submesh per tick; the out-of-range submesh is skipped.
	assert.Len(t, h.renderer.calls, 6)
}

func TestMissingCollaboratorsFailReset(t *testing.T) {
	d := NewDriver(sprayLikeEffect(t, 1))
	err := d.ResetResources()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResetFailed)
}

func TestReleaseReturnsToUninitialized(t *testing.T) {
	h := newHarness(sprayLikeEffect(t, 10))
	require.NoError(t, h.driver.Tick(0.016))
	h.driver.Release()
	assert.Equal(t, StateUninitialized, h.driver.State())
	assert.Zero(t, h.host.Live())
	assert.Nil(t, h.driver.Resources())
}

func TestConcurrentNotifications(t *testing.T) {
	h := newHarness(sprayLikeEffect(t, 10))
	require.NoError(t, h.driver.Tick(0.016))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.driver.NotifyConfigurationChanged()
		}()
	}
	wg.Wait()

	require.NoError(t, h.driver.Tick(0.016))
	assert.Equal(t, 2, h.driver.Stats().Resets)
	assert.Equal(t, StateReady, h.driver.State())
}
