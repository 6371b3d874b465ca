package software_test

import (
	"testing"

	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer/software"
	"github.com/Carmen-Shannon/kvant-go/engine/shape"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drift is a one-channel effect: init writes each texel's index, update adds delta_time to x.
type drift struct {
	records []shape.Record
	count   int
}

func (d *drift) Name() string { return "drift" }

func (d *drift) Geometry() bulk_mesh.Geometry {
	return bulk_mesh.Replicas{Shapes: d.records, Population: d.count}
}

func (d *drift) Channels() []sim_buffer.ChannelSpec {
	return []sim_buffer.ChannelSpec{{Name: "position"}}
}

func (d *drift) InitPasses() []simulation.KernelPass {
	return []simulation.KernelPass{{ID: 0, Output: simulation.Current(0)}}
}

func (d *drift) UpdatePasses() []simulation.KernelPass {
	return []simulation.KernelPass{{ID: 1, Inputs: []simulation.BufferRef{simulation.Previous(0)}, Output: simulation.Current(0)}}
}

func (d *drift) KernelParameters() simulation.Parameters {
	return simulation.Parameters{"speed": float32(2)}
}

func (d *drift) DrawPasses() []simulation.DrawPass {
	return []simulation.DrawPass{{
		Material: "drift.surface",
		Textures: map[string]simulation.BufferRef{"position_tex": simulation.Current(0)},
	}}
}

func (d *drift) MaterialParameters() simulation.Parameters {
	return simulation.Parameters{"color": mgl32.Vec4{1, 0, 0, 1}}
}

func (d *drift) Transform() mgl32.Mat4 { return mgl32.Ident4() }

func driftKernels() map[string]software.KernelFunc {
	return map[string]software.KernelFunc{
		pipeline.KernelKey("drift", 0): func(inv software.Invocation) error {
			w, _ := inv.Size()
			inv.ForEach(func(x, y int) mgl32.Vec4 {
				return mgl32.Vec4{0, float32(y*w + x), 0, 1}
			})
			return nil
		},
		pipeline.KernelKey("drift", 1): func(inv software.Invocation) error {
			step := inv.Params.Float("speed") * inv.Params.Float(simulation.ParamDeltaTime)
			inv.ForEach(func(x, y int) mgl32.Vec4 {
				p := inv.Inputs[0].At(x, y)
				p[0] += step
				return p
			})
			return nil
		},
	}
}

func driftPrograms() []pipeline.Pipeline {
	return []pipeline.Pipeline{
		pipeline.NewKernel("drift", 0),
		pipeline.NewKernel("drift", 1, pipeline.WithParameters("speed", simulation.ParamDeltaTime)),
		pipeline.NewPipeline("drift.surface", pipeline.PipelineTypeRender,
			pipeline.WithParameters("color", simulation.ParamBufferOffset),
			pipeline.WithTextures("position_tex"),
		),
	}
}

func newRenderer(t *testing.T, backend *software.Backend, options ...renderer.RendererBuilderOption) renderer.Renderer {
	t.Helper()
	options = append([]renderer.RendererBuilderOption{
		renderer.WithBackend(backend),
		renderer.WithPrograms(driftPrograms()...),
	}, options...)
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, nil, options...)
	require.NoError(t, err)
	return r
}

func cube(t *testing.T) []shape.Record {
	t.Helper()
	rec, err := shape.Build(shape.Cube(1))
	require.NoError(t, err)
	return []shape.Record{rec}
}

func frame(t *testing.T, r renderer.Renderer, d simulation.Driver, dt float32) {
	t.Helper()
	require.NoError(t, r.BeginComputeFrame())
	require.NoError(t, r.BeginFrame())
	require.NoError(t, d.Tick(dt))
	r.EndComputeFrame()
	r.EndFrame()
	r.Present()
}

func TestDriverRunsThroughSoftwareBackend(t *testing.T) {
	backend := software.NewBackend(software.WithKernels(driftKernels()))
	r := newRenderer(t, backend)
	d := simulation.NewDriver(&drift{records: cube(t), count: 4},
		simulation.WithHost(r), simulation.WithKernel(r), simulation.WithRenderer(r))

	frame(t, r, d, 0.5)
	frame(t, r, d, 0.5)

	cur := d.Resources().Buffers.Channel(0).Current.(*sim_buffer.MemoryBuffer)
	assert.InDelta(t, 2.0, cur.At(0, 0)[0], 1e-6)
	assert.Equal(t, float32(3), cur.At(3, 0)[1])
	assert.Equal(t, 3, backend.Dispatches())
	assert.Equal(t, 2, backend.Frames())

	draws := backend.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "drift.surface", draws[0].Material)
	require.Len(t, draws[0].Textures, 1)
	assert.Same(t, cur, draws[0].Textures[0])
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, draws[0].Params.Vec4("color"))
	assert.InDelta(t, 0.5/4, draws[0].Params.Float(simulation.ParamBufferOffset), 1e-6)

	stats := r.FrameStats()
	assert.Equal(t, 1, stats.Draws)
	assert.Equal(t, 1, stats.Dispatches)
	assert.Equal(t, 1, backend.UploadedMeshes())
}

func TestResetDropsUploadedMeshes(t *testing.T) {
	backend := software.NewBackend(software.WithKernels(driftKernels()))
	r := newRenderer(t, backend)
	effect := &drift{records: cube(t), count: 4}
	d := simulation.NewDriver(effect, simulation.WithHost(r), simulation.WithKernel(r), simulation.WithRenderer(r))

	frame(t, r, d, 0.1)
	first := d.Resources().Meshes[0]
	effect.count = 8
	d.NotifyConfigurationChanged()
	frame(t, r, d, 0.1)

	assert.True(t, first.Released())
	assert.Equal(t, 1, backend.UploadedMeshes())
	assert.Equal(t, 2, backend.Host().Live())

	d.Release()
	r.Release()
	assert.Zero(t, backend.Host().Live())
	assert.Zero(t, backend.UploadedMeshes())
}

func TestDrawsBehindTheCameraAreCulled(t *testing.T) {
	backend := software.NewBackend(software.WithKernels(driftKernels()))
	r := newRenderer(t, backend)
	d := simulation.NewDriver(&drift{records: cube(t), count: 4},
		simulation.WithHost(r), simulation.WithKernel(r), simulation.WithRenderer(r))

	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 1000}, mgl32.Vec3{0, 0, 2000}, mgl32.Vec3{0, 1, 0})
	r.SetViewProjection(proj.Mul4(view))
	frame(t, r, d, 0.1)

	assert.Empty(t, backend.Draws())
	assert.Equal(t, 1, r.FrameStats().Culled)
	assert.Zero(t, r.FrameStats().Draws)
}

func TestCullingCanBeDisabled(t *testing.T) {
	backend := software.NewBackend(software.WithKernels(driftKernels()))
	r := newRenderer(t, backend, renderer.WithFrustumCulling(false))
	d := simulation.NewDriver(&drift{records: cube(t), count: 4},
		simulation.WithHost(r), simulation.WithKernel(r), simulation.WithRenderer(r))

	r.SetViewProjection(mgl32.Translate3D(0, 0, 1e6))
	frame(t, r, d, 0.1)
	assert.Len(t, backend.Draws(), 1)
}

func TestUnknownProgramsAndMissingKernels(t *testing.T) {
	backend := software.NewBackend()
	_, err := renderer.NewRenderer(renderer.BackendTypeWGPU, nil,
		renderer.WithBackend(backend),
		renderer.WithPrograms(pipeline.NewKernel("drift", 0)),
	)
	require.ErrorIs(t, err, software.ErrNoKernel)

	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, nil, renderer.WithBackend(backend))
	require.NoError(t, err)
	err = r.Invoke(simulation.Invocation{Program: "drift", Pass: 0})
	assert.ErrorIs(t, err, renderer.ErrUnknownProgram)
	err = r.Draw(simulation.DrawCall{Material: "nope", Mesh: &bulk_mesh.CombinedMesh{}})
	assert.ErrorIs(t, err, renderer.ErrUnknownProgram)
}

func TestDrawOutsideFrameFails(t *testing.T) {
	backend := software.NewBackend(software.WithKernels(driftKernels()))
	r := newRenderer(t, backend)
	d := simulation.NewDriver(&drift{records: cube(t), count: 4},
		simulation.WithHost(r), simulation.WithKernel(r), simulation.WithRenderer(r))

	err := d.Tick(0.1)
	require.Error(t, err)
	assert.Equal(t, simulation.StateReady, d.State())
}

func TestMissingTextureBindingFailsDraw(t *testing.T) {
	backend := software.NewBackend(software.WithKernels(driftKernels()))
	r := newRenderer(t, backend, renderer.WithFrustumCulling(false))
	require.NoError(t, r.BeginFrame())
	defer r.EndFrame()

	err := r.Draw(simulation.DrawCall{
		Material:  "drift.surface",
		Mesh:      &bulk_mesh.CombinedMesh{},
		Transform: mgl32.Ident4(),
	})
	assert.ErrorContains(t, err, "position_tex")
}

func TestNewRendererRequiresWindowOrBackend(t *testing.T) {
	_, err := renderer.NewRenderer(renderer.BackendTypeWGPU, nil)
	assert.Error(t, err)
}
