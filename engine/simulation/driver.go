// Package simulation drives double-buffered GPU simulations. A driver lazily rebuilds its meshes and
// buffers when its effect's configuration changes, then every tick swaps the buffer roles, runs the
// effect's kernel passes, and draws every mesh segment once per buffer row.
package simulation

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
)

// ErrResetFailed wraps every error returned by a failed reset.
var ErrResetFailed = errors.New("simulation: reset failed")

// Driver is the per-effect simulation state machine.
//
// A driver is ticked from a single goroutine. NotifyConfigurationChanged may be called from any goroutine.
type Driver interface {
	// State returns the current lifecycle state.
	//
	// Returns:
	//   - State: the driver state
	State() State

	// NotifyConfigurationChanged marks the driver for reset at the start of the next tick. Repeated calls
	// before that tick coalesce into one reset.
	NotifyConfigurationChanged()

	// ResetResources rebuilds meshes and buffers from the effect's current configuration and runs the
	// initialization passes. On success the previous resources are released and the driver is Ready.
	// On failure nothing new is retained, the previous resources stay in place, and the driver stays in
	// NeedsReset without retrying until NotifyConfigurationChanged is called again.
	//
	// Returns:
	//   - error: an error wrapping ErrResetFailed and the cause
	ResetResources() error

	// Tick advances the simulation by one step: lazy reset, swap, update passes, draws. While a failed
	// reset is pending, the stale resources are drawn without being simulated.
	//
	// Parameters:
	//   - deltaTime: the time step in seconds
	//
	// Returns:
	//   - error: the reset error of this tick joined with any kernel or draw errors
	Tick(deltaTime float32) error

	// Resources returns the resources of the last successful reset.
	//
	// Returns:
	//   - *Resources: the current resources, nil before the first successful reset
	Resources() *Resources

	// Stats returns the driver counters.
	//
	// Returns:
	//   - Stats: a snapshot of the counters
	Stats() Stats

	// Release frees all resources and returns the driver to Uninitialized.
	Release()
}

// driver is the implementation of the Driver interface.
type driver struct {
	mu *sync.Mutex

	effect   Effect
	builder  bulk_mesh.Builder
	host     sim_buffer.Host
	kernel   Kernel
	renderer Renderer
	logger   *slog.Logger

	state State
	// generation increments on every configuration change so a reset racing a notification does not
	// mark the driver Ready for a configuration it never saw.
	generation uint64
	// blocked is set by a failed reset and cleared by the next notification.
	blocked bool

	resources *Resources
	time      float32
	stats     Stats
}

var _ Driver = &driver{}

// NewDriver creates a Driver for the given effect. The host, kernel and renderer are supplied through
// options; a reset fails until all three are set.
//
// Parameters:
//   - effect: the effect to simulate
//   - options: functional options to configure the driver
//
// Returns:
//   - Driver: the driver, in StateUninitialized
func NewDriver(effect Effect, options ...DriverBuilderOption) Driver {
	d := &driver{
		mu:     &sync.Mutex{},
		effect: effect,
		logger: slog.Default(),
		state:  StateUninitialized,
	}
	for _, opt := range options {
		opt(d)
	}
	if d.builder == nil {
		d.builder = bulk_mesh.NewBuilder(bulk_mesh.WithLogger(d.logger))
	}
	return d
}

func (d *driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *driver) NotifyConfigurationChanged() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.blocked = false
	if d.state == StateReady {
		d.state = StateNeedsReset
	}
}

func (d *driver) Resources() *Resources {
	return d.resources
}

func (d *driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *driver) ResetResources() error {
	d.mu.Lock()
	gen := d.generation
	d.mu.Unlock()

	next, err := d.acquire()
	if err != nil {
		d.mu.Lock()
		d.blocked = true
		d.state = StateNeedsReset
		d.stats.FailedResets++
		d.mu.Unlock()

		d.logger.Warn("simulation reset failed", "effect", d.effect.Name(), "error", err)
		return fmt.Errorf("%w: %s: %w", ErrResetFailed, d.effect.Name(), err)
	}

	prev := d.resources
	d.resources = next
	d.time = 0
	d.releaseResources(prev)

	d.mu.Lock()
	if gen == d.generation {
		d.state = StateReady
	} else {
		d.state = StateNeedsReset
	}
	d.blocked = false
	d.stats.Resets++
	d.mu.Unlock()

	if next.IsEmpty() {
		d.logger.Debug("simulation has nothing to draw", "effect", d.effect.Name())
	} else {
		d.logger.Info("simulation reset",
			"effect", d.effect.Name(),
			"width", next.Layout.Width,
			"height", next.Layout.Height,
			"segments", next.Layout.Segments,
			"rows", next.Layout.Rows,
		)
	}
	return nil
}

// acquire builds a complete new resource set. Limits are checked before anything is allocated, and
// anything allocated is released again if a later step fails.
func (d *driver) acquire() (*Resources, error) {
	if d.host == nil || d.kernel == nil || d.renderer == nil {
		return nil, errors.New("driver requires a host, kernel and renderer")
	}

	geometry := d.effect.Geometry()
	if geometry == nil {
		return &Resources{Buffers: &sim_buffer.Set{}}, nil
	}
	layout, err := geometry.Layout(d.builder)
	if err != nil {
		return nil, err
	}
	if layout.IsEmpty() {
		return &Resources{Buffers: &sim_buffer.Set{}}, nil
	}
	if err := sim_buffer.CheckDimensions(d.host, layout.Width, layout.Height); err != nil {
		return nil, err
	}

	built, err := geometry.Build(d.builder, layout)
	if err != nil {
		return nil, err
	}
	res := &Resources{Layout: layout, Meshes: built.Meshes}

	res.Buffers, err = sim_buffer.AllocateChannels(d.host, layout.Width, layout.Height, d.effect.Channels())
	if err != nil {
		d.releaseResources(res)
		return nil, err
	}

	params := d.kernelParameters(0, 0)
	for _, pass := range d.effect.InitPasses() {
		if err := d.invoke(res, pass, params); err != nil {
			d.releaseResources(res)
			return nil, err
		}
	}
	return res, nil
}

func (d *driver) Tick(deltaTime float32) error {
	d.mu.Lock()
	needsReset := d.state != StateReady && !d.blocked
	d.stats.Ticks++
	d.mu.Unlock()

	var errs []error
	if needsReset {
		if err := d.ResetResources(); err != nil {
			errs = append(errs, err)
		}
	}

	res := d.resources
	invocations, draws := 0, 0
	if !res.IsEmpty() {
		if d.State() == StateReady {
			d.time += deltaTime
			res.Buffers.SwapAll()

			params := d.kernelParameters(deltaTime, d.time)
			for _, pass := range d.effect.UpdatePasses() {
				invocations++
				if err := d.invoke(res, pass, params); err != nil {
					errs = append(errs, err)
				}
			}
		}

		n, err := d.draw(res)
		draws = n
		errs = append(errs, err)
	}

	d.mu.Lock()
	d.stats.Invocations = invocations
	d.stats.Draws = draws
	d.mu.Unlock()

	return errors.Join(errs...)
}

// draw issues every draw pass for every mesh segment and buffer row. Segments are the outer loop, rows
// the inner one.
func (d *driver) draw(res *Resources) (int, error) {
	passes := d.effect.DrawPasses()
	material := d.effect.MaterialParameters()
	transform := d.effect.Transform()

	var errs []error
	count := 0
	for seg, mesh := range res.Meshes {
		if mesh == nil || mesh.Released() {
			continue
		}
		for row := 0; row < res.Layout.Rows; row++ {
			offset := res.Layout.RowOffset(row)
			for _, pass := range passes {
				overrides := maps.Clone(material)
				if overrides == nil {
					overrides = Parameters{}
				}
				maps.Copy(overrides, pass.Parameters)
				for name, ref := range pass.Textures {
					overrides[name] = res.Buffer(ref)
				}
				overrides[ParamBufferOffset] = offset
				overrides[ParamSegmentBase] = mesh.SegmentBase

				for _, sub := range pass.submeshes() {
					if sub < 0 || sub >= len(mesh.Submeshes) {
						continue
					}
					count++
					err := d.renderer.Draw(DrawCall{
						Mesh:       mesh,
						Transform:  transform,
						Material:   pass.Material,
						Submesh:    sub,
						Overrides:  overrides,
						Segment:    seg,
						Row:        row,
						EffectiveV: offset[1] + mesh.SegmentBase,
					})
					if err != nil {
						errs = append(errs, fmt.Errorf("draw %s segment %d row %d: %w", pass.Material, seg, row, err))
					}
				}
			}
		}
	}
	return count, errors.Join(errs...)
}

func (d *driver) invoke(res *Resources, pass KernelPass, params Parameters) error {
	inputs := make([]sim_buffer.Buffer, len(pass.Inputs))
	for i, ref := range pass.Inputs {
		if inputs[i] = res.Buffer(ref); inputs[i] == nil {
			return fmt.Errorf("pass %d: input %d references missing buffer %+v", pass.ID, i, ref)
		}
	}
	output := res.Buffer(pass.Output)
	if output == nil {
		return fmt.Errorf("pass %d: output references missing buffer %+v", pass.ID, pass.Output)
	}

	err := d.kernel.Invoke(Invocation{
		Program:    d.effect.Name(),
		Pass:       pass.ID,
		Inputs:     inputs,
		Output:     output,
		Parameters: params,
	})
	if err != nil {
		return fmt.Errorf("pass %d: %w", pass.ID, err)
	}
	return nil
}

func (d *driver) kernelParameters(deltaTime, time float32) Parameters {
	params := maps.Clone(d.effect.KernelParameters())
	if params == nil {
		params = Parameters{}
	}
	params[ParamDeltaTime] = deltaTime
	params[ParamTime] = time
	return params
}

// releaseResources frees a resource set: renderer uploads first, then mesh arrays, then buffers.
func (d *driver) releaseResources(res *Resources) {
	if res == nil {
		return
	}
	if releaser, ok := d.renderer.(MeshReleaser); ok {
		for _, m := range res.Meshes {
			if m != nil && !m.Released() {
				releaser.ReleaseMesh(m)
			}
		}
	}
	d.builder.ReleaseMeshes(res.Meshes...)
	res.Buffers.Release()
	res.Meshes = nil
}

func (d *driver) Release() {
	d.releaseResources(d.resources)
	d.resources = nil

	d.mu.Lock()
	d.state = StateUninitialized
	d.blocked = false
	d.mu.Unlock()
}
