package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/kvant-go/engine/camera"
	"github.com/Carmen-Shannon/kvant-go/engine/profiler"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/Carmen-Shannon/kvant-go/engine/window"
)

// engine implements the Engine interface.
// Coordinates the tick, render, and window threads.
type engine struct {
	mu     *sync.Mutex
	logger *slog.Logger

	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window          window.Window
	renderer        renderer.Renderer
	rendererOptions []renderer.RendererBuilderOption
	camera          camera.Camera
	drivers         []simulation.Driver

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine owns the window, the renderer, the camera and the simulation drivers, and runs the frame
// lifecycle for all of them: begin compute frame, begin render frame, tick every driver, end compute
// frame, end render frame, present.
type Engine interface {
	// Window returns the window, or nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer every driver ticks against.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Camera returns the camera whose view-projection is applied each frame, or nil.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Profiler returns the profiler fed with the renderer's frame counters.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// AddDriver registers a driver. Drivers tick in registration order.
	//
	// Parameters:
	//   - d: the driver, bound to this engine's renderer
	AddDriver(d simulation.Driver)

	// RemoveDriver unregisters a driver without releasing it.
	//
	// Parameters:
	//   - d: the driver to remove
	RemoveDriver(d simulation.Driver)

	// Drivers returns a copy of the registered drivers.
	//
	// Returns:
	//   - []simulation.Driver: the drivers in tick order
	Drivers() []simulation.Driver

	EnableProfiler()
	DisableProfiler()

	// SetTickRate sets the rate of the tick callback in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, typically to animate effect
	// parameters or scroll a tunnel.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function receiving the frame's delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frame runs one frame of the lifecycle for every driver.
	//
	// Parameters:
	//   - deltaTime: the simulated time step in seconds
	//
	// Returns:
	//   - error: frame setup errors, or every driver's tick error joined
	Frame(deltaTime float32) error

	// RunFrames runs a fixed number of frames with a fixed time step, calling the tick callback before
	// each. Used for headless runs.
	//
	// Parameters:
	//   - n: the number of frames
	//   - deltaTime: the time step in seconds
	//
	// Returns:
	//   - error: the first failing frame's error
	RunFrames(n int, deltaTime float32) error

	// Run starts the tick and render loops and blocks until the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()

	// Release releases every driver, the renderer and the window.
	Release()
}

// NewEngine creates an Engine. Without WithRenderer, a wgpu renderer is created for the window.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: error if neither a window nor a renderer is given, or the renderer fails to start
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		mu:              &sync.Mutex{},
		logger:          slog.Default(),
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}

	if e.renderer == nil {
		if e.window == nil {
			return nil, errors.New("engine: a window or a renderer is required")
		}
		r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, e.window,
			append([]renderer.RendererBuilderOption{renderer.WithLogger(e.logger)}, e.rendererOptions...)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create renderer: %w", err)
		}
		e.renderer = r
	}

	if e.window != nil {
		if e.camera != nil && e.window.Height() > 0 {
			e.camera.SetAspect(float32(e.window.Width()) / float32(e.window.Height()))
		}
		e.window.SetResizeCallback(func(width, height int) {
			e.renderer.Resize(width, height)
			if e.camera != nil && height > 0 {
				e.camera.SetAspect(float32(width) / float32(height))
			}
		})
	}
	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) AddDriver(d simulation.Driver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drivers = append(e.drivers, d)
}

func (e *engine) RemoveDriver(d simulation.Driver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drivers = slices.DeleteFunc(e.drivers, func(x simulation.Driver) bool { return x == d })
}

func (e *engine) Drivers() []simulation.Driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.drivers)
}

func (e *engine) Frame(deltaTime float32) error {
	r := e.renderer
	if e.camera != nil {
		e.camera.Update()
		r.SetViewProjection(e.camera.ViewProjection())
	}

	// Compute passes and draws share the frame; the compute submission lands before the render pass.
	if err := r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("failed to begin compute frame: %w", err)
	}
	if err := r.BeginFrame(); err != nil {
		r.EndComputeFrame()
		return fmt.Errorf("failed to begin frame: %w", err)
	}

	var errs []error
	for _, d := range e.Drivers() {
		if err := d.Tick(deltaTime); err != nil {
			errs = append(errs, err)
		}
	}

	r.EndComputeFrame()
	r.EndFrame()
	r.Present()

	e.mu.Lock()
	profiling := e.profilingEnabled
	e.mu.Unlock()
	if profiling {
		e.profiler.Tick(r.FrameStats())
	}
	return errors.Join(errs...)
}

func (e *engine) RunFrames(n int, deltaTime float32) error {
	for i := range n {
		if e.tickCallback != nil {
			e.tickCallback(deltaTime)
		}
		if err := e.Frame(deltaTime); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if e.renderCallback != nil {
			e.renderCallback(deltaTime)
		}
	}
	return nil
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.handle()
	if e.window != nil {
		e.window.Run()
		e.signalQuit()
	}
	e.wg.Wait()
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines, tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine fires the tick callback at the configured rate and picks up rate changes from
// tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

// handleRender renders frames until quit. A panic in a frame is logged and stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if err := e.Frame(dt); err != nil {
			e.logger.Warn("frame failed", "error", err)
		}
		if e.renderCallback != nil {
			e.renderCallback(dt)
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

// SetTickRate takes effect immediately when the engine is running.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	running := e.running
	if !running {
		e.engineTickRate = newRate
	}
	e.mu.Unlock()
	if !running {
		return
	}

	// Replace any pending update.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Release() {
	e.signalQuit()
	for _, d := range e.Drivers() {
		d.Release()
	}
	e.mu.Lock()
	e.drivers = nil
	e.mu.Unlock()

	e.renderer.Release()
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			e.logger.Warn("failed to close window", "error", err)
		}
	}
}
