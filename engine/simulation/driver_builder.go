package simulation

import (
	"log/slog"

	"github.com/Carmen-Shannon/kvant-go/engine/bulk_mesh"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
)

// DriverBuilderOption is a functional option applied to a driver during construction via NewDriver.
type DriverBuilderOption func(*driver)

// WithHost sets the buffer allocator.
//
// Parameters:
//   - host: the host that allocates simulation buffers
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithHost(host sim_buffer.Host) DriverBuilderOption {
	return func(d *driver) {
		d.host = host
	}
}

// WithKernel sets the kernel pass executor.
//
// Parameters:
//   - kernel: the collaborator that runs kernel passes
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithKernel(kernel Kernel) DriverBuilderOption {
	return func(d *driver) {
		d.kernel = kernel
	}
}

// WithRenderer sets the draw collaborator. A renderer that also implements MeshReleaser is told about
// every mesh the driver releases.
//
// Parameters:
//   - renderer: the collaborator that issues draws
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithRenderer(renderer Renderer) DriverBuilderOption {
	return func(d *driver) {
		d.renderer = renderer
	}
}

// WithBuilder sets the mesh builder used on reset. Defaults to bulk_mesh.NewBuilder().
//
// Parameters:
//   - builder: the bulk mesh builder
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithBuilder(builder bulk_mesh.Builder) DriverBuilderOption {
	return func(d *driver) {
		d.builder = builder
	}
}

// WithLogger sets the structured logger.
//
// Parameters:
//   - logger: the logger, nil keeps slog.Default()
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) DriverBuilderOption {
	return func(d *driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}
