package software

import (
	"log/slog"

	"github.com/Carmen-Shannon/kvant-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
)

// BackendBuilderOption is a functional option applied to a Backend during construction via NewBackend.
type BackendBuilderOption func(*Backend)

// WithHost sets the memory host, for example one with a budget or a small dimension limit.
//
// Parameters:
//   - host: the host that allocates buffers
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithHost(host *sim_buffer.MemoryHost) BackendBuilderOption {
	return func(b *Backend) {
		b.host = host
	}
}

// WithKernel registers the CPU kernel of one pass of a program.
//
// Parameters:
//   - program: the effect program name
//   - pass: the kernel pass number
//   - fn: the kernel function
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithKernel(program string, pass int, fn KernelFunc) BackendBuilderOption {
	return func(b *Backend) {
		b.kernels[pipeline.KernelKey(program, pass)] = fn
	}
}

// WithKernels registers CPU kernels keyed by pipeline key.
//
// Parameters:
//   - kernels: the kernel functions by pipeline.KernelKey
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithKernels(kernels map[string]KernelFunc) BackendBuilderOption {
	return func(b *Backend) {
		for key, fn := range kernels {
			b.kernels[key] = fn
		}
	}
}

// WithLogger sets the structured logger.
//
// Parameters:
//   - logger: the logger, nil keeps slog.Default()
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) BackendBuilderOption {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}
