package bulk_mesh

import "log/slog"

// BuilderOption is a functional option applied to a builder during construction via NewBuilder.
type BuilderOption func(*builder)

// WithVertexLimit sets the per-mesh vertex ceiling.
//
// Parameters:
//   - limit: the maximum vertex count of any combined mesh
//
// Returns:
//   - BuilderOption: option function to apply
func WithVertexLimit(limit int) BuilderOption {
	return func(b *builder) {
		b.vertexLimit = limit
	}
}

// WithCopyLimit sets the per-mesh replica ceiling used by StrategySegmented.
//
// Parameters:
//   - limit: the maximum replica count of any combined mesh
//
// Returns:
//   - BuilderOption: option function to apply
func WithCopyLimit(limit int) BuilderOption {
	return func(b *builder) {
		b.copyLimit = limit
	}
}

// WithStrategy selects how replicas are distributed over meshes.
//
// Parameters:
//   - strategy: StrategySegmented (default) or StrategySingleMesh
//
// Returns:
//   - BuilderOption: option function to apply
func WithStrategy(strategy Strategy) BuilderOption {
	return func(b *builder) {
		b.strategy = strategy
	}
}

// WithBoundsExtent sets the half-size of the bounding box assigned to every combined mesh.
//
// Parameters:
//   - extent: half-extent along each axis
//
// Returns:
//   - BuilderOption: option function to apply
func WithBoundsExtent(extent float32) BuilderOption {
	return func(b *builder) {
		b.boundsExtent = extent
	}
}

// WithLogger sets the structured logger used for build diagnostics.
//
// Parameters:
//   - logger: the logger, nil keeps slog.Default()
//
// Returns:
//   - BuilderOption: option function to apply
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithReleaseFunc registers a hook invoked for every mesh freed by the builder, typically used to drop
// GPU buffers uploaded for that mesh.
//
// Parameters:
//   - fn: the hook, called once per released mesh
//
// Returns:
//   - BuilderOption: option function to apply
func WithReleaseFunc(fn func(*CombinedMesh)) BuilderOption {
	return func(b *builder) {
		b.onRelease = fn
	}
}

// WithFillWorkers sets the number of workers used to fill segments in parallel.
//
// Parameters:
//   - workers: worker count, values below one are raised to one
//
// Returns:
//   - BuilderOption: option function to apply
func WithFillWorkers(workers int) BuilderOption {
	return func(b *builder) {
		b.fillWorkers = max(workers, 1)
	}
}
