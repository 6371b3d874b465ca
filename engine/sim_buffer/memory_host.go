package sim_buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrBudgetExhausted is returned by a MemoryHost that has reached its live buffer budget.
var ErrBudgetExhausted = errors.New("sim_buffer: allocation budget exhausted")

// DefaultMaxDimension matches the common GPU 2-D texture limit.
const DefaultMaxDimension = 8192

// MemoryHost allocates buffers as RGBA float32 slices in main memory. It backs the software renderer and
// lets tests emulate host limits and exhaustion.
type MemoryHost struct {
	mu *sync.Mutex

	maxDimension int
	budget       int
	live         int
	allocations  int
}

var _ Host = &MemoryHost{}

// MemoryHostOption is a functional option applied to a MemoryHost during construction.
type MemoryHostOption func(*MemoryHost)

// WithMaxDimension sets the dimension limit reported by the host.
//
// Parameters:
//   - limit: the largest width or height in texels
//
// Returns:
//   - MemoryHostOption: option function to apply
func WithMaxDimension(limit int) MemoryHostOption {
	return func(h *MemoryHost) {
		h.maxDimension = limit
	}
}

// WithBudget caps the number of live buffers. Zero leaves allocation unbounded.
//
// Parameters:
//   - buffers: the maximum number of buffers alive at once
//
// Returns:
//   - MemoryHostOption: option function to apply
func WithBudget(buffers int) MemoryHostOption {
	return func(h *MemoryHost) {
		h.budget = buffers
	}
}

// NewMemoryHost creates a MemoryHost with DefaultMaxDimension and no budget, then applies options.
//
// Parameters:
//   - options: functional options to configure the host
//
// Returns:
//   - *MemoryHost: the configured host
func NewMemoryHost(options ...MemoryHostOption) *MemoryHost {
	h := &MemoryHost{
		mu:           &sync.Mutex{},
		maxDimension: DefaultMaxDimension,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *MemoryHost) CreateBuffer(desc Descriptor) (Buffer, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("sim_buffer: invalid size %dx%d", desc.Width, desc.Height)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.budget > 0 && h.live >= h.budget {
		return nil, ErrBudgetExhausted
	}
	h.live++
	h.allocations++

	return &MemoryBuffer{
		desc:   desc,
		Texels: make([]float32, desc.Width*desc.Height*4),
		host:   h,
	}, nil
}

func (h *MemoryHost) MaxDimension() int {
	return h.maxDimension
}

// Live returns the number of buffers allocated and not yet released.
func (h *MemoryHost) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

// Allocations returns the total number of successful allocations.
func (h *MemoryHost) Allocations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocations
}

func (h *MemoryHost) free() {
	h.mu.Lock()
	h.live--
	h.mu.Unlock()
}

// MemoryBuffer is a buffer allocated by a MemoryHost. Texels are stored row-major, four floats each.
type MemoryBuffer struct {
	desc     Descriptor
	Texels   []float32
	host     *MemoryHost
	released bool
}

var _ Buffer = &MemoryBuffer{}

func (b *MemoryBuffer) Descriptor() Descriptor {
	return b.desc
}

func (b *MemoryBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.Texels = nil
	if b.host != nil {
		b.host.free()
	}
}

// Released reports whether the buffer has been freed.
func (b *MemoryBuffer) Released() bool {
	return b.released
}

// At returns the texel at (x, y). Coordinates wrap around both axes.
func (b *MemoryBuffer) At(x, y int) mgl32.Vec4 {
	i := b.offset(x, y)
	return mgl32.Vec4{b.Texels[i], b.Texels[i+1], b.Texels[i+2], b.Texels[i+3]}
}

// Store writes the texel at (x, y). Coordinates wrap around both axes.
func (b *MemoryBuffer) Store(x, y int, v mgl32.Vec4) {
	i := b.offset(x, y)
	copy(b.Texels[i:i+4], v[:])
}

// Sample returns the texel addressed by a normalized coordinate using point filtering and repeat
// addressing.
func (b *MemoryBuffer) Sample(uv mgl32.Vec2) mgl32.Vec4 {
	x := int(math32.Floor(uv[0] * float32(b.desc.Width)))
	y := int(math32.Floor(uv[1] * float32(b.desc.Height)))
	return b.At(x, y)
}

// CopyFrom overwrites this buffer with the texels of src, which must have the same size.
func (b *MemoryBuffer) CopyFrom(src *MemoryBuffer) {
	copy(b.Texels, src.Texels)
}

func (b *MemoryBuffer) offset(x, y int) int {
	x = wrap(x, b.desc.Width)
	y = wrap(y, b.desc.Height)
	return (y*b.desc.Width + x) * 4
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
