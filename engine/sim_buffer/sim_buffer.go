// Package sim_buffer owns the 2-D float buffers that hold per-replica simulation state. Buffers are
// grouped into channels (position, rotation, ...), each channel a pair whose current and previous roles
// alternate every tick without copying data.
package sim_buffer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/kvant-go/common"
)

// ErrDimensionLimit is wrapped by the configuration error returned when a requested buffer is larger
// than the host supports.
var ErrDimensionLimit = errors.New("sim_buffer: dimension exceeds host limit")

// Format is the texel format of a simulation buffer.
type Format int

const (
	// FormatRGBA32Float stores four 32-bit floats per texel.
	FormatRGBA32Float Format = iota
)

// Filter is the sampling filter requested for a buffer.
type Filter int

const (
	FilterPoint Filter = iota
	FilterLinear
)

// Wrap is the addressing mode requested for a buffer.
type Wrap int

const (
	WrapRepeat Wrap = iota
	WrapClamp
)

// Descriptor describes a buffer to allocate.
type Descriptor struct {
	Label  string
	Width  int
	Height int
	Format Format
	Filter Filter
	Wrap   Wrap
}

// Buffer is a host-allocated 2-D float buffer.
type Buffer interface {
	// Descriptor returns the descriptor the buffer was created from.
	//
	// Returns:
	//   - Descriptor: the creation descriptor
	Descriptor() Descriptor

	// Release frees the host memory backing the buffer. Safe to call more than once.
	Release()
}

// Host allocates simulation buffers, typically on the GPU.
type Host interface {
	// CreateBuffer allocates a buffer matching the descriptor.
	//
	// Parameters:
	//   - desc: the buffer to allocate
	//
	// Returns:
	//   - Buffer: the allocated buffer
	//   - error: any host allocation failure
	CreateBuffer(desc Descriptor) (Buffer, error)

	// MaxDimension returns the largest width or height the host can allocate.
	//
	// Returns:
	//   - int: the dimension limit in texels
	MaxDimension() int
}

// ChannelSpec describes one simulated channel.
type ChannelSpec struct {
	// Name labels the channel's buffers.
	Name string
	// Single allocates only a current buffer. Single channels are rewritten every tick and never swap.
	Single bool
}

// Pair is one channel's current and previous buffers.
type Pair struct {
	Current  Buffer
	Previous Buffer
}

// Single reports whether the pair has no previous buffer.
func (p *Pair) Single() bool {
	return p.Previous == nil
}

// Swap exchanges the current and previous roles. Single pairs are left untouched.
func (p *Pair) Swap() {
	if p.Previous == nil {
		return
	}
	p.Current, p.Previous = p.Previous, p.Current
}

func (p *Pair) release() {
	if p.Current != nil {
		p.Current.Release()
		p.Current = nil
	}
	if p.Previous != nil {
		p.Previous.Release()
		p.Previous = nil
	}
}

// Set is the full group of channels allocated for one driver reset. All buffers share one size.
type Set struct {
	width    int
	height   int
	names    []string
	channels []*Pair
}

// Allocate creates a set of ping-pong channels.
//
// Parameters:
//   - host: the buffer allocator
//   - width: buffer width in texels
//   - height: buffer height in texels
//   - channels: the number of channel pairs
//
// Returns:
//   - *Set: the allocated set, empty when any dimension is zero
//   - error: a ConfigurationError when the size exceeds the host limit, a ResourceError when the host fails
func Allocate(host Host, width, height, channels int) (*Set, error) {
	specs := make([]ChannelSpec, max(channels, 0))
	for i := range specs {
		specs[i].Name = fmt.Sprintf("channel %d", i)
	}
	return AllocateChannels(host, width, height, specs)
}

// AllocateChannels creates one pair per channel spec. Every buffer is requested with point filtering and
// repeat addressing so a replica's coordinate is stable under rounding. On failure every buffer created
// so far is released before returning.
//
// Parameters:
//   - host: the buffer allocator
//   - width: buffer width in texels
//   - height: buffer height in texels
//   - specs: the channels to allocate
//
// Returns:
//   - *Set: the allocated set, empty when any dimension is zero or specs is empty
//   - error: a ConfigurationError when the size exceeds the host limit, a ResourceError when the host fails
func AllocateChannels(host Host, width, height int, specs []ChannelSpec) (*Set, error) {
	if width <= 0 || height <= 0 || len(specs) == 0 {
		return &Set{}, nil
	}
	if host == nil {
		return nil, errors.New("sim_buffer: nil host")
	}
	if err := CheckDimensions(host, width, height); err != nil {
		return nil, err
	}

	set := &Set{width: width, height: height}
	create := func(label string) (Buffer, error) {
		buf, err := host.CreateBuffer(Descriptor{
			Label:  label,
			Width:  width,
			Height: height,
			Format: FormatRGBA32Float,
			Filter: FilterPoint,
			Wrap:   WrapRepeat,
		})
		if err != nil {
			return nil, &common.ResourceError{Resource: label, Err: err}
		}
		return buf, nil
	}

	for _, spec := range specs {
		pair := &Pair{}
		set.names = append(set.names, spec.Name)
		set.channels = append(set.channels, pair)

		var err error
		if pair.Current, err = create(spec.Name + " a"); err != nil {
			set.Release()
			return nil, err
		}
		if spec.Single {
			continue
		}
		if pair.Previous, err = create(spec.Name + " b"); err != nil {
			set.Release()
			return nil, err
		}
	}
	return set, nil
}

// CheckDimensions validates a buffer size against the host limit without allocating.
//
// Parameters:
//   - host: the buffer allocator
//   - width: buffer width in texels
//   - height: buffer height in texels
//
// Returns:
//   - error: a ConfigurationError wrapping ErrDimensionLimit if either dimension is too large
func CheckDimensions(host Host, width, height int) error {
	limit := host.MaxDimension()
	if limit > 0 && (width > limit || height > limit) {
		return &common.ConfigurationError{
			Component: "sim_buffer",
			Reason:    fmt.Sprintf("buffer %dx%d, host limit is %d", width, height, limit),
			Err:       ErrDimensionLimit,
		}
	}
	return nil
}

func (s *Set) Width() int {
	return s.width
}

func (s *Set) Height() int {
	return s.height
}

// Len returns the number of channels.
func (s *Set) Len() int {
	return len(s.channels)
}

// IsEmpty reports whether the set holds no buffers.
func (s *Set) IsEmpty() bool {
	return s == nil || len(s.channels) == 0
}

// Channel returns the pair at index i, or nil when out of range.
func (s *Set) Channel(i int) *Pair {
	if s == nil || i < 0 || i >= len(s.channels) {
		return nil
	}
	return s.channels[i]
}

// ChannelByName returns the pair allocated for the named channel, or nil.
func (s *Set) ChannelByName(name string) *Pair {
	if s == nil {
		return nil
	}
	for i, n := range s.names {
		if n == name {
			return s.channels[i]
		}
	}
	return nil
}

// SwapAll swaps every pair in the set.
func (s *Set) SwapAll() {
	if s == nil {
		return
	}
	for _, p := range s.channels {
		p.Swap()
	}
}

// Release frees every buffer in the set. Safe to call more than once.
func (s *Set) Release() {
	if s == nil {
		return
	}
	for _, p := range s.channels {
		p.release()
	}
	s.channels = nil
	s.names = nil
	s.width, s.height = 0, 0
}
