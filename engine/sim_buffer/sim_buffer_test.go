package sim_buffer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingHost records every descriptor requested.
type countingHost struct {
	*MemoryHost
	requests []Descriptor
}

func (h *countingHost) CreateBuffer(desc Descriptor) (Buffer, error) {
	h.requests = append(h.requests, desc)
	return h.MemoryHost.CreateBuffer(desc)
}

func TestAllocateCreatesPairsWithPointRepeat(t *testing.T) {
	host := &countingHost{MemoryHost: NewMemoryHost()}
	set, err := Allocate(host, 16, 4, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 16, set.Width())
	assert.Equal(t, 4, set.Height())
	require.Len(t, host.requests, 4)
	for _, d := range host.requests {
		assert.Equal(t, FilterPoint, d.Filter)
		assert.Equal(t, WrapRepeat, d.Wrap)
		assert.Equal(t, FormatRGBA32Float, d.Format)
		assert.Equal(t, 16, d.Width)
		assert.Equal(t, 4, d.Height)
	}
	assert.Equal(t, 4, host.Live())

	set.Release()
	assert.Zero(t, host.Live())
	assert.True(t, set.IsEmpty())
	set.Release()
	assert.Zero(t, host.Live())
}

func TestZeroSizeAllocationTouchesNoHost(t *testing.T) {
	host := &countingHost{MemoryHost: NewMemoryHost()}
	for _, dims := range [][3]int{{0, 4, 2}, {4, 0, 2}, {4, 4, 0}} {
		set, err := Allocate(host, dims[0], dims[1], dims[2])
		require.NoError(t, err)
		assert.True(t, set.IsEmpty())
		set.SwapAll()
		set.Release()
	}
	assert.Empty(t, host.requests)

	set, err := Allocate(nil, 0, 0, 1)
	require.NoError(t, err)
	assert.True(t, set.IsEmpty())
}

func TestOversizedBufferFailsBeforeAllocating(t *testing.T) {
	host := &countingHost{MemoryHost: NewMemoryHost(WithMaxDimension(64))}
	_, err := Allocate(host, 65, 1, 1)
	require.Error(t, err)
	assert.True(t, common.IsConfigurationError(err))
	assert.ErrorIs(t, err, ErrDimensionLimit)
	assert.Empty(t, host.requests)

	_, err = Allocate(host, 64, 64, 1)
	assert.NoError(t, err)
}

func TestPartialAllocationIsReleased(t *testing.T) {
	host := NewMemoryHost(WithBudget(3))
	_, err := Allocate(host, 8, 8, 2)
	require.Error(t, err)
	assert.True(t, common.IsResourceError(err))
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
	assert.Zero(t, host.Live())
	assert.Equal(t, 3, host.Allocations())
}

func TestSwapExchangesHandles(t *testing.T) {
	set, err := Allocate(NewMemoryHost(), 2, 2, 1)
	require.NoError(t, err)
	pair := set.Channel(0)
	a, b := pair.Current, pair.Previous

	set.SwapAll()
	assert.Same(t, b, pair.Current)
	assert.Same(t, a, pair.Previous)

	set.SwapAll()
	assert.Same(t, a, pair.Current)
	assert.Nil(t, set.Channel(1))
	assert.Nil(t, set.Channel(-1))
}

func TestSingleChannelsNeverSwap(t *testing.T) {
	host := NewMemoryHost()
	set, err := AllocateChannels(host, 4, 4, []ChannelSpec{
		{Name: "position", Single: true},
		{Name: "normal"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, host.Live())

	pos := set.ChannelByName("position")
	require.NotNil(t, pos)
	assert.True(t, pos.Single())
	cur := pos.Current
	set.SwapAll()
	assert.Same(t, cur, pos.Current)
	assert.Nil(t, pos.Previous)

	assert.False(t, set.ChannelByName("normal").Single())
	assert.Nil(t, set.ChannelByName("missing"))
	assert.Equal(t, "position a", pos.Current.Descriptor().Label)
}

func TestMemoryBufferWrapsCoordinates(t *testing.T) {
	buf, err := NewMemoryHost().CreateBuffer(Descriptor{Width: 4, Height: 2})
	require.NoError(t, err)
	mb := buf.(*MemoryBuffer)

	v := mgl32.Vec4{1, 2, 3, 4}
	mb.Store(3, 1, v)
	assert.Equal(t, v, mb.At(-1, -1))
	assert.Equal(t, v, mb.At(7, 3))
	assert.Equal(t, v, mb.Sample(mgl32.Vec2{0.75 + 0.125, 0.5 + 0.25}))
	assert.Equal(t, v, mb.Sample(mgl32.Vec2{-0.125, -0.25}))
	assert.Equal(t, mgl32.Vec4{}, mb.Sample(mgl32.Vec2{0, 0}))
}
