package software

import (
	"github.com/Carmen-Shannon/kvant-go/engine/sim_buffer"
	"github.com/go-gl/mathgl/mgl32"
)

// Slots are the unpacked vec4 parameter slots of a kernel pass, keyed by parameter name.
type Slots map[string]mgl32.Vec4

// Float returns the first component of a slot.
func (s Slots) Float(name string) float32 {
	return s[name][0]
}

// Vec2 returns the first two components of a slot.
func (s Slots) Vec2(name string) mgl32.Vec2 {
	return s[name].Vec2()
}

// Vec3 returns the first three components of a slot.
func (s Slots) Vec3(name string) mgl32.Vec3 {
	return s[name].Vec3()
}

// Vec4 returns a full slot.
func (s Slots) Vec4(name string) mgl32.Vec4 {
	return s[name]
}

func unpack(names []string, uniform []float32) Slots {
	slots := make(Slots, len(names))
	for i, name := range names {
		if i*4+4 > len(uniform) {
			break
		}
		slots[name] = mgl32.Vec4{uniform[i*4], uniform[i*4+1], uniform[i*4+2], uniform[i*4+3]}
	}
	return slots
}

// Invocation is one kernel pass as seen by a KernelFunc.
type Invocation struct {
	// Key is the pipeline key of the pass.
	Key    string
	Inputs []*sim_buffer.MemoryBuffer
	Output *sim_buffer.MemoryBuffer
	Params Slots
}

// Size returns the output dimensions.
func (inv Invocation) Size() (int, int) {
	desc := inv.Output.Descriptor()
	return desc.Width, desc.Height
}

// UV returns the normalized texel-center coordinate of (x, y) in the output.
func (inv Invocation) UV(x, y int) mgl32.Vec2 {
	w, h := inv.Size()
	return mgl32.Vec2{(float32(x) + 0.5) / float32(w), (float32(y) + 0.5) / float32(h)}
}

// ForEach writes every output texel with the value fn returns for it, row by row.
func (inv Invocation) ForEach(fn func(x, y int) mgl32.Vec4) {
	w, h := inv.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inv.Output.Store(x, y, fn(x, y))
		}
	}
}

// KernelFunc is the CPU rendition of a kernel pass.
type KernelFunc func(inv Invocation) error
