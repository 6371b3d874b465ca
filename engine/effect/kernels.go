package effect

import (
	"fmt"

	"github.com/Carmen-Shannon/kvant-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kvant-go/engine/renderer/software"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SoftwareKernels returns the CPU renditions of every effect kernel pass, keyed for
// software.WithKernels. They follow the WGSL programs step for step.
//
// Returns:
//   - map[string]software.KernelFunc: the kernel functions by pipeline key
func SoftwareKernels() map[string]software.KernelFunc {
	return map[string]software.KernelFunc{
		pipeline.KernelKey(SprayProgram, 0):      sprayInitPosition,
		pipeline.KernelKey(SprayProgram, 1):      sprayInitRotation,
		pipeline.KernelKey(SprayProgram, 2):      sprayUpdatePosition,
		pipeline.KernelKey(SprayProgram, 3):      sprayUpdateRotation,
		pipeline.KernelKey(StreamlineProgram, 0): streamlineInit,
		pipeline.KernelKey(StreamlineProgram, 1): streamlineUpdate,
		pipeline.KernelKey(TunnelProgram, 0):     tunnelConstruct,
		pipeline.KernelKey(TunnelProgram, 1):     tunnelNormalsABC,
		pipeline.KernelKey(TunnelProgram, 2):     tunnelNormalsACD,
	}
}

func requireInputs(inv software.Invocation, n int) error {
	if len(inv.Inputs) < n {
		return fmt.Errorf("%s needs %d inputs, got %d", inv.Key, n, len(inv.Inputs))
	}
	return nil
}

func emitterPosition(p software.Slots, x, y int, seed uint32) mgl32.Vec3 {
	r := random3(x, y, 0, seed).Sub(mgl32.Vec3{0.5, 0.5, 0.5})
	size := p.Vec3(paramEmitterSize)
	return p.Vec3(paramEmitterPos).Add(mgl32.Vec3{r[0] * size[0], r[1] * size[1], r[2] * size[2]})
}

func sprayInitPosition(inv software.Invocation) error {
	seed := uint32(inv.Params.Float(paramSeed))
	inv.ForEach(func(x, y int) mgl32.Vec4 {
		return emitterPosition(inv.Params, x, y, seed).Vec4(random(x, y, 3, seed))
	})
	return nil
}

func sprayInitRotation(inv software.Invocation) error {
	seed := uint32(inv.Params.Float(paramSeed))
	inv.ForEach(func(x, y int) mgl32.Vec4 {
		q := random3(x, y, 20, seed).Mul(2).Sub(mgl32.Vec3{1, 1, 1}).Vec4(random(x, y, 23, seed)*2 - 1)
		if q.Len() < 1e-6 {
			return mgl32.Vec4{0, 0, 0, 1}
		}
		return q.Normalize()
	})
	return nil
}

func sprayUpdatePosition(inv software.Invocation) error {
	if err := requireInputs(inv, 1); err != nil {
		return err
	}
	p := inv.Params
	seed := uint32(p.Float(paramSeed))
	dt := p.Float(simulation.ParamDeltaTime)
	t := p.Float(simulation.ParamTime)
	life := p.Vec2(paramLifeParams)
	dir := p.Vec4(paramDirection)
	speed := p.Vec4(paramSpeedParams)
	noise := p.Vec2(paramNoiseParams)

	inv.ForEach(func(x, y int) mgl32.Vec4 {
		cur := inv.Inputs[0].At(x, y)
		cur[3] -= lerp(life[0], life[1], random(x, y, 4, seed)) * dt
		if cur[3] <= 0 {
			return emitterPosition(p, x, y, seed^math32.Float32bits(t)).Vec4(1)
		}

		v := spreadDirection(dir.Vec3(), dir[3], x, y, 7, seed).Mul(lerp(speed[0], speed[1], random(x, y, 6, seed)))
		v = v.Add(flow(cur.Vec3().Mul(noise[0]), t).Mul(noise[1]))
		return cur.Vec3().Add(v.Mul(dt)).Vec4(cur[3])
	})
	return nil
}

func sprayUpdateRotation(inv software.Invocation) error {
	if err := requireInputs(inv, 1); err != nil {
		return err
	}
	seed := uint32(inv.Params.Float(paramSeed))
	dt := inv.Params.Float(simulation.ParamDeltaTime)
	speed := inv.Params.Vec4(paramSpeedParams)

	inv.ForEach(func(x, y int) mgl32.Vec4 {
		axis := spreadDirection(mgl32.Vec3{}, 1, x, y, 10, seed)
		half := lerp(speed[2], speed[3], random(x, y, 13, seed)) * dt
		dq := axis.Mul(math32.Sin(half)).Vec4(math32.Cos(half))
		return quatMul(dq, inv.Inputs[0].At(x, y)).Normalize()
	})
	return nil
}

func streamlineThrottled(x, width int, throttle float32) bool {
	return float32(x)/float32(width) >= throttle
}

func streamlineInit(inv software.Invocation) error {
	config := inv.Params.Vec4(paramConfig)
	seed := uint32(config[2])
	w, _ := inv.Size()

	inv.ForEach(func(x, y int) mgl32.Vec4 {
		life := random(x, y, 3, seed)
		if streamlineThrottled(x, w, config[0]) {
			life = -1
		}
		return emitterPosition(inv.Params, x, y, seed).Vec4(life)
	})
	return nil
}

func streamlineUpdate(inv software.Invocation) error {
	if err := requireInputs(inv, 1); err != nil {
		return err
	}
	p := inv.Params
	config := p.Vec4(paramConfig)
	seed := uint32(config[2])
	dt := p.Float(simulation.ParamDeltaTime)
	t := p.Float(simulation.ParamTime)
	dir := p.Vec4(paramDirection)
	speed := p.Vec2(paramSpeedParams)
	noise := p.Vec4(paramNoiseParams)
	w, _ := inv.Size()

	inv.ForEach(func(x, y int) mgl32.Vec4 {
		cur := inv.Inputs[0].At(x, y)
		if cur[3] <= 0 {
			if streamlineThrottled(x, w, config[0]) {
				return cur
			}
			return emitterPosition(p, x, y, seed^math32.Float32bits(t)).Vec4(1)
		}

		s := lerp(speed[0], speed[1], random(x, y, 6, seed))
		v := spreadDirection(dir.Vec3(), dir[3], x, y, 7, seed).Mul(s)
		if noise[3] > 0.5 {
			v = v.Add(flow(cur.Vec3().Mul(noise[0]), t*noise[2]).Mul(noise[1] * s))
		}
		return cur.Vec3().Add(v.Mul(dt)).Vec4(cur[3] - dt/config[1])
	})
	return nil
}

func tunnelConstruct(inv software.Invocation) error {
	p := inv.Params
	size := p.Vec2(paramSize)
	offset := p.Vec2(paramOffset)
	period := p.Vec2(paramPeriod)
	density := p.Vec2(paramDensity)
	displace := p.Vec3(paramDisplace)
	w, h := inv.Size()
	fw, fh := float32(w), float32(h)

	inv.ForEach(func(x, y int) mgl32.Vec4 {
		u := float32(x) / fw
		v := float32(y) / fh

		theta := 2 * math32.Pi * u
		along := v*density[1] + offset[1]
		n := valueNoise(mgl32.Vec2{u*density[0] + v*offset[0], along}, period[0]*density[0])
		r := size[0] * (1 + displace[0]*n)
		wx := valueNoise(mgl32.Vec2{along, 17}, period[1])
		wy := valueNoise(mgl32.Vec2{along, 53}, period[1])
		z := (float32(y) - 0.5*(fh-1)) * size[1] / fh

		return mgl32.Vec4{
			math32.Cos(theta)*r + displace[1]*wx,
			math32.Sin(theta)*r + displace[2]*wy,
			z,
			1,
		}
	})
	return nil
}

func face(a, b, c mgl32.Vec3) mgl32.Vec4 {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Len() < 1e-12 {
		return mgl32.Vec4{}
	}
	return n.Normalize().Vec4(0)
}

func tunnelNormalsABC(inv software.Invocation) error {
	if err := requireInputs(inv, 1); err != nil {
		return err
	}
	pos := inv.Inputs[0]
	inv.ForEach(func(x, y int) mgl32.Vec4 {
		return face(pos.At(x, y).Vec3(), pos.At(x-1, y+1).Vec3(), pos.At(x+1, y+1).Vec3())
	})
	return nil
}

func tunnelNormalsACD(inv software.Invocation) error {
	if err := requireInputs(inv, 1); err != nil {
		return err
	}
	pos := inv.Inputs[0]
	inv.ForEach(func(x, y int) mgl32.Vec4 {
		return face(pos.At(x, y).Vec3(), pos.At(x+1, y+1).Vec3(), pos.At(x+2, y).Vec3())
	})
	return nil
}
