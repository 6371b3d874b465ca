package effect

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// pcg is the PCG-RXS-M-XS 32 bit hash. The WGSL programs carry the same function, so the software
// kernels draw exactly the random values the GPU does.
func pcg(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// random returns a value in [0, 1] for texel (x, y), salted per use.
func random(x, y int, salt, seed uint32) float32 {
	return float32(pcg(uint32(x)+pcg(uint32(y)+pcg(salt+seed)))) / 4294967295.0
}

func random3(x, y int, salt, seed uint32) mgl32.Vec3 {
	return mgl32.Vec3{
		random(x, y, salt, seed),
		random(x, y, salt+1, seed),
		random(x, y, salt+2, seed),
	}
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// spreadDirection tilts dir by a random vector scaled by spread and renormalizes.
func spreadDirection(dir mgl32.Vec3, spread float32, x, y int, salt, seed uint32) mgl32.Vec3 {
	r := random3(x, y, salt, seed).Mul(2).Sub(mgl32.Vec3{1, 1, 1})
	v := dir.Add(r.Mul(spread))
	if v.Len() < 1e-6 {
		return mgl32.Vec3{0, 0, 1}
	}
	return v.Normalize()
}

// flow is a smooth, divergence-light vector field used for particle turbulence.
func flow(p mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{
		math32.Sin(p[1]*1.3+t) + math32.Cos(p[2]*1.7-t),
		math32.Sin(p[2]*1.1+t) + math32.Cos(p[0]*1.9-t),
		math32.Sin(p[0]*1.5+t) + math32.Cos(p[1]*1.2-t),
	}.Mul(0.5)
}

// latticeValue is the random value in [-1, 1] at an integer lattice point, wrapped on x by period.
func latticeValue(ix, iy, period int32) float32 {
	wx := ((ix % period) + period) % period
	h := pcg(uint32(wx) + pcg(uint32(iy)+pcg(0x9e37)))
	return float32(h)/4294967295.0*2 - 1
}

// valueNoise is 2D value noise with smoothstep interpolation, periodic on x.
func valueNoise(p mgl32.Vec2, period float32) float32 {
	per := int32(math32.Max(1, math32.Floor(period)))
	fx, fy := math32.Floor(p[0]), math32.Floor(p[1])
	ix, iy := int32(fx), int32(fy)
	tx, ty := p[0]-fx, p[1]-fy
	ux := tx * tx * (3 - 2*tx)
	uy := ty * ty * (3 - 2*ty)

	a := lerp(latticeValue(ix, iy, per), latticeValue(ix+1, iy, per), ux)
	b := lerp(latticeValue(ix, iy+1, per), latticeValue(ix+1, iy+1, per), ux)
	return lerp(a, b, uy)
}

// quatMul is the Hamilton product of quaternions stored as (x, y, z, w).
func quatMul(a, b mgl32.Vec4) mgl32.Vec4 {
	av, bv := a.Vec3(), b.Vec3()
	v := bv.Mul(a[3]).Add(av.Mul(b[3])).Add(av.Cross(bv))
	return mgl32.Vec4{v[0], v[1], v[2], a[3]*b[3] - av.Dot(bv)}
}
