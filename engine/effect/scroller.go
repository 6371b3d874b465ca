package effect

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Scroller drives three identical tunnels laid end to end along +Z so the middle one appears to scroll
// forever. The group moves back by less than one lattice step while the noise offset of every tunnel
// advances in whole steps, so the surface never visibly jumps.
type Scroller interface {
	// Tunnels returns the front, middle and back tunnels.
	//
	// Returns:
	//   - []Tunnel: the three tunnels, front first
	Tunnels() []Tunnel

	// Update advances the scroll position.
	//
	// Parameters:
	//   - deltaTime: the elapsed time in seconds
	Update(deltaTime float32)

	// Distance returns the total distance scrolled.
	Distance() float32

	Velocity() float32
	SetVelocity(velocity float32)
}

type scroller struct {
	mu       *sync.Mutex
	origin   mgl32.Vec3
	velocity float32
	distance float32
	front    Tunnel
	middle   Tunnel
	back     Tunnel
}

var _ Scroller = &scroller{}

var forward = mgl32.Vec3{0, 0, 1}

// NewScroller creates the three tunnels of a scroller from one tunnel configuration.
//
// Parameters:
//   - cfg: the scroller configuration
//   - tunnelCfg: the configuration shared by the three tunnels
//   - options: functional options; the position places the whole group
//
// Returns:
//   - Scroller: the scroller, already positioned for distance zero
func NewScroller(cfg ScrollerConfig, tunnelCfg TunnelConfig, options ...EffectBuilderOption) Scroller {
	b := newBase(options)
	s := &scroller{
		mu:       &sync.Mutex{},
		origin:   b.position,
		velocity: cfg.Velocity,
		front:    NewTunnel(tunnelCfg, WithLogger(b.logger)),
		middle:   NewTunnel(tunnelCfg, WithLogger(b.logger)),
		back:     NewTunnel(tunnelCfg, WithLogger(b.logger)),
	}
	s.Update(0)
	return s
}

func (s *scroller) Tunnels() []Tunnel {
	return []Tunnel{s.front, s.middle, s.back}
}

func (s *scroller) Velocity() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.velocity
}

func (s *scroller) SetVelocity(velocity float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.velocity = velocity
}

func (s *scroller) Distance() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distance
}

func (s *scroller) Update(deltaTime float32) {
	cfg := s.middle.Config()
	step := cfg.Height * 2 / float32(cfg.Stacks)

	s.mu.Lock()
	s.distance += s.velocity * deltaTime
	distance := s.distance
	s.mu.Unlock()

	if step <= 0 {
		return
	}

	parent := s.origin.Add(forward.Mul(-math32.Mod(distance, step)))
	density := float32(cfg.Density)
	offset := math32.Floor(distance/step) * density * 2 / float32(cfg.Stacks)

	s.middle.SetOffset(offset)
	s.front.SetOffset(offset + density)
	s.back.SetOffset(offset - density)

	s.middle.SetPosition(parent)
	s.front.SetPosition(parent.Add(forward.Mul(cfg.Height)))
	s.back.SetPosition(parent.Sub(forward.Mul(cfg.Height)))
}
