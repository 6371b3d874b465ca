package effect

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// SprayConfig configures a Spray.
type SprayConfig struct {
	// Shapes names the source shapes, assigned to particles round-robin.
	Shapes    []string `yaml:"shapes"`
	ShapeSize float32  `yaml:"shape_size"`
	// MaxParticles is the particle population.
	MaxParticles int `yaml:"max_particles"`
	// BatchSize caps how many particles one mesh draw covers. Zero lets one draw cover everything.
	BatchSize       int        `yaml:"batch_size"`
	EmitterPosition mgl32.Vec3 `yaml:"emitter_position"`
	EmitterSize     mgl32.Vec3 `yaml:"emitter_size"`
	MinLife         float32    `yaml:"min_life"`
	MaxLife         float32    `yaml:"max_life"`
	MinScale        float32    `yaml:"min_scale"`
	MaxScale        float32    `yaml:"max_scale"`
	Direction       mgl32.Vec3 `yaml:"direction"`
	Spread          float32    `yaml:"spread"`
	MinSpeed        float32    `yaml:"min_speed"`
	MaxSpeed        float32    `yaml:"max_speed"`
	// MinRotation and MaxRotation are angular speeds in degrees per second.
	MinRotation   float32    `yaml:"min_rotation"`
	MaxRotation   float32    `yaml:"max_rotation"`
	NoiseDensity  float32    `yaml:"noise_density"`
	NoiseVelocity float32    `yaml:"noise_velocity"`
	Color         mgl32.Vec4 `yaml:"color"`
	RandomSeed    int        `yaml:"random_seed"`
}

// StreamlineConfig configures a Streamline.
type StreamlineConfig struct {
	EmitterPosition mgl32.Vec3 `yaml:"emitter_position"`
	EmitterSize     mgl32.Vec3 `yaml:"emitter_size"`
	// Throttle is the fraction of lines allowed to respawn, in [0, 1].
	Throttle  float32    `yaml:"throttle"`
	Life      float32    `yaml:"life"`
	Direction mgl32.Vec3 `yaml:"direction"`
	Spread    float32    `yaml:"spread"`
	MinSpeed  float32    `yaml:"min_speed"`
	MaxSpeed  float32    `yaml:"max_speed"`
	// NoiseFrequency, NoiseSpeed and NoiseAnimation shape the turbulence. A NoiseSpeed of zero turns it off.
	NoiseFrequency float32    `yaml:"noise_frequency"`
	NoiseSpeed     float32    `yaml:"noise_speed"`
	NoiseAnimation float32    `yaml:"noise_animation"`
	Color          mgl32.Vec4 `yaml:"color"`
	// Tail scales each line from the current position back towards the previous one.
	Tail       float32 `yaml:"tail"`
	RandomSeed int     `yaml:"random_seed"`
}

// NoiseEnabled reports whether the turbulence term is applied.
func (c StreamlineConfig) NoiseEnabled() bool {
	return c.NoiseSpeed > 0
}

// TunnelConfig configures a Tunnel.
type TunnelConfig struct {
	Radius float32 `yaml:"radius"`
	Height float32 `yaml:"height"`
	// Slices and Stacks are the lattice columns around the tunnel and rows along it.
	Slices       int        `yaml:"slices"`
	Stacks       int        `yaml:"stacks"`
	Offset       float32    `yaml:"offset"`
	Twist        float32    `yaml:"twist"`
	Density      int        `yaml:"density"`
	Bump         float32    `yaml:"bump"`
	Warp         float32    `yaml:"warp"`
	SurfaceColor mgl32.Vec4 `yaml:"surface_color"`
	// LineColor draws the lattice edges when its alpha is above zero.
	LineColor mgl32.Vec4 `yaml:"line_color"`
}

// ScrollerConfig configures a Scroller.
type ScrollerConfig struct {
	Velocity float32 `yaml:"velocity"`
}

// Config is the full effect configuration file.
type Config struct {
	Spray      SprayConfig      `yaml:"spray"`
	Streamline StreamlineConfig `yaml:"streamline"`
	Tunnel     TunnelConfig     `yaml:"tunnel"`
	Scroller   ScrollerConfig   `yaml:"scroller"`
}

// DefaultConfig returns the built-in configuration.
//
// Returns:
//   - Config: the defaults
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		panic(fmt.Sprintf("effect: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// LoadConfig reads a YAML configuration file over the built-in defaults. Keys absent from the file
// keep their default values.
//
// Parameters:
//   - path: the file to read, empty for defaults only
//
// Returns:
//   - Config: the sanitized configuration
//   - error: a read, parse, or validation error
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read effect config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse effect config %s: %w", path, err)
		}
	}

	cfg.Spray = cfg.Spray.Sanitize()
	cfg.Streamline = cfg.Streamline.Sanitize()
	cfg.Tunnel = cfg.Tunnel.Sanitize()
	if err := cfg.Spray.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ordered(lo, hi float32) (float32, float32) {
	if lo > hi {
		return hi, lo
	}
	return lo, hi
}

// Sanitize orders the ranges and bounds the values the kernels divide by.
func (c SprayConfig) Sanitize() SprayConfig {
	c.Shapes = slices.Clone(c.Shapes)
	c.MaxParticles = max(c.MaxParticles, 0)
	c.RandomSeed = max(c.RandomSeed, 0)
	c.BatchSize = max(c.BatchSize, 0)
	c.MinLife, c.MaxLife = ordered(c.MinLife, c.MaxLife)
	c.MinLife = max(c.MinLife, 0.01)
	c.MaxLife = max(c.MaxLife, 0.01)
	c.MinScale, c.MaxScale = ordered(c.MinScale, c.MaxScale)
	c.MinSpeed, c.MaxSpeed = ordered(c.MinSpeed, c.MaxSpeed)
	c.MinRotation, c.MaxRotation = ordered(c.MinRotation, c.MaxRotation)
	if c.ShapeSize <= 0 {
		c.ShapeSize = 1
	}
	return c
}

// Validate rejects unknown shape names.
func (c SprayConfig) Validate() error {
	for _, name := range c.Shapes {
		if _, ok := shapeFactories[name]; !ok {
			return common.NewConfigurationError("spray", "unknown shape %q", name)
		}
	}
	return nil
}

// Sanitize bounds the throttle and orders the speed range.
func (c StreamlineConfig) Sanitize() StreamlineConfig {
	c.Throttle = common.Clamp(c.Throttle, 0, 1)
	c.RandomSeed = max(c.RandomSeed, 0)
	c.MinSpeed, c.MaxSpeed = ordered(c.MinSpeed, c.MaxSpeed)
	c.Life = max(c.Life, 0.01)
	return c
}

// Sanitize clamps the lattice resolution to what the tunnel buffers support.
func (c TunnelConfig) Sanitize() TunnelConfig {
	c.Slices = common.Clamp(c.Slices, 8, 255)
	c.Stacks = common.Clamp(c.Stacks, 8, 1023)
	if c.Radius <= 0 {
		c.Radius = 0.01
	}
	return c
}
