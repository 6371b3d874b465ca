package effect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/kvant-go/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, []string{"tetrahedron", "cube", "octahedron"}, cfg.Spray.Shapes)
	assert.Equal(t, 1000, cfg.Spray.MaxParticles)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, cfg.Spray.EmitterSize)
	assert.Equal(t, float32(4), cfg.Spray.MaxLife)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, cfg.Spray.Direction)
	assert.Equal(t, float32(200), cfg.Spray.MaxRotation)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, cfg.Spray.Color)

	assert.Equal(t, mgl32.Vec3{0, 0, 20}, cfg.Streamline.EmitterPosition)
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, cfg.Streamline.Direction)
	assert.True(t, cfg.Streamline.NoiseEnabled())

	assert.Equal(t, 8, cfg.Tunnel.Slices)
	assert.Equal(t, 10, cfg.Tunnel.Stacks)
	assert.Equal(t, mgl32.Vec4{0.8, 0.8, 0.8, 1}, cfg.Tunnel.SurfaceColor)
	assert.Equal(t, float32(0), cfg.Tunnel.LineColor[3])

	assert.Equal(t, float32(2), cfg.Scroller.Velocity)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "effects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
spray:
  max_particles: 64
  shapes: [cube]
tunnel:
  slices: 2
  stacks: 5000
streamline:
  throttle: 3
  noise_speed: 0
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Spray.MaxParticles)
	assert.Equal(t, []string{"cube"}, cfg.Spray.Shapes)
	assert.Equal(t, float32(10), cfg.Spray.MaxSpeed, "absent keys keep their defaults")

	assert.Equal(t, 8, cfg.Tunnel.Slices)
	assert.Equal(t, 1023, cfg.Tunnel.Stacks)
	assert.Equal(t, float32(5), cfg.Tunnel.Radius)

	assert.Equal(t, float32(1), cfg.Streamline.Throttle)
	assert.False(t, cfg.Streamline.NoiseEnabled())
}

func TestLoadConfigEmptyPathIsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "spray: [not, a, map]"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "spray:\n  shapes: [dodecahedron]\n"))
	require.Error(t, err)
	assert.True(t, common.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "dodecahedron")
}

func TestSanitizeOrdersRanges(t *testing.T) {
	spray := SprayConfig{MinLife: 3, MaxLife: 0, MinSpeed: 9, MaxSpeed: 1, MaxParticles: -5, RandomSeed: -1}.Sanitize()
	assert.Equal(t, float32(0.01), spray.MinLife)
	assert.Equal(t, float32(3), spray.MaxLife)
	assert.Equal(t, float32(1), spray.MinSpeed)
	assert.Equal(t, float32(9), spray.MaxSpeed)
	assert.Zero(t, spray.MaxParticles)
	assert.Zero(t, spray.RandomSeed)
	assert.Equal(t, float32(1), spray.ShapeSize)

	stream := StreamlineConfig{Throttle: -1, MinSpeed: 4, MaxSpeed: 2}.Sanitize()
	assert.Zero(t, stream.Throttle)
	assert.Equal(t, float32(2), stream.MinSpeed)
	assert.Equal(t, float32(0.01), stream.Life)
}
