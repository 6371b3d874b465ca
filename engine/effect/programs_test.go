package effect

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/kvant-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	structField    = regexp.MustCompile(`^\s*(\w+)\s*:`)
	textureBinding = regexp.MustCompile(`@binding\((\d+)\)\s*var\s+(\w+)\s*:\s*texture_2d`)
)

// uniformFields returns the field names of the named WGSL struct in declaration order.
func uniformFields(t *testing.T, src, name string) []string {
	t.Helper()
	start := strings.Index(src, "struct "+name+" {")
	require.GreaterOrEqual(t, start, 0, "struct %s not found", name)
	body := src[start:]
	body = body[strings.Index(body, "{")+1 : strings.Index(body, "}")]

	var fields []string
	for _, line := range strings.Split(body, "\n") {
		if m := structField.FindStringSubmatch(line); m != nil {
			fields = append(fields, m[1])
		}
	}
	return fields
}

func boundTextures(src string) []string {
	matches := textureBinding.FindAllStringSubmatch(src, -1)
	sort.Slice(matches, func(i, j int) bool {
		a, _ := strconv.Atoi(matches[i][1])
		b, _ := strconv.Atoi(matches[j][1])
		return a < b
	})
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[2])
	}
	return names
}

func programsByKey(t *testing.T) map[string]pipeline.Pipeline {
	t.Helper()
	out := make(map[string]pipeline.Pipeline)
	for _, p := range Programs() {
		_, dup := out[p.PipelineKey()]
		require.False(t, dup, "duplicate pipeline %s", p.PipelineKey())
		out[p.PipelineKey()] = p
	}
	return out
}

func TestProgramsCoverEveryKernel(t *testing.T) {
	programs := programsByKey(t)
	for key := range SoftwareKernels() {
		p, ok := programs[key]
		require.True(t, ok, "no pipeline for kernel %s", key)
		assert.Equal(t, pipeline.PipelineTypeCompute, p.Type())
	}
	assert.Len(t, programs, len(SoftwareKernels())+4)
}

func TestProgramUniformsMatchParameterOrder(t *testing.T) {
	for _, p := range Programs() {
		t.Run(p.PipelineKey(), func(t *testing.T) {
			src := p.Source()
			if p.Type() == pipeline.PipelineTypeCompute {
				assert.Equal(t, p.Parameters(), uniformFields(t, src, "Params"))
				assert.Contains(t, src, "fn "+p.ComputeEntryPoint()+"(")
				return
			}
			fields := uniformFields(t, src, "DrawParams")
			require.GreaterOrEqual(t, len(fields), 2)
			assert.Equal(t, []string{"view_proj", "model"}, fields[:2])
			assert.Equal(t, p.Parameters(), fields[2:])
			assert.Equal(t, p.Textures(), boundTextures(src))
		})
	}
}

func TestEffectsMatchTheirPrograms(t *testing.T) {
	programs := programsByKey(t)

	spray, err := NewSpray(DefaultConfig().Spray)
	require.NoError(t, err)
	tunnel := NewTunnel(DefaultConfig().Tunnel)
	tunnel.SetLineColor(DefaultConfig().Tunnel.SurfaceColor)
	effects := []simulation.Effect{spray, NewStreamline(DefaultConfig().Streamline), tunnel}

	for _, e := range effects {
		t.Run(e.Name(), func(t *testing.T) {
			passes := append(e.InitPasses(), e.UpdatePasses()...)
			params := e.KernelParameters()
			for _, pass := range passes {
				p, ok := programs[pipeline.KernelKey(e.Name(), pass.ID)]
				require.True(t, ok, "pass %d has no pipeline", pass.ID)
				for name := range params {
					assert.Contains(t, p.Parameters(), name)
				}
			}

			for _, draw := range e.DrawPasses() {
				p, ok := programs[draw.Material]
				require.True(t, ok, "material %s is not registered", draw.Material)
				for _, tex := range p.Textures() {
					assert.Contains(t, draw.Textures, tex)
				}
				for name := range e.MaterialParameters() {
					assert.Contains(t, p.Parameters(), name)
				}
				for name := range draw.Parameters {
					assert.Contains(t, p.Parameters(), name)
				}
			}
		})
	}
}
