package effect

import (
	"embed"
	"strings"

	"github.com/Carmen-Shannon/kvant-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/kvant-go/engine/simulation"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed shaders/*.wgsl
var shaders embed.FS

// Program and material names.
const (
	SprayProgram      = "spray"
	StreamlineProgram = "streamline"
	TunnelProgram     = "tunnel"

	SprayMaterial      = "spray.surface"
	StreamlineMaterial = "streamline.line"
	TunnelMaterial     = "tunnel.surface"
	TunnelLineMaterial = "tunnel.line"
)

// Parameter and texture names shared by the programs and the effects.
const (
	paramEmitterPos  = "emitter_pos"
	paramEmitterSize = "emitter_size"
	paramLifeParams  = "life_params"
	paramDirection   = "direction"
	paramSpeedParams = "speed_params"
	paramNoiseParams = "noise_params"
	paramSeed        = "seed"
	paramConfig      = "config"
	paramScaleParams = "scale_params"
	paramColor       = "color"
	paramTail        = "tail"
	paramSize        = "size"
	paramOffset      = "offset"
	paramPeriod      = "period"
	paramDensity     = "density"
	paramDisplace    = "displace"
	texPosition      = "position_tex"
	texRotation      = "rotation_tex"
	texNormal        = "normal_tex"
	texPreviousLine  = "position_tex1"
	texCurrentLine   = "position_tex2"
)

const (
	wgslCommon       = "common.wgsl"
	wgslSprayKernel  = "spray_kernel.wgsl"
	wgslStreamKernel = "streamline_kernel.wgsl"
	wgslTunnelKernel = "tunnel_kernel.wgsl"
)

// Uniform layouts. Order matters: it is the field order of the WGSL Params and DrawParams structs.
var (
	sprayKernelParameters = []string{
		paramEmitterPos, paramEmitterSize, paramLifeParams, paramDirection, paramSpeedParams,
		paramNoiseParams, paramSeed, simulation.ParamDeltaTime, simulation.ParamTime,
	}
	streamlineKernelParameters = []string{
		paramEmitterPos, paramEmitterSize, paramDirection, paramSpeedParams, paramNoiseParams,
		paramConfig, simulation.ParamDeltaTime, simulation.ParamTime,
	}
	tunnelKernelParameters = []string{
		paramSize, paramOffset, paramPeriod, paramDensity, paramDisplace,
		simulation.ParamDeltaTime, simulation.ParamTime,
	}
	sprayMaterialParameters = []string{
		simulation.ParamBufferOffset, simulation.ParamSegmentBase, paramScaleParams, paramColor,
	}
	streamlineMaterialParameters = []string{
		simulation.ParamBufferOffset, simulation.ParamSegmentBase, paramColor, paramTail,
	}
	tunnelMaterialParameters = []string{
		simulation.ParamBufferOffset, simulation.ParamSegmentBase, paramColor,
	}
)

// source concatenates the shared helpers and the named program files.
func source(files ...string) string {
	var sb strings.Builder
	for _, name := range append([]string{wgslCommon}, files...) {
		data, err := shaders.ReadFile("shaders/" + name)
		if err != nil {
			panic("effect: missing embedded shader " + name)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Programs returns fresh compute and render pipelines for every effect. Register them with the
// renderer before ticking any effect driver.
//
// Returns:
//   - []pipeline.Pipeline: the kernel passes and materials of Spray, Streamline and Tunnel
func Programs() []pipeline.Pipeline {
	sprayInit := source(wgslSprayKernel, "spray_init.wgsl")
	sprayUpdate := source(wgslSprayKernel, "spray_update.wgsl")
	streamInit := source(wgslStreamKernel, "streamline_init.wgsl")
	streamUpdate := source(wgslStreamKernel, "streamline_update.wgsl")
	tunnelConstruct := source(wgslTunnelKernel, "tunnel_construct.wgsl")
	tunnelNormals := source(wgslTunnelKernel, "tunnel_normals.wgsl")

	sprayKernel := func(pass int, src, entry string) pipeline.Pipeline {
		return pipeline.NewKernel(SprayProgram, pass,
			pipeline.WithSource(src),
			pipeline.WithComputeEntryPoint(entry),
			pipeline.WithParameters(sprayKernelParameters...),
		)
	}
	tunnelKernel := func(pass int, src, entry string) pipeline.Pipeline {
		return pipeline.NewKernel(TunnelProgram, pass,
			pipeline.WithSource(src),
			pipeline.WithComputeEntryPoint(entry),
			pipeline.WithParameters(tunnelKernelParameters...),
		)
	}

	return []pipeline.Pipeline{
		sprayKernel(0, sprayInit, "init_position"),
		sprayKernel(1, sprayInit, "init_rotation"),
		sprayKernel(2, sprayUpdate, "update_position"),
		sprayKernel(3, sprayUpdate, "update_rotation"),
		pipeline.NewPipeline(SprayMaterial, pipeline.PipelineTypeRender,
			pipeline.WithSource(source("spray_surface.wgsl")),
			pipeline.WithParameters(sprayMaterialParameters...),
			pipeline.WithTextures(texPosition, texRotation),
			pipeline.WithCullMode(wgpu.CullModeBack),
		),

		pipeline.NewKernel(StreamlineProgram, 0,
			pipeline.WithSource(streamInit),
			pipeline.WithParameters(streamlineKernelParameters...),
		),
		pipeline.NewKernel(StreamlineProgram, 1,
			pipeline.WithSource(streamUpdate),
			pipeline.WithParameters(streamlineKernelParameters...),
		),
		pipeline.NewPipeline(StreamlineMaterial, pipeline.PipelineTypeRender,
			pipeline.WithSource(source("streamline_line.wgsl")),
			pipeline.WithParameters(streamlineMaterialParameters...),
			pipeline.WithTextures(texPreviousLine, texCurrentLine),
			pipeline.WithTopology(wgpu.PrimitiveTopologyLineList),
			pipeline.WithBlendEnabled(true),
			pipeline.WithDepthWriteEnabled(false),
		),

		tunnelKernel(0, tunnelConstruct, "cs_main"),
		tunnelKernel(1, tunnelNormals, "normal_abc"),
		tunnelKernel(2, tunnelNormals, "normal_acd"),
		pipeline.NewPipeline(TunnelMaterial, pipeline.PipelineTypeRender,
			pipeline.WithSource(source("tunnel_surface.wgsl")),
			pipeline.WithParameters(tunnelMaterialParameters...),
			pipeline.WithTextures(texPosition, texNormal),
		),
		pipeline.NewPipeline(TunnelLineMaterial, pipeline.PipelineTypeRender,
			pipeline.WithSource(source("tunnel_line.wgsl")),
			pipeline.WithParameters(tunnelMaterialParameters...),
			pipeline.WithTextures(texPosition),
			pipeline.WithTopology(wgpu.PrimitiveTopologyLineList),
			pipeline.WithBlendEnabled(true),
			pipeline.WithDepthWriteEnabled(false),
		),
	}
}
