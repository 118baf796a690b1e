package shadertools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/d3d12"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metal"
)

const (
	triVert = `#version 450
layout(location = 0) in vec2 pos;
void main() { gl_Position = vec4(pos, 0.0, 1.0); }
`
	triFrag = `#version 450
layout(binding = 0) uniform UBO { vec4 color; } ubo;
layout(location = 0) out vec4 outColor;
void main() { outColor = ubo.color; }
`
	triVertReflection = `{ "inputs" : [ { "type" : "vec2", "name" : "pos", "location" : 0 } ] }`
	triFragReflection = `{
    "types" : { "_10" : { "name" : "UBO", "members" : [ { "name" : "color", "type" : "vec4", "offset" : 0 } ] } },
    "ubos" : [ { "type" : "_10", "name" : "UBO", "block_size" : 16, "set" : 0, "binding" : 0 } ]
}`
	triVertHLSL = "struct SPIRV_Cross_Input { float2 pos : TEXCOORD0; };\n"
	triFragHLSL = "cbuffer UBO : register(b0) { float4 ubo_color : packoffset(c0); };\n"
	triVertMSL  = "struct main0_in { float2 pos [[attribute(0)]]; };\n"
	triFragMSL  = "fragment main0_out main0(constant UBO& ubo [[buffer(0)]])\n"
)

// quad.frag samples a texture next to its uniform block.
const (
	quadFrag = `#version 450
layout(binding = 0) uniform UBO { vec4 tint; } ubo;
layout(binding = 1) uniform sampler2D albedo;
layout(location = 0) out vec4 outColor;
void main() { outColor = texture(albedo, vec2(0.5)) * ubo.tint; }
`
	quadFragReflection = `{
    "types" : { "_10" : { "name" : "UBO", "members" : [ { "name" : "tint", "type" : "vec4", "offset" : 0 } ] } },
    "textures" : [ { "type" : "sampler2D", "name" : "albedo", "set" : 1, "binding" : 0 } ],
    "ubos" : [ { "type" : "_10", "name" : "UBO", "block_size" : 16, "set" : 0, "binding" : 0 } ]
}`
	quadFragHLSL = `cbuffer UBO : register(b0, space0) { float4 ubo_tint : packoffset(c0); };
Texture2D<float4> albedo : register(t0, space1);
SamplerState _albedo_sampler : register(s0, space1);
`
	quadFragMSL = "fragment main0_out main0(constant UBO& ubo [[buffer(0)]], texture2d<float> albedo [[texture(0)]], sampler albedoSmplr [[sampler(0)]])\n"
)

func newTriangleFixture(t *testing.T) (*core.MemFileSystem, *fakeRunner) {
	fs := newTestFS()
	require.NoError(t, fs.WriteFile("shaders/tri.vert", []byte(triVert)))
	require.NoError(t, fs.WriteFile("shaders/tri.frag", []byte(triFrag)))
	runner := newFakeRunner(fs)
	runner.reflections["tri.vert"] = triVertReflection
	runner.reflections["tri.frag"] = triFragReflection
	runner.hlsl["tri.vert"] = triVertHLSL
	runner.hlsl["tri.frag"] = triFragHLSL
	runner.msl["tri.vert"] = triVertMSL
	runner.msl["tri.frag"] = triFragMSL
	return fs, runner
}

func paths(t *testing.T, c *Compiler, source string, target Target) Artifacts {
	j, err := c.Paths(Unit{Source: source, Target: target}, "out")
	require.NoError(t, err)
	return j
}

func TestCompileGLSLSkipsFreshOutput(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	c := NewCompiler(fs, runner, Options{})
	j := paths(t, c, "shaders/tri.vert", TargetVulkan)

	require.NoError(t, fs.WriteFile("out/vulkan/tri.vert.spv", []byte("old")))
	src, _ := fs.ModTime("shaders/tri.vert")
	fs.SetModTime("out/vulkan/tri.vert.spv", src.Add(time.Second))

	built, err := c.CompileGLSL(context.Background(), j)
	require.NoError(t, err)
	assert.False(t, built)
	assert.Zero(t, runner.count(ToolGlslc))

	// Equal times are not newer.
	fs.SetModTime("out/vulkan/tri.vert.spv", src)
	built, err = c.CompileGLSL(context.Background(), j)
	require.NoError(t, err)
	assert.True(t, built)
	assert.Equal(t, 1, runner.count(ToolGlslc))
}

func TestCompileGLSLAppliesTargetTransforms(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	c := NewCompiler(fs, runner, Options{Optimization: OptimizeSize, Defines: map[string]string{"QUALITY": "2"}})

	built, err := c.CompileGLSL(context.Background(), paths(t, c, "shaders/tri.frag", TargetMetal))
	require.NoError(t, err)
	assert.True(t, built)

	// compile, decompile, recompile
	require.Len(t, runner.calls, 3)
	first := runner.calls[0]
	assert.Equal(t, []string{"-fshader-stage=frag", "-Os", "-o", "-", "-"}, first.args)
	assert.Contains(t, first.stdin, "#define GRAPHICS_BACKEND_METAL 1\n")
	assert.Contains(t, first.stdin, "#define QUALITY 2\n")
	assert.Equal(t, []string{"--vulkan-semantics", "--remove-unused-variables", "out/metal/tri.frag.cross.spv"}, runner.calls[1].args)
	assert.Contains(t, runner.calls[2].stdin, "layout(set = 0, binding = 0) uniform UBO")

	spv, err := fs.ReadFile("out/metal/tri.frag.spv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(spv), fakeSPIRVHeader))
}

func TestCompileGLSLFlipsVertexY(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	c := NewCompiler(fs, runner, Options{FlipVertY: true})

	_, err := c.CompileGLSL(context.Background(), paths(t, c, "shaders/tri.vert", TargetVulkan))
	require.NoError(t, err)
	require.Len(t, runner.calls, 3)
	assert.Equal(t, ToolSpirvCross, runner.calls[1].tool)
	assert.Equal(t, []string{"--vulkan-semantics", "--flip-vert-y", "out/vulkan/tri.vert.cross.spv"}, runner.calls[1].args)

	// Metal also strips unused variables in the same pass.
	runner.reset()
	_, err = c.CompileGLSL(context.Background(), paths(t, c, "shaders/tri.vert", TargetMetal))
	require.NoError(t, err)
	assert.Equal(t, []string{"--vulkan-semantics", "--remove-unused-variables", "--flip-vert-y", "out/metal/tri.vert.cross.spv"}, runner.calls[1].args)

	// Fragment shaders have no position to flip and skip the round trip.
	runner.reset()
	_, err = c.CompileGLSL(context.Background(), paths(t, c, "shaders/tri.frag", TargetVulkan))
	require.NoError(t, err)
	assert.Equal(t, 1, runner.count(ToolGlslc))
	assert.Zero(t, runner.count(ToolSpirvCross))
}

func TestCompileGLSLToolFailure(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	runner.fail["outColor"] = true
	c := NewCompiler(fs, runner, Options{})

	_, err := c.CompileGLSL(context.Background(), paths(t, c, "shaders/tri.frag", TargetVulkan))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrToolFailure)
	assert.Contains(t, err.Error(), "simulated failure")
	assert.False(t, fs.Exists("out/vulkan/tri.frag.spv"))
}

func TestPathsRejectsUnknownStage(t *testing.T) {
	c := NewCompiler(newTestFS(), nil, Options{})
	_, err := c.Paths(Unit{Source: "shaders/tri.glsl"}, "out")
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}

func TestCompileDirectX12Recipe(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	c := NewCompiler(fs, runner, Options{})

	built, err := c.Compile(context.Background(), Unit{Source: "shaders/tri.frag", Target: TargetDirectX12}, "out")
	require.NoError(t, err)
	assert.True(t, built)

	hlsl, err := fs.ReadFile("out/dx12/tri.frag.hlsl")
	require.NoError(t, err)
	assert.Equal(t, "cbuffer UBO : register(b0, space0) { float4 ubo_color : packoffset(c0); };\n", string(hlsl))
	assert.True(t, fs.Exists("out/dx12/tri.frag.dxc"))
	assert.True(t, fs.Exists("out/dx12/tri.frag.hlsl.map"))

	var dxc invocation
	for _, call := range runner.calls {
		if call.tool == ToolDxc {
			dxc = call
		}
	}
	assert.Equal(t, []string{"-T", "ps_6_0", "-E", "main", "-D", "DIRECT3D12", "-O3", "-all-resources-bound",
		"-Fo", "out/dx12/tri.frag.dxc", "-Fc", "out/dx12/tri.frag.dxc.info", "out/dx12/tri.frag.hlsl"}, dxc.args)

	// A second run finds everything fresh.
	runner.reset()
	built, err = c.Compile(context.Background(), Unit{Source: "shaders/tri.frag", Target: TargetDirectX12}, "out")
	require.NoError(t, err)
	assert.False(t, built)
	assert.Empty(t, runner.calls)
}

func TestCompileMetalRecipe(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	c := NewCompiler(fs, runner, Options{})

	_, err := c.Compile(context.Background(), Unit{Source: "shaders/tri.vert", Target: TargetMetal}, "out")
	require.NoError(t, err)
	assert.Equal(t, 2, runner.count(ToolXcrun))
	assert.True(t, fs.Exists("out/metal/tri.vert.air"))
	assert.True(t, fs.Exists("out/metal/tri.vert.metallib"))

	mslMap, err := fs.ReadFile("out/metal/tri.vert.metal.map")
	require.NoError(t, err)
	assert.Contains(t, string(mslMap), "pos UNDEFINED 0 VERTEXFORMAT_FLOAT2")
}

func TestCompileExpectsNativeOutput(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	c := NewCompiler(fs, &silentDxc{runner}, Options{})

	_, err := c.Compile(context.Background(), Unit{Source: "shaders/tri.vert", Target: TargetDirectX12}, "out")
	assert.ErrorIs(t, err, core.ErrToolFailure)
}

// silentDxc succeeds without writing the object file.
type silentDxc struct{ *fakeRunner }

func (s *silentDxc) Run(ctx context.Context, tool Tool, args []string, stdin []byte) ([]byte, error) {
	if tool == ToolDxc {
		return nil, nil
	}
	return s.fakeRunner.Run(ctx, tool, args, stdin)
}

func TestNativeMapLookupFailure(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	runner.msl["tri.frag"] = "fragment main0_out main0()\n"
	c := NewCompiler(fs, runner, Options{})

	_, err := c.Compile(context.Background(), Unit{Source: "shaders/tri.frag", Target: TargetMetal}, "out")
	assert.Equal(t, core.KindLookupFailure, core.KindOf(err))
}

// The vertex shader takes pos (vec2, location 0) and the fragment shader a
// uniform block with one vec4 at set 0. Every target ends with a binding map
// the renderer loads into a plan with one attribute and one descriptor.
func TestEndToEndTriangle(t *testing.T) {
	for _, target := range []Target{TargetVulkan, TargetDirectX12, TargetMetal} {
		t.Run(target.String(), func(t *testing.T) {
			fs, runner := newTriangleFixture(t)
			c := NewCompiler(fs, runner, Options{Workers: 2})

			res, err := c.Build(context.Background(), []string{"shaders/tri.vert", "shaders/tri.frag"}, "out", []Target{target})
			require.NoError(t, err)
			require.True(t, res.OK())
			assert.Len(t, res.Built, 2)

			_, mapExt := renderer.ArtifactExtensions(target.Backend())
			vertMap, err := fs.ReadFile("out/" + target.String() + "/tri.vert" + mapExt)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(vertMap), "INPUT_ATTRIBUTES 1\n"))
			fragMap, err := fs.ReadFile("out/" + target.String() + "/tri.frag" + mapExt)
			require.NoError(t, err)
			assert.Contains(t, string(fragMap), "DESCRIPTORS 1\n")
			assert.Contains(t, string(fragMap), "UNIFORM_BUFFER_INFOS 1\n")
			assert.Contains(t, string(fragMap), "color 0 16 0 0\n")

			vert, err := renderer.LoadShaderModule(fs, target.Backend(), "out/"+target.String()+"/tri.vert")
			require.NoError(t, err)
			frag, err := renderer.LoadShaderModule(fs, target.Backend(), "out/"+target.String()+"/tri.frag")
			require.NoError(t, err)
			plan, err := renderer.MergeBindings(vert, frag)
			require.NoError(t, err)
			require.Len(t, plan.Attributes, 1)
			require.Len(t, plan.Entries, 1)

			attr, err := plan.AttributeIndex("pos")
			require.NoError(t, err)
			assert.Equal(t, 0, attr)
			desc, err := plan.DescriptorIndex("UBO")
			require.NoError(t, err)
			assert.Equal(t, 0, desc)
			assert.Equal(t, metadata.DescriptorTypeUniformBuffer, plan.Entries[0].Type)
		})
	}
}

// The fragment shader of the quad binds a uniform block and a texture. On
// Metal both sit at index 0 of their own argument table, on D3D12 they use
// the spaces of their sets.
func TestEndToEndTexturedQuad(t *testing.T) {
	for _, target := range []Target{TargetVulkan, TargetDirectX12, TargetMetal} {
		t.Run(target.String(), func(t *testing.T) {
			fs, runner := newTriangleFixture(t)
			require.NoError(t, fs.WriteFile("shaders/quad.frag", []byte(quadFrag)))
			runner.reflections["quad.frag"] = quadFragReflection
			runner.hlsl["quad.frag"] = quadFragHLSL
			runner.msl["quad.frag"] = quadFragMSL
			c := NewCompiler(fs, runner, Options{Workers: 2})

			res, err := c.Build(context.Background(), []string{"shaders/tri.vert", "shaders/quad.frag"}, "out", []Target{target})
			require.NoError(t, err)
			require.True(t, res.OK())

			dir := "out/" + target.String() + "/"
			vert, err := renderer.LoadShaderModule(fs, target.Backend(), dir+"tri.vert")
			require.NoError(t, err)
			frag, err := renderer.LoadShaderModule(fs, target.Backend(), dir+"quad.frag")
			require.NoError(t, err)
			plan, err := renderer.MergeBindings(vert, frag)
			require.NoError(t, err)
			require.Len(t, plan.Entries, 2)
			require.Len(t, plan.Attributes, 1)
			assert.Equal(t, "UBO", plan.Entries[0].Name)
			assert.Equal(t, "albedo", plan.Entries[1].Name)
			assert.Equal(t, metadata.DescriptorTypeCombinedImageSampler, plan.Entries[1].Type)

			switch target {
			case TargetDirectX12:
				params := d3d12.AssignSlots(plan)
				require.Len(t, params, 3)
				assert.Equal(t, uint32(0), params[0].RegisterSpace)
				assert.Equal(t, uint32(1), params[1].RegisterSpace)
				hlsl, err := fs.ReadFile(dir + "quad.frag.hlsl")
				require.NoError(t, err)
				assert.Contains(t, string(hlsl), "register(t0, space1)")
			case TargetMetal:
				fragMap, err := fs.ReadFile(dir + "quad.frag.metal.map")
				require.NoError(t, err)
				assert.Contains(t, string(fragMap), "albedo DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER 1 0 0\n")
				assert.Contains(t, string(fragMap), "UBO DESCRIPTOR_TYPE_UNIFORM_BUFFER 0 0\n")

				require.NoError(t, metal.AssignSlots(plan))
				assert.Equal(t, []metadata.PhysicalSlot{
					{Kind: metadata.SlotKindBuffer, Index: 0, Stages: metadata.ShaderStageFragment},
				}, plan.Entries[0].Slots)
				assert.Equal(t, []metadata.PhysicalSlot{
					{Kind: metadata.SlotKindTexture, Index: 0, Stages: metadata.ShaderStageFragment},
					{Kind: metadata.SlotKindSampler, Index: 0, Stages: metadata.ShaderStageFragment},
				}, plan.Entries[1].Slots)
				assert.Equal(t, uint32(0), plan.Attributes[0].Slot)
			}
		})
	}
}
