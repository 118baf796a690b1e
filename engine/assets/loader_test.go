package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gfxhal/engine/assets/loaders"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

func writeStage(t *testing.T, fs *core.MemFileSystem, name string, refl *metadata.ShaderReflection) {
	require.NoError(t, fs.WriteFile("build/vulkan/"+name+".spv", []byte{0x03, 0x02, 0x23, 0x07}))
	require.NoError(t, fs.WriteFile("build/vulkan/"+name+".map", metadata.FormatShaderMap(refl)))
}

type countingLoader struct {
	Loader
	loads, unloads int
}

func (c *countingLoader) Load(name string) (*renderer.ShaderModule, error) {
	c.loads++
	return c.Loader.Load(name)
}

func (c *countingLoader) Unload(m *renderer.ShaderModule) error {
	c.unloads++
	return c.Loader.Unload(m)
}

func newLibrary(t *testing.T) (*ShaderLibrary, *countingLoader) {
	fs := core.NewMemFileSystem()
	writeStage(t, fs, "quad.vert", &metadata.ShaderReflection{
		Attributes: []metadata.AttributeInfo{{Name: "pos", Semantic: metadata.SemanticUndefined, Format: metadata.VertexFormatFloat2}},
		Descriptors: []metadata.DescriptorInfo{
			{Name: "Camera", Type: metadata.DescriptorTypeUniformBuffer, Set: 0, ReadOnly: true},
		},
	})
	writeStage(t, fs, "quad.frag", &metadata.ShaderReflection{
		Descriptors: []metadata.DescriptorInfo{
			{Name: "albedo", Type: metadata.DescriptorTypeCombinedImageSampler, Set: 1, ReadOnly: true},
		},
	})
	writeStage(t, fs, "clash.frag", &metadata.ShaderReflection{
		Descriptors: []metadata.DescriptorInfo{
			{Name: "albedo", Type: metadata.DescriptorTypeCombinedImageSampler, Set: 0, ReadOnly: true},
		},
	})
	loader := &countingLoader{Loader: &loaders.ShaderLoader{FS: fs, Backend: renderer.BackendTypeVulkan, Dir: "build/vulkan"}}
	return NewShaderLibrary(loader), loader
}

func TestShaderLibraryCaches(t *testing.T) {
	lib, loader := newLibrary(t)

	first, err := lib.Get("quad.vert")
	require.NoError(t, err)
	assert.Equal(t, metadata.ShaderStageVertex, first.Stage)
	assert.Equal(t, "quad", first.Name())
	second, err := lib.Get("quad.vert")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.loads)

	lib.Invalidate("quad.vert", "never.loaded")
	assert.Equal(t, 1, loader.unloads)
	third, err := lib.Get("quad.vert")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, loader.loads)
}

func TestShaderLibraryPipeline(t *testing.T) {
	lib, _ := newLibrary(t)

	modules, err := lib.Pipeline("quad.vert", "quad.frag")
	require.NoError(t, err)
	assert.Len(t, modules, 2)
	assert.Equal(t, 2, lib.Len())

	_, err = lib.Pipeline("quad.vert", "clash.frag")
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	lib.Invalidate()
	assert.Zero(t, lib.Len())
}

func TestShaderLibraryMissingArtifact(t *testing.T) {
	lib, _ := newLibrary(t)
	_, err := lib.Get("missing.comp")
	assert.Equal(t, core.KindIOFailure, core.KindOf(err))
	assert.Zero(t, lib.Len())
}
