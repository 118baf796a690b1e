package shadertools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

var triangle = []string{"shaders/tri.vert", "shaders/tri.frag"}

func TestBuildToolFailureKeepsGoing(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	runner.fail["outColor"] = true
	c := NewCompiler(fs, runner, Options{Workers: 2})

	res, err := c.Build(context.Background(), triangle, "out", []Target{TargetVulkan})
	require.NoError(t, err)
	assert.False(t, res.OK())
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "shaders/tri.frag", res.Failed[0].Source)
	assert.ErrorIs(t, res.Failed[0].Err, core.ErrToolFailure)
	assert.Equal(t, []Unit{{Source: "shaders/tri.vert", Target: TargetVulkan}}, res.Built)
	assert.True(t, fs.Exists("out/vulkan/tri.vert.map"))

	// released
	lock, err := fs.Lock("out/"+LockFileName, 0)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestBuildStopsOnMissingInclude(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	require.NoError(t, fs.WriteFile("shaders/bad.frag", []byte("#include \"missing.h\"\n")))
	c := NewCompiler(fs, runner, Options{Workers: 1})

	res, err := c.Build(context.Background(), []string{"shaders/bad.frag"}, "out", []Target{TargetVulkan, TargetMetal})
	require.Error(t, err)
	assert.Equal(t, core.KindIOFailure, core.KindOf(err))
	assert.Contains(t, err.Error(), "missing.h")
	assert.NotEmpty(t, res.Failed)
	assert.Empty(t, res.Built)
	assert.Zero(t, runner.count(ToolGlslc))
}

func TestBuildRefusesLockedOutput(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	lock, err := fs.Lock("out/"+LockFileName, 0)
	require.NoError(t, err)
	c := NewCompiler(fs, runner, Options{})

	_, err = c.Build(context.Background(), triangle, "out", []Target{TargetVulkan})
	assert.Equal(t, core.KindIOFailure, core.KindOf(err))
	assert.Empty(t, runner.calls)

	require.NoError(t, lock.Release())
	res, err := c.Build(context.Background(), triangle, "out", []Target{TargetVulkan})
	require.NoError(t, err)
	assert.Len(t, res.Built, 2)
}

func TestBuildSkipsFreshUnits(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	c := NewCompiler(fs, runner, Options{Workers: 4})
	targets := []Target{TargetVulkan, TargetDirectX12}

	first, err := c.Build(context.Background(), triangle, "out", targets)
	require.NoError(t, err)
	assert.Len(t, first.Built, 4)
	assert.NotEmpty(t, first.ID)

	runner.reset()
	second, err := c.Build(context.Background(), triangle, "out", targets)
	require.NoError(t, err)
	assert.Empty(t, second.Built)
	assert.Len(t, second.Skipped, 4)
	assert.Empty(t, runner.calls)
	assert.NotEqual(t, first.ID, second.ID)

	// Touching one source rebuilds it for every target only.
	require.NoError(t, fs.WriteFile("shaders/tri.frag", []byte(triFrag)))
	third, err := c.Build(context.Background(), triangle, "out", targets)
	require.NoError(t, err)
	assert.Equal(t, []Unit{
		{Source: "shaders/tri.frag", Target: TargetDirectX12},
		{Source: "shaders/tri.frag", Target: TargetVulkan},
	}, third.Built)
}

func TestBuildCancelled(t *testing.T) {
	fs, runner := newTriangleFixture(t)
	c := NewCompiler(fs, runner, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Build(ctx, triangle, "out", []Target{TargetVulkan})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Built)
	assert.Empty(t, runner.calls)
}

func TestFindSources(t *testing.T) {
	fs, _ := newTriangleFixture(t)
	require.NoError(t, fs.WriteFile("shaders/common.h", []byte("")))
	require.NoError(t, fs.WriteFile("shaders/fx/blur.comp", []byte("")))

	files, err := FindSources(fs, []string{"shaders"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"shaders/fx/blur.comp", "shaders/tri.frag", "shaders/tri.vert"}, files)

	files, err = FindSources(fs, []string{"shaders"}, "tri")
	require.NoError(t, err)
	assert.Equal(t, []string{"shaders/tri.frag", "shaders/tri.vert"}, files)
}
