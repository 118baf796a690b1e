package loaders

import (
	"path/filepath"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

// ShaderLoader reads the artifacts the shader build tool wrote for one
// backend, e.g. build/shaders/vulkan.
type ShaderLoader struct {
	FS      core.FileSystem
	Backend renderer.BackendType
	Dir     string
}

func (sl *ShaderLoader) Load(name string) (*renderer.ShaderModule, error) {
	m, err := renderer.LoadShaderModule(sl.FS, sl.Backend, filepath.Join(sl.Dir, name))
	if err != nil {
		return nil, err
	}
	core.LogDebug("loaded %s shader %s (%d bytes)", sl.Backend, m.Name(), len(m.Code))
	return m, nil
}

// Unload is a no-op: modules own no native handles until a backend builds a
// pipeline from them.
func (sl *ShaderLoader) Unload(*renderer.ShaderModule) error {
	return nil
}
