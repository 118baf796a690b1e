package renderer

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// ShaderModule is one compiled stage together with its reflection.
type ShaderModule struct {
	Stage      metadata.ShaderStage
	Path       string
	Code       []byte
	Reflection *metadata.ShaderReflection
}

// LoadShaderModule reads the compiled artifact and the binding map produced
// for backend next to path. path names the shader source, e.g.
// "build/shaders/quad.vert"; the stage is taken from its extension.
func LoadShaderModule(fsys core.FileSystem, backend BackendType, path string) (*ShaderModule, error) {
	stage, ok := metadata.ShaderStageFromExt(filepath.Ext(path))
	if !ok {
		return nil, core.NewError(core.KindLookupFailure, "LoadShaderModule", "cannot infer shader stage of %q", path)
	}
	codeExt, mapExt := ArtifactExtensions(backend)

	code, err := fsys.ReadFile(path + codeExt)
	if err != nil {
		return nil, core.WrapError(core.KindIOFailure, "LoadShaderModule", err, "reading shader code")
	}
	mapData, err := fsys.ReadFile(path + mapExt)
	if err != nil {
		return nil, core.WrapError(core.KindIOFailure, "LoadShaderModule", err, "reading binding map")
	}
	refl, err := metadata.ParseShaderMap(bytes.NewReader(mapData))
	if err != nil {
		return nil, core.WrapError(core.KindIOFailure, "LoadShaderModule", err, "parsing %s", path+mapExt)
	}
	refl.SetStage(stage)
	if stage != metadata.ShaderStageVertex {
		refl.Attributes = nil
	}
	return &ShaderModule{Stage: stage, Path: path, Code: code, Reflection: refl}, nil
}

func (m *ShaderModule) Name() string {
	return strings.TrimSuffix(filepath.Base(m.Path), filepath.Ext(m.Path))
}
