package shadertools

import (
	"strings"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

/** @brief A graphics backend the shaders are built for. */
type Target int

const (
	TargetVulkan Target = iota
	TargetDirectX12
	TargetMetal
)

func (t Target) String() string { return t.Backend().String() }

/** @brief The renderer backend loading the artifacts of t. */
func (t Target) Backend() renderer.BackendType {
	switch t {
	case TargetDirectX12:
		return renderer.BackendTypeDirectX12
	case TargetMetal:
		return renderer.BackendTypeMetal
	}
	return renderer.BackendTypeVulkan
}

/** @brief Macro defined for every shader built for t, e.g. GRAPHICS_BACKEND_METAL. */
func (t Target) Define() string {
	switch t {
	case TargetDirectX12:
		return "GRAPHICS_BACKEND_DIRECTX12"
	case TargetMetal:
		return "GRAPHICS_BACKEND_METAL"
	}
	return "GRAPHICS_BACKEND_VULKAN"
}

/** @brief The transforms applied while compiling GLSL for t. */
func (t Target) Flags() Flags {
	switch t {
	case TargetDirectX12:
		return PatchShaderLayoutsGLSL | PatchShaderLayoutsHLSL
	case TargetMetal:
		return PatchShaderLayoutsGLSL | RemoveUnusedVariables
	}
	return PatchShaderLayoutsGLSL
}

func ParseTarget(s string) (Target, error) {
	b, err := renderer.ParseBackendType(s)
	if err != nil {
		return 0, err
	}
	switch b {
	case renderer.BackendTypeDirectX12:
		return TargetDirectX12, nil
	case renderer.BackendTypeMetal:
		return TargetMetal, nil
	}
	return TargetVulkan, nil
}

// ParseTargets accepts a list of names, each of which may itself be comma
// separated. Duplicates are dropped.
func ParseTargets(names []string) ([]Target, error) {
	var out []Target
	seen := make(map[Target]bool)
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			t, err := ParseTarget(part)
			if err != nil {
				return nil, err
			}
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	if len(out) == 0 {
		return nil, core.NewError(core.KindUsageViolation, "ParseTargets", "no shader target selected")
	}
	return out, nil
}

/** @brief Optional compile transforms. */
type Flags int

const (
	/** @brief Collapse layout(binding = N) into set N, binding 0. */
	PatchShaderLayoutsGLSL Flags = 1 << iota
	/** @brief Give every HLSL register declaration register 0 of its own space. */
	PatchShaderLayoutsHLSL
	/** @brief Strip interface variables the entry point does not use. */
	RemoveUnusedVariables
	/** @brief Negate the Y of the final position write. */
	FlipVertY
)

/** @brief Shading languages handled by the pipeline. */
type Format int

const (
	FormatGLSL Format = iota
	FormatHLSL
	FormatMSL
)

func (f Format) String() string {
	switch f {
	case FormatHLSL:
		return "hlsl"
	case FormatMSL:
		return "msl"
	}
	return "glsl"
}

/** @brief glslc optimisation level. */
type Optimization int

const (
	OptimizePerformance Optimization = iota
	OptimizeSize
	OptimizeNone
)

// ParseOptimization accepts the config names and the glslc spellings.
func ParseOptimization(s string) (Optimization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "performance", "o", "-o":
		return OptimizePerformance, nil
	case "size", "s", "os", "-os":
		return OptimizeSize, nil
	case "none", "0", "o0", "-o0":
		return OptimizeNone, nil
	}
	return 0, core.NewError(core.KindUsageViolation, "ParseOptimization", "unknown optimization level %q", s)
}

func (o Optimization) flag() string {
	switch o {
	case OptimizeSize:
		return "-Os"
	case OptimizeNone:
		return "-O0"
	}
	return "-O"
}
