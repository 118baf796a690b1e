package shadertools

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// SourceExtensions are the shader sources the pipeline picks up.
var SourceExtensions = []string{".vert", ".frag", ".comp"}

// Artifact extensions appended to the source file name.
const (
	ExtSPIRV       = ".spv"
	ExtMap         = ".map"
	ExtHLSL        = ".hlsl"
	ExtHLSLMap     = ".hlsl.map"
	ExtDXC         = ".dxc"
	ExtMSL         = ".metal"
	ExtMSLMap      = ".metal.map"
	ExtAIR         = ".air"
	ExtMetalLib    = ".metallib"
	ExtHLSLListing = ".dxc.info"
	// Scratch SPIR-V decompiled by CrossTransform.
	ExtCrossSPIRV = ".cross.spv"
)

type Options struct {
	IncludeDirs  []string
	Defines      map[string]string
	Optimization Optimization
	// FlipVertY negates the Y of the vertex position output on every target.
	FlipVertY bool
	// Workers bounds how many files build at once.
	Workers int
	// LockTimeout is how long Build waits for another build of the same
	// output directory.
	LockTimeout time.Duration
}

// Compiler drives the external tools over a FileSystem.
type Compiler struct {
	fs     core.FileSystem
	runner ToolRunner
	opts   Options
}

func NewCompiler(fsys core.FileSystem, runner ToolRunner, opts Options) *Compiler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Compiler{fs: fsys, runner: runner, opts: opts}
}

func (c *Compiler) Options() Options { return c.opts }

// Unit is one source file built for one target.
type Unit struct {
	Source string
	Target Target
}

func (u Unit) String() string { return u.Target.String() + ":" + u.Source }

// Artifacts resolves the paths every stage of a unit reads and writes.
type Artifacts struct {
	Unit
	stage metadata.ShaderStage
	// out is the output path without artifact extension, e.g. out/metal/quad.vert.
	out string
}

// Paths resolves the artifacts of u below outDir.
func (c *Compiler) Paths(u Unit, outDir string) (Artifacts, error) {
	stage, ok := metadata.ShaderStageFromExt(filepath.Ext(u.Source))
	if !ok {
		return Artifacts{}, core.NewError(core.KindUsageViolation, "Compile", "%s is not a .vert, .frag or .comp file", u.Source)
	}
	return Artifacts{
		Unit:  u,
		stage: stage,
		out:   filepath.Join(TargetDir(outDir, u.Target), filepath.Base(u.Source)),
	}, nil
}

// TargetDir is where the artifacts of target are written below outDir.
func TargetDir(outDir string, target Target) string {
	return filepath.Join(outDir, target.String())
}

func (j Artifacts) path(ext string) string { return j.out + ext }

func stageName(s metadata.ShaderStage) string {
	switch s {
	case metadata.ShaderStageFragment:
		return "frag"
	case metadata.ShaderStageCompute:
		return "comp"
	}
	return "vert"
}

func dxcProfile(s metadata.ShaderStage) string {
	switch s {
	case metadata.ShaderStageFragment:
		return "ps_6_0"
	case metadata.ShaderStageCompute:
		return "cs_6_0"
	}
	return "vs_6_0"
}

// stale reports whether out has to be rebuilt from in.
func (c *Compiler) stale(in, out string) (bool, error) {
	return core.SrcNewerThanOut(c.fs, in, out)
}

func (c *Compiler) defines(t Target) map[string]string {
	out := make(map[string]string, len(c.opts.Defines)+1)
	for k, v := range c.opts.Defines {
		out[k] = v
	}
	out[t.Define()] = "1"
	return out
}

// flags are the transforms of the unit's target plus the ones switched on
// by the options. Only vertex shaders write the position flipped by
// FlipVertY.
func (c *Compiler) flags(j Artifacts) Flags {
	flags := j.Target.Flags()
	if c.opts.FlipVertY && j.stage == metadata.ShaderStageVertex {
		flags |= FlipVertY
	}
	return flags
}

func (c *Compiler) glslc(ctx context.Context, j Artifacts, src string) ([]byte, error) {
	args := []string{
		"-fshader-stage=" + stageName(j.stage),
		c.opts.Optimization.flag(),
		"-o", "-",
		"-",
	}
	spv, err := c.runner.Run(ctx, ToolGlslc, args, []byte(src))
	if err != nil {
		return nil, err
	}
	return spv, nil
}

// CompileGLSL preprocesses the source, applies the GLSL transforms of the
// target and writes the SPIR-V. It reports whether it did any work.
func (c *Compiler) CompileGLSL(ctx context.Context, j Artifacts) (bool, error) {
	out := j.path(ExtSPIRV)
	stale, err := c.stale(j.Source, out)
	if err != nil || !stale {
		return false, err
	}
	src, err := Preprocess(c.fs, j.Source, c.opts.IncludeDirs, c.defines(j.Target))
	if err != nil {
		return false, err
	}
	flags := c.flags(j)
	if flags&(RemoveUnusedVariables|FlipVertY) != 0 {
		if src, err = c.CrossTransform(ctx, j, src, flags); err != nil {
			return false, err
		}
	}
	if flags&PatchShaderLayoutsGLSL != 0 {
		if src, err = PatchLayoutsGLSL(src); err != nil {
			return false, err
		}
	}
	spv, err := c.glslc(ctx, j, src)
	if err != nil {
		return false, err
	}
	return true, c.fs.WriteFile(out, spv)
}

// CrossTransform compiles src, decompiles it with spirv-cross applying the
// interface and Y flip transforms, and returns the new GLSL text.
func (c *Compiler) CrossTransform(ctx context.Context, j Artifacts, src string, flags Flags) (string, error) {
	spv, err := c.glslc(ctx, j, src)
	if err != nil {
		return "", err
	}
	tmp := j.path(ExtCrossSPIRV)
	if err := c.fs.WriteFile(tmp, spv); err != nil {
		return "", err
	}
	args := []string{"--vulkan-semantics"}
	if flags&RemoveUnusedVariables != 0 {
		args = append(args, "--remove-unused-variables")
	}
	if flags&FlipVertY != 0 {
		args = append(args, "--flip-vert-y")
	}
	glsl, err := c.runner.Run(ctx, ToolSpirvCross, append(args, tmp), nil)
	if err != nil {
		return "", err
	}
	return string(glsl), nil
}

func (c *Compiler) reflect(ctx context.Context, j Artifacts) (*Reflection, error) {
	data, err := c.runner.Run(ctx, ToolSpirvCross, []string{"--reflect", j.path(ExtSPIRV)}, nil)
	if err != nil {
		return nil, err
	}
	return ParseReflection(data)
}

func (c *Compiler) writeMap(path string, r *Reflection, stage metadata.ShaderStage) error {
	refl, err := r.ToShaderReflection(stage)
	if err != nil {
		return err
	}
	return c.fs.WriteFile(path, metadata.FormatShaderMap(refl))
}

// GenerateMap writes the binding map of the SPIR-V module.
func (c *Compiler) GenerateMap(ctx context.Context, j Artifacts) (bool, error) {
	out := j.path(ExtMap)
	stale, err := c.stale(j.path(ExtSPIRV), out)
	if err != nil || !stale {
		return false, err
	}
	r, err := c.reflect(ctx, j)
	if err != nil {
		return false, err
	}
	return true, c.writeMap(out, r, j.stage)
}

// Convert translates the SPIR-V module into HLSL or MSL. HLSL register
// declarations are patched when the target asks for it.
func (c *Compiler) Convert(ctx context.Context, j Artifacts, format Format) (bool, error) {
	var out string
	var args []string
	switch format {
	case FormatHLSL:
		out, args = j.path(ExtHLSL), []string{"--hlsl", "--shader-model", "60"}
	case FormatMSL:
		out, args = j.path(ExtMSL), []string{"--msl"}
	default:
		return false, core.NewError(core.KindUsageViolation, "Convert", "cannot convert to %s", format)
	}
	stale, err := c.stale(j.path(ExtSPIRV), out)
	if err != nil || !stale {
		return false, err
	}
	text, err := c.runner.Run(ctx, ToolSpirvCross, append(args, j.path(ExtSPIRV)), nil)
	if err != nil {
		return false, err
	}
	src := string(text)
	if format == FormatHLSL && c.flags(j)&PatchShaderLayoutsHLSL != 0 {
		if src, err = PatchLayoutsHLSL(src); err != nil {
			return false, err
		}
	}
	return true, c.fs.WriteFile(out, []byte(src))
}

// CompileHLSL runs dxc over the translated HLSL.
func (c *Compiler) CompileHLSL(ctx context.Context, j Artifacts) (bool, error) {
	in, out := j.path(ExtHLSL), j.path(ExtDXC)
	stale, err := c.stale(in, out)
	if err != nil || !stale {
		return false, err
	}
	args := []string{
		"-T", dxcProfile(j.stage),
		"-E", "main",
		"-D", "DIRECT3D12",
		"-O3",
		"-all-resources-bound",
		"-Fo", out,
		"-Fc", j.path(ExtHLSLListing),
		in,
	}
	if _, err := c.runner.Run(ctx, ToolDxc, args, nil); err != nil {
		return false, err
	}
	return true, c.expectOutput(ToolDxc, out)
}

// CompileMSL builds the metallib through an intermediate AIR file.
func (c *Compiler) CompileMSL(ctx context.Context, j Artifacts) (bool, error) {
	in, air, out := j.path(ExtMSL), j.path(ExtAIR), j.path(ExtMetalLib)
	stale, err := c.stale(in, out)
	if err != nil || !stale {
		return false, err
	}
	if _, err := c.runner.Run(ctx, ToolXcrun, []string{"-sdk", "macosx", "metal", "-c", in, "-o", air}, nil); err != nil {
		return false, err
	}
	if _, err := c.runner.Run(ctx, ToolXcrun, []string{"-sdk", "macosx", "metallib", air, "-o", out}, nil); err != nil {
		return false, err
	}
	return true, c.expectOutput(ToolXcrun, out)
}

func (c *Compiler) expectOutput(tool Tool, path string) error {
	if c.fs.Exists(path) {
		return nil
	}
	return core.NewError(core.KindToolFailure, tool.String(), "exited cleanly without writing %s", path)
}

// GenerateNativeMap writes the binding map of the translated HLSL or MSL:
// the SPIR-V reflection patched with what the cross compiler emitted.
func (c *Compiler) GenerateNativeMap(ctx context.Context, j Artifacts, format Format) (bool, error) {
	var in, out string
	var patch func(*Reflection, metadata.ShaderStage, string) error
	switch format {
	case FormatHLSL:
		in, out, patch = j.path(ExtHLSL), j.path(ExtHLSLMap), PatchReflectionHLSL
	case FormatMSL:
		in, out, patch = j.path(ExtMSL), j.path(ExtMSLMap), PatchReflectionMSL
	default:
		return false, core.NewError(core.KindUsageViolation, "GenerateNativeMap", "no native map for %s", format)
	}
	stale, err := c.stale(in, out)
	if err != nil || !stale {
		return false, err
	}
	text, err := c.fs.ReadFile(in)
	if err != nil {
		return false, err
	}
	r, err := c.reflect(ctx, j)
	if err != nil {
		return false, err
	}
	if err := patch(r, j.stage, string(text)); err != nil {
		return false, core.WrapError(core.KindLookupFailure, "GenerateNativeMap", err, "%s", in)
	}
	return true, c.writeMap(out, r, j.stage)
}

type stageFunc func(context.Context, Artifacts) (bool, error)

// recipe lists the stages building one unit, in order.
func (c *Compiler) recipe(t Target) []stageFunc {
	stages := []stageFunc{c.CompileGLSL, c.GenerateMap}
	switch t {
	case TargetDirectX12:
		stages = append(stages,
			func(ctx context.Context, j Artifacts) (bool, error) { return c.Convert(ctx, j, FormatHLSL) },
			c.CompileHLSL,
			func(ctx context.Context, j Artifacts) (bool, error) { return c.GenerateNativeMap(ctx, j, FormatHLSL) },
		)
	case TargetMetal:
		stages = append(stages,
			func(ctx context.Context, j Artifacts) (bool, error) { return c.Convert(ctx, j, FormatMSL) },
			c.CompileMSL,
			func(ctx context.Context, j Artifacts) (bool, error) { return c.GenerateNativeMap(ctx, j, FormatMSL) },
		)
	}
	return stages
}

// Compile runs every stage of u. It reports whether any stage did work.
func (c *Compiler) Compile(ctx context.Context, u Unit, outDir string) (bool, error) {
	j, err := c.Paths(u, outDir)
	if err != nil {
		return false, err
	}
	built := false
	for _, stage := range c.recipe(u.Target) {
		if err := ctx.Err(); err != nil {
			return built, err
		}
		did, err := stage(ctx, j)
		if err != nil {
			return built, err
		}
		built = built || did
	}
	return built, nil
}

// FindSources lists the shader sources below paths whose name contains
// filter.
func FindSources(fsys core.FileSystem, paths []string, filter string) ([]string, error) {
	files, err := fsys.FindFiles(paths, SourceExtensions)
	if err != nil {
		return nil, err
	}
	return core.FilterFiles(files, strings.TrimSpace(filter)), nil
}
