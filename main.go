/*
gfxhal-shaders compiles GLSL shader sources into the artifacts and binding
maps the Vulkan, D3D12 and Metal backends load.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/gfxhal/engine"
	"github.com/spaghettifunk/gfxhal/engine/assets"
	"github.com/spaghettifunk/gfxhal/engine/assets/loaders"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/shadertools"
)

const (
	defaultSourceDir = "assets/shaders"
	defaultOutputDir = "build/shaders"
)

// errBuildFailed marks a batch in which some files did not compile. The
// diagnostics were already logged.
var errBuildFailed = errors.New("some shaders failed to build")

type options struct {
	configPath   string
	targets      []string
	sourceDirs   []string
	includeDirs  []string
	defines      []string
	optimization string
	flipVertY    bool
	workers      int
	watch        bool
	verbose      bool
}

func main() {
	core.SetLogOutput(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, errBuildFailed):
		os.Exit(1)
	default:
		var e *core.Error
		if !errors.As(err, &e) {
			// flag and argument errors from cobra
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		core.HandleFatal(err)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "gfxhal-shaders [flags] [input dir|filter] [output dir]",
		Short: "Compile GLSL shaders for the Vulkan, D3D12 and Metal backends",
		Long: `Compiles every .vert, .frag and .comp file below the input directory
(default ` + defaultSourceDir + `) into <output dir>/<target>. When the first
argument is not a directory it filters the sources by file name instead.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), opts, args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML or YAML config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every tool invocation")

	flags = cmd.Flags()
	flags.StringSliceVarP(&opts.targets, "target", "t", nil, "targets to build: vulkan, dx12, metal (comma separated or repeated)")
	flags.StringArrayVar(&opts.sourceDirs, "src", nil, "source directory searched when the first argument is a filter")
	flags.StringArrayVarP(&opts.includeDirs, "include", "I", nil, "directory searched by #include <...>")
	flags.StringArrayVarP(&opts.defines, "define", "D", nil, "macro definition NAME[=VALUE]")
	flags.StringVarP(&opts.optimization, "optimize", "O", "", "optimization: performance, size or none")
	flags.BoolVar(&opts.flipVertY, "flip-vert-y", false, "negate the Y of vertex positions (also shaders.flip_vert_y)")
	flags.IntVarP(&opts.workers, "jobs", "j", 0, "parallel compiles (default: number of CPUs)")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "rebuild changed sources until interrupted")

	cmd.AddCommand(newDeviceCommand(opts))
	return cmd
}

func loadConfig(opts *options) (*core.Config, error) {
	cfg := core.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = core.LoadConfig(opts.configPath); err != nil {
			return nil, err
		}
	} else {
		cfg.ApplyEnv()
	}

	level := cfg.Log.Level
	if opts.verbose {
		level = "debug"
	}
	if err := core.SetLogLevel(level); err != nil {
		return nil, core.WrapError(core.KindUsageViolation, "loadConfig", err, "log level")
	}
	return cfg, nil
}

// buildPlan is the resolved command line of one shader build.
type buildPlan struct {
	sourceDirs []string
	filter     string
	outDir     string
	targets    []shadertools.Target
	compiler   *shadertools.Compiler
	fs         core.FileSystem
}

func newBuildPlan(opts *options, cfg *core.Config, args []string) (*buildPlan, error) {
	shaders := cfg.Shaders
	p := &buildPlan{sourceDirs: opts.sourceDirs, outDir: defaultOutputDir, fs: core.NewOSFileSystem()}
	if len(args) > 0 {
		if s, err := os.Stat(args[0]); err == nil && s.IsDir() {
			p.sourceDirs = []string{args[0]}
		} else {
			p.filter = args[0]
		}
	}
	if len(p.sourceDirs) == 0 {
		p.sourceDirs = []string{defaultSourceDir}
	}
	if len(args) > 1 {
		p.outDir = args[1]
	}

	names := shaders.Targets
	if len(opts.targets) > 0 {
		names = opts.targets
	}
	var err error
	if p.targets, err = shadertools.ParseTargets(names); err != nil {
		return nil, err
	}

	level := shaders.Optimization
	if opts.optimization != "" {
		level = opts.optimization
	}
	optimization, err := shadertools.ParseOptimization(level)
	if err != nil {
		return nil, err
	}

	defines := make(map[string]string, len(shaders.Defines))
	for k, v := range shaders.Defines {
		defines[k] = v
	}
	for k, v := range shadertools.ParseDefines(opts.defines) {
		defines[k] = v
	}

	workers := shaders.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}

	runner, err := shadertools.NewExecRunner(shaders.Tools)
	if err != nil {
		return nil, err
	}
	p.compiler = shadertools.NewCompiler(p.fs, runner, shadertools.Options{
		IncludeDirs:  append(append([]string(nil), shaders.IncludeDirs...), opts.includeDirs...),
		Defines:      defines,
		Optimization: optimization,
		FlipVertY:    shaders.FlipVertY || opts.flipVertY,
		Workers:      workers,
		LockTimeout:  time.Duration(shaders.LockTimeoutMs) * time.Millisecond,
	})
	return p, nil
}

func runBuild(ctx context.Context, opts *options, args []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	p, err := newBuildPlan(opts, cfg, args)
	if err != nil {
		return err
	}

	files, err := shadertools.FindSources(p.fs, p.sourceDirs, p.filter)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		core.LogWarn("no shader sources in %s", strings.Join(p.sourceDirs, ", "))
	}
	libraries := p.libraries()

	buildErr := p.build(ctx, files, libraries)
	if !opts.watch || (buildErr != nil && !errors.Is(buildErr, errBuildFailed)) {
		return buildErr
	}
	return p.watch(ctx, libraries)
}

// libraries holds one shader library per target. Rebuilt stages are
// reloaded through them to check the artifacts a backend will read.
func (p *buildPlan) libraries() map[shadertools.Target]*assets.ShaderLibrary {
	libs := make(map[shadertools.Target]*assets.ShaderLibrary, len(p.targets))
	for _, t := range p.targets {
		libs[t] = assets.NewShaderLibrary(&loaders.ShaderLoader{
			FS:      p.fs,
			Backend: t.Backend(),
			Dir:     shadertools.TargetDir(p.outDir, t),
		})
	}
	return libs
}

func (p *buildPlan) build(ctx context.Context, files []string, libs map[shadertools.Target]*assets.ShaderLibrary) error {
	if len(files) == 0 {
		return nil
	}
	res, err := p.compiler.Build(ctx, files, p.outDir, p.targets)
	if err != nil {
		return err
	}
	for _, u := range res.Built {
		name := filepath.Base(u.Source)
		lib := libs[u.Target]
		lib.Invalidate(name)
		if _, err := lib.Get(name); err != nil {
			return err
		}
	}
	for _, f := range res.Failed {
		core.LogError("%s: %v", f.Unit, f.Err)
	}
	if !res.OK() {
		return errBuildFailed
	}
	return nil
}

func (p *buildPlan) watch(ctx context.Context, libs map[shadertools.Target]*assets.ShaderLibrary) error {
	w, err := assets.NewShaderWatcher(shadertools.SourceExtensions, assets.DefaultDebounce, func(changed []string) {
		files := core.FilterFiles(changed, p.filter)
		if len(files) == 0 {
			return
		}
		core.LogInfo("%d shader(s) changed", len(files))
		if err := p.build(ctx, files, libs); err != nil && !errors.Is(err, errBuildFailed) {
			core.LogError("%v", err)
		}
	})
	if err != nil {
		return err
	}
	for _, dir := range p.sourceDirs {
		if err := w.AddRecursive(dir); err != nil {
			_ = w.Close()
			return core.WrapError(core.KindIOFailure, "watch", err, "watching %s", dir)
		}
	}
	core.LogInfo("watching %s, press Ctrl+C to stop", strings.Join(w.WatchList(), ", "))
	return w.Run(ctx)
}

func newDeviceCommand(opts *options) *cobra.Command {
	var backend string
	var show bool
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Open a window on the configured graphics backend and report the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Graphics.Backend = backend
			}
			return runDevice(cmd.Context(), cfg, show)
		},
	}
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "vulkan, dx12 or metal (default from config)")
	cmd.Flags().BoolVar(&show, "show", false, "keep the window open until it is closed")
	return cmd
}

func runDevice(ctx context.Context, cfg *core.Config, show bool) error {
	app, err := engine.NewApplication(engine.ApplicationConfig{
		Name:        "gfxhal device",
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  800,
		StartHeight: 600,
		Graphics:    cfg.Graphics,
	}, engine.DeviceOptions{}, nil)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	gc := app.Context()
	core.LogInfo("backend %s: %d frames in flight, %d descriptor slots",
		gc.Device().Backend(), gc.Frames().Count(), gc.Descriptors().Capacity())
	if !show {
		return nil
	}
	return app.Run(ctx, emptyFrame)
}

// emptyFrame cycles the frame ring with an empty command buffer.
func emptyFrame(gc *renderer.GraphicsContext) error {
	if _, err := gc.Frames().Acquire(); err != nil {
		return err
	}
	cmd := gc.Frames().CommandBuffer()
	if err := cmd.Begin(); err != nil {
		return err
	}
	if err := cmd.End(); err != nil {
		return err
	}
	return gc.SubmitFrame(cmd)
}
