package engine

import (
	"context"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/platform"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX int
	// Window starting position y axis, if applicable.
	StartPosY int
	// Window starting width, if applicable.
	StartWidth int
	// Window starting height, if applicable.
	StartHeight int
	// The application name used in windowing, if applicable.
	Name     string
	Graphics core.GraphicsConfig
	Debug    bool
}

// Frame renders one frame. It is called once per loop iteration on the main
// thread.
type Frame func(gc *renderer.GraphicsContext) error

// Application ties a window to a graphics context.
type Application struct {
	window  *platform.Window
	context *renderer.GraphicsContext
	resized bool
}

// NewApplication opens the window and brings up the configured backend on
// it. Native D3D12 and Metal drivers come through opts.
func NewApplication(cfg ApplicationConfig, opts DeviceOptions, fsys core.FileSystem) (*Application, error) {
	window, err := platform.NewWindow(platform.WindowConfig{
		Title:     cfg.Name,
		X:         cfg.StartPosX,
		Y:         cfg.StartPosY,
		Width:     cfg.StartWidth,
		Height:    cfg.StartHeight,
		Resizable: true,
	})
	if err != nil {
		return nil, err
	}

	opts.AppName = cfg.Name
	opts.Debug = opts.Debug || cfg.Debug
	opts.Surface = window
	device, err := NewDevice(cfg.Graphics, opts)
	if err != nil {
		window.Destroy()
		return nil, err
	}
	gc, err := NewGraphicsContext(cfg.Graphics, device, fsys)
	if err != nil {
		device.Destroy()
		window.Destroy()
		return nil, err
	}

	app := &Application{window: window, context: gc}
	window.OnResize(func(width, height int) {
		core.LogDebug("framebuffer resized to %dx%d", width, height)
		app.resized = true
	})
	return app, nil
}

func (a *Application) Context() *renderer.GraphicsContext { return a.context }
func (a *Application) Window() *platform.Window            { return a.window }

// Resized reports and clears a pending framebuffer size change; swapchains
// must be recreated when it returns true.
func (a *Application) Resized() bool {
	r := a.resized
	a.resized = false
	return r
}

// Run pumps window events and calls frame until the window is closed or
// ctx is done. Minimized windows skip frames.
func (a *Application) Run(ctx context.Context, frame Frame) error {
	clock := core.NewClock()
	clock.Start()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			a.window.Wake()
		case <-done:
		}
	}()

	for !a.window.ShouldClose() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		a.window.PollEvents()
		if w, h := a.window.FramebufferSize(); w == 0 || h == 0 {
			a.window.WaitEvents()
			continue
		}
		if err := frame(a.context); err != nil {
			return err
		}
	}
	clock.Update()
	metrics := a.context.Frames().Metrics()
	core.LogInfo("closed after %s, %.1f fps average", clock.Elapsed(), metrics.FPS())
	return nil
}

// Shutdown waits for the GPU, releases the context and closes the window.
func (a *Application) Shutdown() {
	a.context.Destroy()
	a.window.Destroy()
}
