package platform

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

var _ renderer.SurfaceProvider = (*Window)(nil)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type WindowConfig struct {
	Title  string
	X, Y   int
	Width  int
	Height int
	// Resizable windows report framebuffer changes to OnResize.
	Resizable bool
}

// Window is a GLFW window without a client API; the graphics backend
// creates its own surface on it. It implements renderer.SurfaceProvider.
type Window struct {
	window *glfw.Window

	mu       sync.Mutex
	width    int
	height   int
	onResize func(width, height int)
}

/**
 * @brief Initializes GLFW and opens a window.
 * @param cfg The window placement and size.
 * @return The window or an error when GLFW or the window cannot be created.
 */
func NewWindow(cfg WindowConfig) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, core.NewError(core.KindUsageViolation, "NewWindow", "invalid window size %dx%d", cfg.Width, cfg.Height)
	}
	if err := glfw.Init(); err != nil {
		return nil, core.WrapError(core.KindLookupFailure, "NewWindow", err, "failed to initialize glfw")
	}
	if !glfw.VulkanSupported() {
		core.LogWarn("glfw reports no vulkan loader; only native backends can present")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, boolHint(cfg.Resizable))
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, core.WrapError(core.KindLookupFailure, "NewWindow", err, "failed to create window")
	}

	w := &Window{window: window}
	w.width, w.height = window.GetFramebufferSize()
	window.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	window.SetPos(cfg.X, cfg.Y)
	window.Show()
	core.LogInfo("window %q opened, framebuffer %dx%d", cfg.Title, w.width, w.height)
	return w, nil
}

// OnResize registers the callback invoked from PollEvents when the
// framebuffer size changes. A zero size means the window is minimized.
func (w *Window) OnResize(fn func(width, height int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onResize = fn
}

func (w *Window) FramebufferSize() (width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

func (w *Window) CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error) {
	surface, err := w.window.CreateWindowSurface(instance, allocator)
	if err != nil {
		return 0, core.WrapError(core.KindToolFailure, "CreateWindowSurface", err, "glfw")
	}
	return surface, nil
}

func (w *Window) ShouldClose() bool { return w.window.ShouldClose() }

// PollEvents processes pending window events. Main thread only.
func (w *Window) PollEvents() { glfw.PollEvents() }

// WaitEvents sleeps until an event arrives. Main thread only.
func (w *Window) WaitEvents() { glfw.WaitEvents() }

// Wake unblocks WaitEvents. Safe from any goroutine.
func (w *Window) Wake() { glfw.PostEmptyEvent() }

// Destroy closes the window and shuts GLFW down.
func (w *Window) Destroy() {
	w.window.Destroy()
	glfw.Terminate()
}

func (w *Window) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	fn := w.onResize
	w.mu.Unlock()
	if fn != nil {
		fn(width, height)
	}
}

func boolHint(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}
