package engine

import (
	"time"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/d3d12"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metal"
	"github.com/spaghettifunk/gfxhal/engine/renderer/vulkan"
)

// DeviceOptions carries what a backend needs beyond the config.
type DeviceOptions struct {
	AppName string
	// Debug turns on the validation layer where the backend has one.
	Debug bool
	// Surface is the window to present to; nil gives a headless device.
	Surface renderer.SurfaceProvider
	// D3D12 and Metal are the native seams of those backends. They are
	// provided by the platform layer of the host OS.
	D3D12 d3d12.Driver
	Metal metal.Driver
}

// NewDevice creates the device of the backend named in cfg.
func NewDevice(cfg core.GraphicsConfig, opts DeviceOptions) (renderer.Device, error) {
	backend, err := renderer.ParseBackendType(cfg.Backend)
	if err != nil {
		return nil, err
	}
	descriptors := uint32(cfg.DescriptorPoolSize)
	if cfg.DescriptorPoolSize <= 0 {
		descriptors = uint32(core.DefaultConfig().Graphics.DescriptorPoolSize)
	}

	switch backend {
	case renderer.BackendTypeDirectX12:
		if opts.D3D12 == nil {
			return nil, core.NewError(core.KindUsageViolation, "NewDevice", "no native d3d12 driver available")
		}
		return d3d12.NewDevice(opts.D3D12, descriptors), nil
	case renderer.BackendTypeMetal:
		if opts.Metal == nil {
			return nil, core.NewError(core.KindUsageViolation, "NewDevice", "no native metal driver available")
		}
		return metal.NewDevice(opts.Metal, descriptors), nil
	}

	driver, err := vulkan.NewNativeDriver(vulkan.NativeOptions{
		AppName:        opts.AppName,
		Debug:          opts.Debug,
		Surface:        opts.Surface,
		DescriptorSets: descriptors,
	})
	if err != nil {
		return nil, err
	}
	return vulkan.NewDevice(driver, descriptors), nil
}

// NewGraphicsContext assembles the context around device. The device must
// be of the backend cfg names.
func NewGraphicsContext(cfg core.GraphicsConfig, device renderer.Device, fsys core.FileSystem) (*renderer.GraphicsContext, error) {
	backend, err := renderer.ParseBackendType(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if device.Backend() != backend {
		return nil, core.NewError(core.KindUsageViolation, "NewGraphicsContext",
			"configured for %s but the device is %s", backend, device.Backend())
	}
	if fsys == nil {
		fsys = core.NewOSFileSystem()
	}
	return renderer.NewGraphicsContext(device, fsys, renderer.ContextOptions{
		FramesInFlight: cfg.FramesInFlight,
		FenceTimeout:   time.Duration(cfg.FenceTimeoutMs) * time.Millisecond,
	})
}
