package metal

import (
	"sync"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// depthStencilCache shares MTLDepthStencilState objects between pipelines
// with the same depth and stencil setup.
type depthStencilCache struct {
	mu     sync.Mutex
	driver Driver
	states map[DepthStencilDescriptor]Handle
}

func (c *depthStencilCache) get(desc DepthStencilDescriptor) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.states[desc]; ok {
		return h, nil
	}
	h, err := c.driver.CreateDepthStencilState(&desc)
	if err != nil {
		return NullHandle, err
	}
	c.states[desc] = h
	return h, nil
}

func (c *depthStencilCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.states)
}

func (c *depthStencilCache) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, h := range c.states {
		c.driver.Release(h)
		delete(c.states, k)
	}
}

// Device implements renderer.Device on top of a Driver.
type Device struct {
	driver        Driver
	pool          *renderer.DescriptorPool
	depthStencils *depthStencilCache
	queue         *Queue
	destroyed     bool
}

// NewDevice wraps driver. samplers is the size of the sampler state table
// the driver allocated.
func NewDevice(driver Driver, samplers uint32) *Device {
	d := &Device{
		driver:        driver,
		pool:          renderer.NewDescriptorPool(samplers),
		depthStencils: &depthStencilCache{driver: driver, states: make(map[DepthStencilDescriptor]Handle)},
	}
	d.queue = &Queue{device: d}
	return d
}

func (d *Device) Backend() renderer.BackendType         { return renderer.BackendTypeMetal }
func (d *Device) Queue() renderer.Queue                 { return d.queue }
func (d *Device) Descriptors() *renderer.DescriptorPool { return d.pool }
func (d *Device) Driver() Driver                        { return d.driver }
func (d *Device) WaitIdle() error                       { return d.driver.WaitIdle() }

func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	if err := d.driver.WaitIdle(); err != nil {
		core.LogWarn("metal device: wait idle before destroy: %v", err)
	}
	d.depthStencils.destroy()
	d.driver.Destroy()
	core.LogInfo("metal device destroyed")
}

func (d *Device) CreateTexture(desc metadata.TextureDesc) (renderer.Texture, error) {
	desc = desc.Normalized()
	if desc.Width == 0 || desc.Height == 0 {
		return nil, core.NewError(core.KindUsageViolation, "CreateTexture", "texture %q has a zero extent", desc.Label)
	}
	format := Format(desc.Format)
	if format == PixelFormatInvalid {
		return nil, core.NewError(core.KindUsageViolation, "CreateTexture", "texture %q: format %s has no metal equivalent", desc.Label, desc.Format)
	}
	handle, err := d.driver.CreateTexture(&TextureDescriptor{
		Type:        TextureTypeFor(desc),
		PixelFormat: format,
		Width:       desc.Width,
		Height:      desc.Height,
		Depth:       desc.Depth,
		MipLevels:   desc.MipLevels,
		ArrayLength: desc.ArrayLayers,
		SampleCount: desc.SampleCount,
		Usage:       TextureUsageFor(desc.Usage),
		StorageMode: StorageModePrivate,
	})
	if err != nil {
		return nil, err
	}
	t := &Texture{
		device:      d,
		desc:        desc,
		states:      renderer.NewTextureState(desc, metadata.ResourceStateUndefined),
		texture:     handle,
		samplerSlot: -1,
		owned:       true,
	}
	if desc.Usage.Has(metadata.TextureUsageSampled) {
		slot, err := d.pool.Allocate()
		if err != nil {
			t.Destroy()
			return nil, err
		}
		t.samplerSlot = int(slot)
		d.driver.CreateSampler(Sampler(desc.Sampler, desc.MipLevels), slot)
	}
	core.LogDebug("metal texture %s created: %dx%d mips=%d layers=%d", desc.Label, desc.Width, desc.Height, desc.MipLevels, desc.ArrayLayers)
	return t, nil
}

// CreateBuffer takes no slot: buffers are set on the encoder directly.
func (d *Device) CreateBuffer(desc metadata.BufferDesc) (renderer.Buffer, error) {
	if desc.Size == 0 {
		return nil, core.NewError(core.KindUsageViolation, "CreateBuffer", "buffer %q has zero size", desc.Label)
	}
	mode := StorageModeFor(desc)
	handle, err := d.driver.CreateBuffer(desc.Size, mode)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		device: d,
		desc:   desc,
		state:  renderer.NewBufferState(desc.InitialState),
		buffer: handle,
		mode:   mode,
	}, nil
}

func (d *Device) CreateRenderPass(cfg metadata.RenderPassConfig) (renderer.RenderPass, error) {
	for i, c := range cfg.Colors {
		if Format(c.Format) == PixelFormatInvalid || c.Format.IsDepth() {
			return nil, core.NewError(core.KindUsageViolation, "CreateRenderPass", "color attachment %d has format %s", i, c.Format)
		}
	}
	if ds := cfg.DepthStencil; ds != nil && !ds.Format.IsDepth() {
		return nil, core.NewError(core.KindUsageViolation, "CreateRenderPass", "depth attachment has color format %s", ds.Format)
	}
	return &RenderPass{config: cfg}, nil
}

func (d *Device) CreateFramebuffer(rp renderer.RenderPass, attachments []renderer.Attachment) (renderer.Framebuffer, error) {
	pass, err := AsRenderPass(rp)
	if err != nil {
		return nil, err
	}
	cfg := pass.config
	want := len(cfg.Colors)
	if cfg.DepthStencil != nil {
		want++
	}
	if len(attachments) != want {
		return nil, core.NewError(core.KindUsageViolation, "CreateFramebuffer", "render pass has %d attachments, got %d", want, len(attachments))
	}
	if want == 0 {
		return nil, core.NewError(core.KindUsageViolation, "CreateFramebuffer", "render pass has no attachments")
	}

	fb := &Framebuffer{pass: pass, attachments: append([]renderer.Attachment(nil), attachments...)}
	for i, a := range attachments {
		tex, err := AsTexture(a.Texture)
		if err != nil {
			return nil, err
		}
		if a.Mip >= tex.desc.MipLevels || a.Layer >= tex.desc.ArrayLayers {
			return nil, core.NewError(core.KindUsageViolation, "CreateFramebuffer", "attachment (mip %d, layer %d) is outside texture %q", a.Mip, a.Layer, tex.desc.Label)
		}
		w, h := tex.Extent(a.Mip)
		if i == 0 {
			fb.width, fb.height = w, h
		} else if w != fb.width || h != fb.height {
			return nil, core.NewError(core.KindUsageViolation, "CreateFramebuffer", "attachment %d is %dx%d, expected %dx%d", i, w, h, fb.width, fb.height)
		}
	}
	return fb, nil
}

// CreateCommandBuffer creates no native object yet: Metal command buffers
// are made by Begin and die after commit.
func (d *Device) CreateCommandBuffer() (renderer.CommandBuffer, error) {
	return &CommandBuffer{device: d}, nil
}
