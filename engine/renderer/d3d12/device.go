package d3d12

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// rootSignatureCache shares root signatures between pipelines with the same
// parameter layout.
type rootSignatureCache struct {
	mu         sync.Mutex
	driver     Driver
	signatures map[string]Handle
}

func rootSignatureKey(params []RootParameter, flags RootSignatureFlags) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", flags)
	for _, p := range params {
		fmt.Fprintf(&sb, "|%d:%d:%d", p.Type, p.Range, p.RegisterSpace)
	}
	return sb.String()
}

func (c *rootSignatureCache) get(params []RootParameter, flags RootSignatureFlags) (Handle, error) {
	key := rootSignatureKey(params, flags)
	c.mu.Lock()
	defer c.mu.Unlock()
	if rs, ok := c.signatures[key]; ok {
		return rs, nil
	}
	rs, err := c.driver.CreateRootSignature(params, flags)
	if err != nil {
		return NullHandle, err
	}
	c.signatures[key] = rs
	return rs, nil
}

func (c *rootSignatureCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.signatures)
}

func (c *rootSignatureCache) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, rs := range c.signatures {
		c.driver.Release(rs)
		delete(c.signatures, k)
	}
}

// Device implements renderer.Device on top of a Driver.
type Device struct {
	driver    Driver
	pool      *renderer.DescriptorPool
	roots     *rootSignatureCache
	queue     *Queue
	destroyed bool
}

// NewDevice wraps driver. descriptors is the size of the shader visible
// heaps the driver allocated.
func NewDevice(driver Driver, descriptors uint32) *Device {
	d := &Device{
		driver: driver,
		pool:   renderer.NewDescriptorPool(descriptors),
		roots:  &rootSignatureCache{driver: driver, signatures: make(map[string]Handle)},
	}
	d.queue = &Queue{device: d}
	return d
}

func (d *Device) Backend() renderer.BackendType         { return renderer.BackendTypeDirectX12 }
func (d *Device) Queue() renderer.Queue                 { return d.queue }
func (d *Device) Descriptors() *renderer.DescriptorPool { return d.pool }
func (d *Device) Driver() Driver                        { return d.driver }
func (d *Device) WaitIdle() error                       { return d.driver.QueueWaitIdle() }

func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	if err := d.driver.QueueWaitIdle(); err != nil {
		core.LogWarn("d3d12 device: wait idle before destroy: %v", err)
	}
	d.roots.destroy()
	d.driver.Destroy()
	core.LogInfo("d3d12 device destroyed")
}

func shaderViewDesc(desc metadata.TextureDesc) *ViewDesc {
	dim := ViewDimensionTexture2D
	switch {
	case desc.Depth > 1:
		dim = ViewDimensionTexture3D
	case desc.ArrayLayers > 1:
		dim = ViewDimensionTexture2DArray
	}
	return &ViewDesc{
		Format:    ViewFormat(desc.Format),
		Dimension: dim,
		MipLevels: desc.MipLevels,
		ArraySize: desc.ArrayLayers,
	}
}

func (d *Device) CreateTexture(desc metadata.TextureDesc) (renderer.Texture, error) {
	desc = desc.Normalized()
	if desc.Width == 0 || desc.Height == 0 {
		return nil, core.NewError(core.KindUsageViolation, "CreateTexture", "texture %q has a zero extent", desc.Label)
	}
	format := DXGIFormat(desc.Format)
	if format == FormatUnknown {
		return nil, core.NewError(core.KindUsageViolation, "CreateTexture", "texture %q: format %s has no dxgi equivalent", desc.Label, desc.Format)
	}

	rd := &ResourceDesc{
		Dimension:        ResourceDimensionTexture2D,
		Width:            uint64(desc.Width),
		Height:           desc.Height,
		DepthOrArraySize: desc.ArrayLayers,
		MipLevels:        desc.MipLevels,
		Format:           format,
		SampleCount:      desc.SampleCount,
		Flags:            ResourceFlagsFor(desc.Usage),
	}
	if desc.Depth > 1 {
		rd.Dimension = ResourceDimensionTexture3D
		rd.DepthOrArraySize = desc.Depth
	}
	resource, err := d.driver.CreateResource(rd, HeapTypeDefault, ResourceStateCommon)
	if err != nil {
		return nil, err
	}
	t := &Texture{
		device:   d,
		desc:     desc,
		states:   renderer.NewTextureState(desc, metadata.ResourceStateUndefined),
		resource: resource,
		srvSlot:  -1,
		uavSlot:  -1,
		views:    make(map[viewKey]CPUDescriptor),
		owned:    true,
	}

	if desc.Usage.Has(metadata.TextureUsageSampled) {
		slot, err := d.pool.Allocate()
		if err != nil {
			t.Destroy()
			return nil, err
		}
		t.srvSlot = int(slot)
		d.driver.CreateShaderResourceView(resource, shaderViewDesc(desc), slot)
		s := desc.Sampler
		d.driver.CreateSampler(&SamplerDesc{
			Filter:   SamplerFilter(s),
			AddressU: AddressMode(s.AddressMode),
			AddressV: AddressMode(s.AddressMode),
			AddressW: AddressMode(s.AddressMode),
			MaxLOD:   float32(desc.MipLevels),
		}, slot)
	}
	if desc.Usage.Has(metadata.TextureUsageStorage) {
		slot, err := d.pool.Allocate()
		if err != nil {
			t.Destroy()
			return nil, err
		}
		t.uavSlot = int(slot)
		view := shaderViewDesc(desc)
		view.MipLevels = 1
		d.driver.CreateUnorderedAccessView(resource, view, slot)
	}
	core.LogDebug("d3d12 texture %s created: %dx%d mips=%d layers=%d", desc.Label, desc.Width, desc.Height, desc.MipLevels, desc.ArrayLayers)
	return t, nil
}

// bufferHeap picks where a buffer lives. Host visible copy destinations
// are read back, every other host visible buffer is uploaded.
func bufferHeap(desc metadata.BufferDesc) (HeapType, ResourceStates) {
	switch {
	case !desc.HostVisible:
		return HeapTypeDefault, ResourceStateCommon
	case desc.Usage.Has(metadata.BufferUsageTransferDst):
		return HeapTypeReadback, ResourceStateCopyDest
	}
	return HeapTypeUpload, ResourceStateGenericRead
}

// CreateBuffer takes no descriptor slot: buffers are bound as root
// descriptors by GPU address.
func (d *Device) CreateBuffer(desc metadata.BufferDesc) (renderer.Buffer, error) {
	if desc.Size == 0 {
		return nil, core.NewError(core.KindUsageViolation, "CreateBuffer", "buffer %q has zero size", desc.Label)
	}
	heap, initial := bufferHeap(desc)
	resource, err := d.driver.CreateResource(&ResourceDesc{
		Dimension:        ResourceDimensionBuffer,
		Width:            desc.Size,
		Height:           1,
		DepthOrArraySize: 1,
		MipLevels:        1,
		SampleCount:      1,
	}, heap, initial)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		device:   d,
		desc:     desc,
		state:    renderer.NewBufferState(desc.InitialState),
		resource: resource,
		address:  d.driver.GPUAddress(resource),
		heap:     heap,
	}, nil
}

func (d *Device) CreateRenderPass(cfg metadata.RenderPassConfig) (renderer.RenderPass, error) {
	for i, c := range cfg.Colors {
		if DXGIFormat(c.Format) == FormatUnknown || c.Format.IsDepth() {
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
		view, err := tex.attachmentView(a.Mip, a.Layer)
		if err != nil {
			return nil, err
		}
		if i < len(cfg.Colors) {
			fb.rtvs = append(fb.rtvs, view)
		} else {
			fb.dsv = &view
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

func (d *Device) CreateCommandBuffer() (renderer.CommandBuffer, error) {
	handle, err := d.driver.CreateCommandList()
	if err != nil {
		return nil, err
	}
	return &CommandList{device: d, handle: handle}, nil
}
