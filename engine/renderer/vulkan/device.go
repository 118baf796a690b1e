package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// Device implements renderer.Device on top of a Driver.
type Device struct {
	driver    Driver
	pool      *renderer.DescriptorPool
	layouts   *setLayoutCache
	queue     *Queue
	destroyed bool
}

// NewDevice wraps driver. descriptors bounds how many shader visible
// resources may exist at once.
func NewDevice(driver Driver, descriptors uint32) *Device {
	d := &Device{
		driver: driver,
		pool:   renderer.NewDescriptorPool(descriptors),
	}
	d.layouts = newSetLayoutCache(driver)
	d.queue = &Queue{device: d}
	return d
}

func (d *Device) Backend() renderer.BackendType         { return renderer.BackendTypeVulkan }
func (d *Device) Queue() renderer.Queue                 { return d.queue }
func (d *Device) Descriptors() *renderer.DescriptorPool { return d.pool }
func (d *Device) Driver() Driver                        { return d.driver }
func (d *Device) WaitIdle() error                       { return d.driver.DeviceWaitIdle() }

func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	if err := d.driver.DeviceWaitIdle(); err != nil {
		core.LogWarn("vulkan device: wait idle before destroy: %v", err)
	}
	d.layouts.destroy()
	d.driver.Destroy()
	core.LogInfo("vulkan device destroyed")
}

func shaderVisible(u metadata.TextureUsage) bool {
	return u&(metadata.TextureUsageSampled|metadata.TextureUsageStorage) != 0
}

func (d *Device) CreateTexture(desc metadata.TextureDesc) (renderer.Texture, error) {
	desc = desc.Normalized()
	if desc.Width == 0 || desc.Height == 0 {
		return nil, core.NewError(core.KindUsageViolation, "CreateTexture", "texture %q has a zero extent", desc.Label)
	}
	format := Format(desc.Format)
	if format == vk.FormatUndefined {
		return nil, core.NewError(core.KindUsageViolation, "CreateTexture", "texture %q: format %s has no vulkan equivalent", desc.Label, desc.Format)
	}

	imageType, viewType := vk.ImageType2d, vk.ImageViewType2d
	switch {
	case desc.Depth > 1:
		imageType, viewType = vk.ImageType3d, vk.ImageViewType3d
	case desc.ArrayLayers > 1:
		viewType = vk.ImageViewType2dArray
	}

	image, memory, err := d.driver.CreateImage(&vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     imageType,
		Format:        format,
		Extent:        vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: desc.Depth},
		MipLevels:     desc.MipLevels,
		ArrayLayers:   desc.ArrayLayers,
		Samples:       SampleCount(desc.SampleCount),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         ImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	})
	if err != nil {
		return nil, err
	}
	t := &Texture{
		device: d,
		desc:   desc,
		states: renderer.NewTextureState(desc, metadata.ResourceStateUndefined),
		image:  image,
		memory: memory,
		views:  make(map[viewKey]vk.ImageView),
		slot:   -1,
		owned:  true,
	}

	t.view, err = d.driver.CreateImageView(&vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: viewType,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: AspectMask(desc.Format),
			LevelCount: desc.MipLevels,
			LayerCount: desc.ArrayLayers,
		},
	})
	if err != nil {
		d.driver.DestroyImage(image, memory)
		return nil, err
	}

	if desc.Usage.Has(metadata.TextureUsageSampled) {
		s := desc.Sampler
		t.sampler, err = d.driver.CreateSampler(&vk.SamplerCreateInfo{
			SType:        vk.StructureTypeSamplerCreateInfo,
			MagFilter:    Filter(s.MagFilter),
			MinFilter:    Filter(s.MinFilter),
			MipmapMode:   MipmapMode(s.MipFilter),
			AddressModeU: AddressMode(s.AddressMode),
			AddressModeV: AddressMode(s.AddressMode),
			AddressModeW: AddressMode(s.AddressMode),
			MaxLod:       float32(desc.MipLevels),
			BorderColor:  vk.BorderColorFloatTransparentBlack,
		})
		if err != nil {
			d.driver.DestroyImageView(t.view)
			d.driver.DestroyImage(image, memory)
			return nil, err
		}
	}

	if shaderVisible(desc.Usage) {
		slot, err := d.pool.Allocate()
		if err != nil {
			t.slot = -1
			t.Destroy()
			return nil, err
		}
		t.slot = int(slot)
	}
	core.LogDebug("vulkan texture %s created: %dx%d mips=%d layers=%d", desc.Label, desc.Width, desc.Height, desc.MipLevels, desc.ArrayLayers)
	return t, nil
}

func (d *Device) CreateBuffer(desc metadata.BufferDesc) (renderer.Buffer, error) {
	if desc.Size == 0 {
		return nil, core.NewError(core.KindUsageViolation, "CreateBuffer", "buffer %q has zero size", desc.Label)
	}
	buffer, memory, err := d.driver.CreateBuffer(&vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       BufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}, desc.HostVisible)
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		device: d,
		desc:   desc,
		state:  renderer.NewBufferState(desc.InitialState),
		buffer: buffer,
		memory: memory,
		slot:   -1,
	}
	if desc.Usage&(metadata.BufferUsageUniform|metadata.BufferUsageStorage) != 0 {
		slot, err := d.pool.Allocate()
		if err != nil {
			b.Destroy()
			return nil, err
		}
		b.slot = int(slot)
	}
	return b, nil
}

func (d *Device) CreateRenderPass(cfg metadata.RenderPassConfig) (renderer.RenderPass, error) {
	info, err := renderPassCreateInfo(cfg)
	if err != nil {
		return nil, err
	}
	handle, err := d.driver.CreateRenderPass(info)
	if err != nil {
		return nil, err
	}
	return &RenderPass{device: d, config: cfg, handle: handle}, nil
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

	views := make([]vk.ImageView, len(attachments))
	var width, height uint32
	for i, a := range attachments {
		tex, err := AsTexture(a.Texture)
		if err != nil {
			return nil, err
		}
		if views[i], err = tex.attachmentView(a.Mip, a.Layer); err != nil {
			return nil, err
		}
		w, h := tex.Extent(a.Mip)
		if i == 0 {
			width, height = w, h
		} else if w != width || h != height {
			return nil, core.NewError(core.KindUsageViolation, "CreateFramebuffer", "attachment %d is %dx%d, expected %dx%d", i, w, h, width, height)
		}
	}

	handle, err := d.driver.CreateFramebuffer(&vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	})
	if err != nil {
		return nil, err
	}
	return &Framebuffer{
		device:      d,
		pass:        pass,
		attachments: append([]renderer.Attachment(nil), attachments...),
		width:       width,
		height:      height,
		handle:      handle,
	}, nil
}

func (d *Device) CreateCommandBuffer() (renderer.CommandBuffer, error) {
	handle, err := d.driver.AllocateCommandBuffer()
	if err != nil {
		return nil, err
	}
	return &CommandBuffer{device: d, handle: handle}, nil
}

func (d *Device) CreateFence(signaled bool) (renderer.Fence, error) {
	handle, err := d.driver.CreateFence(signaled)
	if err != nil {
		return nil, err
	}
	return &Fence{device: d, handle: handle}, nil
}
