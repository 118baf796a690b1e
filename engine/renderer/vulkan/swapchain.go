package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// Swapchain wraps the presentable images of a surface as textures. The
// images belong to the swapchain; only their views are destroyed with it.
type Swapchain struct {
	device *Device
	handle vk.Swapchain
	extent vk.Extent2D
	images []renderer.Texture
}

func (d *Device) CreateSwapchain(surface renderer.SurfaceProvider, desc renderer.SwapchainDesc) (renderer.Swapchain, error) {
	if surface == nil {
		return nil, core.NewError(core.KindUsageViolation, "CreateSwapchain", "no surface to present to")
	}
	if desc.Width == 0 || desc.Height == 0 {
		w, h := surface.FramebufferSize()
		desc.Width, desc.Height = uint32(w), uint32(h)
	}
	out, err := d.driver.CreateSwapchain(surface, desc)
	if err != nil {
		return nil, err
	}

	format := PixelFormat(out.Format)
	sc := &Swapchain{device: d, handle: out.Handle, extent: out.Extent}
	for i, img := range out.Images {
		texDesc := metadata.TextureDesc{
			Label:       fmt.Sprintf("swapchain-%d", i),
			Width:       out.Extent.Width,
			Height:      out.Extent.Height,
			Format:      format,
			Usage:       metadata.TextureUsageColorAttachment | metadata.TextureUsagePresent | metadata.TextureUsageTransferDst,
			SampleCount: 1,
		}.Normalized()
		view, err := d.driver.CreateImageView(&vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   out.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		})
		if err != nil {
			sc.Destroy()
			return nil, err
		}
		sc.images = append(sc.images, &Texture{
			device: d,
			desc:   texDesc,
			states: renderer.NewTextureState(texDesc, metadata.ResourceStateUndefined),
			image:  img,
			view:   view,
			views:  map[viewKey]vk.ImageView{{0, 0}: view},
			slot:   -1,
		})
	}
	core.LogInfo("vulkan swapchain created: %dx%d, %d images, format %s", out.Extent.Width, out.Extent.Height, len(out.Images), format)
	return sc, nil
}

func (s *Swapchain) Images() []renderer.Texture { return s.images }
func (s *Swapchain) Handle() vk.Swapchain       { return s.handle }

func (s *Swapchain) Extent() (uint32, uint32) {
	return s.extent.Width, s.extent.Height
}

// AcquireNextImage returns the index of the image to render into next.
// Work submitted after it waits until the image is available.
func (s *Swapchain) AcquireNextImage() (uint32, error) {
	return s.device.driver.AcquireNextImage(s.handle)
}

// Present queues image index for display. The image must have been moved
// into the present state first.
func (s *Swapchain) Present(index uint32) error {
	if int(index) >= len(s.images) {
		return core.NewError(core.KindUsageViolation, "Present", "image index %d out of range (count=%d)", index, len(s.images))
	}
	img := s.images[index]
	if st := img.States().Get(0, 0); st != metadata.ResourceStatePresentSrc {
		return core.NewError(core.KindUsageViolation, "Present", "swapchain image %d is %s, expected %s", index, st, metadata.ResourceStatePresentSrc)
	}
	return s.device.driver.Present(s.handle, index)
}

func (s *Swapchain) Destroy() {
	if err := s.device.driver.DeviceWaitIdle(); err != nil {
		core.LogWarn("vulkan swapchain: wait idle before destroy: %v", err)
	}
	// Only the views are ours; the images go with the swapchain.
	for _, img := range s.images {
		img.Destroy()
	}
	s.images = nil
	s.device.driver.DestroySwapchain(s.handle)
}
