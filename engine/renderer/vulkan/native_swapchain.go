package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

func chooseSurfaceFormat(formats []vk.SurfaceFormat, want vk.Format) vk.SurfaceFormat {
	for _, f := range formats {
		if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

// choosePresentMode uses FIFO for vsync. Otherwise mailbox, then immediate,
// falling back to FIFO which every driver supports.
func choosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, want := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, m := range modes {
			if m == want {
				return m
			}
		}
	}
	return vk.PresentModeFifo
}

func clamp(v, lo, hi uint32) uint32 {
	return max(lo, min(v, hi))
}

func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps vk.SurfaceCapabilities, want uint32) uint32 {
	if want == 0 {
		want = caps.MinImageCount + 1
	}
	count := max(want, caps.MinImageCount)
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// CreateSwapchain presents to the surface the driver was created with.
func (n *NativeDriver) CreateSwapchain(surface renderer.SurfaceProvider, desc renderer.SwapchainDesc) (*SwapchainImages, error) {
	if n.surface == vk.NullSurface {
		return nil, core.NewError(core.KindUsageViolation, "CreateSwapchain", "driver was created without a surface")
	}
	if surface != n.provider {
		return nil, core.NewError(core.KindUsageViolation, "CreateSwapchain", "surface differs from the one the driver was created with")
	}
	support, err := querySwapchainSupport(n.gpu.handle, n.surface)
	if err != nil {
		return nil, err
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, core.NewError(core.KindLookupFailure, "CreateSwapchain", "surface reports no formats or present modes")
	}
	caps := support.Capabilities
	format := chooseSurfaceFormat(support.Formats, Format(desc.Format))
	extent := chooseExtent(caps, desc.Width, desc.Height)

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          n.surface,
		MinImageCount:    chooseImageCount(caps, desc.ImageCount),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      choosePresentMode(support.PresentModes, desc.VSync),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	graphics, present := uint32(n.gpu.families.graphics), uint32(n.gpu.families.present)
	if graphics != present {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{graphics, present}
	}

	out := &SwapchainImages{Format: format.Format, Extent: extent}
	err = n.locks.SafeCall(SwapchainManagement, func() error {
		if err := vkError("CreateSwapchain", vk.CreateSwapchain(n.device, &info, nil, &out.Handle)); err != nil {
			return err
		}
		var count uint32
		if err := vkError("GetSwapchainImages", vk.GetSwapchainImages(n.device, out.Handle, &count, nil)); err != nil {
			return err
		}
		out.Images = make([]vk.Image, count)
		return vkError("GetSwapchainImages", vk.GetSwapchainImages(n.device, out.Handle, &count, out.Images))
	})
	if err != nil {
		if out.Handle != vk.NullSwapchain {
			vk.DestroySwapchain(n.device, out.Handle, nil)
		}
		return nil, err
	}
	n.acquired, n.rendered = false, false
	return out, nil
}

// AcquireNextImage reports an out of date swapchain as a lookup failure;
// the caller recreates the swapchain and tries again.
func (n *NativeDriver) AcquireNextImage(sc vk.Swapchain) (uint32, error) {
	var index uint32
	res := vk.AcquireNextImage(n.device, sc, vk.MaxUint64, n.imageAvailable, vk.NullFence, &index)
	switch res {
	case vk.Success, vk.Suboptimal:
		n.acquired = true
		return index, nil
	case vk.ErrorOutOfDate:
		return 0, core.NewError(core.KindLookupFailure, "AcquireNextImage", "%s", VulkanResultString(res, true))
	}
	return 0, vkError("AcquireNextImage", res)
}

func (n *NativeDriver) Present(sc vk.Swapchain, index uint32) error {
	info := &vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc},
		PImageIndices:  []uint32{index},
	}
	if n.rendered {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{n.renderFinished}
	}
	n.rendered = false
	var res vk.Result
	n.locks.SafeQueueCall(uint32(n.gpu.families.present), func() error {
		res = vk.QueuePresent(n.presentQueue, info)
		return nil
	})
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		core.LogDebug("vulkan present: %s", VulkanResultString(res, false))
		return nil
	case vk.ErrorOutOfDate:
		return core.NewError(core.KindLookupFailure, "Present", "%s", VulkanResultString(res, true))
	}
	return vkError("Present", res)
}

func (n *NativeDriver) DestroySwapchain(sc vk.Swapchain) {
	n.locks.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(n.device, sc, nil)
		return nil
	})
}
