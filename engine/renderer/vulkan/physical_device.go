package vulkan

import (
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
)

type swapchainSupport struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type queueFamilies struct {
	graphics, present int32
}

type physicalDevice struct {
	handle      vk.PhysicalDevice
	properties  vk.PhysicalDeviceProperties
	features    vk.PhysicalDeviceFeatures
	memory      vk.PhysicalDeviceMemoryProperties
	families    queueFamilies
	depthFormat vk.Format
	// portability is set when the device exposes VK_KHR_portability_subset,
	// which must then be enabled.
	portability bool
}

func (p *physicalDevice) name() string {
	end := FindFirstZeroInByteArray(p.properties.DeviceName[:])
	return string(p.properties.DeviceName[:end])
}

func querySwapchainSupport(device vk.PhysicalDevice, surface vk.Surface) (*swapchainSupport, error) {
	out := &swapchainSupport{}
	if err := vkError("GetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &out.Capabilities)); err != nil {
		return nil, err
	}
	out.Capabilities.Deref()
	out.Capabilities.CurrentExtent.Deref()
	out.Capabilities.MinImageExtent.Deref()
	out.Capabilities.MaxImageExtent.Deref()

	var count uint32
	if err := vkError("GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(device, surface, &count, nil)); err != nil {
		return nil, err
	}
	if count > 0 {
		out.Formats = make([]vk.SurfaceFormat, count)
		if err := vkError("GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(device, surface, &count, out.Formats)); err != nil {
			return nil, err
		}
		for i := range out.Formats {
			out.Formats[i].Deref()
		}
	}

	count = 0
	if err := vkError("GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &count, nil)); err != nil {
		return nil, err
	}
	if count > 0 {
		out.PresentModes = make([]vk.PresentMode, count)
		if err := vkError("GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &count, out.PresentModes)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func detectDepthFormat(device vk.PhysicalDevice) vk.Format {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, f := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device, f, &props)
		props.Deref()
		if props.OptimalTilingFeatures&flags == flags {
			return f
		}
	}
	return vk.FormatUndefined
}

func deviceExtensions(device vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if err := vkError("EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vkError("EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device, "", &count, props)); err != nil {
		return nil, err
	}
	out := make(map[string]bool, count)
	for i := range props {
		props[i].Deref()
		end := FindFirstZeroInByteArray(props[i].ExtensionName[:])
		out[string(props[i].ExtensionName[:end])] = true
	}
	return out, nil
}

// findQueueFamilies returns the first graphics family that can also
// compute, and a family able to present to surface. Without a surface
// presenting is not required and present equals graphics.
func findQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) (queueFamilies, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	out := queueFamilies{graphics: -1, present: -1}
	want := vk.QueueFlags(vk.QueueGraphicsBit) | vk.QueueFlags(vk.QueueComputeBit)
	for i := range props {
		props[i].Deref()
		if out.graphics < 0 && props[i].QueueFlags&want == want {
			out.graphics = int32(i)
		}
		if surface == vk.NullSurface {
			continue
		}
		var supported vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supported); res != vk.Success {
			continue
		}
		// Prefer a family that does both.
		if supported == vk.True && (out.present < 0 || int32(i) == out.graphics) {
			out.present = int32(i)
		}
	}
	if surface == vk.NullSurface {
		out.present = out.graphics
	}
	return out, out.graphics >= 0 && out.present >= 0
}

// evaluatePhysicalDevice returns nil when device lacks anything required.
func evaluatePhysicalDevice(device vk.PhysicalDevice, surface vk.Surface) *physicalDevice {
	p := &physicalDevice{handle: device}
	vk.GetPhysicalDeviceProperties(device, &p.properties)
	p.properties.Deref()
	vk.GetPhysicalDeviceFeatures(device, &p.features)
	p.features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(device, &p.memory)
	p.memory.Deref()

	families, ok := findQueueFamilies(device, surface)
	if !ok {
		core.LogDebug("vulkan: %s lacks a graphics or present queue, skipping", p.name())
		return nil
	}
	p.families = families

	exts, err := deviceExtensions(device)
	if err != nil {
		core.LogWarn("vulkan: %s: %v", p.name(), err)
		return nil
	}
	if surface != vk.NullSurface {
		if !exts[vk.KhrSwapchainExtensionName] {
			core.LogDebug("vulkan: %s lacks %s, skipping", p.name(), vk.KhrSwapchainExtensionName)
			return nil
		}
		support, err := querySwapchainSupport(device, surface)
		if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			core.LogDebug("vulkan: %s cannot present to this surface, skipping", p.name())
			return nil
		}
	}
	p.portability = exts["VK_KHR_portability_subset"]

	if p.depthFormat = detectDepthFormat(device); p.depthFormat == vk.FormatUndefined {
		core.LogDebug("vulkan: %s has no depth format, skipping", p.name())
		return nil
	}
	return p
}

// selectPhysicalDevice takes the first suitable discrete GPU, or the first
// suitable device of any kind when there is none. On darwin every device
// goes through MoltenVK and none reports as discrete.
func selectPhysicalDevice(instance vk.Instance, surface vk.Surface) (*physicalDevice, error) {
	var count uint32
	if err := vkError("EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &count, nil)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, core.NewError(core.KindLookupFailure, "selectPhysicalDevice", "no device supports vulkan")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := vkError("EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &count, devices)); err != nil {
		return nil, err
	}

	var chosen *physicalDevice
	for _, d := range devices {
		p := evaluatePhysicalDevice(d, surface)
		if p == nil {
			continue
		}
		if p.properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu || runtime.GOOS == "darwin" {
			chosen = p
			break
		}
		if chosen == nil {
			chosen = p
		}
	}
	if chosen == nil {
		return nil, core.NewError(core.KindLookupFailure, "selectPhysicalDevice", "none of %d devices meets the requirements", count)
	}

	core.LogInfo("vulkan device selected: %s (type %d, api %d.%d.%d)", chosen.name(), chosen.properties.DeviceType,
		vk.Version(chosen.properties.ApiVersion).Major(),
		vk.Version(chosen.properties.ApiVersion).Minor(),
		vk.Version(chosen.properties.ApiVersion).Patch())
	for i := uint32(0); i < chosen.memory.MemoryHeapCount; i++ {
		heap := chosen.memory.MemoryHeaps[i]
		heap.Deref()
		gib := float64(heap.Size) / (1 << 30)
		if heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			core.LogDebug("vulkan local GPU memory: %.2f GiB", gib)
		} else {
			core.LogDebug("vulkan shared system memory: %.2f GiB", gib)
		}
	}
	return chosen, nil
}

// findMemoryIndex returns the first memory type allowed by typeFilter that
// has every flag in properties, or -1.
func (p *physicalDevice) findMemoryIndex(typeFilter uint32, properties vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < p.memory.MemoryTypeCount; i++ {
		t := p.memory.MemoryTypes[i]
		t.Deref()
		if typeFilter&(1<<i) != 0 && t.PropertyFlags&properties == properties {
			return int32(i)
		}
	}
	return -1
}
