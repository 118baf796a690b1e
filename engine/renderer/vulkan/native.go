package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

type NativeOptions struct {
	AppName string
	// Debug enables the validation layer and routes its reports to the log.
	Debug bool
	// Surface is the window presented to. Nil creates a headless device
	// that cannot make swapchains.
	Surface renderer.SurfaceProvider
	// DescriptorSets bounds the descriptor sets alive at once across all
	// command buffers.
	DescriptorSets uint32
}

// NativeDriver implements Driver with goki/vulkan against a real GPU. It
// owns one graphics queue, one command pool and one descriptor pool.
type NativeDriver struct {
	locks *VulkanLockPool

	instance vk.Instance
	debug    vk.DebugReportCallback
	surface  vk.Surface
	provider renderer.SurfaceProvider

	gpu            *physicalDevice
	device         vk.Device
	graphicsQueue  vk.Queue
	presentQueue   vk.Queue
	commandPool    vk.CommandPool
	descriptorPool vk.DescriptorPool

	// imageAvailable is signaled by AcquireNextImage and waited on by the
	// next submit, which signals renderFinished for Present.
	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	acquired       bool
	rendered       bool
}

// NewNativeDriver brings up an instance, picks a GPU and creates the
// logical device. The GLFW library must be initialized.
func NewNativeDriver(opts NativeOptions) (*NativeDriver, error) {
	if opts.DescriptorSets == 0 {
		opts.DescriptorSets = 1024
	}
	if err := loadVulkan(); err != nil {
		return nil, err
	}
	n := &NativeDriver{locks: NewVulkanLockPool(), provider: opts.Surface, surface: vk.NullSurface}

	var err error
	if n.instance, err = createInstance(opts); err != nil {
		return nil, err
	}
	if opts.Debug {
		if n.debug, err = createDebugCallback(n.instance); err != nil {
			core.LogWarn("vulkan: debug report callback unavailable: %v", err)
		}
	}
	if opts.Surface != nil {
		ptr, err := opts.Surface.CreateWindowSurface(n.instance, nil)
		if err != nil {
			n.Destroy()
			return nil, core.WrapError(core.KindToolFailure, "NewNativeDriver", err, "creating window surface")
		}
		n.surface = vk.SurfaceFromPointer(ptr)
	}
	if n.gpu, err = selectPhysicalDevice(n.instance, n.surface); err != nil {
		n.Destroy()
		return nil, err
	}
	if err := n.createDevice(opts.DescriptorSets); err != nil {
		n.Destroy()
		return nil, err
	}
	return n, nil
}

func (n *NativeDriver) createDevice(descriptorSets uint32) error {
	graphics, present := uint32(n.gpu.families.graphics), uint32(n.gpu.families.present)
	families := []uint32{graphics}
	if present != graphics {
		families = append(families, present)
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, f := range families {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: f,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
		n.locks.SetQueueFamily(f)
	}

	var extensions []string
	if n.surface != vk.NullSurface {
		extensions = append(extensions, vk.KhrSwapchainExtensionName)
	}
	if n.gpu.portability {
		extensions = append(extensions, "VK_KHR_portability_subset")
	}
	features := vk.PhysicalDeviceFeatures{SamplerAnisotropy: n.gpu.features.SamplerAnisotropy}

	if err := vkError("CreateDevice", vk.CreateDevice(n.gpu.handle, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}, nil, &n.device)); err != nil {
		return err
	}
	vk.GetDeviceQueue(n.device, graphics, 0, &n.graphicsQueue)
	vk.GetDeviceQueue(n.device, present, 0, &n.presentQueue)

	if err := vkError("CreateCommandPool", vk.CreateCommandPool(n.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: graphics,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &n.commandPool)); err != nil {
		return err
	}

	kinds := []vk.DescriptorType{
		vk.DescriptorTypeUniformBuffer,
		vk.DescriptorTypeStorageBuffer,
		vk.DescriptorTypeCombinedImageSampler,
		vk.DescriptorTypeSampledImage,
		vk.DescriptorTypeStorageImage,
	}
	sizes := make([]vk.DescriptorPoolSize, len(kinds))
	for i, k := range kinds {
		sizes[i] = vk.DescriptorPoolSize{Type: k, DescriptorCount: descriptorSets}
	}
	if err := vkError("CreateDescriptorPool", vk.CreateDescriptorPool(n.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       descriptorSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &n.descriptorPool)); err != nil {
		return err
	}

	semInfo := &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	if err := vkError("CreateSemaphore", vk.CreateSemaphore(n.device, semInfo, nil, &n.imageAvailable)); err != nil {
		return err
	}
	if err := vkError("CreateSemaphore", vk.CreateSemaphore(n.device, semInfo, nil, &n.renderFinished)); err != nil {
		return err
	}
	core.LogInfo("vulkan logical device created on %s (graphics family %d, present family %d)", n.gpu.name(), graphics, present)
	return nil
}

// DepthFormat is the depth format the selected GPU renders to.
func (n *NativeDriver) DepthFormat() vk.Format { return n.gpu.depthFormat }

func (n *NativeDriver) allocate(req vk.MemoryRequirements, props vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	req.Deref()
	index := n.gpu.findMemoryIndex(req.MemoryTypeBits, props)
	if index < 0 {
		return vk.NullDeviceMemory, core.NewError(core.KindResourceExhausted, "AllocateMemory", "no memory type with properties %#x", uint32(props))
	}
	var mem vk.DeviceMemory
	err := n.locks.SafeCall(MemoryManagement, func() error {
		return vkError("AllocateMemory", vk.AllocateMemory(n.device, &vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  req.Size,
			MemoryTypeIndex: uint32(index),
		}, nil, &mem))
	})
	return mem, err
}

func (n *NativeDriver) freeMemory(mem vk.DeviceMemory) {
	if mem == vk.NullDeviceMemory {
		return
	}
	n.locks.SafeCall(MemoryManagement, func() error {
		vk.FreeMemory(n.device, mem, nil)
		return nil
	})
}

func (n *NativeDriver) CreateImage(info *vk.ImageCreateInfo) (vk.Image, vk.DeviceMemory, error) {
	var image vk.Image
	if err := vkError("CreateImage", vk.CreateImage(n.device, info, nil, &image)); err != nil {
		return nil, vk.NullDeviceMemory, err
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(n.device, image, &req)
	mem, err := n.allocate(req, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(n.device, image, nil)
		return nil, vk.NullDeviceMemory, err
	}
	if err := vkError("BindImageMemory", vk.BindImageMemory(n.device, image, mem, 0)); err != nil {
		n.DestroyImage(image, mem)
		return nil, vk.NullDeviceMemory, err
	}
	return image, mem, nil
}

func (n *NativeDriver) DestroyImage(image vk.Image, memory vk.DeviceMemory) {
	vk.DestroyImage(n.device, image, nil)
	n.freeMemory(memory)
}

func (n *NativeDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	return view, vkError("CreateImageView", vk.CreateImageView(n.device, info, nil, &view))
}

func (n *NativeDriver) DestroyImageView(view vk.ImageView) { vk.DestroyImageView(n.device, view, nil) }

func (n *NativeDriver) CreateSampler(info *vk.SamplerCreateInfo) (vk.Sampler, error) {
	var s vk.Sampler
	return s, vkError("CreateSampler", vk.CreateSampler(n.device, info, nil, &s))
}

func (n *NativeDriver) DestroySampler(s vk.Sampler) { vk.DestroySampler(n.device, s, nil) }

func (n *NativeDriver) CreateBuffer(info *vk.BufferCreateInfo, hostVisible bool) (vk.Buffer, vk.DeviceMemory, error) {
	var buf vk.Buffer
	if err := vkError("CreateBuffer", vk.CreateBuffer(n.device, info, nil, &buf)); err != nil {
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	props := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if hostVisible {
		props = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(n.device, buf, &req)
	mem, err := n.allocate(req, props)
	if err != nil {
		vk.DestroyBuffer(n.device, buf, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	if err := vkError("BindBufferMemory", vk.BindBufferMemory(n.device, buf, mem, 0)); err != nil {
		n.DestroyBuffer(buf, mem)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	return buf, mem, nil
}

func (n *NativeDriver) DestroyBuffer(buf vk.Buffer, memory vk.DeviceMemory) {
	vk.DestroyBuffer(n.device, buf, nil)
	n.freeMemory(memory)
}

// mapped runs fn over size bytes of memory mapped at offset.
func (n *NativeDriver) mapped(op string, memory vk.DeviceMemory, offset uint64, size int, fn func([]byte)) error {
	if size == 0 {
		return nil
	}
	return n.locks.SafeCall(MemoryManagement, func() error {
		var ptr unsafe.Pointer
		if err := vkError(op, vk.MapMemory(n.device, memory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &ptr)); err != nil {
			return err
		}
		defer vk.UnmapMemory(n.device, memory)
		fn(unsafe.Slice((*byte)(ptr), size))
		return nil
	})
}

func (n *NativeDriver) WriteMemory(memory vk.DeviceMemory, offset uint64, data []byte) error {
	return n.mapped("WriteMemory", memory, offset, len(data), func(dst []byte) { copy(dst, data) })
}

func (n *NativeDriver) ReadMemory(memory vk.DeviceMemory, offset uint64, out []byte) error {
	return n.mapped("ReadMemory", memory, offset, len(out), func(src []byte) { copy(out, src) })
}

func (n *NativeDriver) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var rp vk.RenderPass
	return rp, vkError("CreateRenderPass", vk.CreateRenderPass(n.device, info, nil, &rp))
}

func (n *NativeDriver) DestroyRenderPass(rp vk.RenderPass) { vk.DestroyRenderPass(n.device, rp, nil) }

func (n *NativeDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var fb vk.Framebuffer
	return fb, vkError("CreateFramebuffer", vk.CreateFramebuffer(n.device, info, nil, &fb))
}

func (n *NativeDriver) DestroyFramebuffer(fb vk.Framebuffer) { vk.DestroyFramebuffer(n.device, fb, nil) }

func (n *NativeDriver) CreateShaderModule(code []byte) (vk.ShaderModule, error) {
	var m vk.ShaderModule
	return m, vkError("CreateShaderModule", vk.CreateShaderModule(n.device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &m))
}

func (n *NativeDriver) DestroyShaderModule(m vk.ShaderModule) { vk.DestroyShaderModule(n.device, m, nil) }

func (n *NativeDriver) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var l vk.DescriptorSetLayout
	return l, vkError("CreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(n.device, info, nil, &l))
}

func (n *NativeDriver) DestroyDescriptorSetLayout(l vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(n.device, l, nil)
}

func (n *NativeDriver) AllocateDescriptorSet(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	var set vk.DescriptorSet
	err := n.locks.SafeCall(DescriptorManagement, func() error {
		return vkError("AllocateDescriptorSets", vk.AllocateDescriptorSets(n.device, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     n.descriptorPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{layout},
		}, &set))
	})
	return set, err
}

func (n *NativeDriver) FreeDescriptorSets(sets []vk.DescriptorSet) {
	n.locks.SafeCall(DescriptorManagement, func() error {
		return vkError("FreeDescriptorSets", vk.FreeDescriptorSets(n.device, n.descriptorPool, uint32(len(sets)), sets))
	})
}

func (n *NativeDriver) UpdateDescriptorSet(write vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(n.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (n *NativeDriver) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var l vk.PipelineLayout
	return l, vkError("CreatePipelineLayout", vk.CreatePipelineLayout(n.device, info, nil, &l))
}

func (n *NativeDriver) DestroyPipelineLayout(l vk.PipelineLayout) {
	vk.DestroyPipelineLayout(n.device, l, nil)
}

func (n *NativeDriver) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	err := n.locks.SafeCall(PipelineManagement, func() error {
		return vkError("CreateGraphicsPipelines", vk.CreateGraphicsPipelines(n.device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{*info}, nil, pipelines))
	})
	return pipelines[0], err
}

func (n *NativeDriver) CreateComputePipeline(info *vk.ComputePipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	err := n.locks.SafeCall(PipelineManagement, func() error {
		return vkError("CreateComputePipelines", vk.CreateComputePipelines(n.device, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{*info}, nil, pipelines))
	})
	return pipelines[0], err
}

func (n *NativeDriver) DestroyPipeline(p vk.Pipeline) { vk.DestroyPipeline(n.device, p, nil) }

func (n *NativeDriver) DeviceWaitIdle() error {
	return vkError("DeviceWaitIdle", vk.DeviceWaitIdle(n.device))
}

// Destroy releases everything in reverse creation order. It is safe on a
// partially constructed driver.
func (n *NativeDriver) Destroy() {
	if n.device != nil {
		vk.DeviceWaitIdle(n.device)
		if n.imageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(n.device, n.imageAvailable, nil)
		}
		if n.renderFinished != vk.NullSemaphore {
			vk.DestroySemaphore(n.device, n.renderFinished, nil)
		}
		if n.descriptorPool != nil {
			vk.DestroyDescriptorPool(n.device, n.descriptorPool, nil)
		}
		if n.commandPool != nil {
			vk.DestroyCommandPool(n.device, n.commandPool, nil)
		}
		vk.DestroyDevice(n.device, nil)
		n.device = nil
	}
	if n.instance == nil {
		return
	}
	if n.surface != vk.NullSurface {
		vk.DestroySurface(n.instance, n.surface, nil)
		n.surface = vk.NullSurface
	}
	if n.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(n.instance, n.debug, nil)
		n.debug = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(n.instance, nil)
	n.instance = nil
	core.LogInfo("vulkan instance destroyed")
}
