package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// loadVulkan points the loader at GLFW's vkGetInstanceProcAddr. GLFW must
// be initialized first.
func loadVulkan() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return core.NewError(core.KindLookupFailure, "NewNativeDriver", "vkGetInstanceProcAddr is not available; is GLFW initialized?")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return core.WrapError(core.KindLookupFailure, "NewNativeDriver", err, "loading vulkan")
	}
	return nil
}

func instanceLayerAvailable(name string) (bool, error) {
	var count uint32
	if err := vkError("EnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return false, err
	}
	layers := make([]vk.LayerProperties, count)
	if err := vkError("EnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, layers)); err != nil {
		return false, err
	}
	for i := range layers {
		layers[i].Deref()
		end := FindFirstZeroInByteArray(layers[i].LayerName[:])
		if string(layers[i].LayerName[:end]) == name {
			return true, nil
		}
	}
	return false, nil
}

func createInstance(opts NativeOptions) (vk.Instance, error) {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(opts.AppName),
		PEngineName:        VulkanSafeString("gfxhal"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	var extensions []string
	if opts.Surface != nil {
		extensions = append(extensions, opts.Surface.RequiredInstanceExtensions()...)
	}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if opts.Debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		ok, err := instanceLayerAvailable(validationLayer)
		if err != nil {
			return nil, err
		}
		if ok {
			layers = append(layers, validationLayer)
		} else {
			core.LogWarn("vulkan: %s requested but not installed", validationLayer)
		}
	}
	for _, e := range extensions {
		core.LogDebug("vulkan instance extension %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := vkError("CreateInstance", vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, core.WrapError(core.KindToolFailure, "CreateInstance", err, "loading instance functions")
	}
	core.LogInfo("vulkan instance created (layers: %v)", layers)
	return instance, nil
}

func createDebugCallback(instance vk.Instance) (vk.DebugReportCallback, error) {
	info := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: debugReport,
	}
	var cb vk.DebugReportCallback
	if err := vkError("CreateDebugReportCallback", vk.CreateDebugReportCallback(instance, &info, nil, &cb)); err != nil {
		return nil, err
	}
	return cb, nil
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("vulkan [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("vulkan [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("vulkan [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
