package renderer

import (
	"strings"
	"time"
	"unsafe"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type BackendType int

const (
	BackendTypeVulkan BackendType = iota
	BackendTypeDirectX12
	BackendTypeMetal
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeVulkan:
		return "vulkan"
	case BackendTypeDirectX12:
		return "dx12"
	case BackendTypeMetal:
		return "metal"
	}
	return "unknown"
}

// ParseBackendType accepts the names used in config files and on the command line.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vulkan", "vk":
		return BackendTypeVulkan, nil
	case "dx12", "d3d12", "directx12":
		return BackendTypeDirectX12, nil
	case "metal", "mtl":
		return BackendTypeMetal, nil
	}
	return 0, core.NewError(core.KindLookupFailure, "ParseBackendType", "unknown graphics backend %q", s)
}

// ArtifactExtensions returns the extensions appended to a shader source name
// for the compiled code and the binding map of backend b.
func ArtifactExtensions(b BackendType) (code string, bindingMap string) {
	switch b {
	case BackendTypeDirectX12:
		return ".dxc", ".hlsl.map"
	case BackendTypeMetal:
		return ".metallib", ".metal.map"
	}
	return ".spv", ".map"
}

// SurfaceProvider is what a swapchain needs from the window it presents to.
type SurfaceProvider interface {
	FramebufferSize() (width, height int)
	RequiredInstanceExtensions() []string
	// CreateWindowSurface returns the native surface handle for instance.
	CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error)
}

type SwapchainDesc struct {
	Width      uint32
	Height     uint32
	Format     metadata.PixelFormat
	ImageCount uint32
	VSync      bool
}

type GraphicsPipelineDesc struct {
	Label      string
	State      metadata.PipelineState
	Modules    []*ShaderModule
	Plan       *metadata.BindingPlan
	RenderPass RenderPass
}

type ComputePipelineDesc struct {
	Label  string
	Module *ShaderModule
	Plan   *metadata.BindingPlan
	// WorkgroupSize is the threadgroup size the kernel was written for.
	// Only Metal needs it at dispatch time; zero axes count as 1.
	WorkgroupSize [3]uint32
}

// Device creates every backend object. One implementation exists per
// backend. Pipelines are created with a merged plan; the device fills in its
// physical slots.
type Device interface {
	Backend() BackendType

	CreateTexture(desc metadata.TextureDesc) (Texture, error)
	CreateBuffer(desc metadata.BufferDesc) (Buffer, error)
	CreateRenderPass(cfg metadata.RenderPassConfig) (RenderPass, error)
	CreateFramebuffer(rp RenderPass, attachments []Attachment) (Framebuffer, error)
	CreateGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error)
	CreateComputePipeline(desc ComputePipelineDesc) (Pipeline, error)
	CreateCommandBuffer() (CommandBuffer, error)
	CreateFence(signaled bool) (Fence, error)
	CreateSwapchain(surface SurfaceProvider, desc SwapchainDesc) (Swapchain, error)

	Queue() Queue
	// Descriptors is the pool shader visible resources take their slot from.
	Descriptors() *DescriptorPool

	WaitIdle() error
	Destroy()
}

type Queue interface {
	// Submit hands cmds to the GPU. signal may be nil; when set it is
	// signaled once every command buffer completed.
	Submit(cmds []CommandBuffer, signal Fence) error
	WaitIdle() error
}

type Fence interface {
	// Wait blocks until the fence is signaled or timeout elapsed. The
	// boolean is false on timeout.
	Wait(timeout time.Duration) (bool, error)
	Reset() error
	Signaled() bool
	Destroy()
}
