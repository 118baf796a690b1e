package d3d12

// Handle is an opaque native object owned by the driver: a resource, a
// command list, a root signature, a pipeline state or a fence.
type Handle uintptr

const NullHandle Handle = 0

// ResourceStates mirrors D3D12_RESOURCE_STATES.
type ResourceStates uint32

const (
	ResourceStateCommon                  ResourceStates = 0
	ResourceStateVertexAndConstantBuffer ResourceStates = 0x1
	ResourceStateIndexBuffer             ResourceStates = 0x2
	ResourceStateRenderTarget            ResourceStates = 0x4
	ResourceStateUnorderedAccess         ResourceStates = 0x8
	ResourceStateDepthWrite              ResourceStates = 0x10
	ResourceStateDepthRead               ResourceStates = 0x20
	ResourceStateNonPixelShaderResource  ResourceStates = 0x40
	ResourceStatePixelShaderResource     ResourceStates = 0x80
	ResourceStateIndirectArgument        ResourceStates = 0x200
	ResourceStateCopyDest                ResourceStates = 0x400
	ResourceStateCopySource              ResourceStates = 0x800

	ResourceStatePresent     = ResourceStateCommon
	ResourceStateGenericRead = ResourceStateVertexAndConstantBuffer | ResourceStateIndexBuffer |
		ResourceStateNonPixelShaderResource | ResourceStatePixelShaderResource |
		ResourceStateIndirectArgument | ResourceStateCopySource
)

// AllSubresources mirrors D3D12_RESOURCE_BARRIER_ALL_SUBRESOURCES.
const AllSubresources = 0xffffffff

// ResourceBarrier is a transition barrier on one subresource.
type ResourceBarrier struct {
	Resource    Handle
	Subresource uint32
	Before      ResourceStates
	After       ResourceStates
}

// Format mirrors DXGI_FORMAT for the formats this layer uses.
type Format uint32

const (
	FormatUnknown           Format = 0
	FormatR32G32B32A32Float Format = 2
	FormatR32G32B32A32Sint  Format = 4
	FormatR32G32B32Float    Format = 6
	FormatR32G32B32Sint     Format = 8
	FormatR16G16B16A16Float Format = 10
	FormatR32G32Float       Format = 16
	FormatR32G32Sint        Format = 18
	FormatR8G8B8A8Unorm     Format = 28
	FormatR8G8B8A8UnormSrgb Format = 29
	FormatD32Float          Format = 40
	FormatR32Float          Format = 41
	FormatR32Uint           Format = 42
	FormatD24UnormS8Uint    Format = 45
	FormatR24UnormX8        Format = 46
	FormatR8G8Unorm         Format = 49
	FormatR16Float          Format = 54
	FormatD16Unorm          Format = 55
	FormatR16Unorm          Format = 56
	FormatR16Uint           Format = 57
	FormatR8Unorm           Format = 61
	FormatB8G8R8A8Unorm     Format = 87
	FormatB8G8R8A8UnormSrgb Format = 91
)

type HeapType uint8

const (
	HeapTypeDefault HeapType = iota + 1
	HeapTypeUpload
	HeapTypeReadback
)

type ResourceDimension uint8

const (
	ResourceDimensionBuffer ResourceDimension = iota + 1
	ResourceDimensionTexture2D
	ResourceDimensionTexture3D
)

type ResourceFlags uint32

const (
	ResourceFlagAllowRenderTarget    ResourceFlags = 0x1
	ResourceFlagAllowDepthStencil    ResourceFlags = 0x2
	ResourceFlagAllowUnorderedAccess ResourceFlags = 0x4
	ResourceFlagDenyShaderResource   ResourceFlags = 0x8
)

// ResourceDesc mirrors D3D12_RESOURCE_DESC. Buffers use Width as their size.
type ResourceDesc struct {
	Dimension        ResourceDimension
	Width            uint64
	Height           uint32
	DepthOrArraySize uint32
	MipLevels        uint32
	Format           Format
	SampleCount      uint32
	Flags            ResourceFlags
}

type ViewDimension uint8

const (
	ViewDimensionBuffer ViewDimension = iota
	ViewDimensionTexture2D
	ViewDimensionTexture2DArray
	ViewDimensionTexture3D
)

// ViewDesc covers SRV, UAV, RTV and DSV descriptions. Render target and
// depth views address exactly one subresource.
type ViewDesc struct {
	Format          Format
	Dimension       ViewDimension
	MostDetailedMip uint32
	MipLevels       uint32
	FirstSlice      uint32
	ArraySize       uint32
}

type Filter uint32

const (
	FilterMinMagMipPoint       Filter = 0x0
	FilterMinMagPointMipLinear Filter = 0x1
	FilterMinMagLinearMipPoint Filter = 0x14
	FilterMinMagMipLinear      Filter = 0x15
)

type TextureAddressMode uint8

const (
	TextureAddressModeWrap TextureAddressMode = iota + 1
	TextureAddressModeMirror
	TextureAddressModeClamp
	TextureAddressModeBorder
)

type SamplerDesc struct {
	Filter   Filter
	AddressU TextureAddressMode
	AddressV TextureAddressMode
	AddressW TextureAddressMode
	MaxLOD   float32
}

// DescriptorHeapType selects the shader visible heap a slot lives in.
type DescriptorHeapType uint8

const (
	DescriptorHeapCBVSRVUAV DescriptorHeapType = iota
	DescriptorHeapSampler
)

// CPUDescriptor is a render target or depth stencil view. Those live in
// driver managed, non shader visible heaps.
type CPUDescriptor uintptr

type RootParameterType uint8

const (
	RootParameterDescriptorTable RootParameterType = iota
	RootParameterCBV
	RootParameterSRV
	RootParameterUAV
)

type DescriptorRangeType uint8

const (
	DescriptorRangeSRV DescriptorRangeType = iota
	DescriptorRangeUAV
	DescriptorRangeCBV
	DescriptorRangeSampler
)

// RootParameter is one root signature entry. Every parameter binds
// register 0 of its own register space; tables hold a single descriptor.
type RootParameter struct {
	Type          RootParameterType
	Range         DescriptorRangeType
	RegisterSpace uint32
}

type RootSignatureFlags uint32

const RootSignatureFlagAllowInputAssemblerInputLayout RootSignatureFlags = 0x1

type InputClassification uint8

const (
	InputClassificationPerVertex InputClassification = iota
	InputClassificationPerInstance
)

// InputElement mirrors D3D12_INPUT_ELEMENT_DESC.
type InputElement struct {
	SemanticName      string
	SemanticIndex     uint32
	Format            Format
	InputSlot         uint32
	AlignedByteOffset uint32
	Classification    InputClassification
}

type PrimitiveTopologyType uint8

const (
	PrimitiveTopologyTypePoint PrimitiveTopologyType = iota + 1
	PrimitiveTopologyTypeLine
	PrimitiveTopologyTypeTriangle
)

// PrimitiveTopology mirrors D3D_PRIMITIVE_TOPOLOGY.
type PrimitiveTopology uint8

const (
	PrimitiveTopologyPointList     PrimitiveTopology = 1
	PrimitiveTopologyLineList      PrimitiveTopology = 2
	PrimitiveTopologyLineStrip     PrimitiveTopology = 3
	PrimitiveTopologyTriangleList  PrimitiveTopology = 4
	PrimitiveTopologyTriangleStrip PrimitiveTopology = 5
)

type FillMode uint8

const (
	FillModeWireframe FillMode = 2
	FillModeSolid     FillMode = 3
)

type CullMode uint8

const (
	CullModeNone  CullMode = 1
	CullModeFront CullMode = 2
	CullModeBack  CullMode = 3
)

type ComparisonFunc uint8

const (
	ComparisonFuncNever ComparisonFunc = iota + 1
	ComparisonFuncLess
	ComparisonFuncEqual
	ComparisonFuncLessEqual
	ComparisonFuncGreater
	ComparisonFuncNotEqual
	ComparisonFuncGreaterEqual
	ComparisonFuncAlways
)

type Blend uint8

const (
	BlendZero Blend = iota + 1
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDestAlpha
	BlendInvDestAlpha
	BlendDestColor
	BlendInvDestColor
)

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota + 1
	BlendOpSubtract
	BlendOpRevSubtract
	BlendOpMin
	BlendOpMax
)

type StencilOp uint8

const (
	StencilOpKeep StencilOp = iota + 1
	StencilOpZero
	StencilOpReplace
	StencilOpIncrSat
	StencilOpDecrSat
	StencilOpInvert
	StencilOpIncr
	StencilOpDecr
)

type RenderTargetBlend struct {
	BlendEnable    bool
	SrcBlend       Blend
	DestBlend      Blend
	BlendOp        BlendOp
	SrcBlendAlpha  Blend
	DestBlendAlpha Blend
	BlendOpAlpha   BlendOp
	WriteMask      uint8
}

type StencilFace struct {
	FailOp      StencilOp
	DepthFailOp StencilOp
	PassOp      StencilOp
	Func        ComparisonFunc
}

type DepthStencilDesc struct {
	DepthEnable      bool
	DepthWriteAll    bool
	DepthFunc        ComparisonFunc
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	FrontFace        StencilFace
	BackFace         StencilFace
}

type RasterizerDesc struct {
	FillMode              FillMode
	CullMode              CullMode
	FrontCounterClockwise bool
	DepthClipEnable       bool
}

// GraphicsPipelineStateDesc mirrors D3D12_GRAPHICS_PIPELINE_STATE_DESC.
type GraphicsPipelineStateDesc struct {
	RootSignature Handle
	VS, PS        []byte
	InputLayout   []InputElement
	Rasterizer    RasterizerDesc
	Blend         []RenderTargetBlend
	DepthStencil  DepthStencilDesc
	Topology      PrimitiveTopologyType
	RTVFormats    []Format
	DSVFormat     Format
	SampleCount   uint32
}

type ComputePipelineStateDesc struct {
	RootSignature Handle
	CS            []byte
}

type VertexBufferView struct {
	Location uint64
	Size     uint32
	Stride   uint32
}

type IndexBufferView struct {
	Location uint64
	Size     uint32
	Format   Format
}

// TextureCopy mirrors a placed footprint copy between a buffer and one
// texture subresource.
type TextureCopy struct {
	Buffer       Handle
	BufferOffset uint64
	RowPitch     uint32
	Texture      Handle
	Subresource  uint32
	Width        uint32
	Height       uint32
	Depth        uint32
	Format       Format
}

type Viewport struct {
	Width, Height      float32
	MinDepth, MaxDepth float32
}

// SwapchainBuffers is what a driver hands back after creating a swapchain.
type SwapchainBuffers struct {
	Handle  Handle
	Format  Format
	Width   uint32
	Height  uint32
	Buffers []Handle
}
