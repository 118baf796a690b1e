package d3d12

import (
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

const shaderResource = ResourceStatePixelShaderResource | ResourceStateNonPixelShaderResource

// State maps a neutral state onto the resource state of a texture.
// Undefined has no D3D12 equivalent; resources are created in Common.
func State(s metadata.ResourceState) ResourceStates {
	switch s {
	case metadata.ResourceStateColorAttachment:
		return ResourceStateRenderTarget
	case metadata.ResourceStateDepthStencilAttachment:
		return ResourceStateDepthWrite
	case metadata.ResourceStateShaderReadOnly:
		return shaderResource
	case metadata.ResourceStateGeneral:
		return ResourceStateUnorderedAccess
	case metadata.ResourceStateTransferSrc:
		return ResourceStateCopySource
	case metadata.ResourceStateTransferDst:
		return ResourceStateCopyDest
	case metadata.ResourceStatePresentSrc:
		return ResourceStatePresent
	}
	return ResourceStateCommon
}

// BufferState widens ShaderReadOnly to the input assembly and constant
// buffer reads a buffer in that state may serve.
func BufferState(s metadata.ResourceState) ResourceStates {
	if s == metadata.ResourceStateShaderReadOnly {
		return ResourceStateVertexAndConstantBuffer | ResourceStateIndexBuffer | shaderResource
	}
	return State(s)
}

// Barriers turns the changes of one texture into transition barriers, one
// per subresource. Changes whose native states are equal need no barrier
// and are dropped.
func Barriers(resource Handle, mipLevels uint32, changes []renderer.SubresourceTransition) []ResourceBarrier {
	out := make([]ResourceBarrier, 0, len(changes))
	for _, c := range changes {
		before, after := State(c.Before), State(c.After)
		if before == after {
			continue
		}
		out = append(out, ResourceBarrier{
			Resource:    resource,
			Subresource: metadata.SubresourceIndex(c.Layer, c.Mip, mipLevels),
			Before:      before,
			After:       after,
		})
	}
	return out
}

var formats = map[metadata.PixelFormat]Format{
	metadata.PixelFormatR8Unorm:        FormatR8Unorm,
	metadata.PixelFormatRG8Unorm:       FormatR8G8Unorm,
	metadata.PixelFormatRGBA8Unorm:     FormatR8G8B8A8Unorm,
	metadata.PixelFormatRGBA8Srgb:      FormatR8G8B8A8UnormSrgb,
	metadata.PixelFormatBGRA8Unorm:     FormatB8G8R8A8Unorm,
	metadata.PixelFormatBGRA8Srgb:      FormatB8G8R8A8UnormSrgb,
	metadata.PixelFormatR16Float:       FormatR16Float,
	metadata.PixelFormatRGBA16Float:    FormatR16G16B16A16Float,
	metadata.PixelFormatR32Float:       FormatR32Float,
	metadata.PixelFormatRG32Float:      FormatR32G32Float,
	metadata.PixelFormatRGBA32Float:    FormatR32G32B32A32Float,
	metadata.PixelFormatR32Uint:        FormatR32Uint,
	metadata.PixelFormatD16Unorm:       FormatD16Unorm,
	metadata.PixelFormatD24UnormS8Uint: FormatD24UnormS8Uint,
	metadata.PixelFormatD32Float:       FormatD32Float,
}

func DXGIFormat(f metadata.PixelFormat) Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return FormatUnknown
}

// PixelFormat is the reverse of DXGIFormat.
func PixelFormat(f Format) metadata.PixelFormat {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return metadata.PixelFormatUndefined
}

// ViewFormat is the format shader views of a texture use. Depth formats
// are read through their color equivalent.
func ViewFormat(f metadata.PixelFormat) Format {
	switch f {
	case metadata.PixelFormatD32Float:
		return FormatR32Float
	case metadata.PixelFormatD24UnormS8Uint:
		return FormatR24UnormX8
	case metadata.PixelFormatD16Unorm:
		return FormatR16Unorm
	}
	return DXGIFormat(f)
}

// VertexFormat is the per element format. Matrix inputs are split into one
// element per column sharing the semantic name.
func VertexFormat(f metadata.VertexFormat) Format {
	elem, _, _ := f.Layout()
	switch elem {
	case metadata.VertexFormatFloat:
		return FormatR32Float
	case metadata.VertexFormatFloat2:
		return FormatR32G32Float
	case metadata.VertexFormatFloat3:
		return FormatR32G32B32Float
	case metadata.VertexFormatFloat4:
		return FormatR32G32B32A32Float
	case metadata.VertexFormatInt2:
		return FormatR32G32Sint
	case metadata.VertexFormatInt3:
		return FormatR32G32B32Sint
	case metadata.VertexFormatInt4:
		return FormatR32G32B32A32Sint
	}
	return FormatUnknown
}

func IndexFormat(f renderer.IndexFormat) Format {
	if f == renderer.IndexFormatUint16 {
		return FormatR16Uint
	}
	return FormatR32Uint
}

func ResourceFlagsFor(u metadata.TextureUsage) ResourceFlags {
	var out ResourceFlags
	if u.Has(metadata.TextureUsageColorAttachment) {
		out |= ResourceFlagAllowRenderTarget
	}
	if u.Has(metadata.TextureUsageDepthStencilAttachment) {
		out |= ResourceFlagAllowDepthStencil
		if !u.Has(metadata.TextureUsageSampled) {
			out |= ResourceFlagDenyShaderResource
		}
	}
	if u.Has(metadata.TextureUsageStorage) {
		out |= ResourceFlagAllowUnorderedAccess
	}
	return out
}

// TopologyType is the topology class baked into a pipeline state object;
// Topology is what the command list sets at draw time.
func TopologyType(t metadata.PrimitiveTopology) PrimitiveTopologyType {
	switch t {
	case metadata.PrimitiveTopologyPointList:
		return PrimitiveTopologyTypePoint
	case metadata.PrimitiveTopologyLineList, metadata.PrimitiveTopologyLineStrip:
		return PrimitiveTopologyTypeLine
	}
	return PrimitiveTopologyTypeTriangle
}

func Topology(t metadata.PrimitiveTopology) PrimitiveTopology {
	switch t {
	case metadata.PrimitiveTopologyTriangleStrip:
		return PrimitiveTopologyTriangleStrip
	case metadata.PrimitiveTopologyLineList:
		return PrimitiveTopologyLineList
	case metadata.PrimitiveTopologyLineStrip:
		return PrimitiveTopologyLineStrip
	case metadata.PrimitiveTopologyPointList:
		return PrimitiveTopologyPointList
	}
	return PrimitiveTopologyTriangleList
}

// D3D12 has no point fill mode; points rasterize as wireframe.
func Fill(m metadata.PolygonMode) FillMode {
	if m == metadata.PolygonModeFill {
		return FillModeSolid
	}
	return FillModeWireframe
}

// Cull maps FrontAndBack onto None; D3D12 cannot cull both faces.
func Cull(m metadata.CullMode) CullMode {
	switch m {
	case metadata.CullModeFront:
		return CullModeFront
	case metadata.CullModeBack:
		return CullModeBack
	}
	return CullModeNone
}

var blends = [...]Blend{
	metadata.BlendFactorZero:             BlendZero,
	metadata.BlendFactorOne:              BlendOne,
	metadata.BlendFactorSrcColor:         BlendSrcColor,
	metadata.BlendFactorOneMinusSrcColor: BlendInvSrcColor,
	metadata.BlendFactorDstColor:         BlendDestColor,
	metadata.BlendFactorOneMinusDstColor: BlendInvDestColor,
	metadata.BlendFactorSrcAlpha:         BlendSrcAlpha,
	metadata.BlendFactorOneMinusSrcAlpha: BlendInvSrcAlpha,
	metadata.BlendFactorDstAlpha:         BlendDestAlpha,
	metadata.BlendFactorOneMinusDstAlpha: BlendInvDestAlpha,
}

func BlendFactor(f metadata.BlendFactor) Blend {
	if int(f) < len(blends) {
		return blends[f]
	}
	return BlendOne
}

func BlendOperation(op metadata.BlendOp) BlendOp {
	switch op {
	case metadata.BlendOpSubtract:
		return BlendOpSubtract
	case metadata.BlendOpReverseSubtract:
		return BlendOpRevSubtract
	case metadata.BlendOpMin:
		return BlendOpMin
	case metadata.BlendOpMax:
		return BlendOpMax
	}
	return BlendOpAdd
}

var comparisons = [...]ComparisonFunc{
	metadata.CompareOpNever:          ComparisonFuncNever,
	metadata.CompareOpLess:           ComparisonFuncLess,
	metadata.CompareOpEqual:          ComparisonFuncEqual,
	metadata.CompareOpLessOrEqual:    ComparisonFuncLessEqual,
	metadata.CompareOpGreater:        ComparisonFuncGreater,
	metadata.CompareOpNotEqual:       ComparisonFuncNotEqual,
	metadata.CompareOpGreaterOrEqual: ComparisonFuncGreaterEqual,
	metadata.CompareOpAlways:         ComparisonFuncAlways,
}

func Comparison(op metadata.CompareOp) ComparisonFunc {
	if int(op) < len(comparisons) {
		return comparisons[op]
	}
	return ComparisonFuncAlways
}

var stencilOps = [...]StencilOp{
	metadata.StencilOpKeep:              StencilOpKeep,
	metadata.StencilOpZero:              StencilOpZero,
	metadata.StencilOpReplace:           StencilOpReplace,
	metadata.StencilOpIncrementAndClamp: StencilOpIncrSat,
	metadata.StencilOpDecrementAndClamp: StencilOpDecrSat,
	metadata.StencilOpInvert:            StencilOpInvert,
	metadata.StencilOpIncrementAndWrap:  StencilOpIncr,
	metadata.StencilOpDecrementAndWrap:  StencilOpDecr,
}

func Stencil(op metadata.StencilOp) StencilOp {
	if int(op) < len(stencilOps) {
		return stencilOps[op]
	}
	return StencilOpKeep
}

// WriteMask uses the D3D12 bit order, which matches RGBA.
func WriteMask(m metadata.ColorWriteMask) uint8 {
	var out uint8
	if m&metadata.ColorWriteR != 0 {
		out |= 1
	}
	if m&metadata.ColorWriteG != 0 {
		out |= 2
	}
	if m&metadata.ColorWriteB != 0 {
		out |= 4
	}
	if m&metadata.ColorWriteA != 0 {
		out |= 8
	}
	return out
}

// SamplerFilter folds min/mag and mip filters into one D3D12 filter. Min
// and mag are expected to agree; mag decides when they don't.
func SamplerFilter(s metadata.SamplerDesc) Filter {
	nearestMip := s.MipFilter == metadata.FilterNearest
	if s.MagFilter == metadata.FilterNearest {
		if nearestMip {
			return FilterMinMagMipPoint
		}
		return FilterMinMagPointMipLinear
	}
	if nearestMip {
		return FilterMinMagLinearMipPoint
	}
	return FilterMinMagMipLinear
}

func AddressMode(m metadata.AddressMode) TextureAddressMode {
	switch m {
	case metadata.AddressModeMirroredRepeat:
		return TextureAddressModeMirror
	case metadata.AddressModeClampToEdge:
		return TextureAddressModeClamp
	case metadata.AddressModeClampToBorder:
		return TextureAddressModeBorder
	}
	return TextureAddressModeWrap
}

func rasterizer(s metadata.PipelineState) RasterizerDesc {
	return RasterizerDesc{
		FillMode:              Fill(s.PolygonMode),
		CullMode:              Cull(s.CullMode),
		FrontCounterClockwise: s.FrontFace == metadata.FrontFaceCounterClockwise,
		DepthClipEnable:       true,
	}
}

func stencilFace(f metadata.StencilFaceParams) StencilFace {
	return StencilFace{
		FailOp:      Stencil(f.FailOp),
		DepthFailOp: Stencil(f.DepthFailOp),
		PassOp:      Stencil(f.PassOp),
		Func:        Comparison(f.CompareOp),
	}
}

func depthStencil(s metadata.PipelineState) DepthStencilDesc {
	return DepthStencilDesc{
		DepthEnable:      s.DepthTestEnable,
		DepthWriteAll:    s.DepthWriteEnable,
		DepthFunc:        Comparison(s.DepthFunc),
		StencilEnable:    s.StencilEnable,
		StencilReadMask:  uint8(s.Stencil.ReadMask),
		StencilWriteMask: uint8(s.Stencil.WriteMask),
		FrontFace:        stencilFace(s.Stencil.Front),
		BackFace:         stencilFace(s.Stencil.Back),
	}
}

func renderTargetBlend(s metadata.PipelineState) RenderTargetBlend {
	return RenderTargetBlend{
		BlendEnable:    s.BlendEnable,
		SrcBlend:       BlendFactor(s.Blend.SrcColorBlendFactor),
		DestBlend:      BlendFactor(s.Blend.DstColorBlendFactor),
		BlendOp:        BlendOperation(s.Blend.ColorBlendOp),
		SrcBlendAlpha:  BlendFactor(s.Blend.SrcAlphaBlendFactor),
		DestBlendAlpha: BlendFactor(s.Blend.DstAlphaBlendFactor),
		BlendOpAlpha:   BlendOperation(s.Blend.AlphaBlendOp),
		WriteMask:      WriteMask(s.ColorWriteMask),
	}
}
