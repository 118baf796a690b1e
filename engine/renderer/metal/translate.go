package metal

import (
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// Stages is where a resource in state s is accessed within a render
// pass. Transfer and present states are outside any render stage.
func Stages(s metadata.ResourceState) RenderStages {
	switch s {
	case metadata.ResourceStateColorAttachment, metadata.ResourceStateDepthStencilAttachment:
		return RenderStageFragment
	case metadata.ResourceStateShaderReadOnly, metadata.ResourceStateGeneral:
		return RenderStageVertex | RenderStageFragment
	}
	return 0
}

func isAttachment(s metadata.ResourceState) bool {
	return s == metadata.ResourceStateColorAttachment || s == metadata.ResourceStateDepthStencilAttachment
}

// TextureBarrier folds every change of one texture into a single memory
// barrier. Metal tracks textures whole, so subresources only contribute
// their stages. Attachment states widen the scope to render targets.
func TextureBarrier(texture Handle, changes []renderer.SubresourceTransition) MemoryBarrier {
	b := MemoryBarrier{Scope: BarrierScopeTextures, Resources: []Handle{texture}}
	for _, c := range changes {
		b.After |= Stages(c.Before)
		b.Before |= Stages(c.After)
		if isAttachment(c.Before) || isAttachment(c.After) {
			b.Scope |= BarrierScopeRenderTargets
		}
	}
	return b
}

func BufferBarrier(buffer Handle, before, after metadata.ResourceState) MemoryBarrier {
	return MemoryBarrier{
		Scope:     BarrierScopeBuffers,
		Resources: []Handle{buffer},
		After:     Stages(before),
		Before:    Stages(after),
	}
}

var formats = map[metadata.PixelFormat]PixelFormat{
	metadata.PixelFormatR8Unorm:        PixelFormatR8Unorm,
	metadata.PixelFormatRG8Unorm:       PixelFormatRG8Unorm,
	metadata.PixelFormatRGBA8Unorm:     PixelFormatRGBA8Unorm,
	metadata.PixelFormatRGBA8Srgb:      PixelFormatRGBA8UnormSRGB,
	metadata.PixelFormatBGRA8Unorm:     PixelFormatBGRA8Unorm,
	metadata.PixelFormatBGRA8Srgb:      PixelFormatBGRA8UnormSRGB,
	metadata.PixelFormatR16Float:       PixelFormatR16Float,
	metadata.PixelFormatRGBA16Float:    PixelFormatRGBA16Float,
	metadata.PixelFormatR32Float:       PixelFormatR32Float,
	metadata.PixelFormatRG32Float:      PixelFormatRG32Float,
	metadata.PixelFormatRGBA32Float:    PixelFormatRGBA32Float,
	metadata.PixelFormatR32Uint:        PixelFormatR32Uint,
	metadata.PixelFormatD16Unorm:       PixelFormatDepth16Unorm,
	metadata.PixelFormatD24UnormS8Uint: PixelFormatDepth24UnormStencil8,
	metadata.PixelFormatD32Float:       PixelFormatDepth32Float,
}

func Format(f metadata.PixelFormat) PixelFormat {
	if v, ok := formats[f]; ok {
		return v
	}
	return PixelFormatInvalid
}

// NeutralFormat is the reverse of Format.
func NeutralFormat(f PixelFormat) metadata.PixelFormat {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return metadata.PixelFormatUndefined
}

func TextureUsageFor(u metadata.TextureUsage) TextureUsage {
	var out TextureUsage
	if u.Has(metadata.TextureUsageSampled) {
		out |= TextureUsageShaderRead
	}
	if u.Has(metadata.TextureUsageStorage) {
		out |= TextureUsageShaderRead | TextureUsageShaderWrite
	}
	if u.Has(metadata.TextureUsageColorAttachment) || u.Has(metadata.TextureUsageDepthStencilAttachment) {
		out |= TextureUsageRenderTarget
	}
	return out
}

func TextureTypeFor(desc metadata.TextureDesc) TextureType {
	switch {
	case desc.Depth > 1:
		return TextureType3D
	case desc.ArrayLayers > 1:
		return TextureType2DArray
	}
	return TextureType2D
}

// StorageModeFor keeps host visible buffers in shared memory.
func StorageModeFor(desc metadata.BufferDesc) StorageMode {
	if desc.HostVisible {
		return StorageModeShared
	}
	return StorageModePrivate
}

func VertexFormatFor(f metadata.VertexFormat) VertexFormat {
	elem, _, _ := f.Layout()
	switch elem {
	case metadata.VertexFormatFloat:
		return VertexFormatFloat
	case metadata.VertexFormatFloat2:
		return VertexFormatFloat2
	case metadata.VertexFormatFloat3:
		return VertexFormatFloat3
	case metadata.VertexFormatFloat4:
		return VertexFormatFloat4
	case metadata.VertexFormatInt2:
		return VertexFormatInt2
	case metadata.VertexFormatInt3:
		return VertexFormatInt3
	case metadata.VertexFormatInt4:
		return VertexFormatInt4
	}
	return VertexFormatInvalid
}

func IndexTypeFor(f renderer.IndexFormat) IndexType {
	if f == renderer.IndexFormatUint16 {
		return IndexTypeUInt16
	}
	return IndexTypeUInt32
}

func indexSize(t IndexType) uint64 {
	if t == IndexTypeUInt16 {
		return 2
	}
	return 4
}

func Load(op metadata.LoadOp) LoadAction {
	switch op {
	case metadata.LoadOpLoad:
		return LoadActionLoad
	case metadata.LoadOpClear:
		return LoadActionClear
	}
	return LoadActionDontCare
}

func Store(op metadata.StoreOp) StoreAction {
	if op == metadata.StoreOpStore {
		return StoreActionStore
	}
	return StoreActionDontCare
}

func Primitive(t metadata.PrimitiveTopology) PrimitiveType {
	switch t {
	case metadata.PrimitiveTopologyTriangleStrip:
		return PrimitiveTypeTriangleStrip
	case metadata.PrimitiveTopologyLineList:
		return PrimitiveTypeLine
	case metadata.PrimitiveTopologyLineStrip:
		return PrimitiveTypeLineStrip
	case metadata.PrimitiveTopologyPointList:
		return PrimitiveTypePoint
	}
	return PrimitiveTypeTriangle
}

func TopologyClass(t metadata.PrimitiveTopology) PrimitiveTopologyClass {
	switch t {
	case metadata.PrimitiveTopologyPointList:
		return PrimitiveTopologyClassPoint
	case metadata.PrimitiveTopologyLineList, metadata.PrimitiveTopologyLineStrip:
		return PrimitiveTopologyClassLine
	}
	return PrimitiveTopologyClassTriangle
}

// Metal has no point fill mode; anything but fill draws lines.
func Fill(m metadata.PolygonMode) TriangleFillMode {
	if m == metadata.PolygonModeFill {
		return TriangleFillModeFill
	}
	return TriangleFillModeLines
}

// Cull maps FrontAndBack onto None; Metal cannot cull both faces.
func Cull(m metadata.CullMode) CullMode {
	switch m {
	case metadata.CullModeFront:
		return CullModeFront
	case metadata.CullModeBack:
		return CullModeBack
	}
	return CullModeNone
}

func FrontFacing(f metadata.FrontFace) Winding {
	if f == metadata.FrontFaceCounterClockwise {
		return WindingCounterClockwise
	}
	return WindingClockwise
}

var blendFactors = [...]BlendFactor{
	metadata.BlendFactorZero:             BlendFactorZero,
	metadata.BlendFactorOne:              BlendFactorOne,
	metadata.BlendFactorSrcColor:         BlendFactorSourceColor,
	metadata.BlendFactorOneMinusSrcColor: BlendFactorOneMinusSourceColor,
	metadata.BlendFactorDstColor:         BlendFactorDestinationColor,
	metadata.BlendFactorOneMinusDstColor: BlendFactorOneMinusDestinationColor,
	metadata.BlendFactorSrcAlpha:         BlendFactorSourceAlpha,
	metadata.BlendFactorOneMinusSrcAlpha: BlendFactorOneMinusSourceAlpha,
	metadata.BlendFactorDstAlpha:         BlendFactorDestinationAlpha,
	metadata.BlendFactorOneMinusDstAlpha: BlendFactorOneMinusDestinationAlpha,
}

func Blend(f metadata.BlendFactor) BlendFactor {
	if int(f) < len(blendFactors) {
		return blendFactors[f]
	}
	return BlendFactorOne
}

func BlendOp(op metadata.BlendOp) BlendOperation {
	switch op {
	case metadata.BlendOpSubtract:
		return BlendOperationSubtract
	case metadata.BlendOpReverseSubtract:
		return BlendOperationReverseSubtract
	case metadata.BlendOpMin:
		return BlendOperationMin
	case metadata.BlendOpMax:
		return BlendOperationMax
	}
	return BlendOperationAdd
}

// The compare and stencil enums share their order with Metal.
func Compare(op metadata.CompareOp) CompareFunction {
	if op > metadata.CompareOpAlways {
		return CompareFunctionAlways
	}
	return CompareFunction(op)
}

func StencilOp(op metadata.StencilOp) StencilOperation {
	if op > metadata.StencilOpDecrementAndWrap {
		return StencilOperationKeep
	}
	return StencilOperation(op)
}

// WriteMask reverses the bit order: Metal keeps red in the high bit.
func WriteMask(m metadata.ColorWriteMask) ColorWriteMask {
	var out ColorWriteMask
	if m&metadata.ColorWriteR != 0 {
		out |= ColorWriteMaskRed
	}
	if m&metadata.ColorWriteG != 0 {
		out |= ColorWriteMaskGreen
	}
	if m&metadata.ColorWriteB != 0 {
		out |= ColorWriteMaskBlue
	}
	if m&metadata.ColorWriteA != 0 {
		out |= ColorWriteMaskAlpha
	}
	return out
}

func minMagFilter(f metadata.FilterMode) SamplerMinMagFilter {
	if f == metadata.FilterNearest {
		return SamplerMinMagFilterNearest
	}
	return SamplerMinMagFilterLinear
}

func AddressMode(m metadata.AddressMode) SamplerAddressMode {
	switch m {
	case metadata.AddressModeMirroredRepeat:
		return SamplerAddressModeMirrorRepeat
	case metadata.AddressModeClampToEdge:
		return SamplerAddressModeClampToEdge
	case metadata.AddressModeClampToBorder:
		return SamplerAddressModeClampToBorderColor
	}
	return SamplerAddressModeRepeat
}

// Sampler describes the sampler state of a texture. Single mip textures
// are not mipmapped at all.
func Sampler(s metadata.SamplerDesc, mipLevels uint32) *SamplerDescriptor {
	mip := SamplerMipFilterLinear
	switch {
	case mipLevels <= 1:
		mip = SamplerMipFilterNotMipmapped
	case s.MipFilter == metadata.FilterNearest:
		mip = SamplerMipFilterNearest
	}
	mode := AddressMode(s.AddressMode)
	return &SamplerDescriptor{
		MinFilter:    minMagFilter(s.MinFilter),
		MagFilter:    minMagFilter(s.MagFilter),
		MipFilter:    mip,
		SAddressMode: mode,
		TAddressMode: mode,
		RAddressMode: mode,
		LodMaxClamp:  float32(mipLevels),
	}
}

func stencilFace(s metadata.StencilParams, f metadata.StencilFaceParams) StencilDescriptor {
	return StencilDescriptor{
		StencilCompare:   Compare(f.CompareOp),
		StencilFail:      StencilOp(f.FailOp),
		DepthFail:        StencilOp(f.DepthFailOp),
		DepthStencilPass: StencilOp(f.PassOp),
		ReadMask:         s.ReadMask,
		WriteMask:        s.WriteMask,
	}
}

// DepthStencil is the depth stencil state of a pipeline. A disabled depth
// test always passes and never writes.
func DepthStencil(s metadata.PipelineState) DepthStencilDescriptor {
	d := DepthStencilDescriptor{DepthCompare: CompareFunctionAlways}
	if s.DepthTestEnable {
		d.DepthCompare = Compare(s.DepthFunc)
		d.DepthWriteEnabled = s.DepthWriteEnable
	}
	if s.StencilEnable {
		d.StencilEnabled = true
		d.Front = stencilFace(s.Stencil, s.Stencil.Front)
		d.Back = stencilFace(s.Stencil, s.Stencil.Back)
	}
	return d
}

func colorAttachment(s metadata.PipelineState, format metadata.PixelFormat) ColorAttachmentDescriptor {
	return ColorAttachmentDescriptor{
		PixelFormat:                 Format(format),
		BlendingEnabled:             s.BlendEnable,
		SourceRGBBlendFactor:        Blend(s.Blend.SrcColorBlendFactor),
		DestinationRGBBlendFactor:   Blend(s.Blend.DstColorBlendFactor),
		RGBBlendOperation:           BlendOp(s.Blend.ColorBlendOp),
		SourceAlphaBlendFactor:      Blend(s.Blend.SrcAlphaBlendFactor),
		DestinationAlphaBlendFactor: Blend(s.Blend.DstAlphaBlendFactor),
		AlphaBlendOperation:         BlendOp(s.Blend.AlphaBlendOp),
		WriteMask:                   WriteMask(s.ColorWriteMask),
	}
}

// FunctionStagesFor maps the shader stages of a binding onto the encoder
// functions it is set on. Compute pipelines always bind to the kernel.
func FunctionStagesFor(stages metadata.ShaderStage, compute bool) FunctionStages {
	if compute {
		return FunctionStageKernel
	}
	var out FunctionStages
	if stages&metadata.ShaderStageVertex != 0 {
		out |= FunctionStageVertex
	}
	if stages&metadata.ShaderStageFragment != 0 {
		out |= FunctionStageFragment
	}
	return out
}
