package metal

// Handle is an opaque retained Objective-C object owned by the driver: a
// texture, buffer, library function, pipeline state, command buffer,
// encoder, shared event or layer.
type Handle uintptr

const NullHandle Handle = 0

// PixelFormat mirrors MTLPixelFormat for the formats this layer uses.
type PixelFormat uint32

const (
	PixelFormatInvalid              PixelFormat = 0
	PixelFormatR8Unorm              PixelFormat = 10
	PixelFormatR16Float             PixelFormat = 25
	PixelFormatRG8Unorm             PixelFormat = 30
	PixelFormatR32Uint              PixelFormat = 53
	PixelFormatR32Float             PixelFormat = 55
	PixelFormatRGBA8Unorm           PixelFormat = 70
	PixelFormatRGBA8UnormSRGB       PixelFormat = 71
	PixelFormatBGRA8Unorm           PixelFormat = 80
	PixelFormatBGRA8UnormSRGB       PixelFormat = 81
	PixelFormatRG32Float            PixelFormat = 105
	PixelFormatRGBA16Float          PixelFormat = 115
	PixelFormatRGBA32Float          PixelFormat = 125
	PixelFormatDepth16Unorm         PixelFormat = 250
	PixelFormatDepth32Float         PixelFormat = 252
	PixelFormatDepth24UnormStencil8 PixelFormat = 255
)

type TextureType uint8

const (
	TextureType2D      TextureType = 2
	TextureType2DArray TextureType = 3
	TextureType3D      TextureType = 7
)

// TextureUsage mirrors MTLTextureUsage.
type TextureUsage uint32

const (
	TextureUsageShaderRead   TextureUsage = 0x1
	TextureUsageShaderWrite  TextureUsage = 0x2
	TextureUsageRenderTarget TextureUsage = 0x4
)

// StorageMode mirrors MTLStorageMode. Shared memory is visible to both CPU
// and GPU; private memory only to the GPU.
type StorageMode uint8

const (
	StorageModeShared StorageMode = iota
	StorageModeManaged
	StorageModePrivate
)

// TextureDescriptor mirrors MTLTextureDescriptor.
type TextureDescriptor struct {
	Type        TextureType
	PixelFormat PixelFormat
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLength uint32
	SampleCount uint32
	Usage       TextureUsage
	StorageMode StorageMode
}

type SamplerMinMagFilter uint8

const (
	SamplerMinMagFilterNearest SamplerMinMagFilter = iota
	SamplerMinMagFilterLinear
)

type SamplerMipFilter uint8

const (
	SamplerMipFilterNotMipmapped SamplerMipFilter = iota
	SamplerMipFilterNearest
	SamplerMipFilterLinear
)

type SamplerAddressMode uint8

const (
	SamplerAddressModeClampToEdge        SamplerAddressMode = 0
	SamplerAddressModeRepeat             SamplerAddressMode = 2
	SamplerAddressModeMirrorRepeat       SamplerAddressMode = 3
	SamplerAddressModeClampToBorderColor SamplerAddressMode = 5
)

type SamplerDescriptor struct {
	MinFilter    SamplerMinMagFilter
	MagFilter    SamplerMinMagFilter
	MipFilter    SamplerMipFilter
	SAddressMode SamplerAddressMode
	TAddressMode SamplerAddressMode
	RAddressMode SamplerAddressMode
	LodMaxClamp  float32
}

// BarrierScope mirrors MTLBarrierScope.
type BarrierScope uint8

const (
	BarrierScopeBuffers       BarrierScope = 0x1
	BarrierScopeTextures      BarrierScope = 0x2
	BarrierScopeRenderTargets BarrierScope = 0x4
)

// RenderStages mirrors MTLRenderStages.
type RenderStages uint8

const (
	RenderStageVertex   RenderStages = 0x1
	RenderStageFragment RenderStages = 0x2
)

// MemoryBarrier orders the listed resources between the stages that wrote
// them (After) and the stages that read them next (Before).
type MemoryBarrier struct {
	Scope     BarrierScope
	Resources []Handle
	After     RenderStages
	Before    RenderStages
}

// FunctionStages selects which functions of a pipeline a binding reaches.
type FunctionStages uint8

const (
	FunctionStageVertex FunctionStages = 1 << iota
	FunctionStageFragment
	FunctionStageKernel
)

type LoadAction uint8

const (
	LoadActionDontCare LoadAction = iota
	LoadActionLoad
	LoadActionClear
)

type StoreAction uint8

const (
	StoreActionDontCare StoreAction = iota
	StoreActionStore
)

// RenderPassAttachment mirrors MTLRenderPassAttachmentDescriptor.
type RenderPassAttachment struct {
	Texture      Handle
	Level        uint32
	Slice        uint32
	LoadAction   LoadAction
	StoreAction  StoreAction
	ClearColor   [4]float64
	ClearDepth   float64
	ClearStencil uint32
}

// RenderPassDescriptor mirrors MTLRenderPassDescriptor. Stencil is set for
// combined depth stencil formats and shares the depth texture.
type RenderPassDescriptor struct {
	Colors  []RenderPassAttachment
	Depth   *RenderPassAttachment
	Stencil *RenderPassAttachment
	Width   uint32
	Height  uint32
}

type PrimitiveType uint8

const (
	PrimitiveTypePoint PrimitiveType = iota
	PrimitiveTypeLine
	PrimitiveTypeLineStrip
	PrimitiveTypeTriangle
	PrimitiveTypeTriangleStrip
)

type PrimitiveTopologyClass uint8

const (
	PrimitiveTopologyClassUnspecified PrimitiveTopologyClass = iota
	PrimitiveTopologyClassPoint
	PrimitiveTopologyClassLine
	PrimitiveTopologyClassTriangle
)

type TriangleFillMode uint8

const (
	TriangleFillModeFill TriangleFillMode = iota
	TriangleFillModeLines
)

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

type Winding uint8

const (
	WindingClockwise Winding = iota
	WindingCounterClockwise
)

type BlendFactor uint8

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSourceColor
	BlendFactorOneMinusSourceColor
	BlendFactorSourceAlpha
	BlendFactorOneMinusSourceAlpha
	BlendFactorDestinationColor
	BlendFactorOneMinusDestinationColor
	BlendFactorDestinationAlpha
	BlendFactorOneMinusDestinationAlpha
)

type BlendOperation uint8

const (
	BlendOperationAdd BlendOperation = iota
	BlendOperationSubtract
	BlendOperationReverseSubtract
	BlendOperationMin
	BlendOperationMax
)

// ColorWriteMask mirrors MTLColorWriteMask, which puts red in the high bit.
type ColorWriteMask uint8

const (
	ColorWriteMaskNone  ColorWriteMask = 0
	ColorWriteMaskAlpha ColorWriteMask = 0x1
	ColorWriteMaskBlue  ColorWriteMask = 0x2
	ColorWriteMaskGreen ColorWriteMask = 0x4
	ColorWriteMaskRed   ColorWriteMask = 0x8
	ColorWriteMaskAll   ColorWriteMask = 0xf
)

type CompareFunction uint8

const (
	CompareFunctionNever CompareFunction = iota
	CompareFunctionLess
	CompareFunctionEqual
	CompareFunctionLessEqual
	CompareFunctionGreater
	CompareFunctionNotEqual
	CompareFunctionGreaterEqual
	CompareFunctionAlways
)

type StencilOperation uint8

const (
	StencilOperationKeep StencilOperation = iota
	StencilOperationZero
	StencilOperationReplace
	StencilOperationIncrementClamp
	StencilOperationDecrementClamp
	StencilOperationInvert
	StencilOperationIncrementWrap
	StencilOperationDecrementWrap
)

type StencilDescriptor struct {
	StencilCompare   CompareFunction
	StencilFail      StencilOperation
	DepthFail        StencilOperation
	DepthStencilPass StencilOperation
	ReadMask         uint32
	WriteMask        uint32
}

// DepthStencilDescriptor mirrors MTLDepthStencilDescriptor. It is
// comparable so equal states can share one native object.
type DepthStencilDescriptor struct {
	DepthCompare      CompareFunction
	DepthWriteEnabled bool
	Front             StencilDescriptor
	Back              StencilDescriptor
	StencilEnabled    bool
}

type ColorAttachmentDescriptor struct {
	PixelFormat                 PixelFormat
	BlendingEnabled             bool
	SourceRGBBlendFactor        BlendFactor
	DestinationRGBBlendFactor   BlendFactor
	RGBBlendOperation           BlendOperation
	SourceAlphaBlendFactor      BlendFactor
	DestinationAlphaBlendFactor BlendFactor
	AlphaBlendOperation         BlendOperation
	WriteMask                   ColorWriteMask
}

// VertexFormat mirrors MTLVertexFormat.
type VertexFormat uint8

const (
	VertexFormatInvalid VertexFormat = 0
	VertexFormatFloat   VertexFormat = 28
	VertexFormatFloat2  VertexFormat = 29
	VertexFormatFloat3  VertexFormat = 30
	VertexFormatFloat4  VertexFormat = 31
	VertexFormatInt2    VertexFormat = 33
	VertexFormatInt3    VertexFormat = 34
	VertexFormatInt4    VertexFormat = 35
)

type VertexAttribute struct {
	Format      VertexFormat
	Offset      uint32
	BufferIndex uint32
}

type VertexBufferLayout struct {
	Stride uint32
}

// VertexDescriptor maps attribute locations and buffer indices to their
// descriptions.
type VertexDescriptor struct {
	Attributes map[uint32]VertexAttribute
	Layouts    map[uint32]VertexBufferLayout
}

// RenderPipelineDescriptor mirrors MTLRenderPipelineDescriptor.
type RenderPipelineDescriptor struct {
	Label              string
	VertexFunction     Handle
	FragmentFunction   Handle
	Vertex             VertexDescriptor
	ColorAttachments   []ColorAttachmentDescriptor
	DepthFormat        PixelFormat
	StencilFormat      PixelFormat
	SampleCount        uint32
	InputPrimitiveType PrimitiveTopologyClass
}

type IndexType uint8

const (
	IndexTypeUInt16 IndexType = iota
	IndexTypeUInt32
)

// TextureCopy addresses one texture slice and level against a buffer
// range, as the blit encoder copy calls do.
type TextureCopy struct {
	Buffer        Handle
	BufferOffset  uint64
	BytesPerRow   uint32
	BytesPerImage uint32
	Texture       Handle
	Level         uint32
	Slice         uint32
	Width         uint32
	Height        uint32
	Depth         uint32
}

type Viewport struct {
	Width, Height float64
	ZNear, ZFar   float64
}

// Layer is what a driver hands back after configuring a CAMetalLayer.
// Drawables are the textures the layer cycles through.
type Layer struct {
	Handle    Handle
	Format    PixelFormat
	Width     uint32
	Height    uint32
	Drawables []Handle
}
