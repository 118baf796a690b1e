package metadata

/** @brief Backend neutral pixel formats. */
type PixelFormat uint8

const (
	PixelFormatUndefined PixelFormat = iota
	PixelFormatR8Unorm
	PixelFormatRG8Unorm
	PixelFormatRGBA8Unorm
	PixelFormatRGBA8Srgb
	PixelFormatBGRA8Unorm
	PixelFormatBGRA8Srgb
	PixelFormatR16Float
	PixelFormatRGBA16Float
	PixelFormatR32Float
	PixelFormatRG32Float
	PixelFormatRGBA32Float
	PixelFormatR32Uint
	PixelFormatD16Unorm
	PixelFormatD24UnormS8Uint
	PixelFormatD32Float
)

var pixelFormatInfo = map[PixelFormat]struct {
	name  string
	bytes uint32
}{
	PixelFormatUndefined:      {"undefined", 0},
	PixelFormatR8Unorm:        {"r8unorm", 1},
	PixelFormatRG8Unorm:       {"rg8unorm", 2},
	PixelFormatRGBA8Unorm:     {"rgba8unorm", 4},
	PixelFormatRGBA8Srgb:      {"rgba8srgb", 4},
	PixelFormatBGRA8Unorm:     {"bgra8unorm", 4},
	PixelFormatBGRA8Srgb:      {"bgra8srgb", 4},
	PixelFormatR16Float:       {"r16float", 2},
	PixelFormatRGBA16Float:    {"rgba16float", 8},
	PixelFormatR32Float:       {"r32float", 4},
	PixelFormatRG32Float:      {"rg32float", 8},
	PixelFormatRGBA32Float:    {"rgba32float", 16},
	PixelFormatR32Uint:        {"r32uint", 4},
	PixelFormatD16Unorm:       {"d16unorm", 2},
	PixelFormatD24UnormS8Uint: {"d24unorms8uint", 4},
	PixelFormatD32Float:       {"d32float", 4},
}

func (f PixelFormat) String() string {
	if info, ok := pixelFormatInfo[f]; ok {
		return info.name
	}
	return "invalid"
}

func (f PixelFormat) BytesPerPixel() uint32 {
	return pixelFormatInfo[f].bytes
}

func (f PixelFormat) IsDepth() bool {
	return f == PixelFormatD16Unorm || f == PixelFormatD24UnormS8Uint || f == PixelFormatD32Float
}

func (f PixelFormat) HasStencil() bool {
	return f == PixelFormatD24UnormS8Uint
}

type FilterMode uint8

const (
	FilterLinear FilterMode = iota
	FilterNearest
)

type AddressMode uint8

const (
	AddressModeRepeat AddressMode = iota
	AddressModeMirroredRepeat
	AddressModeClampToEdge
	AddressModeClampToBorder
)

/** @brief Sampling state. Every sampled texture owns one sampler. */
type SamplerDesc struct {
	MinFilter   FilterMode
	MagFilter   FilterMode
	MipFilter   FilterMode
	AddressMode AddressMode
}

/**
 * @brief Describes a texture to create.
 */
type TextureDesc struct {
	/** @brief Debug label. Generated when empty. */
	Label       string
	Width       uint32
	Height      uint32
	Depth       uint32
	ArrayLayers uint32
	MipLevels   uint32
	Format      PixelFormat
	Usage       TextureUsage
	SampleCount uint32
	Sampler     SamplerDesc
	/**
	 * @brief The state every subresource is put in right after creation.
	 * Undefined picks DefaultState(Usage).
	 */
	InitialState ResourceState
}

// Normalized fills zero counts with 1.
func (d TextureDesc) Normalized() TextureDesc {
	if d.Depth == 0 {
		d.Depth = 1
	}
	if d.ArrayLayers == 0 {
		d.ArrayLayers = 1
	}
	if d.MipLevels == 0 {
		d.MipLevels = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	return d
}

func (d TextureDesc) SubresourceCount() uint32 {
	return d.ArrayLayers * d.MipLevels
}

/** @brief Sentinel count meaning "every remaining mip or layer". */
const RemainingSubresources = ^uint32(0)

/**
 * @brief Addresses a block of mips and array layers of a texture.
 */
type SubresourceRange struct {
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

/** @brief Every subresource of a texture. */
var AllSubresources = SubresourceRange{MipCount: RemainingSubresources, LayerCount: RemainingSubresources}

/** @brief A single (mip, layer) subresource. */
func Subresource(mip, layer uint32) SubresourceRange {
	return SubresourceRange{BaseMip: mip, MipCount: 1, BaseLayer: layer, LayerCount: 1}
}

/**
 * @brief Clamps the range to a texture with the given mip and layer counts.
 * The second result is false when nothing is addressed.
 */
func (r SubresourceRange) Resolve(mipLevels, arrayLayers uint32) (SubresourceRange, bool) {
	if r.BaseMip >= mipLevels || r.BaseLayer >= arrayLayers {
		return SubresourceRange{}, false
	}
	if r.MipCount == RemainingSubresources || r.BaseMip+r.MipCount > mipLevels {
		r.MipCount = mipLevels - r.BaseMip
	}
	if r.LayerCount == RemainingSubresources || r.BaseLayer+r.LayerCount > arrayLayers {
		r.LayerCount = arrayLayers - r.BaseLayer
	}
	return r, r.MipCount > 0 && r.LayerCount > 0
}

/** @brief Flat index of a subresource: layer * mipLevels + mip. */
func SubresourceIndex(layer, mip, mipLevels uint32) uint32 {
	return layer*mipLevels + mip
}

/**
 * @brief The resting state of a texture with these usages: where it is left
 * after creation and uploads.
 */
func DefaultState(u TextureUsage) ResourceState {
	switch {
	case u.Has(TextureUsageSampled):
		return ResourceStateShaderReadOnly
	case u.Has(TextureUsageStorage):
		return ResourceStateGeneral
	case u.Has(TextureUsageColorAttachment):
		return ResourceStateColorAttachment
	case u.Has(TextureUsageDepthStencilAttachment):
		return ResourceStateDepthStencilAttachment
	case u.Has(TextureUsageTransferDst):
		return ResourceStateTransferDst
	case u.Has(TextureUsageTransferSrc):
		return ResourceStateTransferSrc
	case u.Has(TextureUsagePresent):
		return ResourceStatePresentSrc
	}
	return ResourceStateUndefined
}
