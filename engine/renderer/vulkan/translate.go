package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// ImageLayout maps a neutral state onto the image layout it lives in.
func ImageLayout(s metadata.ResourceState) vk.ImageLayout {
	switch s {
	case metadata.ResourceStateColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case metadata.ResourceStateDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case metadata.ResourceStateShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case metadata.ResourceStateGeneral:
		return vk.ImageLayoutGeneral
	case metadata.ResourceStateTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case metadata.ResourceStateTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case metadata.ResourceStatePresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

// AccessMask is the memory access a state implies on images.
func AccessMask(s metadata.ResourceState) vk.AccessFlags {
	switch s {
	case metadata.ResourceStateColorAttachment:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
	case metadata.ResourceStateDepthStencilAttachment:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	case metadata.ResourceStateShaderReadOnly:
		return vk.AccessFlags(vk.AccessShaderReadBit)
	case metadata.ResourceStateGeneral:
		return vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit)
	case metadata.ResourceStateTransferSrc:
		return vk.AccessFlags(vk.AccessTransferReadBit)
	case metadata.ResourceStateTransferDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit)
	case metadata.ResourceStatePresentSrc:
		return vk.AccessFlags(vk.AccessMemoryReadBit)
	}
	return 0
}

// BufferAccessMask widens ShaderReadOnly to the fixed function reads of
// vertex, index and uniform buffers.
func BufferAccessMask(s metadata.ResourceState) vk.AccessFlags {
	if s == metadata.ResourceStateShaderReadOnly {
		return vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessUniformReadBit |
			vk.AccessVertexAttributeReadBit | vk.AccessIndexReadBit)
	}
	return AccessMask(s)
}

const shaderStages = vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit | vk.PipelineStageComputeShaderBit

// PipelineStage is where in the pipeline a state is produced or consumed.
func PipelineStage(s metadata.ResourceState) vk.PipelineStageFlags {
	switch s {
	case metadata.ResourceStateColorAttachment:
		return vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case metadata.ResourceStateDepthStencilAttachment:
		return vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	case metadata.ResourceStateShaderReadOnly, metadata.ResourceStateGeneral:
		return vk.PipelineStageFlags(shaderStages)
	case metadata.ResourceStateTransferSrc, metadata.ResourceStateTransferDst:
		return vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case metadata.ResourceStatePresentSrc:
		return vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}

func BufferPipelineStage(s metadata.ResourceState) vk.PipelineStageFlags {
	if s == metadata.ResourceStateShaderReadOnly {
		return vk.PipelineStageFlags(shaderStages | vk.PipelineStageVertexInputBit)
	}
	return PipelineStage(s)
}

var formats = map[metadata.PixelFormat]vk.Format{
	metadata.PixelFormatR8Unorm:        vk.FormatR8Unorm,
	metadata.PixelFormatRG8Unorm:       vk.FormatR8g8Unorm,
	metadata.PixelFormatRGBA8Unorm:     vk.FormatR8g8b8a8Unorm,
	metadata.PixelFormatRGBA8Srgb:      vk.FormatR8g8b8a8Srgb,
	metadata.PixelFormatBGRA8Unorm:     vk.FormatB8g8r8a8Unorm,
	metadata.PixelFormatBGRA8Srgb:      vk.FormatB8g8r8a8Srgb,
	metadata.PixelFormatR16Float:       vk.FormatR16Sfloat,
	metadata.PixelFormatRGBA16Float:    vk.FormatR16g16b16a16Sfloat,
	metadata.PixelFormatR32Float:       vk.FormatR32Sfloat,
	metadata.PixelFormatRG32Float:      vk.FormatR32g32Sfloat,
	metadata.PixelFormatRGBA32Float:    vk.FormatR32g32b32a32Sfloat,
	metadata.PixelFormatR32Uint:        vk.FormatR32Uint,
	metadata.PixelFormatD16Unorm:       vk.FormatD16Unorm,
	metadata.PixelFormatD24UnormS8Uint: vk.FormatD24UnormS8Uint,
	metadata.PixelFormatD32Float:       vk.FormatD32Sfloat,
}

func Format(f metadata.PixelFormat) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

// PixelFormat is the reverse of Format. Unknown formats map to Undefined.
func PixelFormat(f vk.Format) metadata.PixelFormat {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return metadata.PixelFormatUndefined
}

func AspectMask(f metadata.PixelFormat) vk.ImageAspectFlags {
	switch {
	case f.HasStencil():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	case f.IsDepth():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// ImageBarriers turns the changes of one texture into the arguments of a
// single vkCmdPipelineBarrier: the union of source and destination stages and
// one image barrier per subresource.
func ImageBarriers(image vk.Image, format metadata.PixelFormat, changes []renderer.SubresourceTransition) (src, dst vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	barriers = make([]vk.ImageMemoryBarrier, 0, len(changes))
	for _, c := range changes {
		src |= PipelineStage(c.Before)
		dst |= PipelineStage(c.After)
		barriers = append(barriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       AccessMask(c.Before),
			DstAccessMask:       AccessMask(c.After),
			OldLayout:           ImageLayout(c.Before),
			NewLayout:           ImageLayout(c.After),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     AspectMask(format),
				BaseMipLevel:   c.Mip,
				LevelCount:     1,
				BaseArrayLayer: c.Layer,
				LayerCount:     1,
			},
		})
	}
	return src, dst, barriers
}

func BufferBarrier(buffer vk.Buffer, before, after metadata.ResourceState) (src, dst vk.PipelineStageFlags, barrier vk.BufferMemoryBarrier) {
	return BufferPipelineStage(before), BufferPipelineStage(after), vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       BufferAccessMask(before),
		DstAccessMask:       BufferAccessMask(after),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buffer,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}
}

func ImageUsage(u metadata.TextureUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u.Has(metadata.TextureUsageSampled) {
		out |= vk.ImageUsageSampledBit
	}
	if u.Has(metadata.TextureUsageStorage) {
		out |= vk.ImageUsageStorageBit
	}
	if u.Has(metadata.TextureUsageColorAttachment) {
		out |= vk.ImageUsageColorAttachmentBit
	}
	if u.Has(metadata.TextureUsageDepthStencilAttachment) {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u.Has(metadata.TextureUsageTransferSrc) {
		out |= vk.ImageUsageTransferSrcBit
	}
	if u.Has(metadata.TextureUsageTransferDst) {
		out |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(out)
}

func BufferUsage(u metadata.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u.Has(metadata.BufferUsageVertex) {
		out |= vk.BufferUsageVertexBufferBit
	}
	if u.Has(metadata.BufferUsageIndex) {
		out |= vk.BufferUsageIndexBufferBit
	}
	if u.Has(metadata.BufferUsageUniform) {
		out |= vk.BufferUsageUniformBufferBit
	}
	if u.Has(metadata.BufferUsageStorage) {
		out |= vk.BufferUsageStorageBufferBit
	}
	if u.Has(metadata.BufferUsageTransferSrc) {
		out |= vk.BufferUsageTransferSrcBit
	}
	if u.Has(metadata.BufferUsageTransferDst) {
		out |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(out)
}

func LoadOp(op metadata.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case metadata.LoadOpClear:
		return vk.AttachmentLoadOpClear
	case metadata.LoadOpDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpLoad
}

func StoreOp(op metadata.StoreOp) vk.AttachmentStoreOp {
	if op == metadata.StoreOpDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func SampleCount(n uint32) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	}
	return vk.SampleCount1Bit
}

func DescriptorType(t metadata.DescriptorType) vk.DescriptorType {
	switch t {
	case metadata.DescriptorTypeStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case metadata.DescriptorTypeCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	case metadata.DescriptorTypeStorageImage:
		return vk.DescriptorTypeStorageImage
	}
	return vk.DescriptorTypeUniformBuffer
}

func ShaderStageFlags(s metadata.ShaderStage) vk.ShaderStageFlags {
	var out vk.ShaderStageFlagBits
	if s&metadata.ShaderStageVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if s&metadata.ShaderStageFragment != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	if s&metadata.ShaderStageCompute != 0 {
		out |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(out)
}

// VertexFormat is the per location format. Matrix formats map to their
// column format; the caller emits one attribute per column.
func VertexFormat(f metadata.VertexFormat) vk.Format {
	elem, _, _ := f.Layout()
	switch elem {
	case metadata.VertexFormatFloat:
		return vk.FormatR32Sfloat
	case metadata.VertexFormatFloat2:
		return vk.FormatR32g32Sfloat
	case metadata.VertexFormatFloat3:
		return vk.FormatR32g32b32Sfloat
	case metadata.VertexFormatFloat4:
		return vk.FormatR32g32b32a32Sfloat
	case metadata.VertexFormatInt2:
		return vk.FormatR32g32Sint
	case metadata.VertexFormatInt3:
		return vk.FormatR32g32b32Sint
	case metadata.VertexFormatInt4:
		return vk.FormatR32g32b32a32Sint
	}
	return vk.FormatUndefined
}

func IndexType(f renderer.IndexFormat) vk.IndexType {
	if f == renderer.IndexFormatUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func Topology(t metadata.PrimitiveTopology) vk.PrimitiveTopology {
	switch t {
	case metadata.PrimitiveTopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.PrimitiveTopologyLineList:
		return vk.PrimitiveTopologyLineList
	case metadata.PrimitiveTopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case metadata.PrimitiveTopologyPointList:
		return vk.PrimitiveTopologyPointList
	}
	return vk.PrimitiveTopologyTriangleList
}

func PolygonMode(m metadata.PolygonMode) vk.PolygonMode {
	switch m {
	case metadata.PolygonModeLine:
		return vk.PolygonModeLine
	case metadata.PolygonModePoint:
		return vk.PolygonModePoint
	}
	return vk.PolygonModeFill
}

func CullMode(m metadata.CullMode) vk.CullModeFlags {
	switch m {
	case metadata.CullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.CullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	}
	return vk.CullModeFlags(vk.CullModeBackBit)
}

func FrontFace(f metadata.FrontFace) vk.FrontFace {
	if f == metadata.FrontFaceClockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

var blendFactors = [...]vk.BlendFactor{
	metadata.BlendFactorZero:             vk.BlendFactorZero,
	metadata.BlendFactorOne:              vk.BlendFactorOne,
	metadata.BlendFactorSrcColor:         vk.BlendFactorSrcColor,
	metadata.BlendFactorOneMinusSrcColor: vk.BlendFactorOneMinusSrcColor,
	metadata.BlendFactorDstColor:         vk.BlendFactorDstColor,
	metadata.BlendFactorOneMinusDstColor: vk.BlendFactorOneMinusDstColor,
	metadata.BlendFactorSrcAlpha:         vk.BlendFactorSrcAlpha,
	metadata.BlendFactorOneMinusSrcAlpha: vk.BlendFactorOneMinusSrcAlpha,
	metadata.BlendFactorDstAlpha:         vk.BlendFactorDstAlpha,
	metadata.BlendFactorOneMinusDstAlpha: vk.BlendFactorOneMinusDstAlpha,
}

func BlendFactor(f metadata.BlendFactor) vk.BlendFactor {
	if int(f) < len(blendFactors) {
		return blendFactors[f]
	}
	return vk.BlendFactorOne
}

func BlendOp(op metadata.BlendOp) vk.BlendOp {
	switch op {
	case metadata.BlendOpSubtract:
		return vk.BlendOpSubtract
	case metadata.BlendOpReverseSubtract:
		return vk.BlendOpReverseSubtract
	case metadata.BlendOpMin:
		return vk.BlendOpMin
	case metadata.BlendOpMax:
		return vk.BlendOpMax
	}
	return vk.BlendOpAdd
}

var compareOps = [...]vk.CompareOp{
	metadata.CompareOpNever:          vk.CompareOpNever,
	metadata.CompareOpLess:           vk.CompareOpLess,
	metadata.CompareOpEqual:          vk.CompareOpEqual,
	metadata.CompareOpLessOrEqual:    vk.CompareOpLessOrEqual,
	metadata.CompareOpGreater:        vk.CompareOpGreater,
	metadata.CompareOpNotEqual:       vk.CompareOpNotEqual,
	metadata.CompareOpGreaterOrEqual: vk.CompareOpGreaterOrEqual,
	metadata.CompareOpAlways:         vk.CompareOpAlways,
}

func CompareOp(op metadata.CompareOp) vk.CompareOp {
	if int(op) < len(compareOps) {
		return compareOps[op]
	}
	return vk.CompareOpAlways
}

var stencilOps = [...]vk.StencilOp{
	metadata.StencilOpKeep:              vk.StencilOpKeep,
	metadata.StencilOpZero:              vk.StencilOpZero,
	metadata.StencilOpReplace:           vk.StencilOpReplace,
	metadata.StencilOpIncrementAndClamp: vk.StencilOpIncrementAndClamp,
	metadata.StencilOpDecrementAndClamp: vk.StencilOpDecrementAndClamp,
	metadata.StencilOpInvert:            vk.StencilOpInvert,
	metadata.StencilOpIncrementAndWrap:  vk.StencilOpIncrementAndWrap,
	metadata.StencilOpDecrementAndWrap:  vk.StencilOpDecrementAndWrap,
}

func StencilOp(op metadata.StencilOp) vk.StencilOp {
	if int(op) < len(stencilOps) {
		return stencilOps[op]
	}
	return vk.StencilOpKeep
}

func ColorWriteMask(m metadata.ColorWriteMask) vk.ColorComponentFlags {
	var out vk.ColorComponentFlagBits
	if m&metadata.ColorWriteR != 0 {
		out |= vk.ColorComponentRBit
	}
	if m&metadata.ColorWriteG != 0 {
		out |= vk.ColorComponentGBit
	}
	if m&metadata.ColorWriteB != 0 {
		out |= vk.ColorComponentBBit
	}
	if m&metadata.ColorWriteA != 0 {
		out |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(out)
}

func Filter(f metadata.FilterMode) vk.Filter {
	if f == metadata.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func MipmapMode(f metadata.FilterMode) vk.SamplerMipmapMode {
	if f == metadata.FilterNearest {
		return vk.SamplerMipmapModeNearest
	}
	return vk.SamplerMipmapModeLinear
}

func AddressMode(m metadata.AddressMode) vk.SamplerAddressMode {
	switch m {
	case metadata.AddressModeMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case metadata.AddressModeClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case metadata.AddressModeClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}
