package metadata

/**
 * @brief The backend neutral state of a texture subresource or a buffer.
 * Each backend maps these onto its own layouts, access masks and stages.
 */
type ResourceState uint8

const (
	/** @brief Contents are undefined. Only valid as an initial state. */
	ResourceStateUndefined ResourceState = iota
	ResourceStateColorAttachment
	ResourceStateDepthStencilAttachment
	/** @brief Read by shaders (sampled images, uniform/vertex/index buffers). */
	ResourceStateShaderReadOnly
	/** @brief Read and written by shaders (storage images and buffers). */
	ResourceStateGeneral
	ResourceStateTransferSrc
	ResourceStateTransferDst
	ResourceStatePresentSrc
)

var resourceStateNames = [...]string{
	"undefined",
	"color-attachment",
	"depth-stencil-attachment",
	"shader-read-only",
	"general",
	"transfer-src",
	"transfer-dst",
	"present-src",
}

func (s ResourceState) String() string {
	if int(s) < len(resourceStateNames) {
		return resourceStateNames[s]
	}
	return "invalid"
}

/** @brief Declared usages of a texture. */
type TextureUsage uint32

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageStorage
	TextureUsageColorAttachment
	TextureUsageDepthStencilAttachment
	TextureUsageTransferSrc
	TextureUsageTransferDst
	TextureUsagePresent
)

func (u TextureUsage) Has(flag TextureUsage) bool {
	return u&flag == flag
}

/**
 * @brief Reports whether a texture declared with these usages may be moved
 * into state. Undefined is never a valid target.
 */
func (u TextureUsage) Allows(state ResourceState) bool {
	switch state {
	case ResourceStateColorAttachment:
		return u.Has(TextureUsageColorAttachment)
	case ResourceStateDepthStencilAttachment:
		return u.Has(TextureUsageDepthStencilAttachment)
	case ResourceStateShaderReadOnly:
		return u.Has(TextureUsageSampled) || u.Has(TextureUsageStorage)
	case ResourceStateGeneral:
		return u.Has(TextureUsageStorage)
	case ResourceStateTransferSrc:
		return u.Has(TextureUsageTransferSrc)
	case ResourceStateTransferDst:
		return u.Has(TextureUsageTransferDst)
	case ResourceStatePresentSrc:
		return u.Has(TextureUsagePresent)
	}
	return false
}

/** @brief Declared usages of a buffer. */
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

func (u BufferUsage) Has(flag BufferUsage) bool {
	return u&flag == flag
}

/**
 * @brief Reports whether a buffer declared with these usages may be moved
 * into state. Attachment and present states never apply to buffers.
 */
func (u BufferUsage) Allows(state ResourceState) bool {
	switch state {
	case ResourceStateShaderReadOnly:
		return u&(BufferUsageVertex|BufferUsageIndex|BufferUsageUniform|BufferUsageStorage) != 0
	case ResourceStateGeneral:
		return u.Has(BufferUsageStorage)
	case ResourceStateTransferSrc:
		return u.Has(BufferUsageTransferSrc)
	case ResourceStateTransferDst:
		return u.Has(BufferUsageTransferDst)
	}
	return false
}
