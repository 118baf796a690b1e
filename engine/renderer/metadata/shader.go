package metadata

import (
	"fmt"
	"strings"
)

/**
 * @brief Shader stage bit flags. A descriptor shared by several stages
 * carries the union.
 */
type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute
)

func (s ShaderStage) String() string {
	var parts []string
	if s&ShaderStageVertex != 0 {
		parts = append(parts, "vertex")
	}
	if s&ShaderStageFragment != 0 {
		parts = append(parts, "fragment")
	}
	if s&ShaderStageCompute != 0 {
		parts = append(parts, "compute")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

/** @brief Stage of a source file by extension (.vert, .frag, .comp). */
func ShaderStageFromExt(ext string) (ShaderStage, bool) {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "vert":
		return ShaderStageVertex, true
	case "frag":
		return ShaderStageFragment, true
	case "comp":
		return ShaderStageCompute, true
	}
	return 0, false
}

/** @brief The kind of resource a descriptor references. */
type DescriptorType uint8

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeStorageBuffer
	/** @brief A sampled image together with its sampler. */
	DescriptorTypeCombinedImageSampler
	DescriptorTypeStorageImage
)

var descriptorTypeNames = [...]string{
	"DESCRIPTOR_TYPE_UNIFORM_BUFFER",
	"DESCRIPTOR_TYPE_STORAGE_BUFFER",
	"DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER",
	"DESCRIPTOR_TYPE_STORAGE_IMAGE",
}

func (t DescriptorType) String() string {
	if int(t) < len(descriptorTypeNames) {
		return descriptorTypeNames[t]
	}
	return fmt.Sprintf("DESCRIPTOR_TYPE_%d", t)
}

// IsBuffer reports whether t is bound as a buffer rather than an image.
func (t DescriptorType) IsBuffer() bool {
	return t == DescriptorTypeUniformBuffer || t == DescriptorTypeStorageBuffer
}

func ParseDescriptorType(s string) (DescriptorType, error) {
	for i, n := range descriptorTypeNames {
		if s == n {
			return DescriptorType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown descriptor type %q", s)
}

/** @brief Vertex attribute formats. Matrices expand to several FLOAT4 columns. */
type VertexFormat uint8

const (
	VertexFormatUndefined VertexFormat = iota
	VertexFormatFloat
	VertexFormatFloat2
	VertexFormatFloat3
	VertexFormatFloat4
	VertexFormatInt2
	VertexFormatInt3
	VertexFormatInt4
	VertexFormatMat2
	VertexFormatMat3
	VertexFormatMat4
)

const vertexFormatPrefix = "VERTEXFORMAT_"

var vertexFormatNames = [...]string{
	"UNDEFINED", "FLOAT", "FLOAT2", "FLOAT3", "FLOAT4",
	"INT2", "INT3", "INT4", "MAT2", "MAT3", "MAT4",
}

func (f VertexFormat) String() string {
	if int(f) < len(vertexFormatNames) {
		return vertexFormatPrefix + vertexFormatNames[f]
	}
	return vertexFormatPrefix + "UNDEFINED"
}

/** @brief Accepts both "VERTEXFORMAT_FLOAT2" and "FLOAT2". */
func ParseVertexFormat(s string) (VertexFormat, error) {
	s = strings.TrimPrefix(s, vertexFormatPrefix)
	for i, n := range vertexFormatNames {
		if s == n {
			return VertexFormat(i), nil
		}
	}
	return VertexFormatUndefined, fmt.Errorf("unknown vertex format %q", s)
}

/**
 * @brief The native element layout of a vertex format: the element format,
 * how many consecutive locations it occupies and the size of one element.
 */
func (f VertexFormat) Layout() (elem VertexFormat, count uint32, elementSize uint32) {
	switch f {
	case VertexFormatFloat:
		return VertexFormatFloat, 1, 4
	case VertexFormatFloat2:
		return VertexFormatFloat2, 1, 8
	case VertexFormatFloat3:
		return VertexFormatFloat3, 1, 12
	case VertexFormatFloat4:
		return VertexFormatFloat4, 1, 16
	case VertexFormatInt2:
		return VertexFormatInt2, 1, 8
	case VertexFormatInt3:
		return VertexFormatInt3, 1, 12
	case VertexFormatInt4:
		return VertexFormatInt4, 1, 16
	case VertexFormatMat2:
		return VertexFormatFloat2, 2, 8
	case VertexFormatMat3:
		return VertexFormatFloat3, 3, 12
	case VertexFormatMat4:
		return VertexFormatFloat4, 4, 16
	}
	return VertexFormatUndefined, 0, 0
}

/** @brief Semantic used when reflection has none. */
const SemanticUndefined = "UNDEFINED"

/**
 * @brief A vertex stage input.
 */
type AttributeInfo struct {
	Name string
	/** @brief HLSL style semantic, e.g. TEXCOORD0. UNDEFINED when unknown. */
	Semantic string
	Location uint32
	Format   VertexFormat
	/** @brief Filled from Format.Layout(). */
	Count       uint32
	ElementSize uint32
}

/**
 * @brief A shader visible resource reference addressed by its set index.
 */
type DescriptorInfo struct {
	Name   string
	Type   DescriptorType
	Set    uint32
	Stages ShaderStage
	/** @brief For storage resources: true when no stage writes to it. */
	ReadOnly bool
	/**
	 * @brief Argument table indices the cross compiler gave the resource in
	 * translated MSL. Nil where the set is the native location.
	 */
	Native *NativeIndex
}

/**
 * @brief Native argument table indices of one descriptor. Buffers and
 * textures are separate index spaces, so Index is a [[buffer(n)]] or a
 * [[texture(n)]] index depending on the descriptor type. Sampler is the
 * [[sampler(n)]] index of a combined image sampler.
 */
type NativeIndex struct {
	/** @brief Stages using these indices. Zero inside a DescriptorInfo. */
	Stages  ShaderStage
	Index   uint32
	Sampler uint32
}

/**
 * @brief One flattened member of a uniform or storage buffer block.
 */
type BufferMemberInfo struct {
	Name        string
	Offset      uint32
	Size        uint32
	ArrayCount  uint32
	ArrayStride uint32
}

/**
 * @brief Layout of a uniform or storage buffer block.
 */
type BufferInfo struct {
	Name     string
	Set      uint32
	ReadOnly bool
	Members  []BufferMemberInfo
}

/** @brief Byte size of the block as laid out by its members. */
func (b BufferInfo) Size() uint32 {
	var size uint32
	for _, m := range b.Members {
		end := m.Offset + m.Size
		if m.ArrayCount > 0 && m.ArrayStride > 0 {
			end = m.Offset + m.ArrayCount*m.ArrayStride
		}
		if end > size {
			size = end
		}
	}
	return size
}

/**
 * @brief Everything a pipeline needs to know about one shader stage.
 */
type ShaderReflection struct {
	Attributes     []AttributeInfo
	Descriptors    []DescriptorInfo
	UniformBuffers []BufferInfo
	StorageBuffers []BufferInfo
}

/** @brief Looks up the uniform or storage block declared at set. */
func (r *ShaderReflection) BufferInfo(set uint32) (BufferInfo, bool) {
	for _, b := range r.UniformBuffers {
		if b.Set == set {
			return b, true
		}
	}
	for _, b := range r.StorageBuffers {
		if b.Set == set {
			return b, true
		}
	}
	return BufferInfo{}, false
}

/** @brief Sets Stages on every descriptor. Maps do not record stages. */
func (r *ShaderReflection) SetStage(stage ShaderStage) {
	for i := range r.Descriptors {
		r.Descriptors[i].Stages = stage
	}
}
