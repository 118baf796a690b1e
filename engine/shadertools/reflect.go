package shadertools

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// Reflection is the JSON document spirv-cross --reflect prints. Only the
// parts the binding map needs are decoded.
type Reflection struct {
	Types    map[string]ReflectedType `json:"types"`
	Inputs   []ReflectedInput         `json:"inputs"`
	Textures []ReflectedResource      `json:"textures"`
	Images   []ReflectedResource      `json:"images"`
	UBOs     []ReflectedResource      `json:"ubos"`
	SSBOs    []ReflectedResource      `json:"ssbos"`
}

type ReflectedType struct {
	Name    string            `json:"name"`
	Members []ReflectedMember `json:"members"`
}

type ReflectedMember struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Offset      uint32   `json:"offset"`
	Array       []uint32 `json:"array"`
	ArrayStride uint32   `json:"array_stride"`
}

type ReflectedInput struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location uint32 `json:"location"`
	// Semantic is not printed by spirv-cross; PatchReflectionHLSL fills it.
	Semantic string `json:"semantic,omitempty"`
}

type ReflectedResource struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Set      uint32 `json:"set"`
	Binding  uint32 `json:"binding"`
	ReadOnly *bool  `json:"readonly,omitempty"`
	// Native is filled by PatchReflectionMSL.
	Native *metadata.NativeIndex `json:"-"`
}

func (r *Reflection) descriptorCount() int {
	return len(r.Textures) + len(r.Images) + len(r.UBOs) + len(r.SSBOs)
}

func ParseReflection(data []byte) (*Reflection, error) {
	var r Reflection
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, core.WrapError(core.KindToolFailure, "ParseReflection", err, "spirv-cross printed invalid reflection")
	}
	return &r, nil
}

var inputFormats = map[string]metadata.VertexFormat{
	"float": metadata.VertexFormatFloat,
	"vec2":  metadata.VertexFormatFloat2,
	"vec3":  metadata.VertexFormatFloat3,
	"vec4":  metadata.VertexFormatFloat4,
	"ivec2": metadata.VertexFormatInt2,
	"ivec3": metadata.VertexFormatInt3,
	"ivec4": metadata.VertexFormatInt4,
	"mat2":  metadata.VertexFormatMat2,
	"mat3":  metadata.VertexFormatMat3,
	"mat4":  metadata.VertexFormatMat4,
}

// Byte sizes of the member types a buffer block may use.
var memberSizes = map[string]uint32{
	"int": 4, "uint": 4, "float": 4,
	"vec2": 8, "vec3": 12, "vec4": 16,
	"ivec2": 8, "ivec3": 12, "ivec4": 16,
	"uvec2": 8, "uvec3": 12, "uvec4": 16,
	"mat2": 16, "mat3": 36, "mat4": 64,
}

func descriptorType(glslType string) (metadata.DescriptorType, bool) {
	switch {
	case strings.HasPrefix(glslType, "sampler"):
		return metadata.DescriptorTypeCombinedImageSampler, true
	case strings.HasPrefix(glslType, "image"):
		return metadata.DescriptorTypeStorageImage, true
	}
	return 0, false
}

// ToShaderReflection flattens r into the binding map model. Vertex inputs
// are only kept for the vertex stage. Descriptors list the images first,
// then the buffers, each ordered by set; a later resource on the same set
// replaces an earlier one.
func (r *Reflection) ToShaderReflection(stage metadata.ShaderStage) (*metadata.ShaderReflection, error) {
	out := &metadata.ShaderReflection{}

	if stage == metadata.ShaderStageVertex {
		for _, in := range r.Inputs {
			format, ok := inputFormats[in.Type]
			if !ok {
				return nil, core.NewError(core.KindLookupFailure, "ToShaderReflection", "vertex input %q has unsupported type %s", in.Name, in.Type)
			}
			_, count, size := format.Layout()
			semantic := in.Semantic
			if semantic == "" {
				semantic = metadata.SemanticUndefined
			}
			out.Attributes = append(out.Attributes, metadata.AttributeInfo{
				Name:        in.Name,
				Semantic:    semantic,
				Location:    in.Location,
				Format:      format,
				Count:       count,
				ElementSize: size,
			})
		}
		sort.SliceStable(out.Attributes, func(i, j int) bool { return out.Attributes[i].Location < out.Attributes[j].Location })
	}

	images := make(map[uint32]metadata.DescriptorInfo)
	for _, group := range [][]ReflectedResource{r.Textures, r.Images} {
		for _, res := range group {
			t, ok := descriptorType(res.Type)
			if !ok {
				return nil, core.NewError(core.KindLookupFailure, "ToShaderReflection", "descriptor %q has unsupported type %s", res.Name, res.Type)
			}
			readOnly := t == metadata.DescriptorTypeCombinedImageSampler || (res.ReadOnly != nil && *res.ReadOnly)
			images[res.Set] = metadata.DescriptorInfo{Name: res.Name, Type: t, Set: res.Set, Stages: stage, ReadOnly: readOnly, Native: res.Native}
		}
	}
	buffers := make(map[uint32]metadata.DescriptorInfo)
	for _, res := range r.UBOs {
		buffers[res.Set] = metadata.DescriptorInfo{Name: res.Name, Type: metadata.DescriptorTypeUniformBuffer, Set: res.Set, Stages: stage, ReadOnly: true, Native: res.Native}
	}
	for _, res := range r.SSBOs {
		buffers[res.Set] = metadata.DescriptorInfo{Name: res.Name, Type: metadata.DescriptorTypeStorageBuffer, Set: res.Set, Stages: stage, ReadOnly: res.ReadOnly != nil && *res.ReadOnly, Native: res.Native}
	}
	out.Descriptors = append(sortedBySet(images), sortedBySet(buffers)...)

	var err error
	if out.UniformBuffers, err = r.bufferInfos(r.UBOs, true); err != nil {
		return nil, err
	}
	if out.StorageBuffers, err = r.bufferInfos(r.SSBOs, false); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedBySet(m map[uint32]metadata.DescriptorInfo) []metadata.DescriptorInfo {
	out := make([]metadata.DescriptorInfo, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Set < out[j].Set })
	return out
}

func (r *Reflection) bufferInfos(resources []ReflectedResource, readOnlyDefault bool) ([]metadata.BufferInfo, error) {
	var out []metadata.BufferInfo
	for _, res := range resources {
		block, ok := r.Types[res.Type]
		if !ok {
			return nil, core.NewError(core.KindLookupFailure, "ToShaderReflection", "buffer %q references unknown type %s", res.Name, res.Type)
		}
		info := metadata.BufferInfo{Name: res.Name, Set: res.Set, ReadOnly: readOnlyDefault}
		if res.ReadOnly != nil {
			info.ReadOnly = *res.ReadOnly
		}
		members, err := r.flatten(block.Members, 0, "")
		if err != nil {
			return nil, err
		}
		info.Members = members
		out = append(out, info)
	}
	return out, nil
}

// flatten expands nested structs into outer.inner members with absolute
// offsets.
func (r *Reflection) flatten(members []ReflectedMember, base uint32, prefix string) ([]metadata.BufferMemberInfo, error) {
	var out []metadata.BufferMemberInfo
	for _, m := range members {
		if size, ok := memberSizes[m.Type]; ok {
			info := metadata.BufferMemberInfo{
				Name:        prefix + m.Name,
				Offset:      base + m.Offset,
				Size:        size,
				ArrayStride: m.ArrayStride,
			}
			if len(m.Array) > 0 {
				info.ArrayCount = m.Array[0]
			}
			out = append(out, info)
			continue
		}
		nested, ok := r.Types[m.Type]
		if !ok {
			return nil, core.NewError(core.KindLookupFailure, "ToShaderReflection", "member %s%s has unrecognized type %s", prefix, m.Name, m.Type)
		}
		inner, err := r.flatten(nested.Members, base+m.Offset, prefix+m.Name+".")
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
	}
	return out, nil
}
