package metadata

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShaderMapRoundTrip(t *testing.T) {
	in := &ShaderReflection{
		Attributes: []AttributeInfo{
			{Name: "pos", Semantic: SemanticUndefined, Location: 0, Format: VertexFormatFloat2, Count: 1, ElementSize: 8},
		},
		Descriptors: []DescriptorInfo{
			{Name: "color", Type: DescriptorTypeUniformBuffer, Set: 0},
		},
		UniformBuffers: []BufferInfo{
			{Name: "color", Set: 0, ReadOnly: true, Members: []BufferMemberInfo{
				{Name: "color", Offset: 0, Size: 16, ArrayCount: 0, ArrayStride: 0},
			}},
		},
	}

	text := FormatShaderMap(in)
	assert.Equal(t, `INPUT_ATTRIBUTES 1
  pos UNDEFINED 0 VERTEXFORMAT_FLOAT2
DESCRIPTORS 1
  color DESCRIPTOR_TYPE_UNIFORM_BUFFER 0
UNIFORM_BUFFER_INFOS 1
  color 0 1 1
    color 0 16 0 0
SHADER_STORAGE_BUFFER_INFOS 0
`, string(text))

	out, err := ParseShaderMap(bytes.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, text, FormatShaderMap(out))
}

func TestShaderMapEmptySemanticWritesUndefined(t *testing.T) {
	r := &ShaderReflection{Attributes: []AttributeInfo{{Name: "uv", Location: 1, Format: VertexFormatFloat2}}}
	assert.Contains(t, string(FormatShaderMap(r)), "uv UNDEFINED 1 VERTEXFORMAT_FLOAT2")
}

func TestShaderMapStorageReadOnlyFlowsToDescriptor(t *testing.T) {
	text := `INPUT_ATTRIBUTES 0
DESCRIPTORS 2
  particles DESCRIPTOR_TYPE_STORAGE_BUFFER 0
  outImage DESCRIPTOR_TYPE_STORAGE_IMAGE 1
UNIFORM_BUFFER_INFOS 0
SHADER_STORAGE_BUFFER_INFOS 1
  particles 0 1 2
    particles.pos 0 8 0 0
    particles.vel 8 8 0 0
`
	r, err := ParseShaderMap(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, r.Descriptors, 2)
	assert.True(t, r.Descriptors[0].ReadOnly)
	assert.False(t, r.Descriptors[1].ReadOnly)
	assert.Equal(t, uint32(16), r.StorageBuffers[0].Size())
}

func TestShaderMapAcceptsBareVertexFormat(t *testing.T) {
	text := "INPUT_ATTRIBUTES 1\n pos UNDEFINED 0 FLOAT3\nDESCRIPTORS 0\n\nUNIFORM_BUFFER_INFOS 0\nSHADER_STORAGE_BUFFER_INFOS 0"
	r, err := ParseShaderMap(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, VertexFormatFloat3, r.Attributes[0].Format)
	assert.Equal(t, uint32(12), r.Attributes[0].ElementSize)
}

func TestShaderMapNativeColumns(t *testing.T) {
	in := &ShaderReflection{
		Descriptors: []DescriptorInfo{
			{Name: "albedo", Type: DescriptorTypeCombinedImageSampler, Set: 1, Native: &NativeIndex{Index: 0, Sampler: 2}},
			{Name: "UBO", Type: DescriptorTypeUniformBuffer, Set: 0, Native: &NativeIndex{Index: 0}},
		},
	}
	text := FormatShaderMap(in)
	assert.Contains(t, string(text), "  albedo DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER 1 0 2\n")
	assert.Contains(t, string(text), "  UBO DESCRIPTOR_TYPE_UNIFORM_BUFFER 0 0\n")

	out, err := ParseShaderMap(bytes.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, in.Descriptors, out.Descriptors)

	// A uniform buffer has no sampler column.
	_, err = ParseShaderMap(strings.NewReader("INPUT_ATTRIBUTES 0\nDESCRIPTORS 1\n  UBO DESCRIPTOR_TYPE_UNIFORM_BUFFER 0 0 1\n"))
	var mapErr *ShaderMapError
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, 3, mapErr.Line)
}

func TestShaderMapParseErrors(t *testing.T) {
	cases := map[string]struct {
		text string
		line int
	}{
		"truncated":      {"INPUT_ATTRIBUTES 1\n  pos UNDEFINED", 2},
		"bad header":     {"ATTRIBUTES 0", 1},
		"bad count":      {"INPUT_ATTRIBUTES x", 1},
		"bad type":       {"INPUT_ATTRIBUTES 0\nDESCRIPTORS 1\n  a DESCRIPTOR_TYPE_FOO 0", 3},
		"bad readonly":   {"INPUT_ATTRIBUTES 0\nDESCRIPTORS 0\nUNIFORM_BUFFER_INFOS 1\n\n  u 0 2 0\nSHADER_STORAGE_BUFFER_INFOS 0", 5},
		"missing ssbo":   {"INPUT_ATTRIBUTES 0\nDESCRIPTORS 0\nUNIFORM_BUFFER_INFOS 0", 3},
		"bad vertex fmt": {"INPUT_ATTRIBUTES 1\n  pos UNDEFINED 0 FLOAT9", 2},
		"one line":       {"INPUT_ATTRIBUTES 0 DESCRIPTORS 0", 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseShaderMap(strings.NewReader(tc.text))
			var mapErr *ShaderMapError
			require.ErrorAs(t, err, &mapErr)
			assert.Equal(t, tc.line, mapErr.Line)
			assert.Contains(t, err.Error(), "line ")
		})
	}
}

func TestVertexFormatLayout(t *testing.T) {
	elem, count, size := VertexFormatMat4.Layout()
	assert.Equal(t, VertexFormatFloat4, elem)
	assert.Equal(t, uint32(4), count)
	assert.Equal(t, uint32(16), size)
}
