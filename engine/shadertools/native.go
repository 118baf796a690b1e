package shadertools

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

/** @brief The kind of [[...]] binding attribute in translated MSL. */
type Annotation string

const (
	AnnotationAttribute Annotation = "attribute"
	AnnotationBuffer    Annotation = "buffer"
	AnnotationTexture   Annotation = "texture"
	AnnotationSampler   Annotation = "sampler"
)

// samplerSuffix is appended by spirv-cross to the sampler half of a
// combined image sampler: sampler albedoSmplr [[sampler(0)]].
const samplerSuffix = "Smplr"

var annotationPatterns = map[Annotation]*regexp2.Regexp{}

func init() {
	for _, a := range []Annotation{AnnotationAttribute, AnnotationBuffer, AnnotationTexture, AnnotationSampler} {
		annotationPatterns[a] = regexp2.MustCompile(`([^\s]*)\s*([^\s]*)\s*\[\[`+string(a)+`\((\d+)\)\]\]`, regexp2.None)
	}
}

// FindNativeBinding returns the index the cross compiler gave the symbol
// called name in an [[annotation(n)]] declaration of text. A declaration
// whose variable is name wins over one whose type merely contains it, which
// is how buffer blocks appear (constant Camera& camera [[buffer(0)]]).
func FindNativeBinding(text string, annotation Annotation, name string) (int, error) {
	re, ok := annotationPatterns[annotation]
	if !ok {
		return 0, core.NewError(core.KindUsageViolation, "FindNativeBinding", "unknown annotation %q", annotation)
	}
	partial := -1
	m, err := re.FindStringMatch(text)
	for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
		index, convErr := strconv.Atoi(m.GroupByNumber(3).String())
		if convErr != nil {
			continue
		}
		if m.GroupByNumber(2).String() == name {
			return index, nil
		}
		if partial < 0 && strings.Contains(m.GroupByNumber(1).String(), name) {
			partial = index
		}
	}
	if err != nil {
		return 0, core.WrapError(core.KindLookupFailure, "FindNativeBinding", err, "matching %s", annotation)
	}
	if partial >= 0 {
		return partial, nil
	}
	return 0, core.NewError(core.KindLookupFailure, "FindNativeBinding", "no [[%s(n)]] binding for %q", annotation, name)
}

// PatchReflectionMSL records the argument table indices spirv-cross
// assigned in msl. Buffers and textures are numbered separately, so the
// indices go next to the set instead of replacing it. Vertex buffers are
// placed after every descriptor, so input locations are shifted by the
// descriptor count.
func PatchReflectionMSL(r *Reflection, stage metadata.ShaderStage, msl string) error {
	if stage == metadata.ShaderStageVertex {
		shift := r.descriptorCount()
		for i := range r.Inputs {
			idx, err := FindNativeBinding(msl, AnnotationAttribute, r.Inputs[i].Name)
			if err != nil {
				return err
			}
			r.Inputs[i].Location = uint32(idx + shift)
		}
	}
	patch := func(resources []ReflectedResource, annotation Annotation, sampled bool) error {
		for i := range resources {
			idx, err := FindNativeBinding(msl, annotation, resources[i].Name)
			if err != nil {
				return err
			}
			native := &metadata.NativeIndex{Index: uint32(idx)}
			if sampled {
				if idx, err = FindNativeBinding(msl, AnnotationSampler, resources[i].Name+samplerSuffix); err != nil {
					return err
				}
				native.Sampler = uint32(idx)
			}
			resources[i].Native = native
		}
		return nil
	}
	if err := patch(r.Textures, AnnotationTexture, true); err != nil {
		return err
	}
	if err := patch(r.Images, AnnotationTexture, false); err != nil {
		return err
	}
	if err := patch(r.UBOs, AnnotationBuffer, false); err != nil {
		return err
	}
	return patch(r.SSBOs, AnnotationBuffer, false)
}

// PatchReflectionHLSL recovers the semantic of every vertex input from its
// "name : SEMANTIC;" declaration in hlsl. Inputs without one stay UNDEFINED.
func PatchReflectionHLSL(r *Reflection, stage metadata.ShaderStage, hlsl string) error {
	if stage != metadata.ShaderStageVertex {
		return nil
	}
	for i := range r.Inputs {
		re, err := regexp2.Compile(`\b`+regexp2.Escape(r.Inputs[i].Name)+`\s*:\s*([^;]*);`, regexp2.None)
		if err != nil {
			return core.WrapError(core.KindLookupFailure, "PatchReflectionHLSL", err, "input %q", r.Inputs[i].Name)
		}
		m, err := re.FindStringMatch(hlsl)
		if err != nil {
			return core.WrapError(core.KindLookupFailure, "PatchReflectionHLSL", err, "input %q", r.Inputs[i].Name)
		}
		if m == nil {
			core.LogDebug("no HLSL semantic for input %s", r.Inputs[i].Name)
			continue
		}
		r.Inputs[i].Semantic = strings.TrimSpace(m.GroupByNumber(1).String())
	}
	return nil
}
