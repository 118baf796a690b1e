package renderer

import (
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// MergeBindings builds the binding plan of a pipeline from its stages.
//
// Descriptors are merged by set index: a set declared by several stages
// becomes one entry whose stage mask is the union, and which is writable if
// any stage writes it. Entries are sorted by set and each gets the logical
// index of its position. Native argument indices are kept per stage, since
// each stage of a Metal pipeline has its own argument tables. Vertex inputs come from vertex stages only, sorted
// by location. Two stages declaring different types for one set is a usage
// violation.
func MergeBindings(modules ...*ShaderModule) (*metadata.BindingPlan, error) {
	bySet := map[uint32]*metadata.BindingEntry{}
	var sets []uint32
	var attrs []metadata.AttributeInfo

	for _, m := range modules {
		if m == nil || m.Reflection == nil {
			continue
		}
		for _, d := range m.Reflection.Descriptors {
			stages := d.Stages
			if stages == 0 {
				stages = m.Stage
			}
			if e, ok := bySet[d.Set]; ok {
				if e.Type != d.Type {
					return nil, core.NewError(core.KindUsageViolation, "MergeBindings",
						"set %d is %s in %s but %s in %s", d.Set, e.Type, e.Stages, d.Type, stages)
				}
				e.Stages |= stages
				e.ReadOnly = e.ReadOnly && d.ReadOnly
				e.Native = mergeNative(e.Native, d.Native, stages)
				continue
			}
			e := &metadata.BindingEntry{
				Set:      d.Set,
				Name:     d.Name,
				Type:     d.Type,
				Stages:   stages,
				ReadOnly: d.ReadOnly,
				Native:   mergeNative(nil, d.Native, stages),
			}
			if d.Type.IsBuffer() {
				if info, ok := m.Reflection.BufferInfo(d.Set); ok {
					e.Buffer = &info
				}
			}
			// Uniform buffers are never written by shaders.
			if d.Type == metadata.DescriptorTypeUniformBuffer || d.Type == metadata.DescriptorTypeCombinedImageSampler {
				e.ReadOnly = true
			}
			bySet[d.Set] = e
			sets = append(sets, d.Set)
		}
		if m.Stage == metadata.ShaderStageVertex {
			attrs = append(attrs, m.Reflection.Attributes...)
		}
	}

	slices.Sort(sets)
	plan := &metadata.BindingPlan{Entries: make([]metadata.BindingEntry, 0, len(sets))}
	for i, set := range sets {
		e := bySet[set]
		e.Logical = i
		plan.Entries = append(plan.Entries, *e)
	}

	slices.SortStableFunc(attrs, func(a, b metadata.AttributeInfo) int {
		return int(a.Location) - int(b.Location)
	})
	for i, a := range attrs {
		count, size := a.Count, a.ElementSize
		if count == 0 {
			_, count, size = a.Format.Layout()
		}
		name, index := SplitSemantic(a.Semantic)
		plan.Attributes = append(plan.Attributes, metadata.AttributeBinding{
			Logical:       i,
			Name:          a.Name,
			Semantic:      a.Semantic,
			Location:      a.Location,
			Format:        a.Format,
			Count:         count,
			ElementSize:   size,
			Slot:          a.Location,
			SemanticName:  name,
			SemanticIndex: index,
		})
	}
	return plan, nil
}

// SplitSemantic splits trailing digits off a semantic: TEXCOORD3 becomes
// (TEXCOORD, 3), POSITION becomes (POSITION, 0).
func SplitSemantic(semantic string) (string, uint32) {
	i := len(semantic)
	for i > 0 && semantic[i-1] >= '0' && semantic[i-1] <= '9' {
		i--
	}
	var index uint32
	for _, c := range semantic[i:] {
		index = index*10 + uint32(c-'0')
	}
	return semantic[:i], index
}

// mergeNative adds the native indices n of stages to list. Stages agreeing
// on the indices share one element.
func mergeNative(list []metadata.NativeIndex, n *metadata.NativeIndex, stages metadata.ShaderStage) []metadata.NativeIndex {
	if n == nil {
		return list
	}
	for i := range list {
		if list[i].Index == n.Index && list[i].Sampler == n.Sampler {
			list[i].Stages |= stages
			return list
		}
	}
	return append(list, metadata.NativeIndex{Stages: stages, Index: n.Index, Sampler: n.Sampler})
}
