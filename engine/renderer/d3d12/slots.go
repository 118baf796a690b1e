package d3d12

import (
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// AssignSlots lays plan out as a root signature. Every logical entry uses
// the register space of its set, which is the space the shader tools leave
// in the translated HLSL. Uniform buffers become root CBVs, storage buffers
// root SRVs or root UAVs when some stage writes them, storage images UAV
// tables, and combined image samplers an SRV table followed by a sampler
// table. Vertex inputs keep their location as input slot and are matched by
// the semantic MergeBindings already split.
func AssignSlots(plan *metadata.BindingPlan) []RootParameter {
	var params []RootParameter
	add := func(e *metadata.BindingEntry, kind metadata.SlotKind, p RootParameter, writable bool) {
		p.RegisterSpace = e.Set
		e.Slots = append(e.Slots, metadata.PhysicalSlot{
			Kind:     kind,
			Index:    uint32(len(params)),
			Space:    p.RegisterSpace,
			Writable: writable,
		})
		params = append(params, p)
	}

	for i := range plan.Entries {
		e := &plan.Entries[i]
		e.Slots = nil
		switch e.Type {
		case metadata.DescriptorTypeUniformBuffer:
			add(e, metadata.SlotKindRootCBV, RootParameter{Type: RootParameterCBV}, false)
		case metadata.DescriptorTypeStorageBuffer:
			if !e.ReadOnly {
				add(e, metadata.SlotKindRootUAV, RootParameter{Type: RootParameterUAV}, true)
			} else {
				add(e, metadata.SlotKindRootSRV, RootParameter{Type: RootParameterSRV}, false)
			}
		case metadata.DescriptorTypeStorageImage:
			add(e, metadata.SlotKindUAVTable, RootParameter{Type: RootParameterDescriptorTable, Range: DescriptorRangeUAV}, true)
		case metadata.DescriptorTypeCombinedImageSampler:
			add(e, metadata.SlotKindSRVTable, RootParameter{Type: RootParameterDescriptorTable, Range: DescriptorRangeSRV}, false)
			add(e, metadata.SlotKindSamplerTable, RootParameter{Type: RootParameterDescriptorTable, Range: DescriptorRangeSampler}, false)
		}
	}
	for i := range plan.Attributes {
		plan.Attributes[i].Slot = plan.Attributes[i].Location
	}
	return params
}

// inputLayout emits one element per attribute column. Matrix columns share
// the semantic name with consecutive semantic indices.
func inputLayout(plan *metadata.BindingPlan) ([]InputElement, map[uint32]uint32) {
	var elems []InputElement
	strides := make(map[uint32]uint32)
	for _, a := range plan.Attributes {
		count := max(a.Count, 1)
		strides[a.Slot] = count * a.ElementSize
		for col := uint32(0); col < count; col++ {
			elems = append(elems, InputElement{
				SemanticName:      a.SemanticName,
				SemanticIndex:     a.SemanticIndex + col,
				Format:            VertexFormat(a.Format),
				InputSlot:         a.Slot,
				AlignedByteOffset: col * a.ElementSize,
				Classification:    InputClassificationPerVertex,
			})
		}
	}
	return elems, strides
}
