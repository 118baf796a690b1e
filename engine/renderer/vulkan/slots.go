package vulkan

import (
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// AssignSlots gives each logical entry its own descriptor set, with the
// resource at binding 0. Shader layouts are patched to this scheme when
// compiled. Vertex attributes bind at their location.
func AssignSlots(plan *metadata.BindingPlan) {
	for i := range plan.Entries {
		e := &plan.Entries[i]
		e.Slots = []metadata.PhysicalSlot{{
			Kind:     metadata.SlotKindDescriptorSet,
			Index:    e.Set,
			Space:    0,
			Writable: !e.ReadOnly,
		}}
	}
	for i := range plan.Attributes {
		plan.Attributes[i].Slot = plan.Attributes[i].Location
	}
}

// setCount is one past the highest set index in plan.
func setCount(plan *metadata.BindingPlan) uint32 {
	var n uint32
	for _, e := range plan.Entries {
		n = max(n, e.Set+1)
	}
	return n
}
