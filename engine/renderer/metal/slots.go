package metal

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// Argument table sizes of a render or compute encoder.
const (
	MaxBufferArguments  = 31
	MaxTextureArguments = 128
	MaxSamplerArguments = 16
)

// AssignSlots maps plan onto the encoder argument tables. Each entry is
// placed at the [[buffer(n)]], [[texture(n)]] and [[sampler(n)]] indices the
// cross compiler gave it, per group of stages sharing them. Entries without
// native indices use their set. The shader tools moved vertex attributes
// past the vertex stage's buffers, so the location is the vertex buffer
// index.
func AssignSlots(plan *metadata.BindingPlan) error {
	vertexBuffers := make(map[uint32]string)
	for i := range plan.Entries {
		e := &plan.Entries[i]
		e.Slots = nil
		natives := e.Native
		if len(natives) == 0 {
			natives = []metadata.NativeIndex{{Index: e.Set, Sampler: e.Set}}
		}
		for _, n := range natives {
			if err := assignEntry(e, n); err != nil {
				return err
			}
			stages := n.Stages
			if stages == 0 {
				stages = e.Stages
			}
			if e.Type.IsBuffer() && stages&metadata.ShaderStageVertex != 0 {
				vertexBuffers[n.Index] = e.Name
			}
		}
	}
	for i := range plan.Attributes {
		a := &plan.Attributes[i]
		if a.Location >= MaxBufferArguments {
			return core.NewError(core.KindResourceExhausted, "AssignSlots", "attribute %q uses buffer index %d, limit is %d", a.Name, a.Location, MaxBufferArguments)
		}
		if name, ok := vertexBuffers[a.Location]; ok {
			return core.NewError(core.KindUsageViolation, "AssignSlots", "attribute %q and descriptor %q both use buffer index %d", a.Name, name, a.Location)
		}
		a.Slot = a.Location
	}
	return nil
}

func assignEntry(e *metadata.BindingEntry, n metadata.NativeIndex) error {
	switch e.Type {
	case metadata.DescriptorTypeUniformBuffer, metadata.DescriptorTypeStorageBuffer:
		if n.Index >= MaxBufferArguments {
			return core.NewError(core.KindResourceExhausted, "AssignSlots", "descriptor %q uses buffer index %d, limit is %d", e.Name, n.Index, MaxBufferArguments)
		}
		writable := e.Type == metadata.DescriptorTypeStorageBuffer && !e.ReadOnly
		e.Slots = append(e.Slots, metadata.PhysicalSlot{Kind: metadata.SlotKindBuffer, Index: n.Index, Writable: writable, Stages: n.Stages})
	case metadata.DescriptorTypeStorageImage:
		if n.Index >= MaxTextureArguments {
			return core.NewError(core.KindResourceExhausted, "AssignSlots", "descriptor %q uses texture index %d, limit is %d", e.Name, n.Index, MaxTextureArguments)
		}
		e.Slots = append(e.Slots, metadata.PhysicalSlot{Kind: metadata.SlotKindTexture, Index: n.Index, Writable: true, Stages: n.Stages})
	case metadata.DescriptorTypeCombinedImageSampler:
		if n.Index >= MaxTextureArguments {
			return core.NewError(core.KindResourceExhausted, "AssignSlots", "descriptor %q uses texture index %d, limit is %d", e.Name, n.Index, MaxTextureArguments)
		}
		if n.Sampler >= MaxSamplerArguments {
			return core.NewError(core.KindResourceExhausted, "AssignSlots", "descriptor %q uses sampler index %d, limit is %d", e.Name, n.Sampler, MaxSamplerArguments)
		}
		e.Slots = append(e.Slots,
			metadata.PhysicalSlot{Kind: metadata.SlotKindTexture, Index: n.Index, Stages: n.Stages},
			metadata.PhysicalSlot{Kind: metadata.SlotKindSampler, Index: n.Sampler, Stages: n.Stages},
		)
	}
	return nil
}

// vertexDescriptor gives every attribute its own buffer. Matrix columns are
// separate attributes at consecutive indices reading the same buffer.
func vertexDescriptor(plan *metadata.BindingPlan) VertexDescriptor {
	vd := VertexDescriptor{
		Attributes: make(map[uint32]VertexAttribute),
		Layouts:    make(map[uint32]VertexBufferLayout),
	}
	for _, a := range plan.Attributes {
		count := max(a.Count, 1)
		vd.Layouts[a.Slot] = VertexBufferLayout{Stride: count * a.ElementSize}
		for col := uint32(0); col < count; col++ {
			vd.Attributes[a.Location+col] = VertexAttribute{
				Format:      VertexFormatFor(a.Format),
				Offset:      col * a.ElementSize,
				BufferIndex: a.Slot,
			}
		}
	}
	return vd
}
