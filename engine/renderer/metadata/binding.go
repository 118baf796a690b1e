package metadata

import (
	"fmt"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

/** @brief What kind of native slot a logical binding occupies. */
type SlotKind uint8

const (
	/** @brief Vulkan descriptor set; Index is the set, Binding the binding inside it. */
	SlotKindDescriptorSet SlotKind = iota
	/** @brief D3D12 root descriptors and descriptor tables; Index is the root parameter. */
	SlotKindRootCBV
	SlotKindRootSRV
	SlotKindRootUAV
	SlotKindSRVTable
	SlotKindUAVTable
	SlotKindSamplerTable
	/** @brief Metal argument table entries; Index is the buffer/texture/sampler index. */
	SlotKindBuffer
	SlotKindTexture
	SlotKindSampler
)

var slotKindNames = [...]string{
	"descriptor-set", "root-cbv", "root-srv", "root-uav", "srv-table",
	"uav-table", "sampler-table", "buffer", "texture", "sampler",
}

func (k SlotKind) String() string {
	if int(k) < len(slotKindNames) {
		return slotKindNames[k]
	}
	return "invalid"
}

/**
 * @brief A native binding location produced for one logical entry.
 */
type PhysicalSlot struct {
	Kind  SlotKind
	Index uint32
	/** @brief Register space (D3D12) or binding within the set (Vulkan). */
	Space uint32
	/** @brief Read-write view. Only meaningful for storage resources. */
	Writable bool
	/** @brief Stages reading the slot. Zero means every stage of the entry. */
	Stages ShaderStage
}

func (s PhysicalSlot) String() string {
	return fmt.Sprintf("%s[%d,%d]", s.Kind, s.Index, s.Space)
}

/**
 * @brief One merged descriptor of a pipeline.
 */
type BindingEntry struct {
	/** @brief Position in the set-sorted order. This is what callers bind by. */
	Logical  int
	Set      uint32
	Name     string
	Type     DescriptorType
	Stages   ShaderStage
	ReadOnly bool
	/** @brief Buffer block layout for uniform and storage buffers. */
	Buffer *BufferInfo
	/** @brief Native argument indices per group of stages, when the maps carry them. */
	Native []NativeIndex
	/**
	 * @brief Native slots, filled when the pipeline is compiled. Combined
	 * image samplers take two consecutive slots on backends that split them.
	 */
	Slots []PhysicalSlot
}

/**
 * @brief One vertex input of a pipeline.
 */
type AttributeBinding struct {
	Logical     int
	Name        string
	Semantic    string
	Location    uint32
	Format      VertexFormat
	Count       uint32
	ElementSize uint32
	/** @brief Native input slot, filled when the pipeline is compiled. */
	Slot uint32
	/** @brief Semantic split into name and index (TEXCOORD3 -> TEXCOORD, 3). */
	SemanticName  string
	SemanticIndex uint32
}

/**
 * @brief The merged, set-ordered bindings of every stage of one pipeline.
 * Immutable once the pipeline owning it is built.
 */
type BindingPlan struct {
	Entries    []BindingEntry
	Attributes []AttributeBinding
}

/** @brief Logical index of the descriptor called name. */
func (p *BindingPlan) DescriptorIndex(name string) (int, error) {
	for _, e := range p.Entries {
		if e.Name == name {
			return e.Logical, nil
		}
	}
	return -1, core.NewError(core.KindLookupFailure, "DescriptorIndex", "descriptor %q is not bound by this pipeline", name)
}

/** @brief Logical index of the vertex attribute called name. */
func (p *BindingPlan) AttributeIndex(name string) (int, error) {
	for _, a := range p.Attributes {
		if a.Name == name {
			return a.Logical, nil
		}
	}
	return -1, core.NewError(core.KindLookupFailure, "AttributeIndex", "vertex attribute %q is not an input of this pipeline", name)
}

func (p *BindingPlan) Entry(logical int) (*BindingEntry, error) {
	if logical < 0 || logical >= len(p.Entries) {
		return nil, core.NewError(core.KindLookupFailure, "Entry", "logical descriptor index %d out of range (count=%d)", logical, len(p.Entries))
	}
	return &p.Entries[logical], nil
}

func (p *BindingPlan) Attribute(logical int) (*AttributeBinding, error) {
	if logical < 0 || logical >= len(p.Attributes) {
		return nil, core.NewError(core.KindLookupFailure, "Attribute", "logical attribute index %d out of range (count=%d)", logical, len(p.Attributes))
	}
	return &p.Attributes[logical], nil
}

/** @brief Total native slots across entries. */
func (p *BindingPlan) PhysicalSlotCount() int {
	n := 0
	for _, e := range p.Entries {
		n += len(e.Slots)
	}
	return n
}
