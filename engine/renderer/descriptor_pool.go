package renderer

import (
	"sync"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

// DescriptorPool hands out slots of a fixed capacity descriptor heap.
// Unlike the caches it is safe for concurrent use: resources are created and
// destroyed outside of command recording.
type DescriptorPool struct {
	mu  sync.Mutex
	ids *core.IdentifierPool[uint32]
}

func NewDescriptorPool(capacity uint32) *DescriptorPool {
	return &DescriptorPool{ids: core.NewIdentifierPool[uint32](capacity)}
}

// Allocate returns a free slot. A full pool is a ResourceExhausted error.
func (p *DescriptorPool) Allocate() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot, ok := p.ids.Acquire()
	if !ok {
		return 0, core.NewError(core.KindResourceExhausted, "DescriptorPool.Allocate",
			"all %d descriptor slots are in use", p.ids.Capacity())
	}
	return slot, nil
}

func (p *DescriptorPool) Free(slot uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ids.Release(slot); err != nil {
		return core.WrapError(core.KindUsageViolation, "DescriptorPool.Free", err, "freeing slot %d", slot)
	}
	return nil
}

func (p *DescriptorPool) Used() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ids.Used()
}

func (p *DescriptorPool) Capacity() uint32 {
	return p.ids.Capacity()
}
