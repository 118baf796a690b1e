package vulkan

import "sync"

// LockGroup names a family of Vulkan calls that must be externally
// synchronized against each other.
type LockGroup string

const (
	ResourceManagement        LockGroup = "resource_management"
	CommandBufferManagement   LockGroup = "command_buffer_management"
	DescriptorManagement      LockGroup = "descriptor_management"
	MemoryManagement          LockGroup = "memory_management"
	PipelineManagement        LockGroup = "pipeline_management"
	SynchronizationManagement LockGroup = "synchronization_management"
	SwapchainManagement       LockGroup = "swapchain_management"
)

// VulkanLockPool hands out one mutex per lock group and per queue family.
type VulkanLockPool struct {
	mu           sync.Mutex
	locks        map[LockGroup]*sync.Mutex
	queueMutexes map[uint32]*sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (p *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[group]
	if !ok {
		l = &sync.Mutex{}
		p.locks[group] = l
	}
	return l
}

// SafeCall runs fn holding the mutex of group.
func (p *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := p.lock(group)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (p *VulkanLockPool) SetQueueFamily(index uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.queueMutexes[index]; !ok {
		p.queueMutexes[index] = &sync.Mutex{}
	}
}

// SafeQueueCall serializes access to the queues of one family. The family
// must have been registered with SetQueueFamily.
func (p *VulkanLockPool) SafeQueueCall(family uint32, fn func() error) error {
	p.mu.Lock()
	l, ok := p.queueMutexes[family]
	p.mu.Unlock()
	if !ok {
		p.SetQueueFamily(family)
		return p.SafeQueueCall(family, fn)
	}
	l.Lock()
	defer l.Unlock()
	return fn()
}
