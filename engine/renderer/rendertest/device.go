// Package rendertest provides an in-memory renderer.Device. Commands are
// recorded and executed on submit, so uploads, copies and downloads behave
// like they would on a GPU, and every barrier is logged for inspection.
package rendertest

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// Barrier is one synchronization command as seen by the device.
type Barrier struct {
	Resource string
	Changes  []renderer.SubresourceTransition
}

type Device struct {
	mu           sync.Mutex
	backend      renderer.BackendType
	pool         *renderer.DescriptorPool
	queue        *Queue
	Barriers     []Barrier
	Log          []string
	RenderPasses int
	Pipelines    int
	Submits      int
	destroyed    bool
}

func NewDevice(backend renderer.BackendType, descriptors uint32) *Device {
	d := &Device{backend: backend, pool: renderer.NewDescriptorPool(descriptors)}
	d.queue = &Queue{device: d}
	return d
}

func (d *Device) record(format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Log = append(d.Log, fmt.Sprintf(format, args...))
}

// BarrierCount is the number of synchronization commands executed so far.
func (d *Device) BarrierCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Barriers)
}

func (d *Device) Backend() renderer.BackendType         { return d.backend }
func (d *Device) Queue() renderer.Queue                 { return d.queue }
func (d *Device) Descriptors() *renderer.DescriptorPool { return d.pool }
func (d *Device) WaitIdle() error                       { return nil }

func (d *Device) Destroy() {
	d.destroyed = true
}

func (d *Device) Destroyed() bool { return d.destroyed }

func shaderVisible(u metadata.TextureUsage) bool {
	return u&(metadata.TextureUsageSampled|metadata.TextureUsageStorage) != 0
}

func (d *Device) CreateTexture(desc metadata.TextureDesc) (renderer.Texture, error) {
	desc = desc.Normalized()
	if desc.Width == 0 || desc.Height == 0 {
		return nil, core.NewError(core.KindUsageViolation, "CreateTexture", "texture %q has a zero extent", desc.Label)
	}
	t := &Texture{
		desc:   desc,
		states: renderer.NewTextureState(desc, metadata.ResourceStateUndefined),
		data:   make([][]byte, desc.SubresourceCount()),
		slot:   -1,
	}
	if shaderVisible(desc.Usage) {
		slot, err := d.pool.Allocate()
		if err != nil {
			return nil, err
		}
		t.slot, t.pool = int(slot), d.pool
	}
	d.record("create texture %s", desc.Label)
	return t, nil
}

func (d *Device) CreateBuffer(desc metadata.BufferDesc) (renderer.Buffer, error) {
	b := &Buffer{desc: desc, state: renderer.NewBufferState(desc.InitialState), data: make([]byte, desc.Size), slot: -1}
	if desc.Usage&(metadata.BufferUsageUniform|metadata.BufferUsageStorage) != 0 {
		slot, err := d.pool.Allocate()
		if err != nil {
			return nil, err
		}
		b.slot, b.pool = int(slot), d.pool
	}
	d.record("create buffer %s", desc.Label)
	return b, nil
}

func (d *Device) CreateRenderPass(cfg metadata.RenderPassConfig) (renderer.RenderPass, error) {
	d.RenderPasses++
	return &RenderPass{config: cfg}, nil
}

func (d *Device) CreateFramebuffer(rp renderer.RenderPass, attachments []renderer.Attachment) (renderer.Framebuffer, error) {
	fb := &Framebuffer{pass: rp, attachments: attachments}
	if len(attachments) > 0 {
		desc := attachments[0].Texture.Desc()
		fb.width, fb.height = desc.Width, desc.Height
	}
	return fb, nil
}

// AssignSlots gives every entry one descriptor set slot; combined image
// samplers get a second one, like backends that split them.
func AssignSlots(plan *metadata.BindingPlan) {
	for i := range plan.Entries {
		e := &plan.Entries[i]
		e.Slots = []metadata.PhysicalSlot{{Kind: metadata.SlotKindDescriptorSet, Index: e.Set}}
		if e.Type == metadata.DescriptorTypeCombinedImageSampler {
			e.Slots = append(e.Slots, metadata.PhysicalSlot{Kind: metadata.SlotKindSampler, Index: e.Set})
		}
	}
}

func (d *Device) CreateGraphicsPipeline(desc renderer.GraphicsPipelineDesc) (renderer.Pipeline, error) {
	AssignSlots(desc.Plan)
	d.Pipelines++
	return &Pipeline{label: desc.Label, kind: renderer.PipelineKindGraphics, plan: desc.Plan}, nil
}

func (d *Device) CreateComputePipeline(desc renderer.ComputePipelineDesc) (renderer.Pipeline, error) {
	AssignSlots(desc.Plan)
	d.Pipelines++
	return &Pipeline{label: desc.Label, kind: renderer.PipelineKindCompute, plan: desc.Plan}, nil
}

func (d *Device) CreateCommandBuffer() (renderer.CommandBuffer, error) {
	return &CommandBuffer{device: d}, nil
}

func (d *Device) CreateFence(signaled bool) (renderer.Fence, error) {
	return &Fence{signaled: signaled}, nil
}

func (d *Device) CreateSwapchain(surface renderer.SurfaceProvider, desc renderer.SwapchainDesc) (renderer.Swapchain, error) {
	w, h := surface.FramebufferSize()
	if desc.Width == 0 {
		desc.Width, desc.Height = uint32(w), uint32(h)
	}
	if desc.ImageCount == 0 {
		desc.ImageCount = 3
	}
	sc := &Swapchain{width: desc.Width, height: desc.Height}
	for i := uint32(0); i < desc.ImageCount; i++ {
		sc.images = append(sc.images, &Texture{
			desc: metadata.TextureDesc{
				Label: fmt.Sprintf("swapchain-%d", i), Width: desc.Width, Height: desc.Height,
				Depth: 1, ArrayLayers: 1, MipLevels: 1, SampleCount: 1, Format: desc.Format,
				Usage: metadata.TextureUsageColorAttachment | metadata.TextureUsagePresent,
			},
			states: renderer.NewTextureState(metadata.TextureDesc{MipLevels: 1, ArrayLayers: 1}, metadata.ResourceStateUndefined),
			data:   make([][]byte, 1),
			slot:   -1,
		})
	}
	return sc, nil
}

// Surface is a SurfaceProvider with a fixed size.
type Surface struct {
	Width, Height int
}

func (s Surface) FramebufferSize() (int, int)          { return s.Width, s.Height }
func (s Surface) RequiredInstanceExtensions() []string { return nil }

func (s Surface) CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error) {
	return 1, nil
}

type Queue struct {
	device *Device
}

func (q *Queue) Submit(cmds []renderer.CommandBuffer, signal renderer.Fence) error {
	for _, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok {
			return core.NewError(core.KindUsageViolation, "Submit", "foreign command buffer %T", c)
		}
		if cb.recording {
			return core.NewError(core.KindUsageViolation, "Submit", "command buffer is still recording")
		}
		for _, op := range cb.ops {
			if err := op(); err != nil {
				return err
			}
		}
		cb.ops = nil
	}
	q.device.mu.Lock()
	q.device.Submits++
	q.device.mu.Unlock()
	if f, ok := signal.(*Fence); ok {
		f.signal()
	}
	return nil
}

func (q *Queue) WaitIdle() error { return nil }

type Fence struct {
	mu       sync.Mutex
	signaled bool
	// Waits counts calls to Wait.
	Waits int
}

func (f *Fence) signal() {
	f.mu.Lock()
	f.signaled = true
	f.mu.Unlock()
}

func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	f.mu.Lock()
	f.Waits++
	f.mu.Unlock()
	for {
		if f.Signaled() {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(50 * time.Microsecond)
	}
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	f.signaled = false
	f.mu.Unlock()
	return nil
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *Fence) Destroy() {}

// Signal marks the fence as signaled, like a GPU finishing its work.
func (f *Fence) Signal() { f.signal() }
