package d3d12

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// Fence turns a monotonic ID3D12Fence into a binary one: it counts as
// signaled once the completed value reaches target. Reset moves the target
// past every value signaled so far.
type Fence struct {
	device *Device
	handle Handle
	target uint64
}

func (d *Device) CreateFence(signaled bool) (renderer.Fence, error) {
	var initial uint64
	if signaled {
		initial = 1
	}
	handle, err := d.driver.CreateFence(initial)
	if err != nil {
		return nil, err
	}
	return &Fence{device: d, handle: handle, target: 1}, nil
}

func (f *Fence) Handle() Handle { return f.handle }
func (f *Fence) Target() uint64 { return f.target }

func (f *Fence) Signaled() bool {
	return f.device.driver.CompletedValue(f.handle) >= f.target
}

func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	ok, err := f.device.driver.WaitForValue(f.handle, f.target, uint64(timeout.Nanoseconds()))
	if err != nil {
		core.LogError("d3d12 fence wait: %v", err)
	}
	return ok, err
}

func (f *Fence) Reset() error {
	f.target = max(f.device.driver.CompletedValue(f.handle), f.target) + 1
	return nil
}

func (f *Fence) Destroy() { f.device.driver.Release(f.handle) }

// Queue is the direct queue of a device.
type Queue struct {
	device *Device
}

func (q *Queue) Submit(cmds []renderer.CommandBuffer, signal renderer.Fence) error {
	lists := make([]Handle, 0, len(cmds))
	for _, c := range cmds {
		cl, err := AsCommandList(c)
		if err != nil {
			return err
		}
		if cl.recording() {
			return core.NewError(core.KindUsageViolation, "Submit", "command list is still recording")
		}
		lists = append(lists, cl.handle)
	}
	if err := q.device.driver.ExecuteCommandLists(lists); err != nil {
		return err
	}
	if signal == nil {
		return nil
	}
	f, err := AsFence(signal)
	if err != nil {
		return err
	}
	return q.device.driver.Signal(f.handle, f.target)
}

func (q *Queue) WaitIdle() error { return q.device.driver.QueueWaitIdle() }

// Swapchain wraps the back buffers of a flip model swapchain as textures.
// D3D12 presents the current back buffer, so Present only accepts the
// index AcquireNextImage returned last.
type Swapchain struct {
	device        *Device
	handle        Handle
	width, height uint32
	syncInterval  uint32
	images        []renderer.Texture
	current       uint32
}

func (d *Device) CreateSwapchain(surface renderer.SurfaceProvider, desc renderer.SwapchainDesc) (renderer.Swapchain, error) {
	if surface == nil {
		return nil, core.NewError(core.KindUsageViolation, "CreateSwapchain", "no surface to present to")
	}
	if desc.Width == 0 || desc.Height == 0 {
		w, h := surface.FramebufferSize()
		desc.Width, desc.Height = uint32(w), uint32(h)
	}
	out, err := d.driver.CreateSwapchain(surface, desc)
	if err != nil {
		return nil, err
	}
	sc := &Swapchain{device: d, handle: out.Handle, width: out.Width, height: out.Height}
	if desc.VSync {
		sc.syncInterval = 1
	}
	format := PixelFormat(out.Format)
	for i, buf := range out.Buffers {
		texDesc := metadata.TextureDesc{
			Label:       fmt.Sprintf("backbuffer-%d", i),
			Width:       out.Width,
			Height:      out.Height,
			Format:      format,
			Usage:       metadata.TextureUsageColorAttachment | metadata.TextureUsagePresent | metadata.TextureUsageTransferDst,
			SampleCount: 1,
		}.Normalized()
		sc.images = append(sc.images, &Texture{
			device:   d,
			desc:     texDesc,
			states:   renderer.NewTextureState(texDesc, metadata.ResourceStateUndefined),
			resource: buf,
			srvSlot:  -1,
			uavSlot:  -1,
			views:    make(map[viewKey]CPUDescriptor),
		})
	}
	core.LogInfo("d3d12 swapchain created: %dx%d, %d buffers, format %s", out.Width, out.Height, len(out.Buffers), format)
	return sc, nil
}

func (s *Swapchain) Images() []renderer.Texture { return s.images }
func (s *Swapchain) Handle() Handle             { return s.handle }
func (s *Swapchain) Extent() (uint32, uint32)   { return s.width, s.height }

func (s *Swapchain) AcquireNextImage() (uint32, error) {
	s.current = s.device.driver.CurrentBackBufferIndex(s.handle)
	return s.current, nil
}

func (s *Swapchain) Present(index uint32) error {
	if int(index) >= len(s.images) {
		return core.NewError(core.KindUsageViolation, "Present", "image index %d out of range (count=%d)", index, len(s.images))
	}
	if index != s.current {
		return core.NewError(core.KindUsageViolation, "Present", "back buffer %d is not the current one (%d)", index, s.current)
	}
	if st := s.images[index].States().Get(0, 0); st != metadata.ResourceStatePresentSrc {
		return core.NewError(core.KindUsageViolation, "Present", "back buffer %d is %s, expected %s", index, st, metadata.ResourceStatePresentSrc)
	}
	return s.device.driver.Present(s.handle, s.syncInterval)
}

func (s *Swapchain) Destroy() {
	if err := s.device.driver.QueueWaitIdle(); err != nil {
		core.LogWarn("d3d12 swapchain: wait idle before destroy: %v", err)
	}
	for _, img := range s.images {
		img.Destroy()
	}
	s.images = nil
	s.device.driver.Release(s.handle)
}
