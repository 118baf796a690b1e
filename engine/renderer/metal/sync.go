package metal

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// Fence turns an MTLSharedEvent into a binary fence: it counts as signaled
// once the event value reaches target. Reset moves the target past every
// value signaled so far.
type Fence struct {
	device *Device
	event  Handle
	target uint64
}

func (d *Device) CreateFence(signaled bool) (renderer.Fence, error) {
	var initial uint64
	if signaled {
		initial = 1
	}
	event, err := d.driver.CreateEvent(initial)
	if err != nil {
		return nil, err
	}
	return &Fence{device: d, event: event, target: 1}, nil
}

func (f *Fence) Event() Handle  { return f.event }
func (f *Fence) Target() uint64 { return f.target }

func (f *Fence) Signaled() bool {
	return f.device.driver.SignaledValue(f.event) >= f.target
}

func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	ok, err := f.device.driver.WaitForEvent(f.event, f.target, uint64(timeout.Nanoseconds()))
	if err != nil {
		core.LogError("metal fence wait: %v", err)
	}
	return ok, err
}

func (f *Fence) Reset() error {
	f.target = max(f.device.driver.SignaledValue(f.event), f.target) + 1
	return nil
}

func (f *Fence) Destroy() { f.device.driver.Release(f.event) }

// Queue is the command queue of a device.
type Queue struct {
	device *Device
}

// Submit commits every command buffer. The native buffers are one shot, so
// each has to be recorded again before it is submitted a second time.
func (q *Queue) Submit(cmds []renderer.CommandBuffer, signal renderer.Fence) error {
	buffers := make([]*CommandBuffer, 0, len(cmds))
	handles := make([]Handle, 0, len(cmds))
	for _, c := range cmds {
		cb, err := AsCommandBuffer(c)
		if err != nil {
			return err
		}
		if cb.state != commandBufferStateRecordingEnded {
			return core.NewError(core.KindUsageViolation, "Submit", "command buffer is not ended")
		}
		buffers = append(buffers, cb)
		handles = append(handles, cb.cb)
	}
	event, value := NullHandle, uint64(0)
	if signal != nil {
		f, err := AsFence(signal)
		if err != nil {
			return err
		}
		event, value = f.event, f.target
	}
	if err := q.device.driver.Commit(handles, event, value); err != nil {
		return err
	}
	for _, cb := range buffers {
		cb.committed()
	}
	return nil
}

func (q *Queue) WaitIdle() error { return q.device.driver.WaitIdle() }

// Swapchain wraps the drawables of a CAMetalLayer as textures.
type Swapchain struct {
	device        *Device
	layer         Handle
	width, height uint32
	images        []renderer.Texture
	acquired      map[uint32]bool
}

func (d *Device) CreateSwapchain(surface renderer.SurfaceProvider, desc renderer.SwapchainDesc) (renderer.Swapchain, error) {
	if surface == nil {
		return nil, core.NewError(core.KindUsageViolation, "CreateSwapchain", "no surface to present to")
	}
	if desc.Width == 0 || desc.Height == 0 {
		w, h := surface.FramebufferSize()
		desc.Width, desc.Height = uint32(w), uint32(h)
	}
	layer, err := d.driver.CreateLayer(surface, desc)
	if err != nil {
		return nil, err
	}
	sc := &Swapchain{device: d, layer: layer.Handle, width: layer.Width, height: layer.Height, acquired: make(map[uint32]bool)}
	format := NeutralFormat(layer.Format)
	for i, drawable := range layer.Drawables {
		texDesc := metadata.TextureDesc{
			Label:       fmt.Sprintf("drawable-%d", i),
			Width:       layer.Width,
			Height:      layer.Height,
			Format:      format,
			Usage:       metadata.TextureUsageColorAttachment | metadata.TextureUsagePresent | metadata.TextureUsageTransferDst,
			SampleCount: 1,
		}.Normalized()
		sc.images = append(sc.images, &Texture{
			device:      d,
			desc:        texDesc,
			states:      renderer.NewTextureState(texDesc, metadata.ResourceStateUndefined),
			texture:     drawable,
			samplerSlot: -1,
		})
	}
	core.LogInfo("metal swapchain created: %dx%d, %d drawables, format %s", layer.Width, layer.Height, len(layer.Drawables), format)
	return sc, nil
}

func (s *Swapchain) Images() []renderer.Texture { return s.images }
func (s *Swapchain) Layer() Handle              { return s.layer }
func (s *Swapchain) Extent() (uint32, uint32)   { return s.width, s.height }

func (s *Swapchain) AcquireNextImage() (uint32, error) {
	index, err := s.device.driver.NextDrawable(s.layer)
	if err != nil {
		return 0, core.WrapError(core.KindToolFailure, "AcquireNextImage", err, "metal layer has no drawable")
	}
	s.acquired[index] = true
	return index, nil
}

// Present only accepts drawables handed out by AcquireNextImage and not
// presented yet.
func (s *Swapchain) Present(index uint32) error {
	if int(index) >= len(s.images) {
		return core.NewError(core.KindUsageViolation, "Present", "image index %d out of range (count=%d)", index, len(s.images))
	}
	if !s.acquired[index] {
		return core.NewError(core.KindUsageViolation, "Present", "drawable %d was not acquired", index)
	}
	if st := s.images[index].States().Get(0, 0); st != metadata.ResourceStatePresentSrc {
		return core.NewError(core.KindUsageViolation, "Present", "drawable %d is %s, expected %s", index, st, metadata.ResourceStatePresentSrc)
	}
	delete(s.acquired, index)
	return s.device.driver.PresentDrawable(s.layer, index)
}

func (s *Swapchain) Destroy() {
	if err := s.device.driver.WaitIdle(); err != nil {
		core.LogWarn("metal swapchain: wait idle before destroy: %v", err)
	}
	for _, img := range s.images {
		img.Destroy()
	}
	s.images = nil
	s.device.driver.Release(s.layer)
}
