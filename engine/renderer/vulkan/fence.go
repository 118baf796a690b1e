package vulkan

import (
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

type Fence struct {
	device *Device
	handle vk.Fence
}

func (f *Fence) Handle() vk.Fence { return f.handle }

func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	ok, err := f.device.driver.WaitForFence(f.handle, uint64(timeout.Nanoseconds()))
	if err != nil {
		core.LogError("vulkan fence wait: %v", err)
	}
	return ok, err
}

func (f *Fence) Reset() error   { return f.device.driver.ResetFence(f.handle) }
func (f *Fence) Signaled() bool { return f.device.driver.FenceSignaled(f.handle) }
func (f *Fence) Destroy()       { f.device.driver.DestroyFence(f.handle) }

// Queue is the single graphics queue of a device.
type Queue struct {
	device *Device
}

func (q *Queue) Submit(cmds []renderer.CommandBuffer, signal renderer.Fence) error {
	handles := make([]vk.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		cb, err := AsCommandBuffer(c)
		if err != nil {
			return err
		}
		if cb.recording() {
			return core.NewError(core.KindUsageViolation, "Submit", "command buffer is still recording")
		}
		handles = append(handles, cb.handle)
	}
	var fence vk.Fence
	if signal != nil {
		f, err := AsFence(signal)
		if err != nil {
			return err
		}
		fence = f.handle
	}
	return q.device.driver.QueueSubmit(handles, fence)
}

func (q *Queue) WaitIdle() error { return q.device.driver.QueueWaitIdle() }
