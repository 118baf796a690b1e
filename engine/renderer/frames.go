package renderer

import (
	"time"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

// FrameRing bounds the number of frames in flight. Each slot owns a fence
// and a command buffer; acquiring a slot blocks until the GPU finished the
// work last submitted from it, so everything the slot owns can be reused.
type FrameRing struct {
	fences   []Fence
	commands []CommandBuffer
	current  int
	frame    uint64
	timeout  time.Duration

	clock   *core.Clock
	metrics *core.FrameMetrics
}

func NewFrameRing(device Device, count int, timeout time.Duration) (*FrameRing, error) {
	if count <= 0 {
		return nil, core.NewError(core.KindUsageViolation, "NewFrameRing", "frames in flight must be positive, got %d", count)
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	r := &FrameRing{
		current: -1,
		timeout: timeout,
		clock:   core.NewClock(),
		metrics: core.NewFrameMetrics(),
	}
	for i := 0; i < count; i++ {
		// Start signaled so the first pass over the ring does not block.
		f, err := device.CreateFence(true)
		if err != nil {
			r.Destroy()
			return nil, err
		}
		r.fences = append(r.fences, f)
		cmd, err := device.CreateCommandBuffer()
		if err != nil {
			r.Destroy()
			return nil, err
		}
		r.commands = append(r.commands, cmd)
	}
	return r, nil
}

// Acquire advances to the next slot and blocks until its fence is signaled.
// There is no deadline: the timeout only controls how often a stall is logged.
func (r *FrameRing) Acquire() (int, error) {
	next := (r.current + 1) % len(r.fences)
	fence := r.fences[next]
	for {
		ok, err := fence.Wait(r.timeout)
		if err != nil {
			return -1, err
		}
		if ok {
			break
		}
		core.LogWarn("frame slot %d still busy after %s", next, r.timeout)
	}
	if err := fence.Reset(); err != nil {
		return -1, err
	}
	if err := r.commands[next].Reset(); err != nil {
		return -1, err
	}

	if r.frame > 0 {
		r.clock.Update()
		r.metrics.Update(r.clock.Elapsed())
	}
	r.clock.Start()

	r.current = next
	r.frame++
	return next, nil
}

// Index is the slot returned by the last Acquire.
func (r *FrameRing) Index() int { return r.current }

func (r *FrameRing) Count() int { return len(r.fences) }

// FrameNumber counts acquired frames.
func (r *FrameRing) FrameNumber() uint64 { return r.frame }

// Fence is the fence the current frame's submission must signal.
func (r *FrameRing) Fence() Fence {
	if r.current < 0 {
		return nil
	}
	return r.fences[r.current]
}

func (r *FrameRing) CommandBuffer() CommandBuffer {
	if r.current < 0 {
		return nil
	}
	return r.commands[r.current]
}

func (r *FrameRing) Metrics() *core.FrameMetrics { return r.metrics }

// WaitAll blocks until every slot is idle.
func (r *FrameRing) WaitAll() error {
	for _, f := range r.fences {
		for {
			ok, err := f.Wait(r.timeout)
			if err != nil {
				return err
			}
			if ok {
				break
			}
		}
	}
	return nil
}

func (r *FrameRing) Destroy() {
	for _, c := range r.commands {
		c.Destroy()
	}
	for _, f := range r.fences {
		f.Destroy()
	}
	r.commands = nil
	r.fences = nil
}
