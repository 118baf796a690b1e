package rendertest

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// CommandBuffer logs every call on its device. Data movement is deferred
// until the buffer is submitted.
type CommandBuffer struct {
	device       *Device
	recording    bool
	inRenderPass bool
	pipeline     renderer.Pipeline
	ops          []func() error
	// Draws counts Draw, DrawIndexed and Dispatch calls.
	Draws int
}

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return core.NewError(core.KindUsageViolation, "CommandBuffer.Begin", "already recording")
	}
	c.recording = true
	c.ops = nil
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return core.NewError(core.KindUsageViolation, "CommandBuffer.End", "not recording")
	}
	if c.inRenderPass {
		return core.NewError(core.KindUsageViolation, "CommandBuffer.End", "render pass still open")
	}
	c.recording = false
	return nil
}

func (c *CommandBuffer) Reset() error {
	c.recording = false
	c.inRenderPass = false
	c.pipeline = nil
	c.ops = nil
	return nil
}

func (c *CommandBuffer) Destroy() {}

func (c *CommandBuffer) TextureBarrier(tex renderer.Texture, changes []renderer.SubresourceTransition) error {
	if c.inRenderPass {
		return core.NewError(core.KindUsageViolation, "TextureBarrier", "barrier on %q inside a render pass", tex.Label())
	}
	c.device.mu.Lock()
	c.device.Barriers = append(c.device.Barriers, Barrier{
		Resource: tex.Label(),
		Changes:  append([]renderer.SubresourceTransition(nil), changes...),
	})
	c.device.mu.Unlock()
	c.device.record("barrier %s x%d", tex.Label(), len(changes))
	return nil
}

func (c *CommandBuffer) BufferBarrier(buf renderer.Buffer, before, after metadata.ResourceState) error {
	c.device.mu.Lock()
	c.device.Barriers = append(c.device.Barriers, Barrier{
		Resource: buf.Label(),
		Changes:  []renderer.SubresourceTransition{{Before: before, After: after}},
	})
	c.device.mu.Unlock()
	c.device.record("barrier %s %s->%s", buf.Label(), before, after)
	return nil
}

func (c *CommandBuffer) BeginRenderPass(fb renderer.Framebuffer, clear renderer.ClearValues) error {
	if c.inRenderPass {
		return core.NewError(core.KindUsageViolation, "BeginRenderPass", "render pass already open")
	}
	c.inRenderPass = true
	c.device.record("begin render pass %s", fb.RenderPass().Config().Key())
	return nil
}

func (c *CommandBuffer) EndRenderPass() error {
	if !c.inRenderPass {
		return core.NewError(core.KindUsageViolation, "EndRenderPass", "no render pass open")
	}
	c.inRenderPass = false
	c.device.record("end render pass")
	return nil
}

func (c *CommandBuffer) BindPipeline(p renderer.Pipeline) error {
	c.pipeline = p
	c.device.record("bind pipeline %s", p.Label())
	return nil
}

func (c *CommandBuffer) BindDescriptor(p renderer.Pipeline, entry *metadata.BindingEntry, res renderer.DescriptorResource) error {
	if len(entry.Slots) == 0 {
		return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q has no physical slot", entry.Name)
	}
	c.device.record("bind descriptor %d %s %v", entry.Logical, entry.Name, entry.Slots)
	return nil
}

func (c *CommandBuffer) BindVertexBuffer(p renderer.Pipeline, attr *metadata.AttributeBinding, buf renderer.Buffer, offset uint64) error {
	c.device.record("bind vertex buffer %d %s slot=%d", attr.Logical, buf.Label(), attr.Slot)
	return nil
}

func (c *CommandBuffer) BindIndexBuffer(buf renderer.Buffer, offset uint64, format renderer.IndexFormat) error {
	c.device.record("bind index buffer %s", buf.Label())
	return nil
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.Draws++
	c.device.record("draw %d", vertexCount)
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.Draws++
	c.device.record("draw indexed %d", indexCount)
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	c.Draws++
	c.device.record("dispatch %d %d %d", x, y, z)
}

func asBuffer(b renderer.Buffer) (*Buffer, error) {
	fb, ok := b.(*Buffer)
	if !ok {
		return nil, core.NewError(core.KindUsageViolation, "rendertest", "foreign buffer %T", b)
	}
	return fb, nil
}

func asTexture(t renderer.Texture) (*Texture, error) {
	ft, ok := t.(*Texture)
	if !ok {
		return nil, core.NewError(core.KindUsageViolation, "rendertest", "foreign texture %T", t)
	}
	return ft, nil
}

func subresourceSize(desc metadata.TextureDesc, mip uint32) (w, h, size uint64) {
	w = uint64(max(desc.Width>>mip, 1))
	h = uint64(max(desc.Height>>mip, 1))
	d := uint64(max(desc.Depth>>mip, 1))
	return w, h, w * h * d * uint64(desc.Format.BytesPerPixel())
}

func (c *CommandBuffer) CopyBuffer(src, dst renderer.Buffer, srcOffset, dstOffset, size uint64) error {
	s, err := asBuffer(src)
	if err != nil {
		return err
	}
	d, err := asBuffer(dst)
	if err != nil {
		return err
	}
	if srcOffset+size > uint64(len(s.data)) || dstOffset+size > uint64(len(d.data)) {
		return core.NewError(core.KindUsageViolation, "CopyBuffer", "copy of %d bytes out of range", size)
	}
	c.device.record("copy buffer %s -> %s", src.Label(), dst.Label())
	c.ops = append(c.ops, func() error {
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
		return nil
	})
	return nil
}

func (c *CommandBuffer) CopyBufferToTexture(src renderer.Buffer, srcOffset uint64, dst renderer.Texture, mip, layer uint32) error {
	s, err := asBuffer(src)
	if err != nil {
		return err
	}
	t, err := asTexture(dst)
	if err != nil {
		return err
	}
	if got := t.states.Get(mip, layer); got != metadata.ResourceStateTransferDst {
		return core.NewError(core.KindUsageViolation, "CopyBufferToTexture", "destination is %s", got)
	}
	_, _, size := subresourceSize(t.desc, mip)
	if srcOffset+size > uint64(len(s.data)) {
		return core.NewError(core.KindUsageViolation, "CopyBufferToTexture", "source too small")
	}
	c.device.record("copy buffer %s -> texture %s (%d,%d)", src.Label(), dst.Label(), mip, layer)
	c.ops = append(c.ops, func() error {
		*t.subresource(mip, layer) = append([]byte(nil), s.data[srcOffset:srcOffset+size]...)
		return nil
	})
	return nil
}

func (c *CommandBuffer) CopyTextureToBuffer(src renderer.Texture, mip, layer uint32, dst renderer.Buffer, dstOffset uint64) error {
	t, err := asTexture(src)
	if err != nil {
		return err
	}
	d, err := asBuffer(dst)
	if err != nil {
		return err
	}
	if got := t.states.Get(mip, layer); got != metadata.ResourceStateTransferSrc {
		return core.NewError(core.KindUsageViolation, "CopyTextureToBuffer", "source is %s", got)
	}
	_, _, size := subresourceSize(t.desc, mip)
	if dstOffset+size > uint64(len(d.data)) {
		return core.NewError(core.KindUsageViolation, "CopyTextureToBuffer", "destination too small")
	}
	c.device.record("copy texture %s (%d,%d) -> buffer %s", src.Label(), mip, layer, dst.Label())
	c.ops = append(c.ops, func() error {
		copy(d.data[dstOffset:dstOffset+size], *t.subresource(mip, layer))
		return nil
	})
	return nil
}

// BlitMip keeps every other texel in both directions.
func (c *CommandBuffer) BlitMip(tex renderer.Texture, layer, srcMip uint32) error {
	t, err := asTexture(tex)
	if err != nil {
		return err
	}
	if t.states.Get(srcMip, layer) != metadata.ResourceStateTransferSrc || t.states.Get(srcMip+1, layer) != metadata.ResourceStateTransferDst {
		return core.NewError(core.KindUsageViolation, "BlitMip", "mips of %q are not in transfer states", tex.Label())
	}
	c.device.record("blit %s layer %d mip %d", tex.Label(), layer, srcMip)
	bpp := uint64(t.desc.Format.BytesPerPixel())
	sw, _, _ := subresourceSize(t.desc, srcMip)
	dw, dh, dsize := subresourceSize(t.desc, srcMip+1)
	c.ops = append(c.ops, func() error {
		src := *t.subresource(srcMip, layer)
		dst := make([]byte, dsize)
		for y := uint64(0); y < dh; y++ {
			for x := uint64(0); x < dw; x++ {
				from := ((2*y)*sw + 2*x) * bpp
				if from+bpp <= uint64(len(src)) {
					copy(dst[(y*dw+x)*bpp:], src[from:from+bpp])
				}
			}
		}
		*t.subresource(srcMip+1, layer) = dst
		return nil
	})
	return nil
}
