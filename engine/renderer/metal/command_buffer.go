package metal

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type commandBufferState int

const (
	commandBufferStateReady commandBufferState = iota
	commandBufferStateRecording
	commandBufferStateInRenderPass
	commandBufferStateRecordingEnded
)

type encoderKind int

const (
	encoderNone encoderKind = iota
	encoderBlit
	encoderCompute
	encoderRender
)

// ConstantBufferAlignment is the offset alignment of buffers in the
// constant address space.
const ConstantBufferAlignment = 256

// CommandBuffer records into one MTLCommandBuffer at a time. Work is
// encoded through at most one open encoder: switching between blit,
// compute and render work ends the current encoder first.
type CommandBuffer struct {
	device   *Device
	cb       Handle
	state    commandBufferState
	encoder  Handle
	kind     encoderKind
	pipeline *Pipeline

	indexBuffer *Buffer
	indexOffset uint64
	indexType   IndexType
}

func (c *CommandBuffer) Handle() Handle { return c.cb }

func (c *CommandBuffer) recording() bool {
	return c.state == commandBufferStateRecording || c.state == commandBufferStateInRenderPass
}

func (c *CommandBuffer) requireRecording(op string) error {
	if !c.recording() {
		return core.NewError(core.KindUsageViolation, op, "command buffer is not recording")
	}
	return nil
}

func (c *CommandBuffer) requireOutsidePass(op string) error {
	if c.state == commandBufferStateInRenderPass {
		return core.NewError(core.KindUsageViolation, op, "not allowed inside a render pass")
	}
	return c.requireRecording(op)
}

func (c *CommandBuffer) endEncoder() {
	if c.kind == encoderNone {
		return
	}
	c.device.driver.EndEncoding(c.encoder)
	c.encoder, c.kind = NullHandle, encoderNone
	// Pipeline state does not carry over to the next encoder.
	c.pipeline = nil
}

// ensureEncoder returns an open encoder of kind, ending any other one.
func (c *CommandBuffer) ensureEncoder(kind encoderKind) (Handle, error) {
	if c.kind == kind {
		return c.encoder, nil
	}
	c.endEncoder()
	var (
		enc Handle
		err error
	)
	switch kind {
	case encoderBlit:
		enc, err = c.device.driver.BeginBlitEncoder(c.cb)
	case encoderCompute:
		enc, err = c.device.driver.BeginComputeEncoder(c.cb)
	}
	if err != nil {
		return NullHandle, err
	}
	c.encoder, c.kind = enc, kind
	return enc, nil
}

func (c *CommandBuffer) release() {
	if c.cb != NullHandle {
		c.device.driver.Release(c.cb)
		c.cb = NullHandle
	}
}

// Begin starts a fresh native command buffer. One that was recorded but
// never submitted is dropped.
func (c *CommandBuffer) Begin() error {
	if c.recording() {
		return core.NewError(core.KindUsageViolation, "CommandBuffer.Begin", "already recording")
	}
	c.release()
	cb, err := c.device.driver.NewCommandBuffer()
	if err != nil {
		return err
	}
	c.cb = cb
	c.pipeline, c.indexBuffer = nil, nil
	c.state = commandBufferStateRecording
	return nil
}

func (c *CommandBuffer) End() error {
	switch c.state {
	case commandBufferStateInRenderPass:
		return core.NewError(core.KindUsageViolation, "CommandBuffer.End", "render pass still open")
	case commandBufferStateRecording:
	default:
		return core.NewError(core.KindUsageViolation, "CommandBuffer.End", "not recording")
	}
	c.endEncoder()
	c.state = commandBufferStateRecordingEnded
	return nil
}

func (c *CommandBuffer) Reset() error {
	c.endEncoder()
	c.release()
	c.pipeline, c.indexBuffer = nil, nil
	c.state = commandBufferStateReady
	return nil
}

func (c *CommandBuffer) Destroy() {
	c.endEncoder()
	c.release()
}

// committed hands the native buffer to the queue, which owns it from now on.
func (c *CommandBuffer) committed() {
	c.cb = NullHandle
	c.state = commandBufferStateReady
}

// barrierEncoder is where barriers go. Metal has no barriers inside blit
// encoders, and render pass barriers are not allowed at all.
func (c *CommandBuffer) barrierEncoder(op, label string) (Handle, error) {
	if c.state == commandBufferStateInRenderPass {
		return NullHandle, core.NewError(core.KindUsageViolation, op, "barrier on %q inside a render pass", label)
	}
	if err := c.requireRecording(op); err != nil {
		return NullHandle, err
	}
	return c.ensureEncoder(encoderCompute)
}

// TextureBarrier records one memory barrier covering every change.
func (c *CommandBuffer) TextureBarrier(tex renderer.Texture, changes []renderer.SubresourceTransition) error {
	enc, err := c.barrierEncoder("TextureBarrier", tex.Label())
	if err != nil {
		return err
	}
	t, err := AsTexture(tex)
	if err != nil {
		return err
	}
	c.device.driver.MemoryBarrier(enc, TextureBarrier(t.texture, changes))
	return nil
}

func (c *CommandBuffer) BufferBarrier(buf renderer.Buffer, before, after metadata.ResourceState) error {
	enc, err := c.barrierEncoder("BufferBarrier", buf.Label())
	if err != nil {
		return err
	}
	b, err := AsBuffer(buf)
	if err != nil {
		return err
	}
	c.device.driver.MemoryBarrier(enc, BufferBarrier(b.buffer, before, after))
	return nil
}

// BeginRenderPass opens a render encoder. Load and store actions take the
// place of the clears and layout transitions other APIs record.
func (c *CommandBuffer) BeginRenderPass(fb renderer.Framebuffer, clear renderer.ClearValues) error {
	if c.state != commandBufferStateRecording {
		return core.NewError(core.KindUsageViolation, "BeginRenderPass", "command buffer is not recording outside a render pass")
	}
	f, err := AsFramebuffer(fb)
	if err != nil {
		return err
	}
	c.endEncoder()
	enc, err := c.device.driver.BeginRenderEncoder(c.cb, f.descriptor(clear))
	if err != nil {
		return err
	}
	c.encoder, c.kind = enc, encoderRender
	c.device.driver.SetViewport(enc, Viewport{Width: float64(f.width), Height: float64(f.height), ZFar: 1})
	c.state = commandBufferStateInRenderPass
	return nil
}

func (c *CommandBuffer) EndRenderPass() error {
	if c.state != commandBufferStateInRenderPass {
		return core.NewError(core.KindUsageViolation, "EndRenderPass", "no render pass open")
	}
	c.endEncoder()
	c.state = commandBufferStateRecording
	return nil
}

// pipelineEncoder returns the encoder work for p is recorded on: the open
// render encoder for graphics pipelines, a compute encoder otherwise.
func (c *CommandBuffer) pipelineEncoder(op string, p *Pipeline) (Handle, error) {
	if err := c.requireRecording(op); err != nil {
		return NullHandle, err
	}
	if !p.compute() {
		if c.kind != encoderRender {
			return NullHandle, core.NewError(core.KindUsageViolation, op, "graphics pipeline %s used outside a render pass", p.label)
		}
		return c.encoder, nil
	}
	if c.state == commandBufferStateInRenderPass {
		return NullHandle, core.NewError(core.KindUsageViolation, op, "compute pipeline %s used inside a render pass", p.label)
	}
	return c.ensureEncoder(encoderCompute)
}

func (c *CommandBuffer) BindPipeline(p renderer.Pipeline) error {
	pl, err := AsPipeline(p)
	if err != nil {
		return err
	}
	enc, err := c.pipelineEncoder("BindPipeline", pl)
	if err != nil {
		return err
	}
	drv := c.device.driver
	if pl.compute() {
		drv.SetComputePipelineState(enc, pl.pso)
	} else {
		drv.SetRenderPipelineState(enc, pl.pso)
		drv.SetDepthStencilState(enc, pl.depthStencil)
		drv.SetStencilReference(enc, pl.stencilRef)
		drv.SetCullMode(enc, pl.cull)
		drv.SetFrontFacing(enc, pl.winding)
		drv.SetTriangleFillMode(enc, pl.fill)
	}
	c.pipeline = pl
	return nil
}

func (c *CommandBuffer) bufferOffset(entry *metadata.BindingEntry, res renderer.DescriptorResource) (*Buffer, uint64, error) {
	if res.Buffer == nil {
		return nil, 0, core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q needs a buffer", entry.Name)
	}
	b, err := AsBuffer(res.Buffer)
	if err != nil {
		return nil, 0, err
	}
	if res.Size != 0 && res.Offset+res.Size > b.desc.Size {
		return nil, 0, core.NewError(core.KindUsageViolation, "BindDescriptor", "range [%d,%d) exceeds buffer %q", res.Offset, res.Offset+res.Size, b.desc.Label)
	}
	if res.Offset >= b.desc.Size {
		return nil, 0, core.NewError(core.KindUsageViolation, "BindDescriptor", "offset %d is past the end of buffer %q", res.Offset, b.desc.Label)
	}
	if entry.Type == metadata.DescriptorTypeUniformBuffer && res.Offset%ConstantBufferAlignment != 0 {
		return nil, 0, core.NewError(core.KindUsageViolation, "BindDescriptor", "constant buffer offset %d is not %d byte aligned", res.Offset, ConstantBufferAlignment)
	}
	return b, res.Offset, nil
}

// BindDescriptor sets the arguments of entry on every function that reads
// it, at the indices of each slot. Combined image samplers set the texture
// and its sampler state.
func (c *CommandBuffer) BindDescriptor(p renderer.Pipeline, entry *metadata.BindingEntry, res renderer.DescriptorResource) error {
	pl, err := AsPipeline(p)
	if err != nil {
		return err
	}
	enc, err := c.pipelineEncoder("BindDescriptor", pl)
	if err != nil {
		return err
	}
	if len(entry.Slots) == 0 {
		return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q has no physical slot", entry.Name)
	}
	drv := c.device.driver
	stages := func(s metadata.PhysicalSlot) FunctionStages {
		if s.Stages == 0 {
			return FunctionStagesFor(entry.Stages, pl.compute())
		}
		return FunctionStagesFor(s.Stages, pl.compute())
	}

	if entry.Type.IsBuffer() {
		b, offset, err := c.bufferOffset(entry, res)
		if err != nil {
			return err
		}
		for _, s := range entry.Slots {
			drv.SetBuffer(enc, stages(s), b.buffer, offset, s.Index)
		}
		return nil
	}

	if res.Texture == nil {
		return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q needs a texture", entry.Name)
	}
	t, err := AsTexture(res.Texture)
	if err != nil {
		return err
	}
	if entry.Type == metadata.DescriptorTypeStorageImage {
		if !t.desc.Usage.Has(metadata.TextureUsageStorage) {
			return core.NewError(core.KindUsageViolation, "BindDescriptor", "texture %q is not a storage texture", t.desc.Label)
		}
	} else {
		if t.samplerSlot < 0 {
			return core.NewError(core.KindUsageViolation, "BindDescriptor", "texture %q is not sampled", t.desc.Label)
		}
		if !hasSlot(entry, metadata.SlotKindSampler) {
			return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q has no sampler slot", entry.Name)
		}
	}
	for _, s := range entry.Slots {
		switch s.Kind {
		case metadata.SlotKindTexture:
			drv.SetTexture(enc, stages(s), t.texture, s.Index)
		case metadata.SlotKindSampler:
			drv.SetSampler(enc, stages(s), uint32(t.samplerSlot), s.Index)
		}
	}
	return nil
}

func hasSlot(entry *metadata.BindingEntry, kind metadata.SlotKind) bool {
	for _, s := range entry.Slots {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func (c *CommandBuffer) BindVertexBuffer(p renderer.Pipeline, attr *metadata.AttributeBinding, buf renderer.Buffer, offset uint64) error {
	pl, err := AsPipeline(p)
	if err != nil {
		return err
	}
	enc, err := c.pipelineEncoder("BindVertexBuffer", pl)
	if err != nil {
		return err
	}
	b, err := AsBuffer(buf)
	if err != nil {
		return err
	}
	if !b.desc.Usage.Has(metadata.BufferUsageVertex) {
		return core.NewError(core.KindUsageViolation, "BindVertexBuffer", "buffer %q is not a vertex buffer", b.desc.Label)
	}
	if offset >= b.desc.Size {
		return core.NewError(core.KindUsageViolation, "BindVertexBuffer", "offset %d is past the end of buffer %q", offset, b.desc.Label)
	}
	c.device.driver.SetBuffer(enc, FunctionStageVertex, b.buffer, offset, attr.Slot)
	return nil
}

// BindIndexBuffer only remembers the buffer: Metal passes it with every
// indexed draw.
func (c *CommandBuffer) BindIndexBuffer(buf renderer.Buffer, offset uint64, format renderer.IndexFormat) error {
	if err := c.requireRecording("BindIndexBuffer"); err != nil {
		return err
	}
	b, err := AsBuffer(buf)
	if err != nil {
		return err
	}
	if !b.desc.Usage.Has(metadata.BufferUsageIndex) {
		return core.NewError(core.KindUsageViolation, "BindIndexBuffer", "buffer %q is not an index buffer", b.desc.Label)
	}
	if offset >= b.desc.Size {
		return core.NewError(core.KindUsageViolation, "BindIndexBuffer", "offset %d is past the end of buffer %q", offset, b.desc.Label)
	}
	c.indexBuffer, c.indexOffset, c.indexType = b, offset, IndexTypeFor(format)
	return nil
}

func (c *CommandBuffer) drawReady(op string) bool {
	if c.kind != encoderRender || c.pipeline == nil || c.pipeline.compute() {
		core.LogError("metal %s: no graphics pipeline bound inside a render pass", op)
		return false
	}
	return true
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !c.drawReady("Draw") {
		return
	}
	c.device.driver.DrawPrimitives(c.encoder, c.pipeline.primitive, firstVertex, vertexCount, instanceCount, firstInstance)
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if !c.drawReady("DrawIndexed") {
		return
	}
	if c.indexBuffer == nil {
		core.LogError("metal DrawIndexed: no index buffer bound")
		return
	}
	offset := c.indexOffset + uint64(firstIndex)*indexSize(c.indexType)
	c.device.driver.DrawIndexedPrimitives(c.encoder, c.pipeline.primitive, indexCount, c.indexType,
		c.indexBuffer.buffer, offset, instanceCount, vertexOffset, firstInstance)
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	if c.kind != encoderCompute || c.pipeline == nil || !c.pipeline.compute() {
		core.LogError("metal Dispatch: no compute pipeline bound")
		return
	}
	c.device.driver.DispatchThreadgroups(c.encoder, [3]uint32{x, y, z}, c.pipeline.threads)
}

func (c *CommandBuffer) CopyBuffer(src, dst renderer.Buffer, srcOffset, dstOffset, size uint64) error {
	if err := c.requireOutsidePass("CopyBuffer"); err != nil {
		return err
	}
	s, err := AsBuffer(src)
	if err != nil {
		return err
	}
	d, err := AsBuffer(dst)
	if err != nil {
		return err
	}
	if srcOffset+size > s.desc.Size || dstOffset+size > d.desc.Size {
		return core.NewError(core.KindUsageViolation, "CopyBuffer", "copy of %d bytes from %q to %q is out of range", size, s.desc.Label, d.desc.Label)
	}
	enc, err := c.ensureEncoder(encoderBlit)
	if err != nil {
		return err
	}
	c.device.driver.CopyBuffer(enc, s.buffer, srcOffset, d.buffer, dstOffset, size)
	return nil
}

func (t *Texture) checkSubresource(op string, mip, layer uint32, want metadata.ResourceState) error {
	if mip >= t.desc.MipLevels || layer >= t.desc.ArrayLayers {
		return core.NewError(core.KindUsageViolation, op, "(mip %d, layer %d) is outside texture %q", mip, layer, t.desc.Label)
	}
	if got := t.states.Get(mip, layer); got != want {
		return core.NewError(core.KindUsageViolation, op, "texture %q (mip %d, layer %d) is %s, expected %s", t.desc.Label, mip, layer, got, want)
	}
	return nil
}

// textureCopy addresses one whole (mip, layer) tightly packed at offset.
func textureCopy(t *Texture, mip, layer uint32, buffer Handle, offset uint64) (TextureCopy, uint64) {
	w, h := t.Extent(mip)
	d := max(t.desc.Depth>>mip, 1)
	bpp := t.desc.Format.BytesPerPixel()
	return TextureCopy{
		Buffer:        buffer,
		BufferOffset:  offset,
		BytesPerRow:   w * bpp,
		BytesPerImage: w * h * bpp,
		Texture:       t.texture,
		Level:         mip,
		Slice:         layer,
		Width:         w,
		Height:        h,
		Depth:         d,
	}, uint64(w) * uint64(h) * uint64(d) * uint64(bpp)
}

func (c *CommandBuffer) CopyBufferToTexture(src renderer.Buffer, srcOffset uint64, dst renderer.Texture, mip, layer uint32) error {
	if err := c.requireOutsidePass("CopyBufferToTexture"); err != nil {
		return err
	}
	s, err := AsBuffer(src)
	if err != nil {
		return err
	}
	t, err := AsTexture(dst)
	if err != nil {
		return err
	}
	if err := t.checkSubresource("CopyBufferToTexture", mip, layer, metadata.ResourceStateTransferDst); err != nil {
		return err
	}
	region, size := textureCopy(t, mip, layer, s.buffer, srcOffset)
	if srcOffset+size > s.desc.Size {
		return core.NewError(core.KindUsageViolation, "CopyBufferToTexture", "buffer %q holds %d bytes, copy needs %d at offset %d", s.desc.Label, s.desc.Size, size, srcOffset)
	}
	enc, err := c.ensureEncoder(encoderBlit)
	if err != nil {
		return err
	}
	c.device.driver.CopyBufferToTexture(enc, region)
	return nil
}

func (c *CommandBuffer) CopyTextureToBuffer(src renderer.Texture, mip, layer uint32, dst renderer.Buffer, dstOffset uint64) error {
	if err := c.requireOutsidePass("CopyTextureToBuffer"); err != nil {
		return err
	}
	t, err := AsTexture(src)
	if err != nil {
		return err
	}
	d, err := AsBuffer(dst)
	if err != nil {
		return err
	}
	if err := t.checkSubresource("CopyTextureToBuffer", mip, layer, metadata.ResourceStateTransferSrc); err != nil {
		return err
	}
	region, size := textureCopy(t, mip, layer, d.buffer, dstOffset)
	if dstOffset+size > d.desc.Size {
		return core.NewError(core.KindUsageViolation, "CopyTextureToBuffer", "buffer %q holds %d bytes, copy needs %d at offset %d", d.desc.Label, d.desc.Size, size, dstOffset)
	}
	enc, err := c.ensureEncoder(encoderBlit)
	if err != nil {
		return err
	}
	c.device.driver.CopyTextureToBuffer(enc, region)
	return nil
}

// BlitMip ends the open encoder; the driver encodes the downsample itself.
func (c *CommandBuffer) BlitMip(tex renderer.Texture, layer, srcMip uint32) error {
	if err := c.requireOutsidePass("BlitMip"); err != nil {
		return err
	}
	t, err := AsTexture(tex)
	if err != nil {
		return err
	}
	if srcMip+1 >= t.desc.MipLevels {
		return core.NewError(core.KindUsageViolation, "BlitMip", "texture %q has no mip below %d", t.desc.Label, srcMip)
	}
	if err := t.checkSubresource("BlitMip", srcMip, layer, metadata.ResourceStateTransferSrc); err != nil {
		return err
	}
	if err := t.checkSubresource("BlitMip", srcMip+1, layer, metadata.ResourceStateTransferDst); err != nil {
		return err
	}
	c.endEncoder()
	c.device.driver.GenerateMip(c.cb, t.texture, layer, srcMip, !t.desc.Format.IsDepth())
	return nil
}
