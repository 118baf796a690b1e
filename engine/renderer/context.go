package renderer

import (
	"time"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type ContextOptions struct {
	FramesInFlight int
	FenceTimeout   time.Duration
}

// GraphicsContext owns a device and everything scoped to it: the render
// pass and pipeline caches and the frame ring. It is the surface drawing and
// compute code uses. Like the caches it is driven from one thread; only the
// device's descriptor pool is synchronized.
type GraphicsContext struct {
	device       Device
	fs           core.FileSystem
	renderPasses *RenderPassCache
	pipelines    *PipelineCache
	frames       *FrameRing
	fenceTimeout time.Duration
}

func NewGraphicsContext(device Device, fsys core.FileSystem, opts ContextOptions) (*GraphicsContext, error) {
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = 3
	}
	if opts.FenceTimeout <= 0 {
		opts.FenceTimeout = time.Second
	}
	frames, err := NewFrameRing(device, opts.FramesInFlight, opts.FenceTimeout)
	if err != nil {
		return nil, err
	}
	core.LogInfo("graphics context created: backend=%s frames=%d descriptors=%d",
		device.Backend(), opts.FramesInFlight, device.Descriptors().Capacity())
	return &GraphicsContext{
		device:       device,
		fs:           fsys,
		renderPasses: NewRenderPassCache(device),
		pipelines:    NewPipelineCache(device),
		frames:       frames,
		fenceTimeout: opts.FenceTimeout,
	}, nil
}

func (c *GraphicsContext) Device() Device                 { return c.device }
func (c *GraphicsContext) Frames() *FrameRing             { return c.frames }
func (c *GraphicsContext) RenderPasses() *RenderPassCache { return c.renderPasses }
func (c *GraphicsContext) Pipelines() *PipelineCache      { return c.pipelines }
func (c *GraphicsContext) Descriptors() *DescriptorPool   { return c.device.Descriptors() }

// LoadShaderModule loads the artifacts compiled for this context's backend.
func (c *GraphicsContext) LoadShaderModule(path string) (*ShaderModule, error) {
	return LoadShaderModule(c.fs, c.device.Backend(), path)
}

// Transition moves texture subresources into state, see TransitionTexture.
func (c *GraphicsContext) Transition(cmd CommandBuffer, tex Texture, rng metadata.SubresourceRange, state metadata.ResourceState) error {
	return TransitionTexture(cmd, tex, rng, state)
}

func (c *GraphicsContext) TransitionBuffer(cmd CommandBuffer, buf Buffer, state metadata.ResourceState) error {
	return TransitionBuffer(cmd, buf, state)
}

func (c *GraphicsContext) GetRenderPass(cfg metadata.RenderPassConfig) (RenderPass, error) {
	return c.renderPasses.Get(cfg)
}

func (c *GraphicsContext) GetOrCreatePipeline(key string, state metadata.PipelineState, modules []*ShaderModule, rp RenderPass) (Pipeline, error) {
	return c.pipelines.GetOrCreate(key, state, modules, rp)
}

func (c *GraphicsContext) GetOrCreateComputePipeline(key string, module *ShaderModule) (Pipeline, error) {
	return c.pipelines.GetOrCreateCompute(key, module)
}

func (c *GraphicsContext) CreateFramebuffer(rp RenderPass, attachments []Attachment) (Framebuffer, error) {
	return c.device.CreateFramebuffer(rp, attachments)
}

// BeginRenderPass moves the attachments into the layouts the pass expects
// and begins it.
func (c *GraphicsContext) BeginRenderPass(cmd CommandBuffer, fb Framebuffer, clear ClearValues) error {
	if err := PrepareRenderPass(cmd, fb); err != nil {
		return err
	}
	return cmd.BeginRenderPass(fb, clear)
}

// EndRenderPass ends the pass and records the final attachment layouts.
func (c *GraphicsContext) EndRenderPass(cmd CommandBuffer, fb Framebuffer) error {
	if err := cmd.EndRenderPass(); err != nil {
		return err
	}
	return ApplyRenderPassEnd(fb)
}

// BindDescriptor binds res to the descriptor with logical index logical,
// transitioning it into the state the descriptor type needs first.
func (c *GraphicsContext) BindDescriptor(cmd CommandBuffer, p Pipeline, logical int, res DescriptorResource) error {
	entry, err := p.Plan().Entry(logical)
	if err != nil {
		return err
	}
	state := DescriptorState(entry)
	switch entry.Type {
	case metadata.DescriptorTypeCombinedImageSampler, metadata.DescriptorTypeStorageImage:
		if res.Texture == nil {
			return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q needs a texture", entry.Name)
		}
		if err := TransitionTexture(cmd, res.Texture, metadata.AllSubresources, state); err != nil {
			return err
		}
	default:
		if res.Buffer == nil {
			return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q needs a buffer", entry.Name)
		}
		if err := TransitionBuffer(cmd, res.Buffer, state); err != nil {
			return err
		}
	}
	return cmd.BindDescriptor(p, entry, res)
}

// BindDescriptorByName resolves name through the pipeline's plan first.
func (c *GraphicsContext) BindDescriptorByName(cmd CommandBuffer, p Pipeline, name string, res DescriptorResource) error {
	idx, err := p.Plan().DescriptorIndex(name)
	if err != nil {
		return err
	}
	return c.BindDescriptor(cmd, p, idx, res)
}

func (c *GraphicsContext) BindVertexBuffer(cmd CommandBuffer, p Pipeline, attribute int, buf Buffer, offset uint64) error {
	attr, err := p.Plan().Attribute(attribute)
	if err != nil {
		return err
	}
	if err := TransitionBuffer(cmd, buf, metadata.ResourceStateShaderReadOnly); err != nil {
		return err
	}
	return cmd.BindVertexBuffer(p, attr, buf, offset)
}

func (c *GraphicsContext) BindIndexBuffer(cmd CommandBuffer, buf Buffer, offset uint64, format IndexFormat) error {
	if err := TransitionBuffer(cmd, buf, metadata.ResourceStateShaderReadOnly); err != nil {
		return err
	}
	return cmd.BindIndexBuffer(buf, offset, format)
}

// Submit queues cmds without waiting for them.
func (c *GraphicsContext) Submit(cmds ...CommandBuffer) error {
	return c.device.Queue().Submit(cmds, nil)
}

// SubmitFrame queues cmds signaling the current frame slot's fence.
func (c *GraphicsContext) SubmitFrame(cmds ...CommandBuffer) error {
	return c.device.Queue().Submit(cmds, c.frames.Fence())
}

// SubmitAndWait queues cmds and blocks until the GPU finished them.
func (c *GraphicsContext) SubmitAndWait(cmds ...CommandBuffer) error {
	fence, err := c.device.CreateFence(false)
	if err != nil {
		return err
	}
	defer fence.Destroy()
	if err := c.device.Queue().Submit(cmds, fence); err != nil {
		return err
	}
	for {
		ok, err := fence.Wait(c.fenceTimeout)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		core.LogWarn("still waiting for a synchronous submission after %s", c.fenceTimeout)
	}
}

// immediate records fn into a one-off command buffer and waits for it.
func (c *GraphicsContext) immediate(fn func(cmd CommandBuffer) error) error {
	cmd, err := c.device.CreateCommandBuffer()
	if err != nil {
		return err
	}
	defer cmd.Destroy()
	if err := cmd.Begin(); err != nil {
		return err
	}
	if err := fn(cmd); err != nil {
		return err
	}
	if err := cmd.End(); err != nil {
		return err
	}
	return c.SubmitAndWait(cmd)
}

func (c *GraphicsContext) staging(size uint64, usage metadata.BufferUsage, state metadata.ResourceState) (Buffer, error) {
	return c.device.CreateBuffer(metadata.BufferDesc{
		Label:        NewLabel("staging"),
		Size:         size,
		Usage:        usage,
		InitialState: state,
		HostVisible:  true,
	})
}

// CreateTexture creates a texture, uploads data into mip 0 of every layer
// when given, generates the remaining mips and leaves every subresource in
// the texture's initial state. It waits for the GPU before returning.
func (c *GraphicsContext) CreateTexture(desc metadata.TextureDesc, data []byte) (Texture, error) {
	desc = desc.Normalized()
	if desc.Label == "" {
		desc.Label = NewLabel("texture")
	}
	if desc.InitialState == metadata.ResourceStateUndefined {
		desc.InitialState = metadata.DefaultState(desc.Usage)
	}
	if !desc.Usage.Allows(desc.InitialState) {
		return nil, core.NewError(core.KindUsageViolation, "CreateTexture",
			"texture %q usage %#x does not allow initial state %s", desc.Label, uint32(desc.Usage), desc.InitialState)
	}
	layerSize := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Depth) * uint64(desc.Format.BytesPerPixel())
	if data != nil && uint64(len(data)) != layerSize*uint64(desc.ArrayLayers) {
		return nil, core.NewError(core.KindUsageViolation, "CreateTexture",
			"texture %q expects %d bytes of data, got %d", desc.Label, layerSize*uint64(desc.ArrayLayers), len(data))
	}

	tex, err := c.device.CreateTexture(desc)
	if err != nil {
		return nil, err
	}

	var stage Buffer
	if data != nil {
		if stage, err = c.staging(uint64(len(data)), metadata.BufferUsageTransferSrc, metadata.ResourceStateTransferSrc); err != nil {
			tex.Destroy()
			return nil, err
		}
		defer stage.Destroy()
		if err := stage.Write(0, data); err != nil {
			tex.Destroy()
			return nil, err
		}
	}

	err = c.immediate(func(cmd CommandBuffer) error {
		if stage != nil {
			if err := TransitionTexture(cmd, tex, metadata.AllSubresources, metadata.ResourceStateTransferDst); err != nil {
				return err
			}
			for layer := uint32(0); layer < desc.ArrayLayers; layer++ {
				if err := cmd.CopyBufferToTexture(stage, uint64(layer)*layerSize, tex, 0, layer); err != nil {
					return err
				}
			}
			if desc.MipLevels > 1 {
				if err := c.GenerateMipmaps(cmd, tex); err != nil {
					return err
				}
			}
		}
		return TransitionTexture(cmd, tex, metadata.AllSubresources, desc.InitialState)
	})
	if err != nil {
		tex.Destroy()
		return nil, err
	}
	return tex, nil
}

// GenerateMipmaps fills mips 1..n-1 of every layer by successive blits of
// the previous level. Mip 0 must hold the image.
func (c *GraphicsContext) GenerateMipmaps(cmd CommandBuffer, tex Texture) error {
	desc := tex.Desc().Normalized()
	for layer := uint32(0); layer < desc.ArrayLayers; layer++ {
		for mip := uint32(1); mip < desc.MipLevels; mip++ {
			if err := TransitionTexture(cmd, tex, metadata.Subresource(mip-1, layer), metadata.ResourceStateTransferSrc); err != nil {
				return err
			}
			if err := TransitionTexture(cmd, tex, metadata.Subresource(mip, layer), metadata.ResourceStateTransferDst); err != nil {
				return err
			}
			if err := cmd.BlitMip(tex, layer, mip-1); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateBuffer creates a buffer and uploads data when given. Host visible
// buffers are written directly, others through a staging copy.
func (c *GraphicsContext) CreateBuffer(desc metadata.BufferDesc, data []byte) (Buffer, error) {
	if desc.Label == "" {
		desc.Label = NewLabel("buffer")
	}
	if uint64(len(data)) > desc.Size {
		return nil, core.NewError(core.KindUsageViolation, "CreateBuffer",
			"buffer %q is %d bytes, got %d bytes of data", desc.Label, desc.Size, len(data))
	}
	buf, err := c.device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return buf, nil
	}
	if desc.HostVisible {
		if err := buf.Write(0, data); err != nil {
			buf.Destroy()
			return nil, err
		}
		return buf, nil
	}

	stage, err := c.staging(uint64(len(data)), metadata.BufferUsageTransferSrc, metadata.ResourceStateTransferSrc)
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	defer stage.Destroy()
	if err := stage.Write(0, data); err != nil {
		buf.Destroy()
		return nil, err
	}
	err = c.immediate(func(cmd CommandBuffer) error {
		if err := TransitionBuffer(cmd, buf, metadata.ResourceStateTransferDst); err != nil {
			return err
		}
		if err := cmd.CopyBuffer(stage, buf, 0, 0, uint64(len(data))); err != nil {
			return err
		}
		if desc.InitialState != metadata.ResourceStateUndefined {
			return TransitionBuffer(cmd, buf, desc.InitialState)
		}
		return nil
	})
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

// DownloadTexture copies one subresource back to the CPU. It blocks until
// the copy completed and restores the subresource's previous state.
func (c *GraphicsContext) DownloadTexture(tex Texture, mip, layer uint32) ([]byte, error) {
	desc := tex.Desc().Normalized()
	w, h, d := max(desc.Width>>mip, 1), max(desc.Height>>mip, 1), max(desc.Depth>>mip, 1)
	size := uint64(w) * uint64(h) * uint64(d) * uint64(desc.Format.BytesPerPixel())

	stage, err := c.staging(size, metadata.BufferUsageTransferDst, metadata.ResourceStateTransferDst)
	if err != nil {
		return nil, err
	}
	defer stage.Destroy()

	prev := tex.States().Get(mip, layer)
	err = c.immediate(func(cmd CommandBuffer) error {
		if err := TransitionTexture(cmd, tex, metadata.Subresource(mip, layer), metadata.ResourceStateTransferSrc); err != nil {
			return err
		}
		if err := cmd.CopyTextureToBuffer(tex, mip, layer, stage, 0); err != nil {
			return err
		}
		if prev != metadata.ResourceStateUndefined {
			return TransitionTexture(cmd, tex, metadata.Subresource(mip, layer), prev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	if err := stage.Read(0, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadBuffer reads a whole buffer back, blocking until the GPU is done.
func (c *GraphicsContext) DownloadBuffer(buf Buffer) ([]byte, error) {
	desc := buf.Desc()
	out := make([]byte, desc.Size)
	if desc.HostVisible {
		if err := buf.Read(0, out); err != nil {
			return nil, err
		}
		return out, nil
	}
	stage, err := c.staging(desc.Size, metadata.BufferUsageTransferDst, metadata.ResourceStateTransferDst)
	if err != nil {
		return nil, err
	}
	defer stage.Destroy()
	err = c.immediate(func(cmd CommandBuffer) error {
		if err := TransitionBuffer(cmd, buf, metadata.ResourceStateTransferSrc); err != nil {
			return err
		}
		return cmd.CopyBuffer(buf, stage, 0, 0, desc.Size)
	})
	if err != nil {
		return nil, err
	}
	if err := stage.Read(0, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Destroy waits for the device and releases everything the context owns,
// then the device itself.
func (c *GraphicsContext) Destroy() {
	if err := c.frames.WaitAll(); err != nil {
		core.LogWarn("waiting for in-flight frames: %s", err)
	}
	if err := c.device.WaitIdle(); err != nil {
		core.LogWarn("waiting for device idle: %s", err)
	}
	c.frames.Destroy()
	c.pipelines.Destroy()
	c.renderPasses.Destroy()
	c.device.Destroy()
}
