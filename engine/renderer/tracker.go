package renderer

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// TransitionTexture moves the subresources addressed by rng into state.
// Subresources already in state are left alone; when none has to change no
// command is recorded at all. Otherwise exactly one barrier carrying every
// changed subresource is recorded before the recorded state is updated.
func TransitionTexture(rec BarrierRecorder, tex Texture, rng metadata.SubresourceRange, state metadata.ResourceState) error {
	desc := tex.Desc()
	if !desc.Usage.Allows(state) {
		return core.NewError(core.KindUsageViolation, "TransitionTexture",
			"texture %q cannot enter state %s with usage %#x", tex.Label(), state, uint32(desc.Usage))
	}
	states := tex.States()
	r, ok := rng.Resolve(states.MipLevels(), states.ArrayLayers())
	if !ok {
		return core.NewError(core.KindUsageViolation, "TransitionTexture",
			"range %+v addresses nothing in texture %q (%d mips, %d layers)", rng, tex.Label(), states.MipLevels(), states.ArrayLayers())
	}

	var changes []SubresourceTransition
	for layer := r.BaseLayer; layer < r.BaseLayer+r.LayerCount; layer++ {
		for mip := r.BaseMip; mip < r.BaseMip+r.MipCount; mip++ {
			if cur := states.Get(mip, layer); cur != state {
				changes = append(changes, SubresourceTransition{Mip: mip, Layer: layer, Before: cur, After: state})
			}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	if err := rec.TextureBarrier(tex, changes); err != nil {
		return err
	}
	for _, c := range changes {
		states.Set(c.Mip, c.Layer, c.After)
	}
	return nil
}

// TransitionBuffer is TransitionTexture for a whole buffer.
func TransitionBuffer(rec BarrierRecorder, buf Buffer, state metadata.ResourceState) error {
	desc := buf.Desc()
	if !desc.Usage.Allows(state) {
		return core.NewError(core.KindUsageViolation, "TransitionBuffer",
			"buffer %q cannot enter state %s with usage %#x", buf.Label(), state, uint32(desc.Usage))
	}
	st := buf.State()
	before := st.Get()
	if before == state {
		return nil
	}
	if err := rec.BufferBarrier(buf, before, state); err != nil {
		return err
	}
	st.Set(state)
	return nil
}

func attachmentDescs(cfg metadata.RenderPassConfig) []metadata.AttachmentDesc {
	descs := append([]metadata.AttachmentDesc(nil), cfg.Colors...)
	if cfg.DepthStencil != nil {
		descs = append(descs, *cfg.DepthStencil)
	}
	return descs
}

func checkAttachments(op string, fb Framebuffer) ([]metadata.AttachmentDesc, error) {
	descs := attachmentDescs(fb.RenderPass().Config())
	if len(descs) != len(fb.Attachments()) {
		return nil, core.NewError(core.KindUsageViolation, op,
			"framebuffer has %d attachments, render pass declares %d", len(fb.Attachments()), len(descs))
	}
	return descs, nil
}

// PrepareRenderPass puts every attachment whose declared initial layout is
// not undefined into that layout. Attachments starting undefined are
// discarded by the pass and need no barrier.
func PrepareRenderPass(rec BarrierRecorder, fb Framebuffer) error {
	descs, err := checkAttachments("PrepareRenderPass", fb)
	if err != nil {
		return err
	}
	for i, a := range fb.Attachments() {
		if descs[i].InitialLayout == metadata.ResourceStateUndefined {
			continue
		}
		if err := TransitionTexture(rec, a.Texture, metadata.Subresource(a.Mip, a.Layer), descs[i].InitialLayout); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRenderPassEnd records the final layouts the render pass left its
// attachments in. The pass performed the transition itself, so nothing is
// recorded on the command buffer.
func ApplyRenderPassEnd(fb Framebuffer) error {
	descs, err := checkAttachments("ApplyRenderPassEnd", fb)
	if err != nil {
		return err
	}
	for i, a := range fb.Attachments() {
		a.Texture.States().Set(a.Mip, a.Layer, descs[i].FinalLayout)
	}
	return nil
}

// DescriptorState is the state a resource bound to entry must be in.
func DescriptorState(entry *metadata.BindingEntry) metadata.ResourceState {
	switch entry.Type {
	case metadata.DescriptorTypeStorageImage:
		return metadata.ResourceStateGeneral
	case metadata.DescriptorTypeStorageBuffer:
		if entry.ReadOnly {
			return metadata.ResourceStateShaderReadOnly
		}
		return metadata.ResourceStateGeneral
	}
	return metadata.ResourceStateShaderReadOnly
}
