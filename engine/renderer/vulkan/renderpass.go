package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

func attachmentDescription(a metadata.AttachmentDesc, samples uint32) vk.AttachmentDescription {
	out := vk.AttachmentDescription{
		Format:         Format(a.Format),
		Samples:        SampleCount(samples),
		LoadOp:         LoadOp(a.LoadOp),
		StoreOp:        StoreOp(a.StoreOp),
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  ImageLayout(a.InitialLayout),
		FinalLayout:    ImageLayout(a.FinalLayout),
	}
	if a.Format.HasStencil() {
		out.StencilLoadOp = out.LoadOp
		out.StencilStoreOp = out.StoreOp
	}
	return out
}

// renderPassCreateInfo builds a single subpass pass: colors in order, then
// the optional depth attachment.
func renderPassCreateInfo(cfg metadata.RenderPassConfig) (*vk.RenderPassCreateInfo, error) {
	if len(cfg.Colors) == 0 && cfg.DepthStencil == nil {
		return nil, core.NewError(core.KindUsageViolation, "CreateRenderPass", "render pass without attachments")
	}
	samples := max(cfg.SampleCount, 1)

	attachments := make([]vk.AttachmentDescription, 0, len(cfg.Colors)+1)
	colorRefs := make([]vk.AttachmentReference, 0, len(cfg.Colors))
	for i, c := range cfg.Colors {
		if c.Format.IsDepth() {
			return nil, core.NewError(core.KindUsageViolation, "CreateRenderPass", "color attachment %d has depth format %s", i, c.Format)
		}
		attachments = append(attachments, attachmentDescription(c, samples))
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}

	srcStage := vk.PipelineStageColorAttachmentOutputBit
	dstAccess := vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit
	if cfg.DepthStencil != nil {
		if !cfg.DepthStencil.Format.IsDepth() {
			return nil, core.NewError(core.KindUsageViolation, "CreateRenderPass", "depth attachment has color format %s", cfg.DepthStencil.Format)
		}
		attachments = append(attachments, attachmentDescription(*cfg.DepthStencil, samples))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		srcStage |= vk.PipelineStageEarlyFragmentTestsBit
		dstAccess |= vk.AccessDepthStencilAttachmentWriteBit
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(srcStage),
		DstStageMask:  vk.PipelineStageFlags(srcStage),
		DstAccessMask: vk.AccessFlags(dstAccess),
	}

	return &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}, nil
}
