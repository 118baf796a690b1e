package metadata

import (
	"fmt"
	"strings"
)

type LoadOp uint8

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type StoreOp uint8

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

/**
 * @brief One attachment of a render pass. Layouts are neutral states.
 */
type AttachmentDesc struct {
	Format        PixelFormat
	InitialLayout ResourceState
	FinalLayout   ResourceState
	LoadOp        LoadOp
	StoreOp       StoreOp
}

func (a AttachmentDesc) key() string {
	return fmt.Sprintf("%d:%d:%d:%d:%d", a.Format, a.InitialLayout, a.FinalLayout, a.LoadOp, a.StoreOp)
}

/**
 * @brief Describes a render pass. Two configs are the same pass exactly when
 * every field is equal.
 */
type RenderPassConfig struct {
	Colors []AttachmentDesc
	/** @brief Optional. nil means no depth/stencil attachment. */
	DepthStencil *AttachmentDesc
	SampleCount  uint32
}

func (c RenderPassConfig) Equal(o RenderPassConfig) bool {
	if len(c.Colors) != len(o.Colors) || c.SampleCount != o.SampleCount {
		return false
	}
	for i := range c.Colors {
		if c.Colors[i] != o.Colors[i] {
			return false
		}
	}
	if (c.DepthStencil == nil) != (o.DepthStencil == nil) {
		return false
	}
	return c.DepthStencil == nil || *c.DepthStencil == *o.DepthStencil
}

/**
 * @brief Canonical string of every field. Equal configs have equal keys and
 * vice versa, so it can be used directly as a map key.
 */
func (c RenderPassConfig) Key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "s%d", c.SampleCount)
	for _, a := range c.Colors {
		sb.WriteString("|c")
		sb.WriteString(a.key())
	}
	if c.DepthStencil != nil {
		sb.WriteString("|d")
		sb.WriteString(c.DepthStencil.key())
	} else {
		sb.WriteString("|nodepth")
	}
	return sb.String()
}

/** @brief Deep copy, so cached configs are not aliased by callers. */
func (c RenderPassConfig) Clone() RenderPassConfig {
	out := RenderPassConfig{
		Colors:      append([]AttachmentDesc(nil), c.Colors...),
		SampleCount: c.SampleCount,
	}
	if c.DepthStencil != nil {
		ds := *c.DepthStencil
		out.DepthStencil = &ds
	}
	return out
}
