package metadata

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
)

type PrimitiveTopology uint8

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList
	PrimitiveTopologyLineStrip
	PrimitiveTopologyPointList
)

type PolygonMode uint8

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
	PolygonModePoint
)

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
	CullModeFrontAndBack
)

type FrontFace uint8

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

type BlendFactor uint8

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcColor
	BlendFactorOneMinusSrcColor
	BlendFactorDstColor
	BlendFactorOneMinusDstColor
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
)

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

type CompareOp uint8

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

type StencilOp uint8

const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpReplace
	StencilOpIncrementAndClamp
	StencilOpDecrementAndClamp
	StencilOpInvert
	StencilOpIncrementAndWrap
	StencilOpDecrementAndWrap
)

type ColorWriteMask uint8

const (
	ColorWriteR ColorWriteMask = 1 << iota
	ColorWriteG
	ColorWriteB
	ColorWriteA

	ColorWriteAll = ColorWriteR | ColorWriteG | ColorWriteB | ColorWriteA
)

type BlendParams struct {
	SrcColorBlendFactor BlendFactor
	DstColorBlendFactor BlendFactor
	ColorBlendOp        BlendOp
	SrcAlphaBlendFactor BlendFactor
	DstAlphaBlendFactor BlendFactor
	AlphaBlendOp        BlendOp
}

type StencilFaceParams struct {
	FailOp      StencilOp
	DepthFailOp StencilOp
	PassOp      StencilOp
	CompareOp   CompareOp
}

type StencilParams struct {
	ReadMask  uint32
	WriteMask uint32
	Front     StencilFaceParams
	Back      StencilFaceParams
	Reference uint32
}

// PipelineState is the fixed function part of a graphics pipeline. It is a
// plain value; Hash covers every field.
type PipelineState struct {
	Topology             PrimitiveTopology
	PolygonMode          PolygonMode
	BlendEnable          bool
	Blend                BlendParams
	ColorWriteMask       ColorWriteMask
	CullMode             CullMode
	FrontFace            FrontFace
	LineWidth            float32
	DepthTestEnable      bool
	DepthWriteEnable     bool
	DepthFunc            CompareOp
	StencilEnable        bool
	Stencil              StencilParams
	SampleCount          uint32
	ColorAttachmentCount uint32
}

// DefaultPipelineState is opaque triangles, back face culling, no depth.
func DefaultPipelineState() PipelineState {
	return PipelineState{
		Topology:    PrimitiveTopologyTriangleList,
		PolygonMode: PolygonModeFill,
		Blend: BlendParams{
			SrcColorBlendFactor: BlendFactorSrcAlpha,
			DstColorBlendFactor: BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        BlendOpAdd,
			SrcAlphaBlendFactor: BlendFactorSrcAlpha,
			DstAlphaBlendFactor: BlendFactorOneMinusSrcAlpha,
			AlphaBlendOp:        BlendOpAdd,
		},
		ColorWriteMask: ColorWriteAll,
		CullMode:       CullModeBack,
		FrontFace:      FrontFaceCounterClockwise,
		LineWidth:      1.0,
		DepthFunc:      CompareOpLessOrEqual,
		Stencil: StencilParams{
			ReadMask:  0xff,
			WriteMask: 0xff,
			Front:     StencilFaceParams{CompareOp: CompareOpAlways},
			Back:      StencilFaceParams{CompareOp: CompareOpAlways},
		},
		SampleCount:          1,
		ColorAttachmentCount: 1,
	}
}

type hashWriter struct {
	buf [4]byte
	h   hash.Hash64
}

func (w *hashWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:], v)
	w.h.Write(w.buf[:])
}

func (w *hashWriter) u8(v uint8) { w.u32(uint32(v)) }

func (w *hashWriter) flag(b bool) {
	if b {
		w.u32(1)
	} else {
		w.u32(0)
	}
}

// Hash combines every field into a 64 bit FNV-1a digest.
func (s PipelineState) Hash() uint64 {
	h := fnv.New64a()
	w := &hashWriter{h: h}
	w.u8(uint8(s.Topology))
	w.u8(uint8(s.PolygonMode))
	w.flag(s.BlendEnable)
	w.u8(uint8(s.Blend.SrcColorBlendFactor))
	w.u8(uint8(s.Blend.DstColorBlendFactor))
	w.u8(uint8(s.Blend.ColorBlendOp))
	w.u8(uint8(s.Blend.SrcAlphaBlendFactor))
	w.u8(uint8(s.Blend.DstAlphaBlendFactor))
	w.u8(uint8(s.Blend.AlphaBlendOp))
	w.u8(uint8(s.ColorWriteMask))
	w.u8(uint8(s.CullMode))
	w.u8(uint8(s.FrontFace))
	w.u32(math.Float32bits(s.LineWidth))
	w.flag(s.DepthTestEnable)
	w.flag(s.DepthWriteEnable)
	w.u8(uint8(s.DepthFunc))
	w.flag(s.StencilEnable)
	w.u32(s.Stencil.ReadMask)
	w.u32(s.Stencil.WriteMask)
	for _, f := range []StencilFaceParams{s.Stencil.Front, s.Stencil.Back} {
		w.u8(uint8(f.FailOp))
		w.u8(uint8(f.DepthFailOp))
		w.u8(uint8(f.PassOp))
		w.u8(uint8(f.CompareOp))
	}
	w.u32(s.Stencil.Reference)
	w.u32(s.SampleCount)
	w.u32(s.ColorAttachmentCount)
	return h.Sum64()
}
