package renderer

import "github.com/spaghettifunk/gfxhal/engine/renderer/metadata"

// TextureState is the recorded state of every subresource of one texture,
// indexed by layer*mipLevels + mip.
type TextureState struct {
	mipLevels   uint32
	arrayLayers uint32
	states      []metadata.ResourceState
}

func NewTextureState(desc metadata.TextureDesc, initial metadata.ResourceState) *TextureState {
	desc = desc.Normalized()
	s := &TextureState{
		mipLevels:   desc.MipLevels,
		arrayLayers: desc.ArrayLayers,
		states:      make([]metadata.ResourceState, desc.SubresourceCount()),
	}
	for i := range s.states {
		s.states[i] = initial
	}
	return s
}

func (s *TextureState) MipLevels() uint32   { return s.mipLevels }
func (s *TextureState) ArrayLayers() uint32 { return s.arrayLayers }

func (s *TextureState) Get(mip, layer uint32) metadata.ResourceState {
	return s.states[metadata.SubresourceIndex(layer, mip, s.mipLevels)]
}

func (s *TextureState) Set(mip, layer uint32, state metadata.ResourceState) {
	s.states[metadata.SubresourceIndex(layer, mip, s.mipLevels)] = state
}

// Uniform reports the common state of every subresource in rng, if there is one.
func (s *TextureState) Uniform(rng metadata.SubresourceRange) (metadata.ResourceState, bool) {
	r, ok := rng.Resolve(s.mipLevels, s.arrayLayers)
	if !ok {
		return metadata.ResourceStateUndefined, false
	}
	first := s.Get(r.BaseMip, r.BaseLayer)
	for layer := r.BaseLayer; layer < r.BaseLayer+r.LayerCount; layer++ {
		for mip := r.BaseMip; mip < r.BaseMip+r.MipCount; mip++ {
			if s.Get(mip, layer) != first {
				return metadata.ResourceStateUndefined, false
			}
		}
	}
	return first, true
}

// BufferState is the recorded state of a whole buffer.
type BufferState struct {
	state metadata.ResourceState
}

func NewBufferState(initial metadata.ResourceState) *BufferState {
	return &BufferState{state: initial}
}

func (s *BufferState) Get() metadata.ResourceState     { return s.state }
func (s *BufferState) Set(state metadata.ResourceState) { s.state = state }
