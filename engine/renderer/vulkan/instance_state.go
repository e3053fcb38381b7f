package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

// uniformBlockState keeps the host copy of one uniform block and which
// swapchain images still hold a stale copy of it on the GPU.
type uniformBlockState struct {
	data  []byte
	dirty []bool
	// Descriptor writes are needed once per image, the buffer range never moves.
	descriptorWritten []bool
}

func newUniformBlockState(size uint64, imageCount int) *uniformBlockState {
	s := &uniformBlockState{
		data:              make([]byte, size),
		dirty:             make([]bool, imageCount),
		descriptorWritten: make([]bool, imageCount),
	}
	s.MarkAll()
	return s
}

// Set copies value at offset and marks every image dirty.
func (s *uniformBlockState) Set(offset uint64, value []byte) {
	copy(s.data[offset:], value)
	s.MarkAll()
}

func (s *uniformBlockState) MarkAll() {
	for i := range s.dirty {
		s.dirty[i] = true
	}
}

// Update runs upload for image only if that image is dirty, then clears the
// flag for that image alone.
func (s *uniformBlockState) Update(image uint32, upload func(data []byte) error) (bool, error) {
	if !s.dirty[image] {
		return false, nil
	}
	if err := upload(s.data); err != nil {
		return false, err
	}
	s.dirty[image] = false
	return true, nil
}

// instanceState is the per-instance bookkeeping of a shader.
type instanceState struct {
	ID metadata.InstanceID
	// Byte offset of this instance's slot inside one image's instance region.
	Offset uint64

	// One set per swapchain image.
	DescriptorSets []vk.DescriptorSet

	ubo *uniformBlockState
	// One flag per sampler and image.
	samplerDirty [][]bool
	TextureMaps  []*metadata.TextureMap
}

func newInstanceState(id metadata.InstanceID, offset, uboSize uint64, imageCount int, maps []*metadata.TextureMap) *instanceState {
	s := &instanceState{
		ID:          id,
		Offset:      offset,
		ubo:         newUniformBlockState(uboSize, imageCount),
		TextureMaps: append([]*metadata.TextureMap(nil), maps...),
	}
	s.samplerDirty = make([][]bool, len(maps))
	for i := range s.samplerDirty {
		s.samplerDirty[i] = make([]bool, imageCount)
	}
	s.MarkAll()
	return s
}

// SetUbo writes value into the host copy of the instance block.
func (s *instanceState) SetUbo(offset uint64, value []byte) {
	s.ubo.Set(offset, value)
}

// SetSampler swaps the texture map at index and marks it dirty on every image.
func (s *instanceState) SetSampler(index int, textureMap *metadata.TextureMap) {
	s.TextureMaps[index] = textureMap
	for i := range s.samplerDirty[index] {
		s.samplerDirty[index][i] = true
	}
}

func (s *instanceState) MarkAll() {
	s.ubo.MarkAll()
	for _, flags := range s.samplerDirty {
		for i := range flags {
			flags[i] = true
		}
	}
}

// UpdateUbo uploads the block for image if it changed since that image was
// last updated.
func (s *instanceState) UpdateUbo(image uint32, upload func(data []byte) error) (bool, error) {
	return s.ubo.Update(image, upload)
}

// DirtySamplers returns the sampler indices that must be rewritten for image
// and clears their flags.
func (s *instanceState) DirtySamplers(image uint32) []int {
	var dirty []int
	for index, flags := range s.samplerDirty {
		if flags[image] {
			dirty = append(dirty, index)
			flags[image] = false
		}
	}
	return dirty
}
