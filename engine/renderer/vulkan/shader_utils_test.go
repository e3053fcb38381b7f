package vulkan

import (
	"reflect"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

func TestVertexAttributes(t *testing.T) {
	descriptions, stride, err := vertexAttributes([]metadata.ShaderAttribute{
		{Name: "in_position", ShaderAttributeType: metadata.ShaderAttribTypeFloat32_3},
		{Name: "in_normal", ShaderAttributeType: metadata.ShaderAttribTypeFloat32_3},
		{Name: "in_texcoord", ShaderAttributeType: metadata.ShaderAttribTypeFloat32_2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if stride != metadata.Vertex3DSize {
		t.Fatalf("expected a stride of %d, got %d", metadata.Vertex3DSize, stride)
	}
	wantOffsets := []uint32{0, 12, 24}
	wantFormats := []vk.Format{vk.FormatR32g32b32Sfloat, vk.FormatR32g32b32Sfloat, vk.FormatR32g32Sfloat}
	for i, d := range descriptions {
		if d.Location != uint32(i) || d.Binding != 0 || d.Offset != wantOffsets[i] || d.Format != wantFormats[i] {
			t.Fatalf("attribute %d: unexpected description %+v", i, d)
		}
	}

	if _, _, err := vertexAttributes([]metadata.ShaderAttribute{{Name: "in_model", ShaderAttributeType: metadata.ShaderAttribTypeMatrix4}}); err == nil {
		t.Fatal("mat4 has no vertex format")
	}
}

func TestAttributeFormat(t *testing.T) {
	tests := map[metadata.ShaderAttributeType]vk.Format{
		metadata.ShaderAttribTypeFloat32:   vk.FormatR32Sfloat,
		metadata.ShaderAttribTypeFloat32_4: vk.FormatR32g32b32a32Sfloat,
		metadata.ShaderAttribTypeInt8:      vk.FormatR8Sint,
		metadata.ShaderAttribTypeUint16:    vk.FormatR16Uint,
		metadata.ShaderAttribTypeInt32:     vk.FormatR32Sint,
	}
	for attribute, want := range tests {
		got, err := attributeFormat(attribute)
		if err != nil || got != want {
			t.Fatalf("type %d: expected %d, got %d (%v)", attribute, want, got, err)
		}
	}
}

func TestDescriptorPoolSizes(t *testing.T) {
	sets := []metadata.DescriptorSetConfig{
		{
			Scope: metadata.ShaderScopeGlobal,
			Bindings: []metadata.DescriptorBindingConfig{
				{Binding: 0, Type: metadata.DESCRIPTOR_BINDING_UNIFORM_BUFFER, Count: 1},
			},
		},
		{
			Scope: metadata.ShaderScopeInstance,
			Bindings: []metadata.DescriptorBindingConfig{
				{Binding: 0, Type: metadata.DESCRIPTOR_BINDING_UNIFORM_BUFFER, Count: 1},
				{Binding: 1, Type: metadata.DESCRIPTOR_BINDING_COMBINED_IMAGE_SAMPLER, Count: 2},
			},
		},
	}

	sizes, maxSets := descriptorPoolSizes(sets, 3, 10)
	if maxSets != 3+30 {
		t.Fatalf("expected 33 sets, got %d", maxSets)
	}
	want := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 3 + 30},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 60},
	}
	if !reflect.DeepEqual(sizes, want) {
		t.Fatalf("expected %+v, got %+v", want, sizes)
	}

	// A global-only shader needs no sampler pool.
	sizes, maxSets = descriptorPoolSizes(sets[:1], 2, 1024)
	if maxSets != 2 || len(sizes) != 1 || sizes[0].DescriptorCount != 2 {
		t.Fatalf("unexpected global-only pool %+v (%d sets)", sizes, maxSets)
	}

	if sizes, maxSets = descriptorPoolSizes(nil, 3, 10); len(sizes) != 0 || maxSets != 0 {
		t.Fatalf("expected an empty pool, got %+v (%d sets)", sizes, maxSets)
	}
}

func TestDescriptorType(t *testing.T) {
	if descriptorType(metadata.DESCRIPTOR_BINDING_UNIFORM_BUFFER) != vk.DescriptorTypeUniformBuffer {
		t.Fatal("uniform buffer binding mapped wrong")
	}
	if descriptorType(metadata.DESCRIPTOR_BINDING_COMBINED_IMAGE_SAMPLER) != vk.DescriptorTypeCombinedImageSampler {
		t.Fatal("sampler binding mapped wrong")
	}
}

func TestInstanceRegionOffset(t *testing.T) {
	tests := []struct {
		image, slot, capacity uint32
		stride                uint64
		want                  uint64
	}{
		{0, 0, 1024, 256, 0},
		{0, 5, 1024, 256, 5 * 256},
		{1, 0, 1024, 256, 1024 * 256},
		{2, 3, 4, 64, (2*4 + 3) * 64},
	}
	for _, tc := range tests {
		if got := instanceRegionOffset(tc.image, tc.slot, tc.capacity, tc.stride); got != tc.want {
			t.Fatalf("image=%d slot=%d: expected %d, got %d", tc.image, tc.slot, tc.want, got)
		}
	}
	// Regions never overlap between images.
	lastOfFirst := instanceRegionOffset(0, 3, 4, 64)
	firstOfSecond := instanceRegionOffset(1, 0, 4, 64)
	if lastOfFirst+64 != firstOfSecond {
		t.Fatalf("regions overlap or leave a gap: %d + 64 != %d", lastOfFirst, firstOfSecond)
	}
}

func TestShaderStageFlagBits(t *testing.T) {
	if flag, err := shaderStageFlagBits(metadata.ShaderStageFragment); err != nil || flag != vk.ShaderStageFragmentBit {
		t.Fatalf("unexpected fragment flag %d (%v)", flag, err)
	}
	if _, err := shaderStageFlagBits(metadata.ShaderStage(0x80)); err == nil {
		t.Fatal("expected an unknown stage error")
	}
}

func TestBytesToUint32(t *testing.T) {
	words := BytesToUint32([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	// SPIR-V magic, little endian.
	if len(words) != 2 || words[0] != 0x07230203 || words[1] != 1 {
		t.Fatalf("unexpected words %#x", words)
	}
	if BytesToUint32(nil) != nil {
		t.Fatal("expected nil for empty code")
	}
}
