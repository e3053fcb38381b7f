package vulkan

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/math"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

func TestRenderpassLayouts(t *testing.T) {
	tests := []struct {
		prev, next     bool
		initial, final vk.ImageLayout
	}{
		{false, false, vk.ImageLayoutUndefined, vk.ImageLayoutPresentSrc},
		{true, false, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc},
		{false, true, vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal},
		{true, true, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutColorAttachmentOptimal},
	}
	for _, tc := range tests {
		initial, final := renderpassLayouts(tc.prev, tc.next)
		if initial != tc.initial || final != tc.final {
			t.Fatalf("prev=%v next=%v: got (%d, %d)", tc.prev, tc.next, initial, final)
		}
	}
}

func TestRenderpassClearValues(t *testing.T) {
	colour := mgl32.Vec4{0, 0, 0.2, 1}
	tests := []struct {
		name  string
		flags metadata.RenderpassClearFlag
		want  int
	}{
		{"none", metadata.RENDERPASS_CLEAR_NONE_FLAG, 0},
		{"colour", metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, 1},
		{"depth keeps the colour slot", metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG, 2},
		{"all", metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG | metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG | metadata.RENDERPASS_CLEAR_STENCIL_BUFFER_FLAG, 2},
		{"stencil alone clears nothing", metadata.RENDERPASS_CLEAR_STENCIL_BUFFER_FLAG, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(renderpassClearValues(tc.flags, colour, 1, 0)); got != tc.want {
				t.Fatalf("expected %d clear values, got %d", tc.want, got)
			}
		})
	}
}

func TestRenderpassResize(t *testing.T) {
	follows := &VulkanRenderpass{RenderArea: mgl32.Vec4{0, 0, 0, 0}, followsFramebuffer: true}
	follows.Resize(1280, 720)
	if follows.RenderArea[2] != 1280 || follows.RenderArea[3] != 720 {
		t.Fatalf("render area not resized: %v", follows.RenderArea)
	}

	fixed := &VulkanRenderpass{RenderArea: mgl32.Vec4{0, 0, 256, 256}}
	fixed.Resize(1280, 720)
	if fixed.RenderArea[2] != 256 || fixed.RenderArea[3] != 256 {
		t.Fatalf("fixed render area changed: %v", fixed.RenderArea)
	}
}

func TestImageLayoutTransition(t *testing.T) {
	upload, err := imageLayoutTransition(vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	if err != nil {
		t.Fatal(err)
	}
	if upload.srcAccess != 0 || upload.dstAccess != vk.AccessFlags(vk.AccessTransferWriteBit) {
		t.Fatalf("unexpected access masks %+v", upload)
	}
	if upload.dstStage != vk.PipelineStageFlags(vk.PipelineStageTransferBit) {
		t.Fatalf("unexpected destination stage %+v", upload)
	}

	sample, err := imageLayoutTransition(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		t.Fatal(err)
	}
	if sample.dstAccess != vk.AccessFlags(vk.AccessShaderReadBit) || sample.dstStage != vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit) {
		t.Fatalf("unexpected sample transition %+v", sample)
	}

	if _, err := imageLayoutTransition(vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutTransferDstOptimal); err == nil {
		t.Fatal("expected an unsupported transition error")
	}
}

func TestCullModeFlags(t *testing.T) {
	tests := map[metadata.FaceCullMode]vk.CullModeFlags{
		metadata.FaceCullModeNone:         vk.CullModeFlags(vk.CullModeNone),
		metadata.FaceCullModeFront:        vk.CullModeFlags(vk.CullModeFrontBit),
		metadata.FaceCullModeBack:         vk.CullModeFlags(vk.CullModeBackBit),
		metadata.FaceCullModeFrontAndBack: vk.CullModeFlags(vk.CullModeFrontAndBack),
	}
	for mode, want := range tests {
		if got := cullModeFlags(mode); got != want {
			t.Fatalf("mode %d: expected %d, got %d", mode, want, got)
		}
	}
}

func TestPushConstantRanges(t *testing.T) {
	ranges, err := pushConstantRanges([]math.MemoryRange{{Offset: 0, Size: 64}, {Offset: 64, Size: 16}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranges) != 2 || ranges[1].Offset != 64 || ranges[1].Size != 16 {
		t.Fatalf("unexpected ranges %+v", ranges)
	}
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	if ranges[0].StageFlags != stages {
		t.Fatalf("ranges must be visible to vertex and fragment stages")
	}

	if _, err := pushConstantRanges(make([]math.MemoryRange, metadata.MAX_PUSH_CONSTANT_RANGES+1)); err == nil {
		t.Fatal("expected too many ranges to fail")
	}
}
