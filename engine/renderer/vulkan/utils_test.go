package vulkan

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

func TestVulkanResultString(t *testing.T) {
	if got := VulkanResultString(vk.ErrorOutOfDate, false); got != "VK_ERROR_OUT_OF_DATE_KHR" {
		t.Fatalf("got %q", got)
	}
	want := "VK_TIMEOUT A wait operation has not completed in the specified time"
	if got := VulkanResultString(vk.Timeout, true); got != want {
		t.Fatalf("got %q", got)
	}
	if got := VulkanResultString(vk.Result(-12345), true); got != "VK_RESULT_UNRECOGNIZED" {
		t.Fatalf("got %q", got)
	}
}

func TestVulkanResultIsSuccess(t *testing.T) {
	for _, res := range []vk.Result{vk.Success, vk.Suboptimal, vk.Timeout, vk.NotReady} {
		if !VulkanResultIsSuccess(res) {
			t.Fatalf("%s should be a success code", VulkanResultString(res, false))
		}
	}
	for _, res := range []vk.Result{vk.ErrorDeviceLost, vk.ErrorOutOfDate, vk.ErrorUnknown} {
		if VulkanResultIsSuccess(res) {
			t.Fatalf("%s should be an error code", VulkanResultString(res, false))
		}
	}
}

func TestVulkanError(t *testing.T) {
	tests := []struct {
		result vk.Result
		want   error
	}{
		{vk.ErrorOutOfDate, core.ErrSwapchainOutOfDate},
		{vk.ErrorDeviceLost, core.ErrDeviceLost},
		{vk.ErrorOutOfHostMemory, core.ErrOutOfMemory},
		{vk.ErrorOutOfDeviceMemory, core.ErrOutOfMemory},
		{vk.Timeout, core.ErrFenceTimeout},
		{vk.ErrorLayerNotPresent, core.ErrUnknown},
	}
	for _, tc := range tests {
		err := vulkanError(tc.result, "creating %s", "thing")
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", VulkanResultString(tc.result, false), tc.want, err)
		}
	}
	err := vulkanError(vk.ErrorDeviceLost, "failed to create %s", "fence")
	if want := "failed to create fence: VK_ERROR_DEVICE_LOST The logical or physical device has been lost.: " + core.ErrDeviceLost.Error(); err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestVulkanSafeString(t *testing.T) {
	tests := map[string]string{
		"":         "\x00",
		"main":     "main\x00",
		"main\x00": "main\x00",
	}
	for in, want := range tests {
		if got := VulkanSafeString(in); got != want {
			t.Fatalf("VulkanSafeString(%q) = %q, want %q", in, got, want)
		}
	}
	got := VulkanSafeStrings([]string{"a", "b\x00"})
	if !reflect.DeepEqual(got, []string{"a\x00", "b\x00"}) {
		t.Fatalf("got %q", got)
	}
}

func TestFreeGeometrySlot(t *testing.T) {
	slots := make([]VulkanGeometryData, 3)
	if slot, ok := freeGeometrySlot(slots); !ok || slot != 0 {
		t.Fatalf("expected slot 0, got %d (%v)", slot, ok)
	}
	slots[0].InUse = true
	slots[2].InUse = true
	if slot, ok := freeGeometrySlot(slots); !ok || slot != 1 {
		t.Fatalf("expected slot 1, got %d (%v)", slot, ok)
	}
	slots[1].InUse = true
	if _, ok := freeGeometrySlot(slots); ok {
		t.Fatal("expected no free slot")
	}
}

func TestDrawGeometryRejectsUnknownGeometry(t *testing.T) {
	context := &VulkanContext{}
	if err := DrawGeometry(context, &metadata.GeometryRenderData{}); err == nil {
		t.Fatal("expected an error without a geometry")
	}
	geometry := &metadata.Geometry{Name: "cube", InternalID: metadata.InvalidID}
	if err := DrawGeometry(context, &metadata.GeometryRenderData{Geometry: geometry}); err == nil {
		t.Fatal("expected an error for a geometry that was never uploaded")
	}
	geometry.InternalID = 7
	if err := DrawGeometry(context, &metadata.GeometryRenderData{Geometry: geometry}); err == nil {
		t.Fatal("expected an error for a destroyed geometry")
	}
}

func TestDestroyGeometryWithoutUpload(t *testing.T) {
	geometry := &metadata.Geometry{InternalID: metadata.InvalidID}
	DestroyGeometry(&VulkanContext{}, geometry)
	if geometry.InternalID != metadata.InvalidID {
		t.Fatalf("internal id changed to %d", geometry.InternalID)
	}
}

func TestTextureFormat(t *testing.T) {
	for channels, want := range map[uint8]vk.Format{
		1: vk.FormatR8Unorm,
		2: vk.FormatR8g8Unorm,
		3: vk.FormatR8g8b8Unorm,
		4: vk.FormatR8g8b8a8Unorm,
	} {
		if got, err := textureFormat(channels); err != nil || got != want {
			t.Fatalf("%d channels: expected %d, got %d (%v)", channels, want, got, err)
		}
	}
	if _, err := textureFormat(5); err == nil {
		t.Fatal("expected an error for 5 channels")
	}
}

func TestSamplerModes(t *testing.T) {
	if samplerFilter(metadata.TextureFilterModeNearest) != vk.FilterNearest || samplerFilter(metadata.TextureFilterModeLinear) != vk.FilterLinear {
		t.Fatal("filter mapped wrong")
	}
	for repeat, want := range map[metadata.TextureRepeat]vk.SamplerAddressMode{
		metadata.TextureRepeatRepeat:         vk.SamplerAddressModeRepeat,
		metadata.TextureRepeatMirroredRepeat: vk.SamplerAddressModeMirroredRepeat,
		metadata.TextureRepeatClampToEdge:    vk.SamplerAddressModeClampToEdge,
		metadata.TextureRepeatClampToBorder:  vk.SamplerAddressModeClampToBorder,
	} {
		if got := samplerAddressMode(repeat); got != want {
			t.Fatalf("repeat %d: expected %d, got %d", repeat, want, got)
		}
	}
}

func TestTextureCreateRejectsShortPixels(t *testing.T) {
	texture := &metadata.Texture{Name: "short", Width: 2, Height: 2, ChannelCount: 4}
	if err := TextureCreate(&VulkanContext{}, make([]byte, 15), texture); err == nil {
		t.Fatal("expected a size mismatch error")
	}
	if texture.InternalData != nil || texture.Generation != 0 {
		t.Fatal("a failed upload must leave the texture untouched")
	}
}
