package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match framebuffer_size_last_generation,
	// a new one should be generated.
	FramebufferSizeGeneration uint64
	// The generation of the framebuffer when it was last created. Set to framebuffer_size_generation
	// when updated.
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugCallback vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass
	// Every renderpass by name, the main one included.
	Renderpasses map[string]*VulkanRenderpass

	// One per swapchain image.
	GraphicsCommandBuffers []*VulkanCommandBuffer

	// One per frame in flight.
	ImageAvailableSemaphores []vk.Semaphore
	QueueCompleteSemaphores  []vk.Semaphore

	InFlightFenceCount uint32
	InFlightFences     []*VulkanFence

	// Holds pointers to fences which exist and are owned elsewhere.
	ImagesInFlight []*VulkanFence

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool

	// Nanoseconds to wait on frame fences and image acquisition.
	FrameTimeoutNS uint64
	VSync          bool

	Geometries [VULKAN_MAX_GEOMETRY_COUNT]VulkanGeometryData
}

// selectMemoryType returns the first memory type allowed by typeFilter whose
// property flags contain every bit of want.
func selectMemoryType(typeFilter uint32, types []vk.MemoryPropertyFlags, want vk.MemoryPropertyFlags) (uint32, bool) {
	for i, flags := range types {
		// Check each memory type to see if its bit is set to 1.
		if typeFilter&(1<<uint32(i)) != 0 && flags&want == want {
			return uint32(i), true
		}
	}
	return 0, false
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	types := make([]vk.MemoryPropertyFlags, memoryProperties.MemoryTypeCount)
	for i := range types {
		memoryProperties.MemoryTypes[i].Deref()
		types[i] = memoryProperties.MemoryTypes[i].PropertyFlags
	}

	index, ok := selectMemoryType(typeFilter, types, propertyFlags)
	if !ok {
		err := errors.Newf("unable to find a memory type for filter %#x with flags %#x", typeFilter, uint32(propertyFlags))
		core.LogWarn("%s", err)
		return 0, err
	}
	return index, nil
}
