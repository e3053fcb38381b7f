package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
)

// swapchainDriver is the set of device calls a swapchain needs to build,
// present and tear itself down.
type swapchainDriver interface {
	QuerySupport() (VulkanSwapchainSupportInfo, error)
	DetectDepthFormat() (vk.Format, error)
	CreateSwapchain(support VulkanSwapchainSupportInfo, info SwapchainInfo) (vk.Swapchain, []vk.Image, error)
	CreateImageView(image vk.Image, format vk.Format) (vk.ImageView, error)
	CreateDepthAttachment(width, height uint32, format vk.Format) (*VulkanImage, error)
	CreateFramebuffer(pass *VulkanRenderpass, width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error)
	DestroyFramebuffer(framebuffer *VulkanFramebuffer)
	DestroyDepthAttachment(image *VulkanImage)
	DestroyImageView(view vk.ImageView)
	DestroySwapchain(handle vk.Swapchain)
	WaitIdle() error
	AcquireNextImage(handle vk.Swapchain, timeoutNS uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result)
	Present(queue vk.Queue, handle vk.Swapchain, semaphore vk.Semaphore, index uint32) vk.Result
}

type vulkanSwapchainDriver struct {
	context *VulkanContext
}

func (d *vulkanSwapchainDriver) QuerySupport() (VulkanSwapchainSupportInfo, error) {
	support, err := DeviceQuerySwapchainSupport(d.context.Device.PhysicalDevice, d.context.Surface)
	if err != nil {
		return support, err
	}
	d.context.Device.SwapchainSupport = support
	return support, nil
}

func (d *vulkanSwapchainDriver) DetectDepthFormat() (vk.Format, error) {
	if err := DeviceDetectDepthFormat(d.context.Device); err != nil {
		return vk.FormatUndefined, err
	}
	return d.context.Device.DepthFormat, nil
}

func (d *vulkanSwapchainDriver) CreateSwapchain(support VulkanSwapchainSupportInfo, info SwapchainInfo) (vk.Swapchain, []vk.Image, error) {
	device := d.context.Device

	// Swapchain create info
	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    info.ImageCount,
		ImageFormat:      info.Format.Format,
		ImageColorSpace:  info.Format.ColorSpace,
		ImageExtent:      info.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      info.PresentMode,
		Clipped:          vk.True,
	}

	// Setup the queue family indices
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, d.context.Allocator, &handle); res != vk.Success {
		err := vulkanError(res, "failed to create swapchain")
		core.LogError("%s", err)
		return vk.NullSwapchain, nil, err
	}

	// Images
	var imageCount uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, handle, &imageCount, nil); res != vk.Success {
		vk.DestroySwapchain(device.LogicalDevice, handle, d.context.Allocator)
		err := vulkanError(res, "failed to get swapchain images")
		core.LogError("%s", err)
		return vk.NullSwapchain, nil, err
	}
	images := make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, handle, &imageCount, images); res != vk.Success {
		vk.DestroySwapchain(device.LogicalDevice, handle, d.context.Allocator)
		err := vulkanError(res, "failed to get swapchain images")
		core.LogError("%s", err)
		return vk.NullSwapchain, nil, err
	}
	return handle, images, nil
}

func (d *vulkanSwapchainDriver) CreateImageView(image vk.Image, format vk.Format) (vk.ImageView, error) {
	return ImageViewCreate(d.context, format, image, vk.ImageAspectFlags(vk.ImageAspectColorBit))
}

func (d *vulkanSwapchainDriver) CreateDepthAttachment(width, height uint32, format vk.Format) (*VulkanImage, error) {
	return ImageCreate(
		d.context,
		vk.ImageType2d,
		width,
		height,
		format,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
}

func (d *vulkanSwapchainDriver) CreateFramebuffer(pass *VulkanRenderpass, width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	return FramebufferCreate(d.context, pass, width, height, attachments)
}

func (d *vulkanSwapchainDriver) DestroyFramebuffer(framebuffer *VulkanFramebuffer) {
	framebuffer.Destroy(d.context)
}

func (d *vulkanSwapchainDriver) DestroyDepthAttachment(image *VulkanImage) {
	image.Destroy(d.context)
}

func (d *vulkanSwapchainDriver) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.context.Device.LogicalDevice, view, d.context.Allocator)
}

func (d *vulkanSwapchainDriver) DestroySwapchain(handle vk.Swapchain) {
	vk.DestroySwapchain(d.context.Device.LogicalDevice, handle, d.context.Allocator)
}

func (d *vulkanSwapchainDriver) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.context.Device.LogicalDevice); res != vk.Success {
		err := vulkanError(res, "failed to wait for device idle")
		core.LogError("%s", err)
		return err
	}
	return nil
}

func (d *vulkanSwapchainDriver) AcquireNextImage(handle vk.Swapchain, timeoutNS uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	var index uint32
	result := vk.AcquireNextImage(d.context.Device.LogicalDevice, handle, timeoutNS, semaphore, fence, &index)
	return index, result
}

func (d *vulkanSwapchainDriver) Present(queue vk.Queue, handle vk.Swapchain, semaphore vk.Semaphore, index uint32) vk.Result {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{handle},
		PImageIndices:      []uint32{index},
	}
	return vk.QueuePresent(queue, &presentInfo)
}
