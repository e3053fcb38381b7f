package vulkan

import (
	stdmath "math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat       vk.SurfaceFormat
	PresentMode       vk.PresentMode
	Extent            vk.Extent2D
	MaxFramesInFlight uint8
	Handle            vk.Swapchain
	ImageCount        uint32
	Images            []vk.Image
	Views             []vk.ImageView

	// One depth image per swapchain image.
	DepthAttachments []*VulkanImage

	// framebuffers used for on-screen rendering.
	Framebuffers []*VulkanFramebuffer

	// Set when acquire or present reported the surface changed.
	OutOfDate bool

	renderpass *VulkanRenderpass
	driver     swapchainDriver
}

// SwapchainInfo is the resolved configuration a swapchain is created with.
type SwapchainInfo struct {
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  uint32
}

// QuerySwapchainInfo resolves format, present mode, extent and image count
// from what the surface supports.
func QuerySwapchainInfo(support VulkanSwapchainSupportInfo, windowWidth, windowHeight, desiredImageCount uint32, vsync bool) (SwapchainInfo, error) {
	info := SwapchainInfo{}
	if len(support.Formats) == 0 {
		return info, errors.New("surface reports no formats")
	}

	// Choose a swap surface format.
	info.Format = support.Formats[0]
	for _, format := range support.Formats {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			info.Format = format
			break
		}
	}

	// FIFO is the only mode that is guaranteed to be available.
	info.PresentMode = vk.PresentModeFifo
	if !vsync {
		for _, mode := range support.PresentModes {
			if mode == vk.PresentModeMailbox {
				info.PresentMode = mode
				break
			}
		}
	}

	// Swapchain extent
	capabilities := support.Capabilities
	if capabilities.CurrentExtent.Width != stdmath.MaxUint32 {
		info.Extent = capabilities.CurrentExtent
	} else {
		// Clamp to the value allowed by the GPU.
		info.Extent = vk.Extent2D{
			Width:  math.Clamp(windowWidth, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
			Height: math.Clamp(windowHeight, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
		}
	}

	info.ImageCount = desiredImageCount
	if info.ImageCount < capabilities.MinImageCount {
		info.ImageCount = capabilities.MinImageCount
	}
	// A max of zero means there is no limit.
	if capabilities.MaxImageCount > 0 && info.ImageCount > capabilities.MaxImageCount {
		info.ImageCount = capabilities.MaxImageCount
	}
	return info, nil
}

// framesInFlight keeps one image free for the presentation engine.
func framesInFlight(imageCount uint32) uint8 {
	if imageCount <= 1 {
		return 1
	}
	return uint8(imageCount - 1)
}

func SwapchainCreate(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	return newSwapchain(context, &vulkanSwapchainDriver{context: context}, width, height)
}

func newSwapchain(context *VulkanContext, driver swapchainDriver, width, height uint32) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{driver: driver}
	if err := swapchain.create(context, width, height); err != nil {
		swapchain.destroy()
		return nil, err
	}
	return swapchain, nil
}

func (vs *VulkanSwapchain) create(context *VulkanContext, width, height uint32) error {
	support, err := vs.driver.QuerySupport()
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	info, err := QuerySwapchainInfo(support, width, height, support.Capabilities.MinImageCount+1, context.VSync)
	if err != nil {
		core.LogError("%s", err)
		return err
	}

	handle, images, err := vs.driver.CreateSwapchain(support, info)
	if err != nil {
		return err
	}
	vs.Handle = handle
	vs.Images = images
	vs.ImageCount = uint32(len(images))
	vs.ImageFormat = info.Format
	vs.PresentMode = info.PresentMode
	vs.Extent = info.Extent
	vs.MaxFramesInFlight = framesInFlight(vs.ImageCount)
	vs.OutOfDate = false

	// Start with a zero frame index.
	context.CurrentFrame = 0

	// Views
	vs.Views = make([]vk.ImageView, 0, vs.ImageCount)
	for _, image := range vs.Images {
		view, err := vs.driver.CreateImageView(image, vs.ImageFormat.Format)
		if err != nil {
			return err
		}
		vs.Views = append(vs.Views, view)
	}

	// Depth resources
	depthFormat, err := vs.driver.DetectDepthFormat()
	if err != nil {
		err = errors.Wrap(err, "failed to find a supported depth format")
		core.LogError("%s", err)
		return err
	}
	vs.DepthAttachments = make([]*VulkanImage, 0, vs.ImageCount)
	for range vs.Images {
		depth, err := vs.driver.CreateDepthAttachment(vs.Extent.Width, vs.Extent.Height, depthFormat)
		if err != nil {
			return err
		}
		vs.DepthAttachments = append(vs.DepthAttachments, depth)
	}

	if vs.renderpass != nil {
		if err := vs.RegenerateFramebuffers(vs.renderpass); err != nil {
			return err
		}
	}

	core.LogInfo("Swapchain created successfully with %d images (%dx%d).", vs.ImageCount, vs.Extent.Width, vs.Extent.Height)
	return nil
}

// RegenerateFramebuffers creates one framebuffer per image against pass, and
// remembers pass so a recreate rebuilds them.
func (vs *VulkanSwapchain) RegenerateFramebuffers(pass *VulkanRenderpass) error {
	vs.destroyFramebuffers()
	vs.renderpass = pass
	vs.Framebuffers = make([]*VulkanFramebuffer, 0, vs.ImageCount)
	for i := range vs.Views {
		attachments := []vk.ImageView{vs.Views[i]}
		if pass.HasDepth() {
			attachments = append(attachments, vs.DepthAttachments[i].View)
		}
		framebuffer, err := vs.driver.CreateFramebuffer(pass, vs.Extent.Width, vs.Extent.Height, attachments)
		if err != nil {
			return err
		}
		vs.Framebuffers = append(vs.Framebuffers, framebuffer)
	}
	return nil
}

// Recreate waits for the device to idle, then rebuilds the swapchain and its
// dependent resources wholesale.
func (vs *VulkanSwapchain) Recreate(context *VulkanContext, width, height uint32) error {
	if err := vs.driver.WaitIdle(); err != nil {
		return err
	}
	vs.destroy()
	if err := vs.create(context, width, height); err != nil {
		vs.destroy()
		return err
	}
	return nil
}

func (vs *VulkanSwapchain) Destroy() {
	if err := vs.driver.WaitIdle(); err != nil {
		core.LogWarn("%s", err)
	}
	vs.destroy()
	vs.renderpass = nil
}

func (vs *VulkanSwapchain) destroyFramebuffers() {
	for _, framebuffer := range vs.Framebuffers {
		vs.driver.DestroyFramebuffer(framebuffer)
	}
	vs.Framebuffers = nil
}

func (vs *VulkanSwapchain) destroy() {
	vs.destroyFramebuffers()
	for _, depth := range vs.DepthAttachments {
		vs.driver.DestroyDepthAttachment(depth)
	}
	vs.DepthAttachments = nil

	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for _, view := range vs.Views {
		vs.driver.DestroyImageView(view)
	}
	vs.Views = nil
	vs.Images = nil
	vs.ImageCount = 0

	if vs.Handle != vk.NullSwapchain {
		vs.driver.DestroySwapchain(vs.Handle)
		vs.Handle = vk.NullSwapchain
	}
}

func (vs *VulkanSwapchain) AcquireNextImageIndex(timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, error) {
	index, result := vs.driver.AcquireNextImage(vs.Handle, timeoutNS, imageAvailableSemaphore, fence)
	switch result {
	case vk.Success, vk.Suboptimal:
		return index, nil
	case vk.ErrorOutOfDate:
		// Trigger swapchain recreation, then boot out of the render loop.
		vs.OutOfDate = true
		return 0, core.ErrSwapchainOutOfDate
	}
	err := errors.Wrapf(core.ErrSwapchainAcquire, "%s", VulkanResultString(result, true))
	core.LogError("%s", err)
	return 0, err
}

func (vs *VulkanSwapchain) Present(context *VulkanContext, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) error {
	// Return the image to the swapchain for presentation.
	result := vs.driver.Present(presentQueue, vs.Handle, renderCompleteSemaphore, presentImageIndex)
	switch result {
	case vk.Success:
		// Increment (and loop) the index.
		context.CurrentFrame = (context.CurrentFrame + 1) % uint32(vs.MaxFramesInFlight)
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		// Swapchain is out of date, suboptimal or a framebuffer resize has occurred. Trigger swapchain recreation.
		vs.OutOfDate = true
		return core.ErrSwapchainOutOfDate
	}
	err := errors.Wrapf(core.ErrSwapchainPresent, "%s", VulkanResultString(result, true))
	core.LogError("%s", err)
	return err
}
