package vulkan

import (
	stdmath "math"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

type fakeSwapchainDriver struct {
	support VulkanSwapchainSupportInfo
	// Images handed out by the next CreateSwapchain.
	imageCount int

	acquireResult vk.Result
	presentResult vk.Result

	views, depths, framebuffers int
	waits                       int
}

func (d *fakeSwapchainDriver) QuerySupport() (VulkanSwapchainSupportInfo, error) {
	return d.support, nil
}

func (d *fakeSwapchainDriver) DetectDepthFormat() (vk.Format, error) {
	return vk.FormatD32Sfloat, nil
}

func (d *fakeSwapchainDriver) CreateSwapchain(support VulkanSwapchainSupportInfo, info SwapchainInfo) (vk.Swapchain, []vk.Image, error) {
	n := d.imageCount
	if n == 0 {
		n = int(info.ImageCount)
	}
	return vk.NullSwapchain, make([]vk.Image, n), nil
}

func (d *fakeSwapchainDriver) CreateImageView(image vk.Image, format vk.Format) (vk.ImageView, error) {
	d.views++
	return vk.NullImageView, nil
}

func (d *fakeSwapchainDriver) CreateDepthAttachment(width, height uint32, format vk.Format) (*VulkanImage, error) {
	d.depths++
	return &VulkanImage{Width: width, Height: height}, nil
}

func (d *fakeSwapchainDriver) CreateFramebuffer(pass *VulkanRenderpass, width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	d.framebuffers++
	return &VulkanFramebuffer{Attachments: attachments, Renderpass: pass}, nil
}

func (d *fakeSwapchainDriver) DestroyFramebuffer(framebuffer *VulkanFramebuffer) { d.framebuffers-- }
func (d *fakeSwapchainDriver) DestroyDepthAttachment(image *VulkanImage)          { d.depths-- }
func (d *fakeSwapchainDriver) DestroyImageView(view vk.ImageView)                 { d.views-- }
func (d *fakeSwapchainDriver) DestroySwapchain(handle vk.Swapchain)               {}

func (d *fakeSwapchainDriver) WaitIdle() error {
	d.waits++
	return nil
}

func (d *fakeSwapchainDriver) AcquireNextImage(handle vk.Swapchain, timeoutNS uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	return 1, d.acquireResult
}

func (d *fakeSwapchainDriver) Present(queue vk.Queue, handle vk.Swapchain, semaphore vk.Semaphore, index uint32) vk.Result {
	return d.presentResult
}

func newFakeDriver() *fakeSwapchainDriver {
	return &fakeSwapchainDriver{
		support: VulkanSwapchainSupportInfo{
			Capabilities: vk.SurfaceCapabilities{
				CurrentExtent: vk.Extent2D{Width: 800, Height: 600},
				MinImageCount: 2,
			},
			Formats:      []vk.SurfaceFormat{{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}},
			PresentModes: []vk.PresentMode{vk.PresentModeFifo},
		},
	}
}

func checkSwapchainLengths(t *testing.T, sc *VulkanSwapchain) {
	t.Helper()
	n := int(sc.ImageCount)
	if len(sc.Images) != n || len(sc.Views) != n || len(sc.DepthAttachments) != n || len(sc.Framebuffers) != n {
		t.Fatalf("lengths diverged: count=%d images=%d views=%d depth=%d framebuffers=%d",
			n, len(sc.Images), len(sc.Views), len(sc.DepthAttachments), len(sc.Framebuffers))
	}
}

func TestSwapchainRecreateKeepsResourcesInStep(t *testing.T) {
	context := &VulkanContext{}
	driver := newFakeDriver()
	sc, err := newSwapchain(context, driver, 800, 600)
	if err != nil {
		t.Fatal(err)
	}
	if sc.ImageCount != 3 || sc.MaxFramesInFlight != 2 {
		t.Fatalf("expected 3 images and 2 frames, got %d and %d", sc.ImageCount, sc.MaxFramesInFlight)
	}

	pass := &VulkanRenderpass{ClearFlags: metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG | metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG}
	if err := sc.RegenerateFramebuffers(pass); err != nil {
		t.Fatal(err)
	}
	checkSwapchainLengths(t, sc)
	if got := len(sc.Framebuffers[0].Attachments); got != 2 {
		t.Fatalf("expected colour and depth attachments, got %d", got)
	}

	context.CurrentFrame = 1
	if err := sc.Recreate(context, 1024, 768); err != nil {
		t.Fatal(err)
	}
	checkSwapchainLengths(t, sc)

	// The surface now hands out a different number of images.
	driver.imageCount = 5
	if err := sc.Recreate(context, 1024, 768); err != nil {
		t.Fatal(err)
	}
	checkSwapchainLengths(t, sc)
	if sc.ImageCount != 5 || sc.MaxFramesInFlight != 4 {
		t.Fatalf("expected 5 images and 4 frames, got %d and %d", sc.ImageCount, sc.MaxFramesInFlight)
	}
	if context.CurrentFrame != 0 {
		t.Fatalf("current frame should restart at 0, got %d", context.CurrentFrame)
	}
	if driver.views != 5 || driver.depths != 5 || driver.framebuffers != 5 {
		t.Fatalf("leaked resources: views=%d depths=%d framebuffers=%d", driver.views, driver.depths, driver.framebuffers)
	}
	if driver.waits != 2 {
		t.Fatalf("expected a device wait per recreate, got %d", driver.waits)
	}

	sc.Destroy()
	if driver.views != 0 || driver.depths != 0 || driver.framebuffers != 0 {
		t.Fatalf("destroy left resources: views=%d depths=%d framebuffers=%d", driver.views, driver.depths, driver.framebuffers)
	}
}

func TestSwapchainColourOnlyPass(t *testing.T) {
	sc, err := newSwapchain(&VulkanContext{}, newFakeDriver(), 800, 600)
	if err != nil {
		t.Fatal(err)
	}
	if err := sc.RegenerateFramebuffers(&VulkanRenderpass{ClearFlags: metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG}); err != nil {
		t.Fatal(err)
	}
	if got := len(sc.Framebuffers[0].Attachments); got != 1 {
		t.Fatalf("expected a single colour attachment, got %d", got)
	}
}

func TestSwapchainAcquire(t *testing.T) {
	driver := newFakeDriver()
	sc, err := newSwapchain(&VulkanContext{}, driver, 800, 600)
	if err != nil {
		t.Fatal(err)
	}

	for _, result := range []vk.Result{vk.Success, vk.Suboptimal} {
		driver.acquireResult = result
		index, err := sc.AcquireNextImageIndex(stdmath.MaxUint64, vk.NullSemaphore, vk.NullFence)
		if err != nil || index != 1 {
			t.Fatalf("%s: expected image 1, got %d (%v)", VulkanResultString(result, false), index, err)
		}
	}

	driver.acquireResult = vk.ErrorOutOfDate
	if _, err := sc.AcquireNextImageIndex(stdmath.MaxUint64, vk.NullSemaphore, vk.NullFence); !errors.Is(err, core.ErrSwapchainOutOfDate) {
		t.Fatalf("expected out of date, got %v", err)
	}
	if !sc.OutOfDate {
		t.Fatal("out of date flag not set")
	}

	driver.acquireResult = vk.ErrorSurfaceLost
	if _, err := sc.AcquireNextImageIndex(stdmath.MaxUint64, vk.NullSemaphore, vk.NullFence); !errors.Is(err, core.ErrSwapchainAcquire) {
		t.Fatalf("expected acquire failure, got %v", err)
	}
}

func TestSwapchainPresent(t *testing.T) {
	context := &VulkanContext{}
	driver := newFakeDriver()
	sc, err := newSwapchain(context, driver, 800, 600)
	if err != nil {
		t.Fatal(err)
	}

	driver.presentResult = vk.Success
	for want := uint32(1); want <= 3; want++ {
		if err := sc.Present(context, nil, vk.NullSemaphore, 0); err != nil {
			t.Fatal(err)
		}
		if context.CurrentFrame != want%2 {
			t.Fatalf("expected frame %d, got %d", want%2, context.CurrentFrame)
		}
	}

	for _, result := range []vk.Result{vk.ErrorOutOfDate, vk.Suboptimal} {
		sc.OutOfDate = false
		driver.presentResult = result
		frame := context.CurrentFrame
		if err := sc.Present(context, nil, vk.NullSemaphore, 0); !errors.Is(err, core.ErrSwapchainOutOfDate) {
			t.Fatalf("expected out of date, got %v", err)
		}
		if !sc.OutOfDate || context.CurrentFrame != frame {
			t.Fatalf("%s: flag=%v frame=%d", VulkanResultString(result, false), sc.OutOfDate, context.CurrentFrame)
		}
	}

	driver.presentResult = vk.ErrorDeviceLost
	if err := sc.Present(context, nil, vk.NullSemaphore, 0); !errors.Is(err, core.ErrSwapchainPresent) {
		t.Fatalf("expected present failure, got %v", err)
	}
}

func TestQuerySwapchainInfo(t *testing.T) {
	support := VulkanSwapchainSupportInfo{
		Capabilities: vk.SurfaceCapabilities{
			CurrentExtent:  vk.Extent2D{Width: stdmath.MaxUint32, Height: stdmath.MaxUint32},
			MinImageExtent: vk.Extent2D{Width: 100, Height: 100},
			MaxImageExtent: vk.Extent2D{Width: 1000, Height: 1000},
			MinImageCount:  2,
			MaxImageCount:  3,
		},
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
	}

	info, err := QuerySwapchainInfo(support, 4000, 50, 8, false)
	if err != nil {
		t.Fatal(err)
	}
	if info.Format.Format != vk.FormatB8g8r8a8Srgb {
		t.Fatalf("preferred format not chosen: %d", info.Format.Format)
	}
	if info.PresentMode != vk.PresentModeMailbox {
		t.Fatalf("expected mailbox without vsync, got %d", info.PresentMode)
	}
	if info.Extent.Width != 1000 || info.Extent.Height != 100 {
		t.Fatalf("extent not clamped: %dx%d", info.Extent.Width, info.Extent.Height)
	}
	if info.ImageCount != 3 {
		t.Fatalf("image count not clamped to max: %d", info.ImageCount)
	}

	info, _ = QuerySwapchainInfo(support, 500, 500, 1, true)
	if info.PresentMode != vk.PresentModeFifo {
		t.Fatalf("vsync must use fifo, got %d", info.PresentMode)
	}
	if info.ImageCount != 2 {
		t.Fatalf("image count not raised to min: %d", info.ImageCount)
	}

	support.Formats = support.Formats[:1]
	support.Capabilities.MaxImageCount = 0
	info, _ = QuerySwapchainInfo(support, 500, 500, 8, false)
	if info.Format.Format != vk.FormatR8g8b8a8Unorm {
		t.Fatalf("expected fallback to the first format, got %d", info.Format.Format)
	}
	if info.ImageCount != 8 {
		t.Fatalf("a max of zero is unbounded, got %d", info.ImageCount)
	}

	if _, err := QuerySwapchainInfo(VulkanSwapchainSupportInfo{}, 1, 1, 1, false); err == nil {
		t.Fatal("expected an error without formats")
	}
}

func TestFramesInFlight(t *testing.T) {
	for _, tc := range []struct {
		images uint32
		want   uint8
	}{{0, 1}, {1, 1}, {2, 1}, {3, 2}, {4, 3}} {
		if got := framesInFlight(tc.images); got != tc.want {
			t.Fatalf("framesInFlight(%d) = %d, want %d", tc.images, got, tc.want)
		}
	}
}
