package vulkan

import (
	stdmath "math"
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

// SurfaceProvider is the window side the backend needs: instance extensions,
// the loader entry point and a surface to present to.
type SurfaceProvider interface {
	InstanceProcAddr() unsafe.Pointer
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

type VulkanRenderer struct {
	surfaces    SurfaceProvider
	config      *metadata.RendererBackendConfig
	FrameNumber uint64
	context     *VulkanContext

	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	// Shaders still alive, destroyed first on shutdown.
	shaders map[*metadata.Shader]struct{}
}

func New(surfaces SurfaceProvider, config *metadata.RendererBackendConfig) *VulkanRenderer {
	return &VulkanRenderer{
		surfaces: surfaces,
		config:   config,
		context: &VulkanContext{
			Allocator:      nil,
			Renderpasses:   make(map[string]*VulkanRenderpass),
			FrameTimeoutNS: config.FrameTimeoutNS,
			VSync:          config.VSync,
		},
		shaders: make(map[*metadata.Shader]struct{}),
	}
}

const validationLayerName = "VK_LAYER_KHRONOS_validation"

func (vr *VulkanRenderer) frameTimeout() uint64 {
	if vr.context.FrameTimeoutNS == 0 {
		return stdmath.MaxUint64
	}
	return vr.context.FrameTimeoutNS
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := vr.surfaces.InstanceProcAddr()
	if procAddr == nil {
		err := errors.New("GetInstanceProcAddress is nil")
		core.LogFatal("%s", err)
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogFatal("failed to initialize vk: %s", err)
		return err
	}

	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	// Debugger
	if vr.config.EnableValidation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, vr.context.Allocator, &dbg); res != vk.Success {
			err := vulkanError(res, "vk.CreateDebugReportCallback failed")
			core.LogError("%s", err)
			return err
		}
		vr.context.debugCallback = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.surfaces.CreateSurface(vr.context.Instance)
	if err != nil {
		err = errors.Wrap(err, "failed to create platform surface")
		core.LogError("%s", err)
		return err
	}
	vr.context.Surface = surface
	core.LogDebug("Vulkan surface created.")

	// Device creation
	if err := DeviceCreate(vr.context, []string{vk.KhrSwapchainExtensionName}); err != nil {
		return err
	}

	// Swapchain
	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height

	// Renderpasses, the first one renders into the swapchain framebuffers.
	for _, config := range vr.renderPassConfigs() {
		pass, err := RenderpassCreate(vr.context, config)
		if err != nil {
			return err
		}
		vr.context.Renderpasses[pass.Name] = pass
		if vr.context.MainRenderpass == nil {
			vr.context.MainRenderpass = pass
		}
	}

	// Swapchain framebuffers.
	if err := sc.RegenerateFramebuffers(vr.context.MainRenderpass); err != nil {
		return err
	}

	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	if err := vr.createSyncObjects(); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) renderPassConfigs() []*metadata.RenderPassConfig {
	if len(vr.config.RenderPassConfigs) > 0 {
		return vr.config.RenderPassConfigs
	}
	return []*metadata.RenderPassConfig{{
		Name:        metadata.BUILTIN_RENDERPASS_WORLD,
		ClearColour: [4]float32{0.0, 0.0, 0.2, 1.0},
		ClearFlags: metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG |
			metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG |
			metadata.RENDERPASS_CLEAR_STENCIL_BUFFER_FLAG,
		Depth:   1.0,
		Stencil: 0,
	}}
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Tundra Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, vr.surfaces.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if vr.config.EnableValidation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	requiredExtensions = dedupeStrings(requiredExtensions)
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers.
	requiredLayers := []string{}
	if vr.config.EnableValidation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredLayers = []string{validationLayerName}

		var count uint32
		if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
			err := vulkanError(res, "failed to enumerate instance layers")
			core.LogError("%s", err)
			return err
		}
		availableLayers := make([]vk.LayerProperties, count)
		if res := vk.EnumerateInstanceLayerProperties(&count, availableLayers); res != vk.Success {
			err := vulkanError(res, "failed to enumerate instance layers")
			core.LogError("%s", err)
			return err
		}
		available := make([]string, 0, count)
		for i := range availableLayers {
			availableLayers[i].Deref()
			available = append(available, vk.ToString(availableLayers[i].LayerName[:]))
		}
		if missing := missingExtensions(requiredLayers, available); len(missing) > 0 {
			err := errors.Newf("required validation layers are missing: %v", missing)
			core.LogFatal("%s", err)
			return err
		}
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := vulkanError(res, "failed in creating the Vulkan Instance")
		core.LogError("%s", err)
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError("%s", err)
		return err
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func dedupeStrings(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	vr.freeCommandBuffers()
	vr.context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, vr.context.Swapchain.ImageCount)
	for i := range vr.context.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vr.context.GraphicsCommandBuffers[i] = cb
	}
	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (vr *VulkanRenderer) freeCommandBuffers() {
	for _, cb := range vr.context.GraphicsCommandBuffers {
		if cb != nil {
			cb.Free(vr.context, vr.context.Device.GraphicsCommandPool)
		}
	}
	vr.context.GraphicsCommandBuffers = nil
}

func (vr *VulkanRenderer) createSyncObjects() error {
	frames := int(vr.context.Swapchain.MaxFramesInFlight)
	vr.context.ImageAvailableSemaphores = make([]vk.Semaphore, frames)
	vr.context.QueueCompleteSemaphores = make([]vk.Semaphore, frames)
	vr.context.InFlightFences = make([]*VulkanFence, frames)
	vr.context.InFlightFenceCount = uint32(frames)

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := 0; i < frames; i++ {
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.ImageAvailableSemaphores[i]); res != vk.Success {
			err := vulkanError(res, "failed to create semaphore on image available")
			core.LogError("%s", err)
			return err
		}
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.QueueCompleteSemaphores[i]); res != vk.Success {
			err := vulkanError(res, "failed to create semaphore on queue complete")
			core.LogError("%s", err)
			return err
		}

		// Created signaled so the first frame does not wait on a frame that was never submitted.
		f, err := NewFence(vr.context, true)
		if err != nil {
			return err
		}
		vr.context.InFlightFences[i] = f
	}

	// Not owned by this list, filled as images go in flight.
	vr.context.ImagesInFlight = make([]*VulkanFence, vr.context.Swapchain.ImageCount)
	return nil
}

func (vr *VulkanRenderer) destroySyncObjects() {
	logicalDevice := vr.context.Device.LogicalDevice
	for i := range vr.context.ImageAvailableSemaphores {
		if vr.context.ImageAvailableSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(logicalDevice, vr.context.ImageAvailableSemaphores[i], vr.context.Allocator)
		}
		if vr.context.QueueCompleteSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(logicalDevice, vr.context.QueueCompleteSemaphores[i], vr.context.Allocator)
		}
		if vr.context.InFlightFences[i] != nil {
			vr.context.InFlightFences[i].Destroy(vr.context)
		}
	}
	vr.context.ImageAvailableSemaphores = nil
	vr.context.QueueCompleteSemaphores = nil
	vr.context.InFlightFences = nil
	vr.context.InFlightFenceCount = 0
	vr.context.ImagesInFlight = nil
}

func (vr *VulkanRenderer) WaitIdle() error {
	if vr.context.Device == nil {
		return nil
	}
	if res := vk.DeviceWaitIdle(vr.context.Device.LogicalDevice); !VulkanResultIsSuccess(res) {
		err := vulkanError(res, "vkDeviceWaitIdle failed")
		core.LogError("%s", err)
		return err
	}
	return nil
}

// Shutdown tears everything down in reverse creation order. It is safe to call
// after a partial Initialize.
func (vr *VulkanRenderer) Shutdown() error {
	if err := vr.WaitIdle(); err != nil {
		core.LogWarn("%s", err)
	}

	// Shader instances, shaders and their pipelines.
	for shader := range vr.shaders {
		ShaderDestroy(shader)
	}
	vr.shaders = make(map[*metadata.Shader]struct{})

	if vr.context.Device != nil {
		for i := range vr.context.Geometries {
			if vr.context.Geometries[i].InUse {
				destroyGeometryBuffers(vr.context, &vr.context.Geometries[i])
				vr.context.Geometries[i] = VulkanGeometryData{}
			}
		}
	}

	// Framebuffers, renderpasses, then the swapchain.
	if vr.context.Swapchain != nil {
		vr.context.Swapchain.destroyFramebuffers()
	}
	for name, pass := range vr.context.Renderpasses {
		pass.Destroy(vr.context)
		delete(vr.context.Renderpasses, name)
	}
	vr.context.MainRenderpass = nil
	if vr.context.Swapchain != nil {
		vr.context.Swapchain.Destroy()
		vr.context.Swapchain = nil
	}

	if vr.context.Device != nil {
		vr.destroySyncObjects()
		vr.freeCommandBuffers()

		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(vr.context)
		vr.context.Device = nil
	}

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.context.debugCallback != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugCallback, vr.context.Allocator)
		vr.context.debugCallback = vk.NullDebugReportCallback
	}

	if vr.context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
		vr.context.Instance = nil
	}
	return nil
}

func (vr *VulkanRenderer) Resized(width, height uint32) {
	// Update the "framebuffer size generation", a counter which indicates when the
	// framebuffer size has been updated.
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
}

func (vr *VulkanRenderer) BeginFrame(deltaTime float64) error {
	// Check if recreating swap chain and boot out.
	if vr.context.RecreatingSwapchain {
		if err := vr.WaitIdle(); err != nil {
			return err
		}
		core.LogInfo("Recreating swapchain, booting.")
		return core.ErrSwapchainBooting
	}

	// Check if the framebuffer has been resized. If so, a new swapchain must be created.
	if vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration || vr.context.Swapchain.OutOfDate {
		if err := vr.WaitIdle(); err != nil {
			return err
		}
		if err := vr.recreateSwapchain(); err != nil {
			return err
		}
		core.LogInfo("Resized, booting.")
		return core.ErrSwapchainBooting
	}

	// Wait for the execution of the current frame to complete. The fence being free will allow this one to move on.
	if err := vr.context.InFlightFences[vr.context.CurrentFrame].Wait(vr.context, vr.frameTimeout()); err != nil {
		return errors.Wrap(err, "in-flight fence wait failure")
	}

	// Acquire the next image from the swap chain. Pass along the semaphore that should signaled when this completes.
	// This same semaphore will later be waited on by the queue submission to ensure this image is available.
	imageIndex, err := vr.context.Swapchain.AcquireNextImageIndex(vr.frameTimeout(), vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame], vk.NullFence)
	if err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			if err := vr.recreateSwapchain(); err != nil {
				return err
			}
			return core.ErrSwapchainBooting
		}
		return err
	}
	// Nothing for this image may be recorded or uploaded until its previous
	// submission is done.
	if err := vr.claimImage(imageIndex); err != nil {
		return err
	}
	vr.context.ImageIndex = imageIndex

	// Begin recording commands.
	commandBuffer := vr.context.GraphicsCommandBuffers[vr.context.ImageIndex]
	if err := commandBuffer.Reset(); err != nil {
		return err
	}
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return err
	}

	// Dynamic state, flipped so +Y is up.
	viewport := vk.Viewport{
		X:        0.0,
		Y:        float32(vr.context.FramebufferHeight),
		Width:    float32(vr.context.FramebufferWidth),
		Height:   -float32(vr.context.FramebufferHeight),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{
			Width:  vr.context.FramebufferWidth,
			Height: vr.context.FramebufferHeight,
		},
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	// Begin the world pass.
	framebuffer := vr.context.Swapchain.Framebuffers[vr.context.ImageIndex]
	return vr.context.MainRenderpass.Begin(commandBuffer, framebuffer.Handle)
}

func (vr *VulkanRenderer) EndFrame(deltaTime float64) error {
	commandBuffer := vr.context.GraphicsCommandBuffers[vr.context.ImageIndex]

	if err := vr.context.MainRenderpass.End(commandBuffer); err != nil {
		return err
	}
	if err := commandBuffer.End(); err != nil {
		return err
	}

	// Reset the fence for use on the next frame
	currentFence := vr.context.InFlightFences[vr.context.CurrentFrame]
	if err := currentFence.Reset(vr.context); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
		// Command buffer(s) to be executed.
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer.Handle},
		// The semaphore(s) to be signaled when the queue is complete.
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame]},
		// Wait semaphore ensures that the operation cannot begin until the image is available.
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame]},
		// Colour attachment writes wait until the image is available, one frame is presented at a time.
		PWaitDstStageMask: []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
	}
	if result := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, currentFence.Handle); result != vk.Success {
		err := vulkanError(result, "vkQueueSubmit failed")
		core.LogError("%s", err)
		return err
	}
	if err := commandBuffer.UpdateSubmitted(); err != nil {
		return err
	}

	// Give the image back to the swapchain.
	err := vr.context.Swapchain.Present(
		vr.context,
		vr.context.Device.PresentQueue,
		vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame],
		vr.context.ImageIndex)
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		// Flagged on the swapchain, the next BeginFrame recreates it.
		return nil
	}
	if err != nil {
		return err
	}
	vr.FrameNumber++
	return nil
}

// claimImage waits until the frame that last used imageIndex has finished,
// then marks the image as used by the current frame. The image is already
// acquired and its semaphore signaled, so the wait has no timeout.
func (vr *VulkanRenderer) claimImage(imageIndex uint32) error {
	if inFlight := vr.context.ImagesInFlight[imageIndex]; inFlight != nil {
		if err := inFlight.Wait(vr.context, stdmath.MaxUint64); err != nil {
			return errors.Wrap(err, "image in-flight fence wait failure")
		}
	}
	vr.context.ImagesInFlight[imageIndex] = vr.context.InFlightFences[vr.context.CurrentFrame]
	return nil
}

func (vr *VulkanRenderer) recreateSwapchain() error {
	// If already being recreated, do not try again.
	if vr.context.RecreatingSwapchain {
		core.LogDebug("recreateSwapchain called when already recreating. Booting.")
		return nil
	}

	width, height := vr.context.FramebufferWidth, vr.context.FramebufferHeight
	if vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		width, height = vr.cachedFramebufferWidth, vr.cachedFramebufferHeight
	}
	// Detect if the window is too small to be drawn to. The generation stays
	// stale so the next frame tries again.
	if width == 0 || height == 0 {
		core.LogDebug("recreateSwapchain called when window is < 1 in a dimension. Booting.")
		return nil
	}

	vr.context.RecreatingSwapchain = true
	defer func() { vr.context.RecreatingSwapchain = false }()

	previousImageCount := vr.context.Swapchain.ImageCount
	previousFrames := vr.context.Swapchain.MaxFramesInFlight

	if err := vr.context.Swapchain.Recreate(vr.context, width, height); err != nil {
		return err
	}
	sc := vr.context.Swapchain

	// Sync the framebuffer size with the swapchain extent.
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height
	for _, pass := range vr.context.Renderpasses {
		pass.Resize(sc.Extent.Width, sc.Extent.Height)
	}
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	if sc.MaxFramesInFlight != previousFrames {
		vr.destroySyncObjects()
		if err := vr.createSyncObjects(); err != nil {
			return err
		}
	} else {
		vr.context.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)
	}
	return vr.syncShaderImages(previousImageCount)
}

// resizeShaderImages is replaced in tests that run without a device.
var resizeShaderImages = ShaderResizeImages

// syncShaderImages resizes every live shader when the swapchain came back
// with a different image count. Each shader is tried, errors are combined.
func (vr *VulkanRenderer) syncShaderImages(previousImageCount uint32) error {
	imageCount := vr.context.Swapchain.ImageCount
	if imageCount == previousImageCount {
		return nil
	}
	core.LogInfo("Swapchain image count changed from %d to %d, resizing %d shaders.", previousImageCount, imageCount, len(vr.shaders))
	var errs error
	for shader := range vr.shaders {
		if err := resizeShaderImages(shader, imageCount); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "shader `%s`", shader.Name))
		}
	}
	return errs
}

func (vr *VulkanRenderer) CreateGeometry(geometry *metadata.Geometry, vertices []metadata.Vertex3D, indices []uint32) error {
	return CreateGeometry(vr.context, geometry, vertices, indices)
}

func (vr *VulkanRenderer) DestroyGeometry(geometry *metadata.Geometry) {
	DestroyGeometry(vr.context, geometry)
}

func (vr *VulkanRenderer) DrawGeometry(data *metadata.GeometryRenderData) error {
	return DrawGeometry(vr.context, data)
}

func (vr *VulkanRenderer) TextureCreate(pixels []byte, texture *metadata.Texture) error {
	return TextureCreate(vr.context, pixels, texture)
}

func (vr *VulkanRenderer) TextureDestroy(texture *metadata.Texture) {
	TextureDestroy(vr.context, texture)
}

func (vr *VulkanRenderer) TextureMapAcquireResources(textureMap *metadata.TextureMap) error {
	return TextureMapAcquireResources(vr.context, textureMap)
}

func (vr *VulkanRenderer) TextureMapReleaseResources(textureMap *metadata.TextureMap) {
	TextureMapReleaseResources(vr.context, textureMap)
}

func (vr *VulkanRenderer) ShaderCreate(shader *metadata.Shader, config *metadata.ShaderConfig, stageCode [][]byte) error {
	pass, ok := vr.context.Renderpasses[config.RenderpassName]
	if !ok {
		err := errors.Newf("unable to find renderpass '%s' for shader '%s'", config.RenderpassName, config.Name)
		core.LogError("%s", err)
		return err
	}
	if err := ShaderCreate(vr.context, shader, config, pass, stageCode); err != nil {
		return err
	}
	vr.shaders[shader] = struct{}{}
	return nil
}

func (vr *VulkanRenderer) ShaderInitialize(shader *metadata.Shader) error {
	return ShaderInitialize(shader)
}

func (vr *VulkanRenderer) ShaderReload(shader *metadata.Shader, config *metadata.ShaderConfig, stageCode [][]byte) error {
	return ShaderReload(shader, config, stageCode)
}

func (vr *VulkanRenderer) ShaderDestroy(shader *metadata.Shader) {
	ShaderDestroy(shader)
	delete(vr.shaders, shader)
}

func (vr *VulkanRenderer) ShaderUse(shader *metadata.Shader) error {
	return ShaderUse(shader)
}

func (vr *VulkanRenderer) ShaderBindGlobals(shader *metadata.Shader) error {
	return ShaderBindGlobals(shader)
}

func (vr *VulkanRenderer) ShaderBindInstance(shader *metadata.Shader, id metadata.InstanceID) error {
	return ShaderBindInstance(shader, id)
}

func (vr *VulkanRenderer) ShaderApplyGlobals(shader *metadata.Shader) error {
	return ShaderApplyGlobals(shader)
}

func (vr *VulkanRenderer) ShaderApplyInstance(shader *metadata.Shader) error {
	return ShaderApplyInstance(shader)
}

func (vr *VulkanRenderer) ShaderAcquireInstanceResources(shader *metadata.Shader, maps []*metadata.TextureMap) (metadata.InstanceID, error) {
	return ShaderAcquireInstanceResources(shader, maps)
}

func (vr *VulkanRenderer) ShaderReleaseInstanceResources(shader *metadata.Shader, id metadata.InstanceID) error {
	return ShaderReleaseInstanceResources(shader, id)
}

func (vr *VulkanRenderer) ShaderSetUniform(shader *metadata.Shader, uniform *metadata.ShaderUniform, value []byte) error {
	return ShaderSetUniform(shader, uniform, value)
}

func (vr *VulkanRenderer) ShaderSetSampler(shader *metadata.Shader, uniform *metadata.ShaderUniform, textureMap *metadata.TextureMap) error {
	return ShaderSetSampler(shader, uniform, textureMap)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
