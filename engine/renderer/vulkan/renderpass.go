package vulkan

import (
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

type VulkanRenderpass struct {
	Handle      vk.RenderPass
	Name        string
	RenderArea  mgl32.Vec4
	ClearColour mgl32.Vec4
	Depth       float32
	Stencil     uint32
	ClearFlags  metadata.RenderpassClearFlag
	HasPrevPass bool
	HasNextPass bool
	// Set when the configured area had no size, the area then tracks the framebuffer.
	followsFramebuffer bool
}

// renderpassLayouts returns the colour attachment's initial and final layouts.
// The first pass in a chain does not care about previous contents and the last
// one leaves the image ready for presentation.
func renderpassLayouts(hasPrevPass, hasNextPass bool) (initial, final vk.ImageLayout) {
	initial = vk.ImageLayoutUndefined
	if hasPrevPass {
		initial = vk.ImageLayoutColorAttachmentOptimal
	}
	final = vk.ImageLayoutPresentSrc
	if hasNextPass {
		final = vk.ImageLayoutColorAttachmentOptimal
	}
	return initial, final
}

// renderpassClearValues builds the clear values for the set flags, colour first
// then depth/stencil. Clear values are indexed by attachment, so a depth clear
// without a colour clear still reserves the colour slot.
func renderpassClearValues(flags metadata.RenderpassClearFlag, colour mgl32.Vec4, depth float32, stencil uint32) []vk.ClearValue {
	values := make([]vk.ClearValue, 0, 2)
	clearColour := flags.Has(metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG)
	clearDepth := flags.Has(metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG)
	if clearColour || clearDepth {
		var value vk.ClearValue
		if clearColour {
			value.SetColor(colour[:])
		}
		values = append(values, value)
	}
	if clearDepth {
		var value vk.ClearValue
		s := uint32(0)
		if flags.Has(metadata.RENDERPASS_CLEAR_STENCIL_BUFFER_FLAG) {
			s = stencil
		}
		value.SetDepthStencil(depth, s)
		values = append(values, value)
	}
	return values
}

func RenderpassCreate(context *VulkanContext, config *metadata.RenderPassConfig) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		Name:               config.Name,
		RenderArea:         config.RenderArea,
		ClearColour:        config.ClearColour,
		Depth:              config.Depth,
		Stencil:            config.Stencil,
		ClearFlags:         config.ClearFlags,
		HasPrevPass:        config.HasPrevPass,
		HasNextPass:        config.HasNextPass,
		followsFramebuffer: config.RenderArea[2] == 0 || config.RenderArea[3] == 0,
	}
	if outRenderpass.followsFramebuffer {
		outRenderpass.Resize(context.FramebufferWidth, context.FramebufferHeight)
	}

	doClearColour := config.ClearFlags.Has(metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG)
	doClearDepth := config.ClearFlags.Has(metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG)
	doClearStencil := config.ClearFlags.Has(metadata.RENDERPASS_CLEAR_STENCIL_BUFFER_FLAG)

	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, 0, 2)

	// Color attachment
	initialLayout, finalLayout := renderpassLayouts(config.HasPrevPass, config.HasNextPass)
	loadOp := vk.AttachmentLoadOpLoad
	if doClearColour {
		loadOp = vk.AttachmentLoadOpClear
	}
	attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
		Format:         context.Swapchain.ImageFormat.Format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         loadOp,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  initialLayout,
		FinalLayout:    finalLayout,
	})

	subpass.ColorAttachmentCount = 1
	subpass.PColorAttachments = []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	// Depth attachment, if there is one
	if doClearDepth {
		stencilLoadOp := vk.AttachmentLoadOpDontCare
		if doClearStencil {
			stencilLoadOp = vk.AttachmentLoadOpClear
		}
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         context.Device.DepthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  stencilLoadOp,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		dependency.SrcStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		dependency.DstStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		dependency.DstAccessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}

	// Render pass create.
	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pRenderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass); res != vk.Success {
		err := vulkanError(res, "failed to create renderpass '%s'", config.Name)
		core.LogError("%s", err)
		return nil, err
	}
	outRenderpass.Handle = pRenderPass
	core.LogDebug("Renderpass '%s' created.", config.Name)
	return outRenderpass, nil
}

// Resize updates the render area of passes that follow the framebuffer size.
func (vr *VulkanRenderpass) Resize(width, height uint32) {
	if !vr.followsFramebuffer {
		return
	}
	vr.RenderArea[2] = float32(width)
	vr.RenderArea[3] = float32(height)
}

// HasDepth reports whether the pass carries a depth attachment.
func (vr *VulkanRenderpass) HasDepth() bool {
	return vr.ClearFlags.Has(metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG)
}

func (vr *VulkanRenderpass) Destroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

func (vr *VulkanRenderpass) Begin(commandBuffer *VulkanCommandBuffer, frameBuffer vk.Framebuffer) error {
	if _, err := nextCommandBufferState(commandBuffer.State, commandBufferBeginRenderPass); err != nil {
		core.LogError("%s", err)
		return err
	}

	clearValues := renderpassClearValues(vr.ClearFlags, vr.ClearColour, vr.Depth, vr.Stencil)
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{
				X: int32(vr.RenderArea[0]),
				Y: int32(vr.RenderArea[1]),
			},
			Extent: vk.Extent2D{
				Width:  uint32(vr.RenderArea[2]),
				Height: uint32(vr.RenderArea[3]),
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	return commandBuffer.transition(commandBufferBeginRenderPass)
}

func (vr *VulkanRenderpass) End(commandBuffer *VulkanCommandBuffer) error {
	if _, err := nextCommandBufferState(commandBuffer.State, commandBufferEndRenderPass); err != nil {
		core.LogError("%s", err)
		return err
	}
	vk.CmdEndRenderPass(commandBuffer.Handle)
	return commandBuffer.transition(commandBufferEndRenderPass)
}
