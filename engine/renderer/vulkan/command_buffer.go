package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func (v *VulkanCommandBuffer) transition(event commandBufferEvent) error {
	next, err := nextCommandBufferState(v.State, event)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	v.State = next
	return nil
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		err := vulkanError(res, "failed to allocate command buffer")
		core.LogError("%s", err)
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	if err := vCommandBuffer.transition(commandBufferAllocate); err != nil {
		return nil, err
	}
	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.State == COMMAND_BUFFER_STATE_NOT_ALLOCATED {
		return
	}
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	if _, err := nextCommandBufferState(v.State, commandBufferBegin); err != nil {
		core.LogError("%s", err)
		return err
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, &beginInfo); res != vk.Success {
		err := vulkanError(res, "failed to begin command buffer")
		core.LogError("%s", err)
		return err
	}
	return v.transition(commandBufferBegin)
}

func (v *VulkanCommandBuffer) End() error {
	if _, err := nextCommandBufferState(v.State, commandBufferEnd); err != nil {
		core.LogError("%s", err)
		return err
	}
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		err := vulkanError(res, "failed to end command buffer")
		core.LogError("%s", err)
		return err
	}
	return v.transition(commandBufferEnd)
}

func (v *VulkanCommandBuffer) UpdateSubmitted() error {
	return v.transition(commandBufferSubmit)
}

func (v *VulkanCommandBuffer) Reset() error {
	return v.transition(commandBufferReset)
}

/**
 * Allocates and begins recording to out_command_buffer.
 */
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits for queue operation and frees the provided command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue) error {
	defer v.Free(context, pool)

	// End the command buffer.
	if err := v.End(); err != nil {
		return err
	}

	// Submit the queue
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		err := vulkanError(res, "failed to submit single use command buffer")
		core.LogError("%s", err)
		return err
	}
	if err := v.UpdateSubmitted(); err != nil {
		return err
	}

	// Wait for it to finish
	if res := vk.QueueWaitIdle(queue); res != vk.Success {
		err := vulkanError(res, "queue failed to wait in idle mode")
		core.LogError("%s", err)
		return err
	}
	return nil
}
