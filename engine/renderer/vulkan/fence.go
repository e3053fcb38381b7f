package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := vulkanError(res, "failed to create fence")
		core.LogError("%s", err)
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) Destroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// classifyFenceResult maps a vkWaitForFences result onto the engine errors.
// Timeouts are only logged as warnings, everything else is an error.
func classifyFenceResult(result vk.Result) error {
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return core.ErrFenceTimeout
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
		return core.ErrDeviceLost
	case vk.ErrorOutOfHostMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_HOST_MEMORY.")
		return errors.Wrap(core.ErrOutOfMemory, "host")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_DEVICE_MEMORY.")
		return errors.Wrap(core.ErrOutOfMemory, "device")
	default:
		core.LogError("vk_fence_wait - An unknown error has occurred.")
		return errors.Wrapf(core.ErrUnknown, "fence wait returned %s", VulkanResultString(result, false))
	}
}

// waitForFence is replaced in tests that run without a device.
var waitForFence = func(device vk.Device, fence vk.Fence, timeoutNs uint64) vk.Result {
	return vk.WaitForFences(device, 1, []vk.Fence{fence}, vk.True, timeoutNs)
}

func (vf *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	result := waitForFence(context.Device.LogicalDevice, vf.Handle, timeoutNs)
	if err := classifyFenceResult(result); err != nil {
		return err
	}
	vf.IsSignaled = true
	return nil
}

func (vf *VulkanFence) Reset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		err := vulkanError(res, "failed to reset fence")
		core.LogError("%s", err)
		return err
	}
	vf.IsSignaled = false
	return nil
}
