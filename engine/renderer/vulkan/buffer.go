package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
)

type VulkanBuffer struct {
	TotalSize   uint64
	Handle      vk.Buffer
	Usage       vk.BufferUsageFlags
	IsLocked    bool
	Memory      vk.DeviceMemory
	MemoryIndex uint32
	MemoryFlags vk.MemoryPropertyFlags

	context *VulkanContext
	mapped  unsafe.Pointer
}

func NewBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryPropertyFlags vk.MemoryPropertyFlags, bindOnCreate bool) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		TotalSize:   size,
		Usage:       usage,
		MemoryFlags: memoryPropertyFlags,
		context:     context,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(size),
		Usage: usage,
		// NOTE: Only used in one queue.
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		err := vulkanError(res, "failed to create buffer of %d bytes", size)
		core.LogError("%s", err)
		return nil, err
	}
	buffer.Handle = handle

	// Gather memory requirements.
	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &requirements)
	requirements.Deref()

	memoryIndex, err := context.FindMemoryIndex(requirements.MemoryTypeBits, memoryPropertyFlags)
	if err != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer.Handle, context.Allocator)
		err = errors.Wrap(err, "unable to create vulkan buffer because the required memory type index was not found")
		core.LogError("%s", err)
		return nil, err
	}
	buffer.MemoryIndex = memoryIndex

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer.Handle, context.Allocator)
		err := vulkanError(res, "unable to allocate memory for buffer of %d bytes", requirements.Size)
		core.LogError("%s", err)
		return nil, err
	}
	buffer.Memory = memory

	if bindOnCreate {
		if err := buffer.Bind(0); err != nil {
			buffer.Destroy()
			return nil, err
		}
	}
	return buffer, nil
}

func (b *VulkanBuffer) Destroy() {
	if b.IsLocked {
		b.UnlockMemory()
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.context.Device.LogicalDevice, b.Memory, b.context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(b.context.Device.LogicalDevice, b.Handle, b.context.Allocator)
		b.Handle = vk.NullBuffer
	}
	b.TotalSize = 0
}

func (b *VulkanBuffer) Bind(offset uint64) error {
	if res := vk.BindBufferMemory(b.context.Device.LogicalDevice, b.Handle, b.Memory, vk.DeviceSize(offset)); res != vk.Success {
		err := vulkanError(res, "failed to bind buffer memory")
		core.LogError("%s", err)
		return err
	}
	return nil
}

// LockMemory maps [offset, offset+size) into host memory. A size of zero maps
// the whole buffer.
func (b *VulkanBuffer) LockMemory(offset, size uint64) (unsafe.Pointer, error) {
	if b.IsLocked {
		return unsafe.Add(b.mapped, offset), nil
	}
	mapSize := vk.DeviceSize(size)
	if size == 0 {
		mapSize = vk.DeviceSize(vk.WholeSize)
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(b.context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), mapSize, 0, &data); res != vk.Success {
		err := vulkanError(res, "failed to map buffer memory")
		core.LogError("%s", err)
		return nil, err
	}
	// Keep the pointer relative to the start of the buffer.
	b.mapped = unsafe.Add(data, -int(offset))
	b.IsLocked = true
	return data, nil
}

func (b *VulkanBuffer) UnlockMemory() {
	if !b.IsLocked {
		return
	}
	vk.UnmapMemory(b.context.Device.LogicalDevice, b.Memory)
	b.mapped = nil
	b.IsLocked = false
}

// LoadData copies data into the buffer at offset. A locked buffer is written
// through its existing mapping, otherwise the range is mapped for the copy.
func (b *VulkanBuffer) LoadData(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.TotalSize {
		err := errors.Newf("load of %d bytes at offset %d overflows buffer of %d bytes", len(data), offset, b.TotalSize)
		core.LogError("%s", err)
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if b.IsLocked {
		vk.Memcopy(unsafe.Add(b.mapped, offset), data)
		return nil
	}
	ptr, err := b.LockMemory(offset, uint64(len(data)))
	if err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	b.UnlockMemory()
	return nil
}

func (b *VulkanBuffer) CopyTo(pool vk.CommandPool, fence vk.Fence, queue vk.Queue, sourceOffset uint64, dest *VulkanBuffer, destOffset, size uint64) error {
	vk.QueueWaitIdle(queue)

	// Create a one-time-use command buffer.
	cmd, err := AllocateAndBeginSingleUse(b.context, pool)
	if err != nil {
		return err
	}

	// Prepare the copy command and add it to the command buffer.
	copyRegion := vk.BufferCopy{
		SrcOffset: vk.DeviceSize(sourceOffset),
		DstOffset: vk.DeviceSize(destOffset),
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(cmd.Handle, b.Handle, dest.Handle, 1, []vk.BufferCopy{copyRegion})

	// Submit the buffer for execution and wait for it to complete.
	return cmd.EndSingleUse(b.context, pool, queue)
}

// Resize creates a new buffer of newSize, copies the old contents over and
// destroys the old one. The receiver takes the new handles.
func (b *VulkanBuffer) Resize(newSize uint64, queue vk.Queue, pool vk.CommandPool) error {
	if newSize < b.TotalSize {
		err := errors.Newf("cannot shrink buffer from %d to %d bytes", b.TotalSize, newSize)
		core.LogError("%s", err)
		return err
	}
	next, err := NewBuffer(b.context, newSize, b.Usage, b.MemoryFlags, true)
	if err != nil {
		return err
	}
	if err := b.CopyTo(pool, vk.NullFence, queue, 0, next, 0, b.TotalSize); err != nil {
		next.Destroy()
		return err
	}

	// Make sure anything potentially using these is finished.
	vk.DeviceWaitIdle(b.context.Device.LogicalDevice)
	b.Destroy()
	*b = *next
	return nil
}

// UploadStaged copies data to offset through a host-visible staging buffer.
// Blocks until the transfer queue is idle.
func (b *VulkanBuffer) UploadStaged(pool vk.CommandPool, queue vk.Queue, offset uint64, data []byte) error {
	flags := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	staging, err := NewBuffer(b.context, uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), flags, true)
	if err != nil {
		return err
	}
	defer staging.Destroy()

	if err := staging.LoadData(0, data); err != nil {
		return err
	}
	return staging.CopyTo(pool, vk.NullFence, queue, 0, b, offset, uint64(len(data)))
}
