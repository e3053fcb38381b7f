package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

/**
 * @brief Max number of simultaneously uploaded geometries
 */
const VULKAN_MAX_GEOMETRY_COUNT uint32 = 4096

/**
 * @brief Internal buffer data for geometry.
 */
type VulkanGeometryData struct {
	InUse bool
	/** @brief The unique geometry identifier. */
	ID uint32
	/** @brief The geometry generation. Incremented every time the geometry data changes. */
	Generation uint32

	VertexCount       uint32
	VertexElementSize uint32
	VertexBuffer      *VulkanBuffer

	IndexCount       uint32
	IndexElementSize uint32
	IndexBuffer      *VulkanBuffer
}

// freeGeometrySlot returns the index of the first unused geometry slot.
func freeGeometrySlot(geometries []VulkanGeometryData) (uint32, bool) {
	for i := range geometries {
		if !geometries[i].InUse {
			return uint32(i), true
		}
	}
	return 0, false
}

func newDeviceLocalBuffer(context *VulkanContext, usage vk.BufferUsageFlags, data []byte) (*VulkanBuffer, error) {
	buffer, err := NewBuffer(
		context,
		uint64(len(data)),
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true)
	if err != nil {
		return nil, err
	}
	if err := buffer.UploadStaged(context.Device.GraphicsCommandPool, context.Device.GraphicsQueue, 0, data); err != nil {
		buffer.Destroy()
		return nil, err
	}
	return buffer, nil
}

// CreateGeometry uploads vertices and indices into device-local buffers. Uploading
// to a geometry that already has data replaces it and bumps its generation.
func CreateGeometry(context *VulkanContext, geometry *metadata.Geometry, vertices []metadata.Vertex3D, indices []uint32) error {
	if len(vertices) == 0 {
		err := errors.Newf("geometry `%s` has no vertices", geometry.Name)
		core.LogError("%s", err)
		return err
	}

	// Check if this is a re-upload. If it is, the old data is freed afterward.
	var old *VulkanGeometryData
	slot := geometry.InternalID
	if slot != metadata.InvalidID && slot < VULKAN_MAX_GEOMETRY_COUNT && context.Geometries[slot].InUse {
		previous := context.Geometries[slot]
		old = &previous
	} else {
		var ok bool
		slot, ok = freeGeometrySlot(context.Geometries[:])
		if !ok {
			err := errors.Newf("no free geometry slots (max %d)", VULKAN_MAX_GEOMETRY_COUNT)
			core.LogError("%s", err)
			return err
		}
	}

	data := VulkanGeometryData{
		InUse:             true,
		ID:                slot,
		VertexCount:       uint32(len(vertices)),
		VertexElementSize: metadata.Vertex3DSize,
		IndexCount:        uint32(len(indices)),
		IndexElementSize:  4,
	}

	var err error
	vertexUsage := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	if data.VertexBuffer, err = newDeviceLocalBuffer(context, vertexUsage, core.SliceToBytes(vertices)); err != nil {
		return errors.Wrapf(err, "vertex upload of geometry `%s`", geometry.Name)
	}
	if len(indices) > 0 {
		indexUsage := vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
		if data.IndexBuffer, err = newDeviceLocalBuffer(context, indexUsage, core.SliceToBytes(indices)); err != nil {
			data.VertexBuffer.Destroy()
			return errors.Wrapf(err, "index upload of geometry `%s`", geometry.Name)
		}
	}

	if old != nil {
		data.Generation = old.Generation + 1
		destroyGeometryBuffers(context, old)
	}
	context.Geometries[slot] = data
	geometry.InternalID = slot
	geometry.Generation++
	return nil
}

func destroyGeometryBuffers(context *VulkanContext, data *VulkanGeometryData) {
	if res := vk.DeviceWaitIdle(context.Device.LogicalDevice); res != vk.Success {
		core.LogWarn("%s", VulkanResultString(res, true))
	}
	if data.VertexBuffer != nil {
		data.VertexBuffer.Destroy()
		data.VertexBuffer = nil
	}
	if data.IndexBuffer != nil {
		data.IndexBuffer.Destroy()
		data.IndexBuffer = nil
	}
}

func DestroyGeometry(context *VulkanContext, geometry *metadata.Geometry) {
	if geometry.InternalID == metadata.InvalidID || geometry.InternalID >= VULKAN_MAX_GEOMETRY_COUNT {
		return
	}
	data := &context.Geometries[geometry.InternalID]
	if data.InUse {
		destroyGeometryBuffers(context, data)
	}
	context.Geometries[geometry.InternalID] = VulkanGeometryData{}
	geometry.InternalID = metadata.InvalidID
}

// DrawGeometry binds the geometry buffers and records the draw into the current
// command buffer.
func DrawGeometry(context *VulkanContext, data *metadata.GeometryRenderData) error {
	if data.Geometry == nil || data.Geometry.InternalID >= VULKAN_MAX_GEOMETRY_COUNT {
		return errors.New("draw of a geometry that was never uploaded")
	}
	bufferData := &context.Geometries[data.Geometry.InternalID]
	if !bufferData.InUse {
		return errors.Newf("geometry `%s` has been destroyed", data.Geometry.Name)
	}
	commandBuffer := context.GraphicsCommandBuffers[context.ImageIndex]

	vk.CmdBindVertexBuffers(commandBuffer.Handle, 0, 1, []vk.Buffer{bufferData.VertexBuffer.Handle}, []vk.DeviceSize{0})
	if bufferData.IndexCount > 0 {
		vk.CmdBindIndexBuffer(commandBuffer.Handle, bufferData.IndexBuffer.Handle, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexed(commandBuffer.Handle, bufferData.IndexCount, 1, 0, 0, 0)
	} else {
		vk.CmdDraw(commandBuffer.Handle, bufferData.VertexCount, 1, 0, 0)
	}
	return nil
}
