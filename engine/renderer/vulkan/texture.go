package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

// VulkanTexture is stored in metadata.Texture.InternalData.
type VulkanTexture struct {
	Image *VulkanImage
}

func textureFormat(channelCount uint8) (vk.Format, error) {
	switch channelCount {
	case 1:
		return vk.FormatR8Unorm, nil
	case 2:
		return vk.FormatR8g8Unorm, nil
	case 3:
		return vk.FormatR8g8b8Unorm, nil
	case 4:
		return vk.FormatR8g8b8a8Unorm, nil
	}
	return vk.FormatUndefined, errors.Newf("unsupported channel count %d", channelCount)
}

// TextureCreate uploads pixels through a staging buffer into an optimal tiled
// image ready to be sampled.
func TextureCreate(context *VulkanContext, pixels []byte, texture *metadata.Texture) error {
	imageSize := uint64(texture.Width) * uint64(texture.Height) * uint64(texture.ChannelCount)
	if uint64(len(pixels)) != imageSize {
		err := errors.Newf("texture `%s`: expected %d bytes of pixels, got %d", texture.Name, imageSize, len(pixels))
		core.LogError("%s", err)
		return err
	}
	format, err := textureFormat(texture.ChannelCount)
	if err != nil {
		err = errors.Wrapf(err, "texture `%s`", texture.Name)
		core.LogError("%s", err)
		return err
	}

	// Create a staging buffer and load data into it.
	staging, err := NewBuffer(context, imageSize,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		true)
	if err != nil {
		return err
	}
	defer staging.Destroy()
	if err := staging.LoadData(0, pixels); err != nil {
		return err
	}

	image, err := ImageCreate(
		context,
		vk.ImageType2d,
		texture.Width,
		texture.Height,
		format,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit|vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit|vk.ImageUsageColorAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return err
	}

	pool := context.Device.GraphicsCommandPool
	queue := context.Device.GraphicsQueue
	cmd, err := AllocateAndBeginSingleUse(context, pool)
	if err != nil {
		image.Destroy(context)
		return err
	}

	// Transition the layout from whatever it is currently to optimal for receiving data.
	if err := image.TransitionLayout(context, cmd, format, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		image.Destroy(context)
		return err
	}
	image.CopyFromBuffer(cmd, staging.Handle)
	// From a copying optimal data layout to a shader-read optimal one.
	if err := image.TransitionLayout(context, cmd, format, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		image.Destroy(context)
		return err
	}
	if err := cmd.EndSingleUse(context, pool, queue); err != nil {
		image.Destroy(context)
		return err
	}

	if previous, ok := texture.InternalData.(*VulkanTexture); ok && previous != nil {
		TextureDestroy(context, texture)
	}
	texture.InternalData = &VulkanTexture{Image: image}
	texture.Generation++
	return nil
}

func TextureDestroy(context *VulkanContext, texture *metadata.Texture) {
	if res := vk.DeviceWaitIdle(context.Device.LogicalDevice); res != vk.Success {
		core.LogWarn("%s", VulkanResultString(res, true))
	}
	if vt, ok := texture.InternalData.(*VulkanTexture); ok && vt != nil && vt.Image != nil {
		vt.Image.Destroy(context)
	}
	texture.InternalData = nil
}

func samplerFilter(filter metadata.TextureFilter) vk.Filter {
	if filter == metadata.TextureFilterModeNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func samplerAddressMode(repeat metadata.TextureRepeat) vk.SamplerAddressMode {
	switch repeat {
	case metadata.TextureRepeatMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case metadata.TextureRepeatClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case metadata.TextureRepeatClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}

// TextureMapAcquireResources creates the sampler of textureMap.
func TextureMapAcquireResources(context *VulkanContext, textureMap *metadata.TextureMap) error {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               samplerFilter(textureMap.FilterMagnify),
		MinFilter:               samplerFilter(textureMap.FilterMinify),
		AddressModeU:            samplerAddressMode(textureMap.RepeatU),
		AddressModeV:            samplerAddressMode(textureMap.RepeatV),
		AddressModeW:            samplerAddressMode(textureMap.RepeatW),
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  0,
	}
	// Anisotropy is an optional device feature.
	if context.Device.SupportsAnisotropy {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = context.Device.Properties.Limits.MaxSamplerAnisotropy
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		err := vulkanError(res, "failed to create texture sampler")
		core.LogError("%s", err)
		return err
	}
	textureMap.InternalData = sampler
	return nil
}

func TextureMapReleaseResources(context *VulkanContext, textureMap *metadata.TextureMap) {
	if sampler, ok := textureMap.InternalData.(vk.Sampler); ok && sampler != vk.NullSampler {
		if res := vk.DeviceWaitIdle(context.Device.LogicalDevice); res != vk.Success {
			core.LogWarn("%s", VulkanResultString(res, true))
		}
		vk.DestroySampler(context.Device.LogicalDevice, sampler, context.Allocator)
	}
	textureMap.InternalData = nil
}
