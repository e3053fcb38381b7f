package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	Stage metadata.ShaderStage
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func shaderStageFlagBits(stage metadata.ShaderStage) (vk.ShaderStageFlagBits, error) {
	switch stage {
	case metadata.ShaderStageVertex:
		return vk.ShaderStageVertexBit, nil
	case metadata.ShaderStageGeometry:
		return vk.ShaderStageGeometryBit, nil
	case metadata.ShaderStageFragment:
		return vk.ShaderStageFragmentBit, nil
	case metadata.ShaderStageCompute:
		return vk.ShaderStageComputeBit, nil
	}
	return 0, errors.Newf("unsupported shader stage %d", stage)
}

// NewShaderModule creates the module for one stage from its SPIR-V code.
func NewShaderModule(context *VulkanContext, stage metadata.ShaderStage, code []byte) (*VulkanShaderStage, error) {
	flag, err := shaderStageFlagBits(stage)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		err := errors.Newf("%s stage code is %d bytes, SPIR-V must be a non-empty multiple of 4", stage, len(code))
		core.LogError("%s", err)
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    BytesToUint32(code),
	}

	shaderStage := &VulkanShaderStage{Stage: stage}
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &shaderStage.Handle); res != vk.Success {
		err := vulkanError(res, "failed to create %s shader module", stage)
		core.LogError("%s", err)
		return nil, err
	}

	// Shader stage info
	shaderStage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  flag,
		Module: shaderStage.Handle,
		PName:  VulkanSafeString("main"),
	}
	return shaderStage, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullShaderModule
	}
}

// vertexAttributes lays the attributes out back to back on binding 0 and
// returns the total stride.
func vertexAttributes(attributes []metadata.ShaderAttribute) ([]vk.VertexInputAttributeDescription, uint32, error) {
	out := make([]vk.VertexInputAttributeDescription, 0, len(attributes))
	offset := uint32(0)
	for i, attribute := range attributes {
		format, err := attributeFormat(attribute.ShaderAttributeType)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "attribute `%s`", attribute.Name)
		}
		out = append(out, vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  0,
			Offset:   offset,
			Format:   format,
		})
		offset += attribute.ShaderAttributeType.Size()
	}
	return out, offset, nil
}

func attributeFormat(t metadata.ShaderAttributeType) (vk.Format, error) {
	switch t {
	case metadata.ShaderAttribTypeFloat32:
		return vk.FormatR32Sfloat, nil
	case metadata.ShaderAttribTypeFloat32_2:
		return vk.FormatR32g32Sfloat, nil
	case metadata.ShaderAttribTypeFloat32_3:
		return vk.FormatR32g32b32Sfloat, nil
	case metadata.ShaderAttribTypeFloat32_4:
		return vk.FormatR32g32b32a32Sfloat, nil
	case metadata.ShaderAttribTypeInt8:
		return vk.FormatR8Sint, nil
	case metadata.ShaderAttribTypeUint8:
		return vk.FormatR8Uint, nil
	case metadata.ShaderAttribTypeInt16:
		return vk.FormatR16Sint, nil
	case metadata.ShaderAttribTypeUint16:
		return vk.FormatR16Uint, nil
	case metadata.ShaderAttribTypeInt32:
		return vk.FormatR32Sint, nil
	case metadata.ShaderAttribTypeUint32:
		return vk.FormatR32Uint, nil
	}
	return vk.FormatUndefined, errors.Newf("attribute type %d has no vertex format", t)
}

// descriptorPoolSizes sizes a pool for one global set per image and one
// instance set per image for every instance slot.
func descriptorPoolSizes(sets []metadata.DescriptorSetConfig, imageCount, instanceCapacity uint32) ([]vk.DescriptorPoolSize, uint32) {
	var uniformBuffers, samplers, maxSets uint32
	for _, set := range sets {
		copies := imageCount
		if set.Scope == metadata.ShaderScopeInstance {
			copies = imageCount * instanceCapacity
		}
		maxSets += copies
		for _, binding := range set.Bindings {
			switch binding.Type {
			case metadata.DESCRIPTOR_BINDING_UNIFORM_BUFFER:
				uniformBuffers += binding.Count * copies
			case metadata.DESCRIPTOR_BINDING_COMBINED_IMAGE_SAMPLER:
				samplers += binding.Count * copies
			}
		}
	}

	sizes := []vk.DescriptorPoolSize{}
	if uniformBuffers > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: uniformBuffers})
	}
	if samplers > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: samplers})
	}
	return sizes, maxSets
}

func descriptorType(t metadata.DescriptorBindingType) vk.DescriptorType {
	if t == metadata.DESCRIPTOR_BINDING_COMBINED_IMAGE_SAMPLER {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

// instanceRegionOffset is where the block of slot lives for image. Every image
// owns a contiguous region of capacity slots.
func instanceRegionOffset(image, slot, capacity uint32, stride uint64) uint64 {
	return (uint64(image)*uint64(capacity) + uint64(slot)) * stride
}
