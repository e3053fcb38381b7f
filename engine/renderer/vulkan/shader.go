package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/containers"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

const shaderStageVisibility = vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)

// VulkanShader is the backend side of a metadata.Shader, stored in its InternalData.
type VulkanShader struct {
	Name       string
	Renderpass *VulkanRenderpass
	Stages     []*VulkanShaderStage

	DescriptorPool       vk.DescriptorPool
	DescriptorSetLayouts []vk.DescriptorSetLayout
	setConfigs           []metadata.DescriptorSetConfig
	// Position of each scope in DescriptorSetLayouts, -1 when the scope has no set.
	globalSetIndex   int
	instanceSetIndex int

	// One global set per swapchain image.
	GlobalDescriptorSets []vk.DescriptorSet
	globals              *uniformBlockState

	GlobalUniformBuffer   *VulkanBuffer
	InstanceUniformBuffer *VulkanBuffer

	Pipeline   *VulkanPipeline
	cullMode   metadata.FaceCullMode
	depthTest  bool
	depthWrite bool

	slots     *containers.SlotPool
	instances []*instanceState

	imageCount uint32
	context    *VulkanContext
}

func vulkanShader(shader *metadata.Shader) (*VulkanShader, error) {
	vs, ok := shader.InternalData.(*VulkanShader)
	if !ok || vs == nil {
		return nil, errors.Newf("shader `%s` has no backend data", shader.Name)
	}
	return vs, nil
}

// ShaderCreate builds the stage modules. Attributes and uniforms are added by
// the frontend afterwards, the remaining resources are built by ShaderInitialize.
func ShaderCreate(context *VulkanContext, shader *metadata.Shader, config *metadata.ShaderConfig, pass *VulkanRenderpass, stageCode [][]byte) error {
	if len(stageCode) != len(config.Stages) {
		err := errors.Newf("shader `%s` has %d stages but %d stage binaries", config.Name, len(config.Stages), len(stageCode))
		core.LogError("%s", err)
		return err
	}

	vs := &VulkanShader{
		Name:             config.Name,
		Renderpass:       pass,
		globalSetIndex:   -1,
		instanceSetIndex: -1,
		cullMode:         config.CullMode,
		depthTest:        config.DepthTest,
		depthWrite:       config.DepthWrite,
		imageCount:       context.Swapchain.ImageCount,
		context:          context,
	}
	for i, stage := range config.Stages {
		module, err := NewShaderModule(context, stage, stageCode[i])
		if err != nil {
			vs.destroyStages()
			return errors.Wrapf(err, "shader `%s`", config.Name)
		}
		vs.Stages = append(vs.Stages, module)
	}

	shader.RequiredUboAlignment = context.Device.MinUniformBufferOffsetAlignment
	shader.InternalData = vs
	return nil
}

// ShaderInitialize builds descriptor layouts, the pool, the uniform buffers and
// the pipeline once every attribute and uniform is known.
func ShaderInitialize(shader *metadata.Shader) error {
	vs, err := vulkanShader(shader)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	if err := vs.initialize(shader); err != nil {
		vs.destroyResources()
		return err
	}
	vs.slots = containers.NewSlotPool(shader.InstanceCapacity)
	vs.instances = make([]*instanceState, shader.InstanceCapacity)
	shader.State = metadata.SHADER_STATE_INITIALIZED
	core.LogDebug("Shader `%s` initialized (global stride %d, instance stride %d).", shader.Name, shader.GlobalUboStride, shader.UboStride)
	return nil
}

func (vs *VulkanShader) initialize(shader *metadata.Shader) error {
	context := vs.context
	logicalDevice := context.Device.LogicalDevice

	shader.ComputeStrides()

	sets, err := shader.DescriptorLayout()
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	vs.setConfigs = sets

	// Descriptor pool
	poolSizes, maxSets := descriptorPoolSizes(sets, vs.imageCount, shader.InstanceCapacity)
	if maxSets > 0 {
		poolInfo := vk.DescriptorPoolCreateInfo{
			SType:         vk.StructureTypeDescriptorPoolCreateInfo,
			Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
			MaxSets:       maxSets,
			PoolSizeCount: uint32(len(poolSizes)),
			PPoolSizes:    poolSizes,
		}
		if res := vk.CreateDescriptorPool(logicalDevice, &poolInfo, context.Allocator, &vs.DescriptorPool); res != vk.Success {
			err := vulkanError(res, "failed to create descriptor pool for shader `%s`", shader.Name)
			core.LogError("%s", err)
			return err
		}
	}

	// Descriptor set layouts
	for i, set := range sets {
		bindings := make([]vk.DescriptorSetLayoutBinding, len(set.Bindings))
		for j, b := range set.Bindings {
			bindings[j] = vk.DescriptorSetLayoutBinding{
				Binding:         b.Binding,
				DescriptorType:  descriptorType(b.Type),
				DescriptorCount: b.Count,
				StageFlags:      shaderStageVisibility,
			}
		}
		layoutInfo := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}
		var layout vk.DescriptorSetLayout
		if res := vk.CreateDescriptorSetLayout(logicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
			err := vulkanError(res, "failed to create descriptor set layout for shader `%s`", shader.Name)
			core.LogError("%s", err)
			return err
		}
		vs.DescriptorSetLayouts = append(vs.DescriptorSetLayouts, layout)
		if set.Scope == metadata.ShaderScopeGlobal {
			vs.globalSetIndex = i
		} else {
			vs.instanceSetIndex = i
		}
	}

	// Vertex input
	attributes, stride, err := vertexAttributes(shader.Attributes)
	if err != nil {
		core.LogError("%s", err)
		return err
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(vs.Stages))
	for i, stage := range vs.Stages {
		stages[i] = stage.ShaderStageCreateInfo
	}

	// The viewport is flipped so +Y points up, matching the projection matrices.
	viewport := vk.Viewport{
		X:        0,
		Y:        float32(context.FramebufferHeight),
		Width:    float32(context.FramebufferWidth),
		Height:   -float32(context.FramebufferHeight),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Extent: vk.Extent2D{Width: context.FramebufferWidth, Height: context.FramebufferHeight},
	}

	pipeline, err := NewGraphicsPipeline(context, &VulkanPipelineConfig{
		Renderpass:           vs.Renderpass,
		Stride:               stride,
		Attributes:           attributes,
		DescriptorSetLayouts: vs.DescriptorSetLayouts,
		Stages:               stages,
		Viewport:             viewport,
		Scissor:              scissor,
		CullMode:             vs.cullMode,
		DepthTest:            vs.depthTest,
		DepthWrite:           vs.depthWrite,
		PushConstantRanges:   shader.PushConstantRanges[:shader.PushConstantRangeCount],
	})
	if err != nil {
		return errors.Wrapf(err, "pipeline for shader `%s`", shader.Name)
	}
	vs.Pipeline = pipeline

	// Uniform buffers
	memoryFlags := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	if context.Device.SupportsDeviceLocalHostVisible {
		memoryFlags |= vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}
	usage := vk.BufferUsageFlags(vk.BufferUsageTransferDstBit | vk.BufferUsageUniformBufferBit)

	if shader.GlobalUboStride > 0 {
		vs.GlobalUniformBuffer, err = newMappedBuffer(context, shader.GlobalUboStride*uint64(vs.imageCount), usage, memoryFlags)
		if err != nil {
			return errors.Wrapf(err, "global uniform buffer for shader `%s`", shader.Name)
		}
	}
	if shader.UboStride > 0 {
		size := shader.UboStride * uint64(shader.InstanceCapacity) * uint64(vs.imageCount)
		vs.InstanceUniformBuffer, err = newMappedBuffer(context, size, usage, memoryFlags)
		if err != nil {
			return errors.Wrapf(err, "instance uniform buffer for shader `%s`", shader.Name)
		}
	}

	// Global descriptor sets, one per image.
	if vs.globalSetIndex >= 0 {
		vs.GlobalDescriptorSets, err = vs.allocateSets(vs.DescriptorSetLayouts[vs.globalSetIndex])
		if err != nil {
			return err
		}
	}
	vs.globals = newUniformBlockState(shader.GlobalUboSize, int(vs.imageCount))
	return nil
}

func newMappedBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	buffer, err := NewBuffer(context, size, usage, memoryFlags, true)
	if err != nil {
		return nil, err
	}
	// Mapped for the lifetime of the shader.
	if _, err := buffer.LockMemory(0, 0); err != nil {
		buffer.Destroy()
		return nil, err
	}
	return buffer, nil
}

func (vs *VulkanShader) allocateSets(layout vk.DescriptorSetLayout) ([]vk.DescriptorSet, error) {
	layouts := make([]vk.DescriptorSetLayout, vs.imageCount)
	for i := range layouts {
		layouts[i] = layout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     vs.DescriptorPool,
		DescriptorSetCount: vs.imageCount,
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, vs.imageCount)
	if res := vk.AllocateDescriptorSets(vs.context.Device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		err := vulkanError(res, "failed to allocate descriptor sets for shader `%s`", vs.Name)
		core.LogError("%s", err)
		return nil, err
	}
	return sets, nil
}

// currentImage fails when the swapchain was rebuilt with more images than the
// shader was sized for.
func (vs *VulkanShader) currentImage() (uint32, error) {
	image := vs.context.ImageIndex
	if image >= vs.imageCount {
		err := errors.Newf("shader `%s` was built for %d images, current image is %d", vs.Name, vs.imageCount, image)
		core.LogError("%s", err)
		return 0, err
	}
	return image, nil
}

func (vs *VulkanShader) commandBuffer() *VulkanCommandBuffer {
	return vs.context.GraphicsCommandBuffers[vs.context.ImageIndex]
}

// ShaderUse binds the pipeline on the current frame's command buffer.
func ShaderUse(shader *metadata.Shader) error {
	vs, err := vulkanShader(shader)
	if err != nil {
		return err
	}
	vs.Pipeline.Bind(vs.commandBuffer(), vk.PipelineBindPointGraphics)
	return nil
}

func ShaderBindGlobals(shader *metadata.Shader) error {
	shader.BoundUboOffset = shader.GlobalUboOffset
	shader.BoundScope = metadata.ShaderScopeGlobal
	return nil
}

// ShaderBindInstance makes id the target of instance uniform writes.
func ShaderBindInstance(shader *metadata.Shader, id metadata.InstanceID) error {
	vs, err := vulkanShader(shader)
	if err != nil {
		return err
	}
	state, err := vs.instance(id)
	if err != nil {
		return err
	}
	shader.BoundInstanceID = id
	shader.BoundUboOffset = state.Offset
	shader.BoundScope = metadata.ShaderScopeInstance
	return nil
}

func (vs *VulkanShader) instance(id metadata.InstanceID) (*instanceState, error) {
	if vs.slots == nil || !vs.slots.Valid(id) {
		err := errors.Wrapf(core.ErrStaleInstance, "shader `%s` instance %s", vs.Name, id)
		core.LogError("%s", err)
		return nil, err
	}
	return vs.instances[id.Index], nil
}

// ShaderApplyGlobals uploads the global block for the current image if it
// changed, then binds the global set.
func ShaderApplyGlobals(shader *metadata.Shader) error {
	vs, err := vulkanShader(shader)
	if err != nil {
		return err
	}
	if vs.globalSetIndex < 0 {
		return nil
	}
	image, err := vs.currentImage()
	if err != nil {
		return err
	}
	offset := uint64(image) * shader.GlobalUboStride

	if _, err := vs.globals.Update(image, func(data []byte) error {
		return vs.GlobalUniformBuffer.LoadData(offset, data)
	}); err != nil {
		return err
	}

	set := vs.GlobalDescriptorSets[image]
	if !vs.globals.descriptorWritten[image] {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      metadata.BINDING_INDEX_UBO,
			DstArrayElement: 0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: vs.GlobalUniformBuffer.Handle,
				Offset: vk.DeviceSize(offset),
				Range:  vk.DeviceSize(shader.GlobalUboStride),
			}},
		}
		vk.UpdateDescriptorSets(vs.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		vs.globals.descriptorWritten[image] = true
	}

	vk.CmdBindDescriptorSets(vs.commandBuffer().Handle, vk.PipelineBindPointGraphics, vs.Pipeline.PipelineLayout,
		uint32(vs.globalSetIndex), 1, []vk.DescriptorSet{set}, 0, nil)
	return nil
}

// ShaderApplyInstance uploads the bound instance's block and rewrites its dirty
// samplers for the current image, then binds the instance set.
func ShaderApplyInstance(shader *metadata.Shader) error {
	vs, err := vulkanShader(shader)
	if err != nil {
		return err
	}
	if vs.instanceSetIndex < 0 {
		return nil
	}
	state, err := vs.instance(shader.BoundInstanceID)
	if err != nil {
		return err
	}
	image, err := vs.currentImage()
	if err != nil {
		return err
	}
	set := state.DescriptorSets[image]
	writes := []vk.WriteDescriptorSet{}

	if shader.UboStride > 0 {
		offset := instanceRegionOffset(image, state.ID.Index, shader.InstanceCapacity, shader.UboStride)
		if _, err := state.UpdateUbo(image, func(data []byte) error {
			return vs.InstanceUniformBuffer.LoadData(offset, data)
		}); err != nil {
			return err
		}
		// The slot's range never moves, so the descriptor is written once per image.
		if !state.ubo.descriptorWritten[image] {
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      metadata.BINDING_INDEX_UBO,
				DescriptorType:  vk.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,
				PBufferInfo: []vk.DescriptorBufferInfo{{
					Buffer: vs.InstanceUniformBuffer.Handle,
					Offset: vk.DeviceSize(offset),
					Range:  vk.DeviceSize(shader.UboStride),
				}},
			})
			state.ubo.descriptorWritten[image] = true
		}
	}

	for _, index := range state.DirtySamplers(image) {
		imageInfo, err := textureMapImageInfo(state.TextureMaps[index])
		if err != nil {
			err = errors.Wrapf(err, "shader `%s` sampler %d", shader.Name, index)
			core.LogError("%s", err)
			return err
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      metadata.BINDING_INDEX_SAMPLER,
			DstArrayElement: uint32(index),
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
		})
	}

	if len(writes) > 0 {
		vk.UpdateDescriptorSets(vs.context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	}

	vk.CmdBindDescriptorSets(vs.commandBuffer().Handle, vk.PipelineBindPointGraphics, vs.Pipeline.PipelineLayout,
		uint32(vs.instanceSetIndex), 1, []vk.DescriptorSet{set}, 0, nil)
	return nil
}

func textureMapImageInfo(textureMap *metadata.TextureMap) (vk.DescriptorImageInfo, error) {
	if textureMap == nil || textureMap.Texture == nil {
		return vk.DescriptorImageInfo{}, errors.New("no texture assigned")
	}
	texture, ok := textureMap.Texture.InternalData.(*VulkanTexture)
	if !ok || texture == nil {
		return vk.DescriptorImageInfo{}, errors.Newf("texture `%s` has not been uploaded", textureMap.Texture.Name)
	}
	sampler, ok := textureMap.InternalData.(vk.Sampler)
	if !ok || sampler == vk.NullSampler {
		return vk.DescriptorImageInfo{}, errors.Newf("texture map for `%s` has no sampler", textureMap.Texture.Name)
	}
	return vk.DescriptorImageInfo{
		Sampler:     sampler,
		ImageView:   texture.Image.View,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}, nil
}

// ShaderAcquireInstanceResources claims an instance slot with one texture map
// per instance sampler.
func ShaderAcquireInstanceResources(shader *metadata.Shader, maps []*metadata.TextureMap) (metadata.InstanceID, error) {
	vs, err := vulkanShader(shader)
	if err != nil {
		return metadata.InvalidInstanceID, err
	}
	if len(maps) != int(shader.InstanceUniformSamplerCount) {
		err := errors.Newf("shader `%s` expects %d instance texture maps, got %d", shader.Name, shader.InstanceUniformSamplerCount, len(maps))
		core.LogError("%s", err)
		return metadata.InvalidInstanceID, err
	}

	id, err := vs.slots.Acquire()
	if err != nil {
		err := errors.Wrapf(core.ErrInstanceSlotsExhausted, "shader `%s` (capacity %d)", shader.Name, vs.slots.Capacity())
		core.LogError("%s", err)
		return metadata.InvalidInstanceID, err
	}

	state, err := vs.newInstance(shader, id, maps)
	if err != nil {
		_ = vs.slots.Release(id)
		return metadata.InvalidInstanceID, err
	}
	vs.instances[id.Index] = state
	return id, nil
}

func (vs *VulkanShader) newInstance(shader *metadata.Shader, id metadata.InstanceID, maps []*metadata.TextureMap) (*instanceState, error) {
	state := newInstanceState(id, uint64(id.Index)*shader.UboStride, shader.UboSize, int(vs.imageCount), maps)
	if vs.instanceSetIndex >= 0 {
		sets, err := vs.allocateSets(vs.DescriptorSetLayouts[vs.instanceSetIndex])
		if err != nil {
			return nil, err
		}
		state.DescriptorSets = sets
	}
	return state, nil
}

// ShaderReleaseInstanceResources frees the slot. Ids held for it turn stale.
func ShaderReleaseInstanceResources(shader *metadata.Shader, id metadata.InstanceID) error {
	vs, err := vulkanShader(shader)
	if err != nil {
		return err
	}
	state, err := vs.instance(id)
	if err != nil {
		return err
	}
	vs.freeInstanceSets(state)
	vs.instances[id.Index] = nil
	if shader.BoundInstanceID == id {
		shader.BoundInstanceID = metadata.InvalidInstanceID
	}
	return vs.slots.Release(id)
}

func (vs *VulkanShader) freeInstanceSets(state *instanceState) {
	if len(state.DescriptorSets) == 0 {
		return
	}
	// Sets of an image still in flight must not be freed under it.
	if res := vk.DeviceWaitIdle(vs.context.Device.LogicalDevice); res != vk.Success {
		core.LogWarn("%s", VulkanResultString(res, true))
	}
	if res := vk.FreeDescriptorSets(vs.context.Device.LogicalDevice, vs.DescriptorPool, uint32(len(state.DescriptorSets)), &state.DescriptorSets[0]); res != vk.Success {
		core.LogWarn("failed to free descriptor sets of shader `%s`: %s", vs.Name, VulkanResultString(res, true))
	}
	state.DescriptorSets = nil
}

// ShaderSetUniform writes value into the scope of uniform. Local uniforms are
// pushed straight into the current command buffer.
func ShaderSetUniform(shader *metadata.Shader, uniform *metadata.ShaderUniform, value []byte) error {
	vs, err := vulkanShader(shader)
	if err != nil {
		return err
	}
	if uniform.IsSampler() {
		return errors.Newf("uniform `%s` is a sampler", uniform.Name)
	}
	if len(value) > int(uniform.Size) {
		err := errors.Newf("uniform `%s` holds %d bytes, got %d", uniform.Name, uniform.Size, len(value))
		core.LogError("%s", err)
		return err
	}
	if len(value) == 0 {
		return nil
	}

	switch uniform.Scope {
	case metadata.ShaderScopeLocal:
		vk.CmdPushConstants(vs.commandBuffer().Handle, vs.Pipeline.PipelineLayout, shaderStageVisibility,
			uint32(uniform.Offset), uint32(len(value)), unsafe.Pointer(&value[0]))
	case metadata.ShaderScopeGlobal:
		vs.globals.Set(uniform.Offset, value)
	default:
		state, err := vs.instance(shader.BoundInstanceID)
		if err != nil {
			return err
		}
		state.SetUbo(uniform.Offset, value)
	}
	return nil
}

// ShaderSetSampler assigns textureMap to an instance sampler of the bound instance.
func ShaderSetSampler(shader *metadata.Shader, uniform *metadata.ShaderUniform, textureMap *metadata.TextureMap) error {
	vs, err := vulkanShader(shader)
	if err != nil {
		return err
	}
	if !uniform.IsSampler() {
		return errors.Newf("uniform `%s` is not a sampler", uniform.Name)
	}
	if uniform.Scope != metadata.ShaderScopeInstance {
		return errors.Wrapf(core.ErrGlobalSamplerUnsupported, "uniform `%s`", uniform.Name)
	}
	state, err := vs.instance(shader.BoundInstanceID)
	if err != nil {
		return err
	}
	if int(uniform.Location) >= len(state.TextureMaps) {
		return errors.Newf("sampler location %d out of range", uniform.Location)
	}
	state.SetSampler(int(uniform.Location), textureMap)
	return nil
}

// ShaderReload rebuilds the GPU side of shader from new stage code. Live
// instances keep their ids, their uniform data survives when the block size
// is unchanged.
func ShaderReload(shader *metadata.Shader, config *metadata.ShaderConfig, stageCode [][]byte) error {
	old, err := vulkanShader(shader)
	if err != nil {
		return err
	}
	context := old.context
	if res := vk.DeviceWaitIdle(context.Device.LogicalDevice); res != vk.Success {
		return vulkanError(res, "failed to wait for device idle")
	}

	slots, instances := old.slots, old.instances
	oldUboSize := uint64(0)
	for _, state := range instances {
		if state != nil {
			oldUboSize = uint64(len(state.ubo.data))
			break
		}
	}
	old.destroyResources()
	old.destroyStages()

	if err := ShaderCreate(context, shader, config, old.Renderpass, stageCode); err != nil {
		return err
	}
	vs, _ := vulkanShader(shader)
	if err := vs.initialize(shader); err != nil {
		vs.destroyResources()
		return err
	}

	if err := vs.restoreInstances(shader, slots, instances, oldUboSize == shader.UboSize); err != nil {
		return err
	}

	shader.State = metadata.SHADER_STATE_INITIALIZED
	core.LogInfo("Shader `%s` reloaded with %d live instances.", shader.Name, vs.slots.Live())
	return nil
}

// ShaderResizeImages rebuilds the per-image descriptor sets and uniform
// stripes of shader for a swapchain holding imageCount images. Stages and
// instance ids are kept, uniform data and samplers are uploaded again.
func ShaderResizeImages(shader *metadata.Shader, imageCount uint32) error {
	vs, err := vulkanShader(shader)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	if vs.imageCount == imageCount {
		return nil
	}
	slots, instances := vs.slots, vs.instances
	globals := vs.globals

	vs.destroyResources()
	vs.imageCount = imageCount
	if err := vs.initialize(shader); err != nil {
		vs.destroyResources()
		return err
	}
	vs.carryGlobals(globals)
	if err := vs.restoreInstances(shader, slots, instances, true); err != nil {
		return err
	}
	core.LogInfo("Shader `%s` resized for %d swapchain images.", shader.Name, imageCount)
	return nil
}

// carryGlobals copies the host side of a previous global block. Every image
// is dirty afterwards.
func (vs *VulkanShader) carryGlobals(prev *uniformBlockState) {
	if prev == nil || vs.globals == nil || len(prev.data) != len(vs.globals.data) {
		return
	}
	vs.globals.Set(0, prev.data)
}

// restoreInstances rebuilds the live instances of slots after the GPU side of
// the shader was recreated. The uniform data of each instance is copied over
// when keepUbo is set.
func (vs *VulkanShader) restoreInstances(shader *metadata.Shader, slots *containers.SlotPool, instances []*instanceState, keepUbo bool) error {
	if slots == nil || slots.Capacity() != shader.InstanceCapacity {
		slots = containers.NewSlotPool(shader.InstanceCapacity)
		instances = make([]*instanceState, shader.InstanceCapacity)
	}
	vs.slots = slots
	vs.instances = make([]*instanceState, shader.InstanceCapacity)

	var restoreErr error
	slots.Each(func(id containers.Handle) {
		if restoreErr != nil {
			return
		}
		prev := instances[id.Index]
		maps := make([]*metadata.TextureMap, shader.InstanceUniformSamplerCount)
		if prev != nil {
			copy(maps, prev.TextureMaps)
		}
		state, err := vs.newInstance(shader, id, maps)
		if err != nil {
			restoreErr = err
			return
		}
		if prev != nil && keepUbo {
			state.SetUbo(0, prev.ubo.data)
		}
		vs.instances[id.Index] = state
	})
	return restoreErr
}

func (vs *VulkanShader) destroyStages() {
	for _, stage := range vs.Stages {
		stage.Destroy(vs.context)
	}
	vs.Stages = nil
}

func (vs *VulkanShader) destroyResources() {
	logicalDevice := vs.context.Device.LogicalDevice
	allocator := vs.context.Allocator

	if vs.Pipeline != nil {
		vs.Pipeline.Destroy(vs.context)
		vs.Pipeline = nil
	}
	for _, layout := range vs.DescriptorSetLayouts {
		vk.DestroyDescriptorSetLayout(logicalDevice, layout, allocator)
	}
	vs.DescriptorSetLayouts = nil
	vs.globalSetIndex, vs.instanceSetIndex = -1, -1

	// Destroying the pool frees every set allocated from it.
	if vs.DescriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(logicalDevice, vs.DescriptorPool, allocator)
		vs.DescriptorPool = vk.NullDescriptorPool
	}
	vs.GlobalDescriptorSets = nil
	for _, state := range vs.instances {
		if state != nil {
			state.DescriptorSets = nil
		}
	}

	if vs.GlobalUniformBuffer != nil {
		vs.GlobalUniformBuffer.UnlockMemory()
		vs.GlobalUniformBuffer.Destroy()
		vs.GlobalUniformBuffer = nil
	}
	if vs.InstanceUniformBuffer != nil {
		vs.InstanceUniformBuffer.UnlockMemory()
		vs.InstanceUniformBuffer.Destroy()
		vs.InstanceUniformBuffer = nil
	}
}

// ShaderDestroy releases every GPU resource of shader. Outstanding instance ids turn stale.
func ShaderDestroy(shader *metadata.Shader) {
	vs, err := vulkanShader(shader)
	if err != nil {
		return
	}
	vs.destroyResources()
	vs.destroyStages()
	vs.slots = nil
	vs.instances = nil
	shader.InternalData = nil
	shader.State = metadata.SHADER_STATE_NOT_CREATED
}
