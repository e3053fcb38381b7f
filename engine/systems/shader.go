package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/math"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief The maximum number of shaders held in the system. */
	MaxShaderCount uint16
	/** @brief The maximum number of uniforms allowed in a single shader. */
	MaxUniformCount uint8
	/** @brief The maximum number of instance-scope textures allowed in a single shader. */
	MaxInstanceTextures uint8
	/** @brief The number of instance slots each shader reserves. */
	MaxInstanceCount uint32
}

// ShaderBackend is the part of the renderer the shader system drives.
type ShaderBackend interface {
	ShaderCreate(shader *metadata.Shader, config *metadata.ShaderConfig, stageCode [][]byte) error
	ShaderInitialize(shader *metadata.Shader) error
	ShaderReload(shader *metadata.Shader, config *metadata.ShaderConfig, stageCode [][]byte) error
	ShaderDestroy(shader *metadata.Shader)
	ShaderUse(shader *metadata.Shader) error
	ShaderBindGlobals(shader *metadata.Shader) error
	ShaderBindInstance(shader *metadata.Shader, id metadata.InstanceID) error
	ShaderApplyGlobals(shader *metadata.Shader) error
	ShaderApplyInstance(shader *metadata.Shader) error
	ShaderAcquireInstanceResources(shader *metadata.Shader, maps []*metadata.TextureMap) (metadata.InstanceID, error)
	ShaderReleaseInstanceResources(shader *metadata.Shader, id metadata.InstanceID) error
	ShaderSetUniform(shader *metadata.Shader, uniform *metadata.ShaderUniform, value []byte) error
	ShaderSetSampler(shader *metadata.Shader, uniform *metadata.ShaderUniform, textureMap *metadata.TextureMap) error
}

// ShaderSource resolves shader configs and their compiled stages.
type ShaderSource interface {
	LoadShaderConfig(name string) (*metadata.ShaderConfig, error)
	LoadShaderStages(config *metadata.ShaderConfig) ([][]byte, error)
}

type ShaderSystem struct {
	// This system's configuration.
	Config *ShaderSystemConfig
	// A lookup table for shader name->shader
	Lookup map[string]*metadata.Shader
	// Config file each loaded shader came from, used on reload.
	sources map[string]string
	// The currently bound shader.
	current *metadata.Shader
	nextID  uint32

	backend ShaderBackend
	source  ShaderSource
}

func NewShaderSystem(config *ShaderSystemConfig, backend ShaderBackend, source ShaderSource) (*ShaderSystem, error) {
	if config.MaxShaderCount == 0 {
		err := errors.New("NewShaderSystem - config.MaxShaderCount must be greater than 0")
		core.LogError("%s", err)
		return nil, err
	}
	if config.MaxUniformCount == 0 {
		err := errors.New("NewShaderSystem - config.MaxUniformCount must be greater than 0")
		core.LogError("%s", err)
		return nil, err
	}
	if config.MaxInstanceCount == 0 {
		config.MaxInstanceCount = metadata.MAX_INSTANCE_COUNT
	}

	return &ShaderSystem{
		Config:  config,
		Lookup:  make(map[string]*metadata.Shader),
		sources: make(map[string]string),
		backend: backend,
		source:  source,
	}, nil
}

/**
 * @brief Shuts down the shader system, destroying every shader still registered.
 */
func (shaderSystem *ShaderSystem) Shutdown() error {
	for name, shader := range shaderSystem.Lookup {
		shaderSystem.backend.ShaderDestroy(shader)
		shader.State = metadata.SHADER_STATE_NOT_CREATED
		delete(shaderSystem.Lookup, name)
	}
	shaderSystem.current = nil
	return nil
}

// Load reads the named config from the shader source, compiles its stages and
// creates the shader.
func (shaderSystem *ShaderSystem) Load(name string) (*metadata.Shader, error) {
	if shaderSystem.source == nil {
		return nil, errors.Newf("shader system has no source to load `%s` from", name)
	}
	config, err := shaderSystem.source.LoadShaderConfig(name)
	if err != nil {
		return nil, err
	}
	stageCode, err := shaderSystem.source.LoadShaderStages(config)
	if err != nil {
		return nil, err
	}
	shader, err := shaderSystem.Create(config, stageCode)
	if err != nil {
		return nil, err
	}
	shaderSystem.sources[shader.Name] = name
	return shader, nil
}

/**
 * @brief Creates a new shader with the given config and one compiled binary per stage.
 */
func (shaderSystem *ShaderSystem) Create(config *metadata.ShaderConfig, stageCode [][]byte) (*metadata.Shader, error) {
	if _, ok := shaderSystem.Lookup[config.Name]; ok {
		err := errors.Newf("a shader named `%s` already exists", config.Name)
		core.LogError("%s", err)
		return nil, err
	}
	if len(shaderSystem.Lookup) >= int(shaderSystem.Config.MaxShaderCount) {
		err := errors.Newf("unable to find free slot to create shader `%s`. Aborting", config.Name)
		core.LogError("%s", err)
		return nil, err
	}

	shader := metadata.NewShader(config.Name, shaderSystem.Config.MaxInstanceCount)
	shader.ID = shaderSystem.nextID

	if err := LayoutShader(shader, config, shaderSystem.Config); err != nil {
		core.LogError("%s", err)
		return nil, err
	}

	if err := shaderSystem.backend.ShaderCreate(shader, config, stageCode); err != nil {
		core.LogError("shader `%s` was not created: %s", config.Name, err.Error())
		return nil, err
	}
	// Ready to be initialized.
	shader.State = metadata.SHADER_STATE_UNINITIALIZED

	if err := shaderSystem.backend.ShaderInitialize(shader); err != nil {
		core.LogError("initialization failed for shader `%s`: %s", config.Name, err.Error())
		shaderSystem.backend.ShaderDestroy(shader)
		return nil, err
	}

	shaderSystem.nextID++
	shaderSystem.Lookup[config.Name] = shader
	return shader, nil
}

/**
 * @brief Returns the shader with the given name.
 */
func (shaderSystem *ShaderSystem) Get(name string) (*metadata.Shader, error) {
	shader, ok := shaderSystem.Lookup[name]
	if !ok {
		err := errors.Newf("shader `%s` not found", name)
		core.LogError("%s", err)
		return nil, err
	}
	return shader, nil
}

// Current returns the shader selected by the last Use, or nil.
func (shaderSystem *ShaderSystem) Current() *metadata.Shader {
	return shaderSystem.current
}

/**
 * @brief Uses the shader with the given name and binds its globals.
 * The pipeline is bound every call since command buffers are re-recorded each frame.
 */
func (shaderSystem *ShaderSystem) Use(name string) error {
	shader, err := shaderSystem.Get(name)
	if err != nil {
		return err
	}
	if err := shaderSystem.backend.ShaderUse(shader); err != nil {
		core.LogError("Failed to use shader `%s`.", shader.Name)
		return err
	}
	if err := shaderSystem.backend.ShaderBindGlobals(shader); err != nil {
		core.LogError("Failed to bind globals for shader `%s`.", shader.Name)
		return err
	}
	shaderSystem.current = shader
	return nil
}

func (shaderSystem *ShaderSystem) currentShader(op string) (*metadata.Shader, error) {
	if shaderSystem.current == nil {
		err := errors.Newf("%s called without a shader in use", op)
		core.LogError("%s", err)
		return nil, err
	}
	return shaderSystem.current, nil
}

/**
 * @brief Sets the value of a uniform with the given name on the shader in use.
 * The target scope is bound first if it differs from the bound one.
 */
func (shaderSystem *ShaderSystem) SetUniform(name string, value []byte) error {
	shader, err := shaderSystem.currentShader("SetUniform")
	if err != nil {
		return err
	}
	uniform, err := shader.Uniform(name)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	if err := shaderSystem.bindScope(shader, uniform.Scope); err != nil {
		return err
	}
	return shaderSystem.backend.ShaderSetUniform(shader, uniform, value)
}

/**
 * @brief Assigns a texture map to the named sampler of the bound instance.
 */
func (shaderSystem *ShaderSystem) SetSampler(name string, textureMap *metadata.TextureMap) error {
	shader, err := shaderSystem.currentShader("SetSampler")
	if err != nil {
		return err
	}
	uniform, err := shader.Uniform(name)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	if err := shaderSystem.bindScope(shader, uniform.Scope); err != nil {
		return err
	}
	return shaderSystem.backend.ShaderSetSampler(shader, uniform, textureMap)
}

func (shaderSystem *ShaderSystem) bindScope(shader *metadata.Shader, scope metadata.ShaderScope) error {
	if shader.BoundScope == scope {
		return nil
	}
	switch scope {
	case metadata.ShaderScopeGlobal:
		if err := shaderSystem.backend.ShaderBindGlobals(shader); err != nil {
			return err
		}
	case metadata.ShaderScopeInstance:
		if err := shaderSystem.backend.ShaderBindInstance(shader, shader.BoundInstanceID); err != nil {
			return err
		}
	default:
		// NOTE: Nothing to do here for locals, just set the uniform.
	}
	shader.BoundScope = scope
	return nil
}

/**
 * @brief Applies global-scoped uniforms of the shader in use.
 */
func (shaderSystem *ShaderSystem) ApplyGlobal() error {
	shader, err := shaderSystem.currentShader("ApplyGlobal")
	if err != nil {
		return err
	}
	return shaderSystem.backend.ShaderApplyGlobals(shader)
}

/**
 * @brief Applies instance-scoped uniforms of the bound instance.
 */
func (shaderSystem *ShaderSystem) ApplyInstance() error {
	shader, err := shaderSystem.currentShader("ApplyInstance")
	if err != nil {
		return err
	}
	return shaderSystem.backend.ShaderApplyInstance(shader)
}

/**
 * @brief Binds the instance with the given id for use. Must be done before setting
 * instance-scoped uniforms.
 */
func (shaderSystem *ShaderSystem) BindInstance(id metadata.InstanceID) error {
	shader, err := shaderSystem.currentShader("BindInstance")
	if err != nil {
		return err
	}
	if err := shaderSystem.backend.ShaderBindInstance(shader, id); err != nil {
		return err
	}
	shader.BoundInstanceID = id
	shader.BoundScope = metadata.ShaderScopeInstance
	return nil
}

// AcquireInstance claims an instance of the named shader with one texture map
// per instance sampler.
func (shaderSystem *ShaderSystem) AcquireInstance(name string, maps []*metadata.TextureMap) (metadata.InstanceID, error) {
	shader, err := shaderSystem.Get(name)
	if err != nil {
		return metadata.InvalidInstanceID, err
	}
	return shaderSystem.backend.ShaderAcquireInstanceResources(shader, maps)
}

func (shaderSystem *ShaderSystem) ReleaseInstance(name string, id metadata.InstanceID) error {
	shader, err := shaderSystem.Get(name)
	if err != nil {
		return err
	}
	return shaderSystem.backend.ShaderReleaseInstanceResources(shader, id)
}

// SetInstanceUniform writes an instance uniform of one instance of the named
// shader. Nothing is recorded on a command buffer, so it can run outside a frame.
func (shaderSystem *ShaderSystem) SetInstanceUniform(name string, id metadata.InstanceID, uniformName string, value []byte) error {
	return shaderSystem.withInstance(name, id, uniformName, func(shader *metadata.Shader, uniform *metadata.ShaderUniform) error {
		return shaderSystem.backend.ShaderSetUniform(shader, uniform, value)
	})
}

// SetInstanceSampler assigns a texture map to a sampler of one instance of the
// named shader. Like SetInstanceUniform it can run outside a frame.
func (shaderSystem *ShaderSystem) SetInstanceSampler(name string, id metadata.InstanceID, samplerName string, textureMap *metadata.TextureMap) error {
	return shaderSystem.withInstance(name, id, samplerName, func(shader *metadata.Shader, uniform *metadata.ShaderUniform) error {
		return shaderSystem.backend.ShaderSetSampler(shader, uniform, textureMap)
	})
}

// withInstance binds id for the duration of fn and restores the previous binding.
func (shaderSystem *ShaderSystem) withInstance(name string, id metadata.InstanceID, uniformName string, fn func(*metadata.Shader, *metadata.ShaderUniform) error) error {
	shader, err := shaderSystem.Get(name)
	if err != nil {
		return err
	}
	uniform, err := shader.Uniform(uniformName)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	if uniform.Scope != metadata.ShaderScopeInstance {
		err := errors.Newf("uniform `%s` of shader `%s` is not instance scoped", uniformName, name)
		core.LogError("%s", err)
		return err
	}
	prevID, prevScope, prevOffset := shader.BoundInstanceID, shader.BoundScope, shader.BoundUboOffset
	defer func() {
		shader.BoundInstanceID, shader.BoundScope, shader.BoundUboOffset = prevID, prevScope, prevOffset
	}()
	if err := shaderSystem.backend.ShaderBindInstance(shader, id); err != nil {
		return err
	}
	return fn(shader, uniform)
}

// Reload re-reads the config and stages the named shader was loaded from and
// rebuilds it in place. Live instance ids stay valid.
func (shaderSystem *ShaderSystem) Reload(name string) (*metadata.Shader, error) {
	shader, err := shaderSystem.Get(name)
	if err != nil {
		return nil, err
	}
	sourceName, ok := shaderSystem.sources[name]
	if !ok || shaderSystem.source == nil {
		err := errors.Newf("shader `%s` was not loaded from a source and cannot be reloaded", name)
		core.LogError("%s", err)
		return nil, err
	}
	config, err := shaderSystem.source.LoadShaderConfig(sourceName)
	if err != nil {
		return nil, err
	}
	if config.Name != name {
		err := errors.Newf("reloaded config renames shader `%s` to `%s`", name, config.Name)
		core.LogError("%s", err)
		return nil, err
	}
	stageCode, err := shaderSystem.source.LoadShaderStages(config)
	if err != nil {
		return nil, err
	}

	boundInstance := shader.BoundInstanceID
	if err := LayoutShader(shader, config, shaderSystem.Config); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	shader.State = metadata.SHADER_STATE_UNINITIALIZED
	if err := shaderSystem.backend.ShaderReload(shader, config, stageCode); err != nil {
		core.LogError("reload of shader `%s` failed: %s", name, err.Error())
		return nil, err
	}
	shader.BoundInstanceID = boundInstance
	return shader, nil
}

/**
 * @brief Lays out attributes, uniforms, samplers and push constant ranges of
 * shader from config. Any previous layout is discarded, so calling it again
 * with the same config gives the same result.
 */
func LayoutShader(shader *metadata.Shader, config *metadata.ShaderConfig, limits *ShaderSystemConfig) error {
	resetLayout(shader)

	for _, attribute := range config.Attributes {
		if err := addAttribute(shader, attribute); err != nil {
			return errors.Wrapf(err, "shader `%s`", config.Name)
		}
	}

	for _, uniform := range config.Uniforms {
		var err error
		if uniform.ShaderUniformType == metadata.ShaderUniformTypeSampler {
			err = addSampler(shader, uniform, limits)
		} else {
			err = addUniform(shader, uniform, limits)
		}
		if err != nil {
			return errors.Wrapf(err, "shader `%s`", config.Name)
		}
	}
	return nil
}

func resetLayout(shader *metadata.Shader) {
	shader.Attributes = nil
	shader.AttributeStride = 0
	shader.Uniforms = nil
	shader.UniformLookup = make(map[string]uint16)
	shader.GlobalTextureMaps = nil
	shader.InstanceTextureCount = 0
	shader.GlobalUniformCount = 0
	shader.GlobalUniformSamplerCount = 0
	shader.InstanceUniformCount = 0
	shader.InstanceUniformSamplerCount = 0
	shader.LocalUniformCount = 0

	// A running total of the actual global uniform buffer object size.
	shader.GlobalUboSize = 0
	// A running total of the actual instance uniform buffer object size.
	shader.UboSize = 0
	// NOTE: UBO alignment requirement set in renderer backend.

	// Vulkan only guarantees a minimum of 128 bytes of push constant space, so only
	// that lowest common denominator is used.
	shader.PushConstantStride = metadata.MAX_PUSH_CONSTANT_SIZE
	shader.PushConstantSize = 0
	shader.PushConstantRangeCount = 0
	shader.PushConstantRanges = [metadata.MAX_PUSH_CONSTANT_RANGES]math.MemoryRange{}
}

func addAttribute(shader *metadata.Shader, config *metadata.ShaderAttributeConfig) error {
	if config.Name == "" {
		return errors.New("attribute name must exist")
	}
	size := config.ShaderAttributeType.Size()
	if size == 0 {
		return errors.Newf("attribute `%s` has unrecognized type %d", config.Name, config.ShaderAttributeType)
	}
	shader.AttributeStride += uint16(size)

	shader.Attributes = append(shader.Attributes, metadata.ShaderAttribute{
		Name:                config.Name,
		Size:                size,
		ShaderAttributeType: config.ShaderAttributeType,
	})
	return nil
}

func addSampler(shader *metadata.Shader, config *metadata.ShaderUniformConfig, limits *ShaderSystemConfig) error {
	// Samplers can't be used for push constants.
	switch config.Scope {
	case metadata.ShaderScopeLocal:
		return errors.Newf("sampler `%s` cannot be added at local scope", config.Name)
	case metadata.ShaderScopeGlobal:
		return errors.Wrapf(core.ErrGlobalSamplerUnsupported, "sampler `%s`", config.Name)
	}

	if shader.InstanceTextureCount+1 > limits.MaxInstanceTextures {
		return errors.Newf("shader instance texture count `%d` exceeds max of `%d`", shader.InstanceTextureCount+1, limits.MaxInstanceTextures)
	}
	// The location of a sampler indexes the instance texture maps, not the uniform array.
	location := uint16(shader.InstanceTextureCount)
	if err := uniformAdd(shader, config.Name, 0, config.ShaderUniformType, config.Scope, location, true, limits); err != nil {
		return err
	}
	shader.InstanceTextureCount++
	shader.InstanceUniformSamplerCount++
	return nil
}

func addUniform(shader *metadata.Shader, config *metadata.ShaderUniformConfig, limits *ShaderSystemConfig) error {
	size, err := config.ShaderUniformType.Size()
	if err != nil {
		// Custom uniforms carry their size in the config.
		if config.ShaderUniformType != metadata.ShaderUniformTypeCustom || config.Size == 0 {
			return errors.Wrapf(err, "uniform `%s`", config.Name)
		}
		size = uint16(config.Size)
	}
	return uniformAdd(shader, config.Name, size, config.ShaderUniformType, config.Scope, 0, false, limits)
}

func uniformAdd(shader *metadata.Shader, name string, size uint16, uniformType metadata.ShaderUniformType, scope metadata.ShaderScope, location uint16, isSampler bool, limits *ShaderSystemConfig) error {
	if name == "" {
		return errors.New("uniform name must exist")
	}
	if _, ok := shader.UniformLookup[name]; ok {
		return errors.Newf("a uniform by the name `%s` already exists on shader `%s`", name, shader.Name)
	}
	uniformCount := len(shader.Uniforms)
	if uniformCount+1 > int(limits.MaxUniformCount) {
		return errors.Newf("a shader can only accept a combined maximum of %d uniforms and samplers at global, instance and local scopes", limits.MaxUniformCount)
	}

	entry := metadata.ShaderUniform{
		Name:              name,
		Index:             uint16(uniformCount),
		Scope:             scope,
		ShaderUniformType: uniformType,
		Location:          uint16(uniformCount),
	}
	if isSampler {
		entry.Location = location
	}

	switch scope {
	case metadata.ShaderScopeGlobal:
		entry.SetIndex = metadata.DESC_SET_INDEX_GLOBAL
		entry.Offset = shader.GlobalUboSize
		entry.Size = size
		shader.GlobalUboSize += uint64(size)
		shader.GlobalUniformCount++
	case metadata.ShaderScopeInstance:
		entry.SetIndex = metadata.DESC_SET_INDEX_INSTANCE
		entry.Offset = shader.UboSize
		entry.Size = size
		shader.UboSize += uint64(size)
		if !isSampler {
			shader.InstanceUniformCount++
		}
	case metadata.ShaderScopeLocal:
		if int(shader.PushConstantRangeCount) >= metadata.MAX_PUSH_CONSTANT_RANGES {
			return errors.Newf("shader `%s` exceeds %d push constant ranges", shader.Name, metadata.MAX_PUSH_CONSTANT_RANGES)
		}
		// Push a new aligned range (align to 4, as required by Vulkan spec)
		r := math.GetAlignedRange(shader.PushConstantSize, uint64(size), 4)
		if r.Offset+r.Size > metadata.MAX_PUSH_CONSTANT_SIZE {
			return errors.Newf("local uniform `%s` does not fit in %d bytes of push constants", name, metadata.MAX_PUSH_CONSTANT_SIZE)
		}
		entry.SetIndex = metadata.InvalidIDUint8
		entry.Offset = r.Offset
		entry.Size = uint16(r.Size)

		// Track in configuration for use in initialization.
		shader.PushConstantRanges[shader.PushConstantRangeCount] = r
		shader.PushConstantRangeCount++
		shader.PushConstantSize = r.Offset + r.Size
		shader.LocalUniformCount++
	default:
		return errors.Newf("uniform `%s` has invalid scope %d", name, scope)
	}

	shader.UniformLookup[name] = entry.Index
	shader.Uniforms = append(shader.Uniforms, entry)
	return nil
}
