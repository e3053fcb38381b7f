package metadata

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine/containers"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/math"
)

const (
	/** @brief The maximum number of instances a single shader can hold. */
	MAX_INSTANCE_COUNT uint32 = 1024

	/** @brief Vulkan guarantees 128 bytes of push constants. */
	MAX_PUSH_CONSTANT_SIZE   uint64 = 128
	MAX_PUSH_CONSTANT_RANGES        = 32

	BUILTIN_SHADER_NAME_WORLD string = "Shader.Builtin.World"
)

// InstanceID identifies a live shader instance. The generation half rejects ids
// kept after the instance was released.
type InstanceID = containers.Handle

var InvalidInstanceID = containers.InvalidHandle

/**
 * @brief Represents the current state of a given shader.
 */
type ShaderState int

const (
	/** @brief The shader has not yet gone through the creation process, and is unusable.*/
	SHADER_STATE_NOT_CREATED ShaderState = iota
	/** @brief The shader has gone through the creation process, but not initialization. It is unusable.*/
	SHADER_STATE_UNINITIALIZED
	/** @brief The shader is created and initialized, and is ready for use.*/
	SHADER_STATE_INITIALIZED
)

/**
 * @brief Represents a single entry in the internal uniform array.
 */
type ShaderUniform struct {
	Name string
	/** @brief The Offset in bytes from the beginning of the uniform set (global/instance/local) */
	Offset uint64
	/**
	 * @brief The Location to be used as a lookup. Typically the same as the index except for samplers,
	 * which is used to lookup texture index within the internal array at the given scope (global/instance).
	 */
	Location uint16
	/** @brief Index into the internal uniform array. */
	Index uint16
	/** @brief The Size of the uniform, or 0 for samplers. */
	Size uint16
	/** @brief The index of the descriptor set the uniform belongs to (0=global, 1=instance, INVALID_ID=local). */
	SetIndex uint8
	/** @brief The Scope of the uniform. */
	Scope ShaderScope
	/** @brief The type of uniform. */
	ShaderUniformType ShaderUniformType
}

func (u ShaderUniform) IsSampler() bool {
	return u.ShaderUniformType == ShaderUniformTypeSampler
}

/**
 * @brief Represents a single shader vertex attribute.
 */
type ShaderAttribute struct {
	/** @brief The attribute Name. */
	Name string
	/** @brief The attribute type. */
	ShaderAttributeType ShaderAttributeType
	/** @brief The attribute Size in bytes. */
	Size uint32
}

/**
 * @brief Represents a shader on the frontend.
 */
type Shader struct {
	/** @brief The shader identifier */
	ID uint32

	Name string

	/**
	 * @brief The amount of bytes that are required for UBO alignment.
	 *
	 * This is used along with the UBO size to determine the ultimate
	 * stride, which is how much the UBOs are spaced out in the buffer.
	 * For example, a required alignment of 256 means that the stride
	 * must be a multiple of 256 (true for some nVidia cards).
	 */
	RequiredUboAlignment uint64

	/** @brief The actual size of the global uniform buffer object. */
	GlobalUboSize uint64
	/** @brief The stride of the global uniform buffer object. */
	GlobalUboStride uint64
	/**
	 * @brief The offset in bytes for the global UBO from the beginning
	 * of the uniform buffer.
	 */
	GlobalUboOffset uint64

	/** @brief The actual size of the instance uniform buffer object. */
	UboSize uint64

	/** @brief The stride of the instance uniform buffer object. */
	UboStride uint64

	/** @brief The total size of all push constant ranges combined. */
	PushConstantSize uint64
	/** @brief The push constant stride, aligned to 4 bytes as required by Vulkan. */
	PushConstantStride uint64

	/** @brief Global texture maps, one per global sampler uniform. */
	GlobalTextureMaps []*TextureMap

	/** @brief The number of instance textures. */
	InstanceTextureCount uint8

	GlobalUniformCount          uint8
	GlobalUniformSamplerCount   uint8
	InstanceUniformCount        uint8
	InstanceUniformSamplerCount uint8
	LocalUniformCount           uint8

	/** @brief Maximum number of live instances. */
	InstanceCapacity uint32

	BoundScope ShaderScope

	/** @brief The identifier of the currently bound instance. */
	BoundInstanceID InstanceID
	/** @brief The currently bound instance's ubo offset. */
	BoundUboOffset uint64

	/** @brief A hashtable to store uniform index/locations by name. */
	UniformLookup map[string]uint16

	/** @brief An array of Uniforms in this shader. */
	Uniforms []ShaderUniform

	/** @brief An array of Attributes. */
	Attributes []ShaderAttribute

	/** @brief The internal State of the shader. */
	State ShaderState

	/** @brief The number of push constant ranges. */
	PushConstantRangeCount uint8
	/** @brief An array of push constant ranges. */
	PushConstantRanges [MAX_PUSH_CONSTANT_RANGES]math.MemoryRange
	/** @brief The size of all attributes combined, a.k.a. the size of a vertex. */
	AttributeStride uint16

	/** @brief Used to ensure the shader's globals are only updated once per frame. */
	RenderFrameNumber uint64

	/** @brief An opaque pointer to hold renderer API specific data. Renderer is responsible for creation and destruction of this.  */
	InternalData interface{}
}

func NewShader(name string, instanceCapacity uint32) *Shader {
	if instanceCapacity == 0 {
		instanceCapacity = MAX_INSTANCE_COUNT
	}
	return &Shader{
		Name:             name,
		BoundInstanceID:  InvalidInstanceID,
		InstanceCapacity: instanceCapacity,
		UniformLookup:    make(map[string]uint16),
		State:            SHADER_STATE_NOT_CREATED,
	}
}

// ComputeStrides pads the global and instance UBO sizes to RequiredUboAlignment.
func (s *Shader) ComputeStrides() {
	s.GlobalUboStride = math.Stride(s.GlobalUboSize, s.RequiredUboAlignment)
	s.UboStride = math.Stride(s.UboSize, s.RequiredUboAlignment)
}

// Uniform returns the uniform registered under name.
func (s *Shader) Uniform(name string) (*ShaderUniform, error) {
	idx, ok := s.UniformLookup[name]
	if !ok {
		return nil, errors.Newf("shader `%s` has no uniform named `%s`", s.Name, name)
	}
	return &s.Uniforms[idx], nil
}

/** @brief Kinds of descriptors a shader set can hold. */
type DescriptorBindingType int

const (
	DESCRIPTOR_BINDING_UNIFORM_BUFFER DescriptorBindingType = iota
	DESCRIPTOR_BINDING_COMBINED_IMAGE_SAMPLER
)

type DescriptorBindingConfig struct {
	Binding uint32
	Type    DescriptorBindingType
	// Number of descriptors in the binding, the sampler count for image samplers.
	Count uint32
}

type DescriptorSetConfig struct {
	Scope    ShaderScope
	Bindings []DescriptorBindingConfig
}

const (
	DESC_SET_INDEX_GLOBAL   uint8 = 0
	DESC_SET_INDEX_INSTANCE uint8 = 1

	BINDING_INDEX_UBO     uint32 = 0
	BINDING_INDEX_SAMPLER uint32 = 1
)

// DescriptorLayout lists the descriptor sets this shader needs. Set 0 holds the
// global UBO, set 1 the instance UBO and the instance samplers. Scopes with
// nothing to bind get no set.
func (s *Shader) DescriptorLayout() ([]DescriptorSetConfig, error) {
	if s.GlobalUniformSamplerCount > 0 {
		return nil, errors.Wrapf(core.ErrGlobalSamplerUnsupported, "shader `%s`", s.Name)
	}
	sets := []DescriptorSetConfig{}

	if s.GlobalUniformCount > 0 {
		sets = append(sets, DescriptorSetConfig{
			Scope: ShaderScopeGlobal,
			Bindings: []DescriptorBindingConfig{
				{Binding: BINDING_INDEX_UBO, Type: DESCRIPTOR_BINDING_UNIFORM_BUFFER, Count: 1},
			},
		})
	}

	if s.InstanceUniformCount > 0 || s.InstanceUniformSamplerCount > 0 {
		set := DescriptorSetConfig{Scope: ShaderScopeInstance}
		if s.InstanceUniformCount > 0 {
			set.Bindings = append(set.Bindings, DescriptorBindingConfig{
				Binding: BINDING_INDEX_UBO, Type: DESCRIPTOR_BINDING_UNIFORM_BUFFER, Count: 1,
			})
		}
		if s.InstanceUniformSamplerCount > 0 {
			set.Bindings = append(set.Bindings, DescriptorBindingConfig{
				Binding: BINDING_INDEX_SAMPLER, Type: DESCRIPTOR_BINDING_COMBINED_IMAGE_SAMPLER, Count: uint32(s.InstanceUniformSamplerCount),
			})
		}
		sets = append(sets, set)
	}

	return sets, nil
}

/** @brief Shader stages available in the system. */
type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageGeometry ShaderStage = 0x00000002
	ShaderStageFragment ShaderStage = 0x00000004
	ShaderStageCompute  ShaderStage = 0x0000008
)

func ShaderStageFromString(s string) (ShaderStage, error) {
	switch s {
	case "vertex", "vert":
		return ShaderStageVertex, nil
	case "geometry", "geom":
		return ShaderStageGeometry, nil
	case "fragment", "frag":
		return ShaderStageFragment, nil
	case "compute", "comp":
		return ShaderStageCompute, nil
	}
	return 0, errors.Newf("string %s is not a valid ShaderStage", s)
}

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vert"
	case ShaderStageGeometry:
		return "geom"
	case ShaderStageFragment:
		return "frag"
	case ShaderStageCompute:
		return "comp"
	}
	return "unknown"
}

/** @brief Available attribute types. */
type ShaderAttributeType uint

const (
	ShaderAttribTypeFloat32   ShaderAttributeType = 0
	ShaderAttribTypeFloat32_2 ShaderAttributeType = 1
	ShaderAttribTypeFloat32_3 ShaderAttributeType = 2
	ShaderAttribTypeFloat32_4 ShaderAttributeType = 3
	ShaderAttribTypeMatrix4   ShaderAttributeType = 4
	ShaderAttribTypeInt8      ShaderAttributeType = 5
	ShaderAttribTypeUint8     ShaderAttributeType = 6
	ShaderAttribTypeInt16     ShaderAttributeType = 7
	ShaderAttribTypeUint16    ShaderAttributeType = 8
	ShaderAttribTypeInt32     ShaderAttributeType = 9
	ShaderAttribTypeUint32    ShaderAttributeType = 10
)

func ShaderAttributeTypeFromString(s string) (ShaderAttributeType, error) {
	switch s {
	case "f32", "float":
		return ShaderAttribTypeFloat32, nil
	case "vec2":
		return ShaderAttribTypeFloat32_2, nil
	case "vec3":
		return ShaderAttribTypeFloat32_3, nil
	case "vec4":
		return ShaderAttribTypeFloat32_4, nil
	case "mat4":
		return ShaderAttribTypeMatrix4, nil
	case "i8":
		return ShaderAttribTypeInt8, nil
	case "u8":
		return ShaderAttribTypeUint8, nil
	case "i16":
		return ShaderAttribTypeInt16, nil
	case "u16":
		return ShaderAttribTypeUint16, nil
	case "i32", "int":
		return ShaderAttribTypeInt32, nil
	case "u32":
		return ShaderAttribTypeUint32, nil
	}
	return 0, errors.Newf("string %s is not a valid ShaderAttribType", s)
}

// Size is the byte size of one attribute of this type.
func (t ShaderAttributeType) Size() uint32 {
	switch t {
	case ShaderAttribTypeInt8, ShaderAttribTypeUint8:
		return 1
	case ShaderAttribTypeInt16, ShaderAttribTypeUint16:
		return 2
	case ShaderAttribTypeFloat32, ShaderAttribTypeInt32, ShaderAttribTypeUint32:
		return 4
	case ShaderAttribTypeFloat32_2:
		return 8
	case ShaderAttribTypeFloat32_3:
		return 12
	case ShaderAttribTypeFloat32_4:
		return 16
	case ShaderAttribTypeMatrix4:
		return 64
	}
	return 0
}

/** @brief Available uniform types. */
type ShaderUniformType uint

const (
	ShaderUniformTypeFloat32   ShaderUniformType = 0
	ShaderUniformTypeFloat32_2 ShaderUniformType = 1
	ShaderUniformTypeFloat32_3 ShaderUniformType = 2
	ShaderUniformTypeFloat32_4 ShaderUniformType = 3
	ShaderUniformTypeInt8      ShaderUniformType = 4
	ShaderUniformTypeUint8     ShaderUniformType = 5
	ShaderUniformTypeInt16     ShaderUniformType = 6
	ShaderUniformTypeUint16    ShaderUniformType = 7
	ShaderUniformTypeInt32     ShaderUniformType = 8
	ShaderUniformTypeUint32    ShaderUniformType = 9
	ShaderUniformTypeMatrix4   ShaderUniformType = 10
	ShaderUniformTypeSampler   ShaderUniformType = 11
	ShaderUniformTypeCustom    ShaderUniformType = 255
)

func ShaderUniformTypeFromString(s string) (ShaderUniformType, error) {
	switch s {
	case "f32", "float":
		return ShaderUniformTypeFloat32, nil
	case "vec2":
		return ShaderUniformTypeFloat32_2, nil
	case "vec3":
		return ShaderUniformTypeFloat32_3, nil
	case "vec4":
		return ShaderUniformTypeFloat32_4, nil
	case "i8":
		return ShaderUniformTypeInt8, nil
	case "u8":
		return ShaderUniformTypeUint8, nil
	case "i16":
		return ShaderUniformTypeInt16, nil
	case "u16":
		return ShaderUniformTypeUint16, nil
	case "i32", "int":
		return ShaderUniformTypeInt32, nil
	case "u32":
		return ShaderUniformTypeUint32, nil
	case "mat4":
		return ShaderUniformTypeMatrix4, nil
	case "samp", "sampler":
		return ShaderUniformTypeSampler, nil
	case "custom":
		return ShaderUniformTypeCustom, nil
	}
	return 0, errors.Newf("string %s is not a valid ShaderUniformType", s)
}

// Size is the byte size of one uniform of this type. Samplers take no buffer space.
func (t ShaderUniformType) Size() (uint16, error) {
	switch t {
	case ShaderUniformTypeInt8, ShaderUniformTypeUint8:
		return 1, nil
	case ShaderUniformTypeInt16, ShaderUniformTypeUint16:
		return 2, nil
	case ShaderUniformTypeFloat32, ShaderUniformTypeInt32, ShaderUniformTypeUint32:
		return 4, nil
	case ShaderUniformTypeFloat32_2:
		return 8, nil
	case ShaderUniformTypeFloat32_3:
		return 12, nil
	case ShaderUniformTypeFloat32_4:
		return 16, nil
	case ShaderUniformTypeMatrix4:
		return 64, nil
	case ShaderUniformTypeSampler:
		return 0, nil
	}
	return 0, errors.Newf("uniform type %d has no fixed size", t)
}

/**
 * @brief Defines shader scope, which indicates how
 * often it gets updated.
 */
type ShaderScope int

const (
	/** @brief Global shader scope, generally updated once per frame. */
	ShaderScopeGlobal ShaderScope = 0
	/** @brief Instance shader scope, generally updated "per-instance" of the shader. */
	ShaderScopeInstance ShaderScope = 1
	/** @brief Local shader scope, generally updated per-object */
	ShaderScopeLocal ShaderScope = 2
)

func ShaderScopeFromInt(i int) (ShaderScope, error) {
	switch ShaderScope(i) {
	case ShaderScopeGlobal, ShaderScopeInstance, ShaderScopeLocal:
		return ShaderScope(i), nil
	}
	return 0, errors.Newf("%d is not a valid shader scope (0=global, 1=instance, 2=local)", i)
}

func (s ShaderScope) String() string {
	switch s {
	case ShaderScopeGlobal:
		return "global"
	case ShaderScopeInstance:
		return "instance"
	case ShaderScopeLocal:
		return "local"
	}
	return "unknown"
}

/** @brief Configuration for an attribute. */
type ShaderAttributeConfig struct {
	/** @brief The name of the attribute. */
	Name string
	/** @brief The size of the attribute. */
	Size uint8
	/** @brief The type of the attribute. */
	ShaderAttributeType ShaderAttributeType
}

/** @brief Configuration for a uniform. */
type ShaderUniformConfig struct {
	/** @brief The name of the uniform. */
	Name string
	/** @brief The size of the uniform. */
	Size uint8
	/** @brief The location of the uniform. */
	Location uint32
	/** @brief The type of the uniform. */
	ShaderUniformType ShaderUniformType
	/** @brief The scope of the uniform. */
	Scope ShaderScope
}

/**
 * @brief Configuration for a shader. Typically created and
 * destroyed by the shader resource loader, and set to the
 * properties found in a .shadercfg resource file.
 */
type ShaderConfig struct {
	/** @brief The name of the shader to be created. */
	Name string
	/** @brief The face cull mode to be used. Default is BACK if not supplied. */
	CullMode   FaceCullMode
	DepthTest  bool
	DepthWrite bool
	/** @brief The collection of attributes. */
	Attributes []*ShaderAttributeConfig
	/** @brief The collection of uniforms. */
	Uniforms []*ShaderUniformConfig
	/** @brief The name of the renderpass used by this shader. */
	RenderpassName string
	/** @brief The collection of stages. */
	Stages []ShaderStage
	/** @brief The collection of stage names. Must align with stages array. */
	StageNames []string
	/** @brief The collection of stage file names to be loaded (one per stage). Must align with stages array. */
	StageFilenames []string
	/** @brief Path of the .shadercfg this config was read from, if any. */
	SourcePath string
}
