package metadata

import (
	"github.com/go-gl/mathgl/mgl32"
)

type RendererBackendConfig struct {
	/** @brief The name of the application */
	ApplicationName string
	/** @brief Enables the validation layers and the debug report callback. */
	EnableValidation bool
	/** @brief Forces FIFO presentation. */
	VSync bool
	/** @brief Nanoseconds to wait on frame fences, 0 means forever. */
	FrameTimeoutNS uint64
	/** @brief The renderpasses to create, chained in declaration order. */
	RenderPassConfigs []*RenderPassConfig
}

/**
 * @brief The types of clearing to be done on a renderpass.
 * Can be combined together for multiple clearing functions.
 */
type RenderpassClearFlag uint8

const (
	/** @brief No clearing should be done. */
	RENDERPASS_CLEAR_NONE_FLAG RenderpassClearFlag = 0x0
	/** @brief Clear the colour buffer. */
	RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG RenderpassClearFlag = 0x1
	/** @brief Clear the depth buffer. */
	RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG RenderpassClearFlag = 0x2
	/** @brief Clear the stencil buffer. */
	RENDERPASS_CLEAR_STENCIL_BUFFER_FLAG RenderpassClearFlag = 0x4
)

func (f RenderpassClearFlag) Has(flag RenderpassClearFlag) bool {
	return f&flag != 0
}

const BUILTIN_RENDERPASS_WORLD string = "Renderpass.Builtin.World"

type RenderPassConfig struct {
	/** @brief The Name of this renderpass. */
	Name string
	/** @brief The render area as x, y, width, height. Zero width/height follows the framebuffer. */
	RenderArea mgl32.Vec4
	/** @brief The clear colour used for this renderpass. */
	ClearColour mgl32.Vec4
	/** @brief The clear flags for this renderpass. */
	ClearFlags RenderpassClearFlag
	Depth      float32
	Stencil    uint32
	/** @brief Set if another pass renders into the same images before this one. */
	HasPrevPass bool
	/** @brief Set if another pass renders into the same images after this one. */
	HasNextPass bool
}

/**
 * @brief A structure which is generated by the application and sent once
 * to the renderer to render a given frame.
 */
type RenderPacket struct {
	DeltaTime float64
	/** @brief The Geometries to be drawn with the world shader. */
	Geometries []*GeometryRenderData
}
