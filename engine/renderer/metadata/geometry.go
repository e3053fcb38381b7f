package metadata

import (
	"github.com/go-gl/mathgl/mgl32"
)

/** @brief The name of the default geometry. */
const DefaultGeometryName string = "default"

/** @brief A single vertex as laid out for the builtin world shader. */
type Vertex3D struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Texcoord mgl32.Vec2
}

/** @brief Size of one Vertex3D in bytes. */
const Vertex3DSize uint32 = 4 * (3 + 3 + 2)

type Extents3D struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

/**
 * @brief Represents the configuration for a geometry.
 */
type GeometryConfig struct {
	/** @brief An array of Vertices. */
	Vertices []Vertex3D
	/** @brief An array of Indices. */
	Indices []uint32

	Center     mgl32.Vec3
	MinExtents mgl32.Vec3
	MaxExtents mgl32.Vec3

	/** @brief The Name of the geometry. */
	Name string
}

/**
 * @brief Represents actual geometry in the world.
 */
type Geometry struct {
	/** @brief The geometry identifier. */
	ID uint32
	/** @brief The internal geometry identifier, used by the renderer backend to map to internal resources. */
	InternalID uint32
	/** @brief The geometry generation. Incremented every time the geometry changes. */
	Generation uint16
	/** @brief The center of the geometry in local coordinates. */
	Center mgl32.Vec3
	/** @brief The extents of the geometry in local coordinates. */
	Extents Extents3D
	/** @brief The geometry name. */
	Name string
}

type GeometryRenderData struct {
	Model    mgl32.Mat4
	Geometry *Geometry
	// Instance whose uniforms and textures are applied before the draw.
	InstanceID InstanceID
}
