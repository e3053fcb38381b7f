package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

type GeometrySystemConfig struct {
	/**
	 * @brief Max number of geometries that can be loaded at once.
	 * NOTE: Should be significantly greater than the number of static meshes because
	 * the there can and will be more than one of these per mesh.
	 */
	MaxGeometryCount uint32
}

// GeometryBackend uploads vertex and index data.
type GeometryBackend interface {
	CreateGeometry(geometry *metadata.Geometry, vertices []metadata.Vertex3D, indices []uint32) error
	DestroyGeometry(geometry *metadata.Geometry)
}

type geometryReference struct {
	ReferenceCount uint64
	Geometry       *metadata.Geometry
	AutoRelease    bool
}

type GeometrySystem struct {
	Config          *GeometrySystemConfig
	DefaultGeometry *metadata.Geometry
	// Array of registered geometries, indexed by geometry id.
	RegisteredGeometries []*geometryReference
	backend              GeometryBackend
}

func NewGeometrySystem(config *GeometrySystemConfig, backend GeometryBackend) (*GeometrySystem, error) {
	if config.MaxGeometryCount == 0 {
		err := errors.New("func NewGeometrySystem - config.MaxGeometryCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}
	return &GeometrySystem{
		Config:               config,
		RegisteredGeometries: make([]*geometryReference, config.MaxGeometryCount),
		backend:              backend,
	}, nil
}

// Initialize uploads the default geometry, a 10x10 plane.
func (gs *GeometrySystem) Initialize() error {
	config := GeneratePlaneConfig(10, 10, 1, 1, 1, 1, metadata.DefaultGeometryName)
	gs.DefaultGeometry = &metadata.Geometry{
		ID:         metadata.InvalidID,
		InternalID: metadata.InvalidID,
		Name:       config.Name,
	}
	if err := gs.upload(config, gs.DefaultGeometry); err != nil {
		core.LogError("Failed to create default geometry. Application cannot continue.")
		return err
	}
	return nil
}

/**
 * @brief Shuts down the geometry system, destroying every registered geometry.
 */
func (gs *GeometrySystem) Shutdown() {
	for i, ref := range gs.RegisteredGeometries {
		if ref == nil {
			continue
		}
		gs.destroyGeometry(ref.Geometry)
		gs.RegisteredGeometries[i] = nil
	}
	if gs.DefaultGeometry != nil {
		gs.destroyGeometry(gs.DefaultGeometry)
		gs.DefaultGeometry = nil
	}
}

/**
 * @brief Acquires an existing geometry by id.
 */
func (gs *GeometrySystem) AcquireByID(id uint32) (*metadata.Geometry, error) {
	if id < uint32(len(gs.RegisteredGeometries)) && gs.RegisteredGeometries[id] != nil {
		ref := gs.RegisteredGeometries[id]
		ref.ReferenceCount++
		return ref.Geometry, nil
	}
	err := errors.Newf("func AcquireByID cannot load invalid geometry id %d", id)
	core.LogError("%s", err)
	return nil, err
}

/**
 * @brief Registers and acquires a new geometry using the given config.
 *
 * @param autoRelease Indicates if the acquired geometry should be unloaded when its reference count reaches 0.
 */
func (gs *GeometrySystem) AcquireFromConfig(config *metadata.GeometryConfig, autoRelease bool) (*metadata.Geometry, error) {
	id := metadata.InvalidID
	for i, ref := range gs.RegisteredGeometries {
		if ref == nil {
			id = uint32(i)
			break
		}
	}
	if id == metadata.InvalidID {
		err := errors.New("unable to obtain free slot for geometry. Adjust configuration to allow more space")
		core.LogError("%s", err)
		return nil, err
	}

	geometry := &metadata.Geometry{
		ID:         id,
		InternalID: metadata.InvalidID,
		Name:       config.Name,
	}
	if err := gs.upload(config, geometry); err != nil {
		core.LogError("failed to create geometry `%s`", config.Name)
		return nil, err
	}
	gs.RegisteredGeometries[id] = &geometryReference{
		ReferenceCount: 1,
		Geometry:       geometry,
		AutoRelease:    autoRelease,
	}
	return geometry, nil
}

/**
 * @brief Releases a reference to the provided geometry.
 */
func (gs *GeometrySystem) Release(geometry *metadata.Geometry) {
	if geometry == nil || geometry.ID >= uint32(len(gs.RegisteredGeometries)) {
		core.LogWarn("geometry system Release cannot release invalid geometry id. Nothing was done.")
		return
	}
	ref := gs.RegisteredGeometries[geometry.ID]
	if ref == nil || ref.Geometry != geometry {
		core.LogError("Geometry id mismatch. Check registration logic, as this should never occur.")
		return
	}
	if ref.ReferenceCount > 0 {
		ref.ReferenceCount--
	}
	if ref.ReferenceCount == 0 && ref.AutoRelease {
		gs.RegisteredGeometries[geometry.ID] = nil
		gs.destroyGeometry(geometry)
	}
}

func (gs *GeometrySystem) GetDefault() *metadata.Geometry {
	return gs.DefaultGeometry
}

func (gs *GeometrySystem) upload(config *metadata.GeometryConfig, geometry *metadata.Geometry) error {
	// Send the geometry off to the renderer to be uploaded to the GPU.
	if err := gs.backend.CreateGeometry(geometry, config.Vertices, config.Indices); err != nil {
		geometry.InternalID = metadata.InvalidID
		return err
	}
	// Copy over extents, center, etc.
	geometry.Center = config.Center
	geometry.Extents.Min = config.MinExtents
	geometry.Extents.Max = config.MaxExtents
	return nil
}

func (gs *GeometrySystem) destroyGeometry(geometry *metadata.Geometry) {
	gs.backend.DestroyGeometry(geometry)
	geometry.InternalID = metadata.InvalidID
	geometry.ID = metadata.InvalidID
}

/**
 * @brief Generates configuration for plane geometries given the provided parameters.
 * Zero dimensions, segment counts or tiling default to one.
 *
 * @param width The overall width of the plane.
 * @param height The overall height of the plane.
 * @param xSegmentCount The number of segments along the x-axis in the plane.
 * @param ySegmentCount The number of segments along the y-axis in the plane.
 * @param tileX The number of times the texture should tile across the plane on the x-axis.
 * @param tileY The number of times the texture should tile across the plane on the y-axis.
 */
func GeneratePlaneConfig(width, height float32, xSegmentCount, ySegmentCount uint32, tileX, tileY float32, name string) *metadata.GeometryConfig {
	width = nonZero("width", width)
	height = nonZero("height", height)
	tileX = nonZero("tileX", tileX)
	tileY = nonZero("tileY", tileY)
	if xSegmentCount < 1 {
		core.LogWarn("xSegmentCount must be a positive number. Defaulting to one.")
		xSegmentCount = 1
	}
	if ySegmentCount < 1 {
		core.LogWarn("ySegmentCount must be a positive number. Defaulting to one.")
		ySegmentCount = 1
	}

	segments := xSegmentCount * ySegmentCount
	config := &metadata.GeometryConfig{
		Vertices: make([]metadata.Vertex3D, segments*4), // 4 verts per segment
		Indices:  make([]uint32, segments*6),            // 6 indices per segment
	}

	segWidth := width / float32(xSegmentCount)
	segHeight := height / float32(ySegmentCount)
	halfWidth := width * 0.5
	halfHeight := height * 0.5
	normal := mgl32.Vec3{0, 0, 1}
	for y := uint32(0); y < ySegmentCount; y++ {
		for x := uint32(0); x < xSegmentCount; x++ {
			minX := (float32(x) * segWidth) - halfWidth
			minY := (float32(y) * segHeight) - halfHeight
			maxX := minX + segWidth
			maxY := minY + segHeight
			minUVX := (float32(x) / float32(xSegmentCount)) * tileX
			minUVY := (float32(y) / float32(ySegmentCount)) * tileY
			maxUVX := (float32(x+1) / float32(xSegmentCount)) * tileX
			maxUVY := (float32(y+1) / float32(ySegmentCount)) * tileY

			vOffset := ((y * xSegmentCount) + x) * 4
			config.Vertices[vOffset+0] = metadata.Vertex3D{Position: mgl32.Vec3{minX, minY, 0}, Normal: normal, Texcoord: mgl32.Vec2{minUVX, minUVY}}
			config.Vertices[vOffset+1] = metadata.Vertex3D{Position: mgl32.Vec3{maxX, maxY, 0}, Normal: normal, Texcoord: mgl32.Vec2{maxUVX, maxUVY}}
			config.Vertices[vOffset+2] = metadata.Vertex3D{Position: mgl32.Vec3{minX, maxY, 0}, Normal: normal, Texcoord: mgl32.Vec2{minUVX, maxUVY}}
			config.Vertices[vOffset+3] = metadata.Vertex3D{Position: mgl32.Vec3{maxX, minY, 0}, Normal: normal, Texcoord: mgl32.Vec2{maxUVX, minUVY}}

			iOffset := ((y * xSegmentCount) + x) * 6
			writeQuadIndices(config.Indices[iOffset:iOffset+6], vOffset)
		}
	}

	config.MinExtents = mgl32.Vec3{-halfWidth, -halfHeight, 0}
	config.MaxExtents = mgl32.Vec3{halfWidth, halfHeight, 0}
	config.Name = geometryName(name)
	return config
}

// Corners of each cube face in the order min/min, max/max, min/max, max/min of
// the face's own uv space, as signs of the half extents.
var cubeFaces = [6]struct {
	normal  mgl32.Vec3
	corners [4]mgl32.Vec3
}{
	// Front
	{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-1, -1, 1}, {1, 1, 1}, {-1, 1, 1}, {1, -1, 1}}},
	// Back
	{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{1, -1, -1}, {-1, 1, -1}, {1, 1, -1}, {-1, -1, -1}}},
	// Left
	{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-1, -1, -1}, {-1, 1, 1}, {-1, 1, -1}, {-1, -1, 1}}},
	// Right
	{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{1, -1, 1}, {1, 1, -1}, {1, 1, 1}, {1, -1, -1}}},
	// Bottom
	{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{1, -1, 1}, {-1, -1, -1}, {1, -1, -1}, {-1, -1, 1}}},
	// Top
	{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-1, 1, 1}, {1, 1, -1}, {-1, 1, -1}, {1, 1, 1}}},
}

/**
 * @brief Generates configuration for a cube centred on the origin. Zero
 * dimensions or tiling default to one.
 */
func GenerateCubeConfig(width, height, depth, tileX, tileY float32, name string) *metadata.GeometryConfig {
	width = nonZero("width", width)
	height = nonZero("height", height)
	depth = nonZero("depth", depth)
	tileX = nonZero("tileX", tileX)
	tileY = nonZero("tileY", tileY)

	half := mgl32.Vec3{width * 0.5, height * 0.5, depth * 0.5}
	uvs := [4]mgl32.Vec2{{0, 0}, {tileX, tileY}, {0, tileY}, {tileX, 0}}

	config := &metadata.GeometryConfig{
		Vertices: make([]metadata.Vertex3D, 4*6), // 4 verts per side, 6 sides
		Indices:  make([]uint32, 6*6),            // 6 indices per side, 6 sides
		// Always 0 since min/max of each axis are -/+ half of the size.
		Center:     mgl32.Vec3{},
		MinExtents: half.Mul(-1),
		MaxExtents: half,
	}
	for face, f := range cubeFaces {
		vOffset := uint32(face * 4)
		for corner, sign := range f.corners {
			config.Vertices[vOffset+uint32(corner)] = metadata.Vertex3D{
				Position: mgl32.Vec3{sign[0] * half[0], sign[1] * half[1], sign[2] * half[2]},
				Normal:   f.normal,
				Texcoord: uvs[corner],
			}
		}
		writeQuadIndices(config.Indices[face*6:face*6+6], vOffset)
	}

	config.Name = geometryName(name)
	return config
}

// writeQuadIndices writes the two counter-clockwise triangles of a quad.
func writeQuadIndices(dst []uint32, vOffset uint32) {
	dst[0] = vOffset + 0
	dst[1] = vOffset + 1
	dst[2] = vOffset + 2
	dst[3] = vOffset + 0
	dst[4] = vOffset + 3
	dst[5] = vOffset + 1
}

func nonZero(name string, v float32) float32 {
	if v == 0 {
		core.LogWarn("%s must be nonzero. Defaulting to one.", name)
		return 1
	}
	return v
}

func geometryName(name string) string {
	if len(name) > 0 {
		return name
	}
	return metadata.DefaultGeometryName
}
