package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

// MeshSystem groups geometries under one transform and one shader instance.
type MeshSystem struct {
	geometrySystem *GeometrySystem
	meshes         map[uint32]*metadata.Mesh
	nextID         uint32
}

func NewMeshSystem(gs *GeometrySystem) (*MeshSystem, error) {
	if gs == nil {
		err := errors.New("func NewMeshSystem - geometry system is required")
		core.LogError("%s", err)
		return nil, err
	}
	return &MeshSystem{
		geometrySystem: gs,
		meshes:         make(map[uint32]*metadata.Mesh),
	}, nil
}

/**
 * @brief Releases the geometries of every mesh still loaded.
 */
func (ms *MeshSystem) Shutdown() error {
	for _, mesh := range ms.meshes {
		ms.Unload(mesh)
	}
	return nil
}

/**
 * @brief Uploads one geometry per config and returns a mesh holding them.
 * Geometries are auto-released with the mesh. Nothing is kept if any upload fails.
 */
func (ms *MeshSystem) Load(configs []*metadata.GeometryConfig, transform mgl32.Mat4, instance metadata.InstanceID) (*metadata.Mesh, error) {
	if len(configs) == 0 {
		err := errors.New("a mesh needs at least one geometry")
		core.LogError("%s", err)
		return nil, err
	}
	mesh := &metadata.Mesh{
		UniqueID:   ms.nextID,
		Geometries: make([]*metadata.Geometry, 0, len(configs)),
		Transform:  transform,
		InstanceID: instance,
	}
	for _, config := range configs {
		g, err := ms.geometrySystem.AcquireFromConfig(config, true)
		if err != nil {
			for _, acquired := range mesh.Geometries {
				ms.geometrySystem.Release(acquired)
			}
			return nil, errors.Wrapf(err, "mesh geometry `%s`", config.Name)
		}
		mesh.Geometries = append(mesh.Geometries, g)
	}
	ms.meshes[mesh.UniqueID] = mesh
	ms.nextID++
	return mesh, nil
}

func (ms *MeshSystem) Unload(mesh *metadata.Mesh) {
	if mesh == nil {
		return
	}
	if _, ok := ms.meshes[mesh.UniqueID]; !ok {
		core.LogWarn("tried to unload unknown mesh %d", mesh.UniqueID)
		return
	}
	for _, g := range mesh.Geometries {
		ms.geometrySystem.Release(g)
	}
	mesh.Geometries = nil
	mesh.Generation++
	delete(ms.meshes, mesh.UniqueID)
}

// AppendRenderData adds one draw per geometry of mesh to packet.
func AppendRenderData(packet *metadata.RenderPacket, mesh *metadata.Mesh) {
	for _, g := range mesh.Geometries {
		packet.Geometries = append(packet.Geometries, &metadata.GeometryRenderData{
			Model:      mesh.Transform,
			Geometry:   g,
			InstanceID: mesh.InstanceID,
		})
	}
}
