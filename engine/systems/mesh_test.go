package systems

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

func newTestMeshSystem(t *testing.T, capacity uint32) (*MeshSystem, *GeometrySystem, *fakeGeometryBackend) {
	t.Helper()
	backend := &fakeGeometryBackend{}
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: capacity}, backend)
	if err != nil {
		t.Fatal(err)
	}
	if err := gs.Initialize(); err != nil {
		t.Fatal(err)
	}
	ms, err := NewMeshSystem(gs)
	if err != nil {
		t.Fatal(err)
	}
	return ms, gs, backend
}

func TestMeshSystemLoadUnload(t *testing.T) {
	ms, gs, backend := newTestMeshSystem(t, 4)
	transform := mgl32.Translate3D(1, 2, 3)
	mesh, err := ms.Load([]*metadata.GeometryConfig{
		GenerateCubeConfig(1, 1, 1, 1, 1, "cube"),
		GeneratePlaneConfig(1, 1, 1, 1, 1, 1, "lid"),
	}, transform, metadata.InvalidInstanceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Geometries) != 2 {
		t.Fatalf("expected 2 geometries, got %d", len(mesh.Geometries))
	}

	packet := &metadata.RenderPacket{}
	AppendRenderData(packet, mesh)
	if len(packet.Geometries) != 2 || packet.Geometries[1].Geometry.Name != "lid" || packet.Geometries[0].Model != transform {
		t.Fatalf("unexpected render data %+v", packet.Geometries)
	}

	ms.Unload(mesh)
	if mesh.Generation != 1 || mesh.Geometries != nil {
		t.Fatalf("mesh not cleared: %+v", mesh)
	}
	if len(backend.destroyed) != 2 || gs.RegisteredGeometries[0] != nil || gs.RegisteredGeometries[1] != nil {
		t.Fatalf("geometries not released: %v", backend.destroyed)
	}
	// A second unload is ignored.
	ms.Unload(mesh)
	if len(backend.destroyed) != 2 {
		t.Fatalf("double unload destroyed again: %v", backend.destroyed)
	}
}

func TestMeshSystemLoadFailureReleases(t *testing.T) {
	ms, gs, backend := newTestMeshSystem(t, 1)
	_, err := ms.Load([]*metadata.GeometryConfig{
		GenerateCubeConfig(1, 1, 1, 1, 1, "first"),
		GenerateCubeConfig(1, 1, 1, 1, 1, "second"),
	}, mgl32.Ident4(), metadata.InvalidInstanceID)
	if err == nil {
		t.Fatal("expected the second geometry to exhaust the system")
	}
	if gs.RegisteredGeometries[0] != nil || len(backend.destroyed) != 1 {
		t.Fatalf("first geometry leaked: %v", backend.destroyed)
	}
	if _, err := ms.Load(nil, mgl32.Ident4(), metadata.InvalidInstanceID); err == nil {
		t.Fatal("expected an empty mesh to be rejected")
	}
}

func TestMeshSystemShutdown(t *testing.T) {
	ms, _, backend := newTestMeshSystem(t, 4)
	for _, name := range []string{"a", "b"} {
		if _, err := ms.Load([]*metadata.GeometryConfig{GenerateCubeConfig(1, 1, 1, 1, 1, name)}, mgl32.Ident4(), metadata.InvalidInstanceID); err != nil {
			t.Fatal(err)
		}
	}
	if err := ms.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if len(backend.destroyed) != 2 || len(ms.meshes) != 0 {
		t.Fatalf("expected both meshes unloaded, destroyed %v", backend.destroyed)
	}
	if _, err := NewMeshSystem(nil); err == nil {
		t.Fatal("expected a missing geometry system to be rejected")
	}
}
