package systems

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

type fakeGeometryBackend struct {
	uploads   map[string]int
	destroyed []string
	nextSlot  uint32
	createErr error
}

func (f *fakeGeometryBackend) CreateGeometry(geometry *metadata.Geometry, vertices []metadata.Vertex3D, indices []uint32) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.uploads == nil {
		f.uploads = make(map[string]int)
	}
	if geometry.InternalID == metadata.InvalidID {
		geometry.InternalID = f.nextSlot
		f.nextSlot++
	}
	geometry.Generation++
	f.uploads[geometry.Name] = len(indices)
	return nil
}

func (f *fakeGeometryBackend) DestroyGeometry(geometry *metadata.Geometry) {
	f.destroyed = append(f.destroyed, geometry.Name)
}

func TestGeneratePlaneConfig(t *testing.T) {
	config := GeneratePlaneConfig(4, 2, 2, 1, 2, 1, "floor")
	if len(config.Vertices) != 8 || len(config.Indices) != 12 {
		t.Fatalf("unexpected counts %d/%d", len(config.Vertices), len(config.Indices))
	}
	if config.Name != "floor" {
		t.Fatalf("unexpected name %q", config.Name)
	}
	first := config.Vertices[0:4]
	want := []mgl32.Vec3{{-2, -1, 0}, {0, 1, 0}, {-2, 1, 0}, {0, -1, 0}}
	for i, v := range first {
		if !vec3Near(v.Position, want[i]) {
			t.Fatalf("vertex %d at %v, want %v", i, v.Position, want[i])
		}
		if v.Normal != (mgl32.Vec3{0, 0, 1}) {
			t.Fatalf("vertex %d normal %v", i, v.Normal)
		}
	}
	if uv := config.Vertices[5].Texcoord; !uv.ApproxEqual(mgl32.Vec2{2, 1}) {
		t.Fatalf("second segment max uv %v", uv)
	}
	wantIndices := []uint32{0, 1, 2, 0, 3, 1, 4, 5, 6, 4, 7, 5}
	for i, idx := range config.Indices {
		if idx != wantIndices[i] {
			t.Fatalf("index %d = %d, want %d", i, idx, wantIndices[i])
		}
	}
	if !vec3Near(config.MinExtents, mgl32.Vec3{-2, -1, 0}) || !vec3Near(config.MaxExtents, mgl32.Vec3{2, 1, 0}) {
		t.Fatalf("unexpected extents %v %v", config.MinExtents, config.MaxExtents)
	}
}

func TestGeneratePlaneConfigDefaults(t *testing.T) {
	config := GeneratePlaneConfig(0, 0, 0, 0, 0, 0, "")
	if len(config.Vertices) != 4 || len(config.Indices) != 6 {
		t.Fatalf("unexpected counts %d/%d", len(config.Vertices), len(config.Indices))
	}
	if config.Name != metadata.DefaultGeometryName {
		t.Fatalf("unexpected name %q", config.Name)
	}
	if !vec3Near(config.MaxExtents, mgl32.Vec3{0.5, 0.5, 0}) {
		t.Fatalf("zero dimensions should default to one, got %v", config.MaxExtents)
	}
}

func TestGenerateCubeConfig(t *testing.T) {
	config := GenerateCubeConfig(2, 4, 6, 1, 1, "crate")
	if len(config.Vertices) != 24 || len(config.Indices) != 36 {
		t.Fatalf("unexpected counts %d/%d", len(config.Vertices), len(config.Indices))
	}
	half := mgl32.Vec3{1, 2, 3}
	if !vec3Near(config.MaxExtents, half) || !vec3Near(config.MinExtents, half.Mul(-1)) {
		t.Fatalf("unexpected extents %v %v", config.MinExtents, config.MaxExtents)
	}
	for i, v := range config.Vertices {
		for axis := 0; axis < 3; axis++ {
			if v.Position[axis] != half[axis] && v.Position[axis] != -half[axis] {
				t.Fatalf("vertex %d is not on a corner: %v", i, v.Position)
			}
		}
		// Every vertex lies on the face its normal points out of.
		n := v.Normal
		for axis := 0; axis < 3; axis++ {
			if n[axis] != 0 && v.Position[axis] != n[axis]*half[axis] {
				t.Fatalf("vertex %d at %v is off its face %v", i, v.Position, n)
			}
		}
	}
	for face := 0; face < 6; face++ {
		base := uint32(face * 4)
		got := config.Indices[face*6 : face*6+6]
		want := []uint32{base, base + 1, base + 2, base, base + 3, base + 1}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("face %d indices %v, want %v", face, got, want)
			}
		}
	}
}

func TestGeometrySystemDefault(t *testing.T) {
	backend := &fakeGeometryBackend{}
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	if err := gs.Initialize(); err != nil {
		t.Fatal(err)
	}
	def := gs.GetDefault()
	if def == nil || def.Name != metadata.DefaultGeometryName || def.InternalID != 0 || def.Generation != 1 {
		t.Fatalf("unexpected default geometry %+v", def)
	}
	if backend.uploads[metadata.DefaultGeometryName] != 6 {
		t.Fatal("default plane not uploaded")
	}
	if !vec3Near(def.Extents.Max, mgl32.Vec3{5, 5, 0}) {
		t.Fatalf("unexpected default extents %v", def.Extents)
	}
}

func TestGeometrySystemAcquireRelease(t *testing.T) {
	backend := &fakeGeometryBackend{}
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 2}, backend)
	if err != nil {
		t.Fatal(err)
	}

	cube, err := gs.AcquireFromConfig(GenerateCubeConfig(1, 1, 1, 1, 1, "cube"), true)
	if err != nil {
		t.Fatal(err)
	}
	if cube.ID != 0 || cube.InternalID == metadata.InvalidID {
		t.Fatalf("unexpected cube %+v", cube)
	}
	again, err := gs.AcquireByID(cube.ID)
	if err != nil || again != cube {
		t.Fatalf("AcquireByID = %v, %v", again, err)
	}
	if _, err := gs.AcquireByID(7); err == nil {
		t.Fatal("expected an error for an unknown id")
	}

	plane, err := gs.AcquireFromConfig(GeneratePlaneConfig(1, 1, 1, 1, 1, 1, "plane"), false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gs.AcquireFromConfig(GeneratePlaneConfig(1, 1, 1, 1, 1, 1, "extra"), true); err == nil {
		t.Fatal("expected the geometry limit to be enforced")
	}

	gs.Release(cube)
	if len(backend.destroyed) != 0 {
		t.Fatal("cube destroyed while still referenced")
	}
	gs.Release(cube)
	if len(backend.destroyed) != 1 || backend.destroyed[0] != "cube" {
		t.Fatalf("expected cube destroyed, got %v", backend.destroyed)
	}
	if cube.ID != metadata.InvalidID || cube.InternalID != metadata.InvalidID {
		t.Fatal("destroyed geometry keeps its ids")
	}

	gs.Release(plane)
	if len(backend.destroyed) != 1 {
		t.Fatal("geometry without auto release was destroyed")
	}

	gs.Shutdown()
	if len(backend.destroyed) != 2 || backend.destroyed[1] != "plane" {
		t.Fatalf("expected plane destroyed on shutdown, got %v", backend.destroyed)
	}
}

func TestGeometrySystemUploadFailure(t *testing.T) {
	fail := errors.New("out of device memory")
	backend := &fakeGeometryBackend{createErr: fail}
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 1}, backend)
	if err != nil {
		t.Fatal(err)
	}
	if err := gs.Initialize(); !errors.Is(err, fail) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if _, err := gs.AcquireFromConfig(GenerateCubeConfig(1, 1, 1, 1, 1, "cube"), true); !errors.Is(err, fail) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if gs.RegisteredGeometries[0] != nil {
		t.Fatal("failed geometry must not hold a slot")
	}
	if _, err := NewGeometrySystem(&GeometrySystemConfig{}, backend); err == nil {
		t.Fatal("expected an error for zero capacity")
	}
}
