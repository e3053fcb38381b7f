package renderer

import (
	"os"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/tundra/engine/containers"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

func TestMain(m *testing.M) {
	core.SetDefaultLogger(core.NewDiscardLogger())
	os.Exit(m.Run())
}

type fakeBackend struct {
	calls     []string
	beginErr  error
	endErr    error
	drawErr   error
	resized   [][2]uint32
	uniforms  map[string][]byte
	bound     []metadata.InstanceID
	initErr   error
	shutdowns int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{uniforms: make(map[string][]byte)}
}

func (f *fakeBackend) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeBackend) Initialize(appName string, w, h uint32) error { f.record("Initialize"); return f.initErr }
func (f *fakeBackend) Shutdown() error                              { f.shutdowns++; return nil }
func (f *fakeBackend) Resized(w, h uint32)                          { f.resized = append(f.resized, [2]uint32{w, h}) }
func (f *fakeBackend) BeginFrame(float64) error                     { f.record("BeginFrame"); return f.beginErr }
func (f *fakeBackend) EndFrame(float64) error                       { f.record("EndFrame"); return f.endErr }
func (f *fakeBackend) WaitIdle() error                              { return nil }

func (f *fakeBackend) CreateGeometry(*metadata.Geometry, []metadata.Vertex3D, []uint32) error {
	return nil
}
func (f *fakeBackend) DestroyGeometry(*metadata.Geometry) {}
func (f *fakeBackend) DrawGeometry(data *metadata.GeometryRenderData) error {
	f.record("DrawGeometry:" + data.Geometry.Name)
	return f.drawErr
}

func (f *fakeBackend) TextureCreate([]byte, *metadata.Texture) error         { return nil }
func (f *fakeBackend) TextureDestroy(*metadata.Texture)                      {}
func (f *fakeBackend) TextureMapAcquireResources(*metadata.TextureMap) error { return nil }
func (f *fakeBackend) TextureMapReleaseResources(*metadata.TextureMap)       {}

func (f *fakeBackend) ShaderCreate(*metadata.Shader, *metadata.ShaderConfig, [][]byte) error {
	return nil
}
func (f *fakeBackend) ShaderInitialize(*metadata.Shader) error { return nil }
func (f *fakeBackend) ShaderReload(*metadata.Shader, *metadata.ShaderConfig, [][]byte) error {
	return nil
}
func (f *fakeBackend) ShaderDestroy(*metadata.Shader)             { f.record("ShaderDestroy") }
func (f *fakeBackend) ShaderUse(*metadata.Shader) error           { f.record("ShaderUse"); return nil }
func (f *fakeBackend) ShaderBindGlobals(*metadata.Shader) error   { f.record("BindGlobals"); return nil }
func (f *fakeBackend) ShaderApplyGlobals(*metadata.Shader) error  { f.record("ApplyGlobals"); return nil }
func (f *fakeBackend) ShaderApplyInstance(*metadata.Shader) error { f.record("ApplyInstance"); return nil }
func (f *fakeBackend) ShaderBindInstance(_ *metadata.Shader, id metadata.InstanceID) error {
	f.record("BindInstance")
	f.bound = append(f.bound, id)
	return nil
}
func (f *fakeBackend) ShaderAcquireInstanceResources(*metadata.Shader, []*metadata.TextureMap) (metadata.InstanceID, error) {
	return metadata.InvalidInstanceID, nil
}
func (f *fakeBackend) ShaderReleaseInstanceResources(*metadata.Shader, metadata.InstanceID) error {
	return nil
}
func (f *fakeBackend) ShaderSetUniform(_ *metadata.Shader, uniform *metadata.ShaderUniform, value []byte) error {
	f.record("SetUniform:" + uniform.Name)
	f.uniforms[uniform.Name] = append([]byte(nil), value...)
	return nil
}
func (f *fakeBackend) ShaderSetSampler(*metadata.Shader, *metadata.ShaderUniform, *metadata.TextureMap) error {
	return nil
}

func worldShader() *metadata.Shader {
	shader := metadata.NewShader(metadata.BUILTIN_SHADER_NAME_WORLD, 4)
	shader.Uniforms = []metadata.ShaderUniform{
		{Name: UniformProjection, Size: 64, Scope: metadata.ShaderScopeGlobal, ShaderUniformType: metadata.ShaderUniformTypeMatrix4},
		{Name: UniformView, Offset: 64, Size: 64, Index: 1, Scope: metadata.ShaderScopeGlobal, ShaderUniformType: metadata.ShaderUniformTypeMatrix4},
		{Name: UniformModel, Size: 64, Index: 2, Scope: metadata.ShaderScopeLocal, ShaderUniformType: metadata.ShaderUniformTypeMatrix4},
	}
	for i, u := range shader.Uniforms {
		shader.UniformLookup[u.Name] = uint16(i)
	}
	return shader
}

func newTestRenderer(t *testing.T) (*Renderer, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	r := New(backend)
	if err := r.Initialize("test", 800, 600); err != nil {
		t.Fatal(err)
	}
	backend.calls = nil
	return r, backend
}

func TestDrawFrameSequence(t *testing.T) {
	r, backend := newTestRenderer(t)
	if err := r.SetWorldShader(worldShader()); err != nil {
		t.Fatal(err)
	}
	instanced := containers.Handle{Index: 0, Generation: 1}
	packet := &metadata.RenderPacket{
		DeltaTime: 0.016,
		Geometries: []*metadata.GeometryRenderData{
			{Model: mgl32.Ident4(), Geometry: &metadata.Geometry{Name: "plane"}},
			{Model: mgl32.Translate3D(1, 2, 3), Geometry: &metadata.Geometry{Name: "cube"}, InstanceID: instanced},
		},
	}

	if !r.DrawFrame(packet) {
		t.Fatal("expected the frame to succeed")
	}
	want := []string{
		"BeginFrame",
		"ShaderUse", "BindGlobals",
		"SetUniform:projection", "SetUniform:view", "ApplyGlobals",
		"SetUniform:model", "DrawGeometry:plane",
		"BindInstance", "ApplyInstance", "SetUniform:model", "DrawGeometry:cube",
		"EndFrame",
	}
	if !reflect.DeepEqual(backend.calls, want) {
		t.Fatalf("unexpected call order:\n got %v\nwant %v", backend.calls, want)
	}
	if !reflect.DeepEqual(backend.bound, []metadata.InstanceID{instanced}) {
		t.Fatalf("unexpected bound instances %v", backend.bound)
	}
	model := mgl32.Translate3D(1, 2, 3)
	if !reflect.DeepEqual(backend.uniforms[UniformModel], core.ValueToBytes(&model)) {
		t.Fatal("last model uniform should be the cube's transform")
	}
	if len(backend.uniforms[UniformProjection]) != 64 {
		t.Fatalf("expected a 64 byte projection, got %d", len(backend.uniforms[UniformProjection]))
	}
}

func TestDrawFrameResults(t *testing.T) {
	tests := []struct {
		name     string
		beginErr error
		endErr   error
		drawErr  error
		want     bool
		calls    int
	}{
		{name: "booting", beginErr: core.ErrSwapchainBooting, want: true, calls: 1},
		{name: "out of date", beginErr: errors.Wrap(core.ErrSwapchainOutOfDate, "acquire"), want: true, calls: 1},
		{name: "fence timeout", beginErr: core.ErrFenceTimeout, want: true, calls: 1},
		{name: "device lost", beginErr: core.ErrDeviceLost, want: false, calls: 1},
		{name: "present out of date", endErr: core.ErrSwapchainOutOfDate, want: true, calls: 5},
		{name: "present failed", endErr: core.ErrSwapchainPresent, want: false, calls: 5},
		{name: "draw failed", drawErr: errors.New("boom"), want: false, calls: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, backend := newTestRenderer(t)
			backend.beginErr = tc.beginErr
			backend.endErr = tc.endErr
			backend.drawErr = tc.drawErr
			if err := r.SetWorldShader(worldShader()); err != nil {
				t.Fatal(err)
			}
			packet := &metadata.RenderPacket{Geometries: []*metadata.GeometryRenderData{
				{Model: mgl32.Ident4(), Geometry: &metadata.Geometry{Name: "plane"}},
			}}
			if got := r.DrawFrame(packet); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			// Counts BeginFrame, the draw calls recorded and EndFrame.
			recorded := 0
			for _, c := range backend.calls {
				switch c {
				case "BeginFrame", "EndFrame", "ShaderUse", "ApplyGlobals", "DrawGeometry:plane":
					recorded++
				}
			}
			if recorded != tc.calls {
				t.Fatalf("expected %d recorded calls, got %d (%v)", tc.calls, recorded, backend.calls)
			}
		})
	}
}

func TestDrawFrameWithoutWorldShader(t *testing.T) {
	r, backend := newTestRenderer(t)
	if !r.DrawFrame(&metadata.RenderPacket{}) {
		t.Fatal("an empty frame should succeed")
	}
	if !reflect.DeepEqual(backend.calls, []string{"BeginFrame", "EndFrame"}) {
		t.Fatalf("unexpected calls %v", backend.calls)
	}
}

func TestResizeDebounce(t *testing.T) {
	r, backend := newTestRenderer(t)
	before := r.Projection()
	r.OnResize(1920, 1080)

	for i := 1; i < int(resizeSettleFrames); i++ {
		if !r.DrawFrame(&metadata.RenderPacket{}) {
			t.Fatalf("frame %d: skipped frames must succeed", i)
		}
	}
	if len(backend.resized) != 0 || len(backend.calls) != 0 {
		t.Fatalf("backend touched while resizing: %v %v", backend.resized, backend.calls)
	}

	// A new event restarts the wait.
	r.OnResize(1280, 720)
	if r.FramesSinceResize != 0 {
		t.Fatal("resize did not reset the counter")
	}
	for i := 0; i < int(resizeSettleFrames); i++ {
		r.DrawFrame(&metadata.RenderPacket{})
	}
	if !reflect.DeepEqual(backend.resized, [][2]uint32{{1280, 720}}) {
		t.Fatalf("expected one resize to 1280x720, got %v", backend.resized)
	}
	if r.Resizing {
		t.Fatal("resizing flag not cleared")
	}
	if r.Projection() == before {
		t.Fatal("projection not regenerated for the new aspect ratio")
	}
	if !reflect.DeepEqual(backend.calls, []string{"BeginFrame", "EndFrame"}) {
		t.Fatalf("the settling frame should render, got %v", backend.calls)
	}
}

func TestSetViewMatrix(t *testing.T) {
	r, backend := newTestRenderer(t)
	if err := r.SetWorldShader(worldShader()); err != nil {
		t.Fatal(err)
	}
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	r.SetViewMatrix(view)
	if r.View() != view {
		t.Fatal("view not stored")
	}
	r.DrawFrame(&metadata.RenderPacket{})
	if !reflect.DeepEqual(backend.uniforms[UniformView], core.ValueToBytes(&view)) {
		t.Fatal("view uniform does not carry the new matrix")
	}
}

func TestSetWorldShaderValidation(t *testing.T) {
	r, _ := newTestRenderer(t)

	missing := worldShader()
	delete(missing.UniformLookup, UniformModel)
	if err := r.SetWorldShader(missing); err == nil {
		t.Fatal("expected an error for a shader without a model uniform")
	}

	wrongScope := worldShader()
	wrongScope.Uniforms[2].Scope = metadata.ShaderScopeInstance
	if err := r.SetWorldShader(wrongScope); err == nil {
		t.Fatal("expected an error for an instance model uniform")
	}
}

func TestInitializeFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.initErr = core.ErrNoSuitableDevice
	r := New(backend)
	if err := r.Initialize("test", 800, 600); !errors.Is(err, core.ErrNoSuitableDevice) {
		t.Fatalf("expected the backend error, got %v", err)
	}
	if err := r.Shutdown(); err != nil || backend.shutdowns != 1 {
		t.Fatalf("shutdown not forwarded (%v)", err)
	}
}
