package assets

import (
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

func TestMain(m *testing.M) {
	core.SetDefaultLogger(core.NewDiscardLogger())
	os.Exit(m.Run())
}

const testShaderConfig = `name Shader.Test
render_pass Renderpass.Builtin.World
stages vertex fragment
stage_files shaders/test.vert.spv shaders/test.frag.spv
attribute vec3 in_position
uniform mat4 0 projection
`

func spirv() []byte {
	code := make([]byte, 20)
	binary.LittleEndian.PutUint32(code, 0x07230203)
	return code
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestAssets(t *testing.T, hotReload bool) (*AssetManager, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "shaders", "Test.shadercfg"), []byte(testShaderConfig))
	writeFile(t, filepath.Join(dir, "shaders", "test.vert.spv"), spirv())
	writeFile(t, filepath.Join(dir, "shaders", "test.frag.spv"), spirv())
	writeFile(t, filepath.Join(dir, "notes.md"), []byte("ignored"))

	if err := os.MkdirAll(filepath.Join(dir, "textures"), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, "textures", "crate.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	am, err := NewAssetManager(dir, hotReload)
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { am.Shutdown() })
	return am, dir
}

func TestAssetIndex(t *testing.T) {
	am, _ := newTestAssets(t, false)
	tests := []struct {
		path    string
		indexed bool
		kind    metadata.ResourceType
	}{
		{"shaders/Test.shadercfg", true, metadata.ResourceTypeShader},
		{"shaders/test.vert.spv", true, metadata.ResourceTypeBinary},
		{"textures/crate.png", true, metadata.ResourceTypeImage},
		{"notes.md", false, 0},
	}
	ids := make(map[string]bool)
	for _, tc := range tests {
		info, ok := am.Lookup(tc.path)
		if ok != tc.indexed {
			t.Fatalf("%s indexed=%v, want %v", tc.path, ok, tc.indexed)
		}
		if !ok {
			continue
		}
		if info.Type != tc.kind || len(info.ID) != 36 || ids[info.ID] {
			t.Fatalf("unexpected entry %+v", info)
		}
		ids[info.ID] = true
	}
}

func TestAssetShaderSource(t *testing.T) {
	am, _ := newTestAssets(t, false)
	config, err := am.LoadShaderConfig("Test")
	if err != nil {
		t.Fatal(err)
	}
	if config.Name != "Shader.Test" || len(config.Uniforms) != 1 {
		t.Fatalf("unexpected config %+v", config)
	}
	stages, err := am.LoadShaderStages(config)
	if err != nil {
		t.Fatal(err)
	}
	if len(stages) != 2 || len(stages[0]) != 20 {
		t.Fatalf("unexpected stages %v", stages)
	}
	for _, path := range []string{"shaders/Test.shadercfg", "shaders/test.frag.spv"} {
		if got := am.ShadersUsing(path); len(got) != 1 || got[0] != "Shader.Test" {
			t.Fatalf("ShadersUsing(%s) = %v", path, got)
		}
	}
	if _, err := am.LoadShaderConfig("Missing"); err == nil {
		t.Fatal("expected an error for a missing config")
	}
	config.StageFilenames[1] = "textures/crate.png"
	if _, err := am.LoadShaderStages(config); err == nil {
		t.Fatal("an image is not a shader stage")
	}
}

func TestAssetImageSource(t *testing.T) {
	am, _ := newTestAssets(t, false)
	data, err := am.LoadImage("crate", &metadata.ImageResourceParams{FlipY: true})
	if err != nil {
		t.Fatal(err)
	}
	if data.Width != 2 || data.Height != 2 || len(data.Pixels) != 16 {
		t.Fatalf("unexpected image %+v", data)
	}
	_, err = am.LoadImage("stone", nil)
	if err == nil {
		t.Fatal("expected an error for a missing image")
	}
	resource, err := am.LoadAsset("textures/crate.png", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := am.UnloadAsset(resource); err != nil || resource.Data != nil {
		t.Fatalf("unload failed: %v", err)
	}
}

func TestAssetHotReload(t *testing.T) {
	am, dir := newTestAssets(t, true)
	writeFile(t, filepath.Join(dir, "shaders", "test.frag.spv"), append(spirv(), 0, 0, 0, 0))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case path := <-am.Changes():
			if path == "shaders/test.frag.spv" {
				return
			}
		case <-deadline:
			t.Fatal("no change reported for the rewritten stage")
		}
	}
}

func TestAssetHotReloadNewDirectory(t *testing.T) {
	am, dir := newTestAssets(t, true)
	sub := filepath.Join(dir, "shaders", "extra")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// The new directory is watched once its create event is handled.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		writeFile(t, filepath.Join(sub, "late.wgsl"), []byte("// empty"))
		select {
		case path := <-am.Changes():
			if path == "shaders/extra/late.wgsl" {
				if info, ok := am.Lookup(path); !ok || info.Type != metadata.ResourceTypeShaderSource {
					t.Fatalf("unexpected entry %+v", info)
				}
				return
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Fatal("file in new directory never reported")
}

func TestShutdownIsIdempotent(t *testing.T) {
	am, _ := newTestAssets(t, true)
	if err := am.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatal(err)
	}
}
