package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/tundra/engine/config"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/platform"
)

func TestMain(m *testing.M) {
	core.SetDefaultLogger(core.NewDiscardLogger())
	os.Exit(m.Run())
}

const testShaderConfig = `name Shader.Test
render_pass Renderpass.Builtin.World
stages vertex fragment
stage_files shaders/test.vert.wgsl shaders/test.frag.wgsl
uniform mat4 0 projection
`

// newTestEngine builds an engine whose context and assets are live but whose
// window and renderer are never started.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "shaders"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shaders", "Test.shadercfg"), []byte(testShaderConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Assets.Dir = dir
	e, err := New(&Game{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	e.ctx.Logger = core.NewDiscardLogger()
	if err := e.ctx.Initialize(); err != nil {
		t.Fatal(err)
	}
	e.ctx.Events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.ctx.Events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.ctx.Events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.ctx.Events.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)
	if err := e.assetManager.Initialize(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = e.systemManager.JobSystem.Shutdown()
		_ = e.assetManager.Shutdown()
		_ = e.ctx.Shutdown()
	})
	return e
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Application.StartWidth = 0
	if _, err := New(&Game{Config: cfg}); err == nil {
		t.Fatal("expected an invalid config to be rejected")
	}
}

func TestRunRequiresInitialize(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Run(); err == nil {
		t.Fatal("expected Run to refuse an uninitialized engine")
	}
	// Nothing was started, so there is nothing to shut down.
	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestAssetChangesQueueEachShaderOnce(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.assetManager.LoadShaderConfig("Test"); err != nil {
		t.Fatal(err)
	}

	changed := core.EventContext{}
	changed.Data.S = "shaders/Test.shadercfg"
	for i := 0; i < 3; i++ {
		e.ctx.Events.Fire(core.EVENT_CODE_ASSET_CHANGED, e.assetManager, changed)
	}
	if e.reloads.Len() != 1 {
		t.Fatalf("expected one queued reload, got %d", e.reloads.Len())
	}
	name, err := e.reloads.Peek()
	if err != nil || name != "Shader.Test" {
		t.Fatalf("unexpected queued reload %q, %v", name, err)
	}

	unrelated := core.EventContext{}
	unrelated.Data.S = "textures/crate.png"
	e.ctx.Events.Fire(core.EVENT_CODE_ASSET_CHANGED, e.assetManager, unrelated)
	if e.reloads.Len() != 1 {
		t.Fatalf("a file no shader uses must not queue a reload, got %d", e.reloads.Len())
	}
}

func TestResizeSuspendsWhenMinimized(t *testing.T) {
	e := newTestEngine(t)
	resized := func(w, h uint32) {
		context := core.EventContext{}
		context.Data.U32[0] = w
		context.Data.U32[1] = h
		e.ctx.Events.Fire(core.EVENT_CODE_RESIZED, e, context)
	}

	resized(0, 0)
	if !e.isSuspended {
		t.Fatal("expected a zero size to suspend")
	}
	resized(800, 600)
	if e.isSuspended {
		t.Fatal("expected a restored window to resume")
	}
	if w, h := e.app.FramebufferSize(); w != 800 || h != 600 {
		t.Fatalf("unexpected size %dx%d", w, h)
	}
	if !e.renderer.Resizing || e.renderer.FramebufferWidth != 800 {
		t.Fatal("renderer was not told about the resize")
	}
}

func TestEscapeAndStopQuit(t *testing.T) {
	tests := []struct {
		name string
		quit func(e *Engine)
	}{
		{"escape", func(e *Engine) {
			context := core.EventContext{}
			context.Data.U16[0] = platform.KeyEscape
			e.ctx.Events.Fire(core.EVENT_CODE_KEY_PRESSED, e, context)
		}},
		{"stop", func(e *Engine) { e.Stop() }},
		{"application", func(e *Engine) { e.app.Quit() }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t)
			e.isRunning.Store(true)
			tc.quit(e)
			if e.isRunning.Load() {
				t.Fatal("expected the engine to stop running")
			}
		})
	}
}
