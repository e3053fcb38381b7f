package engine

import (
	"os"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine/assets"
	"github.com/spaghettifunk/tundra/engine/config"
	"github.com/spaghettifunk/tundra/engine/containers"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/platform"
	"github.com/spaghettifunk/tundra/engine/renderer"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
	"github.com/spaghettifunk/tundra/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Name of the world shader config under assets/shaders.
const WorldShaderConfig = "Builtin.WorldShader"

const (
	// Shader reloads waiting for the next frame boundary.
	reloadQueueSize = 32
	// Seconds between metrics log lines.
	metricsLogInterval = 5.0
)

type Engine struct {
	currentStage   Stage
	gameInstance   *Game
	app            *Application
	config         *config.Config
	ctx            *core.Context
	isRunning      atomic.Bool
	isSuspended    bool
	platform       *platform.Platform
	assetManager   *assets.AssetManager
	renderer       *renderer.Renderer
	systemManager  *systems.SystemManager
	reloads        *containers.RingQueue[string]
	// Names in reloads, for dedup.
	pendingReloads map[string]struct{}
	width          uint32
	height         uint32
	lastTime       float64
}

func New(g *Game) (*Engine, error) {
	cfg := g.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := core.NewContext(core.NewLogger(os.Stderr, cfg.LogLevel()))
	p := platform.New(ctx.Events)

	am, err := assets.NewAssetManager(cfg.Assets.Dir, cfg.Assets.HotReload)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}

	r := renderer.NewVulkan(p, &metadata.RendererBackendConfig{
		ApplicationName:  cfg.Application.Name,
		EnableValidation: cfg.Renderer.Validation,
		VSync:            cfg.Renderer.VSync,
		FrameTimeoutNS:   cfg.Renderer.FrameTimeoutMS * 1_000_000,
	})

	smConfig := systems.DefaultSystemManagerConfig()
	smConfig.MaxInstanceCount = cfg.Renderer.MaxInstanceCount
	sm, err := systems.NewSystemManager(smConfig, r, am)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}

	e := &Engine{
		currentStage:   EngineStageUninitialized,
		gameInstance:   g,
		config:         cfg,
		ctx:            ctx,
		platform:       p,
		assetManager:   am,
		renderer:       r,
		systemManager:  sm,
		reloads:        containers.NewRingQueue[string](reloadQueueSize),
		pendingReloads: make(map[string]struct{}),
		width:          cfg.Application.StartWidth,
		height:         cfg.Application.StartHeight,
	}
	e.app = &Application{engine: e}
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	if err := e.ctx.Initialize(); err != nil {
		return err
	}

	// register some events
	e.ctx.Events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.ctx.Events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.ctx.Events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.ctx.Events.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	app := e.config.Application
	if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()

	if err := e.assetManager.Initialize(); err != nil {
		return err
	}
	if err := e.renderer.Initialize(app.Name, e.width, e.height); err != nil {
		core.LogError("failed to initialize renderer: %s", err.Error())
		return err
	}
	if err := e.systemManager.Initialize(); err != nil {
		return err
	}

	shader, err := e.systemManager.ShaderSystem.Load(WorldShaderConfig)
	if err != nil {
		return errors.Wrap(err, "failed to load the world shader")
	}
	if err := e.renderer.SetWorldShader(shader); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.app); err != nil {
			core.LogError("game failed to initialize: %s", err.Error())
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.app, e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the frame loop until the window closes, a quit event arrives or
// a frame fails. Shutdown always runs before it returns.
func (e *Engine) Run() (err error) {
	if e.currentStage != EngineStageInitialized {
		return errors.New("engine must be initialized before it can run")
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	defer func() {
		if shutdownErr := e.Shutdown(); shutdownErr != nil {
			err = errors.CombineErrors(err, shutdownErr)
		}
	}()

	e.ctx.Clock.Start()
	e.ctx.Clock.Update()
	e.lastTime = e.ctx.Clock.Elapsed()
	lastMetricsLog := e.lastTime

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended {
			platform.Sleep(10)
			continue
		}

		// Update clock and get delta time.
		e.ctx.Clock.Update()
		currentTime := e.ctx.Clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := platform.GetAbsoluteTime()

		e.drainAssetChanges()
		e.processReloads()
		e.systemManager.Update()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(e.app, delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err.Error())
				return err
			}
		}

		packet := &metadata.RenderPacket{DeltaTime: delta}
		if e.gameInstance.FnRender != nil {
			if err := e.gameInstance.FnRender(e.app, packet, delta); err != nil {
				core.LogError("Game render failed, shutting down: %s", err.Error())
				return err
			}
		}

		if !e.renderer.DrawFrame(packet) {
			err := errors.New("failed to draw frame, shutting down")
			core.LogError("%s", err)
			return err
		}

		frameElapsedTime := platform.GetAbsoluteTime() - frameStartTime
		e.ctx.Metrics.Update(frameElapsedTime)
		if currentTime-lastMetricsLog >= metricsLogInterval {
			fps, ms := e.ctx.Metrics.Frame()
			core.LogDebug("fps: %.0f frame: %.3fms", fps, ms)
			lastMetricsLog = currentTime
		}

		// Update last time
		e.lastTime = currentTime
	}
	return nil
}

// Stop asks the main loop to exit. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.ctx.Events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

func (e *Engine) Shutdown() error {
	if e.currentStage < EngineStageInitialized || e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs error
	if e.gameInstance.FnShutdown != nil {
		errs = errors.CombineErrors(errs, e.gameInstance.FnShutdown(e.app))
	}
	// Resources are released while the device is still alive.
	if err := e.renderer.WaitIdle(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	errs = errors.CombineErrors(errs, e.systemManager.Shutdown())
	errs = errors.CombineErrors(errs, e.renderer.Shutdown())
	errs = errors.CombineErrors(errs, e.assetManager.Shutdown())
	errs = errors.CombineErrors(errs, e.platform.Shutdown())
	errs = errors.CombineErrors(errs, e.ctx.Shutdown())
	e.currentStage = EngineStageUninitialized
	return errs
}

// drainAssetChanges turns files changed on disk into asset events on the main thread.
func (e *Engine) drainAssetChanges() {
	for {
		select {
		case path := <-e.assetManager.Changes():
			context := core.EventContext{}
			context.Data.S = path
			e.ctx.Events.Fire(core.EVENT_CODE_ASSET_CHANGED, e.assetManager, context)
		default:
			return
		}
	}
}

// processReloads rebuilds every shader queued since the last frame.
func (e *Engine) processReloads() {
	for !e.reloads.IsEmpty() {
		name, err := e.reloads.Dequeue()
		if err != nil {
			return
		}
		delete(e.pendingReloads, name)
		shader, err := e.systemManager.ShaderSystem.Reload(name)
		if err != nil {
			core.LogError("failed to reload shader `%s`: %s", name, err.Error())
			continue
		}
		if shader.Name == metadata.BUILTIN_SHADER_NAME_WORLD {
			// Uniform pointers cached by the renderer are rebuilt with the layout.
			if err := e.renderer.SetWorldShader(shader); err != nil {
				core.LogError("%s", err)
			}
		}
		core.LogInfo("reloaded shader `%s`", name)
	}
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if data.Data.U16[0] == platform.KeyEscape {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.ctx.Events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.app, width, height); err != nil {
			core.LogError("%s", err)
		}
	}
	e.renderer.OnResize(width, height)
	return false
}

func (e *Engine) onAssetChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	for _, name := range e.assetManager.ShadersUsing(data.Data.S) {
		if e.reloads.IsFull() {
			core.LogWarn("shader reload queue full, dropping reload of `%s`", name)
			continue
		}
		// Editors write a file several times per save.
		if _, queued := e.pendingReloads[name]; queued {
			continue
		}
		if err := e.reloads.Enqueue(name); err != nil {
			core.LogWarn("%s", err)
			continue
		}
		e.pendingReloads[name] = struct{}{}
	}
	return false
}
