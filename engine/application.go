package engine

import (
	"github.com/spaghettifunk/tundra/engine/config"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/platform"
	"github.com/spaghettifunk/tundra/engine/renderer"
	"github.com/spaghettifunk/tundra/engine/systems"
)

// Application is the view of a running engine handed to game callbacks.
type Application struct {
	engine *Engine
}

func (a *Application) Config() *config.Config {
	return a.engine.config
}

func (a *Application) Context() *core.Context {
	return a.engine.ctx
}

func (a *Application) Systems() *systems.SystemManager {
	return a.engine.systemManager
}

func (a *Application) Renderer() *renderer.Renderer {
	return a.engine.renderer
}

func (a *Application) KeyDown(key uint16) bool {
	return a.engine.platform.KeyDown(key)
}

// FramebufferSize returns the width and height (in this order)
// of the application framebuffer.
func (a *Application) FramebufferSize() (uint32, uint32) {
	return a.engine.width, a.engine.height
}

// Quit stops the main loop after the current frame.
func (a *Application) Quit() {
	a.engine.ctx.Events.Fire(core.EVENT_CODE_APPLICATION_QUIT, a, core.EventContext{})
}
