package engine

import (
	"github.com/spaghettifunk/tundra/engine/config"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

type Game struct {
	Config       *config.Config
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func(app *Application) error
type Update func(app *Application, deltaTime float64) error

// Render fills the packet with what to draw this frame.
type Render func(app *Application, packet *metadata.RenderPacket, deltaTime float64) error
type OnResize func(app *Application, width uint32, height uint32) error
type Shutdown func(app *Application) error
