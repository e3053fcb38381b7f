package platform

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tundra/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Key codes reported in EVENT_CODE_KEY_PRESSED and accepted by KeyDown.
const (
	KeyEscape uint16 = uint16(glfw.KeyEscape)
	KeyW      uint16 = uint16(glfw.KeyW)
	KeyA      uint16 = uint16(glfw.KeyA)
	KeyS      uint16 = uint16(glfw.KeyS)
	KeyD      uint16 = uint16(glfw.KeyD)
	KeyQ      uint16 = uint16(glfw.KeyQ)
	KeyE      uint16 = uint16(glfw.KeyE)
	KeyP      uint16 = uint16(glfw.KeyP)
	KeyR      uint16 = uint16(glfw.KeyR)
	KeySpace  uint16 = uint16(glfw.KeySpace)
	KeyX      uint16 = uint16(glfw.KeyX)
	KeyUp     uint16 = uint16(glfw.KeyUp)
	KeyDown   uint16 = uint16(glfw.KeyDown)
	KeyLeft   uint16 = uint16(glfw.KeyLeft)
	KeyRight  uint16 = uint16(glfw.KeyRight)
)

// Platform owns the window. It reports input and resizes through the event
// system and provides the Vulkan surface.
type Platform struct {
	Window *glfw.Window
	events *core.EventSystem
}

func New(events *core.EventSystem) *Platform {
	return &Platform{
		Window: nil,
		events: events,
	}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		err = errors.Wrap(err, "failed to initialize glfw")
		core.LogError("%s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		err := errors.New("glfw reports no Vulkan loader on this system")
		core.LogError("%s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		err = errors.Wrap(err, "failed to create window")
		core.LogError("%s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events. Returns false once the
// window was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// FramebufferSize is the drawable size in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

func (p *Platform) KeyDown(key uint16) bool {
	return p.Window.GetKey(glfw.Key(key)) == glfw.Press
}

// GetAbsoluteTime returns seconds since glfw was initialised.
func GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

func Sleep(ms float64) {
	time.Sleep(time.Duration(ms * float64(time.Millisecond)))
}

func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surfacePtr, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "failed to create window surface")
	}
	return vk.SurfaceFromPointer(surfacePtr), nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press || key < 0 {
		return
	}
	context := core.EventContext{}
	context.Data.U16[0] = uint16(key)
	p.events.Fire(core.EVENT_CODE_KEY_PRESSED, p, context)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	context := core.EventContext{}
	context.Data.U32[0] = uint32(width)
	context.Data.U32[1] = uint32(height)
	p.events.Fire(core.EVENT_CODE_RESIZED, p, context)
}
