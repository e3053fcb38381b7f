package testbed

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/tundra/engine"
	"github.com/spaghettifunk/tundra/engine/config"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/platform"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
	"github.com/spaghettifunk/tundra/engine/systems"
)

const (
	moveSpeed   float32 = 50.0
	rotateSpeed float32 = 1.0
	// Radians per second the cube turns around y.
	cubeSpin float32 = 0.5
	// Loaded from assets/textures when present, the checkerboard stays otherwise.
	crateTexture = "crate"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	worldCamera *systems.Camera
	worldShader string

	diffuseMap *metadata.TextureMap
	crate      *metadata.Texture
	instance   metadata.InstanceID

	cube      *metadata.Mesh
	floor     *metadata.Mesh
	cubeAngle float32
}

func NewTestGame(cfg *config.Config) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			Config: cfg,
			State: &gameState{
				worldShader: metadata.BUILTIN_SHADER_NAME_WORLD,
				instance:    metadata.InvalidInstanceID,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(app *engine.Application) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.state()
	sm := app.Systems()

	state.worldCamera = sm.CameraSystem.GetDefault()
	state.worldCamera.SetPosition(mgl32.Vec3{0, 5, 30})

	diffuseMap, err := sm.TextureSystem.AcquireMap(nil, metadata.TextureUseMapDiffuse)
	if err != nil {
		return err
	}
	state.diffuseMap = diffuseMap

	instance, err := sm.ShaderSystem.AcquireInstance(state.worldShader, []*metadata.TextureMap{diffuseMap})
	if err != nil {
		core.LogError("unable to acquire world shader instance")
		return err
	}
	state.instance = instance
	white := mgl32.Vec4{1, 1, 1, 1}
	if err := sm.ShaderSystem.SetInstanceUniform(state.worldShader, instance, "diffuse_colour", core.ValueToBytes(&white)); err != nil {
		return err
	}

	state.cube, err = sm.MeshSystem.Load([]*metadata.GeometryConfig{
		systems.GenerateCubeConfig(10, 10, 10, 1, 1, "test_cube"),
	}, mgl32.Ident4(), instance)
	if err != nil {
		return err
	}
	floorTransform := mgl32.Translate3D(0, -5, 0).Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(-90)))
	state.floor, err = sm.MeshSystem.Load([]*metadata.GeometryConfig{
		systems.GeneratePlaneConfig(60, 60, 4, 4, 6, 6, "floor"),
	}, floorTransform, instance)
	if err != nil {
		return err
	}

	err = sm.TextureSystem.AcquireAsync(sm.JobSystem, crateTexture, true, func(texture *metadata.Texture, err error) {
		if err != nil {
			core.LogWarn("keeping the default texture: %s", err.Error())
			return
		}
		g.useTexture(app, texture)
	})
	if err != nil {
		return err
	}

	app.Context().Events.Register(core.EVENT_CODE_KEY_PRESSED, g, g.gameOnKey)
	return nil
}

// useTexture swaps the diffuse map of the shared instance over to texture.
func (g *TestGame) useTexture(app *engine.Application, texture *metadata.Texture) {
	state := g.state()
	sm := app.Systems()
	textureMap, err := sm.TextureSystem.AcquireMap(texture, metadata.TextureUseMapDiffuse)
	if err != nil {
		sm.TextureSystem.Release(texture.Name)
		return
	}
	if err := sm.ShaderSystem.SetInstanceSampler(state.worldShader, state.instance, "diffuse_texture", textureMap); err != nil {
		sm.TextureSystem.ReleaseMap(textureMap)
		sm.TextureSystem.Release(texture.Name)
		return
	}
	sm.TextureSystem.ReleaseMap(state.diffuseMap)
	state.diffuseMap = textureMap
	state.crate = texture
	core.LogInfo("texture `%s` loaded", texture.Name)
}

func (g *TestGame) Update(app *engine.Application, deltaTime float64) error {
	state := g.state()
	camera := state.worldCamera
	dt := float32(deltaTime)

	if app.KeyDown(platform.KeyA) || app.KeyDown(platform.KeyLeft) {
		camera.Yaw(rotateSpeed * dt)
	}
	if app.KeyDown(platform.KeyD) || app.KeyDown(platform.KeyRight) {
		camera.Yaw(-rotateSpeed * dt)
	}
	if app.KeyDown(platform.KeyUp) {
		camera.Pitch(rotateSpeed * dt)
	}
	if app.KeyDown(platform.KeyDown) {
		camera.Pitch(-rotateSpeed * dt)
	}
	if app.KeyDown(platform.KeyW) {
		camera.MoveForward(moveSpeed * dt)
	}
	if app.KeyDown(platform.KeyS) {
		camera.MoveBackward(moveSpeed * dt)
	}
	if app.KeyDown(platform.KeyQ) {
		camera.MoveLeft(moveSpeed * dt)
	}
	if app.KeyDown(platform.KeyE) {
		camera.MoveRight(moveSpeed * dt)
	}
	if app.KeyDown(platform.KeySpace) {
		camera.MoveUp(moveSpeed * dt)
	}
	if app.KeyDown(platform.KeyX) {
		camera.MoveDown(moveSpeed * dt)
	}

	state.cubeAngle += cubeSpin * dt
	state.cube.Transform = mgl32.HomogRotate3DY(state.cubeAngle)
	return nil
}

func (g *TestGame) Render(app *engine.Application, packet *metadata.RenderPacket, deltaTime float64) error {
	state := g.state()
	app.Renderer().SetViewMatrix(state.worldCamera.View())
	systems.AppendRenderData(packet, state.floor)
	systems.AppendRenderData(packet, state.cube)
	return nil
}

func (g *TestGame) OnResize(app *engine.Application, width uint32, height uint32) error {
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown(app *engine.Application) error {
	state := g.state()
	sm := app.Systems()
	app.Context().Events.Unregister(core.EVENT_CODE_KEY_PRESSED, g)

	sm.MeshSystem.Unload(state.cube)
	sm.MeshSystem.Unload(state.floor)
	var err error
	if state.instance.Assigned() {
		err = sm.ShaderSystem.ReleaseInstance(state.worldShader, state.instance)
		state.instance = metadata.InvalidInstanceID
	}
	if state.diffuseMap != nil {
		sm.TextureSystem.ReleaseMap(state.diffuseMap)
		state.diffuseMap = nil
	}
	if state.crate != nil {
		sm.TextureSystem.Release(state.crate.Name)
		state.crate = nil
	}
	return err
}

func (g *TestGame) gameOnKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	camera := g.state().worldCamera
	switch data.Data.U16[0] {
	case platform.KeyP:
		pos, rot := camera.Position(), camera.EulerRotation()
		core.LogDebug("camera pos: [%.2f, %.2f, %.2f] rot: [%.2f, %.2f, %.2f]", pos.X(), pos.Y(), pos.Z(), rot.X(), rot.Y(), rot.Z())
		return true
	case platform.KeyR:
		camera.Reset()
		camera.SetPosition(mgl32.Vec3{0, 5, 30})
		return true
	}
	return false
}
