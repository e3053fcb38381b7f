package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/tundra/engine/core"
)

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

// 89 degrees. Pitch is clamped to avoid gimbal lock.
const pitchLimit float32 = 1.55334306

/**
 * @brief Represents a camera that can be used for
 * a variety of things, especially rendering. Ideally,
 * these are created and managed by the camera system.
 */
type Camera struct {
	// Do not set directly, use SetPosition so the view matrix is rebuilt.
	position mgl32.Vec3
	// Euler angles (pitch, yaw, roll). Use SetEulerRotation.
	eulerRotation mgl32.Vec3
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	isDirty    bool
	viewMatrix mgl32.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.eulerRotation = mgl32.Vec3{}
	c.position = mgl32.Vec3{}
	c.isDirty = false
	c.viewMatrix = mgl32.Ident4()
}

func (c *Camera) Position() mgl32.Vec3 {
	return c.position
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.position = position
	c.isDirty = true
}

func (c *Camera) EulerRotation() mgl32.Vec3 {
	return c.eulerRotation
}

func (c *Camera) SetEulerRotation(rotation mgl32.Vec3) {
	c.eulerRotation = rotation
	c.isDirty = true
}

// View returns the view matrix, rebuilding it if the camera moved.
func (c *Camera) View() mgl32.Mat4 {
	if c.isDirty {
		rotation := mgl32.AnglesToQuat(c.eulerRotation.X(), c.eulerRotation.Y(), c.eulerRotation.Z(), mgl32.XYZ).Mat4()
		translation := mgl32.Translate3D(c.position.X(), c.position.Y(), c.position.Z())
		c.viewMatrix = translation.Mul4(rotation).Inv()
		c.isDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.View().Row(2).Vec3().Mul(-1).Normalize()
}

func (c *Camera) Backward() mgl32.Vec3 {
	return c.View().Row(2).Vec3().Normalize()
}

func (c *Camera) Left() mgl32.Vec3 {
	return c.View().Row(0).Vec3().Mul(-1).Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.View().Row(0).Vec3().Normalize()
}

func (c *Camera) MoveForward(amount float32) {
	c.move(c.Forward(), amount)
}

func (c *Camera) MoveBackward(amount float32) {
	c.move(c.Backward(), amount)
}

func (c *Camera) MoveLeft(amount float32) {
	c.move(c.Left(), amount)
}

func (c *Camera) MoveRight(amount float32) {
	c.move(c.Right(), amount)
}

func (c *Camera) MoveUp(amount float32) {
	c.move(mgl32.Vec3{0, 1, 0}, amount)
}

func (c *Camera) MoveDown(amount float32) {
	c.move(mgl32.Vec3{0, -1, 0}, amount)
}

func (c *Camera) move(direction mgl32.Vec3, amount float32) {
	c.position = c.position.Add(direction.Mul(amount))
	c.isDirty = true
}

func (c *Camera) Yaw(amount float32) {
	c.eulerRotation[1] += amount
	c.isDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.eulerRotation[0] = mgl32.Clamp(c.eulerRotation[0]+amount, -pitchLimit, pitchLimit)
	c.isDirty = true
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/**
	 * @brief NOTE: The maximum number of cameras that can be managed by
	 * the system.
	 */
	MaxCameraCount uint16
}

type cameraReference struct {
	ReferenceCount uint16
	Camera         *Camera
}

type CameraSystem struct {
	Config  *CameraSystemConfig
	Cameras map[string]*cameraReference
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *Camera
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		err := errors.New("func NewCameraSystem - config.MaxCameraCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}
	return &CameraSystem{
		Config:        config,
		Cameras:       make(map[string]*cameraReference, config.MaxCameraCount),
		DefaultCamera: NewCamera(),
	}, nil
}

func (cs *CameraSystem) Shutdown() error {
	cs.Cameras = make(map[string]*cameraReference, cs.Config.MaxCameraCount)
	return nil
}

/**
 * @brief Acquires a camera by name. If one is not found, a new one is
 * created and returned. Internal reference counter is incremented.
 */
func (cs *CameraSystem) Acquire(name string) (*Camera, error) {
	if name == DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	if ref, ok := cs.Cameras[name]; ok {
		ref.ReferenceCount++
		return ref.Camera, nil
	}
	if len(cs.Cameras) >= int(cs.Config.MaxCameraCount) {
		err := errors.Newf("camera system failed to acquire a slot for `%s`. Adjust camera system config to allow more", name)
		core.LogError("%s", err)
		return nil, err
	}
	core.LogDebug("Creating new camera named '%s'...", name)
	ref := &cameraReference{ReferenceCount: 1, Camera: NewCamera()}
	cs.Cameras[name] = ref
	return ref.Camera, nil
}

/**
 * @brief Releases a camera with the given name. When the reference count
 * reaches 0 the camera is reset and its slot freed.
 */
func (cs *CameraSystem) Release(name string) {
	if name == DEFAULT_CAMERA_NAME {
		core.LogDebug("Cannot release default camera. Nothing was done.")
		return
	}
	ref, ok := cs.Cameras[name]
	if !ok {
		core.LogWarn("CameraSystemRelease failed lookup. Nothing was done.")
		return
	}
	ref.ReferenceCount--
	if ref.ReferenceCount < 1 {
		ref.Camera.Reset()
		delete(cs.Cameras, name)
	}
}

func (cs *CameraSystem) GetDefault() *Camera {
	return cs.DefaultCamera
}
