package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine/core"
)

// Backend is everything the systems need from the renderer.
type Backend interface {
	ShaderBackend
	TextureBackend
	GeometryBackend
}

// AssetSource is everything the systems need from the asset manager.
type AssetSource interface {
	ShaderSource
	ImageSource
}

type SystemManagerConfig struct {
	MaxShaderCount   uint16
	MaxTextureCount  uint32
	MaxGeometryCount uint32
	MaxCameraCount   uint16
	MaxInstanceCount uint32
	JobWorkers       int
}

func DefaultSystemManagerConfig() *SystemManagerConfig {
	return &SystemManagerConfig{
		MaxShaderCount:   64,
		MaxTextureCount:  1024,
		MaxGeometryCount: 4096,
		MaxCameraCount:   16,
		JobWorkers:       2,
	}
}

type SystemManager struct {
	CameraSystem   *CameraSystem
	GeometrySystem *GeometrySystem
	JobSystem      *JobSystem
	MeshSystem     *MeshSystem
	ShaderSystem   *ShaderSystem
	TextureSystem  *TextureSystem
}

func NewSystemManager(config *SystemManagerConfig, backend Backend, assets AssetSource) (*SystemManager, error) {
	js, err := NewJobSystem(config.JobWorkers, int(config.MaxTextureCount))
	if err != nil {
		return nil, err
	}
	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: config.MaxCameraCount,
	})
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount: config.MaxTextureCount,
	}, backend, assets)
	if err != nil {
		return nil, err
	}
	ssys, err := NewShaderSystem(&ShaderSystemConfig{
		MaxShaderCount:      config.MaxShaderCount,
		MaxUniformCount:     uint8(128),
		MaxInstanceTextures: uint8(31),
		MaxInstanceCount:    config.MaxInstanceCount,
	}, backend, assets)
	if err != nil {
		return nil, err
	}
	gs, err := NewGeometrySystem(&GeometrySystemConfig{
		MaxGeometryCount: config.MaxGeometryCount,
	}, backend)
	if err != nil {
		return nil, err
	}
	ms, err := NewMeshSystem(gs)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		CameraSystem:   cs,
		GeometrySystem: gs,
		JobSystem:      js,
		MeshSystem:     ms,
		ShaderSystem:   ssys,
		TextureSystem:  ts,
	}, nil
}

// Initialize creates the default resources. The renderer must be initialized.
func (sm *SystemManager) Initialize() error {
	if err := sm.TextureSystem.Initialize(); err != nil {
		return errors.Wrap(err, "texture system")
	}
	if err := sm.GeometrySystem.Initialize(); err != nil {
		return errors.Wrap(err, "geometry system")
	}
	return nil
}

// Update runs the main thread half of finished jobs.
func (sm *SystemManager) Update() {
	sm.JobSystem.Update()
}

// Shutdown releases everything in reverse dependency order. GPU resources are
// freed, so the renderer must still be alive.
func (sm *SystemManager) Shutdown() error {
	var errs error
	if err := sm.JobSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := sm.MeshSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	sm.GeometrySystem.Shutdown()
	if err := sm.ShaderSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := sm.TextureSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := sm.CameraSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if errs != nil {
		core.LogError("system shutdown: %s", errs.Error())
	}
	return errs
}
