package renderer

import "github.com/spaghettifunk/tundra/engine/renderer/metadata"

// RendererBackend is the API-specific half of the renderer. The Vulkan backend is
// the only implementation.
type RendererBackend interface {
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	Resized(width, height uint32)
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error
	WaitIdle() error

	CreateGeometry(geometry *metadata.Geometry, vertices []metadata.Vertex3D, indices []uint32) error
	DestroyGeometry(geometry *metadata.Geometry)
	DrawGeometry(data *metadata.GeometryRenderData) error

	TextureCreate(pixels []byte, texture *metadata.Texture) error
	TextureDestroy(texture *metadata.Texture)
	TextureMapAcquireResources(textureMap *metadata.TextureMap) error
	TextureMapReleaseResources(textureMap *metadata.TextureMap)

	ShaderCreate(shader *metadata.Shader, config *metadata.ShaderConfig, stageCode [][]byte) error
	ShaderInitialize(shader *metadata.Shader) error
	ShaderReload(shader *metadata.Shader, config *metadata.ShaderConfig, stageCode [][]byte) error
	ShaderDestroy(shader *metadata.Shader)
	ShaderUse(shader *metadata.Shader) error
	ShaderBindGlobals(shader *metadata.Shader) error
	ShaderBindInstance(shader *metadata.Shader, id metadata.InstanceID) error
	ShaderApplyGlobals(shader *metadata.Shader) error
	ShaderApplyInstance(shader *metadata.Shader) error
	ShaderAcquireInstanceResources(shader *metadata.Shader, maps []*metadata.TextureMap) (metadata.InstanceID, error)
	ShaderReleaseInstanceResources(shader *metadata.Shader, id metadata.InstanceID) error
	ShaderSetUniform(shader *metadata.Shader, uniform *metadata.ShaderUniform, value []byte) error
	ShaderSetSampler(shader *metadata.Shader, uniform *metadata.ShaderUniform, textureMap *metadata.TextureMap) error
}
