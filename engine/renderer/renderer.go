package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
	"github.com/spaghettifunk/tundra/engine/renderer/vulkan"
)

type RendererType uint8

const (
	Vulkan RendererType = iota
)

const (
	// Frames to wait after the last resize event before the backend rebuilds.
	resizeSettleFrames uint8 = 30

	defaultFOV      float32 = 45.0
	defaultNearClip float32 = 0.1
	defaultFarClip  float32 = 1000.0
)

// Names of the world shader uniforms the frontend writes every frame.
const (
	UniformProjection = "projection"
	UniformView       = "view"
	UniformModel      = "model"
)

// Renderer is the API-agnostic frontend. Calls not handled here go straight to
// the backend.
type Renderer struct {
	RendererBackend

	projection mgl32.Mat4
	view       mgl32.Mat4
	fov        float32
	nearClip   float32
	farClip    float32

	// The current window framebuffer size.
	FramebufferWidth  uint32
	FramebufferHeight uint32
	// Indicates if the window is currently being resized.
	Resizing bool
	// The number of frames since the last resize event. Only set while Resizing.
	FramesSinceResize uint8

	FrameNumber uint64

	worldShader *metadata.Shader
	projectionU *metadata.ShaderUniform
	viewU       *metadata.ShaderUniform
	modelU      *metadata.ShaderUniform
}

func New(backend RendererBackend) *Renderer {
	return &Renderer{
		RendererBackend: backend,
		view:            mgl32.Translate3D(0, 0, -30),
		fov:             defaultFOV,
		nearClip:        defaultNearClip,
		farClip:         defaultFarClip,
	}
}

// NewVulkan creates a frontend over the Vulkan backend.
func NewVulkan(surfaces vulkan.SurfaceProvider, config *metadata.RendererBackendConfig) *Renderer {
	return New(vulkan.New(surfaces, config))
}

func (r *Renderer) Initialize(appName string, width, height uint32) error {
	r.FramebufferWidth = width
	r.FramebufferHeight = height
	r.Resizing = false
	r.FramesSinceResize = 0
	r.FrameNumber = 0
	r.regenerateProjection()

	if err := r.RendererBackend.Initialize(appName, width, height); err != nil {
		core.LogError("Renderer backend failed to initialize. Shutting down.")
		return err
	}
	return nil
}

func (r *Renderer) Shutdown() error {
	r.worldShader = nil
	return r.RendererBackend.Shutdown()
}

func (r *Renderer) regenerateProjection() {
	aspect := float32(1)
	if r.FramebufferHeight > 0 {
		aspect = float32(r.FramebufferWidth) / float32(r.FramebufferHeight)
	}
	r.projection = mgl32.Perspective(mgl32.DegToRad(r.fov), aspect, r.nearClip, r.farClip)
}

// OnResize records the new size. The backend is only told once the size has
// been stable for a number of frames.
func (r *Renderer) OnResize(width, height uint32) {
	r.Resizing = true
	r.FramebufferWidth = width
	r.FramebufferHeight = height
	r.FramesSinceResize = 0
}

func (r *Renderer) SetViewMatrix(view mgl32.Mat4) {
	r.view = view
}

func (r *Renderer) Projection() mgl32.Mat4 {
	return r.projection
}

func (r *Renderer) View() mgl32.Mat4 {
	return r.view
}

// SetWorldShader selects the shader geometries in a render packet are drawn
// with. It must declare the projection and view globals and the model local.
func (r *Renderer) SetWorldShader(shader *metadata.Shader) error {
	projection, err := shader.Uniform(UniformProjection)
	if err != nil {
		return err
	}
	view, err := shader.Uniform(UniformView)
	if err != nil {
		return err
	}
	model, err := shader.Uniform(UniformModel)
	if err != nil {
		return err
	}
	if projection.Scope != metadata.ShaderScopeGlobal || view.Scope != metadata.ShaderScopeGlobal {
		return errors.Newf("shader `%s`: projection and view must be global uniforms", shader.Name)
	}
	if model.Scope != metadata.ShaderScopeLocal {
		return errors.Newf("shader `%s`: model must be a local uniform", shader.Name)
	}
	r.worldShader = shader
	r.projectionU = projection
	r.viewU = view
	r.modelU = model
	return nil
}

// DrawFrame renders one packet. It returns false only when rendering cannot
// continue; a frame skipped for a resize or a swapchain rebuild is a success.
func (r *Renderer) DrawFrame(packet *metadata.RenderPacket) bool {
	r.FrameNumber++

	// Make sure the window is not currently being resized by waiting a designated
	// number of frames after the last resize operation before performing the backend updates.
	if r.Resizing {
		r.FramesSinceResize++
		if r.FramesSinceResize < resizeSettleFrames {
			return true
		}
		r.regenerateProjection()
		r.RendererBackend.Resized(r.FramebufferWidth, r.FramebufferHeight)
		r.FramesSinceResize = 0
		r.Resizing = false
	}

	if err := r.RendererBackend.BeginFrame(packet.DeltaTime); err != nil {
		if core.IsRecoverable(err) {
			return true
		}
		core.LogError("BeginFrame failed: %s", err.Error())
		return false
	}

	drawErr := r.drawWorld(packet)
	if drawErr != nil {
		core.LogError("world pass failed: %s", drawErr.Error())
	}

	// End the frame regardless so the command buffer leaves the recording state.
	if err := r.RendererBackend.EndFrame(packet.DeltaTime); err != nil && !core.IsRecoverable(err) {
		core.LogError("EndFrame failed. Application shutting down: %s", err.Error())
		return false
	}
	return drawErr == nil
}

func (r *Renderer) drawWorld(packet *metadata.RenderPacket) error {
	shader := r.worldShader
	if shader == nil {
		return nil
	}
	if err := r.ShaderUse(shader); err != nil {
		return err
	}
	if err := r.ShaderBindGlobals(shader); err != nil {
		return err
	}
	if err := r.ShaderSetUniform(shader, r.projectionU, core.ValueToBytes(&r.projection)); err != nil {
		return err
	}
	if err := r.ShaderSetUniform(shader, r.viewU, core.ValueToBytes(&r.view)); err != nil {
		return err
	}
	if err := r.ShaderApplyGlobals(shader); err != nil {
		return err
	}

	for _, data := range packet.Geometries {
		if data.InstanceID.Assigned() {
			if err := r.ShaderBindInstance(shader, data.InstanceID); err != nil {
				return errors.Wrapf(err, "geometry `%s`", geometryName(data))
			}
			if err := r.ShaderApplyInstance(shader); err != nil {
				return errors.Wrapf(err, "geometry `%s`", geometryName(data))
			}
		}
		model := data.Model
		if err := r.ShaderSetUniform(shader, r.modelU, core.ValueToBytes(&model)); err != nil {
			return err
		}
		if err := r.DrawGeometry(data); err != nil {
			return err
		}
	}
	return nil
}

func geometryName(data *metadata.GeometryRenderData) string {
	if data.Geometry == nil {
		return "<nil>"
	}
	return data.Geometry.Name
}
