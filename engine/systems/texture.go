package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

const (
	defaultTextureDimension uint32 = 256
	defaultTextureChannels  uint8  = 4
	// Side of one checkerboard cell in pixels.
	checkerCellSize uint32 = 32
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount uint32
}

// TextureBackend uploads textures and builds samplers for texture maps.
type TextureBackend interface {
	TextureCreate(pixels []byte, texture *metadata.Texture) error
	TextureDestroy(texture *metadata.Texture)
	TextureMapAcquireResources(textureMap *metadata.TextureMap) error
	TextureMapReleaseResources(textureMap *metadata.TextureMap)
}

// ImageSource decodes named images into RGBA8 pixels.
type ImageSource interface {
	LoadImage(name string, params *metadata.ImageResourceParams) (*metadata.ImageResourceData, error)
}

type TextureSystem struct {
	Config         *TextureSystemConfig
	DefaultTexture *metadata.Texture
	// Hashtable for texture lookups.
	RegisteredTextureTable map[string]*metadata.TextureReference

	nextID  uint32
	backend TextureBackend
	images  ImageSource
}

func NewTextureSystem(config *TextureSystemConfig, backend TextureBackend, images ImageSource) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := errors.New("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}
	return &TextureSystem{
		Config:                 config,
		RegisteredTextureTable: make(map[string]*metadata.TextureReference),
		backend:                backend,
		images:                 images,
	}, nil
}

// Initialize uploads the generated default texture.
func (ts *TextureSystem) Initialize() error {
	// NOTE: The default texture is built in code to eliminate asset dependencies.
	ts.DefaultTexture = &metadata.Texture{
		ID:           metadata.InvalidID,
		Name:         metadata.DEFAULT_TEXTURE_NAME,
		TextureType:  metadata.TextureType2d,
		Width:        defaultTextureDimension,
		Height:       defaultTextureDimension,
		ChannelCount: defaultTextureChannels,
	}
	pixels := Checkerboard(defaultTextureDimension, checkerCellSize)
	if err := ts.backend.TextureCreate(pixels, ts.DefaultTexture); err != nil {
		core.LogError("failed to create the default texture: %s", err.Error())
		return err
	}
	return nil
}

func (ts *TextureSystem) Shutdown() error {
	for name, ref := range ts.RegisteredTextureTable {
		ts.backend.TextureDestroy(ref.Texture)
		delete(ts.RegisteredTextureTable, name)
	}
	if ts.DefaultTexture != nil {
		ts.backend.TextureDestroy(ts.DefaultTexture)
		ts.DefaultTexture = nil
	}
	return nil
}

func (ts *TextureSystem) GetDefaultTexture() *metadata.Texture {
	return ts.DefaultTexture
}

// Acquire returns the named texture, loading it through the image source on
// first use. Each call adds a reference.
func (ts *TextureSystem) Acquire(name string, autoRelease bool) (*metadata.Texture, error) {
	if name == metadata.DEFAULT_TEXTURE_NAME {
		core.LogWarn("texture system Acquire called for default texture. Use GetDefaultTexture for texture 'default'")
		return ts.DefaultTexture, nil
	}
	if ref, ok := ts.RegisteredTextureTable[name]; ok {
		ref.ReferenceCount++
		return ref.Texture, nil
	}
	if ts.images == nil {
		return nil, errors.Newf("texture system has no image source to load `%s` from", name)
	}

	image, err := ts.images.LoadImage(name, &metadata.ImageResourceParams{FlipY: true})
	if err != nil {
		core.LogError("failed to load image resource for texture `%s`: %s", name, err.Error())
		return nil, err
	}
	texture, err := ts.create(name, image.Width, image.Height, image.ChannelCount, image.Pixels, image.HasTransparency)
	if err != nil {
		return nil, err
	}
	ts.RegisteredTextureTable[name] = &metadata.TextureReference{
		ReferenceCount: 1,
		Texture:        texture,
		AutoRelease:    autoRelease,
	}
	return texture, nil
}

// AcquireAsync decodes the named image on a job worker and uploads it when
// jobs.Update runs. onLoaded receives the texture, or the error, on the
// update thread. Already loaded textures complete immediately.
func (ts *TextureSystem) AcquireAsync(jobs *JobSystem, name string, autoRelease bool, onLoaded func(*metadata.Texture, error)) error {
	if _, ok := ts.RegisteredTextureTable[name]; ok || name == metadata.DEFAULT_TEXTURE_NAME || ts.images == nil {
		onLoaded(ts.Acquire(name, autoRelease))
		return nil
	}
	images := ts.images
	return jobs.Submit(Job{
		Start: func() (interface{}, error) {
			return images.LoadImage(name, &metadata.ImageResourceParams{FlipY: true})
		},
		Complete: func(result interface{}) {
			// A synchronous acquire may have won the race.
			if ref, ok := ts.RegisteredTextureTable[name]; ok {
				ref.ReferenceCount++
				onLoaded(ref.Texture, nil)
				return
			}
			image := result.(*metadata.ImageResourceData)
			texture, err := ts.create(name, image.Width, image.Height, image.ChannelCount, image.Pixels, image.HasTransparency)
			if err != nil {
				onLoaded(nil, err)
				return
			}
			ts.RegisteredTextureTable[name] = &metadata.TextureReference{
				ReferenceCount: 1,
				Texture:        texture,
				AutoRelease:    autoRelease,
			}
			onLoaded(texture, nil)
		},
		Fail: func(err error) {
			onLoaded(nil, errors.Wrapf(err, "failed to load texture `%s`", name))
		},
	})
}

// CreateFromPixels registers a texture built in code. An empty name gets a
// generated unique one.
func (ts *TextureSystem) CreateFromPixels(name string, width, height uint32, channelCount uint8, pixels []byte) (*metadata.Texture, error) {
	if name == "" {
		name = "texture_" + uuid.NewString()
	}
	if _, ok := ts.RegisteredTextureTable[name]; ok || name == metadata.DEFAULT_TEXTURE_NAME {
		err := errors.Newf("a texture named `%s` already exists", name)
		core.LogError("%s", err)
		return nil, err
	}
	texture, err := ts.create(name, width, height, channelCount, pixels, hasTransparency(pixels, channelCount))
	if err != nil {
		return nil, err
	}
	// Textures made in code are owned by the caller and never auto-released.
	ts.RegisteredTextureTable[name] = &metadata.TextureReference{ReferenceCount: 1, Texture: texture}
	return texture, nil
}

func (ts *TextureSystem) create(name string, width, height uint32, channelCount uint8, pixels []byte, transparent bool) (*metadata.Texture, error) {
	if len(ts.RegisteredTextureTable) >= int(ts.Config.MaxTextureCount) {
		err := errors.Newf("texture system cannot hold more than %d textures", ts.Config.MaxTextureCount)
		core.LogError("%s", err)
		return nil, err
	}
	texture := &metadata.Texture{
		ID:           ts.nextID,
		Name:         name,
		TextureType:  metadata.TextureType2d,
		Width:        width,
		Height:       height,
		ChannelCount: channelCount,
	}
	if transparent {
		texture.Flags |= metadata.TextureFlagBits(metadata.TextureFlagHasTransparency)
	}
	if err := ts.backend.TextureCreate(pixels, texture); err != nil {
		core.LogError("failed to create texture `%s`: %s", name, err.Error())
		return nil, err
	}
	ts.nextID++
	return texture, nil
}

// Release drops a reference. Auto-release textures are destroyed with their last reference.
func (ts *TextureSystem) Release(name string) {
	if name == metadata.DEFAULT_TEXTURE_NAME {
		return
	}
	ref, ok := ts.RegisteredTextureTable[name]
	if !ok {
		core.LogWarn("tried to release non-existent texture: '%s'", name)
		return
	}
	if ref.ReferenceCount > 0 {
		ref.ReferenceCount--
	}
	if ref.ReferenceCount == 0 && ref.AutoRelease {
		ts.backend.TextureDestroy(ref.Texture)
		delete(ts.RegisteredTextureTable, name)
		core.LogDebug("Released texture '%s'. Texture unloaded because reference count=0 and auto release=true.", name)
	}
}

// AcquireMap creates a linear, repeating texture map for texture with its
// sampler. A nil texture maps the default texture.
func (ts *TextureSystem) AcquireMap(texture *metadata.Texture, use metadata.TextureUse) (*metadata.TextureMap, error) {
	if texture == nil {
		texture = ts.DefaultTexture
	}
	textureMap := &metadata.TextureMap{
		Texture:       texture,
		Use:           use,
		FilterMinify:  metadata.TextureFilterModeLinear,
		FilterMagnify: metadata.TextureFilterModeLinear,
		RepeatU:       metadata.TextureRepeatRepeat,
		RepeatV:       metadata.TextureRepeatRepeat,
		RepeatW:       metadata.TextureRepeatRepeat,
	}
	if err := ts.backend.TextureMapAcquireResources(textureMap); err != nil {
		core.LogError("failed to acquire resources for texture map: %s", err.Error())
		return nil, err
	}
	return textureMap, nil
}

func (ts *TextureSystem) ReleaseMap(textureMap *metadata.TextureMap) {
	ts.backend.TextureMapReleaseResources(textureMap)
}

// Checkerboard returns dimension x dimension RGBA8 pixels of blue and white
// cells, cell pixels wide.
func Checkerboard(dimension, cell uint32) []byte {
	if cell == 0 {
		cell = 1
	}
	channels := uint32(defaultTextureChannels)
	pixels := make([]byte, dimension*dimension*channels)
	for i := range pixels {
		pixels[i] = 255
	}
	for row := uint32(0); row < dimension; row++ {
		for col := uint32(0); col < dimension; col++ {
			if (row/cell)%2 == (col/cell)%2 {
				continue
			}
			index := (row*dimension + col) * channels
			// Drop red and green to leave blue.
			pixels[index+0] = 0
			pixels[index+1] = 0
		}
	}
	return pixels
}

func hasTransparency(pixels []byte, channelCount uint8) bool {
	if channelCount != 4 {
		return false
	}
	for i := 3; i < len(pixels); i += 4 {
		if pixels[i] < 255 {
			return true
		}
	}
	return false
}
