package systems

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

type fakeTextureBackend struct {
	created   []string
	destroyed []string
	maps      int
	createErr error
}

func (f *fakeTextureBackend) TextureCreate(pixels []byte, texture *metadata.Texture) error {
	if f.createErr != nil {
		return f.createErr
	}
	want := int(texture.Width * texture.Height * uint32(texture.ChannelCount))
	if len(pixels) != want {
		return errors.Newf("expected %d bytes, got %d", want, len(pixels))
	}
	f.created = append(f.created, texture.Name)
	texture.Generation++
	return nil
}

func (f *fakeTextureBackend) TextureDestroy(texture *metadata.Texture) {
	f.destroyed = append(f.destroyed, texture.Name)
}

func (f *fakeTextureBackend) TextureMapAcquireResources(textureMap *metadata.TextureMap) error {
	f.maps++
	textureMap.InternalData = f.maps
	return nil
}

func (f *fakeTextureBackend) TextureMapReleaseResources(textureMap *metadata.TextureMap) {
	f.maps--
	textureMap.InternalData = nil
}

type fakeImageSource struct {
	loads int
}

func (s *fakeImageSource) LoadImage(name string, params *metadata.ImageResourceParams) (*metadata.ImageResourceData, error) {
	if name == "missing" {
		return nil, errors.New("not found")
	}
	s.loads++
	return &metadata.ImageResourceData{
		ChannelCount: 4,
		Width:        2,
		Height:       2,
		Pixels:       make([]byte, 16),
	}, nil
}

func newTestTextureSystem(t *testing.T) (*TextureSystem, *fakeTextureBackend, *fakeImageSource) {
	t.Helper()
	backend := &fakeTextureBackend{}
	images := &fakeImageSource{}
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 4}, backend, images)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Initialize(); err != nil {
		t.Fatal(err)
	}
	return ts, backend, images
}

func TestCheckerboard(t *testing.T) {
	pixels := Checkerboard(4, 2)
	if len(pixels) != 4*4*4 {
		t.Fatalf("unexpected size %d", len(pixels))
	}
	tests := []struct {
		row, col uint32
		blue     bool
	}{
		{0, 0, false}, {0, 1, false}, {0, 2, true}, {1, 3, true},
		{2, 0, true}, {3, 3, false}, {2, 2, false},
	}
	for _, tc := range tests {
		i := (tc.row*4 + tc.col) * 4
		isBlue := pixels[i] == 0 && pixels[i+1] == 0 && pixels[i+2] == 255
		isWhite := pixels[i] == 255 && pixels[i+1] == 255 && pixels[i+2] == 255
		if tc.blue != isBlue || (!tc.blue && !isWhite) || pixels[i+3] != 255 {
			t.Fatalf("pixel (%d,%d) = %v", tc.row, tc.col, pixels[i:i+4])
		}
	}
}

func TestTextureSystemDefault(t *testing.T) {
	ts, backend, _ := newTestTextureSystem(t)
	def := ts.GetDefaultTexture()
	if def == nil || def.Name != metadata.DEFAULT_TEXTURE_NAME || def.Width != 256 || def.Generation != 1 {
		t.Fatalf("unexpected default texture %+v", def)
	}
	if got, _ := ts.Acquire(metadata.DEFAULT_TEXTURE_NAME, true); got != def {
		t.Fatal("acquiring 'default' must return the default texture")
	}
	ts.Release(metadata.DEFAULT_TEXTURE_NAME)
	if len(backend.destroyed) != 0 {
		t.Fatal("the default texture is never released")
	}
}

func TestTextureSystemReferenceCounting(t *testing.T) {
	ts, backend, images := newTestTextureSystem(t)
	first, err := ts.Acquire("crate", true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ts.Acquire("crate", true)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || images.loads != 1 {
		t.Fatalf("expected one load for two acquires, got %d", images.loads)
	}
	ts.Release("crate")
	if len(backend.destroyed) != 0 {
		t.Fatal("destroyed while still referenced")
	}
	ts.Release("crate")
	if len(backend.destroyed) != 1 || backend.destroyed[0] != "crate" {
		t.Fatalf("expected crate destroyed, got %v", backend.destroyed)
	}
	if _, ok := ts.RegisteredTextureTable["crate"]; ok {
		t.Fatal("released texture still registered")
	}

	kept, _ := ts.Acquire("stone", false)
	ts.Release("stone")
	if ref := ts.RegisteredTextureTable["stone"]; ref == nil || ref.Texture != kept {
		t.Fatal("textures without auto release stay loaded")
	}

	if _, err := ts.Acquire("missing", true); err == nil {
		t.Fatal("expected a load error")
	}
}

func TestTextureSystemCreateFromPixels(t *testing.T) {
	ts, _, _ := newTestTextureSystem(t)
	pixels := make([]byte, 4)
	pixels[3] = 128
	texture, err := ts.CreateFromPixels("", 1, 1, 4, pixels)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(texture.Name, "texture_") || len(texture.Name) != len("texture_")+36 {
		t.Fatalf("expected a generated name, got %q", texture.Name)
	}
	if !texture.HasFlag(metadata.TextureFlagHasTransparency) {
		t.Fatal("alpha below 255 must flag transparency")
	}
	other, err := ts.CreateFromPixels("", 1, 1, 4, []byte{0, 0, 0, 255})
	if err != nil {
		t.Fatal(err)
	}
	if other.Name == texture.Name || other.ID == texture.ID {
		t.Fatal("generated textures must be unique")
	}
	if other.HasFlag(metadata.TextureFlagHasTransparency) {
		t.Fatal("opaque texture flagged transparent")
	}
	if _, err := ts.CreateFromPixels(metadata.DEFAULT_TEXTURE_NAME, 1, 1, 4, pixels); err == nil {
		t.Fatal("the default name is reserved")
	}
}

func TestTextureSystemCapacity(t *testing.T) {
	ts, _, _ := newTestTextureSystem(t)
	for _, name := range []string{"a", "b", "c", "d"} {
		if _, err := ts.Acquire(name, true); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ts.Acquire("e", true); err == nil {
		t.Fatal("expected the texture limit to be enforced")
	}
}

func TestTextureSystemMapsAndShutdown(t *testing.T) {
	ts, backend, _ := newTestTextureSystem(t)
	textureMap, err := ts.AcquireMap(nil, metadata.TextureUseMapDiffuse)
	if err != nil {
		t.Fatal(err)
	}
	if textureMap.Texture != ts.GetDefaultTexture() || textureMap.InternalData == nil {
		t.Fatalf("unexpected map %+v", textureMap)
	}
	if textureMap.FilterMinify != metadata.TextureFilterModeLinear || textureMap.RepeatU != metadata.TextureRepeatRepeat {
		t.Fatal("maps default to linear repeat")
	}
	ts.ReleaseMap(textureMap)
	if backend.maps != 0 {
		t.Fatal("sampler not released")
	}

	if _, err := ts.Acquire("crate", true); err != nil {
		t.Fatal(err)
	}
	if err := ts.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if len(backend.destroyed) != 2 || ts.GetDefaultTexture() != nil {
		t.Fatalf("expected crate and default destroyed, got %v", backend.destroyed)
	}
}

func TestNewTextureSystemRequiresCapacity(t *testing.T) {
	if _, err := NewTextureSystem(&TextureSystemConfig{}, &fakeTextureBackend{}, nil); err == nil {
		t.Fatal("expected an error for zero capacity")
	}
}
