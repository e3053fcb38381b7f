package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Every decoded image is expanded to RGBA8.
const imageChannelCount uint8 = 4

type ImageLoader struct{}

func (il *ImageLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	typedParams, ok := params.(*metadata.ImageResourceParams)
	if !ok || typedParams == nil {
		typedParams = &metadata.ImageResourceParams{}
	}

	f, err := os.Open(path)
	if err != nil {
		err = errors.Wrapf(err, "image loader failed to open")
		core.LogError("%s", err)
		return nil, err
	}
	defer f.Close()

	data, err := DecodeImage(f, typedParams.FlipY)
	if err != nil {
		err = errors.Wrapf(err, "%s", path)
		core.LogError("%s", err)
		return nil, err
	}
	return &metadata.Resource{
		Name:     resourceName(path, nil),
		FullPath: path,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// DecodeImage decodes any registered format into tightly packed RGBA8 rows,
// optionally flipped so the first row is the bottom of the image.
func DecodeImage(r io.Reader, flipY bool) (*metadata.ImageResourceData, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, errors.Newf("%s image has no pixels", format)
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)

	width, height := bounds.Dx(), bounds.Dy()
	rowSize := width * int(imageChannelCount)
	pixels := make([]byte, rowSize*height)
	for y := 0; y < height; y++ {
		srcRow := y
		if flipY {
			srcRow = height - 1 - y
		}
		copy(pixels[y*rowSize:(y+1)*rowSize], rgba.Pix[srcRow*rgba.Stride:srcRow*rgba.Stride+rowSize])
	}

	data := &metadata.ImageResourceData{
		ChannelCount: imageChannelCount,
		Width:        uint32(width),
		Height:       uint32(height),
		Pixels:       pixels,
	}
	for i := 3; i < len(pixels); i += 4 {
		if pixels[i] < 255 {
			data.HasTransparency = true
			break
		}
	}
	return data, nil
}
