package loaders

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/naga"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

// SpirvMagic is the first word of every SPIR-V module.
const SpirvMagic uint32 = 0x07230203

// BinaryLoader reads files verbatim. Files ending in .spv are checked to be
// SPIR-V modules.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "binary loader failed to read")
		core.LogError("%s", err)
		return nil, err
	}
	if filepath.Ext(path) == ".spv" {
		if err := ValidateSpirv(buf); err != nil {
			err = errors.Wrapf(err, "%s", path)
			core.LogError("%s", err)
			return nil, err
		}
	}
	return &metadata.Resource{
		Name:     resourceName(path, params),
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}, nil
}

func (bl *BinaryLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// ValidateSpirv checks the length and magic number of a SPIR-V module.
func ValidateSpirv(code []byte) error {
	if len(code) < 4 || len(code)%4 != 0 {
		return errors.Newf("SPIR-V must be a non-empty multiple of 4 bytes, got %d", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != SpirvMagic {
		return errors.Newf("bad SPIR-V magic 0x%08x", magic)
	}
	return nil
}

// WGSLLoader compiles WGSL stage sources to SPIR-V on load, so shaders can
// be edited and reloaded without an external compiler.
type WGSLLoader struct{}

func (wl *WGSLLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "wgsl loader failed to read")
		core.LogError("%s", err)
		return nil, err
	}
	code, err := CompileWGSL(string(source))
	if err != nil {
		err = errors.Wrapf(err, "%s", path)
		core.LogError("%s", err)
		return nil, err
	}
	return &metadata.Resource{
		Name:     resourceName(path, params),
		FullPath: path,
		DataSize: uint64(len(code)),
		Data:     code,
	}, nil
}

func (wl *WGSLLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// CompileWGSL translates WGSL source to a SPIR-V module.
func CompileWGSL(source string) ([]byte, error) {
	code, err := naga.Compile(source)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile WGSL")
	}
	if err := ValidateSpirv(code); err != nil {
		return nil, errors.Wrap(err, "naga produced an invalid module")
	}
	return code, nil
}

// resourceName takes the name from map[string]string{"name": ...} params,
// falling back to the file name.
func resourceName(path string, params interface{}) string {
	if p, ok := params.(map[string]string); ok && p["name"] != "" {
		return p["name"]
	}
	return filepath.Base(path)
}
