package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spaghettifunk/tundra/engine/assets/loaders"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

const (
	shaderDir  = "shaders"
	textureDir = "textures"
	// Changes queued while the engine is busy. Further events are dropped.
	changeBufferSize = 64
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

type AssetInfo struct {
	// Assigned once when the file is first indexed.
	ID         string
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// AssetManager indexes an asset directory, loads files through typed loaders
// and, with hot reload on, reports changed files on Changes.
type AssetManager struct {
	dir       string
	hotReload bool

	assets  map[string]*AssetInfo
	loaders map[metadata.ResourceType]Loader
	// asset path -> names of shaders built from it
	dependents map[string]map[string]struct{}

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetManager(dir string, hotReload bool) (*AssetManager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid asset directory %s", dir)
	}
	return &AssetManager{
		dir:        abs,
		hotReload:  hotReload,
		assets:     make(map[string]*AssetInfo),
		loaders:    make(map[metadata.ResourceType]Loader),
		dependents: make(map[string]map[string]struct{}),
		changes:    make(chan string, changeBufferSize),
		done:       make(chan struct{}),
	}, nil
}

func (am *AssetManager) Initialize() error {
	// Register loaders
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderConfigLoader{})
	am.registerLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.registerLoader(metadata.ResourceTypeShaderSource, &loaders.WGSLLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})

	if !am.hotReload {
		return am.walk(am.dir, nil)
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		err = errors.Wrap(err, "failed to create the asset watcher")
		core.LogError("%s", err)
		return err
	}
	am.fsnotify = fsWatch
	if err := am.walk(am.dir, fsWatch.Add); err != nil {
		fsWatch.Close()
		return err
	}
	am.wg.Add(1)
	go am.start()
	core.LogInfo("watching %s for asset changes", am.dir)
	return nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	if am.fsnotify != nil {
		close(am.done)
		am.wg.Wait()
	}
	return nil
}

// Changes delivers the relative paths of indexed files that were created or
// written. It is never closed.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Lookup returns the index entry for a path relative to the asset directory.
func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	asset, ok := am.assets[filepath.ToSlash(path)]
	if !ok {
		return AssetInfo{}, false
	}
	return *asset, true
}

// LoadAsset loads an indexed asset, path relative to the asset directory.
func (am *AssetManager) LoadAsset(path string, params interface{}) (*metadata.Resource, error) {
	key := filepath.ToSlash(path)
	am.mutex.Lock()
	asset, exists := am.assets[key]
	if exists {
		asset.LastLoaded = time.Now()
	}
	am.mutex.Unlock()
	if !exists {
		err := errors.Newf("asset not found: %s", key)
		core.LogError("%s", err)
		return nil, err
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		err := errors.Newf("no loader registered for asset type: %s", asset.Type)
		core.LogError("%s", err)
		return nil, err
	}
	resource, err := loader.Load(filepath.Join(am.dir, filepath.FromSlash(key)), asset.Type, params)
	if err != nil {
		return nil, err
	}
	resource.ID = asset.ID
	return resource, nil
}

func (am *AssetManager) UnloadAsset(resource *metadata.Resource) error {
	key, err := filepath.Rel(am.dir, resource.FullPath)
	if err != nil {
		return errors.Wrapf(err, "resource %s is not an indexed asset", resource.Name)
	}
	asset, ok := am.Lookup(key)
	if !ok {
		return errors.Newf("resource %s is not an indexed asset", resource.Name)
	}
	return am.loaders[asset.Type].Unload(resource)
}

// LoadShaderConfig reads shaders/<name>.shadercfg.
func (am *AssetManager) LoadShaderConfig(name string) (*metadata.ShaderConfig, error) {
	path := shaderDir + "/" + name + ".shadercfg"
	resource, err := am.LoadAsset(path, nil)
	if err != nil {
		return nil, err
	}
	config := resource.Data.(*metadata.ShaderConfig)
	am.addDependent(path, config.Name)
	return config, nil
}

// LoadShaderStages returns SPIR-V for each stage file of config. Stage files
// are relative to the asset directory; .wgsl stages are compiled on load.
func (am *AssetManager) LoadShaderStages(config *metadata.ShaderConfig) ([][]byte, error) {
	stageCode := make([][]byte, len(config.StageFilenames))
	for i, file := range config.StageFilenames {
		resource, err := am.LoadAsset(file, map[string]string{"name": config.Name + "." + config.Stages[i].String()})
		if err != nil {
			return nil, errors.Wrapf(err, "shader `%s` stage %d", config.Name, i)
		}
		code, ok := resource.Data.([]byte)
		if !ok {
			return nil, errors.Newf("shader `%s` stage file %s is not a shader binary or source", config.Name, file)
		}
		stageCode[i] = code
		am.addDependent(file, config.Name)
	}
	return stageCode, nil
}

// LoadImage decodes textures/<name> with any supported image extension.
func (am *AssetManager) LoadImage(name string, params *metadata.ImageResourceParams) (*metadata.ImageResourceData, error) {
	for _, ext := range imageExtensions {
		path := textureDir + "/" + name + ext
		if _, ok := am.Lookup(path); !ok {
			continue
		}
		resource, err := am.LoadAsset(path, params)
		if err != nil {
			return nil, err
		}
		return resource.Data.(*metadata.ImageResourceData), nil
	}
	err := errors.Newf("no image named `%s` in %s", name, textureDir)
	core.LogError("%s", err)
	return nil, err
}

// ShadersUsing names the shaders whose config or stages were loaded from path.
func (am *AssetManager) ShadersUsing(path string) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	names := make([]string, 0, len(am.dependents[path]))
	for name := range am.dependents[path] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (am *AssetManager) addDependent(path, shader string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	key := filepath.ToSlash(path)
	if am.dependents[key] == nil {
		am.dependents[key] = make(map[string]struct{})
	}
	am.dependents[key][shader] = struct{}{}
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case e, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", e.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.walk(e.Name, am.fsnotify.Add); err != nil {
				core.LogWarn("failed to watch new directory %s: %s", e.Name, err.Error())
			}
			return
		}
	}
	// Handle create or modify events
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if key, ok := am.handleFileEvent(e.Name); ok {
			select {
			case am.changes <- key:
			default:
				core.LogWarn("asset change queue full, dropping %s", key)
			}
		}
	}
	// A removed directory cannot be told apart from a file, so both are dropped
	// from the index and the watch list.
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(e.Name)
		_ = am.fsnotify.Remove(e.Name)
	}
}

// walk indexes every file under root, calling watch for each directory.
func (am *AssetManager) walk(root string, watch func(string) error) error {
	return filepath.Walk(root, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, "failed to index assets")
		}
		if fi.IsDir() {
			if watch != nil {
				return watch(walkPath)
			}
			return nil
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file. Returns the index key when
// the file is a known asset type.
func (am *AssetManager) handleFileEvent(path string) (string, bool) {
	assetType, ok := determineAssetType(path)
	if !ok {
		return "", false
	}
	key, ok := am.key(path)
	if !ok {
		return "", false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	if _, exists := am.assets[key]; !exists {
		am.assets[key] = &AssetInfo{
			ID:   uuid.NewString(),
			Path: key,
			Type: assetType,
		}
	}
	return key, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	key, ok := am.key(path)
	if !ok {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, key)
}

func (am *AssetManager) key(path string) (string, bool) {
	rel, err := filepath.Rel(am.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func determineAssetType(path string) (metadata.ResourceType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".shadercfg":
		return metadata.ResourceTypeShader, true
	case ".spv":
		return metadata.ResourceTypeBinary, true
	case ".wgsl":
		return metadata.ResourceTypeShaderSource, true
	}
	for _, image := range imageExtensions {
		if ext == image {
			return metadata.ResourceTypeImage, true
		}
	}
	return metadata.ResourceTypeCustom, false
}
