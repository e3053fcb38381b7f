package assets

import "github.com/spaghettifunk/tundra/engine/renderer/metadata"

type Loader interface {
	Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) // `interface{}` here allows loaders to take typed params
	Unload(*metadata.Resource) error
}
