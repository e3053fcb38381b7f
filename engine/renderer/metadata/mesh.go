package metadata

import (
	"github.com/go-gl/mathgl/mgl32"
)

type Mesh struct {
	UniqueID   uint32
	Generation uint8
	Geometries []*Geometry
	Transform  mgl32.Mat4
	// The shader instance holding this mesh's material data.
	InstanceID InstanceID
}
