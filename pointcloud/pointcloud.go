// Package pointcloud defines the in-memory point containers the streaming
// engine moves around. A Payload holds the decoded points of a single octree
// node; MetaData summarizes extent and channels without touching the points.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/lidarview/pointstream/spatialmath"
)

// NewVector is a convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// MetaData summarizes what is stored in a payload.
type MetaData struct {
	HasIntensity bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData returns a MetaData ready to merge points into.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge grows the metadata to cover v.
func (meta *MetaData) Merge(v r3.Vector) {
	if v.X > meta.MaxX {
		meta.MaxX = v.X
	}
	if v.Y > meta.MaxY {
		meta.MaxY = v.Y
	}
	if v.Z > meta.MaxZ {
		meta.MaxZ = v.Z
	}
	if v.X < meta.MinX {
		meta.MinX = v.X
	}
	if v.Y < meta.MinY {
		meta.MinY = v.Y
	}
	if v.Z < meta.MinZ {
		meta.MinZ = v.Z
	}
}

// Bounds returns the extent as a box. Only valid after at least one Merge.
func (meta MetaData) Bounds() spatialmath.Box {
	return spatialmath.NewBox(
		r3.Vector{X: meta.MinX, Y: meta.MinY, Z: meta.MinZ},
		r3.Vector{X: meta.MaxX, Y: meta.MaxY, Z: meta.MaxZ},
	)
}
