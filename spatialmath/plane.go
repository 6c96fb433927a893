package spatialmath

import (
	"github.com/golang/geo/r3"
)

// Plane is the set of points p satisfying Normal.Dot(p) + Offset == 0.
// Normal is expected to have unit length.
type Plane struct {
	Normal r3.Vector
	Offset float64
}

// DistanceToPoint returns the signed distance from pt to the plane. The sign
// is positive on the side the normal points into.
func (p Plane) DistanceToPoint(pt r3.Vector) float64 {
	return p.Normal.Dot(pt) + p.Offset
}
