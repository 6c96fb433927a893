package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/lidarview/pointstream/utils"
)

// Sphere is a bounding sphere.
type Sphere struct {
	Center r3.Vector
	Radius float64
}

// ContainsPoint reports whether pt lies inside the sphere, boundary included.
func (s Sphere) ContainsPoint(pt r3.Vector) bool {
	return pt.Sub(s.Center).Norm2() <= utils.Square(s.Radius)
}

// DistanceToPoint returns the distance from pt to the sphere center.
func (s Sphere) DistanceToPoint(pt r3.Vector) float64 {
	return pt.Sub(s.Center).Norm()
}

// Transform maps the sphere through m. The radius is scaled by the largest
// basis scale of m, so the result encloses the transformed sphere even under
// non-uniform scaling.
func (s Sphere) Transform(m mgl64.Mat4) Sphere {
	scale := m.Col(0).Vec3().Len()
	if l := m.Col(1).Vec3().Len(); l > scale {
		scale = l
	}
	if l := m.Col(2).Vec3().Len(); l > scale {
		scale = l
	}
	return Sphere{Center: TransformPoint(m, s.Center), Radius: s.Radius * scale}
}
