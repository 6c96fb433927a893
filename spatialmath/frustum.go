package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Indices into Frustum.Planes.
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// Frustum is a camera view volume bounded by six planes. Plane normals point
// inward, so a point is inside when its signed distance to every plane is
// non-negative.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts the six frustum planes from a combined
// view-projection matrix using the Gribb/Hartmann method. All planes come
// back normalized.
func FrustumFromMatrix(m mgl64.Mat4) Frustum {
	row0 := m.Row(0)
	row1 := m.Row(1)
	row2 := m.Row(2)
	row3 := m.Row(3)

	var f Frustum
	f.Planes[FrustumLeft] = planeFromVec4(row3.Add(row0))
	f.Planes[FrustumRight] = planeFromVec4(row3.Sub(row0))
	f.Planes[FrustumBottom] = planeFromVec4(row3.Add(row1))
	f.Planes[FrustumTop] = planeFromVec4(row3.Sub(row1))
	f.Planes[FrustumNear] = planeFromVec4(row3.Add(row2))
	f.Planes[FrustumFar] = planeFromVec4(row3.Sub(row2))
	return f
}

func planeFromVec4(v mgl64.Vec4) Plane {
	n := r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
	length := n.Norm()
	if length == 0 {
		return Plane{Normal: n, Offset: v.W()}
	}
	return Plane{Normal: n.Mul(1 / length), Offset: v.W() / length}
}

// ContainsPoint reports whether pt lies inside the frustum.
func (f *Frustum) ContainsPoint(pt r3.Vector) bool {
	for _, p := range f.Planes {
		if p.DistanceToPoint(pt) < 0 {
			return false
		}
	}
	return true
}

// IntersectsBox reports whether the box overlaps the frustum. The test checks
// the box corner furthest along each plane normal, which never rejects an
// intersecting box but may keep a box that only nearly intersects.
func (f *Frustum) IntersectsBox(b Box) bool {
	for _, p := range f.Planes {
		v := b.Min
		if p.Normal.X >= 0 {
			v.X = b.Max.X
		}
		if p.Normal.Y >= 0 {
			v.Y = b.Max.Y
		}
		if p.Normal.Z >= 0 {
			v.Z = b.Max.Z
		}
		if p.DistanceToPoint(v) < 0 {
			return false
		}
	}
	return true
}
