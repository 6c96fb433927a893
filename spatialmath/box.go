// Package spatialmath defines the geometric primitives the streaming engine
// culls with: axis-aligned boxes, bounding spheres, planes and view frustums.
// Everything here is allocation-free and safe to copy by value.
package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Box is an axis-aligned bounding box. Min must not exceed Max on any axis.
type Box struct {
	Min r3.Vector
	Max r3.Vector
}

// NewBox creates a box spanning min to max.
func NewBox(min, max r3.Vector) Box {
	return Box{Min: min, Max: max}
}

// NewBoxFromCenter creates a box centered at center with the given full size.
func NewBoxFromCenter(center, size r3.Vector) Box {
	half := size.Mul(0.5)
	return Box{Min: center.Sub(half), Max: center.Add(half)}
}

// Center returns the midpoint of the box.
func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the edge lengths of the box.
func (b Box) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// ContainsPoint reports whether pt lies inside the box, boundary included.
func (b Box) ContainsPoint(pt r3.Vector) bool {
	return pt.X >= b.Min.X && pt.X <= b.Max.X &&
		pt.Y >= b.Min.Y && pt.Y <= b.Max.Y &&
		pt.Z >= b.Min.Z && pt.Z <= b.Max.Z
}

// IntersectsBox reports whether the two boxes overlap or touch.
func (b Box) IntersectsBox(other Box) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// BoundingSphere returns the smallest sphere enclosing the box.
func (b Box) BoundingSphere() Sphere {
	return Sphere{Center: b.Center(), Radius: b.Size().Norm() / 2}
}

// Octant returns the i-th child cube of the box. Bit 0 of i selects the upper
// X half, bit 1 the upper Y half and bit 2 the upper Z half.
func (b Box) Octant(i int) Box {
	c := b.Center()
	out := Box{Min: b.Min, Max: c}
	if i&1 != 0 {
		out.Min.X = c.X
		out.Max.X = b.Max.X
	}
	if i&2 != 0 {
		out.Min.Y = c.Y
		out.Max.Y = b.Max.Y
	}
	if i&4 != 0 {
		out.Min.Z = c.Z
		out.Max.Z = b.Max.Z
	}
	return out
}

// Corners returns the eight vertices of the box.
func (b Box) Corners() [8]r3.Vector {
	var out [8]r3.Vector
	for i := 0; i < 8; i++ {
		out[i] = r3.Vector{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z}
		if i&1 != 0 {
			out[i].X = b.Max.X
		}
		if i&2 != 0 {
			out[i].Y = b.Max.Y
		}
		if i&4 != 0 {
			out[i].Z = b.Max.Z
		}
	}
	return out
}

// Extend grows the box to include pt.
func (b Box) Extend(pt r3.Vector) Box {
	if pt.X < b.Min.X {
		b.Min.X = pt.X
	}
	if pt.Y < b.Min.Y {
		b.Min.Y = pt.Y
	}
	if pt.Z < b.Min.Z {
		b.Min.Z = pt.Z
	}
	if pt.X > b.Max.X {
		b.Max.X = pt.X
	}
	if pt.Y > b.Max.Y {
		b.Max.Y = pt.Y
	}
	if pt.Z > b.Max.Z {
		b.Max.Z = pt.Z
	}
	return b
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(other Box) Box {
	return b.Extend(other.Min).Extend(other.Max)
}

// Transform maps the box through m and returns the axis-aligned box of the
// transformed corners. The result is conservative for rotations.
func (b Box) Transform(m mgl64.Mat4) Box {
	corners := b.Corners()
	out := Box{Min: TransformPoint(m, corners[0])}
	out.Max = out.Min
	for _, c := range corners[1:] {
		out = out.Extend(TransformPoint(m, c))
	}
	return out
}

// TransformPoint maps pt through m as a position (w = 1).
func TransformPoint(m mgl64.Mat4, pt r3.Vector) r3.Vector {
	v := m.Mul4x1(mgl64.Vec4{pt.X, pt.Y, pt.Z, 1})
	return r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
}
