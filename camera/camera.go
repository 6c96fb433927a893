// Package camera models the virtual viewer whose pose and optics drive level
// of detail selection. A Camera owns matrices only; screen-space sizing of
// octree nodes happens in the scheduler.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/spatialmath"
)

// Projection selects how the camera maps the scene onto the viewport.
type Projection int

const (
	// Perspective foreshortens with distance.
	Perspective Projection = iota
	// Orthographic keeps apparent sizes constant with distance.
	Orthographic
)

// Camera is a viewer with a pose in world space. The zero value is not
// usable; build cameras with NewPerspectiveCamera or NewOrthographicCamera.
type Camera struct {
	Projection Projection

	// FOV is the full vertical field of view in radians. Perspective only.
	FOV    float64
	Aspect float64
	Near   float64
	Far    float64

	// OrthoTop and OrthoBottom bound the vertical extent of an orthographic
	// view volume; left and right follow from the aspect ratio.
	OrthoTop    float64
	OrthoBottom float64
	OrthoLeft   float64
	OrthoRight  float64

	// Pose is the camera to world transform.
	Pose mgl64.Mat4
}

// NewPerspectiveCamera creates a perspective camera. fov is the full vertical
// field of view in radians.
func NewPerspectiveCamera(fov, aspect, near, far float64) (*Camera, error) {
	if fov <= 0 || fov >= math.Pi {
		return nil, errors.Errorf("fov must be in (0, pi) radians, got %v", fov)
	}
	if aspect <= 0 {
		return nil, errors.Errorf("aspect ratio must be positive, got %v", aspect)
	}
	if err := checkPlanes(near, far); err != nil {
		return nil, err
	}
	return &Camera{
		Projection: Perspective,
		FOV:        fov,
		Aspect:     aspect,
		Near:       near,
		Far:        far,
		Pose:       mgl64.Ident4(),
	}, nil
}

// NewOrthographicCamera creates an orthographic camera whose view volume
// spans bottom to top vertically.
func NewOrthographicCamera(top, bottom, aspect, near, far float64) (*Camera, error) {
	if top <= bottom {
		return nil, errors.Errorf("ortho top %v must exceed bottom %v", top, bottom)
	}
	if aspect <= 0 {
		return nil, errors.Errorf("aspect ratio must be positive, got %v", aspect)
	}
	if err := checkPlanes(near, far); err != nil {
		return nil, err
	}
	halfWidth := (top - bottom) / 2 * aspect
	return &Camera{
		Projection:  Orthographic,
		Aspect:      aspect,
		Near:        near,
		Far:         far,
		OrthoTop:    top,
		OrthoBottom: bottom,
		OrthoLeft:   -halfWidth,
		OrthoRight:  halfWidth,
		Pose:        mgl64.Ident4(),
	}, nil
}

func checkPlanes(near, far float64) error {
	if near <= 0 || far <= near {
		return errors.Errorf("clip planes must satisfy 0 < near < far, got near %v far %v", near, far)
	}
	return nil
}

// Position returns the world-space location of the camera.
func (c *Camera) Position() r3.Vector {
	v := c.Pose.Col(3).Vec3()
	return r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
}

// LookAt places the camera at eye facing target, with up as the vertical
// hint. eye and target must not coincide.
func (c *Camera) LookAt(eye, target, up r3.Vector) {
	view := mgl64.LookAtV(toVec3(eye), toVec3(target), toVec3(up))
	c.Pose = view.Inv()
}

// ViewMatrix returns the world to camera transform.
func (c *Camera) ViewMatrix() mgl64.Mat4 {
	return c.Pose.Inv()
}

// ProjectionMatrix returns the camera to clip transform.
func (c *Camera) ProjectionMatrix() mgl64.Mat4 {
	if c.Projection == Orthographic {
		return mgl64.Ortho(c.OrthoLeft, c.OrthoRight, c.OrthoBottom, c.OrthoTop, c.Near, c.Far)
	}
	return mgl64.Perspective(c.FOV, c.Aspect, c.Near, c.Far)
}

// ViewProjection returns the world to clip transform.
func (c *Camera) ViewProjection() mgl64.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

// Frustum returns the camera's view volume in world space.
func (c *Camera) Frustum() spatialmath.Frustum {
	return spatialmath.FrustumFromMatrix(c.ViewProjection())
}

func toVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
