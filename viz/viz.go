// Package viz renders debug views of streaming state without any GPU
// involvement: a top down projection of the nodes the last visibility
// update decided to show.
package viz

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/camera"
	"github.com/lidarview/pointstream/octree"
	"github.com/lidarview/pointstream/spatialmath"
	"github.com/lidarview/pointstream/utils"
)

// RenderTopDown draws the visible nodes of clouds onto the X/Z ground
// plane, one rectangle per node colored by level, plus a position and
// heading marker for cam when given.
func RenderTopDown(clouds []*octree.PointCloud, cam *camera.Camera, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("render size must be positive, got %dx%d", width, height)
	}

	type worldBox struct {
		bounds spatialmath.Box
		level  int
	}
	var boxes []worldBox
	for _, cloud := range clouds {
		for _, node := range cloud.VisibleNodes {
			boxes = append(boxes, worldBox{
				bounds: node.Bounds().Transform(cloud.Pose),
				level:  node.Level(),
			})
		}
	}
	if len(boxes) == 0 && cam == nil {
		return nil, errors.New("nothing to render")
	}

	var extent spatialmath.Box
	var sized bool
	for _, b := range boxes {
		if !sized {
			extent = b.bounds
			sized = true
			continue
		}
		extent = extent.Union(b.bounds)
	}
	if cam != nil {
		if !sized {
			extent = spatialmath.NewBox(cam.Position(), cam.Position())
		} else {
			extent = extent.Extend(cam.Position())
		}
	}

	margin := math.Min(20, math.Min(float64(width), float64(height))/10)
	spanX := extent.Size().X
	spanZ := extent.Size().Z
	if spanX <= 0 {
		spanX = 1
	}
	if spanZ <= 0 {
		spanZ = 1
	}
	scale := math.Min((float64(width)-2*margin)/spanX, (float64(height)-2*margin)/spanZ)
	toPx := func(pt r3.Vector) (float64, float64) {
		return margin + (pt.X-extent.Min.X)*scale, margin + (extent.Max.Z-pt.Z)*scale
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(0.07, 0.08, 0.1)
	dc.Clear()

	for _, b := range boxes {
		col := levelColor(b.level)
		x0, y0 := toPx(r3.Vector{X: b.bounds.Min.X, Z: b.bounds.Max.Z})
		x1, y1 := toPx(r3.Vector{X: b.bounds.Max.X, Z: b.bounds.Min.Z})
		dc.SetRGBA(col.R, col.G, col.B, 0.12)
		dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
		dc.Fill()
		dc.SetColor(col)
		dc.SetLineWidth(1.5)
		dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
		dc.Stroke()
	}

	if cam != nil {
		x, y := toPx(cam.Position())
		dc.SetRGB(1, 1, 1)
		dc.DrawCircle(x, y, 4)
		dc.Fill()
		forward := cam.Pose.Col(2).Vec3()
		dx, dz := -forward.X(), -forward.Z()
		// a camera looking straight down has no planar heading to draw
		if norm := math.Hypot(dx, dz); !utils.Float64AlmostEqual(norm, 0, 1e-9) {
			dc.DrawLine(x, y, x+dx/norm*16, y-dz/norm*16)
			dc.SetLineWidth(2)
			dc.Stroke()
		}
	}

	return dc.Image(), nil
}

// levelColor walks a hue ramp so deeper nodes stand apart from their
// ancestors.
func levelColor(level int) colorful.Color {
	hue := math.Mod(210+float64(level)*47, 360)
	return colorful.Hsv(hue, 0.65, 0.92)
}
