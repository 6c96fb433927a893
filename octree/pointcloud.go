package octree

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/spatialmath"
)

// Clip volumes either do nothing, mark points for downstream styling, or
// cull whole nodes during traversal. Only ClipOutside affects traversal.
const (
	ClipDisabled = ClipMode(iota)
	ClipHighlight
	ClipOutside
)

// ClipMode selects how a cloud's clip boxes are applied.
type ClipMode int

// PointCloud is one streamable cloud: a geometry hierarchy, the source that
// loads it, and the view state the scheduler maintains for it every frame.
type PointCloud struct {
	Name    string
	Source  Source
	Root    *GeometryNode
	Visible bool

	// Pose maps cloud-local coordinates to world space.
	Pose mgl64.Mat4

	// MinNodePixelSize is the smallest projected node diameter, in pixels,
	// still worth descending into. Zero means the scheduler default.
	MinNodePixelSize float64
	// MaxLevel caps traversal depth. Zero means unlimited.
	MaxLevel int

	ClipMode  ClipMode
	ClipBoxes []spatialmath.Box

	ShowBoundingBoxes bool

	// Per-frame scratch, owned by the scheduler.
	VisibleNodes     []*TreeNode
	VisibleGeometry  []*GeometryNode
	NumVisiblePoints int
}

// NewPointCloud fetches the hierarchy root from source and returns a visible
// cloud posed at the world origin.
func NewPointCloud(ctx context.Context, name string, source Source) (*PointCloud, error) {
	root, err := source.LoadRoot(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "loading hierarchy root of %q", name)
	}
	return &PointCloud{
		Name:    name,
		Source:  source,
		Root:    root,
		Visible: true,
		Pose:    mgl64.Ident4(),
	}, nil
}

// Initialized reports whether the hierarchy root has arrived.
func (cloud *PointCloud) Initialized() bool {
	return cloud.Root != nil
}

// ResetScratch clears the per-frame visibility scratch, keeping capacity.
func (cloud *PointCloud) ResetScratch() {
	cloud.VisibleNodes = cloud.VisibleNodes[:0]
	cloud.VisibleGeometry = cloud.VisibleGeometry[:0]
	cloud.NumVisiblePoints = 0
}

// InsideClip reports whether a node with the given world-space bounds
// survives the cloud's clip volumes. Only ClipOutside culls; a node is
// rejected when it misses every clip box.
func (cloud *PointCloud) InsideClip(worldBounds spatialmath.Box) bool {
	if cloud.ClipMode != ClipOutside || len(cloud.ClipBoxes) == 0 {
		return true
	}
	for _, box := range cloud.ClipBoxes {
		if box.IntersectsBox(worldBounds) {
			return true
		}
	}
	return false
}
