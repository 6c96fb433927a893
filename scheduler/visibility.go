package scheduler

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/lidarview/pointstream/camera"
	"github.com/lidarview/pointstream/octree"
	"github.com/lidarview/pointstream/spatialmath"
)

// maxWeight seeds roots and marks nodes the camera sits inside, which must
// pop before anything sized.
const maxWeight = math.MaxFloat64

// cloudView is the per-cloud view state derived once per frame.
type cloudView struct {
	frustum  spatialmath.Frustum
	camLocal r3.Vector
}

// UpdateVisibility runs one frame of level of detail selection over clouds
// as seen by cam. It pops nodes best first, stops hard at the point budget,
// promotes up to the per-frame cap, refreshes cache recency for everything
// shown, enforces the cache budget and starts loads for the best missing
// nodes.
func (s *Scheduler) UpdateVisibility(
	ctx context.Context,
	clouds []*octree.PointCloud,
	cam *camera.Camera,
	vp Viewport,
) (*Result, error) {
	start := s.clock.Now()

	var invalid error
	if cam == nil {
		invalid = multierr.Combine(invalid, errors.New("camera is required"))
	}
	if vp.Height <= 0 {
		invalid = multierr.Combine(invalid, errors.Errorf("viewport height must be positive, got %v", vp.Height))
	}
	if invalid != nil {
		return nil, invalid
	}

	s.drainCompletions()

	viewProj := cam.ViewProjection()
	camWorld := cam.Position()

	result := &Result{}
	queue := &pqueue{}
	views := make([]cloudView, len(clouds))

	for i, cloud := range clouds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !cloud.Initialized() {
			continue
		}
		// hide everything promoted so far; the walk re-shows this frame's set
		if tree := cloud.Root.Tree(); tree != nil {
			octree.TraverseTree(tree, func(node *octree.TreeNode) {
				node.SetVisible(false)
			})
		}
		cloud.ResetScratch()
		views[i] = cloudView{
			frustum:  spatialmath.FrustumFromMatrix(viewProj.Mul4(cloud.Pose)),
			camLocal: spatialmath.TransformPoint(cloud.Pose.Inv(), camWorld),
		}
		if cloud.Visible {
			queue.push(queueItem{cloudIndex: i, node: cloud.Root, weight: maxWeight})
		}
	}

	var candidates []loadCandidate
	promotedThisFrame := 0

	for {
		item, ok := queue.pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := item.node
		cloud := clouds[item.cloudIndex]
		view := views[item.cloudIndex]

		// the budget is a hard cutoff for the whole frame, not per cloud
		if result.NumVisiblePoints+int64(node.NumPoints()) > s.pointBudget {
			break
		}
		if cloud.MaxLevel > 0 && node.Level() > cloud.MaxLevel {
			continue
		}
		if !view.frustum.IntersectsBox(node.Bounds()) {
			continue
		}
		if cloud.ClipMode == octree.ClipOutside && len(cloud.ClipBoxes) > 0 &&
			!cloud.InsideClip(node.Bounds().Transform(cloud.Pose)) {
			continue
		}

		result.NumVisiblePoints += int64(node.NumPoints())
		cloud.NumVisiblePoints += node.NumPoints()

		// geometry nodes join the promote/load flow only once their parent
		// holds a promoted tree node; roots have no parent to wait for. The
		// load frontier advances with the promoted frontier.
		if node.Tree() == nil && (node.Parent() == nil || item.parent != nil) {
			switch {
			case node.State() == octree.Loaded && promotedThisFrame < s.maxGPUPromotions:
				if _, err := octree.Promote(node, item.parent, s.promoter); err != nil {
					return nil, errors.Wrap(err, "promoting visible node")
				}
				promotedThisFrame++
			case node.State() == octree.Failed:
				result.NodeLoadFailed = true
				continue
			default:
				if node.State() == octree.Loaded {
					result.ExceededPromotionCap = true
				}
				cloud.VisibleGeometry = append(cloud.VisibleGeometry, node)
				candidates = append(candidates, loadCandidate{node: node, source: cloud.Source})
			}
		}

		if tree := node.Tree(); tree != nil {
			tree.SetVisible(true)
			tree.ShowBoundingBox(cloud.ShowBoundingBoxes)
			s.cache.Touch(node)
			cloud.VisibleNodes = append(cloud.VisibleNodes, tree)
			result.VisibleNodes = append(result.VisibleNodes, tree)
		}

		parentTree := node.Tree()
		for _, child := range node.Children() {
			if child == nil {
				continue
			}
			weight, ok := s.childWeight(cloud, child, view.camLocal, cam, vp)
			if !ok {
				continue
			}
			queue.push(queueItem{
				cloudIndex: item.cloudIndex,
				node:       child,
				parent:     parentTree,
				weight:     weight,
			})
		}
	}

	s.cache.EnforceBudget()
	result.PendingLoads = s.dispatchLoads(candidates)
	result.Duration = s.clock.Since(start)
	s.logger.Debugw("visibility updated",
		"visibleNodes", len(result.VisibleNodes),
		"visiblePoints", result.NumVisiblePoints,
		"pendingLoads", len(result.PendingLoads),
		"duration", result.Duration)
	return result, nil
}

// childWeight sizes child on screen and turns it into a traversal priority.
// ok is false when the node projects smaller than the cloud's pixel cutoff
// and should not be descended into.
func (s *Scheduler) childWeight(
	cloud *octree.PointCloud,
	child *octree.GeometryNode,
	camLocal r3.Vector,
	cam *camera.Camera,
	vp Viewport,
) (weight float64, ok bool) {
	minPixelSize := cloud.MinNodePixelSize
	if minPixelSize <= 0 {
		minPixelSize = s.minNodePixelSize
	}

	sphere := child.BoundingSphere()
	distance := sphere.DistanceToPoint(camLocal)

	var projFactor float64
	if cam.Projection == camera.Orthographic {
		projFactor = vp.Height / (cam.OrthoTop - cam.OrthoBottom)
	} else {
		projFactor = (0.5 * vp.Height) / (math.Tan(cam.FOV/2) * distance)
	}
	screenPixelRadius := sphere.Radius * projFactor
	if screenPixelRadius < minPixelSize {
		return 0, false
	}
	if distance < sphere.Radius {
		// camera inside the bounding sphere
		return maxWeight, true
	}
	// 1/distance breaks ties between equally sized nodes toward the nearer
	return screenPixelRadius + 1/distance, true
}
