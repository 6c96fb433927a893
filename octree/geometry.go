package octree

import (
	"strconv"
	"sync/atomic"

	"github.com/lidarview/pointstream/spatialmath"

	pc "github.com/lidarview/pointstream/pointcloud"
)

var nextNodeID atomic.Uint64

// GeometryNode is one octree cell. Identity, bounds and point count are
// known from the hierarchy up front; the payload is present only while the
// node is resident in the cache.
//
// All state mutation happens on the frame flow. Loader goroutines only read
// the immutable identity fields, so no locking is needed.
type GeometryNode struct {
	id        uint64
	name      string
	level     int
	index     int
	numPoints int
	bounds    spatialmath.Box
	sphere    spatialmath.Sphere

	parent   *GeometryNode
	children [8]*GeometryNode

	state      NodeState
	generation uint64
	payload    *pc.Payload
	tree       *TreeNode
}

// NewGeometryNode creates an unloaded root-level node with a fresh
// engine-wide id. Children are attached afterwards with SetChild, top down
// so octant names stay consistent.
func NewGeometryNode(level, numPoints int, bounds spatialmath.Box) *GeometryNode {
	return &GeometryNode{
		id:        nextNodeID.Add(1),
		name:      "r",
		level:     level,
		numPoints: numPoints,
		bounds:    bounds,
		sphere:    bounds.BoundingSphere(),
		state:     Unloaded,
	}
}

// SetChild attaches child in octant slot i and wires its parent pointer and
// octant name.
func (g *GeometryNode) SetChild(i int, child *GeometryNode) {
	g.children[i] = child
	child.parent = g
	child.index = i
	child.name = g.name + strconv.Itoa(i)
}

// ID returns the engine-wide node id.
func (g *GeometryNode) ID() uint64 { return g.id }

// Name returns the octant path of the node, "r" for roots.
func (g *GeometryNode) Name() string { return g.name }

// Level returns the depth of the node, 0 for roots.
func (g *GeometryNode) Level() int { return g.level }

// Index returns the octant slot this node occupies in its parent.
func (g *GeometryNode) Index() int { return g.index }

// NumPoints returns the point count known from the hierarchy.
func (g *GeometryNode) NumPoints() int { return g.numPoints }

// Bounds returns the cloud-local bounding box.
func (g *GeometryNode) Bounds() spatialmath.Box { return g.bounds }

// BoundingSphere returns the sphere enclosing Bounds.
func (g *GeometryNode) BoundingSphere() spatialmath.Sphere { return g.sphere }

// Parent returns the parent node, nil for roots.
func (g *GeometryNode) Parent() *GeometryNode { return g.parent }

// Children returns the octant slots; absent children are nil.
func (g *GeometryNode) Children() [8]*GeometryNode { return g.children }

// Child returns the child in octant slot i, or nil.
func (g *GeometryNode) Child(i int) *GeometryNode { return g.children[i] }

// State returns the node's position in the load lifecycle.
func (g *GeometryNode) State() NodeState { return g.state }

// Generation counts how many times the node has been disposed. A load
// completion carrying an older generation is stale and must be dropped.
func (g *GeometryNode) Generation() uint64 { return g.generation }

// Payload returns the decoded points, or nil unless the node is Loaded.
func (g *GeometryNode) Payload() *pc.Payload { return g.payload }

// Tree returns the promoted tree node, or nil if the node has not been
// promoted since it last loaded.
func (g *GeometryNode) Tree() *TreeNode { return g.tree }

// BeginLoad moves the node from Unloaded to Loading and reports whether it
// did. Any other starting state leaves the node untouched.
func (g *GeometryNode) BeginLoad() bool {
	if g.state != Unloaded {
		return false
	}
	g.state = Loading
	return true
}

// FinishLoad installs the payload and moves the node from Loading to Loaded,
// reporting whether it did.
func (g *GeometryNode) FinishLoad(payload *pc.Payload) bool {
	if g.state != Loading {
		return false
	}
	g.payload = payload
	g.state = Loaded
	return true
}

// FailLoad moves the node from Loading to Failed, reporting whether it did.
// Failed is sticky: the node and everything below it stay out of the
// visible set for the rest of the session.
func (g *GeometryNode) FailLoad() bool {
	if g.state != Loading {
		return false
	}
	g.state = Failed
	return true
}

// Dispose releases the payload and returns the node to Unloaded so the
// cache can admit it again later. The generation bump marks any in-flight
// load of the old incarnation stale. Failed nodes stay Failed. Dispose is
// idempotent.
func (g *GeometryNode) Dispose() {
	g.generation++
	g.payload = nil
	if g.tree != nil {
		g.tree.SetVisible(false)
		if g.tree.parent != nil {
			g.tree.parent.children[g.index] = nil
		}
		g.tree = nil
	}
	if g.state != Failed {
		g.state = Unloaded
	}
}
