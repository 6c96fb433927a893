package octree

import (
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/spatialmath"
)

// SceneNode is the renderer's handle to a promoted node. Implementations
// belong to the render collaborator; the engine only toggles them.
type SceneNode interface {
	SetVisible(visible bool)
	ShowBoundingBox(show bool)
}

// ScenePromoter creates renderer handles for newly promoted tree nodes. A
// nil promoter is fine; tree nodes then carry no scene handle.
type ScenePromoter interface {
	Promote(node *TreeNode) SceneNode
}

// TreeNode mirrors one loaded geometry node in the promoted tree handed to
// the renderer. It exists only while its geometry is Loaded.
type TreeNode struct {
	geometry  *GeometryNode
	parent    *TreeNode
	children  [8]*TreeNode
	sceneNode SceneNode
	visible   bool
}

// Promote wraps a loaded geometry node into the promoted tree under parent,
// nil for roots. Promoting an already promoted node returns the existing
// tree node.
func Promote(g *GeometryNode, parent *TreeNode, promoter ScenePromoter) (*TreeNode, error) {
	if g.tree != nil {
		return g.tree, nil
	}
	if g.state != Loaded {
		return nil, errors.Errorf("cannot promote node %s in state %s", g.name, g.state)
	}
	node := &TreeNode{geometry: g, parent: parent}
	if promoter != nil {
		node.sceneNode = promoter.Promote(node)
	}
	if parent != nil {
		parent.children[g.index] = node
	}
	g.tree = node
	return node, nil
}

// Geometry returns the wrapped geometry node.
func (t *TreeNode) Geometry() *GeometryNode { return t.geometry }

// Parent returns the promoted parent, nil for roots.
func (t *TreeNode) Parent() *TreeNode { return t.parent }

// Child returns the promoted child in octant slot i, or nil.
func (t *TreeNode) Child(i int) *TreeNode { return t.children[i] }

// SceneNode returns the renderer handle, or nil when promoted without one.
func (t *TreeNode) SceneNode() SceneNode { return t.sceneNode }

// Visible reports whether the node was shown by the most recent update.
func (t *TreeNode) Visible() bool { return t.visible }

// SetVisible shows or hides the node, forwarding to the scene handle.
func (t *TreeNode) SetVisible(visible bool) {
	t.visible = visible
	if t.sceneNode != nil {
		t.sceneNode.SetVisible(visible)
	}
}

// ShowBoundingBox toggles the node's debug box on the scene handle.
func (t *TreeNode) ShowBoundingBox(show bool) {
	if t.sceneNode != nil {
		t.sceneNode.ShowBoundingBox(show)
	}
}

// ID returns the id of the wrapped geometry node.
func (t *TreeNode) ID() uint64 { return t.geometry.ID() }

// Level returns the depth of the wrapped geometry node.
func (t *TreeNode) Level() int { return t.geometry.Level() }

// NumPoints returns the point count of the wrapped geometry node.
func (t *TreeNode) NumPoints() int { return t.geometry.NumPoints() }

// Bounds returns the cloud-local bounds of the wrapped geometry node.
func (t *TreeNode) Bounds() spatialmath.Box { return t.geometry.Bounds() }

// BoundingSphere returns the sphere enclosing Bounds.
func (t *TreeNode) BoundingSphere() spatialmath.Sphere { return t.geometry.BoundingSphere() }

var (
	_ Node = (*GeometryNode)(nil)
	_ Node = (*TreeNode)(nil)
)
