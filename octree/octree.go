// Package octree implements the sparse level of detail octree the streaming
// engine schedules. Geometry nodes describe the hierarchy and load point
// payloads on demand; tree nodes mirror the loaded subset that has been
// promoted to the renderer.
package octree

import (
	"context"

	"github.com/lidarview/pointstream/spatialmath"

	pc "github.com/lidarview/pointstream/pointcloud"
)

// A geometry node is always in exactly one of these states. Unloaded to
// Loading to Loaded is the normal path, Failed is sticky, and eviction
// returns a Loaded node to Unloaded so it can be fetched again.
const (
	Unloaded = NodeState(iota)
	Loading
	Loaded
	Failed
)

// NodeState tracks where a geometry node is in its load lifecycle.
type NodeState int32

func (s NodeState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Node is the read-only view of an octree cell shared by geometry nodes and
// promoted tree nodes.
type Node interface {
	ID() uint64
	Level() int
	NumPoints() int
	Bounds() spatialmath.Box
	BoundingSphere() spatialmath.Sphere
}

// Source produces the hierarchy and node payloads of one cloud. LoadNode is
// called off the frame flow and must be safe for concurrent calls on
// distinct nodes.
type Source interface {
	// LoadRoot returns the hierarchy root with every geometry node present
	// and no payloads loaded.
	LoadRoot(ctx context.Context) (*GeometryNode, error)

	// LoadNode decodes the payload of a single node.
	LoadNode(ctx context.Context, node *GeometryNode) (*pc.Payload, error)
}

// Traverse walks the geometry subtree rooted at node depth first, visiting
// parents before children.
func Traverse(node *GeometryNode, visit func(*GeometryNode)) {
	if node == nil {
		return
	}
	visit(node)
	for _, child := range node.children {
		if child != nil {
			Traverse(child, visit)
		}
	}
}

// TraverseTree walks the promoted subtree rooted at node depth first. Stale
// links left behind by eviction are skipped.
func TraverseTree(node *TreeNode, visit func(*TreeNode)) {
	if node == nil {
		return
	}
	visit(node)
	for _, child := range node.children {
		if child != nil && child.geometry.Tree() == child {
			TraverseTree(child, visit)
		}
	}
}
