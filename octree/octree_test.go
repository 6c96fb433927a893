package octree

import (
	"testing"

	"go.viam.com/test"
)

type recordingScene struct {
	visible bool
	boxed   bool
}

func (r *recordingScene) SetVisible(visible bool)   { r.visible = visible }
func (r *recordingScene) ShowBoundingBox(show bool) { r.boxed = show }

type recordingPromoter struct {
	promoted []*TreeNode
}

func (r *recordingPromoter) Promote(node *TreeNode) SceneNode {
	r.promoted = append(r.promoted, node)
	return &recordingScene{}
}

func TestTraverseOrder(t *testing.T) {
	root, _ := newTestTree(t)

	var names []string
	Traverse(root, func(g *GeometryNode) {
		names = append(names, g.Name())
	})
	test.That(t, names, test.ShouldResemble, []string{"r", "r0", "r03", "r5"})

	Traverse(nil, func(*GeometryNode) { t.Fatal("visited nil tree") })
}

func TestPromote(t *testing.T) {
	root, byName := newTestTree(t)

	_, err := Promote(root, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unloaded")

	loadNode(t, root, 100)
	promoter := &recordingPromoter{}
	rootTree, err := Promote(root, nil, promoter)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, root.Tree(), test.ShouldEqual, rootTree)
	test.That(t, rootTree.Parent(), test.ShouldBeNil)
	test.That(t, rootTree.ID(), test.ShouldEqual, root.ID())
	test.That(t, rootTree.NumPoints(), test.ShouldEqual, 100)
	test.That(t, len(promoter.promoted), test.ShouldEqual, 1)

	// promotion is idempotent
	again, err := Promote(root, nil, promoter)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldEqual, rootTree)
	test.That(t, len(promoter.promoted), test.ShouldEqual, 1)

	loadNode(t, byName["r0"], 50)
	childTree, err := Promote(byName["r0"], rootTree, promoter)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, childTree.Parent(), test.ShouldEqual, rootTree)
	test.That(t, rootTree.Child(0), test.ShouldEqual, childTree)

	scene, ok := childTree.SceneNode().(*recordingScene)
	test.That(t, ok, test.ShouldBeTrue)
	childTree.SetVisible(true)
	test.That(t, scene.visible, test.ShouldBeTrue)
	test.That(t, childTree.Visible(), test.ShouldBeTrue)
	childTree.ShowBoundingBox(true)
	test.That(t, scene.boxed, test.ShouldBeTrue)
}

func TestTraverseTree(t *testing.T) {
	root, byName := newTestTree(t)
	loadNode(t, root, 100)
	loadNode(t, byName["r0"], 50)
	loadNode(t, byName["r5"], 50)

	rootTree, err := Promote(root, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = Promote(byName["r0"], rootTree, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = Promote(byName["r5"], rootTree, nil)
	test.That(t, err, test.ShouldBeNil)

	var ids []uint64
	TraverseTree(rootTree, func(node *TreeNode) {
		ids = append(ids, node.ID())
	})
	test.That(t, ids, test.ShouldResemble, []uint64{root.ID(), byName["r0"].ID(), byName["r5"].ID()})

	// eviction drops the child from the promoted tree; a reload promotes a
	// fresh node in its place
	byName["r0"].Dispose()
	ids = ids[:0]
	TraverseTree(rootTree, func(node *TreeNode) {
		ids = append(ids, node.ID())
	})
	test.That(t, ids, test.ShouldResemble, []uint64{root.ID(), byName["r5"].ID()})

	loadNode(t, byName["r0"], 50)
	fresh, err := Promote(byName["r0"], rootTree, nil)
	test.That(t, err, test.ShouldBeNil)
	ids = ids[:0]
	TraverseTree(rootTree, func(node *TreeNode) {
		ids = append(ids, node.ID())
	})
	test.That(t, ids, test.ShouldResemble, []uint64{root.ID(), byName["r0"].ID(), byName["r5"].ID()})
	test.That(t, rootTree.Child(0), test.ShouldEqual, fresh)
}
