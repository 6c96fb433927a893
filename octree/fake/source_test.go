package fake

import (
	"context"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/lidarview/pointstream/octree"
)

func treeNames(s *Source) []string {
	var names []string
	octree.Traverse(s.root, func(g *octree.GeometryNode) {
		names = append(names, g.Name())
	})
	return names
}

func TestConfigValidate(t *testing.T) {
	test.That(t, Config{Depth: -1}.Validate(), test.ShouldNotBeNil)
	test.That(t, Config{Branching: 1.5}.Validate(), test.ShouldNotBeNil)
	test.That(t, Config{Branching: -0.1}.Validate(), test.ShouldNotBeNil)
	test.That(t, Config{PointsPerNode: -5}.Validate(), test.ShouldNotBeNil)
	test.That(t, Config{Depth: 2, Branching: 0.5, PointsPerNode: 10}.Validate(), test.ShouldBeNil)
}

func TestSourceShape(t *testing.T) {
	logger := golog.NewTestLogger(t)

	full, err := NewSource(Config{Seed: 7, Depth: 2, Branching: 1, PointsPerNode: 4}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, full.NumNodes(), test.ShouldEqual, 1+8+64)

	solo, err := NewSource(Config{Seed: 7, Depth: 4, Branching: 0, PointsPerNode: 4}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, solo.NumNodes(), test.ShouldEqual, 1)
}

func TestSourceDeterminism(t *testing.T) {
	logger := golog.NewTestLogger(t)
	conf := Config{Seed: 42, Depth: 3, Branching: 0.6, PointsPerNode: 32}

	a, err := NewSource(conf, logger)
	test.That(t, err, test.ShouldBeNil)
	b, err := NewSource(conf, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, treeNames(a), test.ShouldResemble, treeNames(b))

	rootA, err := a.LoadRoot(context.Background())
	test.That(t, err, test.ShouldBeNil)
	rootB, err := b.LoadRoot(context.Background())
	test.That(t, err, test.ShouldBeNil)

	payloadA, err := a.LoadNode(context.Background(), rootA)
	test.That(t, err, test.ShouldBeNil)
	payloadB, err := b.LoadNode(context.Background(), rootB)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, payloadA.Size(), test.ShouldEqual, 32)
	test.That(t, payloadA.Position(0), test.ShouldResemble, payloadB.Position(0))
	test.That(t, payloadA.Position(31), test.ShouldResemble, payloadB.Position(31))
	test.That(t, payloadA.MetaData().HasIntensity, test.ShouldBeTrue)
}

func TestSourcePayloadWithinBounds(t *testing.T) {
	logger := golog.NewTestLogger(t)
	s, err := NewSource(Config{Seed: 3, Depth: 1, Branching: 1, PointsPerNode: 64}, logger)
	test.That(t, err, test.ShouldBeNil)

	child := s.root.Child(5)
	test.That(t, child, test.ShouldNotBeNil)
	payload, err := s.LoadNode(context.Background(), child)
	test.That(t, err, test.ShouldBeNil)

	bounds := child.Bounds()
	payload.Iterate(func(pos r3.Vector, _ float64) bool {
		test.That(t, bounds.ContainsPoint(pos), test.ShouldBeTrue)
		return true
	})
}

func TestSourceFailInjection(t *testing.T) {
	logger := golog.NewTestLogger(t)
	s, err := NewSource(Config{
		Seed:      1,
		Depth:     1,
		Branching: 1,
		FailNodes: map[string]bool{"r0": true},
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = s.LoadNode(context.Background(), s.root.Child(0))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "synthetic load failure")

	_, err = s.LoadNode(context.Background(), s.root.Child(1))
	test.That(t, err, test.ShouldBeNil)
}

func TestSourceLoadDelayHonorsContext(t *testing.T) {
	logger := golog.NewTestLogger(t)
	s, err := NewSource(Config{Seed: 1, LoadDelay: 10 * time.Second}, logger)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.LoadNode(ctx, s.root)
	test.That(t, err, test.ShouldBeError, context.Canceled)
}

func TestSourceRejectsForeignNode(t *testing.T) {
	logger := golog.NewTestLogger(t)
	s, err := NewSource(Config{Seed: 1}, logger)
	test.That(t, err, test.ShouldBeNil)

	other := octree.NewGeometryNode(0, 10, s.root.Bounds())
	_, err = s.LoadNode(context.Background(), other)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "does not belong")
}
