// Package fake implements an in-memory point cloud source with a seeded,
// procedurally generated hierarchy, for tests and demos.
package fake

import (
	"context"
	"math/rand"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/lidarview/pointstream/octree"
	"github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/spatialmath"
)

const (
	defaultPointsPerNode = 1000
	defaultBoundsHalf    = 50
)

// Config describes the hierarchy to generate. The same config always
// produces the same tree and the same payloads.
type Config struct {
	// Seed drives both the tree shape and the point positions.
	Seed int64
	// Depth is how many levels exist below the root.
	Depth int
	// Branching is the probability that each octant slot gets a child.
	Branching float64
	// PointsPerNode is the payload size of every node. Defaults to 1000.
	PointsPerNode int
	// Bounds is the root cube. Defaults to a 100 unit cube at the origin.
	Bounds spatialmath.Box
	// LoadDelay simulates fetch latency on every LoadNode call.
	LoadDelay time.Duration
	// FailNodes lists octant path names whose loads fail.
	FailNodes map[string]bool
}

// Validate checks the config for a generatable hierarchy.
func (conf Config) Validate() error {
	if conf.Depth < 0 {
		return errors.Errorf("depth must not be negative, got %d", conf.Depth)
	}
	if conf.Branching < 0 || conf.Branching > 1 {
		return errors.Errorf("branching must be within [0, 1], got %v", conf.Branching)
	}
	if conf.PointsPerNode < 0 {
		return errors.Errorf("points per node must not be negative, got %d", conf.PointsPerNode)
	}
	return nil
}

// Source is a procedural octree source. The hierarchy is built up front;
// payloads are generated on demand, deterministically per node.
type Source struct {
	logger golog.Logger
	conf   Config
	root   *octree.GeometryNode
	// seeds is read-only after construction, so concurrent loads are safe.
	seeds map[uint64]int64
}

// NewSource generates the hierarchy described by conf.
func NewSource(conf Config, logger golog.Logger) (*Source, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.PointsPerNode == 0 {
		conf.PointsPerNode = defaultPointsPerNode
	}
	if conf.Bounds == (spatialmath.Box{}) {
		conf.Bounds = spatialmath.NewBox(
			r3.Vector{X: -defaultBoundsHalf, Y: -defaultBoundsHalf, Z: -defaultBoundsHalf},
			r3.Vector{X: defaultBoundsHalf, Y: defaultBoundsHalf, Z: defaultBoundsHalf},
		)
	}
	s := &Source{
		logger: logger,
		conf:   conf,
		seeds:  map[uint64]int64{},
	}
	rnd := rand.New(rand.NewSource(conf.Seed))
	s.root = octree.NewGeometryNode(0, conf.PointsPerNode, conf.Bounds)
	s.seeds[s.root.ID()] = rnd.Int63()
	s.grow(rnd, s.root)
	return s, nil
}

// grow attaches children depth first so the tree shape depends only on the
// seed.
func (s *Source) grow(rnd *rand.Rand, parent *octree.GeometryNode) {
	if parent.Level() >= s.conf.Depth {
		return
	}
	for i := 0; i < 8; i++ {
		if rnd.Float64() >= s.conf.Branching {
			continue
		}
		child := octree.NewGeometryNode(
			parent.Level()+1,
			s.conf.PointsPerNode,
			parent.Bounds().Octant(i),
		)
		parent.SetChild(i, child)
		s.seeds[child.ID()] = rnd.Int63()
		s.grow(rnd, child)
	}
}

// NumNodes counts the generated hierarchy, root included.
func (s *Source) NumNodes() int {
	var n int
	octree.Traverse(s.root, func(*octree.GeometryNode) {
		n++
	})
	return n
}

// LoadRoot implements octree.Source.
func (s *Source) LoadRoot(ctx context.Context) (*octree.GeometryNode, error) {
	return s.root, nil
}

// LoadNode implements octree.Source. Points are uniform within the node's
// bounds with a random intensity per point.
func (s *Source) LoadNode(ctx context.Context, node *octree.GeometryNode) (*pointcloud.Payload, error) {
	if s.conf.LoadDelay > 0 {
		if !goutils.SelectContextOrWait(ctx, s.conf.LoadDelay) {
			return nil, ctx.Err()
		}
	}
	if s.conf.FailNodes[node.Name()] {
		return nil, errors.Errorf("synthetic load failure for node %s", node.Name())
	}
	seed, ok := s.seeds[node.ID()]
	if !ok {
		return nil, errors.Errorf("node %s does not belong to this source", node.Name())
	}

	rnd := rand.New(rand.NewSource(seed))
	bounds := node.Bounds()
	size := bounds.Size()
	positions := make([]r3.Vector, 0, node.NumPoints())
	intensities := make([]float64, 0, node.NumPoints())
	for i := 0; i < node.NumPoints(); i++ {
		positions = append(positions, r3.Vector{
			X: bounds.Min.X + rnd.Float64()*size.X,
			Y: bounds.Min.Y + rnd.Float64()*size.Y,
			Z: bounds.Min.Z + rnd.Float64()*size.Z,
		})
		intensities = append(intensities, rnd.Float64())
	}
	return pointcloud.NewPayload(positions, intensities)
}
