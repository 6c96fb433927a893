// Package tileset serves point cloud hierarchies baked to disk: a
// cloud.json metadata document describing the octree plus one LAS payload
// file per node under nodes/, named by octant path.
package tileset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/octree"
	"github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/spatialmath"
	"github.com/lidarview/pointstream/utils"
)

const (
	metadataFileName = "cloud.json"
	nodesDirName     = "nodes"
	rootNodeID       = "r"
)

// nodeRecord is one hierarchy entry in cloud.json. The id is the octant
// path ("r", "r03"), so the id set alone fixes the topology.
type nodeRecord struct {
	ID        string     `json:"id"`
	Level     int        `json:"level"`
	NumPoints int        `json:"num_points"`
	Min       [3]float64 `json:"min"`
	Max       [3]float64 `json:"max"`
}

// metadata is the cloud.json document.
type metadata struct {
	Name  string       `json:"name"`
	Nodes []nodeRecord `json:"nodes"`
}

// Tileset serves one baked cloud. It implements octree.Source; payloads
// are read from disk on demand.
type Tileset struct {
	logger golog.Logger
	name   string
	root   *octree.GeometryNode
	paths  map[uint64]string
}

// Open parses and validates the metadata in dir and builds the hierarchy.
// No payloads are read until LoadNode.
func Open(dir string, logger golog.Logger) (*Tileset, error) {
	metaPath := filepath.Join(dir, metadataFileName)
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading tileset metadata")
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", metaPath)
	}
	if meta.Name == "" {
		return nil, errors.New("tileset metadata is missing a name")
	}
	if len(meta.Nodes) == 0 {
		return nil, errors.New("tileset metadata lists no nodes")
	}

	records := make(map[string]nodeRecord, len(meta.Nodes))
	ids := make([]string, 0, len(meta.Nodes))
	for _, rec := range meta.Nodes {
		if _, ok := records[rec.ID]; ok {
			return nil, errors.Errorf("duplicate node id %q", rec.ID)
		}
		records[rec.ID] = rec
		ids = append(ids, rec.ID)
	}
	// shorter ids first so parents are built before their children
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})

	built := make(map[string]*octree.GeometryNode, len(ids))
	paths := make(map[uint64]string, len(ids))
	var depth int
	for _, id := range ids {
		rec := records[id]
		bounds, err := recordBounds(rec)
		if err != nil {
			return nil, err
		}
		if rec.NumPoints <= 0 {
			return nil, errors.Errorf("node %q must hold points, got %d", id, rec.NumPoints)
		}
		var node *octree.GeometryNode
		if id == rootNodeID {
			if rec.Level != 0 {
				return nil, errors.Errorf("root node must be level 0, got %d", rec.Level)
			}
			node = octree.NewGeometryNode(0, rec.NumPoints, bounds)
		} else {
			parentID, index, err := parentSlot(id)
			if err != nil {
				return nil, err
			}
			parent, ok := built[parentID]
			if !ok {
				return nil, errors.Errorf("node %q has no parent %q in the hierarchy", id, parentID)
			}
			if rec.Level != parent.Level()+1 {
				return nil, errors.Errorf("node %q is level %d under a level %d parent",
					id, rec.Level, parent.Level())
			}
			node = octree.NewGeometryNode(rec.Level, rec.NumPoints, bounds)
			parent.SetChild(index, node)
		}
		built[id] = node
		paths[node.ID()] = filepath.Join(dir, nodesDirName, id+".las")
		depth = utils.MaxInt(depth, node.Level())
	}
	root, ok := built[rootNodeID]
	if !ok {
		return nil, errors.Errorf("tileset metadata has no root node %q", rootNodeID)
	}

	logger.Debugw("opened tileset", "dir", dir, "name", meta.Name, "nodes", len(ids), "depth", depth)
	return &Tileset{
		logger: logger,
		name:   meta.Name,
		root:   root,
		paths:  paths,
	}, nil
}

// Name returns the cloud name from the metadata.
func (t *Tileset) Name() string {
	return t.name
}

// NumNodes returns how many nodes the metadata describes.
func (t *Tileset) NumNodes() int {
	return len(t.paths)
}

// LoadRoot implements octree.Source.
func (t *Tileset) LoadRoot(ctx context.Context) (*octree.GeometryNode, error) {
	return t.root, nil
}

// LoadNode implements octree.Source. The payload must hold exactly the
// point count the metadata promised.
func (t *Tileset) LoadNode(ctx context.Context, node *octree.GeometryNode) (*pointcloud.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := t.paths[node.ID()]
	if !ok {
		return nil, errors.Errorf("node %s does not belong to this tileset", node.Name())
	}
	payload, err := pointcloud.NewPayloadFromFile(path, t.logger)
	if err != nil {
		return nil, errors.Wrapf(err, "loading node %s", node.Name())
	}
	if payload.Size() != node.NumPoints() {
		return nil, errors.Errorf("node %s holds %d points but its metadata promised %d",
			node.Name(), payload.Size(), node.NumPoints())
	}
	return payload, nil
}

func parentSlot(id string) (string, int, error) {
	if len(id) < 2 || !strings.HasPrefix(id, rootNodeID) {
		return "", 0, errors.Errorf("malformed node id %q", id)
	}
	digit := id[len(id)-1]
	if digit < '0' || digit > '7' {
		return "", 0, errors.Errorf("node id %q does not end in an octant digit", id)
	}
	return id[:len(id)-1], int(digit - '0'), nil
}

func recordBounds(rec nodeRecord) (spatialmath.Box, error) {
	for i := 0; i < 3; i++ {
		if rec.Min[i] >= rec.Max[i] {
			return spatialmath.Box{}, errors.Errorf("node %q has empty bounds", rec.ID)
		}
	}
	return spatialmath.NewBox(
		r3.Vector{X: rec.Min[0], Y: rec.Min[1], Z: rec.Min[2]},
		r3.Vector{X: rec.Max[0], Y: rec.Max[1], Z: rec.Max[2]},
	), nil
}
