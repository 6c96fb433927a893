package tileset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/octree"
	"github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/utils"
)

// Write bakes the full hierarchy of source into dir so Open can serve it.
// Every node payload is fetched and written out, so this is meant for
// tests and small synthetic clouds.
func Write(ctx context.Context, dir, name string, source octree.Source, logger golog.Logger) error {
	root, err := source.LoadRoot(ctx)
	if err != nil {
		return errors.Wrap(err, "loading hierarchy root")
	}
	nodesDir := filepath.Join(dir, nodesDirName)
	if err := os.MkdirAll(nodesDir, 0o755); err != nil {
		return err
	}

	meta := metadata{Name: name}
	var depth int
	var walkErr error
	octree.Traverse(root, func(g *octree.GeometryNode) {
		if walkErr != nil {
			return
		}
		payload, err := source.LoadNode(ctx, g)
		if err != nil {
			walkErr = errors.Wrapf(err, "loading node %s", g.Name())
			return
		}
		fn := filepath.Join(nodesDir, g.Name()+".las")
		if err := pointcloud.WritePayloadToLASFile(payload, fn); err != nil {
			walkErr = errors.Wrapf(err, "writing node %s", g.Name())
			return
		}
		bounds := g.Bounds()
		depth = utils.MaxInt(depth, g.Level())
		meta.Nodes = append(meta.Nodes, nodeRecord{
			ID:    g.Name(),
			Level: g.Level(),
			// record what actually landed in the file, not what the
			// node claims, so the baked tileset is self consistent
			NumPoints: payload.Size(),
			Min:       [3]float64{bounds.Min.X, bounds.Min.Y, bounds.Min.Z},
			Max:       [3]float64{bounds.Max.X, bounds.Max.Y, bounds.Max.Z},
		})
	})
	if walkErr != nil {
		return walkErr
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFileName), raw, 0o644); err != nil {
		return err
	}
	logger.Debugw("wrote tileset", "dir", dir, "name", name, "nodes", len(meta.Nodes), "depth", depth)
	return nil
}
