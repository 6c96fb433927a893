// Package main is the lodsim command, a terminal level of detail streaming
// simulator: it orbits a camera around synthetic or baked point clouds and
// reports what the scheduler keeps on screen.
package main

import (
	"context"
	"fmt"
	"image/png"
	"log"
	"math"
	"os"
	"time"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"github.com/lidarview/pointstream/camera"
	"github.com/lidarview/pointstream/octree"
	"github.com/lidarview/pointstream/octree/fake"
	"github.com/lidarview/pointstream/scheduler"
	"github.com/lidarview/pointstream/tileset"
	"github.com/lidarview/pointstream/utils"
	"github.com/lidarview/pointstream/viz"
)

const (
	// Flags.
	flagBudget        = "budget"
	flagFrames        = "frames"
	flagClouds        = "clouds"
	flagSeed          = "seed"
	flagDepth         = "depth"
	flagBranching     = "branching"
	flagOrbitRadius   = "orbit-radius"
	flagFOV           = "fov"
	flagInterval      = "interval"
	flagTileset       = "tileset"
	flagSnapshot      = "snapshot"
	flagOut           = "out"
	flagPointsPerNode = "points-per-node"

	simWidth     = 1280
	simHeight    = 720
	cloudSpacing = 120.0
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	var logger golog.Logger

	return &cli.App{
		Name:  "lodsim",
		Usage: "simulate point cloud level of detail streaming without a GPU",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logger = golog.NewDebugLogger("lodsim")
			} else {
				logger = golog.NewDevelopmentLogger("lodsim")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "stream clouds for a fixed number of frames and report stats",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  flagBudget,
						Value: scheduler.DefaultPointBudget,
						Usage: "max points on screen at once",
					},
					&cli.IntFlag{
						Name:  flagFrames,
						Value: 120,
						Usage: "number of frames to simulate",
					},
					&cli.IntFlag{
						Name:  flagClouds,
						Value: 2,
						Usage: "number of synthetic clouds",
					},
					&cli.Int64Flag{
						Name:  flagSeed,
						Value: 42,
						Usage: "seed for the synthetic hierarchies",
					},
					&cli.IntFlag{
						Name:  flagDepth,
						Value: 4,
						Usage: "depth of the synthetic hierarchies",
					},
					&cli.Float64Flag{
						Name:  flagBranching,
						Value: 0.85,
						Usage: "probability each octant exists",
					},
					&cli.Float64Flag{
						Name:  flagOrbitRadius,
						Value: 220,
						Usage: "camera orbit radius",
					},
					&cli.Float64Flag{
						Name:  flagFOV,
						Value: 60,
						Usage: "vertical field of view in degrees",
					},
					&cli.DurationFlag{
						Name:  flagInterval,
						Usage: "pause between frames, 0 to run flat out",
					},
					&cli.PathFlag{
						Name:  flagTileset,
						Usage: "stream a baked tileset from `DIR` instead of synthetic clouds",
					},
					&cli.PathFlag{
						Name:  flagSnapshot,
						Usage: "write a top down PNG of the final frame to `FILE`",
					},
				},
				Action: func(c *cli.Context) error {
					return runSimulation(c, logger)
				},
			},
			{
				Name:  "bake",
				Usage: "write a synthetic tileset of LAS files to disk",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagOut,
						Required: true,
						Usage:    "output directory for the tileset",
					},
					&cli.Int64Flag{
						Name:  flagSeed,
						Value: 42,
						Usage: "seed for the synthetic hierarchy",
					},
					&cli.IntFlag{
						Name:  flagDepth,
						Value: 3,
						Usage: "depth of the synthetic hierarchy",
					},
					&cli.Float64Flag{
						Name:  flagBranching,
						Value: 0.85,
						Usage: "probability each octant exists",
					},
					&cli.IntFlag{
						Name:  flagPointsPerNode,
						Value: 2000,
						Usage: "points generated per node",
					},
				},
				Action: func(c *cli.Context) error {
					return bakeTileset(c, logger)
				},
			},
		},
	}
}

func runSimulation(c *cli.Context, logger golog.Logger) (err error) {
	frames := c.Int(flagFrames)
	if frames <= 0 {
		return errors.Errorf("frame count must be positive, got %d", frames)
	}
	orbit := c.Float64(flagOrbitRadius)
	if orbit <= 0 {
		return errors.Errorf("orbit radius must be positive, got %v", orbit)
	}
	fov := c.Float64(flagFOV)
	if fov <= 0 || fov >= 180 {
		return errors.Errorf("field of view must be within (0, 180) degrees, got %v", fov)
	}

	ctx := c.Context
	clouds, err := buildClouds(ctx, c, logger)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Config{PointBudget: c.Int64(flagBudget)}, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Combine(err, sched.Close(closeCtx))
	}()

	cam, err := camera.NewPerspectiveCamera(utils.DegToRad(fov), float64(simWidth)/float64(simHeight), 0.1, orbit*20)
	if err != nil {
		return err
	}
	vp := scheduler.Viewport{Width: simWidth, Height: simHeight}
	interval := c.Duration(flagInterval)

	frameTimes := make([]float64, 0, frames)
	for frame := 0; frame < frames; frame++ {
		angle := 2 * math.Pi * float64(frame) / float64(frames)
		cam.LookAt(r3.Vector{
			X: orbit * math.Cos(angle),
			Y: orbit * 0.35,
			Z: orbit * math.Sin(angle),
		}, r3.Vector{}, r3.Vector{Y: 1})

		res, err := sched.UpdateVisibility(ctx, clouds, cam, vp)
		if err != nil {
			return err
		}
		frameTimes = append(frameTimes, res.Duration.Seconds()*1e3)
		fmt.Fprintf(c.App.Writer, "frame %3d: %4d nodes %9d points visible, %d loads pending\n",
			frame, len(res.VisibleNodes), res.NumVisiblePoints, len(res.PendingLoads))

		if interval > 0 && !goutils.SelectContextOrWait(ctx, interval) {
			return ctx.Err()
		}
	}

	mean, meanErr := stats.Mean(frameTimes)
	p50, p50Err := stats.Percentile(frameTimes, 50)
	p95, p95Err := stats.Percentile(frameTimes, 95)
	if err := multierr.Combine(meanErr, p50Err, p95Err); err != nil {
		return errors.Wrap(err, "computing frame statistics")
	}
	fmt.Fprintf(c.App.Writer, "frame time: mean %.3fms p50 %.3fms p95 %.3fms over %d frames\n",
		mean, p50, p95, frames)
	fmt.Fprintf(c.App.Writer, "cache: %d nodes %d points resident, %d evictions\n",
		sched.Cache().Size(), sched.Cache().ResidentPoints(), sched.Cache().Evictions())

	if snapshot := c.Path(flagSnapshot); snapshot != "" {
		if err := writeSnapshot(snapshot, clouds, cam); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote snapshot to %s\n", snapshot)
	}
	return nil
}

// buildClouds opens the baked tileset when one is given, otherwise it grows
// the requested number of synthetic clouds in parallel and lines them up
// along the X axis.
func buildClouds(ctx context.Context, c *cli.Context, logger golog.Logger) ([]*octree.PointCloud, error) {
	if dir := c.Path(flagTileset); dir != "" {
		ts, err := tileset.Open(dir, logger)
		if err != nil {
			return nil, err
		}
		cloud, err := octree.NewPointCloud(ctx, ts.Name(), ts)
		if err != nil {
			return nil, err
		}
		return []*octree.PointCloud{cloud}, nil
	}

	numClouds := c.Int(flagClouds)
	if numClouds <= 0 {
		return nil, errors.Errorf("cloud count must be positive, got %d", numClouds)
	}
	clouds := make([]*octree.PointCloud, numClouds)
	errs, ctx := errgroup.WithContext(ctx)
	for i := 0; i < numClouds; i++ {
		i := i
		errs.Go(func() error {
			source, err := fake.NewSource(fake.Config{
				Seed:      c.Int64(flagSeed) + int64(i),
				Depth:     c.Int(flagDepth),
				Branching: c.Float64(flagBranching),
			}, logger)
			if err != nil {
				return err
			}
			cloud, err := octree.NewPointCloud(ctx, fmt.Sprintf("cloud-%d", i), source)
			if err != nil {
				return err
			}
			offset := (float64(i) - float64(numClouds-1)/2) * cloudSpacing
			cloud.Pose = mgl64.Translate3D(offset, 0, 0)
			clouds[i] = cloud
			return nil
		})
	}
	if err := errs.Wait(); err != nil {
		return nil, err
	}
	return clouds, nil
}

func bakeTileset(c *cli.Context, logger golog.Logger) error {
	source, err := fake.NewSource(fake.Config{
		Seed:          c.Int64(flagSeed),
		Depth:         c.Int(flagDepth),
		Branching:     c.Float64(flagBranching),
		PointsPerNode: c.Int(flagPointsPerNode),
	}, logger)
	if err != nil {
		return err
	}
	dir := c.Path(flagOut)
	if err := tileset.Write(c.Context, dir, "synthetic", source, logger); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "baked %d nodes into %s\n", source.NumNodes(), dir)
	return nil
}

func writeSnapshot(path string, clouds []*octree.PointCloud, cam *camera.Camera) (err error) {
	img, err := viz.RenderTopDown(clouds, cam, simWidth, simHeight)
	if err != nil {
		return errors.Wrap(err, "rendering snapshot")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return png.Encode(f, img)
}
