package tileset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/lidarview/pointstream/octree"
	"github.com/lidarview/pointstream/octree/fake"
	"github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/spatialmath"
)

func writeMetadata(t *testing.T, dir, contents string) {
	t.Helper()
	test.That(t, os.WriteFile(filepath.Join(dir, metadataFileName), []byte(contents), 0o644), test.ShouldBeNil)
}

func TestWriteOpenRoundTrip(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()

	src, err := fake.NewSource(fake.Config{Seed: 11, Depth: 1, Branching: 1, PointsPerNode: 16}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, Write(context.Background(), dir, "campus", src, logger), test.ShouldBeNil)

	ts, err := Open(dir, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ts.Name(), test.ShouldEqual, "campus")
	test.That(t, ts.NumNodes(), test.ShouldEqual, 9)

	root, err := ts.LoadRoot(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, root.Name(), test.ShouldEqual, "r")
	test.That(t, root.NumPoints(), test.ShouldEqual, 16)
	for i := 0; i < 8; i++ {
		test.That(t, root.Child(i), test.ShouldNotBeNil)
		test.That(t, root.Child(i).Level(), test.ShouldEqual, 1)
	}

	fakeRoot, err := src.LoadRoot(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, root.Bounds(), test.ShouldResemble, fakeRoot.Bounds())

	want, err := src.LoadNode(context.Background(), fakeRoot)
	test.That(t, err, test.ShouldBeNil)
	got, err := ts.LoadNode(context.Background(), root)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Size(), test.ShouldEqual, want.Size())
	test.That(t, got.MetaData().HasIntensity, test.ShouldBeTrue)
	for i := 0; i < got.Size(); i++ {
		// LAS quantizes coordinates to millimeters
		test.That(t, got.Position(i).X, test.ShouldAlmostEqual, want.Position(i).X, 0.01)
		test.That(t, got.Position(i).Y, test.ShouldAlmostEqual, want.Position(i).Y, 0.01)
		test.That(t, got.Position(i).Z, test.ShouldAlmostEqual, want.Position(i).Z, 0.01)
		test.That(t, got.Intensity(i), test.ShouldAlmostEqual, want.Intensity(i), 0.001)
	}
}

func TestOpenMissingMetadata(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, err := Open(t.TempDir(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "reading tileset metadata")
}

func TestOpenBadJSON(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	writeMetadata(t, dir, "{nope")
	_, err := Open(dir, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "parsing")
}

func TestOpenValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)

	for _, tc := range []struct {
		name string
		json string
		err  string
	}{
		{
			"no name",
			`{"nodes": [{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`,
			"missing a name",
		},
		{
			"no nodes",
			`{"name": "x", "nodes": []}`,
			"lists no nodes",
		},
		{
			"duplicate id",
			`{"name": "x", "nodes": [
				{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [1,1,1]},
				{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`,
			"duplicate node id",
		},
		{
			"no root",
			`{"name": "x", "nodes": [{"id": "r0", "level": 1, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`,
			`no parent "r"`,
		},
		{
			"orphan child",
			`{"name": "x", "nodes": [
				{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [2,2,2]},
				{"id": "r03", "level": 2, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`,
			`no parent "r0"`,
		},
		{
			"wrong level",
			`{"name": "x", "nodes": [
				{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [2,2,2]},
				{"id": "r1", "level": 3, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`,
			"level 3 under a level 0 parent",
		},
		{
			"bad octant digit",
			`{"name": "x", "nodes": [
				{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [2,2,2]},
				{"id": "r9", "level": 1, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`,
			"octant digit",
		},
		{
			"malformed id",
			`{"name": "x", "nodes": [
				{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [2,2,2]},
				{"id": "x5", "level": 1, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`,
			"malformed node id",
		},
		{
			"root not level zero",
			`{"name": "x", "nodes": [{"id": "r", "level": 2, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`,
			"root node must be level 0",
		},
		{
			"empty bounds",
			`{"name": "x", "nodes": [{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [0,1,1]}]}`,
			"empty bounds",
		},
		{
			"no points",
			`{"name": "x", "nodes": [{"id": "r", "level": 0, "num_points": 0, "min": [0,0,0], "max": [1,1,1]}]}`,
			"must hold points",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeMetadata(t, dir, tc.json)
			_, err := Open(dir, logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestLoadNodePointCountMismatch(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	test.That(t, os.MkdirAll(filepath.Join(dir, nodesDirName), 0o755), test.ShouldBeNil)

	payload, err := pointcloud.NewPayload([]r3.Vector{{X: 0.5, Y: 0.5, Z: 0.5}}, nil)
	test.That(t, err, test.ShouldBeNil)
	fn := filepath.Join(dir, nodesDirName, "r.las")
	test.That(t, pointcloud.WritePayloadToLASFile(payload, fn), test.ShouldBeNil)
	writeMetadata(t, dir,
		`{"name": "x", "nodes": [{"id": "r", "level": 0, "num_points": 7, "min": [0,0,0], "max": [1,1,1]}]}`)

	ts, err := Open(dir, logger)
	test.That(t, err, test.ShouldBeNil)
	root, err := ts.LoadRoot(context.Background())
	test.That(t, err, test.ShouldBeNil)
	_, err = ts.LoadNode(context.Background(), root)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "promised 7")
}

func TestLoadNodeMissingFile(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	writeMetadata(t, dir,
		`{"name": "x", "nodes": [{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`)

	ts, err := Open(dir, logger)
	test.That(t, err, test.ShouldBeNil)
	root, err := ts.LoadRoot(context.Background())
	test.That(t, err, test.ShouldBeNil)
	_, err = ts.LoadNode(context.Background(), root)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loading node r")
}

func TestLoadNodeForeign(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	writeMetadata(t, dir,
		`{"name": "x", "nodes": [{"id": "r", "level": 0, "num_points": 5, "min": [0,0,0], "max": [1,1,1]}]}`)

	ts, err := Open(dir, logger)
	test.That(t, err, test.ShouldBeNil)

	other := octree.NewGeometryNode(0, 3, spatialmath.NewBox(r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1}))
	_, err = ts.LoadNode(context.Background(), other)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "does not belong")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root, err := ts.LoadRoot(context.Background())
	test.That(t, err, test.ShouldBeNil)
	_, err = ts.LoadNode(ctx, root)
	test.That(t, err, test.ShouldBeError, context.Canceled)
}
