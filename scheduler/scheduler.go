// Package scheduler drives level of detail streaming: a per-frame priority
// walk over octree hierarchies that selects what to show, a budgeted cache
// that bounds what stays resident, and an async dispatcher that fetches node
// payloads in the background.
//
// UpdateVisibility, the cache and all node state changes run on a single
// flow, once per frame. Loads are the only concurrent operation; their
// completions queue up and are applied at the start of the next frame.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/semaphore"

	"github.com/lidarview/pointstream/lru"
	"github.com/lidarview/pointstream/octree"
)

// Default tuning for New.
const (
	DefaultPointBudget              = 1_000_000
	DefaultMaxLoadsPerFrame         = 4
	DefaultMaxGPUPromotionsPerFrame = 2
	DefaultMinNodePixelSize         = 150
)

// Config tunes a Scheduler. Zero fields fall back to the package defaults.
type Config struct {
	// PointBudget caps the points accepted per frame and drives cache
	// eviction.
	PointBudget int64
	// MaxLoadsPerFrame caps concurrently in-flight node loads.
	MaxLoadsPerFrame int
	// MaxGPUPromotionsPerFrame caps how many freshly loaded nodes become
	// renderable per frame.
	MaxGPUPromotionsPerFrame int
	// MinNodePixelSize is the projected-size cutoff for clouds that do not
	// set their own.
	MinNodePixelSize float64
	// Promoter supplies renderer handles for promoted nodes. Optional.
	Promoter octree.ScenePromoter
	// Clock is used for frame timing. Optional, defaults to the wall clock.
	Clock clock.Clock
}

// Viewport is the output surface the camera renders to, in pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// Result is what one UpdateVisibility frame decided.
type Result struct {
	// VisibleNodes are this frame's renderable nodes in priority order.
	VisibleNodes []*octree.TreeNode
	// NumVisiblePoints counts points accepted against the budget.
	NumVisiblePoints int64
	// ExceededPromotionCap is set when a loaded node stayed unpromoted
	// only because the per-frame promotion cap was reached.
	ExceededPromotionCap bool
	// NodeLoadFailed is set when the walk encountered a failed node.
	NodeLoadFailed bool
	// PendingLoads are the load operations started this frame.
	PendingLoads []LoadOperation
	// Duration is how long the frame took.
	Duration time.Duration
}

// Scheduler owns the visibility walk, the node cache and the async load
// dispatcher. Not safe for concurrent use: one flow calls UpdateVisibility.
type Scheduler struct {
	logger golog.Logger

	cache            *lru.Cache
	pointBudget      int64
	maxGPUPromotions int
	minNodePixelSize float64
	promoter         octree.ScenePromoter
	clock            clock.Clock

	completions chan loadCompletion
	inFlight    *semaphore.Weighted

	cancelCtx               context.Context
	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// New creates a Scheduler with an empty cache.
func New(config Config, logger golog.Logger) *Scheduler {
	if config.PointBudget <= 0 {
		config.PointBudget = DefaultPointBudget
	}
	if config.MaxLoadsPerFrame <= 0 {
		config.MaxLoadsPerFrame = DefaultMaxLoadsPerFrame
	}
	if config.MaxGPUPromotionsPerFrame <= 0 {
		config.MaxGPUPromotionsPerFrame = DefaultMaxGPUPromotionsPerFrame
	}
	if config.MinNodePixelSize <= 0 {
		config.MinNodePixelSize = DefaultMinNodePixelSize
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:           logger,
		cache:            lru.NewCache(config.PointBudget, logger),
		pointBudget:      config.PointBudget,
		maxGPUPromotions: config.MaxGPUPromotionsPerFrame,
		minNodePixelSize: config.MinNodePixelSize,
		promoter:         config.Promoter,
		clock:            config.Clock,
		completions:      make(chan loadCompletion, config.MaxLoadsPerFrame),
		inFlight:         semaphore.NewWeighted(int64(config.MaxLoadsPerFrame)),
		cancelCtx:        cancelCtx,
		cancel:           cancel,
	}
}

// Cache returns the node cache, mainly for inspection and stats.
func (s *Scheduler) Cache() *lru.Cache {
	return s.cache
}

// PointBudget returns the active global point budget.
func (s *Scheduler) PointBudget() int64 {
	return s.pointBudget
}

// SetPointBudget changes the budget and immediately re-enforces the cache
// against it. The next frame's traversal uses the new cutoff.
func (s *Scheduler) SetPointBudget(budget int64) {
	s.pointBudget = budget
	s.cache.SetBudget(budget)
}

// Close stops issuing loads, waits for in-flight ones bounded by ctx, and
// applies their completions so node states end consistent.
func (s *Scheduler) Close(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	goutils.PanicCapturingGo(func() {
		s.activeBackgroundWorkers.Wait()
		close(done)
	})
	// keep receiving while waiting: workers can be parked on a full
	// completion queue
	for {
		select {
		case c := <-s.completions:
			s.applyCompletion(c)
		case <-done:
			s.drainCompletions()
			return nil
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for in-flight loads")
		}
	}
}
