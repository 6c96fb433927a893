package scheduler

import (
	"github.com/google/uuid"
	goutils "go.viam.com/utils"

	"github.com/lidarview/pointstream/octree"
	"github.com/lidarview/pointstream/pointcloud"
)

// LoadOperation identifies one background payload fetch handed to a Source.
type LoadOperation struct {
	ID     uuid.UUID
	NodeID uint64
}

// loadCandidate is a node the walk wanted but found without a payload,
// in pop order, best first.
type loadCandidate struct {
	node   *octree.GeometryNode
	source octree.Source
}

// loadCompletion carries a finished fetch back to the frame flow. The
// generation is the node's generation at dispatch time so completions for
// since disposed nodes can be dropped.
type loadCompletion struct {
	op         LoadOperation
	node       *octree.GeometryNode
	generation uint64
	payload    *pointcloud.Payload
	err        error
}

// dispatchLoads starts fetches for the best candidates until the in-flight
// cap is reached. Candidates already loading or loaded are skipped.
func (s *Scheduler) dispatchLoads(candidates []loadCandidate) []LoadOperation {
	var ops []LoadOperation
	for _, cand := range candidates {
		if cand.node.State() != octree.Unloaded {
			continue
		}
		if !s.inFlight.TryAcquire(1) {
			break
		}
		cand.node.BeginLoad()
		op := LoadOperation{ID: uuid.New(), NodeID: cand.node.ID()}
		s.startLoad(op, cand.node, cand.source)
		ops = append(ops, op)
	}
	return ops
}

// startLoad runs the fetch on a background goroutine. A whole batch can
// finish between frame drains and fill the completion queue, so on
// shutdown the send degrades to best effort instead of parking the
// worker forever.
func (s *Scheduler) startLoad(op LoadOperation, node *octree.GeometryNode, source octree.Source) {
	generation := node.Generation()
	s.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer s.activeBackgroundWorkers.Done()
		defer s.inFlight.Release(1)
		payload, err := source.LoadNode(s.cancelCtx, node)
		completion := loadCompletion{
			op:         op,
			node:       node,
			generation: generation,
			payload:    payload,
			err:        err,
		}
		select {
		case s.completions <- completion:
		case <-s.cancelCtx.Done():
			select {
			case s.completions <- completion:
			default:
			}
		}
	})
}

// drainCompletions applies every completion that has arrived since the last
// frame. Node state only ever changes here, on the frame flow.
func (s *Scheduler) drainCompletions() {
	for {
		select {
		case c := <-s.completions:
			s.applyCompletion(c)
		default:
			return
		}
	}
}

func (s *Scheduler) applyCompletion(c loadCompletion) {
	if c.node.Generation() != c.generation {
		s.logger.Debugw("dropping stale load completion",
			"op", c.op.ID, "node", c.node.Name())
		return
	}
	if c.err != nil {
		if !c.node.FailLoad() {
			s.logger.Debugw("failed load completion for node no longer loading",
				"op", c.op.ID, "node", c.node.Name())
			return
		}
		s.logger.Warnw("node load failed",
			"op", c.op.ID, "node", c.node.Name(), "error", c.err)
		return
	}
	if !c.node.FinishLoad(c.payload) {
		s.logger.Debugw("load completion for node no longer loading",
			"op", c.op.ID, "node", c.node.Name())
	}
}
