package scheduler

import (
	"container/heap"

	"github.com/lidarview/pointstream/octree"
)

// queueItem is one traversal candidate: a geometry node, the cloud it came
// from, and the promoted parent it would attach under (nil when the parent
// has not been promoted, or for roots).
type queueItem struct {
	node       *octree.GeometryNode
	parent     *octree.TreeNode
	cloudIndex int
	weight     float64
}

// pqueue is a max-heap of traversal candidates keyed on weight, so the
// visually heaviest node pops first.
type pqueue struct {
	items []queueItem
}

func (q *pqueue) Len() int { return len(q.items) }

func (q *pqueue) Less(i, j int) bool { return q.items[i].weight > q.items[j].weight }

func (q *pqueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *pqueue) Push(x interface{}) { q.items = append(q.items, x.(queueItem)) }

func (q *pqueue) Pop() interface{} {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

func (q *pqueue) push(item queueItem) { heap.Push(q, item) }

// pop removes and returns the heaviest item, reporting whether one existed.
func (q *pqueue) pop() (queueItem, bool) {
	if len(q.items) == 0 {
		return queueItem{}, false
	}
	return heap.Pop(q).(queueItem), true
}
