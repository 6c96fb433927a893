// Package lru implements the point budget cache that bounds how many octree
// nodes stay resident. Nodes are tracked in least recently used order and
// evicted as whole subtrees once resident points run past twice the budget.
package lru

import (
	"container/list"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/octree"
)

// Cache is the budgeted LRU over loaded geometry nodes. It is not safe for
// concurrent use; the scheduler only touches it on the frame flow.
type Cache struct {
	logger golog.Logger

	// order runs least recent at the front to most recent at the back.
	order *list.List
	index map[uint64]*list.Element

	residentPoints int64
	budget         int64
	evictions      int64
}

// NewCache creates an empty cache enforcing the given point budget.
func NewCache(budget int64, logger golog.Logger) *Cache {
	return &Cache{
		logger: logger,
		order:  list.New(),
		index:  map[uint64]*list.Element{},
		budget: budget,
	}
}

// Touch marks node as most recently used, admitting it on first touch.
// Nodes that are not Loaded are ignored.
func (c *Cache) Touch(node *octree.GeometryNode) {
	if node.State() != octree.Loaded {
		return
	}
	if elem, ok := c.index[node.ID()]; ok {
		c.order.MoveToBack(elem)
		return
	}
	c.index[node.ID()] = c.order.PushBack(node)
	c.residentPoints += int64(node.NumPoints())
}

// Remove detaches node from the cache without disposing it. Removing a node
// that is not cached does nothing.
func (c *Cache) Remove(node *octree.GeometryNode) {
	elem, ok := c.index[node.ID()]
	if !ok {
		return
	}
	c.order.Remove(elem)
	delete(c.index, node.ID())
	c.residentPoints -= int64(node.NumPoints())
}

// Contains reports whether node is currently cached.
func (c *Cache) Contains(node *octree.GeometryNode) bool {
	_, ok := c.index[node.ID()]
	return ok
}

// LeastRecent returns the next eviction candidate, or nil when empty.
func (c *Cache) LeastRecent() *octree.GeometryNode {
	front := c.order.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*octree.GeometryNode)
}

// Size returns the number of cached nodes.
func (c *Cache) Size() int {
	return c.order.Len()
}

// ResidentPoints returns the point total across cached nodes.
func (c *Cache) ResidentPoints() int64 {
	return c.residentPoints
}

// Budget returns the configured point budget.
func (c *Cache) Budget() int64 {
	return c.budget
}

// Evictions returns how many nodes the cache has evicted since creation.
func (c *Cache) Evictions() int64 {
	return c.evictions
}

// SetBudget changes the point budget and re-enforces it immediately.
func (c *Cache) SetBudget(budget int64) {
	c.budget = budget
	c.EnforceBudget()
}

// EnforceBudget evicts least recently used subtrees until resident points
// drop to twice the budget or a single node remains. The 2x hysteresis
// tolerates small overshoots so the cache does not thrash near the budget.
func (c *Cache) EnforceBudget() {
	if c.order.Len() != len(c.index) {
		panic(errors.Errorf("lru cache corrupted: %d listed vs %d indexed nodes", c.order.Len(), len(c.index)))
	}
	for c.residentPoints > 2*c.budget && c.order.Len() > 1 {
		c.evictSubtree(c.LeastRecent())
	}
	if c.residentPoints > 2*c.budget {
		c.logger.Debugw("cache cannot shrink further",
			"residentPoints", c.residentPoints, "budget", c.budget)
	}
}

// FreeMemory runs an eviction pass right away. Same loop as EnforceBudget;
// exposed for callers reacting to out-of-band node removal.
func (c *Cache) FreeMemory() {
	c.EnforceBudget()
}

// evictSubtree disposes node and every still-loaded descendant, detaching
// each from the cache. The whole subtree goes regardless of how recently its
// descendants were touched.
func (c *Cache) evictSubtree(node *octree.GeometryNode) {
	var doomed []*octree.GeometryNode
	octree.Traverse(node, func(g *octree.GeometryNode) {
		if g.State() == octree.Loaded {
			doomed = append(doomed, g)
		}
	})
	for _, g := range doomed {
		g.Dispose()
		c.Remove(g)
	}
	c.evictions += int64(len(doomed))
	// node itself may no longer be Loaded; detach it regardless
	c.Remove(node)
	c.logger.Debugw("evicted subtree", "root", node.Name(), "nodes", len(doomed),
		"residentPoints", c.residentPoints)
}
