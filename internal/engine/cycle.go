package engine

import "sync"

// dispatchKey names one composite field of one entity.
type dispatchKey struct {
	entity string
	field  string
}

// CycleDetector remembers which (entity, field) pairs were handed to the
// composite handler in each flow, so a pair is dispatched at most once
// per flow even when a hook deletes the same entity through another path.
type CycleDetector struct {
	mu    sync.Mutex
	flows map[string]map[dispatchKey]struct{}
}

// NewCycleDetector creates an empty detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{flows: make(map[string]map[dispatchKey]struct{})}
}

// Mark records the pair for the flow and reports whether this is its
// first dispatch. A false result means the caller must skip the pair.
func (c *CycleDetector) Mark(flowToken, entity, field string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := c.flows[flowToken]
	if seen == nil {
		seen = make(map[dispatchKey]struct{})
		c.flows[flowToken] = seen
	}
	key := dispatchKey{entity: entity, field: field}
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	return true
}

// Release drops everything recorded for a flow.
func (c *CycleDetector) Release(flowToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flows, flowToken)
}

// ActiveFlows returns the number of flows with recorded pairs.
func (c *CycleDetector) ActiveFlows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flows)
}
