package engine

import "fmt"

// DefaultMaxDeletes is the default maximum number of entities one flow may
// delete, the first entity included.
const DefaultMaxDeletes = 1000

// QuotaEnforcer counts the deletes of one flow against a limit.
//
// Cascades terminate on their own since a deleted entity is never deleted
// again. The quota bounds how much one delete can take with it, so a
// misconfigured composite field fails the unit of work instead of emptying
// a table.
type QuotaEnforcer struct {
	limit   int
	deletes int
}

// NewQuotaEnforcer creates an enforcer allowing limit deletes.
func NewQuotaEnforcer(limit int) *QuotaEnforcer {
	return &QuotaEnforcer{limit: limit}
}

// Check counts one delete. It returns a QuotaExceededError for the first
// delete over the limit and every one after it.
func (q *QuotaEnforcer) Check(flowToken string) error {
	q.deletes++
	if q.deletes > q.limit {
		return &QuotaExceededError{FlowToken: flowToken, Deletes: q.deletes, Limit: q.limit}
	}
	return nil
}

// Deletes returns the number of deletes counted so far.
func (q *QuotaEnforcer) Deletes() int {
	return q.deletes
}

// Limit returns the number of deletes allowed.
func (q *QuotaEnforcer) Limit() int {
	return q.limit
}

// QuotaExceededError aborts a flow that tried to delete more entities than
// its quota allows.
type QuotaExceededError struct {
	FlowToken string
	Deletes   int
	Limit     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("flow %s exceeded delete quota: %d deletes > %d limit",
		e.FlowToken, e.Deletes, e.Limit)
}
