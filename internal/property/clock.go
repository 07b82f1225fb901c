package property

import "sync/atomic"

// Clock is a monotonic logical clock.
//
// Expressions take their sequence id from the package clock; the id only
// breaks ties between bindings with no dependency relation.
type Clock struct {
	seq atomic.Int64
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

var expressionClock Clock
