// Package testutil holds deterministic stand-ins for values that are random
// in production, such as run IDs.
package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialIDs hands out "<prefix>-0001", "<prefix>-0002", ... in call
// order. It replaces random run IDs where a test compares stored output.
type SequentialIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialIDs returns a generator for prefix. An empty prefix is "run".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.n.Add(1))
}
