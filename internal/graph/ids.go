package graph

import (
	"fmt"
	"sync/atomic"
	"time"
)

// IDs generates node ids of the form <prefix>-<unix millis>-<counter>.
// The counter keeps ids unique within a process even when the clock
// does not advance between calls.
type IDs struct {
	counter atomic.Uint64
	now     func() time.Time
}

// NewIDs returns a generator using the wall clock.
func NewIDs() *IDs {
	return &IDs{now: time.Now}
}

// Next returns a fresh id with the given prefix.
func (g *IDs) Next(prefix string) string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-%d-%d", prefix, g.now().UnixMilli(), n)
}
