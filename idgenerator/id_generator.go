// Package idgenerator provides a concurrency-safe source of monotonically
// increasing uint32 identifiers.
package idgenerator

import "sync/atomic"

// IdGenerator hands out monotonically increasing uint32 IDs. It is safe for
// concurrent use.
type IdGenerator struct {
	id atomic.Uint32
}

// New creates an IdGenerator; the first Next returns startValue+1.
func New(startValue uint32) *IdGenerator {
	gen := &IdGenerator{}
	gen.id.Store(startValue)
	return gen
}

// Next returns the next unique ID by atomically incrementing the counter.
func (g *IdGenerator) Next() uint32 {
	return g.id.Add(1)
}
