// Package idgen provides ports.IDGenerator implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/artpar/tablegate/ports"
	"github.com/google/uuid"
)

// UUID issues random (v4) UUID strings.
type UUID struct{}

// New returns a fresh UUID.
func (UUID) New() string {
	return uuid.NewString()
}

// Counter issues prefix1, prefix2, ... and is meant for tests.
type Counter struct {
	prefix string
	n      atomic.Uint64
}

// NewCounter returns a counter that prefixes every ID with prefix.
func NewCounter(prefix string) *Counter {
	return &Counter{prefix: prefix}
}

// New returns the next ID.
func (c *Counter) New() string {
	return c.prefix + strconv.FormatUint(c.n.Add(1), 10)
}

var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Counter)(nil)
)
