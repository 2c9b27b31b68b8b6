// Package id provides the identifiers given to clocks, generators and
// recorded samples.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	Generate() string
}

// NewIDGenerator returns a generator that produces deterministic, increasing
// IDs. Two simulations built in the same order get the same IDs.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewParallelIDGenerator returns a generator that is safe to share across
// goroutines without coordination. The IDs are globally unique but not
// deterministic.
func NewParallelIDGenerator() IDGenerator {
	return parallelIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	id := strconv.FormatUint(idNumber, 10)

	return id
}

type parallelIDGenerator struct{}

func (g parallelIDGenerator) Generate() string {
	return xid.New().String()
}

var (
	defaultLock      sync.Mutex
	defaultGenerator IDGenerator
)

// Generate returns an ID from the process-wide default generator.
func Generate() string {
	defaultLock.Lock()
	if defaultGenerator == nil {
		defaultGenerator = NewIDGenerator()
	}
	g := defaultGenerator
	defaultLock.Unlock()

	return g.Generate()
}

// UseParallelIDGenerator switches the process-wide default generator to the
// xid-backed one.
func UseParallelIDGenerator() {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	defaultGenerator = NewParallelIDGenerator()
}
