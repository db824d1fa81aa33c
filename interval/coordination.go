/*
coordination.go - Write-path serialization

PURPOSE:
  Two coordination primitives back the engine's concurrency model:

  keyLocks:
    Serializes rescan-and-recompute sequences per (vehicle, kind) key.
    A rescan is a read-modify-write over the expense history; two racing
    rescans for the same pair could leave the row reflecting a stale
    maximum. Striped mutexes give single-writer-per-key dispatch without
    an unbounded lock table. The monotonic merge path never takes these
    locks: maximum merges converge in any interleaving.

  RebuildGate:
    Full rebuilds touch every key and must not interleave with
    incremental maintenance. Incremental operations hold the gate shared;
    a rebuild holds it exclusively, which also keeps a single rebuild
    in flight at a time.
*/
package interval

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{}
}

// lock acquires the stripe for a key and returns its unlock function.
func (k *keyLocks) lock(key IntervalKey) func() {
	h := fnv.New32a()
	h.Write([]byte(key.VehicleID))
	h.Write([]byte{0})
	h.Write([]byte(key.KindID))
	m := &k.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

// RebuildGate serializes full rebuilds against incremental maintenance.
// The zero value is ready to use; share one instance between the
// Maintainer and the Recalculator.
type RebuildGate struct {
	mu sync.RWMutex
}

// incremental admits an incremental operation; many may run concurrently.
func (g *RebuildGate) incremental() func() {
	g.mu.RLock()
	return g.mu.RUnlock
}

// exclusive admits a full rebuild, excluding everything else.
func (g *RebuildGate) exclusive() func() {
	g.mu.Lock()
	return g.mu.Unlock
}
