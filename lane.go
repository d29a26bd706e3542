// Package simt lane-level execution state: barriers, warps, shared scratch.
package simt

import (
	"sync"
)

// barrier is a reusable generation-counted rendezvous for n goroutines.
// Wait blocks until all n participants have arrived, then releases them
// together; the generation counter makes back-to-back reuse safe.
type barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	n     int
	count int
	gen   uint64
}

func newBarrier(n int) *barrier {
	b := &barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until every participant has called Wait for this generation.
func (b *barrier) Wait() {
	b.mu.Lock()
	gen := b.gen
	b.count++
	if b.count == b.n {
		b.count = 0
		b.gen++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for gen == b.gen {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// warpState is the storage shared by all lanes of one warp: the exchange
// slots backing shuffle emulation and the warp-scoped barrier.
type warpState struct {
	id   int
	size int
	bar  *barrier
	exch []float32
}

// groupState is the storage shared by all lanes of one thread group.
// It exists only while the group executes; nothing survives the launch.
type groupState struct {
	bar     *barrier
	scratch [ScratchSlots]float32
	warps   []*warpState
}

func newGroupState(nLanes int) *groupState {
	nWarps := (nLanes + WarpWidth - 1) / WarpWidth
	g := &groupState{
		bar:   newBarrier(nLanes),
		warps: make([]*warpState, nWarps),
	}
	for w := 0; w < nWarps; w++ {
		size := nLanes - w*WarpWidth
		if size > WarpWidth {
			size = WarpWidth
		}
		g.warps[w] = &warpState{
			id:   w,
			size: size,
			bar:  newBarrier(size),
			exch: make([]float32, size),
		}
	}
	return g
}

// Warp is a lane's handle on its lane group. All lanes of a warp execute
// warp operations together; a shuffle in divergent control flow where only
// part of the warp participates will deadlock, as it would on hardware.
type Warp struct {
	state *warpState
	lane  int
}

// ID returns the warp's ordinal position within its thread group.
func (w *Warp) ID() int {
	return w.state.id
}

// Lane returns the calling lane's index within the warp.
func (w *Warp) Lane() int {
	return w.lane
}

// Size returns the number of active lanes in the warp. This is WarpWidth
// except for a trailing partial warp in a group not divisible by WarpWidth.
func (w *Warp) Size() int {
	return w.state.size
}

// ShuffleDown returns the value held by the lane offset positions higher
// in the warp. A lane whose source is out of range receives its own value
// back. All lanes of the warp must call ShuffleDown together.
func (w *Warp) ShuffleDown(v float32, offset int) float32 {
	s := w.state
	s.exch[w.lane] = v
	s.bar.Wait()
	out := v
	if src := w.lane + offset; src < s.size {
		out = s.exch[src]
	}
	// Second rendezvous keeps the next exchange from overwriting slots
	// that a slow lane has not read yet.
	s.bar.Wait()
	return out
}

// Lane is the per-lane execution handle passed to kernels. It carries the
// lane's position in the launch geometry and its group-scoped facilities.
type Lane struct {
	ID    ThreadID
	group *groupState
	warp  Warp
}

// Global returns the lane's global index across the grid.
func (ln *Lane) Global() int {
	return ln.ID.Global()
}

// Sync is the group-wide barrier: no lane proceeds past it until every
// lane in the group has reached it.
func (ln *Lane) Sync() {
	ln.group.bar.Wait()
}

// Shared returns the group's scratch buffer of ScratchSlots float32 values.
// All lanes of the group see the same storage; writes become visible to
// other lanes after Sync.
func (ln *Lane) Shared() []float32 {
	return ln.group.scratch[:]
}

// Warp returns the lane's warp handle.
func (ln *Lane) Warp() *Warp {
	return &ln.warp
}

// NumWarps returns the number of warps in the lane's thread group.
func (ln *Lane) NumWarps() int {
	return len(ln.group.warps)
}
