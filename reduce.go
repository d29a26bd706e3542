// Package simt two-pass parallel sum reduction.
//
// The first pass covers the input with grid-stride loops, reduces each
// thread group's lane partials with warp shuffles and group scratch, and
// emits one partial sum per group. Groups cannot synchronize with each
// other, so a second single-group launch folds the partials into out[0];
// the stream's in-order execution is the grid-wide ordering point between
// the passes.
package simt

// WarpReduceSum reduces a per-lane value across a warp with a shuffle-down
// butterfly. After log2(size) steps every lane holds the warp sum; callers
// conventionally consume lane 0's result. The warp size must be a power of
// two; behavior is undefined otherwise.
func WarpReduceSum(w *Warp, v float32) float32 {
	for offset := w.Size() / 2; offset > 0; offset >>= 1 {
		v += w.ShuffleDown(v, offset)
	}
	return v
}

// BlockReduceSum reduces a per-lane value across the whole thread group.
// Each warp reduces independently, warp lane 0 parks the warp sum in the
// group scratch slot matching its warp ordinal, and after the group
// barrier the first warp reduces the parked partials. Only group lane 0's
// return value is meaningful; other lanes receive unspecified values.
//
// The group size must be a power of two no larger than MaxLanesPerGroup,
// which bounds the warp count by ScratchSlots.
func BlockReduceSum(ln *Lane, v float32) float32 {
	w := ln.Warp()
	scratch := ln.Shared()

	v = WarpReduceSum(w, v)

	if w.Lane() == 0 {
		scratch[w.ID()] = v
	}

	ln.Sync()

	if w.ID() == 0 {
		// Slots past the group's warp count were never written this
		// launch; load the additive identity instead.
		if w.Lane() < ln.NumWarps() {
			v = scratch[w.Lane()]
		} else {
			v = 0
		}
		v = WarpReduceSum(w, v)
	}

	return v
}

// reduceSumKernel is both reduction passes: grid-stride accumulate, group
// reduce, group lane 0 writes out[blockIdx]. The second pass runs it on a
// single group with in aliased to out, which is safe because the group
// barrier inside BlockReduceSum orders every read of in before the write.
func reduceSumKernel(ln *Lane, args ...interface{}) {
	in := args[0].(DevicePtr).Float32()
	out := args[1].(DevicePtr).Float32()
	size := args[2].(int)

	sum := float32(0)
	stride := ln.ID.GridDim.X * ln.ID.BlockDim.X
	for i := ln.Global(); i < size; i += stride {
		sum += in[i]
	}

	sum = BlockReduceSum(ln, sum)

	if ln.ID.ThreadIdx.X == 0 {
		out[ln.ID.BlockIdx.X] = sum
	}
}

// LaunchShape computes the occupancy-aware group count for a reduction
// over size elements with nThreads lanes per group: enough groups to
// cover the input under grid-stride looping, but never more than the
// device can keep resident at once.
func (ctx *Context) LaunchShape(size, nThreads int) (int, error) {
	if nThreads < 1 {
		return 0, NewInvalidArgError("LaunchShape", "nThreads must be positive")
	}

	dev, err := GetDeviceProperties(ctx.device.ID)
	if err != nil {
		return 0, err
	}
	resident, err := maxResidentGroupsPerUnit(dev, nThreads)
	if err != nil {
		return 0, err
	}

	needed := (size + nThreads - 1) / nThreads
	nBlocks := resident * dev.NumUnits
	if needed < nBlocks {
		nBlocks = needed
	}
	return nBlocks, nil
}

// maxResidentGroupsPerUnit models the occupancy limit of one processing
// unit for groups of the given size: the scheduler's group cap, its lane
// budget, and its scratch budget all bound residency.
func maxResidentGroupsPerUnit(dev *Device, nThreads int) (int, error) {
	if dev.NumUnits < 1 {
		return 0, NewDeviceError("Occupancy", "device reports no processing units", nil)
	}
	if nThreads > dev.MaxLanesPerGroup {
		return 0, NewDeviceError("Occupancy",
			"group size exceeds device limit", nil)
	}

	groups := MaxResidentGroupsPerUnit
	if byLanes := MaxResidentLanesPerUnit / nThreads; byLanes < groups {
		groups = byLanes
	}
	const scratchBytesPerGroup = ScratchSlots * 4
	if byScratch := ScratchBytesPerUnit / scratchBytesPerGroup; byScratch < groups {
		groups = byScratch
	}
	if groups < 1 {
		groups = 1
	}
	return groups, nil
}

// Reduction sums size float32 values from in and stores the result in
// out's slot 0. out must have capacity for at least max(1, ceil(size /
// nThreads)) float32 values and must not alias in; its remaining slots
// hold first-pass partial sums on return. nThreads must be a power of
// two no larger than MaxLanesPerGroup; this is a caller contract, not a
// runtime check. size may be any positive count, power of two or not,
// since the grid-stride loops cover arbitrary lengths.
func (ctx *Context) Reduction(out, in DevicePtr, size, nThreads int) error {
	nBlocks, err := ctx.LaunchShape(size, nThreads)
	if err != nil {
		return err
	}

	block := Dim3{X: nThreads, Y: 1, Z: 1}

	// First pass: one partial sum per group.
	err = ctx.LaunchFunc(reduceSumKernel, Dim3{X: nBlocks, Y: 1, Z: 1}, block, in, out, size)
	if err != nil {
		return NewExecutionError("Reduction", "first pass launch failed", err)
	}

	// Second pass: a single group folds the partials into out[0]. The
	// stream runs launches in order, so all partials are in place.
	err = ctx.LaunchFunc(reduceSumKernel, Dim3{X: 1, Y: 1, Z: 1}, block, out, out, nBlocks)
	if err != nil {
		return NewExecutionError("Reduction", "second pass launch failed", err)
	}

	return ctx.Synchronize()
}
