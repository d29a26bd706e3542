package simt

import (
	"fmt"
	"sync"
)

// launchInternal implements the core kernel execution logic
func (ctx *Context) launchInternal(
	kernelFunc func(*Lane, ...interface{}),
	grid, block Dim3,
	stream *Stream,
	args ...interface{},
) error {
	gridSize := grid.Size()
	blockSize := block.Size()

	if blockSize < 1 || blockSize > ctx.device.MaxLanesPerGroup {
		return NewInvalidArgError("Launch",
			fmt.Sprintf("group size %d outside [1, %d]", blockSize, ctx.device.MaxLanesPerGroup))
	}

	// Handle edge case where grid size is zero
	if gridSize == 0 {
		// Submit an empty task to maintain stream ordering
		stream.Submit(func() {})
		return nil
	}

	// Thread groups are independent, so they can be divided among the
	// device's processing units in contiguous spans for cache reuse.
	numWorkers := ctx.device.NumUnits
	if gridSize < numWorkers {
		numWorkers = gridSize
	}
	groupsPerWorker := (gridSize + numWorkers - 1) / numWorkers

	stream.Submit(func() {
		var wg sync.WaitGroup
		wg.Add(numWorkers)

		for workerID := 0; workerID < numWorkers; workerID++ {
			startGroup := workerID * groupsPerWorker
			endGroup := startGroup + groupsPerWorker
			if endGroup > gridSize {
				endGroup = gridSize
			}

			go func(start, end int) {
				defer wg.Done()
				for groupID := start; groupID < end; groupID++ {
					blockIdx := linearTo3D(groupID, grid)
					runGroup(kernelFunc, blockIdx, grid, block, args...)
				}
			}(startGroup, endGroup)
		}

		wg.Wait()
	})

	return nil
}

// runGroup executes one thread group to completion. Every lane gets its
// own goroutine so that group barriers and warp shuffles can rendezvous;
// the group's scratch and warp state die with it.
func runGroup(
	kernelFunc func(*Lane, ...interface{}),
	blockIdx, grid, block Dim3,
	args ...interface{},
) {
	nLanes := block.Size()
	group := newGroupState(nLanes)

	var wg sync.WaitGroup
	wg.Add(nLanes)

	for t := 0; t < nLanes; t++ {
		go func(laneID int) {
			defer wg.Done()

			ln := &Lane{
				ID: ThreadID{
					BlockIdx:  blockIdx,
					ThreadIdx: linearTo3D(laneID, block),
					BlockDim:  block,
					GridDim:   grid,
				},
				group: group,
				warp: Warp{
					state: group.warps[laneID/WarpWidth],
					lane:  laneID % WarpWidth,
				},
			}

			kernelFunc(ln, args...)
		}(t)
	}

	wg.Wait()
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

// ForEach applies a function to each element in parallel
func ForEach(data DevicePtr, size int, fn func(idx int, val *float32)) error {
	grid := Dim3{X: (size + DefaultGroupSize - 1) / DefaultGroupSize, Y: 1, Z: 1}
	block := Dim3{X: DefaultGroupSize, Y: 1, Z: 1}

	kernel := KernelFunc(func(ln *Lane, args ...interface{}) {
		idx := ln.Global()
		if idx < size {
			slice := data.Float32()
			fn(idx, &slice[idx])
		}
	})

	if err := Launch(kernel, grid, block, data, size); err != nil {
		return err
	}
	return Synchronize()
}
