// Package simt provides a SIMT-style execution model for CPU execution.
// It emulates the accelerator programming model (grids of thread groups,
// lockstep lane groups or "warps", group-shared scratch memory, and
// group-wide barriers) on top of goroutines, so that warp-synchronous
// algorithms can be written and tested on CPU-only infrastructure.
//
// The flagship operation is a two-pass parallel sum reduction: a first kernel
// launch grid-stride-accumulates the input and emits one partial sum per
// thread group, and a second single-group launch folds the partials into one
// scalar. Two launches are required because groups never synchronize with
// each other; the stream's launch boundary is the only grid-wide ordering
// point, exactly as on real hardware.
//
// Example usage:
//
//	d_in, _ := simt.Malloc(n * 4)
//	d_out, _ := simt.Malloc(((n + 255) / 256) * 4)
//	simt.Memcpy(d_in, hostData, n*4, simt.MemcpyHostToDevice)
//
//	if err := simt.Reduction(d_out, d_in, n, 256); err != nil {
//		log.Fatal(err)
//	}
//	sum := d_out.Float32()[0]
package simt
