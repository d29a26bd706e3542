// Package simt core runtime: devices, contexts, streams, launch geometry.
package simt

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Device represents a compute device. In simt, this is the CPU with its
// cores acting as the parallel processing units of an accelerator.
type Device struct {
	ID               int    // Unique device identifier
	Name             string // Human-readable device name
	TotalMem         uint64 // Total available memory in bytes
	NumUnits         int    // Number of parallel processing units (cores)
	MaxLanesPerGroup int    // Maximum lanes in one thread group
	WarpWidth        int    // Native lane-group width
}

// Context represents an execution context for simt operations.
// It manages device resources, memory allocation, and stream execution.
type Context struct {
	device        *Device
	streams       map[int]*Stream
	streamID      int32
	memory        *MemoryPool
	defaultStream *Stream
}

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order, but
// operations in different streams may execute concurrently. The
// in-order guarantee is what separates the two reduction passes.
type Stream struct {
	id    int
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
}

// Dim3 represents 3D dimensions for grid and block configurations.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total element count of the dimensions
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// ThreadID identifies a lane's position within the execution hierarchy,
// with the same indexing semantics as an accelerator's built-in
// blockIdx, threadIdx, blockDim, and gridDim variables.
type ThreadID struct {
	BlockIdx  Dim3 // Group index within the grid
	ThreadIdx Dim3 // Lane index within the group
	BlockDim  Dim3 // Dimensions of the group
	GridDim   Dim3 // Dimensions of the grid
}

// Global returns the global lane index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// Kernel represents a compute kernel that can be executed in parallel.
// Execute is called once per lane, concurrently from many goroutines,
// so implementations must be safe for concurrent use.
type Kernel interface {
	Execute(ln *Lane, args ...interface{})
}

// KernelFunc is a function that can be launched as a kernel.
type KernelFunc func(ln *Lane, args ...interface{})

// Execute implements Kernel for KernelFunc
func (fn KernelFunc) Execute(ln *Lane, args ...interface{}) {
	fn(ln, args...)
}

// Global runtime state
var (
	defaultDevice  *Device
	defaultContext *Context
	initOnce       sync.Once
)

func init() {
	initOnce.Do(func() {
		defaultDevice = &Device{
			ID:               0,
			Name:             "CPU (" + GetCPUInfo() + ")",
			TotalMem:         getSystemMemory(),
			NumUnits:         runtime.NumCPU(),
			MaxLanesPerGroup: MaxLanesPerGroup,
			WarpWidth:        WarpWidth,
		}

		defaultContext = &Context{
			device:  defaultDevice,
			streams: make(map[int]*Stream),
			memory:  NewMemoryPool(),
		}

		defaultContext.defaultStream = defaultContext.CreateStream()
	})
}

// Malloc allocates device memory of the specified size in bytes
// on the default context.
func Malloc(size int) (DevicePtr, error) {
	return defaultContext.Malloc(size)
}

// Free releases device memory allocated by Malloc.
func Free(ptr DevicePtr) error {
	return defaultContext.Free(ptr)
}

// Memcpy copies memory between host and device on the default context.
func Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	return defaultContext.Memcpy(dst, src, size, kind)
}

// Launch executes a kernel on the default context's default stream.
//
// Parameters:
//   - kernel: The kernel to execute
//   - grid: Grid dimensions (number of groups)
//   - block: Group dimensions (lanes per group)
//   - args: Kernel arguments
func Launch(kernel Kernel, grid, block Dim3, args ...interface{}) error {
	return defaultContext.Launch(kernel, grid, block, args...)
}

// LaunchFunc executes a kernel function on the default context
func LaunchFunc(fn KernelFunc, grid, block Dim3, args ...interface{}) error {
	return defaultContext.LaunchFunc(fn, grid, block, args...)
}

// Synchronize waits for all operations on the default context to complete.
func Synchronize() error {
	return defaultContext.Synchronize()
}

// Reduction performs a two-pass parallel sum reduction on the default
// context. See Context.Reduction.
func Reduction(out, in DevicePtr, size, nThreads int) error {
	return defaultContext.Reduction(out, in, size, nThreads)
}

// LaunchShape computes the occupancy-aware group count for a reduction
// over size elements with nThreads lanes per group, on the default context.
func LaunchShape(size, nThreads int) (int, error) {
	return defaultContext.LaunchShape(size, nThreads)
}

// GetDevice returns the current device information.
func GetDevice() *Device {
	return defaultDevice
}

// SetDevice sets the active device (no-op for CPU)
func SetDevice(id int) error {
	if id != 0 {
		return ErrInvalidDevice
	}
	return nil
}

// GetDeviceCount returns the number of available devices.
// simt always returns 1 as it only supports CPU execution.
func GetDeviceCount() int {
	return 1
}

// GetDeviceProperties returns device properties
func GetDeviceProperties(id int) (*Device, error) {
	if id != 0 {
		return nil, NewDeviceError("GetDeviceProperties", fmt.Sprintf("invalid device ID: %d", id), nil)
	}
	return defaultDevice, nil
}

// Context methods

// NewContext creates a fresh execution context on the default device.
// Most callers can use the package-level functions instead.
func NewContext() *Context {
	ctx := &Context{
		device:  defaultDevice,
		streams: make(map[int]*Stream),
		memory:  NewMemoryPool(),
	}
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// Destroy releases the context's streams after draining them.
func (ctx *Context) Destroy() {
	for _, s := range ctx.streams {
		s.wg.Wait()
		close(s.tasks)
		<-s.done
	}
	ctx.streams = nil
}

// Device returns the device this context executes on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:    id,
		tasks: make(chan func(), 1000),
		done:  make(chan struct{}),
	}

	go stream.worker()

	ctx.streams[id] = stream
	return stream
}

// Launch executes a kernel on the default stream
func (ctx *Context) Launch(kernel Kernel, grid, block Dim3, args ...interface{}) error {
	return ctx.LaunchStream(kernel, grid, block, ctx.defaultStream, args...)
}

// LaunchFunc executes a kernel function on the default stream
func (ctx *Context) LaunchFunc(fn KernelFunc, grid, block Dim3, args ...interface{}) error {
	return ctx.LaunchStream(fn, grid, block, ctx.defaultStream, args...)
}

// LaunchStream executes a kernel on the given stream
func (ctx *Context) LaunchStream(kernel Kernel, grid, block Dim3, stream *Stream, args ...interface{}) error {
	return ctx.launchInternal(kernel.Execute, grid, block, stream, args...)
}

// Synchronize waits for all operations on all streams to complete.
func (ctx *Context) Synchronize() error {
	for _, s := range ctx.streams {
		s.Synchronize()
	}
	return nil
}

// Stream methods

func (s *Stream) worker() {
	for task := range s.tasks {
		task()
		s.wg.Done()
	}
	close(s.done)
}

// Synchronize waits for all tasks in the stream to complete
func (s *Stream) Synchronize() {
	s.wg.Wait()
}

// Submit adds a task to the stream
func (s *Stream) Submit(task func()) {
	s.wg.Add(1)
	s.tasks <- task
}
