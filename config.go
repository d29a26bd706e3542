// Package simt configuration constants
package simt

// Execution geometry
const (
	// WarpWidth is the native lane-group width. Warp shuffles and the
	// group scratch buffer are sized around this value.
	WarpWidth = 32

	// MaxLanesPerGroup is the maximum number of lanes in one thread group.
	MaxLanesPerGroup = 1024

	// ScratchSlots is the number of float32 slots in a group's shared
	// scratch buffer, one per possible warp in a maximally sized group.
	ScratchSlots = MaxLanesPerGroup / WarpWidth

	// DefaultGroupSize is the group size used when the caller has no
	// particular preference.
	DefaultGroupSize = 256
)

// Occupancy budgets per processing unit. These model the residency limits
// of an accelerator's scheduler: a unit can only keep so many groups, so
// many lanes, and so much scratch memory in flight at once.
const (
	// MaxResidentGroupsPerUnit caps how many groups one unit schedules
	// concurrently regardless of their size.
	MaxResidentGroupsPerUnit = 32

	// MaxResidentLanesPerUnit caps the total lanes resident on one unit.
	MaxResidentLanesPerUnit = 2048

	// ScratchBytesPerUnit is the scratch memory budget of one unit.
	ScratchBytesPerUnit = 48 * 1024
)

// Memory pool parameters
const (
	// MemoryAlignment for allocations, matched to a cache line.
	MemoryAlignment = 64

	// MinAllocationSize rounds tiny requests up to prevent fragmentation.
	MinAllocationSize = 64
)

// defaultSystemMemory is reported when the platform offers no memory
// query syscall.
const defaultSystemMemory = 16 * 1024 * 1024 * 1024

// Numerical constants
const (
	// Float32Epsilon is the machine epsilon for float32.
	Float32Epsilon = 1.192092896e-07

	// MaxULPDiff is the default maximum ULP difference for float32
	// comparisons.
	MaxULPDiff = 4
)
