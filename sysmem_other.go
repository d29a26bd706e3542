//go:build !linux

package simt

// getSystemMemory returns total system memory in bytes. Platforms without
// a wired syscall fall back to a fixed estimate; the value only feeds the
// informational Device description.
func getSystemMemory() uint64 {
	return defaultSystemMemory
}
