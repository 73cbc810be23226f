//go:build darwin

package memtier

import "golang.org/x/sys/unix"

// totalMemory returns the host's total physical memory in bytes.
func totalMemory() (uint64, error) {
	return unix.SysctlUint64("hw.memsize")
}
