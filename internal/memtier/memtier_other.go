//go:build !linux && !darwin

package memtier

import "errors"

// totalMemory is unavailable on this platform; Detect falls back to TierLow.
func totalMemory() (uint64, error) {
	return 0, errors.New("total memory detection not supported on this platform")
}
