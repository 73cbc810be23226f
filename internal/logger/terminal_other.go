//go:build !linux && !darwin

package logger

// isTerminal conservatively reports false on platforms without termios.
func isTerminal(uintptr) bool {
	return false
}
