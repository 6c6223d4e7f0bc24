//go:build !linux

package util

// SetRealtimePriority is a no-op on platforms without SCHED_FIFO.
func SetRealtimePriority() error {
	return nil
}
