//go:build linux

package util

import "golang.org/x/sys/unix"

// SetRealtimePriority moves the calling thread into SCHED_FIFO at the
// highest priority. The caller must be locked to its OS thread. This is
// a best-effort scheduling hint; failure leaves the thread at normal
// priority.
func SetRealtimePriority() error {
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: 99,
	}
	return unix.SchedSetAttr(0, attr, 0)
}
