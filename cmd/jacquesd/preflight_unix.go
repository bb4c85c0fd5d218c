//go:build !windows

package main

import "syscall"

// processAlive reports whether pid refers to a live process, by sending
// the null signal (spec.md §5 PID file liveness check).
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
