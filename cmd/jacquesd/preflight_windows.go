//go:build windows

package main

import "os"

// processAlive reports whether pid refers to a live process. Windows has
// no null-signal primitive; on Windows FindProcess opens a handle to the
// process and fails when no process with that pid exists, so its error is
// used as the liveness signal (spec.md §5).
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
