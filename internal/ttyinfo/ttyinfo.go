// Package ttyinfo resolves the controlling terminal path for the current
// process, used as a fallback in terminal-key derivation (spec.md §6).
// Grounded on golang.org/x/term's terminal-detection use in the retrieval
// pack (mreferre-entirecli, kylesnowschwartz-tail-claude).
package ttyinfo

import (
	"errors"
	"os"

	"golang.org/x/term"
)

// ErrNoControllingTTY is returned when no standard stream is attached to
// a terminal.
var ErrNoControllingTTY = errors.New("ttyinfo: no controlling tty")

// ControllingTTY returns the device path of the controlling terminal, if
// any of stdin/stdout/stderr is attached to one.
func ControllingTTY() (string, error) {
	for _, f := range []*os.File{os.Stdin, os.Stdout, os.Stderr} {
		if term.IsTerminal(int(f.Fd())) {
			if name := f.Name(); name != "" {
				return name, nil
			}
		}
	}
	return "", ErrNoControllingTTY
}
